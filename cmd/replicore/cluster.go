package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replicante-io/replicore/pkg/storage"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect cluster state from the local store",
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known cluster specs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := storage.Open(cfg.Store.DataDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		specs, err := st.ListClusterSpecs()
		if err != nil {
			return fmt.Errorf("failed to list cluster specs: %w", err)
		}
		if len(specs) == 0 {
			fmt.Println("No clusters found")
			return nil
		}

		fmt.Printf("%-20s %-20s %-8s %-10s\n", "NAMESPACE", "CLUSTER", "ACTIVE", "STRATEGY")
		for _, s := range specs {
			fmt.Printf("%-20s %-20s %-8t %-10s\n", s.NsID, s.ClusterID, s.Active, s.Strategy)
		}
		return nil
	},
}

var clusterDescribeCmd = &cobra.Command{
	Use:   "describe NS CLUSTER_ID",
	Short: "Display detailed state for one cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nsID, clusterID := args[0], args[1]
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := storage.Open(cfg.Store.DataDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		spec, err := st.GetClusterSpec(nsID, clusterID)
		if err != nil {
			return fmt.Errorf("failed to get cluster spec: %w", err)
		}

		fmt.Printf("Cluster: %s/%s\n", spec.NsID, spec.ClusterID)
		fmt.Printf("  Active: %t\n", spec.Active)
		fmt.Printf("  Strategy: %s\n", spec.Strategy)
		fmt.Printf("  Interval: %s\n", spec.Interval)
		fmt.Printf("  Next Orchestrate: %s\n", spec.NextOrchestrate.Format("2006-01-02 15:04:05"))

		if meta, err := st.GetClusterMeta(clusterID); err == nil && meta != nil {
			fmt.Println("\nMeta:")
			fmt.Printf("  Nodes: %d (down: %d)\n", meta.Nodes, meta.NodesDown)
			fmt.Printf("  Agents Down: %d\n", meta.AgentsDown)
			fmt.Printf("  Shards: %d (primaries: %d)\n", meta.ShardsCount, meta.ShardsPrimaries)
			fmt.Printf("  Kinds: %v\n", meta.Kinds)
		}

		nodes, err := st.ListNodes(clusterID)
		if err == nil && len(nodes) > 0 {
			fmt.Println("\nNodes:")
			for _, n := range nodes {
				fmt.Printf("  %-20s kind=%s\n", n.NodeID, n.Kind)
			}
		}

		agents, err := st.ListAgents(clusterID)
		if err == nil && len(agents) > 0 {
			fmt.Println("\nAgents:")
			for _, a := range agents {
				fmt.Printf("  %-20s status=%s\n", a.Host, a.Status.Kind)
			}
		}

		actions, err := st.ListUnfinishedOrchestratorActions(clusterID)
		if err == nil && len(actions) > 0 {
			fmt.Println("\nUnfinished orchestrator actions:")
			for _, a := range actions {
				fmt.Printf("  %-20s kind=%-20s state=%s\n", a.ActionID, a.Kind, a.State)
			}
		}

		if view, err := storage.OpenView(cfg.Store.DataDir); err == nil {
			defer view.Close()
			if events, err := view.RecentEvents(clusterID); err == nil && len(events) > 0 {
				fmt.Println("\nRecent events:")
				for _, e := range events {
					fmt.Printf("  %s  %-28s %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Code, e.EntityID)
				}
			}
		}

		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterDescribeCmd)
}
