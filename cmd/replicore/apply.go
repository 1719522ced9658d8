package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a declarative resource file",
	Long: `Apply a Replicante Core resource from a YAML file directly
against the local store, in the shape of the teacher's "warren apply"
(no API server sits in front of this core; spec.md §1 puts HTTP/CLI
surfaces out of scope, so this subcommand is an admin tool operating on
the same on-disk store the orchestrator reads).

Examples:
  replicore apply -f namespace.yaml
  replicore apply -f cluster-spec.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// resource is a generic apiVersion/kind/metadata/spec envelope, mirroring
// the teacher's WarrenResource.
type resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   resourceMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

type resourceMetadata struct {
	Name string `yaml:"name"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var r resource
	if err := yaml.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	st, err := storage.Open(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// Re-encode the generic spec map back to YAML so it can be decoded
	// into the concrete record type for the resource's kind.
	specYAML, err := yaml.Marshal(r.Spec)
	if err != nil {
		return fmt.Errorf("failed to re-encode spec: %w", err)
	}

	switch r.Kind {
	case "Namespace":
		return applyNamespace(st, r.Metadata.Name, specYAML)
	case "Platform":
		return applyPlatform(st, r.Metadata.Name, specYAML)
	case "DiscoverySettings":
		return applyDiscoverySettings(st, r.Metadata.Name, specYAML)
	case "ClusterSpec":
		return applyClusterSpec(st, r.Metadata.Name, specYAML)
	default:
		return fmt.Errorf("unsupported resource kind: %s", r.Kind)
	}
}

func applyNamespace(st storage.PrimaryStore, name string, specYAML []byte) error {
	var spec struct {
		Status   types.NamespaceStatus `yaml:"status"`
		TLS      types.TLSConfig       `yaml:"tls"`
		Settings map[string]string     `yaml:"settings"`
	}
	if err := yaml.Unmarshal(specYAML, &spec); err != nil {
		return fmt.Errorf("failed to parse namespace spec: %w", err)
	}
	if spec.Status == "" {
		spec.Status = types.NamespaceActive
	}
	ns := &types.Namespace{NsID: name, Status: spec.Status, TLS: spec.TLS, Settings: spec.Settings}
	if err := st.PutNamespace(ns); err != nil {
		return fmt.Errorf("failed to apply namespace: %w", err)
	}
	fmt.Printf("✓ Namespace applied: %s\n", name)
	return nil
}

func applyPlatform(st storage.PrimaryStore, name string, specYAML []byte) error {
	var spec struct {
		NsID      string             `yaml:"ns_id"`
		Active    bool               `yaml:"active"`
		Interval  string             `yaml:"interval"`
		Transport types.TransportURL `yaml:"transport"`
	}
	if err := yaml.Unmarshal(specYAML, &spec); err != nil {
		return fmt.Errorf("failed to parse platform spec: %w", err)
	}
	interval, err := parseDuration(spec.Interval, "platform")
	if err != nil {
		return err
	}
	p := &types.Platform{
		NsID: spec.NsID, Name: name, Active: spec.Active,
		Interval: interval, Transport: spec.Transport,
	}
	if err := st.PutPlatform(p); err != nil {
		return fmt.Errorf("failed to apply platform: %w", err)
	}
	fmt.Printf("✓ Platform applied: %s\n", p.Key())
	return nil
}

func applyDiscoverySettings(st storage.PrimaryStore, name string, specYAML []byte) error {
	var spec struct {
		NsID     string                       `yaml:"ns_id"`
		Interval string                       `yaml:"interval"`
		Backends types.DiscoveryBackendConfig `yaml:"backends"`
	}
	if err := yaml.Unmarshal(specYAML, &spec); err != nil {
		return fmt.Errorf("failed to parse discovery settings spec: %w", err)
	}
	interval, err := parseDuration(spec.Interval, "discovery settings")
	if err != nil {
		return err
	}
	d := &types.DiscoverySettings{
		NsID: spec.NsID, Name: name, Interval: interval, Backends: spec.Backends,
	}
	if err := st.PutDiscoverySettings(d); err != nil {
		return fmt.Errorf("failed to apply discovery settings: %w", err)
	}
	fmt.Printf("✓ DiscoverySettings applied: %s\n", d.Key())
	return nil
}

func applyClusterSpec(st storage.PrimaryStore, name string, specYAML []byte) error {
	var spec struct {
		NsID        string                   `yaml:"ns_id"`
		Active      bool                     `yaml:"active"`
		Interval    string                   `yaml:"interval"`
		Strategy    string                   `yaml:"strategy"`
		Declaration types.ClusterDeclaration `yaml:"declaration"`
	}
	if err := yaml.Unmarshal(specYAML, &spec); err != nil {
		return fmt.Errorf("failed to parse cluster spec: %w", err)
	}
	interval, err := parseDuration(spec.Interval, "cluster spec")
	if err != nil {
		return err
	}
	c := &types.ClusterSpec{
		NsID: spec.NsID, ClusterID: name, Active: spec.Active,
		Interval: interval, Strategy: spec.Strategy, Declaration: spec.Declaration,
	}
	if err := st.PutClusterSpec(c); err != nil {
		return fmt.Errorf("failed to apply cluster spec: %w", err)
	}
	fmt.Printf("✓ ClusterSpec applied: %s\n", c.Key())
	return nil
}
