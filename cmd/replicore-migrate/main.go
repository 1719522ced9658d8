// Command replicore-migrate is a standalone bbolt schema-migration
// tool, modeled on the teacher's cmd/warren-migrate: it opens the
// primary store's bbolt file directly (no replicore process running)
// and moves records from a retired bucket layout to the current one.
//
// Pre-split stores kept both node and orchestrator actions in one
// "actions" bucket, tagged with a "scope" field. The current schema
// splits them into "node_actions" and "orchestrator_actions" (see
// pkg/storage/bolt.go) so each can carry its own natural-key shape.
// This tool performs that one-time split.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir    = flag.String("data-dir", "/var/lib/replicore", "Replicante Core data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to back up the database before migration (default: <data-dir>/replicore-primary.db.backup)")
)

var (
	legacyActionsBucket = []byte("actions")
	nodeActionsBucket   = []byte("node_actions")
	orchestratorBucket  = []byte("orchestrator_actions")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Replicante Core Database Migration Tool - actions -> node_actions/orchestrator_actions")
	log.Println("==============================================================================")

	dbPath := filepath.Join(*dataDir, "replicore-primary.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := migrateLegacyActions(db, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to perform the migration.")
	} else {
		log.Println("\nMigration completed successfully!")
		log.Println("Old 'actions' bucket has been preserved for rollback if needed.")
		log.Println("After verifying the migration, you can manually delete it using:")
		log.Printf("  bolt db rm %s actions", dbPath)
	}
}

// legacyAction is the pre-split on-disk shape: a NodeAction/OrchestratorAction
// superset plus a scope tag naming which collection it belongs to.
type legacyAction struct {
	Scope     string `json:"scope"`
	ClusterID string `json:"cluster_id"`
	NodeID    string `json:"node_id"`
	ActionID  string `json:"action_id"`
}

func migrateLegacyActions(db *bolt.DB, dryRun bool) error {
	var total, migratedNode, migratedOrchestrator int

	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(legacyActionsBucket)
		if bucket == nil {
			log.Println("No legacy 'actions' bucket found - database is already using the split schema")
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			total++
			return nil
		})
	})
	if err != nil {
		return err
	}
	if total == 0 {
		log.Println("No legacy actions found to migrate")
		return nil
	}
	log.Printf("Found %d legacy action records to migrate", total)

	if dryRun {
		log.Println("\n[DRY RUN] Would perform the following operations:")
		log.Println("1. Create 'node_actions' and 'orchestrator_actions' buckets if missing")
		log.Printf("2. Route %d records by their 'scope' field\n", total)
		log.Println("3. Preserve the 'actions' bucket for rollback")
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		nodeBucket, err := tx.CreateBucketIfNotExists(nodeActionsBucket)
		if err != nil {
			return fmt.Errorf("create node_actions bucket: %w", err)
		}
		orchBucket, err := tx.CreateBucketIfNotExists(orchestratorBucket)
		if err != nil {
			return fmt.Errorf("create orchestrator_actions bucket: %w", err)
		}

		legacy := tx.Bucket(legacyActionsBucket)
		if legacy == nil {
			return nil // already migrated
		}

		err = legacy.ForEach(func(k, v []byte) error {
			var a legacyAction
			if err := json.Unmarshal(v, &a); err != nil {
				log.Printf("Warning: skipping invalid JSON for key %s: %v", k, err)
				return nil
			}

			switch a.Scope {
			case "node":
				key := a.ClusterID + "/" + a.NodeID + "/" + a.ActionID
				if err := nodeBucket.Put([]byte(key), v); err != nil {
					return fmt.Errorf("migrate node action %s: %w", key, err)
				}
				migratedNode++
			case "orchestrator":
				key := a.ClusterID + "/" + a.ActionID
				if err := orchBucket.Put([]byte(key), v); err != nil {
					return fmt.Errorf("migrate orchestrator action %s: %w", key, err)
				}
				migratedOrchestrator++
			default:
				log.Printf("Warning: skipping action %s with unknown scope %q", k, a.Scope)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("Migrated %d node actions, %d orchestrator actions", migratedNode, migratedOrchestrator)
		log.Println("Preserved 'actions' bucket for rollback")
		return nil
	})
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0o600)
}
