// Command migrate applies or inspects the path-store schema (spec.md §6).
// "up" creates the store if absent and applies any pending migrations;
// "status" reports the applied version without changing anything.
package main

import (
	"flag"
	"log"

	"github.com/HOWILLMAKEIT/taxiflow/internal/pathstore"
)

func main() {
	var storePath string
	var cmd string

	flag.StringVar(&storePath, "store", "paths.db", "path-store sqlite file")
	flag.StringVar(&cmd, "cmd", "status", "migration command: up|status")
	flag.Parse()

	switch cmd {
	case "up":
		store, err := pathstore.NewStore(storePath)
		if err != nil {
			log.Fatalf("migrate: failed to apply migrations to %s: %v", storePath, err)
		}
		defer store.Close()
		log.Printf("migrate: %s is up to date", storePath)

	case "status":
		store, err := pathstore.OpenStore(storePath)
		if err != nil {
			log.Fatalf("migrate: failed to open %s: %v", storePath, err)
		}
		defer store.Close()

		version, dirty, ok, err := store.Version()
		if err != nil {
			log.Fatalf("migrate: failed to read migration status: %v", err)
		}
		if !ok {
			log.Printf("migrate: %s has no migrations applied", storePath)
			return
		}
		log.Printf("migrate: %s is at version %d (dirty=%t)", storePath, version, dirty)

	default:
		log.Fatalf("migrate: unknown -cmd %q (want up|status)", cmd)
	}
}
