// migrate applies the embedded SQL migrations of one schema: "auth" for the auth service
// database, "snapshot" for a user-sync service database.
//
//	go run ./cmd/migrate -schema auth -direction up
//	go run ./cmd/migrate -schema snapshot -list
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"bookfair/backend/internal/config"
	"bookfair/backend/internal/db/migrate"
)

func main() {
	schema := flag.String("schema", "auth", "Migration set: auth or snapshot")
	direction := flag.String("direction", "up", "Migration direction: up or down")
	list := flag.Bool("list", false, "Print the embedded migration files of the schema and exit")
	flag.Parse()

	if *list {
		files, err := migrate.Files(*schema)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.RequireDatabase(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *schema, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrate: %s %s done\n", *schema, *direction)
}
