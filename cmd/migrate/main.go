// Command migrate manages the planning database schema with goose.
//
//	migrate up              apply pending migrations
//	migrate down            roll back the most recent migration
//	migrate status          print the migration ledger
//	migrate version         print the current schema version
//	migrate create <name>   scaffold a new SQL migration
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/nordholz-group/salesplan-api/internal/config"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

const defaultMigrationsDir = "./migrations"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate <up|down|status|version|create NAME>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = defaultMigrationsDir
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	switch command, rest := args[0], args[1:]; command {
	case "up":
		if err := goose.Up(db, dir); err != nil {
			return fmt.Errorf("failed to run up migrations: %w", err)
		}
		fmt.Println("Planning schema is up to date")

	case "down":
		if err := goose.Down(db, dir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
		fmt.Println("Rolled back one migration")

	case "status":
		if err := goose.Status(db, dir); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

	case "version":
		if err := goose.Version(db, dir); err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}

	case "create":
		if len(rest) == 0 {
			return fmt.Errorf("create requires a migration name")
		}
		if err := goose.Create(db, dir, rest[0], "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		fmt.Printf("Migration created: %s\n", rest[0])

	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	return nil
}
