package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/nexus-handler/internal/config"
	"github.com/morezero/nexus-handler/internal/server"
	"github.com/morezero/nexus-handler/pkg/db"
)

// ServeCmd starts NATS, HTTP and the Nexus handlers.
// Usage: nexus-server serve
type ServeCmd struct{}

func (c *ServeCmd) Execute(_ []string) error {
	return server.Run()
}

// MigrateUpCmd applies every migration file in MIGRATION_PATH.
type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Execute(_ []string) error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

// MigrateDownCmd exists so operators get an explicit answer; migrations are
// forward-only.
type MigrateDownCmd struct{}

func (c *MigrateDownCmd) Execute(_ []string) error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationDown(ctx, pool, cfg.MigrationPath)
	})
}

// MigrateStatusCmd prints whether the operation store schema is present.
type MigrateStatusCmd struct{}

func (c *MigrateStatusCmd) Execute(_ []string) error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	})
}

// EnsureDBCmd creates a database when missing.
// Usage: nexus-server ensure-db [name]
type EnsureDBCmd struct {
	Args struct {
		Name string `positional-arg-name:"name" description:"database name (default: name from DATABASE_URL)"`
	} `positional-args:"yes"`
}

func (c *EnsureDBCmd) Execute(_ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	target, err := targetDatabaseURL(cfg.DatabaseURL, c.Args.Name)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), target); err != nil {
		return err
	}
	fmt.Println("Database is ready.")
	return nil
}

// withPool loads DB config, opens a pool and runs fn with it.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

// targetDatabaseURL replaces the database name in databaseURL when name is
// set. The query (e.g. sslmode) is kept.
func targetDatabaseURL(databaseURL, name string) (string, error) {
	if name == "" {
		return databaseURL, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}
