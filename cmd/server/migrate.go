package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"careportal/internal/database"
)

var migrateCommand = &cli.Command{
	Name:   "migrate",
	Usage:  "Apply the database schema",
	Action: cmdMigrate,
}

func cmdMigrate(ctx *cli.Context) error {
	cfg := getConfig(ctx)

	db, err := database.Open(ctx.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx.Context); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	fmt.Printf("✅ Schema applied (%s)\n", db.Dialect)
	return nil
}
