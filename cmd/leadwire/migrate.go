package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadwireai/leadwire/internal/db"
	"github.com/leadwireai/leadwire/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		if err := db.Migrate(cfg.Postgres); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}
