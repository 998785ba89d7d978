package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadwireai/leadwire/internal/analytics"
	"github.com/leadwireai/leadwire/internal/db"
	"github.com/leadwireai/leadwire/internal/logger"
	"github.com/leadwireai/leadwire/internal/transcript"
)

var (
	exportTenant string
	exportSince  time.Duration
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export customer and agent message pairs as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		log := logger.L

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()

		var out io.Writer = os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		var since time.Time
		if exportSince > 0 {
			since = time.Now().UTC().Add(-exportSince)
		}

		exporter := analytics.NewExporter(log, transcript.NewService(log, pool))
		n, err := exporter.Export(ctx, out, exportTenant, since)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported %d pairs\n", n)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "restrict to one tenant")
	exportCmd.Flags().DurationVar(&exportSince, "since", 0, "only pairs newer than this age, e.g. 720h")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
}
