package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leadwireai/leadwire/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "leadwire",
	Short: "LeadWire answers customer messages on business messaging channels",
	Long: `LeadWire is the conversational backend for business messaging.

It resolves each sender to a cross-channel lead, rebuilds the conversation
context, generates a reply through the configured completion API and delivers
the result on the channel the message arrived on.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (or set CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(exportCmd)
}

func loadConfig() (config.Config, error) {
	path := cfgPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
