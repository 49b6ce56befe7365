package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "immitate",
	Short: "Configurable fake REST API server",
	Long: `immitate serves a CRUD REST API generated from model declarations.

Each model declares a schema, the routes it exposes and whether it keeps
timestamps. Entities are validated against the schema and persisted to a
JSON file (or SQLite, or memory).

Quick start:
  immitate templates e-commerce > immitate.yaml
  immitate serve

Other commands:
  immitate validate   # Validate configuration
  immitate templates  # List built-in templates`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "immitate.yaml", "config file path (.yaml, .json or .toml)")
}
