package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/artpar/immitate/config"
	"github.com/spf13/cobra"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

var validateTemplate string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before serving",
	Long: `Validate the immitate configuration file.

Checks:
  - The file parses as YAML, JSON or TOML
  - Every key, data type and route is known
  - Resource paths are unique and not reserved

Examples:
  immitate validate
  immitate validate --config api.json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateTemplate, "template", "t", "", "built-in template merged under the file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.LoadWithOverrides(cfgFile, config.Overrides{Template: validateTemplate})
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Store: %s (%s)\n", checkMark, cfg.DB.Name, cfg.DB.Driver)
	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())
	fmt.Fprintf(out, "  %s Models: %d\n", checkMark, len(cfg.Models))
	for _, m := range cfg.Derived() {
		verbs := make([]string, len(m.Verbs))
		for i, v := range m.Verbs {
			verbs[i] = string(v)
		}
		fmt.Fprintf(out, "      %-12s %-16s %s\n", m.Title, m.BasePath, strings.Join(verbs, ", "))
	}
	return nil
}
