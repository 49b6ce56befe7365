package main

import (
	"fmt"

	"github.com/artpar/immitate/config"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [name]",
	Short: "List built-in templates or print one",
	Long: `Without arguments, list the built-in model templates. With a name,
print that template so it can be saved and edited.

Examples:
  immitate templates
  immitate templates e-commerce > immitate.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplates,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the config file",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.OutOrStdout().Write(config.Schema())
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runTemplates(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, name := range config.Templates() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	src, err := config.TemplateSource(args[0])
	if err != nil {
		return err
	}
	_, err = out.Write(src)
	return err
}
