package main

import (
	"errors"
	"fmt"

	"github.com/artpar/immitate/bootstrap"
	"github.com/artpar/immitate/config"
	"github.com/spf13/cobra"
)

var serveOpts struct {
	template  string
	port      int
	db        string
	driver    string
	reset     bool
	hotReload bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the immitate server.

The server will:
  - Load models from immitate.yaml (or --config), merged with --template
  - Open the store document, clearing it with --reset
  - Serve the generated routes, /_schema, /_openapi.json and /swagger/

Environment variables:
  IMMITATE_SERVER_PORT   - Server port (default: 8080)
  IMMITATE_DB_NAME       - Store file (default: immitate.db.json)
  IMMITATE_DB_DRIVER     - Store driver: json, sqlite or memory
  IMMITATE_TEMPLATE      - Built-in template to start from
  IMMITATE_LOG_LEVEL     - Log level: debug, info, warn, error

Examples:
  immitate serve
  immitate serve --config api.toml --port 3000
  immitate serve --template social-media --reset`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.template, "template", "t", "", "built-in template to start from")
	f.IntVarP(&serveOpts.port, "port", "p", 0, "port to listen on")
	f.StringVar(&serveOpts.db, "db", "", "store file")
	f.StringVar(&serveOpts.driver, "driver", "", "store driver: json, sqlite or memory")
	f.BoolVar(&serveOpts.reset, "reset", false, "remove previously stored data on start")
	f.BoolVar(&serveOpts.hotReload, "hot-reload", true, "reload models when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.Load(bootstrap.Options{
		ConfigPath: cfgFile,
		Overrides: config.Overrides{
			Template: serveOpts.template,
			Port:     serveOpts.port,
			DBName:   serveOpts.db,
			DBDriver: serveOpts.driver,
			Reset:    serveOpts.reset,
		},
		HotReload: serveOpts.hotReload,
		Version:   version,
	})
	if errors.Is(err, config.ErrNoConfig) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "No configuration found at %s.\n\n", cfgFile)
		fmt.Fprintln(out, "Start from a built-in template:")
		for _, name := range config.Templates() {
			fmt.Fprintf(out, "  immitate serve --template %s\n", name)
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	return app.Run()
}
