package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowser-dev/prowser/internal/config"
	"github.com/prowser-dev/prowser/internal/errors"
)

func initCmd(opts *globalOptions) *cobra.Command {
	var (
		format   string
		force    bool
		document string
		home     string
	)

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a default configuration file",
		Long: `Write prowser.json (or prowser.yaml with --format yaml) with the
default settings into DIR, or the current directory.

Examples:
  prowser init
  prowser init site --format yaml --document index.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			var name string
			switch strings.ToLower(format) {
			case "json":
				name = config.ConfigFileName
			case "yaml", "yml":
				name = strings.TrimSuffix(config.ConfigFileName, ".json") + ".yaml"
			default:
				return errors.New("E400").
					WithDetail(fmt.Sprintf("Unknown format %q.", format)).
					WithSuggestion("Use --format json or --format yaml")
			}

			if config.Exists(dir) && !force {
				return errors.New("E103")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			cfg := config.New()
			if document != "" {
				cfg.Serve.Document = document
			}
			if home != "" {
				cfg.Browser.Home = home
			}
			path := filepath.Join(dir, name)
			if err := cfg.SaveTo(path); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "File format: json or yaml")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration")
	cmd.Flags().StringVar(&document, "document", "", "Document for 'prowser serve'")
	cmd.Flags().StringVar(&home, "home", "", "Start page for 'prowser browse'")

	return cmd
}
