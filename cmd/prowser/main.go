// Command prowser builds, diffs, renders and serves HTML documents through
// the vdom reconciler.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowser-dev/prowser/internal/config"
	"github.com/prowser-dev/prowser/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬─┐┌─┐┬ ┬┌─┐┌─┐┬─┐
  ├─┘├┬┘│ ││││└─┐├┤ ├┬┘
  ┴  ┴└─└─┘└┴┘└─┘└─┘┴└─
`

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "prowser",
		Short: "A tiny browser engine built on a virtual document",
		Long: `prowser parses HTML into a virtual document tree and keeps a rendering
target in step with it by diffing successive trees.

  • Diff two documents and print the patch list
  • Render a document as HTML or as terminal text
  • Browse the web in the terminal
  • Serve a live preview that updates as the document changes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				errors.DisableColors()
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel(opts.verbose, slog.LevelWarn),
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", ".", "Config file or directory containing prowser.json / prowser.yaml")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		diffCmd(opts),
		renderCmd(opts),
		browseCmd(opts),
		serveCmd(opts),
		initCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration named by --config. A directory
// without a configuration file yields the defaults.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = "."
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return config.LoadFile(path)
	}
	return config.LoadOrDefault(path)
}

// logLevel returns debug when verbose is set and fallback otherwise.
func logLevel(verbose bool, fallback slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return fallback
}

// discardLogs silences slog for commands that own the terminal.
func discardLogs() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// printBanner prints the prowser ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
