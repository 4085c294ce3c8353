package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/prowser-dev/prowser/internal/errors"
	"github.com/prowser-dev/prowser/pkg/metrics"
	"github.com/prowser-dev/prowser/pkg/server"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

type serveOptions struct {
	host    string
	port    int
	watch   string
	noWatch bool
}

func serveCmd(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve [DOC]",
		Short: "Serve a live preview of a document",
		Long: `Start a preview server for a document.

Browsers that open the page mount the document through a WebSocket
session. When the document changes, each session receives only the
patches needed to bring it up to date. Links and forms inside the page
navigate the session without reloading the browser tab.

Routes:
  GET  /          preview page
  GET  /ws        session WebSocket
  POST /reload    re-read the document now
  GET  /metrics   Prometheus metrics
  GET  /healthz   health check

Examples:
  prowser serve page.html
  prowser serve https://example.com --watch 5s
  prowser serve s3://bucket/index.html --port 3000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := so.serverConfig(opts, args)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printBanner(w)
			info(w, "Document:  %s", sc.Document)
			info(w, "Local:     http://%s", sc.Address)
			if sc.WatchInterval > 0 {
				info(w, "Watching:  every %s", sc.WatchInterval)
			}
			fmt.Fprintln(w)

			return server.New(sc).Run()
		},
	}

	cmd.Flags().StringVar(&so.host, "host", "", "Host to listen on (default from config)")
	cmd.Flags().IntVarP(&so.port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVar(&so.watch, "watch", "", "Document polling interval, e.g. 500ms")
	cmd.Flags().BoolVar(&so.noWatch, "no-watch", false, "Disable polling; POST /reload still works")

	return cmd
}

// serverConfig merges the configuration file with the command line.
func (so *serveOptions) serverConfig(opts *globalOptions, args []string) (*server.Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Serve.Document = args[0]
	}
	if so.host != "" {
		cfg.Serve.Host = so.host
	}
	if so.port != 0 {
		cfg.Serve.Port = so.port
	}
	if so.watch != "" {
		cfg.Serve.WatchInterval = so.watch
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Serve.Document == "" {
		return nil, errors.New("E400").
			WithDetail("No document to serve.").
			WithSuggestion("Pass a document, e.g. 'prowser serve index.html', or set serve.document")
	}

	sc := server.DefaultConfig()
	sc.Address = cfg.ServeAddress()
	sc.Document = cfg.Serve.Document
	sc.WatchInterval = cfg.WatchInterval()
	if so.noWatch {
		sc.WatchInterval = 0
	}
	sc.Loader = source.NewDefaultMux(cfg.SourceOptions())
	sc.Builder = vdom.NewBuilder(cfg.BuilderOptions()...)
	sc.MaxSessions = cfg.Serve.MaxSessions
	if wt := cfg.WriteTimeout(); wt > 0 {
		sc.SessionConfig.WriteTimeout = wt
	}
	if cfg.Metrics.Enabled {
		sc.Metrics = metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))
	}
	sc.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(opts.verbose, slog.LevelInfo),
	})).With("component", "server")
	return sc, nil
}
