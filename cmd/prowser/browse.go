package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/prowser-dev/prowser/internal/errors"
	"github.com/prowser-dev/prowser/pkg/page"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/term"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

func browseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse [URL]",
		Short: "Browse documents in the terminal",
		Long: `Open a document in a full-screen terminal browser.

Keys:
  tab / shift+tab   move between links and form fields
  enter             follow a link or submit a form
  ctrl+l            edit the location
  ctrl+r            reload
  q / ctrl+c        quit

Without a URL the browser opens browser.home from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			home := cfg.Browser.Home
			if len(args) > 0 {
				home = args[0]
			}
			if !isatty.IsTerminal(os.Stdout.Fd()) {
				return errors.New("E401")
			}

			discardLogs()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			screen := term.NewScreen()
			ctrl := page.New[*term.Widget](
				source.NewDefaultMux(cfg.SourceOptions()),
				screen,
				screen.Root(),
				page.WithBuilder(vdom.NewBuilder(cfg.BuilderOptions()...)),
			)
			defer ctrl.Close()

			return term.Run(ctx, ctrl, screen, home)
		},
	}
}
