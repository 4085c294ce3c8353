package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowser-dev/prowser/internal/errors"
	"github.com/prowser-dev/prowser/pkg/page"
	"github.com/prowser-dev/prowser/pkg/render"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/term"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

type renderOptions struct {
	format string
	width  int
	pretty bool
	minify bool
	output string
}

func renderCmd(opts *globalOptions) *cobra.Command {
	ro := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render DOC",
		Short: "Render a document as HTML or terminal text",
		Long: `Build a document and write it back out.

The html format serializes the built tree, so scripts, styles and
whitespace-only text are gone. The text format mounts the document on the
terminal screen used by 'prowser browse' and prints what it would show.

Examples:
  prowser render page.html --pretty
  prowser render https://example.com --format text --width 100
  prowser render page.html --minify -o out.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, ro, args[0])
		},
	}

	cmd.Flags().StringVarP(&ro.format, "format", "f", "html", "Output format: html or text")
	cmd.Flags().IntVarP(&ro.width, "width", "w", 80, "Line width for text output")
	cmd.Flags().BoolVar(&ro.pretty, "pretty", false, "Indent HTML output")
	cmd.Flags().BoolVar(&ro.minify, "minify", false, "Minify HTML output")
	cmd.Flags().StringVarP(&ro.output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func runRender(cmd *cobra.Command, opts *globalOptions, ro *renderOptions, location string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	mux := source.NewDefaultMux(cfg.SourceOptions())
	builder := vdom.NewBuilder(cfg.BuilderOptions()...)

	var out string
	switch strings.ToLower(ro.format) {
	case "html":
		tree, err := loadTree(cmd.Context(), mux, builder, location)
		if err != nil {
			return err
		}
		rc := cfg.RendererConfig()
		rc.Pretty = rc.Pretty || ro.pretty
		rc.Minify = rc.Minify || ro.minify
		html, err := render.NewRenderer(rc).RenderToString(tree)
		if err != nil {
			return err
		}
		out = html + "\n"
	case "text":
		screen := term.NewScreen()
		ctrl := page.New[*term.Widget](mux, screen, screen.Root(), page.WithBuilder(builder))
		defer ctrl.Close()
		if err := ctrl.Navigate(cmd.Context(), location); err != nil {
			return err
		}
		out = screen.View(ro.width) + "\n"
	default:
		return errors.New("E400").
			WithDetail(fmt.Sprintf("Unknown format %q.", ro.format)).
			WithSuggestion("Use --format html or --format text")
	}

	return writeOutput(cmd.OutOrStdout(), ro.output, out)
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
