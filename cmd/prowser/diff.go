package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowser-dev/prowser/pkg/markup"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

func diffCmd(opts *globalOptions) *cobra.Command {
	var stat bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Print the patches that turn one document into another",
		Long: `Build both documents and print the patch list the reconciler would
apply, one patch per line in application order:

  ! replace   ~ update attributes   + insert   - remove

Locations may be paths, file://, http(s):// or s3:// URLs.

Examples:
  prowser diff old.html new.html
  prowser diff --stat https://example.com page.html`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			mux := source.NewDefaultMux(cfg.SourceOptions())
			builder := vdom.NewBuilder(cfg.BuilderOptions()...)

			prev, err := loadTree(cmd.Context(), mux, builder, args[0])
			if err != nil {
				return err
			}
			next, err := loadTree(cmd.Context(), mux, builder, args[1])
			if err != nil {
				return err
			}
			patches := vdom.Diff(prev, next)

			w := cmd.OutOrStdout()
			if !stat {
				for _, p := range patches {
					fmt.Fprintln(w, describePatch(prev, next, p))
				}
			}
			printSummary(w, patches)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stat, "stat", false, "Print only the patch counts")

	return cmd
}

func loadTree(ctx context.Context, mux *source.Mux, b *vdom.Builder, location string) (*vdom.Tree, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, err := mux.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return markup.Build(b, doc.Body)
}

func describePatch(prev, next *vdom.Tree, p vdom.Patch) string {
	switch p.Op {
	case vdom.PatchReplace:
		return fmt.Sprintf("! %s -> %s", describeNode(prev, p.Target), describeNode(next, p.Node))
	case vdom.PatchUpdateAttrs:
		return fmt.Sprintf("~ %s %s", describeNode(prev, p.Target), p.Attrs)
	case vdom.PatchInsert:
		return fmt.Sprintf("+ %s into %s @%d", describeNode(next, p.Node), describeNode(prev, p.Target), p.Index)
	case vdom.PatchRemove:
		return fmt.Sprintf("- %s from %s @%d", describeNode(prev, p.Node), describeNode(prev, p.Target), p.Index)
	default:
		return p.String()
	}
}

func describeNode(t *vdom.Tree, id vdom.NodeID) string {
	n, ok := t.Node(id)
	if !ok {
		return fmt.Sprintf("?%d", id)
	}
	if n.IsText() {
		text := n.Content()
		if r := []rune(text); len(r) > 30 {
			text = string(r[:29]) + "…"
		}
		return fmt.Sprintf("%q", text)
	}
	return n.String()
}

func printSummary(w io.Writer, patches []vdom.Patch) {
	if len(patches) == 0 {
		fmt.Fprintln(w, "documents are identical")
		return
	}
	s := vdom.Summarize(patches)
	var parts []string
	for _, op := range []vdom.PatchOp{vdom.PatchReplace, vdom.PatchUpdateAttrs, vdom.PatchInsert, vdom.PatchRemove} {
		if s[op] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", s[op], op))
		}
	}
	noun := "patches"
	if len(patches) == 1 {
		noun = "patch"
	}
	fmt.Fprintf(w, "%d %s: %s\n", len(patches), noun, strings.Join(parts, ", "))
}
