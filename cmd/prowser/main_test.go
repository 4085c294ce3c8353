package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prowser-dev/prowser/internal/config"
	"github.com/prowser-dev/prowser/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	prev := writeFile(t, dir, "old.html", `<ul><li>a</li></ul><p class="x">same</p>`)
	next := writeFile(t, dir, "new.html", `<ul><li>a</li><li>b</li></ul><p class="y">same</p>`)

	out, err := execute(t, "diff", prev, next, "--config", dir)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, want := range []string{
		"+ <li> into <ul> @1",
		"~ <p> class=y",
		"2 patches: 1 UpdateAttrs, 1 Insert",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDiffCommandStat(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.html", `<p>one</p>`)
	b := writeFile(t, dir, "b.html", `<div>one</div>`)

	out, err := execute(t, "diff", "--stat", a, b, "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "!") {
		t.Errorf("--stat printed patches:\n%s", out)
	}
	if !strings.Contains(out, "1 patch: 1 Replace") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "diff", a, a, "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "documents are identical") {
		t.Errorf("output = %q", out)
	}
}

func TestDiffCommandMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.html", `<p>one</p>`)

	_, err := execute(t, "diff", a, filepath.Join(dir, "missing.html"), "--config", dir)
	if err == nil {
		t.Fatal("expected an error for a missing document")
	}
	if got := errors.Classify(err).Code; got != "E200" {
		t.Errorf("Classify code = %q, want E200", got)
	}
}

func TestRenderHTML(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "page.html", `<p>Hello <b>world</b></p><script>alert(1)</script>`)

	out, err := execute(t, "render", doc, "--config", dir)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<b>world</b>") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "script") {
		t.Errorf("denylisted element rendered: %q", out)
	}

	target := filepath.Join(dir, "out.html")
	if _, err := execute(t, "render", doc, "-o", target, "--config", dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<b>world</b>") {
		t.Errorf("file = %q", data)
	}
}

func TestRenderText(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "page.html", `<h1>Title</h1><p>Some body text</p>`)

	out, err := execute(t, "render", doc, "--format", "text", "--config", dir)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Title", "Some body text"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<h1>") {
		t.Errorf("text output contains markup:\n%s", out)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "page.html", `<p>x</p>`)

	_, err := execute(t, "render", doc, "--format", "pdf", "--config", dir)
	pe, ok := err.(*errors.ProwserError)
	if !ok || pe.Code != "E400" {
		t.Errorf("err = %v, want E400", err)
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir, "--format", "yaml", "--document", "index.html")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "prowser.yaml") {
		t.Errorf("output = %q", out)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serve.Document != "index.html" {
		t.Errorf("Serve.Document = %q", cfg.Serve.Document)
	}

	_, err = execute(t, "init", dir)
	pe, ok := err.(*errors.ProwserError)
	if !ok || pe.Code != "E103" {
		t.Errorf("second init err = %v, want E103", err)
	}

	if _, err := execute(t, "init", dir, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestServeConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.Metrics.Enabled = false
	cfg.Serve.Document = "index.html"
	if err := cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)); err != nil {
		t.Fatal(err)
	}
	opts := &globalOptions{configPath: dir}

	sc, err := (&serveOptions{}).serverConfig(opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Document != "index.html" || sc.Address != "localhost:8080" || sc.WatchInterval != time.Second {
		t.Errorf("config = %+v", sc)
	}
	if sc.Metrics != nil {
		t.Error("metrics enabled despite configuration")
	}
	if sc.Loader == nil || sc.Builder == nil {
		t.Error("loader and builder must be set")
	}

	sc, err = (&serveOptions{host: "0.0.0.0", port: 9000, watch: "250ms"}).serverConfig(opts, []string{"other.html"})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Document != "other.html" || sc.Address != "0.0.0.0:9000" || sc.WatchInterval != 250*time.Millisecond {
		t.Errorf("config = %+v", sc)
	}

	sc, err = (&serveOptions{noWatch: true}).serverConfig(opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sc.WatchInterval != 0 {
		t.Errorf("WatchInterval = %v, want 0", sc.WatchInterval)
	}

	if _, err := (&serveOptions{watch: "soon"}).serverConfig(opts, nil); err == nil {
		t.Error("expected a validation error for a bad interval")
	}
}

func TestServeRequiresDocument(t *testing.T) {
	dir := t.TempDir()
	_, err := (&serveOptions{}).serverConfig(&globalOptions{configPath: dir}, nil)
	pe, ok := err.(*errors.ProwserError)
	if !ok || pe.Code != "E400" {
		t.Errorf("err = %v, want E400", err)
	}
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version --short = %q, want %q", out, version)
	}
}
