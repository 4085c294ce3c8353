// Package page drives one browsing context: it fetches documents, builds
// trees from them and keeps a rendering target in step through a
// vdom.Reconciler.
//
// Navigation remounts the target from scratch. Reloads, Update and form
// submissions diff against the current tree so unchanged output survives.
//
//	mirror := vtest.NewMirror()
//	c := page.New[*vtest.Element](source.NewDefaultMux(source.Options{}), mirror, mirror.Root())
//	if err := c.Navigate(ctx, "https://example.com"); err != nil {
//	    return err
//	}
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prowser-dev/prowser/pkg/markup"
	"github.com/prowser-dev/prowser/pkg/metrics"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

const defaultTracerName = "prowser"

// ErrNoDocument is returned by operations that need a loaded page.
var ErrNoDocument = errors.New("page: no document loaded")

// Option configures a Controller.
type Option func(*options)

type options struct {
	builder    *vdom.Builder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracerName string
}

// WithBuilder sets the builder used to turn documents into trees.
func WithBuilder(b *vdom.Builder) Option {
	return func(o *options) {
		o.builder = b
	}
}

// WithLogger sets the controller's logger. The reconciler logs through it
// as well.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records loads, build errors and reconciliation passes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracerName sets the OpenTelemetry tracer name (default: "prowser").
func WithTracerName(name string) Option {
	return func(o *options) {
		o.tracerName = name
	}
}

// Controller owns the current document of one rendering target. Its methods
// are safe for concurrent use; reconciliation passes are serialized.
type Controller[H any] struct {
	loader  source.Loader
	builder *vdom.Builder
	rec     *vdom.Reconciler[H]
	obs     *metrics.Observer

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu  sync.Mutex
	url *url.URL
}

// New creates a controller rendering into container through adapter.
func New[H any](loader source.Loader, adapter vdom.Adapter[H], container H, opts ...Option) *Controller[H] {
	o := options{tracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "page")
	}
	if o.builder == nil {
		o.builder = vdom.NewBuilder(vdom.WithBuildLogger(o.logger))
	}

	c := &Controller[H]{
		loader:  loader,
		builder: o.builder,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  otel.Tracer(o.tracerName),
	}
	recOpts := []vdom.Option{vdom.WithLogger(o.logger)}
	if o.metrics != nil {
		c.obs = o.metrics.Observer()
		recOpts = append(recOpts, vdom.WithObserver(c.obs))
	}
	c.rec = vdom.NewReconciler(adapter, container, recOpts...)
	return c
}

// URL returns the location of the current document, or nil.
func (c *Controller[H]) URL() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Tree returns the tree the target currently shows, or nil.
func (c *Controller[H]) Tree() *vdom.Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Current()
}

// Handle returns the rendered handle of a node of the current tree.
func (c *Controller[H]) Handle(id vdom.NodeID) (H, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Handle(id)
}

// Navigate loads location and remounts the target with it. On failure the
// current page stays as it is.
func (c *Controller[H]) Navigate(ctx context.Context, location string) error {
	u, err := source.Normalize(location)
	if err != nil {
		return err
	}
	return c.NavigateURL(ctx, u)
}

// NavigateURL is Navigate for an already resolved location.
func (c *Controller[H]) NavigateURL(ctx context.Context, u *url.URL) error {
	doc, err := c.Fetch(ctx, u)
	if err != nil {
		return err
	}
	_, err = c.Render(ctx, doc, true)
	return err
}

// Follow resolves href against the current document and navigates to it.
// Fragment-only links are ignored.
func (c *Controller[H]) Follow(ctx context.Context, href string) error {
	u, err := source.Resolve(c.URL(), href)
	if errors.Is(err, source.ErrFragmentLink) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.NavigateURL(ctx, u)
}

// Reload fetches the current document again and reconciles the target with
// it.
func (c *Controller[H]) Reload(ctx context.Context) ([]vdom.Patch, error) {
	u := c.URL()
	if u == nil {
		return nil, ErrNoDocument
	}
	doc, err := c.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return c.Render(ctx, doc, false)
}

// Update builds body and reconciles the target with it, keeping the
// current URL. The first call mounts.
func (c *Controller[H]) Update(ctx context.Context, body []byte) ([]vdom.Patch, error) {
	tree, err := c.build(body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcile(ctx, tree, false)
}

// Fetch loads u without touching the target. Together with Render it lets
// callers fetch off the goroutine that owns the target.
func (c *Controller[H]) Fetch(ctx context.Context, u *url.URL) (*source.Document, error) {
	ctx, span := c.tracer.Start(ctx, "prowser.load",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("prowser.url", u.Redacted()),
			attribute.String("prowser.scheme", u.Scheme),
		))
	defer span.End()

	doc, err := c.loader.Load(ctx, u)
	c.metrics.RecordLoad(u.Scheme, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("load failed", "url", u.Redacted(), "error", err)
		return nil, fmt.Errorf("page: load %s: %w", u.Redacted(), err)
	}
	span.SetAttributes(
		attribute.Int("prowser.bytes", len(doc.Body)),
		attribute.String("prowser.content_type", doc.ContentType),
	)
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("document loaded", "url", doc.URL.Redacted(), "bytes", len(doc.Body))
	return doc, nil
}

// Render builds doc and shows it. With remount the target is rebuilt from
// scratch; otherwise the new tree is diffed against the current one. The
// document's URL becomes the current URL.
func (c *Controller[H]) Render(ctx context.Context, doc *source.Document, remount bool) ([]vdom.Patch, error) {
	tree, err := c.build(doc.Body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	patches, err := c.reconcile(ctx, tree, remount)
	if err != nil {
		return patches, err
	}
	c.url = doc.URL
	return patches, nil
}

// Close unmounts the current page and releases its share of the metrics.
func (c *Controller[H]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.rec.Unmount()
	if c.obs != nil {
		c.obs.Release()
	}
	return err
}

// Release drops the current tree and handles without touching the target
// and releases the controller's share of the metrics. Use it instead of
// Close when the target is already gone.
func (c *Controller[H]) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Reset()
	if c.obs != nil {
		c.obs.Release()
	}
}

// Reset forgets the current tree and handles without touching the target.
// Callers that clear the target themselves, such as a remote client that
// reconnects, call it before the next Render.
func (c *Controller[H]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Reset()
}

func (c *Controller[H]) build(body []byte) (*vdom.Tree, error) {
	tree, err := markup.Build(c.builder, body)
	if err != nil {
		return nil, fmt.Errorf("page: build: %w", err)
	}
	if errs := tree.BuildErrors(); len(errs) > 0 {
		c.metrics.RecordBuildErrors(len(errs))
		c.logger.Warn("dropped malformed nodes", "count", len(errs), "first", errs[0])
	}
	return tree, nil
}

// reconcile must be called with c.mu held.
func (c *Controller[H]) reconcile(ctx context.Context, tree *vdom.Tree, remount bool) ([]vdom.Patch, error) {
	_, span := c.tracer.Start(ctx, "prowser.reconcile",
		trace.WithAttributes(
			attribute.Int("prowser.nodes", tree.Len()),
			attribute.Bool("prowser.remount", remount),
		))
	defer span.End()

	var (
		patches []vdom.Patch
		err     error
	)
	if remount || c.rec.Failed() {
		// A failed reconciler cannot diff. Mount tears down what it
		// still knows about and rebuilds.
		err = c.rec.Mount(tree)
	} else {
		patches, err = c.rec.Update(tree)
	}
	span.SetAttributes(
		attribute.Int("prowser.patches", len(patches)),
		attribute.Int("prowser.handles", c.rec.Handles().Len()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return patches, fmt.Errorf("page: reconcile: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return patches, nil
}
