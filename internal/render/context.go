// Package render evaluates graph nodes into pixel buffers.
//
// A Context owns one backend for its lifetime: the accelerated libvips
// backend when the binary is built with the govips tag and hardware is
// preferred, otherwise the pure Go software backend. The accelerated
// backend may decline any single op, which is then run by the software
// backend; results never depend on which backend ran an op beyond
// resampling differences.
//
// One Context serves concurrent Render calls. ClearCaches is the only
// mutating operation and waits for in-flight renders to finish.
package render

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelgraph/internal/graph"
)

const (
	DefaultCacheEntries = 64
	// DefaultMaxPixels bounds any single intermediate buffer (about 1 GiB
	// of NRGBA).
	DefaultMaxPixels = 256 << 20
)

type options struct {
	preferHardware bool
	cacheEntries   int
	maxPixels      int
	logger         *log.Logger
	metrics        *Metrics
}

type Option func(*options)

// WithPreferHardware selects the accelerated backend when one is compiled
// in and starts successfully.
func WithPreferHardware(prefer bool) Option {
	return func(o *options) { o.preferHardware = prefer }
}

// WithCacheEntries sizes the intermediate buffer cache. Zero or less
// disables caching.
func WithCacheEntries(n int) Option {
	return func(o *options) { o.cacheEntries = n }
}

// WithMaxPixels sets the largest extent area any node may have. Zero or
// less removes the limit.
func WithMaxPixels(n int) Option {
	return func(o *options) { o.maxPixels = n }
}

func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

type Context struct {
	mu sync.RWMutex

	software backend
	accel    backend

	cache     *lru.Cache[uint64, *image.NRGBA]
	maxPixels int

	logger  *log.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func New(opts ...Option) (*Context, error) {
	o := options{
		preferHardware: true,
		cacheEntries:   DefaultCacheEntries,
		maxPixels:      DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	c := &Context{
		software:  softwareBackend{},
		maxPixels: o.maxPixels,
		logger:    o.logger,
		metrics:   o.metrics,
		tracer:    otel.Tracer("pixelgraph/render"),
	}

	if o.cacheEntries > 0 {
		cache, err := lru.New[uint64, *image.NRGBA](o.cacheEntries)
		if err != nil {
			return nil, fmt.Errorf("create render cache: %w", err)
		}
		c.cache = cache
	}

	if o.preferHardware {
		accel, err := newAcceleratedBackend()
		if err != nil {
			c.logger.Debug("accelerated backend unavailable, using software", "err", err)
		} else {
			c.accel = accel
		}
	}
	c.logger.Debug("render context ready", "backend", c.BackendName(), "cache_entries", o.cacheEntries, "max_pixels", o.maxPixels)
	return c, nil
}

func (c *Context) IsHardwareAccelerated() bool {
	return c.accel != nil
}

func (c *Context) BackendName() string {
	if c.accel != nil {
		return c.accel.name()
	}
	return c.software.name()
}

// Render evaluates n and returns a buffer with bounds (0,0)-(w,h) where
// w and h are the extent's size. ctx only carries tracing; a render runs to
// completion once started. On failure no buffer is returned.
func (c *Context) Render(ctx context.Context, n *graph.Node) (*image.NRGBA, error) {
	if n == nil {
		return nil, graph.Errorf(graph.KindInvalidParameter, "render", "nil node")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	startedAt := time.Now()
	backendName := c.BackendName()
	_, span := c.tracer.Start(ctx, "render.graph")
	span.SetAttributes(
		attribute.String("render.backend", backendName),
		attribute.Int("render.depth", n.Depth()),
		attribute.Int("render.width", n.Extent().W),
		attribute.Int("render.height", n.Extent().H),
	)
	defer span.End()

	out, err := c.evaluate(span, n)
	if c.metrics != nil {
		c.metrics.observeRender(backendName, err, time.Since(startedAt))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return nil, err
	}
	return out, nil
}

func (c *Context) evaluate(span trace.Span, n *graph.Node) (*image.NRGBA, error) {
	chain := n.Chain()
	for _, node := range chain {
		if err := c.checkBudget(node); err != nil {
			return nil, err
		}
	}

	// Resume from the deepest cached intermediate. Cached and leaf buffers
	// are shared, so the caller only gets them as a copy.
	start := 0
	var buf *image.NRGBA
	for i := len(chain) - 1; i > 0; i-- {
		if cached, ok := c.cacheGet(chain[i].ID()); ok {
			start, buf = i, cached
			break
		}
	}
	if buf == nil {
		buf = chain[0].Source()
		if buf == nil {
			return nil, graph.Errorf(graph.KindRenderBackendFailure, "render", "leaf %d has no pixels", chain[0].ID())
		}
	}
	shared := true

	for i := start + 1; i < len(chain); i++ {
		node := chain[i]
		out, err := c.applyOp(node.Op(), buf, chain[i-1].Extent(), node.Extent())
		if err != nil {
			return nil, err
		}
		span.AddEvent("op", trace.WithAttributes(
			attribute.String("op.name", node.Op().Name()),
			attribute.Int64("node.id", int64(node.ID())),
		))
		if out != buf {
			shared = false
		}
		buf = out
		if i < len(chain)-1 {
			c.cacheAdd(node.ID(), buf)
			shared = true
		}
	}

	if shared {
		buf = imaging.Clone(buf)
	}
	return buf, nil
}

func (c *Context) checkBudget(n *graph.Node) error {
	if c.maxPixels <= 0 {
		return nil
	}
	if area := n.Extent().Area(); area > c.maxPixels {
		return graph.Errorf(graph.KindRenderBackendFailure, "render",
			"node %d extent %dx%d exceeds pixel budget %d", n.ID(), n.Extent().W, n.Extent().H, c.maxPixels)
	}
	return nil
}

// ClearCaches drops every cached intermediate. It blocks until in-flight
// renders finish and holds new ones off until it returns.
func (c *Context) ClearCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		c.cache.Purge()
	}
	c.logger.Debug("render caches cleared")
}

// Close releases the accelerated backend. The context must not be used
// afterwards.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		c.cache.Purge()
	}
	if c.accel != nil {
		c.accel.close()
	}
}

func (c *Context) cacheGet(id uint64) (*image.NRGBA, bool) {
	if c.cache == nil {
		return nil, false
	}
	buf, ok := c.cache.Get(id)
	if c.metrics != nil {
		c.metrics.observeCache(ok)
	}
	return buf, ok
}

func (c *Context) cacheAdd(id uint64, buf *image.NRGBA) {
	if c.cache != nil {
		c.cache.Add(id, buf)
	}
}
