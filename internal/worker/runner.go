// Package worker runs one recipe over many inputs with bounded
// concurrency, sharing a single render context across items.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/id"
	"github.com/dunamismax/pixelgraph/internal/pipeline"
	"github.com/dunamismax/pixelgraph/internal/render"
)

// Item is one input of a batch. ID names the output file.
type Item struct {
	ID    string
	Input string
}

type ItemResult struct {
	ItemID string
	Input  string
	Status string
	Output pipeline.Output
	Usage  domain.Usage
	Err    error
}

type BatchResult struct {
	RunID     string
	Items     []ItemResult
	Usage     domain.Usage
	Succeeded int
	Failed    int
	Skipped   int
}

type Options struct {
	Concurrency int
	OutputDir   string
	// FailFast stops scheduling new items after the first failure. Items
	// not started are reported as skipped.
	FailFast bool
	Logger   *log.Logger
	// Registry receives the batch collectors; pass render.Metrics.Registry()
	// to export both from one place.
	Registry prometheus.Registerer
}

type itemProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type Runner struct {
	logger      *log.Logger
	renderer    *render.Context
	processor   itemProcessor
	concurrency int
	failFast    bool
	metrics     *metrics
	tracer      trace.Tracer
}

func NewRunner(renderer *render.Context, opts Options) (*Runner, error) {
	if renderer == nil {
		return nil, errors.New("render context is required")
	}

	processor, err := pipeline.NewLocalProcessor(renderer, opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline processor: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Runner{
		logger:      logger,
		renderer:    renderer,
		processor:   processor,
		concurrency: max(1, opts.Concurrency),
		failFast:    opts.FailFast,
		metrics:     newMetrics(opts.Registry),
		tracer:      otel.Tracer("pixelgraph/worker"),
	}, nil
}

// Run applies recipe to every item. Results keep the order of items. In
// fail-fast mode the first item error is also returned; otherwise failures
// are only reported per item. The render cache is cleared once the batch
// is done.
func (r *Runner) Run(ctx context.Context, recipe domain.Recipe, items []Item) (BatchResult, error) {
	if len(items) == 0 {
		return BatchResult{}, domain.ErrEmptyBatch
	}
	if err := recipe.Validate(); err != nil {
		return BatchResult{}, fmt.Errorf("validate recipe: %w", err)
	}

	runID := id.New()
	ctx, span := r.tracer.Start(ctx, "worker.batch")
	span.SetAttributes(
		attribute.String("batch.run_id", runID),
		attribute.Int("batch.items", len(items)),
		attribute.Int("batch.steps", len(recipe.Steps)),
		attribute.Bool("batch.fail_fast", r.failFast),
	)
	defer span.End()
	defer r.renderer.ClearCaches()

	r.logger.Info("Working...", "run_id", runID, "items", len(items), "concurrency", r.concurrency, "backend", r.renderer.BackendName())

	results := make([]ItemResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, item := range items {
		results[i] = ItemResult{ItemID: item.ID, Input: item.Input, Status: domain.ItemStatusSkipped}
		// gctx is cancelled by the first fail-fast error or by the caller.
		if gctx.Err() != nil {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := r.processItem(gctx, recipe, item)
			results[i] = res
			if res.Err != nil && r.failFast {
				return fmt.Errorf("item %s: %w", item.ID, res.Err)
			}
			return nil
		})
	}
	runErr := g.Wait()

	batch := BatchResult{RunID: runID, Items: results}
	for _, res := range results {
		switch res.Status {
		case domain.ItemStatusSucceeded:
			batch.Succeeded++
			batch.Usage.Add(res.Usage)
		case domain.ItemStatusFailed:
			batch.Failed++
		default:
			batch.Skipped++
		}
	}

	status := domain.ItemStatusSucceeded
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if runErr != nil || batch.Failed > 0 {
		status = domain.ItemStatusFailed
		span.SetStatus(codes.Error, "batch had failures")
		if runErr != nil {
			span.RecordError(runErr)
		}
	} else {
		span.SetStatus(codes.Ok, "processed")
	}
	r.metrics.batchesTotal.WithLabelValues(status).Inc()

	r.logger.Info("Batch finished",
		"run_id", runID,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"skipped", batch.Skipped,
		"pixels", batch.Usage.PixelsProcessed,
		"compute_ms", batch.Usage.ComputeTimeMS(),
	)
	return batch, runErr
}

func (r *Runner) processItem(ctx context.Context, recipe domain.Recipe, item Item) ItemResult {
	startedAt := time.Now()
	res := ItemResult{ItemID: item.ID, Input: item.Input, Status: domain.ItemStatusFailed}

	ctx, span := r.tracer.Start(ctx, "worker.item")
	span.SetAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("item.input", item.Input),
	)
	defer span.End()
	defer func() {
		r.metrics.itemDuration.WithLabelValues(res.Status).Observe(time.Since(startedAt).Seconds())
		r.metrics.itemsTotal.WithLabelValues(res.Status).Inc()
	}()

	r.metrics.activeItems.Inc()
	defer r.metrics.activeItems.Dec()

	result, err := r.processor.Process(ctx, pipeline.Request{
		ItemID: item.ID,
		Input:  item.Input,
		Recipe: recipe,
	})
	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		r.logger.Error("item failed", "item_id", item.ID, "input", item.Input, "err", err)
		return res
	}

	res.Status = domain.ItemStatusSucceeded
	res.Output = result.Output
	res.Usage = result.Usage
	r.recordUsage(result.Usage)
	span.SetStatus(codes.Ok, "processed")
	r.logger.Debug("Processed", "item_id", item.ID, "path", result.Output.Path, "width", result.Output.Width, "height", result.Output.Height)
	return res
}

func (r *Runner) recordUsage(u domain.Usage) {
	r.metrics.pixelsProcessedTotal.Add(float64(u.PixelsProcessed))
	r.metrics.bytesWrittenTotal.Add(float64(u.BytesWritten))
	r.metrics.computeTimeMSTotal.Add(float64(u.ComputeTimeMS()))
}

// ItemsFromPaths names each input after its file stem. A stem that is
// already taken, compared by the file name it would produce, gets the
// first free numeric suffix so outputs never overwrite each other.
func ItemsFromPaths(paths []string) []Item {
	items := make([]Item, 0, len(paths))
	taken := make(map[string]bool, len(paths))
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if stem == "" || stem == "." {
			stem = "item"
		}
		itemID := stem
		for n := 2; taken[pipeline.FileToken(itemID)]; n++ {
			itemID = stem + "-" + strconv.Itoa(n)
		}
		taken[pipeline.FileToken(itemID)] = true
		items = append(items, Item{ID: itemID, Input: p})
	}
	return items
}
