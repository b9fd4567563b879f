package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/pipeline"
	"github.com/dunamismax/pixelgraph/internal/worker"
)

type batchOpts struct {
	recipe      string
	outputDir   string
	concurrency int
	failFast    bool
}

func (c *CLI) batchCommand() *cobra.Command {
	var opts batchOpts
	cmd := &cobra.Command{
		Use:   "batch <input>...",
		Short: "Apply a recipe file to many images concurrently",
		Long: `Batch loads a recipe (.toml or .json) and renders every input with it,
sharing one render context. Outputs are named after the input file stem.

By default a failing item is reported and the rest continue; --fail-fast
stops scheduling new items after the first failure.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.recipe, "recipe", "r", "", "recipe file (.toml or .json)")
	cmd.Flags().StringVarP(&opts.outputDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "parallel renders (default from config)")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop after the first failed item")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func (c *CLI) runBatch(cmd *cobra.Command, opts batchOpts, inputs []string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	recipe, err := pipeline.LoadRecipe(opts.recipe)
	if err != nil {
		return err
	}
	if c.format != "" {
		recipe.Format = c.format
	}

	renderer, err := c.renderContext()
	if err != nil {
		return err
	}

	workerOpts := worker.Options{
		Concurrency: c.cfg.Worker.Concurrency,
		OutputDir:   c.cfg.Worker.OutputDir,
		FailFast:    c.cfg.Worker.FailFast || opts.failFast,
		Logger:      logger,
		Registry:    c.metrics.Registry(),
	}
	if opts.concurrency > 0 {
		workerOpts.Concurrency = opts.concurrency
	}
	if opts.outputDir != "" {
		workerOpts.OutputDir = opts.outputDir
	}

	runner, err := worker.NewRunner(renderer, workerOpts)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	batch, runErr := runner.Run(ctx, recipe, worker.ItemsFromPaths(inputs))
	if runErr != nil && len(batch.Items) == 0 {
		return runErr
	}
	prog.done(fmt.Sprintf("Processed %d items", len(batch.Items)))

	out := cmd.OutOrStdout()
	printBatch(cmd, batch)
	switch {
	case runErr != nil:
		return runErr
	case batch.Failed > 0:
		printError(out, "%d of %d items failed", batch.Failed, len(batch.Items))
		return fmt.Errorf("%d of %d items failed", batch.Failed, len(batch.Items))
	}
	printSuccess(out, "%d items written to %s", batch.Succeeded, workerOpts.OutputDir)
	return nil
}

func printBatch(cmd *cobra.Command, batch worker.BatchResult) {
	rows := make([][]string, 0, len(batch.Items))
	for _, item := range batch.Items {
		size, detail := "", ""
		switch item.Status {
		case domain.ItemStatusSucceeded:
			size = fmt.Sprintf("%dx%d", item.Output.Width, item.Output.Height)
			detail = item.Output.Path
		case domain.ItemStatusFailed:
			detail = item.Err.Error()
		}
		rows = append(rows, []string{item.ItemID, item.Status, size, detail})
	}

	out := cmd.OutOrStdout()
	printTable(out, []string{"Item", "Status", "Size", "Output"}, rows)
	printKeyValue(out, "run", batch.RunID)
	printKeyValue(out, "pixels", strconv.FormatInt(batch.Usage.PixelsProcessed, 10))
	printKeyValue(out, "bytes", strconv.FormatInt(batch.Usage.BytesWritten, 10))
	printKeyValue(out, "compute", fmt.Sprintf("%dms", batch.Usage.ComputeTimeMS()))
}
