// Package cli implements the pixelgraph command-line interface.
//
// Single-image commands (resize, crop, rotate, flip, filter, scan, align)
// each build a one-step recipe and run it through the same pipeline the
// batch command uses. Coordinates on the command line are display pixels
// with the origin at the top-left; angles are clockwise degrees.
//
// Configuration comes from internal/config (--config, PIXELGRAPH_* env).
// The logger is attached to the command context.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dunamismax/pixelgraph/internal/codec"
	"github.com/dunamismax/pixelgraph/internal/config"
	"github.com/dunamismax/pixelgraph/internal/graph"
	"github.com/dunamismax/pixelgraph/internal/render"
	"github.com/dunamismax/pixelgraph/internal/telemetry"
)

const appName = "pixelgraph"

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets the values shown by --version, normally injected with
// ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// CLI holds state shared by all commands. The render context is created
// on first use and released by Close.
type CLI struct {
	Logger *log.Logger

	logOut io.Writer

	configPath string
	verbose    bool
	software   bool
	format     string
	quality    int

	cfg             config.Config
	metrics         *render.Metrics
	renderer        *render.Context
	shutdownTracing func(context.Context) error
}

// New creates a CLI that logs to logOut.
func New(logOut io.Writer) *CLI {
	return &CLI{
		Logger: log.New(io.Discard),
		logOut: logOut,
	}
}

// Execute runs the command tree and releases everything the run created.
func (c *CLI) Execute(ctx context.Context) error {
	err := c.RootCommand().ExecuteContext(ctx)
	return errors.Join(err, c.Close(context.WithoutCancel(ctx)))
}

// RootCommand builds the root command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "pixelgraph transforms images through a lazy render graph",
		Long:         `pixelgraph builds an immutable graph of geometric operations and filters over an image and renders it once, on libvips when available and in pure Go otherwise.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", appName, version, commit, date))

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default ~/.config/pixelgraph/config.toml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.BoolVar(&c.software, "software", false, "force the software render backend")
	pf.StringVar(&c.format, "format", "", "output format: png, jpeg or webp (default from output extension)")
	pf.IntVar(&c.quality, "quality", codec.DefaultJPEGQuality, "jpeg/webp quality 1..100")

	root.AddCommand(c.resizeCommand())
	root.AddCommand(c.cropCommand())
	root.AddCommand(c.rotateCommand())
	root.AddCommand(c.flipCommand())
	root.AddCommand(c.filterCommand())
	root.AddCommand(c.scanCommand())
	root.AddCommand(c.alignCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.backendCommand())

	return root
}

func (c *CLI) setup(cmd *cobra.Command) error {
	if c.format != "" {
		f, err := codec.ParseFormat(c.format)
		if err != nil {
			return graph.Errorf(graph.KindInvalidParameter, "--format", "%v", err)
		}
		c.format = f
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	logger, err := telemetry.NewLogger(c.logOut, level)
	if err != nil {
		return err
	}
	c.Logger = logger

	ctx := withLogger(cmd.Context(), logger)
	cmd.SetContext(ctx)

	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	c.shutdownTracing = shutdown
	return nil
}

// renderContext returns the process-wide render context, creating it on
// first use.
func (c *CLI) renderContext() (*render.Context, error) {
	if c.renderer != nil {
		return c.renderer, nil
	}
	c.metrics = render.NewMetrics()
	rc, err := render.New(
		render.WithPreferHardware(c.cfg.Render.PreferHardware && !c.software),
		render.WithCacheEntries(c.cfg.Render.CacheEntries),
		render.WithMaxPixels(c.cfg.Render.MaxPixels),
		render.WithLogger(c.Logger),
		render.WithMetrics(c.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create render context: %w", err)
	}
	c.renderer = rc
	return rc, nil
}

// Close releases the render context, writes the metrics textfile when
// configured and flushes traces.
func (c *CLI) Close(ctx context.Context) error {
	var errs []error
	if c.renderer != nil {
		c.renderer.Close()
		c.renderer = nil
	}
	if c.metrics != nil && c.cfg.Metrics.Textfile != "" {
		if err := c.metrics.WriteTextfile(c.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, err)
		}
	}
	if c.shutdownTracing != nil {
		if err := c.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
		c.shutdownTracing = nil
	}
	return errors.Join(errs...)
}
