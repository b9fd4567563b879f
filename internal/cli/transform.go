package cli

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/dunamismax/pixelgraph/internal/codec"
	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/filter"
	"github.com/dunamismax/pixelgraph/internal/id"
	"github.com/dunamismax/pixelgraph/internal/pipeline"
)

// runSingle renders one input through steps and writes output.
func (c *CLI) runSingle(cmd *cobra.Command, input, output string, steps ...domain.Step) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	renderer, err := c.renderContext()
	if err != nil {
		return err
	}

	format := c.format
	if format == "" {
		format = codec.FormatFromPath(output)
	}
	recipe := domain.Recipe{Steps: steps, Format: codec.NormalizeFormat(format), Quality: c.quality}

	processor := pipeline.NewProcessor(
		pipeline.LocalFileFetcher{},
		pipeline.NewTransformer(renderer),
		pipeline.PathEmitter{Path: output},
	)

	logger.Debug("rendering", "input", input, "steps", len(steps), "backend", renderer.BackendName())
	prog := newProgress(logger)
	result, err := processor.Process(ctx, pipeline.Request{ItemID: id.Short(), Input: input, Recipe: recipe})
	if err != nil {
		return err
	}
	prog.done("Rendered " + output)

	out := cmd.OutOrStdout()
	printSuccess(out, "%s %dx%d %s", steps[len(steps)-1].ActionName(), result.Output.Width, result.Output.Height, result.Output.Format)
	printFile(out, result.Output.Path)
	return nil
}

func (c *CLI) resizeCommand() *cobra.Command {
	step := domain.Step{Action: domain.ActionResize}
	cmd := &cobra.Command{
		Use:   "resize <input> <output>",
		Short: "Resize to a width and/or height, or by a scale factor",
		Long: `Resize keeps the aspect ratio unless --stretch is given. With only one
of --width or --height the other follows from the aspect ratio; with both
the image fits inside the box.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().IntVar(&step.Width, "width", 0, "target width in pixels")
	cmd.Flags().IntVar(&step.Height, "height", 0, "target height in pixels")
	cmd.Flags().Float64Var(&step.Scale, "scale", 0, "uniform scale factor")
	cmd.Flags().BoolVar(&step.Stretch, "stretch", false, "ignore the aspect ratio")
	return cmd
}

func (c *CLI) cropCommand() *cobra.Command {
	step := domain.Step{Action: domain.ActionCrop}
	cmd := &cobra.Command{
		Use:   "crop <input> <output>",
		Short: "Crop a rectangle given in display pixels (origin top-left)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().Float64Var(&step.X, "x", 0, "left edge")
	cmd.Flags().Float64Var(&step.Y, "y", 0, "top edge")
	cmd.Flags().IntVar(&step.Width, "width", 0, "crop width")
	cmd.Flags().IntVar(&step.Height, "height", 0, "crop height")
	return cmd
}

func (c *CLI) rotateCommand() *cobra.Command {
	step := domain.Step{Action: domain.ActionRotate}
	cmd := &cobra.Command{
		Use:   "rotate <input> <output>",
		Short: "Rotate clockwise about the image center",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().Float64Var(&step.Angle, "angle", 0, "clockwise degrees")
	cmd.Flags().BoolVar(&step.NoExpand, "no-expand", false, "keep the original canvas and clip the corners")
	return cmd
}

func (c *CLI) flipCommand() *cobra.Command {
	step := domain.Step{Action: domain.ActionFlip}
	cmd := &cobra.Command{
		Use:   "flip <input> <output>",
		Short: "Mirror horizontally and/or vertically",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().BoolVar(&step.Horizontal, "horizontal", false, "mirror left to right")
	cmd.Flags().BoolVar(&step.Vertical, "vertical", false, "mirror top to bottom")
	return cmd
}

func (c *CLI) filterCommand() *cobra.Command {
	var (
		name   string
		raw    map[string]string
		colour string
	)
	cmd := &cobra.Command{
		Use:   "filter <input> <output>",
		Short: "Apply a named filter",
		Long: fmt.Sprintf(`Apply one of the stock filters. Parameters are given as --param key=value
and must lie inside the filter's range (see "pixelgraph backend --filters").
The tint filter also accepts --color as a hex colour.

Filters: %s`, strings.Join(filter.Names(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(raw)
			if err != nil {
				return err
			}
			if colour != "" {
				if err := setColourParams(params, colour); err != nil {
					return err
				}
			}
			step := domain.Step{Action: domain.ActionFilter, Filter: name, Params: params}
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter name")
	cmd.Flags().StringToStringVar(&raw, "param", nil, "filter parameter key=value (repeatable)")
	cmd.Flags().StringVar(&colour, "color", "", "tint colour as #rrggbb")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *CLI) scanCommand() *cobra.Command {
	var (
		corners    string
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "scan <input> <output>",
		Short: "Straighten a detected document quadrilateral",
		Long: `Scan corrects perspective so the given quadrilateral fills an upright
rectangle. Corners are detector-normalized (unit square, origin top-left)
in the order top-left, top-right, bottom-right, bottom-left:

  --corners "0.1,0.05 0.9,0.1 0.95,0.9 0.05,0.95"

With --confidence, observations below 0.5 are rejected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quad, err := parseCorners(corners)
			if err != nil {
				return err
			}
			step := domain.Step{Action: domain.ActionPerspective, Corners: &quad, Confidence: confidence}
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().StringVar(&corners, "corners", "", "four x,y corners TL TR BR BL in [0,1]")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "detector confidence 0..1 (0 skips the check)")
	_ = cmd.MarkFlagRequired("corners")
	return cmd
}

func (c *CLI) alignCommand() *cobra.Command {
	step := domain.Step{Action: domain.ActionAlign}
	cmd := &cobra.Command{
		Use:   "align <input> <output>",
		Short: "Shift content by a display-pixel offset (y grows downward)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSingle(cmd, args[0], args[1], step)
		},
	}
	cmd.Flags().Float64Var(&step.OffsetX, "dx", 0, "horizontal offset")
	cmd.Flags().Float64Var(&step.OffsetY, "dy", 0, "vertical offset")
	return cmd
}

func parseParams(raw map[string]string) (map[string]float64, error) {
	params := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		params[strings.TrimSpace(k)] = f
	}
	return params, nil
}

func setColourParams(params map[string]float64, hex string) error {
	col, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("parse colour %q: %w", hex, err)
	}
	r, g, b := col.RGB255()
	params["r"] = float64(r)
	params["g"] = float64(g)
	params["b"] = float64(b)
	return nil
}

// parseCorners reads eight numbers separated by commas, spaces or
// semicolons.
func parseCorners(s string) (domain.Corners, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 8 {
		return domain.Corners{}, fmt.Errorf("corners need 8 numbers, got %d", len(fields))
	}
	var v [8]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return domain.Corners{}, fmt.Errorf("corner value %q: %w", f, err)
		}
		v[i] = n
	}
	return domain.Corners{
		TopLeft:     [2]float64{v[0], v[1]},
		TopRight:    [2]float64{v[2], v[3]},
		BottomRight: [2]float64{v[4], v[5]},
		BottomLeft:  [2]float64{v[6], v[7]},
	}, nil
}
