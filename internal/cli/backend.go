package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dunamismax/pixelgraph/internal/filter"
)

func (c *CLI) backendCommand() *cobra.Command {
	var listFilters bool
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Show the render backend this binary selects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := c.renderContext()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, appName+" "+version)
			printKeyValue(out, "backend", renderer.BackendName())
			printKeyValue(out, "accelerated", strconv.FormatBool(renderer.IsHardwareAccelerated()))
			printKeyValue(out, "cache entries", strconv.Itoa(c.cfg.Render.CacheEntries))
			printKeyValue(out, "max pixels", strconv.Itoa(c.cfg.Render.MaxPixels))

			if listFilters {
				printTable(out, []string{"Filter", "Parameters"}, filterRows())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listFilters, "filters", false, "list stock filters and parameter ranges")
	return cmd
}

func filterRows() [][]string {
	names := filter.Names()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		ranges, _ := filter.Ranges(name)
		keys := make([]string, 0, len(ranges))
		for k := range ranges {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			r := ranges[k]
			parts = append(parts, fmt.Sprintf("%s=%g (%g..%g)", k, r.Default, r.Min, r.Max))
		}
		rows = append(rows, []string{name, strings.Join(parts, ", ")})
	}
	return rows
}
