package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeweld/nodeweld/pkg/cache"
	"github.com/nodeweld/nodeweld/pkg/pipeline"
	"github.com/nodeweld/nodeweld/pkg/render"
)

// exportCommand creates the export command for rendering topologies.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		configPath string
		input      string
		output     string
		format     string
		detailed   bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the resolved topology as DOT, SVG, or PNG",
		Long: `Resolve the dataset's topology and render it as a diagram.

Nodes are the welded junction points labeled with their settled identifiers;
edges are the directed line features between them. Nothing is written back to
the dataset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			switch format {
			case "dot", "svg", "png":
			default:
				return fmt.Errorf("invalid format: %q (must be one of: dot, svg, png)", format)
			}

			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if input != "" {
				cfg.Store.Backend = "memory"
				cfg.Store.Path = input
			}

			opts := cfg.Options()
			opts.Resolve = true
			opts.Refresh = true // the graph itself is needed, not just the mapping
			opts.Logger = c.Logger

			runner, err := c.newRunner(cmd.Context(), cfg, cfg.CacheScope(), noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			features, domain, err := runner.Read(cmd.Context(), store, opts)
			if err != nil {
				return err
			}

			// Rendered artifacts are cached by content, options, and output
			// variant; an unchanged dataset re-exported in the same format
			// skips resolution and graphviz entirely.
			hashed, err := json.Marshal(features)
			if err != nil {
				return err
			}
			renderKey := renderCacheKey(runner.Keyer, cache.Hash(hashed), opts, format, detailed)
			if data, hit, err := runner.Cache.Get(cmd.Context(), renderKey); err == nil && hit {
				return writeExport(data, output, 0, true)
			}

			graph, _, err := runner.Resolve(features, domain, opts)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("Rendering %s...", format))
			spinner.Start()
			dot := render.ToDOT(graph, features, render.Options{Detailed: detailed})

			var data []byte
			switch format {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = render.RenderSVG(dot)
			case "png":
				data, err = render.RenderPNG(dot)
			}
			if err != nil {
				spinner.StopWithError("Render failed")
				return err
			}
			spinner.Stop()

			_ = runner.Cache.Set(cmd.Context(), renderKey, data, cache.TTLRender)
			return writeExport(data, output, graph.Len(), false)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default nodeweld.toml)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "feature document file (overrides configured store)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: dot, svg, png")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include coordinates and degree in node labels")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result caching")

	return cmd
}

// renderCacheKey keys a rendered artifact by the run's result key and the
// output variant, so a different format or detail level is a different entry.
func renderCacheKey(keyer cache.Keyer, contentHash string, opts pipeline.Options, format string, detailed bool) string {
	variant := format
	if detailed {
		variant += "+detailed"
	}
	return keyer.RenderKey(keyer.ResultKey(contentHash, opts.ResultKeyOpts()), variant)
}

// writeExport writes rendered output to the given path, or stdout for "" / "-".
func writeExport(data []byte, output string, nodeCount int, cached bool) error {
	if output == "" || output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	if cached {
		printSuccess("Rendered from cache")
	} else {
		printSuccess("Rendered %d nodes", nodeCount)
	}
	printFile(output)
	return nil
}
