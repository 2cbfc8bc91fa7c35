package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nodeweld/nodeweld/pkg/topology"
)

// endpointsCommand creates the endpoints command for inspecting per-feature
// endpoint identifiers without resolving.
func (c *CLI) endpointsCommand() *cobra.Command {
	var (
		configPath string
		input      string
		output     string
		resolve    bool
		noCache    bool
		expr       string
	)

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Report endpoint identifiers per feature",
		Long: `Report the endpoint identifiers of each feature as JSON.

By default the current stored values are reported as-is, including nulls and
duplicates. With --resolve the report shows the identifiers a resolution run
would settle on, without writing anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if input != "" {
				cfg.Store.Backend = "memory"
				cfg.Store.Path = input
			}

			opts := cfg.Options()
			opts.Resolve = resolve
			opts.Expr = expr
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

			track := newProgress(c.Logger)
			result, err := runner.Execute(cmd.Context(), store, opts)
			if err != nil {
				return err
			}
			track.done(fmt.Sprintf("Collected endpoints for %d features", result.Stats.FeatureCount))

			return writeEndpoints(result.Endpoints, output)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default nodeweld.toml)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "feature document file (overrides configured store)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "report settled identifiers instead of stored values")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result caching")
	cmd.Flags().StringVar(&expr, "filter", "", "backend filter expression limiting the features considered")

	return cmd
}

// endpointRow is one line of the endpoints report, ordered by feature ID.
type endpointRow struct {
	Feature int64 `json:"feature"`
	From    any   `json:"from"`
	To      any   `json:"to"`
}

func writeEndpoints(endpoints map[int64]topology.Endpoints, output string) error {
	rows := make([]endpointRow, 0, len(endpoints))
	for id, ep := range endpoints {
		rows = append(rows, endpointRow{Feature: id, From: ep.From, To: ep.To})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Feature < rows[j].Feature })

	w := os.Stdout
	if output != "" && output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
