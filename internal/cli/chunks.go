package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeweld/nodeweld/pkg/dataset"
)

// chunksCommand creates the chunks command for previewing write-back ranges.
func (c *CLI) chunksCommand() *cobra.Command {
	var (
		configPath string
		input      string
		expr       string
		chunkSize  int
	)

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Show the ID-range chunks a write-back would use",
		Long: `Show the closed feature-ID ranges a write-back would split the dataset
into. Each range covers at most chunk-size features; gaps in the ID sequence
fold into the surrounding range, so the ranges always partition exactly the
features present.`,
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
			if chunkSize == 0 {
				chunkSize = cfg.Run.ChunkSize
			}

			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			view := dataset.NewView(store, dataset.Filter{Expr: expr})
			defer view.Release(cmd.Context())

			count, err := view.Count(cmd.Context())
			if err != nil {
				return err
			}
			ranges, err := previewChunks(cmd.Context(), view, chunkSize)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(ranges); err != nil {
				return err
			}
			printDetail("%d features in %d chunks of up to %d", count, len(ranges), chunkSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default nodeweld.toml)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "feature document file (overrides configured store)")
	cmd.Flags().StringVar(&expr, "filter", "", "backend filter expression limiting the features considered")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "maximum features per chunk (default from config)")

	return cmd
}

// previewChunks partitions the view's features into the ID ranges a chunked
// write-back would use.
func previewChunks(ctx context.Context, view *dataset.View, chunkSize int) ([]dataset.Range, error) {
	var ranges []dataset.Range
	for chunk, err := range view.Chunks(ctx, chunkSize) {
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, *chunk.Filter().IDRange)
	}
	return ranges, nil
}
