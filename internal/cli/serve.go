package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nodeweld/nodeweld/pkg/server"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP resolution API",
		Long: `Run the nodeweld HTTP API.

The API is stateless: POST /v1/resolve takes a feature document and returns
the settled endpoint mapping. Prometheus metrics are exposed on /metrics and
liveness on /healthz. The server shuts down gracefully on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}

			// API requests carry their own datasets, so cache entries are
			// scoped to the API rather than to the configured store.
			runner, err := c.newRunner(cmd.Context(), cfg, "api:", noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			srv := server.New(server.Config{
				Addr:   addr,
				Runner: runner,
				Logger: c.Logger,
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default nodeweld.toml)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result caching")

	return cmd
}
