// Package cli implements the nodeweld command-line interface.
//
// This package provides commands for resolving node topologies from feature
// datasets, inspecting endpoint assignments, generating identifiers, and
// serving the resolution API. The CLI is built using cobra and supports
// verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - resolve: Infer the node topology and write settled identifiers back
//   - endpoints: Report current endpoint identifiers per feature
//   - chunks: Show the ID-range chunks a write-back would use
//   - ids: Generate or correct identifier sets without a dataset
//   - export: Render the resolved topology as DOT, SVG, or PNG
//   - serve: Run the HTTP resolution API
//   - cache: Manage the local result cache
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nodeweld/nodeweld/pkg/buildinfo"
	"github.com/nodeweld/nodeweld/pkg/cache"
	"github.com/nodeweld/nodeweld/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "nodeweld"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nodeweld",
		Short:        "Nodeweld resolves line networks into stable node topologies",
		Long:         `Nodeweld infers the junction nodes of a directed line network from endpoint coordinates, welds coincident endpoints into shared nodes, and assigns globally unique node identifiers that stay stable across partial updates.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.endpointsCommand())
	root.AddCommand(c.chunksCommand())
	root.AddCommand(c.idsCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use. Cache keys are prefixed
// with scope so datasets sharing one cache backend stay separate.
func (c *CLI) newRunner(ctx context.Context, cfg Config, scope string, noCache bool) (*pipeline.Runner, error) {
	backend, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(backend, cache.NewScopedKeyer(nil, scope), c.Logger), nil
}

// newCache opens the configured cache backend. The file backend degrades to
// no caching when no cache directory can be determined; the redis backend
// must be reachable.
func newCache(ctx context.Context, cfg Config, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Cache.Backend == "none" {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisCache(ctx, cfg.Cache.URI)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/nodeweld/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
