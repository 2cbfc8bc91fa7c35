package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/nodeweld/nodeweld/pkg/dataset"
	"github.com/nodeweld/nodeweld/pkg/dataset/memory"
	"github.com/nodeweld/nodeweld/pkg/dataset/mongostore"
	"github.com/nodeweld/nodeweld/pkg/dataset/redistore"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/pipeline"
)

// DefaultConfigFile is the config filename looked up in the working
// directory when --config is not given.
const DefaultConfigFile = "nodeweld.toml"

// Config is the nodeweld.toml file format.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Cache  CacheConfig  `toml:"cache"`
	Fields FieldsConfig `toml:"fields"`
	ID     IDConfig     `toml:"id"`
	Run    RunConfig    `toml:"run"`
}

// StoreConfig selects and configures the dataset backend.
type StoreConfig struct {
	// Backend is one of "memory", "mongo", "redis".
	Backend string `toml:"backend"`

	// Path is the feature document for the memory backend.
	Path string `toml:"path"`

	// URI is the connection string for mongo and redis backends.
	URI string `toml:"uri"`

	// Database and Collection locate the feature collection (mongo).
	Database   string `toml:"database"`
	Collection string `toml:"collection"`

	// Namespace prefixes all keys (redis).
	Namespace string `toml:"namespace"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	// Backend is one of "file", "redis", "none". The file backend keeps
	// results per user; redis shares one cache across workers.
	Backend string `toml:"backend"`

	// URI is the connection string for the redis backend.
	URI string `toml:"uri"`
}

// FieldsConfig names the endpoint identifier fields.
type FieldsConfig struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// IDConfig declares the identifier domain of the endpoint fields.
type IDConfig struct {
	Kind   string `toml:"kind"`
	Length int    `toml:"length"`
}

// RunConfig holds run tuning knobs.
type RunConfig struct {
	ChunkSize int `toml:"chunk_size"`
}

// DefaultConfig returns the config used when no file is present: an in-memory
// document store with integer identifiers.
func DefaultConfig() Config {
	return Config{
		Store:  StoreConfig{Backend: "memory", Path: "features.json"},
		Cache:  CacheConfig{Backend: "file"},
		Fields: FieldsConfig{From: pipeline.DefaultFromField, To: pipeline.DefaultToField},
		ID:     IDConfig{Kind: "integer"},
		Run:    RunConfig{ChunkSize: pipeline.DefaultChunkSize},
	}
}

// LoadConfig reads a TOML config file on top of the defaults. An empty path
// falls back to nodeweld.toml in the working directory; a missing default
// file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if os.IsNotExist(err) {
		if explicit {
			return cfg, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "config %s", path)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, apperrors.New(apperrors.ErrCodeInvalidConfig,
			"unknown config key %q in %s", undecoded[0].String(), path)
	}
	return cfg, cfg.Validate()
}

// Validate checks the config for internally consistent values.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "mongo", "redis":
	default:
		return apperrors.New(apperrors.ErrCodeInvalidConfig,
			"unknown store backend %q (must be memory, mongo, or redis)", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case "file", "none":
	case "redis":
		if c.Cache.URI == "" {
			return apperrors.New(apperrors.ErrCodeInvalidConfig, "redis cache backend requires a uri")
		}
	default:
		return apperrors.New(apperrors.ErrCodeInvalidConfig,
			"unknown cache backend %q (must be file, redis, or none)", c.Cache.Backend)
	}
	if _, err := c.Domain(); err != nil {
		return err
	}
	if err := apperrors.ValidateFieldName(c.Fields.From); err != nil {
		return err
	}
	if err := apperrors.ValidateFieldName(c.Fields.To); err != nil {
		return err
	}
	return apperrors.ValidateChunkSize(c.Run.ChunkSize)
}

// Domain returns the declared identifier domain.
func (c Config) Domain() (ident.Domain, error) {
	kind, err := ident.ParseKind(c.ID.Kind)
	if err != nil {
		return ident.Domain{}, apperrors.Wrap(apperrors.ErrCodeInvalidIDKind, err, "id kind %q", c.ID.Kind)
	}
	d := ident.Domain{Kind: kind, Length: c.ID.Length}
	if err := d.Validate(); err != nil {
		return ident.Domain{}, apperrors.Wrap(apperrors.ErrCodeInvalidIDLength, err, "id domain %s", d)
	}
	return d, nil
}

// Schema declares the endpoint fields in the configured domain, for backends
// that take a declared schema.
func (c Config) Schema() (map[string]ident.Domain, error) {
	domain, err := c.Domain()
	if err != nil {
		return nil, err
	}
	return map[string]ident.Domain{
		c.Fields.From: domain,
		c.Fields.To:   domain,
	}, nil
}

// CacheScope derives the cache key prefix for the configured dataset, so
// datasets sharing one cache backend never trade entries.
func (c Config) CacheScope() string {
	switch c.Store.Backend {
	case "mongo":
		return fmt.Sprintf("mongo:%s/%s:", c.Store.Database, c.Store.Collection)
	case "redis":
		return "redis:" + c.Store.Namespace + ":"
	default:
		return "memory:" + c.Store.Path + ":"
	}
}

// Options builds pipeline options from the config.
func (c Config) Options() pipeline.Options {
	return pipeline.Options{
		FromField: c.Fields.From,
		ToField:   c.Fields.To,
		Kind:      c.ID.Kind,
		Length:    c.ID.Length,
		ChunkSize: c.Run.ChunkSize,
	}
}

// openStore connects the configured backend. The returned close function is
// safe to call on every exit path.
func openStore(ctx context.Context, cfg Config) (dataset.Store, func(), error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Store.Backend {
	case "memory":
		f, err := os.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrCodeDatasetNotFound, err, "open %s", cfg.Store.Path)
		}
		defer f.Close()
		store, err := memory.ReadDocument(f)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", cfg.Store.Path, err)
		}
		return store, func() {}, nil

	case "mongo":
		store, err := mongostore.Connect(ctx, mongostore.Config{
			URI:        cfg.Store.URI,
			Database:   cfg.Store.Database,
			Collection: cfg.Store.Collection,
			Schema:     schema,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close(context.Background()) }, nil

	case "redis":
		store, err := redistore.Connect(ctx, redistore.Config{
			URI:       cfg.Store.URI,
			Namespace: cfg.Store.Namespace,
			Schema:    schema,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "unknown store backend %q", cfg.Store.Backend)
}
