// Package pipeline provides the core resolution pipeline for nodeweld.
//
// This package implements the complete read → resolve → write pipeline used
// by the CLI, the API server, and tests. Centralizing it keeps caching and
// chunked write-back behavior identical across entry points.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Read: stream directed line features out of a dataset store
//  2. Resolve: infer the node topology and settle endpoint identifiers
//  3. Write: write the settled identifiers back in chunked edit sessions
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    FromField: "from_id",
//	    ToField:   "to_id",
//	    Resolve:   true,
//	    Write:     true,
//	}
//	result, err := runner.Execute(ctx, store, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	endpoints := result.Endpoints
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nodeweld/nodeweld/pkg/cache"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

const (
	// DefaultChunkSize is the number of features written per edit session.
	// Small enough to keep individual transactions snappy on remote stores,
	// large enough that chunking overhead is negligible on local ones.
	DefaultChunkSize = 1000

	// DefaultFromField and DefaultToField are the conventional endpoint
	// identifier field names.
	DefaultFromField = "from_node_id"
	DefaultToField   = "to_node_id"
)

// Options contains all configuration for the resolution pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// FromField and ToField name the attribute fields holding each feature's
	// start and end node identifiers. Both must share one identifier domain.
	FromField string `json:"from_field,omitempty"`
	ToField   string `json:"to_field,omitempty"`

	// Kind and Length override the identifier domain. When Kind is empty the
	// domain is taken from the store's declared field type.
	Kind   string `json:"kind,omitempty"`
	Length int    `json:"length,omitempty"`

	// Resolve settles identifiers (dedupe, contest, assign). When false the
	// pipeline only reports current endpoint values per feature.
	Resolve bool `json:"resolve,omitempty"`

	// Write writes settled identifiers back to the store. Implies Resolve.
	Write bool `json:"write,omitempty"`

	// ChunkSize bounds the number of features per write-back edit session.
	ChunkSize int `json:"chunk_size,omitempty"`

	// Expr is an optional backend filter expression limiting the features
	// considered. Interpretation is backend-specific.
	Expr string `json:"expr,omitempty"`

	// Refresh bypasses the result cache.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the resolved node topology. Nil when the endpoint mapping was
	// served entirely from cache.
	Graph *topology.Graph

	// Endpoints maps each feature ID to its settled endpoint identifiers.
	Endpoints map[int64]topology.Endpoints

	// ContentHash is the hash of the input features this result was computed
	// from, usable as a render cache key.
	ContentHash string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	FeatureCount  int
	NodeCount     int
	ChunksWritten int
	ReadTime      time.Duration
	ResolveTime   time.Duration
	WriteTime     time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	ResolveHit bool // Whether the endpoint mapping came from cache
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.FromField == "" {
		o.FromField = DefaultFromField
	}
	if o.ToField == "" {
		o.ToField = DefaultToField
	}
	if err := apperrors.ValidateFieldName(o.FromField); err != nil {
		return err
	}
	if err := apperrors.ValidateFieldName(o.ToField); err != nil {
		return err
	}
	if o.FromField == o.ToField {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			"from and to fields must differ, both are %q", o.FromField)
	}
	if o.Kind != "" {
		if _, err := o.Domain(); err != nil {
			return err
		}
	}
	if o.Write {
		o.Resolve = true
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if err := apperrors.ValidateChunkSize(o.ChunkSize); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Domain returns the identifier domain named by the Kind/Length overrides.
// Only valid when Kind is set.
func (o *Options) Domain() (ident.Domain, error) {
	kind, err := ident.ParseKind(o.Kind)
	if err != nil {
		return ident.Domain{}, apperrors.Wrap(apperrors.ErrCodeInvalidIDKind, err, "id kind %q", o.Kind)
	}
	d := ident.Domain{Kind: kind, Length: o.Length}
	if err := d.Validate(); err != nil {
		return ident.Domain{}, apperrors.Wrap(apperrors.ErrCodeInvalidIDLength, err, "id domain %s", d)
	}
	return d, nil
}

// ResultKeyOpts returns cache key options for the resolution result.
func (o *Options) ResultKeyOpts() cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		FromField: o.FromField,
		ToField:   o.ToField,
		Kind:      o.Kind,
		Length:    o.Length,
		Resolve:   o.Resolve,
	}
}

func (o *Options) String() string {
	return fmt.Sprintf("from=%s to=%s resolve=%t write=%t chunk=%d",
		o.FromField, o.ToField, o.Resolve, o.Write, o.ChunkSize)
}
