package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nodeweld/nodeweld/pkg/cache"
	"github.com/nodeweld/nodeweld/pkg/dataset"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/metrics"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different stores and
// options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete read → resolve → write pipeline with caching.
func (r *Runner) Execute(ctx context.Context, store dataset.Store, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{}

	// Stage 1: Read
	readStart := time.Now()
	features, domain, err := r.Read(ctx, store, opts)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	result.Stats.ReadTime = time.Since(readStart)
	result.Stats.FeatureCount = len(features)
	metrics.FeaturesRead.WithLabelValues(backendName(store)).Add(float64(len(features)))
	metrics.RunDuration.WithLabelValues("read").Observe(result.Stats.ReadTime.Seconds())

	data, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("hash features: %w", err)
	}
	result.ContentHash = cache.Hash(data)

	opts.Logger.Info("read features",
		"count", len(features),
		"domain", domain.String(),
		"duration", result.Stats.ReadTime)

	// Stage 2: Resolve
	resolveStart := time.Now()
	graph, endpoints, nodeCount, hit, err := r.resolveWithCache(ctx, features, domain, result.ContentHash, opts)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	result.Graph = graph
	result.Endpoints = endpoints
	result.Stats.NodeCount = nodeCount
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.CacheInfo.ResolveHit = hit
	metrics.RunDuration.WithLabelValues("resolve").Observe(result.Stats.ResolveTime.Seconds())

	opts.Logger.Info("resolved topology",
		"nodes", nodeCount,
		"cached", hit,
		"duration", result.Stats.ResolveTime)

	// Stage 3: Write
	if opts.Write {
		ed, ok := store.(dataset.Editor)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeUnsupported,
				"store %s does not support edit sessions", backendName(store))
		}
		writeStart := time.Now()
		chunks, err := r.WriteBack(ctx, ed, opts, result.Endpoints)
		if err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
		result.Stats.ChunksWritten = chunks
		result.Stats.WriteTime = time.Since(writeStart)
		metrics.RunDuration.WithLabelValues("write").Observe(result.Stats.WriteTime.Seconds())

		opts.Logger.Info("wrote identifiers",
			"features", len(result.Endpoints),
			"chunks", chunks,
			"duration", result.Stats.WriteTime)
	}

	return result, nil
}

// Read streams all matching features from the store and settles the
// identifier domain: the options override when present, the store's declared
// field type otherwise.
func (r *Runner) Read(ctx context.Context, store dataset.Store, opts Options) ([]topology.Feature, ident.Domain, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, ident.Domain{}, err
	}

	var domain ident.Domain
	var err error
	if opts.Kind != "" {
		domain, err = opts.Domain()
	} else {
		domain, err = store.FieldType(ctx, opts.FromField)
	}
	if err != nil {
		return nil, ident.Domain{}, err
	}

	features, err := dataset.ReadAll(ctx, store, dataset.Query{
		FromIDField: opts.FromField,
		ToIDField:   opts.ToField,
		Filter:      dataset.Filter{Expr: opts.Expr},
	})
	if err != nil {
		return nil, ident.Domain{}, err
	}
	return features, domain, nil
}

// Resolve builds the topology and settles identifiers without touching the
// cache or the store. Useful when features are already in hand.
func (r *Runner) Resolve(features []topology.Feature, domain ident.Domain, opts Options) (*topology.Graph, map[int64]topology.Endpoints, error) {
	if !opts.Resolve {
		graph, err := topology.Build(domain, features)
		if err != nil {
			return nil, nil, err
		}
		return graph, topology.Passthrough(features), nil
	}

	graph, err := topology.Build(domain, features)
	if err != nil {
		return nil, nil, err
	}
	pool, err := domain.NewPool()
	if err != nil {
		return nil, nil, err
	}
	resolved, err := topology.Resolve(graph, pool)
	if err != nil {
		if errors.Is(err, ident.ErrPoolExhausted) {
			return nil, nil, apperrors.Wrap(apperrors.ErrCodePoolExhausted, err,
				"identifier domain %s cannot cover the node set", domain)
		}
		return nil, nil, err
	}
	if err := resolved.Validate(); err != nil {
		return nil, nil, err
	}
	for _, n := range resolved.Nodes() {
		outcome := "assigned"
		if orig, ok := graph.Node(n.Coord); ok && orig.ID != nil && orig.ID == n.ID {
			outcome = "kept"
		}
		metrics.NodesResolved.WithLabelValues(outcome).Inc()
	}
	return resolved, topology.Project(resolved), nil
}

// cachedResult is the serialized form of a resolution result.
type cachedResult struct {
	NodeCount int                       `json:"node_count"`
	Endpoints map[int64]cachedEndpoints `json:"endpoints"`
}

type cachedEndpoints struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// resolveWithCache settles the endpoint mapping, serving it from the result
// cache when the content hash and options match a prior run. On a hit the
// graph is not rebuilt and comes back nil.
func (r *Runner) resolveWithCache(ctx context.Context, features []topology.Feature, domain ident.Domain, contentHash string, opts Options) (*topology.Graph, map[int64]topology.Endpoints, int, bool, error) {
	cacheKey := r.Keyer.ResultKey(contentHash, opts.ResultKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			endpoints, nodeCount, err := decodeCached(data, domain)
			if err == nil {
				metrics.CacheResults.WithLabelValues("hit").Inc()
				return nil, endpoints, nodeCount, true, nil
			}
			// Undecodable entry, recompute and overwrite.
			_ = r.Cache.Delete(ctx, cacheKey)
		}
	}
	metrics.CacheResults.WithLabelValues("miss").Inc()

	graph, endpoints, err := r.Resolve(features, domain, opts)
	if err != nil {
		return nil, nil, 0, false, err
	}

	if data, err := encodeCached(endpoints, graph.Len()); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLResult)
	}
	return graph, endpoints, graph.Len(), false, nil
}

func encodeCached(endpoints map[int64]topology.Endpoints, nodeCount int) ([]byte, error) {
	out := cachedResult{
		NodeCount: nodeCount,
		Endpoints: make(map[int64]cachedEndpoints, len(endpoints)),
	}
	for id, ep := range endpoints {
		out.Endpoints[id] = cachedEndpoints{From: ep.From, To: ep.To}
	}
	return json.Marshal(out)
}

func decodeCached(data []byte, domain ident.Domain) (map[int64]topology.Endpoints, int, error) {
	var in cachedResult
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, 0, err
	}
	endpoints := make(map[int64]topology.Endpoints, len(in.Endpoints))
	for id, ep := range in.Endpoints {
		from, err := domain.FromWire(ep.From)
		if err != nil {
			return nil, 0, err
		}
		to, err := domain.FromWire(ep.To)
		if err != nil {
			return nil, 0, err
		}
		endpoints[id] = topology.Endpoints{From: from, To: to}
	}
	return endpoints, in.NodeCount, nil
}

// WriteBack writes the endpoint mapping to the store in sorted ID-range
// chunks, one edit session per chunk. Returns the number of chunks committed.
// A failed chunk rolls back and stops the run; chunks already committed stay
// committed, and re-running the pipeline converges because settled
// identifiers are preserved on the next pass.
func (r *Runner) WriteBack(ctx context.Context, ed dataset.Editor, opts Options, endpoints map[int64]topology.Endpoints) (int, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(endpoints))
	for id := range endpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	chunks := 0
	for rg := range dataset.Ranges(ids, opts.ChunkSize) {
		from := make(map[int64]ident.Value)
		to := make(map[int64]ident.Value)
		for _, id := range ids {
			if !rg.Contains(id) {
				continue
			}
			from[id] = endpoints[id].From
			to[id] = endpoints[id].To
		}

		err := dataset.WithEdit(ctx, ed, func(tx dataset.Tx) error {
			if err := tx.WriteAttribute(ctx, opts.FromField, from); err != nil {
				return err
			}
			return tx.WriteAttribute(ctx, opts.ToField, to)
		})
		if err != nil {
			if apperrors.GetCode(err) == apperrors.ErrCodeWriteConflict {
				metrics.WriteConflicts.Inc()
			}
			return chunks, fmt.Errorf("chunk [%d,%d]: %w", rg.Min, rg.Max, err)
		}
		chunks++
		metrics.ChunksWritten.Inc()

		opts.Logger.Debug("committed chunk",
			"min", rg.Min,
			"max", rg.Max,
			"features", len(from))
	}
	return chunks, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// backendName reports a store's short name for logs and metric labels.
func backendName(s dataset.FeatureReader) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}
