// Package redistore implements the dataset capability interfaces over Redis.
// Each feature is a hash, feature IDs live in a sorted set scored by ID so
// chunk ranges become ZRANGEBYSCORE queries, and edit sessions stage writes
// client-side and flush them in one transactional pipeline.
package redistore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nodeweld/nodeweld/pkg/dataset"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// Config describes the Redis instance, the key namespace, and the identifier
// domain of each attribute field. Redis hashes store strings, so domains are
// declared up front and values are encoded per domain.
type Config struct {
	URI            string
	Namespace      string
	Schema         map[string]ident.Domain
	ConnectTimeout time.Duration
}

// Store is a Redis-backed feature store.
type Store struct {
	client *redis.Client
	ns     string
	schema map[string]ident.Domain
}

// Connect parses the URI, builds a client, and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "parse redis uri %q", cfg.URI)
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "ping %s", cfg.URI)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "nodeweld"
	}
	return &Store{client: client, ns: ns, schema: cfg.Schema}, nil
}

// Name identifies the backend in logs and metric labels.
func (s *Store) Name() string { return "redis" }

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) featureKey(id int64) string {
	return fmt.Sprintf("%s:feature:%d", s.ns, id)
}

func (s *Store) indexKey() string {
	return s.ns + ":ids"
}

// FieldType reports the declared domain of a field.
func (s *Store) FieldType(ctx context.Context, field string) (ident.Domain, error) {
	domain, ok := s.schema[field]
	if !ok {
		return ident.Domain{}, apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not in dataset", field)
	}
	return domain, nil
}

// Insert adds or replaces a feature: its hash plus the ID index entry, in one
// transactional pipeline.
func (s *Store) Insert(ctx context.Context, f topology.Feature, attrs map[string]ident.Value) error {
	fields := map[string]any{
		"fx": strconv.FormatFloat(f.From.X, 'g', -1, 64),
		"fy": strconv.FormatFloat(f.From.Y, 'g', -1, 64),
		"tx": strconv.FormatFloat(f.To.X, 'g', -1, 64),
		"ty": strconv.FormatFloat(f.To.Y, 'g', -1, 64),
	}
	for name, v := range attrs {
		domain, ok := s.schema[name]
		if !ok {
			return apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not declared in schema", name)
		}
		if err := domain.Check(v); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "feature %d field %q", f.ID, name)
		}
		if v != nil {
			fields["attr:"+name] = encode(v)
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.featureKey(f.ID))
	pipe.HSet(ctx, s.featureKey(f.ID), fields)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(f.ID), Member: strconv.FormatInt(f.ID, 10)})
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "insert feature %d", f.ID)
	}
	return nil
}

// ReadSortedIDs enumerates feature IDs in ascending order off the sorted set.
// Redis interprets no filter expressions; a non-empty Expr is rejected.
func (s *Store) ReadSortedIDs(ctx context.Context, f dataset.Filter) ([]int64, error) {
	if f.Expr != "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidFilter, "redis store does not interpret filter expressions: %q", f.Expr)
	}
	min, max := "-inf", "+inf"
	if f.IDRange != nil {
		min = strconv.FormatInt(f.IDRange.Min, 10)
		max = strconv.FormatInt(f.IDRange.Max, 10)
	}
	members, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "read sorted ids")
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt id index entry %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadFeatures streams features in ascending ID order. Hashes are fetched in
// one pipeline per call and decoded lazily by the cursor.
func (s *Store) ReadFeatures(ctx context.Context, q dataset.Query) (dataset.Cursor, error) {
	fromDomain, err := s.FieldType(ctx, q.FromIDField)
	if err != nil {
		return nil, err
	}
	toDomain, err := s.FieldType(ctx, q.ToIDField)
	if err != nil {
		return nil, err
	}
	if fromDomain != toDomain {
		return nil, apperrors.New(apperrors.ErrCodeMixedIDKinds,
			"fields %q (%s) and %q (%s) have different identifier domains",
			q.FromIDField, fromDomain, q.ToIDField, toDomain)
	}

	ids, err := s.ReadSortedIDs(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.featureKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "read features")
	}

	return &hashCursor{
		ids:       ids,
		cmds:      cmds,
		fromField: q.FromIDField,
		toField:   q.ToIDField,
		domain:    fromDomain,
	}, nil
}

// WriteAttribute applies a value mapping in one transactional pipeline.
// Every target feature must exist in the ID index; a missing feature fails
// the whole write before anything is sent.
func (s *Store) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	domain, err := s.FieldType(ctx, field)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(values))
	for id, v := range values {
		if err := domain.Check(v); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeWriteConflict, err,
				"write %s=%s rejected for feature %d", field, ident.Format(v), id)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.ensureExist(ctx, ids); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for id, v := range values {
		if v == nil {
			pipe.HDel(ctx, s.featureKey(id), "attr:"+field)
			continue
		}
		pipe.HSet(ctx, s.featureKey(id), "attr:"+field, encode(v))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "write %s", field)
	}
	return nil
}

// ensureExist verifies every feature key is present before any write is sent.
func (s *Store) ensureExist(ctx context.Context, ids []int64) error {
	pipe := s.client.Pipeline()
	checks := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		checks[i] = pipe.Exists(ctx, s.featureKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "check features")
	}
	for i, check := range checks {
		if check.Val() == 0 {
			return apperrors.New(apperrors.ErrCodeWriteConflict,
				"write rejected: feature %d does not exist", ids[i])
		}
	}
	return nil
}

// Begin opens an edit session. Redis has no server-side rollback for hash
// writes, so the session stages value mappings client-side and flushes them
// in a single transactional pipeline on Commit. Rollback discards the stage.
func (s *Store) Begin(ctx context.Context) (dataset.Tx, error) {
	return &redisTx{store: s, staged: map[string]map[int64]ident.Value{}}, nil
}

type redisTx struct {
	store  *Store
	staged map[string]map[int64]ident.Value
	done   bool
}

func (tx *redisTx) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	if tx.done {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "edit session already closed")
	}
	domain, err := tx.store.FieldType(ctx, field)
	if err != nil {
		return err
	}
	for id, v := range values {
		if err := domain.Check(v); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeWriteConflict, err,
				"write %s=%s rejected for feature %d", field, ident.Format(v), id)
		}
		if tx.staged[field] == nil {
			tx.staged[field] = map[int64]ident.Value{}
		}
		tx.staged[field][id] = v
	}
	return nil
}

// Commit flushes every staged field in one transactional pipeline, after one
// batched existence check, so a session never lands partially.
func (tx *redisTx) Commit(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true

	batch := flattenStaged(tx.staged)
	if len(batch) == 0 {
		return nil
	}
	if err := tx.store.ensureExist(ctx, batchIDs(batch)); err != nil {
		return err
	}

	pipe := tx.store.client.TxPipeline()
	for _, w := range batch {
		if w.value == nil {
			pipe.HDel(ctx, tx.store.featureKey(w.id), "attr:"+w.field)
			continue
		}
		pipe.HSet(ctx, tx.store.featureKey(w.id), "attr:"+w.field, encode(w.value))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "commit edit session")
	}
	return nil
}

// stagedWrite is one pending hash write of an edit session.
type stagedWrite struct {
	id    int64
	field string
	value ident.Value
}

// flattenStaged merges all staged fields into a single batch ordered by
// feature ID then field name.
func flattenStaged(staged map[string]map[int64]ident.Value) []stagedWrite {
	var batch []stagedWrite
	for field, values := range staged {
		for id, v := range values {
			batch = append(batch, stagedWrite{id: id, field: field, value: v})
		}
	}
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].id != batch[j].id {
			return batch[i].id < batch[j].id
		}
		return batch[i].field < batch[j].field
	})
	return batch
}

// batchIDs lists the distinct feature IDs of a batch, preserving order.
func batchIDs(batch []stagedWrite) []int64 {
	ids := make([]int64, 0, len(batch))
	seen := make(map[int64]struct{}, len(batch))
	for _, w := range batch {
		if _, ok := seen[w.id]; ok {
			continue
		}
		seen[w.id] = struct{}{}
		ids = append(ids, w.id)
	}
	return ids
}

func (tx *redisTx) Rollback(ctx context.Context) error {
	tx.done = true
	tx.staged = nil
	return nil
}

// encode renders a canonical identifier value as a hash field string.
func encode(v ident.Value) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case uuid.UUID:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// decode parses a hash field string back into its domain's canonical form.
// A missing field (empty string with ok=false upstream) decodes to null.
func decode(domain ident.Domain, raw string, present bool) (ident.Value, error) {
	if !present {
		return nil, nil
	}
	switch domain.Kind {
	case ident.KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", raw, err)
		}
		return n, nil
	case ident.KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", raw, err)
		}
		return f, nil
	case ident.KindString:
		if err := domain.Check(raw); err != nil {
			return nil, err
		}
		return raw, nil
	case ident.KindToken:
		t, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse token %q: %w", raw, err)
		}
		return t, nil
	default:
		return nil, ident.ErrUnsupportedKind
	}
}

// hashCursor decodes pipelined HGETALL replies one feature at a time.
type hashCursor struct {
	ids       []int64
	cmds      []*redis.MapStringStringCmd
	pos       int
	fromField string
	toField   string
	domain    ident.Domain
}

func (c *hashCursor) Next() (topology.Feature, bool, error) {
	if c.pos >= len(c.ids) {
		return topology.Feature{}, false, nil
	}
	id := c.ids[c.pos]
	fields, err := c.cmds[c.pos].Result()
	c.pos++
	if err != nil {
		return topology.Feature{}, false, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "read feature %d", id)
	}
	if len(fields) == 0 {
		return topology.Feature{}, false, apperrors.New(apperrors.ErrCodeWriteConflict,
			"feature %d indexed but hash missing", id)
	}

	from, err := parseCoordinate(fields["fx"], fields["fy"])
	if err != nil {
		return topology.Feature{}, false, fmt.Errorf("feature %d from endpoint: %w", id, err)
	}
	to, err := parseCoordinate(fields["tx"], fields["ty"])
	if err != nil {
		return topology.Feature{}, false, fmt.Errorf("feature %d to endpoint: %w", id, err)
	}

	fromRaw, fromOK := fields["attr:"+c.fromField]
	fromID, err := decode(c.domain, fromRaw, fromOK)
	if err != nil {
		return topology.Feature{}, false, fmt.Errorf("feature %d field %q: %w", id, c.fromField, err)
	}
	toRaw, toOK := fields["attr:"+c.toField]
	toID, err := decode(c.domain, toRaw, toOK)
	if err != nil {
		return topology.Feature{}, false, fmt.Errorf("feature %d field %q: %w", id, c.toField, err)
	}

	return topology.Feature{ID: id, FromID: fromID, ToID: toID, From: from, To: to}, true, nil
}

func (c *hashCursor) Close() error { return nil }

func parseCoordinate(xs, ys string) (topology.Coordinate, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return topology.Coordinate{}, fmt.Errorf("parse x %q: %w", xs, err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return topology.Coordinate{}, fmt.Errorf("parse y %q: %w", ys, err)
	}
	return topology.Coordinate{X: x, Y: y}, nil
}

var (
	_ dataset.Store  = (*Store)(nil)
	_ dataset.Editor = (*Store)(nil)
)
