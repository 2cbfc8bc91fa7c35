// Package memory provides an in-memory feature store backing tests and the
// CLI's offline mode. Features live in a copy-on-write btree keyed by
// feature ID, so sorted ID enumeration is an ordered scan and edit sessions
// are cheap snapshots.
package memory

import (
	"context"
	"sync"

	"github.com/tidwall/btree"

	"github.com/nodeweld/nodeweld/pkg/dataset"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// Schema declares the identifier domain of each attribute field.
type Schema map[string]ident.Domain

// Record is one stored feature: its ID, endpoint coordinates, and attribute
// values keyed by field name.
type Record struct {
	ID    int64
	From  topology.Coordinate
	To    topology.Coordinate
	Attrs map[string]ident.Value
}

func (r Record) clone() Record {
	attrs := make(map[string]ident.Value, len(r.Attrs))
	for k, v := range r.Attrs {
		attrs[k] = v
	}
	r.Attrs = attrs
	return r
}

// Store is an in-memory feature store. Reads may run concurrently; at most
// one edit session may be in flight, matching the single-writer model of the
// dataset workspaces nodeweld targets.
type Store struct {
	mu       sync.Mutex
	schema   Schema
	features *btree.Map[int64, Record]
	editing  bool
}

// New creates an empty store with the given field schema.
func New(schema Schema) *Store {
	return &Store{
		schema:   schema,
		features: btree.NewMap[int64, Record](32),
	}
}

// Insert adds or replaces a feature record. Attribute values must already be
// canonical for their field's domain (use ident.Domain.FromWire at decode
// boundaries).
func (s *Store) Insert(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, v := range r.Attrs {
		domain, ok := s.schema[field]
		if !ok {
			return apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not declared in schema", field)
		}
		if err := domain.Check(v); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "feature %d field %q", r.ID, field)
		}
	}
	if r.Attrs == nil {
		r.Attrs = map[string]ident.Value{}
	}
	s.features.Set(r.ID, r)
	return nil
}

// Name identifies the backend in logs and metric labels.
func (s *Store) Name() string { return "memory" }

// Len returns the number of stored features.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.features.Len()
}

// FieldType reports the declared domain of a field.
func (s *Store) FieldType(ctx context.Context, field string) (ident.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	domain, ok := s.schema[field]
	if !ok {
		return ident.Domain{}, apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not in dataset", field)
	}
	return domain, nil
}

// ReadFeatures streams features in a single forward pass. The memory store
// interprets no filter expressions; a non-empty Expr is rejected rather
// than silently ignored.
func (s *Store) ReadFeatures(ctx context.Context, q dataset.Query) (dataset.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.Filter.Expr != "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidFilter, "memory store does not interpret filter expressions: %q", q.Filter.Expr)
	}
	fromDomain, ok := s.schema[q.FromIDField]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not in dataset", q.FromIDField)
	}
	toDomain, ok := s.schema[q.ToIDField]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not in dataset", q.ToIDField)
	}
	if fromDomain != toDomain {
		return nil, apperrors.New(apperrors.ErrCodeMixedIDKinds,
			"fields %q (%s) and %q (%s) have different identifier domains",
			q.FromIDField, fromDomain, q.ToIDField, toDomain)
	}

	features := make([]topology.Feature, 0, s.features.Len())
	s.scan(q.Filter, func(r Record) bool {
		features = append(features, topology.Feature{
			ID:     r.ID,
			FromID: r.Attrs[q.FromIDField],
			ToID:   r.Attrs[q.ToIDField],
			From:   r.From,
			To:     r.To,
		})
		return true
	})
	return &sliceCursor{features: features}, nil
}

// ReadSortedIDs enumerates feature IDs in ascending order, straight off the
// btree.
func (s *Store) ReadSortedIDs(ctx context.Context, f dataset.Filter) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Expr != "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidFilter, "memory store does not interpret filter expressions: %q", f.Expr)
	}
	var ids []int64
	s.scan(f, func(r Record) bool {
		ids = append(ids, r.ID)
		return true
	})
	return ids, nil
}

// WriteAttribute applies a value mapping directly, outside any edit session.
func (s *Store) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAttribute(s.features, s.schema, field, values)
}

// scan walks features in ID order within the filter's range.
// Caller holds the lock.
func (s *Store) scan(f dataset.Filter, visit func(Record) bool) {
	if f.IDRange == nil {
		s.features.Scan(func(id int64, r Record) bool { return visit(r) })
		return
	}
	s.features.Ascend(f.IDRange.Min, func(id int64, r Record) bool {
		if id > f.IDRange.Max {
			return false
		}
		return visit(r)
	})
}

func writeAttribute(features *btree.Map[int64, Record], schema Schema, field string, values map[int64]ident.Value) error {
	domain, ok := schema[field]
	if !ok {
		return apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not in dataset", field)
	}
	for id, v := range values {
		r, ok := features.Get(id)
		if !ok {
			return apperrors.New(apperrors.ErrCodeWriteConflict,
				"write %s=%s rejected: feature %d does not exist", field, ident.Format(v), id)
		}
		if err := domain.Check(v); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeWriteConflict, err,
				"write %s=%s rejected for feature %d", field, ident.Format(v), id)
		}
		r = r.clone()
		r.Attrs[field] = v
		features.Set(id, r)
	}
	return nil
}

// Begin opens an edit session over a snapshot of the store. Only one session
// may be in flight at a time.
func (s *Store) Begin(ctx context.Context) (dataset.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "an edit session is already in flight")
	}
	s.editing = true
	return &memTx{store: s, working: s.features.Copy()}, nil
}

type memTx struct {
	store   *Store
	working *btree.Map[int64, Record]
	done    bool
}

func (tx *memTx) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	if tx.done {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "edit session already closed")
	}
	return writeAttribute(tx.working, tx.store.schema, field, values)
}

func (tx *memTx) Commit(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.done {
		return nil
	}
	tx.store.features = tx.working
	tx.store.editing = false
	tx.done = true
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.done {
		return nil
	}
	tx.store.editing = false
	tx.done = true
	return nil
}

// sliceCursor is a Cursor over a materialized snapshot.
type sliceCursor struct {
	features []topology.Feature
	pos      int
}

func (c *sliceCursor) Next() (topology.Feature, bool, error) {
	if c.pos >= len(c.features) {
		return topology.Feature{}, false, nil
	}
	f := c.features[c.pos]
	c.pos++
	return f, true, nil
}

func (c *sliceCursor) Close() error { return nil }

var (
	_ dataset.Store  = (*Store)(nil)
	_ dataset.Editor = (*Store)(nil)
)
