// Package dataset defines the narrow capability interfaces the topology core
// consumes from a feature store, plus the supporting utilities layered on
// them: sorted ID-range chunking, sub-selection views, and scoped edit
// sessions.
//
// The core never opens or closes store resources itself. It reads features
// through a single forward cursor pass, asks for field types to select an
// identifier domain, and hands a finished feature→identifier mapping to an
// attribute writer. Everything transactional — locking, edit bracketing,
// durable commit — belongs to the store implementations in the subpackages
// (memory, mongostore, redistore).
package dataset

import (
	"context"

	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// Filter is a dataset sub-selection. The zero value selects everything.
type Filter struct {
	// IDRange restricts the selection to feature IDs within a closed range.
	// This is the only filter form the core itself produces (for chunked
	// writes); stores translate it to their native range predicate.
	IDRange *Range

	// Expr is an opaque, backend-interpreted filter expression. The core
	// passes it through untouched; stores that cannot interpret it reject
	// the query with INVALID_FILTER rather than silently ignoring it.
	Expr string
}

// Query names the endpoint identifier fields to read alongside each
// feature's ID and endpoint coordinates.
type Query struct {
	FromIDField string
	ToIDField   string
	Filter      Filter
}

// Cursor is a single forward pass over features. No ordering is guaranteed.
// Close must be called on every exit path; closing a drained cursor is a
// no-op.
type Cursor interface {
	// Next returns the next feature, or ok=false when the pass is complete.
	Next() (f topology.Feature, ok bool, err error)
	Close() error
}

// FeatureReader streams features out of a store.
type FeatureReader interface {
	ReadFeatures(ctx context.Context, q Query) (Cursor, error)
}

// SortedIDReader enumerates feature IDs in ascending order. Sorting is what
// lets range bounds stand in for set membership in chunked selections.
type SortedIDReader interface {
	ReadSortedIDs(ctx context.Context, f Filter) ([]int64, error)
}

// AttributeWriter applies a single-field value mapping back to storage.
// Each call is atomic from the core's perspective. A rejected value is
// surfaced as a WRITE_CONFLICT naming the offending feature and value; the
// core neither retries nor rolls back partial progress itself.
type AttributeWriter interface {
	WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error
}

// FieldTyper reports the identifier domain of a field, used to select the
// pool type for resolution. Unknown fields fail with FIELD_NOT_FOUND.
type FieldTyper interface {
	FieldType(ctx context.Context, field string) (ident.Domain, error)
}

// Store is the full capability set nodeweld needs from a feature store.
type Store interface {
	FeatureReader
	SortedIDReader
	AttributeWriter
	FieldTyper
}

// Tx is an in-flight edit session. Writes go through the transaction and
// become durable on Commit; Rollback discards them. At most one edit session
// is in flight per store workspace.
type Tx interface {
	AttributeWriter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Editor is implemented by stores that support edit-session bracketing.
type Editor interface {
	Begin(ctx context.Context) (Tx, error)
}

// ReadAll drains a feature cursor into a slice, closing it on every path.
// Resolution needs the full node set materialized anyway, so most callers
// go through this.
func ReadAll(ctx context.Context, r FeatureReader, q Query) ([]topology.Feature, error) {
	cur, err := r.ReadFeatures(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var features []topology.Feature
	for {
		f, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return features, nil
		}
		features = append(features, f)
	}
}
