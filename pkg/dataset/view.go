package dataset

import (
	"context"
	"iter"
)

// View is a scoped sub-selection of a store: the store plus a filter, with a
// release hook for backends that materialize the selection server-side.
// Views created by NewView hold no backend resource; stores may hand out
// views with a real release function.
type View struct {
	store   Store
	filter  Filter
	release func(context.Context) error
}

// NewView wraps a store with a sub-selection filter. The returned view holds
// no backend resource; Release is still safe to call.
func NewView(store Store, f Filter) *View {
	return &View{store: store, filter: f}
}

// NewManagedView wraps a store with a filter and a release hook invoked by
// Release. Used by backends that create server-side selections.
func NewManagedView(store Store, f Filter, release func(context.Context) error) *View {
	return &View{store: store, filter: f, release: release}
}

// Filter returns the view's sub-selection filter.
func (v *View) Filter() Filter { return v.filter }

// ReadFeatures streams the view's features, merging the view filter into
// the query. A query-level filter narrows the view further: its ID range
// replaces the view's and its expression must not conflict (the view's
// expression wins when the query has none).
func (v *View) ReadFeatures(ctx context.Context, q Query) (Cursor, error) {
	q.Filter = v.merge(q.Filter)
	return v.store.ReadFeatures(ctx, q)
}

// ReadSortedIDs enumerates the view's feature IDs in ascending order.
func (v *View) ReadSortedIDs(ctx context.Context, f Filter) ([]int64, error) {
	return v.store.ReadSortedIDs(ctx, v.merge(f))
}

// Count returns the number of features in the view.
func (v *View) Count(ctx context.Context) (int, error) {
	ids, err := v.ReadSortedIDs(ctx, Filter{})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Release frees any backend resource backing the view. Safe to call on
// views without one, and safe to call more than once.
func (v *View) Release(ctx context.Context) error {
	if v.release == nil {
		return nil
	}
	release := v.release
	v.release = nil
	return release(ctx)
}

// Chunks yields child views covering the view's features in sorted ID-range
// chunks of chunkSize. Each child view is released before the next one is
// yielded, so per-chunk resources never accumulate. The sequence is lazy and
// non-restartable.
func (v *View) Chunks(ctx context.Context, chunkSize int) iter.Seq2[*View, error] {
	return func(yield func(*View, error) bool) {
		ids, err := v.ReadSortedIDs(ctx, Filter{})
		if err != nil {
			yield(nil, err)
			return
		}
		for r := range Ranges(ids, chunkSize) {
			chunk := NewView(v.store, v.merge(Filter{IDRange: &r}))
			ok := yield(chunk, nil)
			_ = chunk.Release(ctx)
			if !ok {
				return
			}
		}
	}
}

// merge combines the view filter with a narrower one.
func (v *View) merge(f Filter) Filter {
	out := v.filter
	if f.IDRange != nil {
		out.IDRange = f.IDRange
	}
	if f.Expr != "" {
		out.Expr = f.Expr
	}
	return out
}
