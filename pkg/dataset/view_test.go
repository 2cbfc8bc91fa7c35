package dataset

import (
	"context"
	"testing"

	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// fakeStore records the filters it is queried with and serves a fixed ID set.
type fakeStore struct {
	ids         []int64
	readFilters []Filter
	idFilters   []Filter
}

type emptyCursor struct{}

func (emptyCursor) Next() (topology.Feature, bool, error) { return topology.Feature{}, false, nil }
func (emptyCursor) Close() error                          { return nil }

func (s *fakeStore) ReadFeatures(ctx context.Context, q Query) (Cursor, error) {
	s.readFilters = append(s.readFilters, q.Filter)
	return emptyCursor{}, nil
}

func (s *fakeStore) ReadSortedIDs(ctx context.Context, f Filter) ([]int64, error) {
	s.idFilters = append(s.idFilters, f)
	if f.IDRange == nil {
		return s.ids, nil
	}
	var out []int64
	for _, id := range s.ids {
		if f.IDRange.Contains(id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeStore) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	return nil
}

func (s *fakeStore) FieldType(ctx context.Context, field string) (ident.Domain, error) {
	return ident.Domain{Kind: ident.KindInteger}, nil
}

var _ Store = (*fakeStore)(nil)

func TestViewMergesFilters(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2, 3}}
	v := NewView(store, Filter{Expr: "status = 'active'"})

	// Query-level ID range narrows the view, view expression survives.
	_, err := v.ReadFeatures(context.Background(), Query{
		FromIDField: "from_node_id",
		ToIDField:   "to_node_id",
		Filter:      Filter{IDRange: &Range{Min: 1, Max: 2}},
	})
	if err != nil {
		t.Fatalf("ReadFeatures: %v", err)
	}

	got := store.readFilters[0]
	if got.Expr != "status = 'active'" {
		t.Errorf("Expr = %q, want view expression", got.Expr)
	}
	if got.IDRange == nil || *got.IDRange != (Range{Min: 1, Max: 2}) {
		t.Errorf("IDRange = %v, want [1, 2]", got.IDRange)
	}

	// A query expression overrides the view's.
	_, err = v.ReadFeatures(context.Background(), Query{Filter: Filter{Expr: "status = 'retired'"}})
	if err != nil {
		t.Fatalf("ReadFeatures: %v", err)
	}
	if got := store.readFilters[1].Expr; got != "status = 'retired'" {
		t.Errorf("Expr = %q, want query expression", got)
	}
}

func TestViewCount(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2, 3, 4, 5}}
	v := NewView(store, Filter{IDRange: &Range{Min: 2, Max: 4}})

	n, err := v.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestViewChunks(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2, 3, 4, 5, 7, 9}}
	v := NewView(store, Filter{})

	var ranges []Range
	for chunk, err := range v.Chunks(context.Background(), 3) {
		if err != nil {
			t.Fatalf("Chunks: %v", err)
		}
		ranges = append(ranges, *chunk.Filter().IDRange)
	}

	want := []Range{{1, 3}, {4, 7}, {9, 9}}
	if len(ranges) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(ranges), len(want))
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("chunk %d = %v, want %v", i, ranges[i], want[i])
		}
	}
}

func TestViewReleaseRunsOnce(t *testing.T) {
	released := 0
	v := NewManagedView(&fakeStore{}, Filter{}, func(context.Context) error {
		released++
		return nil
	})

	if err := v.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := v.Release(context.Background()); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if released != 1 {
		t.Errorf("release hook ran %d times, want 1", released)
	}

	// Views without a hook tolerate Release too.
	if err := NewView(&fakeStore{}, Filter{}).Release(context.Background()); err != nil {
		t.Errorf("Release on plain view: %v", err)
	}
}
