package topology

import (
	"errors"
	"testing"

	"github.com/nodeweld/nodeweld/pkg/ident"
)

var intDomain = ident.Domain{Kind: ident.KindInteger}

func TestBuildWeldsCoincidentEndpoints(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, From: Coordinate{0, 0}, To: Coordinate{10, 0}},
		{ID: 2, From: Coordinate{10, 0}, To: Coordinate{10, 10}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}

	shared, ok := g.Node(Coordinate{10, 0})
	if !ok {
		t.Fatal("no node at (10, 0)")
	}
	if _, in := shared.ToSet[1]; !in {
		t.Error("feature 1 missing from to-set of shared node")
	}
	if _, in := shared.FromSet[2]; !in {
		t.Error("feature 2 missing from from-set of shared node")
	}
	if shared.Degree() != 2 {
		t.Errorf("Degree() = %d, want 2", shared.Degree())
	}
}

func TestAddKeepsSmallerIdentifier(t *testing.T) {
	g := New(intDomain)
	if err := g.Add(Feature{ID: 1, FromID: int64(9), From: Coordinate{0, 0}, To: Coordinate{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Add(Feature{ID: 2, FromID: int64(4), From: Coordinate{0, 0}, To: Coordinate{2, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, _ := g.Node(Coordinate{0, 0})
	if n.ID != int64(4) {
		t.Errorf("node ID = %v, want 4", n.ID)
	}

	// A larger incoming identifier does not displace the smaller one.
	if err := g.Add(Feature{ID: 3, FromID: int64(7), From: Coordinate{0, 0}, To: Coordinate{3, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	n, _ = g.Node(Coordinate{0, 0})
	if n.ID != int64(4) {
		t.Errorf("node ID = %v, want 4", n.ID)
	}
}

func TestAddAdoptsIdentifierOverNull(t *testing.T) {
	g := New(intDomain)
	if err := g.Add(Feature{ID: 1, From: Coordinate{0, 0}, To: Coordinate{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Add(Feature{ID: 2, FromID: int64(5), From: Coordinate{0, 0}, To: Coordinate{2, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, _ := g.Node(Coordinate{0, 0})
	if n.ID != int64(5) {
		t.Errorf("node ID = %v, want 5", n.ID)
	}
}

func TestAddRejectsWrongKind(t *testing.T) {
	g := New(intDomain)
	err := g.Add(Feature{ID: 1, FromID: "abc", From: Coordinate{0, 0}, To: Coordinate{1, 0}})
	if !errors.Is(err, ident.ErrKindMismatch) {
		t.Errorf("error = %v, want ErrKindMismatch", err)
	}
}

func TestZeroLengthFeatureCountsOnce(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, From: Coordinate{0, 0}, To: Coordinate{0, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	n, ok := g.Node(Coordinate{0, 0})
	if !ok {
		t.Fatal("no node at (0, 0)")
	}
	if n.Degree() != 1 {
		t.Errorf("Degree() = %d, want 1", n.Degree())
	}
}

func TestNodesSortedByCoordinate(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, From: Coordinate{5, 5}, To: Coordinate{0, 9}},
		{ID: 2, From: Coordinate{0, 1}, To: Coordinate{5, 5}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	nodes := g.Nodes()
	want := []Coordinate{{0, 1}, {0, 9}, {5, 5}}
	if len(nodes) != len(want) {
		t.Fatalf("len(Nodes()) = %d, want %d", len(nodes), len(want))
	}
	for i, n := range nodes {
		if n.Coord != want[i] {
			t.Errorf("Nodes()[%d].Coord = %v, want %v", i, n.Coord, want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	t.Run("null identifier", func(t *testing.T) {
		g, err := Build(intDomain, []Feature{
			{ID: 1, From: Coordinate{0, 0}, To: Coordinate{1, 0}},
		})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := g.Validate(); !errors.Is(err, ErrNullNodeID) {
			t.Errorf("error = %v, want ErrNullNodeID", err)
		}
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		g, err := Build(intDomain, []Feature{
			{ID: 1, FromID: int64(3), ToID: int64(3), From: Coordinate{0, 0}, To: Coordinate{1, 0}},
		})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := g.Validate(); !errors.Is(err, ErrDuplicateNodeID) {
			t.Errorf("error = %v, want ErrDuplicateNodeID", err)
		}
	})

	t.Run("resolved graph passes", func(t *testing.T) {
		g, err := Build(intDomain, []Feature{
			{ID: 1, FromID: int64(1), ToID: int64(2), From: Coordinate{0, 0}, To: Coordinate{1, 0}},
		})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := g.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})
}

func TestUsedIDs(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, FromID: int64(3), From: Coordinate{0, 0}, To: Coordinate{1, 0}},
		{ID: 2, FromID: int64(8), From: Coordinate{2, 0}, To: Coordinate{3, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	used := g.UsedIDs()
	if len(used) != 2 {
		t.Fatalf("len(UsedIDs()) = %d, want 2", len(used))
	}
	for _, id := range []ident.Value{int64(3), int64(8)} {
		if _, ok := used[id]; !ok {
			t.Errorf("UsedIDs() missing %v", id)
		}
	}
}
