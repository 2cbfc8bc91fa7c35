package topology

import (
	"testing"

	"github.com/nodeweld/nodeweld/pkg/ident"
)

func newIntPool(t *testing.T) ident.Pool {
	t.Helper()
	pool, err := intDomain.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return pool
}

func TestResolveFillsNulls(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, From: Coordinate{0, 0}, To: Coordinate{10, 0}},
		{ID: 2, From: Coordinate{10, 0}, To: Coordinate{20, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := Resolve(g, newIntPool(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("resolved graph invalid: %v", err)
	}
	if out.Len() != 3 {
		t.Errorf("Len() = %d, want 3", out.Len())
	}
}

func TestResolvePreservesUniqueIdentifiers(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, FromID: int64(100), ToID: int64(200), From: Coordinate{0, 0}, To: Coordinate{10, 0}},
		{ID: 2, From: Coordinate{10, 0}, To: Coordinate{20, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := Resolve(g, newIntPool(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if n, _ := out.Node(Coordinate{0, 0}); n.ID != int64(100) {
		t.Errorf("node (0,0) ID = %v, want 100", n.ID)
	}
	if n, _ := out.Node(Coordinate{10, 0}); n.ID != int64(200) {
		t.Errorf("node (10,0) ID = %v, want 200", n.ID)
	}
	// The fresh draw cannot collide with declared identifiers.
	if n, _ := out.Node(Coordinate{20, 0}); n.ID == int64(100) || n.ID == int64(200) {
		t.Errorf("node (20,0) drew a declared identifier: %v", n.ID)
	}
}

func TestResolveHigherDegreeKeepsContestedIdentifier(t *testing.T) {
	// (0,0) has degree 1, (10,0) degree 3. Both declare identifier 7, and
	// (0,0) claims it first by coordinate order.
	g, err := Build(intDomain, []Feature{
		{ID: 1, FromID: int64(7), From: Coordinate{0, 0}, To: Coordinate{0, 5}},
		{ID: 2, FromID: int64(7), From: Coordinate{10, 0}, To: Coordinate{10, 5}},
		{ID: 3, From: Coordinate{10, 0}, To: Coordinate{10, 6}},
		{ID: 4, From: Coordinate{10, 0}, To: Coordinate{10, 7}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := Resolve(g, newIntPool(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("resolved graph invalid: %v", err)
	}

	if n, _ := out.Node(Coordinate{10, 0}); n.ID != int64(7) {
		t.Errorf("high-degree node ID = %v, want 7", n.ID)
	}
	if n, _ := out.Node(Coordinate{0, 0}); n.ID == int64(7) {
		t.Error("low-degree node kept the contested identifier")
	}
}

func TestResolveEqualDegreeEarlierClaimantKeeps(t *testing.T) {
	// Both contenders have degree 1. (0,0) precedes (10,0) in coordinate
	// order, so it keeps the identifier.
	g, err := Build(intDomain, []Feature{
		{ID: 1, FromID: int64(7), From: Coordinate{0, 0}, To: Coordinate{0, 5}},
		{ID: 2, FromID: int64(7), From: Coordinate{10, 0}, To: Coordinate{10, 5}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := Resolve(g, newIntPool(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("resolved graph invalid: %v", err)
	}

	if n, _ := out.Node(Coordinate{0, 0}); n.ID != int64(7) {
		t.Errorf("earlier claimant ID = %v, want 7", n.ID)
	}
	if n, _ := out.Node(Coordinate{10, 0}); n.ID == int64(7) {
		t.Error("later claimant kept the contested identifier")
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, From: Coordinate{0, 0}, To: Coordinate{10, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := Resolve(g, newIntPool(t)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for _, n := range g.Nodes() {
		if n.ID != nil {
			t.Errorf("input node %v gained identifier %v", n.Coord, n.ID)
		}
	}
}

func TestResolveSharedEndpointAdoptsDeclaredIdentifier(t *testing.T) {
	// Feature 1 ends at (0,0) declaring node 10, feature 2 starts there with
	// no declaration. Both features must come out referencing the same node.
	g, err := Build(intDomain, []Feature{
		{ID: 1, ToID: int64(10), From: Coordinate{-5, 0}, To: Coordinate{0, 0}},
		{ID: 2, From: Coordinate{0, 0}, To: Coordinate{5, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := Resolve(g, newIntPool(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	n, ok := out.Node(Coordinate{0, 0})
	if !ok {
		t.Fatal("no node at (0, 0)")
	}
	if n.ID != int64(10) {
		t.Errorf("shared node ID = %v, want 10", n.ID)
	}

	eps := Project(out)
	if eps[1].To != int64(10) {
		t.Errorf("feature 1 to = %v, want 10", eps[1].To)
	}
	if eps[2].From != int64(10) {
		t.Errorf("feature 2 from = %v, want 10", eps[2].From)
	}
}

func TestProject(t *testing.T) {
	g, err := Build(intDomain, []Feature{
		{ID: 1, FromID: int64(1), ToID: int64(2), From: Coordinate{0, 0}, To: Coordinate{10, 0}},
		{ID: 2, FromID: int64(2), ToID: int64(3), From: Coordinate{10, 0}, To: Coordinate{20, 0}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	eps := Project(g)
	if len(eps) != 2 {
		t.Fatalf("len = %d, want 2", len(eps))
	}
	if eps[1] != (Endpoints{From: int64(1), To: int64(2)}) {
		t.Errorf("feature 1 = %+v", eps[1])
	}
	if eps[2] != (Endpoints{From: int64(2), To: int64(3)}) {
		t.Errorf("feature 2 = %+v", eps[2])
	}
}

func TestPassthrough(t *testing.T) {
	eps := Passthrough([]Feature{
		{ID: 1, FromID: int64(1), From: Coordinate{0, 0}, To: Coordinate{1, 0}},
		{ID: 2, From: Coordinate{1, 0}, To: Coordinate{2, 0}},
	})
	if len(eps) != 2 {
		t.Fatalf("len = %d, want 2", len(eps))
	}
	if eps[1] != (Endpoints{From: int64(1)}) {
		t.Errorf("feature 1 = %+v", eps[1])
	}
	if eps[2] != (Endpoints{}) {
		t.Errorf("feature 2 = %+v", eps[2])
	}
}
