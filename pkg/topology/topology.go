// Package topology infers a node graph from directed line features keyed by
// their endpoint coordinates, and re-derives stable node identifiers when
// identifiers are missing or collide.
//
// A coordinate is an exact-match key: two endpoints share a node only when
// their coordinates are equal. No snapping tolerance is applied; callers are
// expected to hand in pre-computed comparable keys.
//
// The graph is rebuilt from a snapshot read of the feature source on every
// invocation. Nothing here persists between calls, and nothing here is safe
// for concurrent use — resolution passes against the same identifier space
// must be serialized by the caller.
package topology

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nodeweld/nodeweld/pkg/ident"
)

var (
	// ErrDuplicateNodeID is returned by [Graph.Validate] when two distinct
	// coordinates share an identifier. A resolved graph never has this.
	ErrDuplicateNodeID = errors.New("duplicate node identifier")

	// ErrNullNodeID is returned by [Graph.Validate] when a node has no
	// identifier. A resolved graph never has this.
	ErrNullNodeID = errors.New("null node identifier")
)

// Coordinate is the exact-match key identifying a node location.
type Coordinate struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Compare orders coordinates by X, then Y. Used for the stable node
// iteration order of resolution passes.
func (c Coordinate) Compare(o Coordinate) int {
	switch {
	case c.X < o.X:
		return -1
	case c.X > o.X:
		return 1
	case c.Y < o.Y:
		return -1
	case c.Y > o.Y:
		return 1
	default:
		return 0
	}
}

// Feature is a directed line feature reduced to the parts topology cares
// about: its identifier, its two endpoint coordinates, and the endpoint node
// identifiers declared on it (either of which may be null).
type Feature struct {
	ID     int64
	FromID ident.Value
	ToID   ident.Value
	From   Coordinate
	To     Coordinate
}

// Node is a resolved topological endpoint: one coordinate, one identifier
// (null until resolution when no feature declared one), and the sets of
// feature IDs that touch it as their "from" or "to" endpoint.
type Node struct {
	Coord   Coordinate
	ID      ident.Value
	FromSet map[int64]struct{}
	ToSet   map[int64]struct{}
}

func newNode(c Coordinate) *Node {
	return &Node{
		Coord:   c,
		FromSet: make(map[int64]struct{}),
		ToSet:   make(map[int64]struct{}),
	}
}

// Degree is the number of distinct features touching the node: the size of
// the union of the from- and to-sets. A zero-length feature touching the
// node at both ends counts once.
func (n *Node) Degree() int {
	deg := len(n.FromSet)
	for id := range n.ToSet {
		if _, both := n.FromSet[id]; !both {
			deg++
		}
	}
	return deg
}

func (n *Node) clone() *Node {
	return &Node{
		Coord:   n.Coord,
		ID:      n.ID,
		FromSet: maps.Clone(n.FromSet),
		ToSet:   maps.Clone(n.ToSet),
	}
}

// Graph maps each observed coordinate to exactly one node. The zero value is
// not usable - use New. Graph is not safe for concurrent use.
type Graph struct {
	domain ident.Domain
	nodes  map[Coordinate]*Node
}

// New creates an empty graph whose node identifiers belong to domain.
func New(domain ident.Domain) *Graph {
	return &Graph{domain: domain, nodes: make(map[Coordinate]*Node)}
}

// Build streams features into a fresh graph. Equivalent to New followed by
// Add for each feature.
func Build(domain ident.Domain, features []Feature) (*Graph, error) {
	g := New(domain)
	for _, f := range features {
		if err := g.Add(f); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Domain returns the identifier domain of the graph's nodes.
func (g *Graph) Domain() ident.Domain { return g.domain }

// Add folds one feature into the graph. For each of its two endpoints: a new
// coordinate creates a node carrying the declared endpoint identifier; an
// existing coordinate keeps the smaller of the existing and incoming
// identifiers (adopting the incoming one if the existing is null); and the
// feature ID joins the node's from- or to-set.
//
// Add never rejects duplicate identifiers — deduplication is deferred to
// [Resolve]. It does reject identifiers whose type does not match the graph
// domain, which surfaces mixed from/to field types immediately.
func (g *Graph) Add(f Feature) error {
	if err := g.fold(f.ID, f.From, f.FromID, true); err != nil {
		return err
	}
	return g.fold(f.ID, f.To, f.ToID, false)
}

func (g *Graph) fold(featureID int64, c Coordinate, id ident.Value, from bool) error {
	if err := g.domain.Check(id); err != nil {
		return fmt.Errorf("feature %d: %w", featureID, err)
	}
	n, ok := g.nodes[c]
	if !ok {
		n = newNode(c)
		g.nodes[c] = n
	}
	switch {
	case n.ID == nil:
		n.ID = id
	case id != nil && g.domain.Less(id, n.ID):
		n.ID = id
	}
	if from {
		n.FromSet[featureID] = struct{}{}
	} else {
		n.ToSet[featureID] = struct{}{}
	}
	return nil
}

// Node returns the node at the coordinate, if any.
func (g *Graph) Node(c Coordinate) (*Node, bool) {
	n, ok := g.nodes[c]
	return n, ok
}

// Len returns the number of distinct coordinates observed.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all nodes sorted by coordinate. The order is stable across
// runs, which makes resolution reruns reproducible. The returned slice
// contains pointers to the actual nodes.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return a.Coord.Compare(b.Coord) })
	return nodes
}

// UsedIDs collects the set of non-null node identifiers currently assigned.
func (g *Graph) UsedIDs() map[ident.Value]struct{} {
	used := make(map[ident.Value]struct{}, len(g.nodes))
	for _, n := range g.nodes {
		if n.ID != nil {
			used[n.ID] = struct{}{}
		}
	}
	return used
}

// Validate checks the invariants of a resolved graph: every node has a
// non-null identifier and no two nodes share one. Returns ErrNullNodeID or
// ErrDuplicateNodeID naming the offending coordinate.
func (g *Graph) Validate() error {
	seen := make(map[ident.Value]Coordinate, len(g.nodes))
	for _, n := range g.nodes {
		if n.ID == nil {
			return fmt.Errorf("%w at (%v, %v)", ErrNullNodeID, n.Coord.X, n.Coord.Y)
		}
		if prev, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: %s at (%v, %v) and (%v, %v)",
				ErrDuplicateNodeID, ident.Format(n.ID), prev.X, prev.Y, n.Coord.X, n.Coord.Y)
		}
		seen[n.ID] = n.Coord
	}
	return nil
}
