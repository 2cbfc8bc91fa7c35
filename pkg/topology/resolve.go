package topology

import (
	"fmt"

	"github.com/nodeweld/nodeweld/pkg/ident"
)

// Resolve returns a copy of g in which every node carries a non-null
// identifier unique across the graph. The input graph is not mutated.
//
// Nodes are visited once, in coordinate order. A node with a null identifier
// receives the next pool value. A node whose identifier is unclaimed claims
// it. When an identifier is contested — already claimed by a node at a
// different coordinate — the node with the smaller degree surrenders it and
// receives a freshly drawn identifier; on equal degree the earlier claimant
// keeps it. This holds for user-supplied identifiers too: nodes touched by
// more features are more likely referenced from dependent tables, so keeping
// their identifier minimizes downstream churn.
//
// The pool is filtered against every identifier already present in g, so
// fresh draws can never collide with a declared identifier. Pool exhaustion
// (ident.ErrPoolExhausted) is fatal and surfaced to the caller; no retry
// with a different domain is attempted.
func Resolve(g *Graph, pool ident.Pool) (*Graph, error) {
	used := g.UsedIDs()
	pool = ident.Excluding(pool, used)

	out := New(g.domain)
	claims := make(map[ident.Value]*Node, g.Len())

	draw := func(n *Node) error {
		id, err := pool.TryNext()
		if err != nil {
			return fmt.Errorf("node (%v, %v): %w", n.Coord.X, n.Coord.Y, err)
		}
		n.ID = id
		used[id] = struct{}{}
		claims[id] = n
		return nil
	}

	for _, orig := range g.Nodes() {
		n := orig.clone()
		out.nodes[n.Coord] = n

		switch holder, contested := claims[n.ID]; {
		case n.ID == nil:
			if err := draw(n); err != nil {
				return nil, err
			}
		case !contested:
			claims[n.ID] = n
		case n.Degree() > holder.Degree():
			// The holder loses the contested identifier.
			claims[n.ID] = n
			if err := draw(holder); err != nil {
				return nil, err
			}
		default:
			if err := draw(n); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}
