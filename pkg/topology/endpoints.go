package topology

import "github.com/nodeweld/nodeweld/pkg/ident"

// Endpoints is the per-feature from/to node identifier pair, the form
// consumed by attribute writers.
type Endpoints struct {
	From ident.Value
	To   ident.Value
}

// Project flattens the graph into a feature → endpoint identifier mapping:
// every feature in a node's from-set gets that node's identifier as its
// "from" value, and symmetrically for to-sets. For a meaningful result the
// graph should be resolved first; Project itself does not care.
func Project(g *Graph) map[int64]Endpoints {
	out := make(map[int64]Endpoints)
	for _, n := range g.nodes {
		for id := range n.FromSet {
			e := out[id]
			e.From = n.ID
			out[id] = e
		}
		for id := range n.ToSet {
			e := out[id]
			e.To = n.ID
			out[id] = e
		}
	}
	return out
}

// Passthrough maps each feature to its declared endpoint identifiers
// verbatim, with no graph construction or deduplication. This is the cheap
// path for callers that only want a feature → endpoint-id view.
func Passthrough(features []Feature) map[int64]Endpoints {
	out := make(map[int64]Endpoints, len(features))
	for _, f := range features {
		out[f.ID] = Endpoints{From: f.FromID, To: f.ToID}
	}
	return out
}
