// Package render draws resolved topologies as Graphviz diagrams. Nodes are
// the deduplicated junction points, edges are the directed line features
// between them.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes coordinates and degree in node labels.
	// When false, only the node identifier is shown.
	Detailed bool
}

// ToDOT converts a resolved topology to Graphviz DOT format. Features give
// the directed edges; each edge is labeled with its feature ID. The
// resulting DOT string can be rendered using [RenderSVG] or [RenderPNG].
func ToDOT(g *topology.Graph, features []topology.Feature, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph topology {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", nodeKey(n.Coord), nodeLabel(n, opts.Detailed))
	}

	buf.WriteString("\n")
	for _, f := range features {
		fmt.Fprintf(&buf, "  %q -> %q [label=\"%d\"];\n", nodeKey(f.From), nodeKey(f.To), f.ID)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// nodeKey names a DOT node by its coordinate, which is unique by
// construction.
func nodeKey(c topology.Coordinate) string {
	return fmt.Sprintf("%g,%g", c.X, c.Y)
}

func nodeLabel(n *topology.Node, detailed bool) string {
	label := ident.Format(n.ID)
	if detailed {
		label += fmt.Sprintf("\n(%g, %g)\ndeg %d", n.Coord.X, n.Coord.Y, n.Degree())
	}
	return label
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.SVG, normalizeViewBox)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.PNG, nil)
}

func renderFormat(dot string, format graphviz.Format, post func([]byte) []byte) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out := buf.Bytes()
	if post != nil {
		out = post(out)
	}
	return out, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the SVG root element so the diagram scales from
// origin, which keeps embedding in web views predictable.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
