package dataset

import (
	"fmt"

	"github.com/emicklei/dot"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// DotGraph renders the column dependency graph. edges point from the
// column read to the column reading it; edges between filters are the
// guards of the filter chain.
func (ds *Dataset) DotGraph() *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR")
	graph.Attr("fontname", "helvetica")

	nodes := make(map[int]dot.Node)
	for _, c := range ds.columns {
		if c.IsVirtual() {
			continue
		}
		label := c.Name()
		if f := c.Formula(); f != "" {
			label = fmt.Sprintf("%s = %s", label, f)
		}

		node := graph.Node(fmt.Sprintf("c%d", c.id)).
			Attr("label", label).
			Attr("fontname", "helvetica")
		switch c.ColumnType() {
		case storage.ColumnTypeComputed:
			node.Attr("shape", "box").Attr("style", "rounded")
		case storage.ColumnTypeFilter:
			node.Attr("shape", "hexagon")
			if !c.Active() {
				node.Attr("style", "dashed")
			}
		default:
			node.Attr("shape", "ellipse")
		}
		if c.status == FormulaError {
			node.Attr("color", "red").Attr("tooltip", c.FormulaMessage())
		}
		nodes[c.id] = node
	}

	for _, c := range ds.columns {
		to, ok := nodes[c.id]
		if !ok {
			continue
		}
		for _, dep := range c.directDependencies() {
			from, ok := nodes[dep.id]
			if !ok {
				continue
			}
			edge := graph.Edge(from, to)
			if c.IsFilter() && dep.IsFilter() {
				edge.Attr("style", "dashed").Attr("label", "guard")
			}
		}
	}
	return graph
}
