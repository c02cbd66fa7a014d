package dataset

import (
	"github.com/pkg/errors"

	"github.com/vogtb/go-datasheet/packages/compute"
)

// Dependencies returns every column this column's formula reads, directly
// or through the formulas of the columns it reads
func (c *Column) Dependencies() []*Column {
	visited := make(map[int]struct{})
	var result []*Column
	c.collectDependencies(visited, &result)
	return result
}

func (c *Column) collectDependencies(visited map[int]struct{}, result *[]*Column) {
	compute.Walk(c.node, func(n compute.Node) {
		ref, ok := n.(*compute.ColumnRef)
		if !ok {
			return
		}
		if _, alreadyVisited := visited[ref.ID]; alreadyVisited {
			return
		}
		visited[ref.ID] = struct{}{}

		dep, exists := c.parent.ColumnByID(ref.ID)
		if !exists {
			return
		}
		*result = append(*result, dep)
		dep.collectDependencies(visited, result)
	})
}

// directDependencies returns the columns named by this column's formula
func (c *Column) directDependencies() []*Column {
	seen := make(map[int]struct{})
	var result []*Column
	compute.Walk(c.node, func(n compute.Node) {
		ref, ok := n.(*compute.ColumnRef)
		if !ok {
			return
		}
		if _, ok := seen[ref.ID]; ok {
			return
		}
		seen[ref.ID] = struct{}{}
		if dep, exists := c.parent.ColumnByID(ref.ID); exists {
			result = append(result, dep)
		}
	})
	return result
}

func (c *Column) readsDirectly(id int) bool {
	found := false
	compute.Walk(c.node, func(n compute.Node) {
		if ref, ok := n.(*compute.ColumnRef); ok && ref.ID == id {
			found = true
		}
	})
	return found
}

// Dependents returns every column whose formula reads this column, directly
// or through other columns
func (c *Column) Dependents() []*Column {
	visited := make(map[compute.Dependent]struct{})
	var result []*Column
	collectDependents(c, visited, &result)
	return result
}

// collectDependents recursively collects all dependents. interior formula
// nodes are followed but not recorded.
func collectDependents(d compute.Dependent, visited map[compute.Dependent]struct{}, result *[]*Column) {
	for _, dep := range d.DirectDependents() {
		if _, alreadyVisited := visited[dep]; alreadyVisited {
			continue
		}
		visited[dep] = struct{}{}
		if col, ok := dep.(*Column); ok {
			*result = append(*result, col)
		}
		collectDependents(dep, visited, result)
	}
}

// HasDeps reports whether the column reads or is read by another column
func (c *Column) HasDeps() bool {
	return len(c.Dependencies()) != 0 || len(c.Dependents()) != 0
}

// CalculationOrder returns the columns ordered so that every column comes
// after the columns its formula reads
func (ds *Dataset) CalculationOrder() ([]*Column, error) {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[int]bool)
	order := make([]*Column, 0, len(ds.columns))
	var cycle *Column

	var visit func(c *Column)
	visit = func(c *Column) {
		if completed, exists := state[c.id]; exists {
			if !completed && cycle == nil {
				cycle = c
			}
			return
		}

		state[c.id] = false
		for _, dep := range c.directDependencies() {
			visit(dep)
		}
		state[c.id] = true
		order = append(order, c)
	}

	for _, c := range ds.columns {
		if _, visited := state[c.id]; !visited {
			visit(c)
		}
	}

	if cycle != nil {
		return order, errors.Wrapf(compute.ErrCircularReference, "column %q", cycle.Name())
	}
	return order, nil
}
