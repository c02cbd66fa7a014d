package dataset

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/storage"
)

// SetFormula replaces the column's formula and recompiles it. the outcome
// is reported through FormulaStatus and FormulaMessage.
func (c *Column) SetFormula(formula string) {
	c.realise()
	formula = strings.Join(strings.Fields(formula), " ")
	if formula == c.child.Formula() {
		return
	}
	c.child.SetFormula(formula)
	c.parseFormula()
}

// Recompile compiles the current formula text again, e.g. after a column
// it names has been added
func (c *Column) Recompile() {
	c.realise()
	c.parseFormula()
}

// parseFormula compiles the stored formula text. a failed compile leaves
// the stored values and the dirty flag as they were.
func (c *Column) parseFormula() {
	log := c.parent.log.WithValues("column", c.Name())

	if err := c.compile(); err != nil {
		c.status = FormulaError
		c.formulaErr = err
		c.child.SetFormulaMessage(err.Message)
		log.V(2).Info("formula rejected", "formula", c.child.Formula(), "kind", err.Kind.String(), "error", err.Cause())
		return
	}

	c.formulaErr = nil
	c.child.SetFormulaMessage("")
	log.V(4).Info("formula compiled", "formula", c.child.Formula(), "status", c.status.String())
	c.SetNeedsRecalc(true)
}

func (c *Column) compile() (cerr *CompileError) {
	defer func() {
		if r := recover(); r != nil {
			cerr = newCompileError(CompileInternal, &panicError{value: r})
		}
	}()

	c.detach()
	c.status = FormulaEmpty

	tree, err := compute.Parse(c.child.Formula())
	if err != nil {
		return classify(err)
	}
	if tree != nil {
		tree = compute.Normalize(tree)
	}

	if c.IsFilter() {
		c.child.SetDataType(storage.DataTypeInteger)
		c.child.SetMeasureType(storage.MeasureTypeNominal)

		guards := c.parent.filterGuards(c)
		switch {
		case tree != nil:
			tree = compute.WrapFilter(tree)
		case len(guards) > 0:
			// an empty filter still passes on what earlier filters excluded
			tree = &compute.NumberNode{Value: 1, IsInteger: true}
		}
		if tree != nil {
			compute.Filterify(tree, guards)
			tree = compute.GuardFilter(tree, guards)
		}
	}

	if tree == nil {
		return nil
	}

	resolver := c.parent.source()
	if err := compute.Check(c.Name(), tree, resolver); err != nil {
		return classify(err)
	}
	node, err := compute.Bind(tree, resolver)
	if err != nil {
		return classify(err)
	}
	if c.reaches(node) {
		return newCompileError(CompileCircular, errors.Wrapf(compute.ErrCircularReference, "column %q", c.Name()))
	}

	c.attach(node)
	if c.child.Formula() != "" {
		c.status = FormulaOK
	}

	if !c.IsFilter() {
		c.child.SetDataType(node.DataType())
		c.child.SetMeasureType(node.MeasureType())
	}
	return nil
}

// classify maps an error raised by the formula frontend to the message
// class shown to the user
func classify(err error) *CompileError {
	cause := errors.Cause(err)
	switch cause.(type) {
	case *compute.SyntaxError:
		return newCompileError(CompileSyntax, err)
	case *compute.NameError, *compute.TypeError, *compute.ValueError:
		return newCompileError(CompileSemantic, cause)
	}
	if cause == compute.ErrCircularReference {
		return newCompileError(CompileCircular, err)
	}
	return newCompileError(CompileInternal, err)
}

// reaches reports whether node reads this column, directly or through the
// formulas of the columns it reads
func (c *Column) reaches(node compute.Node) bool {
	visited := make(map[int]struct{})
	var visit func(n compute.Node) bool
	visit = func(n compute.Node) bool {
		found := false
		compute.Walk(n, func(n compute.Node) {
			ref, ok := n.(*compute.ColumnRef)
			if !ok || found {
				return
			}
			if ref.ID == c.id {
				found = true
				return
			}
			if _, seen := visited[ref.ID]; seen {
				return
			}
			visited[ref.ID] = struct{}{}
			if dep, ok := c.parent.ColumnByID(ref.ID); ok && dep.node != nil {
				found = visit(dep.node)
			}
		})
		return found
	}
	return visit(node)
}

// attach registers the column as the dependent of node, and every column
// reference in node as a dependent of the column it reads
func (c *Column) attach(node compute.Node) {
	node.AddDependent(c)
	compute.Walk(node, func(n compute.Node) {
		if ref, ok := n.(*compute.ColumnRef); ok {
			if target, ok := c.parent.ColumnByID(ref.ID); ok {
				target.AddDependent(ref)
			}
		}
	})
	c.node = node
}

// detach undoes attach and drops the node
func (c *Column) detach() {
	if c.node == nil {
		return
	}
	c.node.RemoveDependent(c)
	compute.Walk(c.node, func(n compute.Node) {
		if ref, ok := n.(*compute.ColumnRef); ok {
			if target, ok := c.parent.ColumnByID(ref.ID); ok {
				target.RemoveDependent(ref)
			}
		}
	})
	c.node = nil
}
