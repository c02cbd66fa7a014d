package dataset

import (
	"github.com/pkg/errors"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/storage"
)

// Recalc brings a stale column up to date, recalculating the stale columns
// it reads first. with no arguments every row is recalculated; with one the
// single row start; with two the rows [start, end). an up to date column is
// left alone.
//
// rows that fail to evaluate are written as missing (filters as 1) and
// logged. the only error returned is a circular reference.
func (c *Column) Recalc(rows ...int) error {
	if !c.NeedsRecalc() {
		return nil
	}

	ds := c.parent
	if _, busy := ds.recalcing[c.id]; busy {
		return errors.Wrapf(compute.ErrCircularReference, "recalculating %q", c.Name())
	}
	ds.recalcing[c.id] = struct{}{}
	defer delete(ds.recalcing, c.id)

	for _, dep := range c.Dependencies() {
		if dep.NeedsRecalc() {
			if err := dep.Recalc(); err != nil {
				return err
			}
		}
	}

	start, end := 0, ds.RowCount()
	switch len(rows) {
	case 0:
	case 1:
		start, end = rows[0], rows[0]+1
	default:
		start, end = rows[0], rows[1]
	}
	start = max(start, 0)
	end = min(end, ds.RowCount())

	c.realise()
	c.child.ClearLevels()
	if c.node != nil && c.node.HasLevels() {
		for _, l := range c.node.Levels() {
			c.child.AppendLevel(l.Value, l.Label, l.ImportValue)
		}
	}

	dt := c.DataType()
	changed := false
	if c.node == nil {
		v := compute.Missing(dt)
		if c.IsFilter() {
			v = compute.Int(1)
		}
		for row := start; row < end; row++ {
			changed = c.write(row, v) || changed
		}
	} else {
		ds.pass++
		ctx := &compute.EvalCtx{
			Source: ds.source(),
			Pass:   ds.pass,
			Log:    ds.log,
		}
		usesColumnFormula := c.node.UsesColumnFormula()
		for row := start; row < end; row++ {
			changed = c.write(row, c.evalRow(ctx, row, dt, usesColumnFormula)) || changed
		}
		c.child.DetermineDPS()
	}

	ds.log.V(4).Info("column recalculated", "column", c.Name(), "start", start, "end", end)
	c.needsRecalc = false

	// aggregates elsewhere only see the rows the filters keep
	if changed && c.IsFilter() && c.Active() {
		ds.dirtyColumnFormulas()
	}
	return nil
}

// evalRow computes the value to store for one row. evaluation failures,
// panics included, are logged and replaced by the fallback value.
func (c *Column) evalRow(ctx *compute.EvalCtx, row int, dt storage.DataType, usesColumnFormula bool) (v compute.Value) {
	defer func() {
		if r := recover(); r != nil {
			c.parent.log.Error(&panicError{value: r}, "formula evaluation panicked", "column", c.Name(), "row", row)
			v = c.fallback(dt)
		}
	}()

	ctx.Row = row
	switch {
	case c.IsFilter():
		ctx.RespectFilter = false
	case usesColumnFormula && c.parent.IsRowFiltered(row):
		return compute.Missing(dt)
	default:
		ctx.RespectFilter = usesColumnFormula
	}

	r, err := c.node.Eval(ctx)
	if err != nil {
		c.parent.log.Error(err, "formula evaluation failed", "column", c.Name(), "row", row)
		return c.fallback(dt)
	}

	if c.IsFilter() {
		switch {
		case r.Excluded:
			return compute.ExcludedValue()
		case r.Truthy():
			return compute.Int(1)
		default:
			return compute.Int(0)
		}
	}
	return compute.Coerce(r, dt)
}

func (c *Column) fallback(dt storage.DataType) compute.Value {
	if c.IsFilter() {
		return compute.Int(1)
	}
	return compute.Missing(dt)
}

// write stores a computed value and reports whether a filter cell changed.
// recalculation does not count as a user change.
func (c *Column) write(row int, v compute.Value) bool {
	changed := c.IsFilter() && c.child.IntAt(row) != int32(v.Int)
	if err := c.store(row, v, true); err != nil {
		c.parent.log.Error(err, "cannot store computed value", "column", c.Name(), "row", row, "value", v.String())
	}
	return changed
}

// RecalcAll recalculates every stale column: filters first, in column
// order, then everything else in calculation order
func (ds *Dataset) RecalcAll() error {
	for round := 0; round <= len(ds.columns); round++ {
		for _, c := range ds.columns {
			if c.IsFilter() && c.NeedsRecalc() {
				if err := c.Recalc(); err != nil {
					return err
				}
			}
		}

		order, err := ds.CalculationOrder()
		if err != nil {
			return err
		}
		for _, c := range order {
			if c.NeedsRecalc() {
				if err := c.Recalc(); err != nil {
					return err
				}
			}
		}

		if !ds.anyStale() {
			return nil
		}
	}
	return NewApplicationError(Internal, "recalculation did not settle")
}

func (ds *Dataset) anyStale() bool {
	for _, c := range ds.columns {
		if c.NeedsRecalc() {
			return true
		}
	}
	return false
}
