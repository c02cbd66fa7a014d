package dataset

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/storage"
)

// Dataset is an ordered set of columns sharing one row count. it owns the
// storage of its realised columns and keeps computed and filter columns
// consistent with the columns they read.
type Dataset struct {
	store   *storage.Store
	columns []*Column
	byID    map[int]*Column
	nextID  int
	log     logr.Logger

	// columns with a recalculation in progress
	recalcing map[int]struct{}
	pass      uint64
}

// Option configures a Dataset
type Option func(*Dataset)

// WithLogger sets the sink for evaluation errors and traces
func WithLogger(log logr.Logger) Option {
	return func(ds *Dataset) {
		ds.log = log
	}
}

// New creates an empty dataset
func New(opts ...Option) *Dataset {
	ds := &Dataset{
		store:     storage.NewStore(),
		byID:      make(map[int]*Column),
		nextID:    1,
		log:       logr.Discard(),
		recalcing: make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

func (ds *Dataset) Logger() logr.Logger { return ds.log }

// Allocations returns how many columns have been given storage
func (ds *Dataset) Allocations() int {
	return ds.store.Allocations()
}

func (ds *Dataset) realise(c *Column) {
	child, err := ds.store.NewColumn(c.id)
	if err != nil {
		// ids are never reused, so this is a bookkeeping bug
		panic(errors.Wrap(err, "realise column"))
	}
	c.child = child
	ds.log.V(8).Info("column realised", "id", c.id, "index", c.index)
}

// AppendColumn adds a virtual column at the end
func (ds *Dataset) AppendColumn() *Column {
	c := newColumn(ds, ds.nextID, len(ds.columns))
	ds.nextID++
	ds.columns = append(ds.columns, c)
	ds.byID[c.id] = c
	return c
}

// InsertColumn adds a virtual column at index, shifting later columns right
func (ds *Dataset) InsertColumn(index int) (*Column, error) {
	if index < 0 || index > len(ds.columns) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "insert at %d of %d", index, len(ds.columns))
	}
	c := newColumn(ds, ds.nextID, index)
	ds.nextID++
	ds.columns = append(ds.columns, nil)
	copy(ds.columns[index+1:], ds.columns[index:])
	ds.columns[index] = c
	ds.byID[c.id] = c
	ds.reindex()
	return c, nil
}

// AddColumn appends a named column of the given kind
func (ds *Dataset) AddColumn(name string, ct storage.ColumnType) (*Column, error) {
	if name == "" {
		return nil, NewApplicationError(InvalidArgument, "column name is empty")
	}
	if _, ok := ds.ColumnByName(name); ok {
		return nil, NewApplicationError(AlreadyExists, fmt.Sprintf("column %q already exists", name))
	}
	c := ds.AppendColumn()
	c.SetName(name)
	c.SetColumnType(ct)
	return c, nil
}

func (ds *Dataset) reindex() {
	for i, c := range ds.columns {
		c.index = i
	}
}

// Column returns the column at index
func (ds *Dataset) Column(index int) (*Column, error) {
	if index < 0 || index >= len(ds.columns) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "column %d of %d", index, len(ds.columns))
	}
	return ds.columns[index], nil
}

func (ds *Dataset) ColumnByID(id int) (*Column, bool) {
	c, ok := ds.byID[id]
	return c, ok
}

func (ds *Dataset) ColumnByName(name string) (*Column, bool) {
	if name == "" {
		return nil, false
	}
	for _, c := range ds.columns {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Columns returns the columns in order
func (ds *Dataset) Columns() []*Column {
	cols := make([]*Column, len(ds.columns))
	copy(cols, ds.columns)
	return cols
}

func (ds *Dataset) ColumnCount() int { return len(ds.columns) }
func (ds *Dataset) RowCount() int    { return ds.store.RowCount() }

// SetRowCount resizes every realised column. computed and filter columns
// become stale.
func (ds *Dataset) SetRowCount(n int) {
	if n == ds.store.RowCount() {
		return
	}
	ds.store.SetRowCount(n)
	for _, c := range ds.columns {
		if c.isFormulaKind() {
			c.SetNeedsRecalc(true)
		}
	}
}

// DeleteColumn removes the column with id. columns whose formulas named it
// are recompiled and so end up in the error state.
func (ds *Dataset) DeleteColumn(id int) error {
	c, ok := ds.byID[id]
	if !ok {
		return errors.Wrapf(ErrNoSuchColumn, "column id %d", id)
	}

	var readers []*Column
	for _, dep := range c.Dependents() {
		if dep.readsDirectly(id) {
			readers = append(readers, dep)
		}
	}
	wasFilter := c.IsFilter()

	c.SetNeedsRecalc(true)
	c.PrepForDeletion()
	ds.columns = append(ds.columns[:c.index], ds.columns[c.index+1:]...)
	delete(ds.byID, id)
	ds.store.RemoveColumn(id)
	ds.reindex()

	for _, r := range readers {
		r.parseFormula()
	}
	if wasFilter {
		ds.recompileFiltersFrom(c.index)
		ds.dirtyColumnFormulas()
	}
	ds.log.V(4).Info("column deleted", "id", id, "recompiled", len(readers))
	return nil
}

// IsRowFiltered reports whether an active filter excludes row
func (ds *Dataset) IsRowFiltered(row int) bool {
	for _, c := range ds.columns {
		if c.child == nil || !c.IsFilter() || !c.child.Active() {
			continue
		}
		if c.child.IntAt(row) != 1 {
			return true
		}
	}
	return false
}

// filterGuards returns the active members of the nearest earlier filter
// group that has any. groups whose members are all inactive are skipped.
func (ds *Dataset) filterGuards(c *Column) []int {
	for group := c.filterNo - 1; group >= 0; group-- {
		var guards []int
		for _, p := range ds.columns[:c.index] {
			if p.IsFilter() && p.filterNo == group && p.Active() {
				guards = append(guards, p.id)
			}
		}
		if len(guards) > 0 {
			return guards
		}
	}
	return nil
}

// filtersChanged is called when a filter is added, removed, switched on or
// off, or moved to another group
func (ds *Dataset) filtersChanged(c *Column) {
	ds.recompileFiltersFrom(c.index + 1)
	c.SetNeedsRecalc(true)
	ds.dirtyColumnFormulas()
}

func (ds *Dataset) recompileFiltersFrom(index int) {
	for _, f := range ds.columns[min(index, len(ds.columns)):] {
		if f.IsFilter() {
			f.parseFormula()
		}
	}
}

// dirtyColumnFormulas marks the computed columns whose aggregates depend on
// which rows the filters keep
func (ds *Dataset) dirtyColumnFormulas() {
	for _, c := range ds.columns {
		if !c.IsFilter() && c.UsesColumnFormula() {
			c.SetNeedsRecalc(true)
		}
	}
}

func (ds *Dataset) source() *source {
	return &source{ds: ds}
}

// source is the view of a dataset the formula compiler and evaluator use
type source struct {
	ds *Dataset
}

var _ compute.Source = (*source)(nil)

func (s *source) ColumnByID(id int) (compute.ColumnSource, bool) {
	c, ok := s.ds.byID[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *source) ColumnByName(name string) (compute.ColumnSource, bool) {
	c, ok := s.ds.ColumnByName(name)
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *source) RowCount() int              { return s.ds.RowCount() }
func (s *source) IsRowFiltered(row int) bool { return s.ds.IsRowFiltered(row) }
