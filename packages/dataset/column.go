package dataset

import (
	"github.com/pkg/errors"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/storage"
)

// FormulaStatus is the outcome of the last formula compile
type FormulaStatus uint8

const (
	FormulaEmpty FormulaStatus = iota
	FormulaOK
	FormulaError
)

func (s FormulaStatus) String() string {
	switch s {
	case FormulaOK:
		return "ok"
	case FormulaError:
		return "error"
	default:
		return "empty"
	}
}

// Column is a column of a Dataset.
//
// a column starts out virtual: it has no storage and reads as an empty
// integer column. the first mutation allocates storage; after that every
// call is delegated to it.
type Column struct {
	// columns that read this column, through the ColumnRef leaves of their
	// formulas
	compute.DependentList

	parent *Dataset
	child  *storage.Column
	id     int
	index  int

	node        compute.Node
	status      FormulaStatus
	formulaErr  *CompileError
	needsRecalc bool
	filterNo    int
	hidden      bool
}

var _ compute.ColumnSource = (*Column)(nil)

func newColumn(parent *Dataset, id, index int) *Column {
	return &Column{
		parent: parent,
		id:     id,
		index:  index,
	}
}

// realise allocates storage for a virtual column
func (c *Column) realise() {
	if c.child != nil {
		return
	}
	c.parent.realise(c)
}

// Realise allocates storage for the column if it has none
func (c *Column) Realise() {
	c.realise()
}

// IsVirtual reports whether the column has no storage yet
func (c *Column) IsVirtual() bool {
	return c.child == nil
}

func (c *Column) ID() int    { return c.id }
func (c *Column) Index() int { return c.index }

func (c *Column) Name() string {
	if c.child == nil {
		return ""
	}
	return c.child.Name()
}

func (c *Column) ImportName() string {
	if c.child == nil {
		return ""
	}
	return c.child.ImportName()
}

func (c *Column) Description() string {
	if c.child == nil {
		return ""
	}
	return c.child.Description()
}

func (c *Column) ColumnType() storage.ColumnType {
	if c.child == nil {
		return storage.ColumnTypeNone
	}
	return c.child.ColumnType()
}

func (c *Column) DataType() storage.DataType {
	if c.child == nil {
		return storage.DataTypeInteger
	}
	return c.child.DataType()
}

func (c *Column) MeasureType() storage.MeasureType {
	if c.child == nil {
		return storage.MeasureTypeNone
	}
	return c.child.MeasureType()
}

func (c *Column) AutoMeasure() bool {
	return c.child == nil || c.child.AutoMeasure()
}

func (c *Column) Active() bool {
	return c.child == nil || c.child.Active()
}

func (c *Column) TrimLevels() bool {
	return c.child == nil || c.child.TrimLevels()
}

func (c *Column) DPS() int {
	if c.child == nil {
		return 0
	}
	return c.child.DPS()
}

func (c *Column) Formula() string {
	if c.child == nil {
		return ""
	}
	return c.child.Formula()
}

func (c *Column) FormulaMessage() string {
	if c.child == nil {
		return ""
	}
	return c.child.FormulaMessage()
}

func (c *Column) FormulaStatus() FormulaStatus { return c.status }

// FormulaError returns why the formula failed to compile, or nil
func (c *Column) FormulaError() *CompileError { return c.formulaErr }

func (c *Column) RowCount() int {
	if c.child == nil {
		return 0
	}
	return c.child.RowCount()
}

func (c *Column) Levels() []storage.Level {
	if c.child == nil {
		return nil
	}
	return c.child.Levels()
}

func (c *Column) LevelCount() int {
	if c.child == nil {
		return 0
	}
	return c.child.LevelCount()
}

func (c *Column) HasLevels() bool {
	return c.child != nil && c.child.HasLevels()
}

func (c *Column) FilterNo() int { return c.filterNo }
func (c *Column) Hidden() bool  { return c.hidden }

func (c *Column) IsFilter() bool {
	return c.ColumnType() == storage.ColumnTypeFilter
}

func (c *Column) isFormulaKind() bool {
	ct := c.ColumnType()
	return ct == storage.ColumnTypeComputed || ct == storage.ColumnTypeFilter
}

// ChangeCount returns how many user edits the column has seen since it was
// last reset. values written by recalculation are not counted.
func (c *Column) ChangeCount() int {
	if c.child == nil {
		return 0
	}
	return c.child.Changes()
}

func (c *Column) ResetChangeCount() {
	if c.child != nil {
		c.child.ResetChanges()
	}
}

// UsesColumnFormula reports whether the compiled formula aggregates whole
// columns
func (c *Column) UsesColumnFormula() bool {
	return c.node != nil && c.node.UsesColumnFormula()
}

// Raw returns the stored value at row without level labels
func (c *Column) Raw(row int) compute.Value {
	if c.child == nil {
		return compute.MissingInt()
	}
	switch c.child.DataType() {
	case storage.DataTypeDecimal:
		return compute.Float(c.child.FloatAt(row))
	case storage.DataTypeText:
		return compute.Text(c.child.TextAt(row))
	default:
		return compute.Int(int64(c.child.IntAt(row)))
	}
}

// Value returns the value at row. integer columns with levels return the
// value together with its label.
func (c *Column) Value(row int) compute.Value {
	if c.child == nil {
		return compute.Labelled(int64(storage.MissingInt), "")
	}
	v := c.Raw(row)
	if v.Kind != compute.KindInt || !c.child.HasLevels() {
		return v
	}
	if v.IsMissing() {
		return compute.Labelled(v.Int, "")
	}
	label, err := c.child.LabelFor(int32(v.Int))
	if err != nil {
		return v
	}
	return compute.Labelled(v.Int, label)
}

// FValue is the value formulas read. when respectFilter is set, rows the
// active filters exclude read as missing. a filter cell holding the
// excluded marker reads as excluded rather than missing.
func (c *Column) FValue(row int, respectFilter bool) compute.Value {
	if c.child == nil {
		return compute.Labelled(int64(storage.MissingInt), "")
	}
	if respectFilter && c.parent.IsRowFiltered(row) {
		if c.child.DataType() == storage.DataTypeInteger && c.child.HasLevels() {
			return compute.Labelled(int64(storage.MissingInt), "")
		}
		return compute.Missing(c.child.DataType())
	}
	if c.IsFilter() && c.child.DataType() == storage.DataTypeInteger && c.child.IntAt(row) == storage.FilteredOut {
		return compute.ExcludedValue()
	}
	return c.Value(row)
}

// ValueForLabel returns the raw value carrying label
func (c *Column) ValueForLabel(label string) int32 {
	if c.child == nil {
		return storage.MissingInt
	}
	v, err := c.child.ValueForLabel(label)
	if err != nil {
		return storage.MissingInt
	}
	return v
}

// GetLabel returns the label of raw value v
func (c *Column) GetLabel(v int32) (string, error) {
	if c.child == nil {
		return "", errors.Wrapf(ErrVirtualColumn, "column %d has no labels", c.id)
	}
	return c.child.LabelFor(v)
}

// SetValue stores v at row and marks every column reading this one as
// needing recalculation. a text value written to a levelled integer column
// is looked up by label.
func (c *Column) SetValue(row int, v compute.Value) error {
	if row < 0 || row >= c.parent.RowCount() {
		return errors.Wrapf(ErrIndexOutOfRange, "row %d of %d", row, c.parent.RowCount())
	}
	c.realise()
	if err := c.store(row, v, false); err != nil {
		return err
	}
	c.SetNeedsRecalc(true)
	return nil
}

// Append adds a row to the whole dataset and stores v in it
func (c *Column) Append(v compute.Value) error {
	c.parent.SetRowCount(c.parent.RowCount() + 1)
	return c.SetValue(c.parent.RowCount()-1, v)
}

// ClearAt stores the missing value at row
func (c *Column) ClearAt(row int) error {
	return c.SetValue(row, compute.Missing(c.DataType()))
}

func (c *Column) store(row int, v compute.Value, initing bool) error {
	switch v.Kind {
	case compute.KindFloat:
		c.child.SetFloat(row, v.Float, initing)
	case compute.KindText:
		if c.child.DataType() == storage.DataTypeInteger && c.child.HasLevels() && v.Text != "" {
			raw, err := c.child.ValueForLabel(v.Text)
			if err != nil {
				return errors.Wrap(NewApplicationError(InvalidArgument, err.Error()), "set value")
			}
			c.child.SetInt(row, raw, initing)
			return nil
		}
		c.child.SetText(row, v.Text, initing)
	default:
		if v.Excluded {
			c.child.SetInt(row, storage.FilteredOut, initing)
			return nil
		}
		raw := compute.Coerce(v, storage.DataTypeInteger)
		c.child.SetInt(row, int32(raw.Int), initing)
	}
	return nil
}

func (c *Column) SetName(name string) {
	c.realise()
	c.child.SetName(name)
}

func (c *Column) SetImportName(name string) {
	c.realise()
	c.child.SetImportName(name)
}

func (c *Column) SetDescription(s string) {
	c.realise()
	c.child.SetDescription(s)
}

// SetColumnType changes the kind of the column. the formula is recompiled
// because filters compile differently.
func (c *Column) SetColumnType(t storage.ColumnType) {
	c.realise()
	if c.child.ColumnType() == t {
		return
	}
	wasFilter := c.IsFilter()
	c.child.SetColumnType(t)
	if t == storage.ColumnTypeComputed || t == storage.ColumnTypeFilter {
		c.parseFormula()
	} else {
		c.detach()
		c.status = FormulaEmpty
		c.needsRecalc = false
	}
	if wasFilter || c.IsFilter() {
		c.parent.filtersChanged(c)
	}
}

func (c *Column) SetDataType(dt storage.DataType) {
	c.realise()
	c.child.SetDataType(dt)
	c.SetNeedsRecalc(true)
}

func (c *Column) SetMeasureType(mt storage.MeasureType) {
	c.realise()
	c.child.SetMeasureType(mt)
}

// Change sets the data type, measure type and levels together. a zero
// levels slice leaves the levels alone.
func (c *Column) Change(dt storage.DataType, mt storage.MeasureType, levels []storage.Level) {
	c.realise()
	c.child.SetDataType(dt)
	c.child.SetMeasureType(mt)
	if levels != nil {
		c.child.ClearLevels()
		for _, l := range levels {
			c.child.AppendLevel(l.Value, l.Label, l.ImportValue)
		}
	}
	c.SetNeedsRecalc(true)
}

func (c *Column) SetAutoMeasure(v bool) {
	c.realise()
	c.child.SetAutoMeasure(v)
}

// SetActive switches a filter on or off. later filters are recompiled
// because their guards depend on which earlier filters are active.
func (c *Column) SetActive(v bool) {
	c.realise()
	if c.child.Active() == v {
		return
	}
	c.child.SetActive(v)
	if c.IsFilter() {
		c.parent.filtersChanged(c)
	}
}

func (c *Column) SetTrimLevels(v bool) {
	c.realise()
	c.child.SetTrimLevels(v)
}

func (c *Column) SetDPS(dps int) {
	c.realise()
	if dps < 0 {
		dps = 0
	}
	c.child.SetDPS(dps)
}

func (c *Column) SetFilterNo(n int) {
	c.realise()
	if c.filterNo == n {
		return
	}
	c.filterNo = n
	if c.IsFilter() {
		// its own guard comes from the group before its new one
		c.parseFormula()
		c.parent.filtersChanged(c)
	}
}

func (c *Column) SetHidden(v bool) {
	c.realise()
	c.hidden = v
}

func (c *Column) AppendLevel(value int32, label, importValue string) {
	c.realise()
	c.child.AppendLevel(value, label, importValue)
}

func (c *Column) InsertLevel(value int32, label, importValue string) {
	c.realise()
	c.child.InsertLevel(value, label, importValue)
}

func (c *Column) ClearLevels() {
	c.realise()
	c.child.ClearLevels()
}

// NeedsRecalc reports whether the column's values are stale. only computed
// and filter columns are ever stale.
func (c *Column) NeedsRecalc() bool {
	if !c.isFormulaKind() {
		return false
	}
	return c.needsRecalc
}

// SetNeedsRecalc marks the column and everything downstream of it
func (c *Column) SetNeedsRecalc(v bool) {
	c.DependentList.SetNeedsRecalc(v)
	if c.isFormulaKind() {
		c.needsRecalc = v
	}
}

// PrepForDeletion detaches the column's formula from the graph
func (c *Column) PrepForDeletion() {
	c.detach()
}
