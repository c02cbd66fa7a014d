package compute

import (
	"github.com/go-logr/logr"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// ColumnSource is the view of a column that formulas read from
type ColumnSource interface {
	Dependent
	ID() int
	Name() string
	DataType() storage.DataType
	MeasureType() storage.MeasureType
	HasLevels() bool
	Levels() []storage.Level
	// FValue returns the value at row, or missing when respectFilter is
	// set and the row is excluded by the active filters
	FValue(row int, respectFilter bool) Value
	AddDependent(d Dependent)
	RemoveDependent(d Dependent)
}

// Resolver looks columns up while checking and binding formulas
type Resolver interface {
	ColumnByID(id int) (ColumnSource, bool)
	ColumnByName(name string) (ColumnSource, bool)
}

// Source is the table a bound formula evaluates against
type Source interface {
	Resolver
	RowCount() int
	IsRowFiltered(row int) bool
}

// EvalCtx carries the state of one evaluation
type EvalCtx struct {
	Source Source
	Row    int
	// RespectFilter makes column reads return missing for filtered rows
	RespectFilter bool
	// Pass identifies one recalculation; column-wise aggregates are cached
	// per pass. zero disables caching.
	Pass uint64
	Log  logr.Logger
}

func (ctx *EvalCtx) atRow(row int) *EvalCtx {
	c := *ctx
	c.Row = row
	return &c
}
