package storage

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ColumnType describes how a column's values are produced
type ColumnType uint8

const (
	ColumnTypeNone ColumnType = iota
	ColumnTypeData
	ColumnTypeComputed
	ColumnTypeRecoded
	ColumnTypeFilter
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeData:
		return "data"
	case ColumnTypeComputed:
		return "computed"
	case ColumnTypeRecoded:
		return "recoded"
	case ColumnTypeFilter:
		return "filter"
	default:
		return "none"
	}
}

// DataType is the physical encoding of a column's values
type DataType uint8

const (
	DataTypeInteger DataType = iota
	DataTypeDecimal
	DataTypeText
)

func (t DataType) String() string {
	switch t {
	case DataTypeDecimal:
		return "decimal"
	case DataTypeText:
		return "text"
	default:
		return "integer"
	}
}

// MeasureType is the statistical level of measurement of a column
type MeasureType uint8

const (
	MeasureTypeNone MeasureType = iota
	MeasureTypeNominal
	MeasureTypeOrdinal
	MeasureTypeContinuous
	MeasureTypeID
)

func (t MeasureType) String() string {
	switch t {
	case MeasureTypeNominal:
		return "nominal"
	case MeasureTypeOrdinal:
		return "ordinal"
	case MeasureTypeContinuous:
		return "continuous"
	case MeasureTypeID:
		return "id"
	default:
		return "none"
	}
}

const (
	// MissingInt marks a missing integer cell
	MissingInt int32 = math.MinInt32

	// FilteredOut marks a filter cell whose row was already excluded by an
	// earlier filter group. it shares its bit pattern with MissingInt, so
	// callers that need to tell the two apart must track it out of band.
	FilteredOut int32 = math.MinInt32

	// MaxDPS caps the number of decimal places reported for a column
	MaxDPS = 3
)

// MissingFloat returns the decimal missing-value marker
func MissingFloat() float64 {
	return math.NaN()
}

// IsMissingFloat reports whether v is the decimal missing-value marker
func IsMissingFloat(v float64) bool {
	return math.IsNaN(v)
}

// Level is one entry in a column's label table
type Level struct {
	Value       int32
	Label       string
	ImportValue string
}

// ParseColumnType maps a column type name to its ColumnType
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ColumnTypeNone, nil
	case "data":
		return ColumnTypeData, nil
	case "computed":
		return ColumnTypeComputed, nil
	case "recoded":
		return ColumnTypeRecoded, nil
	case "filter":
		return ColumnTypeFilter, nil
	}
	return ColumnTypeNone, errors.Errorf("unknown column type %q", s)
}

// ParseDataType maps a data type name to its DataType
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "", "integer", "int":
		return DataTypeInteger, nil
	case "decimal", "float":
		return DataTypeDecimal, nil
	case "text", "string":
		return DataTypeText, nil
	}
	return DataTypeInteger, errors.Errorf("unknown data type %q", s)
}

// ParseMeasureType maps a measure type name to its MeasureType
func ParseMeasureType(s string) (MeasureType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return MeasureTypeNone, nil
	case "nominal":
		return MeasureTypeNominal, nil
	case "ordinal":
		return MeasureTypeOrdinal, nil
	case "continuous":
		return MeasureTypeContinuous, nil
	case "id":
		return MeasureTypeID, nil
	}
	return MeasureTypeNone, errors.Errorf("unknown measure type %q", s)
}
