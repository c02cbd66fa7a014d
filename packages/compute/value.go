package compute

import (
	"math"
	"strconv"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// Kind is the representation a Value carries
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "decimal"
	case KindText:
		return "text"
	default:
		return "integer"
	}
}

// Value is the result of evaluating a node for one row.
//
// integers carry storage.MissingInt when missing, decimals carry NaN and
// text carries "". a levelled integer also carries its label. Excluded
// marks the value written for rows an earlier filter group removed; it has
// the integer missing bit pattern but is never treated as missing by the
// filter machinery.
type Value struct {
	Kind     Kind
	Int      int64
	Float    float64
	Text     string
	Label    string
	Labelled bool
	Excluded bool
}

// Int creates an integer value
func Int(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// Float creates a decimal value
func Float(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// Text creates a text value
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Bool creates the integer 1 or 0
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Labelled creates an integer value read through a label table
func Labelled(v int64, label string) Value {
	return Value{Kind: KindInt, Int: v, Label: label, Labelled: true}
}

// ExcludedValue is the value of a filter cell whose row an earlier filter
// group removed
func ExcludedValue() Value {
	return Value{Kind: KindInt, Int: int64(storage.FilteredOut), Excluded: true}
}

// Missing returns the missing value for a data type
func Missing(dt storage.DataType) Value {
	switch dt {
	case storage.DataTypeDecimal:
		return Float(storage.MissingFloat())
	case storage.DataTypeText:
		return Text("")
	default:
		return Int(int64(storage.MissingInt))
	}
}

// MissingInt is the integer missing value
func MissingInt() Value {
	return Missing(storage.DataTypeInteger)
}

// IsMissing reports whether v holds its kind's missing marker
func (v Value) IsMissing() bool {
	switch v.Kind {
	case KindFloat:
		return math.IsNaN(v.Float)
	case KindText:
		return v.Text == ""
	default:
		return v.Int == int64(storage.MissingInt)
	}
}

// Number returns v as a float64. missing values and text that does not
// parse report false.
func (v Value) Number() (float64, bool) {
	if v.IsMissing() {
		return 0, false
	}
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindText:
		f, err := strconv.ParseFloat(v.Text, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return float64(v.Int), true
	}
}

// Truthy reports whether v counts as true in a condition
func (v Value) Truthy() bool {
	if v.IsMissing() {
		return false
	}
	switch v.Kind {
	case KindFloat:
		return v.Float != 0
	case KindText:
		return true
	default:
		return v.Int != 0
	}
}

// String returns the display form of v
func (v Value) String() string {
	if v.Labelled {
		return v.Label
	}
	switch v.Kind {
	case KindFloat:
		return storage.FloatToText(v.Float)
	case KindText:
		return v.Text
	default:
		if v.IsMissing() {
			return ""
		}
		return strconv.FormatInt(v.Int, 10)
	}
}

// coercions converts a value into the representation a column of the
// given data type stores
var coercions = map[storage.DataType]func(Value) Value{
	storage.DataTypeInteger: toInt,
	storage.DataTypeDecimal: toFloat,
	storage.DataTypeText:    toText,
}

// Coerce converts v for storage in a column of data type dt
func Coerce(v Value, dt storage.DataType) Value {
	fn, ok := coercions[dt]
	if !ok {
		return v
	}
	return fn(v)
}

func toInt(v Value) Value {
	switch v.Kind {
	case KindFloat:
		return Int(int64(storage.FloatToInt(v.Float)))
	case KindText:
		return Int(int64(storage.TextToInt(v.Text)))
	default:
		if v.Excluded {
			return v
		}
		if v.Int > math.MaxInt32 || v.Int < math.MinInt32 {
			return MissingInt()
		}
		return Int(v.Int)
	}
}

func toFloat(v Value) Value {
	switch v.Kind {
	case KindFloat:
		return v
	case KindText:
		return Float(storage.TextToFloat(v.Text))
	default:
		if v.IsMissing() {
			return Float(storage.MissingFloat())
		}
		return Float(float64(v.Int))
	}
}

func toText(v Value) Value {
	switch v.Kind {
	case KindText:
		return v
	case KindFloat:
		return Text(storage.FloatToText(v.Float))
	default:
		return Text(v.String())
	}
}
