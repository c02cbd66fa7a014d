package compute

import (
	"fmt"
	"math"
	"strings"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// signature describes a function for checking and type inference
type signature struct {
	minArgs int
	maxArgs int // -1 for variadic
	// columnWise functions aggregate their first argument over every row
	columnWise bool
	// lazy functions evaluate their own arguments
	lazy    bool
	returns func(args []Node) (storage.DataType, storage.MeasureType)
	boolean bool
}

func fixed(dt storage.DataType, mt storage.MeasureType) func([]Node) (storage.DataType, storage.MeasureType) {
	return func([]Node) (storage.DataType, storage.MeasureType) { return dt, mt }
}

// widest picks the data type able to hold every argument's values
func widest(args []Node) (storage.DataType, storage.MeasureType) {
	dt := storage.DataTypeInteger
	for _, arg := range args {
		if arg.DataType() > dt {
			dt = arg.DataType()
		}
	}
	if dt == storage.DataTypeText {
		return dt, storage.MeasureTypeNominal
	}
	return dt, storage.MeasureTypeContinuous
}

// branches is widest over every argument but the first
func branches(args []Node) (storage.DataType, storage.MeasureType) {
	if len(args) < 2 {
		return widest(args)
	}
	return widest(args[1:])
}

func firstArg(args []Node) (storage.DataType, storage.MeasureType) {
	if len(args) == 0 {
		return storage.DataTypeInteger, storage.MeasureTypeContinuous
	}
	return widest(args[:1])
}

func rounding(args []Node) (storage.DataType, storage.MeasureType) {
	if len(args) > 1 {
		return storage.DataTypeDecimal, storage.MeasureTypeContinuous
	}
	return storage.DataTypeInteger, storage.MeasureTypeContinuous
}

var (
	decimalResult = fixed(storage.DataTypeDecimal, storage.MeasureTypeContinuous)
	integerResult = fixed(storage.DataTypeInteger, storage.MeasureTypeContinuous)
	booleanResult = fixed(storage.DataTypeInteger, storage.MeasureTypeNominal)
	textResult    = fixed(storage.DataTypeText, storage.MeasureTypeNominal)
)

var functions = map[string]signature{
	// logical
	"IF":     {minArgs: 3, maxArgs: 3, lazy: true, returns: branches},
	"IFMISS": {minArgs: 2, maxArgs: 3, lazy: true, returns: widest},
	"AND":    {minArgs: 1, maxArgs: -1, lazy: true, returns: booleanResult, boolean: true},
	"OR":     {minArgs: 1, maxArgs: -1, lazy: true, returns: booleanResult, boolean: true},
	"NOT":    {minArgs: 1, maxArgs: 1, returns: booleanResult, boolean: true},
	"ISMISS": {minArgs: 1, maxArgs: 1, returns: booleanResult, boolean: true},

	// math
	"ABS":   {minArgs: 1, maxArgs: 1, returns: firstArg},
	"SQRT":  {minArgs: 1, maxArgs: 1, returns: decimalResult},
	"EXP":   {minArgs: 1, maxArgs: 1, returns: decimalResult},
	"LN":    {minArgs: 1, maxArgs: 1, returns: decimalResult},
	"LOG10": {minArgs: 1, maxArgs: 1, returns: decimalResult},
	"ROUND": {minArgs: 1, maxArgs: 2, returns: rounding},
	"INT":   {minArgs: 1, maxArgs: 1, returns: integerResult},

	// row-wise statistics
	"MEAN": {minArgs: 1, maxArgs: -1, returns: decimalResult},
	"SUM":  {minArgs: 1, maxArgs: -1, returns: widest},
	"MIN":  {minArgs: 1, maxArgs: -1, returns: widest},
	"MAX":  {minArgs: 1, maxArgs: -1, returns: widest},

	// conversion
	"TEXT":  {minArgs: 1, maxArgs: 1, returns: textResult},
	"VALUE": {minArgs: 1, maxArgs: 1, returns: decimalResult},

	// column-wise statistics
	"VMEAN":  {minArgs: 1, maxArgs: 1, columnWise: true, returns: decimalResult},
	"VSUM":   {minArgs: 1, maxArgs: 1, columnWise: true, returns: firstArg},
	"VN":     {minArgs: 1, maxArgs: 1, columnWise: true, returns: integerResult},
	"VMIN":   {minArgs: 1, maxArgs: 1, columnWise: true, returns: firstArg},
	"VMAX":   {minArgs: 1, maxArgs: 1, columnWise: true, returns: firstArg},
	"VSTDEV": {minArgs: 1, maxArgs: 1, columnWise: true, returns: decimalResult},
	"Z":      {minArgs: 1, maxArgs: 1, columnWise: true, returns: decimalResult},
}

// IsColumnWise reports whether the named function aggregates whole columns
func IsColumnWise(name string) bool {
	sig, ok := functions[strings.ToUpper(name)]
	return ok && sig.columnWise
}

// IsFunction reports whether name is a known function
func IsFunction(name string) bool {
	_, ok := functions[strings.ToUpper(name)]
	return ok
}

// BuiltInFunctions contains the eagerly evaluated row functions
type BuiltInFunctions struct{}

// NewBuiltInFunctions creates the function table
func NewBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{}
}

// Call invokes a row function by name with already evaluated arguments
func (bf *BuiltInFunctions) Call(name string, args ...Value) (Value, error) {
	switch strings.ToUpper(name) {
	case "NOT":
		return bf.NOT(args...)
	case "ISMISS":
		return bf.ISMISS(args...)
	case "ABS":
		return bf.ABS(args...)
	case "SQRT":
		return bf.unary(args, func(x float64) (float64, bool) { return math.Sqrt(x), x >= 0 })
	case "EXP":
		return bf.unary(args, func(x float64) (float64, bool) { return math.Exp(x), true })
	case "LN":
		return bf.unary(args, func(x float64) (float64, bool) { return math.Log(x), x > 0 })
	case "LOG10":
		return bf.unary(args, func(x float64) (float64, bool) { return math.Log10(x), x > 0 })
	case "ROUND":
		return bf.ROUND(args...)
	case "INT":
		return bf.INT(args...)
	case "MEAN":
		return bf.MEAN(args...)
	case "SUM":
		return bf.SUM(args...)
	case "MIN":
		return bf.extreme(args, func(a, b float64) bool { return a < b })
	case "MAX":
		return bf.extreme(args, func(a, b float64) bool { return a > b })
	case "TEXT":
		return bf.TEXT(args...)
	case "VALUE":
		return bf.VALUE(args...)
	default:
		return Value{}, &NameError{Name: name, Message: fmt.Sprintf("'%s' is not a known function", name)}
	}
}

func (bf *BuiltInFunctions) NOT(args ...Value) (Value, error) {
	return Bool(!args[0].Truthy()), nil
}

func (bf *BuiltInFunctions) ISMISS(args ...Value) (Value, error) {
	return Bool(args[0].IsMissing()), nil
}

func (bf *BuiltInFunctions) ABS(args ...Value) (Value, error) {
	v := args[0]
	if v.IsMissing() {
		return v, nil
	}
	if v.Kind == KindInt {
		if v.Int < 0 {
			return Int(-v.Int), nil
		}
		return Int(v.Int), nil
	}
	f, ok := v.Number()
	if !ok {
		return Value{}, NewEvalError(EvalErrorValue, "ABS requires a number")
	}
	return Float(math.Abs(f)), nil
}

// unary applies a decimal function whose domain check is reported by fn
func (bf *BuiltInFunctions) unary(args []Value, fn func(float64) (float64, bool)) (Value, error) {
	x, ok := args[0].Number()
	if !ok {
		return Float(storage.MissingFloat()), nil
	}
	r, ok := fn(x)
	if !ok {
		return Value{}, NewEvalError(EvalErrorNum, fmt.Sprintf("%v is outside the function's domain", x))
	}
	return Float(r), nil
}

func (bf *BuiltInFunctions) ROUND(args ...Value) (Value, error) {
	x, ok := args[0].Number()
	if len(args) == 1 {
		if !ok {
			return MissingInt(), nil
		}
		return Int(int64(math.RoundToEven(x))), nil
	}
	d, dok := args[1].Number()
	if !ok || !dok {
		return Float(storage.MissingFloat()), nil
	}
	p := math.Pow(10, math.Trunc(d))
	return Float(math.RoundToEven(x*p) / p), nil
}

func (bf *BuiltInFunctions) INT(args ...Value) (Value, error) {
	x, ok := args[0].Number()
	if !ok {
		return MissingInt(), nil
	}
	return Int(int64(storage.FloatToInt(x))), nil
}

// numbers returns every argument as a float64. ok is false if any argument
// is missing.
func numbers(args []Value) ([]float64, bool) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		f, ok := a.Number()
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func allInts(args []Value) bool {
	for _, a := range args {
		if a.Kind != KindInt {
			return false
		}
	}
	return true
}

func (bf *BuiltInFunctions) MEAN(args ...Value) (Value, error) {
	xs, ok := numbers(args)
	if !ok {
		return Float(storage.MissingFloat()), nil
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return Float(sum / float64(len(xs))), nil
}

func (bf *BuiltInFunctions) SUM(args ...Value) (Value, error) {
	xs, ok := numbers(args)
	if !ok {
		if allInts(args) {
			return MissingInt(), nil
		}
		return Float(storage.MissingFloat()), nil
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	if allInts(args) {
		return Int(int64(sum)), nil
	}
	return Float(sum), nil
}

func (bf *BuiltInFunctions) extreme(args []Value, better func(a, b float64) bool) (Value, error) {
	xs, ok := numbers(args)
	if !ok {
		if allInts(args) {
			return MissingInt(), nil
		}
		return Float(storage.MissingFloat()), nil
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if better(x, best) {
			best = x
		}
	}
	if allInts(args) {
		return Int(int64(best)), nil
	}
	return Float(best), nil
}

func (bf *BuiltInFunctions) TEXT(args ...Value) (Value, error) {
	return Text(args[0].String()), nil
}

func (bf *BuiltInFunctions) VALUE(args ...Value) (Value, error) {
	return Coerce(args[0], storage.DataTypeDecimal), nil
}
