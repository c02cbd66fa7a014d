package compute

import (
	"fmt"
	"math"
	"strings"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// Call invokes a built-in function
type Call struct {
	DependentList
	Name string
	Args []Node
	// Guards are the filter columns a row must pass before a column-wise
	// aggregate considers it
	Guards []int

	sig   signature
	fns   *BuiltInFunctions
	cache aggregate
}

// aggregate holds the column statistics a column-wise call computed during
// one recalculation pass
type aggregate struct {
	pass          uint64
	respectFilter bool
	n             int
	sum           float64
	mean          float64
	sd            float64
	min           float64
	max           float64
}

func (n *Call) Children() []Node { return n.Args }

func (n *Call) UsesColumnFormula() bool {
	if n.sig.columnWise {
		return true
	}
	for _, arg := range n.Args {
		if arg.UsesColumnFormula() {
			return true
		}
	}
	return false
}

func (n *Call) DataType() storage.DataType {
	dt, _ := n.sig.returns(n.Args)
	return dt
}

func (n *Call) MeasureType() storage.MeasureType {
	_, mt := n.sig.returns(n.Args)
	return mt
}

func (n *Call) HasLevels() bool {
	return len(n.Levels()) > 0
}

func (n *Call) Levels() []storage.Level {
	if n.sig.boolean {
		return BooleanLevels()
	}
	// IF and IFMISS pass their branches through unchanged, so levelled
	// branches keep their labels when they agree
	if n.Name == "IF" || n.Name == "IFMISS" {
		var levels []storage.Level
		for i, arg := range n.Args {
			if n.Name == "IF" && i == 0 {
				continue
			}
			if !arg.HasLevels() {
				continue
			}
			if levels == nil {
				levels = arg.Levels()
			}
		}
		return levels
	}
	return nil
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ", "))
}

func (n *Call) Eval(ctx *EvalCtx) (Value, error) {
	switch {
	case n.sig.columnWise:
		return n.evalColumnWise(ctx)
	case n.sig.lazy:
		return n.evalLazy(ctx)
	}

	args := make([]Value, len(n.Args))
	for i, arg := range n.Args {
		v, err := arg.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return n.fns.Call(n.Name, args...)
}

func (n *Call) evalLazy(ctx *EvalCtx) (Value, error) {
	switch n.Name {
	case "IF":
		cond, err := n.Args[0].Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		if cond.IsMissing() && !cond.Excluded {
			return Missing(n.DataType()), nil
		}
		if cond.Truthy() {
			return n.Args[1].Eval(ctx)
		}
		return n.Args[2].Eval(ctx)

	case "IFMISS":
		v, err := n.Args[0].Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		if v.IsMissing() && !v.Excluded {
			return n.Args[1].Eval(ctx)
		}
		if len(n.Args) > 2 {
			return n.Args[2].Eval(ctx)
		}
		return v, nil

	case "AND":
		for _, arg := range n.Args {
			v, err := arg.Eval(ctx)
			if err != nil {
				return Value{}, err
			}
			if !v.Truthy() {
				return Bool(false), nil
			}
		}
		return Bool(true), nil

	case "OR":
		for _, arg := range n.Args {
			v, err := arg.Eval(ctx)
			if err != nil {
				return Value{}, err
			}
			if v.Truthy() {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
	return Value{}, newNameError(n.Name, "'%s' is not a known function", n.Name)
}

func (n *Call) passesGuards(ctx *EvalCtx, row int) bool {
	for _, id := range n.Guards {
		col, ok := ctx.Source.ColumnByID(id)
		if !ok {
			continue
		}
		v := col.FValue(row, false)
		if v.Excluded || v.IsMissing() || v.Int != 1 {
			return false
		}
	}
	return true
}

// stats computes, or returns the cached, statistics of the first argument
// over every row that passes the guards
func (n *Call) stats(ctx *EvalCtx) (aggregate, error) {
	if ctx.Pass != 0 && n.cache.pass == ctx.Pass && n.cache.respectFilter == ctx.RespectFilter {
		return n.cache, nil
	}

	agg := aggregate{
		pass:          ctx.Pass,
		respectFilter: ctx.RespectFilter,
		min:           math.Inf(1),
		max:           math.Inf(-1),
	}
	var values []float64
	rows := ctx.Source.RowCount()
	for row := 0; row < rows; row++ {
		if !n.passesGuards(ctx, row) {
			continue
		}
		v, err := n.Args[0].Eval(ctx.atRow(row))
		if err != nil {
			return aggregate{}, err
		}
		x, ok := v.Number()
		if !ok {
			continue
		}
		values = append(values, x)
		agg.sum += x
		agg.min = math.Min(agg.min, x)
		agg.max = math.Max(agg.max, x)
	}

	agg.n = len(values)
	agg.mean = math.NaN()
	agg.sd = math.NaN()
	if agg.n > 0 {
		agg.mean = agg.sum / float64(agg.n)
	}
	if agg.n > 1 {
		ss := 0.0
		for _, x := range values {
			ss += (x - agg.mean) * (x - agg.mean)
		}
		agg.sd = math.Sqrt(ss / float64(agg.n-1))
	}

	if ctx.Pass != 0 {
		n.cache = agg
	}
	return agg, nil
}

func (n *Call) evalColumnWise(ctx *EvalCtx) (Value, error) {
	agg, err := n.stats(ctx)
	if err != nil {
		return Value{}, err
	}

	asType := func(x float64) Value {
		if n.DataType() == storage.DataTypeInteger {
			return Int(int64(x))
		}
		return Float(x)
	}

	switch n.Name {
	case "VN":
		return Int(int64(agg.n)), nil
	case "VMEAN":
		return Float(agg.mean), nil
	case "VSTDEV":
		return Float(agg.sd), nil
	case "VSUM":
		return asType(agg.sum), nil
	case "VMIN", "VMAX":
		if agg.n == 0 {
			return Missing(n.DataType()), nil
		}
		if n.Name == "VMIN" {
			return asType(agg.min), nil
		}
		return asType(agg.max), nil
	case "Z":
		v, err := n.Args[0].Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		x, ok := v.Number()
		if !ok || math.IsNaN(agg.sd) || agg.sd == 0 {
			return Float(storage.MissingFloat()), nil
		}
		return Float((x - agg.mean) / agg.sd), nil
	}
	return Value{}, newNameError(n.Name, "'%s' is not a known function", n.Name)
}
