package compute

import (
	"fmt"
	"math"
	"strings"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// Dependent is anything that must be told when a value it reads changes:
// interior formula nodes and the columns that own formulas
type Dependent interface {
	SetNeedsRecalc(v bool)
	DirectDependents() []Dependent
}

// DependentList holds the reverse links of a node or column: who reads it
type DependentList struct {
	list []Dependent
}

// AddDependent registers d as reading this node
func (dl *DependentList) AddDependent(d Dependent) {
	dl.list = append(dl.list, d)
}

// RemoveDependent unregisters one registration of d
func (dl *DependentList) RemoveDependent(d Dependent) {
	for i, p := range dl.list {
		if p == d {
			dl.list = append(dl.list[:i], dl.list[i+1:]...)
			return
		}
	}
}

// DirectDependents returns the registered dependents
func (dl *DependentList) DirectDependents() []Dependent {
	return dl.list
}

// SetNeedsRecalc forwards the flag to every dependent
func (dl *DependentList) SetNeedsRecalc(v bool) {
	for _, p := range dl.list {
		p.SetNeedsRecalc(v)
	}
}

// Node is a bound formula node. a tree of nodes is owned by one column.
type Node interface {
	Dependent
	Eval(ctx *EvalCtx) (Value, error)
	DataType() storage.DataType
	MeasureType() storage.MeasureType
	// UsesColumnFormula reports whether the node reads whole columns, which
	// makes its results depend on the active filters
	UsesColumnFormula() bool
	HasLevels() bool
	Levels() []storage.Level
	Children() []Node
	AddDependent(d Dependent)
	RemoveDependent(d Dependent)
	String() string
}

// Walk visits n and its descendants depth first
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children() {
		Walk(child, fn)
	}
}

var booleanLevels = []storage.Level{
	{Value: 0, Label: "false", ImportValue: "false"},
	{Value: 1, Label: "true", ImportValue: "true"},
}

// BooleanLevels returns the label table of a logical result
func BooleanLevels() []storage.Level {
	levels := make([]storage.Level, len(booleanLevels))
	copy(levels, booleanLevels)
	return levels
}

// Literal is a constant
type Literal struct {
	DependentList
	value       Value
	dataType    storage.DataType
	measureType storage.MeasureType
	levels      []storage.Level
}

func (n *Literal) Eval(*EvalCtx) (Value, error) { return n.value, nil }
func (n *Literal) DataType() storage.DataType { return n.dataType }
func (n *Literal) MeasureType() storage.MeasureType { return n.measureType }
func (n *Literal) UsesColumnFormula() bool { return false }
func (n *Literal) HasLevels() bool { return len(n.levels) > 0 }
func (n *Literal) Levels() []storage.Level { return n.levels }
func (n *Literal) Children() []Node { return nil }

func (n *Literal) String() string {
	switch {
	case n.value.Excluded:
		return "FILTERED_OUT"
	case n.value.Kind == KindText:
		return fmt.Sprintf("%q", n.value.Text)
	default:
		return n.value.String()
	}
}

// ColumnRef reads the current row of another column. it holds the column id
// rather than the column, so deleted or replaced columns are detected at
// evaluation time.
type ColumnRef struct {
	DependentList
	ID       int
	Name     string
	resolver Resolver
}

func (n *ColumnRef) target() (ColumnSource, bool) {
	if n.resolver == nil {
		return nil, false
	}
	return n.resolver.ColumnByID(n.ID)
}

func (n *ColumnRef) Eval(ctx *EvalCtx) (Value, error) {
	col, ok := ctx.Source.ColumnByID(n.ID)
	if !ok {
		return Value{}, NewEvalError(EvalErrorRef, fmt.Sprintf("column %q no longer exists", n.Name))
	}
	return col.FValue(ctx.Row, ctx.RespectFilter), nil
}

func (n *ColumnRef) DataType() storage.DataType {
	if col, ok := n.target(); ok {
		return col.DataType()
	}
	return storage.DataTypeInteger
}

func (n *ColumnRef) MeasureType() storage.MeasureType {
	if col, ok := n.target(); ok {
		return col.MeasureType()
	}
	return storage.MeasureTypeNone
}

func (n *ColumnRef) HasLevels() bool {
	col, ok := n.target()
	return ok && col.HasLevels()
}

func (n *ColumnRef) Levels() []storage.Level {
	if col, ok := n.target(); ok && col.HasLevels() {
		return col.Levels()
	}
	return nil
}

func (n *ColumnRef) UsesColumnFormula() bool { return false }
func (n *ColumnRef) Children() []Node { return nil }
func (n *ColumnRef) String() string { return quoteName(n.Name) }

// BinaryOperation applies a binary operator to two nodes
type BinaryOperation struct {
	DependentList
	Op    BinaryOp
	Left  Node
	Right Node
}

func (n *BinaryOperation) Children() []Node { return []Node{n.Left, n.Right} }

func (n *BinaryOperation) UsesColumnFormula() bool {
	return n.Left.UsesColumnFormula() || n.Right.UsesColumnFormula()
}

func (n *BinaryOperation) DataType() storage.DataType {
	switch {
	case n.Op.IsLogical():
		return storage.DataTypeInteger
	case n.Op == BinOpDivide || n.Op == BinOpPower:
		return storage.DataTypeDecimal
	case n.Left.DataType() == storage.DataTypeInteger && n.Right.DataType() == storage.DataTypeInteger:
		return storage.DataTypeInteger
	default:
		return storage.DataTypeDecimal
	}
}

func (n *BinaryOperation) MeasureType() storage.MeasureType {
	if n.Op.IsLogical() {
		return storage.MeasureTypeNominal
	}
	return storage.MeasureTypeContinuous
}

func (n *BinaryOperation) HasLevels() bool { return n.Op.IsLogical() }

func (n *BinaryOperation) Levels() []storage.Level {
	if n.Op.IsLogical() {
		return BooleanLevels()
	}
	return nil
}

func (n *BinaryOperation) String() string {
	if n.Op.IsLogical() {
		return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
	}
	return fmt.Sprintf("(%s%s%s)", n.Left, n.Op, n.Right)
}

func (n *BinaryOperation) Eval(ctx *EvalCtx) (Value, error) {
	left, err := n.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}

	switch n.Op {
	case BinOpAnd:
		if !left.Truthy() {
			return Bool(false), nil
		}
		right, err := n.Right.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		return Bool(right.Truthy()), nil
	case BinOpOr:
		if left.Truthy() {
			return Bool(true), nil
		}
		right, err := n.Right.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		return Bool(right.Truthy()), nil
	}

	right, err := n.Right.Eval(ctx)
	if err != nil {
		return Value{}, err
	}

	if n.Op.IsLogical() {
		return Bool(compare(n.Op, left, right)), nil
	}
	return arithmetic(n.Op, left, right, n.DataType())
}

// compare applies a comparison operator. missing values are only ever not
// equal to anything.
func compare(op BinaryOp, left, right Value) bool {
	if left.IsMissing() || right.IsMissing() {
		return op == BinOpNotEqual
	}

	var c int
	lf, lok := left.Number()
	rf, rok := right.Number()
	switch {
	case left.Labelled && right.Kind == KindText:
		c = strings.Compare(left.Label, right.Text)
	case right.Labelled && left.Kind == KindText:
		c = strings.Compare(left.Text, right.Label)
	case lok && rok:
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	default:
		c = strings.Compare(left.String(), right.String())
	}

	switch op {
	case BinOpEqual:
		return c == 0
	case BinOpNotEqual:
		return c != 0
	case BinOpLess:
		return c < 0
	case BinOpLessEqual:
		return c <= 0
	case BinOpGreater:
		return c > 0
	case BinOpGreaterEqual:
		return c >= 0
	}
	return false
}

// checkedInt returns exact when the result fits an integer cell. approx is
// the same operation in float64, which cannot wrap; results outside the
// int32 range, wrapped int64 results included, are missing.
func checkedInt(exact int64, approx float64, dt storage.DataType) Value {
	if approx <= math.MinInt32 || approx > math.MaxInt32 {
		return Missing(dt)
	}
	return Int(exact)
}

func arithmetic(op BinaryOp, left, right Value, dt storage.DataType) (Value, error) {
	if left.IsMissing() || right.IsMissing() {
		return Missing(dt), nil
	}

	if dt == storage.DataTypeInteger && left.Kind == KindInt && right.Kind == KindInt {
		a, b := left.Int, right.Int
		switch op {
		case BinOpAdd:
			return checkedInt(a+b, float64(a)+float64(b), dt), nil
		case BinOpSubtract:
			return checkedInt(a-b, float64(a)-float64(b), dt), nil
		case BinOpMultiply:
			return checkedInt(a*b, float64(a)*float64(b), dt), nil
		case BinOpModulo:
			if b == 0 {
				return Value{}, NewEvalError(EvalErrorDiv0, "integer modulo by zero")
			}
			m := a % b
			if m != 0 && (m < 0) != (b < 0) {
				m += b
			}
			return Int(m), nil
		}
	}

	a, ok := left.Number()
	if !ok {
		return Value{}, NewEvalError(EvalErrorValue, fmt.Sprintf("cannot apply '%s' to %q", op, left.String()))
	}
	b, ok := right.Number()
	if !ok {
		return Value{}, NewEvalError(EvalErrorValue, fmt.Sprintf("cannot apply '%s' to %q", op, right.String()))
	}

	var r float64
	switch op {
	case BinOpAdd:
		r = a + b
	case BinOpSubtract:
		r = a - b
	case BinOpMultiply:
		r = a * b
	case BinOpDivide:
		if b == 0 {
			return Value{}, NewEvalError(EvalErrorDiv0, "division by zero")
		}
		r = a / b
	case BinOpModulo:
		if b == 0 {
			return Value{}, NewEvalError(EvalErrorDiv0, "modulo by zero")
		}
		r = math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
	case BinOpPower:
		r = math.Pow(a, b)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return Value{}, NewEvalError(EvalErrorNum, fmt.Sprintf("%v ^ %v is not a number", a, b))
		}
	}
	return Float(r), nil
}

// UnaryOperation applies a prefix operator to a node
type UnaryOperation struct {
	DependentList
	Op      UnaryOp
	Operand Node
}

func (n *UnaryOperation) Children() []Node { return []Node{n.Operand} }
func (n *UnaryOperation) UsesColumnFormula() bool { return n.Operand.UsesColumnFormula() }
func (n *UnaryOperation) String() string { return fmt.Sprintf("%s%s", n.Op, n.Operand) }

func (n *UnaryOperation) DataType() storage.DataType {
	if n.Op == UnaryOpNot {
		return storage.DataTypeInteger
	}
	return n.Operand.DataType()
}

func (n *UnaryOperation) MeasureType() storage.MeasureType {
	if n.Op == UnaryOpNot {
		return storage.MeasureTypeNominal
	}
	return storage.MeasureTypeContinuous
}

func (n *UnaryOperation) HasLevels() bool { return n.Op == UnaryOpNot }

func (n *UnaryOperation) Levels() []storage.Level {
	if n.Op == UnaryOpNot {
		return BooleanLevels()
	}
	return nil
}

func (n *UnaryOperation) Eval(ctx *EvalCtx) (Value, error) {
	v, err := n.Operand.Eval(ctx)
	if err != nil {
		return Value{}, err
	}

	switch n.Op {
	case UnaryOpNot:
		return Bool(!v.Truthy()), nil
	case UnaryOpMinus:
		if v.IsMissing() {
			return v, nil
		}
		switch v.Kind {
		case KindInt:
			return Int(-v.Int), nil
		case KindFloat:
			return Float(-v.Float), nil
		}
		f, ok := v.Number()
		if !ok {
			return Value{}, NewEvalError(EvalErrorValue, fmt.Sprintf("cannot negate %q", v.Text))
		}
		return Float(-f), nil
	default:
		return v, nil
	}
}
