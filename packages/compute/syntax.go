package compute

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// BinaryOp represents binary operators in syntax and bound nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpModulo
	BinOpPower
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
	BinOpAnd
	BinOpOr
)

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpModulo:       "%",
	BinOpPower:        "^",
	BinOpEqual:        "==",
	BinOpNotEqual:     "!=",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
	BinOpAnd:          "and",
	BinOpOr:           "or",
}

func (op BinaryOp) String() string {
	return binaryOpSymbols[op]
}

// IsArithmetic reports whether op computes a number from two numbers
func (op BinaryOp) IsArithmetic() bool {
	return op <= BinOpPower
}

// IsLogical reports whether op produces a boolean
func (op BinaryOp) IsLogical() bool {
	return op >= BinOpEqual
}

// UnaryOp represents unary operators in syntax and bound nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpNot
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryOpMinus:
		return "-"
	case UnaryOpNot:
		return "not "
	default:
		return "+"
	}
}

type NodePosition struct {
	Start int
	End   int
}

// SyntaxNode is a node of a parsed, not yet bound, formula. passes over the
// tree (normalization, filter rewriting, checking, binding) switch on the
// concrete node types.
type SyntaxNode interface {
	GetPosition() NodePosition
	ToString() string
}

// NumberNode is a numeric literal. IsInteger records that it had no
// fraction or exponent.
type NumberNode struct {
	Value     float64
	IsInteger bool
	Position  NodePosition
}

func (n *NumberNode) GetPosition() NodePosition { return n.Position }

func (n *NumberNode) ToString() string {
	if n.IsInteger {
		return strconv.FormatInt(int64(n.Value), 10)
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// StringNode is a quoted literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) GetPosition() NodePosition { return n.Position }

func (n *StringNode) ToString() string {
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// BooleanNode is true or false
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) GetPosition() NodePosition { return n.Position }

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// NameNode represents a reference to a column by name
type NameNode struct {
	Name     string
	Position NodePosition
}

func (n *NameNode) GetPosition() NodePosition { return n.Position }

func (n *NameNode) ToString() string {
	return quoteName(n.Name)
}

// ColumnIDNode represents a reference to a column by id. it never comes out
// of the parser; the filter rewrite pass synthesizes it for guard columns.
type ColumnIDNode struct {
	ID       int
	Position NodePosition
}

func (n *ColumnIDNode) GetPosition() NodePosition { return n.Position }

func (n *ColumnIDNode) ToString() string {
	return fmt.Sprintf("COLUMN(%d)", n.ID)
}

// ExcludedNode is the literal produced for rows that an earlier filter
// group has already excluded
type ExcludedNode struct {
	Position NodePosition
}

func (n *ExcludedNode) GetPosition() NodePosition { return n.Position }

func (n *ExcludedNode) ToString() string {
	return "FILTERED_OUT"
}

// BinaryOpNode is an infix operator applied to two operands
type BinaryOpNode struct {
	Op       BinaryOp
	Left     SyntaxNode
	Right    SyntaxNode
	Position NodePosition
}

func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *BinaryOpNode) ToString() string {
	if n.Op.IsLogical() {
		return fmt.Sprintf("(%s %s %s)", n.Left.ToString(), n.Op, n.Right.ToString())
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), n.Op, n.Right.ToString())
}

// UnaryOpNode is a sign or not applied to one operand
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  SyntaxNode
	Position NodePosition
}

func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *UnaryOpNode) ToString() string {
	return fmt.Sprintf("%s%s", n.Op, n.Operand.ToString())
}

// FunctionCallNode represents a function call. Guards lists the filter
// columns a column-wise aggregate must respect.
type FunctionCallNode struct {
	Name     string
	Args     []SyntaxNode
	Guards   []int
	Position NodePosition
}

func (n *FunctionCallNode) GetPosition() NodePosition { return n.Position }

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// WalkSyntax visits n and its descendants depth first. returning false from
// fn skips the children of that node.
func WalkSyntax(n SyntaxNode, fn func(SyntaxNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *BinaryOpNode:
		WalkSyntax(n.Left, fn)
		WalkSyntax(n.Right, fn)
	case *UnaryOpNode:
		WalkSyntax(n.Operand, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			WalkSyntax(arg, fn)
		}
	}
}

func quoteName(name string) string {
	for i, r := range name {
		if unicode.IsLetter(r) || r == '_' || (i > 0 && (unicode.IsDigit(r) || r == '.')) {
			continue
		}
		return "`" + name + "`"
	}
	lower := strings.ToLower(name)
	if _, ok := keywordOps[lower]; ok || lower == "true" || lower == "false" {
		return "`" + name + "`"
	}
	return name
}
