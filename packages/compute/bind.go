package compute

import (
	"strings"

	"github.com/vogtb/go-datasheet/packages/storage"
)

// Bind turns a checked syntax tree into a tree of dependency nodes. column
// names are resolved to ids; the returned tree's ColumnRef leaves are not
// yet registered with the columns they read.
func Bind(n SyntaxNode, r Resolver) (Node, error) {
	b := &binder{resolver: r, fns: NewBuiltInFunctions()}
	return b.bind(n)
}

type binder struct {
	resolver Resolver
	fns      *BuiltInFunctions
}

// adopt links each child to its new parent so dirty flags propagate upward
func adopt(parent Node, children ...Node) Node {
	for _, child := range children {
		child.AddDependent(parent)
	}
	return parent
}

func (b *binder) bind(n SyntaxNode) (Node, error) {
	switch n := n.(type) {
	case *NumberNode:
		if n.IsInteger {
			return &Literal{
				value:       Int(int64(n.Value)),
				dataType:    storage.DataTypeInteger,
				measureType: storage.MeasureTypeContinuous,
			}, nil
		}
		return &Literal{
			value:       Float(n.Value),
			dataType:    storage.DataTypeDecimal,
			measureType: storage.MeasureTypeContinuous,
		}, nil

	case *StringNode:
		return &Literal{
			value:       Text(n.Value),
			dataType:    storage.DataTypeText,
			measureType: storage.MeasureTypeNominal,
		}, nil

	case *BooleanNode:
		return &Literal{
			value:       Bool(n.Value),
			dataType:    storage.DataTypeInteger,
			measureType: storage.MeasureTypeNominal,
			levels:      BooleanLevels(),
		}, nil

	case *ExcludedNode:
		return &Literal{
			value:       ExcludedValue(),
			dataType:    storage.DataTypeInteger,
			measureType: storage.MeasureTypeNominal,
		}, nil

	case *NameNode:
		col, ok := b.resolver.ColumnByName(n.Name)
		if !ok {
			return nil, newNameError(n.Name, "Column '%s' does not exist in the dataset", n.Name)
		}
		return &ColumnRef{ID: col.ID(), Name: col.Name(), resolver: b.resolver}, nil

	case *ColumnIDNode:
		col, ok := b.resolver.ColumnByID(n.ID)
		if !ok {
			return nil, newNameError("", "Column %d does not exist in the dataset", n.ID)
		}
		return &ColumnRef{ID: n.ID, Name: col.Name(), resolver: b.resolver}, nil

	case *BinaryOpNode:
		left, err := b.bind(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.bind(n.Right)
		if err != nil {
			return nil, err
		}
		if n.Op.IsArithmetic() && (left.DataType() == storage.DataTypeText || right.DataType() == storage.DataTypeText) {
			return nil, newTypeError("Cannot apply '%s' to text", n.Op)
		}
		return adopt(&BinaryOperation{Op: n.Op, Left: left, Right: right}, left, right), nil

	case *UnaryOpNode:
		operand, err := b.bind(n.Operand)
		if err != nil {
			return nil, err
		}
		if n.Op == UnaryOpMinus && operand.DataType() == storage.DataTypeText {
			return nil, newTypeError("Cannot apply '-' to text")
		}
		return adopt(&UnaryOperation{Op: n.Op, Operand: operand}, operand), nil

	case *FunctionCallNode:
		name := strings.ToUpper(n.Name)
		sig, ok := functions[name]
		if !ok {
			return nil, newNameError(n.Name, "'%s' is not a known function", n.Name)
		}
		if len(n.Args) < sig.minArgs || (sig.maxArgs >= 0 && len(n.Args) > sig.maxArgs) {
			return nil, arityError(name, sig, len(n.Args))
		}
		args := make([]Node, len(n.Args))
		for i, arg := range n.Args {
			bound, err := b.bind(arg)
			if err != nil {
				return nil, err
			}
			args[i] = bound
		}
		call := &Call{
			Name:   name,
			Args:   args,
			Guards: append([]int(nil), n.Guards...),
			sig:    sig,
			fns:    b.fns,
		}
		return adopt(call, args...), nil
	}

	return nil, &ValueError{Message: "unsupported formula element"}
}
