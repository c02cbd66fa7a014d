package compute

import (
	"strings"

	"github.com/pkg/errors"
)

// Check validates a syntax tree before binding. self is the name of the
// column the formula belongs to; reading it is a circular reference. Check
// never modifies the tree.
func Check(self string, n SyntaxNode, r Resolver) error {
	var err error
	WalkSyntax(n, func(s SyntaxNode) bool {
		if err != nil {
			return false
		}
		err = checkNode(self, s, r)
		return err == nil
	})
	return err
}

func checkNode(self string, n SyntaxNode, r Resolver) error {
	switch n := n.(type) {
	case *NameNode:
		if self != "" && n.Name == self {
			return errors.Wrapf(ErrCircularReference, "formula refers to its own column %q", self)
		}
		if r != nil {
			if _, ok := r.ColumnByName(n.Name); !ok {
				return newNameError(n.Name, "Column '%s' does not exist in the dataset", n.Name)
			}
		}

	case *FunctionCallNode:
		name := strings.ToUpper(n.Name)
		sig, ok := functions[name]
		if !ok {
			return newNameError(n.Name, "'%s' is not a known function", n.Name)
		}
		if len(n.Args) < sig.minArgs || (sig.maxArgs >= 0 && len(n.Args) > sig.maxArgs) {
			return arityError(name, sig, len(n.Args))
		}

	case *BinaryOpNode:
		if !n.Op.IsArithmetic() {
			break
		}
		if isTextLiteral(n.Left) || isTextLiteral(n.Right) {
			return newTypeError("Cannot apply '%s' to text", n.Op)
		}

	case *UnaryOpNode:
		if n.Op != UnaryOpNot && isTextLiteral(n.Operand) {
			return newTypeError("Cannot apply '%s' to text", strings.TrimSpace(n.Op.String()))
		}
	}
	return nil
}

func isTextLiteral(n SyntaxNode) bool {
	_, ok := n.(*StringNode)
	return ok
}

func arityError(name string, sig signature, given int) error {
	switch {
	case sig.maxArgs == sig.minArgs:
		return newTypeError("%s() takes %d argument(s) (%d given)", name, sig.minArgs, given)
	case sig.maxArgs < 0:
		return newTypeError("%s() takes at least %d argument(s) (%d given)", name, sig.minArgs, given)
	default:
		return newTypeError("%s() takes %d to %d arguments (%d given)", name, sig.minArgs, sig.maxArgs, given)
	}
}
