package compute

import (
	"strings"
)

// Normalize canonicalizes a syntax tree: function names are upper-cased,
// unary plus is dropped and negated number literals are folded. the tree
// is rewritten in place and the new root returned.
func Normalize(n SyntaxNode) SyntaxNode {
	switch n := n.(type) {
	case *FunctionCallNode:
		n.Name = strings.ToUpper(n.Name)
		for i, arg := range n.Args {
			n.Args[i] = Normalize(arg)
		}
		return n

	case *BinaryOpNode:
		n.Left = Normalize(n.Left)
		n.Right = Normalize(n.Right)
		return n

	case *UnaryOpNode:
		n.Operand = Normalize(n.Operand)
		switch n.Op {
		case UnaryOpPlus:
			return n.Operand
		case UnaryOpMinus:
			if num, ok := n.Operand.(*NumberNode); ok {
				num.Value = -num.Value
				num.Position.Start = n.Position.Start
				return num
			}
		}
		return n
	}
	return n
}

// Filterify attaches guards to every column-wise call in the tree, so the
// aggregates only consider rows that earlier filters kept
func Filterify(n SyntaxNode, guards []int) {
	if len(guards) == 0 {
		return
	}
	WalkSyntax(n, func(s SyntaxNode) bool {
		if call, ok := s.(*FunctionCallNode); ok && IsColumnWise(call.Name) {
			call.Guards = append([]int(nil), guards...)
		}
		return true
	})
}

// WrapFilter makes a filter expression count a missing result as 0
func WrapFilter(n SyntaxNode) SyntaxNode {
	pos := n.GetPosition()
	return &FunctionCallNode{
		Name:     "IFMISS",
		Args:     []SyntaxNode{n, &NumberNode{Value: 0, IsInteger: true, Position: pos}},
		Position: pos,
	}
}

// GuardFilter makes a filter expression apply only to rows every guard
// column kept; other rows evaluate to the excluded marker
func GuardFilter(n SyntaxNode, guards []int) SyntaxNode {
	if len(guards) == 0 {
		return n
	}
	pos := n.GetPosition()
	conds := make([]SyntaxNode, len(guards))
	for i, id := range guards {
		conds[i] = &BinaryOpNode{
			Op:       BinOpEqual,
			Left:     &ColumnIDNode{ID: id, Position: pos},
			Right:    &NumberNode{Value: 1, IsInteger: true, Position: pos},
			Position: pos,
		}
	}
	return &FunctionCallNode{
		Name: "IF",
		Args: []SyntaxNode{
			&FunctionCallNode{Name: "AND", Args: conds, Position: pos},
			n,
			&ExcludedNode{Position: pos},
		},
		Position: pos,
	}
}
