package compute

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses tokens into a syntax tree
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses formula text. blank text yields a nil tree and
// no error.
func Parse(text string) (SyntaxNode, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	tokens, err := NewLexer(text).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into a syntax tree
func (p *Parser) Parse() (SyntaxNode, error) {
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return nil, nil
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errorf(tok, "unexpected token after expression: %s", tok.Value)
	}

	return node, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Pos: tok.Pos}
}

func (p *Parser) isBinaryOp(values ...string) (string, bool) {
	tok := p.peek()
	if tok.Type != TokenBinaryOp {
		return "", false
	}
	for _, v := range values {
		if tok.Value == v {
			return v, true
		}
	}
	return "", false
}

func newBinary(op BinaryOp, left, right SyntaxNode) *BinaryOpNode {
	return &BinaryOpNode{
		Op:       op,
		Left:     left,
		Right:    right,
		Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
	}
}

// parseOr handles the or keyword (lowest precedence)
func (p *Parser) parseOr() (SyntaxNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isBinaryOp("or"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = newBinary(BinOpOr, left, right)
	}
}

// parseAnd handles the and keyword
func (p *Parser) parseAnd() (SyntaxNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isBinaryOp("and"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = newBinary(BinOpAnd, left, right)
	}
}

// parseNot handles the not keyword, which binds looser than comparisons
func (p *Parser) parseNot() (SyntaxNode, error) {
	tok := p.peek()
	if tok.Type == TokenUnaryPrefixOp && tok.Value == "not" {
		p.pos++
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{
			Op:       UnaryOpNot,
			Operand:  operand,
			Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
		}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]BinaryOp{
	"==": BinOpEqual,
	"!=": BinOpNotEqual,
	"<":  BinOpLess,
	"<=": BinOpLessEqual,
	">":  BinOpGreater,
	">=": BinOpGreaterEqual,
}

// parseComparison handles comparison operators
func (p *Parser) parseComparison() (SyntaxNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	for {
		value, ok := p.isBinaryOp("==", "!=", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = newBinary(comparisonOps[value], left, right)
	}
}

// parseAddition parses + and - chains
func (p *Parser) parseAddition() (SyntaxNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for {
		value, ok := p.isBinaryOp("+", "-")
		if !ok {
			return left, nil
		}
		op := BinOpAdd
		if value == "-" {
			op = BinOpSubtract
		}
		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}
}

// parseMultiplication parses *, / and % chains
func (p *Parser) parseMultiplication() (SyntaxNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		value, ok := p.isBinaryOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		var op BinaryOp
		switch value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			op = BinOpModulo
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}
}

// parseUnary handles prefix operators. they bind looser than ^, so -2^2
// is -(2^2).
func (p *Parser) parseUnary() (SyntaxNode, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePower()
	}

	var op UnaryOp
	switch tok.Value {
	case "+":
		op = UnaryOpPlus
	case "-":
		op = UnaryOpMinus
	default:
		op = UnaryOpNot
	}

	p.pos++
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePower handles exponentiation, which is right-associative
func (p *Parser) parsePower() (SyntaxNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if _, ok := p.isBinaryOp("^"); ok {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return newBinary(BinOpPower, left, right), nil
	}

	return left, nil
}

// parsePrimary handles literals, names, calls, and parentheses
func (p *Parser) parsePrimary() (SyntaxNode, error) {
	tok := p.peek()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		return p.parseNumber(tok)

	case TokenString:
		p.pos++
		return &StringNode{
			Value:    tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value)) + 2},
		}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{
			Value:    tok.Value == "TRUE",
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenIdentifier:
		p.pos++
		return &NameNode{
			Name:     tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))},
		}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, p.errorf(p.peek(), "expected closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, p.errorf(tok, "unexpected end of formula")

	default:
		return nil, p.errorf(tok, "unexpected token: %s", tok.Value)
	}
}

func (p *Parser) parseNumber(tok Token) (SyntaxNode, error) {
	pos := NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)}
	if !strings.ContainsAny(tok.Value, ".eE") {
		if i, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return &NumberNode{Value: float64(i), IsInteger: true, Position: pos}, nil
		}
	}
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, p.errorf(tok, "invalid number: %s", tok.Value)
	}
	return &NumberNode{Value: f, Position: pos}, nil
}

// parseFunctionCall parses NAME(arg, ...)
func (p *Parser) parseFunctionCall() (SyntaxNode, error) {
	funcTok := p.peek()
	p.pos++

	if p.peek().Type != TokenLeftParen {
		return nil, p.errorf(p.peek(), "expected '(' after function name")
	}
	p.pos++

	args := []SyntaxNode{}
	if p.peek().Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.peek()
		if tok.Type == TokenRightParen {
			p.pos++
			break
		}
		if tok.Type != TokenComma {
			return nil, p.errorf(tok, "expected ',' or ')' in function arguments")
		}
		p.pos++
	}

	return &FunctionCallNode{
		Name:     funcTok.Value,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}
