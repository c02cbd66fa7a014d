package compute

import (
	"strings"
	"unicode"
)

// TokenType classifies a lexeme
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenIdentifier
	TokenFunction
	TokenUnaryPrefixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenError
)

// character classification constants
const (
	charNull       = 0
	charQuote      = '"'
	charApostrophe = '\''
	charBacktick   = '`'
	charBackslash  = '\\'
	charPercent    = '%'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
)

// TokenState is what the lexer last saw, used to reject impossible sequences
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterFunction
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
)

var operandTokens = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenIdentifier:    true,
	TokenFunction:      true,
	TokenLeftParen:     true,
	TokenUnaryPrefixOp: true,
}

// tokenTransitions lists the token types allowed after each state
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:         operandTokens,
	StateAfterOperator: operandTokens,
	StateAfterComma:    operandTokens,
	StateAfterValue: {
		TokenBinaryOp:   true,
		TokenRightParen: true,
		TokenComma:      true,
		TokenEOF:        true,
	},
	StateAfterFunction: {
		TokenLeftParen: true,
	},
	StateAfterLeftParen: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenIdentifier:    true,
		TokenFunction:      true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true,
		TokenRightParen:    true, // argument-less calls
	},
	StateAfterRightParen: {
		TokenBinaryOp:   true,
		TokenRightParen: true,
		TokenComma:      true,
		TokenEOF:        true,
	},
}

// keyword operators, matched case-insensitively
var keywordOps = map[string]TokenType{
	"and": TokenBinaryOp,
	"or":  TokenBinaryOp,
	"not": TokenUnaryPrefixOp,
}

// Token is a lexeme and the rune offset it starts at
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// Lexer tokenizes formula expressions. formulas have no leading '=' and
// refer to columns by bare or backtick-quoted name.
type Lexer struct {
	runes      []rune
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
}

// NewLexer returns a lexer over formula
func NewLexer(input string) *Lexer {
	return &Lexer{
		runes: []rune(input),
		state: StateStart,
	}
}

// Tokenize tokenizes the entire input. the returned slice always ends with
// an EOF token.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, &SyntaxError{Message: tok.Value, Pos: tok.Pos}
		}
		if !l.validateTransition(tok.Type) {
			if tok.Type == TokenEOF {
				return nil, &SyntaxError{Message: "unexpected end of formula", Pos: tok.Pos}
			}
			return nil, &SyntaxError{Message: "unexpected token: " + tok.Value, Pos: tok.Pos}
		}
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, &SyntaxError{Message: "unbalanced parentheses: missing closing parenthesis", Pos: l.pos}
	}

	return l.tokens, nil
}

// validateTransition reports whether tokenType may follow the current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState moves the lexer into the state that follows tokenType
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenNumber, TokenString, TokenBoolean, TokenIdentifier:
		l.state = StateAfterValue
	case TokenFunction:
		l.state = StateAfterFunction
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	}
}

// nextToken scans one token, skipping leading whitespace
func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote || ch == charApostrophe {
		return l.scanString(ch)
	}

	if ch == charBacktick {
		return l.scanQuotedName()
	}

	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret, charPercent, charLess, charGreater, charEqual, charExclaim:
		return l.scanBinaryOp()
	}

	if l.isIdentStart(ch) {
		return l.scanIdentifier()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) && unicode.IsSpace(l.current()) {
		l.pos++
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == charUnderscore
}

func (l *Lexer) isIdentPart(ch rune) bool {
	return l.isIdentStart(ch) || unicode.IsDigit(ch) || ch == charPeriod
}

// scanNumber scans integers, decimals and exponents such as 1.5e3
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod {
		l.pos++
		for l.isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !l.isDigit(l.current()) {
			l.pos = savedPos
		} else {
			for l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a string literal delimited by quote. a doubled quote or
// a backslash escapes the delimiter.
func (l *Lexer) scanString(quote rune) Token {
	startPos := l.pos
	l.pos++

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		switch {
		case ch == charBackslash && l.peek(1) == quote:
			result = append(result, quote)
			l.pos += 2
		case ch == quote && l.peek(1) == quote:
			result = append(result, quote)
			l.pos += 2
		case ch == quote:
			l.pos++
			return Token{Type: TokenString, Value: string(result), Pos: startPos}
		default:
			result = append(result, ch)
			l.pos++
		}
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanQuotedName scans a backtick-quoted column name, which may contain
// spaces and operator characters
func (l *Lexer) scanQuotedName() Token {
	startPos := l.pos
	l.pos++

	for l.pos < len(l.runes) && l.current() != charBacktick {
		l.pos++
	}
	if l.pos >= len(l.runes) {
		return Token{Type: TokenError, Value: "unclosed column name", Pos: startPos}
	}

	name := l.substring(startPos+1, l.pos)
	l.pos++
	if name == "" {
		return Token{Type: TokenError, Value: "empty column name", Pos: startPos}
	}
	return Token{Type: TokenIdentifier, Value: name, Pos: startPos}
}

// scanIdentifier scans column names, function names, keyword operators,
// and booleans
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos

	for l.pos < len(l.runes) && l.isIdentPart(l.current()) {
		l.pos++
	}

	value := l.substring(startPos, l.pos)
	lower := strings.ToLower(value)

	if lower == "true" || lower == "false" {
		return Token{Type: TokenBoolean, Value: strings.ToUpper(value), Pos: startPos}
	}

	// a function is a name followed by an open paren, allowing whitespace
	// between them. keywords in operand position, like NOT(x), are calls.
	save := l.pos
	l.skipWhitespace()
	call := l.current() == charLParen
	l.pos = save

	if tokenType, ok := keywordOps[lower]; ok && !(call && l.isUnaryContext()) {
		return Token{Type: tokenType, Value: lower, Pos: startPos}
	}

	if call {
		l.skipWhitespace()
		return Token{Type: TokenFunction, Value: value, Pos: startPos}
	}

	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}
}

// scanUnaryPrefixOrBinaryOp decides whether + or - is a sign or an
// operator from what precedes it
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// scanBinaryOp scans the comparison and arithmetic operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	two := func(value string) Token {
		l.pos++
		return Token{Type: TokenBinaryOp, Value: value, Pos: startPos}
	}

	switch ch {
	case charLess:
		if l.current() == charEqual {
			return two("<=")
		}
		if l.current() == charGreater {
			return two("!=")
		}
		return Token{Type: TokenBinaryOp, Value: "<", Pos: startPos}
	case charGreater:
		if l.current() == charEqual {
			return two(">=")
		}
		return Token{Type: TokenBinaryOp, Value: ">", Pos: startPos}
	case charEqual:
		if l.current() == charEqual {
			return two("==")
		}
		return Token{Type: TokenBinaryOp, Value: "==", Pos: startPos}
	case charExclaim:
		if l.current() == charEqual {
			return two("!=")
		}
		return Token{Type: TokenError, Value: "unexpected '!'", Pos: startPos}
	case charAsterisk:
		if l.current() == charAsterisk {
			return two("^")
		}
		return Token{Type: TokenBinaryOp, Value: "*", Pos: startPos}
	case charSlash:
		return Token{Type: TokenBinaryOp, Value: "/", Pos: startPos}
	case charCaret:
		return Token{Type: TokenBinaryOp, Value: "^", Pos: startPos}
	case charPercent:
		return Token{Type: TokenBinaryOp, Value: "%", Pos: startPos}
	}

	return Token{Type: TokenError, Value: "unknown operator", Pos: startPos}
}

// isUnaryContext reports whether an operand is expected next
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}
