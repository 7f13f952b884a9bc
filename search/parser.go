// Package search implements the log query language: a tokenizer and parser
// producing a filter expression tree, an evaluator matching trees against
// log records, and a store-backed executor that streams matching records.
package search

import (
	"fmt"
	"strings"

	"github.com/borelli28/SIEM/core"
)

// ParseError describes a malformed query string. Pos is the byte offset of
// the offending input.
type ParseError struct {
	Reason string
	Pos    int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Reason)
}

func parseErrorf(pos int, format string, args ...interface{}) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...), Pos: pos}
}

// TokenType represents the type of token.
type TokenType int

const (
	TokenField TokenType = iota
	TokenOperator
	TokenValue
	TokenLogic
	TokenEOF
)

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// NodeType represents expression tree node types.
type NodeType int

const (
	NodeCondition NodeType = iota
	NodeLogical
)

// ASTNode is a node in the filter expression tree: either a single
// field/operator/value condition or a logical AND/OR combination.
type ASTNode struct {
	Type     NodeType
	Field    string
	Operator string
	Value    string
	Logic    string // AND, OR
	Left     *ASTNode
	Right    *ASTNode
}

// Operators supported in conditions.
const (
	OpEquals    = "="
	OpNotEquals = "!="
	OpGreater   = ">"
	OpLess      = "<"
)

var validOperators = map[string]bool{
	OpEquals:    true,
	OpNotEquals: true,
	OpGreater:   true,
	OpLess:      true,
}

// Parser parses log search queries.
//
// Grammar:
//
//	expr := term (("AND"|"OR") term)*
//	term := field op quotedValue
//	op   := "=" | "!=" | ">" | "<"
//
// AND and OR are case-insensitive and chain strictly left to right with no
// precedence or parenthesized grouping; the tree is left-associative.
// Field names are validated case-sensitively against the LogRecord
// allow-list at parse time.
type Parser struct {
	input   string
	tokens  []Token
	current int
}

// NewParser creates a new parser.
func NewParser(query string) *Parser {
	return &Parser{input: strings.TrimSpace(query)}
}

// Parse parses the query and returns the expression tree.
func (p *Parser) Parse() (*ASTNode, error) {
	if p.input == "" {
		return nil, parseErrorf(0, "empty query")
	}

	if err := p.tokenize(); err != nil {
		return nil, err
	}

	ast, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, parseErrorf(tok.Pos, "unexpected token %q after expression", tok.Value)
	}

	return ast, nil
}

// tokenize breaks the input into tokens.
func (p *Parser) tokenize() error {
	input := p.input
	pos := 0

	for pos < len(input) {
		c := input[pos]

		// Skip whitespace
		if c == ' ' || c == '\t' || c == '\n' {
			pos++
			continue
		}

		// Words: logical keywords or field names
		if isAlpha(c) || c == '_' {
			start := pos
			for pos < len(input) && isWordChar(input[pos]) {
				pos++
			}
			word := input[start:pos]
			switch strings.ToUpper(word) {
			case "AND":
				p.tokens = append(p.tokens, Token{Type: TokenLogic, Value: "AND", Pos: start})
			case "OR":
				p.tokens = append(p.tokens, Token{Type: TokenLogic, Value: "OR", Pos: start})
			default:
				p.tokens = append(p.tokens, Token{Type: TokenField, Value: word, Pos: start})
			}
			continue
		}

		// Operators
		if c == '=' || c == '!' || c == '>' || c == '<' {
			start := pos
			for pos < len(input) && strings.ContainsRune("=!><", rune(input[pos])) {
				pos++
			}
			op := input[start:pos]
			if !validOperators[op] {
				return parseErrorf(start, "invalid operator %q", op)
			}
			p.tokens = append(p.tokens, Token{Type: TokenOperator, Value: op, Pos: start})
			continue
		}

		// Quoted values
		if c == '"' {
			start := pos
			pos++
			for pos < len(input) && input[pos] != '"' {
				pos++
			}
			if pos >= len(input) {
				return parseErrorf(start, "unterminated string literal")
			}
			p.tokens = append(p.tokens, Token{Type: TokenValue, Value: input[start+1 : pos], Pos: start})
			pos++ // closing quote
			continue
		}

		return parseErrorf(pos, "unexpected character %q", c)
	}

	p.tokens = append(p.tokens, Token{Type: TokenEOF, Pos: len(input)})
	return nil
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9') || c == '_' || c == '.'
}

// parseExpression parses left-to-right AND/OR chains of conditions.
func (p *Parser) parseExpression() (*ASTNode, error) {
	left, err := p.parseCondition()
	if err != nil {
		return nil, err
	}

	for p.check(TokenLogic) {
		logic := p.advance().Value
		right, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		left = &ASTNode{
			Type:  NodeLogical,
			Logic: logic,
			Left:  left,
			Right: right,
		}
	}

	return left, nil
}

// parseCondition parses a single field/operator/value condition.
func (p *Parser) parseCondition() (*ASTNode, error) {
	tok := p.peek()
	if tok.Type != TokenField {
		return nil, parseErrorf(tok.Pos, "expected field name, got %q", tok.Value)
	}
	p.advance()
	field := tok.Value

	if !core.IsQueryableField(field) {
		return nil, parseErrorf(tok.Pos, "unknown field %q", field)
	}

	opTok := p.peek()
	if opTok.Type != TokenOperator {
		return nil, parseErrorf(opTok.Pos, "expected operator after field %q", field)
	}
	p.advance()

	valTok := p.peek()
	if valTok.Type != TokenValue {
		return nil, parseErrorf(valTok.Pos, "expected quoted value after operator %q", opTok.Value)
	}
	p.advance()

	return &ASTNode{
		Type:     NodeCondition,
		Field:    field,
		Operator: opTok.Value,
		Value:    valTok.Value,
	}, nil
}

// Helper methods

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != TokenEOF {
		p.current++
	}
	return tok
}

func (p *Parser) peek() Token {
	if p.current >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: len(p.input)}
	}
	return p.tokens[p.current]
}
