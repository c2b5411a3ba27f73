// Package parser implements the Pratt expression parser and recursive-
// descent statement parser from spec.md §4.4, producing an internal/ast.Tree
// consumed by internal/compiler. Grounded in idiom (not code, since the
// teacher has no parser) on original_source/nova_parser/src/parser.rs for
// the arena-node/empty-sentinel convention and the ASI rule, translated
// into a conventional Go recursive-descent shape.
//
// © 2025 esvm authors. MIT License.
package parser

import (
	"fmt"

	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/lexer"
)

// Diagnostic is one parse error. Position is a byte offset into the source
// text that was parsed.
type Diagnostic struct {
	Message  string
	Position int
}

func (d Diagnostic) Error() string { return fmt.Sprintf("%d: %s", d.Position, d.Message) }

// Parser holds the token lookahead buffer and the tree under construction.
type Parser struct {
	lex  *lexer.Lexer
	tree *ast.Tree

	tok     lexer.Token // current token
	peeked  *lexer.Token

	inFunction   bool
	inLoop       bool
	inSwitch     bool
	inGenerator  bool
	inAsync      bool
	isModule     bool

	diagnostics []Diagnostic
}

// New constructs a Parser over src. isModule selects module-vs-script
// goal-symbol parsing (spec.md §4.8: only modules accept import/export).
func New(src string, isModule bool) *Parser {
	p := &Parser{lex: lexer.New(src), tree: ast.NewTree(), isModule: isModule}
	p.advance()
	return p
}

func (p *Parser) advance() {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	p.tok = p.lex.Next()
}

func (p *Parser) peek() lexer.Token {
	if p.peeked == nil {
		saved := p.tok
		next := p.lex.Next()
		p.peeked = &next
		p.tok = saved
	}
	return *p.peeked
}

func (p *Parser) errorf(format string, args ...any) {
	p.diagnostics = append(p.diagnostics, Diagnostic{Message: fmt.Sprintf(format, args...), Position: p.tok.Start})
}

// Diagnostics returns every parse error accumulated so far.
func (p *Parser) Diagnostics() []Diagnostic { return p.diagnostics }

func (p *Parser) isPunct(s string) bool {
	return p.tok.Type == lexer.Punctuator && p.tok.Raw == s
}

func (p *Parser) isKeyword(s string) bool {
	return p.tok.Type == lexer.Keyword && p.tok.Raw == s
}

// isContextualIdent matches an Identifier-typed token with the given text
// (async, of, get, set, as, from, ...), which the lexer never classifies as
// a Keyword since their meaning depends on position.
func (p *Parser) isContextualIdent(s string) bool {
	return p.tok.Type == lexer.Identifier && p.tok.Raw == s
}

func (p *Parser) expectPunct(s string) bool {
	if !p.isPunct(s) {
		p.errorf("expected %q, got %q", s, p.tok.Raw)
		return false
	}
	p.advance()
	return true
}

// expectContextualIdent consumes a contextual keyword such as `as` or
// `from` (tokenized as a plain Identifier, never a Keyword).
func (p *Parser) expectContextualIdent(s string) bool {
	if !p.isContextualIdent(s) {
		p.errorf("expected %q, got %q", s, p.tok.Raw)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expectKeyword(s string) bool {
	if !p.isKeyword(s) {
		p.errorf("expected %q, got %q", s, p.tok.Raw)
		return false
	}
	p.advance()
	return true
}

// consumeSemicolon implements spec.md §4.4's ASI: an explicit `;`, an
// implicit one before `}`/EOF, or one inserted because a line terminator
// separated this statement from the next token.
func (p *Parser) consumeSemicolon() {
	if p.isPunct(";") {
		p.advance()
		return
	}
	if p.isPunct("}") || p.tok.Type == lexer.EOF || p.tok.NewlineBefore {
		return
	}
	p.errorf("expected ';' (automatic semicolon insertion did not apply), got %q", p.tok.Raw)
}

// Tree returns the AST built so far; call after Parse{Script,Module}.
func (p *Parser) Tree() *ast.Tree { return p.tree }

// ParseScript parses the whole input as a Script goal symbol and returns
// the Program node.
func (p *Parser) ParseScript() ast.NodeID {
	return p.parseProgram()
}

// ParseModule parses the whole input as a Module goal symbol, accepting
// import/export declarations at the top level (spec.md §4.8).
func (p *Parser) ParseModule() ast.NodeID {
	p.isModule = true
	return p.parseProgram()
}

func (p *Parser) parseProgram() ast.NodeID {
	start := p.tok.Start
	var stmts []ast.NodeID
	for p.tok.Type != lexer.EOF {
		stmts = append(stmts, p.parseStatementListItem())
	}
	return p.tree.New(ast.Node{Kind: ast.KindProgram, Start: start, End: p.tok.End, Children: stmts})
}
