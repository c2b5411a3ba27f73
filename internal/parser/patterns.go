package parser

import (
	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/lexer"
)

// parserSnapshot captures enough state to undo speculative parsing, used by
// tryParseArrow to implement the `(` cover grammar (a parenthesized
// expression vs. an arrow parameter list) without a true tokenizer
// checkpoint/restore API: internal/lexer.Lexer is a small value type, so
// copying it wholesale is cheap.
type parserSnapshot struct {
	lex      lexer.Lexer
	tok      lexer.Token
	peeked   *lexer.Token
	diagLen  int
}

func (p *Parser) snapshot() parserSnapshot {
	return parserSnapshot{lex: *p.lex, tok: p.tok, peeked: p.peeked, diagLen: len(p.diagnostics)}
}

func (p *Parser) restore(s parserSnapshot) {
	*p.lex = s.lex
	p.tok = s.tok
	p.peeked = s.peeked
	p.diagnostics = p.diagnostics[:s.diagLen]
}

// tryParseArrow attempts to parse an arrow function starting at the current
// token, restoring all state and reporting ok=false if it turns out not to
// be one (spec.md §9 cover-grammar open question: implemented via
// speculative parse + restore rather than a unified grammar).
func (p *Parser) tryParseArrow() (ast.NodeID, bool) {
	if p.tok.Type != lexer.Identifier && !p.isPunct("(") {
		return ast.Empty, false
	}
	snap := p.snapshot()
	start := p.tok.Start
	isAsync := false
	if p.isContextualIdent("async") {
		p.advance()
		if p.tok.NewlineBefore {
			p.restore(snap)
			return ast.Empty, false
		}
		isAsync = true
	}
	if p.tok.Type == lexer.Identifier {
		nxt := p.peek()
		if nxt.Type == lexer.Punctuator && nxt.Raw == "=>" && !nxt.NewlineBefore {
			pstart := p.tok.Start
			name := p.tok.Raw
			p.advance()
			pend := p.tok.Start
			param := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: pstart, End: pend})
			p.advance() // '=>'
			id, _ := p.finishArrow(start, []ast.NodeID{param}, isAsync)
			return id, true
		}
		p.restore(snap)
		return ast.Empty, false
	}
	if !p.isPunct("(") {
		p.restore(snap)
		return ast.Empty, false
	}
	params, ok := p.tryParseArrowParams()
	if !ok || !p.isPunct("=>") || p.tok.NewlineBefore {
		p.restore(snap)
		return ast.Empty, false
	}
	p.advance() // '=>'
	id, _ := p.finishArrow(start, params, isAsync)
	return id, true
}

func (p *Parser) finishArrow(start int, params []ast.NodeID, isAsync bool) (ast.NodeID, bool) {
	wasGen, wasAsync := p.inGenerator, p.inAsync
	p.inGenerator, p.inAsync = false, isAsync
	var body ast.NodeID
	if p.isPunct("{") {
		body = p.parseFunctionBody()
	} else {
		body = p.parseAssignment()
	}
	p.inGenerator, p.inAsync = wasGen, wasAsync
	flags := ast.FlagArrow
	if isAsync {
		flags |= ast.FlagAsync
	}
	end := p.tree.Get(body).End
	return p.tree.New(ast.Node{Kind: ast.KindArrowFunctionExpr, Children: params, Body: body, Flags: flags, Start: start, End: end}), true
}

// tryParseArrowParams speculatively parses `(` binding-element, ... `)`,
// failing (rather than reporting an error) the moment it sees content that
// cannot be a parameter, so the caller can fall back to parsing the same
// tokens as a parenthesized expression.
func (p *Parser) tryParseArrowParams() ([]ast.NodeID, bool) {
	p.advance() // '('
	var params []ast.NodeID
	for !p.isPunct(")") && p.tok.Type != lexer.EOF {
		if p.isPunct("...") {
			start := p.tok.Start
			p.advance()
			target, ok := p.tryBindingTarget()
			if !ok {
				return nil, false
			}
			params = append(params, p.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: target, Start: start, End: p.tree.Get(target).End}))
			break
		}
		target, ok := p.tryBindingTarget()
		if !ok {
			return nil, false
		}
		if p.isPunct("=") {
			p.advance()
			def := p.parseAssignment()
			target = p.tree.New(ast.Node{Kind: ast.KindAssignmentPattern, Left: target, Right: def, Start: p.tree.Get(target).Start, End: p.tree.Get(def).End})
		}
		params = append(params, target)
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	if !p.isPunct(")") {
		return nil, false
	}
	p.advance()
	return params, true
}

func (p *Parser) tryBindingTarget() (ast.NodeID, bool) {
	switch {
	case p.tok.Type == lexer.Identifier:
		start := p.tok.Start
		name := p.tok.Raw
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: start, End: p.tok.Start}), true
	case p.isPunct("["):
		return p.parseArrayPattern(), true
	case p.isPunct("{"):
		return p.parseObjectPattern(), true
	default:
		return ast.Empty, false
	}
}

// parseParams parses a non-speculative `(` parameter-list `)`, used by
// ordinary function/method declarations where there is no cover-grammar
// ambiguity to resolve.
func (p *Parser) parseParams() []ast.NodeID {
	p.expectPunct("(")
	var params []ast.NodeID
	for !p.isPunct(")") && p.tok.Type != lexer.EOF {
		if p.isPunct("...") {
			start := p.tok.Start
			p.advance()
			target := p.parseBindingTarget()
			params = append(params, p.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: target, Start: start, End: p.tree.Get(target).End}))
			break
		}
		target := p.parseBindingTarget()
		if p.isPunct("=") {
			p.advance()
			def := p.parseAssignment()
			target = p.tree.New(ast.Node{Kind: ast.KindAssignmentPattern, Left: target, Right: def, Start: p.tree.Get(target).Start, End: p.tree.Get(def).End})
		}
		params = append(params, target)
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	p.expectPunct(")")
	return params
}

// parseBindingTarget parses a single non-speculative BindingIdentifier or
// destructuring pattern (spec.md §9 open question: destructuring patterns
// in bindings — implemented).
func (p *Parser) parseBindingTarget() ast.NodeID {
	if p.isPunct("[") {
		return p.parseArrayPattern()
	}
	if p.isPunct("{") {
		return p.parseObjectPattern()
	}
	start := p.tok.Start
	name := p.tok.Raw
	if p.tok.Type != lexer.Identifier {
		p.errorf("expected binding identifier, got %q", p.tok.Raw)
	}
	p.advance()
	return p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: start, End: p.tok.Start})
}

func (p *Parser) parseArrayPattern() ast.NodeID {
	start := p.tok.Start
	p.advance() // '['
	var elems []ast.NodeID
	for !p.isPunct("]") && p.tok.Type != lexer.EOF {
		if p.isPunct(",") {
			elems = append(elems, ast.Empty)
			p.advance()
			continue
		}
		if p.isPunct("...") {
			rstart := p.tok.Start
			p.advance()
			target := p.parseBindingTarget()
			elems = append(elems, p.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: target, Start: rstart, End: p.tree.Get(target).End}))
			break
		}
		target := p.parseBindingTarget()
		if p.isPunct("=") {
			p.advance()
			def := p.parseAssignment()
			target = p.tree.New(ast.Node{Kind: ast.KindAssignmentPattern, Left: target, Right: def, Start: p.tree.Get(target).Start, End: p.tree.Get(def).End})
		}
		elems = append(elems, target)
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	p.expectPunct("]")
	return p.tree.New(ast.Node{Kind: ast.KindArrayPattern, Children: elems, Start: start, End: p.tok.End})
}

func (p *Parser) parseObjectPattern() ast.NodeID {
	start := p.tok.Start
	p.advance() // '{'
	var props []ast.NodeID
	for !p.isPunct("}") && p.tok.Type != lexer.EOF {
		if p.isPunct("...") {
			rstart := p.tok.Start
			p.advance()
			target := p.parseBindingTarget()
			props = append(props, p.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: target, Start: rstart, End: p.tree.Get(target).End}))
			break
		}
		pstart := p.tok.Start
		key, computed := p.parsePropertyKey()
		flags := ast.Flag(0)
		if computed {
			flags |= ast.FlagComputed
		}
		var value ast.NodeID
		if p.isPunct(":") {
			p.advance()
			value = p.parseBindingTarget()
		} else {
			flags |= ast.FlagShorthand
			value = key
		}
		if p.isPunct("=") {
			p.advance()
			def := p.parseAssignment()
			value = p.tree.New(ast.Node{Kind: ast.KindAssignmentPattern, Left: value, Right: def, Start: p.tree.Get(value).Start, End: p.tree.Get(def).End})
		}
		props = append(props, p.tree.New(ast.Node{Kind: ast.KindProperty, Property: key, Right: value, Flags: flags, Start: pstart, End: p.tree.Get(value).End}))
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	p.expectPunct("}")
	return p.tree.New(ast.Node{Kind: ast.KindObjectPattern, Children: props, Start: start, End: p.tok.End})
}

// toPattern reinterprets an already-parsed expression as an assignment
// target, needed because `[a, b] = x` and `{a, b} = x` parse their left
// side through the ordinary array/object literal grammar (the cover
// grammar again, this time for destructuring assignment rather than arrow
// parameters). Called with isPatternContext=true from parseAssignment when
// the next token is an assignment operator, and from parseForStatement for a
// for-in/for-of head that is not a declaration.
func (p *Parser) toPattern(node ast.NodeID, isPatternContext bool) ast.NodeID {
	if !isPatternContext || node == ast.Empty {
		return node
	}
	n := *p.tree.Get(node)
	switch n.Kind {
	case ast.KindArrayExpr:
		elems := make([]ast.NodeID, len(n.Children))
		for i, c := range n.Children {
			if c == ast.Empty {
				continue
			}
			elems[i] = p.toPatternElement(c)
		}
		return p.tree.New(ast.Node{Kind: ast.KindArrayPattern, Children: elems, Start: n.Start, End: n.End})
	case ast.KindObjectExpr:
		props := make([]ast.NodeID, len(n.Children))
		for i, c := range n.Children {
			props[i] = p.toPatternProperty(c)
		}
		return p.tree.New(ast.Node{Kind: ast.KindObjectPattern, Children: props, Start: n.Start, End: n.End})
	case ast.KindAssignExpr:
		if n.Operator == "=" {
			left := p.toPattern(n.Left, true)
			return p.tree.New(ast.Node{Kind: ast.KindAssignmentPattern, Left: left, Right: n.Right, Start: n.Start, End: n.End})
		}
		return node
	default:
		return node
	}
}

func (p *Parser) toPatternElement(c ast.NodeID) ast.NodeID {
	n := *p.tree.Get(c)
	if n.Kind == ast.KindSpreadElement {
		return p.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: p.toPattern(n.Argument, true), Start: n.Start, End: n.End})
	}
	return p.toPattern(c, true)
}

func (p *Parser) toPatternProperty(c ast.NodeID) ast.NodeID {
	n := *p.tree.Get(c)
	if n.Kind == ast.KindSpreadElement {
		return p.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: p.toPattern(n.Argument, true), Start: n.Start, End: n.End})
	}
	value := p.toPattern(n.Right, true)
	return p.tree.New(ast.Node{Kind: ast.KindProperty, Property: n.Property, Right: value, Flags: n.Flags, Start: n.Start, End: n.End})
}
