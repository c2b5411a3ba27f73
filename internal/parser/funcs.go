package parser

import (
	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/lexer"
)

// parseFunctionBody parses a `{ ... }` statement list as a BlockStmt, used
// for function/method bodies and arrow functions with a block body alike.
func (p *Parser) parseFunctionBody() ast.NodeID {
	return p.parseBlockStatement()
}

func (p *Parser) parseBlockStatement() ast.NodeID {
	start := p.tok.Start
	p.expectPunct("{")
	var stmts []ast.NodeID
	for !p.isPunct("}") && p.tok.Type != lexer.EOF {
		stmts = append(stmts, p.parseStatementListItem())
	}
	p.expectPunct("}")
	return p.tree.New(ast.Node{Kind: ast.KindBlockStmt, Children: stmts, Start: start, End: p.tok.End})
}

// parseFunctionExpr parses `function` [`*`] [name] `(` params `)` `{` body
// `}`, called after the leading `async` keyword (if any) has already been
// consumed by the caller.
func (p *Parser) parseFunctionExpr(isAsync bool) ast.NodeID {
	start := p.tok.Start
	p.advance() // 'function'
	isGenerator := false
	if p.isPunct("*") {
		isGenerator = true
		p.advance()
	}
	var id ast.NodeID = ast.Empty
	if p.tok.Type == lexer.Identifier {
		idStart := p.tok.Start
		name := p.tok.Raw
		p.advance()
		id = p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: idStart, End: p.tok.Start})
	}
	wasGen, wasAsync, wasFn := p.inGenerator, p.inAsync, p.inFunction
	p.inGenerator, p.inAsync, p.inFunction = isGenerator, isAsync, true
	params := p.parseParams()
	body := p.parseFunctionBody()
	p.inGenerator, p.inAsync, p.inFunction = wasGen, wasAsync, wasFn
	flags := ast.Flag(0)
	if isAsync {
		flags |= ast.FlagAsync
	}
	if isGenerator {
		flags |= ast.FlagGenerator
	}
	return p.tree.New(ast.Node{Kind: ast.KindFunctionExpr, Id: id, Children: params, Body: body, Flags: flags, Start: start, End: p.tree.Get(body).End})
}

// parseFunctionDeclaration parses the statement-position form, requiring a
// binding name.
func (p *Parser) parseFunctionDeclaration(isAsync bool) ast.NodeID {
	start := p.tok.Start
	p.advance() // 'function'
	isGenerator := false
	if p.isPunct("*") {
		isGenerator = true
		p.advance()
	}
	idStart := p.tok.Start
	name := p.tok.Raw
	if p.tok.Type != lexer.Identifier {
		p.errorf("expected function name, got %q", p.tok.Raw)
	}
	p.advance()
	id := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: idStart, End: p.tok.Start})
	wasGen, wasAsync, wasFn := p.inGenerator, p.inAsync, p.inFunction
	p.inGenerator, p.inAsync, p.inFunction = isGenerator, isAsync, true
	params := p.parseParams()
	body := p.parseFunctionBody()
	p.inGenerator, p.inAsync, p.inFunction = wasGen, wasAsync, wasFn
	flags := ast.Flag(0)
	if isAsync {
		flags |= ast.FlagAsync
	}
	if isGenerator {
		flags |= ast.FlagGenerator
	}
	return p.tree.New(ast.Node{Kind: ast.KindFunctionDeclaration, Id: id, Children: params, Body: body, Flags: flags, Start: start, End: p.tree.Get(body).End})
}

/* -------------------------------------------------------------------------
   Classes (spec.md §8 scenario 6: `extends`/`extends null`, private names)
   ------------------------------------------------------------------------- */

func (p *Parser) parseClassExpr() ast.NodeID  { return p.parseClassLike(ast.KindClassExpr) }
func (p *Parser) parseClassDeclaration() ast.NodeID {
	return p.parseClassLike(ast.KindClassDeclaration)
}

func (p *Parser) parseClassLike(kind ast.Kind) ast.NodeID {
	start := p.tok.Start
	p.advance() // 'class'
	var id ast.NodeID = ast.Empty
	if p.tok.Type == lexer.Identifier {
		idStart := p.tok.Start
		name := p.tok.Raw
		p.advance()
		id = p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: idStart, End: p.tok.Start})
	}
	var superClass ast.NodeID = ast.Empty
	flags := ast.Flag(0)
	if p.isKeyword("extends") {
		flags |= ast.FlagDerivedClass
		p.advance()
		if p.isKeyword("null") {
			flags |= ast.FlagExtendsNull
			p.advance()
		} else {
			superClass = p.parseLeftHandSide()
		}
	}
	body := p.parseClassBody()
	return p.tree.New(ast.Node{Kind: kind, Id: id, SuperClass: superClass, Body: body, Flags: flags, Start: start, End: p.tree.Get(body).End})
}

func (p *Parser) parseClassBody() ast.NodeID {
	start := p.tok.Start
	p.expectPunct("{")
	var members []ast.NodeID
	for !p.isPunct("}") && p.tok.Type != lexer.EOF {
		if p.isPunct(";") {
			p.advance()
			continue
		}
		members = append(members, p.parseClassMember())
	}
	p.expectPunct("}")
	return p.tree.New(ast.Node{Kind: ast.KindClassBody, Children: members, Start: start, End: p.tok.End})
}

func (p *Parser) parseClassMember() ast.NodeID {
	start := p.tok.Start
	flags := ast.Flag(0)
	if p.isKeyword("static") && !p.peekIsPropertyTerminator() && !p.peekIsClassMemberFieldEquals() {
		if p.peek().Type == lexer.Punctuator && p.peek().Raw == "{" {
			p.advance()
			body := p.parseBlockStatement()
			return p.tree.New(ast.Node{Kind: ast.KindMethodDefinition, Body: body, Flags: ast.FlagStatic, Start: start, End: p.tree.Get(body).End})
		}
		flags |= ast.FlagStatic
		p.advance()
	}
	isAsync, isGenerator := false, false
	if p.isContextualIdent("async") && !p.peekIsPropertyTerminator() {
		isAsync = true
		p.advance()
	}
	if p.isPunct("*") {
		isGenerator = true
		p.advance()
	}
	if (p.isContextualIdent("get") || p.isContextualIdent("set")) && !p.peekIsPropertyTerminator() {
		accessorKind := p.tok.Raw
		p.advance()
		key, computed := p.parsePropertyKey()
		value := p.parseMethodBody(isAsync, isGenerator)
		if accessorKind == "get" {
			flags |= ast.FlagGetter
		} else {
			flags |= ast.FlagSetter
		}
		if computed {
			flags |= ast.FlagComputed
		}
		return p.tree.New(ast.Node{Kind: ast.KindMethodDefinition, Property: key, Right: value, Flags: flags | ast.FlagMethod, Start: start, End: p.tree.Get(value).End})
	}
	key, computed := p.parsePropertyKey()
	if computed {
		flags |= ast.FlagComputed
	}
	if p.isPunct("(") {
		value := p.parseMethodBody(isAsync, isGenerator)
		if isAsync {
			flags |= ast.FlagAsync
		}
		if isGenerator {
			flags |= ast.FlagGenerator
		}
		return p.tree.New(ast.Node{Kind: ast.KindMethodDefinition, Property: key, Right: value, Flags: flags | ast.FlagMethod, Start: start, End: p.tree.Get(value).End})
	}
	// Field definition, with or without an initializer.
	var init ast.NodeID = ast.Empty
	if p.isPunct("=") {
		p.advance()
		init = p.parseAssignment()
	}
	p.consumeSemicolon()
	end := p.tok.End
	if init != ast.Empty {
		end = p.tree.Get(init).End
	}
	return p.tree.New(ast.Node{Kind: ast.KindPropertyDefinition, Property: key, Right: init, Flags: flags, Start: start, End: end})
}

func (p *Parser) peekIsClassMemberFieldEquals() bool {
	n := p.peek()
	return n.Type == lexer.Punctuator && n.Raw == "="
}
