package parser

import (
	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/lexer"
)

// parseStatementListItem dispatches StatementListItem: Declaration or
// Statement (spec.md §4.4), plus, at module goal, import/export.
func (p *Parser) parseStatementListItem() ast.NodeID {
	switch {
	case p.isKeyword("function"):
		return p.parseFunctionDeclaration(false)
	case p.isContextualIdent("async") && p.peek().Type == lexer.Keyword && p.peek().Raw == "function" && !p.peek().NewlineBefore:
		p.advance()
		return p.parseFunctionDeclaration(true)
	case p.isKeyword("class"):
		return p.parseClassDeclaration()
	case p.isKeyword("const"), p.isKeyword("let") && p.letStartsDeclaration():
		return p.parseVariableStatement()
	case p.isKeyword("import") && p.isModule && !p.peekStartsImportCall():
		return p.parseImportDeclaration()
	case p.isKeyword("export") && p.isModule:
		return p.parseExportDeclaration()
	default:
		return p.parseStatement()
	}
}

// letStartsDeclaration disambiguates `let` the declaration keyword from
// `let` used as an ordinary identifier (legal in sloppy-mode scripts):
// treated as a declaration when followed by an identifier, `[`, or `{`.
func (p *Parser) letStartsDeclaration() bool {
	n := p.peek()
	if n.Type == lexer.Identifier {
		return true
	}
	return n.Type == lexer.Punctuator && (n.Raw == "[" || n.Raw == "{")
}

// peekStartsImportCall disambiguates `import(...)`/`import.meta` (an
// expression) from an ImportDeclaration.
func (p *Parser) peekStartsImportCall() bool {
	n := p.peek()
	return n.Type == lexer.Punctuator && (n.Raw == "(" || n.Raw == ".")
}

func (p *Parser) parseStatement() ast.NodeID {
	switch {
	case p.isPunct("{"):
		return p.parseBlockStatement()
	case p.isPunct(";"):
		start := p.tok.Start
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindEmptyStmt, Start: start, End: p.tok.End})
	case p.isKeyword("var"):
		return p.parseVariableStatement()
	case p.isKeyword("if"):
		return p.parseIfStatement()
	case p.isKeyword("for"):
		return p.parseForStatement()
	case p.isKeyword("while"):
		return p.parseWhileStatement()
	case p.isKeyword("do"):
		return p.parseDoWhileStatement()
	case p.isKeyword("return"):
		return p.parseReturnStatement()
	case p.isKeyword("break"):
		return p.parseBreakContinue(ast.KindBreakStmt)
	case p.isKeyword("continue"):
		return p.parseBreakContinue(ast.KindContinueStmt)
	case p.isKeyword("throw"):
		return p.parseThrowStatement()
	case p.isKeyword("try"):
		return p.parseTryStatement()
	case p.isKeyword("switch"):
		return p.parseSwitchStatement()
	case p.isKeyword("debugger"):
		start := p.tok.Start
		p.advance()
		p.consumeSemicolon()
		return p.tree.New(ast.Node{Kind: ast.KindDebuggerStmt, Start: start, End: p.tok.End})
	case p.isKeyword("function"):
		// Annex B sloppy-mode function-in-statement-position; accepted, not
		// block-scoped specially.
		return p.parseFunctionDeclaration(false)
	case p.isKeyword("class"):
		return p.parseClassDeclaration()
	case p.tok.Type == lexer.Identifier && p.peek().Type == lexer.Punctuator && p.peek().Raw == ":":
		return p.parseLabeledStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseExpressionStatement() ast.NodeID {
	start := p.tok.Start
	expr := p.parseExpression()
	p.consumeSemicolon()
	return p.tree.New(ast.Node{Kind: ast.KindExpressionStmt, Argument: expr, Start: start, End: p.tree.Get(expr).End})
}

func (p *Parser) parseLabeledStatement() ast.NodeID {
	start := p.tok.Start
	name := p.tok.Raw
	p.advance() // identifier
	label := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: start, End: p.tok.End})
	p.advance() // ':'
	body := p.parseStatement()
	return p.tree.New(ast.Node{Kind: ast.KindLabeledStmt, Label: label, Body: body, Start: start, End: p.tree.Get(body).End})
}

func (p *Parser) parseIfStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'if'
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	cons := p.parseStatement()
	var alt ast.NodeID = ast.Empty
	if p.isKeyword("else") {
		p.advance()
		alt = p.parseStatement()
	}
	end := p.tree.Get(cons).End
	if alt != ast.Empty {
		end = p.tree.Get(alt).End
	}
	return p.tree.New(ast.Node{Kind: ast.KindIfStmt, Test: test, Consequent: cons, Alternate: alt, Start: start, End: end})
}

func (p *Parser) parseWhileStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'while'
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	wasLoop := p.inLoop
	p.inLoop = true
	body := p.parseStatement()
	p.inLoop = wasLoop
	return p.tree.New(ast.Node{Kind: ast.KindWhileStmt, Test: test, Body: body, Start: start, End: p.tree.Get(body).End})
}

func (p *Parser) parseDoWhileStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'do'
	wasLoop := p.inLoop
	p.inLoop = true
	body := p.parseStatement()
	p.inLoop = wasLoop
	p.expectKeyword("while")
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	if p.isPunct(";") {
		p.advance()
	}
	return p.tree.New(ast.Node{Kind: ast.KindDoWhileStmt, Test: test, Body: body, Start: start, End: p.tok.End})
}

// parseForStatement covers the classic C-style for, for-in, and for-of
// forms, disambiguated after parsing the init clause.
func (p *Parser) parseForStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'for'
	p.expectPunct("(")

	var init ast.NodeID = ast.Empty
	declKind := ast.Flag(0)
	hasDecl := false
	switch {
	case p.isPunct(";"):
		// no init
	case p.isKeyword("var"), p.isKeyword("const"), p.isKeyword("let") && p.letStartsDeclaration():
		hasDecl = true
		if p.isKeyword("const") {
			declKind = ast.FlagVarConst
		} else if p.isKeyword("let") {
			declKind = ast.FlagVarLet
		}
		init = p.parseVariableDeclarationList(true)
	default:
		init = p.parseExpressionNoIn()
	}

	if p.isContextualIdent("of") || p.isKeyword("in") {
		isOf := p.isContextualIdent("of")
		p.advance()
		var right ast.NodeID
		if isOf {
			right = p.parseAssignment()
		} else {
			right = p.parseExpression()
		}
		p.expectPunct(")")
		wasLoop := p.inLoop
		p.inLoop = true
		body := p.parseStatement()
		p.inLoop = wasLoop
		left := init
		if !hasDecl {
			left = p.toPattern(init, true)
		}
		kind := ast.KindForInStmt
		if isOf {
			kind = ast.KindForOfStmt
		}
		return p.tree.New(ast.Node{Kind: kind, Left: left, Right: right, Body: body, Flags: declKind, Start: start, End: p.tree.Get(body).End})
	}

	p.expectPunct(";")
	var test ast.NodeID = ast.Empty
	if !p.isPunct(";") {
		test = p.parseExpression()
	}
	p.expectPunct(";")
	var update ast.NodeID = ast.Empty
	if !p.isPunct(")") {
		update = p.parseExpression()
	}
	p.expectPunct(")")
	wasLoop := p.inLoop
	p.inLoop = true
	body := p.parseStatement()
	p.inLoop = wasLoop
	return p.tree.New(ast.Node{Kind: ast.KindForStmt, Init: init, Test: test, Update: update, Body: body, Start: start, End: p.tree.Get(body).End})
}

// parseExpressionNoIn parses an expression where a bare `in` operator must
// not be consumed as the relational operator, since it instead introduces
// a for-in head; `for ((a in b); ...)` still works because the parens make
// it a primary expression.
func (p *Parser) parseExpressionNoIn() ast.NodeID {
	first := p.parseBinaryExpr(0, true)
	if !p.isPunct(",") {
		return first
	}
	start := p.tree.Get(first).Start
	children := []ast.NodeID{first}
	for p.isPunct(",") {
		p.advance()
		children = append(children, p.parseBinaryExpr(0, true))
	}
	return p.tree.New(ast.Node{Kind: ast.KindSequenceExpr, Start: start, End: p.tok.End, Children: children})
}

func (p *Parser) parseReturnStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'return'
	var arg ast.NodeID = ast.Empty
	if !p.isPunct(";") && !p.isPunct("}") && p.tok.Type != lexer.EOF && !p.tok.NewlineBefore {
		arg = p.parseExpression()
	}
	p.consumeSemicolon()
	return p.tree.New(ast.Node{Kind: ast.KindReturnStmt, Argument: arg, Start: start, End: p.tok.End})
}

func (p *Parser) parseBreakContinue(kind ast.Kind) ast.NodeID {
	start := p.tok.Start
	p.advance() // 'break'/'continue'
	var label ast.NodeID = ast.Empty
	if p.tok.Type == lexer.Identifier && !p.tok.NewlineBefore {
		lstart := p.tok.Start
		name := p.tok.Raw
		p.advance()
		label = p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: lstart, End: p.tok.Start})
	}
	p.consumeSemicolon()
	return p.tree.New(ast.Node{Kind: kind, Label: label, Start: start, End: p.tok.End})
}

func (p *Parser) parseThrowStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'throw'
	if p.tok.NewlineBefore {
		p.errorf("illegal newline after throw")
	}
	arg := p.parseExpression()
	p.consumeSemicolon()
	return p.tree.New(ast.Node{Kind: ast.KindThrowStmt, Argument: arg, Start: start, End: p.tree.Get(arg).End})
}

func (p *Parser) parseTryStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'try'
	block := p.parseBlockStatement()
	var handler ast.NodeID = ast.Empty
	var finalizer ast.NodeID = ast.Empty
	if p.isKeyword("catch") {
		cstart := p.tok.Start
		p.advance()
		var param ast.NodeID = ast.Empty
		if p.isPunct("(") {
			p.advance()
			param = p.parseBindingTarget()
			p.expectPunct(")")
		}
		cbody := p.parseBlockStatement()
		handler = p.tree.New(ast.Node{Kind: ast.KindCatchClause, Param: param, Body: cbody, Start: cstart, End: p.tree.Get(cbody).End})
	}
	if p.isKeyword("finally") {
		p.advance()
		finalizer = p.parseBlockStatement()
	}
	end := p.tree.Get(block).End
	if finalizer != ast.Empty {
		end = p.tree.Get(finalizer).End
	} else if handler != ast.Empty {
		end = p.tree.Get(handler).End
	}
	return p.tree.New(ast.Node{Kind: ast.KindTryStmt, Body: block, Handler: handler, Finalizer: finalizer, Start: start, End: end})
}

func (p *Parser) parseSwitchStatement() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'switch'
	p.expectPunct("(")
	disc := p.parseExpression()
	p.expectPunct(")")
	p.expectPunct("{")
	wasSwitch := p.inSwitch
	p.inSwitch = true
	var cases []ast.NodeID
	for !p.isPunct("}") && p.tok.Type != lexer.EOF {
		cstart := p.tok.Start
		var test ast.NodeID = ast.Empty
		if p.isKeyword("case") {
			p.advance()
			test = p.parseExpression()
		} else {
			p.expectKeyword("default")
		}
		p.expectPunct(":")
		var body []ast.NodeID
		for !p.isKeyword("case") && !p.isKeyword("default") && !p.isPunct("}") && p.tok.Type != lexer.EOF {
			body = append(body, p.parseStatementListItem())
		}
		cases = append(cases, p.tree.New(ast.Node{Kind: ast.KindSwitchCase, Test: test, Children: body, Start: cstart, End: p.tok.End}))
	}
	p.inSwitch = wasSwitch
	p.expectPunct("}")
	return p.tree.New(ast.Node{Kind: ast.KindSwitchStmt, Discriminant: disc, Children: cases, Start: start, End: p.tok.End})
}

/* -------------------------------------------------------------------------
   Variable declarations
   ------------------------------------------------------------------------- */

func (p *Parser) parseVariableStatement() ast.NodeID {
	decl := p.parseVariableDeclarationList(false)
	p.consumeSemicolon()
	return decl
}

// parseVariableDeclarationList parses `var`/`let`/`const` BindingList. When
// forHead is true, `in`/`of` is not consumed as part of an initializer
// (the for-statement caller checks for it afterward).
func (p *Parser) parseVariableDeclarationList(forHead bool) ast.NodeID {
	start := p.tok.Start
	flags := ast.Flag(0)
	switch {
	case p.isKeyword("const"):
		flags = ast.FlagVarConst
	case p.isKeyword("let"):
		flags = ast.FlagVarLet
	case p.isKeyword("var"):
		// flags stays 0, meaning var
	}
	p.advance()
	var decls []ast.NodeID
	for {
		dstart := p.tok.Start
		target := p.parseBindingTarget()
		var init ast.NodeID = ast.Empty
		if p.isPunct("=") {
			p.advance()
			if forHead {
				init = p.parseBinaryExpr(0, true)
			} else {
				init = p.parseAssignment()
			}
		}
		end := p.tree.Get(target).End
		if init != ast.Empty {
			end = p.tree.Get(init).End
		}
		decls = append(decls, p.tree.New(ast.Node{Kind: ast.KindVariableDeclarator, Id: target, Init: init, Start: dstart, End: end}))
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return p.tree.New(ast.Node{Kind: ast.KindVariableDeclaration, Children: decls, Flags: flags, Start: start, End: p.tok.End})
}
