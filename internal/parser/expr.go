package parser

import (
	"strconv"

	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/lexer"
)

// binaryPrecedence returns op's left-binding power, or 0 if op is not a
// binary/relational/logical operator. Higher binds tighter.
func binaryPrecedence(op string, noIn bool) int {
	switch op {
	case "??":
		return 1
	case "||":
		return 2
	case "&&":
		return 3
	case "|":
		return 4
	case "^":
		return 5
	case "&":
		return 6
	case "==", "!=", "===", "!==":
		return 7
	case "<", ">", "<=", ">=", "instanceof":
		return 8
	case "in":
		if noIn {
			return 0
		}
		return 8
	case "<<", ">>", ">>>":
		return 9
	case "+", "-":
		return 10
	case "*", "/", "%":
		return 11
	case "**":
		return 12
	default:
		return 0
	}
}

// parseExpression parses a full Expression, including top-level comma
// sequences.
func (p *Parser) parseExpression() ast.NodeID {
	first := p.parseAssignment()
	if !p.isPunct(",") {
		return first
	}
	start := p.tree.Get(first).Start
	children := []ast.NodeID{first}
	for p.isPunct(",") {
		p.advance()
		children = append(children, p.parseAssignment())
	}
	return p.tree.New(ast.Node{Kind: ast.KindSequenceExpr, Start: start, End: p.tok.End, Children: children})
}

var assignmentOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

// parseAssignment handles arrow-function detection (the cover grammar) and
// assignment expressions, falling through to parseConditional for
// everything else.
func (p *Parser) parseAssignment() ast.NodeID {
	if id, ok := p.tryParseArrow(); ok {
		return id
	}
	if p.isKeyword("yield") && p.inGenerator {
		return p.parseYield()
	}
	left := p.parseConditional()
	if p.tok.Type == lexer.Punctuator && assignmentOps[p.tok.Raw] {
		op := p.tok.Raw
		p.advance()
		target := p.toPattern(left, true)
		right := p.parseAssignment()
		return p.tree.New(ast.Node{
			Kind: ast.KindAssignExpr, Operator: op,
			Left: target, Right: right,
			Start: p.tree.Get(target).Start, End: p.tree.Get(right).End,
		})
	}
	return left
}

func (p *Parser) parseYield() ast.NodeID {
	start := p.tok.Start
	p.advance()
	delegate := false
	if p.isPunct("*") {
		delegate = true
		p.advance()
	}
	var arg ast.NodeID
	if p.isPunct(";") || p.isPunct(")") || p.isPunct("]") || p.isPunct("}") || p.isPunct(",") || p.tok.Type == lexer.EOF || p.tok.NewlineBefore {
		arg = ast.Empty
	} else {
		arg = p.parseAssignment()
	}
	flags := ast.Flag(0)
	if delegate {
		flags |= ast.FlagGenerator
	}
	return p.tree.New(ast.Node{Kind: ast.KindYieldExpr, Argument: arg, Flags: flags, Start: start, End: p.tok.End})
}

// parseConditional parses `test ? consequent : alternate`, falling through
// to parseBinary for the test expression.
func (p *Parser) parseConditional() ast.NodeID {
	test := p.parseBinaryExpr(0, false)
	if !p.isPunct("?") {
		return test
	}
	p.advance()
	cons := p.parseAssignment()
	p.expectPunct(":")
	alt := p.parseAssignment()
	return p.tree.New(ast.Node{
		Kind: ast.KindConditionalExpr, Test: test, Consequent: cons, Alternate: alt,
		Start: p.tree.Get(test).Start, End: p.tree.Get(alt).End,
	})
}

func (p *Parser) parseBinaryExpr(minPrec int, noIn bool) ast.NodeID {
	left := p.parseUnary()
	for {
		var op string
		if p.tok.Type == lexer.Punctuator {
			op = p.tok.Raw
		} else if p.isKeyword("instanceof") || p.isKeyword("in") {
			op = p.tok.Raw
		} else {
			break
		}
		prec := binaryPrecedence(op, noIn)
		if prec == 0 || prec < minPrec {
			break
		}
		p.advance()
		// `**` is right-associative; everything else is left-associative.
		nextMin := prec + 1
		if op == "**" {
			nextMin = prec
		}
		right := p.parseBinaryExpr(nextMin, noIn)
		kind := ast.KindBinaryExpr
		if op == "&&" || op == "||" || op == "??" {
			kind = ast.KindLogicalExpr
		}
		left = p.tree.New(ast.Node{
			Kind: kind, Operator: op, Left: left, Right: right,
			Start: p.tree.Get(left).Start, End: p.tree.Get(right).End,
		})
	}
	return left
}

var unaryOps = map[string]bool{"+": true, "-": true, "!": true, "~": true}

func (p *Parser) parseUnary() ast.NodeID {
	start := p.tok.Start
	if p.tok.Type == lexer.Punctuator && unaryOps[p.tok.Raw] {
		op := p.tok.Raw
		p.advance()
		arg := p.parseUnary()
		return p.tree.New(ast.Node{Kind: ast.KindUnaryExpr, Operator: op, Argument: arg, Start: start, End: p.tree.Get(arg).End})
	}
	if p.isKeyword("typeof") || p.isKeyword("void") || p.isKeyword("delete") {
		op := p.tok.Raw
		flags := ast.Flag(0)
		if op == "typeof" {
			flags |= ast.FlagTypeOf
		}
		p.advance()
		arg := p.parseUnary()
		return p.tree.New(ast.Node{Kind: ast.KindUnaryExpr, Operator: op, Argument: arg, Flags: flags, Start: start, End: p.tree.Get(arg).End})
	}
	if p.isPunct("++") || p.isPunct("--") {
		op := p.tok.Raw
		p.advance()
		arg := p.parseUnary()
		return p.tree.New(ast.Node{Kind: ast.KindUpdateExpr, Operator: op, Argument: arg, Start: start, End: p.tree.Get(arg).End})
	}
	if p.isContextualIdent("await") {
		p.advance()
		arg := p.parseUnary()
		return p.tree.New(ast.Node{Kind: ast.KindAwaitExpr, Argument: arg, Start: start, End: p.tree.Get(arg).End})
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.NodeID {
	expr := p.parseLeftHandSide()
	if (p.isPunct("++") || p.isPunct("--")) && !p.tok.NewlineBefore {
		op := p.tok.Raw
		end := p.tok.End
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindUpdateExpr, Operator: "post" + op, Argument: expr, Start: p.tree.Get(expr).Start, End: end})
	}
	return expr
}

// parseLeftHandSide parses member/call/new chains: `new X(...).y[z](...)`.
func (p *Parser) parseLeftHandSide() ast.NodeID {
	var expr ast.NodeID
	if p.isKeyword("new") {
		expr = p.parseNewExpr()
	} else {
		expr = p.parsePrimary()
	}
	return p.parseCallMemberTail(expr)
}

func (p *Parser) parseNewExpr() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'new'
	if p.isPunct(".") {
		// new.target
		p.advance()
		p.advance() // 'target'
		return p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: "new.target", Start: start, End: p.tok.End})
	}
	var callee ast.NodeID
	if p.isKeyword("new") {
		callee = p.parseNewExpr()
	} else {
		callee = p.parsePrimary()
	}
	callee = p.parseMemberTailOnly(callee) // spec.md §9: `new Foo.Bar()` — implemented
	var args []ast.NodeID
	if p.isPunct("(") {
		args = p.parseArguments()
	}
	return p.tree.New(ast.Node{Kind: ast.KindNewExpr, Callee: callee, Children: args, Start: start, End: p.tok.End})
}

// parseMemberTailOnly consumes `.x`/`[x]` tails but not call parens or
// tagged templates, used while still resolving `new`'s callee.
func (p *Parser) parseMemberTailOnly(expr ast.NodeID) ast.NodeID {
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name := p.tok.Raw
			end := p.tok.End
			p.advance()
			prop := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: end, End: end})
			expr = p.tree.New(ast.Node{Kind: ast.KindMemberExpr, Object: expr, Property: prop, Start: p.tree.Get(expr).Start, End: end})
		case p.isPunct("["):
			p.advance()
			prop := p.parseExpression()
			p.expectPunct("]")
			expr = p.tree.New(ast.Node{Kind: ast.KindMemberExpr, Object: expr, Property: prop, Flags: ast.FlagComputed, Start: p.tree.Get(expr).Start, End: p.tok.End})
		default:
			return expr
		}
	}
}

func (p *Parser) parseCallMemberTail(expr ast.NodeID) ast.NodeID {
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name := p.tok.Raw
			end := p.tok.End
			private := p.tok.Type == lexer.PrivateName
			p.advance()
			kind := ast.KindIdentifier
			if private {
				kind = ast.KindPrivateIdentifier
			}
			prop := p.tree.New(ast.Node{Kind: kind, Name: name, Start: end, End: end})
			expr = p.tree.New(ast.Node{Kind: ast.KindMemberExpr, Object: expr, Property: prop, Start: p.tree.Get(expr).Start, End: end})
		case p.isPunct("?."):
			p.advance()
			if p.isPunct("(") {
				args := p.parseArguments()
				expr = p.tree.New(ast.Node{Kind: ast.KindCallExpr, Callee: expr, Children: args, Flags: ast.FlagOptional, Start: p.tree.Get(expr).Start, End: p.tok.End})
				continue
			}
			if p.isPunct("[") {
				p.advance()
				prop := p.parseExpression()
				p.expectPunct("]")
				expr = p.tree.New(ast.Node{Kind: ast.KindMemberExpr, Object: expr, Property: prop, Flags: ast.FlagComputed | ast.FlagOptional, Start: p.tree.Get(expr).Start, End: p.tok.End})
				continue
			}
			name := p.tok.Raw
			end := p.tok.End
			p.advance()
			prop := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: end, End: end})
			expr = p.tree.New(ast.Node{Kind: ast.KindMemberExpr, Object: expr, Property: prop, Flags: ast.FlagOptional, Start: p.tree.Get(expr).Start, End: end})
		case p.isPunct("["):
			p.advance()
			prop := p.parseExpression()
			p.expectPunct("]")
			expr = p.tree.New(ast.Node{Kind: ast.KindMemberExpr, Object: expr, Property: prop, Flags: ast.FlagComputed, Start: p.tree.Get(expr).Start, End: p.tok.End})
		case p.isPunct("("):
			args := p.parseArguments()
			expr = p.tree.New(ast.Node{Kind: ast.KindCallExpr, Callee: expr, Children: args, Start: p.tree.Get(expr).Start, End: p.tok.End})
		case p.tok.Type == lexer.TemplateLiteral:
			tmpl := p.parseTemplateLiteral()
			expr = p.tree.New(ast.Node{Kind: ast.KindTaggedTemplateExpr, Callee: expr, Property: tmpl, Start: p.tree.Get(expr).Start, End: p.tree.Get(tmpl).End})
		default:
			return expr
		}
	}
}

func (p *Parser) parseArguments() []ast.NodeID {
	p.advance() // '('
	var args []ast.NodeID
	for !p.isPunct(")") && p.tok.Type != lexer.EOF {
		if p.isPunct("...") {
			start := p.tok.Start
			p.advance()
			arg := p.parseAssignment()
			args = append(args, p.tree.New(ast.Node{Kind: ast.KindSpreadElement, Argument: arg, Start: start, End: p.tree.Get(arg).End}))
		} else {
			args = append(args, p.parseAssignment())
		}
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	p.expectPunct(")")
	return args
}

/* -------------------------------------------------------------------------
   Primary expressions
   ------------------------------------------------------------------------- */

func (p *Parser) parsePrimary() ast.NodeID {
	start := p.tok.Start
	switch {
	case p.tok.Type == lexer.NumericLiteral:
		v := p.tok.NumberValue
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindNumericLiteral, NumberValue: v, Start: start, End: p.tok.End})
	case p.tok.Type == lexer.StringLiteral:
		v := p.tok.StringValue
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: v, Start: start, End: p.tok.End})
	case p.tok.Type == lexer.TemplateLiteral:
		return p.parseTemplateLiteral()
	case p.tok.Type == lexer.RegExpLiteral:
		v := p.tok.Raw
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: v, Start: start, End: p.tok.End}) // regex engine out of scope; kept as raw source
	case p.isKeyword("this"):
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindThisExpr, Start: start, End: p.tok.End})
	case p.isKeyword("super"):
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindSuperExpr, Start: start, End: p.tok.End})
	case p.isKeyword("null"):
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindNullLiteral, Start: start, End: p.tok.End})
	case p.isKeyword("true"), p.isKeyword("false"):
		v := p.tok.Raw == "true"
		p.advance()
		flags := ast.Flag(0)
		if v {
			flags = 1
		}
		return p.tree.New(ast.Node{Kind: ast.KindBooleanLiteral, Flags: flags, Start: start, End: p.tok.End})
	case p.isKeyword("function"):
		return p.parseFunctionExpr(false)
	case p.isKeyword("class"):
		return p.parseClassExpr()
	case p.isContextualIdent("async") && p.peek().Type == lexer.Keyword && p.peek().Raw == "function":
		p.advance()
		return p.parseFunctionExpr(true)
	case p.tok.Type == lexer.PrivateName:
		name := p.tok.StringValue
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindPrivateIdentifier, Name: name, Start: start, End: p.tok.End})
	case p.tok.Type == lexer.Identifier || p.tok.Type == lexer.Keyword:
		name := p.tok.Raw
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: start, End: p.tok.End})
	case p.isPunct("("):
		p.advance()
		expr := p.parseExpression()
		p.expectPunct(")")
		return expr
	case p.isPunct("["):
		return p.parseArrayLiteral()
	case p.isPunct("{"):
		return p.parseObjectLiteral()
	default:
		p.errorf("unexpected token %q", p.tok.Raw)
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: "", Start: start, End: p.tok.End})
	}
}

func (p *Parser) parseTemplateLiteral() ast.NodeID {
	start := p.tok.Start
	raw := p.tok.Raw
	end := p.tok.End
	p.advance()
	return p.tree.New(ast.Node{Kind: ast.KindTemplateLiteral, StringValue: raw, Start: start, End: end})
}

func (p *Parser) parseArrayLiteral() ast.NodeID {
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
			espan := p.tok.Start
			p.advance()
			arg := p.parseAssignment()
			elems = append(elems, p.tree.New(ast.Node{Kind: ast.KindSpreadElement, Argument: arg, Start: espan, End: p.tree.Get(arg).End}))
		} else {
			elems = append(elems, p.parseAssignment())
		}
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	p.expectPunct("]")
	return p.tree.New(ast.Node{Kind: ast.KindArrayExpr, Children: elems, Start: start, End: p.tok.End})
}

func (p *Parser) parseObjectLiteral() ast.NodeID {
	start := p.tok.Start
	p.advance() // '{'
	var props []ast.NodeID
	for !p.isPunct("}") && p.tok.Type != lexer.EOF {
		if p.isPunct("...") {
			espan := p.tok.Start
			p.advance()
			arg := p.parseAssignment()
			props = append(props, p.tree.New(ast.Node{Kind: ast.KindSpreadElement, Argument: arg, Start: espan, End: p.tree.Get(arg).End}))
		} else {
			props = append(props, p.parseObjectProperty())
		}
		if p.isPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	p.expectPunct("}")
	return p.tree.New(ast.Node{Kind: ast.KindObjectExpr, Children: props, Start: start, End: p.tok.End})
}

func (p *Parser) parseObjectProperty() ast.NodeID {
	start := p.tok.Start
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
		kind := p.tok.Raw
		p.advance()
		key, computed := p.parsePropertyKey()
		value := p.parseMethodBody(isAsync, isGenerator)
		flags := ast.FlagMethod
		if kind == "get" {
			flags |= ast.FlagGetter
		} else {
			flags |= ast.FlagSetter
		}
		if computed {
			flags |= ast.FlagComputed
		}
		return p.tree.New(ast.Node{Kind: ast.KindProperty, Property: key, Right: value, Flags: flags, Start: start, End: p.tree.Get(value).End})
	}
	key, computed := p.parsePropertyKey()
	flags := ast.Flag(0)
	if computed {
		flags |= ast.FlagComputed
	}
	if isAsync {
		flags |= ast.FlagAsync
	}
	if isGenerator {
		flags |= ast.FlagGenerator
	}
	if p.isPunct("(") {
		value := p.parseMethodBody(isAsync, isGenerator)
		return p.tree.New(ast.Node{Kind: ast.KindProperty, Property: key, Right: value, Flags: flags | ast.FlagMethod, Start: start, End: p.tree.Get(value).End})
	}
	if p.isPunct(":") {
		p.advance()
		value := p.parseAssignment()
		return p.tree.New(ast.Node{Kind: ast.KindProperty, Property: key, Right: value, Flags: flags, Start: start, End: p.tree.Get(value).End})
	}
	if p.isPunct("=") { // shorthand with default, only meaningful inside a destructuring pattern
		p.advance()
		def := p.parseAssignment()
		pat := p.tree.New(ast.Node{Kind: ast.KindAssignmentPattern, Left: key, Right: def, Start: start, End: p.tree.Get(def).End})
		return p.tree.New(ast.Node{Kind: ast.KindProperty, Property: key, Right: pat, Flags: flags | ast.FlagShorthand, Start: start, End: p.tree.Get(def).End})
	}
	return p.tree.New(ast.Node{Kind: ast.KindProperty, Property: key, Right: key, Flags: flags | ast.FlagShorthand, Start: start, End: p.tree.Get(key).End})
}

func (p *Parser) peekIsPropertyTerminator() bool {
	n := p.peek()
	return n.Type == lexer.Punctuator && (n.Raw == ":" || n.Raw == "(" || n.Raw == "," || n.Raw == "}" || n.Raw == "=")
}

func (p *Parser) parsePropertyKey() (ast.NodeID, bool) {
	if p.isPunct("[") {
		p.advance()
		key := p.parseAssignment()
		p.expectPunct("]")
		return key, true
	}
	start := p.tok.Start
	if p.tok.Type == lexer.StringLiteral {
		v := p.tok.StringValue
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: v, Start: start, End: p.tok.End}), false
	}
	if p.tok.Type == lexer.NumericLiteral {
		v := p.tok.NumberValue
		p.advance()
		return p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: strconv.FormatFloat(v, 'g', -1, 64), Start: start, End: p.tok.End}), false
	}
	name := p.tok.Raw
	p.advance()
	return p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: start, End: p.tok.End}), false
}

func (p *Parser) parseMethodBody(isAsync, isGenerator bool) ast.NodeID {
	start := p.tok.Start
	wasGen, wasAsync := p.inGenerator, p.inAsync
	p.inGenerator, p.inAsync = isGenerator, isAsync
	params := p.parseParams()
	body := p.parseFunctionBody()
	p.inGenerator, p.inAsync = wasGen, wasAsync
	flags := ast.Flag(0)
	if isAsync {
		flags |= ast.FlagAsync
	}
	if isGenerator {
		flags |= ast.FlagGenerator
	}
	return p.tree.New(ast.Node{Kind: ast.KindFunctionExpr, Children: params, Body: body, Flags: flags, Start: start, End: p.tree.Get(body).End})
}
