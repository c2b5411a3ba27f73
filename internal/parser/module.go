// Module-goal declarations: import/export (spec.md §4.8). Kept in their own
// file since, unlike everything in stmt.go, these productions are only
// reachable when the parser was constructed with isModule (ParseModule).
package parser

import (
	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/lexer"
)

func (p *Parser) parseImportDeclaration() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'import'
	if p.tok.Type == lexer.StringLiteral {
		// import "module-with-no-bindings"
		src := p.tok.StringValue
		p.advance()
		p.consumeSemicolon()
		srcNode := p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: src, Start: start, End: p.tok.End})
		return p.tree.New(ast.Node{Kind: ast.KindImportDeclaration, Property: srcNode, Start: start, End: p.tok.End})
	}

	var specs []ast.NodeID
	if p.tok.Type == lexer.Identifier {
		// default import
		dstart := p.tok.Start
		name := p.tok.Raw
		p.advance()
		local := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: dstart, End: p.tok.Start})
		specs = append(specs, p.tree.New(ast.Node{Kind: ast.KindImportDefaultSpecifier, Id: local, Start: dstart, End: p.tok.Start}))
		if p.isPunct(",") {
			p.advance()
		}
	}
	if p.isPunct("*") {
		sstart := p.tok.Start
		p.advance()
		p.expectContextualIdent("as")
		lstart := p.tok.Start
		name := p.tok.Raw
		p.advance()
		local := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: lstart, End: p.tok.Start})
		specs = append(specs, p.tree.New(ast.Node{Kind: ast.KindImportNamespaceSpecifier, Id: local, Start: sstart, End: p.tok.Start}))
	} else if p.isPunct("{") {
		p.advance()
		for !p.isPunct("}") && p.tok.Type != lexer.EOF {
			sstart := p.tok.Start
			imported := p.tok.Raw
			p.advance()
			local := imported
			if p.isContextualIdent("as") {
				p.advance()
				local = p.tok.Raw
				p.advance()
			}
			localNode := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: local, Start: sstart, End: p.tok.Start})
			specs = append(specs, p.tree.New(ast.Node{Kind: ast.KindImportSpecifier, Name: imported, Id: localNode, Start: sstart, End: p.tok.Start}))
			if p.isPunct(",") {
				p.advance()
			} else {
				break
			}
		}
		p.expectPunct("}")
	}

	p.expectContextualIdent("from")
	src := p.tok.StringValue
	srcStart := p.tok.Start
	p.advance()
	p.consumeSemicolon()
	srcNode := p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: src, Start: srcStart, End: p.tok.End})
	return p.tree.New(ast.Node{Kind: ast.KindImportDeclaration, Property: srcNode, Children: specs, Start: start, End: p.tok.End})
}

func (p *Parser) parseExportDeclaration() ast.NodeID {
	start := p.tok.Start
	p.advance() // 'export'

	if p.isPunct("*") {
		p.advance()
		var exportedAs ast.NodeID = ast.Empty
		if p.isContextualIdent("as") {
			p.advance()
			astart := p.tok.Start
			name := p.tok.Raw
			p.advance()
			exportedAs = p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: name, Start: astart, End: p.tok.Start})
		}
		p.expectContextualIdent("from")
		src := p.tok.StringValue
		srcStart := p.tok.Start
		p.advance()
		p.consumeSemicolon()
		srcNode := p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: src, Start: srcStart, End: p.tok.End})
		return p.tree.New(ast.Node{Kind: ast.KindExportAllDeclaration, Property: srcNode, Id: exportedAs, Start: start, End: p.tok.End})
	}

	if p.isKeyword("default") {
		p.advance()
		var decl ast.NodeID
		switch {
		case p.isKeyword("function"):
			decl = p.parseFunctionDeclaration(false)
		case p.isContextualIdent("async") && p.peek().Type == lexer.Keyword && p.peek().Raw == "function":
			p.advance()
			decl = p.parseFunctionDeclaration(true)
		case p.isKeyword("class"):
			decl = p.parseClassDeclaration()
		default:
			decl = p.parseAssignment()
			p.consumeSemicolon()
		}
		return p.tree.New(ast.Node{Kind: ast.KindExportDefaultDeclaration, Argument: decl, Start: start, End: p.tree.Get(decl).End})
	}

	if p.isPunct("{") {
		p.advance()
		var specs []ast.NodeID
		for !p.isPunct("}") && p.tok.Type != lexer.EOF {
			sstart := p.tok.Start
			local := p.tok.Raw
			p.advance()
			exported := local
			if p.isContextualIdent("as") {
				p.advance()
				exported = p.tok.Raw
				p.advance()
			}
			localNode := p.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: local, Start: sstart, End: p.tok.Start})
			specs = append(specs, p.tree.New(ast.Node{Kind: ast.KindExportSpecifier, Name: exported, Id: localNode, Start: sstart, End: p.tok.Start}))
			if p.isPunct(",") {
				p.advance()
			} else {
				break
			}
		}
		p.expectPunct("}")
		var src ast.NodeID = ast.Empty
		if p.isContextualIdent("from") {
			p.advance()
			sv := p.tok.StringValue
			sstart := p.tok.Start
			p.advance()
			src = p.tree.New(ast.Node{Kind: ast.KindStringLiteral, StringValue: sv, Start: sstart, End: p.tok.End})
		}
		p.consumeSemicolon()
		return p.tree.New(ast.Node{Kind: ast.KindExportNamedDeclaration, Property: src, Children: specs, Start: start, End: p.tok.End})
	}

	// export <declaration>
	var decl ast.NodeID
	switch {
	case p.isKeyword("function"):
		decl = p.parseFunctionDeclaration(false)
	case p.isContextualIdent("async") && p.peek().Type == lexer.Keyword && p.peek().Raw == "function":
		p.advance()
		decl = p.parseFunctionDeclaration(true)
	case p.isKeyword("class"):
		decl = p.parseClassDeclaration()
	case p.isKeyword("var"), p.isKeyword("const"), p.isKeyword("let"):
		decl = p.parseVariableStatement()
	default:
		p.errorf("unexpected token %q after export", p.tok.Raw)
		decl = p.parseStatement()
	}
	return p.tree.New(ast.Node{Kind: ast.KindExportNamedDeclaration, Argument: decl, Start: start, End: p.tree.Get(decl).End})
}
