package parser

import (
	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/token"
)

// binding powers for the Pratt expression parser (spec.md §4.2).
func (p *Parser) binaryOpInfo(k token.Kind) (op string, lbp int, ok bool) {
	switch k {
	case token.KwOr:
		return "OR", 1, true
	case token.KwAnd:
		return "AND", 2, true
	case token.Eq:
		return "=", 3, true
	case token.NotEq:
		return "<>", 3, true
	case token.Lt:
		return "<", 3, true
	case token.LtEq:
		return "<=", 3, true
	case token.Gt:
		return ">", 3, true
	case token.GtEq:
		return ">=", 3, true
	case token.Plus:
		return "+", 4, true
	case token.Minus:
		return "-", 4, true
	case token.Ampersand:
		return "&", 4, true // string concatenation synonym for '+'
	case token.Star:
		return "*", 5, true
	case token.Slash:
		return "/", 5, true
	case token.KwMod:
		return "MOD", 5, true
	case token.Caret:
		return "^", 6, true
	}
	return "", 0, false
}

// parseExpr parses an expression with Pratt-style precedence climbing;
// minBp is the minimum binding power to keep consuming infix operators.
func (p *Parser) parseExpr(minBp int) ast.Expr {
	left := p.parseUnary()
	for {
		op, lbp, ok := p.binaryOpInfo(p.cur.Kind)
		if !ok || lbp < minBp {
			break
		}
		loc := p.cur.Loc
		p.advance()
		nextMinBp := lbp + 1
		if op == "^" {
			nextMinBp = lbp // right-associative exponentiation
		}
		right := p.parseExpr(nextMinBp)
		left = &ast.BinaryExpr{ExprBase: ast.E(loc), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.at(token.Minus) {
		loc := p.advance().Loc
		operand := p.parseUnary()
		return &ast.UnaryExpr{ExprBase: ast.E(loc), Op: "-", Operand: operand}
	}
	if p.at(token.KwNot) {
		loc := p.advance().Loc
		operand := p.parseUnary()
		return &ast.UnaryExpr{ExprBase: ast.E(loc), Op: "NOT", Operand: operand}
	}
	return p.parsePostfix(p.parsePrimary())
}

// parsePostfix handles array indexing and member-access chains
// (spec.md §3.2: "possibly chained").
func (p *Parser) parsePostfix(e ast.Expr) ast.Expr {
	for {
		switch p.cur.Kind {
		case token.LParen:
			if _, isVar := e.(*ast.VarExpr); !isVar {
				return e
			}
			loc := p.cur.Loc
			p.advance()
			var idx []ast.Expr
			if !p.at(token.RParen) {
				for {
					idx = append(idx, p.parseExpr(0))
					if !p.at(token.Comma) {
						break
					}
					p.advance()
				}
			}
			p.expect(token.RParen, "')'")
			e = &ast.IndexExpr{ExprBase: ast.E(loc), Array: e, Indices: idx}
		case token.Dot:
			loc := p.advance().Loc
			field := p.expect(token.Ident, "field name").Lexeme
			e = &ast.MemberExpr{ExprBase: ast.E(loc), Base: e, Field: field}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur
	if tok.Kind == token.KwInt && p.next.Kind == token.LParen {
		tok.Kind = token.Ident // INT(x) is the builtin, not the AS INT type name
	}
	switch tok.Kind {
	case token.IntLit:
		p.advance()
		return &ast.IntLit{ExprBase: ast.E(tok.Loc), Value: tok.Attrs.IntValue, Suffix: byte(tok.Attrs.Suffix)}
	case token.FloatLit:
		p.advance()
		return &ast.FloatLit{ExprBase: ast.E(tok.Loc), Value: tok.Attrs.FloatValue, Suffix: byte(tok.Attrs.Suffix)}
	case token.StringLit:
		p.advance()
		return &ast.StringLit{ExprBase: ast.E(tok.Loc), Value: tok.Lexeme, HasNonASCII: tok.Attrs.HasNonASCII}
	case token.LParen:
		p.advance()
		inner := p.parseExpr(0)
		p.expect(token.RParen, "')'")
		return inner
	case token.KwFn:
		p.advance()
		nameTok := p.expect(token.Ident, "identifier")
		args := p.parseCallArgs()
		return &ast.FNCallExpr{ExprBase: ast.E(tok.Loc), Name: nameTok.Lexeme, Args: args}
	case token.Ident:
		p.advance()
		name := mangle(tok.Lexeme)
		if p.at(token.LParen) && (IsBuiltin(name) || looksLikeCall(p)) {
			args := p.parseCallArgs()
			if IsBuiltin(name) {
				return &ast.CallExpr{ExprBase: ast.E(tok.Loc), Name: name, Args: args}
			}
			return &ast.CallExpr{ExprBase: ast.E(tok.Loc), Name: tok.Lexeme, Args: args}
		}
		return &ast.VarExpr{ExprBase: ast.E(tok.Loc), Name: tok.Lexeme, Suffix: byte(tok.Attrs.Suffix)}
	default:
		p.sink.Report(diag.Parse, tok.Loc, "unexpected token %q in expression", tok.Lexeme)
		p.advance()
		return &ast.IntLit{ExprBase: ast.E(tok.Loc)}
	}
}

// looksLikeCall always reports false: user function calls and array
// accesses share the Name(...) syntax, and a non-builtin Name(...) is left
// to parsePostfix, which produces an IndexExpr, so ordinary array reads
// like A(I) keep their natural shape. The semantic analyzer (spec.md §4.3)
// resolves that IndexExpr against variable and array symbols only; it does
// not resolve it to a SUB or FUNCTION signature.
func looksLikeCall(p *Parser) bool { return false }

func (p *Parser) parseCallArgs() []ast.Expr {
	p.expect(token.LParen, "'('")
	var args []ast.Expr
	if !p.at(token.RParen) {
		for {
			args = append(args, p.parseExpr(0))
			if !p.at(token.Comma) {
				break
			}
			p.advance()
		}
	}
	p.expect(token.RParen, "')'")
	return args
}
