// Package parser implements a recursive-descent parser with Pratt-style
// expression parsing over the token stream (spec.md §4.2).
package parser

import (
	"strings"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/lexer"
	"github.com/fasterbasic/fbc/internal/token"
)

// builtinMangles maps a $-suffixed builtin name to its mangled form
// (spec.md §4.2: "TRIM$ becomes TRIM_STRING"). Both forms resolve to the
// same entry in the builtin-function table, but are never aliased at the
// symbol-table layer (spec.md §9).
var builtinMangles = map[string]string{
	"LEFT$": "LEFT_STRING", "RIGHT$": "RIGHT_STRING", "MID$": "MID_STRING",
	"CHR$": "CHR_STRING", "STR$": "STR_STRING", "UCASE$": "UCASE_STRING",
	"LCASE$": "LCASE_STRING", "LTRIM$": "LTRIM_STRING", "RTRIM$": "RTRIM_STRING",
	"TRIM$": "TRIM_STRING", "SPACE$": "SPACE_STRING", "STRING$": "STRING_STRING",
}

var builtinNames = map[string]bool{
	"ABS": true, "SGN": true, "INT": true, "FIX": true, "SQR": true, "SIN": true,
	"COS": true, "TAN": true, "ATN": true, "LOG": true, "EXP": true, "RND": true,
	"TIMER": true, "LEN": true, "ASC": true, "VAL": true, "INSTR": true,
	"LEFT_STRING": true, "RIGHT_STRING": true, "MID_STRING": true, "CHR_STRING": true,
	"STR_STRING": true, "UCASE_STRING": true, "LCASE_STRING": true,
	"LTRIM_STRING": true, "RTRIM_STRING": true, "TRIM_STRING": true,
	"SPACE_STRING": true, "STRING_STRING": true,
}

// IsBuiltin reports whether a mangled or raw name is a known intrinsic.
func IsBuiltin(name string) bool { return builtinNames[strings.ToUpper(name)] }

func mangle(name string) string {
	up := strings.ToUpper(name)
	if m, ok := builtinMangles[up]; ok {
		return m
	}
	return up
}

// Parser turns a token stream into an ast.Program.
type Parser struct {
	lex  *lexer.Lexer
	sink *diag.Sink
	cur  token.Token
	next token.Token
	prog *ast.Program
}

// New constructs a parser over src.
func New(file string, src []byte, sink *diag.Sink) *Parser {
	p := &Parser{lex: lexer.New(file, src, sink), sink: sink}
	p.cur = p.lex.Next()
	p.next = p.lex.Next()
	return p
}

func (p *Parser) advance() token.Token {
	t := p.cur
	p.cur = p.next
	p.next = p.lex.Next()
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur.Kind == k }

func (p *Parser) expect(k token.Kind, what string) token.Token {
	if !p.at(k) {
		p.sink.Report(diag.Parse, p.cur.Loc, "expected %s, got %q", what, p.cur.Lexeme)
		return p.cur
	}
	return p.advance()
}

func (p *Parser) skipNewlinesAndColons() {
	for p.at(token.Newline) || p.at(token.Colon) {
		p.advance()
	}
}

func (p *Parser) atStmtEnd() bool {
	return p.at(token.Newline) || p.at(token.Colon) || p.at(token.EOF)
}

// Parse parses the whole program: top-level statements plus any
// SUB/FUNCTION/DEF FN/TYPE declarations encountered anywhere in the file.
func (p *Parser) Parse() *ast.Program {
	p.prog = &ast.Program{}
	p.skipNewlinesAndColons()
	for !p.at(token.EOF) {
		stmt := p.parseTopLevel()
		if stmt != nil {
			p.prog.Main = append(p.prog.Main, stmt)
		}
		p.skipNewlinesAndColons()
	}
	return p.prog
}

func (p *Parser) parseTopLevel() ast.Stmt {
	switch p.cur.Kind {
	case token.KwSub:
		p.parseSubDecl()
		return nil
	case token.KwFunction:
		p.parseFunctionDecl()
		return nil
	case token.KwDef:
		p.parseDefFn()
		return nil
	case token.KwType:
		p.parseTypeDecl()
		return nil
	default:
		return p.parseStatement()
	}
}

// parseStatement parses one statement, including any leading label of the
// form "123 " or "Label:".
func (p *Parser) parseStatement() ast.Stmt {
	if p.at(token.IntLit) {
		// A leading line number is a label followed by the real statement.
		tok := p.advance()
		return &ast.LabelStmt{StmtBase: ast.S(tok.Loc), Name: tok.Lexeme}
	}
	if p.at(token.Ident) && p.next.Kind == token.Colon {
		tok := p.advance()
		p.advance() // ':'
		return &ast.LabelStmt{StmtBase: ast.S(tok.Loc), Name: tok.Lexeme}
	}

	switch p.cur.Kind {
	case token.KwLet:
		p.advance()
		return p.parseLet()
	case token.KwDim:
		return p.parseDim()
	case token.KwPrint:
		return p.parsePrint()
	case token.KwInput:
		return p.parseInput()
	case token.KwIf:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwDo:
		return p.parseDoLoop()
	case token.KwRepeat:
		return p.parseRepeat()
	case token.KwSelect:
		return p.parseSelectCase()
	case token.KwGoto:
		loc := p.advance().Loc
		label := p.advance().Lexeme
		return &ast.GotoStmt{StmtBase: ast.S(loc), Label: label}
	case token.KwGosub:
		loc := p.advance().Loc
		label := p.advance().Lexeme
		return &ast.GosubStmt{StmtBase: ast.S(loc), Label: label}
	case token.KwReturn:
		loc := p.advance().Loc
		return &ast.ReturnStmt{StmtBase: ast.S(loc)}
	case token.KwOn:
		return p.parseOnGoto()
	case token.KwLocal:
		return p.parseLocal()
	case token.KwTry:
		return p.parseTry()
	case token.KwThrow:
		return p.parseThrow()
	case token.KwEnd:
		loc := p.advance().Loc
		return &ast.EndStmt{StmtBase: ast.S(loc)}
	case token.KwData:
		return p.parseData()
	case token.KwRead:
		return p.parseRead()
	case token.KwRestore:
		return p.parseRestore()
	case token.KwOption:
		return p.parseOption()
	case token.KwExit:
		return p.parseExit()
	case token.KwCall:
		return p.parseCall()
	case token.Ident:
		return p.parseLet()
	default:
		p.sink.Report(diag.Parse, p.cur.Loc, "unexpected token %q", p.cur.Lexeme)
		p.advance()
		return nil
	}
}

// parseStatementList parses statements until one of the given terminator
// keywords, or the "END SELECT" Ident token, is the current token, without
// consuming the terminator.
func (p *Parser) parseStatementList(terminators ...token.Kind) []ast.Stmt {
	var out []ast.Stmt
	p.skipNewlinesAndColons()
	for !p.at(token.EOF) {
		stop := false
		for _, t := range terminators {
			if p.at(t) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		if p.at(token.Ident) && strings.EqualFold(p.cur.Lexeme, "END SELECT") {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			out = append(out, stmt)
		}
		p.skipNewlinesAndColons()
	}
	return out
}

// ===== LET =====

func (p *Parser) parseLet() ast.Stmt {
	loc := p.cur.Loc
	target := p.parsePostfix(p.parsePrimary())
	p.expect(token.Eq, "'='")
	value := p.parseExpr(0)
	return &ast.LetStmt{StmtBase: ast.S(loc), Target: target, Value: value}
}

// ===== DIM =====

func (p *Parser) parseDim() ast.Stmt {
	loc := p.advance().Loc
	var decls []ast.DimDecl
	for {
		decls = append(decls, p.parseDimDecl())
		if p.at(token.Colon) && p.next.Kind == token.Ident {
			// Keep parsing multiple "DIM a : DIM b"-style statements separately;
			// a plain DIM list uses newline separation so stop here.
		}
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	return &ast.DimStmt{StmtBase: ast.S(loc), Decls: decls}
}

func (p *Parser) parseDimDecl() ast.DimDecl {
	nameTok := p.expect(token.Ident, "identifier")
	decl := ast.DimDecl{Name: nameTok.Lexeme}
	if p.at(token.LParen) {
		p.advance()
		if !p.at(token.RParen) {
			for {
				decl.Dims = append(decl.Dims, p.parseExpr(0))
				if !p.at(token.Comma) {
					break
				}
				p.advance()
			}
		}
		p.expect(token.RParen, "')'")
	}
	if p.at(token.KwAs) {
		p.advance()
		decl.TypeName = p.parseTypeName()
	}
	return decl
}

// parseTypeName parses a built-in or user-defined type name after AS.
func (p *Parser) parseTypeName() string {
	tok := p.advance()
	return strings.ToUpper(tok.Lexeme)
}

// ===== PRINT =====

func (p *Parser) parsePrint() ast.Stmt {
	loc := p.advance().Loc
	stmt := &ast.PrintStmt{StmtBase: ast.S(loc)}
	for !p.atStmtEnd() {
		e := p.parseExpr(0)
		sep := byte(0)
		if p.at(token.Semicolon) {
			sep = ';'
			p.advance()
		} else if p.at(token.Comma) {
			sep = ','
			p.advance()
		}
		stmt.Items = append(stmt.Items, ast.PrintItem{Expr: e, Sep: sep})
		if sep == 0 {
			break
		}
	}
	return stmt
}

// ===== INPUT =====

func (p *Parser) parseInput() ast.Stmt {
	loc := p.advance().Loc
	prompt := ""
	if p.at(token.StringLit) {
		prompt = p.advance().Lexeme
		p.expect(token.Semicolon, "';'")
	}
	target := p.parsePostfix(p.parsePrimary())
	return &ast.InputStmt{StmtBase: ast.S(loc), Prompt: prompt, Target: target}
}

// ===== IF =====

func (p *Parser) parseIf() ast.Stmt {
	loc := p.advance().Loc
	cond := p.parseExpr(0)
	p.expect(token.KwThen, "THEN")

	if p.atStmtEnd() {
		// Multi-line IF.
		stmt := &ast.IfStmt{StmtBase: ast.S(loc), Cond: cond}
		stmt.Then = p.parseStatementList(token.KwElseIf, token.KwElse, token.KwEndIf)
		for p.at(token.KwElseIf) {
			eloc := p.advance().Loc
			_ = eloc
			econd := p.parseExpr(0)
			p.expect(token.KwThen, "THEN")
			ebody := p.parseStatementList(token.KwElseIf, token.KwElse, token.KwEndIf)
			stmt.ElseIfs = append(stmt.ElseIfs, ast.ElseIfClause{Cond: econd, Body: ebody})
		}
		if p.at(token.KwElse) {
			p.advance()
			stmt.Else = p.parseStatementList(token.KwEndIf)
		}
		p.expect(token.KwEndIf, "END IF")
		return stmt
	}

	// Single-line IF ... THEN <stmt> [ELSE <stmt>]
	stmt := &ast.IfStmt{StmtBase: ast.S(loc), Cond: cond, SingleLine: true}
	stmt.Then = []ast.Stmt{p.parseStatement()}
	for p.at(token.Colon) {
		p.advance()
		if p.at(token.KwElse) || p.atStmtEnd() {
			break
		}
		stmt.Then = append(stmt.Then, p.parseStatement())
	}
	if p.at(token.KwElse) {
		p.advance()
		stmt.Else = []ast.Stmt{p.parseStatement()}
		for p.at(token.Colon) {
			p.advance()
			if p.atStmtEnd() {
				break
			}
			stmt.Else = append(stmt.Else, p.parseStatement())
		}
	}
	return stmt
}

// ===== FOR / NEXT =====

func (p *Parser) parseFor() ast.Stmt {
	loc := p.advance().Loc
	nameTok := p.expect(token.Ident, "identifier")
	p.expect(token.Eq, "'='")
	start := p.parseExpr(0)
	p.expect(token.KwTo, "TO")
	end := p.parseExpr(0)
	var step ast.Expr
	if p.at(token.KwStep) {
		p.advance()
		step = p.parseExpr(0)
	}
	body := p.parseStatementList(token.KwNext)
	p.expect(token.KwNext, "NEXT")
	if p.at(token.Ident) {
		p.advance() // optional loop-variable name after NEXT
	}
	return &ast.ForStmt{StmtBase: ast.S(loc), Var: nameTok.Lexeme, Start: start, End: end, Step: step, Body: body}
}

// ===== WHILE / WEND =====

func (p *Parser) parseWhile() ast.Stmt {
	loc := p.advance().Loc
	cond := p.parseExpr(0)
	body := p.parseStatementList(token.KwWend)
	p.expect(token.KwWend, "WEND")
	return &ast.WhileStmt{StmtBase: ast.S(loc), Cond: cond, Body: body}
}

// ===== DO / LOOP =====

func (p *Parser) parseDoLoop() ast.Stmt {
	loc := p.advance().Loc
	stmt := &ast.DoLoopStmt{StmtBase: ast.S(loc)}
	if p.at(token.KwWhile) {
		p.advance()
		stmt.HeadCond = p.parseExpr(0)
	} else if p.at(token.KwUntil) {
		p.advance()
		stmt.HeadCond = p.parseExpr(0)
		stmt.HeadUntil = true
	}
	stmt.Body = p.parseStatementList(token.KwLoop)
	p.expect(token.KwLoop, "LOOP")
	if p.at(token.KwWhile) {
		p.advance()
		stmt.TailCond = p.parseExpr(0)
	} else if p.at(token.KwUntil) {
		p.advance()
		stmt.TailCond = p.parseExpr(0)
		stmt.TailUntil = true
	}
	return stmt
}

// ===== REPEAT / UNTIL =====

func (p *Parser) parseRepeat() ast.Stmt {
	loc := p.advance().Loc
	body := p.parseStatementList(token.KwUntil)
	p.expect(token.KwUntil, "UNTIL")
	cond := p.parseExpr(0)
	return &ast.RepeatStmt{StmtBase: ast.S(loc), Body: body, Cond: cond}
}

// ===== SELECT CASE =====

func (p *Parser) parseSelectCase() ast.Stmt {
	loc := p.advance().Loc
	p.expect(token.KwCase, "CASE")
	selector := p.parseExpr(0)
	p.skipNewlinesAndColons()
	stmt := &ast.SelectCaseStmt{StmtBase: ast.S(loc), Selector: selector}
	for p.at(token.KwCase) {
		p.advance()
		clause := ast.CaseClause{}
		if p.at(token.KwElse) {
			p.advance()
			clause.IsElse = true
		} else if p.at(token.KwIs) {
			p.advance()
			op := p.parseComparisonOp()
			val := p.parseExpr(0)
			clause.IsOps = append(clause.IsOps, ast.CaseIsOp{Op: op, Value: val})
		} else {
			for {
				first := p.parseExpr(0)
				if p.at(token.KwTo) {
					p.advance()
					second := p.parseExpr(0)
					clause.Ranges = append(clause.Ranges, [2]ast.Expr{first, second})
				} else {
					clause.Values = append(clause.Values, first)
				}
				if !p.at(token.Comma) {
					break
				}
				p.advance()
			}
		}
		if p.at(token.Colon) {
			p.advance()
		}
		clause.Body = p.parseStatementList(token.KwCase, token.KwEndType /* reuse terminator set below */)
		// END SELECT is lexed as an Ident "END SELECT" by the lexer's lookahead; stop there too.
		stmt.Cases = append(stmt.Cases, clause)
		p.skipNewlinesAndColons()
	}
	if p.at(token.Ident) && strings.EqualFold(p.cur.Lexeme, "END SELECT") {
		p.advance()
	} else {
		p.expect(token.KwEnd, "END SELECT")
		if p.at(token.Ident) {
			p.advance()
		}
	}
	return stmt
}

func (p *Parser) parseComparisonOp() string {
	tok := p.advance()
	switch tok.Kind {
	case token.Eq:
		return "="
	case token.NotEq:
		return "<>"
	case token.Lt:
		return "<"
	case token.LtEq:
		return "<="
	case token.Gt:
		return ">"
	case token.GtEq:
		return ">="
	default:
		p.sink.Report(diag.Parse, tok.Loc, "expected comparison operator after IS")
		return "="
	}
}

// ===== ON GOTO / ON GOSUB =====

func (p *Parser) parseOnGoto() ast.Stmt {
	loc := p.advance().Loc
	selector := p.parseExpr(0)
	isGosub := false
	if p.at(token.KwGosub) {
		isGosub = true
		p.advance()
	} else {
		p.expect(token.KwGoto, "GOTO or GOSUB")
	}
	var labels []string
	for {
		labels = append(labels, p.advance().Lexeme)
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	return &ast.OnGotoStmt{StmtBase: ast.S(loc), Selector: selector, Labels: labels, IsGosub: isGosub}
}

// ===== LOCAL =====

func (p *Parser) parseLocal() ast.Stmt {
	loc := p.advance().Loc
	nameTok := p.expect(token.Ident, "identifier")
	typeName := ""
	if p.at(token.KwAs) {
		p.advance()
		typeName = p.parseTypeName()
	}
	return &ast.LocalStmt{StmtBase: ast.S(loc), Name: nameTok.Lexeme, TypeName: typeName}
}

// ===== TRY / CATCH / FINALLY =====

func (p *Parser) parseTry() ast.Stmt {
	loc := p.advance().Loc
	stmt := &ast.TryStmt{StmtBase: ast.S(loc)}
	stmt.Body = p.parseStatementList(token.KwCatch, token.KwFinally, token.KwEndTry)
	if p.at(token.KwCatch) {
		p.advance()
		stmt.HasCatch = true
		if p.at(token.Ident) {
			stmt.CatchVar = p.advance().Lexeme
		}
		stmt.CatchBody = p.parseStatementList(token.KwFinally, token.KwEndTry)
	}
	if p.at(token.KwFinally) {
		p.advance()
		stmt.HasFinally = true
		stmt.Finally = p.parseStatementList(token.KwEndTry)
	}
	p.expect(token.KwEndTry, "END TRY")
	return stmt
}

func (p *Parser) parseThrow() ast.Stmt {
	loc := p.advance().Loc
	code := p.parseExpr(0)
	var msg ast.Expr
	if p.at(token.Comma) {
		p.advance()
		msg = p.parseExpr(0)
	}
	return &ast.ThrowStmt{StmtBase: ast.S(loc), Code: code, Message: msg}
}

// ===== DATA / READ / RESTORE =====

func (p *Parser) parseData() ast.Stmt {
	loc := p.advance().Loc
	stmt := &ast.DataStmt{StmtBase: ast.S(loc)}
	for {
		stmt.Values = append(stmt.Values, p.parseExpr(0))
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	return stmt
}

func (p *Parser) parseRead() ast.Stmt {
	loc := p.advance().Loc
	stmt := &ast.ReadStmt{StmtBase: ast.S(loc)}
	for {
		stmt.Targets = append(stmt.Targets, p.parsePostfix(p.parsePrimary()))
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	return stmt
}

func (p *Parser) parseRestore() ast.Stmt {
	loc := p.advance().Loc
	idx := 0
	if p.at(token.IntLit) {
		idx = int(p.advance().Attrs.IntValue)
	}
	return &ast.RestoreStmt{StmtBase: ast.S(loc), Index: idx}
}

// ===== OPTION =====

func (p *Parser) parseOption() ast.Stmt {
	loc := p.advance().Loc
	switch p.cur.Kind {
	case token.KwBase:
		p.advance()
		n := p.advance().Attrs.IntValue
		return &ast.OptionStmt{StmtBase: ast.S(loc), Kind: ast.OptionBase, IntArg: int(n)}
	case token.KwAscii:
		p.advance()
		return &ast.OptionStmt{StmtBase: ast.S(loc), Kind: ast.OptionAscii}
	case token.KwUnicode:
		p.advance()
		return &ast.OptionStmt{StmtBase: ast.S(loc), Kind: ast.OptionUnicode}
	case token.KwDetectString:
		p.advance()
		return &ast.OptionStmt{StmtBase: ast.S(loc), Kind: ast.OptionDetectString}
	default:
		p.sink.Report(diag.Parse, p.cur.Loc, "unknown OPTION %q", p.cur.Lexeme)
		p.advance()
		return nil
	}
}

// ===== EXIT =====

func (p *Parser) parseExit() ast.Stmt {
	loc := p.advance().Loc
	var kind ast.ExitKind
	switch p.cur.Kind {
	case token.KwFor:
		kind = ast.ExitFor
	case token.KwWhile:
		kind = ast.ExitWhile
	case token.KwDo:
		kind = ast.ExitDo
	case token.KwSub:
		kind = ast.ExitSub
	case token.KwFunction:
		kind = ast.ExitFunction
	default:
		p.sink.Report(diag.Parse, p.cur.Loc, "expected FOR, WHILE, DO, SUB, or FUNCTION after EXIT")
	}
	p.advance()
	return &ast.ExitStmt{StmtBase: ast.S(loc), Kind: kind}
}

// ===== CALL =====

func (p *Parser) parseCall() ast.Stmt {
	loc := p.advance().Loc
	nameTok := p.expect(token.Ident, "identifier")
	stmt := &ast.CallStmt{StmtBase: ast.S(loc), Name: nameTok.Lexeme}
	if p.at(token.LParen) {
		p.advance()
		if !p.at(token.RParen) {
			for {
				stmt.Args = append(stmt.Args, p.parseExpr(0))
				if !p.at(token.Comma) {
					break
				}
				p.advance()
			}
		}
		p.expect(token.RParen, "')'")
	}
	return stmt
}

// ===== TYPE / END TYPE =====

func (p *Parser) parseTypeDecl() {
	loc := p.advance().Loc
	nameTok := p.expect(token.Ident, "identifier")
	decl := &ast.TypeDeclStmt{StmtBase: ast.S(loc), Name: nameTok.Lexeme}
	p.skipNewlinesAndColons()
	seen := map[string]bool{}
	for !p.at(token.KwEndType) && !p.at(token.EOF) {
		fnameTok := p.expect(token.Ident, "field name")
		p.expect(token.KwAs, "AS")
		typeName := p.parseTypeName()
		if p.at(token.LParen) {
			p.sink.Report(diag.Parse, p.cur.Loc, "inline array fields are not allowed in TYPE")
			p.advance()
			for !p.at(token.RParen) && !p.at(token.EOF) {
				p.advance()
			}
			if p.at(token.RParen) {
				p.advance()
			}
		}
		if seen[fnameTok.Lexeme] {
			p.sink.Report(diag.Redefinition, p.cur.Loc, "duplicate field %q in TYPE %s", fnameTok.Lexeme, decl.Name)
		}
		seen[fnameTok.Lexeme] = true
		decl.Fields = append(decl.Fields, ast.FieldDecl{Name: fnameTok.Lexeme, TypeName: typeName})
		p.skipNewlinesAndColons()
	}
	p.expect(token.KwEndType, "END TYPE")
	p.prog.Types = append(p.prog.Types, decl)
}

// ===== SUB / FUNCTION / DEF FN =====

func (p *Parser) parseParamList() []ast.ParamDecl {
	var params []ast.ParamDecl
	p.expect(token.LParen, "'('")
	if !p.at(token.RParen) {
		for {
			pd := ast.ParamDecl{}
			pd.Name = p.expect(token.Ident, "parameter name").Lexeme
			if p.at(token.KwAs) {
				p.advance()
				pd.TypeName = p.parseTypeName()
			}
			params = append(params, pd)
			if !p.at(token.Comma) {
				break
			}
			p.advance()
		}
	}
	p.expect(token.RParen, "')'")
	return params
}

func (p *Parser) parseSubDecl() {
	loc := p.advance().Loc
	nameTok := p.expect(token.Ident, "identifier")
	params := p.parseParamList()
	body := p.parseStatementList(token.KwEndSub)
	p.expect(token.KwEndSub, "END SUB")
	p.prog.Subs = append(p.prog.Subs, &ast.SubDeclStmt{StmtBase: ast.S(loc), Name: nameTok.Lexeme, Params: params, Body: body})
}

func (p *Parser) parseFunctionDecl() {
	loc := p.advance().Loc
	nameTok := p.expect(token.Ident, "identifier")
	params := p.parseParamList()
	retType := ""
	if p.at(token.KwAs) {
		p.advance()
		retType = p.parseTypeName()
	}
	body := p.parseStatementList(token.KwEndFunction)
	p.expect(token.KwEndFunction, "END FUNCTION")
	p.prog.Functions = append(p.prog.Functions, &ast.FunctionDeclStmt{
		StmtBase: ast.S(loc), Name: nameTok.Lexeme, Params: params, RetType: retType, Body: body,
	})
}

func (p *Parser) parseDefFn() {
	loc := p.advance().Loc
	p.expect(token.KwFn, "FN")
	nameTok := p.expect(token.Ident, "identifier")
	p.expect(token.LParen, "'('")
	var params []string
	if !p.at(token.RParen) {
		for {
			params = append(params, p.expect(token.Ident, "parameter name").Lexeme)
			if !p.at(token.Comma) {
				break
			}
			p.advance()
		}
	}
	p.expect(token.RParen, "')'")
	p.expect(token.Eq, "'='")
	body := p.parseExpr(0)
	p.prog.DefFns = append(p.prog.DefFns, &ast.DefFnStmt{StmtBase: ast.S(loc), Name: nameTok.Lexeme, Params: params, Body: body})
}
