package cfgir

import (
	"fmt"

	"github.com/fasterbasic/fbc/internal/ast"
)

// Builder constructs a ProgramCFG from a parsed ast.Program in a single
// recursive pass (spec.md §4.4 "CFG builder (v2)").
type Builder struct {
	prog *ast.Program
	fn   *FunctionCFG
	cur  *Block

	labelBlocks map[string]BlockID
	pending     []pendingEdge

	loopStack    []loopCtx
	blockCounter int
}

type pendingEdge struct {
	block *Block
	slot  int
	label string
}

type loopCtx struct {
	header BlockID
	exit   BlockID
	name   string // FOR loop variable, "" for WHILE/DO/REPEAT
}

// Build runs the CFG builder over prog and returns the whole-program CFG
// (spec.md §3.8).
func Build(prog *ast.Program) *ProgramCFG {
	pc := &ProgramCFG{FunctionCFGs: make(map[string]*FunctionCFG)}
	b := &Builder{prog: prog}
	pc.Main = b.buildFunction("", prog.Main, true, false)
	for _, s := range prog.Subs {
		pc.FunctionCFGs[s.Name] = b.buildFunction(s.Name, s.Body, false, true)
	}
	for _, f := range prog.Functions {
		pc.FunctionCFGs[f.Name] = b.buildFunction(f.Name, f.Body, false, false)
	}
	return pc
}

func (b *Builder) buildFunction(name string, body []ast.Stmt, isMain, isSub bool) *FunctionCFG {
	fn := &FunctionCFG{Name: name, IsMain: isMain, IsSub: isSub, GosubReturnSites: make(map[BlockID]BlockID)}
	b.fn = fn
	b.labelBlocks = make(map[string]BlockID)
	b.pending = nil
	b.loopStack = nil

	entry := fn.newBlock(b.label("entry"))
	fn.Entry = entry.ID
	b.cur = entry

	b.processNestedStatements(body)

	if len(b.cur.OutEdges) == 0 {
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: RETURN})
	}

	b.resolvePending()
	b.markUnreachable(fn)
	return fn
}

func (b *Builder) label(prefix string) string {
	b.blockCounter++
	return fmt.Sprintf("%s_%d", prefix, b.blockCounter)
}

// processNestedStatements walks a statement list, appending pure-sequential
// statements to the current block and dispatching control-flow statements to
// their builder routines (spec.md §4.4).
func (b *Builder) processNestedStatements(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.IfStmt:
			b.buildIf(st)
		case *ast.ForStmt:
			b.buildFor(st)
		case *ast.WhileStmt:
			b.buildWhile(st)
		case *ast.DoLoopStmt:
			b.buildDoLoop(st)
		case *ast.RepeatStmt:
			b.buildRepeat(st)
		case *ast.SelectCaseStmt:
			b.buildSelectCase(st)
		case *ast.GotoStmt:
			b.buildGoto(st)
		case *ast.GosubStmt:
			b.buildGosub(st)
		case *ast.OnGotoStmt:
			if st.IsGosub {
				b.buildOnGosub(st)
			} else {
				b.buildOnGoto(st)
			}
		case *ast.TryStmt:
			b.buildTry(st)
		case *ast.EndStmt:
			b.buildEnd(st)
		case *ast.ReturnStmt:
			b.cur.Append(st)
			b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: RETURN})
			b.startNewCurrent("after_return")
		case *ast.ExitStmt:
			b.buildExit(st)
		case *ast.LabelStmt:
			b.buildLabel(st)
		default:
			b.cur.Append(s)
		}
	}
}

// startNewCurrent opens a fresh block with no predecessor edge yet (used
// after unconditional terminators so trailing statements still land
// somewhere emittable, per spec.md §3.8 "every block ... is emitted, even if
// flagged unreachable").
func (b *Builder) startNewCurrent(prefix string) {
	blk := b.fn.newBlock(b.label(prefix))
	b.cur = blk
}

func (b *Builder) buildLabel(st *ast.LabelStmt) {
	if len(b.cur.Statements) > 0 || len(b.cur.OutEdges) > 0 {
		target := b.fn.newBlock(st.Name)
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: target.ID})
		b.cur = target
	} else {
		b.cur.Label = st.Name
	}
	b.labelBlocks[st.Name] = b.cur.ID
}

// buildIf lowers a (possibly synthetic, from SELECT CASE) IfStatement into a
// check block with a CONDITIONAL edge to THEN/ELSE blocks that rejoin at a
// shared successor (spec.md §3.8 invariant: exactly one TRUE and one FALSE
// out-edge, last statement is an IfStatement).
func (b *Builder) buildIf(st *ast.IfStmt) {
	check := b.cur
	check.Append(st)

	thenBlk := b.fn.newBlock(b.label("then"))
	check.OutEdges = append(check.OutEdges, Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: thenBlk.ID})

	b.cur = thenBlk
	b.processNestedStatements(st.Then)
	thenEnd := b.cur

	elseBlk := b.fn.newBlock(b.label("elseif"))
	check.OutEdges = append(check.OutEdges, Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: elseBlk.ID})
	b.cur = elseBlk

	b.buildElseIfChain(st.ElseIfs, st.Else)

	join := b.fn.newBlock(b.label("endif"))
	if len(thenEnd.OutEdges) == 0 {
		thenEnd.OutEdges = append(thenEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
	}
	if len(b.cur.OutEdges) == 0 {
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
	}
	b.cur = join
}

// buildElseIfChain recursively lowers a chain of ELSEIF clauses into nested
// check blocks, finishing with the ELSE body (spec.md §4.2: "ELSEIF clauses
// form a chain").
func (b *Builder) buildElseIfChain(elseIfs []ast.ElseIfClause, elseBody []ast.Stmt) {
	if len(elseIfs) == 0 {
		b.processNestedStatements(elseBody)
		return
	}
	ei := elseIfs[0]
	check := b.cur
	check.Append(wrapSyntheticIf(ei.Cond, ei.Body))

	thenBlk := b.fn.newBlock(b.label("elseif_then"))
	check.OutEdges = append(check.OutEdges, Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: thenBlk.ID})
	b.cur = thenBlk
	b.processNestedStatements(ei.Body)
	thenEnd := b.cur

	restBlk := b.fn.newBlock(b.label("elseif_rest"))
	check.OutEdges = append(check.OutEdges, Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: restBlk.ID})
	b.cur = restBlk
	b.buildElseIfChain(elseIfs[1:], elseBody)
	restEnd := b.cur

	join := b.fn.newBlock(b.label("elseif_join"))
	if len(thenEnd.OutEdges) == 0 {
		thenEnd.OutEdges = append(thenEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
	}
	if len(restEnd.OutEdges) == 0 {
		restEnd.OutEdges = append(restEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
	}
	b.cur = join
}

func wrapSyntheticIf(cond ast.Expr, body []ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{StmtBase: ast.S(cond.Loc()), Cond: cond, Then: body, Synthetic: true}
}

// buildFor creates distinct header, body, increment, and exit blocks and a
// back-edge from increment to header (spec.md §4.4).
func (b *Builder) buildFor(st *ast.ForStmt) {
	init := b.cur
	init.Append(&ast.LetStmt{StmtBase: ast.S(st.Loc()), Target: &ast.VarExpr{ExprBase: ast.E(st.Loc()), Name: st.Var}, Value: st.Start})

	header := b.fn.newBlock(b.label("for_header"))
	init.OutEdges = append(init.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID})
	// Step direction is a runtime value in general, but a negative constant
	// literal step is known at build time; codegen's ASTEmitter picks the
	// matching comparison when step is non-constant (spec.md §3.6).
	loopVar := &ast.VarExpr{ExprBase: ast.E(st.Loc()), Name: st.Var}
	cmpOp := "<="
	if lit, ok := st.Step.(*ast.IntLit); ok && lit.Value < 0 {
		cmpOp = ">="
	} else if lit, ok := st.Step.(*ast.FloatLit); ok && lit.Value < 0 {
		cmpOp = ">="
	} else if u, ok := st.Step.(*ast.UnaryExpr); ok && u.Op == "-" {
		// The parser reads "STEP -1" as unary minus applied to the literal 1.
		switch u.Operand.(type) {
		case *ast.IntLit, *ast.FloatLit:
			cmpOp = ">="
		}
	}
	header.Append(wrapSyntheticIf(&ast.BinaryExpr{ExprBase: ast.E(st.Loc()), Op: cmpOp, Left: loopVar, Right: st.End}, nil))

	bodyBlk := b.fn.newBlock(b.label("for_body"))
	exitBlk := b.fn.newBlock(b.label("for_exit"))
	header.OutEdges = append(header.OutEdges,
		Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: bodyBlk.ID},
		Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: exitBlk.ID})

	b.loopStack = append(b.loopStack, loopCtx{header: header.ID, exit: exitBlk.ID, name: st.Var})
	b.cur = bodyBlk
	b.processNestedStatements(st.Body)
	bodyEnd := b.cur

	incr := b.fn.newBlock(b.label("for_incr"))
	if len(bodyEnd.OutEdges) == 0 {
		bodyEnd.OutEdges = append(bodyEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: incr.ID})
	}
	step := st.Step
	if step == nil {
		step = &ast.IntLit{ExprBase: ast.E(st.Loc()), Value: 1}
	}
	incr.Append(&ast.LetStmt{StmtBase: ast.S(st.Loc()),
		Target: &ast.VarExpr{ExprBase: ast.E(st.Loc()), Name: st.Var},
		Value:  &ast.BinaryExpr{ExprBase: ast.E(st.Loc()), Op: "+", Left: &ast.VarExpr{ExprBase: ast.E(st.Loc()), Name: st.Var}, Right: step}})
	incr.OutEdges = append(incr.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID}) // back-edge

	b.loopStack = b.loopStack[:len(b.loopStack)-1]
	b.cur = exitBlk
}

func (b *Builder) buildWhile(st *ast.WhileStmt) {
	prev := b.cur
	header := b.fn.newBlock(b.label("while_header"))
	if len(prev.OutEdges) == 0 {
		prev.OutEdges = append(prev.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID})
	}
	header.Append(wrapSyntheticIf(st.Cond, nil))

	bodyBlk := b.fn.newBlock(b.label("while_body"))
	exitBlk := b.fn.newBlock(b.label("while_exit"))
	header.OutEdges = append(header.OutEdges,
		Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: bodyBlk.ID},
		Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: exitBlk.ID})

	b.loopStack = append(b.loopStack, loopCtx{header: header.ID, exit: exitBlk.ID})
	b.cur = bodyBlk
	b.processNestedStatements(st.Body)
	if len(b.cur.OutEdges) == 0 {
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID})
	}
	b.loopStack = b.loopStack[:len(b.loopStack)-1]
	b.cur = exitBlk
}

// buildDoLoop handles DO [WHILE|UNTIL cond] ... LOOP [WHILE|UNTIL cond],
// a head-tested, tail-tested, or unconditional loop (spec.md §3.7).
func (b *Builder) buildDoLoop(st *ast.DoLoopStmt) {
	prev := b.cur
	header := b.fn.newBlock(b.label("do_header"))
	if len(prev.OutEdges) == 0 {
		prev.OutEdges = append(prev.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID})
	}

	bodyBlk := b.fn.newBlock(b.label("do_body"))
	exitBlk := b.fn.newBlock(b.label("do_exit"))

	if st.HeadCond != nil {
		cond := st.HeadCond
		if st.HeadUntil {
			cond = &ast.UnaryExpr{ExprBase: ast.E(st.Loc()), Op: "NOT", Operand: cond}
		}
		header.Append(wrapSyntheticIf(cond, nil))
		header.OutEdges = append(header.OutEdges,
			Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: bodyBlk.ID},
			Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: exitBlk.ID})
	} else {
		header.OutEdges = append(header.OutEdges, Edge{Kind: FALLTHROUGH, Target: bodyBlk.ID})
	}

	b.loopStack = append(b.loopStack, loopCtx{header: header.ID, exit: exitBlk.ID})
	b.cur = bodyBlk
	b.processNestedStatements(st.Body)
	bodyEnd := b.cur

	if st.TailCond != nil {
		tail := b.fn.newBlock(b.label("do_tail"))
		if len(bodyEnd.OutEdges) == 0 {
			bodyEnd.OutEdges = append(bodyEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: tail.ID})
		}
		cond := st.TailCond
		if st.TailUntil {
			cond = &ast.UnaryExpr{ExprBase: ast.E(st.Loc()), Op: "NOT", Operand: cond}
		}
		tail.Append(wrapSyntheticIf(cond, nil))
		tail.OutEdges = append(tail.OutEdges,
			Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: header.ID}, // loop again
			Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: exitBlk.ID})
	} else if len(bodyEnd.OutEdges) == 0 {
		bodyEnd.OutEdges = append(bodyEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID})
	}

	b.loopStack = b.loopStack[:len(b.loopStack)-1]
	b.cur = exitBlk
}

// buildRepeat lowers REPEAT ... UNTIL cond: an always-entered body with a
// tail condition (spec.md §3.7 variant).
func (b *Builder) buildRepeat(st *ast.RepeatStmt) {
	prev := b.cur
	header := b.fn.newBlock(b.label("repeat_body"))
	if len(prev.OutEdges) == 0 {
		prev.OutEdges = append(prev.OutEdges, Edge{Kind: FALLTHROUGH, Target: header.ID})
	}
	exitBlk := b.fn.newBlock(b.label("repeat_exit"))

	b.loopStack = append(b.loopStack, loopCtx{header: header.ID, exit: exitBlk.ID})
	b.cur = header
	b.processNestedStatements(st.Body)
	bodyEnd := b.cur

	tail := b.fn.newBlock(b.label("repeat_tail"))
	if len(bodyEnd.OutEdges) == 0 {
		bodyEnd.OutEdges = append(bodyEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: tail.ID})
	}
	tail.Append(wrapSyntheticIf(st.Cond, nil))
	tail.OutEdges = append(tail.OutEdges,
		Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: exitBlk.ID},
		Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: header.ID})

	b.loopStack = b.loopStack[:len(b.loopStack)-1]
	b.cur = exitBlk
}

// buildSelectCase lowers SELECT CASE into a chain of synthetic IfStatement
// check blocks (spec.md §4.4: "CASE v1, v2 becomes (x=v1) OR (x=v2);
// CASE a TO b becomes (x>=a) AND (x<=b); CASE IS op v becomes x op v").
func (b *Builder) buildSelectCase(st *ast.SelectCaseStmt) {
	selVar := &ast.VarExpr{ExprBase: ast.E(st.Loc()), Name: "__select_tmp"}
	b.cur.Append(&ast.LetStmt{StmtBase: ast.S(st.Loc()), Target: selVar, Value: st.Selector})

	join := BlockID(-1)
	var emitChain func(cases []ast.CaseClause)
	emitChain = func(cases []ast.CaseClause) {
		if len(cases) == 0 {
			return
		}
		c := cases[0]
		if c.IsElse {
			b.processNestedStatements(c.Body)
			if len(b.cur.OutEdges) == 0 && join >= 0 {
				b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: join})
			}
			return
		}
		cond := caseCondition(selVar, c)
		check := b.cur
		check.Append(wrapSyntheticIf(cond, c.Body))

		thenBlk := b.fn.newBlock(b.label("case_then"))
		check.OutEdges = append(check.OutEdges, Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: thenBlk.ID})
		restBlk := b.fn.newBlock(b.label("case_rest"))
		check.OutEdges = append(check.OutEdges, Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: restBlk.ID})

		b.cur = thenBlk
		b.processNestedStatements(c.Body)
		thenEnd := b.cur

		b.cur = restBlk
		emitChain(cases[1:])

		if join < 0 {
			j := b.fn.newBlock(b.label("select_join"))
			join = j.ID
		}
		if len(thenEnd.OutEdges) == 0 {
			thenEnd.OutEdges = append(thenEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: join})
		}
	}
	emitChain(st.Cases)
	if join < 0 {
		j := b.fn.newBlock(b.label("select_join"))
		join = j.ID
	}
	if len(b.cur.OutEdges) == 0 {
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: join})
	}
	b.cur = b.fn.Block(join)
}

func caseCondition(selVar ast.Expr, c ast.CaseClause) ast.Expr {
	var parts []ast.Expr
	for _, v := range c.Values {
		parts = append(parts, &ast.BinaryExpr{ExprBase: ast.E(v.Loc()), Op: "=", Left: selVar, Right: v})
	}
	for _, r := range c.Ranges {
		ge := &ast.BinaryExpr{ExprBase: ast.E(r[0].Loc()), Op: ">=", Left: selVar, Right: r[0]}
		le := &ast.BinaryExpr{ExprBase: ast.E(r[1].Loc()), Op: "<=", Left: selVar, Right: r[1]}
		parts = append(parts, &ast.BinaryExpr{ExprBase: ast.E(r[0].Loc()), Op: "AND", Left: ge, Right: le})
	}
	for _, io := range c.IsOps {
		parts = append(parts, &ast.BinaryExpr{ExprBase: ast.E(io.Value.Loc()), Op: io.Op, Left: selVar, Right: io.Value})
	}
	if len(parts) == 0 {
		return &ast.IntLit{Value: 0}
	}
	expr := parts[0]
	for _, p := range parts[1:] {
		expr = &ast.BinaryExpr{ExprBase: ast.E(p.Loc()), Op: "OR", Left: expr, Right: p}
	}
	return expr
}

func (b *Builder) buildGoto(st *ast.GotoStmt) {
	b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH})
	slot := len(b.cur.OutEdges) - 1
	b.pending = append(b.pending, pendingEdge{block: b.cur, slot: slot, label: st.Label})
	b.startNewCurrent("after_goto")
}

// buildGosub wires an unconditional edge to the subroutine's first block and
// records the next sequential block as the GOSUB return site (spec.md §3.8,
// §4.4: "the block immediately following the GOSUB is recorded as the return
// site and wired as the RETURN target").
func (b *Builder) buildGosub(st *ast.GosubStmt) {
	b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH})
	slot := len(b.cur.OutEdges) - 1
	b.pending = append(b.pending, pendingEdge{block: b.cur, slot: slot, label: st.Label})

	retSite := b.fn.newBlock(b.label("after_gosub"))
	b.fn.GosubReturnSites[b.cur.ID] = retSite.ID
	b.cur = retSite
}

func (b *Builder) buildOnGoto(st *ast.OnGotoStmt) {
	b.cur.Append(st)
	for i, l := range st.Labels {
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: MULTIWAY, Index: i + 1})
		slot := len(b.cur.OutEdges) - 1
		b.pending = append(b.pending, pendingEdge{block: b.cur, slot: slot, label: l})
	}
	def := b.fn.newBlock(b.label("on_goto_default"))
	b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: MULTIWAY, Index: 0, Target: def.ID})
	b.cur = def
}

func (b *Builder) buildOnGosub(st *ast.OnGotoStmt) {
	b.cur.Append(st)
	retSite := b.fn.newBlock(b.label("after_on_gosub"))
	for i, l := range st.Labels {
		b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: MULTIWAY, Index: i + 1})
		slot := len(b.cur.OutEdges) - 1
		b.pending = append(b.pending, pendingEdge{block: b.cur, slot: slot, label: l})
	}
	b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: MULTIWAY, Index: 0, Target: retSite.ID})
	b.fn.GosubReturnSites[b.cur.ID] = retSite.ID
	b.cur = retSite
}

func (b *Builder) buildEnd(st *ast.EndStmt) {
	b.cur.Append(st)
	b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: RETURN})
	b.startNewCurrent("after_end")
}

func (b *Builder) buildExit(st *ast.ExitStmt) {
	if len(b.loopStack) == 0 {
		b.cur.Append(st)
		return
	}
	top := b.loopStack[len(b.loopStack)-1]
	b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: top.exit})
	b.startNewCurrent("after_exit")
}

// buildTry lowers TRY/CATCH/FINALLY into body/catch/finally blocks that all
// rejoin past END TRY (spec.md §4.7). The exception-context push/pop and
// setjmp dispatch are codegen responsibilities; the CFG only records the
// block shape the runtime calls jump between.
func (b *Builder) buildTry(st *ast.TryStmt) {
	prev := b.cur
	checkBlk := b.fn.newBlock(b.label("try_check"))
	prev.OutEdges = append(prev.OutEdges, Edge{Kind: FALLTHROUGH, Target: checkBlk.ID})
	checkBlk.Append(&ast.TryDispatchStmt{StmtBase: ast.S(st.Loc()), HasFinally: st.HasFinally})

	tryBlk := b.fn.newBlock(b.label("try_body"))
	join := b.fn.newBlock(b.label("end_try"))

	var catchBlk *Block
	if st.HasCatch {
		catchBlk = b.fn.newBlock(b.label("catch"))
		catchBlk.Append(&ast.CatchBindStmt{StmtBase: ast.S(st.Loc()), VarName: st.CatchVar})
	}

	// When there's no CATCH, the exception path must still run FINALLY
	// exactly once before the exception propagates past this TRY (spec.md
	// §8.1) — it can never join the normal post-try flow, so it gets its
	// own block rather than sharing checkBlk's FALSE edge with `join`.
	var uncaughtBlk *Block
	if !st.HasCatch {
		uncaughtBlk = b.fn.newBlock(b.label("try_uncaught"))
	}

	// The check block's TRUE edge is the normal (setjmp==0) path into the
	// body; FALSE is the longjmp-from-exception path, landing in catch if
	// present, else in the uncaught-propagation block.
	checkBlk.OutEdges = append(checkBlk.OutEdges, Edge{Kind: CONDITIONAL, Branch: TrueBranch, Target: tryBlk.ID})
	if catchBlk != nil {
		checkBlk.OutEdges = append(checkBlk.OutEdges, Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: catchBlk.ID})
	} else {
		checkBlk.OutEdges = append(checkBlk.OutEdges, Edge{Kind: CONDITIONAL, Branch: FalseBranch, Target: uncaughtBlk.ID})
	}

	b.cur = tryBlk
	b.processNestedStatements(st.Body)
	bodyEnd := b.cur
	if len(bodyEnd.OutEdges) == 0 {
		bodyEnd.Append(&ast.ExceptionPopStmt{StmtBase: ast.S(st.Loc())})
	}

	var catchEnd *Block
	if catchBlk != nil {
		b.cur = catchBlk
		b.processNestedStatements(st.CatchBody)
		catchEnd = b.cur
	}

	if st.HasFinally {
		finBlk := b.fn.newBlock(b.label("finally"))
		if len(bodyEnd.OutEdges) == 0 {
			bodyEnd.OutEdges = append(bodyEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: finBlk.ID})
		}
		if catchEnd != nil && len(catchEnd.OutEdges) == 0 {
			catchEnd.OutEdges = append(catchEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: finBlk.ID})
		}
		b.cur = finBlk
		b.processNestedStatements(st.Finally)
		if len(b.cur.OutEdges) == 0 {
			b.cur.OutEdges = append(b.cur.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
		}
	} else {
		if len(bodyEnd.OutEdges) == 0 {
			bodyEnd.OutEdges = append(bodyEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
		}
		if catchEnd != nil && len(catchEnd.OutEdges) == 0 {
			catchEnd.OutEdges = append(catchEnd.OutEdges, Edge{Kind: FALLTHROUGH, Target: join.ID})
		}
	}

	if uncaughtBlk != nil {
		// FINALLY's statements are lowered a second time here: the
		// uncaught path's tail differs from the caught path's (propagate,
		// not fall through to `join`), so the two can't share one block.
		b.cur = uncaughtBlk
		if st.HasFinally {
			b.processNestedStatements(st.Finally)
		}
		b.cur.Append(&ast.ExceptionRethrowStmt{StmtBase: ast.S(st.Loc())})
		// No out-edge: fb_exception_propagate never returns control to
		// this block's normal successor, it longjmps to an outer frame or
		// aborts the program.
	}

	b.cur = join
}

func (b *Builder) resolvePending() {
	for _, p := range b.pending {
		id, ok := b.labelBlocks[p.label]
		if !ok {
			// Undefined label: the semantic analyzer already reported this
			// as diag.Undefined; point the edge at the function's exit so
			// the IL remains well-formed.
			id = b.fn.Entry
		}
		p.block.OutEdges[p.slot].Target = id
	}
}

// markUnreachable runs a reachability scan from the entry block so codegen
// can flag (without omitting) blocks only reachable by computed jump
// (spec.md §3.8: "Every block ... is emitted, even if flagged unreachable").
func (b *Builder) markUnreachable(fn *FunctionCFG) {
	seen := make(map[BlockID]bool)
	var walk func(id BlockID)
	walk = func(id BlockID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, e := range fn.Block(id).OutEdges {
			if e.Kind != RETURN {
				walk(e.Target)
			}
		}
	}
	walk(fn.Entry)
	for _, blk := range fn.Blocks {
		if !seen[blk.ID] {
			blk.Unreachable = true
		}
	}
}
