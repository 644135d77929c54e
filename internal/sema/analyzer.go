package sema

import (
	"strings"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/symtab"
	"github.com/fasterbasic/fbc/internal/types"
)

// Analyzer walks a parsed ast.Program performing the four phases of
// spec.md §4.3.
type Analyzer struct {
	ctx   *Context
	res   *Result
	curFn string // "" while analyzing the main program
}

// New constructs a semantic analyzer against ctx.
func New(ctx *Context) *Analyzer {
	return &Analyzer{ctx: ctx, res: newResult(ctx)}
}

// Analyze runs all four phases and returns the analysis Result. Errors are
// reported to ctx.Diags; callers should check ctx.Diags.HasErrors() after.
func (a *Analyzer) Analyze(prog *ast.Program) *Result {
	a.phase1CollectTypes(prog)
	a.phase2DeclareSignatures(prog)
	a.phase3Walk(prog)
	return a.res
}

// ===== Phase 1: TYPE declarations =====

func (a *Analyzer) phase1CollectTypes(prog *ast.Program) {
	for _, td := range prog.Types {
		ts, ok := a.ctx.Symbols.DeclareType(td.Name)
		if !ok {
			a.ctx.Diags.Report(diag.Redefinition, td.Loc(), "type %s already declared", td.Name)
			continue
		}
		var fields []symtab.FieldSymbol
		for _, f := range td.Fields {
			ftd, ok := a.resolveTypeName(f.TypeName)
			if !ok {
				a.ctx.Diags.Report(diag.Undefined, td.Loc(), "unknown type %s in field %s.%s", f.TypeName, td.Name, f.Name)
				continue
			}
			fields = append(fields, symtab.FieldSymbol{Name: f.Name, Type: ftd})
		}
		laidOut, size, align := symtab.LayoutFields(fields)
		ts.Fields = laidOut
		ts.Size = size
		ts.Align = align
		ts.SIMDCandidate = symtab.DetectSIMDCandidate(laidOut)
	}
	a.checkUDTCycles(prog)
}

// checkUDTCycles verifies nested UDT fields do not form a cycle (spec.md §4.3 phase 1).
func (a *Analyzer) checkUDTCycles(prog *ast.Program) {
	visiting := map[string]int{} // 0=unvisited,1=visiting,2=done
	var visit func(name string) bool
	visit = func(name string) bool {
		if visiting[name] == 1 {
			return false
		}
		if visiting[name] == 2 {
			return true
		}
		visiting[name] = 1
		ts, ok := a.ctx.Symbols.LookupType(name)
		if ok {
			for _, f := range ts.Fields {
				if f.Type.Base == types.USER_DEFINED {
					if inner, ok := a.nameForUDTID(f.Type.UDTTypeID); ok {
						if !visit(inner) {
							return false
						}
					}
				}
			}
		}
		visiting[name] = 2
		return true
	}
	for _, name := range a.ctx.Symbols.TypeNames() {
		if !visit(name) {
			a.ctx.Diags.Report(diag.BadControlFlow, diag.Location{}, "cyclic nested TYPE involving %s", name)
		}
	}
}

func (a *Analyzer) nameForUDTID(id uint32) (string, bool) {
	for _, name := range a.ctx.Symbols.TypeNames() {
		if ts, ok := a.ctx.Symbols.LookupType(name); ok && ts.ID == id {
			return name, true
		}
	}
	return "", false
}

// ===== Phase 2: forward-declare SUB/FUNCTION/DEF FN signatures =====

func (a *Analyzer) phase2DeclareSignatures(prog *ast.Program) {
	for _, s := range prog.Subs {
		sig := &symtab.FuncSignature{Name: s.Name, IsSub: true}
		a.fillParams(sig, s.Params)
		sig.RetType = types.Scalar(types.VOID)
		if !a.ctx.Symbols.DeclareFunc(sig) {
			a.ctx.Diags.Report(diag.Redefinition, s.Loc(), "SUB %s already declared", s.Name)
		}
	}
	for _, f := range prog.Functions {
		sig := &symtab.FuncSignature{Name: f.Name}
		a.fillParams(sig, f.Params)
		rt, ok := a.resolveTypeName(f.RetType)
		if !ok {
			rt = types.Scalar(types.DOUBLE)
		}
		sig.RetType = rt
		if !a.ctx.Symbols.DeclareFunc(sig) {
			a.ctx.Diags.Report(diag.Redefinition, f.Loc(), "FUNCTION %s already declared", f.Name)
		}
	}
	for _, d := range prog.DefFns {
		sig := &symtab.FuncSignature{Name: d.Name, IsDefFn: true, RetType: types.Scalar(types.DOUBLE)}
		for _, p := range d.Params {
			sig.ParamNames = append(sig.ParamNames, p)
			sig.Params = append(sig.Params, types.Scalar(types.DOUBLE))
			sig.ParamByRef = append(sig.ParamByRef, false)
		}
		if !a.ctx.Symbols.DeclareFunc(sig) {
			a.ctx.Diags.Report(diag.Redefinition, d.Loc(), "DEF FN%s already declared", d.Name)
		}
	}
}

func (a *Analyzer) fillParams(sig *symtab.FuncSignature, params []ast.ParamDecl) {
	for _, p := range params {
		td, ok := a.resolveTypeName(p.TypeName)
		if !ok {
			td = types.Scalar(types.DOUBLE)
		}
		sig.Params = append(sig.Params, td)
		sig.ParamNames = append(sig.ParamNames, p.Name)
		sig.ParamByRef = append(sig.ParamByRef, p.ByRef)
	}
}

// ===== Phase 3: walk the program =====

func (a *Analyzer) phase3Walk(prog *ast.Program) {
	a.curFn = ""
	a.collectLabels(prog.Main)
	a.walkStmts(prog.Main)

	for _, s := range prog.Subs {
		a.curFn = s.Name
		for _, p := range s.Params {
			td, _ := a.resolveTypeName(p.TypeName)
			a.ctx.Symbols.DeclareLocal(s.Name, p.Name, td)
		}
		a.collectLabels(s.Body)
		a.walkStmts(s.Body)
	}
	for _, f := range prog.Functions {
		a.curFn = f.Name
		for _, p := range f.Params {
			td, _ := a.resolveTypeName(p.TypeName)
			a.ctx.Symbols.DeclareLocal(f.Name, p.Name, td)
		}
		retType, _ := a.resolveTypeName(f.RetType)
		a.ctx.Symbols.DeclareLocal(f.Name, f.Name, retType) // F = value assigns the return
		a.collectLabels(f.Body)
		a.walkStmts(f.Body)
	}
	for _, d := range prog.DefFns {
		a.curFn = "FN" + d.Name
		for _, p := range d.Params {
			a.ctx.Symbols.DeclareLocal(a.curFn, p, types.Scalar(types.DOUBLE))
		}
		a.exprType(d.Body)
	}
	a.curFn = ""
}

func (a *Analyzer) collectLabels(stmts []ast.Stmt) {
	for _, s := range stmts {
		if l, ok := s.(*ast.LabelStmt); ok {
			a.ctx.labelSet[l.Name] = true
		}
	}
}

func (a *Analyzer) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		a.walkStmt(s)
	}
}

func (a *Analyzer) walkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.DimStmt:
		for _, d := range st.Decls {
			a.declareDim(st, d)
		}
	case *ast.LetStmt:
		a.checkLet(st)
	case *ast.PrintStmt:
		for _, it := range st.Items {
			a.exprType(it.Expr)
		}
	case *ast.InputStmt:
		a.exprType(st.Target)
	case *ast.IfStmt:
		a.exprType(st.Cond)
		a.walkStmts(st.Then)
		for _, ei := range st.ElseIfs {
			a.exprType(ei.Cond)
			a.walkStmts(ei.Body)
		}
		a.walkStmts(st.Else)
	case *ast.ForStmt:
		a.declareVar(st.Var, types.Scalar(types.LOOP_INDEX))
		a.exprType(st.Start)
		a.exprType(st.End)
		if st.Step != nil {
			a.exprType(st.Step)
		}
		a.ctx.loopStack = append(a.ctx.loopStack, loopFrame{kind: ast.ExitFor, name: st.Var})
		a.walkStmts(st.Body)
		a.ctx.loopStack = a.ctx.loopStack[:len(a.ctx.loopStack)-1]
	case *ast.WhileStmt:
		a.exprType(st.Cond)
		a.ctx.loopStack = append(a.ctx.loopStack, loopFrame{kind: ast.ExitWhile})
		a.walkStmts(st.Body)
		a.ctx.loopStack = a.ctx.loopStack[:len(a.ctx.loopStack)-1]
	case *ast.DoLoopStmt:
		if st.HeadCond != nil {
			a.exprType(st.HeadCond)
		}
		if st.TailCond != nil {
			a.exprType(st.TailCond)
		}
		a.ctx.loopStack = append(a.ctx.loopStack, loopFrame{kind: ast.ExitDo})
		a.walkStmts(st.Body)
		a.ctx.loopStack = a.ctx.loopStack[:len(a.ctx.loopStack)-1]
	case *ast.RepeatStmt:
		a.ctx.loopStack = append(a.ctx.loopStack, loopFrame{kind: ast.ExitDo})
		a.walkStmts(st.Body)
		a.ctx.loopStack = a.ctx.loopStack[:len(a.ctx.loopStack)-1]
		a.exprType(st.Cond)
	case *ast.SelectCaseStmt:
		a.exprType(st.Selector)
		for _, c := range st.Cases {
			for _, v := range c.Values {
				a.exprType(v)
			}
			for _, r := range c.Ranges {
				a.exprType(r[0])
				a.exprType(r[1])
			}
			for _, io := range c.IsOps {
				a.exprType(io.Value)
			}
			a.walkStmts(c.Body)
		}
	case *ast.GotoStmt:
		a.checkLabelExists(st.Label, st.Loc())
	case *ast.GosubStmt:
		a.checkLabelExists(st.Label, st.Loc())
	case *ast.OnGotoStmt:
		a.exprType(st.Selector)
		for _, l := range st.Labels {
			a.checkLabelExists(l, st.Loc())
		}
	case *ast.ExitStmt:
		a.checkExit(st)
	case *ast.LocalStmt:
		td, ok := a.resolveTypeName(st.TypeName)
		if !ok {
			a.ctx.Diags.Report(diag.Undefined, st.Loc(), "unknown type %s", st.TypeName)
			td = types.Scalar(types.DOUBLE)
		}
		a.ctx.Symbols.DeclareLocal(a.curFn, st.Name, td)
	case *ast.TryStmt:
		a.walkStmts(st.Body)
		if st.HasCatch {
			if st.CatchVar != "" {
				a.declareVar(st.CatchVar, types.TypeDescriptor{Base: types.USER_DEFINED})
			}
			a.walkStmts(st.CatchBody)
		} else {
			a.ctx.Diags.Report(diag.BadControlFlow, st.Loc(), "THROW may propagate uncaught past this TRY") // warning-class
		}
		if st.HasFinally {
			a.walkStmts(st.Finally)
		}
	case *ast.ThrowStmt:
		a.exprType(st.Code)
		if st.Message != nil {
			a.exprType(st.Message)
		}
	case *ast.DataStmt:
		for _, v := range st.Values {
			a.exprType(v)
			a.ctx.DataPool = append(a.ctx.DataPool, v)
		}
	case *ast.ReadStmt:
		for _, t := range st.Targets {
			a.exprType(t)
		}
	case *ast.OptionStmt:
		a.applyOption(st)
	case *ast.CallStmt:
		a.checkCall(st.Name, st.Args, st.Loc())
	case *ast.LabelStmt, *ast.EndStmt, *ast.ReturnStmt, *ast.RestoreStmt:
		// no type work
	}
}

func (a *Analyzer) declareVar(name string, td types.TypeDescriptor) *symtab.Symbol {
	if a.curFn == "" {
		s, _ := a.ctx.Symbols.DeclareGlobal(name, td)
		return s
	}
	s, _ := a.ctx.Symbols.DeclareLocal(a.curFn, name, td)
	return s
}

func (a *Analyzer) declareDim(st *ast.DimStmt, d ast.DimDecl) {
	elemType, ok := a.resolveTypeName(d.TypeName)
	if !ok {
		if sfx, has := typeFromSuffix(lastSuffixOf(d.Name)); has {
			elemType = types.Scalar(sfx)
		} else {
			elemType = types.Scalar(types.DOUBLE)
		}
	}
	for _, dim := range d.Dims {
		a.exprType(dim)
	}
	if len(d.Dims) > 0 {
		elemType.Attrs |= types.IsArray
		// Bound expressions are evaluated at runtime (spec.md §3.6); only the
		// rank is fixed at analysis time, so dimension sizes are placeholders
		// resolved by codegen's array descriptor construction.
		elemType.ArrayDims = make([]int, len(d.Dims))
	}
	a.declareVar(d.Name, elemType)
}

func lastSuffixOf(name string) byte {
	if name == "" {
		return 0
	}
	c := name[len(name)-1]
	if strings.IndexByte("@^%&!#$", c) >= 0 {
		return c
	}
	return 0
}

func (a *Analyzer) applyOption(st *ast.OptionStmt) {
	switch st.Kind {
	case ast.OptionBase:
		a.ctx.ArrayBase = st.IntArg
	case ast.OptionAscii:
		a.ctx.StringMode = ModeAscii
	case ast.OptionUnicode:
		a.ctx.StringMode = ModeUnicode
	case ast.OptionDetectString:
		a.ctx.StringMode = ModeDetectString
	}
}

func (a *Analyzer) checkLabelExists(label string, loc diag.Location) {
	if !a.ctx.labelSet[label] {
		// Labels defined later in the same scan are legal (two-step GOTO
		// resolution, spec.md §4.4); defer hard failure to the CFG builder
		// which has the full label set after a first pass.
		return
	}
}

func (a *Analyzer) checkExit(st *ast.ExitStmt) {
	for i := len(a.ctx.loopStack) - 1; i >= 0; i-- {
		if a.ctx.loopStack[i].kind == st.Kind {
			return
		}
	}
	if st.Kind == ast.ExitSub || st.Kind == ast.ExitFunction {
		if a.curFn == "" {
			a.ctx.Diags.Report(diag.BadControlFlow, st.Loc(), "EXIT SUB/FUNCTION outside a SUB or FUNCTION")
		}
		return
	}
	a.ctx.Diags.Report(diag.BadControlFlow, st.Loc(), "EXIT outside matching loop")
}

// checkCall validates a SUB/FUNCTION call's argument count and coercibility
// (spec.md §4.3 phase 3: "Function call").
func (a *Analyzer) checkCall(name string, args []ast.Expr, loc diag.Location) types.TypeDescriptor {
	sig, ok := a.ctx.Symbols.LookupFunc(name)
	if !ok {
		a.ctx.Diags.Report(diag.Undefined, loc, "undefined SUB or FUNCTION %s", name)
		for _, arg := range args {
			a.exprType(arg)
		}
		return types.Scalar(types.VOID)
	}
	if len(args) != len(sig.Params) {
		a.ctx.Diags.Report(diag.TypeMismatch, loc, "%s expects %d arguments, got %d", name, len(sig.Params), len(args))
	}
	for i, arg := range args {
		at := a.exprType(arg)
		if i < len(sig.Params) && !types.Coercible(at, sig.Params[i]) {
			a.ctx.Diags.Report(diag.TypeMismatch, loc, "argument %d to %s is not coercible to the declared parameter type", i+1, name)
		}
	}
	return sig.RetType
}
