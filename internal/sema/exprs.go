package sema

import (
	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/symtab"
	"github.com/fasterbasic/fbc/internal/types"
)

// exprType infers and records the type of e, recursing into subexpressions
// (spec.md §4.3 phase 3: "every expression node is annotated with its
// resolved TypeDescriptor").
func (a *Analyzer) exprType(e ast.Expr) types.TypeDescriptor {
	switch ex := e.(type) {
	case *ast.IntLit:
		if bt, ok := typeFromSuffix(ex.Suffix); ok {
			return a.res.setType(ex, types.Scalar(bt))
		}
		return a.res.setType(ex, types.Scalar(types.LONG))
	case *ast.FloatLit:
		if bt, ok := typeFromSuffix(ex.Suffix); ok {
			return a.res.setType(ex, types.Scalar(bt))
		}
		return a.res.setType(ex, types.Scalar(types.DOUBLE))
	case *ast.StringLit:
		base := types.STRING
		if ex.HasNonASCII {
			base = types.UNICODE
		}
		if a.ctx.StringMode == ModeAscii {
			base = types.STRING
		} else if a.ctx.StringMode == ModeUnicode {
			base = types.UNICODE
		}
		return a.res.setType(ex, types.Scalar(base))
	case *ast.VarExpr:
		return a.res.setType(ex, a.lookupVarType(ex.Name, ex.Suffix, ex.Loc()))
	case *ast.BinaryExpr:
		return a.res.setType(ex, a.binaryType(ex))
	case *ast.UnaryExpr:
		t := a.exprType(ex.Operand)
		return a.res.setType(ex, t)
	case *ast.ConcatExpr:
		for _, p := range ex.Parts {
			a.exprType(p)
		}
		return a.res.setType(ex, types.Scalar(types.STRING))
	case *ast.IndexExpr:
		return a.res.setType(ex, a.indexType(ex))
	case *ast.MemberExpr:
		return a.res.setType(ex, a.memberType(ex))
	case *ast.CallExpr:
		for _, arg := range ex.Args {
			a.exprType(arg)
		}
		return a.res.setType(ex, a.builtinReturnType(ex.Name))
	case *ast.FNCallExpr:
		for _, arg := range ex.Args {
			a.exprType(arg)
		}
		return a.res.setType(ex, a.checkCall(ex.Name, ex.Args, ex.Loc()))
	}
	return types.Scalar(types.VOID)
}

// builtinReturnType maps an intrinsic's mangled name to its result type
// (spec.md §6.2 built-in function table).
func (a *Analyzer) builtinReturnType(name string) types.TypeDescriptor {
	switch name {
	case "LEN", "ASC", "INSTR":
		return types.Scalar(types.INTEGER)
	case "INT", "FIX":
		return types.Scalar(types.LONG)
	case "LEFT_STRING", "RIGHT_STRING", "MID_STRING", "CHR_STRING", "STR_STRING",
		"UCASE_STRING", "LCASE_STRING", "LTRIM_STRING", "RTRIM_STRING", "TRIM_STRING",
		"SPACE_STRING", "STRING_STRING":
		return types.Scalar(types.STRING)
	case "ABS", "SGN", "SQR", "SIN", "COS", "TAN", "ATN", "LOG", "EXP", "RND", "TIMER":
		return types.Scalar(types.DOUBLE)
	case "VAL":
		return types.Scalar(types.DOUBLE)
	}
	return types.Scalar(types.DOUBLE)
}

func (a *Analyzer) lookupVarType(name string, suffix byte, loc diag.Location) types.TypeDescriptor {
	if sym, ok := a.ctx.Symbols.Lookup(a.curFn, name); ok {
		return sym.Type
	}
	// Implicit declaration on first use (spec.md §3.4): DIM-less scalars are
	// legal and default per their suffix, or DOUBLE with none.
	bt := types.DOUBLE
	if b, ok := typeFromSuffix(suffix); ok {
		bt = b
	}
	td := types.Scalar(bt)
	a.declareVar(name, td)
	return td
}

// binaryType computes the result type of a BinaryExpr, checking coercibility
// and reporting NARROWING_REQUIRED / cross-mode string errors (spec.md §3.3).
func (a *Analyzer) binaryType(ex *ast.BinaryExpr) types.TypeDescriptor {
	lt := a.exprType(ex.Left)
	rt := a.exprType(ex.Right)

	switch ex.Op {
	case "AND", "OR":
		return types.Scalar(types.INTEGER)
	case "=", "<>", "<", "<=", ">", ">=":
		a.checkBinaryOperands(ex, lt, rt)
		return types.Scalar(types.INTEGER)
	case "&":
		if lt.IsString() || rt.IsString() {
			return types.Scalar(types.STRING)
		}
		return types.Scalar(types.STRING) // numeric & numeric still concatenates as text
	}

	if lt.IsString() || rt.IsString() {
		if ex.Op == "+" && lt.IsString() && rt.IsString() {
			if lt.Base != rt.Base {
				a.ctx.Diags.Report(diag.TypeMismatch, ex.Loc(), "cannot concatenate STRING and UNICODE operands without an explicit conversion")
			}
			return types.Scalar(lt.Base)
		}
		a.ctx.Diags.Report(diag.TypeMismatch, ex.Loc(), "operator %s is not defined for string operands", ex.Op)
		return types.Scalar(types.STRING)
	}

	a.checkBinaryOperands(ex, lt, rt)
	return types.Scalar(types.Wider(lt.Base, rt.Base))
}

func (a *Analyzer) checkBinaryOperands(ex *ast.BinaryExpr, lt, rt types.TypeDescriptor) {
	if lt.IsString() != rt.IsString() {
		a.ctx.Diags.Report(diag.TypeMismatch, ex.Loc(), "cannot mix string and numeric operands in %s", ex.Op)
	}
}

func (a *Analyzer) indexType(ex *ast.IndexExpr) types.TypeDescriptor {
	baseExpr, ok := ex.Array.(*ast.VarExpr)
	if !ok {
		a.exprType(ex.Array)
		for _, i := range ex.Indices {
			a.exprType(i)
		}
		return types.Scalar(types.VOID)
	}
	sym, ok := a.ctx.Symbols.Lookup(a.curFn, baseExpr.Name)
	for _, i := range ex.Indices {
		a.exprType(i)
	}
	if !ok {
		a.ctx.Diags.Report(diag.Undefined, ex.Loc(), "undeclared array %s", baseExpr.Name)
		return types.Scalar(types.VOID)
	}
	if !sym.Type.Has(types.IsArray) {
		// Not actually an array: this is a disambiguation the parser
		// deferred to analysis (spec.md §4.2 parsePrimary note). Treat as
		// a scalar re-read; codegen's emitIndexRead reads such an IndexExpr
		// as the plain variable and does not evaluate the indices.
		return sym.Type
	}
	elem := sym.Type
	elem.Attrs &^= types.IsArray
	elem.ArrayDims = nil
	return elem
}

func (a *Analyzer) memberType(ex *ast.MemberExpr) types.TypeDescriptor {
	bt := a.exprType(ex.Base)
	if bt.Base != types.USER_DEFINED {
		a.ctx.Diags.Report(diag.TypeMismatch, ex.Loc(), "member access on a non-TYPE value")
		return types.Scalar(types.VOID)
	}
	ts, name := a.typeSymbolByID(bt.UDTTypeID)
	if ts == nil {
		a.ctx.Diags.Report(diag.Undefined, ex.Loc(), "unresolved TYPE for member access")
		return types.Scalar(types.VOID)
	}
	f, ok := ts.FieldByName(ex.Field)
	if !ok {
		a.ctx.Diags.Report(diag.Undefined, ex.Loc(), "TYPE %s has no field %s", name, ex.Field)
		return types.Scalar(types.VOID)
	}
	return f.Type
}

func (a *Analyzer) typeSymbolByID(id uint32) (*symtab.TypeSymbol, string) {
	for _, name := range a.ctx.Symbols.TypeNames() {
		if ts, ok := a.ctx.Symbols.LookupType(name); ok && ts.ID == id {
			return ts, name
		}
	}
	return nil, ""
}

// checkLet validates a LET assignment's target/value coercibility and
// rejects writes to constants or to a function's name from outside its own
// body (spec.md §4.3 phase 3).
func (a *Analyzer) checkLet(st *ast.LetStmt) {
	vt := a.exprType(st.Value)
	tt := a.exprType(st.Target)

	if vexpr, ok := st.Target.(*ast.VarExpr); ok {
		if sym, ok := a.ctx.Symbols.Lookup(a.curFn, vexpr.Name); ok && sym.IsConst {
			a.ctx.Diags.Report(diag.BadControlFlow, st.Loc(), "cannot assign to constant %s", vexpr.Name)
			return
		}
	}

	if !types.Coercible(vt, tt) {
		_, narrowing, floatToInt := types.NeedsConversion(vt, tt)
		if floatToInt {
			a.ctx.Diags.Report(diag.NarrowingRequired, st.Loc(), "assigning a floating-point value to an integer target requires an explicit conversion")
		} else if narrowing {
			a.ctx.Diags.Report(diag.NarrowingRequired, st.Loc(), "narrowing assignment may lose precision")
		} else {
			a.ctx.Diags.Report(diag.TypeMismatch, st.Loc(), "incompatible types in assignment")
		}
	}
}
