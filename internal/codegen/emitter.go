package codegen

import (
	"fmt"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/sema"
	"github.com/fasterbasic/fbc/internal/symtab"
	"github.com/fasterbasic/fbc/internal/types"
)

// ASTEmitter lowers expressions and straight-line statements to QBE IL
// (spec.md §4.5.5).
type ASTEmitter struct {
	q    *QBEBuilder
	tm   *TypeManager
	sm   *SymbolMapper
	rt   *RuntimeLibrary
	res  *sema.Result
	syms *symtab.Table

	fn         string // current function name, "" in main
	deferList  []string // names of arrays DIM'd in this function, freed at tidy_exit (spec.md §4.5.8)
}

func NewASTEmitter(q *QBEBuilder, res *sema.Result) *ASTEmitter {
	return &ASTEmitter{
		q:    q,
		tm:   NewTypeManager(),
		sm:   NewSymbolMapper(),
		rt:   NewRuntimeLibrary(q),
		res:  res,
		syms: res.Ctx.Symbols,
	}
}

func (e *ASTEmitter) typeOf(expr ast.Expr) types.TypeDescriptor { return e.res.TypeOf(expr) }

// EmitExpr lowers one expression, returning the SSA value holding its result
// and its resolved type (spec.md §4.5.5: "every expression evaluation
// yields a temporary of a specific QBE type").
func (e *ASTEmitter) EmitExpr(expr ast.Expr) (string, types.TypeDescriptor) {
	t := e.typeOf(expr)
	switch ex := expr.(type) {
	case *ast.IntLit:
		return fmt.Sprintf("%d", ex.Value), t
	case *ast.FloatLit:
		if t.QBEType() == types.QS {
			return fmt.Sprintf("s_%g", ex.Value), t
		}
		return fmt.Sprintf("d_%g", ex.Value), t
	case *ast.StringLit:
		label := e.q.registerString(ex.Value)
		return e.rt.StringFromCStr(label), t
	case *ast.VarExpr:
		return e.emitVarRead(ex.Name, t), t
	case *ast.UnaryExpr:
		return e.emitUnary(ex, t)
	case *ast.BinaryExpr:
		return e.emitBinary(ex, t)
	case *ast.ConcatExpr:
		return e.emitConcat(ex), t
	case *ast.IndexExpr:
		return e.emitIndexRead(ex, t), t
	case *ast.MemberExpr:
		return e.emitMemberRead(ex, t), t
	case *ast.CallExpr:
		return e.emitBuiltinCall(ex, t), t
	case *ast.FNCallExpr:
		return e.emitUserCall(ex.Name, ex.Args, t), t
	}
	return "0", t
}

func (e *ASTEmitter) symbolFor(name string) (*symtab.Symbol, bool) {
	return e.syms.Lookup(e.fn, name)
}

func (e *ASTEmitter) emitVarRead(name string, t types.TypeDescriptor) string {
	sym, ok := e.symbolFor(name)
	if !ok {
		return e.tm.Default(t)
	}
	addr := e.addrOfVar(sym)
	dst := e.q.Temp()
	e.q.Load(dst, t.QBEType(), t.MemoryType(), addr)
	return dst
}

// addrOfVar computes the address expression for a scalar symbol: a direct
// global-vector offset for globals (spec.md §4.5.7), or the %var_ slot
// itself for locals (modelled as QBE stack slots via alloc, one per local).
func (e *ASTEmitter) addrOfVar(sym *symtab.Symbol) string {
	if sym.Scope == symtab.Global {
		addr := e.q.Temp()
		e.q.line("%s =l add $__global_vector, %d", addr, sym.GlobalSlot)
		return addr
	}
	return e.sm.Var(sym.FuncName, sym.Name, sym.Type) + "_slot"
}

func (e *ASTEmitter) emitUnary(ex *ast.UnaryExpr, t types.TypeDescriptor) (string, types.TypeDescriptor) {
	v, vt := e.EmitExpr(ex.Operand)
	dst := e.q.Temp()
	switch ex.Op {
	case "-":
		zero := e.tm.Default(vt)
		e.q.Bin(dst, vt.QBEType(), "sub", zero, v)
	case "NOT":
		e.q.Bin(dst, types.QW, "xor", v, "1")
	}
	return dst, t
}

// emitBinary promotes both operands to a common type, emits the typed op,
// and for comparisons produces a w Boolean (spec.md §4.5.5).
func (e *ASTEmitter) emitBinary(ex *ast.BinaryExpr, resultType types.TypeDescriptor) (string, types.TypeDescriptor) {
	lv, lt := e.EmitExpr(ex.Left)
	rv, rt := e.EmitExpr(ex.Right)

	switch ex.Op {
	case "AND", "OR":
		dst := e.q.Temp()
		op := "and"
		if ex.Op == "OR" {
			op = "or"
		}
		e.q.Bin(dst, types.QW, op, lv, rv)
		return dst, resultType
	case "&":
		return e.rt.StringConcat(e.coerceToString(lv, lt), e.coerceToString(rv, rt)), resultType
	}

	common := types.Scalar(types.Wider(lt.Base, rt.Base))
	if lt.IsString() && rt.IsString() {
		common = lt
	}
	lv = e.coerce(lv, lt, common)
	rv = e.coerce(rv, rt, common)

	dst := e.q.Temp()
	switch ex.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		e.q.Cmp(dst, common.QBEType(), cmpSuffix(ex.Op, common), lv, rv)
	case "+":
		e.q.Bin(dst, common.QBEType(), "add", lv, rv)
	case "-":
		e.q.Bin(dst, common.QBEType(), "sub", lv, rv)
	case "*":
		e.q.Bin(dst, common.QBEType(), "mul", lv, rv)
	case "/":
		e.q.Bin(dst, common.QBEType(), "div", lv, rv)
	case "MOD":
		e.q.Bin(dst, common.QBEType(), "rem", lv, rv)
	case "^":
		return e.rt.MathPow(e.coerce(lv, common, types.Scalar(types.DOUBLE)), e.coerce(rv, common, types.Scalar(types.DOUBLE))), resultType
	}
	return dst, resultType
}

func cmpSuffix(op string, t types.TypeDescriptor) string {
	signed := !isUnsigned(t.Base)
	switch op {
	case "=":
		return "eq"
	case "<>":
		return "ne"
	case "<":
		if t.IsFloat() || signed {
			return "lt"
		}
		return "ult"
	case "<=":
		if t.IsFloat() || signed {
			return "le"
		}
		return "ule"
	case ">":
		if t.IsFloat() || signed {
			return "gt"
		}
		return "ugt"
	case ">=":
		if t.IsFloat() || signed {
			return "ge"
		}
		return "uge"
	}
	return "eq"
}

// coerce inserts the conversion TypeManager prescribes for moving a value
// from `from` to `to`, respecting the source's actual QBE machine type
// (spec.md §4.5.5).
func (e *ASTEmitter) coerce(v string, from, to types.TypeDescriptor) string {
	op, ok := e.tm.ConvertOp(from, to)
	if !ok {
		return v
	}
	dst := e.q.Temp()
	e.q.Conv(dst, to.QBEType(), op, v)
	return dst
}

func (e *ASTEmitter) coerceToString(v string, t types.TypeDescriptor) string {
	if t.IsString() {
		return v
	}
	return e.rt.Str(v)
}

func (e *ASTEmitter) emitConcat(ex *ast.ConcatExpr) string {
	if len(ex.Parts) == 0 {
		label := e.q.registerString("")
		return e.rt.StringFromCStr(label)
	}
	v, t := e.EmitExpr(ex.Parts[0])
	acc := e.coerceToString(v, t)
	for _, p := range ex.Parts[1:] {
		pv, pt := e.EmitExpr(p)
		acc = e.rt.StringConcat(acc, e.coerceToString(pv, pt))
	}
	return acc
}

func (e *ASTEmitter) emitIndexRead(ex *ast.IndexExpr, elemType types.TypeDescriptor) string {
	base, ok := ex.Array.(*ast.VarExpr)
	if !ok {
		v, _ := e.EmitExpr(ex.Array)
		return v
	}
	sym, ok := e.symbolFor(base.Name)
	if !ok || !sym.Type.Has(types.IsArray) {
		return e.emitVarRead(base.Name, elemType)
	}
	desc := e.loadArrayDesc(base.Name)
	idx, _ := e.EmitExpr(ex.Indices[0])
	e.rt.ArrayBoundsCheck(desc, idx)
	addr := e.rt.ArrayAccess(desc, idx)
	dst := e.q.Temp()
	e.q.Load(dst, elemType.QBEType(), elemType.MemoryType(), addr)
	return dst
}

// arrayDescAddr computes the address holding an array's descriptor pointer:
// a slot in $__global_vector for a module-level array (DIM outside any
// SUB/FUNCTION declares a global, spec.md §3.4), or an alloc'd stack slot for
// one local to a function. Either way the descriptor is load/store-addressed
// rather than a bare SSA temp, so a DIM inside a loop or conditional still
// dominates every later read (spec.md §4.5.8).
func (e *ASTEmitter) arrayDescAddr(name string) string {
	sym, ok := e.symbolFor(name)
	if ok && sym.Scope == symtab.Global {
		addr := e.q.Temp()
		e.q.line("%s =l add $__global_vector, %d", addr, sym.GlobalSlot)
		return addr
	}
	_, desc := e.sm.Array(e.fn, name)
	return desc + "_slot"
}

func (e *ASTEmitter) loadArrayDesc(name string) string {
	dst := e.q.Temp()
	e.q.Load(dst, types.QL, "l", e.arrayDescAddr(name))
	return dst
}

func (e *ASTEmitter) emitMemberRead(ex *ast.MemberExpr, fieldType types.TypeDescriptor) string {
	if v, ok := e.emitExceptionInfoRead(ex); ok {
		return v
	}
	baseAddr := e.emitLvalueAddr(ex.Base)
	ts, field := e.resolveField(ex)
	_ = ts
	addr := e.q.Temp()
	e.q.line("%s =l add %s, %d", addr, baseAddr, field.Offset)
	dst := e.q.Temp()
	e.q.Load(dst, fieldType.QBEType(), fieldType.MemoryType(), addr)
	return dst
}

// isExceptionInfoVar reports whether expr is a reference to a CATCH variable:
// USER_DEFINED with no backing symtab TypeSymbol (UDTTypeID 0 is never
// assigned to a declared TYPE, spec.md §4.7 "CatchVar ... exception info").
func (e *ASTEmitter) isExceptionInfoVar(expr ast.Expr) (string, bool) {
	v, ok := expr.(*ast.VarExpr)
	if !ok {
		return "", false
	}
	sym, ok := e.symbolFor(v.Name)
	if !ok || sym.Type.Base != types.USER_DEFINED || sym.Type.UDTTypeID != 0 {
		return "", false
	}
	return v.Name, true
}

// emitExceptionInfoRead handles CODE/MESSAGE member access on a CATCH
// variable, which is bound to a runtime exception descriptor pointer rather
// than a laid-out struct (spec.md §4.7).
func (e *ASTEmitter) emitExceptionInfoRead(ex *ast.MemberExpr) (string, bool) {
	name, ok := e.isExceptionInfoVar(ex.Base)
	if !ok {
		return "", false
	}
	ptr := e.emitVarRead(name, types.Scalar(types.LONG))
	switch ex.Field {
	case "CODE":
		return e.rt.ExceptionCode(ptr), true
	case "MESSAGE":
		return e.rt.ExceptionMessage(ptr), true
	}
	return "0", true
}

func (e *ASTEmitter) resolveField(ex *ast.MemberExpr) (*symtab.TypeSymbol, symtab.FieldSymbol) {
	bt := e.typeOf(ex.Base)
	for _, name := range e.syms.TypeNames() {
		if ts, ok := e.syms.LookupType(name); ok && ts.ID == bt.UDTTypeID {
			f, _ := ts.FieldByName(ex.Field)
			return ts, f
		}
	}
	return nil, symtab.FieldSymbol{}
}

// emitLvalueAddr computes the address of an assignable expression, used by
// both LET's store side and member-chain reads (spec.md §4.5.5: "for chains
// the emitter walks offsets at compile time").
func (e *ASTEmitter) emitLvalueAddr(expr ast.Expr) string {
	switch ex := expr.(type) {
	case *ast.VarExpr:
		sym, ok := e.symbolFor(ex.Name)
		if !ok {
			return "$__global_vector"
		}
		return e.addrOfVar(sym)
	case *ast.IndexExpr:
		base := ex.Array.(*ast.VarExpr)
		desc := e.loadArrayDesc(base.Name)
		idx, _ := e.EmitExpr(ex.Indices[0])
		e.rt.ArrayBoundsCheck(desc, idx)
		return e.rt.ArrayAccess(desc, idx)
	case *ast.MemberExpr:
		baseAddr := e.emitLvalueAddr(ex.Base)
		_, field := e.resolveField(ex)
		addr := e.q.Temp()
		e.q.line("%s =l add %s, %d", addr, baseAddr, field.Offset)
		return addr
	}
	return "0"
}

func (e *ASTEmitter) emitBuiltinCall(ex *ast.CallExpr, t types.TypeDescriptor) string {
	var args []string
	var argTypes []types.TypeDescriptor
	for _, a := range ex.Args {
		v, at := e.EmitExpr(a)
		args = append(args, v)
		argTypes = append(argTypes, at)
	}
	arg := func(i int) string { return args[i] }
	switch ex.Name {
	case "ABS":
		if argTypes[0].IsFloat() {
			return e.rt.MathAbsD(arg(0))
		}
		return e.rt.MathAbsI(arg(0))
	case "SGN":
		return e.rt.MathSgn(arg(0))
	case "INT", "FIX":
		return e.rt.MathInt(arg(0))
	case "SQR":
		return e.rt.MathSqrt(arg(0))
	case "SIN":
		return e.rt.MathSin(arg(0))
	case "COS":
		return e.rt.MathCos(arg(0))
	case "TAN":
		return e.rt.MathTan(arg(0))
	case "ATN":
		return e.rt.MathAtan(arg(0))
	case "LOG":
		return e.rt.MathLog(arg(0))
	case "EXP":
		return e.rt.MathExp(arg(0))
	case "RND":
		return e.rt.MathRnd()
	case "TIMER":
		return e.rt.call(types.QD, "fb_timer")
	case "LEN":
		return e.rt.StringLen(arg(0))
	case "ASC":
		return e.rt.StringAsc(arg(0))
	case "VAL":
		return e.rt.Val(arg(0))
	case "INSTR":
		return e.rt.call(types.QW, "fb_string_instr", args...)
	case "LEFT_STRING":
		return e.rt.StringLeft(arg(0), arg(1))
	case "RIGHT_STRING":
		return e.rt.StringRight(arg(0), arg(1))
	case "MID_STRING":
		length := "-1"
		if len(args) > 2 {
			length = arg(2)
		}
		return e.rt.StringMid(arg(0), arg(1), length)
	case "CHR_STRING":
		return e.rt.StringChr(arg(0))
	case "STR_STRING":
		return e.rt.Str(arg(0))
	case "UCASE_STRING":
		return e.rt.StringUpper(arg(0))
	case "LCASE_STRING":
		return e.rt.StringLower(arg(0))
	case "LTRIM_STRING":
		return e.rt.StringLTrim(arg(0))
	case "RTRIM_STRING":
		return e.rt.StringRTrim(arg(0))
	case "TRIM_STRING":
		return e.rt.StringTrim(arg(0))
	case "SPACE_STRING":
		return e.rt.call(types.QL, "fb_string_space", args...)
	case "STRING_STRING":
		return e.rt.call(types.QL, "fb_string_string", args...)
	}
	return e.tm.Default(t)
}

func (e *ASTEmitter) emitUserCall(name string, exprArgs []ast.Expr, retType types.TypeDescriptor) string {
	sig, ok := e.syms.LookupFunc(name)
	var args []string
	for i, a := range exprArgs {
		v, at := e.EmitExpr(a)
		if ok && i < len(sig.Params) {
			v = e.coerce(v, at, sig.Params[i])
		}
		args = append(args, v)
	}
	var target string
	if ok && sig.IsSub {
		target = e.sm.Sub(name)
	} else {
		target = e.sm.Func(name)
	}
	dst := e.q.Temp()
	e.q.Call(dst, retType.QBEType(), target, args)
	return dst
}

// ===== Statements =====

// EmitStmt lowers one straight-line (non-control-flow) statement
// (spec.md §4.5.5, §4.5.8).
func (e *ASTEmitter) EmitStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		e.emitLet(st)
	case *ast.DimStmt:
		for _, d := range st.Decls {
			e.emitDim(d)
		}
	case *ast.PrintStmt:
		e.emitPrint(st)
	case *ast.InputStmt:
		e.emitInput(st)
	case *ast.LocalStmt:
		// Space is reserved by the declaration pass; nothing to emit here.
	case *ast.DataStmt:
		for _, v := range st.Values {
			e.emitDataPush(v)
		}
	case *ast.ReadStmt:
		for _, target := range st.Targets {
			e.emitRead(target)
		}
	case *ast.RestoreStmt:
		e.rt.DataRestore(fmt.Sprintf("%d", st.Index))
	case *ast.CallStmt:
		e.emitUserCall(st.Name, st.Args, types.Scalar(types.VOID))
	case *ast.ThrowStmt:
		code, _ := e.EmitExpr(st.Code)
		msg := "0"
		if st.Message != nil {
			msg, _ = e.EmitExpr(st.Message)
		}
		e.rt.ExceptionThrow(code, msg)
	case *ast.ExceptionPopStmt:
		e.rt.ExceptionPop()
	case *ast.ExceptionRethrowStmt:
		e.rt.ExceptionPropagate()
	case *ast.CatchBindStmt:
		if st.VarName != "" {
			ptr := e.rt.ExceptionCurrent()
			addr := e.emitLvalueAddr(&ast.VarExpr{ExprBase: ast.E(st.Loc()), Name: st.VarName})
			e.q.Store("l", addr, ptr)
		}
	case *ast.GotoStmt, *ast.GosubStmt, *ast.ReturnStmt, *ast.ExitStmt, *ast.EndStmt,
		*ast.LabelStmt, *ast.IfStmt, *ast.OnGotoStmt, *ast.TryDispatchStmt:
		// terminators and labels are handled by CFGEmitter
	}
}

func (e *ASTEmitter) emitLet(st *ast.LetStmt) {
	v, vt := e.EmitExpr(st.Value)
	tt := e.typeOf(st.Target)
	v = e.coerce(v, vt, tt)
	addr := e.emitLvalueAddr(st.Target)
	e.q.Store(tt.MemoryType(), addr, v)
}

// emitDim lowers a DIM of an array (allocating its descriptor and
// registering it for tidy_exit cleanup). Scalar DIMs are a no-op here: their
// stack slot was already reserved by the function prologue's allocLocals
// pass over every symtab local, DIM or implicit (spec.md §4.5.8).
func (e *ASTEmitter) emitDim(d ast.DimDecl) {
	sym, ok := e.symbolFor(d.Name)
	if !ok {
		return
	}
	if !sym.Type.Has(types.IsArray) {
		return
	}
	elem := sym.Type
	elem.Attrs &^= types.IsArray
	count := "1"
	if len(d.Dims) > 0 {
		v, _ := e.EmitExpr(d.Dims[0])
		count = v
	}
	descPtr := e.rt.ArrayAlloc(fmt.Sprintf("%d", elem.Size()), count)
	e.q.Store("l", e.arrayDescAddr(d.Name), descPtr)
	if e.fn != "" {
		e.deferList = append(e.deferList, d.Name)
	}
}

func (e *ASTEmitter) emitPrint(st *ast.PrintStmt) {
	for _, item := range st.Items {
		v, t := e.EmitExpr(item.Expr)
		e.rt.Print(t, v)
		switch item.Sep {
		case ',':
			e.rt.PrintTab()
		case ';':
			// no separator
		default:
			e.rt.PrintNewline()
		}
	}
	if len(st.Items) == 0 {
		e.rt.PrintNewline()
	}
}

func (e *ASTEmitter) emitInput(st *ast.InputStmt) {
	tt := e.typeOf(st.Target)
	var v string
	switch {
	case tt.Base == types.DOUBLE:
		v = e.rt.InputDouble()
	case tt.Base == types.SINGLE:
		v = e.rt.InputFloat()
	case tt.IsString():
		v = e.rt.InputString()
	default:
		v = e.rt.InputInt()
	}
	addr := e.emitLvalueAddr(st.Target)
	e.q.Store(tt.MemoryType(), addr, v)
}

func (e *ASTEmitter) emitDataPush(v ast.Expr) {
	switch lit := v.(type) {
	case *ast.StringLit:
		e.rt.DataPush(e.q.registerString(lit.Value))
	case *ast.IntLit:
		e.rt.DataPush(e.q.registerString(fmt.Sprintf("%d", lit.Value)))
	case *ast.FloatLit:
		e.rt.DataPush(e.q.registerString(fmt.Sprintf("%g", lit.Value)))
	}
}

func (e *ASTEmitter) emitRead(target ast.Expr) {
	tt := e.typeOf(target)
	var v string
	switch {
	case tt.Base == types.DOUBLE || tt.Base == types.SINGLE:
		v = e.rt.DataReadDouble()
	case tt.IsString():
		v = e.rt.DataReadString()
	case tt.Base == types.LONG || tt.Base == types.ULONG:
		v = e.rt.DataReadLong()
	default:
		v = e.rt.DataReadInt()
	}
	addr := e.emitLvalueAddr(target)
	e.q.Store(tt.MemoryType(), addr, v)
}
