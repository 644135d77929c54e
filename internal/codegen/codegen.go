package codegen

import (
	"fmt"
	"strings"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/cfgir"
	"github.com/fasterbasic/fbc/internal/sema"
	"github.com/fasterbasic/fbc/internal/symtab"
	"github.com/fasterbasic/fbc/internal/types"
)

// Generate lowers a semantically analyzed, CFG-built program into one
// textual QBE compilation unit (spec.md §4.5): it is the glue between the
// six narrow components (QBEBuilder, TypeManager, SymbolMapper,
// RuntimeLibrary, ASTEmitter, CFGEmitter), responsible for function
// prologues and the one thing none of them owns alone — ordering.
func Generate(prog *ast.Program, res *sema.Result, pcfg *cfgir.ProgramCFG) string {
	q := NewQBEBuilder()
	g := &generator{
		q:    q,
		ae:   NewASTEmitter(q, res),
		sm:   NewSymbolMapper(),
		syms: res.Ctx.Symbols,
		res:  res,
	}

	g.emitMain(pcfg.Main)
	for _, s := range prog.Subs {
		g.emitSub(s, pcfg.FunctionCFGs[s.Name])
	}
	for _, f := range prog.Functions {
		g.emitFunction(f, pcfg.FunctionCFGs[f.Name])
	}
	for _, d := range prog.DefFns {
		g.emitDefFn(d)
	}

	return q.Finish(g.syms.GlobalSlotCount())
}

type generator struct {
	q    *QBEBuilder
	ae   *ASTEmitter
	sm   *SymbolMapper
	syms *symtab.Table
	res  *sema.Result
}

// allocLocals reserves a stack slot for every local of fn up front,
// including parameters and the FUNCTION return-value slot (declared under
// the same name as the function, sema's phase3Walk). An array local gets an
// 8-byte slot holding its descriptor pointer; the element storage itself
// comes from fb_array_alloc at the DIM site (spec.md §4.5.8).
func (g *generator) allocLocals(fn string) {
	for _, sym := range g.syms.LocalsOf(fn) {
		if sym.Type.Has(types.IsArray) {
			_, desc := g.sm.Array(fn, sym.Name)
			g.q.Alloc(desc+"_slot", 8, 8)
			continue
		}
		slot := g.sm.Var(fn, sym.Name, sym.Type) + "_slot"
		g.q.Alloc(slot, sym.Type.Size(), sym.Type.Align())
	}
}

func (g *generator) emitMain(fn *cfgir.FunctionCFG) {
	g.ae.fn = ""
	g.q.OpenFunc(true, "$main", "", "w")
	g.allocLocals("")

	// DATA is registered once at program start regardless of textual
	// position (BASIC semantics): every literal in the whole program's DATA
	// statements goes into the runtime's read cursor before Main runs a
	// single statement.
	for _, v := range g.res.Ctx.DataPool {
		g.ae.emitDataPush(v)
	}

	ce := NewCFGEmitter(g.q, g.ae)
	ce.Emit(fn, types.Scalar(types.VOID), "")
	g.q.CloseFunc()
}

func (g *generator) emitSub(s *ast.SubDeclStmt, fn *cfgir.FunctionCFG) {
	g.emitFuncCommon(s.Name, s.Params, types.Scalar(types.VOID), "", fn, false)
}

func (g *generator) emitFunction(f *ast.FunctionDeclStmt, fn *cfgir.FunctionCFG) {
	sig, _ := g.syms.LookupFunc(f.Name)
	retType := types.Scalar(types.DOUBLE)
	if sig != nil {
		retType = sig.RetType
	}
	retSlot := g.sm.Var(f.Name, f.Name, retType) + "_slot"
	g.emitFuncCommon(f.Name, f.Params, retType, retSlot, fn, true)
}

// emitFuncCommon emits one SUB or FUNCTION: prologue (mangled param list,
// local slot allocation, per-parameter store), then hands the body CFG to
// CFGEmitter. Parameters are passed by value even when declared BYREF —
// alias-through-pointer BYREF semantics are not modelled (see DESIGN.md).
func (g *generator) emitFuncCommon(name string, params []ast.ParamDecl, retType types.TypeDescriptor, retSlot string, fn *cfgir.FunctionCFG, isFunction bool) {
	g.ae.fn = name
	g.ae.deferList = nil
	sig, _ := g.syms.LookupFunc(name)

	paramList := make([]string, 0, len(params))
	paramTemps := make([]string, 0, len(params))
	for i, p := range params {
		pt := types.Scalar(types.DOUBLE)
		if sig != nil && i < len(sig.Params) {
			pt = sig.Params[i]
		}
		temp := fmt.Sprintf("%%arg_%d", i)
		paramList = append(paramList, fmt.Sprintf("%c %s", pt.QBEType(), temp))
		paramTemps = append(paramTemps, temp)
		_ = p
	}

	target := g.sm.Func(name)
	if sig != nil && sig.IsSub {
		target = g.sm.Sub(name)
	}
	retQ := ""
	if isFunction {
		retQ = string(retType.QBEType())
	}

	g.q.OpenFunc(false, target, strings.Join(paramList, ", "), retQ)
	g.allocLocals(name)
	for i, p := range params {
		sym, ok := g.syms.Lookup(name, p.Name)
		if !ok {
			continue
		}
		slot := g.sm.Var(name, p.Name, sym.Type) + "_slot"
		g.q.Store(sym.Type.MemoryType(), slot, paramTemps[i])
	}

	ce := NewCFGEmitter(g.q, g.ae)
	ce.Emit(fn, retType, retSlot)
	g.q.CloseFunc()
}

// emitDefFn lowers a DEF FN, a single-expression function with no CFG of its
// own (spec.md §4.3: DEF FN bodies are one expression, never a statement
// list). Its declared scope is "FN"+name (sema's phase3Walk), but its
// callable QBE symbol is the bare mangled name, matching how FNCallExpr
// resolves a call target via ASTEmitter.emitUserCall.
func (g *generator) emitDefFn(d *ast.DefFnStmt) {
	scope := "FN" + d.Name
	g.ae.fn = scope

	paramList := make([]string, 0, len(d.Params))
	paramTemps := make([]string, 0, len(d.Params))
	for i := range d.Params {
		temp := fmt.Sprintf("%%arg_%d", i)
		paramList = append(paramList, fmt.Sprintf("d %s", temp))
		paramTemps = append(paramTemps, temp)
	}

	target := g.sm.Func(d.Name)
	g.q.OpenFunc(false, target, strings.Join(paramList, ", "), "d")
	g.allocLocals(scope)
	for i, p := range d.Params {
		sym, ok := g.syms.Lookup(scope, p)
		if !ok {
			continue
		}
		slot := g.sm.Var(scope, p, sym.Type) + "_slot"
		g.q.Store(sym.Type.MemoryType(), slot, paramTemps[i])
	}

	v, vt := g.ae.EmitExpr(d.Body)
	v = g.ae.coerce(v, vt, types.Scalar(types.DOUBLE))
	g.q.Ret(v)
	g.q.CloseFunc()
}
