package codegen

import (
	"fmt"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/cfgir"
	"github.com/fasterbasic/fbc/internal/types"
)

// CFGEmitter walks a FunctionCFG in block-creation order (back-edges are
// just id references, so no ordering hazard) and drives the ASTEmitter for
// each block's body and terminator (spec.md §4.5.6).
type CFGEmitter struct {
	q  *QBEBuilder
	ae *ASTEmitter
	sm *SymbolMapper

	fn         *cfgir.FunctionCFG
	labelOf    map[cfgir.BlockID]string
	tidyExit   string
	retType    types.TypeDescriptor
	retVarSlot string
}

func NewCFGEmitter(q *QBEBuilder, ae *ASTEmitter) *CFGEmitter {
	return &CFGEmitter{q: q, ae: ae, sm: NewSymbolMapper()}
}

// Emit lowers every block of fn, including blocks unreachable from the
// entry by static analysis (spec.md §3.8: "every block ... is emitted").
func (ce *CFGEmitter) Emit(fn *cfgir.FunctionCFG, retType types.TypeDescriptor, retVarSlot string) {
	ce.fn = fn
	ce.retType = retType
	ce.retVarSlot = retVarSlot
	ce.tidyExit = ce.sm.Label(fn.Name, "tidy_exit")
	ce.labelOf = make(map[cfgir.BlockID]string, len(fn.Blocks))
	for _, b := range fn.Blocks {
		ce.labelOf[b.ID] = ce.blockLabel(fn, b.Label)
	}

	for _, b := range fn.Blocks {
		ce.q.Label(ce.labelOf[b.ID])
		ce.emitBlockBody(b)
		ce.emitTerminator(b)
	}

	// Every return path was rewritten above to jump here; by now every DIM
	// in the function has executed at least once lexically, so the defer
	// list is complete (spec.md §4.5.8). fb_array_free tolerates a null
	// descriptor for a path that never actually allocated it.
	ce.q.Label(ce.tidyExit)
	for _, name := range ce.ae.deferList {
		ce.ae.rt.ArrayFree(ce.ae.loadArrayDesc(name))
	}
	ce.emitRealReturn()
}

func (ce *CFGEmitter) blockLabel(fn *cfgir.FunctionCFG, raw string) string {
	return ce.sm.Label(fn.Name, raw)
}

func (ce *CFGEmitter) target(id cfgir.BlockID) string { return ce.labelOf[id] }

// emitBlockBody emits every statement except a trailing control-flow
// statement the terminator itself needs to inspect (the synthetic or real
// IfStatement of a CONDITIONAL block, or an ON GOTO/GOSUB selector).
func (ce *CFGEmitter) emitBlockBody(b *cfgir.Block) {
	n := len(b.Statements)
	if n == 0 {
		return
	}
	last := b.Statements[n-1]
	bodyLen := n
	if ce.isTerminatorStmt(b, last) {
		bodyLen = n - 1
	}
	for i := 0; i < bodyLen; i++ {
		ce.ae.EmitStmt(b.Statements[i])
	}
}

func (ce *CFGEmitter) isTerminatorStmt(b *cfgir.Block, s ast.Stmt) bool {
	switch s.(type) {
	case *ast.IfStmt, *ast.OnGotoStmt, *ast.TryDispatchStmt:
		return true
	}
	return false
}

// emitTerminator emits the jump/branch/return implied by a block's out-edges
// (spec.md §4.5.6).
func (ce *CFGEmitter) emitTerminator(b *cfgir.Block) {
	switch len(b.OutEdges) {
	case 0:
		ce.q.Jmp(ce.tidyExit)
	case 1:
		e := b.OutEdges[0]
		switch e.Kind {
		case cfgir.FALLTHROUGH:
			ce.q.Jmp(ce.target(e.Target))
		case cfgir.RETURN:
			ce.q.Jmp(ce.tidyExit)
		default:
			ce.q.Jmp(ce.target(e.Target))
		}
	case 2:
		if b.OutEdges[0].Kind == cfgir.CONDITIONAL {
			cond := ce.condValueOf(b)
			tt, ft := ce.trueFalseTargets(b)
			ce.q.Jnz(cond, ce.target(tt), ce.target(ft))
			return
		}
		ce.emitMultiway(b)
	default:
		ce.emitMultiway(b)
	}
}

func (ce *CFGEmitter) trueFalseTargets(b *cfgir.Block) (cfgir.BlockID, cfgir.BlockID) {
	var t, f cfgir.BlockID
	for _, e := range b.OutEdges {
		if e.Branch == cfgir.TrueBranch {
			t = e.Target
		} else if e.Branch == cfgir.FalseBranch {
			f = e.Target
		}
	}
	return t, f
}

// condValueOf emits the trailing IfStatement's condition expression, which
// is the value jnz tests (spec.md §4.5.6: "%cond is the last expression
// value produced by the block's trailing IfStatement").
func (ce *CFGEmitter) condValueOf(b *cfgir.Block) string {
	if len(b.Statements) == 0 {
		return "0"
	}
	last := b.Statements[len(b.Statements)-1]
	switch st := last.(type) {
	case *ast.IfStmt:
		v, _ := ce.ae.EmitExpr(st.Cond)
		return v
	case *ast.TryDispatchStmt:
		// Push a new exception frame, then setjmp: 0 means "fell through
		// normally", non-zero means "a THROW inside this frame longjmp'd
		// back here" (spec.md §4.7).
		hasFinally := "0"
		if st.HasFinally {
			hasFinally = "1"
		}
		ce.ae.rt.ExceptionPush(hasFinally)
		jmp := ce.ae.rt.ExceptionSetjmp()
		eq := ce.q.Temp()
		ce.q.Cmp(eq, types.QW, "eq", jmp, "0")
		return eq
	}
	return "0"
}

// emitMultiway lowers a MULTIWAY block (ON GOTO/ON GOSUB) to a
// compare-and-branch ladder, one test per listed index, falling through to
// the default successor out of range (spec.md §4.5.6).
func (ce *CFGEmitter) emitMultiway(b *cfgir.Block) {
	if len(b.Statements) == 0 {
		return
	}
	onst, ok := b.Statements[len(b.Statements)-1].(*ast.OnGotoStmt)
	if !ok {
		return
	}
	sel, _ := ce.ae.EmitExpr(onst.Selector)
	var defaultTarget cfgir.BlockID
	for _, e := range b.OutEdges {
		if e.Index == 0 {
			defaultTarget = e.Target
		}
	}
	for _, e := range b.OutEdges {
		if e.Index == 0 {
			continue
		}
		cmp := ce.q.Temp()
		ce.q.Cmp(cmp, types.QW, "eq", sel, fmt.Sprintf("%d", e.Index))
		nextTest := ce.sm.Label(ce.fn.Name, fmt.Sprintf("mw_next_%d", e.Index))
		ce.q.Jnz(cmp, ce.target(e.Target), nextTest)
		ce.q.Label(nextTest)
	}
	ce.q.Jmp(ce.target(defaultTarget))
}

// emitRealReturn performs the actual typed return, after tidyExit has freed
// every array the function may have allocated.
func (ce *CFGEmitter) emitRealReturn() {
	if ce.fn.IsMain {
		ce.q.Ret("0")
		return
	}
	if ce.retVarSlot == "" {
		ce.q.Ret("")
		return
	}
	v := ce.q.Temp()
	ce.q.Load(v, ce.retType.QBEType(), ce.retType.MemoryType(), ce.retVarSlot)
	ce.q.Ret(v)
}
