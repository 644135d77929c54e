// Package sema implements the semantic analyzer (spec.md §4.3): scopes,
// type descriptors, coercion, string-mode rules, and validation.
package sema

import (
	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/symtab"
	"github.com/fasterbasic/fbc/internal/types"
)

// StringMode is the compilation-wide string mode set by OPTION (spec.md §6.1).
type StringMode int

const (
	ModeDetectString StringMode = iota // default: per-literal ASCII/UNICODE detection
	ModeAscii
	ModeUnicode
)

// Context is the CompilationContext threaded through every phase (spec.md §9):
// the symbol table, diagnostics sink, and OPTION-derived compilation modes.
// There is no package-level singleton; every phase call takes a *Context.
type Context struct {
	Symbols    *symtab.Table
	Diags      *diag.Sink
	ArrayBase  int // OPTION BASE, default 0
	StringMode StringMode

	// DataPool accumulates DATA statement values in program order for READ/RESTORE.
	DataPool []ast.Expr

	loopStack  []loopFrame
	funcStack  []string // current SUB/FUNCTION name, "" at top level (main)
	labelSet   map[string]bool
	gosubRets  map[string]bool
}

type loopFrame struct {
	kind ast.ExitKind
	name string // loop label if NEXT names the variable, "" otherwise
}

// NewContext returns a fresh CompilationContext for one compilation.
func NewContext() *Context {
	return &Context{
		Symbols:  symtab.New(),
		Diags:    diag.NewSink(),
		labelSet: make(map[string]bool),
	}
}

// Result carries the semantic analyzer's output: per-expression resolved
// types and the fully populated symbol table, consumed by the CFG builder
// and codegen phases.
type Result struct {
	ExprTypes map[ast.Expr]types.TypeDescriptor
	Ctx       *Context
}

func newResult(ctx *Context) *Result {
	return &Result{ExprTypes: make(map[ast.Expr]types.TypeDescriptor), Ctx: ctx}
}

func (r *Result) setType(e ast.Expr, td types.TypeDescriptor) types.TypeDescriptor {
	r.ExprTypes[e] = td
	return td
}

// TypeOf returns the resolved type of an expression, or VOID if unresolved
// (should not happen for a program that analyzed without fatal errors).
func (r *Result) TypeOf(e ast.Expr) types.TypeDescriptor {
	if td, ok := r.ExprTypes[e]; ok {
		return td
	}
	return types.Scalar(types.VOID)
}
