// Package symtab implements symbols, scopes, and user-defined type layout
// (spec.md §3.4, §3.5).
package symtab

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/fasterbasic/fbc/internal/types"
)

// ScopeKind distinguishes the global scope from a function/sub scope.
type ScopeKind int

const (
	Global ScopeKind = iota
	FunctionScope
)

// SymbolKind tags what a Symbol names.
type SymbolKind int

const (
	VariableSym SymbolKind = iota
	ArraySym
	TypeSym
	FunctionSym
	ConstantSym
)

// Symbol is one named entity: a variable, array, type, function, or constant.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Type       types.TypeDescriptor
	Scope      ScopeKind
	FuncName   string // non-empty when Scope == FunctionScope
	IsConst    bool
	ParamIndex int // -1 unless this symbol is a function parameter
	ByRef      bool
	GlobalSlot int // offset in the globals data segment, valid when Scope == Global
}

// Key returns the symtab-unique key: "global::name" or "function:F::name"
// (spec.md §3.4).
func (s Symbol) Key() string {
	if s.Scope == Global {
		return "global::" + s.Name
	}
	return fmt.Sprintf("function:%s::%s", s.FuncName, s.Name)
}

// FieldSymbol is one member of a user-defined TYPE.
type FieldSymbol struct {
	Name   string
	Type   types.TypeDescriptor
	Offset int
}

// TypeSymbol is a resolved user-defined TYPE with its field layout.
type TypeSymbol struct {
	Name      string
	ID        uint32
	Fields    []FieldSymbol
	Size      int
	Align     int
	SIMDCandidate bool // {DOUBLE,DOUBLE} or {SINGLE x4}, spec.md §3.5
}

// FieldByName looks up a field, returning ok=false if absent.
func (ts *TypeSymbol) FieldByName(name string) (FieldSymbol, bool) {
	for _, f := range ts.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSymbol{}, false
}

// FuncSignature is a declared SUB/FUNCTION/DEF FN signature, registered up
// front so forward calls resolve (spec.md §4.3 phase 2).
type FuncSignature struct {
	Name       string
	Params     []types.TypeDescriptor
	ParamNames []string
	ParamByRef []bool
	RetType    types.TypeDescriptor
	IsSub      bool
	IsDefFn    bool
}

// Table is the whole-program symbol table plus the UDT and function
// signature registries. It is threaded on CompilationContext, never global.
type Table struct {
	globals     map[string]*Symbol
	funcScopes  map[string]map[string]*Symbol
	types       map[string]*TypeSymbol
	typeOrder   []string
	funcs       map[string]*FuncSignature
	nextTypeID  uint32
	nextGlobalSlot int
}

func New() *Table {
	return &Table{
		globals:    make(map[string]*Symbol),
		funcScopes: make(map[string]map[string]*Symbol),
		types:      make(map[string]*TypeSymbol),
		funcs:      make(map[string]*FuncSignature),
		nextTypeID: 1,
	}
}

// DeclareGlobal adds or returns the existing global symbol named name.
func (t *Table) DeclareGlobal(name string, td types.TypeDescriptor) (*Symbol, bool) {
	if s, ok := t.globals[name]; ok {
		return s, false
	}
	s := &Symbol{Name: name, Kind: VariableSym, Type: td, Scope: Global, GlobalSlot: t.nextGlobalSlot}
	t.nextGlobalSlot += td.Size()
	t.globals[name] = s
	return s, true
}

// GlobalSlotCount returns the number of 8-byte slots the globals vector
// needs (spec.md §4.5.7: "$__global_vector").
func (t *Table) GlobalSlotCount() int {
	if t.nextGlobalSlot == 0 {
		return 0
	}
	return (t.nextGlobalSlot + 7) / 8
}

// DeclareLocal adds or returns the existing symbol in function scope fn.
func (t *Table) DeclareLocal(fn, name string, td types.TypeDescriptor) (*Symbol, bool) {
	scope, ok := t.funcScopes[fn]
	if !ok {
		scope = make(map[string]*Symbol)
		t.funcScopes[fn] = scope
	}
	if s, ok := scope[name]; ok {
		return s, false
	}
	s := &Symbol{Name: name, Kind: VariableSym, Type: td, Scope: FunctionScope, FuncName: fn}
	scope[name] = s
	return s, true
}

// Lookup tries the current function scope first, then global (spec.md §3.4).
func (t *Table) Lookup(fn, name string) (*Symbol, bool) {
	if fn != "" {
		if scope, ok := t.funcScopes[fn]; ok {
			if s, ok := scope[name]; ok {
				return s, true
			}
		}
	}
	s, ok := t.globals[name]
	return s, ok
}

// LocalsOf returns every symbol declared in function scope fn, in no
// particular order (codegen uses this to allocate stack slots up front).
func (t *Table) LocalsOf(fn string) []*Symbol {
	scope, ok := t.funcScopes[fn]
	if !ok {
		return nil
	}
	out := make([]*Symbol, 0, len(scope))
	for _, s := range scope {
		out = append(out, s)
	}
	return out
}

// Globals returns every globally-declared symbol.
func (t *Table) Globals() []*Symbol {
	out := make([]*Symbol, 0, len(t.globals))
	for _, s := range t.globals {
		out = append(out, s)
	}
	return out
}

// DeclareType registers a new user-defined type, assigning it a
// program-unique id. Returns ok=false if name is already declared
// (REDEFINITION, spec.md §3.4: "two declarations of the same name are an error").
func (t *Table) DeclareType(name string) (*TypeSymbol, bool) {
	if _, exists := t.types[name]; exists {
		return nil, false
	}
	ts := &TypeSymbol{Name: name, ID: t.nextTypeID}
	t.nextTypeID++
	t.types[name] = ts
	t.typeOrder = append(t.typeOrder, name)
	return ts, true
}

func (t *Table) LookupType(name string) (*TypeSymbol, bool) {
	ts, ok := t.types[name]
	return ts, ok
}

// TypeNames returns declared UDT names in declaration order.
func (t *Table) TypeNames() []string {
	return append([]string(nil), t.typeOrder...)
}

// LayoutFields computes field offsets by natural alignment (spec.md §3.5):
// 1B BYTE, 2B SHORT, 4B 32-bit, 8B 64-bit/pointers; struct size is the
// offset of the last field plus its size, rounded up to the largest
// field's alignment.
func LayoutFields(fields []FieldSymbol) (laidOut []FieldSymbol, size int, align int) {
	offset := 0
	maxAlign := 1
	out := make([]FieldSymbol, 0, len(fields))
	for _, f := range fields {
		a := f.Type.Align()
		if a > maxAlign {
			maxAlign = a
		}
		if offset%a != 0 {
			offset += a - offset%a
		}
		f.Offset = offset
		offset += f.Type.Size()
		out = append(out, f)
	}
	if maxAlign > 0 && offset%maxAlign != 0 {
		offset += maxAlign - offset%maxAlign
	}
	return out, offset, maxAlign
}

// DetectSIMDCandidate tags the {DOUBLE,DOUBLE} and {SINGLE x4} layouts
// (spec.md §3.5) for potential future vectorisation.
func DetectSIMDCandidate(fields []FieldSymbol) bool {
	if len(fields) == 2 {
		return lo.EveryBy(fields, func(f FieldSymbol) bool { return f.Type.Base == types.DOUBLE })
	}
	if len(fields) == 4 {
		return lo.EveryBy(fields, func(f FieldSymbol) bool { return f.Type.Base == types.SINGLE })
	}
	return false
}

// DeclareFunc registers a forward-declared signature (spec.md §4.3 phase 2).
func (t *Table) DeclareFunc(sig *FuncSignature) (ok bool) {
	if _, exists := t.funcs[sig.Name]; exists {
		return false
	}
	t.funcs[sig.Name] = sig
	return true
}

func (t *Table) LookupFunc(name string) (*FuncSignature, bool) {
	sig, ok := t.funcs[name]
	return sig, ok
}

// FuncNames returns every declared function/sub name.
func (t *Table) FuncNames() []string {
	return lo.Keys(t.funcs)
}
