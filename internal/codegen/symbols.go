package codegen

import (
	"fmt"
	"strings"

	"github.com/fasterbasic/fbc/internal/types"
)

// SymbolMapper produces stable, collision-free QBE identifiers for source
// names (spec.md §4.5.3). Scope (main vs. a specific function) is threaded
// explicitly so the same BASIC identifier in two functions never collides.
type SymbolMapper struct{}

func NewSymbolMapper() *SymbolMapper { return &SymbolMapper{} }

func typeTag(t types.TypeDescriptor) string {
	switch t.Base {
	case types.BYTE:
		return "BYTE"
	case types.UBYTE:
		return "UBYTE"
	case types.SHORT:
		return "SHORT"
	case types.USHORT:
		return "USHORT"
	case types.INTEGER, types.LOOP_INDEX:
		return "INTEGER"
	case types.UINTEGER:
		return "UINTEGER"
	case types.LONG:
		return "LONG"
	case types.ULONG:
		return "ULONG"
	case types.SINGLE:
		return "SINGLE"
	case types.DOUBLE:
		return "DOUBLE"
	case types.STRING:
		return "STRING"
	case types.UNICODE:
		return "UNICODE"
	case types.USER_DEFINED:
		return "UDT"
	}
	return "VOID"
}

func escapeIdent(name string) string {
	r := strings.NewReplacer("$", "_s", "@", "_at", "^", "_c", "%", "_p", "&", "_amp", "!", "_bang", "#", "_hash")
	return r.Replace(name)
}

// Var mangles a scalar variable reference: "$var_<name>_<TYPE>" for a global,
// "%var_<fn>_<name>_<TYPE>" for a local of function fn, so the same source
// name in two functions never collides (spec.md §4.5.3).
func (m *SymbolMapper) Var(fn, name string, t types.TypeDescriptor) string {
	tag := typeTag(t)
	ident := escapeIdent(name)
	if fn == "" {
		return fmt.Sprintf("$var_%s_%s", ident, tag)
	}
	return fmt.Sprintf("%%var_%s_%s_%s", escapeIdent(fn), ident, tag)
}

// Array mangles an array variable's base pointer and its descriptor label.
func (m *SymbolMapper) Array(fn, name string) (ptr, desc string) {
	ident := escapeIdent(name)
	if fn == "" {
		return fmt.Sprintf("$arr_%s", ident), fmt.Sprintf("$arr_%s_desc", ident)
	}
	return fmt.Sprintf("%%arr_%s_%s", escapeIdent(fn), ident), fmt.Sprintf("%%arr_%s_%s_desc", escapeIdent(fn), ident)
}

func (m *SymbolMapper) Func(name string) string { return "$func_" + escapeIdent(name) }
func (m *SymbolMapper) Sub(name string) string  { return "$sub_" + escapeIdent(name) }

// Label mangles a CFG block label as "@<fn>_<raw>", where raw is the CFG
// builder's own block label; no "@block_<n>" or "@line_<n>" names are produced.
func (m *SymbolMapper) Label(fn string, raw string) string {
	return "@" + escapeIdent(fn) + "_" + escapeIdent(raw)
}
