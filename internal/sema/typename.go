package sema

import (
	"github.com/fasterbasic/fbc/internal/types"
)

// resolveTypeName maps an AS-clause type name to a TypeDescriptor, resolving
// user-defined types against the symbol table (spec.md §6.1 AS clauses).
func (a *Analyzer) resolveTypeName(name string) (types.TypeDescriptor, bool) {
	switch name {
	case "BYTE":
		return types.Scalar(types.BYTE), true
	case "UBYTE":
		return types.Scalar(types.UBYTE), true
	case "SHORT":
		return types.Scalar(types.SHORT), true
	case "USHORT":
		return types.Scalar(types.USHORT), true
	case "INTEGER", "INT":
		return types.Scalar(types.INTEGER), true
	case "UINTEGER", "UINT":
		return types.Scalar(types.UINTEGER), true
	case "LONG":
		return types.Scalar(types.LONG), true
	case "ULONG":
		return types.Scalar(types.ULONG), true
	case "SINGLE", "FLOAT":
		return types.Scalar(types.SINGLE), true
	case "DOUBLE":
		return types.Scalar(types.DOUBLE), true
	case "STRING":
		return types.Scalar(types.STRING), true
	case "":
		return types.Scalar(types.DOUBLE), true // literal numerals default to DOUBLE (spec.md §4.3)
	}
	if ts, ok := a.ctx.Symbols.LookupType(name); ok {
		return types.TypeDescriptor{Base: types.USER_DEFINED, UDTTypeID: ts.ID}, true
	}
	return types.TypeDescriptor{}, false
}

// typeFromSuffix maps a type-suffix character to its BaseType (spec.md §6.1).
func typeFromSuffix(suffix byte) (types.BaseType, bool) {
	switch suffix {
	case '@':
		return types.BYTE, true
	case '^':
		return types.SHORT, true
	case '%':
		return types.INTEGER, true
	case '&':
		return types.LONG, true
	case '!':
		return types.SINGLE, true
	case '#':
		return types.DOUBLE, true
	case '$':
		return types.STRING, true
	}
	return 0, false
}
