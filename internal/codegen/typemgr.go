package codegen

import "github.com/fasterbasic/fbc/internal/types"

// TypeManager answers the codegen-facing questions about a TypeDescriptor:
// its QBE base type, its default value, and what conversion (if any) moves a
// value from one type to another (spec.md §4.5.2).
type TypeManager struct{}

func NewTypeManager() *TypeManager { return &TypeManager{} }

func (tm *TypeManager) QBE(t types.TypeDescriptor) types.QBEType { return t.QBEType() }

func (tm *TypeManager) Default(t types.TypeDescriptor) string { return t.DefaultValue() }

// ConvertOp returns the single QBE conversion opcode needed to move a value
// of type from into a slot of type to, chosen from the value's current QBE
// machine type. A w integer source converts to float directly with
// swtof/uwtof; no extsw/extuw widening to l is emitted first.
func (tm *TypeManager) ConvertOp(from, to types.TypeDescriptor) (op string, ok bool) {
	needed, _, floatToInt := types.NeedsConversion(from, to)
	if !needed {
		return "", false
	}
	fq, tq := from.QBEType(), to.QBEType()
	if floatToInt {
		switch fq {
		case types.QS:
			return "stosi", true
		default:
			return "dtosi", true
		}
	}
	if from.IsFloat() && to.IsFloat() {
		if fq == types.QS && tq == types.QD {
			return "exts", true
		}
		if fq == types.QD && tq == types.QS {
			return "truncd", true
		}
		return "", false
	}
	if from.IsInteger() && to.IsFloat() {
		signed := "s"
		if isUnsigned(from.Base) {
			signed = "u"
		}
		if fq == types.QW {
			if tq == types.QS {
				return signed + "wtof", true
			}
			return signed + "wtof", true
		}
		if tq == types.QS {
			return signed + "ltof", true
		}
		return signed + "ltof", true
	}
	// integer-to-integer widening/narrowing within the w/l machine types
	if fq == types.QW && tq == types.QL {
		if isUnsigned(from.Base) {
			return "extuw", true
		}
		return "extsw", true
	}
	return "", false
}

func isUnsigned(b types.BaseType) bool {
	switch b {
	case types.UBYTE, types.USHORT, types.UINTEGER, types.ULONG:
		return true
	}
	return false
}
