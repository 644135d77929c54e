// Package types implements the FasterBASIC type system (spec.md §3.3):
// TypeDescriptor, the BaseType lattice, QBE type mapping, and the
// promotion ladder used by coercion.
package types

// BaseType is the set of primitive and structural base types.
type BaseType int

const (
	BYTE BaseType = iota
	UBYTE
	SHORT
	USHORT
	INTEGER
	UINTEGER
	LONG
	ULONG
	SINGLE
	DOUBLE
	STRING
	UNICODE
	USER_DEFINED
	LOOP_INDEX
	ARRAY_DESC
	STRING_DESC
	PTR
	VOID
)

// Attr is a bitset flag on a TypeDescriptor.
type Attr uint8

const (
	IsArray Attr = 1 << iota
	IsPointer
	IsConst
	IsByRef
)

// TypeDescriptor fully describes a FasterBASIC value's type (spec.md §3.3).
type TypeDescriptor struct {
	Base      BaseType
	Attrs     Attr
	UDTTypeID uint32
	ArrayDims []int
}

func Scalar(b BaseType) TypeDescriptor { return TypeDescriptor{Base: b} }

func (t TypeDescriptor) Has(a Attr) bool { return t.Attrs&a != 0 }

func (t TypeDescriptor) WithAttr(a Attr) TypeDescriptor {
	t.Attrs |= a
	return t
}

func (t TypeDescriptor) IsFloat() bool {
	return t.Base == SINGLE || t.Base == DOUBLE
}

func (t TypeDescriptor) IsInteger() bool {
	switch t.Base {
	case BYTE, UBYTE, SHORT, USHORT, INTEGER, UINTEGER, LONG, ULONG, LOOP_INDEX:
		return true
	}
	return false
}

func (t TypeDescriptor) IsString() bool {
	return t.Base == STRING || t.Base == UNICODE
}

func (t TypeDescriptor) IsNumeric() bool {
	return t.IsFloat() || t.IsInteger()
}

// QBEType is the target QBE base type a TypeDescriptor lowers to
// (spec.md §3.3 mapping table).
type QBEType byte

const (
	QW QBEType = 'w' // word: all <=32-bit integers
	QL QBEType = 'l' // long: 64-bit ints, pointers, strings, arrays
	QS QBEType = 's' // single
	QD QBEType = 'd' // double
)

func (t TypeDescriptor) QBEType() QBEType {
	if t.Has(IsArray) || t.Has(IsPointer) {
		return QL
	}
	switch t.Base {
	case BYTE, UBYTE, SHORT, USHORT, INTEGER, UINTEGER, LOOP_INDEX:
		return QW
	case LONG, ULONG, STRING, UNICODE, USER_DEFINED, ARRAY_DESC, STRING_DESC, PTR:
		return QL
	case SINGLE:
		return QS
	case DOUBLE:
		return QD
	}
	return QW
}

// MemoryType is the in-memory load/store suffix used for sub-word scalars
// (spec.md §3.3: "memory is sb/sh with widening on load").
func (t TypeDescriptor) MemoryType() string {
	switch t.Base {
	case BYTE:
		return "sb"
	case UBYTE:
		return "ub"
	case SHORT:
		return "sh"
	case USHORT:
		return "uh"
	default:
		return string(t.QBEType())
	}
}

// Size returns the in-memory byte size of a TypeDescriptor as stored in a
// variable slot. An array-attributed type stores only its descriptor
// pointer inline (spec.md §4.5.8); the element storage itself is a separate
// heap allocation sized at DIM time.
func (t TypeDescriptor) Size() int {
	if t.Has(IsArray) {
		return 8
	}
	switch t.Base {
	case BYTE, UBYTE:
		return 1
	case SHORT, USHORT:
		return 2
	case INTEGER, UINTEGER, SINGLE, LOOP_INDEX:
		return 4
	case LONG, ULONG, DOUBLE, STRING, UNICODE, PTR, ARRAY_DESC, STRING_DESC:
		return 8
	}
	return 8
}

func (t TypeDescriptor) Align() int { return t.Size() }

// rank implements the promotion ladder of spec.md §3.3:
// BYTE -> SHORT -> INTEGER -> LONG -> DOUBLE, with INTEGER -> SINGLE -> DOUBLE.
func rank(b BaseType) int {
	switch b {
	case BYTE, UBYTE:
		return 0
	case SHORT, USHORT:
		return 1
	case INTEGER, UINTEGER, LOOP_INDEX:
		return 2
	case LONG, ULONG:
		return 3
	case SINGLE:
		return 4
	case DOUBLE:
		return 5
	}
	return -1
}

// Wider returns the wider of two numeric base types per the promotion
// ladder, and whether a conversion is a narrowing (lossy) move.
func Wider(a, b BaseType) BaseType {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

// NeedsConversion reports whether assigning a 'from' value to a 'to' slot
// needs a conversion op, and whether that conversion narrows (spec.md §3.3:
// "Narrowing integer conversions emit a warning; float-to-integer requires
// an explicit conversion intrinsic").
func NeedsConversion(from, to TypeDescriptor) (needed bool, narrowing bool, floatToInt bool) {
	if from.Base == to.Base {
		return false, false, false
	}
	if from.IsString() || to.IsString() {
		return from.Base != to.Base, false, false
	}
	if from.IsFloat() && to.IsInteger() {
		return true, false, true
	}
	if rank(to.Base) < rank(from.Base) {
		return true, true, false
	}
	return true, false, false
}

// Coercible reports whether a value of type `from` may be used where `to`
// is expected without an explicit conversion intrinsic.
func Coercible(from, to TypeDescriptor) bool {
	if from.Base == to.Base {
		return true
	}
	if from.IsString() != to.IsString() {
		return false
	}
	if from.IsString() && to.IsString() {
		// STRING and UNICODE do not coerce into each other in either
		// direction (SPEC_FULL.md Open Question); equal bases were
		// accepted above.
		return false
	}
	if from.IsFloat() && to.IsInteger() {
		return false // NARROWING_REQUIRED, spec.md §3.3
	}
	return from.IsNumeric() && to.IsNumeric()
}

// DefaultValue returns the QBE literal text for a type's zero value
// (TypeManager responsibility, spec.md §4.5.2).
func (t TypeDescriptor) DefaultValue() string {
	switch t.QBEType() {
	case QS:
		return "s_0"
	case QD:
		return "d_0"
	default:
		return "0"
	}
}
