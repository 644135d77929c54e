package codegen

import "github.com/fasterbasic/fbc/internal/types"

// RuntimeLibrary emits typed calls into the C runtime collaborator
// (spec.md §4.5.4). Every wrapper's argument and return types must agree
// with TypeManager's mapping for the value being passed.
type RuntimeLibrary struct {
	q *QBEBuilder
}

func NewRuntimeLibrary(q *QBEBuilder) *RuntimeLibrary { return &RuntimeLibrary{q: q} }

func (r *RuntimeLibrary) call(qt types.QBEType, name string, args ...string) string {
	dst := ""
	if qt != 0 {
		dst = r.q.Temp()
	}
	r.q.Call(dst, qt, "$"+name, args)
	return dst
}

func (r *RuntimeLibrary) callVoid(name string, args ...string) {
	r.q.Call("", 0, "$"+name, args)
}

// Print dispatches on the expression's resolved type, not any declared
// variable type (spec.md §4.5.5).
func (r *RuntimeLibrary) Print(t types.TypeDescriptor, val string) {
	switch {
	case t.Base == types.INTEGER || t.Base == types.SHORT || t.Base == types.BYTE ||
		t.Base == types.UINTEGER || t.Base == types.USHORT || t.Base == types.UBYTE || t.Base == types.LOOP_INDEX:
		r.callVoid("fb_print_int", val)
	case t.Base == types.LONG || t.Base == types.ULONG:
		r.callVoid("fb_print_long", val)
	case t.Base == types.SINGLE:
		r.callVoid("fb_print_float", val)
	case t.Base == types.DOUBLE:
		r.callVoid("fb_print_double", val)
	case t.IsString():
		r.callVoid("fb_print_string_desc", val)
	default:
		r.callVoid("fb_print_cstr", val)
	}
}

func (r *RuntimeLibrary) PrintNewline() { r.callVoid("fb_print_newline") }
func (r *RuntimeLibrary) PrintTab()     { r.callVoid("fb_print_tab") }

func (r *RuntimeLibrary) StringFromCStr(label string) string {
	return r.call(types.QL, "fb_string_from_cstr", label)
}
func (r *RuntimeLibrary) StringConcat(a, b string) string {
	return r.call(types.QL, "fb_string_concat", a, b)
}
func (r *RuntimeLibrary) StringLen(s string) string { return r.call(types.QW, "fb_string_len", s) }
func (r *RuntimeLibrary) StringChr(code string) string {
	return r.call(types.QL, "fb_string_chr", code)
}
func (r *RuntimeLibrary) StringAsc(s string) string { return r.call(types.QW, "fb_string_asc", s) }
func (r *RuntimeLibrary) StringMid(s, start, length string) string {
	return r.call(types.QL, "fb_string_mid", s, start, length)
}
func (r *RuntimeLibrary) StringLeft(s, n string) string {
	return r.call(types.QL, "fb_string_left", s, n)
}
func (r *RuntimeLibrary) StringRight(s, n string) string {
	return r.call(types.QL, "fb_string_right", s, n)
}
func (r *RuntimeLibrary) StringCompare(a, b string) string {
	return r.call(types.QW, "fb_string_compare", a, b)
}
func (r *RuntimeLibrary) StringAssign(dst, src string) { r.callVoid("fb_string_assign", dst, src) }
func (r *RuntimeLibrary) StringUpper(s string) string  { return r.call(types.QL, "fb_string_upper", s) }
func (r *RuntimeLibrary) StringLower(s string) string  { return r.call(types.QL, "fb_string_lower", s) }
func (r *RuntimeLibrary) StringTrim(s string) string   { return r.call(types.QL, "fb_string_trim", s) }
func (r *RuntimeLibrary) StringLTrim(s string) string  { return r.call(types.QL, "fb_string_ltrim", s) }
func (r *RuntimeLibrary) StringRTrim(s string) string  { return r.call(types.QL, "fb_string_rtrim", s) }

func (r *RuntimeLibrary) ArrayAccess(desc, idx string) string {
	return r.call(types.QL, "fb_array_access", desc, idx)
}
func (r *RuntimeLibrary) ArrayBoundsCheck(desc, idx string) {
	r.callVoid("fb_array_bounds_check", desc, idx)
}
func (r *RuntimeLibrary) ArrayAlloc(elemSize, count string) string {
	return r.call(types.QL, "fb_array_alloc", elemSize, count)
}
func (r *RuntimeLibrary) ArrayFree(desc string)  { r.callVoid("fb_array_free", desc) }
func (r *RuntimeLibrary) ArrayErase(desc string) { r.callVoid("fb_array_erase", desc) }
func (r *RuntimeLibrary) ArrayRedim(desc, count string) string {
	return r.call(types.QL, "fb_array_redim", desc, count)
}
func (r *RuntimeLibrary) ArrayRedimPreserve(desc, count string) string {
	return r.call(types.QL, "fb_array_redim_preserve", desc, count)
}

func (r *RuntimeLibrary) MathAbsI(v string) string { return r.call(types.QL, "fb_math_abs_i", v) }
func (r *RuntimeLibrary) MathAbsD(v string) string { return r.call(types.QD, "fb_math_abs_d", v) }
func (r *RuntimeLibrary) MathSqrt(v string) string { return r.call(types.QD, "fb_math_sqrt", v) }
func (r *RuntimeLibrary) MathSin(v string) string  { return r.call(types.QD, "fb_math_sin", v) }
func (r *RuntimeLibrary) MathCos(v string) string  { return r.call(types.QD, "fb_math_cos", v) }
func (r *RuntimeLibrary) MathTan(v string) string  { return r.call(types.QD, "fb_math_tan", v) }
func (r *RuntimeLibrary) MathAtan(v string) string { return r.call(types.QD, "fb_math_atan", v) }
func (r *RuntimeLibrary) MathAtan2(y, x string) string {
	return r.call(types.QD, "fb_math_atan2", y, x)
}
func (r *RuntimeLibrary) MathLog(v string) string { return r.call(types.QD, "fb_math_log", v) }
func (r *RuntimeLibrary) MathExp(v string) string { return r.call(types.QD, "fb_math_exp", v) }
func (r *RuntimeLibrary) MathRnd() string         { return r.call(types.QD, "fb_math_rnd") }
func (r *RuntimeLibrary) MathRndInt(lo, hi string) string {
	return r.call(types.QW, "fb_math_rnd_int", lo, hi)
}
func (r *RuntimeLibrary) MathRandomize(seed string) { r.callVoid("fb_math_randomize", seed) }
func (r *RuntimeLibrary) MathInt(v string) string   { return r.call(types.QL, "fb_math_int", v) }
func (r *RuntimeLibrary) MathSgn(v string) string   { return r.call(types.QW, "fb_math_sgn", v) }
func (r *RuntimeLibrary) MathPow(base, exp string) string {
	return r.call(types.QD, "fb_math_pow", base, exp)
}

func (r *RuntimeLibrary) InputInt() string    { return r.call(types.QW, "fb_input_int") }
func (r *RuntimeLibrary) InputFloat() string  { return r.call(types.QS, "fb_input_float") }
func (r *RuntimeLibrary) InputDouble() string { return r.call(types.QD, "fb_input_double") }
func (r *RuntimeLibrary) InputString() string { return r.call(types.QL, "fb_input_string") }

func (r *RuntimeLibrary) Str(v string) string { return r.call(types.QL, "fb_str", v) }
func (r *RuntimeLibrary) Val(v string) string { return r.call(types.QD, "fb_val", v) }
func (r *RuntimeLibrary) End(code string)     { r.callVoid("fb_end", code) }

func (r *RuntimeLibrary) ExceptionPush(hasFinally string) { r.callVoid("fb_exception_push", hasFinally) }
func (r *RuntimeLibrary) ExceptionPop()                   { r.callVoid("fb_exception_pop") }
func (r *RuntimeLibrary) ExceptionCurrent() string {
	return r.call(types.QL, "fb_exception_current")
}
func (r *RuntimeLibrary) ExceptionThrow(code, msg string) { r.callVoid("fb_exception_throw", code, msg) }
func (r *RuntimeLibrary) ExceptionSetjmp() string {
	return r.call(types.QW, "fb_exception_setjmp")
}
func (r *RuntimeLibrary) ExceptionLongjmp() { r.callVoid("fb_exception_longjmp") }
func (r *RuntimeLibrary) ExceptionCode(info string) string {
	return r.call(types.QW, "fb_exception_code", info)
}
func (r *RuntimeLibrary) ExceptionMessage(info string) string {
	return r.call(types.QL, "fb_exception_message", info)
}

// ExceptionPropagate pops the current (uncaught) frame and re-raises its
// live exception into the enclosing frame, running no user code of its own
// — FINALLY has already run by the time CFGEmitter reaches this call
// (spec.md §8.1).
func (r *RuntimeLibrary) ExceptionPropagate() { r.callVoid("fb_exception_propagate") }

// DATA/READ/RESTORE are runtime collaborator responsibilities (spec.md §2
// Non-goals lists "the C runtime library... DATA/READ" as out of scope);
// codegen's job is only to push the literal pool and call the typed reader.
func (r *RuntimeLibrary) DataPush(label string) { r.callVoid("fb_data_push", label) }
func (r *RuntimeLibrary) DataReadInt() string    { return r.call(types.QW, "fb_data_read_int") }
func (r *RuntimeLibrary) DataReadLong() string   { return r.call(types.QL, "fb_data_read_long") }
func (r *RuntimeLibrary) DataReadDouble() string { return r.call(types.QD, "fb_data_read_double") }
func (r *RuntimeLibrary) DataReadString() string { return r.call(types.QL, "fb_data_read_string") }
func (r *RuntimeLibrary) DataRestore(index string) { r.callVoid("fb_data_restore", index) }
