// Package codegen lowers a semantically analyzed AST plus its CFG into
// textual QBE intermediate language (spec.md §4.5). It is split into six
// narrow-contract components mirrored one per file: QBEBuilder (this file),
// TypeManager, SymbolMapper, RuntimeLibrary, ASTEmitter, and CFGEmitter.
package codegen

import (
	"fmt"
	"strings"

	"github.com/fasterbasic/fbc/internal/types"
)

// QBEBuilder assembles one compilation unit's QBE IL text: a file-scope data
// section (string pool + globals vector) followed by function bodies
// (spec.md §4.5.1).
type QBEBuilder struct {
	funcs strings.Builder

	strPool  map[string]string // literal text -> data label
	strOrder []string
	tempSeq  int
	blockSeq int
}

func NewQBEBuilder() *QBEBuilder {
	return &QBEBuilder{strPool: make(map[string]string)}
}

// registerString interns a string literal once, returning its data label
// (spec.md §4.5.1 "callers register each string literal once via
// registerString(text) -> label").
func (q *QBEBuilder) registerString(text string) string {
	if label, ok := q.strPool[text]; ok {
		return label
	}
	label := fmt.Sprintf("$str_%d", len(q.strOrder))
	q.strPool[text] = label
	q.strOrder = append(q.strOrder, text)
	return label
}

// Temp allocates a fresh SSA temporary name.
func (q *QBEBuilder) Temp() string {
	q.tempSeq++
	return fmt.Sprintf("%%t%d", q.tempSeq)
}

// BlockLabel allocates a fresh internally-numbered block label
// (spec.md §4.5.3: "Labels use @block_<n>").
func (q *QBEBuilder) BlockLabel(hint string) string {
	q.blockSeq++
	if hint == "" {
		return fmt.Sprintf("@block_%d", q.blockSeq)
	}
	return fmt.Sprintf("@%s_%d", hint, q.blockSeq)
}

// OpenFunc starts a new function body buffer (spec.md §4.5.1 prologue).
func (q *QBEBuilder) OpenFunc(export bool, name string, params string, retType string) {
	q.funcs.WriteString("\n")
	if export {
		q.funcs.WriteString("export ")
	}
	q.funcs.WriteString("function ")
	if retType != "" {
		q.funcs.WriteString(retType + " ")
	}
	q.funcs.WriteString(name + "(" + params + ") {\n")
}

func (q *QBEBuilder) CloseFunc() {
	q.funcs.WriteString("}\n")
}

func (q *QBEBuilder) Label(l string) {
	q.funcs.WriteString(strings.TrimPrefix(l, "@") + "\n")
}

func (q *QBEBuilder) line(format string, args ...any) {
	q.funcs.WriteString("\t" + fmt.Sprintf(format, args...) + "\n")
}

// --- typed arithmetic / comparisons / memory ops (spec.md §4.5.1) ---

func (q *QBEBuilder) Bin(dst string, qt types.QBEType, op string, a, b string) {
	q.line("%s =%c %s %s, %s", dst, qt, op, a, b)
}

func (q *QBEBuilder) Cmp(dst string, qt types.QBEType, op string, a, b string) {
	q.line("%s =w c%s%c %s, %s", dst, op, qt, a, b)
}

func (q *QBEBuilder) Load(dst string, qt types.QBEType, memType string, addr string) {
	q.line("%s =%c load%s %s", dst, qt, memType, addr)
}

func (q *QBEBuilder) Store(memType string, addr string, val string) {
	q.line("store%s %s, %s", memType, val, addr)
}

func (q *QBEBuilder) Alloc(dst string, size int, align int) {
	q.line("%s =l alloc%d %d", dst, align, size)
}

func (q *QBEBuilder) Copy(dst string, qt types.QBEType, src string) {
	q.line("%s =%c copy %s", dst, qt, src)
}

func (q *QBEBuilder) Conv(dst string, qt types.QBEType, op string, src string) {
	q.line("%s =%c %s %s", dst, qt, op, src)
}

func (q *QBEBuilder) Call(dst string, qt types.QBEType, fn string, args []string) {
	argList := strings.Join(args, ", ")
	if dst == "" {
		q.line("call %s(%s)", fn, argList)
		return
	}
	q.line("%s =%c call %s(%s)", dst, qt, fn, argList)
}

func (q *QBEBuilder) Jmp(target string) {
	q.line("jmp %s", strings.TrimPrefix(target, "@"))
}

func (q *QBEBuilder) Jnz(cond, t, f string) {
	q.line("jnz %s, %s, %s", cond, strings.TrimPrefix(t, "@"), strings.TrimPrefix(f, "@"))
}

func (q *QBEBuilder) Ret(val string) {
	if val == "" {
		q.line("ret")
		return
	}
	q.line("ret %s", val)
}

// Finish renders the whole compilation unit: data section first, functions
// second (spec.md §4.5.1: "all data sections are emitted at file scope
// before any function").
func (q *QBEBuilder) Finish(globalsSlots int) string {
	var out strings.Builder
	for _, text := range q.strOrder {
		label := q.strPool[text]
		out.WriteString(fmt.Sprintf("data %s = { b %s, b 0 }\n", label, encodeQBEString(text)))
	}
	if globalsSlots > 0 {
		out.WriteString(fmt.Sprintf("export data $__global_vector = align 8 { z %d }\n", globalsSlots*8))
	}
	out.WriteString(q.funcs.String())
	return out.String()
}

// encodeQBEString renders a Go string as a QBE byte-literal list, escaping
// quotes and backslashes (spec.md §4.5.1 string constant pool).
func encodeQBEString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
