// Package backend implements the post-regalloc ARM64 instruction-selection
// stage (spec.md §4.6): a small three-operand instruction record, a fixed
// pipeline of textbook peephole passes, and the MADD/FMADD/MSUB/FMSUB fusion
// that is this stage's whole reason to exist.
package backend

// Opcode names one instruction kind. Lowercase, mirroring the mnemonic.
type Opcode string

const (
	OpMov   Opcode = "mov"
	OpAdd   Opcode = "add"
	OpSub   Opcode = "sub"
	OpMul   Opcode = "mul"
	OpMadd  Opcode = "madd"
	OpMsub  Opcode = "msub"
	OpFMov  Opcode = "fmov"
	OpFAdd  Opcode = "fadd"
	OpFSub  Opcode = "fsub"
	OpFMul  Opcode = "fmul"
	OpFMadd Opcode = "fmadd"
	OpFMsub Opcode = "fmsub"
	OpLoad  Opcode = "ldr"
	OpStore Opcode = "str"
	OpLabel Opcode = "label"
	OpJmp   Opcode = "jmp"
	OpJnz   Opcode = "jnz"
	OpRet   Opcode = "ret"
	OpCall  Opcode = "call"
)

// R is the empty-operand sentinel (spec.md §4.6: "slots 0,1,2 plus sentinel
// R empty"). A real register never collides with it.
const R = -1

// Class distinguishes the general-purpose and scalar-floating register
// files; MADD operands must all agree in class (spec.md §4.6 constraint).
type Class int

const (
	GPR Class = iota
	FPR
)

// Ins is one post-regalloc instruction: a destination plus up to three
// source operands (spec.md §4.6 "3-operand Ins record"). Dst/Src hold
// physical register numbers once regalloc has run; Virtual is the pre-alloc
// numbering consumed by the allocator pass.
type Ins struct {
	Op    Opcode
	Class Class
	Dst   int
	Src   [3]int // Src[0]=Rn, Src[1]=Rm, Src[2]=Ra (only MADD/MSUB/FMADD/FMSUB use all three)
	Imm   int64
	Label string // OpLabel/OpJmp/OpJnz target, OpCall callee

	Virtual  int  // >=0 while still in virtual-register form, -1 once allocated
	SingleUse bool // true if Dst has exactly one further use (fusion/copy-prop precondition)
	Dead     bool  // true once a pass has proven this instruction can be dropped
}

// IsArith reports whether ins computes Dst := Src[0] op Src[1] with no
// accumulator operand — the shape fusion looks for in a mul followed by an
// add/sub.
func (i *Ins) IsArith() bool {
	switch i.Op {
	case OpAdd, OpSub, OpMul, OpFAdd, OpFSub, OpFMul:
		return true
	}
	return false
}

// Func is one function's post-regalloc instruction stream.
type Func struct {
	Name string
	Code []*Ins
}
