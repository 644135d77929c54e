package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/arm64/arm64asm"
)

func gpr(op Opcode, dst int, src0, src1 int, virtual int) *Ins {
	return &Ins{Op: op, Class: GPR, Dst: dst, Src: [3]int{src0, src1, R}, Virtual: virtual}
}

func decode(t *testing.T, word uint32) arm64asm.Inst {
	t.Helper()
	buf := []byte{byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24)}
	inst, err := arm64asm.Decode(buf)
	require.NoError(t, err)
	return inst
}

func TestFuseMulAdd(t *testing.T) {
	// t0 := mul v1, v2 ; t3 := add v4, t0  ==>  madd t3, v1, v2, v4
	mul := gpr(OpMul, 0, 1, 2, 0)
	mul.SingleUse = true
	add := gpr(OpAdd, 3, 4, 0, 3)
	f := &Func{Name: "f", Code: []*Ins{mul, add}}

	Fuse(f)

	assert.True(t, mul.Dead, "source mul must be deleted once fused (spec.md §8.1)")
	assert.Equal(t, OpMadd, add.Op)
	assert.Equal(t, [3]int{1, 2, 4}, add.Src)
}

func TestFuseMulSubIsMsub(t *testing.T) {
	// t0 := mul v1, v2 ; t3 := sub v4, t0  ==>  msub t3, v1, v2, v4
	mul := gpr(OpMul, 0, 1, 2, 0)
	mul.SingleUse = true
	sub := gpr(OpSub, 3, 4, 0, 3)
	f := &Func{Name: "f", Code: []*Ins{mul, sub}}

	Fuse(f)

	require.True(t, mul.Dead)
	assert.Equal(t, OpMsub, sub.Op)
	assert.Equal(t, [3]int{1, 2, 4}, sub.Src)
}

func TestFuseRejectsMulSubWhenMulIsMinuend(t *testing.T) {
	// t3 := sub t0, v4  (mul result minus accumulator) has no direct
	// MSUB/MADD shape — fusion must leave it alone.
	mul := gpr(OpMul, 0, 1, 2, 0)
	mul.SingleUse = true
	sub := gpr(OpSub, 3, 0, 4, 3)
	f := &Func{Name: "f", Code: []*Ins{mul, sub}}

	Fuse(f)

	assert.False(t, mul.Dead)
	assert.Equal(t, OpSub, sub.Op)
}

func TestFuseRequiresSingleUse(t *testing.T) {
	mul := gpr(OpMul, 0, 1, 2, 0)
	mul.SingleUse = false // some other instruction still needs t0
	add := gpr(OpAdd, 3, 4, 0, 3)
	f := &Func{Name: "f", Code: []*Ins{mul, add}}

	Fuse(f)

	assert.False(t, mul.Dead)
	assert.Equal(t, OpAdd, add.Op)
}

func TestFuseRequiresClassAgreement(t *testing.T) {
	mul := gpr(OpMul, 0, 1, 2, 0)
	mul.SingleUse = true
	add := &Ins{Op: OpFAdd, Class: FPR, Dst: 3, Src: [3]int{4, 0, R}, Virtual: 3}
	f := &Func{Name: "f", Code: []*Ins{mul, add}}

	Fuse(f)

	assert.False(t, mul.Dead, "GPR mul must not fuse into an FPR accumulate")
}

func TestCompileFuncEncodesRealMadd(t *testing.T) {
	// (a * b) + c, straight line, matching spec.md §8.1's demonstration case.
	mul := gpr(OpMul, 100, 1, 2, 100)
	mul.SingleUse = true
	add := gpr(OpAdd, 101, 3, 100, 101)
	f := &Func{Name: "madd_demo", Code: []*Ins{mul, add}}

	words := CompileFunc(f)
	require.Len(t, words, 1, "the source mul must not survive into the encoded stream")

	inst := decode(t, words[0])
	assert.Equal(t, arm64asm.MADD, inst.Op)

	for _, arg := range inst.Args {
		if arg == nil {
			continue
		}
		_, ok := arg.(arm64asm.Reg)
		require.True(t, ok, "every MADD operand must be a real register post-allocation")
	}
}

func TestCompileFuncEncodesRealMsub(t *testing.T) {
	mul := gpr(OpMul, 100, 1, 2, 100)
	mul.SingleUse = true
	sub := gpr(OpSub, 101, 3, 100, 101)
	f := &Func{Name: "msub_demo", Code: []*Ins{mul, sub}}

	words := CompileFunc(f)
	require.Len(t, words, 1)

	inst := decode(t, words[0])
	assert.Equal(t, arm64asm.MSUB, inst.Op)
}

func TestCompileFuncEncodesRealFmadd(t *testing.T) {
	mul := &Ins{Op: OpFMul, Class: FPR, Dst: 100, Src: [3]int{1, 2, R}, Virtual: 100, SingleUse: true}
	add := &Ins{Op: OpFAdd, Class: FPR, Dst: 101, Src: [3]int{3, 100, R}, Virtual: 101}
	f := &Func{Name: "fmadd_demo", Code: []*Ins{mul, add}}

	words := CompileFunc(f)
	require.Len(t, words, 1)

	inst := decode(t, words[0])
	assert.Equal(t, arm64asm.FMADD, inst.Op)
}

func TestSweepDropsDeadInstructions(t *testing.T) {
	mul := gpr(OpMul, 0, 1, 2, 0)
	mul.SingleUse = true
	add := gpr(OpAdd, 3, 4, 0, 3)
	f := &Func{Name: "f", Code: []*Ins{mul, add}}

	Fuse(f)
	Sweep(f)

	require.Len(t, f.Code, 1)
	assert.Equal(t, OpMadd, f.Code[0].Op)
}
