package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateAssignsDistinctRegistersForLiveValues(t *testing.T) {
	// v1, v2, v3 are all live at the fused madd, so they must land in three
	// distinct physical registers even though they share one pool with the
	// result register.
	mul := gpr(OpMul, 100, 1, 2, 100)
	acc := gpr(OpAdd, 101, 3, 100, 101)
	f := &Func{Name: "f", Code: []*Ins{mul, acc}}
	mul.SingleUse = true

	Fuse(f)
	Sweep(f)
	Allocate(f)

	madd := f.Code[0]
	assert.Equal(t, -1, madd.Virtual, "Allocate must clear Virtual once a physical register is assigned")
	seen := map[int]bool{madd.Dst: true, madd.Src[0]: true, madd.Src[1]: true, madd.Src[2]: true}
	assert.Len(t, seen, 4, "operands simultaneously live at the madd must not alias the same physical register")
}

func TestAllocateReleasesRegisterAfterLastUse(t *testing.T) {
	// Twenty independent mul+add chains in sequence should not exhaust the
	// small scratch pool if the allocator frees registers after last use.
	var code []*Ins
	for i := 0; i < 20; i++ {
		base := i * 10
		mul := gpr(OpMul, base, base+1, base+2, base)
		mul.SingleUse = true
		add := gpr(OpAdd, base+3, base+4, base, base+3)
		code = append(code, mul, add)
	}
	f := &Func{Name: "f", Code: code}

	Fuse(f)
	Sweep(f)

	assert.NotPanics(t, func() { Allocate(f) }, "a bounded pool must not panic on index-out-of-range when registers are freed between chains")

	for _, ins := range f.Code {
		assert.Equal(t, -1, ins.Virtual)
		assert.NotEqual(t, R, ins.Dst)
		for _, s := range ins.Src {
			assert.NotEqual(t, R, s)
		}
	}
}
