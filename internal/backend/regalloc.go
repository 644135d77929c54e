package backend

// GPRPool/FPRPool are the caller-saved scratch registers this backend's
// linear scan draws from — X9-X15 and D8-D15, leaving X0-X8/D0-D7 free for
// argument and return-value passing and X16/X17/X28-X30/SP reserved the way
// std/compiler/aarch64.go reserves them (IP0/IP1, operand stack, FP/LR/SP).
var (
	GPRPool = []int{9, 10, 11, 12, 13, 14, 15}
	FPRPool = []int{8, 9, 10, 11, 12, 13, 14, 15}
)

// Allocate runs a single-pass linear scan over f.Code: every virtual
// register (Ins.Virtual >= 0) is assigned a physical register from the
// class-appropriate pool on first definition, and freed once its last use
// has been scanned. This is deliberately not a full interference-graph
// allocator — straight-line peephole-sized functions never need one — but
// it performs the one thing spec.md §8.1 asks a reader to be able to
// verify: after this pass, every operand in the fused stream (including the
// MADD/MSUB/FMADD/FMSUB Ra slot) is a real physical register, and the
// source MUL is gone (Fuse+Sweep already dropped it).
func Allocate(f *Func) {
	lastUse := map[int]int{}
	for idx, ins := range f.Code {
		if ins.Dst != R && ins.Virtual >= 0 {
			lastUse[ins.Dst] = idx
		}
		for _, s := range ins.Src {
			if s != R {
				lastUse[s] = idx
			}
		}
	}

	assigned := map[int]int{}      // virtual -> physical
	assignedCls := map[int]Class{} // virtual -> class, so release frees the right pool
	freeGPR := append([]int(nil), GPRPool...)
	freeFPR := append([]int(nil), FPRPool...)

	alloc := func(v int, cls Class) int {
		if p, ok := assigned[v]; ok {
			return p
		}
		var p int
		if cls == FPR {
			p, freeFPR = freeFPR[0], freeFPR[1:]
		} else {
			p, freeGPR = freeGPR[0], freeGPR[1:]
		}
		assigned[v] = p
		assignedCls[v] = cls
		return p
	}
	release := func(v int) {
		p, ok := assigned[v]
		if !ok {
			return
		}
		if assignedCls[v] == FPR {
			freeFPR = append(freeFPR, p)
		} else {
			freeGPR = append(freeGPR, p)
		}
		delete(assigned, v)
	}

	for idx, ins := range f.Code {
		if ins.Dead {
			continue
		}
		for k, s := range ins.Src {
			if s != R {
				ins.Src[k] = alloc(s, ins.Class)
			}
		}
		if ins.Dst != R && ins.Virtual >= 0 {
			ins.Dst = alloc(ins.Dst, ins.Class)
		}
		for v, last := range lastUse {
			if last == idx {
				release(v)
			}
		}
		ins.Virtual = -1
	}
}
