package backend

// Fuse implements spec.md §4.6's peephole: a MUL immediately followed by an
// ADD or SUB that consumes its result is rewritten into a single MADD/MSUB
// (or FMADD/FMSUB for the scalar-float forms), and the source MUL is marked
// Dead. Two preconditions gate the rewrite (spec.md §4.6 "constraints"):
//
//   - the MUL's destination has exactly one further use (SingleUse) — fusing
//     a MUL some other instruction still needs would lose that value;
//   - the MUL and the accumulate agree in register Class — GPR MADD/MSUB
//     can't absorb an FPR MUL or vice versa.
//
// Only the straight-line adjacent case is matched, mirroring how an
// instruction-selection peephole runs over one basic block's already
// scheduled order: anything a scheduling or copy-propagation pass moved
// apart has already missed its fusion window.
func Fuse(f *Func) {
	for i := 0; i+1 < len(f.Code); i++ {
		mul := f.Code[i]
		if mul.Dead || !isMul(mul.Op) {
			continue
		}
		acc := f.Code[i+1]
		if acc.Dead || !isAddSub(acc.Op) {
			continue
		}
		if !mul.SingleUse || mul.Class != acc.Class {
			continue
		}

		switch {
		case acc.Op == addOpFor(mul.Class) && acc.Src[1] == mul.Dst:
			// acc.Dst := acc.Src[0] + mul.Dst  ==>  MADD acc.Dst, mul.Src[0], mul.Src[1], acc.Src[0]
			fuseInto(acc, maddOpFor(mul.Class), mul, acc.Src[0])
		case acc.Op == addOpFor(mul.Class) && acc.Src[0] == mul.Dst:
			fuseInto(acc, maddOpFor(mul.Class), mul, acc.Src[1])
		case acc.Op == subOpFor(mul.Class) && acc.Src[1] == mul.Dst:
			// acc.Dst := acc.Src[0] - mul.Dst  ==>  MSUB acc.Dst, mul.Src[0], mul.Src[1], acc.Src[0]
			fuseInto(acc, msubOpFor(mul.Class), mul, acc.Src[0])
		default:
			continue
		}
		mul.Dead = true
	}
}

func fuseInto(acc *Ins, op Opcode, mul *Ins, accumulator int) {
	acc.Op = op
	acc.Src[0] = mul.Src[0]
	acc.Src[1] = mul.Src[1]
	acc.Src[2] = accumulator
}

func isMul(op Opcode) bool    { return op == OpMul || op == OpFMul }
func isAddSub(op Opcode) bool { return op == OpAdd || op == OpSub || op == OpFAdd || op == OpFSub }

func addOpFor(c Class) Opcode {
	if c == FPR {
		return OpFAdd
	}
	return OpAdd
}
func subOpFor(c Class) Opcode {
	if c == FPR {
		return OpFSub
	}
	return OpSub
}
func maddOpFor(c Class) Opcode {
	if c == FPR {
		return OpFMadd
	}
	return OpMadd
}
func msubOpFor(c Class) Opcode {
	if c == FPR {
		return OpFMsub
	}
	return OpMsub
}

// Sweep drops every instruction marked Dead (the MULs Fuse folded away),
// compacting the stream to what Encode actually walks.
func Sweep(f *Func) {
	out := f.Code[:0]
	for _, ins := range f.Code {
		if ins.Dead {
			continue
		}
		out = append(out, ins)
	}
	f.Code = out
}
