package backend

// Encoding formulas below extend std/compiler/aarch64.go's emitMsub/emitMul
// pattern (MADD base 0x9B000000, MSUB 0x9B008000, MUL = MADD with Ra=XZR)
// to the full four-instruction family this backend fuses into: integer
// MADD/MSUB and scalar-double FMADD/FMSUB (ARMv8 "floating-point
// data-processing (3 source)" encoding class, base 0x1F000000).

// EncodeMadd encodes MADD Xd, Xn, Xm, Xa (Xd = Xa + Xn*Xm).
func EncodeMadd(rd, rn, rm, ra int) uint32 {
	return uint32(0x9B000000) | (uint32(rm&0x1f) << 16) | (uint32(ra&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

// EncodeMsub encodes MSUB Xd, Xn, Xm, Xa (Xd = Xa - Xn*Xm), identical to
// std/compiler/aarch64.go's emitMsub.
func EncodeMsub(rd, rn, rm, ra int) uint32 {
	return uint32(0x9B008000) | (uint32(rm&0x1f) << 16) | (uint32(ra&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

// EncodeMul encodes MUL Xd, Xn, Xm (MADD with Ra=XZR), matching
// std/compiler/aarch64.go's emitMul exactly.
func EncodeMul(rd, rn, rm int) uint32 {
	return EncodeMadd(rd, rn, rm, RegXZR)
}

// EncodeFmadd encodes FMADD Dd, Dn, Dm, Da (Dd = Da + Dn*Dm) for
// double-precision (double=true) or single-precision (double=false)
// operands.
func EncodeFmadd(rd, rn, rm, ra int, double bool) uint32 {
	ftype := uint32(0)
	if double {
		ftype = 1 << 22
	}
	return uint32(0x1F000000) | ftype | (uint32(rm&0x1f) << 16) | (uint32(ra&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

// EncodeFmsub encodes FMSUB Dd, Dn, Dm, Da (Dd = Da - Dn*Dm).
func EncodeFmsub(rd, rn, rm, ra int, double bool) uint32 {
	return EncodeFmadd(rd, rn, rm, ra, double) | (1 << 15)
}

// EncodeAddRR/EncodeSubRR/EncodeFAddRR/EncodeFSubRR mirror
// std/compiler/aarch64.go's emitAddRR/emitSubRR for the un-fused path, and
// are what Fuse deletes in favor of the single combined instruction.
func EncodeAddRR(rd, rn, rm int) uint32 {
	return uint32(0x8B000000) | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

func EncodeSubRR(rd, rn, rm int) uint32 {
	return uint32(0xCB000000) | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

// EncodeFAddRR/EncodeFSubRR encode FADD/FSUB Dd, Dn, Dm (double precision).
func EncodeFAddRR(rd, rn, rm int) uint32 {
	return uint32(0x1E602800) | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

func EncodeFSubRR(rd, rn, rm int) uint32 {
	return uint32(0x1E603800) | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

// EncodeFMulRR encodes FMUL Dd, Dn, Dm.
func EncodeFMulRR(rd, rn, rm int) uint32 {
	return uint32(0x1E600800) | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

// Encode lowers one already-fused Ins to its 32-bit ARM64 word. Opcodes
// outside the arithmetic family this backend fuses (label/jump/call/memory)
// are the textual assembler's job, not this peephole stage's; Encode
// panics on them so a caller never silently emits garbage.
func Encode(i *Ins) uint32 {
	switch i.Op {
	case OpAdd:
		return EncodeAddRR(i.Dst, i.Src[0], i.Src[1])
	case OpSub:
		return EncodeSubRR(i.Dst, i.Src[0], i.Src[1])
	case OpMul:
		return EncodeMul(i.Dst, i.Src[0], i.Src[1])
	case OpMadd:
		return EncodeMadd(i.Dst, i.Src[0], i.Src[1], i.Src[2])
	case OpMsub:
		return EncodeMsub(i.Dst, i.Src[0], i.Src[1], i.Src[2])
	case OpFAdd:
		return EncodeFAddRR(i.Dst, i.Src[0], i.Src[1])
	case OpFSub:
		return EncodeFSubRR(i.Dst, i.Src[0], i.Src[1])
	case OpFMul:
		return EncodeFMulRR(i.Dst, i.Src[0], i.Src[1])
	case OpFMadd:
		return EncodeFmadd(i.Dst, i.Src[0], i.Src[1], i.Src[2], true)
	case OpFMsub:
		return EncodeFmsub(i.Dst, i.Src[0], i.Src[1], i.Src[2], true)
	}
	panic("backend: Encode called on non-arithmetic opcode " + string(i.Op))
}
