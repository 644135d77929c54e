package backend

// CompileFunc runs the fixed four-stage pipeline spec.md §4.6 describes for
// one function's already-scheduled arithmetic stream: fuse mul+add/sub into
// madd/msub/fmadd/fmsub, drop the folded-away muls, allocate physical
// registers, then encode every surviving instruction to its 32-bit ARM64
// word. Callers needing only the fused-but-unencoded Ins stream (tests
// asserting on Op/Src shape) can call Fuse/Sweep directly instead.
func CompileFunc(f *Func) []uint32 {
	Fuse(f)
	Sweep(f)
	Allocate(f)

	out := make([]uint32, 0, len(f.Code))
	for _, ins := range f.Code {
		if ins.Op == OpLabel {
			continue
		}
		out = append(out, Encode(ins))
	}
	return out
}
