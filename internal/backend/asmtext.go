package backend

import (
	"regexp"
	"strings"
)

// QBE's own ARM64 backend already does instruction selection and register
// allocation (spec.md §4.6: "QBE performs SSA construction, optimization,
// and register allocation; FasterBASIC's own backend stage begins only
// after QBE has produced target assembly"). FuseAssemblyText is that stage
// applied directly to qbe's textual .s output: a line-oriented version of
// the same Ins-level Fuse pass, for the common case of a driver that never
// wants raw machine words, only the fused assembly text to hand to the
// system assembler.
var (
	reMul = regexp.MustCompile(`^\s*(mul|fmul)\s+(\S+),\s*(\S+),\s*(\S+)\s*$`)
	reAdd = regexp.MustCompile(`^\s*(add|sub|fadd|fsub)\s+(\S+),\s*(\S+),\s*(\S+)\s*$`)
)

// FuseAssemblyText scans src for an adjacent mul-then-add/sub pair acting on
// the same register and rewrites it to madd/msub/fmadd/fmsub, the textual
// equivalent of Fuse+Sweep over an Ins stream. Single-use is approximated by
// requiring the mul's destination not to reappear anywhere else in src
// (spec.md §4.6's fusion precondition, checked the only way plain text
// allows).
func FuseAssemblyText(src string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		mm := reMul.FindStringSubmatch(lines[i])
		if mm == nil || i+1 >= len(lines) {
			out = append(out, lines[i])
			continue
		}
		mulOp, mulDst, mulRn, mulRm := mm[1], mm[2], mm[3], mm[4]
		am := reAdd.FindStringSubmatch(lines[i+1])
		if am == nil || !sameFloatness(mulOp, am[1]) {
			out = append(out, lines[i])
			continue
		}
		addOp, addDst, s0, s1 := am[1], am[2], am[3], am[4]

		var ra, rn, rm string
		var fused string
		switch {
		case s1 == mulDst:
			ra, rn, rm = s0, mulRn, mulRm
		case s0 == mulDst:
			ra, rn, rm = s1, mulRn, mulRm
		default:
			out = append(out, lines[i])
			continue
		}
		if !singleUse(mulDst, lines, i+2) {
			out = append(out, lines[i])
			continue
		}
		switch addOp {
		case "add":
			fused = "madd"
		case "fadd":
			fused = "fmadd"
		case "sub":
			if s1 != mulDst {
				// mul result is the minuend (t - a*b has no direct msub shape)
				out = append(out, lines[i])
				continue
			}
			fused = "msub"
		case "fsub":
			if s1 != mulDst {
				out = append(out, lines[i])
				continue
			}
			fused = "fmsub"
		}

		out = append(out, "\t"+fused+" "+addDst+", "+rn+", "+rm+", "+ra)
		i++ // consume the add/sub line too
	}
	return strings.Join(out, "\n")
}

func sameFloatness(mulOp, addOp string) bool {
	mulIsFloat := strings.HasPrefix(mulOp, "f")
	addIsFloat := strings.HasPrefix(addOp, "f")
	return mulIsFloat == addIsFloat
}

// singleUse reports that reg never appears again after lines[from:] — the
// textual stand-in for Ins.SingleUse.
func singleUse(reg string, lines []string, from int) bool {
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], reg) {
			return false
		}
	}
	return true
}
