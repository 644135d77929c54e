package backend

import (
	"strconv"
	"strings"
)

// XZR/WZR and SP share encoding 31; which one a bare "31" means depends on
// instruction class, same as std/compiler/aarch64.go's REG_SP/REG_XZR.
const (
	RegXZR = 31
	RegSP  = 31
	RegFP  = 29 // X29
	RegLR  = 30 // X30
)

// ParseReg decodes an assembly-text register operand ("x3", "w3", "d3",
// "s3", "sp", "xzr", "fp", "lr") into (number, class). Unrecognized text
// returns (R, GPR).
func ParseReg(tok string) (int, Class) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	switch tok {
	case "sp":
		return RegSP, GPR
	case "xzr", "wzr":
		return RegXZR, GPR
	case "fp":
		return RegFP, GPR
	case "lr":
		return RegLR, GPR
	}
	if len(tok) < 2 {
		return R, GPR
	}
	switch tok[0] {
	case 'x', 'w':
		if n, err := strconv.Atoi(tok[1:]); err == nil {
			return n, GPR
		}
	case 'd', 's':
		if n, err := strconv.Atoi(tok[1:]); err == nil {
			return n, FPR
		}
	}
	return R, GPR
}

// RegName formats a register number back to assembly text, 64-bit GPR form
// or double-precision FPR form (the widths this backend ever materializes:
// BASIC LONG/pointer locals and DOUBLE locals, spec.md §3.3).
func RegName(n int, cls Class) string {
	if n == R {
		return "_"
	}
	if cls == FPR {
		return "d" + strconv.Itoa(n)
	}
	if n == RegXZR {
		return "xzr"
	}
	return "x" + strconv.Itoa(n)
}
