package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasterbasic/fbc/internal/cfgir"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/parser"
	"github.com/fasterbasic/fbc/internal/sema"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	sink := diag.NewSink()
	p := parser.New("t.bas", []byte(src), sink)
	prog := p.Parse()
	require.False(t, sink.HasErrors(), "parse errors: %v", sink.Strings())

	ctx := sema.NewContext()
	ctx.Diags = sink
	res := sema.New(ctx).Analyze(prog)
	require.False(t, sink.HasErrors(), "sema errors: %v", sink.Strings())

	pcfg := cfgir.Build(prog)
	return Generate(prog, res, pcfg)
}

func TestGenerateDeduplicatesRepeatedStringLiterals(t *testing.T) {
	il := generate(t, `PRINT "hello"
PRINT "hello"
PRINT "world"
`)
	assert.Equal(t, 1, strings.Count(il, `data $str_0 =`))
	assert.Equal(t, 1, strings.Count(il, `data $str_1 =`))
	assert.Equal(t, 0, strings.Count(il, `data $str_2 =`))
}

func TestGenerateEmitsOneFunctionPerSubAndFunction(t *testing.T) {
	il := generate(t, "SUB Greet()\nPRINT 1\nEND SUB\nFUNCTION Add(a AS INTEGER, b AS INTEGER) AS INTEGER\nLET Add = a + b\nEND FUNCTION\n")
	assert.Contains(t, il, "function w $main(")
	assert.True(t, strings.Count(il, "function ") >= 3, "expected main + Greet + Add function bodies")
}

func TestGenerateSelectCaseLowersToCompareLadder(t *testing.T) {
	il := generate(t, "SELECT CASE x\nCASE 1\nPRINT 1\nCASE 2\nPRINT 2\nCASE ELSE\nPRINT 3\nEND SELECT\n")
	assert.Contains(t, il, "ceqd") // selector compared against each CASE value as a double
	assert.Contains(t, il, "jnz")
}

func TestGenerateTryWithFinallyPushesHasFinallyFlag(t *testing.T) {
	il := generate(t, "TRY\nPRINT 1\nFINALLY\nPRINT 2\nEND TRY\n")
	assert.Contains(t, il, "call $fb_exception_push(1)")
}

func TestGenerateTryWithoutFinallyPushesZeroFlag(t *testing.T) {
	il := generate(t, "TRY\nPRINT 1\nCATCH e\nPRINT 2\nEND TRY\n")
	assert.Contains(t, il, "call $fb_exception_push(0)")
}

func TestGenerateUncaughtTryPropagatesException(t *testing.T) {
	il := generate(t, "TRY\nPRINT 1\nFINALLY\nPRINT 2\nEND TRY\nPRINT 3\n")
	assert.Contains(t, il, "call $fb_exception_propagate()")
}

func TestGenerateOptionDetectStringEmitsStringLiteralData(t *testing.T) {
	il := generate(t, "OPTION DETECTSTRING\nPRINT \"ascii\"\n")
	assert.Contains(t, il, "data $str_0 =")
}

func TestGenerateForLoopEmitsConditionalJnz(t *testing.T) {
	il := generate(t, "FOR i = 1 TO 3\nPRINT i\nNEXT i\n")
	assert.Contains(t, il, "jnz")
}
