package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/parser"
	"github.com/fasterbasic/fbc/internal/types"
)

func analyze(t *testing.T, src string) (*Result, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	p := parser.New("t.bas", []byte(src), sink)
	prog := p.Parse()
	require.False(t, sink.HasErrors(), "parse errors: %v", sink.Strings())
	ctx := NewContext()
	ctx.Diags = sink
	res := New(ctx).Analyze(prog)
	return res, sink
}

func TestAnalyzeImplicitScalarDeclarationBySuffix(t *testing.T) {
	res, sink := analyze(t, "LET x% = 1\n")
	require.False(t, sink.HasErrors())
	sym, ok := res.Ctx.Symbols.Lookup("", "x%")
	require.True(t, ok)
	assert.Equal(t, types.INTEGER, sym.Type.Base)
}

func TestAnalyzeNarrowingFloatToIntRequiresConversion(t *testing.T) {
	_, sink := analyze(t, "DIM x AS INTEGER\nLET x = 1.5\n")
	require.True(t, sink.HasErrors())
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diag.NarrowingRequired {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeStringNumericMismatchReportsTypeMismatch(t *testing.T) {
	_, sink := analyze(t, `DIM s AS STRING
LET s = 1 + "x"
`)
	require.True(t, sink.HasErrors())
}

func TestAnalyzeOptionBaseSetsArrayBase(t *testing.T) {
	res, sink := analyze(t, "OPTION BASE 1\n")
	require.False(t, sink.HasErrors())
	assert.Equal(t, 1, res.Ctx.ArrayBase)
}

func TestAnalyzeUndefinedCallStmtReportsUndefined(t *testing.T) {
	_, sink := analyze(t, "CALL Foo(1)\n")
	require.True(t, sink.HasErrors())
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diag.Undefined {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeExitForOutsideLoopReportsBadControlFlow(t *testing.T) {
	_, sink := analyze(t, "EXIT FOR\n")
	require.True(t, sink.HasErrors())
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diag.BadControlFlow {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeCallStmtArgCountMismatch(t *testing.T) {
	src := "SUB Greet(a AS INTEGER, b AS INTEGER)\nPRINT a\nEND SUB\nCALL Greet(1)\n"
	_, sink := analyze(t, src)
	require.True(t, sink.HasErrors())
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diag.TypeMismatch {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeCyclicUDTIsRejected(t *testing.T) {
	src := "TYPE A\nb AS B\nEND TYPE\nTYPE B\na AS A\nEND TYPE\n"
	_, sink := analyze(t, src)
	require.True(t, sink.HasErrors())
}

func TestAnalyzeTryWithoutCatchWarnsOfUncaughtPropagation(t *testing.T) {
	_, sink := analyze(t, "TRY\nPRINT 1\nFINALLY\nPRINT 2\nEND TRY\n")
	require.True(t, sink.HasErrors())
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diag.BadControlFlow {
			found = true
		}
	}
	assert.True(t, found)
}
