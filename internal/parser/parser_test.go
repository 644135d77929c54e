package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
)

func parse(t *testing.T, src string) (*ast.Program, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	p := New("t.bas", []byte(src), sink)
	return p.Parse(), sink
}

func TestParseLetAndArithmeticPrecedence(t *testing.T) {
	prog, sink := parse(t, "LET x = 1 + 2 * 3\n")
	require.False(t, sink.HasErrors())
	require.Len(t, prog.Main, 1)
	let := prog.Main[0].(*ast.LetStmt)
	bin := let.Value.(*ast.BinaryExpr)
	assert.Equal(t, "+", bin.Op)
	rhs := bin.Right.(*ast.BinaryExpr)
	assert.Equal(t, "*", rhs.Op)
}

func TestParseExponentIsRightAssociative(t *testing.T) {
	prog, sink := parse(t, "LET x = 2 ^ 3 ^ 2\n")
	require.False(t, sink.HasErrors())
	let := prog.Main[0].(*ast.LetStmt)
	top := let.Value.(*ast.BinaryExpr)
	// 2 ^ (3 ^ 2): the right side is itself a '^' expression.
	_, rightIsPow := top.Right.(*ast.BinaryExpr)
	assert.True(t, rightIsPow)
	_, leftIsPow := top.Left.(*ast.BinaryExpr)
	assert.False(t, leftIsPow)
}

func TestParseMultilineIfElseIfElse(t *testing.T) {
	src := "IF x > 0 THEN\nPRINT 1\nELSEIF x = 0 THEN\nPRINT 0\nELSE\nPRINT -1\nEND IF\n"
	prog, sink := parse(t, src)
	require.False(t, sink.HasErrors())
	ifs := prog.Main[0].(*ast.IfStmt)
	assert.False(t, ifs.SingleLine)
	require.Len(t, ifs.Then, 1)
	require.Len(t, ifs.ElseIfs, 1)
	require.Len(t, ifs.Else, 1)
}

func TestParseSingleLineIf(t *testing.T) {
	prog, sink := parse(t, "IF x > 0 THEN PRINT 1 ELSE PRINT 2\n")
	require.False(t, sink.HasErrors())
	ifs := prog.Main[0].(*ast.IfStmt)
	assert.True(t, ifs.SingleLine)
	require.Len(t, ifs.Then, 1)
	require.Len(t, ifs.Else, 1)
}

func TestParseForLoopWithStep(t *testing.T) {
	prog, sink := parse(t, "FOR i = 1 TO 10 STEP 2\nPRINT i\nNEXT i\n")
	require.False(t, sink.HasErrors())
	f := prog.Main[0].(*ast.ForStmt)
	assert.Equal(t, "i", f.Var)
	require.NotNil(t, f.Step)
	require.Len(t, f.Body, 1)
}

func TestParseTryCatchFinally(t *testing.T) {
	src := "TRY\nPRINT 1\nCATCH e\nPRINT 2\nFINALLY\nPRINT 3\nEND TRY\n"
	prog, sink := parse(t, src)
	require.False(t, sink.HasErrors())
	try := prog.Main[0].(*ast.TryStmt)
	assert.True(t, try.HasCatch)
	assert.True(t, try.HasFinally)
	assert.Equal(t, "e", try.CatchVar)
	assert.Len(t, try.Body, 1)
	assert.Len(t, try.CatchBody, 1)
	assert.Len(t, try.Finally, 1)
}

func TestParseTryFinallyWithoutCatch(t *testing.T) {
	src := "TRY\nPRINT 1\nFINALLY\nPRINT 2\nEND TRY\n"
	prog, sink := parse(t, src)
	require.False(t, sink.HasErrors())
	try := prog.Main[0].(*ast.TryStmt)
	assert.False(t, try.HasCatch)
	assert.True(t, try.HasFinally)
}

func TestParseSelectCaseWithRangesAndIs(t *testing.T) {
	src := "SELECT CASE x\nCASE 1, 2\nPRINT 1\nCASE 3 TO 5\nPRINT 2\nCASE IS > 10\nPRINT 3\nCASE ELSE\nPRINT 4\nEND SELECT\n"
	prog, sink := parse(t, src)
	require.False(t, sink.HasErrors())
	sel := prog.Main[0].(*ast.SelectCaseStmt)
	require.Len(t, sel.Cases, 4)
	assert.Len(t, sel.Cases[0].Values, 2)
	assert.Len(t, sel.Cases[1].Ranges, 1)
	assert.Len(t, sel.Cases[2].IsOps, 1)
	assert.True(t, sel.Cases[3].IsElse)
}

func TestParseSubAndFunctionDecls(t *testing.T) {
	src := "SUB Greet(name AS STRING)\nPRINT name\nEND SUB\nFUNCTION Add(a AS INTEGER, b AS INTEGER) AS INTEGER\nLET Add = a + b\nEND FUNCTION\n"
	prog, sink := parse(t, src)
	require.False(t, sink.HasErrors())
	require.Len(t, prog.Subs, 1)
	require.Len(t, prog.Functions, 1)
	assert.Equal(t, "Greet", prog.Subs[0].Name)
	assert.Equal(t, "Add", prog.Functions[0].Name)
	assert.Equal(t, "INTEGER", prog.Functions[0].RetType)
}

func TestParseTypeDeclRejectsInlineArrayField(t *testing.T) {
	src := "TYPE Point\nx AS INTEGER\ny(3) AS INTEGER\nEND TYPE\n"
	_, sink := parse(t, src)
	assert.True(t, sink.HasErrors())
}

func TestParseBuiltinStringFunctionMangling(t *testing.T) {
	prog, sink := parse(t, "LET x = LEFT$(\"hi\", 1)\n")
	require.False(t, sink.HasErrors())
	let := prog.Main[0].(*ast.LetStmt)
	call := let.Value.(*ast.CallExpr)
	assert.Equal(t, "LEFT_STRING", call.Name)
}

func TestParseOptionStatements(t *testing.T) {
	prog, sink := parse(t, "OPTION BASE 1\nOPTION DETECTSTRING\n")
	require.False(t, sink.HasErrors())
	require.Len(t, prog.Main, 2)
	base := prog.Main[0].(*ast.OptionStmt)
	assert.Equal(t, ast.OptionBase, base.Kind)
	assert.Equal(t, 1, base.IntArg)
	detect := prog.Main[1].(*ast.OptionStmt)
	assert.Equal(t, ast.OptionDetectString, detect.Kind)
}

func TestParseUnexpectedTokenReportsError(t *testing.T) {
	_, sink := parse(t, ") garbage\n")
	assert.True(t, sink.HasErrors())
}
