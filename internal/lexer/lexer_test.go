package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/token"
)

func lexAll(t *testing.T, src string) []token.Token {
	t.Helper()
	sink := diag.NewSink()
	l := New("t.bas", []byte(src), sink)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexIdentifiersAndKeywordsCaseInsensitive(t *testing.T) {
	toks := lexAll(t, "let x = 1\nLET y = 2\n")
	assert.Equal(t, []token.Kind{
		token.KwLet, token.Ident, token.Eq, token.IntLit, token.Newline,
		token.KwLet, token.Ident, token.Eq, token.IntLit, token.Newline,
		token.EOF,
	}, kinds(toks))
}

func TestLexEndTwoWordLookahead(t *testing.T) {
	cases := map[string]token.Kind{
		"END IF":       token.KwEndIf,
		"END TYPE":     token.KwEndType,
		"END SUB":      token.KwEndSub,
		"END FUNCTION": token.KwEndFunction,
		"END TRY":      token.KwEndTry,
	}
	for src, want := range cases {
		toks := lexAll(t, src)
		require.GreaterOrEqual(t, len(toks), 1)
		assert.Equalf(t, want, toks[0].Kind, "lexing %q", src)
	}
}

func TestLexBareEndIsKwEnd(t *testing.T) {
	toks := lexAll(t, "END\n")
	assert.Equal(t, token.KwEnd, toks[0].Kind)
}

func TestLexNumericSuffixes(t *testing.T) {
	toks := lexAll(t, "x% y# z$ 10& 3.5!")
	require.Len(t, toks, 6) // 5 idents/numbers + EOF
	assert.Equal(t, token.SuffixInteger, toks[0].Attrs.Suffix)
	assert.Equal(t, token.SuffixDouble, toks[1].Attrs.Suffix)
	assert.Equal(t, token.SuffixString, toks[2].Attrs.Suffix)
	assert.Equal(t, token.SuffixLong, toks[3].Attrs.Suffix)
	assert.Equal(t, token.SuffixSingle, toks[4].Attrs.Suffix)
	assert.True(t, toks[4].Attrs.IsFloat)
}

func TestLexFloatLiteralWithExponent(t *testing.T) {
	toks := lexAll(t, "1.5e10")
	require.Equal(t, token.FloatLit, toks[0].Kind)
	assert.True(t, toks[0].Attrs.IsFloat)
	assert.InDelta(t, 1.5e10, toks[0].Attrs.FloatValue, 1)
}

func TestLexStringLiteralWithEscapedQuote(t *testing.T) {
	toks := lexAll(t, `"a ""quoted"" word"`)
	require.Equal(t, token.StringLit, toks[0].Kind)
	assert.Equal(t, `a "quoted" word`, toks[0].Lexeme)
}

func TestLexUnterminatedStringReportsError(t *testing.T) {
	sink := diag.NewSink()
	l := New("t.bas", []byte(`"unterminated`), sink)
	l.Next()
	assert.True(t, sink.HasErrors())
}

func TestLexCommentsSkippedApostropheAndREM(t *testing.T) {
	toks := lexAll(t, "PRINT 1 ' a comment\nREM another\nPRINT 2\n")
	assert.Equal(t, []token.Kind{
		token.KwPrint, token.IntLit, token.Newline,
		token.Newline,
		token.KwPrint, token.IntLit, token.Newline,
		token.EOF,
	}, kinds(toks))
}

func TestLexREMOnlyMatchesStandaloneWord(t *testing.T) {
	// "REMOVE" must lex as an identifier, not trigger REM-comment handling.
	toks := lexAll(t, "REMOVE = 1\n")
	assert.Equal(t, token.Ident, toks[0].Kind)
	assert.Equal(t, "REMOVE", toks[0].Lexeme)
}

func TestLexTwoCharOperators(t *testing.T) {
	toks := lexAll(t, "<> <= >= <")
	assert.Equal(t, []token.Kind{token.NotEq, token.LtEq, token.GtEq, token.Lt, token.EOF}, kinds(toks))
}

func TestLexMalformedNumberReportsError(t *testing.T) {
	sink := diag.NewSink()
	l := New("t.bas", []byte("99999999999999999999999999"), sink)
	l.Next()
	assert.True(t, sink.HasErrors())
}
