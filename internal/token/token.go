// Package token defines the lexical tokens produced by the lexer (spec.md §3.1, §4.1).
package token

import "github.com/fasterbasic/fbc/internal/diag"

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Newline

	Ident
	IntLit
	FloatLit
	StringLit

	// Keywords
	KwLet
	KwDim
	KwAs
	KwPrint
	KwInput
	KwIf
	KwThen
	KwElseIf
	KwElse
	KwEndIf
	KwFor
	KwTo
	KwStep
	KwNext
	KwWhile
	KwWend
	KwDo
	KwLoop
	KwUntil
	KwRepeat
	KwSelect
	KwCase
	KwIs
	KwGoto
	KwGosub
	KwReturn
	KwOn
	KwType
	KwEndType
	KwSub
	KwEndSub
	KwFunction
	KwEndFunction
	KwDef
	KwFn
	KwLocal
	KwTry
	KwCatch
	KwFinally
	KwEndTry
	KwThrow
	KwEnd
	KwData
	KwRead
	KwRestore
	KwOption
	KwBase
	KwAscii
	KwUnicode
	KwDetectString
	KwExit
	KwCall
	KwByte
	KwUByte
	KwShort
	KwUShort
	KwInteger
	KwInt
	KwUInteger
	KwUInt
	KwLong
	KwULong
	KwSingle
	KwFloat
	KwDouble
	KwString
	KwAnd
	KwOr
	KwNot
	KwMod
	KwTab
	KwSpc

	// Operators and punctuation
	Plus
	Minus
	Star
	Slash
	Caret
	Eq
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	LParen
	RParen
	Comma
	Semicolon
	Colon
	Dot
	Ampersand

	// Type suffixes lexed as part of the identifier/number token, see Attrs.Suffix and NumericSuffix.
)

var keywords = map[string]Kind{
	"LET": KwLet, "DIM": KwDim, "AS": KwAs, "PRINT": KwPrint, "INPUT": KwInput,
	"IF": KwIf, "THEN": KwThen, "ELSEIF": KwElseIf, "ELSE": KwElse,
	"FOR": KwFor, "TO": KwTo, "STEP": KwStep, "NEXT": KwNext,
	"WHILE": KwWhile, "WEND": KwWend, "DO": KwDo, "LOOP": KwLoop, "UNTIL": KwUntil,
	"REPEAT": KwRepeat, "SELECT": KwSelect, "CASE": KwCase, "IS": KwIs,
	"GOTO": KwGoto, "GOSUB": KwGosub, "RETURN": KwReturn, "ON": KwOn,
	"TYPE": KwType, "SUB": KwSub, "FUNCTION": KwFunction, "DEF": KwDef, "FN": KwFn,
	"LOCAL": KwLocal, "TRY": KwTry, "CATCH": KwCatch, "FINALLY": KwFinally,
	"THROW": KwThrow, "END": KwEnd, "DATA": KwData, "READ": KwRead, "RESTORE": KwRestore,
	"OPTION": KwOption, "BASE": KwBase, "ASCII": KwAscii, "UNICODE": KwUnicode,
	"DETECTSTRING": KwDetectString, "EXIT": KwExit, "CALL": KwCall,
	"BYTE": KwByte, "UBYTE": KwUByte, "SHORT": KwShort, "USHORT": KwUShort,
	"INTEGER": KwInteger, "INT": KwInt, "UINTEGER": KwUInteger, "UINT": KwUInt,
	"LONG": KwLong, "ULONG": KwULong, "SINGLE": KwSingle, "FLOAT": KwFloat,
	"DOUBLE": KwDouble, "STRING": KwString, "AND": KwAnd, "OR": KwOr, "NOT": KwNot,
	"MOD": KwMod, "TAB": KwTab, "SPC": KwSpc,
}

// composite two-word keywords, matched after seeing the first word.
var endTypeAliases = map[string]bool{"END TYPE": true, "ENDTYPE": true}
var endIfAliases = map[string]bool{"END IF": true, "ENDIF": true}

// Lookup returns the keyword Kind for an upper-cased identifier, and ok=false
// if it is an ordinary identifier.
func Lookup(upper string) (Kind, bool) {
	k, ok := keywords[upper]
	return k, ok
}

// EndTypeAlias reports whether the two-token sequence "END TYPE"/"ENDTYPE" was seen.
func EndTypeAlias(s string) bool { return endTypeAliases[s] }

// EndIfAlias reports whether the two-token sequence "END IF"/"ENDIF" was seen.
func EndIfAlias(s string) bool { return endIfAliases[s] }

// NumericSuffix is the optional type suffix character trailing a numeric literal or identifier.
type NumericSuffix byte

const (
	SuffixNone NumericSuffix = 0
	SuffixByte NumericSuffix = '@'
	SuffixShort NumericSuffix = '^'
	SuffixInteger NumericSuffix = '%'
	SuffixLong NumericSuffix = '&'
	SuffixSingle NumericSuffix = '!'
	SuffixDouble NumericSuffix = '#'
	SuffixString NumericSuffix = '$'
)

// Attrs carries per-token metadata beyond kind/lexeme.
type Attrs struct {
	Suffix      NumericSuffix
	HasNonASCII bool // set on string literals containing a byte >= 0x80
	IntValue    int64
	FloatValue  float64
	IsFloat     bool // literal had a decimal point or exponent
}

// Token is a single lexical token with its source location and attributes.
type Token struct {
	Kind   Kind
	Lexeme string
	Loc    diag.Location
	Attrs  Attrs
}
