package cfgir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasterbasic/fbc/internal/ast"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/parser"
)

func buildMain(t *testing.T, src string) *FunctionCFG {
	t.Helper()
	sink := diag.NewSink()
	p := parser.New("t.bas", []byte(src), sink)
	prog := p.Parse()
	require.False(t, sink.HasErrors(), "parse errors: %v", sink.Strings())
	return Build(prog).Main
}

// everyConditionalBlockHasOneTrueOneFalseEdge checks spec.md's invariant that
// a CONDITIONAL block has exactly one TRUE and one FALSE out-edge.
func everyConditionalBlockHasOneTrueOneFalseEdge(t *testing.T, fn *FunctionCFG) {
	t.Helper()
	for _, b := range fn.Blocks {
		var trueCount, falseCount, condCount int
		for _, e := range b.OutEdges {
			if e.Kind == CONDITIONAL {
				condCount++
				if e.Branch == TrueBranch {
					trueCount++
				}
				if e.Branch == FalseBranch {
					falseCount++
				}
			}
		}
		if condCount > 0 {
			assert.Equalf(t, 1, trueCount, "block %d (%s) must have exactly one TRUE edge", b.ID, b.Label)
			assert.Equalf(t, 1, falseCount, "block %d (%s) must have exactly one FALSE edge", b.ID, b.Label)
		}
	}
}

func TestCFGIfProducesOneTrueOneFalseEdge(t *testing.T) {
	fn := buildMain(t, "IF x > 0 THEN\nPRINT 1\nELSE\nPRINT 2\nEND IF\n")
	everyConditionalBlockHasOneTrueOneFalseEdge(t, fn)
}

func TestCFGForLoopHeaderIsConditional(t *testing.T) {
	fn := buildMain(t, "FOR i = 1 TO 3\nPRINT i\nNEXT i\n")
	everyConditionalBlockHasOneTrueOneFalseEdge(t, fn)
	var sawConditional bool
	for _, b := range fn.Blocks {
		for _, e := range b.OutEdges {
			if e.Kind == CONDITIONAL {
				sawConditional = true
			}
		}
	}
	assert.True(t, sawConditional, "a FOR loop must lower to a conditional header block")
}

func TestCFGSelectCaseLowersToConditionalChain(t *testing.T) {
	fn := buildMain(t, "SELECT CASE x\nCASE 1\nPRINT 1\nCASE 2\nPRINT 2\nCASE ELSE\nPRINT 3\nEND SELECT\n")
	everyConditionalBlockHasOneTrueOneFalseEdge(t, fn)
	var condCount int
	for _, b := range fn.Blocks {
		for _, e := range b.OutEdges {
			if e.Kind == CONDITIONAL {
				condCount++
			}
		}
	}
	assert.GreaterOrEqual(t, condCount, 4, "one CASE test per non-ELSE clause, each with a TRUE and FALSE edge")
}

func TestCFGOnGotoUsesMultiwayEdges(t *testing.T) {
	fn := buildMain(t, "L1: PRINT 1\nL2: PRINT 2\nON x GOTO L1, L2\n")
	var sawMultiway bool
	for _, b := range fn.Blocks {
		for _, e := range b.OutEdges {
			if e.Kind == MULTIWAY {
				sawMultiway = true
			}
		}
	}
	assert.True(t, sawMultiway)
}

func TestCFGTryWithCatchRoutesFalseEdgeToCatch(t *testing.T) {
	fn := buildMain(t, "TRY\nPRINT 1\nCATCH e\nPRINT 2\nEND TRY\n")
	everyConditionalBlockHasOneTrueOneFalseEdge(t, fn)

	var checkBlk *Block
	for _, b := range fn.Blocks {
		for _, s := range b.Statements {
			if _, ok := s.(*ast.TryDispatchStmt); ok {
				checkBlk = b
			}
		}
	}
	require.NotNil(t, checkBlk, "expected a try_check block with a TryDispatchStmt")

	var falseTarget BlockID
	for _, e := range checkBlk.OutEdges {
		if e.Branch == FalseBranch {
			falseTarget = e.Target
		}
	}
	catchBlk := fn.Block(falseTarget)
	require.Len(t, catchBlk.Statements, 2) // CatchBindStmt + PRINT
	_, isCatchBind := catchBlk.Statements[0].(*ast.CatchBindStmt)
	assert.True(t, isCatchBind)
}

// TestCFGTryFinallyNoCatchRunsFinallyBeforePropagating is the regression
// test for the no-CATCH exception path: an uncaught exception must run
// FINALLY exactly once and then propagate, not fall straight to the join
// block past END TRY (spec.md §8.1).
func TestCFGTryFinallyNoCatchRunsFinallyBeforePropagating(t *testing.T) {
	fn := buildMain(t, "TRY\nPRINT 1\nFINALLY\nPRINT 2\nEND TRY\nPRINT 3\n")
	everyConditionalBlockHasOneTrueOneFalseEdge(t, fn)

	var checkBlk *Block
	for _, b := range fn.Blocks {
		for _, s := range b.Statements {
			if td, ok := s.(*ast.TryDispatchStmt); ok {
				checkBlk = b
				assert.True(t, td.HasFinally)
			}
		}
	}
	require.NotNil(t, checkBlk)

	var falseTarget BlockID
	found := false
	for _, e := range checkBlk.OutEdges {
		if e.Branch == FalseBranch {
			falseTarget = e.Target
			found = true
		}
	}
	require.True(t, found)
	uncaughtBlk := fn.Block(falseTarget)

	var sawFinallyPrint, sawRethrow bool
	for _, s := range uncaughtBlk.Statements {
		if _, ok := s.(*ast.ExceptionRethrowStmt); ok {
			sawRethrow = true
		}
		if ps, ok := s.(*ast.PrintStmt); ok {
			_ = ps
			sawFinallyPrint = true
		}
	}
	assert.True(t, sawFinallyPrint, "FINALLY's body must be lowered into the uncaught block")
	assert.True(t, sawRethrow, "the uncaught block must end by propagating the exception")
	assert.Empty(t, uncaughtBlk.OutEdges, "the propagate call never returns to a successor in this frame")
}

func TestCFGTryNoCatchNoFinallyStillPropagates(t *testing.T) {
	fn := buildMain(t, "TRY\nPRINT 1\nEND TRY\nPRINT 2\n")

	var checkBlk *Block
	for _, b := range fn.Blocks {
		for _, s := range b.Statements {
			if td, ok := s.(*ast.TryDispatchStmt); ok {
				checkBlk = b
				assert.False(t, td.HasFinally)
			}
		}
	}
	require.NotNil(t, checkBlk)

	var falseTarget BlockID
	for _, e := range checkBlk.OutEdges {
		if e.Branch == FalseBranch {
			falseTarget = e.Target
		}
	}
	uncaughtBlk := fn.Block(falseTarget)
	require.Len(t, uncaughtBlk.Statements, 1)
	_, isRethrow := uncaughtBlk.Statements[0].(*ast.ExceptionRethrowStmt)
	assert.True(t, isRethrow)
}

func TestMarkUnreachableFlagsCodeAfterUnconditionalEnd(t *testing.T) {
	fn := buildMain(t, "PRINT 1\nEND\nPRINT 2\n")
	var sawUnreachable bool
	for _, b := range fn.Blocks {
		if b.Unreachable {
			sawUnreachable = true
		}
	}
	assert.True(t, sawUnreachable)
}
