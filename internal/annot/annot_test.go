package annot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanso/internal/smt"
)

func TestParseRelInDefaultEquality(t *testing.T) {
	src := `
int f(int x) {
/*@ rel_in f ( (= x$1 x$2) ) @*/
    return x;
}
`
	ann, err := Parse(src)
	require.NoError(t, err)
	require.Contains(t, ann.RelIn, "f")
	assert.Equal(t, "(= x$1 x$2)", smt.ToSExpr(ann.RelIn["f"]))
}

func TestParseNestedArithmetic(t *testing.T) {
	src := `/*@ rel_out f ( (= (* x$1 y$1) (* x$2 y$2)) ) @*/`
	ann, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "(= (* x$1 y$1) (* x$2 y$2))", smt.ToSExpr(ann.RelOut["f"]))
}

func TestParseAddFunCond(t *testing.T) {
	src := `/*@ addfuncond g ( (<= 0 n$1) ) @*/`
	ann, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "(<= 0 n$1)", smt.ToSExpr(ann.AddFunCond["g"]))
}

func TestParseDuplicateIsWarnedNotError(t *testing.T) {
	src := `
/*@ rel_in f ( (= x$1 x$2) ) @*/
/*@ rel_in f ( (= y$1 y$2) ) @*/
`
	ann, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "(= x$1 x$2)", smt.ToSExpr(ann.RelIn["f"]), "first directive wins")
	require.Len(t, ann.Warnings, 1)
	assert.Equal(t, KindRelIn, ann.Warnings[0].Kind)
}

func TestParseUnbalancedParensIsError(t *testing.T) {
	src := `/*@ rel_in f ( (= x$1 x$2) @*/`
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseMissingCloserIsError(t *testing.T) {
	src := `/*@ rel_in f ( (= x$1 x$2) )`
	_, err := Parse(src)
	assert.Error(t, err)
}
