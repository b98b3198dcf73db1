package invariant

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"kanso/internal/options"
	"kanso/internal/smt"
)

func ints(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestMonomialsDegreeOneAndTwo(t *testing.T) {
	ms := Monomials(2, 2)
	// degree 1: x, y ; degree 2: x*x, x*y, y*y
	require.Len(t, ms, 5)
	require.Equal(t, []int{0}, ms[0].Vars)
	require.Equal(t, []int{1}, ms[1].Vars)
	require.Equal(t, []int{0, 0}, ms[2].Vars)
	require.Equal(t, []int{0, 1}, ms[3].Vars)
	require.Equal(t, []int{1, 1}, ms[4].Vars)
}

func TestSynthesizeFindsLinearInvariant(t *testing.T) {
	// Samples drawn from x + y == 10, across enough distinct points that
	// no spurious second-degree equation also happens to fit.
	samples := [][]*big.Int{
		ints(0, 10),
		ints(1, 9),
		ints(2, 8),
		ints(5, 5),
	}

	res, err := Synthesize(1, samples, 1)
	require.NoError(t, err)
	require.NotEmpty(t, res.Equations)

	for _, eq := range res.Equations {
		for _, s := range samples {
			require.True(t, satisfies(t, eq, res.Monomials, s), "equation must hold for every sample")
		}
	}
}

func satisfies(t *testing.T, eq Equation, monomials []Monomial, sample []*big.Int) bool {
	t.Helper()
	total := new(big.Int)
	for i, mo := range monomials {
		term := evalMonomial(mo, sample)
		total.Add(total, new(big.Int).Mul(eq.Coeffs[i], term))
	}
	total.Add(total, eq.Coeffs[len(monomials)])
	return total.Sign() == 0
}

func TestRatToIntClearsDenominatorsAndReducesGCD(t *testing.T) {
	vec := []*big.Rat{big.NewRat(1, 2), big.NewRat(-3, 4), big.NewRat(1, 1)}
	scaled := ratToInt(vec)
	require.Equal(t, int64(2), scaled[0].Int64())
	require.Equal(t, int64(-3), scaled[1].Int64())
	require.Equal(t, int64(4), scaled[2].Int64())
}

func TestEquationToSMTRendersEquality(t *testing.T) {
	res, err := Synthesize(1, [][]*big.Int{ints(0, 10), ints(1, 9), ints(2, 8)}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, res.Equations)

	expr := res.Equations[0].ToSMT(res.Monomials, []string{"x", "y"}, options.Default())
	require.NotNil(t, expr)
}

func TestDisjunctionEmptyResultIsFalse(t *testing.T) {
	res := &Result{Mark: 3}
	expr := res.Disjunction([]string{"x"}, options.Default())
	lit, ok := expr.(*smt.BoolLit)
	require.True(t, ok)
	require.False(t, lit.Value)
}

func TestSynthesizeCoupledDisjunctionCombinesThreeAlternatives(t *testing.T) {
	samples := map[Alternative][][]*big.Int{
		LeftOnly: {ints(0, 10), ints(1, 9), ints(2, 8), ints(5, 5)},
	}
	// RightOnly and BothAdvance are left unpopulated: no samples were
	// ever observed taking those exit alternatives at this mark.

	res, err := SynthesizeCoupled(1, samples, 1)
	require.NoError(t, err)

	expr := res.Disjunction([]string{"x", "y"}, options.Default())
	op, ok := expr.(*smt.Op)
	require.True(t, ok)
	require.Equal(t, "or", op.Name)
	require.Len(t, op.Args, 3)

	// RightOnly and BothAdvance saw no samples, so they fall back to the
	// `false` branch; LeftOnly fit a real equation from its samples.
	rightOnly, ok := op.Args[1].(*smt.BoolLit)
	require.True(t, ok)
	require.False(t, rightOnly.Value)
	bothAdvance, ok := op.Args[2].(*smt.BoolLit)
	require.True(t, ok)
	require.False(t, bothAdvance.Value)

	_, leftIsBoolLit := op.Args[0].(*smt.BoolLit)
	require.False(t, leftIsBoolLit, "LeftOnly had samples and should fit a real equation, not fall back to false")
}
