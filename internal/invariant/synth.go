package invariant

import (
	"fmt"
	"math/big"

	"kanso/internal/ir"
)

// Equation is one row of the fitted polynomial-equation basis for a
// mark: Coeffs has one entry per monomial (in the same order as the
// Monomials slice it was fit against) plus a trailing constant term,
// exactly the `vector<mpz_class>` shape makeEquation consumes
// ("assert(polynomialTerms.size() + 1 == eq.size())").
type Equation struct {
	Coeffs []*big.Int
}

// Result is the fitted invariant candidate for one synchronisation
// mark: every equation a sampled trace set satisfied exactly, for
// every sample observed (spec.md §5: "an invariant candidate is only
// as good as the traces it was fit against").
type Result struct {
	Mark      ir.Mark
	Monomials []Monomial
	Equations []Equation
}

// Synthesize fits the null space of the sampled-monomial matrix built
// from samples (each a vector of free-variable values observed at one
// mark visit, in a fixed variable order) to a basis of exact polynomial
// equations of degree 1..maxDegree, the Go analogue of findSolutions'
// per-mark nullSpace(...)+ratToInt(...) pipeline. Returns an error if
// any two samples disagree in length (a malformed call site, not a
// data condition this package recovers from).
func Synthesize(mark ir.Mark, samples [][]*big.Int, maxDegree int) (*Result, error) {
	if len(samples) == 0 {
		return &Result{Mark: mark}, nil
	}
	nvars := len(samples[0])
	for _, s := range samples {
		if len(s) != nvars {
			return nil, fmt.Errorf("invariant: sample arity mismatch at mark %v: %d vs %d", mark, nvars, len(s))
		}
	}

	monomials := Monomials(nvars, maxDegree)
	m := make(Matrix, len(samples))
	for i, s := range samples {
		m[i] = sampleRow(s, monomials)
	}

	basis := nullSpace(m)
	eqs := make([]Equation, 0, len(basis))
	for _, vec := range basis {
		ints := ratToInt(vec)
		if allZero(ints) {
			continue
		}
		eqs = append(eqs, Equation{Coeffs: ints})
	}

	return &Result{Mark: mark, Monomials: monomials, Equations: eqs}, nil
}

// sampleRow evaluates every monomial against one sample, appending the
// constant term 1 last (the "+ eq.back()" slot makeEquation expects).
func sampleRow(sample []*big.Int, monomials []Monomial) []*big.Rat {
	row := make([]*big.Rat, len(monomials)+1)
	for i, mo := range monomials {
		row[i] = new(big.Rat).SetInt(evalMonomial(mo, sample))
	}
	row[len(monomials)] = big.NewRat(1, 1)
	return row
}

func evalMonomial(mo Monomial, sample []*big.Int) *big.Int {
	v := big.NewInt(1)
	for _, idx := range mo.Vars {
		v = new(big.Int).Mul(v, sample[idx])
	}
	return v
}

func allZero(ints []*big.Int) bool {
	for _, v := range ints {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}
