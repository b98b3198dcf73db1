// Package invariant implements C8: fitting exact polynomial equations
// to the concrete (mark, state) samples the dynamic evaluator (C7)
// collects, for use as loop-invariant candidates feeding the relational
// encoder's recursive summary predicates (spec.md §5, §8).
//
// Grounded on
// original_source/reve/dynamic/llreve-dynamic/lib/llreve/dynamic/Invariant.cpp's
// findSolutions/makeEquation (monomial enumeration, null-space-per-mark,
// rational-to-integer rescaling) and Linear.h's Matrix/nullSpace/
// reducedRowEchelonForm/ratToInt declarations, reimplemented over
// math/big.Rat in place of GMP's mpq_class/mpz_class.
package invariant

import "sort"

// Monomial is a product of free variables, represented as the
// multiset of variable indices it multiplies (length == its degree),
// kept sorted so e.g. x*y and y*x collapse to one representation —
// mirroring makeEquation's std::multiset<string> construction.
type Monomial struct {
	Vars []int
}

// Degree returns len(m.Vars); degree 0 is reserved for the implicit
// constant term and never appears as a Monomial value.
func (m Monomial) Degree() int { return len(m.Vars) }

// Monomials enumerates every monomial of degree 1..maxDegree over
// nvars free variables, in the same order makeEquation expects: all
// degree-1 terms (the variables themselves, in index order), then all
// degree-2 terms, and so on. Within a degree, combinations are
// generated in non-decreasing index order so that repeated indices
// (x*x, x*x*y, ...) are produced exactly once rather than once per
// permutation.
func Monomials(nvars, maxDegree int) []Monomial {
	var out []Monomial
	for d := 1; d <= maxDegree; d++ {
		out = append(out, combinationsWithRepetition(nvars, d)...)
	}
	return out
}

// combinationsWithRepetition returns every non-decreasing sequence of
// length d over {0, ..., nvars-1}.
func combinationsWithRepetition(nvars, d int) []Monomial {
	if nvars == 0 || d == 0 {
		return nil
	}
	var out []Monomial
	idx := make([]int, d)
	var rec func(pos, start int)
	rec = func(pos, start int) {
		if pos == d {
			vars := make([]int, d)
			copy(vars, idx)
			out = append(out, Monomial{Vars: vars})
			return
		}
		for v := start; v < nvars; v++ {
			idx[pos] = v
			rec(pos+1, v)
		}
	}
	rec(0, 0)
	sort.Slice(out, func(i, j int) bool { return lessVars(out[i].Vars, out[j].Vars) })
	return out
}

func lessVars(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
