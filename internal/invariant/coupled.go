package invariant

import (
	"math/big"

	"kanso/internal/ir"
	"kanso/internal/options"
	"kanso/internal/smt"
)

// Alternative identifies which program(s) advanced between two
// successive visits to the same mark within one coupled trace pair —
// spec.md §4.7 step 4's three exit branches: one side advances while
// the other stays put, or both advance together.
type Alternative int

const (
	LeftOnly Alternative = iota
	RightOnly
	BothAdvance
)

// CoupledResult is the full predicate body for one mark: one fitted
// Result per Alternative, combined by Disjunction into §4.7's outer
// disjunction of per-alternative conjunctions. Kept distinct from a
// single Result because a mark's samples must already be partitioned
// by alternative before fitting — mixing samples from different
// alternatives into one matrix would fit an equation no single
// alternative actually satisfies.
type CoupledResult struct {
	Mark     ir.Mark
	Branches map[Alternative]*Result
}

// SynthesizeCoupled fits one Result per alternative, against samples
// already partitioned by the caller (SamplesAtMark projected separately
// per alternative, typically by comparing consecutive trace records'
// advancing side). An alternative with no observed samples still gets
// an (empty) Result, so Disjunction always has all three branches to
// combine.
func SynthesizeCoupled(mark ir.Mark, samples map[Alternative][][]*big.Int, maxDegree int) (*CoupledResult, error) {
	out := &CoupledResult{Mark: mark, Branches: make(map[Alternative]*Result, 3)}
	for _, alt := range []Alternative{LeftOnly, RightOnly, BothAdvance} {
		res, err := Synthesize(mark, samples[alt], maxDegree)
		if err != nil {
			return nil, err
		}
		out.Branches[alt] = res
	}
	return out, nil
}

// Disjunction renders spec.md §4.7 step 4's final predicate body: the
// disjunction, over the three exit alternatives, of each alternative's
// own conjunction of discovered equations (Result.Disjunction). An
// alternative with no samples contributes `false` rather than dropping
// out of the `or` entirely, so the predicate body is always a
// well-formed three-way disjunction regardless of which alternatives
// were actually observed.
func (c *CoupledResult) Disjunction(varNames []string, opts options.Options) smt.Expr {
	branches := []smt.Expr{
		c.Branches[LeftOnly].Disjunction(varNames, opts),
		c.Branches[RightOnly].Disjunction(varNames, opts),
		c.Branches[BothAdvance].Disjunction(varNames, opts),
	}
	return &smt.Op{Name: "or", Args: branches}
}
