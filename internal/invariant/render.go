package invariant

import (
	"math/big"

	"kanso/internal/options"
	"kanso/internal/smt"
)

// ToSMT renders e as an equality assertion over varNames, splitting
// positive coefficients onto the left-hand sum and negative ones
// (negated) onto the right, mirroring makeEquation's left/right
// partition — so a solver never has to see a literal negative
// coefficient, just two non-negative sums compared for equality.
func (e Equation) ToSMT(monomials []Monomial, varNames []string, opts options.Options) smt.Expr {
	var left, right []smt.Expr

	for i, mo := range monomials {
		coeff := e.Coeffs[i]
		switch coeff.Sign() {
		case 0:
			continue
		case 1:
			left = append(left, scaledTerm(coeff, mo, varNames, opts))
		default:
			neg := new(big.Int).Neg(coeff)
			right = append(right, scaledTerm(neg, mo, varNames, opts))
		}
	}

	constant := e.Coeffs[len(monomials)]
	switch constant.Sign() {
	case 1:
		left = append(left, intLit(constant, opts))
	case -1:
		right = append(right, intLit(new(big.Int).Neg(constant), opts))
	}

	return &smt.Op{Name: "=", Args: []smt.Expr{sum(left, opts), sum(right, opts)}}
}

// scaledTerm renders coeff * (product of monomial's variables); coeff
// == 1 elides the multiplication, matching makeEquation's "if (eq.at(i)
// == 1) { left.push_back(polynomialTerms.at(i)); }" special case.
func scaledTerm(coeff *big.Int, mo Monomial, varNames []string, opts options.Options) smt.Expr {
	product := monomialExpr(mo, varNames)
	if coeff.Cmp(big.NewInt(1)) == 0 {
		return product
	}
	mulName := "*"
	if opts.IntSemantics == options.Bounded {
		mulName = "bvmul"
	}
	return &smt.Op{Name: mulName, Args: []smt.Expr{intLit(coeff, opts), product}}
}

func monomialExpr(mo Monomial, varNames []string) smt.Expr {
	if len(mo.Vars) == 1 {
		return &smt.Symbol{Name: varNames[mo.Vars[0]]}
	}
	args := make([]smt.Expr, len(mo.Vars))
	for i, idx := range mo.Vars {
		args[i] = &smt.Symbol{Name: varNames[idx]}
	}
	return &smt.Op{Name: "*", Args: args}
}

func sum(terms []smt.Expr, opts options.Options) smt.Expr {
	switch len(terms) {
	case 0:
		return intLit(big.NewInt(0), opts)
	case 1:
		return terms[0]
	default:
		name := "+"
		if opts.IntSemantics == options.Bounded {
			name = "bvadd"
		}
		return &smt.Op{Name: name, Args: terms}
	}
}

func intLit(v *big.Int, opts options.Options) smt.Expr {
	if opts.IntSemantics == options.Bounded {
		return &smt.BVLit{Value: v.Uint64(), Width: opts.BitWidth}
	}
	return &smt.IntLit{Value: v.String()}
}

// Disjunction renders a Result's fitted equations as the conjunction
// the original's makeInvariantDefinition builds: one branch (left-only,
// right-only, or both-advance) of CoupledResult.Disjunction's outer
// three-way disjunction (spec.md §4.7 step 4). An empty Result (no
// samples reached this mark for this alternative, or the null space was
// trivial) renders as `false`, matching makeInvariantDefinition's
// empty-conjunction fallback — never `true`, since an absent invariant
// must not silently admit every state.
func (r *Result) Disjunction(varNames []string, opts options.Options) smt.Expr {
	if r == nil || len(r.Equations) == 0 {
		return &smt.BoolLit{Value: false}
	}
	conjuncts := make([]smt.Expr, len(r.Equations))
	for i, eq := range r.Equations {
		conjuncts[i] = eq.ToSMT(r.Monomials, varNames, opts)
	}
	if len(conjuncts) == 1 {
		return conjuncts[0]
	}
	return &smt.Op{Name: "and", Args: conjuncts}
}
