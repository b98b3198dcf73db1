package interp

import (
	"math/big"

	"kanso/internal/diag"
	"kanso/internal/options"
)

// trap is a non-nil return from an operator evaluation signalling one
// of spec.md §4.6's arithmetic traps: division by zero, signed
// overflow in bounded mode, or an out-of-bounds shift amount. It is
// never a Go panic — the caller folds it into the enclosing Call's
// Fault and stops early (§7: "a single failing item never aborts the
// overall run").
type trap struct{ diag *diag.Diagnostic }

var (
	one  = big.NewInt(1)
	zero = big.NewInt(0)
)

func boolInt(b bool) *big.Int {
	if b {
		return one
	}
	return zero
}

// binOp evaluates a.op(b) under opts' numeric semantics, using the
// exact operator-symbol table encoder.binOp renders to SMT (spec.md
// §4.5's "Signed vs unsigned predicates and divisions are translated
// bit-for-bit"), so a value the interpreter computes and a value the
// solver derives from the emitted CHC agree on the same symbol set.
// Comparison/boolean results are folded to the 0/1 big.Int convention
// the rest of the interpreter stores every value as.
func binOp(sym string, a, b *big.Int, opts options.Options) (*big.Int, *trap) {
	switch sym {
	case "+":
		return wrap(new(big.Int).Add(a, b), opts)
	case "-":
		return wrap(new(big.Int).Sub(a, b), opts)
	case "*":
		return wrap(new(big.Int).Mul(a, b), opts)
	case "/", "u/":
		if b.Sign() == 0 {
			return nil, &trap{diag.ArithTrap("division by zero")}
		}
		return wrap(new(big.Int).Quo(a, b), opts) // truncated toward zero, matching C's `/`
	case "%", "u%":
		if b.Sign() == 0 {
			return nil, &trap{diag.ArithTrap("modulo by zero")}
		}
		return wrap(new(big.Int).Rem(a, b), opts) // truncated remainder, matching C's `%`
	case "<<":
		n, ok := shiftAmount(b, opts)
		if !ok {
			return nil, &trap{diag.ArithTrap("out-of-bounds shift")}
		}
		return wrap(new(big.Int).Lsh(a, n), opts)
	case ">>", "u>>":
		n, ok := shiftAmount(b, opts)
		if !ok {
			return nil, &trap{diag.ArithTrap("out-of-bounds shift")}
		}
		return wrap(new(big.Int).Rsh(a, n), opts)
	case "==":
		return boolInt(a.Cmp(b) == 0), nil
	case "!=":
		return boolInt(a.Cmp(b) != 0), nil
	case "<", "u<":
		return boolInt(a.Cmp(b) < 0), nil
	case "<=", "u<=":
		return boolInt(a.Cmp(b) <= 0), nil
	case ">", "u>":
		return boolInt(a.Cmp(b) > 0), nil
	case ">=", "u>=":
		return boolInt(a.Cmp(b) >= 0), nil
	case "&&":
		return boolInt(a.Sign() != 0 && b.Sign() != 0), nil
	case "||":
		return boolInt(a.Sign() != 0 || b.Sign() != 0), nil
	default:
		return nil, &trap{diag.UnsupportedInstruction("binop:"+sym, 0)}
	}
}

// unaryOp mirrors encoder.unaryOp: boolean not and arithmetic negation.
func unaryOp(sym string, a *big.Int, opts options.Options) (*big.Int, *trap) {
	switch sym {
	case "!":
		return boolInt(a.Sign() == 0), nil
	case "-":
		return wrap(new(big.Int).Neg(a), opts)
	default:
		return nil, &trap{diag.UnsupportedInstruction("unop:"+sym, 0)}
	}
}

// shiftAmount validates b as a shift distance: negative, or at/above
// the bit width in bounded mode, is the "out-of-bounds bit-shift" trap
// of spec.md §4.6.
func shiftAmount(b *big.Int, opts options.Options) (uint, bool) {
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, false
	}
	n := b.Uint64()
	if opts.IntSemantics == options.Bounded && n >= uint64(opts.BitWidth) {
		return 0, false
	}
	return uint(n), true
}

// wrap range-checks v against the signed BitWidth range when
// Options.IntSemantics is Bounded, trapping on signed overflow per
// spec.md §4.6 and returning an in-range v unchanged; it never
// truncates. Under Unbounded semantics v passes through untouched.
func wrap(v *big.Int, opts options.Options) (*big.Int, *trap) {
	if opts.IntSemantics != options.Bounded {
		return v, nil
	}
	w := uint(opts.BitWidth)
	lo := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), w-1))
	hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), w-1), big.NewInt(1))
	if v.Cmp(lo) < 0 || v.Cmp(hi) > 0 {
		return nil, &trap{diag.ArithTrap("signed overflow")}
	}
	return v, nil
}
