package encoder

import (
	"kanso/internal/options"
	"kanso/internal/smt"
)

// binOp renders a.op(b) using the operator table of spec.md §4.5:
// mathematical operators for Options.Unbounded, bitvector operators
// for Options.Bounded. Signed comparisons/division are used throughout
// (spec.md: "signed vs unsigned predicates and divisions are
// translated bit-for-bit" — the IR's own Symbol distinguishes an
// unsigned variant by a leading "u" prefix, e.g. "u<", mapped to the
// unsigned bitvector predicates below).
func binOp(sym string, a, b smt.Expr, opts options.Options) smt.Expr {
	bounded := opts.IntSemantics == options.Bounded

	switch sym {
	case "+":
		return op2(pick(bounded, "bvadd", "+"), a, b)
	case "-":
		return op2(pick(bounded, "bvsub", "-"), a, b)
	case "*":
		return op2(pick(bounded, "bvmul", "*"), a, b)
	case "/":
		return op2(pick(bounded, "bvsdiv", "div"), a, b)
	case "u/":
		return op2(pick(bounded, "bvudiv", "div"), a, b)
	case "%":
		return op2(pick(bounded, "bvsrem", "mod"), a, b)
	case "u%":
		return op2(pick(bounded, "bvurem", "mod"), a, b)
	case "<<":
		return op2(pick(bounded, "bvshl", "*"), a, b)
	case ">>":
		return op2(pick(bounded, "bvashr", "div"), a, b)
	case "u>>":
		return op2(pick(bounded, "bvlshr", "div"), a, b)
	case "==":
		return op2("=", a, b)
	case "!=":
		return &smt.Op{Name: "not", Args: []smt.Expr{op2("=", a, b)}}
	case "<":
		return op2(pick(bounded, "bvslt", "<"), a, b)
	case "<=":
		return op2(pick(bounded, "bvsle", "<="), a, b)
	case ">":
		return op2(pick(bounded, "bvsgt", ">"), a, b)
	case ">=":
		return op2(pick(bounded, "bvsge", ">="), a, b)
	case "u<":
		return op2(pick(bounded, "bvult", "<"), a, b)
	case "u<=":
		return op2(pick(bounded, "bvule", "<="), a, b)
	case "u>":
		return op2(pick(bounded, "bvugt", ">"), a, b)
	case "u>=":
		return op2(pick(bounded, "bvuge", ">="), a, b)
	case "&&":
		return op2("and", a, b)
	case "||":
		return op2("or", a, b)
	default:
		// Unrecognized symbol: pass through uninterpreted rather than
		// panicking, so an unknown front-end operator still produces
		// something a reviewer can see and fix rather than a crash.
		return op2(sym, a, b)
	}
}

// unaryOp renders a unary operator ("!" boolean not, "-" arithmetic
// negation).
func unaryOp(sym string, a smt.Expr, opts options.Options) smt.Expr {
	bounded := opts.IntSemantics == options.Bounded
	switch sym {
	case "!":
		return &smt.Op{Name: "not", Args: []smt.Expr{a}}
	case "-":
		return &smt.Op{Name: pick(bounded, "bvneg", "-"), Args: []smt.Expr{a}}
	default:
		return &smt.Op{Name: sym, Args: []smt.Expr{a}}
	}
}

func op2(name string, a, b smt.Expr) smt.Expr { return &smt.Op{Name: name, Args: []smt.Expr{a, b}} }

func pick(bounded bool, boundedName, unboundedName string) string {
	if bounded {
		return boundedName
	}
	return unboundedName
}

// intLiteral renders v as a numeric literal of the right flavor.
func intLiteral(v int64, opts options.Options) smt.Expr {
	if opts.IntSemantics == options.Bounded {
		return &smt.BVLit{Value: uint64(v), Width: opts.BitWidth}
	}
	return &smt.IntLit{Value: decimal(v)}
}

func decimal(v int64) string {
	if v < 0 {
		neg := -v
		return "-" + itoa(neg)
	}
	return itoa(v)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
