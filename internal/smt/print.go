package smt

import (
	"fmt"
	"strings"
)

// ToSExpr renders e as a lossless SMT-LIB2 s-expression. Script-level
// nodes (SetLogic, VarDecl, ...) render as a single top-level form, one
// per line, matching the output format convention in spec.md §6.
func ToSExpr(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *SetLogic:
		fmt.Fprintf(b, "(set-logic %s)", n.Name)
	case *VarDecl:
		fmt.Fprintf(b, "(declare-var %s %s)", n.Name, n.Sort)
	case *FunDecl:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(b, "(declare-fun %s (%s) %s)", n.Name, strings.Join(params, " "), n.Result)
	case *FunDef:
		parts := make([]string, len(n.Params))
		for i, p := range n.Params {
			parts[i] = fmt.Sprintf("(%s %s)", p.Name, p.Sort)
		}
		b.WriteString(fmt.Sprintf("(define-fun %s (%s) %s ", n.Name, strings.Join(parts, " "), n.Result))
		writeExpr(b, n.Body)
		b.WriteString(")")
	case *Assert:
		b.WriteString("(assert ")
		writeExpr(b, n.Body)
		b.WriteString(")")
	case *CheckSat:
		b.WriteString("(check-sat)")
	case *GetModel:
		b.WriteString("(get-model)")
	case *Forall:
		b.WriteString("(forall (")
		for i, bind := range n.Bindings {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s %s)", bind.Name, bind.Sort)
		}
		b.WriteString(") ")
		writeExpr(b, n.Body)
		b.WriteString(")")
	case *Let:
		b.WriteString("(let (")
		for i, bind := range n.Bindings {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s ", bind.Name)
			writeExpr(b, bind.Value)
			b.WriteString(")")
		}
		b.WriteString(") ")
		writeExpr(b, n.Body)
		b.WriteString(")")
	case *Op:
		if len(n.Args) == 0 {
			fmt.Fprintf(b, "%s", n.Name)
			return
		}
		fmt.Fprintf(b, "(%s", n.Name)
		for _, a := range n.Args {
			b.WriteString(" ")
			writeExpr(b, a)
		}
		b.WriteString(")")
	case *ArrayEq:
		b.WriteString("(= ")
		writeExpr(b, n.Left)
		b.WriteString(" ")
		writeExpr(b, n.Right)
		b.WriteString(")")
	case *Symbol:
		b.WriteString(n.Name)
	case *IntLit:
		if strings.HasPrefix(n.Value, "-") {
			fmt.Fprintf(b, "(- %s)", n.Value[1:])
		} else {
			b.WriteString(n.Value)
		}
	case *BVLit:
		fmt.Fprintf(b, "(_ bv%d %d)", n.Value, n.Width)
	case *BoolLit:
		if n.Value {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	default:
		b.WriteString("<?>")
	}
}
