package annot

import (
	"fmt"
	"regexp"
	"strings"

	"kanso/internal/diag"
	"kanso/internal/smt"
)

// Kind discriminates the three directive forms of spec.md §6.
type Kind string

const (
	KindRelIn     Kind = "rel_in"
	KindRelOut    Kind = "rel_out"
	KindAddFunCond Kind = "addfuncond"
)

// Warning is a non-fatal diagnostic: a duplicated directive after the
// first is ignored, per spec.md §6 ("duplicated directives after the
// first are ignored with a warning").
type Warning struct {
	Kind     Kind
	Function string
	Message  string
}

// Annotations is the parsed directive set for one input file.
type Annotations struct {
	RelIn      map[string]smt.Expr
	RelOut     map[string]smt.Expr
	AddFunCond map[string]smt.Expr
	Warnings   []Warning
}

// header matches the opening of a directive: `/*@ <kind> <name>`,
// capturing the kind keyword and the function name. The sexpr body and
// the closing `@*/` are located by balanced-paren scanning from here,
// not by the regex itself, since a regex cannot match arbitrarily
// nested parentheses.
var header = regexp.MustCompile(`/\*@\s*(rel_in|rel_out|addfuncond)\s+([A-Za-z_][A-Za-z0-9_]*)\s*`)

// Parse scans source for every `/*@ ... @*/` directive, parses each
// sexpr body, and returns the accumulated Annotations. A malformed
// directive (unbalanced parens, a body the sexpr grammar rejects, or a
// missing closing `@*/`) is reported as diag.AnnotationParseError via
// the returned error; Parse does not partially apply a malformed file.
func Parse(source string) (*Annotations, error) {
	out := &Annotations{
		RelIn:      map[string]smt.Expr{},
		RelOut:     map[string]smt.Expr{},
		AddFunCond: map[string]smt.Expr{},
	}

	for _, loc := range header.FindAllStringSubmatchIndex(source, -1) {
		kind := Kind(source[loc[2]:loc[3]])
		name := source[loc[4]:loc[5]]
		rest := source[loc[1]:]
		pos := diag.Position{
			Line:   strings.Count(source[:loc[0]], "\n") + 1,
			Column: loc[0] - strings.LastIndex(source[:loc[0]], "\n"),
		}
		malformed := func(reason string) error {
			d := diag.AnnotationParseError(string(kind), pos)
			d.Notes = []string{fmt.Sprintf("annotation for %q: %s", name, reason)}
			return d
		}

		body, remainder, err := scanBalanced(rest)
		if err != nil {
			return nil, malformed(err.Error())
		}
		if !strings.HasPrefix(strings.TrimSpace(remainder), "@*/") {
			return nil, malformed("missing closing @*/")
		}

		sx, err := parseSExpr(body)
		if err != nil {
			return nil, malformed(err.Error())
		}
		expr := toSMT(sx)

		target := out.targetMap(kind)
		if _, dup := target[name]; dup {
			out.Warnings = append(out.Warnings, Warning{
				Kind: kind, Function: name,
				Message: fmt.Sprintf("duplicate %s annotation for %q ignored", kind, name),
			})
			continue
		}
		target[name] = expr
	}

	return out, nil
}

func (a *Annotations) targetMap(k Kind) map[string]smt.Expr {
	switch k {
	case KindRelIn:
		return a.RelIn
	case KindRelOut:
		return a.RelOut
	default:
		return a.AddFunCond
	}
}

// scanBalanced consumes leading whitespace then a single balanced
// parenthesized group from s, returning its full text (including the
// outer parens) and the remainder of s after the closing paren.
func scanBalanced(s string) (body, remainder string, err error) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	if i >= len(s) || s[i] != '(' {
		return "", "", fmt.Errorf("expected '(' to start sexpr body")
	}
	depth := 0
	start := i
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start : i+1], s[i+1:], nil
			}
		}
	}
	return "", "", fmt.Errorf("unbalanced parentheses")
}

// toSMT lowers a parsed SExpr into the smt term algebra. An atom that
// parses as an integer literal becomes smt.IntLit; otherwise it is a
// free identifier reference (smt.Symbol). A list becomes an smt.Op
// whose name is the head token — uniformly covering both built-in
// operators ("=", "+", "&&", ...) and free relation/function symbols,
// matching smt.Op's own design (expr.go: "a predicate call is simply
// an Op whose Name is the predicate's declared symbol").
func toSMT(sx *SExpr) smt.Expr {
	if sx.Atom != nil {
		if isInteger(*sx.Atom) {
			return &smt.IntLit{Value: *sx.Atom}
		}
		return &smt.Symbol{Name: *sx.Atom}
	}
	args := make([]smt.Expr, len(sx.List.Args))
	for i, a := range sx.List.Args {
		args[i] = toSMT(a)
	}
	return &smt.Op{Name: sx.List.Head, Args: args}
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' {
		i = 1
	}
	if i >= len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
