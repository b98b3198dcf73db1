// Package annot parses the embedded relational annotations of spec.md
// §6: `/*@ rel_in NAME (sexpr) @*/`, `/*@ rel_out NAME (sexpr) @*/`, and
// `/*@ addfuncond NAME (sexpr) @*/`. Per the design note in spec.md §9
// ("acceptable to keep regex-based parsing for rel_in, rel_out,
// addfuncond"), locating the directive spans inside a comment stays
// regex-driven (annot.go); the sexpr body itself is parsed by a real
// grammar, reusing the teacher's parser-generator dependency
// (github.com/alecthomas/participle/v2) rather than hand-rolling a
// second recursive-descent parser, grounded on grammar/grammar.go's
// struct-tag grammar style.
package annot

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// SExprLexer tokenizes the small prefix-expression language used inside
// a relational annotation body: identifiers (including the "$1"/"$2"
// program-index suffix and struct/field-access dots), integer
// literals, and the operator set of spec.md §4.5.
var SExprLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Whitespace", `[ \t\r\n]+`, nil},
		{"Integer", `-?[0-9]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.$]*`, nil},
		{"Operator", `(<=|>=|==|!=|&&|\|\||[-+*/%=<>])`, nil},
		{"Paren", `[()]`, nil},
	},
})

// SExpr is a single node: either an atom (identifier or integer
// literal) or a parenthesized, prefix application.
type SExpr struct {
	Atom *string    `  @(Ident|Integer)`
	List *ListSExpr `| @@`
}

// ListSExpr is `( head arg* )`: head is either an identifier (a
// relation/uninterpreted-function name) or one of the arithmetic,
// comparison, or boolean operators of spec.md §4.5.
type ListSExpr struct {
	Head string   `"(" @(Ident|Operator)`
	Args []*SExpr `@@* ")"`
}

var sexprParser = participle.MustBuild[SExpr](
	participle.Lexer(SExprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// parseSExpr parses the body text of a single directive (the text
// between the directive's outermost balanced parentheses) into an
// SExpr tree.
func parseSExpr(body string) (*SExpr, error) {
	return sexprParser.ParseString("", body)
}
