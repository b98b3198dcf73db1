package smt

// Expr is any node of the term algebra. Every concrete type below
// implements it; the set is closed (a sealed sum), matched by the
// operations in transform.go and the printer in print.go.
type Expr interface {
	isExpr()
}

// Binding names one variable with its sort (Forall) and, in a Let,
// additionally its bound value.
type Binding struct {
	Name  string
	Sort  Sort
	Value Expr // nil for a Forall binding; non-nil for a Let binding
}

// Top-level script nodes.

type SetLogic struct{ Name string }

func (*SetLogic) isExpr() {}

type VarDecl struct {
	Name string
	Sort Sort
}

func (*VarDecl) isExpr() {}

type FunDecl struct {
	Name   string
	Params []Sort
	Result Sort
}

func (*FunDecl) isExpr() {}

type FunDef struct {
	Name   string
	Params []Binding
	Result Sort
	Body   Expr
}

func (*FunDef) isExpr() {}

type Assert struct{ Body Expr }

func (*Assert) isExpr() {}

type CheckSat struct{}

func (*CheckSat) isExpr() {}

type GetModel struct{}

func (*GetModel) isExpr() {}

// Term nodes.

type Forall struct {
	Bindings []Binding
	Body     Expr
}

func (*Forall) isExpr() {}

type Let struct {
	Bindings []Binding
	Body     Expr
}

func (*Let) isExpr() {}

// Op is an n-ary function application: arithmetic/comparison/boolean
// operators (`+`, `=`, `and`, `select`, `store`, ...) and uninterpreted
// predicate calls (`INV_MAIN_3`, `INV_REC_foo`) are both represented
// uniformly as Op nodes — a predicate call is simply an Op whose Name is
// the predicate's declared symbol.
type Op struct {
	Name string
	Args []Expr
}

func (*Op) isExpr() {}

// ArrayEq is a dedicated node (rather than overloading Op("=", ...))
// for an equality between two array-sorted terms, so instantiateArrays
// has an unambiguous marker to rewrite without needing a type checker
// over the whole tree.
type ArrayEq struct {
	Left, Right Expr
	Index       Sort
}

func (*ArrayEq) isExpr() {}

// Symbol is a bound or free identifier reference.
type Symbol struct{ Name string }

func (*Symbol) isExpr() {}

// Typed primitives.

type IntLit struct{ Value string } // decimal, leading '-' for negatives (unbounded)

func (*IntLit) isExpr() {}

type BVLit struct {
	Value uint64
	Width int
}

func (*BVLit) isExpr() {}

type BoolLit struct{ Value bool }

func (*BoolLit) isExpr() {}
