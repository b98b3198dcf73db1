package smt

// UsedNames returns the free identifier set referenced anywhere in e —
// every Symbol leaf's name, plus every Op name that is itself a
// predicate/function symbol rather than a built-in operator (the caller
// is expected to filter built-ins out if it only wants uninterpreted
// symbols; this function over-approximates rather than hard-codes an
// operator table here, since that table differs between the bounded
// and unbounded numeric encodings — see internal/encoder).
func UsedNames(e Expr) map[string]bool {
	names := make(map[string]bool)
	collectNames(e, names)
	return names
}

func collectNames(e Expr, out map[string]bool) {
	switch n := e.(type) {
	case *Symbol:
		out[n.Name] = true
	case *Op:
		out[n.Name] = true
		for _, a := range n.Args {
			collectNames(a, out)
		}
	case *ArrayEq:
		collectNames(n.Left, out)
		collectNames(n.Right, out)
	case *Forall:
		for _, b := range n.Bindings {
			out[b.Name] = true
		}
		collectNames(n.Body, out)
	case *Let:
		for _, b := range n.Bindings {
			out[b.Name] = true
			collectNames(b.Value, out)
		}
		collectNames(n.Body, out)
	case *Assert:
		collectNames(n.Body, out)
	case *FunDef:
		collectNames(n.Body, out)
	}
}

// countUses counts Symbol references to name within e, not descending
// into a nested Let/Forall that rebinds the same name (correctly
// stopping counting at a shadowing boundary).
func countUses(e Expr, name string) int {
	switch n := e.(type) {
	case *Symbol:
		if n.Name == name {
			return 1
		}
		return 0
	case *Op:
		total := 0
		for _, a := range n.Args {
			total += countUses(a, name)
		}
		return total
	case *ArrayEq:
		return countUses(n.Left, name) + countUses(n.Right, name)
	case *Forall:
		if shadows(n.Bindings, name) {
			return 0
		}
		return countUses(n.Body, name)
	case *Let:
		total := 0
		for _, b := range n.Bindings {
			total += countUses(b.Value, name)
		}
		if shadows(n.Bindings, name) {
			return total
		}
		return total + countUses(n.Body, name)
	case *Assert:
		return countUses(n.Body, name)
	}
	return 0
}

func shadows(bindings []Binding, name string) bool {
	for _, b := range bindings {
		if b.Name == name {
			return true
		}
	}
	return false
}

// substitute replaces every free Symbol named name with replacement,
// stopping at a shadowing Let/Forall boundary.
func substitute(e Expr, name string, replacement Expr) Expr {
	switch n := e.(type) {
	case *Symbol:
		if n.Name == name {
			return replacement
		}
		return n
	case *Op:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = substitute(a, name, replacement)
		}
		return &Op{Name: n.Name, Args: args}
	case *ArrayEq:
		return &ArrayEq{Left: substitute(n.Left, name, replacement), Right: substitute(n.Right, name, replacement), Index: n.Index}
	case *Forall:
		if shadows(n.Bindings, name) {
			return n
		}
		return &Forall{Bindings: n.Bindings, Body: substitute(n.Body, name, replacement)}
	case *Let:
		newBindings := make([]Binding, len(n.Bindings))
		for i, b := range n.Bindings {
			newBindings[i] = Binding{Name: b.Name, Sort: b.Sort, Value: substitute(b.Value, name, replacement)}
		}
		if shadows(n.Bindings, name) {
			return &Let{Bindings: newBindings, Body: n.Body}
		}
		return &Let{Bindings: newBindings, Body: substitute(n.Body, name, replacement)}
	case *Assert:
		return &Assert{Body: substitute(n.Body, name, replacement)}
	default:
		return e
	}
}

// isPrimitive reports whether e is cheap enough to always inline
// regardless of use count (spec.md §4.4: "an assignment's value is ...
// a primitive").
func isPrimitive(e Expr) bool {
	switch e.(type) {
	case *IntLit, *BVLit, *BoolLit, *Symbol:
		return true
	default:
		return false
	}
}

// CompressLets inlines a let-binding when its value is referenced at
// most once in the body, or is itself a primitive, dropping the
// binding; otherwise the binding is kept. This is the only
// identity-changing pass in the algebra (spec.md §4.4): every other
// transform is a pure rewrite that preserves node identity elsewhere.
func CompressLets(e Expr) Expr {
	switch n := e.(type) {
	case *Let:
		body := CompressLets(n.Body)
		var kept []Binding
		for _, b := range n.Bindings {
			val := CompressLets(b.Value)
			uses := countUses(body, b.Name)
			if uses <= 1 || isPrimitive(val) {
				body = substitute(body, b.Name, val)
				continue
			}
			kept = append(kept, Binding{Name: b.Name, Sort: b.Sort, Value: val})
		}
		if len(kept) == 0 {
			return body
		}
		return &Let{Bindings: kept, Body: body}
	case *Forall:
		return &Forall{Bindings: n.Bindings, Body: CompressLets(n.Body)}
	case *Op:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = CompressLets(a)
		}
		return &Op{Name: n.Name, Args: args}
	case *ArrayEq:
		return &ArrayEq{Left: CompressLets(n.Left), Right: CompressLets(n.Right), Index: n.Index}
	case *Assert:
		return &Assert{Body: CompressLets(n.Body)}
	default:
		return e
	}
}

// RenameAssignments SSA-freshens every let-bound name in e using next,
// a caller-supplied name generator (so the pass stays pure: it takes no
// hidden counter). Guards against a freshly generated name accidentally
// colliding with an existing free name by skipping names already seen
// in UsedNames(e).
func RenameAssignments(e Expr, next func() string) Expr {
	switch n := e.(type) {
	case *Let:
		newBindings := make([]Binding, len(n.Bindings))
		body := n.Body
		used := UsedNames(n)
		for i, b := range n.Bindings {
			fresh := next()
			for used[fresh] {
				fresh = next()
			}
			newBindings[i] = Binding{Name: fresh, Sort: b.Sort, Value: RenameAssignments(b.Value, next)}
			body = substitute(body, b.Name, &Symbol{Name: fresh})
		}
		return &Let{Bindings: newBindings, Body: RenameAssignments(body, next)}
	case *Forall:
		return &Forall{Bindings: n.Bindings, Body: RenameAssignments(n.Body, next)}
	case *Op:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = RenameAssignments(a, next)
		}
		return &Op{Name: n.Name, Args: args}
	case *ArrayEq:
		return &ArrayEq{Left: RenameAssignments(n.Left, next), Right: RenameAssignments(n.Right, next), Index: n.Index}
	case *Assert:
		return &Assert{Body: RenameAssignments(n.Body, next)}
	default:
		return e
	}
}

// InstantiateArrays replaces every ArrayEq by a universally-quantified
// index equality: `a = b` becomes `forall idx. (select a idx) = (select
// b idx)`, per spec.md §4.4. idxName must be fresh with respect to the
// surrounding scope; callers typically derive it from a path-local
// counter.
func InstantiateArrays(e Expr, idxName func() string) Expr {
	switch n := e.(type) {
	case *ArrayEq:
		idx := idxName()
		sel := func(arr Expr) Expr { return &Op{Name: "select", Args: []Expr{arr, &Symbol{Name: idx}}} }
		return &Forall{
			Bindings: []Binding{{Name: idx, Sort: n.Index}},
			Body:     &Op{Name: "=", Args: []Expr{sel(n.Left), sel(n.Right)}},
		}
	case *Forall:
		return &Forall{Bindings: n.Bindings, Body: InstantiateArrays(n.Body, idxName)}
	case *Let:
		newBindings := make([]Binding, len(n.Bindings))
		for i, b := range n.Bindings {
			newBindings[i] = Binding{Name: b.Name, Sort: b.Sort, Value: InstantiateArrays(b.Value, idxName)}
		}
		return &Let{Bindings: newBindings, Body: InstantiateArrays(n.Body, idxName)}
	case *Op:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = InstantiateArrays(a, idxName)
		}
		return &Op{Name: n.Name, Args: args}
	case *Assert:
		return &Assert{Body: InstantiateArrays(n.Body, idxName)}
	default:
		return e
	}
}

// RemoveForalls hoists every (possibly nested) universally bound
// variable in e into a flat global declaration list, replacing each
// Forall with its bare body. Required by solver front-ends that expect
// all variables free and implicitly universally quantified at the
// top-level assert rather than bound by an explicit quantifier
// (spec.md §4.4).
func RemoveForalls(e Expr) ([]VarDecl, Expr) {
	var decls []VarDecl
	var walk func(Expr) Expr
	walk = func(e Expr) Expr {
		switch n := e.(type) {
		case *Forall:
			for _, b := range n.Bindings {
				decls = append(decls, VarDecl{Name: b.Name, Sort: b.Sort})
			}
			return walk(n.Body)
		case *Let:
			newBindings := make([]Binding, len(n.Bindings))
			for i, b := range n.Bindings {
				newBindings[i] = Binding{Name: b.Name, Sort: b.Sort, Value: walk(b.Value)}
			}
			return &Let{Bindings: newBindings, Body: walk(n.Body)}
		case *Op:
			args := make([]Expr, len(n.Args))
			for i, a := range n.Args {
				args[i] = walk(a)
			}
			return &Op{Name: n.Name, Args: args}
		case *ArrayEq:
			return &ArrayEq{Left: walk(n.Left), Right: walk(n.Right), Index: n.Index}
		case *Assert:
			return &Assert{Body: walk(n.Body)}
		default:
			return e
		}
	}
	return decls, walk(e)
}

// RenameDefineFuns suffixes every occurrence of a symbol in funNames
// (an Op's Name, or a FunDef/FunDecl's Name) with suffix, leaving
// built-in operators and ordinary variable symbols untouched.
func RenameDefineFuns(e Expr, funNames map[string]bool, suffix string) Expr {
	rename := func(name string) string {
		if funNames[name] {
			return name + suffix
		}
		return name
	}
	switch n := e.(type) {
	case *FunDecl:
		params := append([]Sort{}, n.Params...)
		return &FunDecl{Name: rename(n.Name), Params: params, Result: n.Result}
	case *FunDef:
		return &FunDef{Name: rename(n.Name), Params: n.Params, Result: n.Result, Body: RenameDefineFuns(n.Body, funNames, suffix)}
	case *Op:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = RenameDefineFuns(a, funNames, suffix)
		}
		return &Op{Name: rename(n.Name), Args: args}
	case *ArrayEq:
		return &ArrayEq{Left: RenameDefineFuns(n.Left, funNames, suffix), Right: RenameDefineFuns(n.Right, funNames, suffix), Index: n.Index}
	case *Forall:
		return &Forall{Bindings: n.Bindings, Body: RenameDefineFuns(n.Body, funNames, suffix)}
	case *Let:
		newBindings := make([]Binding, len(n.Bindings))
		for i, b := range n.Bindings {
			newBindings[i] = Binding{Name: b.Name, Sort: b.Sort, Value: RenameDefineFuns(b.Value, funNames, suffix)}
		}
		return &Let{Bindings: newBindings, Body: RenameDefineFuns(n.Body, funNames, suffix)}
	case *Assert:
		return &Assert{Body: RenameDefineFuns(n.Body, funNames, suffix)}
	default:
		return e
	}
}
