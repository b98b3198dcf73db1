package encoder

import (
	"fmt"

	"kanso/internal/ir"
	"kanso/internal/options"
	"kanso/internal/smt"
)

// externalUse records the signature an external (declaration-only)
// function was observed with at its first call site, so the driver
// can declare matching uninterpreted function symbols and an
// equivalence axiom exactly once per external name (spec.md §4.5: "an
// equivalence axiom: equal inputs and equal input heaps imply equal
// outputs and equal output heaps").
type externalUse struct {
	ArgSorts   []smt.Sort
	HasResult  bool
	ResultSort smt.Sort
	HasHeap    bool
}

// encodeCall dispatches a call instruction to either the external
// (uninterpreted-function + axiom) encoding or the internal
// (deferred recursion-summary) encoding of spec.md §4.5, depending on
// whether mod declares inst.Callee as a body-less external function.
func encodeCall(
	f *ir.Function, mod *ir.Module, idx int, opts options.Options, ab *AddressBook,
	inst *ir.Inst, ref func(ir.ValueID) smt.Expr, heap *smt.Expr,
	pe *PathEncoding, extRegistry map[string]*externalUse, fresh func(string) string,
) {
	if _, isExternal := mod.Externals[inst.Callee]; isExternal {
		encodeExternalCall(f, idx, opts, inst, ref, heap, pe, extRegistry)
		return
	}
	encodeInternalCall(f, idx, opts, inst, ref, heap, pe, fresh)
}

// encodeExternalCall applies the two uninterpreted function symbols
// `<callee>$<idx>` (result) and `<callee>$<idx>_heap` (post-call heap,
// when a memory model is active), registering the signature the first
// time callee is seen so the driver can declare it and assert the
// cross-program equivalence axiom once.
func encodeExternalCall(
	f *ir.Function, idx int, opts options.Options, inst *ir.Inst,
	ref func(ir.ValueID) smt.Expr, heap *smt.Expr, pe *PathEncoding,
	extRegistry map[string]*externalUse,
) {
	args := make([]smt.Expr, len(inst.Operands))
	argSorts := make([]smt.Sort, len(inst.Operands))
	for i, op := range inst.Operands {
		args[i] = ref(op)
		argSorts[i] = sortFor(f.Value(op).Type, opts)
	}

	use, ok := extRegistry[inst.Callee]
	if !ok {
		use = &externalUse{ArgSorts: argSorts, HasHeap: heap != nil}
		if inst.Result >= 0 {
			use.HasResult = true
			use.ResultSort = sortFor(f.Value(inst.Result).Type, opts)
		}
		extRegistry[inst.Callee] = use
	}

	fnName := fmt.Sprintf("%s$%d", inst.Callee, idx)
	fnArgs := args
	if use.HasHeap {
		fnArgs = append([]smt.Expr{*heap}, args...)
	}
	if use.HasResult {
		bindResult(f, idx, inst.Result, &smt.Op{Name: fnName, Args: fnArgs}, pe)
	}
	if use.HasHeap {
		*heap = &smt.Op{Name: fnName + "_heap", Args: fnArgs}
	}
}

// encodeInternalCall records the call site for deferred pairing
// (spec.md §4.5's "identified by position within the enumerated path,
// same call index on both sides"), introducing a fresh existential
// stand-in for the call's result and post-call heap — their actual
// values are constrained only by whichever INV_REC relation the outer
// driver asserts once both programs' call lists are known.
func encodeInternalCall(
	f *ir.Function, idx int, opts options.Options, inst *ir.Inst,
	ref func(ir.ValueID) smt.Expr, heap *smt.Expr, pe *PathEncoding, fresh func(string) string,
) {
	cs := &CallSite{Callee: inst.Callee}
	cs.Args = make([]smt.Expr, len(inst.Operands))
	cs.ArgSorts = make([]smt.Sort, len(inst.Operands))
	for i, op := range inst.Operands {
		cs.Args[i] = ref(op)
		cs.ArgSorts[i] = sortFor(f.Value(op).Type, opts)
	}
	if heap != nil {
		cs.HeapBefore = *heap
	}
	if inst.Result >= 0 {
		v := f.Value(inst.Result)
		name := fresh("rec_res")
		sym := &smt.Symbol{Name: name}
		cs.HasResult = true
		cs.ResultSym = sym
		cs.ResultSort = sortFor(v.Type, opts)
		pe.ExtraBindings = append(pe.ExtraBindings, smt.Binding{Name: name, Sort: cs.ResultSort})
		pe.valMap[inst.Result] = sym
	}
	if heap != nil {
		name := fresh("rec_heap")
		sym := &smt.Symbol{Name: name}
		cs.HeapAfterSym = sym
		pe.ExtraBindings = append(pe.ExtraBindings, smt.Binding{Name: name, Sort: heapSort(opts)})
		*heap = sym
	}
	pe.Calls = append(pe.Calls, cs)
}

// externalAxiom renders the equivalence axiom for one external
// function: equal inputs and equal input heaps imply equal outputs and
// equal output heaps, strengthened by an optional addfuncond conjunct
// (SPEC_FULL.md §13: "the extra conjunct is appended to the
// external-function equivalence axiom body").
func externalAxiom(name string, use *externalUse, addFunCond smt.Expr, opts options.Options) smt.Expr {
	var bindings []smt.Binding
	var args1, args2 []smt.Expr
	for i, sort := range use.ArgSorts {
		n1 := fmt.Sprintf("ax_a%d$1", i)
		n2 := fmt.Sprintf("ax_a%d$2", i)
		bindings = append(bindings, smt.Binding{Name: n1, Sort: sort}, smt.Binding{Name: n2, Sort: sort})
		args1 = append(args1, &smt.Symbol{Name: n1})
		args2 = append(args2, &smt.Symbol{Name: n2})
	}

	var antecedent []smt.Expr
	for i := range use.ArgSorts {
		antecedent = append(antecedent, &smt.Op{Name: "=", Args: []smt.Expr{args1[i], args2[i]}})
	}

	fn1, fn2 := name+"$1", name+"$2"
	fnArgs1, fnArgs2 := args1, args2
	if use.HasHeap {
		hs := heapSort(opts)
		bindings = append(bindings, smt.Binding{Name: "ax_h$1", Sort: hs}, smt.Binding{Name: "ax_h$2", Sort: hs})
		h1, h2 := &smt.Symbol{Name: "ax_h$1"}, &smt.Symbol{Name: "ax_h$2"}
		antecedent = append(antecedent, &smt.Op{Name: "=", Args: []smt.Expr{h1, h2}})
		fnArgs1 = append([]smt.Expr{h1}, args1...)
		fnArgs2 = append([]smt.Expr{h2}, args2...)
	}

	var consequent []smt.Expr
	if use.HasResult {
		consequent = append(consequent, &smt.Op{Name: "=", Args: []smt.Expr{
			&smt.Op{Name: fn1, Args: fnArgs1}, &smt.Op{Name: fn2, Args: fnArgs2},
		}})
	}
	if use.HasHeap {
		consequent = append(consequent, &smt.Op{Name: "=", Args: []smt.Expr{
			&smt.Op{Name: fn1 + "_heap", Args: fnArgs1}, &smt.Op{Name: fn2 + "_heap", Args: fnArgs2},
		}})
	}
	if addFunCond != nil {
		consequent = append(consequent, addFunCond)
	}

	return &smt.Assert{Body: &smt.Forall{
		Bindings: bindings,
		Body: &smt.Op{Name: "=>", Args: []smt.Expr{
			conjoin(antecedent), conjoin(consequent),
		}},
	}}
}

// externalDecls renders the declare-fun forms backing externalAxiom's
// uninterpreted symbols for both program suffixes.
func externalDecls(name string, use *externalUse, opts options.Options) []smt.Expr {
	var out []smt.Expr
	for _, idx := range []int{1, 2} {
		fn := fmt.Sprintf("%s$%d", name, idx)
		params := append([]smt.Sort{}, use.ArgSorts...)
		if use.HasHeap {
			params = append([]smt.Sort{heapSort(opts)}, params...)
		}
		if use.HasResult {
			out = append(out, &smt.FunDecl{Name: fn, Params: params, Result: use.ResultSort})
		}
		if use.HasHeap {
			out = append(out, &smt.FunDecl{Name: fn + "_heap", Params: params, Result: heapSort(opts)})
		}
	}
	return out
}

// conjoin folds exprs with "and", collapsing the trivial cases.
func conjoin(exprs []smt.Expr) smt.Expr {
	switch len(exprs) {
	case 0:
		return &smt.BoolLit{Value: true}
	case 1:
		return exprs[0]
	default:
		return &smt.Op{Name: "and", Args: exprs}
	}
}
