// Package encoder implements C6, the relational encoder: it couples
// two preprocessed, mark-annotated procedures path-by-path and renders
// the coupling as constrained Horn clauses over the smt term algebra
// (spec.md §4.5).
//
// Grounded on original_source/reve/Reve.cpp (the coupling/equivalence
// driver: pair functions by name, walk marks, assert implications) and
// the teacher's internal/semantic/analyzer.go (one large orchestrating
// pass with focused helper methods walking a declaration set and
// emitting structured diagnostics/artifacts).
package encoder

import (
	"fmt"
	"sort"

	"kanso/internal/ir"
	"kanso/internal/marks"
	"kanso/internal/options"
	"kanso/internal/smt"
)

// freeVarsAtMark computes freeVars(m) for one procedure: the phi
// results of every block carrying mark m, plus every value defined by
// a strict predecessor of such a block (spec.md §3's "vars_live_at_m").
// Unlike ir.Function.LiveAt (a conservative reaching-definitions
// over-approximation meant for a diagnostic consumer that can tolerate
// slack), the encoder needs the exact entry-live set, because tr(p)
// supplies a concrete expression for every predicate argument at the
// end of a path — so a mark's own straight-line instructions, computed
// fresh along whichever path reaches it, must NOT be double-counted as
// inputs.
func freeVarsAtMark(f *ir.Function, mm *marks.Map, m ir.Mark) []*ir.Value {
	seen := make(map[ir.ValueID]bool)
	var out []*ir.Value

	add := func(id ir.ValueID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, f.Value(id))
		}
	}

	for _, p := range f.Params {
		add(p.Value)
	}

	preds := f.Predecessors()
	reachablePred := make(map[ir.BlockID]bool)
	var seedPreds func(b ir.BlockID)
	seedPreds = func(b ir.BlockID) {
		for _, p := range preds[b] {
			if !reachablePred[p] {
				reachablePred[p] = true
				seedPreds(p)
			}
		}
	}

	for _, b := range mm.BlocksOf(m) {
		for _, ph := range f.Block(b).Phis {
			add(ph.Result)
		}
		seedPreds(b)
	}

	for _, b := range f.Blocks {
		if !reachablePred[b.ID] {
			continue
		}
		for _, ph := range b.Phis {
			add(ph.Result)
		}
		for _, inst := range b.Insts {
			if inst.Result >= 0 {
				add(inst.Result)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortFor maps an ir.Type to its SMT sort. Float is modeled as an
// opaque Int per the non-goal "sound handling of floating point as
// anything other than uninterpreted" (spec.md §1): no float arithmetic
// is ever emitted, only propagation/equality over the carrier sort.
func sortFor(t ir.Type, opts options.Options) smt.Sort {
	switch tt := t.(type) {
	case *ir.IntType:
		if opts.IntSemantics == options.Bounded {
			w := tt.Width
			if tt.Unbounded || w == 0 {
				w = opts.BitWidth
			}
			return smt.BVSort{Width: w}
		}
		return smt.IntSort{}
	case *ir.BoolType:
		return smt.BoolSort{}
	case *ir.FloatType:
		return smt.IntSort{}
	case *ir.ArrayType:
		return smt.ArraySort{Index: sortFor(tt.Index, opts), Element: sortFor(tt.Element, opts)}
	case *ir.PointerType:
		return addressSort(opts)
	default:
		return smt.IntSort{}
	}
}

func addressSort(opts options.Options) smt.Sort {
	if opts.IntSemantics == options.Bounded {
		return smt.BVSort{Width: opts.BitWidth}
	}
	return smt.IntSort{}
}

// heapSort is the sort of HEAP$n / STACK$n: an array from address to
// the same address-width integer carrier, matching spec.md §4.5's
// `Int -> Int` description.
func heapSort(opts options.Options) smt.Sort {
	return smt.ArraySort{Index: addressSort(opts), Element: addressSort(opts)}
}

// MarkSignature is freeVars(m) for a coupled pair of procedures: the
// ordered argument list of INV_MAIN_<m> (spec.md §3).
type MarkSignature struct {
	Mark      ir.Mark
	Vars1     []*ir.Value
	Vars2     []*ir.Value
	Names     []string
	Sorts     []smt.Sort
	HasHeap   bool
	HasStack  bool
}

// buildSignature computes the mark-predicate signature for mark m
// shared by f1 and f2: freeVars_1(m) ++ freeVars_2(m), plus HEAP$1,
// HEAP$2 and/or STACK$1, STACK$2 depending on opts.Memory.
func buildSignature(f1, f2 *ir.Function, mm1, mm2 *marks.Map, m ir.Mark, opts options.Options) *MarkSignature {
	v1 := freeVarsAtMark(f1, mm1, m)
	v2 := freeVarsAtMark(f2, mm2, m)

	sig := &MarkSignature{Mark: m, Vars1: v1, Vars2: v2}
	for _, v := range v1 {
		sig.Names = append(sig.Names, v.Name)
		sig.Sorts = append(sig.Sorts, sortFor(v.Type, opts))
	}
	for _, v := range v2 {
		sig.Names = append(sig.Names, v.Name)
		sig.Sorts = append(sig.Sorts, sortFor(v.Type, opts))
	}
	if opts.Memory == options.MemoryHeap || opts.Memory == options.MemoryStack {
		sig.HasHeap = true
		sig.Names = append(sig.Names, "HEAP$1", "HEAP$2")
		sig.Sorts = append(sig.Sorts, heapSort(opts), heapSort(opts))
	}
	if opts.Memory == options.MemoryStack {
		sig.HasStack = true
		sig.Names = append(sig.Names, "STACK$1", "STACK$2")
		sig.Sorts = append(sig.Sorts, heapSort(opts), heapSort(opts))
	}
	return sig
}

// predicateName renders the declared symbol for mark m. The top-level
// coupled function (the one selected by Options.Function or defaulted
// to the first shared function) uses the bare `INV_MAIN_<k>` form of
// spec.md §3/§8's literal fixtures; any other coupled function reached
// only through a recursive-summary call site is qualified by function
// name to keep predicate symbols distinct across functions.
func predicateName(funcName string, isTop bool, m ir.Mark) string {
	label := markLabel(m)
	if isTop {
		return "INV_MAIN_" + label
	}
	return fmt.Sprintf("INV_MAIN_%s_%s", funcName, label)
}

func markLabel(m ir.Mark) string {
	switch m {
	case ir.Entry:
		return "ENTRY"
	case ir.Exit:
		return "EXIT"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

// declFor renders sig as a top-level declare-fun for predicate name.
func declFor(name string, sig *MarkSignature) *smt.FunDecl {
	return &smt.FunDecl{Name: name, Params: sig.Sorts, Result: smt.BoolSort{}}
}

// forallBindings renders sig as a Forall's bound-variable list.
func forallBindings(sig *MarkSignature) []smt.Binding {
	out := make([]smt.Binding, len(sig.Names))
	for i, n := range sig.Names {
		out[i] = smt.Binding{Name: n, Sort: sig.Sorts[i]}
	}
	return out
}

// callSig applies a predicate name to sig's own free-var names as a
// literal identity call, used at ENTRY/EXIT boundary assertions.
func callSig(name string, sig *MarkSignature) smt.Expr {
	args := make([]smt.Expr, len(sig.Names))
	for i, n := range sig.Names {
		args[i] = &smt.Symbol{Name: n}
	}
	return &smt.Op{Name: name, Args: args}
}
