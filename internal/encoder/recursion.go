package encoder

import (
	"fmt"
	"sort"

	"kanso/internal/options"
	"kanso/internal/smt"
)

// recInfo is the signature discovered for one internal callee the first
// time a call to it is summarised, either jointly or independently
// (spec.md §4.5: "a call to a non-external function is summarised by an
// uninterpreted relation, either jointly... or independently...").
type recInfo struct {
	ArgSorts   []smt.Sort
	HasResult  bool
	ResultSort smt.Sort
	HasHeap    bool
	Joint      bool
	Indep1     bool
	Indep2     bool
}

func recEntry(recUsed map[string]*recInfo, name string, c *CallSite) *recInfo {
	info, ok := recUsed[name]
	if !ok {
		info = &recInfo{
			ArgSorts:   c.ArgSorts,
			HasResult:  c.HasResult,
			ResultSort: c.ResultSort,
			HasHeap:    c.HeapBefore != nil,
		}
		recUsed[name] = info
	}
	return info
}

// pairCalls summarises every call site recorded along the coupled path
// pair (pe1, pe2): calls at the same position calling the same function
// on both sides are summarised jointly (relating both programs'
// arguments and results in one INV_REC_<name> relation); any
// unmatched call — a different callee at that position, or one side
// having more calls than the other — falls back to an independent
// summary per spec.md §4.5's two-form description.
func pairCalls(pe1, pe2 *PathEncoding, recUsed map[string]*recInfo) []smt.Expr {
	var out []smt.Expr
	n := len(pe1.Calls)
	if len(pe2.Calls) < n {
		n = len(pe2.Calls)
	}
	for i := 0; i < n; i++ {
		c1, c2 := pe1.Calls[i], pe2.Calls[i]
		if c1.Callee == c2.Callee {
			out = append(out, jointRecAssert(c1.Callee, c1, c2, recUsed))
		} else {
			out = append(out, indepRecAssert(c1.Callee, c1, 1, recUsed))
			out = append(out, indepRecAssert(c2.Callee, c2, 2, recUsed))
		}
	}
	for i := n; i < len(pe1.Calls); i++ {
		out = append(out, indepRecAssert(pe1.Calls[i].Callee, pe1.Calls[i], 1, recUsed))
	}
	for i := n; i < len(pe2.Calls); i++ {
		out = append(out, indepRecAssert(pe2.Calls[i].Callee, pe2.Calls[i], 2, recUsed))
	}
	return out
}

func jointRecAssert(name string, c1, c2 *CallSite, recUsed map[string]*recInfo) smt.Expr {
	info := recEntry(recUsed, name, c1)
	info.Joint = true

	args := append(append([]smt.Expr{}, c1.Args...), c2.Args...)
	if info.HasHeap {
		args = append(args, c1.HeapBefore, c2.HeapBefore)
	}
	if info.HasResult {
		args = append(args, c1.ResultSym, c2.ResultSym)
	}
	if info.HasHeap {
		args = append(args, c1.HeapAfterSym, c2.HeapAfterSym)
	}
	return &smt.Op{Name: "INV_REC_" + name, Args: args}
}

func indepRecAssert(name string, c *CallSite, idx int, recUsed map[string]*recInfo) smt.Expr {
	info := recEntry(recUsed, name, c)
	if idx == 1 {
		info.Indep1 = true
	} else {
		info.Indep2 = true
	}

	args := append([]smt.Expr{}, c.Args...)
	if info.HasHeap {
		args = append(args, c.HeapBefore)
	}
	if info.HasResult {
		args = append(args, c.ResultSym)
	}
	if info.HasHeap {
		args = append(args, c.HeapAfterSym)
	}
	return &smt.Op{Name: fmt.Sprintf("INV_REC_%s__%d", name, idx), Args: args}
}

// recDecls renders the declare-fun forms for every summary relation
// actually used while encoding the coupled paths, in deterministic
// (sorted-by-name) order.
func recDecls(recUsed map[string]*recInfo, opts options.Options) []smt.Expr {
	names := make([]string, 0, len(recUsed))
	for n := range recUsed {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []smt.Expr
	for _, name := range names {
		info := recUsed[name]
		if info.Joint {
			out = append(out, &smt.FunDecl{Name: "INV_REC_" + name, Params: jointParams(info, opts), Result: smt.BoolSort{}})
		}
		if info.Indep1 {
			out = append(out, &smt.FunDecl{Name: fmt.Sprintf("INV_REC_%s__1", name), Params: sideParams(info, opts), Result: smt.BoolSort{}})
		}
		if info.Indep2 {
			out = append(out, &smt.FunDecl{Name: fmt.Sprintf("INV_REC_%s__2", name), Params: sideParams(info, opts), Result: smt.BoolSort{}})
		}
	}
	return out
}

func jointParams(info *recInfo, opts options.Options) []smt.Sort {
	var p []smt.Sort
	p = append(p, info.ArgSorts...)
	p = append(p, info.ArgSorts...)
	if info.HasHeap {
		p = append(p, heapSort(opts), heapSort(opts))
	}
	if info.HasResult {
		p = append(p, info.ResultSort, info.ResultSort)
	}
	if info.HasHeap {
		p = append(p, heapSort(opts), heapSort(opts))
	}
	return p
}

func sideParams(info *recInfo, opts options.Options) []smt.Sort {
	var p []smt.Sort
	p = append(p, info.ArgSorts...)
	if info.HasHeap {
		p = append(p, heapSort(opts))
	}
	if info.HasResult {
		p = append(p, info.ResultSort)
	}
	if info.HasHeap {
		p = append(p, heapSort(opts))
	}
	return p
}
