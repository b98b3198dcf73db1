// Package paths implements C3: for each mark m, enumerate every
// mark-acyclic IR path starting at a block carrying m (spec.md §4.2).
//
// Grounded on the teacher's internal/semantic/flow_analyzer.go (a
// stateful recursive walk accumulating a structured result) and
// original_source/reve/dynamic/llreve-dynamic/lib/llreve/dynamic/Interpreter.cpp's
// path-following traversal.
package paths

import (
	"fmt"

	"kanso/internal/ir"
	"kanso/internal/marks"
)

// Literal is a single conjunct of a path condition: the branch value v,
// negated or not. EqConst is non-nil for a switch-case literal, meaning
// "Value == *EqConst" (or its negation on the default edge).
type Literal struct {
	Value   ir.ValueID
	Negate  bool
	EqConst *int64
}

// Edge is a single (source, condition, successor) step. Conditions
// compose by conjunction across a Path's edges (spec.md §3).
type Edge struct {
	From     ir.BlockID
	To       ir.BlockID
	Literals []Literal
}

// Path is a finite, mark-acyclic sequence of edges from StartBlock
// (carrying StartMark) to EndBlock (carrying EndMark).
type Path struct {
	StartMark  ir.Mark
	EndMark    ir.Mark
	StartBlock ir.BlockID
	EndBlock   ir.BlockID
	Edges      []Edge
}

// Result maps each mark to the list of paths starting at a block with
// that mark, in stable DFS-visit order (spec.md §4.2's tie-break).
type Result struct {
	ByMark map[ir.Mark][]*Path
}

// CycleError reports an unmarked cycle: the traversal obligation in
// spec.md §9 ("marks dominate loop headers") was violated by the input.
type CycleError struct {
	Block ir.BlockID
	Label string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unmarked cycle detected through block %q: marks must dominate every loop header", e.Label)
}

// Enumerate computes Result for f given its mark map.
func Enumerate(f *ir.Function, mm *marks.Map) (*Result, error) {
	res := &Result{ByMark: make(map[ir.Mark][]*Path)}

	// Deterministic mark iteration: the marks themselves don't need a
	// total order for correctness (callers key by mark), but iterating
	// blocks in ascending BlockID order make the per-mark path lists
	// stable regardless of map iteration order.
	for _, b := range f.Blocks {
		m := mm.MarkOf(b.ID)
		if m == ir.NoMark {
			continue
		}
		e := &enumerator{f: f, mm: mm, onStack: make(map[ir.BlockID]bool)}
		if err := e.fromStart(b.ID, m); err != nil {
			return nil, err
		}
		res.ByMark[m] = append(res.ByMark[m], e.paths...)
	}
	return res, nil
}

type enumerator struct {
	f       *ir.Function
	mm      *marks.Map
	onStack map[ir.BlockID]bool
	paths   []*Path
}

// fromStart launches the DFS rooted at start (which carries mark m),
// recording every completed path into e.paths.
func (e *enumerator) fromStart(start ir.BlockID, m ir.Mark) error {
	e.onStack[start] = true
	defer delete(e.onStack, start)
	return e.walk(start, m, start, nil)
}

// walk extends the path ending at cur (accumulated as edges) by each
// outgoing edge of cur, in terminator-successor order. A branch
// terminates (completing a Path) as soon as it reaches a block whose
// mark is not NoMark, including re-reaching start itself.
func (e *enumerator) walk(cur ir.BlockID, startMark ir.Mark, start ir.BlockID, edges []Edge) error {
	blk := e.f.Block(cur)
	for _, succ := range blk.Term.Successors() {
		lits := literalsFor(e.f, blk, succ)
		nextEdges := append(append([]Edge{}, edges...), Edge{From: cur, To: succ, Literals: lits})

		succMark := e.mm.MarkOf(succ)
		if succMark != ir.NoMark {
			e.paths = append(e.paths, &Path{
				StartMark: startMark, EndMark: succMark,
				StartBlock: start, EndBlock: succ,
				Edges: nextEdges,
			})
			continue
		}

		if e.onStack[succ] {
			return &CycleError{Block: succ, Label: e.f.Block(succ).Label}
		}
		e.onStack[succ] = true
		err := e.walk(succ, startMark, start, nextEdges)
		delete(e.onStack, succ)
		if err != nil {
			return err
		}
	}
	return nil
}

// literalsFor returns the conjunct(s) gating the edge from 'from' (whose
// terminator is Term) to 'to'.
func literalsFor(f *ir.Function, from *ir.Block, to ir.BlockID) []Literal {
	switch term := from.Term.(type) {
	case *ir.Branch:
		return nil
	case *ir.CondBranch:
		if term.TrueTarget == to {
			return []Literal{{Value: term.Cond, Negate: false}}
		}
		return []Literal{{Value: term.Cond, Negate: true}}
	case *ir.Switch:
		for _, c := range term.Cases {
			if c.Target == to {
				val := c.Value
				return []Literal{{Value: term.Cond, Negate: false, EqConst: &val}}
			}
		}
		// Default edge: conjoin a negated equality literal per case.
		lits := make([]Literal, len(term.Cases))
		for i, c := range term.Cases {
			val := c.Value
			lits[i] = Literal{Value: term.Cond, Negate: true, EqConst: &val}
		}
		return lits
	default:
		return nil
	}
}
