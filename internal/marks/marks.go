// Package marks implements C2: partitioning a procedure's blocks into
// synchronisation classes via calls to the `__mark(k)` intrinsic folded
// into a block's terminating branch condition (spec.md §4.1).
//
// Grounded on the teacher's internal/semantic/flow_analyzer.go shape (a
// stateful analyzer struct that walks structure once and returns a
// result value) and original_source/reve/RemoveMarkPass.cpp for the
// exact `__mark(k) & cond` intrinsic-stripping semantics this package
// detects (stripping itself happens later, in preprocess).
package marks

import (
	"fmt"

	"kanso/internal/ir"
)

// Map is the bidirectional block<->mark map produced by Analyze.
type Map struct {
	BlockMark map[ir.BlockID]ir.Mark
	MarkSet   map[ir.Mark][]ir.BlockID
}

// MarkOf returns the mark assigned to block, or ir.NoMark.
func (m *Map) MarkOf(block ir.BlockID) ir.Mark {
	if mk, ok := m.BlockMark[block]; ok {
		return mk
	}
	return ir.NoMark
}

// BlocksOf returns the blocks assigned to mark k, in ascending BlockID
// order (insertion order, since blocks are only ever appended).
func (m *Map) BlocksOf(k ir.Mark) []ir.BlockID {
	return m.MarkSet[k]
}

// ConflictError reports that a block is reachable under two different
// mark labels, per spec.md §4.1's failure mode.
type ConflictError struct {
	Block  ir.BlockID
	Label  string
	First  ir.Mark
	Second ir.Mark
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("block %q: conflicting marks %s and %s", e.Label, markStr(e.First), markStr(e.Second))
}

func markStr(m ir.Mark) string {
	switch m {
	case ir.Entry:
		return "ENTRY"
	case ir.Exit:
		return "EXIT"
	case ir.NoMark:
		return "NONE"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

// Analyze scans every block's terminator for a `__mark(k)` intrinsic
// call folded into its branch condition, and force-maps f.Entry and
// f.Exit to ir.Entry/ir.Exit (Exit wins when the two coincide). A block
// whose own `__mark(k)` label differs from the ENTRY/EXIT label forced
// onto it is a *ConflictError. Each block's label is also recorded in
// Block.Mark, and a block with no intrinsic left (preprocess strips
// them) keeps its recorded label, so Analyze can be re-run on a
// preprocessed function. f.Exit must already be set by preprocess's
// exit-unification pass (Open Question #2, DESIGN.md); Analyze does not
// check this and takes whatever block f.Exit names.
func Analyze(f *ir.Function) (*Map, error) {
	if len(f.Blocks) == 0 {
		return &Map{BlockMark: map[ir.BlockID]ir.Mark{}, MarkSet: map[ir.Mark][]ir.BlockID{}}, nil
	}

	m := &Map{
		BlockMark: make(map[ir.BlockID]ir.Mark, len(f.Blocks)),
		MarkSet:   make(map[ir.Mark][]ir.BlockID),
	}

	assign := func(b ir.BlockID, mk ir.Mark) error {
		if existing, ok := m.BlockMark[b]; ok && existing != mk {
			return &ConflictError{Block: b, Label: f.Block(b).Label, First: existing, Second: mk}
		}
		if _, ok := m.BlockMark[b]; !ok {
			m.MarkSet[mk] = append(m.MarkSet[mk], b)
		}
		m.BlockMark[b] = mk
		return nil
	}

	for _, b := range f.Blocks {
		mk := markOfTerminator(f, b)
		if mk == ir.NoMark {
			mk = b.Mark // recorded by an earlier Analyze, before preprocess stripped the intrinsic
		}
		forced := ir.NoMark
		if b.ID == f.Entry {
			forced = ir.Entry
		}
		if b.ID == f.Exit {
			forced = ir.Exit
		}
		if forced != ir.NoMark {
			if mk != ir.NoMark && mk != forced {
				return nil, &ConflictError{Block: b.ID, Label: b.Label, First: mk, Second: forced}
			}
			mk = forced
		}
		if err := assign(b.ID, mk); err != nil {
			return nil, err
		}
		b.Mark = mk
	}

	return m, nil
}

// markOfTerminator inspects b's instructions for a mark-intrinsic call
// whose result feeds (possibly through a zero-extension) the
// conjunction that forms b's branch condition, per §4.1: "a block
// belongs to mark k iff its terminating branch condition is of the form
// `__mark(k) & cond` (right-associative, any depth)". Returns NoMark if
// no such call is found.
func markOfTerminator(f *ir.Function, b *ir.Block) ir.Mark {
	cb, ok := b.Term.(*ir.CondBranch)
	if !ok {
		return ir.NoMark
	}
	return findMarkIntrinsic(f, cb.Cond, b.ID, make(map[ir.ValueID]bool))
}

// findMarkIntrinsic walks the conjunction rooted at cond (a binop tree
// of "&&" nodes, or the call itself) looking for a mark-intrinsic call
// whose defining block is b (the intrinsic is always called in its own
// block's condition, never forwarded across blocks). visited guards
// against revisiting the same value in a pathological conjunction.
func findMarkIntrinsic(f *ir.Function, cond ir.ValueID, b ir.BlockID, visited map[ir.ValueID]bool) ir.Mark {
	if cond < 0 || visited[cond] {
		return ir.NoMark
	}
	visited[cond] = true

	v := f.Value(cond)
	if v.Kind != ir.ValueInst {
		return ir.NoMark
	}
	inst := definingInst(f, b, cond)
	if inst == nil {
		return ir.NoMark
	}

	if inst.Op == ir.OpCall && inst.Callee == "__mark" && len(inst.Operands) == 1 {
		lit := f.Value(inst.Operands[0])
		if lit.Kind == ir.ValueConst {
			return ir.Mark(lit.Const)
		}
	}

	if inst.Op == ir.OpBinary && inst.Symbol == "&&" {
		if mk := findMarkIntrinsic(f, inst.Operands[0], b, visited); mk != ir.NoMark {
			return mk
		}
		return findMarkIntrinsic(f, inst.Operands[1], b, visited)
	}

	if inst.Op == ir.OpZExt {
		return findMarkIntrinsic(f, inst.Operands[0], b, visited)
	}

	return ir.NoMark
}

// definingInst returns the instruction in block b that defines value v,
// or nil if v is not defined by an instruction in b.
func definingInst(f *ir.Function, b ir.BlockID, v ir.ValueID) *ir.Inst {
	blk := f.Block(b)
	for i := range blk.Insts {
		if blk.Insts[i].Result == v {
			return &blk.Insts[i]
		}
	}
	return nil
}
