package paths

import (
	"testing"

	"kanso/internal/ir"
	"kanso/internal/marks"
)

// buildLoop mirrors marks_test.go's fixture: a header marked 1, guarded
// by `gated = mark(1) && (i0 <= n)`, looping through body back to
// header, or exiting to exit (marked EXIT).
func buildLoop() *ir.Function {
	f := &ir.Function{Name: "f"}
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")
	f.Entry = entry
	f.Exit = exit

	intT := &ir.IntType{Unbounded: true}
	n := f.NewValue("n", intT, ir.ValueArg, entry)
	iInit := f.NewValue("i_init", intT, ir.ValueArg, entry)
	f.Block(entry).Term = &ir.Branch{Target: header}

	i0 := f.NewValue("i0", intT, ir.ValueInst, header)
	cond := f.NewValue("cond", &ir.BoolType{}, ir.ValueInst, header)
	i1 := f.NewValue("i1", intT, ir.ValueInst, body)

	f.Block(header).Phis = []*ir.Phi{{Result: i0, Inputs: map[ir.BlockID]ir.ValueID{entry: iInit, body: i1}}}
	f.Block(header).Insts = []ir.Inst{
		{Op: ir.OpBinary, Result: cond, Symbol: "<=", Operands: []ir.ValueID{i0, n}, Block: header},
	}
	f.Block(header).Term = &ir.CondBranch{Cond: cond, TrueTarget: body, FalseTarget: exit}

	f.Block(body).Insts = []ir.Inst{
		{Op: ir.OpBinary, Result: i1, Symbol: "+", Operands: []ir.ValueID{i0, iInit}, Block: body},
	}
	f.Block(body).Term = &ir.Branch{Target: header}

	f.Block(exit).Term = &ir.Return{Value: i0}

	return f
}

func markMapFor(f *ir.Function, header ir.BlockID) *marks.Map {
	m := &marks.Map{BlockMark: map[ir.BlockID]ir.Mark{}, MarkSet: map[ir.Mark][]ir.BlockID{}}
	set := func(b ir.BlockID, mk ir.Mark) {
		m.BlockMark[b] = mk
		m.MarkSet[mk] = append(m.MarkSet[mk], b)
	}
	set(f.Entry, ir.Entry)
	set(header, ir.Mark(1))
	set(f.Exit, ir.Exit)
	return m
}

func TestEnumerateLoopHeaderHasTwoPaths(t *testing.T) {
	f := buildLoop()
	header := f.Entry + 1
	mm := markMapFor(f, header)

	res, err := Enumerate(f, mm)
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}

	ps := res.ByMark[ir.Mark(1)]
	if len(ps) != 2 {
		t.Fatalf("expected 2 paths from mark 1 (loop-back and exit), got %d", len(ps))
	}

	var sawLoopBack, sawExit bool
	for _, p := range ps {
		if p.EndMark == ir.Mark(1) {
			sawLoopBack = true
			if len(p.Edges) != 2 {
				t.Errorf("expected loop-back path to have 2 edges (header->body->header), got %d", len(p.Edges))
			}
		}
		if p.EndMark == ir.Exit {
			sawExit = true
			if len(p.Edges) != 1 {
				t.Errorf("expected exit path to have 1 edge (header->exit), got %d", len(p.Edges))
			}
		}
	}
	if !sawLoopBack || !sawExit {
		t.Errorf("expected both a loop-back and an exit path, got %+v", ps)
	}
}

func TestEnumerateEntryHasOnePath(t *testing.T) {
	f := buildLoop()
	header := f.Entry + 1
	mm := markMapFor(f, header)

	res, err := Enumerate(f, mm)
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	ps := res.ByMark[ir.Entry]
	if len(ps) != 1 {
		t.Fatalf("expected 1 path from ENTRY, got %d", len(ps))
	}
	if ps[0].EndMark != ir.Mark(1) {
		t.Errorf("expected ENTRY path to end at mark 1, got %v", ps[0].EndMark)
	}
}

func TestCycleErrorOnUnmarkedLoop(t *testing.T) {
	f := buildLoop()
	// Mark only ENTRY and EXIT; header/body are unmarked, so the loop
	// through them never terminates a path (violates the "marks
	// dominate loop headers" obligation).
	mm := &marks.Map{BlockMark: map[ir.BlockID]ir.Mark{}, MarkSet: map[ir.Mark][]ir.BlockID{}}
	mm.BlockMark[f.Entry] = ir.Entry
	mm.MarkSet[ir.Entry] = []ir.BlockID{f.Entry}
	mm.BlockMark[f.Exit] = ir.Exit
	mm.MarkSet[ir.Exit] = []ir.BlockID{f.Exit}

	_, err := Enumerate(f, mm)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("expected *CycleError, got %T: %v", err, err)
	}
}
