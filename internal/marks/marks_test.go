package marks

import (
	"testing"

	"kanso/internal/ir"
)

// buildLoop builds:
//
//	entry: br header
//	header: %i0 = phi(entry: %i_init, body: %i1)
//	        %m = call __mark(1)
//	        %cond = i0 <= n
//	        %gated = m && cond      ; conceptually "__mark(1) & (i<=n)"
//	        br_if gated, body, exit
//	body:   %i1 = i0 + 1; br header
//	exit:   return i0
func buildLoop() (*ir.Function, ir.ValueID /*mark call result*/) {
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
	f.Params = []ir.Param{{Name: "n", Type: intT, Value: n}, {Name: "i_init", Type: intT, Value: iInit}}
	f.Block(entry).Term = &ir.Branch{Target: header}

	i0 := f.NewValue("i0", intT, ir.ValueInst, header)
	markLit := f.NewValue("1", intT, ir.ValueConst, -1)
	f.Value(markLit).Const = 1
	markCall := f.NewValue("mark1", &ir.BoolType{}, ir.ValueInst, header)
	cond := f.NewValue("cond", &ir.BoolType{}, ir.ValueInst, header)
	gated := f.NewValue("gated", &ir.BoolType{}, ir.ValueInst, header)

	i1 := f.NewValue("i1", intT, ir.ValueInst, body)

	f.Block(header).Phis = []*ir.Phi{{Result: i0, Inputs: map[ir.BlockID]ir.ValueID{entry: iInit, body: i1}}}
	f.Block(header).Insts = []ir.Inst{
		{Op: ir.OpCall, Result: markCall, Callee: "__mark", Operands: []ir.ValueID{markLit}, Block: header},
		{Op: ir.OpBinary, Result: cond, Symbol: "<=", Operands: []ir.ValueID{i0, n}, Block: header},
		{Op: ir.OpBinary, Result: gated, Symbol: "&&", Operands: []ir.ValueID{markCall, cond}, Block: header},
	}
	f.Block(header).Term = &ir.CondBranch{Cond: gated, TrueTarget: body, FalseTarget: exit}

	f.Block(body).Insts = []ir.Inst{
		{Op: ir.OpBinary, Result: i1, Symbol: "+", Operands: []ir.ValueID{i0, iInit}, Block: body},
	}
	f.Block(body).Term = &ir.Branch{Target: header}

	f.Block(exit).Term = &ir.Return{Value: i0}

	return f, markCall
}

func TestAnalyzeAssignsLoopMark(t *testing.T) {
	f, _ := buildLoop()
	m, err := Analyze(f)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if m.MarkOf(f.Entry) != ir.Entry {
		t.Errorf("expected entry block to carry ir.Entry")
	}
	if m.MarkOf(f.Exit) != ir.Exit {
		t.Errorf("expected exit block to carry ir.Exit")
	}
	header := f.Entry + 1
	if m.MarkOf(header) != ir.Mark(1) {
		t.Errorf("expected header block to carry mark 1, got %v", m.MarkOf(header))
	}
	body := header + 1
	if m.MarkOf(body) != ir.NoMark {
		t.Errorf("expected body block to carry NoMark, got %v", m.MarkOf(body))
	}
}

func TestAnalyzeDetectsConflict(t *testing.T) {
	f, _ := buildLoop()
	// Force a conflict: re-point f.Exit at the header (same block
	// reachable under both EXIT and mark 1).
	f.Exit = f.Entry + 1 // the header block
	_, err := Analyze(f)
	if err == nil {
		t.Fatal("expected a conflict error when a block is forced into two marks")
	}
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected *ConflictError, got %T: %v", err, err)
	}
}
