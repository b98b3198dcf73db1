package preprocess

import (
	"testing"

	"kanso/internal/ir"
	"kanso/internal/marks"
	"kanso/internal/options"
)

func TestUnifyExitsMergesMultipleReturns(t *testing.T) {
	f := &ir.Function{Name: "f", ReturnType: &ir.IntType{Unbounded: true}}
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	f.Entry = entry

	c := f.NewValue("c", &ir.BoolType{}, ir.ValueArg, entry)
	f.Block(entry).Term = &ir.CondBranch{Cond: c, TrueTarget: left, FalseTarget: right}

	a := f.NewValue("a", &ir.IntType{Unbounded: true}, ir.ValueArg, entry)
	b := f.NewValue("b", &ir.IntType{Unbounded: true}, ir.ValueArg, entry)
	f.Block(left).Term = &ir.Return{Value: a}
	f.Block(right).Term = &ir.Return{Value: b}

	UnifyExits(f)

	if f.Exit == left || f.Exit == right {
		t.Fatalf("expected a synthesized unified exit block, got existing block %d", f.Exit)
	}
	if _, ok := f.Block(left).Term.(*ir.Branch); !ok {
		t.Errorf("expected left's return to become a branch to the unified exit")
	}
	ret, ok := f.Block(f.Exit).Term.(*ir.Return)
	if !ok {
		t.Fatalf("expected unified exit to terminate in a return")
	}
	if len(f.Block(f.Exit).Phis) != 1 {
		t.Fatalf("expected unified exit to merge return values via one phi")
	}
	if f.Block(f.Exit).Phis[0].Result != ret.Value {
		t.Errorf("expected the return value to be the phi result")
	}
}

func TestUnifyExitsReusesSingleReturn(t *testing.T) {
	f := &ir.Function{Name: "f", ReturnType: &ir.IntType{Unbounded: true}}
	entry := f.NewBlock("entry")
	f.Entry = entry
	a := f.NewValue("a", &ir.IntType{Unbounded: true}, ir.ValueArg, entry)
	f.Block(entry).Term = &ir.Return{Value: a}

	UnifyExits(f)
	if f.Exit != entry {
		t.Errorf("expected single-return function to reuse its only block as Exit")
	}
}

func TestRunStripsMarkIntrinsicAndAnnotatesStack(t *testing.T) {
	f := &ir.Function{Name: "f", ReturnType: &ir.IntType{Unbounded: true}}
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	exit := f.NewBlock("exit")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	n := f.NewValue("n", intT, ir.ValueArg, entry)
	f.Block(entry).Term = &ir.Branch{Target: header}

	ptr := f.NewValue("p", &ir.PointerType{Pointee: intT}, ir.ValueInst, header)
	markLit := f.NewValue("1", intT, ir.ValueConst, -1)
	f.Value(markLit).Const = 1
	markCall := f.NewValue("m", &ir.BoolType{}, ir.ValueInst, header)
	loaded := f.NewValue("loaded", intT, ir.ValueInst, header)
	gated := f.NewValue("gated", &ir.BoolType{}, ir.ValueInst, header)

	f.Block(header).Insts = []ir.Inst{
		{Op: ir.OpCall, Result: ptr, Callee: "__stack_alloc", Block: header},
		{Op: ir.OpCall, Result: markCall, Callee: "__mark", Operands: []ir.ValueID{markLit}, Block: header},
		{Op: ir.OpLoad, Result: loaded, Addr: ptr, Block: header},
		{Op: ir.OpBinary, Result: gated, Symbol: "&&", Operands: []ir.ValueID{markCall, n}, Block: header},
	}
	f.Block(header).Term = &ir.CondBranch{Cond: gated, TrueTarget: exit, FalseTarget: exit}
	f.Block(exit).Term = &ir.Return{Value: n}

	UnifyExits(f)
	mm, err := marks.Analyze(f)
	if err != nil {
		t.Fatalf("marks.Analyze: %v", err)
	}

	res, err := Run(f, mm, 1, options.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	cb := f.Block(header).Term.(*ir.CondBranch)
	if cb.Cond != n {
		t.Errorf("expected mark conjunct stripped leaving bare cond n, got value %d", cb.Cond)
	}
	for _, inst := range f.Block(header).Insts {
		if inst.Op == ir.OpCall && inst.Callee == "__mark" {
			t.Fatalf("expected __mark call to be removed")
		}
		if inst.Op == ir.OpLoad && !inst.IsStackAccess {
			t.Errorf("expected load from stack pointer to be annotated IsStackAccess")
		}
	}
	if !res.StackPointer[ptr] {
		t.Errorf("expected ptr to be recorded as a stack pointer")
	}
	if f.Value(n).Name != "n$1" {
		t.Errorf("expected program-index renaming to suffix n with $1, got %q", f.Value(n).Name)
	}
}

func TestRunSkipLoopPreparationCollapsesSelfLoop(t *testing.T) {
	f := &ir.Function{Name: "f", ReturnType: &ir.IntType{Unbounded: true}}
	entry := f.NewBlock("entry")
	prep := f.NewBlock("prep")
	exit := f.NewBlock("exit")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	n := f.NewValue("n", intT, ir.ValueArg, entry)
	cond := f.NewValue("cond", &ir.BoolType{}, ir.ValueArg, entry)
	f.Block(entry).Term = &ir.Branch{Target: prep}
	f.Block(prep).Term = &ir.CondBranch{Cond: cond, TrueTarget: prep, FalseTarget: exit}
	f.Block(exit).Term = &ir.Return{Value: n}

	UnifyExits(f)
	mm, err := marks.Analyze(f)
	if err != nil {
		t.Fatalf("marks.Analyze: %v", err)
	}

	opts := options.Default()
	opts.SkipLoopPreparation = true
	if _, err := Run(f, mm, 1, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	br, ok := f.Block(prep).Term.(*ir.Branch)
	if !ok {
		t.Fatalf("expected prep's CondBranch to collapse into an unconditional Branch, got %T", f.Block(prep).Term)
	}
	if br.Target != exit {
		t.Errorf("expected collapsed branch to target exit, got block %d", br.Target)
	}
}

func TestRunWithoutSkipLoopPreparationLeavesSelfLoopIntact(t *testing.T) {
	f := &ir.Function{Name: "f", ReturnType: &ir.IntType{Unbounded: true}}
	entry := f.NewBlock("entry")
	prep := f.NewBlock("prep")
	exit := f.NewBlock("exit")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	n := f.NewValue("n", intT, ir.ValueArg, entry)
	cond := f.NewValue("cond", &ir.BoolType{}, ir.ValueArg, entry)
	f.Block(entry).Term = &ir.Branch{Target: prep}
	f.Block(prep).Term = &ir.CondBranch{Cond: cond, TrueTarget: prep, FalseTarget: exit}
	f.Block(exit).Term = &ir.Return{Value: n}

	UnifyExits(f)
	mm, err := marks.Analyze(f)
	if err != nil {
		t.Fatalf("marks.Analyze: %v", err)
	}

	if _, err := Run(f, mm, 1, options.Default()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := f.Block(prep).Term.(*ir.CondBranch); !ok {
		t.Fatalf("expected prep's self-loop to survive when SkipLoopPreparation is false, got %T", f.Block(prep).Term)
	}
}
