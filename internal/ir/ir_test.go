package ir

import (
	"strings"
	"testing"
)

// buildSimpleIf builds:
//
//	entry: br_if %c, then, join
//	then:  br join
//	join:  %r = phi(entry: %x, then: %y); return %r
func buildSimpleIf() *Function {
	f := &Function{Name: "f"}
	entry := f.NewBlock("entry")
	then := f.NewBlock("then")
	join := f.NewBlock("join")
	f.Entry = entry
	f.Exit = join

	c := f.NewValue("c", &BoolType{}, ValueArg, entry)
	x := f.NewValue("x", &IntType{Unbounded: true}, ValueArg, entry)
	y := f.NewValue("y", &IntType{Unbounded: true}, ValueArg, entry)
	f.Params = []Param{{Name: "c", Type: &BoolType{}, Value: c}, {Name: "x", Type: &IntType{Unbounded: true}, Value: x}, {Name: "y", Type: &IntType{Unbounded: true}, Value: y}}

	f.Block(entry).Term = &CondBranch{Cond: c, TrueTarget: then, FalseTarget: join}
	f.Block(then).Term = &Branch{Target: join}

	r := f.NewValue("r", &IntType{Unbounded: true}, ValueInst, join)
	f.Block(join).Phis = []*Phi{{Result: r, Inputs: map[BlockID]ValueID{entry: x, then: y}}}
	f.Block(join).Term = &Return{Value: r}

	return f
}

func TestFunctionArena(t *testing.T) {
	f := buildSimpleIf()
	if len(f.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(f.Blocks))
	}
	if f.Block(f.Entry).Label != "entry" {
		t.Errorf("expected entry block labeled entry, got %s", f.Block(f.Entry).Label)
	}
}

func TestPredecessors(t *testing.T) {
	f := buildSimpleIf()
	preds := f.Predecessors()
	if len(preds[f.Exit]) != 2 {
		t.Fatalf("expected join to have 2 predecessors, got %d", len(preds[f.Exit]))
	}
}

func TestLiveAtJoinIncludesPhiAndParams(t *testing.T) {
	f := buildSimpleIf()
	live := f.LiveAt(f.Exit)
	names := map[string]bool{}
	for _, v := range live {
		names[v.Name] = true
	}
	for _, want := range []string{"c", "x", "y", "r"} {
		if !names[want] {
			t.Errorf("expected %q live at join, got %v", want, Names(live))
		}
	}
}

func TestPrintIncludesBlocksAndTerminators(t *testing.T) {
	f := buildSimpleIf()
	out := Print(f)
	for _, want := range []string{"function f(", "entry:", "br_if", "join:", "return r"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected printed output to contain %q, got:\n%s", want, out)
		}
	}
}
