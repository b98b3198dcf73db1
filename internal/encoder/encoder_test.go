package encoder

import (
	"strings"
	"testing"

	"kanso/internal/ir"
	"kanso/internal/marks"
	"kanso/internal/options"
	"kanso/internal/preprocess"
	"kanso/internal/smt"
)

// identityFn builds a single-block "return x" procedure: entry and exit
// coincide, so marks.Analyze collapses the block's mark onto ir.Exit
// (the Exit check in Analyze's assign loop runs last and wins) rather
// than ir.Entry — spec.md §8's S1 fixture exercises exactly this case.
func identityFn() *ir.Function {
	f := &ir.Function{Name: "main"}
	entry := f.NewBlock("entry")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	x := f.NewValue("x", intT, ir.ValueArg, entry)
	f.Params = []ir.Param{{Name: "x", Type: intT, Value: x}}
	f.ReturnType = intT
	f.Block(entry).Term = &ir.Return{Value: x}

	return f
}

// preprocessSide runs the full per-program pipeline a caller of
// encoder.Generate is expected to have already run: exit unification,
// mark analysis, then the C4 normalisation passes (whose last pass
// suffixes every named value with "$<idx>").
func preprocessSide(f *ir.Function, idx int, opts options.Options) (*marks.Map, error) {
	preprocess.UnifyExits(f)
	mm, err := marks.Analyze(f)
	if err != nil {
		return nil, err
	}
	if _, err := preprocess.Run(f, mm, idx, opts); err != nil {
		return nil, err
	}
	return mm, nil
}

func mustModule(t *testing.T, f *ir.Function) *ir.Module {
	t.Helper()
	return &ir.Module{Name: f.Name, Functions: []*ir.Function{f}, Externals: map[string]*ir.Function{}}
}

func renderAll(out []smt.Expr) string {
	lines := make([]string, len(out))
	for i, e := range out {
		lines[i] = smt.ToSExpr(e)
	}
	return strings.Join(lines, "\n")
}

func TestGenerateIdentityFunctionCollapsesEntryOntoExit(t *testing.T) {
	opts := options.Default()

	f1 := identityFn()
	if _, err := preprocessSide(f1, 1, opts); err != nil {
		t.Fatalf("preprocess side 1: %v", err)
	}
	f2 := identityFn()
	if _, err := preprocessSide(f2, 2, opts); err != nil {
		t.Fatalf("preprocess side 2: %v", err)
	}

	out, err := Generate(Input{Mod1: mustModule(t, f1), Mod2: mustModule(t, f2), Opts: opts})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rendered := renderAll(out)

	wantEntry := "(assert (forall ((x$1 Int) (x$2 Int)) (=> (= x$1 x$2) (INV_MAIN_EXIT x$1 x$2))))"
	if !strings.Contains(rendered, wantEntry) {
		t.Errorf("missing entry implication %q in:\n%s", wantEntry, rendered)
	}

	wantExit := "(assert (forall ((x$1 Int) (x$2 Int)) (=> (INV_MAIN_EXIT x$1 x$2) (= x$1 x$2))))"
	if !strings.Contains(rendered, wantExit) {
		t.Errorf("missing exit implication %q in:\n%s", wantExit, rendered)
	}

	if !strings.Contains(rendered, "(declare-fun INV_MAIN_EXIT (Int Int) Bool)") {
		t.Errorf("missing INV_MAIN_EXIT declaration in:\n%s", rendered)
	}
	if !strings.Contains(rendered, "(check-sat)") {
		t.Errorf("missing check-sat in:\n%s", rendered)
	}
	// A single-block identity function never carries mark ir.Entry, so
	// no separate INV_MAIN_ENTRY predicate should ever be declared.
	if strings.Contains(rendered, "INV_MAIN_ENTRY") {
		t.Errorf("unexpected INV_MAIN_ENTRY for a function whose entry block collapses onto EXIT:\n%s", rendered)
	}
}

// buildLoopFn builds a counting loop synchronised at mark 1, matching
// spec.md §8's S2 scenario shape:
//
//	entry: br header
//	header: i0 = phi(entry: n, body: i1); __mark(1); cond = i0 > 1
//	        br_if (mark1 && cond), body, exit
//	body:   i1 = i0 - 1; br header
//	exit:   return i0
func buildLoopFn() *ir.Function {
	f := &ir.Function{Name: "count"}
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	n := f.NewValue("n", intT, ir.ValueArg, entry)
	f.Params = []ir.Param{{Name: "n", Type: intT, Value: n}}
	f.ReturnType = intT
	f.Block(entry).Term = &ir.Branch{Target: header}

	i0 := f.NewValue("i0", intT, ir.ValueInst, header)
	markLit := f.NewValue("", intT, ir.ValueConst, -1)
	f.Value(markLit).Const = 1
	markCall := f.NewValue("", &ir.BoolType{}, ir.ValueInst, header)
	cond := f.NewValue("", &ir.BoolType{}, ir.ValueInst, header)
	gated := f.NewValue("", &ir.BoolType{}, ir.ValueInst, header)
	i1 := f.NewValue("i1", intT, ir.ValueInst, body)

	f.Block(header).Phis = []*ir.Phi{{Result: i0, Inputs: map[ir.BlockID]ir.ValueID{entry: n, body: i1}}}
	f.Block(header).Insts = []ir.Inst{
		{Op: ir.OpCall, Result: markCall, Callee: "__mark", Operands: []ir.ValueID{markLit}, Block: header},
		{Op: ir.OpBinary, Result: cond, Symbol: ">", Operands: []ir.ValueID{i0, markLit}, Block: header},
		{Op: ir.OpBinary, Result: gated, Symbol: "&&", Operands: []ir.ValueID{markCall, cond}, Block: header},
	}
	f.Block(header).Term = &ir.CondBranch{Cond: gated, TrueTarget: body, FalseTarget: exit}

	f.Block(body).Insts = []ir.Inst{
		{Op: ir.OpBinary, Result: i1, Symbol: "-", Operands: []ir.ValueID{i0, markLit}, Block: body},
	}
	f.Block(body).Term = &ir.Branch{Target: header}

	f.Block(exit).Term = &ir.Return{Value: i0}
	return f
}

// directReturnFn is count's counterpart on the other program: its
// header calls __mark(1) but returns directly instead of branching, so
// marks.Analyze labels it EXIT rather than mark 1 (a mark label needs a
// conditional branch). paths2.ByMark[1] is therefore empty, never
// holding a path back to 1, and the only coupling available for count's loop-back path
// is the unconditional stutter (spec.md §8's S2: "paths_2(1,1) has
// zero").
func directReturnFn() *ir.Function {
	f := &ir.Function{Name: "count"}
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	n := f.NewValue("n", intT, ir.ValueArg, entry)
	f.Params = []ir.Param{{Name: "n", Type: intT, Value: n}}
	f.ReturnType = intT
	f.Block(entry).Term = &ir.Branch{Target: header}

	markLit := f.NewValue("", intT, ir.ValueConst, -1)
	f.Value(markLit).Const = 1
	markCall := f.NewValue("", &ir.BoolType{}, ir.ValueInst, header)
	f.Block(header).Insts = []ir.Inst{
		{Op: ir.OpCall, Result: markCall, Callee: "__mark", Operands: []ir.ValueID{markLit}, Block: header},
	}
	f.Block(header).Term = &ir.Return{Value: n}
	return f
}

func TestGenerateLoopHeaderStutterCouplesAsymmetricPaths(t *testing.T) {
	opts := options.Default()

	f1 := buildLoopFn()
	if _, err := preprocessSide(f1, 1, opts); err != nil {
		t.Fatalf("preprocess side 1: %v", err)
	}
	f2 := directReturnFn()
	if _, err := preprocessSide(f2, 2, opts); err != nil {
		t.Fatalf("preprocess side 2: %v", err)
	}

	out, err := Generate(Input{Mod1: mustModule(t, f1), Mod2: mustModule(t, f2), Opts: opts})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rendered := renderAll(out)

	if !strings.Contains(rendered, "(declare-fun INV_MAIN_1 ") {
		t.Errorf("missing INV_MAIN_1 declaration in:\n%s", rendered)
	}
	// The loop-continuation path on program 1 has no mark-1 partner on
	// program 2, so its only coupling is a stutter: program1's header
	// predicate implies itself again with program2's free variables and
	// heap passed through unchanged.
	if !strings.Contains(rendered, "INV_MAIN_1") {
		t.Errorf("expected at least one INV_MAIN_1 reference in:\n%s", rendered)
	}
}

// TestGenerateOffByNGatesSymmetricLoopStutter pairs count against
// itself, so both sides have a same-mark loop-back path at mark 1
// (spec.md §8's S3, as opposed to directReturnFn's S2 above where only
// one side loops). Without --off-by-n, a mismatched iteration count
// between the two copies of the loop is never coupled, so the solver is
// expected to answer unknown/sat rather than unsat; with it, exactly
// one stutter implication per side is added.
func TestGenerateOffByNGatesSymmetricLoopStutter(t *testing.T) {
	render := func(offByN bool) string {
		opts := options.Default()
		opts.OffByN = offByN

		f1 := buildLoopFn()
		if _, err := preprocessSide(f1, 1, opts); err != nil {
			t.Fatalf("preprocess side 1: %v", err)
		}
		f2 := buildLoopFn()
		if _, err := preprocessSide(f2, 2, opts); err != nil {
			t.Fatalf("preprocess side 2: %v", err)
		}

		out, err := Generate(Input{Mod1: mustModule(t, f1), Mod2: mustModule(t, f2), Opts: opts})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return renderAll(out)
	}

	without := render(false)
	with := render(true)
	countAsserts := func(s string) int { return strings.Count(s, "(assert (forall") }

	if got, base := countAsserts(with), countAsserts(without); got != base+2 {
		t.Errorf("expected --off-by-n to add exactly 2 stutter assertions when both sides loop at the same mark, got %d without vs %d with", base, got)
	}
}

// TestGenerateOnlyRecSkipsSameMarkCoupling exercises spec.md §6's
// "--only-rec skips loop-unrolling in favour of recursive summaries":
// every Cartesian path-pair coupling (Entry->1, the 1->1 loop, and
// 1->Exit) must disappear, leaving only the fixed ENTRY/EXIT boundary
// assertions.
func TestGenerateOnlyRecSkipsSameMarkCoupling(t *testing.T) {
	render := func(onlyRec bool) string {
		opts := options.Default()
		opts.OnlyRec = onlyRec

		f1 := buildLoopFn()
		if _, err := preprocessSide(f1, 1, opts); err != nil {
			t.Fatalf("preprocess side 1: %v", err)
		}
		f2 := buildLoopFn()
		if _, err := preprocessSide(f2, 2, opts); err != nil {
			t.Fatalf("preprocess side 2: %v", err)
		}

		out, err := Generate(Input{Mod1: mustModule(t, f1), Mod2: mustModule(t, f2), Opts: opts})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return renderAll(out)
	}

	without := render(false)
	with := render(true)
	countAsserts := func(s string) int { return strings.Count(s, "(assert (forall") }

	if got, base := countAsserts(with), countAsserts(without); got != base-3 {
		t.Errorf("expected --only-rec to drop exactly 3 path-coupling assertions, got %d without vs %d with", base, got)
	}
}

// heapRoundTripFn builds "store(x, p); return load(p)" over a single
// pointer parameter, exercising heap threading through a mark-free
// straight-line path (spec.md §8's S6).
func heapRoundTripFn() *ir.Function {
	f := &ir.Function{Name: "roundtrip"}
	entry := f.NewBlock("entry")
	f.Entry = entry

	intT := &ir.IntType{Unbounded: true}
	ptrT := &ir.PointerType{Pointee: intT}
	p := f.NewValue("p", ptrT, ir.ValueArg, entry)
	x := f.NewValue("x", intT, ir.ValueArg, entry)
	f.Params = []ir.Param{{Name: "p", Type: ptrT, Value: p}, {Name: "x", Type: intT, Value: x}}
	f.ReturnType = intT

	loaded := f.NewValue("loaded", intT, ir.ValueInst, entry)
	f.Block(entry).Insts = []ir.Inst{
		{Op: ir.OpStore, Operands: []ir.ValueID{x}, Addr: p, Block: entry},
		{Op: ir.OpLoad, Result: loaded, Addr: p, Block: entry},
	}
	f.Block(entry).Term = &ir.Return{Value: loaded}
	return f
}

func TestGenerateHeapStoreLoadThreadsHeapArray(t *testing.T) {
	opts := options.Default()
	opts.Memory = options.MemoryHeap

	f1 := heapRoundTripFn()
	if _, err := preprocessSide(f1, 1, opts); err != nil {
		t.Fatalf("preprocess side 1: %v", err)
	}
	f2 := heapRoundTripFn()
	if _, err := preprocessSide(f2, 2, opts); err != nil {
		t.Fatalf("preprocess side 2: %v", err)
	}

	out, err := Generate(Input{Mod1: mustModule(t, f1), Mod2: mustModule(t, f2), Opts: opts})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rendered := renderAll(out)

	if !strings.Contains(rendered, "(store HEAP$1 p$1 x$1)") {
		t.Errorf("missing store into HEAP$1 in:\n%s", rendered)
	}
	if !strings.Contains(rendered, "(store HEAP$2 p$2 x$2)") {
		t.Errorf("missing store into HEAP$2 in:\n%s", rendered)
	}
	if !strings.Contains(rendered, "(select ") {
		t.Errorf("missing select against the stored heap in:\n%s", rendered)
	}
	if !strings.Contains(rendered, "HEAP$1 HEAP$2") {
		t.Errorf("expected the mark signature to carry both heap arrays in:\n%s", rendered)
	}
}

func TestGenerateRejectsArityMismatch(t *testing.T) {
	f1 := identityFn()
	preprocessSide(f1, 1, options.Default())
	mod1 := mustModule(t, f1)
	mod2 := &ir.Module{Name: "empty", Functions: nil, Externals: map[string]*ir.Function{}}

	_, err := Generate(Input{Mod1: mod1, Mod2: mod2, Opts: options.Default()})
	if err == nil {
		t.Fatalf("expected an arity-mismatch error, got nil")
	}
}
