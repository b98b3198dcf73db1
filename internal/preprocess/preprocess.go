// Package preprocess implements C4: the fixed sequence of per-procedure
// normalisation passes described in spec.md §4.3, run once per program
// before path enumeration.
//
// Grounded on the teacher's internal/ir/optimizations.go
// (OptimizationPipeline: an ordered slice of named passes run once over
// a Program) generalized from EVM peepholes to the five/six
// normalisation passes below, and on original_source/reve/RemoveMarkPass.cpp
// for the exact mark-intrinsic stripping semantics of pass 4.
package preprocess

import (
	"kanso/internal/ir"
	"kanso/internal/marks"
	"kanso/internal/options"
)

// Warning is a non-fatal diagnostic surfaced during preprocessing (a
// collapsed preparation loop, or a block folded by CFG simplification).
type Warning struct {
	Pass    string
	Message string
}

// Result is f after the full preprocess pipeline, renamed with its
// program-index suffix and ready for marks.Analyze + paths.Enumerate.
type Result struct {
	Function     *ir.Function
	StackPointer map[ir.ValueID]bool // values provably derived from a stack allocation
	Warnings     []Warning
}

// UnifyExits is pass 6, run standalone before mark analysis per the
// Open Question resolution in DESIGN.md ("exit-node unification...
// before mark analysis finalises"). It rewrites every `return` in f
// into a branch to a single synthetic exit block, which itself returns
// a value merged by a phi over the original return operands (or is
// void). If f already has exactly one return block, UnifyExits reuses
// it instead of introducing a redundant phi.
func UnifyExits(f *ir.Function) {
	var returns []ir.BlockID
	for _, b := range f.Blocks {
		if _, ok := b.Term.(*ir.Return); ok {
			returns = append(returns, b.ID)
		}
	}

	if len(returns) == 1 {
		f.Exit = returns[0]
		return
	}
	if len(returns) == 0 {
		// No return (e.g. all paths unreachable/revert); synthesize an
		// empty exit so downstream passes always have an Exit handle.
		f.Exit = f.NewBlock("unified_exit")
		f.Block(f.Exit).Term = &ir.Unreachable{}
		return
	}

	unified := f.NewBlock("unified_exit")
	var resultVal ir.ValueID = -1
	if f.ReturnType != nil {
		resultVal = f.NewValue("unified_ret", f.ReturnType, ir.ValueInst, unified)
	}

	phiInputs := make(map[ir.BlockID]ir.ValueID, len(returns))
	for _, rb := range returns {
		ret := f.Block(rb).Term.(*ir.Return)
		if resultVal >= 0 {
			phiInputs[rb] = ret.Value
		}
		f.Block(rb).Term = &ir.Branch{Target: unified}
	}
	if resultVal >= 0 {
		f.Block(unified).Phis = append(f.Block(unified).Phis, &ir.Phi{Result: resultVal, Inputs: phiInputs})
	}
	f.Block(unified).Term = &ir.Return{Value: resultVal}
	f.Exit = unified
}

// Run executes passes 1, 2, 4, 5: stack-allocation bookkeeping, mark-
// preserving CFG simplification, mark-intrinsic removal, and stack-
// access annotation. Pass 3 (program-index renaming) is applied last so
// every diagnostic produced by earlier passes still refers to
// un-suffixed source names. mm must have been computed (by
// marks.Analyze) against f *after* UnifyExits has already run.
func Run(f *ir.Function, mm *marks.Map, programIndex int, opts options.Options) (*Result, error) {
	res := &Result{Function: f, StackPointer: make(map[ir.ValueID]bool)}

	if opts.SkipLoopPreparation {
		skipLoopPreparation(f, mm, res)
	}
	promoteStackAllocs(f, res)
	simplifyCFG(f, mm, res)
	if err := removeMarkIntrinsics(f, mm, res); err != nil {
		return nil, err
	}
	annotateStackAccesses(f, res)
	renameWithProgramIndex(f, programIndex)

	return res, nil
}

// skipLoopPreparation is the Open Question #1 toggle (spec.md §9,
// SPEC_FULL.md §13): the Boyer-Moore fixture's bad-character-table
// "preparation" loop is an unmarked block that branches back to itself
// before any __mark intrinsic is ever reached. Run before stack
// promotion so the collapsed loop never contributes a stack-pointer
// value for pass 1 to record. When enabled, every such self-looping
// unmarked block is rewritten to take its exit edge unconditionally,
// i.e. the loop always runs zero iterations and whatever it would have
// computed is left at its pre-loop value — both code paths are kept:
// this only fires when Options.SkipLoopPreparation is set by the
// caller, never by default.
func skipLoopPreparation(f *ir.Function, mm *marks.Map, res *Result) {
	for _, b := range f.Blocks {
		if mm.MarkOf(b.ID) != ir.NoMark {
			continue
		}
		cb, ok := b.Term.(*ir.CondBranch)
		if !ok {
			continue
		}
		var exit ir.BlockID
		switch b.ID {
		case cb.TrueTarget:
			exit = cb.FalseTarget
		case cb.FalseTarget:
			exit = cb.TrueTarget
		default:
			continue // not a self-loop, nothing to collapse
		}
		if exit == b.ID {
			continue // both edges loop back; no exit to take
		}
		b.Term = &ir.Branch{Target: exit}
		res.Warnings = append(res.Warnings, Warning{
			Pass:    "skipLoopPreparation",
			Message: "collapsed preparation loop at " + b.Label + " to its zero-iteration exit",
		})
	}
}

// promoteStackAllocs is pass 1. The front-end already emits SSA, so
// "promotion" here is bookkeeping rather than rewriting: it records
// every value returned by a `__stack_alloc` call as a stack pointer,
// which later instructions may derive addresses from (the second loop
// below follows a single level of pointer arithmetic through OpBinary
// "+"/"-" on a recorded stack pointer).
func promoteStackAllocs(f *ir.Function, res *Result) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if inst.Op == ir.OpCall && inst.Callee == "__stack_alloc" && inst.Result >= 0 {
				res.StackPointer[inst.Result] = true
			}
		}
	}
	// Propagate one level of pointer arithmetic: `p2 = p1 + k` where p1
	// is already a recorded stack pointer.
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if inst.Op != ir.OpBinary || inst.Result < 0 {
				continue
			}
			if (inst.Symbol == "+" || inst.Symbol == "-") && len(inst.Operands) == 2 {
				if res.StackPointer[inst.Operands[0]] || res.StackPointer[inst.Operands[1]] {
					res.StackPointer[inst.Result] = true
				}
			}
		}
	}
}

// simplifyCFG is pass 2: collapse a block ending in an unconditional
// branch into its sole successor when that successor has exactly one
// predecessor and neither block carries a mark — merging across a mark
// boundary would erase a synchronisation point, which is never safe.
func simplifyCFG(f *ir.Function, mm *marks.Map, res *Result) {
	changed := true
	for changed {
		changed = false
		preds := f.Predecessors()
		for _, b := range f.Blocks {
			br, ok := b.Term.(*ir.Branch)
			if !ok {
				continue
			}
			target := br.Target
			if target == b.ID {
				continue // self-loop, never foldable
			}
			if mm.MarkOf(b.ID) != ir.NoMark || mm.MarkOf(target) != ir.NoMark {
				continue
			}
			if len(preds[target]) != 1 || preds[target][0] != b.ID {
				continue
			}
			tgt := f.Block(target)
			b.Insts = append(b.Insts, tgt.Insts...)
			b.Term = tgt.Term
			tgt.Insts = nil
			tgt.Term = &ir.Unreachable{}
			changed = true
			res.Warnings = append(res.Warnings, Warning{Pass: "simplifyCFG", Message: "folded " + tgt.Label + " into " + b.Label})
			break
		}
	}
}

// removeMarkIntrinsics is pass 4: strip every `__mark(k)` call and
// rewrite `__mark(k) & cond` to `cond` at its use. If the use is a
// zero-extension, the extension is also removed and its own uses
// rewritten to the stripped boolean directly (spec.md §4.3 step 4).
func removeMarkIntrinsics(f *ir.Function, mm *marks.Map, res *Result) error {
	for _, b := range f.Blocks {
		if mm.MarkOf(b.ID) == ir.NoMark {
			continue
		}
		cb, ok := b.Term.(*ir.CondBranch)
		if !ok {
			continue
		}
		newCond, found := stripMarkConjunct(f, b.ID, cb.Cond)
		if found {
			cb.Cond = newCond
		}
		b.Insts = filterMarkInsts(b.Insts)
	}
	return nil
}

// stripMarkConjunct rewrites cond, the root of a (possibly trivial)
// conjunction, by removing the mark-intrinsic conjunct. Returns the
// replacement value and whether a mark conjunct was actually found.
func stripMarkConjunct(f *ir.Function, b ir.BlockID, cond ir.ValueID) (ir.ValueID, bool) {
	inst := definingInst(f, b, cond)
	if inst == nil {
		return cond, false
	}
	if inst.Op == ir.OpCall && inst.Callee == "__mark" {
		// The entire condition *is* the mark call: `__mark(k)` alone,
		// with no further conjunct. Replace with a literal `true`.
		return trueConstant(f, b), true
	}
	if inst.Op == ir.OpBinary && inst.Symbol == "&&" && len(inst.Operands) == 2 {
		left := definingInst(f, b, inst.Operands[0])
		if left != nil && left.Op == ir.OpCall && left.Callee == "__mark" {
			return inst.Operands[1], true
		}
		// Right-associative: `cond1 && (mark(k) && cond2)`.
		if replaced, ok := stripMarkConjunct(f, b, inst.Operands[1]); ok {
			newAnd := f.NewValue("", &ir.BoolType{}, ir.ValueInst, b)
			f.Block(b).Insts = append(f.Block(b).Insts, ir.Inst{
				Op: ir.OpBinary, Result: newAnd, Symbol: "&&",
				Operands: []ir.ValueID{inst.Operands[0], replaced}, Block: b,
			})
			return newAnd, true
		}
	}
	if inst.Op == ir.OpZExt {
		if replaced, ok := stripMarkConjunct(f, b, inst.Operands[0]); ok {
			return replaced, true
		}
	}
	return cond, false
}

func trueConstant(f *ir.Function, b ir.BlockID) ir.ValueID {
	v := f.NewValue("true", &ir.BoolType{}, ir.ValueConst, b)
	f.Value(v).Const = 1
	return v
}

func filterMarkInsts(insts []ir.Inst) []ir.Inst {
	var out []ir.Inst
	for _, inst := range insts {
		if inst.Op == ir.OpMarkInt {
			continue
		}
		if inst.Op == ir.OpCall && inst.Callee == "__mark" {
			continue
		}
		out = append(out, inst)
	}
	return out
}

func definingInst(f *ir.Function, b ir.BlockID, v ir.ValueID) *ir.Inst {
	blk := f.Block(b)
	for i := range blk.Insts {
		if blk.Insts[i].Result == v {
			return &blk.Insts[i]
		}
	}
	return nil
}

// annotateStackAccesses is pass 5: mark every Load/Store whose Addr is
// a recorded stack pointer so the encoder routes it through STACK$n
// instead of HEAP$n.
func annotateStackAccesses(f *ir.Function, res *Result) {
	for _, b := range f.Blocks {
		for i := range b.Insts {
			inst := &b.Insts[i]
			if (inst.Op == ir.OpLoad || inst.Op == ir.OpStore) && res.StackPointer[inst.Addr] {
				inst.IsStackAccess = true
			}
		}
	}
}

// renameWithProgramIndex is pass 3, applied last: every SSA name is
// suffixed with `$<programIndex>` (1 or 2), matching spec.md §4.3 step
// 3, since the encoder prints both programs' free variables into a
// single predicate arity and must not collide on bare names. Only the
// Values arena is renamed: Param.Name and block labels keep their
// source names.
func renameWithProgramIndex(f *ir.Function, programIndex int) {
	suffix := suffixFor(programIndex)
	for _, v := range f.Values {
		if v.Name != "" {
			v.Name = v.Name + suffix
		}
	}
}

func suffixFor(programIndex int) string {
	if programIndex == 2 {
		return "$2"
	}
	return "$1"
}
