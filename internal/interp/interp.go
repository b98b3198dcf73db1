package interp

import (
	"fmt"
	"math/big"

	"kanso/internal/diag"
	"kanso/internal/ir"
	"kanso/internal/marks"
	"kanso/internal/options"
)

// Interpreter evaluates one ir.Module's functions concretely. It holds
// no mutable run state of its own — Run/interpretFunction thread
// everything through their arguments and return values — so a single
// Interpreter value is safely reused (read-only, modulo addrs'
// deterministic-but-stateful address assignment) across concurrent
// worker goroutines in the work-queue pool (queue.go), matching
// SPEC_FULL.md §5's "no shared mutable IR state" policy. addrs guards
// its own maps with a mutex, so every worker can share one Interpreter
// per program; global/string addresses stabilize after the first call.
type Interpreter struct {
	Mod   *ir.Module
	Marks map[string]*marks.Map // per-function mark maps, for mark-sample recording
	Opts  options.Options

	addrs *addressBook
}

// New builds an Interpreter over mod. markMaps supplies the
// marks.Map for every function whose mark-carrying blocks should be
// sampled into a Trace; a function absent from markMaps is still
// interpreted, just without trace sampling (useful for a callee with
// no marks of its own).
func New(mod *ir.Module, markMaps map[string]*marks.Map, opts options.Options) *Interpreter {
	return &Interpreter{Mod: mod, Marks: markMaps, Opts: opts, addrs: newAddressBook()}
}

// Run interprets fnName from a fresh entry state built positionally
// from args, with every heap address defaulting to background, and
// returns both the full Call record and the mark-sample Trace
// collected along the way (spec.md §3, §4.6).
func (in *Interpreter) Run(fnName string, args []*big.Int, background int64) (*Call, *Trace, error) {
	f := in.Mod.FunctionByName(fnName)
	if f == nil {
		return nil, nil, fmt.Errorf("interp: unknown function %q", fnName)
	}

	entry := newState(NewHeap(background))
	for i, p := range f.Params {
		if i < len(args) {
			entry.Values[p.Value] = args[i]
		} else {
			entry.Values[p.Value] = big.NewInt(0)
		}
	}

	trace := &Trace{Function: fnName}
	budget := in.Opts.StepBudget
	call, err := in.interpretFunction(f, entry, &budget, trace)
	return call, trace, err
}

// interpretFunction walks f block by block from its entry, resolving
// phis against the previously-executed block, then the straight-line
// body, then the terminator — the same three-phase structure as
// original_source's interpretBlock (§4.6). budget is shared (by
// pointer) with every nested call so that "the remaining step budget
// is passed down and consumed" (spec.md §4.6) across recursive calls.
func (in *Interpreter) interpretFunction(f *ir.Function, entry State, budget *int, trace *Trace) (*Call, error) {
	call := &Call{Function: f.Name, Entry: entry.clone()}
	mm := in.Marks[f.Name]

	state := entry
	prev := ir.BlockID(-1)
	cur := f.Entry

	for {
		if *budget <= 0 {
			call.EarlyExit = true
			call.Fault = diag.BudgetExceeded(call.BlocksVisited, in.Opts.StepBudget)
			call.Return = state
			return call, nil
		}
		*budget--
		call.BlocksVisited++

		blk := f.Block(cur)
		state = in.interpretPhis(f, blk, prev, state)

		if mm != nil {
			if mk := mm.MarkOf(cur); mk != ir.NoMark {
				trace.Samples = append(trace.Samples, MarkSample{Mark: mk, Values: snapshotValues(state.Values)})
			}
		}

		step := &BlockStep{Block: cur, Label: blk.Label, Post: state.clone()}

		fault := in.interpretBody(f, blk, &state, budget, step)
		call.Steps = append(call.Steps, step)
		if fault != nil {
			call.EarlyExit = true
			call.Fault = fault
			call.Return = state
			return call, nil
		}

		next, done, err := in.interpretTerminator(f, blk, &state)
		if err != nil {
			return nil, err
		}
		if done {
			call.Return = state
			return call, nil
		}
		prev, cur = cur, next
	}
}

// interpretPhis resolves blk's phi nodes against prev (the block just
// exited), returning a state extended with the merged results. No-op
// for the entry block (prev < 0) or a block with no phis.
func (in *Interpreter) interpretPhis(f *ir.Function, blk *ir.Block, prev ir.BlockID, state State) State {
	if len(blk.Phis) == 0 || prev < 0 {
		return state
	}
	next := state.clone()
	for _, ph := range blk.Phis {
		if v, ok := ph.Inputs[prev]; ok {
			next.Values[ph.Result] = in.resolve(f, v, next)
		}
	}
	return next
}

// interpretBody evaluates every non-terminating instruction of blk in
// order, threading heap updates and nested calls into step, and
// returns a non-nil *diag.Diagnostic the instant a trap or unsupported
// opcode is hit (spec.md §4.6's failure semantics — it stops, it never
// substitutes a fallback value).
func (in *Interpreter) interpretBody(f *ir.Function, blk *ir.Block, state *State, budget *int, step *BlockStep) *diag.Diagnostic {
	for idx := range blk.Insts {
		inst := &blk.Insts[idx]
		switch inst.Op {
		case ir.OpConst, ir.OpZExt:
			if len(inst.Operands) == 1 {
				state.Values[inst.Result] = in.resolve(f, inst.Operands[0], *state)
			}
		case ir.OpBinary:
			if len(inst.Operands) == 1 {
				v, tr := unaryOp(inst.Symbol, in.resolve(f, inst.Operands[0], *state), in.Opts)
				if tr != nil {
					return tr.diag
				}
				state.Values[inst.Result] = v
				continue
			}
			a := in.resolve(f, inst.Operands[0], *state)
			b := in.resolve(f, inst.Operands[1], *state)
			v, tr := binOp(inst.Symbol, a, b, in.Opts)
			if tr != nil {
				return tr.diag
			}
			state.Values[inst.Result] = v
		case ir.OpLoad:
			addr := in.resolve(f, inst.Addr, *state)
			state.Values[inst.Result] = state.Heap.Load(addr)
		case ir.OpStore:
			addr := in.resolve(f, inst.Addr, *state)
			val := in.resolve(f, inst.Operands[0], *state)
			state.Heap.Store(addr, val)
		case ir.OpCall:
			sub, fault := in.interpretCall(f, inst, state, budget)
			if sub != nil {
				step.Calls = append(step.Calls, sub)
			}
			if fault != nil {
				return fault
			}
		case ir.OpMarkInt:
			// A preprocessed procedure never carries this opcode (C4
			// pass 4 strips it); tolerate it as a harmless true so an
			// un-preprocessed function can still be interpreted for
			// ad hoc testing rather than failing outright.
			state.Values[inst.Result] = one
		default:
			return diag.UnsupportedInstruction(string(inst.Op), 0)
		}
	}
	return nil
}

// interpretCall dispatches a call instruction: a recursive call into
// another function of the same module consumes (and returns) the
// shared budget; a call to a declaration-only external, or to a name
// absent from the module entirely, cannot be executed concretely and
// is reported as UnsupportedInstruction rather than silently
// approximated (spec.md §4.6).
func (in *Interpreter) interpretCall(f *ir.Function, inst *ir.Inst, state *State, budget *int) (*Call, *diag.Diagnostic) {
	callee := in.Mod.FunctionByName(inst.Callee)
	if callee == nil {
		return nil, diag.UnsupportedInstruction("call:"+inst.Callee, 0)
	}

	args := make([]*big.Int, len(inst.Operands))
	for i, op := range inst.Operands {
		args[i] = in.resolve(f, op, *state)
	}

	entry := newState(state.Heap.clone())
	for i, p := range callee.Params {
		if i < len(args) {
			entry.Values[p.Value] = args[i]
		}
	}

	sub, err := in.interpretFunction(callee, entry, budget, &Trace{Function: callee.Name})
	if err != nil {
		return nil, diag.UnsupportedInstruction("call:"+inst.Callee, 0)
	}
	if sub.EarlyExit {
		return sub, sub.Fault
	}

	state.Heap = sub.Return.Heap
	if inst.Result >= 0 {
		if ret, ok := callee.Block(callee.Exit).Term.(*ir.Return); ok && ret.Value >= 0 {
			state.Values[inst.Result] = sub.Return.Values[ret.Value]
		} else {
			state.Values[inst.Result] = big.NewInt(0)
		}
	}
	return sub, nil
}

// interpretTerminator evaluates blk's terminator, returning the next
// block to enter, or done=true at a Return.
func (in *Interpreter) interpretTerminator(f *ir.Function, blk *ir.Block, state *State) (next ir.BlockID, done bool, err error) {
	switch t := blk.Term.(type) {
	case *ir.Return:
		return 0, true, nil
	case *ir.Unreachable:
		return 0, false, fmt.Errorf("interp: reached unreachable terminator in block %q", blk.Label)
	case *ir.Branch:
		return t.Target, false, nil
	case *ir.CondBranch:
		cond := in.resolve(f, t.Cond, *state)
		if cond.Sign() != 0 {
			return t.TrueTarget, false, nil
		}
		return t.FalseTarget, false, nil
	case *ir.Switch:
		cond := in.resolve(f, t.Cond, *state)
		for _, c := range t.Cases {
			if cond.Cmp(big.NewInt(c.Value)) == 0 {
				return c.Target, false, nil
			}
		}
		return t.Default, false, nil
	default:
		return 0, false, fmt.Errorf("interp: block %q has no terminator", blk.Label)
	}
}

// resolve returns v's concrete value: whatever the current state
// already binds it to (an argument, a phi result, or a prior
// instruction's result), or — the first time a constant/global/string
// literal is referenced — its concrete rendering via resolveConst.
func (in *Interpreter) resolve(f *ir.Function, v ir.ValueID, state State) *big.Int {
	if val, ok := state.Values[v]; ok {
		return val
	}
	return in.resolveConst(f.Value(v))
}

// resolveConst renders a non-instruction Value (constant, global, or
// string literal) to its concrete value.
func (in *Interpreter) resolveConst(v *ir.Value) *big.Int {
	switch v.Kind {
	case ir.ValueConst:
		return big.NewInt(v.Const)
	case ir.ValueGlobal:
		return big.NewInt(in.addrs.globalAddress(v.Global))
	case ir.ValueStringConst:
		return big.NewInt(in.addrs.stringAddress(v.StringLit))
	default:
		return big.NewInt(0)
	}
}
