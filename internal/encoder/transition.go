package encoder

import (
	"fmt"

	"kanso/internal/ir"
	"kanso/internal/options"
	"kanso/internal/paths"
	"kanso/internal/smt"
)

// CallSite records one call to a non-external (internal) function
// encountered while encoding a path, deferred until the caller (the
// outer Generate driver) can pair it against the corresponding call on
// the other program's path to decide between the joint and
// independent recursion-summary forms of spec.md §4.5.
type CallSite struct {
	Callee       string
	Args         []smt.Expr
	ArgSorts     []smt.Sort
	HeapBefore   smt.Expr
	StackBefore  smt.Expr
	HasResult    bool
	ResultSym    *smt.Symbol
	ResultSort   smt.Sort
	HeapAfterSym *smt.Symbol
}

// PathEncoding is tr(p) (spec.md §4.5) for a single program: the
// conjoined literal/definition equations, any fresh variables
// introduced mid-path that must be added to the enclosing Forall, the
// deferred internal call sites, and the final heap/stack expressions
// to pass as the consequent predicate's array arguments.
type PathEncoding struct {
	Conjuncts     []smt.Expr
	ExtraBindings []smt.Binding
	Calls         []*CallSite
	FinalHeap     smt.Expr
	FinalStack    smt.Expr

	f      *ir.Function
	ab     *AddressBook
	idx    int
	opts   options.Options
	valMap map[ir.ValueID]smt.Expr
	path   *paths.Path
}

// Resolve returns the current expression bound to v: either a value
// freshly (re)defined along this path, or — for a value untouched by
// the path — its constant/global/string-literal rendering, or (for a
// mark's free-var argument flowing through unchanged) a bare reference
// to its own (already-uniquified) name.
func (pe *PathEncoding) Resolve(v ir.ValueID) smt.Expr {
	if e, ok := pe.valMap[v]; ok {
		return e
	}
	return valueExpr(pe.f.Value(v), pe.ab, pe.idx, pe.opts)
}

// encodePath renders tr(p): the path's gating literals plus a
// value-definition equation for every phi/instruction of every block
// traversed after the path's start block (the start block's own
// definitions are already supplied as predicate arguments — see
// freeVarsAtMark's doc comment).
func encodePath(
	f *ir.Function, mod *ir.Module, idx int, opts options.Options, ab *AddressBook,
	p *paths.Path, extRegistry map[string]*externalUse, fresh func(string) string,
) *PathEncoding {
	pe := &PathEncoding{f: f, ab: ab, idx: idx, opts: opts, valMap: map[ir.ValueID]smt.Expr{}, path: p}

	var heap smt.Expr
	var stack smt.Expr
	if opts.Memory == options.MemoryHeap || opts.Memory == options.MemoryStack {
		heap = &smt.Symbol{Name: heapVarName(idx)}
	}
	if opts.Memory == options.MemoryStack {
		stack = &smt.Symbol{Name: stackVarName(idx)}
	}

	blocks := make([]ir.BlockID, 0, len(p.Edges)+1)
	blocks = append(blocks, p.StartBlock)
	for _, e := range p.Edges {
		blocks = append(blocks, e.To)
	}

	ref := func(v ir.ValueID) smt.Expr { return pe.Resolve(v) }

	for i, e := range p.Edges {
		for _, lit := range e.Literals {
			pe.Conjuncts = append(pe.Conjuncts, literalExpr(lit, ref, opts))
		}

		dst := f.Block(e.To)
		for _, ph := range dst.Phis {
			rhs := ref(ph.Inputs[blocks[i]])
			bindResult(f, idx, ph.Result, rhs, pe)
		}
		for instIdx := range dst.Insts {
			encodeInst(f, mod, idx, opts, ab, &dst.Insts[instIdx], ref, &heap, &stack, pe, extRegistry, fresh)
		}
	}

	pe.FinalHeap = heap
	pe.FinalStack = stack
	return pe
}

// literalExpr renders one path Literal as a boolean term.
func literalExpr(lit paths.Literal, ref func(ir.ValueID) smt.Expr, opts options.Options) smt.Expr {
	v := ref(lit.Value)
	if lit.EqConst != nil {
		eq := &smt.Op{Name: "=", Args: []smt.Expr{v, intLiteral(*lit.EqConst, opts)}}
		if lit.Negate {
			return &smt.Op{Name: "not", Args: []smt.Expr{eq}}
		}
		return eq
	}
	if lit.Negate {
		return &smt.Op{Name: "not", Args: []smt.Expr{v}}
	}
	return v
}

// bindResult records `name = rhs` as a fresh conjunct and registers
// name's expression in pe.valMap for later references within the
// path.
func bindResult(f *ir.Function, idx int, result ir.ValueID, rhs smt.Expr, pe *PathEncoding) {
	if result < 0 {
		return
	}
	name := valueName(f, result, idx)
	sym := &smt.Symbol{Name: name}
	pe.Conjuncts = append(pe.Conjuncts, &smt.Op{Name: "=", Args: []smt.Expr{sym, rhs}})
	pe.valMap[result] = sym
}

// valueName renders the SMT symbol for a value defined along a path.
// preprocess's program-index renaming pass (Run's pass 3) has already
// suffixed every named value with "$1"/"$2" before the encoder ever
// sees f, so a bare v.Name is already disambiguated between the two
// coupled procedures; only compiler-introduced temporaries (empty
// Name) need a synthesized one here.
func valueName(f *ir.Function, id ir.ValueID, idx int) string {
	v := f.Value(id)
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("_t%d$%d", int(id), idx)
}

// valueExpr renders a value that has no path-local definition: a
// constant, a global, a string literal, or a bare free-variable
// reference.
func valueExpr(v *ir.Value, ab *AddressBook, idx int, opts options.Options) smt.Expr {
	switch v.Kind {
	case ir.ValueConst:
		if _, ok := v.Type.(*ir.BoolType); ok {
			return &smt.BoolLit{Value: v.Const != 0}
		}
		return intLiteral(v.Const, opts)
	case ir.ValueGlobal:
		return intLiteral(ab.Global(v.Global, idx), opts)
	case ir.ValueStringConst:
		return intLiteral(ab.String(v.StringLit), opts)
	default:
		return &smt.Symbol{Name: v.Name}
	}
}

func heapVarName(idx int) string  { return fmt.Sprintf("HEAP$%d", idx) }
func stackVarName(idx int) string { return fmt.Sprintf("STACK$%d", idx) }

func arrayFor(isStack bool, heap, stack *smt.Expr) *smt.Expr {
	if isStack && *stack != nil {
		return stack
	}
	return heap
}

// encodeInst dispatches a single straight-line instruction, updating
// pe.valMap/pe.Conjuncts and threading heap/stack through *heap/*stack.
func encodeInst(
	f *ir.Function, mod *ir.Module, idx int, opts options.Options, ab *AddressBook,
	inst *ir.Inst, ref func(ir.ValueID) smt.Expr, heap, stack *smt.Expr,
	pe *PathEncoding, extRegistry map[string]*externalUse, fresh func(string) string,
) {
	switch inst.Op {
	case ir.OpBinary:
		var rhs smt.Expr
		if len(inst.Operands) == 1 {
			rhs = unaryOp(inst.Symbol, ref(inst.Operands[0]), opts)
		} else {
			rhs = binOp(inst.Symbol, ref(inst.Operands[0]), ref(inst.Operands[1]), opts)
		}
		bindResult(f, idx, inst.Result, rhs, pe)
	case ir.OpConst:
		if len(inst.Operands) == 1 {
			bindResult(f, idx, inst.Result, ref(inst.Operands[0]), pe)
		}
	case ir.OpZExt:
		if len(inst.Operands) == 1 {
			bindResult(f, idx, inst.Result, ref(inst.Operands[0]), pe)
		}
	case ir.OpLoad:
		arr := arrayFor(inst.IsStackAccess, heap, stack)
		rhs := &smt.Op{Name: "select", Args: []smt.Expr{*arr, ref(inst.Addr)}}
		bindResult(f, idx, inst.Result, rhs, pe)
	case ir.OpStore:
		arr := arrayFor(inst.IsStackAccess, heap, stack)
		val := ref(inst.Operands[0])
		*arr = &smt.Op{Name: "store", Args: []smt.Expr{*arr, ref(inst.Addr), val}}
	case ir.OpCall:
		encodeCall(f, mod, idx, opts, ab, inst, ref, heap, pe, extRegistry, fresh)
	}
}
