package ir

import (
	"encoding/json"
	"fmt"
)

// DecodeModule parses a pre-lowered module from its JSON wire form (the
// interchange format cmd/reve reads from FILE1/FILE2, spec.md §6). C→IR
// lowering itself is explicitly out of scope (spec.md §1's "out of
// scope: C->IR lowering... the core consumes a pre-lowered, SSA-form
// control flow graph"); this is the minimal real wire format for that
// boundary — a flat JSON tree mirroring the arena shapes in types.go
// one-for-one, rather than a binary or protobuf scheme, since no
// serialization library appears anywhere in the retrieval pack (the
// teacher's only encoding/json use is inside its LSP's JSON-RPC
// transport, itself dropped) and a hand-rolled text format would only
// reinvent what encoding/json already gives for free.
func DecodeModule(data []byte) (*Module, error) {
	var w wireModule
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("ir: decode module: %w", err)
	}
	return w.toModule()
}

// EncodeModule renders m back to its JSON wire form, primarily useful
// for test fixtures and round-tripping.
func EncodeModule(m *Module) ([]byte, error) {
	return json.MarshalIndent(fromModule(m), "", "  ")
}

type wireModule struct {
	Name      string            `json:"name"`
	Functions []wireFunction     `json:"functions"`
	Externals []wireFunction     `json:"externals,omitempty"`
	Globals   []string          `json:"globals,omitempty"`
}

type wireFunction struct {
	Name       string       `json:"name"`
	Params     []wireParam  `json:"params"`
	ReturnType *wireType    `json:"return_type,omitempty"`
	Values     []wireValue  `json:"values"`
	Blocks     []wireBlock  `json:"blocks"`
	Entry      int          `json:"entry"`
	Exit       int          `json:"exit"`
}

type wireParam struct {
	Name  string   `json:"name"`
	Type  wireType `json:"type"`
	Value int      `json:"value"`
}

type wireType struct {
	Kind      string    `json:"kind"` // "int" | "bool" | "float" | "array" | "pointer"
	Width     int       `json:"width,omitempty"`
	Unbounded bool      `json:"unbounded,omitempty"`
	Signed    bool      `json:"signed,omitempty"`
	Index     *wireType `json:"index,omitempty"`
	Element   *wireType `json:"element,omitempty"`
	Pointee   *wireType `json:"pointee,omitempty"`
}

type wireValue struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Type      wireType `json:"type"`
	Kind      string   `json:"kind"` // "arg" | "const" | "inst" | "global" | "string"
	DefBlock  int      `json:"def_block"`
	Const     int64    `json:"const,omitempty"`
	Global    string   `json:"global,omitempty"`
	StringLit string   `json:"string_lit,omitempty"`
}

type wireBlock struct {
	ID    int         `json:"id"`
	Label string      `json:"label"`
	Phis  []wirePhi   `json:"phis,omitempty"`
	Insts []wireInst  `json:"insts,omitempty"`
	Term  wireTerm    `json:"term"`
}

type wirePhi struct {
	Result int         `json:"result"`
	Inputs map[string]int `json:"inputs"` // block id (decimal string) -> value id
}

type wireInst struct {
	Op            string   `json:"op"`
	Result        int      `json:"result"`
	Operands      []int    `json:"operands,omitempty"`
	Addr          int      `json:"addr,omitempty"`
	IsStackAccess bool     `json:"is_stack_access,omitempty"`
	Symbol        string   `json:"symbol,omitempty"`
	Callee        string   `json:"callee,omitempty"`
}

type wireTerm struct {
	Kind        string          `json:"kind"` // "branch" | "cond_branch" | "switch" | "return" | "unreachable"
	Target      int             `json:"target,omitempty"`
	Cond        int             `json:"cond,omitempty"`
	TrueTarget  int             `json:"true_target,omitempty"`
	FalseTarget int             `json:"false_target,omitempty"`
	Cases       []wireSwitchCase `json:"cases,omitempty"`
	Default     int             `json:"default,omitempty"`
	Value       int             `json:"value,omitempty"`
}

type wireSwitchCase struct {
	Value  int64 `json:"value"`
	Target int   `json:"target"`
}

func (w *wireModule) toModule() (*Module, error) {
	m := &Module{Name: w.Name, Globals: w.Globals, Externals: map[string]*Function{}}
	for _, wf := range w.Functions {
		f, err := wf.toFunction()
		if err != nil {
			return nil, err
		}
		m.Functions = append(m.Functions, f)
	}
	for _, wf := range w.Externals {
		f, err := wf.toFunction()
		if err != nil {
			return nil, err
		}
		m.Externals[f.Name] = f
	}
	return m, nil
}

func (wf *wireFunction) toFunction() (*Function, error) {
	f := &Function{Name: wf.Name, Entry: BlockID(wf.Entry), Exit: BlockID(wf.Exit)}
	if wf.ReturnType != nil {
		f.ReturnType = wf.ReturnType.toType()
	}
	for _, wp := range wf.Params {
		f.Params = append(f.Params, Param{Name: wp.Name, Type: wp.Type.toType(), Value: ValueID(wp.Value)})
	}
	for _, wv := range wf.Values {
		kind, err := valueKindOf(wv.Kind)
		if err != nil {
			return nil, fmt.Errorf("ir: function %q: %w", wf.Name, err)
		}
		f.Values = append(f.Values, &Value{
			ID: ValueID(wv.ID), Name: wv.Name, Type: wv.Type.toType(), Kind: kind,
			DefBlock: BlockID(wv.DefBlock), Const: wv.Const, Global: wv.Global, StringLit: wv.StringLit,
		})
	}
	for _, wb := range wf.Blocks {
		blk := &Block{ID: BlockID(wb.ID), Label: wb.Label, Mark: NoMark}
		for _, wp := range wb.Phis {
			inputs := make(map[BlockID]ValueID, len(wp.Inputs))
			for k, v := range wp.Inputs {
				var bid int
				if _, err := fmt.Sscanf(k, "%d", &bid); err != nil {
					return nil, fmt.Errorf("ir: function %q: malformed phi predecessor key %q", wf.Name, k)
				}
				inputs[BlockID(bid)] = ValueID(v)
			}
			blk.Phis = append(blk.Phis, &Phi{Result: ValueID(wp.Result), Inputs: inputs})
		}
		for _, wi := range wb.Insts {
			op, err := opOf(wi.Op)
			if err != nil {
				return nil, fmt.Errorf("ir: function %q: %w", wf.Name, err)
			}
			inst := Inst{
				Op: op, Result: ValueID(wi.Result), Block: blk.ID,
				Addr: ValueID(wi.Addr), IsStackAccess: wi.IsStackAccess,
				Symbol: wi.Symbol, Callee: wi.Callee,
			}
			for _, o := range wi.Operands {
				inst.Operands = append(inst.Operands, ValueID(o))
			}
			blk.Insts = append(blk.Insts, inst)
		}
		term, err := wb.Term.toTerminator()
		if err != nil {
			return nil, fmt.Errorf("ir: function %q, block %q: %w", wf.Name, wb.Label, err)
		}
		blk.Term = term
		f.Blocks = append(f.Blocks, blk)
	}
	return f, nil
}

func (wt *wireType) toType() Type {
	switch wt.Kind {
	case "bool":
		return &BoolType{}
	case "float":
		return &FloatType{Width: wt.Width}
	case "array":
		return &ArrayType{Index: wt.Index.toType(), Element: wt.Element.toType()}
	case "pointer":
		return &PointerType{Pointee: wt.Pointee.toType()}
	default: // "int"
		return &IntType{Width: wt.Width, Unbounded: wt.Unbounded, Signed: wt.Signed}
	}
}

func valueKindOf(s string) (ValueKind, error) {
	switch s {
	case "arg":
		return ValueArg, nil
	case "const":
		return ValueConst, nil
	case "inst":
		return ValueInst, nil
	case "global":
		return ValueGlobal, nil
	case "string":
		return ValueStringConst, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}

func opOf(s string) (Op, error) {
	switch Op(s) {
	case OpConst, OpBinary, OpLoad, OpStore, OpCall, OpMarkInt, OpZExt:
		return Op(s), nil
	default:
		return "", fmt.Errorf("unknown opcode %q", s)
	}
}

func (wt *wireTerm) toTerminator() (Terminator, error) {
	switch wt.Kind {
	case "branch":
		return &Branch{Target: BlockID(wt.Target)}, nil
	case "cond_branch":
		return &CondBranch{Cond: ValueID(wt.Cond), TrueTarget: BlockID(wt.TrueTarget), FalseTarget: BlockID(wt.FalseTarget)}, nil
	case "switch":
		cases := make([]SwitchCase, len(wt.Cases))
		for i, c := range wt.Cases {
			cases[i] = SwitchCase{Value: c.Value, Target: BlockID(c.Target)}
		}
		return &Switch{Cond: ValueID(wt.Cond), Cases: cases, Default: BlockID(wt.Default)}, nil
	case "return":
		return &Return{Value: ValueID(wt.Value)}, nil
	case "unreachable":
		return &Unreachable{}, nil
	default:
		return nil, fmt.Errorf("unknown terminator kind %q", wt.Kind)
	}
}

func fromModule(m *Module) *wireModule {
	w := &wireModule{Name: m.Name, Globals: m.Globals}
	for _, f := range m.Functions {
		w.Functions = append(w.Functions, fromFunction(f))
	}
	for _, f := range m.Externals {
		w.Externals = append(w.Externals, fromFunction(f))
	}
	return w
}

func fromFunction(f *Function) wireFunction {
	wf := wireFunction{Name: f.Name, Entry: int(f.Entry), Exit: int(f.Exit)}
	if f.ReturnType != nil {
		rt := fromType(f.ReturnType)
		wf.ReturnType = &rt
	}
	for _, p := range f.Params {
		wf.Params = append(wf.Params, wireParam{Name: p.Name, Type: fromType(p.Type), Value: int(p.Value)})
	}
	for _, v := range f.Values {
		wf.Values = append(wf.Values, wireValue{
			ID: int(v.ID), Name: v.Name, Type: fromType(v.Type), Kind: valueKindStr(v.Kind),
			DefBlock: int(v.DefBlock), Const: v.Const, Global: v.Global, StringLit: v.StringLit,
		})
	}
	for _, b := range f.Blocks {
		wb := wireBlock{ID: int(b.ID), Label: b.Label, Term: fromTerminator(b.Term)}
		for _, ph := range b.Phis {
			inputs := make(map[string]int, len(ph.Inputs))
			for k, v := range ph.Inputs {
				inputs[fmt.Sprintf("%d", int(k))] = int(v)
			}
			wb.Phis = append(wb.Phis, wirePhi{Result: int(ph.Result), Inputs: inputs})
		}
		for _, inst := range b.Insts {
			wi := wireInst{
				Op: string(inst.Op), Result: int(inst.Result), Addr: int(inst.Addr),
				IsStackAccess: inst.IsStackAccess, Symbol: inst.Symbol, Callee: inst.Callee,
			}
			for _, o := range inst.Operands {
				wi.Operands = append(wi.Operands, int(o))
			}
			wb.Insts = append(wb.Insts, wi)
		}
		wf.Blocks = append(wf.Blocks, wb)
	}
	return wf
}

func fromType(t Type) wireType {
	switch tt := t.(type) {
	case *BoolType:
		return wireType{Kind: "bool"}
	case *FloatType:
		return wireType{Kind: "float", Width: tt.Width}
	case *ArrayType:
		idx, el := fromType(tt.Index), fromType(tt.Element)
		return wireType{Kind: "array", Index: &idx, Element: &el}
	case *PointerType:
		p := fromType(tt.Pointee)
		return wireType{Kind: "pointer", Pointee: &p}
	case *IntType:
		return wireType{Kind: "int", Width: tt.Width, Unbounded: tt.Unbounded, Signed: tt.Signed}
	default:
		return wireType{Kind: "int"}
	}
}

func valueKindStr(k ValueKind) string {
	switch k {
	case ValueArg:
		return "arg"
	case ValueConst:
		return "const"
	case ValueGlobal:
		return "global"
	case ValueStringConst:
		return "string"
	default:
		return "inst"
	}
}

func fromTerminator(t Terminator) wireTerm {
	switch tt := t.(type) {
	case *Branch:
		return wireTerm{Kind: "branch", Target: int(tt.Target)}
	case *CondBranch:
		return wireTerm{Kind: "cond_branch", Cond: int(tt.Cond), TrueTarget: int(tt.TrueTarget), FalseTarget: int(tt.FalseTarget)}
	case *Switch:
		cases := make([]wireSwitchCase, len(tt.Cases))
		for i, c := range tt.Cases {
			cases[i] = wireSwitchCase{Value: c.Value, Target: int(c.Target)}
		}
		return wireTerm{Kind: "switch", Cond: int(tt.Cond), Cases: cases, Default: int(tt.Default)}
	case *Return:
		return wireTerm{Kind: "return", Value: int(tt.Value)}
	case *Unreachable:
		return wireTerm{Kind: "unreachable"}
	default:
		return wireTerm{Kind: "unreachable"}
	}
}
