package ir

import (
	"fmt"
	"strings"
)

// Printer renders a Function as an indented textual listing, used by
// tests to inspect a procedure at each pipeline stage. Mirrors the teacher's indent/writeLine printer shape.
type Printer struct {
	indent int
	out    strings.Builder
}

func NewPrinter() *Printer { return &Printer{} }

// Print returns the textual listing of f.
func Print(f *Function) string {
	p := NewPrinter()
	p.printFunction(f)
	return p.out.String()
}

func (p *Printer) writeIndent() {
	p.out.WriteString(strings.Repeat("  ", p.indent))
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) printFunction(f *Function) {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", prm.Name, prm.Type)
	}
	ret := "void"
	if f.ReturnType != nil {
		ret = f.ReturnType.String()
	}
	p.writeLine("function %s(%s) -> %s", f.Name, strings.Join(params, ", "), ret)
	p.indent++
	for _, b := range f.Blocks {
		p.printBlock(f, b)
	}
	p.indent--
}

func (p *Printer) printBlock(f *Function, b *Block) {
	mark := ""
	if b.Mark != NoMark {
		mark = fmt.Sprintf("  ; mark=%s", markString(b.Mark))
	}
	p.writeLine("%s:%s", b.Label, mark)
	p.indent++
	for _, ph := range b.Phis {
		ins := make([]string, 0, len(ph.Inputs))
		for blk, v := range ph.Inputs {
			ins = append(ins, fmt.Sprintf("%s: %s", f.Block(blk).Label, f.Value(v).Name))
		}
		p.writeLine("%s = phi(%s)", f.Value(ph.Result).Name, strings.Join(ins, ", "))
	}
	for _, inst := range b.Insts {
		p.writeLine("%s", p.formatInst(f, inst))
	}
	p.writeLine("%s", p.formatTerm(f, b.Term))
	p.indent--
}

func (p *Printer) formatInst(f *Function, inst Inst) string {
	var result string
	if inst.Result >= 0 {
		result = f.Value(inst.Result).Name + " = "
	}
	switch inst.Op {
	case OpConst:
		return fmt.Sprintf("%sconst %d", result, f.Value(inst.Result).Const)
	case OpBinary:
		return fmt.Sprintf("%s%s %s, %s", result, inst.Symbol, f.Value(inst.Operands[0]).Name, f.Value(inst.Operands[1]).Name)
	case OpLoad:
		tag := "heap"
		if inst.IsStackAccess {
			tag = "stack"
		}
		return fmt.Sprintf("%sload[%s] %s", result, tag, f.Value(inst.Addr).Name)
	case OpStore:
		tag := "heap"
		if inst.IsStackAccess {
			tag = "stack"
		}
		return fmt.Sprintf("store[%s] %s, %s", tag, f.Value(inst.Addr).Name, f.Value(inst.Operands[0]).Name)
	case OpCall:
		args := make([]string, len(inst.Operands))
		for i, a := range inst.Operands {
			args[i] = f.Value(a).Name
		}
		return fmt.Sprintf("%scall %s(%s)", result, inst.Callee, strings.Join(args, ", "))
	case OpMarkInt:
		return fmt.Sprintf("__mark(%d)", f.Value(inst.Operands[0]).Const)
	case OpZExt:
		return fmt.Sprintf("%szext %s", result, f.Value(inst.Operands[0]).Name)
	default:
		return fmt.Sprintf("%s%s", result, inst.Op)
	}
}

func (p *Printer) formatTerm(f *Function, t Terminator) string {
	switch term := t.(type) {
	case *Branch:
		return fmt.Sprintf("br %s", f.Block(term.Target).Label)
	case *CondBranch:
		return fmt.Sprintf("br_if %s, %s, %s", f.Value(term.Cond).Name, f.Block(term.TrueTarget).Label, f.Block(term.FalseTarget).Label)
	case *Switch:
		cases := make([]string, len(term.Cases))
		for i, c := range term.Cases {
			cases[i] = fmt.Sprintf("%d -> %s", c.Value, f.Block(c.Target).Label)
		}
		return fmt.Sprintf("switch %s [%s] default %s", f.Value(term.Cond).Name, strings.Join(cases, ", "), f.Block(term.Default).Label)
	case *Return:
		if term.Value < 0 {
			return "return"
		}
		return fmt.Sprintf("return %s", f.Value(term.Value).Name)
	case *Unreachable:
		return "unreachable"
	default:
		return "<unknown terminator>"
	}
}

func markString(m Mark) string {
	switch m {
	case Entry:
		return "ENTRY"
	case Exit:
		return "EXIT"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}
