// Package diag provides structured, Rust-style diagnostics for the
// verification engine: a typed error kind per spec.md §7, plus a
// Reporter that renders a caret-annotated message against source text.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Position locates a diagnostic in a source file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// Diagnostic is a structured error or warning, carrying enough context
// to render a caret-style message.
type Diagnostic struct {
	Level    Level
	Code     string
	Message  string
	Position Position
	Length   int
	Notes    []string
}

// Error implements the error interface so a Diagnostic can be returned
// and compared directly by callers that only care about the message.
func (d *Diagnostic) Error() string {
	if d.Code != "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return d.Message
}

// Fatal error constructors, one per hard-error kind in spec.md §7. Each
// takes only the data the kind actually carries; position is optional
// (zero Position renders without a source snippet).
func FrontEndFailure(reason string) *Diagnostic {
	return &Diagnostic{Level: LevelError, Code: CodeFrontEndFailure, Message: reason}
}

func ArityMismatch(n1, n2 int) *Diagnostic {
	return &Diagnostic{
		Level:   LevelError,
		Code:    CodeArityMismatch,
		Message: fmt.Sprintf("module 1 declares %d function(s), module 2 declares %d", n1, n2),
	}
}

func MissingCounterpart(name string) *Diagnostic {
	return &Diagnostic{
		Level:   LevelError,
		Code:    CodeMissingCounterpart,
		Message: fmt.Sprintf("function %q has no counterpart in the other module", name),
	}
}

func MarkConflict(block string, k1, k2 int) *Diagnostic {
	return &Diagnostic{
		Level:   LevelError,
		Code:    CodeMarkConflict,
		Message: fmt.Sprintf("block %q is reachable under both mark %d and mark %d", block, k1, k2),
	}
}

func UnsupportedInstruction(opcode string, program int) *Diagnostic {
	return &Diagnostic{
		Level:   LevelError,
		Code:    CodeUnsupportedInstruction,
		Message: fmt.Sprintf("instruction %q has no encoding in program %d", opcode, program),
	}
}

func ArithTrap(kind string) *Diagnostic {
	return &Diagnostic{Level: LevelError, Code: CodeArithTrap, Message: fmt.Sprintf("arithmetic trap: %s", kind)}
}

func BudgetExceeded(visited, budget int) *Diagnostic {
	return &Diagnostic{
		Level:   LevelError,
		Code:    CodeBudgetExceeded,
		Message: fmt.Sprintf("step budget exceeded: visited %d blocks, budget was %d", visited, budget),
	}
}

func AnnotationParseError(kind string, pos Position) *Diagnostic {
	return &Diagnostic{Level: LevelError, Code: CodeAnnotationParseError, Message: fmt.Sprintf("malformed %s annotation", kind), Position: pos}
}

// Reporter formats diagnostics against a specific source file, in the
// same caret style as the teacher's ErrorReporter.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a Reporter for source belonging to filename. An
// empty source is acceptable; diagnostics with a Position still render,
// just without a code snippet.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders d as a multi-line, colorized message.
func (r *Reporter) Format(d *Diagnostic) string {
	var out strings.Builder

	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if d.Level == LevelWarning {
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message))
	} else {
		out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))
	}

	if d.Position.Line > 0 {
		indent := "   "
		out.WriteString(fmt.Sprintf("%s%s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Position.Line, d.Position.Column))
		out.WriteString(fmt.Sprintf("%s%s\n", indent, dim("│")))
		if d.Position.Line-1 < len(r.lines) && d.Position.Line-1 >= 0 {
			out.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%d", d.Position.Line)), dim("│"), r.lines[d.Position.Line-1]))
			length := d.Length
			if length <= 0 {
				length = 1
			}
			caret := strings.Repeat(" ", max(0, d.Position.Column-1)) + strings.Repeat("^", length)
			out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), levelColor(caret)))
		}
	}

	for _, n := range d.Notes {
		out.WriteString(fmt.Sprintf("   %s %s %s\n", dim("│"), color.New(color.FgBlue).Sprint("note:"), n))
	}

	return out.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
