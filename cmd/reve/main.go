// SPDX-License-Identifier: Apache-2.0
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"kanso/internal/annot"
	"kanso/internal/diag"
	"kanso/internal/encoder"
	"kanso/internal/ir"
	"kanso/internal/marks"
	"kanso/internal/options"
	"kanso/internal/preprocess"
	"kanso/internal/smt"
)

// includeDirs collects repeated -I flags into a string slice, the same
// flag.Value pattern the standard library's own flag examples use for
// a repeatable option.
type includeDirs []string

func (d *includeDirs) String() string { return strings.Join(*d, ",") }
func (d *includeDirs) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run drives the static core end to end and returns the process exit
// code of spec.md §6: 0 success, 1 matching/front-end failure, 2 usage
// error.
func run(args []string) int {
	fs := flag.NewFlagSet("reve", flag.ContinueOnError)
	out := fs.String("o", "", "output path (stdout if absent)")
	fun := fs.String("fun", "", "coupled function name (defaults to the first shared function)")
	offByN := fs.Bool("off-by-n", false, "enable asymmetric loop-stepping synchronisation")
	onlyRec := fs.Bool("only-rec", false, "skip the Cartesian path-pair coupling (no recursive summaries are emitted in its place)")
	heap := fs.Bool("heap", false, "thread a heap array through mark predicates")
	stack := fs.Bool("stack", false, "thread heap and stack arrays through mark predicates")
	strs := fs.Bool("strings", false, "enable disjoint negative string-constant addressing")
	bitWidth := fs.Int("bitwidth", 0, "fixed machine word width; nonzero selects bounded integer semantics")
	var includes includeDirs
	fs.Var(&includes, "I", "include directory forwarded to the C->IR front-end (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: reve [flags] FILE1 FILE2")
		fs.PrintDefaults()
		return 2
	}
	file1, file2 := fs.Arg(0), fs.Arg(1)

	opts := options.Default()
	opts.Function = *fun
	opts.OffByN = *offByN
	opts.OnlyRec = *onlyRec
	opts.Strings = *strs
	opts.IncludeDirs = includes
	if *stack {
		opts.Memory = options.MemoryStack
	} else if *heap {
		opts.Memory = options.MemoryHeap
	}
	if *bitWidth > 0 {
		opts.IntSemantics = options.Bounded
		opts.BitWidth = *bitWidth
	}

	mod1, ann1, err := loadSide(file1, 1, opts)
	if err != nil {
		reportError(file1, err)
		return 1
	}
	mod2, ann2, err := loadSide(file2, 2, opts)
	if err != nil {
		reportError(file2, err)
		return 1
	}

	script, err := encoder.Generate(encoder.Input{Mod1: mod1, Mod2: mod2, Opts: opts, Annot1: ann1, Annot2: ann2})
	if err != nil {
		reportError(file1, err)
		return 1
	}

	rendered := renderScript(script)
	if *out == "" {
		fmt.Println(rendered)
	} else if err := os.WriteFile(*out, []byte(rendered+"\n"), 0o644); err != nil {
		color.Red("failed to write %s: %v", *out, err)
		return 1
	}

	color.Green("✅ wrote %d CHC clause(s) for %s", len(script), coupledName(mod1, opts))
	return 0
}

// loadSide reads one side's pre-lowered IR module (JSON wire form, §6
// Non-goal: C->IR lowering is an external collaborator) and its
// embedded annotation comments, then runs the fixed per-program
// pipeline every Function must pass through before marks.Analyze or
// encoder.Generate can see it: exit unification, then the C4
// normalisation passes (DESIGN.md's Open Question #2 ordering).
func loadSide(path string, idx int, opts options.Options) (*ir.Module, *annot.Annotations, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, diag.FrontEndFailure(fmt.Sprintf("cannot read %s: %v", path, err))
	}

	mod, err := ir.DecodeModule(source)
	if err != nil {
		return nil, nil, diag.FrontEndFailure(err.Error())
	}

	ann, err := annot.Parse(string(source))
	if err != nil {
		return nil, nil, err
	}
	r := diag.NewReporter(path, string(source))
	for _, w := range ann.Warnings {
		fmt.Fprint(os.Stderr, r.Format(&diag.Diagnostic{Level: diag.LevelWarning, Code: diag.WarningDuplicateAnnotation, Message: w.Message}))
	}

	for _, f := range mod.Functions {
		preprocess.UnifyExits(f)
		mm, err := marks.Analyze(f)
		if err != nil {
			var conflict *marks.ConflictError
			if errors.As(err, &conflict) {
				return nil, nil, diag.MarkConflict(conflict.Label, int(conflict.First), int(conflict.Second))
			}
			return nil, nil, err
		}
		if _, err := preprocess.Run(f, mm, idx, opts); err != nil {
			return nil, nil, err
		}
	}

	return mod, ann, nil
}

// renderScript prints every top-level command in order, running the
// let-compression and array-instantiation passes the teacher-inherited
// smt package exposes for exactly this purpose (spec.md §4.4).
func renderScript(script []smt.Expr) string {
	var lines []string
	freshIdx := 0
	freshName := func() string {
		freshIdx++
		return fmt.Sprintf("idx$%d", freshIdx)
	}
	for _, e := range script {
		e = smt.CompressLets(e)
		e = smt.InstantiateArrays(e, freshName)
		lines = append(lines, smt.ToSExpr(e))
	}
	return strings.Join(lines, "\n")
}

func coupledName(mod *ir.Module, opts options.Options) string {
	if opts.Function != "" {
		return opts.Function
	}
	if len(mod.Functions) > 0 {
		return mod.Functions[0].Name
	}
	return "?"
}

// reportError renders err as a diag.Diagnostic against source, falling
// back to a plain colorized message for an error this package didn't
// originate (mirrors the teacher's reportParseError fallback branch).
func reportError(path string, err error) {
	source, _ := os.ReadFile(path)
	d, ok := err.(*diag.Diagnostic)
	if !ok {
		color.Red("❌ %s: %v", path, err)
		return
	}
	r := diag.NewReporter(path, string(source))
	fmt.Fprint(os.Stderr, r.Format(d))
}
