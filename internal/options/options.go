// Package options defines the immutable configuration threaded through
// every pipeline component. There is no package-level mutable state here;
// an Options value is built once in main and passed to each constructor
// (see design note in SPEC_FULL.md §9).
package options

// IntSemantics selects how integer operators are encoded in the emitted
// SMT-LIB2 output and interpreted by the concrete evaluator.
type IntSemantics int

const (
	// Unbounded treats integers as mathematical (unbounded) values,
	// emitting `+ - * div mod`.
	Unbounded IntSemantics = iota
	// Bounded treats integers as two's-complement machine words of a
	// fixed width, emitting `bvadd bvsub bvmul bvsdiv bvsrem bvshl
	// bvashr bvlshr`.
	Bounded
)

// MemoryModel selects which side-channel arrays are threaded through
// mark predicates.
type MemoryModel int

const (
	MemoryNone MemoryModel = iota
	MemoryHeap
	MemoryStack
)

// Options is an immutable snapshot of every flag that affects codegen,
// coupling, or interpretation. Constructed once per run.
type Options struct {
	// Function is the coupled function name (--fun). Empty means "the
	// first function present in both modules".
	Function string

	// OffByN enables asymmetric loop-stepping synchronisation (§4.5).
	OffByN bool

	// OnlyRec drops the Cartesian path-pair coupling for every mark
	// (--only-rec); no recursive-summary encoding is emitted in its
	// place.
	OnlyRec bool

	// Memory selects the heap/stack array threading model.
	Memory MemoryModel

	// Strings enables disjoint negative string-constant addressing.
	Strings bool

	// IntSemantics selects the numeric encoding (§3, §4.5).
	IntSemantics IntSemantics

	// BitWidth is the machine word width used when IntSemantics ==
	// Bounded.
	BitWidth int

	// IncludeDirs are forwarded, unexamined, to the (external) C->IR
	// front-end (-I).
	IncludeDirs []string

	// SkipLoopPreparation disables the Boyer-Moore-style "preparation"
	// loop pass in preprocess, kept optional per the Open Question in
	// spec.md §9 / SPEC_FULL.md §13. Defaults to false: both code paths
	// are kept and exercised.
	SkipLoopPreparation bool

	// StepBudget bounds the number of blocks the concrete interpreter
	// (C7) will visit before surfacing BudgetExceeded.
	StepBudget int

	// Workers is the size of the dynamic trace collector's worker pool.
	// Zero or negative means "run serially, no pool".
	Workers int
}

// Default returns the baseline configuration: unbounded integers, no
// memory model, symmetric (non off-by-n) loop coupling, a generous step
// budget, single-threaded dynamic collection.
func Default() Options {
	return Options{
		IntSemantics: Unbounded,
		BitWidth:     64,
		StepBudget:   1_000_000,
		Workers:      0,
	}
}

// WithFunction returns a copy of o with Function set. Options values are
// never mutated in place; every "setter" is a value-returning copy so
// that a partially-configured Options can be shared safely across
// goroutines once construction is complete.
func (o Options) WithFunction(name string) Options {
	o.Function = name
	return o
}
