// Package interp implements C7: a deterministic small-step evaluator
// over a preprocessed IR procedure (spec.md §4.6), used by the dynamic
// mode to gather per-mark state snapshots for the invariant
// synthesiser (C8).
//
// Grounded on original_source/reve/dynamic/interpreter/include/Interpreter.h
// and .../llreve-dynamic/lib/llreve/dynamic/Interpreter.cpp for the
// State/Heap/Call/Step shapes and the block-at-a-time evaluation loop
// (phi resolution against the previous block, then straight-line body,
// then terminator), adapted from LLVM instructions to this package's
// smaller preprocessed-IR opcode set. Integers are modeled with
// math/big.Int rather than a hand-rolled arbitrary-precision type,
// mirroring the original's use of GMP's mpz_class for the same role.
package interp

import (
	"math/big"

	"kanso/internal/diag"
	"kanso/internal/ir"
)

// Heap is the sparse override map plus background default of spec.md
// §3: loading any address not present in Overrides yields Background,
// so a load from "anywhere" stays deterministic without the map ever
// growing for untouched addresses.
type Heap struct {
	Background *big.Int
	Overrides  map[int64]*big.Int
}

// NewHeap builds a Heap with every address defaulting to background.
func NewHeap(background int64) Heap {
	return Heap{Background: big.NewInt(background), Overrides: map[int64]*big.Int{}}
}

func (h Heap) clone() Heap {
	ov := make(map[int64]*big.Int, len(h.Overrides))
	for k, v := range h.Overrides {
		ov[k] = v
	}
	return Heap{Background: h.Background, Overrides: ov}
}

// Load reads addr, falling back to the background default.
func (h Heap) Load(addr *big.Int) *big.Int {
	if v, ok := h.Overrides[addr.Int64()]; ok {
		return v
	}
	return h.Background
}

// Store records a single-writer update at addr (spec.md §3's
// "heap arrays are threaded single-writer" invariant, mirrored here as
// the concrete analogue: one override entry per store).
func (h *Heap) Store(addr, val *big.Int) {
	h.Overrides[addr.Int64()] = val
}

// State is a concrete snapshot: a value for every SSA value observed so
// far in the current call, plus the current heap (spec.md §3).
type State struct {
	Values map[ir.ValueID]*big.Int
	Heap   Heap
}

func newState(heap Heap) State {
	return State{Values: map[ir.ValueID]*big.Int{}, Heap: heap}
}

// clone makes an independent copy so earlier Step/Call records are
// never mutated by later steps (each interpreter step owns the state
// it produces; see SPEC_FULL.md §3's lifecycle note).
func (s State) clone() State {
	vs := make(map[ir.ValueID]*big.Int, len(s.Values))
	for k, v := range s.Values {
		vs[k] = v
	}
	return State{Values: vs, Heap: s.Heap.clone()}
}

func snapshotValues(s map[ir.ValueID]*big.Int) map[ir.ValueID]*big.Int {
	out := make(map[ir.ValueID]*big.Int, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// MarkSample is one (mark, state) record of a Trace: spec.md §3's
// "a list of (mark, state) records".
type MarkSample struct {
	Mark   ir.Mark
	Values map[ir.ValueID]*big.Int
}

// Trace is the ordered list of mark samples observed while
// interpreting one top-level call, consumed by the invariant
// synthesiser (C8).
type Trace struct {
	Function string
	Samples  []MarkSample
}

// BlockStep is one per-block record of a Call: the block's name,
// its post-phi state, and the calls it performed (spec.md §4.6).
type BlockStep struct {
	Block ir.BlockID
	Label string
	Post  State
	Calls []*Call
}

// Call is the result of interpreting one function invocation: entry
// state, return state, and an in-order list of per-block steps
// (spec.md §4.6).
type Call struct {
	Function      string
	Entry         State
	Return        State
	Steps         []*BlockStep
	EarlyExit     bool
	BlocksVisited int

	// Fault is non-nil exactly when EarlyExit is true for a reason
	// other than clean completion: a step-budget exhaustion or an
	// arithmetic trap (spec.md §4.6's failure semantics). A fault never
	// aborts the enclosing dynamic-mode run (§7): the caller records it
	// and excludes this item from invariant fitting.
	Fault *diag.Diagnostic
}
