package encoder

import (
	"hash/fnv"

	"kanso/internal/ir"
)

// AddressBook resolves ir.ValueGlobal and ir.ValueStringConst
// references to concrete negative sentinel addresses (spec.md §4.5
// "Global address allocation", §9's Open Question resolution, and
// SPEC_FULL.md §13's content-hash supplement).
//
// Grounded on original_source/reve/Reve.cpp's global-variable address
// assignment pass (walked once per pair of modules before coupling).
type AddressBook struct {
	globals map[string]int64
	strings map[string]int64
}

// buildAddressBook assigns addresses for every global and (when
// strings is true) every string-literal constant reachable from f1/f2.
// A global or string literal present in both modules gets the *same*
// address in both outputs (so the two programs alias identically on
// shared storage); one present in only one module is placed in a
// disjoint, program-tagged range to guarantee it never aliases
// anything in the other program.
func buildAddressBook(mod1, mod2 *ir.Module, f1, f2 *ir.Function, withStrings bool) *AddressBook {
	ab := &AddressBook{globals: map[string]int64{}, strings: map[string]int64{}}

	in := func(name string, list []string) bool {
		for _, n := range list {
			if n == name {
				return true
			}
		}
		return false
	}

	// Shared globals first, in module 1's declaration order, so the
	// address assignment is itself a deterministic function of the
	// input (spec.md §8 testable property 1).
	shared, only1, only2 := partition(mod1.Globals, mod2.Globals, in)
	next := int64(-1000)
	for _, name := range shared {
		ab.globals[name] = next
		next--
	}
	next1 := int64(-2000)
	for _, name := range only1 {
		ab.globals[name+"$1"] = next1
		next1--
	}
	next2 := int64(-3000)
	for _, name := range only2 {
		ab.globals[name+"$2"] = next2
		next2--
	}

	if withStrings {
		addStringConstants(ab, f1)
		addStringConstants(ab, f2)
	}

	return ab
}

func partition(list1, list2 []string, in func(string, []string) bool) (shared, only1, only2 []string) {
	for _, n := range list1 {
		if in(n, list2) {
			shared = append(shared, n)
		} else {
			only1 = append(only1, n)
		}
	}
	for _, n := range list2 {
		if !in(n, list1) {
			only2 = append(only2, n)
		}
	}
	return
}

// addStringConstants scans f for ValueStringConst literals and assigns
// each a content-hash address: FNV-1a of the literal bytes, negated
// and offset below the global range, so two string literals with
// identical contents in either program collide on the same address
// regardless of declaration order (the Open Question resolution in
// spec.md §9 / SPEC_FULL.md §13, replacing the source's
// declaration-order scheme).
func addStringConstants(ab *AddressBook, f *ir.Function) {
	if f == nil {
		return
	}
	for _, v := range f.Values {
		if v.Kind != ir.ValueStringConst {
			continue
		}
		if _, ok := ab.strings[v.StringLit]; ok {
			continue
		}
		ab.strings[v.StringLit] = contentHashAddress(v.StringLit)
	}
}

func contentHashAddress(s string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	// Negative, and offset well below the global ranges so string
	// addresses never collide with a global's sentinel address.
	return -100000 - int64(h.Sum32()%1_000_000)
}

// Global resolves a global reference from program index idx (1 or 2)
// to its assigned address.
func (ab *AddressBook) Global(name string, idx int) int64 {
	if addr, ok := ab.globals[name]; ok {
		return addr
	}
	suffix := "$1"
	if idx == 2 {
		suffix = "$2"
	}
	return ab.globals[name+suffix]
}

// String resolves a string-literal constant to its content-hash
// address.
func (ab *AddressBook) String(lit string) int64 {
	return ab.strings[lit]
}
