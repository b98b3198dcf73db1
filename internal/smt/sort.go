// Package smt is the SMT-LIB2 term algebra (C5): a small tagged sum of
// node kinds, each a pure recursive function away from a finished
// SMT-LIB2 artifact. Nodes are value types; sharing is structural, per
// spec.md §3's lifecycle invariant for SMT nodes.
//
// Grounded on the teacher's internal/ast node hierarchy plus
// internal/ast/printer.go's visitor-shaped recursive printer over a
// sealed node interface, and on original_source/reve/reve/include/SMT.h
// for the exact variant list and the let-compression / forall-removal
// semantics (§4.4).
package smt

import "fmt"

// Sort is an SMT-LIB2 sort.
type Sort interface {
	String() string
	isSort()
}

type IntSort struct{}

func (IntSort) isSort()        {}
func (IntSort) String() string { return "Int" }

type BoolSort struct{}

func (BoolSort) isSort()        {}
func (BoolSort) String() string { return "Bool" }

// BVSort is a bitvector sort of the given width, used when
// options.Bounded integer semantics are selected.
type BVSort struct{ Width int }

func (s BVSort) isSort()        {}
func (s BVSort) String() string { return fmt.Sprintf("(_ BitVec %d)", s.Width) }

type ArraySort struct {
	Index   Sort
	Element Sort
}

func (s ArraySort) isSort()        {}
func (s ArraySort) String() string { return fmt.Sprintf("(Array %s %s)", s.Index, s.Element) }
