package diag

// Error codes for the verification engine.
//
// Code ranges mirror the teacher toolchain's E0xxx catalogue, adapted to
// the error kinds enumerated in spec.md §7:
//
//	R0001-R0099: front-end / matching failures (fatal, exit code 1)
//	R0100-R0199: mark analysis failures
//	R0200-R0299: dynamic-core failures (fatal to the one work item only)
//	R0800-R0899: warnings (non-fatal)

const (
	// R0001: the external C->IR front-end failed, or produced zero or
	// more than one translation unit.
	CodeFrontEndFailure = "R0001"

	// R0002: the two modules declare a different number of
	// non-declaration functions.
	CodeArityMismatch = "R0002"

	// R0003: a function present in one module has no counterpart in
	// the other.
	CodeMissingCounterpart = "R0003"

	// R0004: annotation comment body failed to parse.
	CodeAnnotationParseError = "R0004"

	// R0005: an instruction opcode has no encoding in the target
	// numeric semantics.
	CodeUnsupportedInstruction = "R0005"

	// R0101: the same block is reachable under two different mark
	// labels.
	CodeMarkConflict = "R0101"

	// R0201: the concrete interpreter hit division by zero, signed
	// overflow, or an out-of-bounds shift.
	CodeArithTrap = "R0201"

	// R0202: the interpreter's step budget was exhausted before the
	// procedure returned.
	CodeBudgetExceeded = "R0202"

	// W0801: an annotation directive was repeated; the first
	// occurrence wins.
	WarningDuplicateAnnotation = "W0801"

	// W0802: a floating-point value was encountered and is treated as
	// uninterpreted.
	WarningUninterpretedFloat = "W0802"
)

// descriptions gives a one-line human description per code, returned by
// Describe.
var descriptions = map[string]string{
	CodeFrontEndFailure:        "the C to IR front-end failed or produced an unexpected number of translation units",
	CodeArityMismatch:          "the two modules declare a different number of functions",
	CodeMissingCounterpart:     "a function exists in one module but not its counterpart",
	CodeAnnotationParseError:   "an embedded relational annotation could not be parsed",
	CodeUnsupportedInstruction: "an instruction has no encoding under the selected numeric semantics",
	CodeMarkConflict:           "a block is reachable under two different marks",
	CodeArithTrap:              "the concrete interpreter trapped on an arithmetic operation",
	CodeBudgetExceeded:         "the concrete interpreter exceeded its step budget",
	WarningDuplicateAnnotation: "a directive was declared more than once; the first occurrence is used",
	WarningUninterpretedFloat:  "floating point value treated as uninterpreted",
}

// Describe returns the human-readable description registered for code,
// or "" if none is registered.
func Describe(code string) string {
	return descriptions[code]
}
