package invariant

import (
	"math/big"

	"kanso/internal/interp"
	"kanso/internal/ir"
)

// SamplesAtMark projects every MarkSample matching mark, across every
// trace in traces, onto order (a fixed ValueID ordering — typically a
// MarkSignature's free-variable list for one side of the coupling),
// yielding the row-major sample matrix Synthesize expects. A trace
// missing one of order's values (a value never assigned along the path
// that produced it — e.g. a variable only live on one branch) drops
// that sample entirely rather than guessing a default, since a
// fabricated 0 would corrupt the fitted equation.
func SamplesAtMark(traces []*interp.Trace, mark ir.Mark, order []ir.ValueID) [][]*big.Int {
	var out [][]*big.Int
	for _, tr := range traces {
		if tr == nil {
			continue
		}
		for _, s := range tr.Samples {
			if s.Mark != mark {
				continue
			}
			row, ok := project(s.Values, order)
			if ok {
				out = append(out, row)
			}
		}
	}
	return out
}

func project(values map[ir.ValueID]*big.Int, order []ir.ValueID) ([]*big.Int, bool) {
	row := make([]*big.Int, len(order))
	for i, id := range order {
		v, ok := values[id]
		if !ok {
			return nil, false
		}
		row[i] = v
	}
	return row, true
}
