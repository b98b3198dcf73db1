package ir

import "sort"

// Predecessors computes, for every block in f, the set of blocks whose
// terminator names it as a successor. Derived on demand rather than
// stored, since the arena model keeps no back-pointers (§9).
func (f *Function) Predecessors() map[BlockID][]BlockID {
	preds := make(map[BlockID][]BlockID, len(f.Blocks))
	for _, b := range f.Blocks {
		if b.Term == nil {
			continue
		}
		for _, s := range b.Term.Successors() {
			preds[s] = append(preds[s], b.ID)
		}
	}
	return preds
}

// LiveAt returns the set of value names live at the entry of block id:
// the parameters plus every phi and instruction result of every block
// from which id is reachable, id itself included. This
// conservative over-approximation (full reaching-definitions rather
// than true liveness) is the kind of sound-but-imprecise set a
// diagnostic or debugging consumer can use without needing the
// encoder's exact entry-live computation (encoder.freeVarsAtMark, which
// additionally excludes a mark's own straight-line instructions so a
// path's fresh computations are never double-counted as predicate
// inputs — see its doc comment for why the two must differ).
func (f *Function) LiveAt(id BlockID) []*Value {
	seen := make(map[ValueID]bool)
	var out []*Value
	for _, p := range f.Params {
		if !seen[p.Value] {
			seen[p.Value] = true
			out = append(out, f.Value(p.Value))
		}
	}
	reachable := f.reachesBlock(id)
	for _, b := range f.Blocks {
		if !reachable[b.ID] {
			continue
		}
		for _, ph := range b.Phis {
			if !seen[ph.Result] {
				seen[ph.Result] = true
				out = append(out, f.Value(ph.Result))
			}
		}
		for _, inst := range b.Insts {
			if inst.Result < 0 || seen[inst.Result] {
				continue
			}
			seen[inst.Result] = true
			out = append(out, f.Value(inst.Result))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// reachesBlock returns the set of blocks from which target is reachable
// (i.e. blocks that dominate-or-precede target along some path),
// computed as a reverse BFS from target over Predecessors. Entry always
// reaches itself trivially when id == Entry.
func (f *Function) reachesBlock(target BlockID) map[BlockID]bool {
	preds := f.Predecessors()
	visited := map[BlockID]bool{target: true}
	queue := []BlockID{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range preds[cur] {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return visited
}

// Names returns the names of vs in the order given; it does not sort
// (LiveAt's result is already name-ordered).
func Names(vs []*Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}
