package interp

import (
	"hash/fnv"
	"sync"
)

// addressBook resolves ir.ValueGlobal / ir.ValueStringConst references
// to concrete addresses for the concrete interpreter, the dynamic-mode
// analogue of encoder.AddressBook (kept as a small, independent copy
// rather than an import: the two run at different pipeline stages —
// encoder resolves addresses for a coupled *pair* of already-static
// procedures, interp resolves them while concretely executing a single
// program at a time — but both need the same determinism property from
// spec.md §9's Open Question: identical string contents must collide
// on the same address in both programs, so interp content-hashes
// exactly like encoder.contentHashAddress does).
type addressBook struct {
	mu      sync.Mutex
	globals map[string]int64
	strings map[string]int64
}

func newAddressBook() *addressBook {
	return &addressBook{globals: map[string]int64{}, strings: map[string]int64{}}
}

func (ab *addressBook) globalAddress(name string) int64 {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if addr, ok := ab.globals[name]; ok {
		return addr
	}
	addr := -1000 - int64(len(ab.globals))
	ab.globals[name] = addr
	return addr
}

func (ab *addressBook) stringAddress(lit string) int64 {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if addr, ok := ab.strings[lit]; ok {
		return addr
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(lit))
	addr := -100000 - int64(h.Sum32()%1_000_000)
	ab.strings[lit] = addr
	return addr
}
