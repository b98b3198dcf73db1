package interp

import (
	"math/big"
	"sort"
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// WorkItem is one seed input for the dynamic trace collector: a
// positional argument list for each program, an initial heap
// background, and a set of heap overrides to seed before interpreting.
// Modeled on original_source's SerializeTraces.h WorkItem (a MonoPair
// of value vectors plus a MonoPair of heaps), flattened to this
// package's single-Heap-per-program shape. Counter orders results
// back into submission order once workers finish out of order. The
// queue uses no sentinel item: workers stop when Close has been called
// and the queue is drained, and a negative Counter has no special
// meaning.
type WorkItem struct {
	Args1, Args2 []*big.Int
	Background1  int64
	Background2  int64
	Overrides1   map[int64]*big.Int
	Overrides2   map[int64]*big.Int
	HeapSet      bool
	Counter      int
}

// TracePair is the paired result of interpreting one WorkItem against
// both programs' entry functions.
type TracePair struct {
	Counter      int
	Call1, Call2 *Call
	Trace1       *Trace
	Trace2       *Trace
	Err          error
}

// Queue is a bounded, monitor-style FIFO of WorkItems shared by a fixed
// pool of workers (spec.md §5's "a bounded queue of seed work items,
// drained by a fixed worker pool"). Push blocks while the queue is at
// capacity; Pop blocks while it is empty. Grounded on
// aclements-go-misc/gopool's Checkout/Checkin shape (a single mutex
// guarding a plain slice, condition-signalled rather than
// channel-signalled) adapted from a checkout/checkin resource pool to
// a blocking producer/consumer buffer — go-deadlock's Mutex stands in
// for sync.Mutex so a stuck worker holding the lock across a
// dynamic-mode run is reported instead of hanging silently.
type Queue struct {
	mu       deadlock.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []WorkItem
	capacity int
	closed   bool
}

// NewQueue builds a Queue holding at most capacity pending items.
func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push adds item, blocking while the queue is full. Push after Close
// is a no-op: a producer racing a shutdown simply drops its item.
func (q *Queue) Push(item WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
}

// Pop removes and returns the oldest item, blocking while the queue is
// empty. ok is false once the queue has been closed and drained.
func (q *Queue) Pop() (item WorkItem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return WorkItem{}, false
	}
	item, q.items = q.items[0], q.items[1:]
	q.notFull.Signal()
	return item, true
}

// Close marks the queue closed and wakes every blocked Push/Pop; items
// already buffered still drain via Pop before it starts returning false.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// RunPair interprets a WorkItem's args against fn1 in in1 and fn2 in
// in2, producing the paired traces the invariant synthesiser (C8)
// fits a coupling equation to.
func RunPair(in1, in2 *Interpreter, fn1, fn2 string, w WorkItem) TracePair {
	call1, trace1, err1 := in1.Run(fn1, w.Args1, w.Background1)
	if err1 == nil {
		seedHeap(call1, w.Overrides1)
	}
	call2, trace2, err2 := in2.Run(fn2, w.Args2, w.Background2)
	if err2 == nil {
		seedHeap(call2, w.Overrides2)
	}
	var err error
	if err1 != nil {
		err = err1
	} else if err2 != nil {
		err = err2
	}
	return TracePair{Counter: w.Counter, Call1: call1, Call2: call2, Trace1: trace1, Trace2: trace2, Err: err}
}

func seedHeap(c *Call, overrides map[int64]*big.Int) {
	if c == nil || len(overrides) == 0 {
		return
	}
	for addr, val := range overrides {
		c.Entry.Heap.Overrides[addr] = val
	}
}

// Collect runs every WorkItem in items against fn1/fn2 using workers
// goroutines draining a bounded Queue, and returns the results restored
// to submission order (spec.md §5's determinism requirement: "the
// pool's internal interleaving of results must never be observable in
// the synthesiser's input"). A non-positive workers falls back to a
// single worker, matching Options.Workers == 0 meaning "unset".
func Collect(in1, in2 *Interpreter, fn1, fn2 string, items []WorkItem, workers int) []TracePair {
	if workers <= 0 {
		workers = 1
	}
	q := NewQueue(len(items) + 1)
	for i := range items {
		items[i].Counter = i
		q.Push(items[i])
	}
	q.Close()

	results := make(chan TracePair, len(items))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := q.Pop()
				if !ok {
					return
				}
				results <- RunPair(in1, in2, fn1, fn2, item)
			}
		}()
	}
	wg.Wait()
	close(results)

	out := make([]TracePair, 0, len(items))
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Counter < out[j].Counter })
	return out
}
