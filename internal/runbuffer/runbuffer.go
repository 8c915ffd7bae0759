// Package runbuffer implements the in-memory run buffer: a contiguous
// region of nodes that grows geometrically toward a memory budget, sorts in
// place when full, and hands its contents off for emission (spill to a
// temp file, or direct-to-output when it is the only run).
package runbuffer

import (
	"fmt"
	"sort"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// DefaultChunkDivisor is G, the initial chunk divisor: the buffer starts at
// C0 = floor(Cmax/G) nodes and grows by the same increment. Matches
// SORT_NUM_CHUNKS in the original tool.
const DefaultChunkDivisor = 8

// MinInCore is the floor below which the initial allocation must not fall;
// if growing the chunk divisor would push C0 under this, allocation is a
// fatal error. Matches MIN_IN_CORE_RECORDS in the original tool.
const MinInCore = 1000

// Buffer is the run buffer. Nodes live in one contiguous []byte, indexed as
// fixed-width slices — not [][]byte — so growth is a single realloc+copy
// rather than per-node pointer chasing.
type Buffer struct {
	plan      *sortkey.SortPlan
	budget    int // B, bytes
	chunkDiv  int // G
	data      []byte
	capacity  int // C, in nodes
	maxCap    int // Cmax, in nodes; may be pinned below B/N on realloc failure
	count     int // nodes currently filled
	nodeWidth int // N, bytes per node
}

// New allocates the initial chunk. It retries with a larger chunk divisor
// on allocation failure, giving up only once C0 would fall below
// MinInCore.
//
// Go's runtime does not expose malloc failure the way C's calloc does —
// make() panics instead of returning nil — so "allocation failure" here is
// modeled as the caller-supplied allocate callback reporting false, which
// lets the retry/give-up paths be driven deterministically.
func New(plan *sortkey.SortPlan, budget int, allocate func(n int) ([]byte, bool)) (*Buffer, error) {
	nodeWidth := plan.NodeWidth
	if nodeWidth <= 0 {
		return nil, fmt.Errorf("runbuffer: invalid node width %d", nodeWidth)
	}
	maxCap := budget / nodeWidth
	if maxCap < 1 {
		maxCap = 1
	}

	chunkDiv := DefaultChunkDivisor
	for {
		c0 := maxCap / chunkDiv
		if c0 < 1 {
			c0 = 1
		}
		if c0 < MinInCore && maxCap >= MinInCore {
			// Only enforce the floor while it is still achievable;
			// once maxCap itself is under the floor (tiny budgets,
			// e.g. tests), a smaller c0 is the best we can do.
			if buf, ok := allocate(MinInCore * nodeWidth); ok {
				return &Buffer{plan: plan, budget: budget, chunkDiv: chunkDiv, data: buf[:0:len(buf)], capacity: MinInCore, maxCap: maxCap, nodeWidth: nodeWidth}, nil
			}
			return nil, fmt.Errorf("runbuffer: cannot allocate even the minimum in-core buffer (%d records)", MinInCore)
		}
		if buf, ok := allocate(c0 * nodeWidth); ok {
			return &Buffer{plan: plan, budget: budget, chunkDiv: chunkDiv, data: buf[:0:len(buf)], capacity: c0, maxCap: maxCap, nodeWidth: nodeWidth}, nil
		}
		if c0 < MinInCore {
			return nil, fmt.Errorf("runbuffer: cannot allocate even the minimum in-core buffer (%d records)", MinInCore)
		}
		chunkDiv *= 2
	}
}

// defaultAllocate is the allocate callback real callers pass: Go's make
// never fails short of the process running out of address space, at which
// point it panics, so production use has no retry to perform. It exists as
// a named function so callers don't need to write the obvious closure.
func defaultAllocate(n int) ([]byte, bool) { return make([]byte, n), true }

// NewDefault builds a Buffer using Go's ordinary allocator.
func NewDefault(plan *sortkey.SortPlan, budget int) (*Buffer, error) {
	return New(plan, budget, defaultAllocate)
}

// Count returns the number of nodes currently held.
func (b *Buffer) Count() int { return b.count }

// Full reports whether the buffer has reached its current ceiling.
func (b *Buffer) Full() bool { return b.count >= b.capacity }

// Append adds one pre-built node to the buffer. The caller must check Full
// first (the driver alternates Append/sort+emit).
func (b *Buffer) Append(n []byte) error {
	if len(n) != b.nodeWidth {
		return fmt.Errorf("runbuffer: node width %d does not match buffer node width %d", len(n), b.nodeWidth)
	}
	if b.count >= b.capacity {
		return fmt.Errorf("runbuffer: buffer is full at capacity %d", b.capacity)
	}
	b.data = append(b.data, n...)
	b.count++
	return nil
}

// Grow attempts to extend the buffer toward maxCap by one chunk
// (ΔC = Cmax/G). On success it returns true and the buffer can accept more
// nodes before the next sort+emit. On failure (as reported by allocate) it
// pins maxCap at the current capacity — "the current count becomes the
// ceiling" — and returns false; the caller should treat the buffer as full
// at its new, smaller ceiling.
func (b *Buffer) Grow(allocate func(n int) ([]byte, bool)) bool {
	if b.capacity >= b.maxCap {
		return false
	}
	delta := b.maxCap / b.chunkDiv
	if delta < 1 {
		delta = 1
	}
	newCap := b.capacity + delta
	if newCap > b.maxCap {
		newCap = b.maxCap
	}
	newBuf, ok := allocate(newCap * b.nodeWidth)
	if !ok {
		b.maxCap = b.capacity
		return false
	}
	copy(newBuf, b.data)
	b.data = newBuf[:len(b.data):len(newBuf)]
	b.capacity = newCap
	return true
}

// GrowDefault grows using Go's ordinary allocator (never reports failure in
// practice; see New's doc comment).
func (b *Buffer) GrowDefault() bool { return b.Grow(defaultAllocate) }

// SortInPlace orders all filled nodes by plan's comparator. Any plug-in
// comparator error aborts the sort; identifying which comparison failed is
// left to the caller via the returned error.
func (b *Buffer) SortInPlace() error {
	nw := b.nodeWidth
	n := b.count
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.Slice(idx, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		ai := idx[i] * nw
		bi := idx[j] * nw
		c, err := sortkey.Compare(b.plan, b.data[ai:ai+nw], b.data[bi:bi+nw])
		if err != nil {
			sortErr = err
			return false
		}
		return c < 0
	})
	if sortErr != nil {
		return sortErr
	}
	reordered := make([]byte, len(b.data))
	for newPos, oldIdx := range idx {
		copy(reordered[newPos*nw:(newPos+1)*nw], b.data[oldIdx*nw:(oldIdx+1)*nw])
	}
	copy(b.data, reordered)
	return nil
}

// Nodes returns the filled nodes as a slice of byte-slice views into the
// buffer's backing array (no copy). Valid until the next Reset.
func (b *Buffer) Nodes() [][]byte {
	out := make([][]byte, b.count)
	nw := b.nodeWidth
	for i := range out {
		out[i] = b.data[i*nw : (i+1)*nw]
	}
	return out
}

// Reset empties the buffer for the next run, keeping its backing array
// (and current capacity/ceiling) for reuse.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.count = 0
}
