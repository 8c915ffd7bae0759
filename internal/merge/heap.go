package merge

import "github.com/hrbrmstr/rwsort/internal/sortkey"

// indirectHeap is a min-heap over open-reader indices, keyed by comparing
// each reader's current scratch node. The heap stores small ints rather
// than owning node bytes, so heap operations are O(log F) in pointer
// moves, not node-byte copies, generalized to an arbitrary comparator over
// scratch nodes of any width.
type indirectHeap struct {
	plan    *sortkey.SortPlan
	scratch [][]byte // scratch[src] is the current node for reader src
	order   []int    // order[i] is a source index; order[0] is the minimum
	err     error
}

func newIndirectHeap(plan *sortkey.SortPlan, scratch [][]byte) *indirectHeap {
	return &indirectHeap{plan: plan, scratch: scratch, order: make([]int, 0, len(scratch))}
}

func (h *indirectHeap) Len() int { return len(h.order) }

func (h *indirectHeap) less(i, j int) bool {
	if h.err != nil {
		return false
	}
	c, err := sortkey.Compare(h.plan, h.scratch[h.order[i]], h.scratch[h.order[j]])
	if err != nil {
		h.err = err
		return false
	}
	return c < 0
}

func (h *indirectHeap) swap(i, j int) { h.order[i], h.order[j] = h.order[j], h.order[i] }

// push adds source src (whose current node is already in h.scratch[src]).
func (h *indirectHeap) push(src int) {
	h.order = append(h.order, src)
	h.up(len(h.order) - 1)
}

// min returns the source index at the top of the heap without removing it.
func (h *indirectHeap) min() int { return h.order[0] }

// pop removes and returns the minimum source index.
func (h *indirectHeap) pop() int {
	n := len(h.order)
	top := h.order[0]
	h.order[0] = h.order[n-1]
	h.order = h.order[:n-1]
	if len(h.order) > 0 {
		h.down(0)
	}
	return top
}

func (h *indirectHeap) up(j int) {
	for j > 0 {
		parent := (j - 1) / 2
		if parent == j || !h.less(j, parent) {
			break
		}
		h.swap(parent, j)
		j = parent
	}
}

func (h *indirectHeap) down(i int) {
	n := len(h.order)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && h.less(right, left) {
			child = right
		}
		if !h.less(child, i) {
			break
		}
		h.swap(i, child)
		i = child
	}
}
