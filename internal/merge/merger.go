// Package merge implements the bounded-fanout K-way merger: it consumes an
// ordered list of runs (temp files, or already-sorted input streams in the
// presorted path), merges up to Fmax of them per pass, and cascades through
// intermediate spill files when the active set does not fit in one pass —
// mirroring the EMFILE/ENOMEM-driven fanout truncation of the original
// tool's sortRandom. The merge loop itself stays single-threaded and free
// of shared mutable state rather than running each source on its own
// goroutine.
package merge

import (
	"fmt"
	"io"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
	"github.com/hrbrmstr/rwsort/internal/tempfile"
)

// DefaultFanout is used when the host platform exposes no open-file rlimit
// to query (see FanoutBudget). MaxFanout caps the rlimit-derived budget so
// one sort invocation does not try to claim the entire process file-
// descriptor table for itself.
const (
	DefaultFanout = 64
	MaxFanout     = 1024
)

// Opener produces one run's Source on demand and, if the run lives in a
// file this merger owns, deletes it once consumed. Remove is a no-op for
// runs the merger does not own (original input files in the presorted
// path): the driver never deletes the caller's inputs.
type Opener struct {
	Open   func() (Source, error)
	Remove func() error
}

// TempOpener builds an Opener over a run file inside set at idx.
func TempOpener(set *tempfile.Set, idx int, nodeWidth int) Opener {
	return Opener{
		Open: func() (Source, error) {
			r, err := set.Open(idx)
			if err != nil {
				return nil, err
			}
			return newTempSource(r, nodeWidth), nil
		},
		Remove: func() error { return set.Remove(idx) },
	}
}

// Merger runs bounded-fanout merge passes over a growing active list of
// runs, writing the final pass to an external Destination and every
// intermediate pass to a freshly created temp file.
type Merger struct {
	plan *sortkey.SortPlan
	set  *tempfile.Set
	fmax int
}

// New builds a Merger. fmax must be at least 2; callers size it from the
// process's open-file budget (see FanoutBudget).
func New(plan *sortkey.SortPlan, set *tempfile.Set, fmax int) *Merger {
	if fmax < 2 {
		fmax = 2
	}
	return &Merger{plan: plan, set: set, fmax: fmax}
}

// Run merges the given runs down to a single ordered stream written to
// final. Runs may themselves be intermediate temp files created by earlier
// cascade passes appended during this call; the active list only grows.
func (m *Merger) Run(runs []Opener, final Destination) error {
	active := make([]Opener, len(runs))
	copy(active, runs)

	if len(active) == 0 {
		return final.Close()
	}

	a := 0
	for a < len(active) {
		end := len(active) - 1
		windowEnd := a + m.fmax - 1
		if windowEnd > end {
			windowEnd = end
		}

		sources := make([]Source, 0, windowEnd-a+1)
		openedUpTo := a - 1
		for i := a; i <= windowEnd; i++ {
			src, err := active[i].Open()
			if err != nil {
				if isResourceErr(err) {
					if i == a {
						closeAll(sources)
						return fmt.Errorf("merge: cannot open even one run (resource limit): %w", err)
					}
					break
				}
				closeAll(sources)
				return fmt.Errorf("merge: open run %d: %w", i, err)
			}
			sources = append(sources, src)
			openedUpTo = i
		}

		bTrunc := openedUpTo
		isFinalPass := bTrunc == end

		var dest Destination
		var interIdx int
		var interOwned bool
		if isFinalPass {
			dest = final
		} else {
			w, idx, err := m.set.Create()
			if err != nil {
				closeAll(sources)
				return fmt.Errorf("merge: create intermediate run: %w", err)
			}
			dest = newTempDestination(w)
			interIdx = idx
			interOwned = true
		}

		if err := mergeSources(m.plan, sources, dest); err != nil {
			closeAll(sources)
			if !isFinalPass {
				dest.Close()
			}
			return err
		}
		closeAll(sources)
		if !isFinalPass {
			if err := dest.Close(); err != nil {
				return fmt.Errorf("merge: close intermediate run: %w", err)
			}
		} else {
			if err := dest.Close(); err != nil {
				return fmt.Errorf("merge: close output: %w", err)
			}
		}

		for i := a; i <= bTrunc; i++ {
			if active[i].Remove != nil {
				if err := active[i].Remove(); err != nil {
					return fmt.Errorf("merge: delete consumed run %d: %w", i, err)
				}
			}
		}

		if interOwned {
			active = append(active, TempOpener(m.set, interIdx, m.plan.NodeWidth))
		}
		a = bTrunc + 1
	}
	return nil
}

func closeAll(sources []Source) {
	for _, s := range sources {
		s.Close()
	}
}

// mergeSources drains sources in ascending node order into dest using an
// indirection-keyed min-heap: one scratch node per source, the heap
// ordering sources by their current scratch content rather than moving
// node bytes through heap operations.
func mergeSources(plan *sortkey.SortPlan, sources []Source, dest Destination) error {
	n := len(sources)
	scratch := make([][]byte, n)
	for i := range scratch {
		scratch[i] = make([]byte, plan.NodeWidth)
	}

	h := newIndirectHeap(plan, scratch)
	for i, s := range sources {
		if err := advance(h, s, i, scratch); err != nil {
			return err
		}
	}
	if h.err != nil {
		return h.err
	}

	for h.Len() > 0 {
		src := h.min()
		if err := dest.WriteNode(scratch[src]); err != nil {
			return fmt.Errorf("merge: write node: %w", err)
		}
		h.pop()
		if err := advance(h, sources[src], src, scratch); err != nil {
			return err
		}
		if h.err != nil {
			return h.err
		}
	}
	return nil
}

// advance reads the next node from s into scratch[src] and re-seeds it into
// the heap, or silently drops src on EOF: an empty or exhausted run
// contributes nothing further.
func advance(h *indirectHeap, s Source, src int, scratch [][]byte) error {
	err := s.Next(scratch[src])
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("merge: read run %d: %w", src, err)
	}
	h.push(src)
	return nil
}
