// Package node defines the node layout: a record followed by the trailing
// plug-in key bytes the SortPlan's descriptors contribute, concatenated
// into one fixed-size block of width N = R + sum(plugin widths). This is
// the unit of storage, comparison, and I/O inside the sorter.
package node

import (
	"fmt"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// Node is one fixed-width node: record bytes at [0, RecordWidth), then each
// plug-in descriptor's key bytes at its assigned offset.
type Node []byte

// New allocates a zeroed node sized to plan.
func New(plan *sortkey.SortPlan) Node { return make(Node, plan.NodeWidth) }

// Build copies rec into the node's record region and runs every plug-in
// descriptor's extractor to fill in the trailing key bytes. rec must be
// exactly plan.RecordWidth bytes.
func Build(plan *sortkey.SortPlan, rec []byte) (Node, error) {
	if len(rec) != plan.RecordWidth {
		return nil, fmt.Errorf("node: record width %d does not match plan record width %d", len(rec), plan.RecordWidth)
	}
	n := New(plan)
	copy(n[:plan.RecordWidth], rec)
	if err := sortkey.ExtractKey(plan, rec, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Record returns the record portion of the node.
func (n Node) Record(plan *sortkey.SortPlan) []byte { return n[:plan.RecordWidth] }
