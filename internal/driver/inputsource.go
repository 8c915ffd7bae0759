package driver

import (
	"fmt"

	"github.com/hrbrmstr/rwsort/internal/merge"
	"github.com/hrbrmstr/rwsort/internal/node"
	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// inputSource adapts a presorted InputStream to merge.Source, re-deriving
// each record into a full node (extracting plug-in key bytes) on the fly —
// the presorted path never spills, so nodes are built lazily per read
// rather than precomputed into a buffer.
type inputSource struct {
	plan *sortkey.SortPlan
	in   InputStream
}

func newInputSource(plan *sortkey.SortPlan, in InputStream) merge.Source {
	return &inputSource{plan: plan, in: in}
}

func (s *inputSource) Next(dst []byte) error {
	rec, err := s.in.NextRecord()
	if err != nil {
		return err
	}
	n, err := node.Build(s.plan, rec)
	if err != nil {
		return fmt.Errorf("driver: build node from presorted input: %w", err)
	}
	copy(dst, n)
	return nil
}

func (s *inputSource) Close() error { return s.in.Close() }
