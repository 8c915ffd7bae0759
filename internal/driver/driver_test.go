package driver

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// intPlan keys on a 4-byte big-endian integer record, the smallest shape
// that exercises the driver's fill/spill/merge paths end to end.
func intPlan(reverse bool) *sortkey.SortPlan {
	field := sortkey.BuiltIn(sortkey.BuiltInField{
		Name: "v",
		Get: func(rec []byte) sortkey.Value {
			return sortkey.IntValue(int64(binary.BigEndian.Uint32(rec)))
		},
	})
	return sortkey.NewSortPlan([]sortkey.Descriptor{field}, reverse, 4)
}

// sliceInput feeds a fixed slice of 4-byte records, then io.EOF.
type sliceInput struct {
	vals []int32
	pos  int
}

func newSliceInput(vals ...int32) *sliceInput { return &sliceInput{vals: vals} }

func (s *sliceInput) NextRecord() ([]byte, error) {
	if s.pos >= len(s.vals) {
		return nil, io.EOF
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(s.vals[s.pos]))
	s.pos++
	return b, nil
}

func (s *sliceInput) Close() error { return nil }

// memOutput is an in-memory OutputWriter recording every written record and
// whether write_header was ever called on an empty stream.
type memOutput struct {
	records    [][]byte
	headerOnly bool
	closed     bool
}

func (o *memOutput) WriteRecord(rec []byte) error {
	cp := make([]byte, len(rec))
	copy(cp, rec)
	o.records = append(o.records, cp)
	return nil
}

func (o *memOutput) RecordCount() int { return len(o.records) }
func (o *memOutput) WriteHeader() error {
	o.headerOnly = true
	return nil
}
func (o *memOutput) Close() error { o.closed = true; return nil }

func (o *memOutput) values() []int32 {
	out := make([]int32, len(o.records))
	for i, r := range o.records {
		out[i] = int32(binary.BigEndian.Uint32(r))
	}
	return out
}

func assertEqualInt32(t *testing.T, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// 9 records at 4 bytes each exceed a 32-byte buffer, forcing two spilled
// run files, which a fanout of 3 merges in a single pass.
func TestRandomPathMultipleRuns(t *testing.T) {
	plan := intPlan(false)
	cfg := Config{Plan: plan, BufferBudget: 32, Fanout: 3, TempRoot: t.TempDir()}
	in := newSliceInput(5, 2, 8, 1, 9, 3, 7, 4, 6)
	out := &memOutput{}
	if err := RunRandom(cfg, []InputStream{in}, out); err != nil {
		t.Fatalf("RunRandom: %v", err)
	}
	assertEqualInt32(t, out.values(), []int32{1, 2, 3, 4, 5, 6, 7, 8, 9})
}

func TestRandomPathEmptyInput(t *testing.T) {
	plan := intPlan(false)
	cfg := Config{Plan: plan, BufferBudget: 32, Fanout: 3, TempRoot: t.TempDir()}
	in := newSliceInput()
	out := &memOutput{}
	if err := RunRandom(cfg, []InputStream{in}, out); err != nil {
		t.Fatalf("RunRandom: %v", err)
	}
	if len(out.records) != 0 {
		t.Fatalf("expected no records, got %v", out.values())
	}
	if !out.headerOnly {
		t.Fatalf("expected write_header to be called for empty output")
	}
}

// A single record never fills the buffer, so it reaches the output
// directly with no spill.
func TestRandomPathSingleRecord(t *testing.T) {
	plan := intPlan(false)
	cfg := Config{Plan: plan, BufferBudget: 32, Fanout: 3, TempRoot: t.TempDir()}
	in := newSliceInput(42)
	out := &memOutput{}
	if err := RunRandom(cfg, []InputStream{in}, out); err != nil {
		t.Fatalf("RunRandom: %v", err)
	}
	assertEqualInt32(t, out.values(), []int32{42})
}

// All records compare equal under the key: the sort must still produce a
// valid permutation with no errors.
func TestRandomPathAllRecordsEqual(t *testing.T) {
	plan := intPlan(false)
	cfg := Config{Plan: plan, BufferBudget: 32, Fanout: 3, TempRoot: t.TempDir()}
	in := newSliceInput(3, 3, 3, 3, 3)
	out := &memOutput{}
	if err := RunRandom(cfg, []InputStream{in}, out); err != nil {
		t.Fatalf("RunRandom: %v", err)
	}
	assertEqualInt32(t, out.values(), []int32{3, 3, 3, 3, 3})
}

// Three presorted inputs interleave directly into a total order; all three
// readers fit in one pass under a fanout of 3, so no temp files are needed.
func TestPresortedPathInterleavesInputs(t *testing.T) {
	plan := intPlan(false)
	cfg := Config{Plan: plan, BufferBudget: 32, Fanout: 3, TempRoot: t.TempDir()}
	inputs := []InputStream{
		newSliceInput(1, 4, 7),
		newSliceInput(2, 5, 8),
		newSliceInput(3, 6, 9),
	}
	out := &memOutput{}
	if err := RunPresorted(cfg, inputs, out); err != nil {
		t.Fatalf("RunPresorted: %v", err)
	}
	assertEqualInt32(t, out.values(), []int32{1, 2, 3, 4, 5, 6, 7, 8, 9})
}

func TestRandomPathReverseOrder(t *testing.T) {
	plan := intPlan(true)
	cfg := Config{Plan: plan, BufferBudget: 32, Fanout: 3, TempRoot: t.TempDir()}
	in := newSliceInput(1, 2, 3, 4, 5)
	out := &memOutput{}
	if err := RunRandom(cfg, []InputStream{in}, out); err != nil {
		t.Fatalf("RunRandom: %v", err)
	}
	assertEqualInt32(t, out.values(), []int32{5, 4, 3, 2, 1})
}
