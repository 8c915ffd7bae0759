package merge

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
	"github.com/hrbrmstr/rwsort/internal/tempfile"
)

// testPlan builds a minimal 4-byte-integer record layout, the smallest shape
// that exercises composite-key ordering end to end, keyed on that single
// field, ascending.
func testPlan() *sortkey.SortPlan {
	field := sortkey.BuiltIn(sortkey.BuiltInField{
		Name: "v",
		Get: func(rec []byte) sortkey.Value {
			return sortkey.IntValue(int64(binary.BigEndian.Uint32(rec)))
		},
	})
	return sortkey.NewSortPlan([]sortkey.Descriptor{field}, false, 4)
}

func node(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// sliceSource serves nodes from an in-memory slice, simulating a presorted
// input stream without touching disk.
type sliceSource struct {
	nodes [][]byte
	pos   int
}

func (s *sliceSource) Next(dst []byte) error {
	if s.pos >= len(s.nodes) {
		return io.EOF
	}
	copy(dst, s.nodes[s.pos])
	s.pos++
	return nil
}

func (s *sliceSource) Close() error { return nil }

func sliceOpener(vals ...uint32) Opener {
	nodes := make([][]byte, len(vals))
	for i, v := range vals {
		nodes[i] = node(v)
	}
	return Opener{
		Open: func() (Source, error) { return &sliceSource{nodes: nodes}, nil },
	}
}

// collectDestination records every node handed to it, in order.
type collectDestination struct {
	nodes [][]byte
}

func (d *collectDestination) WriteNode(n []byte) error {
	cp := make([]byte, len(n))
	copy(cp, n)
	d.nodes = append(d.nodes, cp)
	return nil
}
func (d *collectDestination) Close() error { return nil }

func vals(nodes [][]byte) []uint32 {
	out := make([]uint32, len(nodes))
	for i, n := range nodes {
		out[i] = binary.BigEndian.Uint32(n)
	}
	return out
}

func TestMergerSinglePass(t *testing.T) {
	plan := testPlan()
	set, err := tempfile.NewSet(t.TempDir())
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	m := New(plan, set, 64)

	runs := []Opener{
		sliceOpener(1, 5, 9),
		sliceOpener(2, 3),
		sliceOpener(4, 6, 7, 8),
	}
	dest := &collectDestination{}
	if err := m.Run(runs, dest); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := vals(dest.nodes)
	want := []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergerEmptyRun(t *testing.T) {
	plan := testPlan()
	set, err := tempfile.NewSet(t.TempDir())
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	m := New(plan, set, 64)

	runs := []Opener{
		sliceOpener(1, 2),
		sliceOpener(), // empty run, must be silently dropped
		sliceOpener(3),
	}
	dest := &collectDestination{}
	if err := m.Run(runs, dest); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := vals(dest.nodes)
	want := []uint32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergerCascade(t *testing.T) {
	plan := testPlan()
	set, err := tempfile.NewSet(t.TempDir())
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	// Fanout of 2 over 3 runs forces exactly one cascade pass: pass one
	// merges runs 0-1 into an intermediate, pass two merges that
	// intermediate with run 2 into the final destination.
	m := New(plan, set, 2)

	runs := []Opener{
		sliceOpener(1, 4),
		sliceOpener(2, 5),
		sliceOpener(3, 6),
	}
	dest := &collectDestination{}
	if err := m.Run(runs, dest); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := vals(dest.nodes)
	want := []uint32{1, 2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergerNoRuns(t *testing.T) {
	plan := testPlan()
	set, err := tempfile.NewSet(t.TempDir())
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	m := New(plan, set, 64)
	dest := &collectDestination{}
	if err := m.Run(nil, dest); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(dest.nodes) != 0 {
		t.Fatalf("expected no nodes, got %v", dest.nodes)
	}
}
