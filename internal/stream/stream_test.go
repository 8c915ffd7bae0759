package stream

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func rec(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestFileOutputWritesHeaderAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.rws")
	out, err := CreateFileOutput(path, 4)
	if err != nil {
		t.Fatalf("CreateFileOutput: %v", err)
	}
	want := []uint32{1, 2, 3}
	for _, v := range want {
		if err := out.WriteRecord(rec(v)); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if out.RecordCount() != len(want) {
		t.Fatalf("RecordCount = %d, want %d", out.RecordCount(), len(want))
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	const headerWidth = 6
	if len(raw) != headerWidth+len(want)*4 {
		t.Fatalf("file length = %d, want %d", len(raw), headerWidth+len(want)*4)
	}
	if string(raw[:4]) != "RWST" {
		t.Fatalf("unexpected header magic: %q", raw[:4])
	}
	if binary.BigEndian.Uint16(raw[4:6]) != 4 {
		t.Fatalf("unexpected header record width: %d", binary.BigEndian.Uint16(raw[4:6]))
	}
	for i, v := range want {
		off := headerWidth + i*4
		if got := binary.BigEndian.Uint32(raw[off : off+4]); got != v {
			t.Fatalf("record %d = %d, want %d", i, got, v)
		}
	}
}

func TestMmapInputReadsAlignedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.rws")
	var buf []byte
	for _, v := range []uint32{7, 8, 9} {
		buf = append(buf, rec(v)...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	in, err := OpenMmapInput(path, 4)
	if err != nil {
		t.Fatalf("OpenMmapInput: %v", err)
	}
	defer in.Close()

	var got []uint32
	for {
		b, err := in.NextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		got = append(got, binary.BigEndian.Uint32(b))
	}
	want := []uint32{7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFileInputReadsSequentially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.rws")
	var buf []byte
	for _, v := range []uint32{11, 12, 13} {
		buf = append(buf, rec(v)...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	in, err := OpenFileInput(path, 4)
	if err != nil {
		t.Fatalf("OpenFileInput: %v", err)
	}
	defer in.Close()

	var got []uint32
	for {
		b, err := in.NextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		got = append(got, binary.BigEndian.Uint32(b))
	}
	want := []uint32{11, 12, 13}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOpenInputPicksMmapForRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.rws")
	if err := os.WriteFile(path, rec(99), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	in, err := OpenInput(path, 4)
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	defer in.Close()
	if _, ok := in.(*MmapInputStream); !ok {
		t.Fatalf("expected *MmapInputStream for a regular file, got %T", in)
	}
}

func TestMmapInputRejectsMisalignedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rws")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := OpenMmapInput(path, 4); err == nil {
		t.Fatalf("expected error for misaligned file size")
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.rwsz")
	out, err := CreateCompressedOutput(path, 4)
	if err != nil {
		t.Fatalf("CreateCompressedOutput: %v", err)
	}
	want := []uint32{10, 20, 30, 40}
	for _, v := range want {
		if err := out.WriteRecord(rec(v)); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in, err := OpenCompressedInput(path, 4)
	if err != nil {
		t.Fatalf("OpenCompressedInput: %v", err)
	}
	defer in.Close()

	got := make([]uint32, 0, len(want))
	for {
		b, err := in.NextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		got = append(got, binary.BigEndian.Uint32(b))
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCompressedEmptyStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rwsz")
	out, err := CreateCompressedOutput(path, 4)
	if err != nil {
		t.Fatalf("CreateCompressedOutput: %v", err)
	}
	if err := out.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in, err := OpenCompressedInput(path, 4)
	if err != nil {
		t.Fatalf("OpenCompressedInput: %v", err)
	}
	defer in.Close()
	if _, err := in.NextRecord(); err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}
