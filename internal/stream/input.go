// Package stream implements concrete input/output stream adapters: a
// next-record/close contract on the input side, a
// write-record/write-header/close/record-count contract on the output
// side. The core sorter (internal/driver, internal/merge) depends only on
// those method sets, never on this package, so swapping in a different
// transport never touches sort logic.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// MmapInputStream reads fixed-width records directly out of a memory-mapped
// file, zero-copy, with a plain-read fallback on platforms without mmap
// (see mmap_unix.go / mmap_other.go).
type MmapInputStream struct {
	f           *os.File
	data        []byte
	recordWidth int
	pos         int
}

// OpenMmapInput opens path and maps it for reading recordWidth-sized
// records. The file's size need not be a multiple of recordWidth only if it
// is empty; any other misaligned size is a fatal configuration error.
func OpenMmapInput(path string, recordWidth int) (*MmapInputStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmapFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: mmap %q: %w", path, err)
	}
	if len(data)%recordWidth != 0 {
		munmapFile(data)
		f.Close()
		return nil, fmt.Errorf("stream: %q size %d is not a multiple of record width %d", path, len(data), recordWidth)
	}
	return &MmapInputStream{f: f, data: data, recordWidth: recordWidth}, nil
}

// NextRecord returns the next record, or io.EOF once the file is exhausted.
// The returned slice aliases the mapping and is only valid until Close.
func (s *MmapInputStream) NextRecord() ([]byte, error) {
	if s.pos >= len(s.data) {
		return nil, io.EOF
	}
	rec := s.data[s.pos : s.pos+s.recordWidth]
	s.pos += s.recordWidth
	return rec, nil
}

// Close unmaps the file and closes its descriptor.
func (s *MmapInputStream) Close() error {
	var errs []error
	if err := munmapFile(s.data); err != nil {
		errs = append(errs, err)
	}
	if err := s.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// FileInputStream reads fixed-width records sequentially with plain,
// unbuffered reads on the file; OpenInput uses it for any path that is not
// a regular file (e.g. a pipe).
type FileInputStream struct {
	f           *os.File
	r           io.Reader
	recordWidth int
}

// OpenFileInput opens path for sequential reading.
func OpenFileInput(path string, recordWidth int) (*FileInputStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileInputStream{f: f, r: f, recordWidth: recordWidth}, nil
}

func (s *FileInputStream) NextRecord() ([]byte, error) {
	rec := make([]byte, s.recordWidth)
	if _, err := io.ReadFull(s.r, rec); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("stream: truncated record: %w", err)
		}
		return nil, err
	}
	return rec, nil
}

func (s *FileInputStream) Close() error { return s.f.Close() }

// InputStream is the method set both concrete input adapters satisfy.
type InputStream interface {
	NextRecord() ([]byte, error)
	Close() error
}

// OpenInput opens path as the default input stream: memory-mapped when it
// names a regular file, a plain sequential reader otherwise (a pipe or FIFO
// has no well-defined size to map).
func OpenInput(path string, recordWidth int) (InputStream, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode().IsRegular() {
		return OpenMmapInput(path, recordWidth)
	}
	return OpenFileInput(path, recordWidth)
}
