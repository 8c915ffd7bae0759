package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// Compression at the external stream boundary is explicitly allowed —
// spill files are never compressed, but the final output/input streams may
// be. CompressedOutputStream and CompressedInputStream wrap an lz4
// writer/reader directly: rwsort's output is read back start-to-finish,
// never seeked into, so one continuous lz4 frame suffices, with no block
// index needed.

var compressMagic = [4]byte{'R', 'W', 'C', '1'}

// CompressedOutputStream wraps a destination file with an lz4 writer.
type CompressedOutputStream struct {
	f           *os.File
	lw          *lz4.Writer
	recordWidth int
	count       int
	wroteHeader bool
}

// CreateCompressedOutput creates path and wraps it with an lz4 writer.
func CreateCompressedOutput(path string, recordWidth int) (*CompressedOutputStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(compressMagic[:]); err != nil {
		f.Close()
		return nil, err
	}
	lw := lz4.NewWriter(f)
	if err := lw.Apply(lz4.BlockSizeOption(lz4.Block64Kb)); err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: configure lz4 writer: %w", err)
	}
	return &CompressedOutputStream{f: f, lw: lw, recordWidth: recordWidth}, nil
}

func (o *CompressedOutputStream) writeHeaderOnce() error {
	if o.wroteHeader {
		return nil
	}
	var width [2]byte
	binary.BigEndian.PutUint16(width[:], uint16(o.recordWidth))
	if _, err := o.lw.Write(width[:]); err != nil {
		return err
	}
	o.wroteHeader = true
	return nil
}

func (o *CompressedOutputStream) WriteRecord(rec []byte) error {
	if len(rec) != o.recordWidth {
		return fmt.Errorf("stream: record width %d does not match stream record width %d", len(rec), o.recordWidth)
	}
	if err := o.writeHeaderOnce(); err != nil {
		return err
	}
	if _, err := o.lw.Write(rec); err != nil {
		return err
	}
	o.count++
	return nil
}

func (o *CompressedOutputStream) RecordCount() int { return o.count }

func (o *CompressedOutputStream) WriteHeader() error { return o.writeHeaderOnce() }

func (o *CompressedOutputStream) Close() error {
	if err := o.lw.Close(); err != nil {
		o.f.Close()
		return err
	}
	return o.f.Close()
}

// CompressedInputStream reads records back out of a stream written by
// CompressedOutputStream.
type CompressedInputStream struct {
	f           *os.File
	lr          *lz4.Reader
	recordWidth int
	started     bool
}

// OpenCompressedInput opens path and wraps it with an lz4 reader.
func OpenCompressedInput(path string, recordWidth int) (*CompressedInputStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: read compressed header: %w", err)
	}
	if magic != compressMagic {
		f.Close()
		return nil, fmt.Errorf("stream: %q is not a compressed rwsort stream", path)
	}
	return &CompressedInputStream{f: f, lr: lz4.NewReader(f), recordWidth: recordWidth}, nil
}

func (s *CompressedInputStream) readWidthOnce() error {
	if s.started {
		return nil
	}
	var width [2]byte
	if _, err := io.ReadFull(s.lr, width[:]); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *CompressedInputStream) NextRecord() ([]byte, error) {
	if err := s.readWidthOnce(); err != nil {
		return nil, err
	}
	rec := make([]byte, s.recordWidth)
	if _, err := io.ReadFull(s.lr, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *CompressedInputStream) Close() error { return s.f.Close() }
