package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// headerMagic marks the start of a well-formed output stream, written once
// either by the first WriteRecord call (a non-empty stream still needs to
// be self-describing) or by WriteHeader: if zero records were written, the
// driver explicitly finalizes the output header before close.
var headerMagic = [4]byte{'R', 'W', 'S', 'T'}

// FileOutputStream is the concrete output stream contract: write_record,
// write_header, close, record_count.
type FileOutputStream struct {
	f           *os.File
	w           *bufio.Writer
	recordWidth int
	count       int
	wroteHeader bool
}

// CreateFileOutput creates (truncating) path as a fixed-width record
// output stream.
func CreateFileOutput(path string, recordWidth int) (*FileOutputStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileOutputStream{f: f, w: bufio.NewWriterSize(f, 256*1024), recordWidth: recordWidth}, nil
}

func (o *FileOutputStream) writeHeaderOnce() error {
	if o.wroteHeader {
		return nil
	}
	var hdr [6]byte
	copy(hdr[:4], headerMagic[:])
	binary.BigEndian.PutUint16(hdr[4:], uint16(o.recordWidth))
	if _, err := o.w.Write(hdr[:]); err != nil {
		return err
	}
	o.wroteHeader = true
	return nil
}

// WriteRecord writes one record (exactly recordWidth bytes), lazily
// writing the stream header first if this is the first record.
func (o *FileOutputStream) WriteRecord(rec []byte) error {
	if len(rec) != o.recordWidth {
		return fmt.Errorf("stream: record width %d does not match stream record width %d", len(rec), o.recordWidth)
	}
	if err := o.writeHeaderOnce(); err != nil {
		return err
	}
	if _, err := o.w.Write(rec); err != nil {
		return err
	}
	o.count++
	return nil
}

// RecordCount returns the number of records written so far.
func (o *FileOutputStream) RecordCount() int { return o.count }

// WriteHeader finalizes the stream header even if no records were ever
// written, so the output is a well-formed empty stream.
func (o *FileOutputStream) WriteHeader() error { return o.writeHeaderOnce() }

// Close flushes and closes the underlying file.
func (o *FileOutputStream) Close() error {
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return err
	}
	return o.f.Close()
}
