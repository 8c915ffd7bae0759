// Package tempfile creates, opens, removes, and names run files by a
// monotonically increasing index, scoped to one sort invocation. Files hold
// raw nodes back-to-back with no framing and are never compressed.
package tempfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// bufWriterPool and bufReaderPool reuse bufio buffers across the many
// sequential create/open calls a long sort makes, instead of allocating a
// fresh buffer per run file.
var (
	bufWriterPool = sync.Pool{
		New: func() interface{} { return bufio.NewWriterSize(nil, 256*1024) },
	}
	bufReaderPool = sync.Pool{
		New: func() interface{} { return bufio.NewReaderSize(nil, 64*1024) },
	}
)

// Set manages the active run files for one sort invocation. Each Set gets
// its own uuid-named subdirectory under root so concurrent rwsort
// invocations sharing a --temp-dir never collide.
type Set struct {
	dir     string
	nextIdx int
}

// NewSet creates (and, if it does not already exist, the) root directory,
// then a fresh uuid-named subdirectory inside it for this invocation's runs.
func NewSet(root string) (*Set, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("tempfile: create temp root %q: %w", root, err)
	}
	dir := filepath.Join(root, "rwsort-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tempfile: create run directory %q: %w", dir, err)
	}
	return &Set{dir: dir}, nil
}

// Name returns the path diagnostics should use to refer to the file at idx,
// regardless of whether it currently exists.
func (s *Set) Name(idx int) string {
	return filepath.Join(s.dir, fmt.Sprintf("run-%08d.tmp", idx))
}

// Writer wraps the *os.File for a freshly created run with a pooled
// buffered writer; Close flushes, returns the buffer to the pool, and
// closes the underlying file.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
}

// Create opens a new run file with the next monotonic index and returns a
// buffered writer for it plus that index.
func (s *Set) Create() (*Writer, int, error) {
	idx := s.nextIdx
	s.nextIdx++
	f, err := os.Create(s.Name(idx))
	if err != nil {
		return nil, 0, fmt.Errorf("tempfile: create run %d: %w", idx, err)
	}
	bw := bufWriterPool.Get().(*bufio.Writer)
	bw.Reset(f)
	return &Writer{f: f, buf: bw}, idx, nil
}

func (w *Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

// Close flushes and closes the run file, returning the buffer to the pool.
func (w *Writer) Close() error {
	flushErr := w.buf.Flush()
	w.buf.Reset(nil)
	bufWriterPool.Put(w.buf)
	closeErr := w.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Reader wraps an *os.File for an existing run with a pooled buffered
// reader.
type Reader struct {
	f   *os.File
	buf *bufio.Reader
}

// Open opens the run file at idx for reading. Open returns whatever the OS
// reports, unwrapped, so a caller that needs to distinguish a resource limit
// (EMFILE/ENOMEM) from any other failure can do so with errors.Is.
func (s *Set) Open(idx int) (*Reader, error) {
	f, err := os.Open(s.Name(idx))
	if err != nil {
		return nil, err
	}
	br := bufReaderPool.Get().(*bufio.Reader)
	br.Reset(f)
	return &Reader{f: f, buf: br}, nil
}

func (r *Reader) Read(p []byte) (int, error) { return r.buf.Read(p) }

// Close closes the run file, returning the buffer to the pool.
func (r *Reader) Close() error {
	r.buf.Reset(nil)
	bufReaderPool.Put(r.buf)
	return r.f.Close()
}

// Remove deletes the run file at idx. A scheduled file may be deleted even
// if it was never successfully opened, so Remove tolerates a missing file.
func (s *Set) Remove(idx int) error {
	err := os.Remove(s.Name(idx))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// RemoveAll deletes the run directory and everything in it; used on both
// normal completion and fatal-exit cleanup, where the driver attempts to
// delete any temp files it knows of.
func (s *Set) RemoveAll() error {
	return os.RemoveAll(s.dir)
}
