package merge

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/hrbrmstr/rwsort/internal/tempfile"
)

// Source produces a sorted stream of full-width nodes, in ascending node
// order, for one run: a spilled temp file or (in the presorted path) an
// input stream already re-derived into node form.
type Source interface {
	// Next reads one node into dst (len(dst) == plan.NodeWidth) and reports
	// io.EOF once the run is exhausted.
	Next(dst []byte) error
	Close() error
}

// Destination consumes the merged stream in node order. WriteNode always
// receives the full node; each implementation decides for itself how much
// of it to keep. An intermediate spill (tempDestination) keeps every byte —
// record plus plug-in key bytes — so a later pass can re-derive keys
// without re-extracting. The final external output (outputDestination)
// keeps only the leading record-width prefix — the same distinction the
// original draws between its node_size fwrite to intermediate files and
// its rwRec-width skStreamWriteRecord to the output stream.
type Destination interface {
	WriteNode(node []byte) error
	Close() error
}

// tempSource reads nodes back out of a run file created by tempfile.Set.
type tempSource struct {
	r         *tempfile.Reader
	nodeWidth int
}

func newTempSource(r *tempfile.Reader, nodeWidth int) *tempSource {
	return &tempSource{r: r, nodeWidth: nodeWidth}
}

func (s *tempSource) Next(dst []byte) error {
	_, err := io.ReadFull(s.r, dst)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("merge: truncated node in run file: %w", err)
		}
		return err
	}
	return nil
}

func (s *tempSource) Close() error { return s.r.Close() }

// tempDestination spills full nodes to a new run file.
type tempDestination struct {
	w *tempfile.Writer
}

func newTempDestination(w *tempfile.Writer) *tempDestination { return &tempDestination{w: w} }

// NewTempDestination wraps a freshly created run-file writer for use as a
// Destination. The driver uses this directly to spill a full run buffer,
// the same full-node format the merger itself writes between cascade
// passes.
func NewTempDestination(w *tempfile.Writer) Destination { return newTempDestination(w) }

func (d *tempDestination) WriteNode(node []byte) error {
	_, err := d.w.Write(node)
	return err
}

func (d *tempDestination) Close() error { return d.w.Close() }

// OutputWriter is the external final-output contract: write_record for each
// merged node (record-width only), a record_count accessor, write_header
// (used only if record_count is still zero at close), then close.
type OutputWriter interface {
	WriteRecord(rec []byte) error
	RecordCount() int
	WriteHeader() error
	Close() error
}

// outputDestination adapts an OutputWriter to Destination, stripping each
// node down to its record-width prefix before handing it to the stream —
// the plug-in key bytes a node carries for merge purposes never reach the
// caller's external format.
type outputDestination struct {
	w           OutputWriter
	recordWidth int
}

// NewOutputDestination wraps an OutputWriter for use as a merger
// Destination.
func NewOutputDestination(w OutputWriter, recordWidth int) Destination {
	return &outputDestination{w: w, recordWidth: recordWidth}
}

func (d *outputDestination) WriteNode(node []byte) error {
	return d.w.WriteRecord(node[:d.recordWidth])
}

func (d *outputDestination) Close() error {
	if d.w.RecordCount() == 0 {
		if err := d.w.WriteHeader(); err != nil {
			return err
		}
	}
	return d.w.Close()
}

// isResourceErr reports whether err is a resource-exhaustion failure the
// merger treats identically regardless of cause: too many open files, or out
// of memory. Both surface as syscall.Errno on every platform Go supports.
func isResourceErr(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENOMEM)
}
