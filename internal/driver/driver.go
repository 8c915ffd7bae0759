// Package driver implements the sort driver: the random-input path that
// fills and spills the run buffer before merging, and the presorted-input
// path that skips run production entirely and merges the caller's
// already-sorted inputs directly. Both paths end in the same
// bounded-fanout merge over internal/merge.
package driver

import (
	"errors"
	"fmt"
	"io"

	"github.com/hrbrmstr/rwsort/internal/merge"
	"github.com/hrbrmstr/rwsort/internal/node"
	"github.com/hrbrmstr/rwsort/internal/runbuffer"
	"github.com/hrbrmstr/rwsort/internal/sortkey"
	"github.com/hrbrmstr/rwsort/internal/tempfile"
)

// InputStream is the external input contract: NextRecord returns io.EOF at
// the end of the stream; any other error is fatal.
type InputStream interface {
	NextRecord() ([]byte, error)
	Close() error
}

// Config bundles what the driver needs beyond the plan itself.
type Config struct {
	Plan         *sortkey.SortPlan
	BufferBudget int // B, bytes; sized into runbuffer.New
	Fanout       int // F_max
	TempRoot     string
}

// RunRandom executes the random-input path over one or more input streams,
// writing the fully sorted result to out.
func RunRandom(cfg Config, inputs []InputStream, out merge.OutputWriter) error {
	set, err := tempfile.NewSet(cfg.TempRoot)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	defer set.RemoveAll()
	defer closeInputs(inputs)

	buf, err := runbuffer.NewDefault(cfg.Plan, cfg.BufferBudget)
	if err != nil {
		return fmt.Errorf("driver: allocate run buffer: %w", err)
	}

	var spilled []merge.Opener
	spillCurrent := func() error {
		if err := buf.SortInPlace(); err != nil {
			return fmt.Errorf("driver: sort run: %w", err)
		}
		w, idx, err := set.Create()
		if err != nil {
			return fmt.Errorf("driver: spill run: %w", err)
		}
		dest := merge.NewTempDestination(w)
		for _, n := range buf.Nodes() {
			if err := dest.WriteNode(n); err != nil {
				dest.Close()
				return fmt.Errorf("driver: spill run: %w", err)
			}
		}
		if err := dest.Close(); err != nil {
			return fmt.Errorf("driver: spill run: %w", err)
		}
		spilled = append(spilled, merge.TempOpener(set, idx, cfg.Plan.NodeWidth))
		buf.Reset()
		return nil
	}

	for _, in := range inputs {
		for {
			rec, err := in.NextRecord()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("driver: read input: %w", err)
			}
			n, err := node.Build(cfg.Plan, rec)
			if err != nil {
				return fmt.Errorf("driver: build node: %w", err)
			}
			if buf.Full() {
				if buf.GrowDefault() {
					// capacity extended; fall through to append below
				} else if err := spillCurrent(); err != nil {
					return err
				}
			}
			if err := buf.Append(n); err != nil {
				return fmt.Errorf("driver: append node: %w", err)
			}
		}
	}

	if len(spilled) == 0 {
		// Buffer ended non-empty (or empty) and nothing was ever
		// spilled: write directly to the final output, skipping the
		// merge phase entirely.
		if err := buf.SortInPlace(); err != nil {
			return fmt.Errorf("driver: sort run: %w", err)
		}
		dest := merge.NewOutputDestination(out, cfg.Plan.RecordWidth)
		for _, n := range buf.Nodes() {
			if err := dest.WriteNode(n); err != nil {
				return fmt.Errorf("driver: write output: %w", err)
			}
		}
		return dest.Close()
	}

	if buf.Count() > 0 {
		if err := spillCurrent(); err != nil {
			return err
		}
	}

	fanout := cfg.Fanout
	if fanout < 2 {
		fanout = merge.DefaultFanout
	}
	m := merge.New(cfg.Plan, set, fanout)
	dest := merge.NewOutputDestination(out, cfg.Plan.RecordWidth)
	return m.Run(spilled, dest)
}

// RunPresorted executes the presorted-input path: inputs are opened
// directly as merger readers (no run buffer, no run production), and the
// same fanout/cascade logic as the random path applies.
func RunPresorted(cfg Config, inputs []InputStream, out merge.OutputWriter) error {
	set, err := tempfile.NewSet(cfg.TempRoot)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	defer set.RemoveAll()

	openers := make([]merge.Opener, len(inputs))
	for i, in := range inputs {
		in := in
		openers[i] = merge.Opener{
			Open: func() (merge.Source, error) {
				return newInputSource(cfg.Plan, in), nil
			},
		}
	}

	fanout := cfg.Fanout
	if fanout < 2 {
		fanout = merge.DefaultFanout
	}
	m := merge.New(cfg.Plan, set, fanout)
	dest := merge.NewOutputDestination(out, cfg.Plan.RecordWidth)
	return m.Run(openers, dest)
}

func closeInputs(inputs []InputStream) {
	for _, in := range inputs {
		in.Close()
	}
}
