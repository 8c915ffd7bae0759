//go:build !unix

package stream

import (
	"io"
	"os"
)

// mmapFile falls back to a plain read on platforms without mmap.
func mmapFile(f *os.File) ([]byte, error) {
	return io.ReadAll(f)
}

func munmapFile(data []byte) error { return nil }
