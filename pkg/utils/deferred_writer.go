// Package utils holds small helpers shared by the command line entrypoint.
package utils

import (
	"io"
	"sync"
)

// DeferredWriter buffers writes until Flush is called. It is used to hold log
// output while the TUI owns the terminal.
type DeferredWriter struct {
	mu     sync.Mutex
	chunks [][]byte
}

// Write stores a copy of p. It never fails.
func (d *DeferredWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chunks = append(d.chunks, append([]byte(nil), p...))
	return len(p), nil
}

// Flush writes every buffered chunk to w in order and empties the buffer.
// Each chunk is written separately so line oriented writers such as
// zerolog.ConsoleWriter see one event per call.
func (d *DeferredWriter) Flush(w io.Writer) error {
	d.mu.Lock()
	chunks := d.chunks
	d.chunks = nil
	d.mu.Unlock()

	for _, c := range chunks {
		if _, err := w.Write(c); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of buffered writes.
func (d *DeferredWriter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.chunks)
}
