// Package utils holds small helpers shared by the command entry points.
package utils

import (
	"io"
	"sync"
)

// DeferredWriter holds writes in memory until Flush is called. It lets log
// output produced while a full screen program owns the terminal be shown
// after the program exits.
type DeferredWriter struct {
	mu     sync.Mutex
	writes [][]byte
}

// Write stores a copy of p.
func (d *DeferredWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	d.mu.Lock()
	d.writes = append(d.writes, buf)
	d.mu.Unlock()

	return len(p), nil
}

// Len returns the number of buffered writes.
func (d *DeferredWriter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

// Flush replays every buffered write to w, in order, and empties the buffer.
// Each write is replayed separately so line oriented writers such as
// zerolog.ConsoleWriter see one event per call.
func (d *DeferredWriter) Flush(w io.Writer) error {
	d.mu.Lock()
	writes := d.writes
	d.writes = nil
	d.mu.Unlock()

	for _, p := range writes {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}
