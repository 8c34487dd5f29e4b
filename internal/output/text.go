package output

import (
	"fmt"
	"io"
	"sync"

	"threadcatch/internal/stackcap"
)

// TextFormatter renders catches as plain text on the diagnostic stream.
type TextFormatter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextFormatter creates a TextFormatter writing to w.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{w: w}
}

// HandleCatch writes the catch notice, the section header for the
// walked thread (when its name resolved) and one line per frame.
func (f *TextFormatter) HandleCatch(name string, snap *stackcap.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := fmt.Fprintf(f.w, "Thread %s is about to get started\n", name); err != nil {
		return fmt.Errorf("writing catch notice: %w", err)
	}
	if snap.HasHeader {
		if _, err := fmt.Fprintf(f.w, "========= %s ==============\n", snap.ThreadName); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, frame := range snap.Frames {
		if _, err := fmt.Fprintln(f.w, frame); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
	}
	return nil
}
