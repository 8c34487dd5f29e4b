package stackcap

import (
	"fmt"
	"log"

	"threadcatch/internal/host"
	"threadcatch/internal/symbols"
)

// Defaults matching the JVM Thread constructor layout: the two innermost
// frames are Thread.<init> overloads, not the construction site.
const (
	DefaultSkipFrames = 2
	DefaultMaxFrames  = 10
)

// unresolved marks a frame component whose host query failed.
const unresolved = "<unknown>"

// Snapshot is one captured call stack, ephemeral and consumed
// immediately by the output formatters.
type Snapshot struct {
	// ThreadName is the display name of the walked thread. Only
	// meaningful when HasHeader is true.
	ThreadName string
	// HasHeader reports whether the thread name query succeeded.
	HasHeader bool
	// Frames holds the rendered frame lines in host stack order,
	// innermost first.
	Frames []string
}

// Capturer walks and renders thread stacks through the host interface.
type Capturer struct {
	host     host.Host
	resolver *symbols.Resolver
	skip     int
	max      int
}

// NewCapturer creates a Capturer skipping skip innermost frames and
// returning at most max frames per capture.
func NewCapturer(h host.Host, r *symbols.Resolver, skip, max int) *Capturer {
	return &Capturer{host: h, resolver: r, skip: skip, max: max}
}

// Capture walks the stack of thread and renders it. The returned
// snapshot is never nil: host failures produce a header-less or
// frame-less snapshot rather than an error.
func (c *Capturer) Capture(thread host.ThreadID) *Snapshot {
	snap := &Snapshot{}

	name, err := c.host.ThreadName(thread)
	if err != nil {
		log.Printf("failed to resolve thread name: %v", err)
	} else {
		snap.ThreadName = name
		snap.HasHeader = true
	}

	frames, err := c.host.StackFrames(thread, c.skip, c.max)
	if err != nil {
		// No partial render: keep the header, drop the frame walk.
		log.Printf("failed to walk stack: %v", err)
		return snap
	}

	for _, frame := range frames {
		snap.Frames = append(snap.Frames, c.renderFrame(frame))
	}

	return snap
}

// renderFrame resolves one frame to "<classSignature>#<methodName>".
// A failed resolution renders a placeholder instead of aborting the
// capture.
func (c *Capturer) renderFrame(frame host.Frame) string {
	class := unresolved
	method := unresolved

	if sig := c.resolver.ClassSignature(frame.Class); sig.Valid() {
		class = sig.Get()
	} else {
		log.Printf("frame degraded: declaring class of method %#x unresolved", uint64(frame.Method))
	}

	if name := c.resolver.MethodName(frame.Class, frame.Method); name.Valid() {
		method = name.Get()
	}

	return fmt.Sprintf("%s#%s", class, method)
}
