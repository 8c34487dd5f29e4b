// Package eventstream dispatches inbound VM events to the agent core.
package eventstream

import (
	"context"
	"log"

	"threadcatch/internal/host"
)

// Resumer resumes an event thread the VM suspended for the duration of
// event delivery. A nil Resumer means the host does not suspend.
type Resumer interface {
	Resume(thread host.ThreadID) error
}

// Stream reads events from the host's event channel and dispatches them
// to a handler.
type Stream struct {
	events  <-chan host.Event
	handler host.Handler
	resumer Resumer
	stopCh  chan struct{}
}

// New creates a new Stream over the given event channel and handler.
func New(events <-chan host.Event, handler host.Handler, resumer Resumer) *Stream {
	return &Stream{
		events:  events,
		handler: handler,
		resumer: resumer,
		stopCh:  make(chan struct{}),
	}
}

// Start begins dispatching events in a goroutine. It returns
// immediately and processes events in the background until the event
// channel closes, the context is cancelled or Stop is called.
func (s *Stream) Start(ctx context.Context) error {
	go s.processEvents(ctx)
	return nil
}

// Stop signals the dispatch goroutine to stop.
func (s *Stream) Stop() error {
	close(s.stopCh)
	return nil
}

// processEvents is the dispatch loop.
func (s *Stream) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.dispatch(ev)
		}
	}
}

// dispatch routes one event by kind. Handler errors are logged and the
// loop continues; a single bad event never stops the stream.
func (s *Stream) dispatch(ev host.Event) {
	switch ev := ev.(type) {
	case *host.ClassLoadEvent:
		if err := s.handler.HandleClassLoad(ev); err != nil {
			log.Printf("handling class load: %v", err)
		}

	case *host.FieldModificationEvent:
		if err := s.handler.HandleFieldModification(ev); err != nil {
			log.Printf("handling field modification: %v", err)
		}
		// The VM suspended the writing thread for this event; let it go
		// now that any capture is done.
		if s.resumer != nil {
			if err := s.resumer.Resume(ev.Thread); err != nil {
				log.Printf("resuming thread: %v", err)
			}
		}

	default:
		// Unknown event type - ignore
	}
}
