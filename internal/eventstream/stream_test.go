package eventstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"threadcatch/internal/host"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler records dispatched events and signals each delivery.
type recordingHandler struct {
	mu        sync.Mutex
	classLoad []*host.ClassLoadEvent
	fieldMod  []*host.FieldModificationEvent
	delivered chan struct{}
	err       error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{delivered: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleClassLoad(ev *host.ClassLoadEvent) error {
	h.mu.Lock()
	h.classLoad = append(h.classLoad, ev)
	h.mu.Unlock()
	h.delivered <- struct{}{}
	return h.err
}

func (h *recordingHandler) HandleFieldModification(ev *host.FieldModificationEvent) error {
	h.mu.Lock()
	h.fieldMod = append(h.fieldMod, ev)
	h.mu.Unlock()
	h.delivered <- struct{}{}
	return h.err
}

// recordingResumer records resumed threads.
type recordingResumer struct {
	mu      sync.Mutex
	resumed []host.ThreadID
}

func (r *recordingResumer) Resume(thread host.ThreadID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed = append(r.resumed, thread)
	return nil
}

func waitDelivered(t *testing.T, h *recordingHandler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.delivered:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
}

func TestStream_RoutesByEventKind(t *testing.T) {
	events := make(chan host.Event, 4)
	handler := newRecordingHandler()
	resumer := &recordingResumer{}
	s := New(events, handler, resumer)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	events <- &host.ClassLoadEvent{Class: 1}
	events <- &host.FieldModificationEvent{Thread: 9, Field: 2, NewValue: 3}
	waitDelivered(t, handler, 2)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.classLoad, 1)
	assert.Equal(t, host.ClassID(1), handler.classLoad[0].Class)
	require.Len(t, handler.fieldMod, 1)
	assert.Equal(t, host.StringID(3), handler.fieldMod[0].NewValue)
}

func TestStream_ResumesEventThreadAfterDispatch(t *testing.T) {
	events := make(chan host.Event, 4)
	handler := newRecordingHandler()
	resumer := &recordingResumer{}
	s := New(events, handler, resumer)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	events <- &host.FieldModificationEvent{Thread: 42, NewValue: 1}
	waitDelivered(t, handler, 1)

	assert.Eventually(t, func() bool {
		resumer.mu.Lock()
		defer resumer.mu.Unlock()
		return len(resumer.resumed) == 1 && resumer.resumed[0] == host.ThreadID(42)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_ResumesEvenWhenHandlerFails(t *testing.T) {
	events := make(chan host.Event, 4)
	handler := newRecordingHandler()
	handler.err = errors.New("handler broke")
	resumer := &recordingResumer{}
	s := New(events, handler, resumer)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	events <- &host.FieldModificationEvent{Thread: 42, NewValue: 1}
	events <- &host.FieldModificationEvent{Thread: 43, NewValue: 1}
	waitDelivered(t, handler, 2)

	assert.Eventually(t, func() bool {
		resumer.mu.Lock()
		defer resumer.mu.Unlock()
		return len(resumer.resumed) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_NilResumer(t *testing.T) {
	events := make(chan host.Event, 1)
	handler := newRecordingHandler()
	s := New(events, handler, nil)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	// Must not panic without a resumer.
	events <- &host.FieldModificationEvent{Thread: 42, NewValue: 1}
	waitDelivered(t, handler, 1)
}

func TestStream_StopsWhenChannelCloses(t *testing.T) {
	events := make(chan host.Event)
	handler := newRecordingHandler()
	s := New(events, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	close(events)
	// The loop must exit without dispatching anything further; nothing
	// observable to wait on, so just make sure Stop still works.
	require.NoError(t, s.Stop())
}
