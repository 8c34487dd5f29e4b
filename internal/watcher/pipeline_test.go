package watcher

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"threadcatch/internal/eventstream"
	"threadcatch/internal/host"
	"threadcatch/internal/output"
	"threadcatch/internal/stackcap"
	"threadcatch/internal/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe bytes.Buffer: the stream writes from
// its dispatch goroutine while the test polls.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Full pipeline over a fake host: events flow through the stream into
// the watcher, a matching name write captures the caller's stack and
// the text formatter renders it.
func TestPipeline_MatchRendersStack(t *testing.T) {
	h := newFakeHost()
	h.addString(1, "HighResTimer")

	var buf syncBuffer
	resolver := symbols.NewResolver(h)
	capturer := stackcap.NewCapturer(h, resolver, stackcap.DefaultSkipFrames, stackcap.DefaultMaxFrames)
	w := New(h, resolver, capturer, "HighResTimer", output.NewTextFormatter(&buf))

	events := make(chan host.Event)
	stream := eventstream.New(events, w, nil)
	require.NoError(t, stream.Start(context.Background()))
	defer stream.Stop() //nolint:errcheck // Test teardown

	events <- &host.ClassLoadEvent{Class: threadClassID}
	events <- modification(1)
	close(events)

	want := "Thread HighResTimer is about to get started\n" +
		"========= caller-thread ==============\n" +
		"Ljava/lang/Runnable;#run\n"
	assert.Eventually(t, func() bool {
		return buf.String() == want
	}, time.Second, 5*time.Millisecond)
}

func TestPipeline_MismatchStaysSilent(t *testing.T) {
	h := newFakeHost()
	h.addString(1, "OtherThread")

	var buf syncBuffer
	resolver := symbols.NewResolver(h)
	capturer := stackcap.NewCapturer(h, resolver, stackcap.DefaultSkipFrames, stackcap.DefaultMaxFrames)
	w := New(h, resolver, capturer, "HighResTimer", output.NewTextFormatter(&buf))

	events := make(chan host.Event)
	stream := eventstream.New(events, w, nil)
	require.NoError(t, stream.Start(context.Background()))
	defer stream.Stop() //nolint:errcheck // Test teardown

	events <- &host.ClassLoadEvent{Class: threadClassID}
	events <- modification(1)
	close(events)

	// The string was decoded, compared and released without output.
	assert.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.stringReleases == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, buf.String())
}
