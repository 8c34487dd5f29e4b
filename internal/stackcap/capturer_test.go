package stackcap

import (
	"errors"
	"testing"

	"threadcatch/internal/host"
	"threadcatch/internal/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost implements host.Host for capture tests. Unset query functions
// fail, matching a host that cannot answer.
type fakeHost struct {
	threadName     func(host.ThreadID) (string, error)
	stackFrames    func(host.ThreadID, int, int) ([]host.Frame, error)
	classSignature func(host.ClassID) (string, error)
	methodName     func(host.ClassID, host.MethodID) (string, error)
}

var errNoAnswer = errors.New("no answer")

func (f *fakeHost) ThreadName(t host.ThreadID) (string, error) {
	if f.threadName == nil {
		return "", errNoAnswer
	}
	return f.threadName(t)
}

func (f *fakeHost) StackFrames(t host.ThreadID, skip, max int) ([]host.Frame, error) {
	if f.stackFrames == nil {
		return nil, errNoAnswer
	}
	return f.stackFrames(t, skip, max)
}

func (f *fakeHost) ClassSignature(c host.ClassID) (string, error) {
	if f.classSignature == nil {
		return "", errNoAnswer
	}
	return f.classSignature(c)
}

func (f *fakeHost) MethodName(c host.ClassID, m host.MethodID) (string, error) {
	if f.methodName == nil {
		return "", errNoAnswer
	}
	return f.methodName(c, m)
}

func (f *fakeHost) FieldByName(host.ClassID, string, string) (host.FieldID, error) { return 0, nil }

func (f *fakeHost) MethodByName(host.ClassID, string, string) (host.MethodID, error) {
	return 0, nil
}

func (f *fakeHost) WatchField(host.ClassID, host.FieldID) error { return nil }

func (f *fakeHost) StringValue(host.StringID) (string, error) { return "", nil }

func (f *fakeHost) ReleaseString(host.StringID) {}

func newCapturer(h *fakeHost) *Capturer {
	return NewCapturer(h, symbols.NewResolver(h), DefaultSkipFrames, DefaultMaxFrames)
}

func TestCapture_FullSnapshot(t *testing.T) {
	h := &fakeHost{
		threadName: func(host.ThreadID) (string, error) { return "main", nil },
		stackFrames: func(_ host.ThreadID, skip, max int) ([]host.Frame, error) {
			assert.Equal(t, DefaultSkipFrames, skip, "skip depth must reach the host query")
			assert.Equal(t, DefaultMaxFrames, max)
			return []host.Frame{
				{Class: 1, Method: 10},
				{Class: 2, Method: 20},
			}, nil
		},
		classSignature: func(c host.ClassID) (string, error) {
			return map[host.ClassID]string{
				1: "Lcom/example/TimerFactory;",
				2: "Lcom/example/App;",
			}[c], nil
		},
		methodName: func(_ host.ClassID, m host.MethodID) (string, error) {
			return map[host.MethodID]string{10: "newTimer", 20: "main"}[m], nil
		},
	}

	snap := newCapturer(h).Capture(99)

	require.True(t, snap.HasHeader)
	assert.Equal(t, "main", snap.ThreadName)
	assert.Equal(t, []string{
		"Lcom/example/TimerFactory;#newTimer",
		"Lcom/example/App;#main",
	}, snap.Frames)
}

func TestCapture_ThreadNameFailure_SkipsHeader(t *testing.T) {
	h := &fakeHost{
		stackFrames: func(host.ThreadID, int, int) ([]host.Frame, error) {
			return []host.Frame{{Class: 1, Method: 10}}, nil
		},
		classSignature: func(host.ClassID) (string, error) { return "LA;", nil },
		methodName:     func(host.ClassID, host.MethodID) (string, error) { return "a", nil },
	}

	snap := newCapturer(h).Capture(99)

	assert.False(t, snap.HasHeader, "a failed name query must only drop the header")
	assert.Len(t, snap.Frames, 1)
}

func TestCapture_StackWalkFailure_NoPartialRender(t *testing.T) {
	h := &fakeHost{
		threadName: func(host.ThreadID) (string, error) { return "main", nil },
	}

	snap := newCapturer(h).Capture(99)

	require.NotNil(t, snap)
	assert.True(t, snap.HasHeader, "header survives a failed stack walk")
	assert.Empty(t, snap.Frames)
}

func TestCapture_FrameResolutionFailure_RendersPlaceholder(t *testing.T) {
	h := &fakeHost{
		threadName: func(host.ThreadID) (string, error) { return "main", nil },
		stackFrames: func(host.ThreadID, int, int) ([]host.Frame, error) {
			return []host.Frame{
				{Class: 1, Method: 10},
				{Class: 2, Method: 20},
			}, nil
		},
		classSignature: func(c host.ClassID) (string, error) {
			if c == 1 {
				return "", errors.New("unloaded class")
			}
			return "LB;", nil
		},
		methodName: func(c host.ClassID, _ host.MethodID) (string, error) {
			if c == 1 {
				return "", errors.New("unloaded class")
			}
			return "b", nil
		},
	}

	snap := newCapturer(h).Capture(99)

	// The bad frame renders placeholders and the walk continues.
	assert.Equal(t, []string{"<unknown>#<unknown>", "LB;#b"}, snap.Frames)
}

func TestCapture_BoundedDepth(t *testing.T) {
	frames := make([]host.Frame, DefaultMaxFrames)
	for i := range frames {
		frames[i] = host.Frame{Class: 1, Method: host.MethodID(i)}
	}
	h := &fakeHost{
		threadName: func(host.ThreadID) (string, error) { return "main", nil },
		stackFrames: func(_ host.ThreadID, _, max int) ([]host.Frame, error) {
			return frames[:max], nil
		},
		classSignature: func(host.ClassID) (string, error) { return "LA;", nil },
		methodName:     func(host.ClassID, host.MethodID) (string, error) { return "a", nil },
	}

	snap := newCapturer(h).Capture(99)

	assert.Len(t, snap.Frames, DefaultMaxFrames)
}
