package watcher

import (
	"log"
	"sync"

	"threadcatch/internal/host"
	"threadcatch/internal/hostbuf"
	"threadcatch/internal/stackcap"
	"threadcatch/internal/symbols"
)

// The thread type and the members the watcher resolves on it, as the
// JVM declares them.
const (
	ThreadClassSignature = "Ljava/lang/Thread;"

	nameFieldName      = "name"
	nameFieldSignature = "Ljava/lang/String;"

	startMethodName      = "start"
	startMethodSignature = "()V"
)

// CatchHandler consumes a matched capture: the caught thread name and
// the snapshot of the thread that assigned it.
type CatchHandler interface {
	HandleCatch(name string, snap *stackcap.Snapshot) error
}

// Watcher arms a field-modification watch on the thread name field and
// matches writes against a target name. Safe for concurrent event
// delivery: the armed field identity is written once, under mu, and
// only read afterwards.
type Watcher struct {
	host     host.Host
	resolver *symbols.Resolver
	capturer *stackcap.Capturer
	handlers []CatchHandler

	target    string // thread name to catch
	threadSig string // signature that identifies the thread type

	mu           sync.Mutex
	armAttempted bool
	armed        bool
	nameField    host.FieldID
	startMethod  host.MethodID // resolved alongside the field; unused for matching
}

// New creates a Watcher that catches threads named target and delivers
// captures to handlers.
func New(h host.Host, r *symbols.Resolver, c *stackcap.Capturer, target string, handlers ...CatchHandler) *Watcher {
	return &Watcher{
		host:      h,
		resolver:  r,
		capturer:  c,
		handlers:  handlers,
		target:    target,
		threadSig: ThreadClassSignature,
	}
}

// HandleClassLoad arms the watch when the loaded class is the thread
// type. All failures are non-fatal: an unresolvable signature is
// ignored, and a failed watch registration leaves the watcher inert.
func (w *Watcher) HandleClassLoad(ev *host.ClassLoadEvent) error {
	sig := w.resolver.ClassSignature(ev.Class)
	if !sig.Valid() {
		// A class we cannot name cannot be matched.
		return nil
	}
	if sig.Get() != w.threadSig {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.armAttempted {
		// Re-entrant load of the same type; the watch is already in
		// place (or permanently failed). Never re-arm.
		return nil
	}
	w.armAttempted = true

	field, err := w.host.FieldByName(ev.Class, nameFieldName, nameFieldSignature)
	if err != nil {
		log.Printf("failed to resolve %s field on %s: %v", nameFieldName, w.threadSig, err)
		return nil
	}
	w.nameField = field

	method, err := w.host.MethodByName(ev.Class, startMethodName, startMethodSignature)
	if err != nil {
		log.Printf("failed to resolve %s method on %s: %v", startMethodName, w.threadSig, err)
	} else {
		w.startMethod = method
	}

	if err := w.host.WatchField(ev.Class, field); err != nil {
		// Inert from here on: the identity is stored but the VM will
		// not deliver modification events.
		log.Printf("failed to attach field watcher: %v", err)
		return nil
	}
	w.armed = true

	return nil
}

// HandleFieldModification filters writes to the armed field, compares
// the new value against the target name and captures on match.
func (w *Watcher) HandleFieldModification(ev *host.FieldModificationEvent) error {
	w.mu.Lock()
	armed, field := w.armed, w.nameField
	w.mu.Unlock()

	if !armed || ev.Field != field {
		return nil
	}
	if ev.NewValue == 0 {
		// Null assignment; nothing to match and nothing to release.
		return nil
	}

	// The string reference is ours to return regardless of the match
	// outcome.
	ref := hostbuf.New(ev.NewValue, func() { w.host.ReleaseString(ev.NewValue) })
	defer ref.Release()

	name, err := w.host.StringValue(ev.NewValue)
	if err != nil {
		log.Printf("failed to decode thread name value: %v", err)
		return nil
	}

	if name != w.target {
		return nil
	}

	snap := w.capturer.Capture(ev.Thread)
	for _, h := range w.handlers {
		if err := h.HandleCatch(name, snap); err != nil {
			log.Printf("handling catch: %v", err)
		}
	}

	return nil
}

// Armed reports whether the field watch is registered and live.
func (w *Watcher) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}
