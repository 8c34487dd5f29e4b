package host

// Opaque JVM handles. The wire sizes vary per VM (see jdwp.IDSizes);
// uint64 covers every size a JDWP VM reports.
type (
	// ClassID identifies a reference type in the target VM.
	ClassID uint64
	// MethodID identifies a method within its declaring class.
	MethodID uint64
	// FieldID identifies a field within its declaring class.
	FieldID uint64
	// ThreadID identifies a live thread object.
	ThreadID uint64
	// StringID references a java.lang.String instance owned by the VM.
	StringID uint64
)

// Frame is one call-stack entry: the method and its declaring class.
type Frame struct {
	Class  ClassID
	Method MethodID
}

// Host is the narrow query interface into the target VM. Implementations
// must be safe for concurrent use; the core issues queries from whichever
// goroutine delivers an event.
type Host interface {
	// ClassSignature returns the JVM type descriptor of class, e.g.
	// "Ljava/lang/Thread;".
	ClassSignature(class ClassID) (string, error)

	// MethodName returns the name of method as declared by class.
	MethodName(class ClassID, method MethodID) (string, error)

	// ThreadName returns the display name of thread.
	ThreadName(thread ThreadID) (string, error)

	// StackFrames returns up to max frames of thread's call stack,
	// innermost first, after skipping the skip innermost frames.
	StackFrames(thread ThreadID, skip, max int) ([]Frame, error)

	// FieldByName resolves the field of class with the given name and
	// type signature.
	FieldByName(class ClassID, name, signature string) (FieldID, error)

	// MethodByName resolves the method of class with the given name and
	// signature.
	MethodByName(class ClassID, name, signature string) (MethodID, error)

	// WatchField asks the VM to emit a FieldModificationEvent for every
	// write to field, on any instance of class.
	WatchField(class ClassID, field FieldID) error

	// StringValue decodes the UTF-8 contents of a VM string reference.
	StringValue(s StringID) (string, error)

	// ReleaseString returns a string reference to the VM. Must be called
	// exactly once for every StringID delivered in an event.
	ReleaseString(s StringID)
}

// Event is an inbound notification from the VM.
type Event interface {
	isEvent()
}

// ClassLoadEvent reports that the VM prepared a class.
type ClassLoadEvent struct {
	Class ClassID
}

// FieldModificationEvent reports a write to a watched field. Thread is
// the thread performing the write, which for a constructor-site write is
// the constructing thread, not the object being named.
type FieldModificationEvent struct {
	Thread   ThreadID
	Class    ClassID
	Field    FieldID
	NewValue StringID
}

func (*ClassLoadEvent) isEvent()         {}
func (*FieldModificationEvent) isEvent() {}

// Handler receives inbound events. Implemented by the watcher.
type Handler interface {
	HandleClassLoad(ev *ClassLoadEvent) error
	HandleFieldModification(ev *FieldModificationEvent) error
}
