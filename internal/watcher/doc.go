// Package watcher is the event-matching core of the agent.
//
// The Watcher is a two-state machine, UNARMED then ARMED, with no
// disarm transition:
//
//	UNARMED ──(class load of the thread type)──→ ARMED
//	ARMED   ──(watched field written)──→ ARMED (match & capture)
//
// On the first class-load whose signature equals the thread type
// signature it resolves the identity of the name field and registers a
// field-modification watch for all instances. Arming is attempted
// exactly once per process; later loads of classes with the same
// signature are ignored.
//
// Every modification of the armed field is decoded and compared,
// case-sensitively, against the configured thread name. On a match the
// watcher captures the stack of the writing thread and hands the
// snapshot to its catch handlers. The VM string reference carrying the
// new value is released on every path.
package watcher
