// Package host defines the boundary between the agent core and the
// JVM it observes.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│      JVM (JDWP wire protocol)           │
//	└─────────────────┬───────────────────────┘
//	                  │ inbound events
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventstream                           │  ← dispatch loop
//	│   - Routes by event kind                │
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ ClassLoadEvent ────────→ watcher (arming)
//	          └──→ FieldModificationEvent → watcher (matching)
//	                                          │
//	                                          ▼ outbound queries
//	                                        Host interface
//
// Everything the core asks of the JVM goes through the Host interface:
// symbol resolution, stack walking, field lookup, watch registration and
// string decoding. The jdwp package implements Host against a live VM;
// tests substitute a fake.
//
// All Host queries are synchronous and failure-indicating. A query
// failure is never fatal to the core; callers degrade per call site.
package host
