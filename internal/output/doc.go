// Package output renders matched captures.
//
// Two formatters implement the watcher's CatchHandler:
//   - TextFormatter writes the classic diagnostic-stream format: the
//     catch notice, a section header for the walked thread and one
//     "ClassSig#methodName" line per frame.
//   - OTELFormatter emits one OpenTelemetry span per catch, with the
//     frame list and any configured custom attributes.
//
// Both are pure formatting layers; matching, stack walking and
// expression evaluation happen in the watcher, stackcap and attributes
// packages.
package output
