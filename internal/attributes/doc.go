// Package attributes provides expression evaluation for custom span
// attributes.
//
// Expressions are evaluated against one capture (caught thread name,
// walking thread, rendered frames, depth) using the expr language:
//
//	-a owner=frames[0]
//	-a deep=depth > 5
//	-a site='thread + "->" + name'
//
// Map-valued results expand into one attribute per key with dot
// notation. A failing expression is logged and skipped; it never blocks
// the capture.
package attributes
