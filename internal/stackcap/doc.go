// Package stackcap captures bounded call-stack snapshots of target VM
// threads.
//
// A capture walks up to a fixed number of frames, skipping a configured
// count of innermost frames, and renders each as
// "<classSignature>#<methodName>". Host query failures degrade the
// snapshot (missing header, placeholder frame text, empty frame list)
// but never escape the capturer.
package stackcap
