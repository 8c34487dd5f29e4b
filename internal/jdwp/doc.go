// Package jdwp implements the slice of the Java Debug Wire Protocol the
// agent needs and adapts it to the host.Host interface.
//
// The Client owns the TCP connection to a VM started with the jdwp
// agentlib. Attach performs the protocol handshake and the IDSizes
// exchange, then a background read loop routes reply packets to their
// waiting callers and composite event packets onto the event channel.
// Replies and events are multiplexed on the one stream, so event
// delivery runs through an unbounded queue behind the read loop: an
// event backlog, however deep, never stops a reply from reaching the
// query that is waiting on it.
//
// Capability negotiation is declarative: a fixed table of
// {capability, required} pairs is checked once against the
// VirtualMachine.Capabilities reply. Missing required capabilities fail
// the attach; missing optional ones are only logged.
//
// Field-modification requests suspend the event thread so its stack can
// be walked; the eventstream resumes it after dispatch. Class-prepare
// requests do not suspend anything.
package jdwp
