// Package hostbuf provides scoped ownership of host-allocated values.
//
// Every value the JVM hands back that must be returned to it, such as
// the string references carried by field-modification events, is
// wrapped in a Guard carrying its release
// function. A Guard releases at most once, on whichever path drops it,
// and ownership can be transferred with Move without duplicating the
// release obligation.
package hostbuf
