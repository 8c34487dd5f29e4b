// Package symbols translates opaque class and method handles into
// human-readable names via host queries.
package symbols

import (
	"log"

	"threadcatch/internal/host"
	"threadcatch/internal/hostbuf"
)

// Resolver resolves class signatures and method names. Failures are
// logged and surface as empty guards; callers must check Valid before
// dereferencing. Resolution never mutates VM or agent state.
type Resolver struct {
	host host.Host
}

// NewResolver creates a Resolver over the given host.
func NewResolver(h host.Host) *Resolver {
	return &Resolver{host: h}
}

// ClassSignature resolves the type descriptor of class. Returns an empty
// guard on host failure.
func (r *Resolver) ClassSignature(class host.ClassID) *hostbuf.Guard[string] {
	sig, err := r.host.ClassSignature(class)
	if err != nil {
		log.Printf("failed to resolve class signature: %v", err)
		return hostbuf.Empty[string]()
	}
	return hostbuf.New(sig, nil)
}

// MethodName resolves the name of method as declared by class. Returns
// an empty guard on host failure.
func (r *Resolver) MethodName(class host.ClassID, method host.MethodID) *hostbuf.Guard[string] {
	name, err := r.host.MethodName(class, method)
	if err != nil {
		log.Printf("failed to resolve method name: %v", err)
		return hostbuf.Empty[string]()
	}
	return hostbuf.New(name, nil)
}
