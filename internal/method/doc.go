// Package method defines the executable unit of a rule project.
//
// A Descriptor names a method implementation: its signature, the Body that
// computes it and the property domains under which it applies. Descriptors
// are immutable once built and are shared freely between goroutines.
//
// Every call gets its own Invocation, checked out of a ContextPool by the
// Invoker and returned once the body finishes. Nothing a body does during
// one call is visible to another call.
package method
