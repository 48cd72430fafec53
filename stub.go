package cellwrap

// Stub is a shareable façade over a Wrapper: any method invocation it does
// not itself define forwards to the wrapper's Call (spec §4.2). It holds
// only a reference to its Wrapper and has no other state, so it is safe to
// hand to any peer.
type Stub struct {
	w *Wrapper
}

// Invoke forwards name(args, kwargs, block) to the wrapper's Call. It is
// the Go stand-in for spec §4.2's "behaves like any method receiver": a Go
// interface cannot gain methods named only at runtime, so the forwarding
// happens through one explicit entry point instead of method_missing.
func (s *Stub) Invoke(name string, args []any, kwargs map[string]any, block BlockFunc) (any, error) {
	return s.w.Call(name, args, kwargs, block)
}

// RespondsTo issues the reserved respond_to? capability query against the
// wrapped object (spec §4.2).
func (s *Stub) RespondsTo(name string, includeAll bool) (bool, error) {
	return s.w.RespondsTo(name, includeAll)
}

// Wrapper returns the Stub's underlying Wrapper.
func (s *Stub) Wrapper() *Wrapper { return s.w }
