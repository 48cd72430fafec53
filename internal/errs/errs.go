// Package errs holds the sentinel errors shared between cellwrap and
// internal/srv, so both can refer to (and construct) the same error
// identities without creating an import cycle between them. cellwrap
// re-exports the public ones (MovedObject, WrapperClosed,
// RecoveryNotPermitted) as its own package-level vars (spec §7, "Error
// Handling Design"), following the pack's general convention of plain
// errors.New-style sentinels (see e.g. inprocgrpc/options.go) rather than
// bespoke error types. ServerUnavailable stays internal; see its doc
// comment below.
package errs

import "errors"

var (
	// MovedObject is the bare sentinel returned by Handle.Get after the
	// handle's value has been consumed, and by New when constructed
	// against an already-moved handle. No per-call detail is appended.
	MovedObject = errors.New("cellwrap: object has been moved")

	// WrapperClosed is the terminal ExceptionMessage delivered to any call
	// that arrives (or is still queued) after async_stop has begun
	// draining the server.
	WrapperClosed = errors.New("cellwrap: wrapper is shutting down")

	// RecoveryNotPermitted is raised synchronously by RecoverObject on a
	// local (non-isolated) wrapper, or by a second call to RecoverObject.
	RecoveryNotPermitted = errors.New("cellwrap: cannot recover an object from a local wrapper")

	// ServerUnavailable is the mailbox's own internal delivery-failure
	// error, reported when a send is attempted against an inbox that has
	// already been closed (full teardown completed). It is not exposed
	// through cellwrap's public API: Server.SendCall translates it to
	// WrapperClosed before returning, since a call arriving after full
	// teardown and a call refused mid-drain mean the same thing to a
	// caller (spec.md:175/194). SendStop and SendJoin return it as-is;
	// Wrapper.AsyncStop and Wrapper.Join swallow it, making both
	// idempotent once the server has terminated.
	ServerUnavailable = errors.New("cellwrap: server is not available")
)
