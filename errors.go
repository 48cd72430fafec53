package cellwrap

import "github.com/cellwrap/cellwrap/internal/errs"

// Sentinel errors, re-exported from internal/errs so both this package and
// internal/srv can construct and compare the same identities without an
// import cycle. Check these with errors.Is.
var (
	// ErrMovedObject is returned by Handle.Get once its value has been
	// consumed, and also by New when constructed against an already-moved
	// handle.
	ErrMovedObject = errs.MovedObject

	// ErrWrapperClosed is the terminal error delivered to any call that
	// arrives after AsyncStop has begun draining the server.
	ErrWrapperClosed = errs.WrapperClosed

	// ErrRecoveryNotPermitted is returned by RecoverObject on a local
	// wrapper, or by a second call to RecoverObject.
	ErrRecoveryNotPermitted = errs.RecoveryNotPermitted
)
