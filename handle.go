package cellwrap

import (
	"sync"

	"github.com/cellwrap/cellwrap/internal/errs"
)

// Handle is a single-owner box for a value that must not be used once its
// ownership has moved to another domain. Go has no way to tag an arbitrary
// existing value as "moved" after the fact (spec §9's last design note
// anticipates exactly this gap), so the object handed to New must be
// wrapped in a Handle: the one type in this package whose only job is
// carrying that ownership bit.
type Handle[T any] struct {
	mu    sync.Mutex
	value T
	moved bool
}

// NewHandle wraps v in a fresh, unmoved Handle.
func NewHandle[T any](v T) *Handle[T] {
	return &Handle[T]{value: v}
}

// Get returns the held value, or ErrMovedObject if ownership has already
// moved out of this handle.
func (h *Handle[T]) Get() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.moved {
		var zero T
		return zero, errs.MovedObject
	}
	return h.value, nil
}

// movable is the non-generic interface Handle[T] satisfies for any T,
// letting code outside this package's type parameter (the server, which
// only ever sees "any") consume a handle without knowing T.
type movable interface {
	take() (any, error)
}

var _ movable = (*Handle[int])(nil)

// take consumes the handle, marking it moved, and returns the value it had
// held. A second call — or a call against a handle that was already moved
// — fails with ErrMovedObject, per spec I1/I5.
func (h *Handle[T]) take() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.moved {
		var zero T
		h.value = zero
		return nil, errs.MovedObject
	}
	v := h.value
	h.moved = true
	var zero T
	h.value = zero
	return v, nil
}

// peek reads the value without consuming it, for local (non-isolated)
// wrappers, which hold the object by reference rather than by ownership
// transfer (spec §4.3).
func (h *Handle[T]) peek() (T, error) {
	return h.Get()
}
