package cellwrap

import (
	"fmt"
	"sync/atomic"

	"github.com/cellwrap/cellwrap/internal/clone"
	"github.com/cellwrap/cellwrap/internal/errs"
	"github.com/cellwrap/cellwrap/internal/logx"
	"github.com/cellwrap/cellwrap/internal/srv"
	"github.com/cellwrap/cellwrap/internal/wire"
)

// BlockFunc is the canonical signature of a block argument passed to Call.
type BlockFunc = wire.BlockFunc

// Method is the canonical signature every dispatchable method on a wrapped
// object must satisfy (see SPEC_FULL.md's "Dispatch contract").
type Method = wire.Method

var wrapperSeq int64

// Wrapper is the client-side entry point: configuration capture, server
// spawn, the call protocol driver (including the block-yield loop),
// AsyncStop, Join and RecoverObject (spec §4.3/§4.4/§4.9). A Wrapper is
// immutable after New returns and is itself shareable across peers.
type Wrapper struct {
	name     string
	local    bool
	threads  int
	logger   logx.Logger
	cloner   clone.Cloner
	policies map[string]wire.MethodPolicy
	stub     *Stub
	server   *srv.Server

	recovered int32 // atomic: CAS 0->1 enforces RecoverObject's call-once rule
}

// New constructs a Wrapper around the object held in h. Isolated wrappers
// (the default) consume h, invalidating it for any further use in the
// constructing goroutine (spec I1, scenario §8-3); WithLocal(true) instead
// peeks at h, leaving it live in the caller's goroutine (spec §4.3,
// scenario §8-4).
//
// Construction fails if h has already been moved, or if any Option reports
// an error.
func New[T any](h *Handle[T], opts ...Option) (*Wrapper, error) {
	c, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	var object any
	if c.local {
		v, err := h.peek()
		if err != nil {
			return nil, err
		}
		object = v
	} else {
		v, err := h.take()
		if err != nil {
			return nil, err
		}
		object = v
	}

	name := c.name
	if name == "" {
		name = fmt.Sprintf("cellwrap-%d", atomic.AddInt64(&wrapperSeq, 1))
	}

	w := &Wrapper{
		name:     name,
		local:    c.local,
		threads:  c.threads,
		logger:   c.logger,
		cloner:   c.cloner,
		policies: resolvePolicies(c),
	}
	w.stub = &Stub{w: w}

	if c.local {
		w.server = srv.RunLocal(object, name, c.logger, c.threads, c.cloner)
	} else {
		objCh := make(chan any, 1)
		objCh <- object
		w.server = srv.RunIsolated(objCh, name, c.logger, c.threads, c.cloner)
	}

	return w, nil
}

func (w *Wrapper) policy(name string) wire.MethodPolicy {
	if p, ok := w.policies[name]; ok {
		return p
	}
	return w.policies[wire.DefaultKey]
}

// Call is spec §4.4's call protocol: compose a CallMessage, send it to the
// server inbox, then loop on the reply channel servicing zero or more
// YieldMessages (running block locally) until a terminal ReturnMessage or
// ExceptionMessage arrives.
func (w *Wrapper) Call(name string, args []any, kwargs map[string]any, block BlockFunc) (any, error) {
	policy := w.policy(name)

	var blockArg wire.BlockArg
	if block != nil {
		if policy.ExecuteBlocksInPlace {
			blockArg = wire.BlockArg{Mode: wire.BlockInPlace, Func: block}
		} else {
			blockArg = wire.BlockArg{Mode: wire.BlockRelay}
		}
	}

	callArgs, callKwargs := args, kwargs
	if !policy.MoveArguments {
		var err error
		if callArgs, err = cloneValues(w.cloner, args); err != nil {
			return nil, fmt.Errorf("cellwrap: cloning arguments for %q: %w", name, err)
		}
		if callKwargs, err = cloneKeyed(w.cloner, kwargs); err != nil {
			return nil, fmt.Errorf("cellwrap: cloning keyword arguments for %q: %w", name, err)
		}
	}

	reply := make(chan wire.ReplyMessage, 1)
	msg := &wire.CallMessage{
		Method: name,
		Args:   callArgs,
		Kwargs: callKwargs,
		Block:  blockArg,
		TxID:   wire.NewTxID(),
		Policy: policy,
		Reply:  reply,
	}

	if err := w.server.SendCall(msg); err != nil {
		return nil, err
	}

	for {
		switch r := (<-reply).(type) {
		case *wire.YieldMessage:
			w.runYield(r, block, policy)
		case *wire.ReturnMessage:
			return r.Value, nil
		case *wire.ExceptionMessage:
			return nil, r.Err
		default:
			return nil, fmt.Errorf("cellwrap: unexpected reply type %T", r)
		}
	}
}

// runYield locally invokes block on a relayed yield's payload, then replies
// on the yield's sub-channel with a ReturnMessage or ExceptionMessage.
func (w *Wrapper) runYield(y *wire.YieldMessage, block BlockFunc, policy wire.MethodPolicy) {
	val, err := block(y.Args, y.Kwargs)
	if err != nil {
		y.Reply <- &wire.ExceptionMessage{Err: err}
		return
	}
	out := val
	if !policy.MoveBlockResults {
		cloned, cerr := w.cloner.Clone(val)
		if cerr != nil {
			y.Reply <- &wire.ExceptionMessage{Err: fmt.Errorf("cellwrap: %s", cerr.Error())}
			return
		}
		out = cloned
	}
	y.Reply <- &wire.ReturnMessage{Value: out}
}

// RespondsTo issues the reserved respond_to? capability query (spec §4.2),
// through the same Call protocol every other invocation uses.
func (w *Wrapper) RespondsTo(name string, includeAll bool) (bool, error) {
	result, err := w.Call(wire.RespondToMethod, []any{name, includeAll}, nil, nil)
	if err != nil {
		return false, err
	}
	b, _ := result.(bool)
	return b, nil
}

// AsyncStop requests a graceful shutdown. Idempotent and safe to call from
// any peer any number of times (spec §4.9, §8 "Idempotence").
func (w *Wrapper) AsyncStop() *Wrapper {
	_ = w.server.SendStop()
	return w
}

// Join blocks until the server has fully terminated. Safe to call after
// the server has already torn down, and from any number of peers.
func (w *Wrapper) Join() *Wrapper {
	reply := make(chan struct{})
	if err := w.server.SendJoin(reply); err != nil {
		return w
	}
	<-reply
	return w
}

// RecoverObject returns the wrapped object once the server has terminated.
// Valid only for isolated wrappers, and only once per Wrapper (spec I5).
func (w *Wrapper) RecoverObject() (any, error) {
	if w.local {
		return nil, errs.RecoveryNotPermitted
	}
	if !atomic.CompareAndSwapInt32(&w.recovered, 0, 1) {
		return nil, errs.RecoveryNotPermitted
	}
	return <-w.server.Done(), nil
}

// MethodSettings returns the resolved MethodPolicy for name, and whether an
// explicit per-method override exists (as opposed to falling back to the
// wrapper-wide default).
func (w *Wrapper) MethodSettings(name string) (MethodPolicy, bool) {
	p, ok := w.policies[name]
	if !ok {
		return w.policies[wire.DefaultKey], false
	}
	return p, true
}

// Name returns the wrapper's name.
func (w *Wrapper) Name() string { return w.name }

// Threads returns the worker pool size (0 means sequential mode).
func (w *Wrapper) Threads() int { return w.threads }

// LoggingEnabled reports whether structured logging is active.
func (w *Wrapper) LoggingEnabled() bool { return w.logger.Enabled() }

// Local reports whether the server holds the object by reference, leaving
// the caller's Handle live, rather than having taken ownership of it.
func (w *Wrapper) Local() bool { return w.local }

// Stub returns the wrapper's shareable façade.
func (w *Wrapper) Stub() *Stub { return w.stub }

func cloneValues(c clone.Cloner, in []any) ([]any, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		cloned, err := c.Clone(v)
		if err != nil {
			return nil, err
		}
		out[i] = cloned
	}
	return out, nil
}

func cloneKeyed(c clone.Cloner, in map[string]any) (map[string]any, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		cloned, err := c.Clone(v)
		if err != nil {
			return nil, err
		}
		out[k] = cloned
	}
	return out, nil
}
