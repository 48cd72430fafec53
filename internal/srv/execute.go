package srv

import (
	"fmt"

	"github.com/cellwrap/cellwrap/internal/errs"
	"github.com/cellwrap/cellwrap/internal/logx"
	"github.com/cellwrap/cellwrap/internal/wire"
)

// executeCall is §4.6, "Server — executing a method". It runs inline when
// called from stepRunning (sequential mode) or from a worker goroutine
// (pooled mode); both paths end by sending exactly one terminal reply.
func (s *Server) executeCall(msg *wire.CallMessage) {
	s.log(logx.Entry{TxID: msg.TxID, Method: msg.Method, Message: "dispatching call"})

	result, err := s.invoke(msg)
	if err != nil {
		s.reply(msg, err)
		return
	}
	s.replyValue(msg, result)
}

// invoke resolves and calls the method (or the reserved RespondToMethod
// capability query), building the effective block argument per step 1 of
// §4.6, and recovering a panicking method body into an error (spec §7,
// UserMethodError: "any condition raised by the wrapped method; caught
// wholesale, including fatal-kind conditions").
func (s *Server) invoke(msg *wire.CallMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cellwrap: method %q panicked: %v", msg.Method, r)
		}
	}()

	if msg.Method == wire.RespondToMethod {
		name, _ := msg.Args[0].(string)
		includeAll, _ := msg.Args[1].(bool)
		return wire.RespondsTo(s.object, name, includeAll), nil
	}

	method, ok := wire.ResolveMethod(s.object, msg.Method)
	if !ok {
		return nil, fmt.Errorf("cellwrap: no such method %q", msg.Method)
	}

	block := s.effectiveBlock(msg)
	return method(msg.Args, msg.Kwargs, block)
}

// effectiveBlock implements §4.6 step 1: a BlockNone call passes no block;
// a BlockInPlace call passes the caller's block directly (Go closures need
// no "shareable proc" wrapping to run in another goroutine); a BlockRelay
// call gets a fresh relay proxy per §4.8.
func (s *Server) effectiveBlock(msg *wire.CallMessage) wire.BlockFunc {
	switch msg.Block.Mode {
	case wire.BlockInPlace:
		return msg.Block.Func
	case wire.BlockRelay:
		return s.relayBlock(msg)
	default:
		return nil
	}
}

// relayBlock is §4.8, the block relay proxy: each invocation from the
// worker sends a YieldMessage back to the caller's reply channel and
// blocks on a freshly allocated sub-channel for the caller's local
// execution of the block to complete.
func (s *Server) relayBlock(msg *wire.CallMessage) wire.BlockFunc {
	return func(args []any, kwargs map[string]any) (any, error) {
		sendArgs, sendKwargs := args, kwargs
		if !msg.Policy.MoveBlockArguments {
			var err error
			if sendArgs, err = s.cloneArgs(args); err != nil {
				return nil, err
			}
			if sendKwargs, err = s.cloneKwargs(kwargs); err != nil {
				return nil, err
			}
		}

		sub := make(chan wire.ReplyMessage, 1)
		msg.Reply <- &wire.YieldMessage{Args: sendArgs, Kwargs: sendKwargs, Reply: sub}

		switch r := (<-sub).(type) {
		case *wire.ReturnMessage:
			return r.Value, nil
		case *wire.ExceptionMessage:
			return nil, r.Err
		default:
			return nil, fmt.Errorf("cellwrap: unexpected reply type %T from block relay", r)
		}
	}
}

// refuse is §4.7: a CallMessage that arrives during Draining or Cleanup
// gets a terminal ExceptionMessage rather than execution. Delivery is
// best-effort: a full (unbuffered, already-abandoned) reply channel is
// logged and dropped rather than blocking the dispatch loop forever.
func (s *Server) refuse(msg *wire.CallMessage) {
	s.log(logx.Entry{TxID: msg.TxID, Method: msg.Method, Message: "refusing call: wrapper is shutting down"})
	select {
	case msg.Reply <- &wire.ExceptionMessage{Err: errs.WrapperClosed}:
	default:
		s.log(logx.Entry{TxID: msg.TxID, Method: msg.Method, Message: "dropped refusal: reply channel not ready"})
	}
}

// reply sends a terminal ExceptionMessage, falling back to a surrogate
// error carrying the original's string form if err itself cannot be
// delivered (spec §4.6 step 4 / §7 UserMethodError).
func (s *Server) reply(msg *wire.CallMessage, err error) {
	select {
	case msg.Reply <- &wire.ExceptionMessage{Err: err}:
		return
	default:
	}
	surrogate := fmt.Errorf("cellwrap: %s", err.Error())
	select {
	case msg.Reply <- &wire.ExceptionMessage{Err: surrogate}:
	default:
		s.log(logx.Entry{TxID: msg.TxID, Method: msg.Method, Message: "dropped exception reply: caller not listening", Err: err})
	}
}

// replyValue sends a terminal ReturnMessage, cloning the value first unless
// the policy calls for move transport. A clone failure is reported as an
// exception instead, since the value cannot be safely shared as-is.
func (s *Server) replyValue(msg *wire.CallMessage, value any) {
	out := value
	if !msg.Policy.MoveResults {
		cloned, err := s.cloner.Clone(value)
		if err != nil {
			s.reply(msg, fmt.Errorf("cellwrap: cloning result of %q: %w", msg.Method, err))
			return
		}
		out = cloned
	}
	select {
	case msg.Reply <- &wire.ReturnMessage{Value: out}:
	default:
		s.log(logx.Entry{TxID: msg.TxID, Method: msg.Method, Message: "dropped return reply: caller not listening"})
	}
}

func (s *Server) cloneArgs(args []any) ([]any, error) {
	if args == nil {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		c, err := s.cloner.Clone(a)
		if err != nil {
			return nil, fmt.Errorf("cellwrap: cloning argument %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func (s *Server) cloneKwargs(kwargs map[string]any) (map[string]any, error) {
	if kwargs == nil {
		return nil, nil
	}
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		c, err := s.cloner.Clone(v)
		if err != nil {
			return nil, fmt.Errorf("cellwrap: cloning keyword argument %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}
