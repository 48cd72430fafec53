package srv_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cellwrap/cellwrap/internal/clone"
	"github.com/cellwrap/cellwrap/internal/errs"
	"github.com/cellwrap/cellwrap/internal/logx"
	"github.com/cellwrap/cellwrap/internal/srv"
	"github.com/cellwrap/cellwrap/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

type fixture struct{}

func (fixture) Echo(args []any, _ map[string]any, _ wire.BlockFunc) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
}

func (fixture) Whoops(_ []any, _ map[string]any, _ wire.BlockFunc) (any, error) {
	return nil, errors.New("boom")
}

func (fixture) RunBlock(args []any, kwargs map[string]any, block wire.BlockFunc) (any, error) {
	return block(args, kwargs)
}

func newCall(method string, args []any, block wire.BlockArg) (*wire.CallMessage, chan wire.ReplyMessage) {
	reply := make(chan wire.ReplyMessage, 1)
	return &wire.CallMessage{
		Method: method,
		Args:   args,
		TxID:   wire.NewTxID(),
		Block:  block,
		Reply:  reply,
	}, reply
}

func runIsolatedFixture(threads int) *srv.Server {
	objCh := make(chan any, 1)
	objCh <- fixture{}
	return srv.RunIsolated(objCh, "t", logx.Noop(), threads, clone.Reflect{})
}

func TestSequentialCallReturnsValue(t *testing.T) {
	s := runIsolatedFixture(0)
	defer func() {
		s.SendStop()
		reply := make(chan struct{})
		s.SendJoin(reply)
		<-reply
	}()

	msg, reply := newCall("Echo", []any{42}, wire.BlockArg{})
	require.NoError(t, s.SendCall(msg))
	switch r := (<-reply).(type) {
	case *wire.ReturnMessage:
		assert.Equal(t, 42, r.Value)
	default:
		t.Fatalf("unexpected reply %T", r)
	}
}

func TestExecuteCallSurfacesError(t *testing.T) {
	s := runIsolatedFixture(0)
	defer func() {
		s.SendStop()
		reply := make(chan struct{})
		s.SendJoin(reply)
		<-reply
	}()

	msg, reply := newCall("Whoops", nil, wire.BlockArg{})
	require.NoError(t, s.SendCall(msg))
	switch r := (<-reply).(type) {
	case *wire.ExceptionMessage:
		assert.Contains(t, r.Err.Error(), "boom")
	default:
		t.Fatalf("unexpected reply %T", r)
	}
}

func TestPooledWorkersHandleConcurrentCalls(t *testing.T) {
	s := runIsolatedFixture(3)
	defer func() {
		s.SendStop()
		reply := make(chan struct{})
		s.SendJoin(reply)
		<-reply
	}()

	var replies []chan wire.ReplyMessage
	for i := 0; i < 5; i++ {
		msg, reply := newCall("Echo", []any{i}, wire.BlockArg{})
		require.NoError(t, s.SendCall(msg))
		replies = append(replies, reply)
	}
	for i, reply := range replies {
		r := (<-reply).(*wire.ReturnMessage)
		assert.Equal(t, i, r.Value)
	}
}

func TestDrainingRefusesNewCalls(t *testing.T) {
	s := runIsolatedFixture(1)

	require.NoError(t, s.SendStop())

	msg, reply := newCall("Echo", []any{1}, wire.BlockArg{})
	_ = s.SendCall(msg)
	select {
	case r := <-reply:
		if exc, ok := r.(*wire.ExceptionMessage); ok {
			assert.ErrorIs(t, exc.Err, errs.WrapperClosed)
		}
	case <-time.After(time.Second):
	}

	joinReply := make(chan struct{})
	require.NoError(t, s.SendJoin(joinReply))
	<-joinReply
}

func TestCallAfterTerminationIsWrapperClosed(t *testing.T) {
	s := runIsolatedFixture(0)
	require.NoError(t, s.SendStop())

	joinReply := make(chan struct{})
	require.NoError(t, s.SendJoin(joinReply))
	<-joinReply

	// The inbox is now closed; a call arriving after teardown is reported
	// the same way one arriving mid-drain is: WrapperClosed (spec.md:194).
	msg, _ := newCall("Echo", nil, wire.BlockArg{})
	assert.ErrorIs(t, s.SendCall(msg), errs.WrapperClosed)
}

func TestIsolatedServerReturnsObjectOnDone(t *testing.T) {
	s := runIsolatedFixture(0)
	require.NoError(t, s.SendStop())

	obj := <-s.Done()
	_, ok := obj.(fixture)
	assert.True(t, ok)
}

func TestLocalServerHasNoDoneChannel(t *testing.T) {
	s := srv.RunLocal(fixture{}, "local", logx.Noop(), 0, clone.Reflect{})
	defer func() {
		s.SendStop()
		reply := make(chan struct{})
		s.SendJoin(reply)
		<-reply
	}()

	select {
	case <-s.Done():
	case <-time.After(50 * time.Millisecond):
		return
	}
	t.Fatal("local server's Done channel should never deliver")
}

func TestBlockRelayRoundTrip(t *testing.T) {
	s := runIsolatedFixture(0)
	defer func() {
		s.SendStop()
		reply := make(chan struct{})
		s.SendJoin(reply)
		<-reply
	}()

	msg, reply := newCall("RunBlock", []any{1}, wire.BlockArg{Mode: wire.BlockRelay})
	require.NoError(t, s.SendCall(msg))

	r := <-reply
	yield, ok := r.(*wire.YieldMessage)
	require.True(t, ok, "relay mode must yield back to the caller before completing")
	assert.Equal(t, []any{1}, yield.Args)

	yield.Reply <- &wire.ReturnMessage{Value: "handled"}

	final := <-reply
	ret, ok := final.(*wire.ReturnMessage)
	require.True(t, ok)
	assert.Equal(t, "handled", ret.Value)
}

func TestBlockRelayPropagatesCallerError(t *testing.T) {
	s := runIsolatedFixture(0)
	defer func() {
		s.SendStop()
		reply := make(chan struct{})
		s.SendJoin(reply)
		<-reply
	}()

	msg, reply := newCall("RunBlock", nil, wire.BlockArg{Mode: wire.BlockRelay})
	require.NoError(t, s.SendCall(msg))

	yield := (<-reply).(*wire.YieldMessage)
	yield.Reply <- &wire.ExceptionMessage{Err: errors.New("caller block failed")}

	final := (<-reply).(*wire.ExceptionMessage)
	assert.Contains(t, final.Err.Error(), "caller block failed")
}
