package cellwrap_test

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/cellwrap/cellwrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

// R is the fixture object used throughout this suite: echo(*a, **k), a
// method that always raises, a slow echo for timing scenarios, and a
// method that forwards to its block.
type R struct{}

type echoResult struct {
	Args   []any
	Kwargs map[string]any
}

func (r *R) Echo(args []any, kwargs map[string]any, _ cellwrap.BlockFunc) (any, error) {
	return echoResult{Args: args, Kwargs: kwargs}, nil
}

func (r *R) Whoops(_ []any, _ map[string]any, _ cellwrap.BlockFunc) (any, error) {
	return nil, errors.New("Whoops")
}

func (r *R) SlowEcho(args []any, _ map[string]any, _ cellwrap.BlockFunc) (any, error) {
	time.Sleep(250 * time.Millisecond)
	return args[0], nil
}

func (r *R) RunBlock(args []any, kwargs map[string]any, block cellwrap.BlockFunc) (any, error) {
	return block(args, kwargs)
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

func TestEcho(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	result, err := w.Call("Echo", []any{1, 2}, map[string]any{"a": "b", "c": "d"}, nil)
	require.NoError(t, err)
	got, ok := result.(echoResult)
	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, got.Args)
	assert.Equal(t, map[string]any{"a": "b", "c": "d"}, got.Kwargs)
}

func TestWhoops(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	_, err = w.Call("Whoops", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Whoops")
}

func TestIsolatedMovesObject(t *testing.T) {
	obj := &R{}
	h := cellwrap.NewHandle(obj)
	w, err := cellwrap.New(h)
	require.NoError(t, err)

	_, err = h.Get()
	assert.ErrorIs(t, err, cellwrap.ErrMovedObject)

	w.AsyncStop()
	w.Join()

	recovered, err := w.RecoverObject()
	require.NoError(t, err)
	assert.Same(t, obj, recovered)

	_, err = w.RecoverObject()
	assert.ErrorIs(t, err, cellwrap.ErrRecoveryNotPermitted)
}

func TestLocalWrapperSharesObject(t *testing.T) {
	obj := &R{}
	h := cellwrap.NewHandle(obj)
	w, err := cellwrap.New(h, cellwrap.WithLocal(true))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	v, err := h.Get()
	require.NoError(t, err)
	assert.Same(t, obj, v)

	_, err = w.RecoverObject()
	assert.ErrorIs(t, err, cellwrap.ErrRecoveryNotPermitted)
}

func TestSequentialModeSerializes(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}), cellwrap.WithThreads(0))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := w.Call("SlowEcho", []any{1}, nil, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 450*time.Millisecond)
}

func TestPooledModeOverlaps(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}), cellwrap.WithThreads(2))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := w.Call("SlowEcho", []any{1}, nil, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

type box struct{ V string }

func TestBlockRelayCopiesArgument(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}),
		cellwrap.WithMoveData(true),
		cellwrap.WithMoveBlockArguments(false),
	)
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	arg := &box{V: "hi"}
	var captured *box
	_, err = w.Call("RunBlock", []any{arg}, nil, func(args []any, _ map[string]any) (any, error) {
		captured = args[0].(*box)
		return nil, nil
	})
	require.NoError(t, err)
	assert.NotSame(t, arg, captured)
	assert.Equal(t, arg.V, captured.V)
}

func TestBlockRelayMovesArgument(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}), cellwrap.WithMoveData(true))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	arg := &box{V: "hi"}
	var captured *box
	_, err = w.Call("RunBlock", []any{arg}, nil, func(args []any, _ map[string]any) (any, error) {
		captured = args[0].(*box)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, arg, captured)
}

func TestBlockExecutesInPlace(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}), cellwrap.WithExecuteBlocksInPlace(true))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	caller := goroutineID()
	var blockGoroutine uint64
	_, err = w.Call("RunBlock", nil, nil, func(_ []any, _ map[string]any) (any, error) {
		blockGoroutine = goroutineID()
		return nil, nil
	})
	require.NoError(t, err)
	assert.NotEqual(t, caller, blockGoroutine)
}

func TestBlockRelayRunsOnCallerGoroutine(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	caller := goroutineID()
	var blockGoroutine uint64
	_, err = w.Call("RunBlock", nil, nil, func(_ []any, _ map[string]any) (any, error) {
		blockGoroutine = goroutineID()
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, caller, blockGoroutine)
}

func TestRespondsTo(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	ok, err := w.Stub().RespondsTo("Echo", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.Stub().RespondsTo("Nonexistent", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrapperClosedAfterStop(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}))
	require.NoError(t, err)

	w.AsyncStop()
	w.Join()

	_, err = w.Call("Echo", nil, nil, nil)
	assert.ErrorIs(t, err, cellwrap.ErrWrapperClosed)
}

func TestAsyncStopAndJoinAreIdempotent(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		w.AsyncStop()
	}
	w.Join()
	w.Join()
}

func TestMethodSettingsOverride(t *testing.T) {
	w, err := cellwrap.New(cellwrap.NewHandle(&R{}), cellwrap.WithBuilder(func(b *cellwrap.Builder) {
		b.ConfigureMethod("Echo", cellwrap.MoveArguments(true))
	}))
	require.NoError(t, err)
	defer func() { w.AsyncStop(); w.Join() }()

	p, explicit := w.MethodSettings("Echo")
	assert.True(t, explicit)
	assert.True(t, p.MoveArguments)

	_, explicit = w.MethodSettings("Whoops")
	assert.False(t, explicit)
}
