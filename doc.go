// Package cellwrap lets a single, non-thread-safe, non-shareable object be
// called safely from many goroutines by funneling every invocation through
// a message-passing actor that owns the object exclusively.
//
// # Architecture
//
// A [Wrapper] is built with [New], which hands the object (boxed in a
// [Handle] so ownership transfer is explicit) to a server actor: by default
// an isolated goroutine that takes exclusive ownership of the object, or,
// with [WithLocal], a server goroutine that holds the object by reference
// while the constructing goroutine's Handle stays live. [Wrapper.Call] composes a transaction (method name, arguments,
// an optional block, and a per-call reply channel), sends it to the
// server's inbox, and then services the reply protocol: zero or more
// relayed block invocations (see "Block Relay" below) followed by exactly
// one terminal return or error.
//
// The server dispatches calls inline when [WithThreads] is 0 (sequential
// mode, suitable for objects with no internal concurrency safety of their
// own) or to a bounded worker pool otherwise (pooled mode, calls may
// complete out of order).
//
// # Payload Transport
//
// Every argument, result, block argument and block result is transported
// either by move (ownership transfer, via the [Cloner]-free path) or by
// copy (an independent deep clone produced by a [clone.Cloner]), per a
// [MethodPolicy] resolved from the wrapper-wide defaults and any
// [Builder.ConfigureMethod] override. The default [Cloner] performs a
// reflection-based deep copy; [WithCloner] can install [ProtoCloner] or any
// other protobuf-message-aware cloner instead.
//
// # Block Relay
//
// A block argument to [Wrapper.Call] normally cannot run inside the
// server's worker goroutine directly, since it closes over the caller's
// state. Unless the resolved policy sets execute_blocks_in_place, the
// server substitutes a relay proxy: each invocation of the block inside the
// worker sends a yield message back across the call's reply channel, the
// caller runs the block locally, and replies on a freshly allocated
// sub-channel.
//
// # Lifecycle
//
// The server progresses through Init, Running, Draining, Cleanup and
// Terminated. [Wrapper.AsyncStop] requests the Running-to-Draining
// transition; [Wrapper.Join] blocks until Terminated; [Wrapper.RecoverObject]
// (isolated wrappers only, callable once) yields the object back once
// Terminated is reached.
package cellwrap
