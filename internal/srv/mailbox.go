package srv

import (
	"sync"

	"github.com/cellwrap/cellwrap/internal/errs"
	"github.com/cellwrap/cellwrap/internal/wire"
)

// mailbox is the server's inbox. Spec §4.5 describes it as a channel that
// the server "closes" during Cleanup, with remaining buffered messages then
// drained. A Go channel's close contract forbids that directly: inbox has
// multiple concurrent senders (every peer calling Call, plus AsyncStop and
// Join), and only the single owning goroutine may ever call close on a
// channel with outstanding senders without risking a send-on-closed-channel
// panic. mailbox reproduces the same observable behavior — sends after
// close fail immediately with errs.ServerUnavailable, and every message
// sent before close is still delivered to the drain — using a
// mutex+condition-variable queue instead of a raw chan.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []wire.InboxMessage
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// send enqueues msg, or reports errs.ServerUnavailable if the mailbox has
// already been closed.
func (m *mailbox) send(msg wire.InboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.ServerUnavailable
	}
	m.queue = append(m.queue, msg)
	m.cond.Signal()
	return nil
}

// recv blocks until a message is available, returning ok=false once the
// mailbox is closed and fully drained.
func (m *mailbox) recv() (wire.InboxMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 {
		if m.closed {
			return nil, false
		}
		m.cond.Wait()
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// close stops further sends from being accepted and wakes any blocked
// receiver. Messages already queued remain available to recv.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}
