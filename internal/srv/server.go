// Package srv implements the object-owning server actor of spec §4.5/§4.6:
// the inbox dispatcher, the bounded worker pool, the Init/Running/Draining/
// Cleanup/Terminated lifecycle, per-call execution and refusal, and the
// block relay proxy. It is grounded on
// joeycumines-go-utilpkg/inprocgrpc/channel.go's pattern of funneling a
// call across a goroutine boundary and completing it on a per-call channel,
// generalized here into a long-lived actor with a worker pool instead of a
// single event loop, per spec §2's component budget.
package srv

import (
	"fmt"

	"github.com/cellwrap/cellwrap/internal/clone"
	"github.com/cellwrap/cellwrap/internal/errs"
	"github.com/cellwrap/cellwrap/internal/logx"
	"github.com/cellwrap/cellwrap/internal/wire"
)

// Server owns the wrapped object for its entire lifetime. It is created and
// driven entirely by the cellwrap package; callers interact with it only
// through SendCall/SendStop/SendJoin and, for isolated servers, Done.
type Server struct {
	object   any
	inbox    *mailbox
	jobs     chan *wire.CallMessage
	isolated bool
	name     string
	logger   logx.Logger
	threads  int
	cloner   clone.Cloner

	alive   int
	joiners []chan struct{}
	done    chan any // non-nil only for isolated servers
}

// RunIsolated starts a server in a new goroutine that performs, as its
// first act, a blocking receive on objCh — modeling spec §4.3's "the object
// is then sent to that inbox with move semantics; the server's first act is
// to receive it." A dedicated typed channel is used for that single
// handoff rather than mixing a raw object value into the InboxMessage
// union, since Go's static typing makes a dedicated channel both simpler
// and safer than a heterogeneous inbox.
func RunIsolated(objCh <-chan any, name string, logger logx.Logger, threads int, cloner clone.Cloner) *Server {
	s := &Server{
		inbox:    newMailbox(),
		isolated: true,
		name:     name,
		logger:   logger,
		threads:  threads,
		cloner:   cloner,
		done:     make(chan any, 1),
	}
	go s.run(func() any { return <-objCh })
	return s
}

// RunLocal starts a server in a new goroutine hosted, per spec §4.3, in the
// caller's own domain — here, just another goroutine in the same process,
// holding the object by reference rather than by ownership transfer.
func RunLocal(object any, name string, logger logx.Logger, threads int, cloner clone.Cloner) *Server {
	s := &Server{
		inbox:   newMailbox(),
		name:    name,
		logger:  logger,
		threads: threads,
		cloner:  cloner,
	}
	go s.run(func() any { return object })
	return s
}

// SendCall delivers msg to the server's inbox. A call arriving once the
// server has fully torn down is, from the caller's point of view,
// indistinguishable from one refused mid-drain (spec.md:175/194): both mean
// "this call arrived after async_stop", so a mailbox-closed delivery
// failure is reported as errs.WrapperClosed here, not the lower-level
// errs.ServerUnavailable the mailbox itself returns.
func (s *Server) SendCall(msg *wire.CallMessage) error {
	if err := s.inbox.send(msg); err != nil {
		return errs.WrapperClosed
	}
	return nil
}

// SendStop requests a graceful shutdown (idempotent).
func (s *Server) SendStop() error { return s.inbox.send(&wire.StopMessage{}) }

// SendJoin asks to be notified (by reply being closed) once the server has
// fully terminated.
func (s *Server) SendJoin(reply chan struct{}) error {
	return s.inbox.send(&wire.JoinMessage{Reply: reply})
}

// Done returns the channel the owned object is sent on once an isolated
// server terminates. It is nil for local servers.
func (s *Server) Done() <-chan any { return s.done }

func logEntryWorker(worker int, msg string) logx.Entry {
	return logx.Entry{Worker: worker, HasWork: true, Message: msg}
}

func (s *Server) log(e logx.Entry) {
	if s.logger == nil || !s.logger.Enabled() {
		return
	}
	e.Name = s.name
	s.logger.Event(e)
}

// run drives the full lifecycle: Init, Running, (Draining), Cleanup,
// Terminated. Any unexpected panic during the lifecycle is logged; the
// state machine still exits cleanly and the owned object is still returned
// to an isolated caller, per spec §4.5's final paragraph.
func (s *Server) run(initObject func() any) {
	defer func() {
		if r := recover(); r != nil {
			s.log(logx.Entry{Message: "recovered from panic in server lifecycle", Err: fmt.Errorf("%v", r)})
		}
		if s.isolated {
			s.done <- s.object
			close(s.done)
		}
	}()

	s.object = initObject()
	if s.threads > 0 {
		s.jobs = make(chan *wire.CallMessage, s.threads)
		s.alive = s.threads
		for i := 0; i < s.threads; i++ {
			go s.runWorker(i)
		}
	}
	s.log(logx.Entry{Message: "server init complete"})

	draining := s.stepRunning()
	if draining {
		s.stepDraining()
	}
	s.stepCleanup()
	s.log(logx.Entry{Message: "server terminated"})
}

// stepRunning is the Running state: dispatch CallMessages (inline if
// sequential, to the job queue if pooled), accumulate JoinMessage replies,
// and exit on a StopMessage or an (unexpected-here) WorkerStoppedMessage.
func (s *Server) stepRunning() (enterDraining bool) {
	s.log(logx.Entry{Message: "entering running state"})
	for {
		msg, ok := s.inbox.recv()
		if !ok {
			return true
		}
		switch m := msg.(type) {
		case *wire.CallMessage:
			if s.jobs != nil {
				s.jobs <- m
			} else {
				s.executeCall(m)
			}
		case *wire.JoinMessage:
			s.joiners = append(s.joiners, m.Reply)
		case *wire.StopMessage:
			return true
		case *wire.WorkerStoppedMessage:
			s.alive--
			s.log(logx.Entry{Worker: m.Worker, HasWork: true, Message: "worker stopped while running (unexpected)"})
			return true
		}
	}
}

// stepDraining is the Draining state. Only meaningfully entered when
// pooled (alive > 0); in sequential mode it returns immediately since
// alive is already 0.
func (s *Server) stepDraining() {
	s.log(logx.Entry{Message: "entering draining state"})
	if s.jobs != nil {
		close(s.jobs)
	}
	for s.alive > 0 {
		msg, ok := s.inbox.recv()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case *wire.CallMessage:
			s.refuse(m)
		case *wire.JoinMessage:
			s.joiners = append(s.joiners, m.Reply)
		case *wire.StopMessage:
			// idempotent, ignore
		case *wire.WorkerStoppedMessage:
			s.alive--
			s.log(logx.Entry{Worker: m.Worker, HasWork: true, Message: "worker stopped while draining"})
		}
	}
}

// stepCleanup is the Cleanup state: close the inbox to new sends, reply to
// every accumulated join waiter, then drain whatever was already buffered
// before returning the object to Terminated.
func (s *Server) stepCleanup() {
	s.log(logx.Entry{Message: "entering cleanup state"})
	s.inbox.close()
	for _, j := range s.joiners {
		close(j)
	}
	s.joiners = nil
	for {
		msg, ok := s.inbox.recv()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case *wire.CallMessage:
			s.refuse(m)
		case *wire.JoinMessage:
			close(m.Reply)
		default:
			// StopMessage/WorkerStoppedMessage: ignore during cleanup drain.
		}
	}
}
