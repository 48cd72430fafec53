package srv

import "github.com/cellwrap/cellwrap/internal/wire"

// runWorker is a pooled worker: it dequeues CallMessages one at a time from
// the shared job queue until the queue is closed and drained (signaling
// shutdown), at which point it reports itself stopped and exits, per spec
// §4.6's "a dequeued nil (channel closed) signals exit; on exit the worker
// sends WorkerStoppedMessage{n} on the inbox and terminates."
func (s *Server) runWorker(n int) {
	s.log(logEntryWorker(n, "worker started"))
	for msg := range s.jobs {
		s.executeCall(msg)
	}
	s.log(logEntryWorker(n, "worker stopping"))
	_ = s.inbox.send(&wire.WorkerStoppedMessage{Worker: n})
}
