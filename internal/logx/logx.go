// Package logx provides the structured, per-event logging used by the
// wrapper and server when logging is enabled (spec §6, "Observability").
//
// The shape (a Logger interface plus a structured Entry, matching
// joeycumines-go-utilpkg/eventloop's logging.go: Logger/LogEntry/LogLevel)
// is adapted from that package's hand-rolled logging convention rather than
// imported, since go-eventloop's logger is purely internal infrastructure,
// not something downstream modules import. The zerolog-backed
// implementation is grounded on github.com/rs/zerolog, the backend used by
// joeycumines-go-utilpkg/logiface-zerolog elsewhere in the same author's
// ecosystem.
package logx

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one structured log line: a lifecycle transition or per-message
// event, tagged per spec §6 with the wrapper's name and, where applicable,
// transaction id, method name and worker number.
type Entry struct {
	Name    string
	TxID    string
	Method  string
	Worker  int
	HasWork bool // whether Worker is meaningful
	Message string
	Err     error
}

// Logger is the sink for Entry values.
type Logger interface {
	Event(Entry)
	Enabled() bool
}

// noop discards every entry; it is the default when logging is disabled.
type noop struct{}

func (noop) Event(Entry)   {}
func (noop) Enabled() bool { return false }

// Noop returns a Logger that discards all events.
func Noop() Logger { return noop{} }

// zlog backs Logger with a zerolog.Logger, one field-rich event per Entry.
type zlog struct {
	log zerolog.Logger
}

// NewZerolog returns a Logger that writes one JSON line per Entry to w,
// timestamped in ISO-8601 with millisecond precision in UTC, per spec §6.
func NewZerolog(w io.Writer) Logger {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	l := zerolog.New(w).With().Timestamp().Logger()
	return zlog{log: l}
}

func (z zlog) Enabled() bool { return true }

func (z zlog) Event(e Entry) {
	ev := z.log.Info().Str("name", e.Name)
	if e.TxID != "" {
		ev = ev.Str("tx", e.TxID)
	}
	if e.Method != "" {
		ev = ev.Str("method", e.Method)
	}
	if e.HasWork {
		ev = ev.Int("worker", e.Worker)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(e.Message)
}
