// Package trace provides the adapter's diagnostic hooks: a set of
// optional callbacks fired at points in the framer/filter/bridge/
// supervisor pipeline (mirroring --debug traces in spec.md §7 kind 3/4),
// and a syslog sink for the error/warning conditions spec.md §6.3 and §7
// require to reach the system log.
package trace

import (
	"context"
	"fmt"
	"log"
	"log/syslog"

	"github.com/imdario/mergo"
)

// unique type to prevent assignment collisions on the context key.
type traceContextKey struct{}

// FromContext returns the Trace associated with ctx, falling back to a
// set of no-op hooks merged over anything the caller did supply, so that
// callers never need a nil check before invoking a hook.
func FromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceContextKey{}).(*Trace)
	if t == nil {
		t = NoOpHooks
	} else {
		_ = mergo.Merge(t, NoOpHooks) // nolint: errcheck
	}
	return t
}

// WithTrace returns a context carrying the given hooks.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// Trace is the set of diagnostic hooks the adapter fires. All fields are
// optional; FromContext fills in no-op defaults for anything left nil.
type Trace struct {
	// FrameDesync is called when the framer drops a byte that cannot
	// begin a legal frame (spec.md §7 kind 3).
	FrameDesync func(direction string)

	// FrameDropped is called when a well-formed frame fails its filter's
	// admit rule (spec.md §7 kind 4).
	FrameDropped func(direction string)

	// BytesWritten is called after a handle write, with the number of
	// bytes actually written.
	BytesWritten func(direction string, n int)

	// SocketOpened is called when a bus socket attaches successfully.
	SocketOpened func(kind, addr string)

	// SocketRestarting is called when the reply-timeout or
	// reply-pending-violation paths in the REQ/REP bridge tear down and
	// recreate a bus socket (spec.md §4.6).
	SocketRestarting func(kind string, reason string)

	// ReplyTimeout is called when the REQ/REP bridge's poll times out
	// with a reply outstanding (spec.md §7 kind 6).
	ReplyTimeout func()

	// ReplyPendingViolation is called on an unexpected reply or a
	// request arriving while one is already outstanding (spec.md §7
	// kind 5).
	ReplyPendingViolation func(detail string)
}

// NoOpHooks does nothing; it is the zero-cost default.
var NoOpHooks = &Trace{
	FrameDesync:           func(string) {},
	FrameDropped:          func(string) {},
	BytesWritten:          func(string, int) {},
	SocketOpened:          func(string, string) {},
	SocketRestarting:      func(string, string) {},
	ReplyTimeout:          func() {},
	ReplyPendingViolation: func(string) {},
}

// DebugHooks logs every event to stderr via the standard log package,
// for use when --debug is set (spec.md §6.1).
var DebugHooks = &Trace{
	FrameDesync: func(direction string) {
		log.Printf("[%s] frame desync: dropped one byte, resyncing\n", direction)
	},
	FrameDropped: func(direction string) {
		log.Printf("[%s] ignoring frame: filtered\n", direction)
	},
	BytesWritten: func(direction string, n int) {
		log.Printf("[%s] wrote %d bytes\n", direction, n)
	},
	SocketOpened: func(kind, addr string) {
		log.Printf("opened %s socket: %s\n", kind, addr)
	},
	SocketRestarting: func(kind, reason string) {
		log.Printf("restarting %s socket: %s\n", kind, reason)
	},
	ReplyTimeout: func() {
		log.Printf("reply timeout - resetting socket\n")
	},
	ReplyPendingViolation: func(detail string) {
		log.Printf("reply-pending violation: %s\n", detail)
	},
}

// Syslog is a minimal wrapper around log/syslog configured per spec.md
// §6.3: facility local0, identity zmq_adapter. It is the one sink that
// always runs, independent of --debug, for the error-level conditions
// spec.md §7 calls out (reply-pending violations, timeouts, transport
// errors).
type Syslog struct {
	w *syslog.Writer
}

// NewSyslog dials the local syslog daemon. Construction failure is not
// fatal to the adapter: the returned Syslog's Errf and Warnf then log via
// the standard log package, so a missing syslogd never takes down a
// bridge.
func NewSyslog() *Syslog {
	w, err := syslog.New(syslog.LOG_LOCAL0, "zmq_adapter")
	if err != nil {
		log.Printf("syslog unavailable, falling back to stderr: %v\n", err)
		return &Syslog{}
	}
	return &Syslog{w: w}
}

// Errf logs an error-level message.
func (s *Syslog) Errf(format string, args ...interface{}) {
	if s.w != nil {
		_ = s.w.Err(fmt.Sprintf(format, args...))
		return
	}
	log.Printf(format, args...)
}

// Warnf logs a warning-level message.
func (s *Syslog) Warnf(format string, args ...interface{}) {
	if s.w != nil {
		_ = s.w.Warning(fmt.Sprintf(format, args...))
		return
	}
	log.Printf(format, args...)
}
