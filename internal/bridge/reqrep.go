package bridge

import (
	"context"
	"time"

	"github.com/swiftnav/zmqadapter/internal/bus"
	"github.com/swiftnav/zmqadapter/internal/handle"
	"github.com/swiftnav/zmqadapter/internal/trace"
)

// reqrepBufferSize is the read chunk size for each side of the REQ/REP
// bridge.
const reqrepBufferSize = 64 * 1024

// readResult is what a one-shot background read reports back to the
// select loop.
type readResult struct {
	n   int
	buf []byte
	err error
}

// readOnce spawns a single blocking read on h and reports its outcome on
// the returned channel. The bridge loop re-arms a side by calling this
// again only after it has finished reacting to the previous result,
// matching the "one readable event per select iteration" shape of
// zmq_poll that this replaces (SPEC_FULL.md §9).
func readOnce(h *handle.Handle) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		buf := make([]byte, reqrepBufferSize)
		n, err := h.Read(buf)
		if n < 0 {
			n = 0
		}
		ch <- readResult{n: n, buf: buf[:n], err: err}
	}()
	return ch
}

// RunReqRep implements the correlated request/reply bridge of spec.md
// §4.6: requester and responder are coupled through a reply_pending
// state machine, multiplexed over both sides' readable events plus a
// reply-timeout that only applies while a reply is outstanding and the
// responder is a bus socket.
func RunReqRep(ctx context.Context, requester, responder *handle.Handle, timeout, startupDelay time.Duration, sl *trace.Syslog) error {
	tr := trace.FromContext(ctx)
	replyPending := false

	reqCh := readOnce(requester)
	respCh := readOnce(responder)

	for {
		var timeoutCh <-chan time.Time
		if replyPending && responder.IsBus() {
			timeoutCh = time.After(timeout)
		}

		select {
		case <-ctx.Done():
			return nil

		case res := <-reqCh:
			if res.err != nil {
				return res.err
			}
			if res.n <= 0 {
				return nil
			}

			if !replyPending {
				tr.ReplyPendingViolation("reply observed with none pending")
				sl.Warnf("reply-pending violation: unexpected reply from requester")
			}

			if !replyPending && responder.IsBus() {
				// Drop the data: spec.md §4.6 only discards an
				// unexpected reply when the responder is a bus
				// socket. The read above has already drained this
				// chunk from the requester, so there is nothing
				// further to do (SPEC_FULL.md §6.4).
			} else {
				// A non-bus responder has no request/reply protocol
				// of its own to violate, so the original forwards the
				// reply through regardless (SPEC_FULL.md §6.4).
				_, frames, werr := responder.WriteOneViaFramer(res.buf)
				if werr != nil {
					return werr
				}
				if frames > 0 {
					replyPending = false
				}
			}
			reqCh = readOnce(requester)

		case res := <-respCh:
			if res.err != nil {
				return res.err
			}
			if res.n <= 0 {
				return nil
			}

			if replyPending {
				tr.ReplyPendingViolation("request observed with a reply already outstanding")
				sl.Warnf("reply-pending violation: new request before prior reply")
				if requester.IsBus() {
					kind := requester.BusSocket().Kind()
					tr.SocketRestarting(string(kind), "request arrived while reply pending")
					newSock, err := bus.Restart(ctx, requester.BusSocket(), startupDelay)
					if err != nil {
						return err
					}
					requester.SetBusSocket(newSock)
					// The goroutine reading the old socket is abandoned;
					// it will either error out or block forever on the
					// closed socket, but reqCh no longer refers to it, so
					// its eventual result (if any) is never observed.
					reqCh = readOnce(requester)
				}
				replyPending = false
			}

			_, frames, werr := requester.WriteOneViaFramer(res.buf)
			if werr != nil {
				return werr
			}
			if frames > 0 {
				replyPending = true
			}
			respCh = readOnce(responder)

		case <-timeoutCh:
			tr.ReplyTimeout()
			sl.Errf("reply timeout after %s, restarting responder socket", timeout)
			kind := responder.BusSocket().Kind()
			tr.SocketRestarting(string(kind), "reply timeout")
			newSock, err := bus.Restart(ctx, responder.BusSocket(), startupDelay)
			if err != nil {
				return err
			}
			responder.SetBusSocket(newSock)
			// Re-arm the reader on the restarted socket; the goroutine
			// still blocked on the destroyed one is abandoned (see the
			// comment above in the reply-pending-violation branch).
			respCh = readOnce(responder)
			replyPending = false
		}
	}
}
