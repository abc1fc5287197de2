// Package bus wraps the go-zeromq/zmq4 sockets behind a small interface
// tailored to spec.md §3/§4.7: PUB, SUB, REQ and REP socket kinds, each
// bound or connected from a single address string whose leading '>'
// marker selects connect-vs-bind, with per-kind options applied before
// attach and a configurable post-attach startup delay.
package bus

import (
	"context"
	"strings"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// Kind identifies a bus socket kind.
type Kind string

const (
	PUB Kind = "pub"
	SUB Kind = "sub"
	REQ Kind = "req"
	REP Kind = "rep"
)

// Socket is a uniform façade over a PUB, SUB, REQ or REP bus socket.
type Socket struct {
	kind Kind
	addr string
	sock zmq4.Socket
}

// Start creates and attaches a bus socket of the given kind at addr, sets
// kind-specific options, and sleeps for startupDelay once attached (spec.md
// §4.7) to let the peer observe the new endpoint.
func Start(ctx context.Context, kind Kind, addr string, startupDelay time.Duration) (*Socket, error) {
	sock, err := newZMQSocket(ctx, kind)
	if err != nil {
		return nil, errors.Wrap(err, "unknown socket kind")
	}

	connector, serverish := addressRole(addr)

	var attachErr error
	if serverish {
		attachErr = sock.Listen(connector)
	} else {
		attachErr = sock.Dial(connector)
	}
	if attachErr != nil {
		_ = sock.Close()
		return nil, errors.Wrapf(attachErr, "error opening socket: %s", addr)
	}

	time.Sleep(startupDelay)

	return &Socket{kind: kind, addr: addr, sock: sock}, nil
}

// Kind reports the socket's kind.
func (s *Socket) Kind() Kind { return s.kind }

// Close tears down the underlying socket.
func (s *Socket) Close() error {
	if s == nil || s.sock == nil {
		return nil
	}
	return s.sock.Close()
}

// Read blocks for the next message and returns the concatenation of its
// frames, truncated to len(buffer) if necessary (spec.md §4.4). Any error
// is fatal and reported as a negative count via the ssize_t-style
// convention used throughout internal/handle; interruption is handled by
// the context passed at socket construction.
func (s *Socket) Read(buffer []byte) (int, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return -1, err
	}

	n := 0
	for _, part := range msg.Frames {
		if n >= len(buffer) {
			break
		}
		copyLen := len(part)
		if n+copyLen > len(buffer) {
			copyLen = len(buffer) - n
		}
		copy(buffer[n:n+copyLen], part[:copyLen])
		n += copyLen
	}
	return n, nil
}

// Write transmits buffer as one bus message.
func (s *Socket) Write(buffer []byte) (int, error) {
	cp := make([]byte, len(buffer))
	copy(cp, buffer)
	if err := s.sock.Send(zmq4.NewMsg(cp)); err != nil {
		return -1, err
	}
	return len(buffer), nil
}

// addressRole splits addr into the transport address and reports whether
// this endpoint is server-side (a bind) or client-side (a connect). A
// leading '>' requests a connect; its absence requests a bind, per
// spec.md §6.1.
func addressRole(addr string) (connector string, serverish bool) {
	if strings.HasPrefix(addr, ">") {
		return strings.TrimPrefix(addr, ">"), false
	}
	return addr, true
}

func newZMQSocket(ctx context.Context, kind Kind) (zmq4.Socket, error) {
	switch kind {
	case PUB:
		return zmq4.NewPub(ctx), nil
	case SUB:
		s := zmq4.NewSub(ctx)
		_ = s.SetOption(zmq4.OptionSubscribe, "")
		return s, nil
	case REQ:
		s := zmq4.NewReq(ctx)
		return s, nil
	case REP:
		return zmq4.NewRep(ctx), nil
	default:
		return nil, errors.Errorf("unknown socket kind %q", kind)
	}
}
