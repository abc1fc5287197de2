package endpoint

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Listener accepts TCP connections serially and wires each accepted
// connection as the byte endpoint, one at a time, for the lifetime of
// the process (SPEC_FULL.md §6.1). This mirrors the accept loop in the
// teacher's ssh.Server.acceptConnections, without the per-connection
// goroutine fan-out: the adapter's byte endpoint is single-stream, so
// only one connection is ever live.
type Listener struct {
	ln net.Listener
}

// Listen opens a TCP listener on the given port (spec.md §6.1's --tcp-l
// mode).
func Listen(port int) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrapf(err, "listen on port %d", port)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next client connection and returns it as a
// read/write Pair. The same *net.TCPConn backs both halves; closing the
// Read half closes the whole connection, while closing the Write half is
// a no-op, matching the teacher's handling of a single net.Conn for both
// directions.
func (l *Listener) Accept() (Pair, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return Pair{}, errors.Wrap(err, "accept")
	}
	return Pair{Read: conn, Write: noCloseWriter{conn}}, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
