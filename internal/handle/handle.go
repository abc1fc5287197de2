// Package handle implements the uniform I/O façade over either a bus
// socket or a pair of byte file descriptors described in spec.md §4.4:
// one Handle owns exactly one of those, plus a Framer and Filter state.
package handle

import (
	"io"

	"github.com/pkg/errors"

	"github.com/swiftnav/zmqadapter/internal/bus"
	"github.com/swiftnav/zmqadapter/internal/filter"
	"github.com/swiftnav/zmqadapter/internal/framer"
	"github.com/swiftnav/zmqadapter/internal/trace"
)

// Handle unites an I/O side (bus socket xor byte descriptors) with the
// framer/filter state applied to data written through it.
type Handle struct {
	Direction string

	sock *bus.Socket
	r    io.ReadCloser
	w    io.WriteCloser

	framer framer.Framer
	filter filter.Filter
	trace  *trace.Trace
}

// NewBusHandle wraps a bus socket.
func NewBusHandle(direction string, sock *bus.Socket, fr framer.Framer, fl filter.Filter, tr *trace.Trace) *Handle {
	return &Handle{Direction: direction, sock: sock, framer: fr, filter: fl, trace: tr}
}

// NewByteHandle wraps a pair of byte file descriptors. Per spec.md §9,
// r and w are never assumed to be the same descriptor: stdio wires them
// to os.Stdin and os.Stdout respectively, and both must be usable
// simultaneously.
func NewByteHandle(direction string, r io.ReadCloser, w io.WriteCloser, fr framer.Framer, fl filter.Filter, tr *trace.Trace) *Handle {
	return &Handle{Direction: direction, r: r, w: w, framer: fr, filter: fl, trace: tr}
}

// IsBus reports whether this Handle wraps a bus socket rather than byte
// descriptors.
func (h *Handle) IsBus() bool { return h.sock != nil }

// BusSocket returns the underlying bus socket, or nil for a byte Handle.
func (h *Handle) BusSocket() *bus.Socket { return h.sock }

// SetBusSocket swaps in a freshly (re)started bus socket, used by the
// REQ/REP bridge's socket-restart path (spec.md §4.6).
func (h *Handle) SetBusSocket(sock *bus.Socket) { h.sock = sock }

// Close releases whichever side this Handle owns.
func (h *Handle) Close() error {
	if h.sock != nil {
		return h.sock.Close()
	}
	var err error
	if h.w != nil {
		err = h.w.Close()
	}
	if h.r != nil {
		if rerr := h.r.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// Read returns the next chunk of bytes available from this Handle.
// End-of-stream on the byte side returns (0, nil); a negative count
// indicates a fatal error, matching the ssize_t convention in spec.md
// §4.4.
func (h *Handle) Read(buffer []byte) (int, error) {
	if h.sock != nil {
		return h.sock.Read(buffer)
	}
	n, err := h.r.Read(buffer)
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return -1, err
	}
	return n, nil
}

// writeRaw transmits buffer as one bus message (for a bus Handle) or as a
// best-effort sequence of writes retried until the whole buffer is
// emitted or a fatal error occurs (for a byte Handle).
func (h *Handle) writeRaw(buffer []byte) (int, error) {
	if h.sock != nil {
		return h.sock.Write(buffer)
	}

	written := 0
	for written < len(buffer) {
		n, err := h.w.Write(buffer[written:])
		if h.trace != nil {
			h.trace.BytesWritten(h.Direction, n)
		}
		if err != nil {
			return -1, err
		}
		if n == 0 {
			return -1, errors.New("write returned zero with no error")
		}
		written += n
	}
	return written, nil
}

// WriteOneViaFramer finds the first complete frame in buffer using this
// Handle's framer, filters it, and forwards it if admitted. It returns
// the number of input bytes consumed and the number of frames forwarded
// (0 or 1), per the drain-one contract in spec.md §4.4.
func (h *Handle) WriteOneViaFramer(buffer []byte) (consumed int, framesWritten int, err error) {
	consumed, frame := h.framer.Process(buffer)
	if frame == nil {
		return consumed, 0, nil
	}

	if !h.filter.Admit(frame) {
		if h.trace != nil {
			h.trace.FrameDropped(h.Direction)
		}
		return consumed, 0, nil
	}

	n, werr := h.writeRaw(frame)
	if werr != nil {
		return consumed, 0, werr
	}
	if n != len(frame) {
		return consumed, 0, errors.New("short write: write_count != frame_length")
	}

	return consumed, 1, nil
}

// WriteAllViaFramer repeatedly drains frames from buffer until the framer
// produces no more, forwarding each admitted one, per the drain-all
// contract in spec.md §4.4 (used by the streaming bridge).
func (h *Handle) WriteAllViaFramer(buffer []byte) (consumed int, framesWritten int, err error) {
	for {
		n, frames, werr := h.WriteOneViaFramer(buffer[consumed:])
		consumed += n
		if werr != nil {
			return consumed, framesWritten, werr
		}
		if frames == 0 {
			return consumed, framesWritten, nil
		}
		framesWritten += frames
	}
}
