// Package framer reconstructs protocol-defined message frames from an
// arbitrary byte stream. One Framer instance owns the parse state for
// exactly one protocol; instances are not safe for concurrent use.
package framer

// Kind selects a framer implementation.
type Kind string

const (
	// None is the identity framer: every slice handed to Process is
	// emitted as one frame, verbatim.
	None Kind = "none"
	// SBP frames Swift Binary Protocol messages.
	SBP Kind = "sbp"
	// RTCM3 frames RTCM3 messages.
	RTCM3 Kind = "rtcm3"
)

// Framer is a stateful transducer: Process absorbs input and, once enough
// bytes have accumulated to resolve one complete frame, returns it.
//
// Process is called in a loop by the caller: each call returns the number
// of bytes of input it has absorbed and, if available, the next frame.
// The returned frame aliases the Framer's internal buffer and is only
// valid until the next call to Process with the same receiver; callers
// that need to retain it past that point must copy it.
type Framer interface {
	// Process absorbs input and returns how much of it was consumed and,
	// if one is now available, the next complete frame. Frame is nil
	// when no complete frame is available yet.
	Process(input []byte) (consumed int, frame []byte)
}

// New constructs a Framer of the given kind. An unrecognized kind yields
// the identity framer.
//
// onDesync, if given, is called every time the framer drops a byte to
// resynchronize on a bad preamble or CRC mismatch (spec.md §4.2/§4.3). It
// is the hook that lets a caller surface trace.Trace.FrameDesync under
// --debug; the identity framer never resyncs and ignores it.
func New(kind Kind, onDesync ...func()) Framer {
	var hook func()
	if len(onDesync) > 0 {
		hook = onDesync[0]
	}
	switch kind {
	case SBP:
		return newSBPFramer(hook)
	case RTCM3:
		return newRTCM3Framer(hook)
	default:
		return &noneFramer{}
	}
}
