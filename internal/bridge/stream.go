// Package bridge implements the two coordination regimes that move data
// between a pair of Handles: a simple streaming pump for PUB/SUB traffic
// (spec.md §4.5) and a correlated request/reply loop with timeouts and
// socket resets (spec.md §4.6).
package bridge

import (
	"context"

	"github.com/swiftnav/zmqadapter/internal/handle"
)

// streamBufferSize is the fixed read chunk size for the streaming bridge
// (spec.md §4.5).
const streamBufferSize = 64 * 1024

// RunStream pumps data from src to dst: read up to streamBufferSize bytes
// from src, drain-all the result through dst's framer/filter, repeat.
// It returns when src reaches end-of-stream, a read or write is fatal, or
// ctx is cancelled. Bytes left over after a drain-all call (an in-progress
// partial frame) simply remain buffered in dst's framer for the next read.
func RunStream(ctx context.Context, src, dst *handle.Handle) error {
	buf := make([]byte, streamBufferSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := src.Read(buf)
		if err != nil {
			return err
		}
		if n <= 0 {
			return nil
		}

		if _, _, werr := dst.WriteAllViaFramer(buf[:n]); werr != nil {
			return werr
		}
	}
}
