// Package endpoint bootstraps the byte-oriented side of the bridge:
// standard streams, a regular file, or a listening TCP socket (spec.md
// §6.1). Each bootstrap function surfaces a read/write descriptor pair
// to the core, per the "out of scope" boundary in spec.md §1.
package endpoint

import "io"

// Pair is a read/write descriptor pair, either half of which may be
// absent depending on the mode (spec.md §3's Endpoint descriptor).
type Pair struct {
	Read  io.ReadCloser
	Write io.WriteCloser
}
