package endpoint

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// noCloseWriter defers closing to the paired ReadCloser, so a File
// endpoint (one fd serving both directions) is only closed once.
type noCloseWriter struct{ io.Writer }

func (noCloseWriter) Close() error { return nil }

// File opens path for simultaneous reading and writing and wires it as
// the byte endpoint (spec.md §6.1's --file mode).
func File(path string) (Pair, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Pair{}, errors.Wrapf(err, "open file %s", path)
	}
	return Pair{Read: f, Write: noCloseWriter{f}}, nil
}
