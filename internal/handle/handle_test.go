package handle

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftnav/zmqadapter/internal/filter"
	"github.com/swiftnav/zmqadapter/internal/framer"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type readNopCloser struct{ io.Reader }

func (readNopCloser) Close() error { return nil }

func TestWriteAllViaFramerNoneFramer(t *testing.T) {
	var out bytes.Buffer
	f, err := filter.New(filter.None, "")
	require.NoError(t, err)

	h := NewByteHandle("test", nil, nopCloser{&out}, framer.New(framer.None), f, nil)

	consumed, frames, err := h.WriteAllViaFramer([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, consumed)
	assert.Equal(t, 1, frames)
	assert.Equal(t, "hello", out.String())
}

func TestReadEOFReturnsZero(t *testing.T) {
	f, err := filter.New(filter.None, "")
	require.NoError(t, err)

	h := NewByteHandle("test", readNopCloser{bytes.NewReader(nil)}, nil, framer.New(framer.None), f, nil)

	n, err := h.Read(make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteOneViaFramerNeedsMoreInput(t *testing.T) {
	var out bytes.Buffer
	f, err := filter.New(filter.None, "")
	require.NoError(t, err)

	h := NewByteHandle("test", nil, nopCloser{&out}, framer.New(framer.SBP), f, nil)

	consumed, frames, err := h.WriteOneViaFramer([]byte{0x55, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 0, frames)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, 0, out.Len())
}
