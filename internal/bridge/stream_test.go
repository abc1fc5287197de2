package bridge

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftnav/zmqadapter/internal/filter"
	"github.com/swiftnav/zmqadapter/internal/framer"
	"github.com/swiftnav/zmqadapter/internal/handle"
)

// safeBuffer guards a bytes.Buffer for use from a goroutine under test
// while the main test goroutine polls its contents.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRunStreamPumpsUntilEOF(t *testing.T) {
	pr, pw := io.Pipe()
	var out safeBuffer

	fl, err := filter.New(filter.None, "")
	require.NoError(t, err)

	src := handle.NewByteHandle("src", pr, nil, framer.New(framer.None), fl, nil)
	dst := handle.NewByteHandle("dst", nil, nopCloser{&out}, framer.New(framer.None), fl, nil)

	done := make(chan error, 1)
	go func() { done <- RunStream(context.Background(), src, dst) }()

	_, err = pw.Write([]byte("hello"))
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return out.String() == "hello" })

	_, err = pw.Write([]byte("world"))
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return out.String() == "helloworld" })

	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunStream did not return after EOF")
	}
}

func TestRunStreamForwardsLastChunkThenStopsOnEOF(t *testing.T) {
	pr, pw := io.Pipe()
	var out safeBuffer

	fl, err := filter.New(filter.None, "")
	require.NoError(t, err)

	src := handle.NewByteHandle("src", pr, nil, framer.New(framer.None), fl, nil)
	dst := handle.NewByteHandle("dst", nil, nopCloser{&out}, framer.New(framer.None), fl, nil)

	done := make(chan error, 1)
	go func() { done <- RunStream(context.Background(), src, dst) }()

	_, err = pw.Write([]byte("partial"))
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return out.String() == "partial" })
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunStream did not return after EOF")
	}
}
