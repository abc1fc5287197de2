package bridge

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftnav/zmqadapter/internal/filter"
	"github.com/swiftnav/zmqadapter/internal/framer"
	"github.com/swiftnav/zmqadapter/internal/handle"
	"github.com/swiftnav/zmqadapter/internal/trace"
)

func TestRunReqRepAlternatesRequestThenReply(t *testing.T) {
	requesterIn, requesterInW := io.Pipe()
	var requesterOut safeBuffer
	responderIn, responderInW := io.Pipe()
	var responderOut safeBuffer

	fl, err := filter.New(filter.None, "")
	require.NoError(t, err)

	requester := handle.NewByteHandle("requester", requesterIn, nopCloser{&requesterOut}, framer.New(framer.None), fl, nil)
	responder := handle.NewByteHandle("responder", responderIn, nopCloser{&responderOut}, framer.New(framer.None), fl, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunReqRep(ctx, requester, responder, 200*time.Millisecond, 0, &trace.Syslog{})
	}()

	_, err = responderInW.Write([]byte("request1"))
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return requesterOut.String() == "request1" })

	_, err = requesterInW.Write([]byte("reply1"))
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return responderOut.String() == "reply1" })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunReqRep did not return after cancellation")
	}
}

func TestRunReqRepTerminatesOnResponderEOF(t *testing.T) {
	requesterIn, _ := io.Pipe()
	var requesterOut safeBuffer
	responderIn, responderInW := io.Pipe()
	var responderOut safeBuffer

	fl, err := filter.New(filter.None, "")
	require.NoError(t, err)

	requester := handle.NewByteHandle("requester", requesterIn, nopCloser{&requesterOut}, framer.New(framer.None), fl, nil)
	responder := handle.NewByteHandle("responder", responderIn, nopCloser{&responderOut}, framer.New(framer.None), fl, nil)

	done := make(chan error, 1)
	go func() {
		done <- RunReqRep(context.Background(), requester, responder, 200*time.Millisecond, 0, &trace.Syslog{})
	}()

	require.NoError(t, responderInW.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunReqRep did not terminate on responder EOF")
	}
}
