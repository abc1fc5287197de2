// Package supervisor wires a validated Config into running bridge
// directions: it bootstraps the byte endpoint, builds one Handle per
// active traffic direction, and fans out the bridge loops described in
// spec.md §4.1, under signal-driven shutdown.
package supervisor

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/swiftnav/zmqadapter/internal/bridge"
	"github.com/swiftnav/zmqadapter/internal/bus"
	"github.com/swiftnav/zmqadapter/internal/config"
	"github.com/swiftnav/zmqadapter/internal/endpoint"
	"github.com/swiftnav/zmqadapter/internal/filter"
	"github.com/swiftnav/zmqadapter/internal/framer"
	"github.com/swiftnav/zmqadapter/internal/handle"
	"github.com/swiftnav/zmqadapter/internal/trace"
)

// Supervisor parses configuration, installs signal handling and runs one
// bridge per active direction to completion (spec.md §4.1). Unlike the
// original's fork-per-direction process tree (SPEC_FULL.md §9), each
// direction here is a goroutine; a registry of closers stands in for
// the shared process group, so a single shutdown signal unblocks every
// in-flight blocking read by closing its underlying socket or
// descriptor.
type Supervisor struct {
	cfg *config.Config
	sl  *trace.Syslog

	mu      sync.Mutex
	closers []io.Closer
}

// New builds a Supervisor for cfg.
func New(cfg *config.Config, sl *trace.Syslog) *Supervisor {
	return &Supervisor{cfg: cfg, sl: sl}
}

func (s *Supervisor) track(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

func (s *Supervisor) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.closers {
		_ = c.Close()
	}
	s.closers = nil
}

// Run installs signal handlers, bootstraps the byte endpoint selected by
// the configuration, and runs every configured bridge direction until
// the byte endpoint is exhausted or a termination signal arrives. It
// returns the process exit code (spec.md §6.1: 0 on clean shutdown, 1 on
// a startup-fatal condition).
func (s *Supervisor) Run(ctx context.Context) int {
	// SIGPIPE is ignored so that a write to a closed descriptor,
	// standard output included, surfaces as an error rather than
	// terminating the process.
	signal.Ignore(syscall.SIGPIPE)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
			s.closeAll()
		case <-ctx.Done():
		}
	}()

	if err := s.bootstrap(ctx); err != nil {
		s.sl.Errf("fatal: %v", err)
		return 1
	}
	return 0
}

// bootstrap dispatches on the configured I/O mode. For stdio and file
// endpoints there is exactly one byte-descriptor pair for the life of
// the process; for a TCP listener, connections are accepted and served
// one at a time for as long as the supervisor is not shutting down
// (SPEC_FULL.md §6.1).
func (s *Supervisor) bootstrap(ctx context.Context) error {
	switch s.cfg.IOMode {
	case config.IOStdio:
		return s.serve(ctx, endpoint.Stdio())

	case config.IOFile:
		pair, err := endpoint.File(s.cfg.FilePath)
		if err != nil {
			return err
		}
		return s.serve(ctx, pair)

	case config.IOTCPListen:
		ln, err := endpoint.Listen(s.cfg.TCPPort)
		if err != nil {
			return err
		}
		s.track(ln)
		for {
			pair, err := ln.Accept()
			if err != nil {
				// A failed or interrupted accept is not a startup-fatal
				// condition (spec.md §6.1's exit-code note): it is logged
				// unless the supervisor is shutting down, and in either
				// case the accept loop ends with a clean exit.
				if ctx.Err() == nil {
					s.sl.Warnf("accept: %v", err)
				}
				return nil
			}
			if err := s.serve(ctx, pair); err != nil {
				s.sl.Warnf("connection rejected: %v", err)
			}
			if ctx.Err() != nil {
				return nil
			}
		}

	default:
		return errors.New("no byte-endpoint mode selected")
	}
}

// serve builds the framer/filter/trace-equipped Handles for pair and
// runs every direction spec.md §4.1 says the configured bus mode
// requires, waiting for all of them to finish before returning.
func (s *Supervisor) serve(ctx context.Context, pair endpoint.Pair) error {
	connID := uuid.New().String()

	tr := trace.NoOpHooks
	if s.cfg.Debug {
		tr = trace.DebugHooks
	}
	ctx = trace.WithTrace(ctx, tr)

	if pair.Read != nil {
		s.track(pair.Read)
	}
	if pair.Write != nil {
		s.track(pair.Write)
	}

	inFilter, err := filter.New(s.cfg.FilterIn, s.cfg.FilterInConfig)
	if err != nil {
		return errors.Wrap(err, "construct ingress filter")
	}
	outFilter, err := filter.New(s.cfg.FilterOut, s.cfg.FilterOutConfig)
	if err != nil {
		return errors.Wrap(err, "construct egress filter")
	}

	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	record := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	switch s.cfg.BusMode {
	case config.BusPubSub:
		if s.cfg.PubAddr != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				record(s.runPubChild(ctx, connID, pair, inFilter))
			}()
		}
		if s.cfg.SubAddr != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				record(s.runSubChild(ctx, connID, pair, outFilter))
			}()
		}

	case config.BusReq:
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(s.runReqChild(ctx, connID, pair, inFilter, outFilter))
		}()

	case config.BusRep:
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(s.runRepChild(ctx, connID, pair, inFilter, outFilter))
		}()

	default:
		return errors.New("no bus mode selected")
	}

	wg.Wait()
	if firstErr != nil {
		// A direction failing mid-traffic (a fatal read/write, a bus
		// socket that could not attach) is a child-level condition:
		// logged and reaped, not propagated as a process exit code
		// (spec.md §6.1's exit-code note, §4.1's failure semantics).
		s.sl.Warnf("direction ended: %v", firstErr)
	}
	return nil
}

// runPubChild bridges the byte endpoint into the PUB socket. Raw bytes
// from the byte endpoint are the ingress direction: the PUB handle
// carries the configured framer (reconstructing frames from the raw
// stream) and the ingress filter, per spec.md §6.1's "-f/--framer:
// framer on the ingress direction".
func (s *Supervisor) runPubChild(ctx context.Context, connID string, pair endpoint.Pair, inFilter filter.Filter) error {
	sock, err := bus.Start(ctx, bus.PUB, s.cfg.PubAddr, s.cfg.StartupDelay)
	if err != nil {
		return errors.Wrap(err, "open pub socket")
	}
	s.track(sock)
	trace.FromContext(ctx).SocketOpened(string(bus.PUB), s.cfg.PubAddr)

	direction := "pub:" + connID
	src := handle.NewByteHandle(direction, pair.Read, nil, framer.New(framer.None), inFilter, nil)
	dst := handle.NewBusHandle(direction, sock, framer.New(s.cfg.Framer, func() { trace.FromContext(ctx).FrameDesync(direction) }), inFilter, trace.FromContext(ctx))

	return bridge.RunStream(ctx, src, dst)
}

// runSubChild bridges the SUB socket into the byte endpoint. A bus
// message is already one complete unit, so the byte-endpoint (egress)
// handle writes it out with the identity framer, gated by the egress
// filter.
func (s *Supervisor) runSubChild(ctx context.Context, connID string, pair endpoint.Pair, outFilter filter.Filter) error {
	sock, err := bus.Start(ctx, bus.SUB, s.cfg.SubAddr, s.cfg.StartupDelay)
	if err != nil {
		return errors.Wrap(err, "open sub socket")
	}
	s.track(sock)
	trace.FromContext(ctx).SocketOpened(string(bus.SUB), s.cfg.SubAddr)

	src := handle.NewBusHandle("sub:"+connID, sock, framer.New(framer.None), outFilter, nil)
	dst := handle.NewByteHandle("sub:"+connID, nil, pair.Write, framer.New(framer.None), outFilter, trace.FromContext(ctx))

	return bridge.RunStream(ctx, src, dst)
}

// runReqChild runs the correlated bridge with the bus socket as
// requester and the byte endpoint as responder (spec.md §4.1). The
// requester (bus) is the destination whenever raw bytes arrive from the
// responder (byte endpoint) and must be reconstructed into a frame
// before being sent as a request, so it carries the configured framer
// and the ingress filter; the responder (byte endpoint) only ever
// writes out already-framed replies, so it uses the identity framer and
// the egress filter.
func (s *Supervisor) runReqChild(ctx context.Context, connID string, pair endpoint.Pair, inFilter, outFilter filter.Filter) error {
	sock, err := bus.Start(ctx, bus.REQ, s.cfg.ReqAddr, s.cfg.StartupDelay)
	if err != nil {
		return errors.Wrap(err, "open req socket")
	}
	s.track(sock)
	trace.FromContext(ctx).SocketOpened(string(bus.REQ), s.cfg.ReqAddr)

	direction := "req:" + connID
	requester := handle.NewBusHandle(direction, sock, framer.New(s.cfg.Framer, func() { trace.FromContext(ctx).FrameDesync(direction) }), inFilter, trace.FromContext(ctx))
	responder := handle.NewByteHandle(direction, pair.Read, pair.Write, framer.New(framer.None), outFilter, trace.FromContext(ctx))

	return bridge.RunReqRep(ctx, requester, responder, s.cfg.RepTimeout, s.cfg.StartupDelay, s.sl)
}

// runRepChild runs the correlated bridge with the byte endpoint as
// requester and the bus socket as responder (spec.md §4.1). The
// responder (bus) is the destination whenever raw bytes arrive from the
// requester (byte endpoint) and must be framed into a request, so it
// carries the configured framer and the ingress filter; the requester
// (byte endpoint) only ever writes out already-framed requests it
// forwards onward as replies, so it uses the identity framer and the
// egress filter.
func (s *Supervisor) runRepChild(ctx context.Context, connID string, pair endpoint.Pair, inFilter, outFilter filter.Filter) error {
	sock, err := bus.Start(ctx, bus.REP, s.cfg.RepAddr, s.cfg.StartupDelay)
	if err != nil {
		return errors.Wrap(err, "open rep socket")
	}
	s.track(sock)
	trace.FromContext(ctx).SocketOpened(string(bus.REP), s.cfg.RepAddr)

	direction := "rep:" + connID
	requester := handle.NewByteHandle(direction, pair.Read, pair.Write, framer.New(framer.None), outFilter, trace.FromContext(ctx))
	responder := handle.NewBusHandle(direction, sock, framer.New(s.cfg.Framer, func() { trace.FromContext(ctx).FrameDesync(direction) }), inFilter, trace.FromContext(ctx))

	return bridge.RunReqRep(ctx, requester, responder, s.cfg.RepTimeout, s.cfg.StartupDelay, s.sl)
}
