package bus

import (
	"context"
	"time"
)

const (
	restartRetryCount = 3
	restartRetryDelay = time.Millisecond
)

// Restart destroys sock and attempts to recreate it at the same address
// and kind, per spec.md §4.6. Up to restartRetryCount attempts are made,
// restartRetryDelay apart; the last error is returned if none succeed.
func Restart(ctx context.Context, sock *Socket, startupDelay time.Duration) (*Socket, error) {
	kind, addr := sock.kind, sock.addr
	_ = sock.Close()

	var (
		next *Socket
		err  error
	)
	for attempt := 0; attempt < restartRetryCount; attempt++ {
		time.Sleep(restartRetryDelay)
		next, err = Start(ctx, kind, addr, startupDelay)
		if err == nil {
			return next, nil
		}
	}
	return nil, err
}
