// Command zmq_adapter bridges a ZeroMQ PUB/SUB/REQ/REP bus endpoint to a
// byte-oriented endpoint (standard streams, a file, or a TCP listener),
// per spec.md. See SPEC_FULL.md for the full requirements this
// implementation covers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/swiftnav/zmqadapter/internal/config"
	"github.com/swiftnav/zmqadapter/internal/supervisor"
	"github.com/swiftnav/zmqadapter/internal/trace"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zmq_adapter:", err)
		return 1
	}

	sl := trace.NewSyslog()
	sup := supervisor.New(cfg, sl)
	return sup.Run(context.Background())
}
