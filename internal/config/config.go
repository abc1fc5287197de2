// Package config parses and validates the adapter's command-line surface
// (spec.md §6.1) into an immutable Config record, passed by value to the
// supervisor and every bridge rather than read from process-wide mutable
// state (SPEC_FULL.md §5.4).
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/swiftnav/zmqadapter/internal/filter"
	"github.com/swiftnav/zmqadapter/internal/framer"
)

const (
	defaultRepTimeout   = 10000 * time.Millisecond
	defaultStartupDelay = 0 * time.Millisecond
)

// IOMode selects the byte-endpoint bootstrap.
type IOMode int

const (
	IOInvalid IOMode = iota
	IOStdio
	IOFile
	IOTCPListen
)

// BusMode selects which bus direction(s) are active.
type BusMode int

const (
	BusInvalid BusMode = iota
	BusPubSub
	BusReq
	BusRep
)

// Config is the fully parsed and validated adapter configuration.
type Config struct {
	IOMode     IOMode
	FilePath   string
	TCPPort    int

	BusMode BusMode
	PubAddr string
	SubAddr string
	ReqAddr string
	RepAddr string

	Framer framer.Kind

	FilterIn        filter.Kind
	FilterOut       filter.Kind
	FilterInConfig  string
	FilterOutConfig string

	RepTimeout   time.Duration
	StartupDelay time.Duration

	Debug bool
}

// Parse builds a Config from argv, matching the flag surface in spec.md
// §6.1 (-p/--pub, -s/--sub, -r/--req, -y/--rep, -f/--framer, ...). A
// urfave/cli App is used so each flag carries its long name and, for the
// five flags above, its short alias, as getopt_long does in the original.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		RepTimeout:   defaultRepTimeout,
		StartupDelay: defaultStartupDelay,
	}

	var (
		pub, sub, req, rep                        string
		framerName, filterInName, filterOutName   string
		filePath, filterInConfig, filterOutConfig string
		tcpPort                                   int
		stdio                                      bool
		repTimeoutMs, startupDelayMs               int64
		debug                                      bool
	)

	app := &cli.App{
		Name:  "zmq_adapter",
		Usage: "bridge a messaging bus to a byte stream",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pub", Aliases: []string{"p"}, Destination: &pub},
			&cli.StringFlag{Name: "sub", Aliases: []string{"s"}, Destination: &sub},
			&cli.StringFlag{Name: "req", Aliases: []string{"r"}, Destination: &req},
			&cli.StringFlag{Name: "rep", Aliases: []string{"y"}, Destination: &rep},
			&cli.StringFlag{Name: "framer", Aliases: []string{"f"}, Destination: &framerName},
			&cli.StringFlag{Name: "filter-in", Destination: &filterInName},
			&cli.StringFlag{Name: "filter-out", Destination: &filterOutName},
			&cli.StringFlag{Name: "filter-in-config", Destination: &filterInConfig},
			&cli.StringFlag{Name: "filter-out-config", Destination: &filterOutConfig},
			&cli.BoolFlag{Name: "stdio", Destination: &stdio},
			&cli.StringFlag{Name: "file", Destination: &filePath},
			&cli.IntFlag{Name: "tcp-l", Destination: &tcpPort, Value: -1},
			&cli.Int64Flag{Name: "rep-timeout", Destination: &repTimeoutMs, Value: int64(defaultRepTimeout / time.Millisecond)},
			&cli.Int64Flag{Name: "startup-delay", Destination: &startupDelayMs, Value: int64(defaultStartupDelay / time.Millisecond)},
			&cli.BoolFlag{Name: "debug", Destination: &debug},
		},
		Action: func(*cli.Context) error { return nil },
	}

	if err := app.Run(args); err != nil {
		return nil, errors.Wrap(err, "invalid arguments")
	}

	cfg.RepTimeout = time.Duration(repTimeoutMs) * time.Millisecond
	cfg.StartupDelay = time.Duration(startupDelayMs) * time.Millisecond
	cfg.Debug = debug
	cfg.FilePath = filePath
	cfg.TCPPort = tcpPort

	ioModes := 0
	for _, selected := range []bool{stdio, filePath != "", tcpPort >= 0} {
		if selected {
			ioModes++
		}
	}

	switch {
	case ioModes > 1:
		cfg.IOMode = IOInvalid
	case stdio:
		cfg.IOMode = IOStdio
	case filePath != "":
		cfg.IOMode = IOFile
	case tcpPort >= 0:
		cfg.IOMode = IOTCPListen
	default:
		cfg.IOMode = IOInvalid
	}

	if pub != "" {
		cfg.BusMode = BusPubSub
		cfg.PubAddr = pub
	}
	if sub != "" {
		cfg.BusMode = BusPubSub
		cfg.SubAddr = sub
	}
	if req != "" {
		cfg.BusMode = BusReq
		cfg.ReqAddr = req
	}
	if rep != "" {
		cfg.BusMode = BusRep
		cfg.RepAddr = rep
	}

	var err error
	cfg.Framer, err = parseFramerName(framerName)
	if err != nil {
		return nil, err
	}
	cfg.FilterIn, err = parseFilterName(filterInName)
	if err != nil {
		return nil, errors.Wrap(err, "invalid input filter")
	}
	cfg.FilterOut, err = parseFilterName(filterOutName)
	if err != nil {
		return nil, errors.Wrap(err, "invalid output filter")
	}
	cfg.FilterInConfig = filterInConfig
	cfg.FilterOutConfig = filterOutConfig

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFramerName(name string) (framer.Kind, error) {
	switch name {
	case "", "none":
		return framer.None, nil
	case "sbp", "SBP":
		return framer.SBP, nil
	case "rtcm3", "RTCM3":
		return framer.RTCM3, nil
	default:
		return "", errors.Errorf("invalid framer %q", name)
	}
}

func parseFilterName(name string) (filter.Kind, error) {
	switch name {
	case "":
		return filter.None, nil
	case "sbp", "SBP":
		return filter.SBP, nil
	default:
		return "", errors.Errorf("invalid filter %q", name)
	}
}

// validate enforces the flag-combination rules in spec.md §6.1/§4.3:
// exactly one byte-endpoint mode, exactly one bus mode, and filter/config
// pairing.
func (c *Config) validate() error {
	if c.IOMode == IOInvalid {
		return errors.New("invalid mode: select one of --stdio, --file, --tcp-l")
	}
	if c.BusMode == BusInvalid {
		return errors.New("ZMQ address(es) not specified")
	}
	if (c.ReqAddr != "") && (c.PubAddr != "" || c.SubAddr != "" || c.RepAddr != "") {
		return errors.New("--req may not be combined with other bus modes")
	}
	if (c.RepAddr != "") && (c.PubAddr != "" || c.SubAddr != "" || c.ReqAddr != "") {
		return errors.New("--rep may not be combined with other bus modes")
	}
	if (c.FilterIn == filter.None) != (c.FilterInConfig == "") {
		return errors.New("invalid input filter settings")
	}
	if (c.FilterOut == filter.None) != (c.FilterOutConfig == "") {
		return errors.New("invalid output filter settings")
	}
	return nil
}

