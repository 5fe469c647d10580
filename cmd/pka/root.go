package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/northvolt/go-pka/pka"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// envPrefix is the prefix of the environment variables mirroring the flags,
// eg PKA_BACKEND=mem.
const envPrefix = "PKA"

type rootConfig struct {
	verbose      bool
	trace        bool
	backend      string
	clock        string
	maxPolls     int
	pollInterval time.Duration
	timeout      time.Duration
}

// registerFlags adds the flags shared by all subcommands to the root
// FlagSet. They go before the subcommand name.
func (c *rootConfig) registerFlags(fs *flag.FlagSet) {
	def := pka.DefaultConfig()
	fs.BoolVar(&c.verbose, "v", false, "increase log verbosity")
	fs.BoolVar(&c.trace, "trace", false, "log every register access, implies -v")
	fs.StringVar(&c.backend, "backend", "sim", "register backend, sim or mem")
	fs.StringVar(&c.clock, "clock", def.ClockSource.String(), "oscillator to start, hse or hsi")
	fs.IntVar(&c.maxPolls, "max-polls", def.Poll.MaxPolls, "status reads before a wait times out, 0 polls forever")
	fs.DurationVar(&c.pollInterval, "poll-interval", def.Poll.Interval, "delay between status reads eg 1us, 0 busy spins")
	fs.DurationVar(&c.timeout, "timeout", 0, "maximum time for the command eg 1s, 500ms")
}

func (c *rootConfig) Exec(context.Context, []string) error {
	return flag.ErrHelp
}

// pkaConfig returns the driver configuration selected by the flags.
func (c *rootConfig) pkaConfig() (pka.Config, error) {
	cfg := pka.DefaultConfig()
	switch strings.ToLower(c.clock) {
	case "hse":
		cfg.ClockSource = pka.ClockHSE
	case "hsi":
		cfg.ClockSource = pka.ClockHSI
	default:
		return cfg, fmt.Errorf("pka: unknown clock source %q", c.clock)
	}
	if c.maxPolls < 0 {
		return cfg, fmt.Errorf("pka: negative max polls %d", c.maxPolls)
	}
	cfg.Poll.MaxPolls = c.maxPolls
	cfg.Poll.Interval = c.pollInterval
	cfg.Trace = c.trace
	return cfg, nil
}

// withTimeout bounds ctx by the -timeout flag, when set.
func (c *rootConfig) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func newRootCmd() (*ffcli.Command, *rootConfig) {
	var cfg rootConfig

	fs := flag.NewFlagSet("pka", flag.ExitOnError)
	cfg.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "pka",
		ShortUsage: "pka [flags] <subcommand>",
		ShortHelp:  "Utilities to bring up and exercise the STM32WBA55 PKA.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	}), &cfg
}

func ffOptions() []ff.Option {
	return []ff.Option{ff.WithEnvVarPrefix(envPrefix)}
}

var pkaLongHelp = `

GENERAL
The sim backend runs against a simulated device and works on any host. The
mem backend maps the peripherals through /dev/mem and needs to run on the
device itself with sufficient privileges.

Flags shared by all subcommands go before the subcommand name, eg
"pka -backend mem info". Every flag can also be set from the environment;
a flag given on the command line wins. For example:

  PKA_BACKEND=mem
  PKA_MAX_POLLS=0
  PKA_CLOCK=hsi`
