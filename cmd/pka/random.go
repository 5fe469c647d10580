package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3/ffcli"
)

type randConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	bytes      int64
}

func (c *randConfig) Exec(ctx context.Context, _ []string) error {
	if c.rootConfig.verbose {
		fmt.Fprintln(c.err, "random")
	}

	ctx, cancel := c.rootConfig.withTimeout(ctx)
	defer cancel()

	d, _, closer, err := newPKA(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer closer.Close()

	var written int64
	r := d.Random(ctx)
	if c.bytes > 0 {
		written, err = io.CopyN(c.out, r, c.bytes)
	} else {
		written, err = io.Copy(c.out, r)
	}
	if err != nil {
		return err
	}
	if c.rootConfig.verbose {
		fmt.Fprintln(c.err, "wrote", written)
	}

	return nil
}

func newRandCmd(rootConfig *rootConfig, out io.Writer, err io.Writer) *ffcli.Command {
	cfg := randConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("pka random", flag.ExitOnError)
	fs.Int64Var(&cfg.bytes, "bytes", 32, "bytes to read, 0 reads until -timeout or interrupted")

	return &ffcli.Command{
		Name:       "random",
		ShortUsage: "random [-bytes 32]",
		ShortHelp:  "Reads random bytes from the RNG and outputs on stdout.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	}
}
