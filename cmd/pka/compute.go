package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"

	"github.com/northvolt/go-pka/pka"
	"github.com/northvolt/go-pka/pka/pkareg"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type computeConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	mode       string
	bits       int
	a          string
	b          string
	n          string
	fault      string
	words      bool
}

func (c *computeConfig) Exec(ctx context.Context, _ []string) error {
	if c.rootConfig.verbose {
		fmt.Fprintln(c.err, "compute")
	}

	op, err := c.operation()
	if err != nil {
		return err
	}
	fault, err := parseFault(c.fault)
	if err != nil {
		return err
	}

	ctx, cancel := c.rootConfig.withTimeout(ctx)
	defer cancel()

	d, sim, closer, err := newPKA(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer closer.Close()

	if fault != 0 {
		if sim == nil {
			return errors.New("compute: fault injection needs the sim backend")
		}
		sim.InjectFault(fault)
	}

	res, err := d.Compute(ctx, op)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s = %s\n", op, res)
	if c.words {
		fmt.Fprintln(c.out, prettyWords(res))
	}
	return nil
}

// operation builds the operation from the flags.
func (c *computeConfig) operation() (pka.Operation, error) {
	mode, err := pka.ParseMode(c.mode)
	if err != nil {
		return pka.Operation{}, err
	}
	op := pka.Operation{Mode: mode, Bits: c.bits}

	operands := []struct {
		name string
		s    string
		dst  **big.Int
	}{
		{"a", c.a, &op.A},
		{"b", c.b, &op.B},
		{"n", c.n, &op.Modulus},
	}
	for _, o := range operands {
		if o.s == "" {
			continue
		}
		x, err := parseOperand(o.s)
		if err != nil {
			return op, fmt.Errorf("compute: -%s: %w", o.name, err)
		}
		*o.dst = x
	}
	return op, nil
}

// parseFault maps the -fault flag to the PKA_SR flags raised by the
// simulator.
func parseFault(s string) (uint32, error) {
	switch s {
	case "":
		return 0, nil
	case "ram":
		return pkareg.PKASRRAMERRF, nil
	case "addr":
		return pkareg.PKASRADDRERRF, nil
	case "op":
		return pkareg.PKASROPERRF, nil
	default:
		return 0, fmt.Errorf("compute: unknown fault %q", s)
	}
}

func newComputeCmd(
	rootConfig *rootConfig, out io.Writer, err io.Writer,
) *ffcli.Command {
	cfg := computeConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("pka compute", flag.ExitOnError)
	fs.StringVar(&cfg.mode, "mode", pka.ModeModularAdd.String(), "operation: modadd, modsub, add, sub or mul")
	fs.IntVar(&cfg.bits, "bits", 64, "operand length in bits")
	fs.StringVar(&cfg.a, "a", "11", "operand A, decimal or 0x prefixed hex")
	fs.StringVar(&cfg.b, "b", "11", "operand B, decimal or 0x prefixed hex")
	fs.StringVar(&cfg.n, "n", "13", "modulus, decimal or 0x prefixed hex")
	fs.StringVar(&cfg.fault, "fault", "", "sim backend only: make the operation fail with a ram, addr or op error")
	fs.BoolVar(&cfg.words, "words", false, "also print the result as 32-bit words")

	return addLongHelp(&ffcli.Command{
		Name:       "compute",
		ShortUsage: "compute [-mode modadd] [-bits 64] [-a 11] [-b 11] [-n 13]",
		ShortHelp:  "Runs one arithmetic operation on the accelerator.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	})
}
