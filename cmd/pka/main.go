/*
pka drives the public key accelerator of an STM32WBA55.

It brings up the oscillator, the RNG and the PKA, and then runs arithmetic
on the accelerator or reads the RNG. The sim backend runs against a
simulated device so the tool works on any host.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/northvolt/go-pka/pka"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// newCommands returns the root command with its subcommands. Root flags such
// as -backend are only accepted before the subcommand name:
//
//	pka -backend mem -max-polls 0 compute -a 0x0b -b 0x0b -n 0x0d
func newCommands(out, err io.Writer) (*ffcli.Command, *rootConfig) {
	rootCmd, cfg := newRootCmd()
	rootCmd.Subcommands = []*ffcli.Command{
		newComputeCmd(cfg, out, err),
		newInfoCmd(cfg, out, err),
		newRandCmd(cfg, out, err),
	}
	return rootCmd, cfg
}

func main() {
	rootCmd, cfg := newCommands(os.Stdout, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		var num = 0
		for range c {
			num += 1
			if num >= 3 {
				os.Exit(1)
			} else {
				cancel()
			}
		}
	}()

	if err := rootCmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rootCmd.Name, exitMessage(err))
			os.Exit(1)
		} else if cfg.verbose {
			fmt.Fprintf(os.Stderr, "%s: cancelled\n", rootCmd.Name)
		}
	}
}

// exitMessage formats err for the terminal. The device is already halted
// by the command that failed.
func exitMessage(err error) string {
	libPrefix := "pka: "
	msg := strings.TrimPrefix(err.Error(), libPrefix)
	if errors.Is(err, pka.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
		msg += " (try a larger -max-polls or -poll-interval)"
	}
	return msg
}
