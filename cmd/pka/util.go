package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/northvolt/go-pka/pka"
	"github.com/northvolt/go-pka/pka/pkasim"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"
)

// newPKA opens the backend selected by c and brings the device up. The sim
// is only returned for the sim backend. Closing the returned io.Closer halts
// the device, then releases the backend.
func newPKA(ctx context.Context, c *rootConfig) (*pka.Dev, *pkasim.Sim, io.Closer, error) {
	cfg, err := c.pkaConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, flush, err := newLogger(c.verbose || c.trace)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg.Debug = logger

	var (
		hal    pka.HAL
		sim    *pkasim.Sim
		closer io.Closer = flush
	)
	switch c.backend {
	case "sim":
		sim = pkasim.New()
		hal = sim
	case "mem":
		var mem io.Closer
		hal, mem, err = pka.NewMemHAL(cfg.DeviceType)
		if err != nil {
			flush.Close()
			return nil, nil, nil, err
		}
		closer = multiCloser{mem, flush}
	default:
		flush.Close()
		return nil, nil, nil, errors.New("pka: unknown backend")
	}

	d, err := pka.New(ctx, hal, cfg)
	if d != nil {
		// halt before the registers are unmapped
		closer = multiCloser{haltCloser{d}, closer}
	}
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}
	return d, sim, closer, nil
}

// haltCloser leaves the accelerator disabled when the command ends.
type haltCloser struct {
	r conn.Resource
}

func (h haltCloser) Close() error {
	return h.r.Halt()
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// syncCloser flushes the zap logger backing the driver diagnostics.
type syncCloser struct {
	l *zap.Logger
}

func (s syncCloser) Close() error {
	if s.l == nil {
		return nil
	}
	// Sync fails on terminals, there is nothing left to flush then.
	_ = s.l.Sync()
	return nil
}

func newLogger(verbose bool) (pka.Logger, syncCloser, error) {
	if !verbose {
		return nil, syncCloser{}, nil
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.DisableStacktrace = true
	zl, err := zcfg.Build()
	if err != nil {
		return nil, syncCloser{}, fmt.Errorf("pka: failed to create logger: %w", err)
	}
	return zap.NewStdLog(zl.Named("pka")), syncCloser{zl}, nil
}

// parseOperand parses a decimal or 0x prefixed hexadecimal operand.
func parseOperand(s string) (*big.Int, error) {
	base := 10
	digits := s
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "0x") {
		base, digits = 16, s[2:]
	}
	x, ok := new(big.Int).SetString(digits, base)
	if !ok || strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		return nil, fmt.Errorf("invalid operand %q", s)
	}
	return x, nil
}

func prettyWords(x *big.Int) string {
	return prettyWordsIndent(x, "    ", "")
}

// prettyWordsIndent formats x as big endian 32-bit words, eight per line.
func prettyWordsIndent(x *big.Int, prefix string, space string) string {
	n := (x.BitLen() + 31) / 32
	if n == 0 {
		n = 1
	}
	b := x.FillBytes(make([]byte, 4*n))

	var buf strings.Builder
	cols := 8
	buf.Grow((n/cols+1)*(len(prefix)+len(space)+1) + n*9)

	for i := 0; i < n; i++ {
		if i > 0 {
			switch i % cols {
			case 0:
				buf.WriteByte('\n')
			case cols / 2:
				buf.WriteByte(' ')
				buf.WriteString(space)
			default:
				buf.WriteByte(' ')
			}
		}
		if i%cols == 0 {
			buf.WriteString(prefix)
		}
		fmt.Fprintf(&buf, "%08X", binary.BigEndian.Uint32(b[4*i:]))
	}

	return buf.String()
}

func addLongHelp(cmd *ffcli.Command) *ffcli.Command {
	if cmd.LongHelp == "" {
		cmd.LongHelp = cmd.ShortHelp
	}

	cmd.LongHelp += pkaLongHelp

	return cmd
}
