package pka

import (
	"fmt"
	"strings"
)

// Logger is the interface used for diagnostic messages.
//
// The driver reports bring-up milestones and computed results through it.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nullLoggerImpl struct{}

func (nullLoggerImpl) Printf(format string, args ...interface{}) {}

// nullLogger is a logger that does nothing.
var nullLogger = nullLoggerImpl{}

// getLogger always returns a logger.
func getLogger(cfg Config) Logger {
	if cfg.Debug == nil {
		return nullLogger
	} else {
		return cfg.Debug
	}
}

// wordDump lazily formats words as hex, four per line.
//
// wordDump implements fmt.Stringer so the formatting only happens when a
// logger actually prints the value.
type wordDump []uint32

func (w wordDump) String() string {
	var buf strings.Builder
	for i, v := range w {
		switch {
		case i == 0:
		case i%4 == 0:
			buf.WriteByte('\n')
		default:
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%08x", v)
	}
	return buf.String()
}
