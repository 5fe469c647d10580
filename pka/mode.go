package pka

import (
	"strings"

	"github.com/northvolt/go-pka/pka/pkareg"
)

// Mode is an arithmetic operation of the accelerator.
type Mode uint32

// Supported PKA modes.
const (
	ModeModularAdd    = Mode(pkareg.ModeModularAdd)    // (A + B) mod N
	ModeModularSub    = Mode(pkareg.ModeModularSub)    // (A - B) mod N
	ModeArithmeticAdd = Mode(pkareg.ModeArithmeticAdd) // A + B
	ModeArithmeticSub = Mode(pkareg.ModeArithmeticSub) // A - B, A >= B
	ModeArithmeticMul = Mode(pkareg.ModeArithmeticMul) // A * B
)

var modeNames = map[Mode]string{
	ModeModularAdd:    "modadd",
	ModeModularSub:    "modsub",
	ModeArithmeticAdd: "add",
	ModeArithmeticSub: "sub",
	ModeArithmeticMul: "mul",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMode returns the mode named s, as printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, errUnknownMode
}

// modeLayout describes which operands a mode uses and its result width.
type modeLayout struct {
	modular bool
	symbol  string
	// resultWords returns the number of result words for n-word operands.
	resultWords func(n int) int
}

var modeLayouts = map[Mode]modeLayout{
	ModeModularAdd:    {true, "+", func(n int) int { return n }},
	ModeModularSub:    {true, "-", func(n int) int { return n }},
	ModeArithmeticAdd: {false, "+", func(n int) int { return n + 1 }},
	ModeArithmeticSub: {false, "-", func(n int) int { return n }},
	ModeArithmeticMul: {false, "*", func(n int) int { return 2 * n }},
}

func getModeLayout(m Mode) (modeLayout, error) {
	l, ok := modeLayouts[m]
	if !ok {
		return modeLayout{}, errUnknownMode
	}
	return l, nil
}
