package pka

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/northvolt/go-pka/pka/pkareg"
	"golang.org/x/crypto/cryptobyte"
)

// MaxOperandBits is the widest operand supported by the accelerator.
const MaxOperandBits = pkareg.MaxOperandBits

const wordSize = 4

// Operation is a single accelerator operation.
type Operation struct {
	Mode Mode
	// Bits is the operand length in bits.
	Bits int
	A    *big.Int
	B    *big.Int
	// Modulus is only used by the modular modes.
	Modulus *big.Int
}

// ModAdd returns the operation computing (a + b) mod n on bits wide
// operands.
func ModAdd(bits int, a, b, n *big.Int) Operation {
	return Operation{
		Mode:    ModeModularAdd,
		Bits:    bits,
		A:       a,
		B:       b,
		Modulus: n,
	}
}

func (op Operation) String() string {
	l, err := getModeLayout(op.Mode)
	if err != nil {
		return "unknown operation"
	}
	s := fmt.Sprintf("%v %s %v", op.A, l.symbol, op.B)
	if l.modular {
		s += fmt.Sprintf(" (mod %v)", op.Modulus)
	}
	return s
}

// words returns the number of words of each operand.
func (op Operation) words() int {
	return (op.Bits + 31) / 32
}

// validate checks that the operation can be staged.
func (op Operation) validate() error {
	l, err := getModeLayout(op.Mode)
	if err != nil {
		return err
	}
	if op.Bits <= 0 || op.Bits > MaxOperandBits {
		return fmt.Errorf("%w: %d", errInvalidBits, op.Bits)
	}
	for _, x := range []*big.Int{op.A, op.B} {
		if x == nil || x.Sign() < 0 || x.BitLen() > op.Bits {
			return errInvalidOperand
		}
	}

	if l.modular {
		n := op.Modulus
		if n == nil || n.Sign() <= 0 || n.BitLen() > op.Bits {
			return errInvalidModulus
		}
		if op.A.Cmp(n) >= 0 || op.B.Cmp(n) >= 0 {
			return fmt.Errorf("%w: must be smaller than modulus", errInvalidOperand)
		}
	} else if op.Mode == ModeArithmeticSub && op.A.Cmp(op.B) < 0 {
		return fmt.Errorf("%w: subtrahend larger than minuend", errInvalidOperand)
	}
	return nil
}

// encodeOperand splits x into n words, most significant first.
func encodeOperand(x *big.Int, n int) ([]uint32, error) {
	if x.Sign() < 0 || x.BitLen() > n*32 {
		return nil, errInvalidOperand
	}
	buf := make([]byte, n*wordSize)
	x.FillBytes(buf)

	words := make([]uint32, n)
	s := cryptobyte.String(buf)
	for i := range words {
		if !s.ReadUint32(&words[i]) {
			return nil, errors.New("pka: short operand")
		}
	}
	return words, nil
}

// decodeResult joins words, most significant first, into an integer.
func decodeResult(words []uint32) (*big.Int, error) {
	var b cryptobyte.Builder
	for _, w := range words {
		b.AddUint32(w)
	}
	buf, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}
