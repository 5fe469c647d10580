package pka

import (
	"fmt"

	"github.com/northvolt/go-pka/pka/pkareg"
)

// ram is the only path to the PKA RAM window.
//
// Values are passed most significant word first and stored in reverse: the
// last word goes to offset, the first to the highest address. Reads apply
// the same order so a round trip returns the original words.
type ram struct {
	hal  HAL
	base uint32
}

// checkRAMRange validates that n words at offset lie inside the PKA RAM.
func checkRAMRange(offset uint32, n int) error {
	if offset%wordSize != 0 {
		return fmt.Errorf("%w: %#x", ErrUnaligned, offset)
	}
	end := uint64(offset) + uint64(n)*wordSize
	if offset < pkareg.RAMStart || end >= pkareg.RAMLimit {
		return fmt.Errorf("%w: [%#x, %#x)", ErrOutOfBounds, offset, end)
	}
	return nil
}

func (r *ram) write(offset uint32, words []uint32) error {
	if err := checkRAMRange(offset, len(words)); err != nil {
		return err
	}
	for i := range words {
		r.hal.Write32(r.base+offset+uint32(i*wordSize), words[len(words)-1-i])
	}
	return nil
}

func (r *ram) read(offset uint32, words []uint32) error {
	if err := checkRAMRange(offset, len(words)); err != nil {
		return err
	}
	for i := range words {
		words[len(words)-1-i] = r.hal.Read32(r.base + offset + uint32(i*wordSize))
	}
	return nil
}
