package pka

import (
	"errors"

	"github.com/northvolt/go-pka/pka/pkareg"
)

var (
	// ErrTimeout is returned when a status bit did not assert within the
	// configured number of polls.
	ErrTimeout = errors.New("pka: timeout waiting for hardware")

	// ErrNotReady is returned when an operation is requested before the
	// peripherals were brought up.
	ErrNotReady = errors.New("pka: device not ready")
)

// Scratch memory errors.
var (
	ErrUnaligned   = errors.New("pka: ram offset not word aligned")
	ErrOutOfBounds = errors.New("pka: ram access out of bounds")
)

// Operation faults reported by PKA_SR after completion.
var (
	// ErrAddressFault is set when the PKA RAM was accessed at an address
	// outside its range during the operation.
	ErrAddressFault = errors.New("pka: address error")

	// ErrRAMFault is set when the PKA RAM was accessed by the CPU while an
	// operation was in progress.
	ErrRAMFault = errors.New("pka: ram error")

	// ErrOperationFault is set for an unsupported mode or invalid operand
	// length.
	ErrOperationFault = errors.New("pka: operation error")
)

// RNG errors reported by RNG_SR.
var (
	ErrSeedError  = errors.New("pka: rng seed error")
	ErrClockError = errors.New("pka: rng clock error")
)

// Operand validation errors.
var (
	errInvalidBits    = errors.New("pka: invalid operand length")
	errInvalidOperand = errors.New("pka: invalid operand")
	errInvalidModulus = errors.New("pka: invalid modulus")
	errUnknownMode    = errors.New("pka: unknown mode")
)

// validatePKAStatus maps the fault flags of PKA_SR to an error.
//
// Flags are checked in order of severity; the first one set wins.
func validatePKAStatus(sr uint32) error {
	switch {
	case sr&pkareg.PKASRADDRERRF != 0:
		return ErrAddressFault
	case sr&pkareg.PKASRRAMERRF != 0:
		return ErrRAMFault
	case sr&pkareg.PKASROPERRF != 0:
		return ErrOperationFault
	default:
		return nil
	}
}

// validateRNGStatus maps the error flags of RNG_SR to an error.
func validateRNGStatus(sr uint32) error {
	switch {
	case sr&pkareg.RNGSRSECS != 0:
		return ErrSeedError
	case sr&pkareg.RNGSRCECS != 0:
		return ErrClockError
	default:
		return nil
	}
}
