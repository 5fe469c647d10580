package pka

import (
	"context"
	"fmt"

	"github.com/northvolt/go-pka/pka/pkareg"
)

// rngClockSource is the RNGSEL kernel clock selection used for the RNG.
const rngClockSource = 0x2

// startOscillator enables the configured oscillator and waits until it is
// stable.
func (d *Dev) startOscillator(ctx context.Context) error {
	var on, ready uint32
	switch d.cfg.ClockSource {
	case ClockHSE:
		on, ready = pkareg.RCCCRHSEON, pkareg.RCCCRHSERDY
	case ClockHSI:
		on, ready = pkareg.RCCCRHSION, pkareg.RCCCRHSIRDY
	default:
		return fmt.Errorf("pka: unknown clock source %d", d.cfg.ClockSource)
	}

	d.rcc.cr.SetBits(on)
	if err := d.waitFor(ctx, "oscillator", func() bool {
		return d.rcc.cr.HasBits(ready)
	}); err != nil {
		return err
	}
	d.log.Printf("pka: %s ready", d.cfg.ClockSource)
	return nil
}

// startEntropySource clocks the RNG and runs its conditioning reset.
//
// The PKA takes entropy from the RNG while it initialises, so the RNG must
// deliver data before the PKA is enabled.
func (d *Dev) startEntropySource(ctx context.Context) error {
	d.rcc.ccipr2.ReplaceBits(rngClockSource, pkareg.RCCCCIPR2RNGSELMask, pkareg.RCCCCIPR2RNGSELPos)
	d.rcc.ahb2enr.SetBits(pkareg.RCCAHB2ENRRNGEN)
	if err := d.waitFor(ctx, "rng clock", func() bool {
		return d.rcc.ahb2enr.HasBits(pkareg.RCCAHB2ENRRNGEN)
	}); err != nil {
		return err
	}

	// CONDRST is set in the same access that keeps RNGEN, CONFIGLOCK, NISTC
	// and CED at zero. RNGEN may only be set once CONDRST is cleared again.
	d.rng.cr.Set(pkareg.RNGCRCONDRST)
	d.rng.cr.ClearBits(pkareg.RNGCRCONDRST)
	d.rng.cr.SetBits(pkareg.RNGCRRNGEN | pkareg.RNGCRIE)

	if err := d.waitFor(ctx, "rng data", d.rngSettled); err != nil {
		return err
	}
	if err := validateRNGStatus(d.rng.sr.Get()); err != nil {
		return err
	}
	d.log.Printf("pka: rng enabled")
	return nil
}

// startAccelerator clocks the PKA, toggles its enable bit and waits for the
// initialisation to finish.
func (d *Dev) startAccelerator(ctx context.Context) error {
	d.rcc.ahb2enr.SetBits(pkareg.RCCAHB2ENRPKAEN)

	d.pka.cr.ClearBits(pkareg.PKACREN)
	// The reads only delay re-enabling, their values are not used.
	for i := 0; i < d.cfg.SettleReads; i++ {
		_ = d.pka.cr.Get()
	}
	d.pka.cr.Set(pkareg.PKACREN)

	if err := d.waitFor(ctx, "pka init", func() bool {
		return d.pka.sr.HasBits(pkareg.PKASRINITOK)
	}); err != nil {
		return err
	}
	d.log.Printf("pka: initialized")
	return nil
}

// rngSettled reports whether the RNG has data or has raised a seed or clock
// error. DRDY stays clear while an error is pending.
func (d *Dev) rngSettled() bool {
	return d.rng.sr.HasBits(pkareg.RNGSRDRDY | pkareg.RNGSRSECS | pkareg.RNGSRCECS)
}
