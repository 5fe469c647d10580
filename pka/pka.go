package pka

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/northvolt/go-pka/pka/pkareg"
	"periph.io/x/conn/v3"
)

// State is the position of the device in its bring-up and operation
// sequence.
type State int

const (
	StateIdle State = iota
	StateOscillatorReady
	StateEntropyReady
	StateAcceleratorReady
	StateOperandsStaged
	StateOperationRunning
	StateOperationComplete
	StateResultRead
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOscillatorReady:
		return "oscillator ready"
	case StateEntropyReady:
		return "entropy ready"
	case StateAcceleratorReady:
		return "accelerator ready"
	case StateOperandsStaged:
		return "operands staged"
	case StateOperationRunning:
		return "operation running"
	case StateOperationComplete:
		return "operation complete"
	case StateResultRead:
		return "result read"
	default:
		return "unknown"
	}
}

type rccRegs struct {
	cr      register
	ahb2enr register
	ccipr2  register
}

type rngRegs struct {
	cr register
	sr register
	dr register
}

type pkaRegs struct {
	cr    register
	sr    register
	clrfr register
}

// faultFlags are cleared before staging and after a failed operation.
const faultFlags = pkareg.PKACLRFRADDRERRFC | pkareg.PKACLRFRRAMERRFC | pkareg.PKACLRFROPERRFC

// Dev is a PKA together with the RCC and RNG it depends on.
//
// The PKA RAM and control register are owned exclusively by Dev: every
// operation holds the device lock from staging the operands until the
// result is read.
type Dev struct {
	mu    sync.Mutex
	hal   HAL
	cfg   Config
	log   Logger
	state State

	rcc rccRegs
	rng rngRegs
	pka pkaRegs
	ram ram
}

var _ conn.Resource = &Dev{}

// New returns a new PKA device using the supplied HAL for register access.
//
// The oscillator, RNG and PKA are brought up before New returns.
func New(ctx context.Context, hal HAL, cfg Config) (*Dev, error) {
	mm, err := getMemoryMap(cfg.DeviceType)
	if err != nil {
		return nil, err
	}

	d := &Dev{
		hal:   hal,
		cfg:   cfg,
		log:   getLogger(cfg),
		state: StateIdle,
	}
	if cfg.Trace {
		d.hal = &halDebug{"pka", d.log, d.hal}
	}

	d.rcc = rccRegs{
		cr:      register{d.hal, mm.rcc.base + pkareg.RCCCR},
		ahb2enr: register{d.hal, mm.rcc.base + pkareg.RCCAHB2ENR},
		ccipr2:  register{d.hal, mm.rcc.base + pkareg.RCCCCIPR2},
	}
	d.rng = rngRegs{
		cr: register{d.hal, mm.rng.base + pkareg.RNGCR},
		sr: register{d.hal, mm.rng.base + pkareg.RNGSR},
		dr: register{d.hal, mm.rng.base + pkareg.RNGDR},
	}
	d.pka = pkaRegs{
		cr:    register{d.hal, mm.pka.base + pkareg.PKACR},
		sr:    register{d.hal, mm.pka.base + pkareg.PKASR},
		clrfr: register{d.hal, mm.pka.base + pkareg.PKACLRFR},
	}
	d.ram = ram{d.hal, mm.pka.base}

	return d, d.Init(ctx)
}

// Init runs the bring-up sequence: oscillator, RNG and PKA, in that order.
//
// It may be called again after Halt or after an operation timed out.
func (d *Dev) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stages := []struct {
		run  func(context.Context) error
		done State
	}{
		{d.startOscillator, StateOscillatorReady},
		{d.startEntropySource, StateEntropyReady},
		{d.startAccelerator, StateAcceleratorReady},
	}

	d.state = StateIdle
	for _, s := range stages {
		if err := s.run(ctx); err != nil {
			return err
		}
		d.state = s.done
	}
	return nil
}

// State returns the current state of the device.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Compute executes op and returns its result.
//
// Fault flags raised by the accelerator are returned as ErrAddressFault,
// ErrRAMFault or ErrOperationFault; the result is discarded in that case.
func (d *Dev) Compute(ctx context.Context, op Operation) (*big.Int, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAcceleratorReady {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, d.state)
	}

	if err := d.stage(op); err != nil {
		return nil, err
	}
	if err := d.dispatch(ctx, op.Mode); err != nil {
		return nil, err
	}
	return d.result(op)
}

// ramField is a value staged at a fixed PKA RAM offset.
type ramField struct {
	offset uint32
	value  *big.Int
	words  int
}

// stage clears stale flags and writes the operands into the PKA RAM.
func (d *Dev) stage(op Operation) error {
	l, err := getModeLayout(op.Mode)
	if err != nil {
		return err
	}

	d.clearFlags(faultFlags | pkareg.PKACLRFRPROCENDFC)

	n := op.words()
	fields := []ramField{
		{pkareg.OperandLengthOffset, big.NewInt(int64(op.Bits)), 1},
		{pkareg.OperandAOffset, op.A, n},
		{pkareg.OperandBOffset, op.B, n},
	}
	if l.modular {
		fields = append(fields, ramField{pkareg.ModulusOffset, op.Modulus, n})
	}

	for _, f := range fields {
		words, err := encodeOperand(f.value, f.words)
		if err != nil {
			return err
		}
		if err := d.ram.write(f.offset, words); err != nil {
			return err
		}
	}
	d.state = StateOperandsStaged
	return nil
}

// dispatch starts mode and waits for the accelerator to finish.
func (d *Dev) dispatch(ctx context.Context, mode Mode) error {
	cr := d.pka.cr.Get()
	cr &^= pkareg.PKACRMODEMask << pkareg.PKACRMODEPos
	cr |= uint32(mode)<<pkareg.PKACRMODEPos | pkareg.PKACRSTART

	d.log.Printf("pka: starting %s", mode)
	d.pka.cr.Set(cr)
	d.state = StateOperationRunning

	// A fault ends the operation as well, with or without PROCENDF.
	done := pkareg.PKASRPROCENDF | pkareg.PKASRADDRERRF | pkareg.PKASRRAMERRF | pkareg.PKASROPERRF
	if err := d.waitFor(ctx, "operation", func() bool {
		return d.pka.sr.HasBits(done)
	}); err != nil {
		return err
	}
	d.state = StateOperationComplete

	if err := validatePKAStatus(d.pka.sr.Get()); err != nil {
		d.clearFlags(faultFlags | pkareg.PKACLRFRPROCENDFC)
		d.state = StateAcceleratorReady
		return err
	}
	return nil
}

// result reads the result words, reports them and clears PROCENDF.
func (d *Dev) result(op Operation) (*big.Int, error) {
	l, err := getModeLayout(op.Mode)
	if err != nil {
		return nil, err
	}

	words := make([]uint32, l.resultWords(op.words()))
	if err := d.ram.read(pkareg.ResultOffset, words); err != nil {
		return nil, err
	}
	d.state = StateResultRead

	res, err := decodeResult(words)
	if err != nil {
		return nil, err
	}
	d.log.Printf("pka: %s = %v", op, res)
	d.log.Printf("%s", wordDump(words))

	d.clearFlags(pkareg.PKACLRFRPROCENDFC)
	d.state = StateAcceleratorReady
	return res, nil
}

// clearFlags writes flags to PKA_CLRFR. Clearing a flag that is not set has
// no effect.
func (d *Dev) clearFlags(flags uint32) {
	d.pka.clrfr.Set(flags)
}

// WriteRAM writes words, most significant first, to the PKA RAM at offset.
func (d *Dev) WriteRAM(offset uint32, words []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state < StateAcceleratorReady {
		return ErrNotReady
	}
	return d.ram.write(offset, words)
}

// ReadRAM reads len(words) words from the PKA RAM at offset, most significant
// first.
func (d *Dev) ReadRAM(offset uint32, words []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state < StateAcceleratorReady {
		return ErrNotReady
	}
	return d.ram.read(offset, words)
}

// Registers returns the decoded state of the registers used by the driver.
func (d *Dev) Registers() pkareg.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return pkareg.Snapshot{
		RCCControl:     pkareg.RCCControl{Bits: d.rcc.cr.Get()},
		AHB2Enable:     pkareg.AHB2Enable{Bits: d.rcc.ahb2enr.Get()},
		RNGClockSelect: pkareg.RNGClockSelect{Bits: d.rcc.ccipr2.Get()},
		RNGControl:     pkareg.RNGControl{Bits: d.rng.cr.Get()},
		RNGStatus:      pkareg.RNGStatus{Bits: d.rng.sr.Get()},
		PKAControl:     pkareg.PKAControl{Bits: d.pka.cr.Get()},
		PKAStatus:      pkareg.PKAStatus{Bits: d.pka.sr.Get()},
	}
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return d.cfg.DeviceType.String() + " PKA"
}

// Halt disables the accelerator. Init must be called before it is used
// again.
//
// This implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pka.cr.ClearBits(pkareg.PKACREN)
	d.state = StateIdle
	return nil
}

// Random returns a reader of the RNG output.
//
// Each 32-bit data word is read once DRDY is set. Use io.ReadFull to fill a
// buffer.
func (d *Dev) Random(ctx context.Context) io.Reader {
	return &randReader{ctx, d}
}

func (d *Dev) random(ctx context.Context, b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state < StateEntropyReady {
		return 0, ErrNotReady
	}

	var n int
	for n < len(b) {
		if err := d.waitFor(ctx, "rng data", d.rngSettled); err != nil {
			return n, err
		}
		if err := validateRNGStatus(d.rng.sr.Get()); err != nil {
			return n, err
		}

		var w [wordSize]byte
		binary.LittleEndian.PutUint32(w[:], d.rng.dr.Get())
		n += copy(b[n:], w[:])
	}
	return n, nil
}

type randReader struct {
	ctx context.Context
	d   *Dev
}

func (r *randReader) Read(b []byte) (int, error) {
	return r.d.random(r.ctx, b)
}
