// Package pkasim simulates the RCC, RNG and PKA registers and the PKA RAM.
//
// Sim implements the pka.HAL interface. Readiness bits assert a configurable
// number of status reads after the matching enable, operations are computed
// with math/big, and every register access is recorded. Enabling a
// peripheral before its prerequisite was observed ready is recorded as a
// violation instead of being rejected, so tests can assert on the order the
// driver used.
package pkasim

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/northvolt/go-pka/pka/pkareg"
)

// Access is one register or RAM transfer.
type Access struct {
	Write bool
	Addr  uint32
	Value uint32
}

func (a Access) String() string {
	if a.Write {
		return fmt.Sprintf("write %#08x = %#08x", a.Addr, a.Value)
	}
	return fmt.Sprintf("read  %#08x = %#08x", a.Addr, a.Value)
}

// Bit identifies a readiness bit that can be held low.
type Bit int

const (
	BitHSEReady Bit = iota
	BitHSIReady
	BitRNGDataReady
	BitPKAInitOK
	BitPKAProcEnd
)

const ramWords = (pkareg.RAMLimit + 1 - pkareg.RAMStart) / 4

// countdown delays a readiness bit by a number of status reads.
//
// A negative value means nothing is pending.
type countdown int

func (c *countdown) arm(latency int) {
	*c = countdown(latency)
}

func (c *countdown) disarm() {
	*c = -1
}

// tick advances the countdown and reports whether it fired.
func (c *countdown) tick() bool {
	if *c < 0 {
		return false
	}
	if *c == 0 {
		*c = -1
		return true
	}
	*c--
	return false
}

// Sim is a simulated STM32WBA55 limited to the registers used by the PKA
// driver.
type Sim struct {
	mu sync.Mutex

	latency int
	stuck   map[Bit]bool
	fault    uint32
	pending  uint32
	rngFault uint32
	seed     uint32

	rccCR      uint32
	rccAHB2ENR uint32
	rccCCIPR2  uint32
	rngCR      uint32
	rngSR      uint32
	pkaCR      uint32
	pkaSR      uint32
	ram        [ramWords]uint32
	other      map[uint32]uint32

	hse, hsi, drdy, initOK, procEnd countdown

	// observations used to check ordering
	oscSeen, drdySeen, initOKSeen bool
	condReset, condDone           bool

	trace      []Access
	violations []string
	operations int
}

// Option configures a Sim.
type Option func(*Sim)

// WithLatency sets the number of status reads before a readiness bit
// asserts. The default is 2.
func WithLatency(n int) Option {
	return func(s *Sim) {
		s.latency = n
	}
}

// WithStuck keeps bit low forever, as hardware that never becomes ready.
func WithStuck(bit Bit) Option {
	return func(s *Sim) {
		s.stuck[bit] = true
	}
}

// WithSeed sets the seed of the random data produced by the RNG.
func WithSeed(seed uint32) Option {
	return func(s *Sim) {
		if seed != 0 {
			s.seed = seed
		}
	}
}

// New returns a simulator in its reset state.
func New(opts ...Option) *Sim {
	s := &Sim{
		latency: 2,
		stuck:   make(map[Bit]bool),
		seed:    0x2545f491,
		other:   make(map[uint32]uint32),
	}
	for _, c := range []*countdown{&s.hse, &s.hsi, &s.drdy, &s.initOK, &s.procEnd} {
		c.disarm()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InjectFault makes the next operation end with the PKA_SR flags in flags,
// for example pkareg.PKASRRAMERRF.
func (s *Sim) InjectFault(flags uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = flags
}

// InjectRNGFault makes the RNG report the RNG_SR error flags in flags,
// pkareg.RNGSRSECS or pkareg.RNGSRCECS, until called again with zero. DRDY
// stays clear while a fault is set; after clearing it the RNG delivers data
// again once it went through a new conditioning reset.
func (s *Sim) InjectRNGFault(flags uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const errs = pkareg.RNGSRSECS | pkareg.RNGSRCECS
	s.rngFault = flags & errs
	s.rngSR &^= errs
}

// Trace returns all accesses since creation or the last ResetTrace.
func (s *Sim) Trace() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Access(nil), s.trace...)
}

// ResetTrace drops the recorded accesses.
func (s *Sim) ResetTrace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = nil
}

// Violations returns the ordering violations observed.
func (s *Sim) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

// Operations returns the number of operations started.
func (s *Sim) Operations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operations
}

func (s *Sim) violate(format string, args ...interface{}) {
	s.violations = append(s.violations, fmt.Sprintf(format, args...))
}

func inWindow(addr, base uint32, size int) bool {
	return addr >= base && addr < base+uint32(size)
}

// ramIndex returns the RAM word index of addr, if addr is in the PKA RAM.
func ramIndex(addr uint32) (int, bool) {
	if addr < pkareg.PKABase+pkareg.RAMStart || addr > pkareg.PKABase+pkareg.RAMLimit {
		return 0, false
	}
	return int(addr-pkareg.PKABase-pkareg.RAMStart) / 4, true
}

// Read32 implements pka.HAL.
func (s *Sim) Read32(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.read(addr)
	s.trace = append(s.trace, Access{false, addr, v})
	return v
}

// Write32 implements pka.HAL.
func (s *Sim) Write32(addr uint32, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trace = append(s.trace, Access{true, addr, v})
	s.write(addr, v)
}

func (s *Sim) read(addr uint32) uint32 {
	if i, ok := ramIndex(addr); ok {
		if !s.initOKSeen {
			s.violate("pka ram read before pka init")
		}
		return s.ram[i]
	}

	switch addr {
	case pkareg.RCCBase + pkareg.RCCCR:
		if s.hse.tick() && !s.stuck[BitHSEReady] {
			s.rccCR |= pkareg.RCCCRHSERDY
		}
		if s.hsi.tick() && !s.stuck[BitHSIReady] {
			s.rccCR |= pkareg.RCCCRHSIRDY
		}
		if s.rccCR&(pkareg.RCCCRHSERDY|pkareg.RCCCRHSIRDY) != 0 {
			s.oscSeen = true
		}
		return s.rccCR
	case pkareg.RCCBase + pkareg.RCCAHB2ENR:
		return s.rccAHB2ENR
	case pkareg.RCCBase + pkareg.RCCCCIPR2:
		return s.rccCCIPR2
	case pkareg.RNGBase + pkareg.RNGCR:
		return s.rngCR
	case pkareg.RNGBase + pkareg.RNGSR:
		if s.drdy.tick() && !s.stuck[BitRNGDataReady] {
			s.rngSR |= pkareg.RNGSRDRDY
		}
		if s.rngFault != 0 {
			s.rngSR = s.rngSR&^pkareg.RNGSRDRDY | s.rngFault
		}
		if s.rngSR&pkareg.RNGSRDRDY != 0 {
			s.drdySeen = true
		}
		return s.rngSR
	case pkareg.RNGBase + pkareg.RNGDR:
		if s.rngSR&pkareg.RNGSRDRDY == 0 {
			return 0
		}
		s.rngSR &^= pkareg.RNGSRDRDY
		s.drdy.arm(s.latency)
		return s.next()
	case pkareg.PKABase + pkareg.PKACR:
		return s.pkaCR
	case pkareg.PKABase + pkareg.PKASR:
		if s.initOK.tick() && !s.stuck[BitPKAInitOK] {
			s.pkaSR |= pkareg.PKASRINITOK
		}
		if s.procEnd.tick() && !s.stuck[BitPKAProcEnd] {
			s.pkaSR &^= pkareg.PKASRBUSY
			s.pkaSR |= pkareg.PKASRPROCENDF | s.pending | s.fault
			s.pending, s.fault = 0, 0
		}
		if s.pkaSR&pkareg.PKASRINITOK != 0 {
			s.initOKSeen = true
		}
		return s.pkaSR
	case pkareg.PKABase + pkareg.PKACLRFR:
		return 0
	default:
		return s.other[addr]
	}
}

func (s *Sim) write(addr uint32, v uint32) {
	if i, ok := ramIndex(addr); ok {
		if !s.initOKSeen {
			s.violate("pka ram write before pka init")
		}
		if s.pkaSR&pkareg.PKASRBUSY != 0 {
			s.pkaSR |= pkareg.PKASRRAMERRF
		}
		s.ram[i] = v
		return
	}

	switch addr {
	case pkareg.RCCBase + pkareg.RCCCR:
		s.writeRCCCR(v)
	case pkareg.RCCBase + pkareg.RCCAHB2ENR:
		s.writeAHB2ENR(v)
	case pkareg.RCCBase + pkareg.RCCCCIPR2:
		s.rccCCIPR2 = v
	case pkareg.RNGBase + pkareg.RNGCR:
		s.writeRNGCR(v)
	case pkareg.RNGBase + pkareg.RNGSR, pkareg.RNGBase + pkareg.RNGDR:
		// read only
	case pkareg.PKABase + pkareg.PKACR:
		s.writePKACR(v)
	case pkareg.PKABase + pkareg.PKASR:
		// read only
	case pkareg.PKABase + pkareg.PKACLRFR:
		const clearable = pkareg.PKACLRFRPROCENDFC | pkareg.PKACLRFRRAMERRFC |
			pkareg.PKACLRFRADDRERRFC | pkareg.PKACLRFROPERRFC
		s.pkaSR &^= v & clearable
	default:
		if !inWindow(addr, pkareg.RCCBase, pkareg.RCCSize) &&
			!inWindow(addr, pkareg.RNGBase, pkareg.RNGSize) &&
			!inWindow(addr, pkareg.PKABase, pkareg.PKASize) {
			s.violate("write outside peripherals at %#08x", addr)
		}
		s.other[addr] = v
	}
}

func (s *Sim) writeRCCCR(v uint32) {
	const ready = pkareg.RCCCRHSERDY | pkareg.RCCCRHSIRDY
	old := s.rccCR
	s.rccCR = v&^ready | old&ready

	switch on := v&pkareg.RCCCRHSEON != 0; {
	case on && old&pkareg.RCCCRHSEON == 0:
		s.hse.arm(s.latency)
	case !on:
		s.hse.disarm()
		s.rccCR &^= pkareg.RCCCRHSERDY
	}
	switch on := v&pkareg.RCCCRHSION != 0; {
	case on && old&pkareg.RCCCRHSION == 0:
		s.hsi.arm(s.latency)
	case !on:
		s.hsi.disarm()
		s.rccCR &^= pkareg.RCCCRHSIRDY
	}
}

func (s *Sim) writeAHB2ENR(v uint32) {
	old := s.rccAHB2ENR
	s.rccAHB2ENR = v

	if rising(old, v, pkareg.RCCAHB2ENRRNGEN) && !s.oscSeen {
		s.violate("rng clock enabled before oscillator ready")
	}
	if rising(old, v, pkareg.RCCAHB2ENRPKAEN) && !s.drdySeen {
		s.violate("pka clock enabled before rng ready")
	}
}

func (s *Sim) writeRNGCR(v uint32) {
	old := s.rngCR
	s.rngCR = v

	if v&pkareg.RNGCRCONDRST != 0 {
		if v&pkareg.RNGCRRNGEN != 0 {
			s.violate("rng enabled during conditioning reset")
		}
		s.condReset, s.condDone = true, false
		s.rngSR &^= pkareg.RNGSRDRDY
		s.drdy.disarm()
		return
	}
	if s.condReset {
		s.condReset, s.condDone = false, true
	}

	if rising(old, v, pkareg.RNGCRRNGEN) {
		if s.rccAHB2ENR&pkareg.RCCAHB2ENRRNGEN == 0 {
			s.violate("rng enabled without bus clock")
			return
		}
		if !s.condDone {
			s.violate("rng enabled without conditioning reset")
			return
		}
		s.drdy.arm(s.latency)
	} else if v&pkareg.RNGCRRNGEN == 0 {
		s.rngSR &^= pkareg.RNGSRDRDY
		s.drdy.disarm()
	}
}

func (s *Sim) writePKACR(v uint32) {
	old := s.pkaCR
	s.pkaCR = v &^ pkareg.PKACRSTART

	if v&pkareg.PKACREN == 0 {
		s.pkaSR &^= pkareg.PKASRINITOK | pkareg.PKASRBUSY
		s.initOK.disarm()
		s.procEnd.disarm()
		s.initOKSeen = false
		return
	}
	if rising(old, v, pkareg.PKACREN) {
		if s.rccAHB2ENR&pkareg.RCCAHB2ENRPKAEN == 0 {
			s.violate("pka enabled without bus clock")
			return
		}
		s.initOK.arm(s.latency)
	}

	if v&pkareg.PKACRSTART != 0 {
		if !s.initOKSeen {
			s.violate("pka started before init")
			return
		}
		s.operations++
		s.pkaSR |= pkareg.PKASRBUSY
		s.pending = s.run(v >> pkareg.PKACRMODEPos & pkareg.PKACRMODEMask)
		s.procEnd.arm(s.latency)
	}
}

func rising(old, v, bit uint32) bool {
	return old&bit == 0 && v&bit != 0
}

// next returns the next RNG word (xorshift32).
func (s *Sim) next() uint32 {
	x := s.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.seed = x
	return x
}

// load returns the n-word value at the RAM offset, least significant word
// at the lowest address.
func (s *Sim) load(offset uint32, n int) *big.Int {
	x := new(big.Int)
	for i := n - 1; i >= 0; i-- {
		x.Lsh(x, 32)
		x.Or(x, big.NewInt(int64(s.ram[(offset-pkareg.RAMStart)/4+uint32(i)])))
	}
	return x
}

// store writes x as n words at the RAM offset, least significant word at the
// lowest address.
func (s *Sim) store(offset uint32, n int, x *big.Int) {
	mask := big.NewInt(0xffffffff)
	v := new(big.Int).Set(x)
	for i := 0; i < n; i++ {
		s.ram[(offset-pkareg.RAMStart)/4+uint32(i)] = uint32(new(big.Int).And(v, mask).Uint64())
		v.Rsh(v, 32)
	}
}

// run executes mode on the RAM contents and returns the PKA_SR fault flags.
func (s *Sim) run(mode uint32) uint32 {
	bits := int(s.ram[(pkareg.OperandLengthOffset-pkareg.RAMStart)/4])
	if bits <= 0 || bits > pkareg.MaxOperandBits {
		return pkareg.PKASROPERRF
	}
	n := (bits + 31) / 32
	a := s.load(pkareg.OperandAOffset, n)
	b := s.load(pkareg.OperandBOffset, n)

	var (
		r     = new(big.Int)
		width = n
	)
	switch mode {
	case pkareg.ModeModularAdd, pkareg.ModeModularSub:
		m := s.load(pkareg.ModulusOffset, n)
		if m.Sign() == 0 {
			return pkareg.PKASROPERRF
		}
		if mode == pkareg.ModeModularAdd {
			r.Add(a, b)
		} else {
			r.Sub(a, b)
		}
		r.Mod(r, m)
	case pkareg.ModeArithmeticAdd:
		r.Add(a, b)
		width = n + 1
	case pkareg.ModeArithmeticSub:
		if a.Cmp(b) < 0 {
			return pkareg.PKASROPERRF
		}
		r.Sub(a, b)
	case pkareg.ModeArithmeticMul:
		r.Mul(a, b)
		width = 2 * n
	default:
		return pkareg.PKASROPERRF
	}
	s.store(pkareg.ResultOffset, width, r)
	return 0
}
