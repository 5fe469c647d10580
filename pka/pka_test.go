package pka

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/northvolt/go-pka/pka/pkareg"
	"github.com/northvolt/go-pka/pka/pkasim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDev(t *testing.T, opts ...pkasim.Option) (*Dev, *pkasim.Sim) {
	t.Helper()
	sim := pkasim.New(opts...)
	cfg := DefaultConfig()
	cfg.Poll.MaxPolls = 100
	d, err := New(context.Background(), sim, cfg)
	require.NoError(t, err)
	return d, sim
}

func TestModularAddition(t *testing.T) {
	d, sim := newTestDev(t)

	op := ModAdd(64, big.NewInt(11), big.NewInt(11), big.NewInt(13))
	res, err := d.Compute(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Int64())
	assert.Equal(t, StateAcceleratorReady, d.State())
	assert.Equal(t, 1, sim.Operations())
	assert.Empty(t, sim.Violations())
}

// indexOf returns the index of the first access at or after from matching
// addr and pred, or -1.
func indexOf(trace []pkasim.Access, from int, write bool, addr uint32, pred func(v uint32) bool) int {
	for i := from; i < len(trace); i++ {
		a := trace[i]
		if a.Write == write && a.Addr == addr && pred(a.Value) {
			return i
		}
	}
	return -1
}

func has(bits uint32) func(uint32) bool {
	return func(v uint32) bool { return v&bits == bits }
}

func lacks(bits uint32) func(uint32) bool {
	return func(v uint32) bool { return v&bits == 0 }
}

func TestBringUpOrder(t *testing.T) {
	_, sim := newTestDev(t)
	trace := sim.Trace()

	const (
		rccCR   = pkareg.RCCBase + pkareg.RCCCR
		ahb2enr = pkareg.RCCBase + pkareg.RCCAHB2ENR
		ccipr2  = pkareg.RCCBase + pkareg.RCCCCIPR2
		rngCR   = pkareg.RNGBase + pkareg.RNGCR
		rngSR   = pkareg.RNGBase + pkareg.RNGSR
		pkaCR   = pkareg.PKABase + pkareg.PKACR
		pkaSR   = pkareg.PKABase + pkareg.PKASR
	)
	anyValue := func(uint32) bool { return true }

	steps := []struct {
		name  string
		write bool
		addr  uint32
		pred  func(uint32) bool
	}{
		{"hse on", true, rccCR, has(pkareg.RCCCRHSEON)},
		{"hse ready", false, rccCR, has(pkareg.RCCCRHSERDY)},
		{"rng clock select", true, ccipr2, anyValue},
		{"rng bus clock", true, ahb2enr, has(pkareg.RCCAHB2ENRRNGEN)},
		{"rng bus clock ready", false, ahb2enr, has(pkareg.RCCAHB2ENRRNGEN)},
		{"rng cond reset", true, rngCR, func(v uint32) bool {
			return v&pkareg.RNGCRCONDRST != 0 && v&pkareg.RNGCRRNGEN == 0
		}},
		{"rng cond reset release", true, rngCR, lacks(pkareg.RNGCRCONDRST | pkareg.RNGCRRNGEN)},
		{"rng enable", true, rngCR, has(pkareg.RNGCRRNGEN | pkareg.RNGCRIE)},
		{"rng data ready", false, rngSR, has(pkareg.RNGSRDRDY)},
		{"pka bus clock", true, ahb2enr, has(pkareg.RCCAHB2ENRPKAEN)},
		{"pka disable", true, pkaCR, lacks(pkareg.PKACREN)},
		{"pka enable", true, pkaCR, has(pkareg.PKACREN)},
		{"pka init ok", false, pkaSR, has(pkareg.PKASRINITOK)},
	}

	pos := 0
	for _, s := range steps {
		i := indexOf(trace, pos, s.write, s.addr, s.pred)
		require.NotEqual(t, -1, i, "step %q not found after access %d", s.name, pos)
		pos = i + 1
	}
	assert.Empty(t, sim.Violations())
}

func TestClockSourceHSI(t *testing.T) {
	sim := pkasim.New()
	cfg := DefaultConfig()
	cfg.ClockSource = ClockHSI
	d, err := New(context.Background(), sim, cfg)
	require.NoError(t, err)

	regs := d.Registers()
	assert.True(t, regs.RCCControl.HSIReady())
	assert.False(t, regs.RCCControl.HSEOn())
	assert.Empty(t, sim.Violations())
}

func TestCompute(t *testing.T) {
	p256, _ := new(big.Int).SetString("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff", 16)
	x, _ := new(big.Int).SetString("fffffffeffffffff0000000000000000000000000000000000000000000000aa", 16)
	two64 := new(big.Int).Lsh(big.NewInt(1), 64)
	max64 := new(big.Int).Sub(two64, big.NewInt(1))

	testCases := []struct {
		name string
		op   Operation
		want *big.Int
	}{
		{"modadd", ModAdd(64, big.NewInt(11), big.NewInt(11), big.NewInt(13)), big.NewInt(9)},
		{"modadd no wrap", ModAdd(32, big.NewInt(3), big.NewInt(4), big.NewInt(13)), big.NewInt(7)},
		{
			"modsub wraps",
			Operation{Mode: ModeModularSub, Bits: 64, A: big.NewInt(3), B: big.NewInt(5), Modulus: big.NewInt(13)},
			big.NewInt(11),
		},
		{
			"modadd p256",
			ModAdd(256, x, x, p256),
			new(big.Int).Mod(new(big.Int).Add(x, x), p256),
		},
		{
			"add carry",
			Operation{Mode: ModeArithmeticAdd, Bits: 64, A: max64, B: big.NewInt(1)},
			two64,
		},
		{
			"sub",
			Operation{Mode: ModeArithmeticSub, Bits: 64, A: max64, B: big.NewInt(1)},
			new(big.Int).Sub(max64, big.NewInt(1)),
		},
		{
			"mul",
			Operation{Mode: ModeArithmeticMul, Bits: 64, A: max64, B: max64},
			new(big.Int).Mul(max64, max64),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, sim := newTestDev(t)
			res, err := d.Compute(context.Background(), tc.op)
			require.NoError(t, err)
			assert.Equal(t, 0, tc.want.Cmp(res), "got %v want %v", res, tc.want)
			assert.Empty(t, sim.Violations())
		})
	}
}

func TestComputeFault(t *testing.T) {
	testCases := []struct {
		flags uint32
		want  error
	}{
		{pkareg.PKASRRAMERRF, ErrRAMFault},
		{pkareg.PKASRADDRERRF, ErrAddressFault},
		{pkareg.PKASROPERRF, ErrOperationFault},
		{pkareg.PKASRRAMERRF | pkareg.PKASRADDRERRF, ErrAddressFault},
	}

	for _, tc := range testCases {
		t.Run(tc.want.Error(), func(t *testing.T) {
			d, sim := newTestDev(t)
			op := ModAdd(64, big.NewInt(11), big.NewInt(11), big.NewInt(13))

			sim.InjectFault(tc.flags)
			res, err := d.Compute(context.Background(), op)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, res)
			assert.Equal(t, StateAcceleratorReady, d.State())

			// flags were cleared, the next operation succeeds
			sr := d.Registers().PKAStatus
			assert.False(t, sr.RAMError() || sr.AddressError() || sr.OpError())
			res, err = d.Compute(context.Background(), op)
			require.NoError(t, err)
			assert.Equal(t, int64(9), res.Int64())
		})
	}
}

func TestTimeout(t *testing.T) {
	testCases := []struct {
		name  string
		bit   pkasim.Bit
		state State
	}{
		{"oscillator", pkasim.BitHSEReady, StateIdle},
		{"rng data", pkasim.BitRNGDataReady, StateOscillatorReady},
		{"pka init", pkasim.BitPKAInitOK, StateEntropyReady},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sim := pkasim.New(pkasim.WithStuck(tc.bit))
			cfg := DefaultConfig()
			cfg.Poll.MaxPolls = 50

			d, err := New(context.Background(), sim, cfg)
			require.ErrorIs(t, err, ErrTimeout)
			assert.Contains(t, err.Error(), tc.name)
			assert.Equal(t, tc.state, d.State())
		})
	}
}

func TestOperationTimeout(t *testing.T) {
	d, _ := newTestDev(t, pkasim.WithStuck(pkasim.BitPKAProcEnd))
	op := ModAdd(64, big.NewInt(11), big.NewInt(11), big.NewInt(13))

	_, err := d.Compute(context.Background(), op)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateOperationRunning, d.State())

	_, err = d.Compute(context.Background(), op)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestContextDeadline(t *testing.T) {
	sim := pkasim.New(pkasim.WithStuck(pkasim.BitHSEReady))
	cfg := BareMetalConfig()
	cfg.Poll.Interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(ctx, sim, cfg)
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContextCanceled(t *testing.T) {
	sim := pkasim.New(pkasim.WithStuck(pkasim.BitHSEReady))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, sim, BareMetalConfig())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRAMAccessChecks(t *testing.T) {
	testCases := []struct {
		name   string
		offset uint32
		n      int
		want   error
	}{
		{"operand a", pkareg.OperandAOffset, 2, nil},
		{"first word", pkareg.RAMStart, 1, nil},
		{"last word", 0x13f8, 1, nil},
		{"empty", pkareg.ResultOffset, 0, nil},
		{"unaligned", pkareg.OperandAOffset + 2, 1, ErrUnaligned},
		{"unaligned by one", 0x409, 1, ErrUnaligned},
		{"below ram", 0x3fc, 1, ErrOutOfBounds},
		{"control registers", pkareg.PKACR, 1, ErrOutOfBounds},
		{"past end", 0x13fc, 1, ErrOutOfBounds},
		{"straddles end", 0x13f0, 4, ErrOutOfBounds},
		{"overflow", 0xfffffffc, 2, ErrOutOfBounds},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sim := pkasim.New()
			r := ram{sim, pkareg.PKABase}
			words := make([]uint32, tc.n)

			for _, access := range []func(uint32, []uint32) error{r.write, r.read} {
				err := access(tc.offset, words)
				if tc.want == nil {
					require.NoError(t, err)
				} else {
					require.ErrorIs(t, err, tc.want)
				}
			}
			if tc.want != nil {
				assert.Empty(t, sim.Trace(), "rejected access reached the bus")
			}
		})
	}
}

func TestRAMRoundTrip(t *testing.T) {
	testCases := [][]uint32{
		{11},
		{0, 11},
		{0xdeadbeef, 0x01234567},
		{1, 2, 3, 4, 5},
	}

	for _, in := range testCases {
		sim := pkasim.New()
		r := ram{sim, pkareg.PKABase}

		require.NoError(t, r.write(pkareg.OperandBOffset, in))
		out := make([]uint32, len(in))
		require.NoError(t, r.read(pkareg.OperandBOffset, out))
		assert.Equal(t, in, out)

		// stored in reverse: last word at the lowest address
		trace := sim.Trace()
		require.Len(t, trace, 2*len(in))
		for i, a := range trace[:len(in)] {
			assert.True(t, a.Write)
			assert.Equal(t, pkareg.PKABase+pkareg.OperandBOffset+uint32(4*i), a.Addr)
			assert.Equal(t, in[len(in)-1-i], a.Value)
		}
	}
}

func TestDevRAM(t *testing.T) {
	d, _ := newTestDev(t)
	in := []uint32{0xcafe, 0xf00d}
	require.NoError(t, d.WriteRAM(pkareg.ModulusOffset, in))
	out := make([]uint32, 2)
	require.NoError(t, d.ReadRAM(pkareg.ModulusOffset, out))
	assert.Equal(t, in, out)

	require.ErrorIs(t, d.WriteRAM(pkareg.ModulusOffset+1, in), ErrUnaligned)

	require.NoError(t, d.Halt())
	require.ErrorIs(t, d.ReadRAM(pkareg.ModulusOffset, out), ErrNotReady)
}

func TestClearFlagsIdempotent(t *testing.T) {
	d, sim := newTestDev(t)
	_, err := d.Compute(context.Background(), ModAdd(64, big.NewInt(1), big.NewInt(2), big.NewInt(13)))
	require.NoError(t, err)

	before := d.Registers()
	require.False(t, before.PKAStatus.ProcEnd())

	sim.ResetTrace()
	d.clearFlags(pkareg.PKACLRFRPROCENDFC)
	d.clearFlags(pkareg.PKACLRFRPROCENDFC)

	trace := sim.Trace()
	require.Len(t, trace, 2)
	for _, a := range trace {
		assert.True(t, a.Write)
		assert.Equal(t, pkareg.PKABase+pkareg.PKACLRFR, a.Addr)
	}
	assert.Equal(t, before, d.Registers())
}

func TestHaltAndInit(t *testing.T) {
	d, sim := newTestDev(t)
	op := ModAdd(64, big.NewInt(12), big.NewInt(12), big.NewInt(13))

	require.NoError(t, d.Halt())
	assert.Equal(t, StateIdle, d.State())
	assert.False(t, d.Registers().PKAControl.Enabled())

	_, err := d.Compute(context.Background(), op)
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, d.Init(context.Background()))
	res, err := d.Compute(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.Int64())
	assert.Empty(t, sim.Violations())
	assert.Equal(t, "STM32WBA55 PKA", d.String())
}

func TestValidate(t *testing.T) {
	one := big.NewInt(1)
	testCases := []struct {
		name string
		op   Operation
		want error
	}{
		{"zero bits", ModAdd(0, one, one, big.NewInt(13)), errInvalidBits},
		{"too wide", ModAdd(MaxOperandBits+1, one, one, big.NewInt(13)), errInvalidBits},
		{"nil operand", ModAdd(64, nil, one, big.NewInt(13)), errInvalidOperand},
		{"negative", ModAdd(64, big.NewInt(-1), one, big.NewInt(13)), errInvalidOperand},
		{"operand too wide", ModAdd(4, big.NewInt(16), one, big.NewInt(13)), errInvalidOperand},
		{"no modulus", ModAdd(64, one, one, nil), errInvalidModulus},
		{"zero modulus", ModAdd(64, one, one, big.NewInt(0)), errInvalidModulus},
		{"operand above modulus", ModAdd(64, big.NewInt(14), one, big.NewInt(13)), errInvalidOperand},
		{"sub underflow", Operation{Mode: ModeArithmeticSub, Bits: 8, A: one, B: big.NewInt(2)}, errInvalidOperand},
		{"unknown mode", Operation{Mode: 0x3f, Bits: 8, A: one, B: one}, errUnknownMode},
		{"arithmetic ignores modulus", Operation{Mode: ModeArithmeticAdd, Bits: 8, A: one, B: one}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op.validate()
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestEncodeOperand(t *testing.T) {
	x := new(big.Int).Lsh(big.NewInt(1), 32)
	x.Add(x, big.NewInt(5))

	words, err := encodeOperand(x, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 5}, words)

	_, err = encodeOperand(x, 1)
	require.ErrorIs(t, err, errInvalidOperand)

	y, err := decodeResult(words)
	require.NoError(t, err)
	assert.Equal(t, 0, x.Cmp(y))
}

func TestOperationString(t *testing.T) {
	op := ModAdd(64, big.NewInt(11), big.NewInt(11), big.NewInt(13))
	assert.Equal(t, "11 + 11 (mod 13)", op.String())

	op = Operation{Mode: ModeArithmeticMul, Bits: 8, A: big.NewInt(3), B: big.NewInt(4)}
	assert.Equal(t, "3 * 4", op.String())
}

func TestParseMode(t *testing.T) {
	for m, name := range modeNames {
		got, err := ParseMode(strings.ToUpper(name))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("div")
	require.ErrorIs(t, err, errUnknownMode)
}

func TestRandom(t *testing.T) {
	read := func(seed uint32) []byte {
		d, _ := newTestDev(t, pkasim.WithSeed(seed))
		buf := make([]byte, 10)
		_, err := io.ReadFull(d.Random(context.Background()), buf)
		require.NoError(t, err)
		return buf
	}

	a, b := read(1), read(1)
	assert.Equal(t, a, b)
	assert.NotEqual(t, make([]byte, 10), a)
	assert.False(t, bytes.Equal(a, read(2)))
}

func TestRandomNotReady(t *testing.T) {
	d, _ := newTestDev(t)
	require.NoError(t, d.Halt())
	_, err := d.Random(context.Background()).Read(make([]byte, 4))
	require.ErrorIs(t, err, ErrNotReady)
}

func TestRNGFaultDuringBringUp(t *testing.T) {
	testCases := []struct {
		name  string
		flags uint32
		want  error
	}{
		{"seed", pkareg.RNGSRSECS, ErrSeedError},
		{"clock", pkareg.RNGSRCECS, ErrClockError},
		{"both", pkareg.RNGSRSECS | pkareg.RNGSRCECS, ErrSeedError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sim := pkasim.New()
			sim.InjectRNGFault(tc.flags)

			// unbounded polling must still end on the error flag
			d, err := New(context.Background(), sim, BareMetalConfig())
			require.ErrorIs(t, err, tc.want)
			assert.False(t, errors.Is(err, ErrTimeout))
			assert.Equal(t, StateOscillatorReady, d.State())

			sim.InjectRNGFault(0)
			require.NoError(t, d.Init(context.Background()))
			assert.Equal(t, StateAcceleratorReady, d.State())
		})
	}
}

func TestRandomRNGFault(t *testing.T) {
	d, sim := newTestDev(t)
	r := d.Random(context.Background())

	sim.InjectRNGFault(pkareg.RNGSRCECS)
	_, err := io.ReadFull(r, make([]byte, 8))
	require.ErrorIs(t, err, ErrClockError)

	sim.InjectRNGFault(pkareg.RNGSRSECS)
	_, err = io.ReadFull(r, make([]byte, 8))
	require.ErrorIs(t, err, ErrSeedError)

	sim.InjectRNGFault(0)
	require.NoError(t, d.Init(context.Background()))
	_, err = io.ReadFull(r, make([]byte, 8))
	require.NoError(t, err)
}

func TestMilestones(t *testing.T) {
	var l recordLogger
	cfg := DefaultConfig()
	cfg.Debug = &l
	d, err := New(context.Background(), pkasim.New(), cfg)
	require.NoError(t, err)

	_, err = d.Compute(context.Background(), ModAdd(64, big.NewInt(11), big.NewInt(11), big.NewInt(13)))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pka: hse ready",
		"pka: rng enabled",
		"pka: initialized",
		"pka: starting modadd",
		"pka: 11 + 11 (mod 13) = 9",
		"00000000 00000009",
	}, l.lines)
}

func TestTrace(t *testing.T) {
	var l recordLogger
	cfg := DefaultConfig()
	cfg.Debug = &l
	cfg.Trace = true
	_, err := New(context.Background(), pkasim.New(pkasim.WithLatency(0)), cfg)
	require.NoError(t, err)

	require.NotEmpty(t, l.lines)
	assert.Equal(t, "  pka >>  write 0x56020c00 = 0x00010000", l.lines[1])
}
