package pka

import "time"

// ClockSource selects the oscillator started before the RNG and the PKA.
type ClockSource int

const (
	// ClockHSE is the external high speed oscillator.
	ClockHSE ClockSource = iota
	// ClockHSI is the internal high speed oscillator.
	ClockHSI
)

func (c ClockSource) String() string {
	switch c {
	case ClockHSE:
		return "hse"
	case ClockHSI:
		return "hsi"
	default:
		return "unknown"
	}
}

// PollConfig bounds every wait on a hardware status bit.
type PollConfig struct {
	// MaxPolls is the number of status reads before giving up. Zero means
	// poll forever, which is what firmware without a watchdog usually does.
	MaxPolls int
	// Interval is the delay between two reads. Zero busy-spins.
	Interval time.Duration
}

// Config is the configuration object for a device.
type Config struct {
	// DeviceType selects the register map.
	DeviceType DeviceType
	// ClockSource is the oscillator enabled and awaited during bring-up.
	ClockSource ClockSource
	// Poll bounds the waits on readiness and completion bits.
	Poll PollConfig
	// SettleReads is the number of dummy reads of PKA_CR between disabling
	// and re-enabling the accelerator.
	SettleReads int
	// Trace logs every register transfer to Debug.
	Trace bool
	// Debug is used for diagnostic output.
	Debug Logger
}

// DefaultConfig returns a configuration suited for hosts: waits are bounded
// so unresponsive hardware results in ErrTimeout.
func DefaultConfig() Config {
	return Config{
		DeviceType:  DeviceSTM32WBA55,
		ClockSource: ClockHSE,
		Poll: PollConfig{
			MaxPolls: 1_000_000,
		},
		SettleReads: 10,
	}
}

// BareMetalConfig returns a configuration that polls without a bound, as
// firmware running on the device itself does.
func BareMetalConfig() Config {
	cfg := DefaultConfig()
	cfg.Poll.MaxPolls = 0
	return cfg
}
