package pka

import (
	"errors"

	"github.com/northvolt/go-pka/pka/pkareg"
)

// DeviceType represents a physical device type.
type DeviceType int

const (
	DeviceSTM32WBA55 DeviceType = iota
)

func (dt DeviceType) String() string {
	switch dt {
	case DeviceSTM32WBA55:
		return "STM32WBA55"
	default:
		return "unknown"
	}
}

// window is a memory mapped register range of one peripheral.
type window struct {
	name string
	base uint32
	size int
}

// memoryMap holds the peripheral windows of a device.
type memoryMap struct {
	rcc window
	rng window
	pka window
}

func (m memoryMap) windows() []window {
	return []window{m.rcc, m.rng, m.pka}
}

var memoryMaps = map[DeviceType]memoryMap{
	DeviceSTM32WBA55: {
		rcc: window{"rcc", pkareg.RCCBase, pkareg.RCCSize},
		rng: window{"rng", pkareg.RNGBase, pkareg.RNGSize},
		pka: window{"pka", pkareg.PKABase, pkareg.PKASize},
	},
}

func getMemoryMap(dt DeviceType) (memoryMap, error) {
	m, ok := memoryMaps[dt]
	if !ok {
		return memoryMap{}, errors.New("pka: unknown memory map for device")
	}
	return m, nil
}
