//go:build !tinygo

package pka

import (
	"fmt"
	"io"
	"sync/atomic"

	"periph.io/x/host/v3"
	"periph.io/x/host/v3/pmem"
)

// memHAL accesses the peripherals through /dev/mem.
type memHAL struct {
	windows []memWindow
}

type memWindow struct {
	window
	view  *pmem.View
	words []uint32
}

// NewMemHAL maps the register windows of the device into the process.
//
// This requires a host with the peripherals on its physical bus and
// permission to open /dev/mem. Close the returned io.Closer to unmap.
func NewMemHAL(dt DeviceType) (HAL, io.Closer, error) {
	mm, err := getMemoryMap(dt)
	if err != nil {
		return nil, nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}

	h := &memHAL{}
	for _, w := range mm.windows() {
		v, err := pmem.Map(uint64(w.base), w.size)
		if err != nil {
			_ = h.Close()
			return nil, nil, fmt.Errorf("pka: failed to map %s: %w", w.name, err)
		}
		h.windows = append(h.windows, memWindow{w, v, v.Uint32()})
	}
	return h, h, nil
}

func (h *memHAL) word(addr uint32) *uint32 {
	for _, w := range h.windows {
		if addr >= w.base && addr < w.base+uint32(w.size) {
			return &w.words[(addr-w.base)/wordSize]
		}
	}
	panic(fmt.Sprintf("pka: address %#08x outside mapped windows", addr))
}

func (h *memHAL) Read32(addr uint32) uint32 {
	return atomic.LoadUint32(h.word(addr))
}

func (h *memHAL) Write32(addr uint32, v uint32) {
	atomic.StoreUint32(h.word(addr), v)
}

func (h *memHAL) Close() error {
	var err error
	for _, w := range h.windows {
		if e := w.view.Close(); e != nil && err == nil {
			err = e
		}
	}
	h.windows = nil
	return err
}
