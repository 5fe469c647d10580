//go:build tinygo

package pka

import (
	"runtime/volatile"
	"unsafe"
)

type mmioHAL struct{}

// MMIO accesses the registers directly. It is only usable by code running
// on the device itself.
var MMIO HAL = mmioHAL{}

func (mmioHAL) Read32(addr uint32) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

func (mmioHAL) Write32(addr uint32, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), v)
}
