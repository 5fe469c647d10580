package pka

// HAL is the register access layer used by the driver.
//
// Addresses are physical bus addresses. Each call is exactly one 32-bit bus
// transfer; implementations must not merge, reorder or cache accesses.
type HAL interface {
	// Read32 reads the word at addr.
	Read32(addr uint32) uint32
	// Write32 writes v to the word at addr.
	Write32(addr uint32, v uint32)
}

// register is a handle to a single 32-bit peripheral register.
type register struct {
	hal  HAL
	addr uint32
}

func (r register) Get() uint32 {
	return r.hal.Read32(r.addr)
}

func (r register) Set(v uint32) {
	r.hal.Write32(r.addr, v)
}

// SetBits reads the register, sets the bits in v and writes it back.
func (r register) SetBits(v uint32) {
	r.Set(r.Get() | v)
}

// ClearBits reads the register, clears the bits in v and writes it back.
func (r register) ClearBits(v uint32) {
	r.Set(r.Get() &^ v)
}

// HasBits reports whether any of the bits in v are set.
func (r register) HasBits(v uint32) bool {
	return r.Get()&v != 0
}

// ReplaceBits replaces the field at pos, selected by mask, with value.
func (r register) ReplaceBits(value uint32, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}
