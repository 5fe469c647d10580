package pka

// halDebug traces every register transfer.
type halDebug struct {
	id   string
	l    Logger
	next HAL
}

func (h *halDebug) Read32(addr uint32) uint32 {
	v := h.next.Read32(addr)
	h.l.Printf("%5s <<  read  %#08x = %#08x", h.id, addr, v)
	return v
}

func (h *halDebug) Write32(addr uint32, v uint32) {
	h.l.Printf("%5s >>  write %#08x = %#08x", h.id, addr, v)
	h.next.Write32(addr, v)
}
