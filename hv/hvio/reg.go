package hvio

import (
	"fmt"

	"vmdbg/hv/log"
)

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// Reg64 is a 64-bit control register. Bits covered by RoMask keep their
// current value on writes.
type Reg64 struct {
	Name   string
	Value  uint64
	RoMask uint64

	Flags   RWFlags
	ReadCb  func(val uint64) uint64
	WriteCb func(old uint64, val uint64)
}

func (reg Reg64) String() string {
	s := fmt.Sprintf("%s{%016x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg64) write(val uint64) {
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg64) Write64(val uint64) {
	if reg.Flags&ReadOnlyFlag != 0 {
		log.ModHv.ErrorZ("invalid Write64 to readonly reg").
			String("name", reg.Name).
			Hex64("val", val).
			End()
		return
	}
	reg.write(val)
}

func (reg *Reg64) Read64() uint64 {
	if reg.Flags&WriteOnlyFlag != 0 {
		log.ModHv.ErrorZ("invalid Read64 from writeonly reg").
			String("name", reg.Name).
			End()
		return 0
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}

// SetBits ORs mask into the register value, bypassing RoMask but still
// triggering the write callback.
func (reg *Reg64) SetBits(mask uint64) {
	old := reg.Value
	reg.Value |= mask
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

// ClearBits clears mask from the register value, bypassing RoMask but still
// triggering the write callback.
func (reg *Reg64) ClearBits(mask uint64) {
	old := reg.Value
	reg.Value &^= mask
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}
