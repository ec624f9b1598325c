package hv

import (
	"fmt"
	"sync"
	"sync/atomic"

	"vmdbg/hv/hvio"
	"vmdbg/hv/log"
)

// PSR bits this layer cares about. Bit positions follow the architected
// processor status register layout.
const (
	PSRDT uint64 = 1 << 17 // data address translation
	PSRDB uint64 = 1 << 24 // debug breakpoint fault
	PSRIT uint64 = 1 << 36 // instruction address translation
	PSRSS uint64 = 1 << 40 // single step trap
)

type VcpuID uint

// A Vcpu is one virtualized processor of a guest. The debug flags word is
// read on hot emulation paths and is the only field shared lock-free; the
// translation structures (region registers and vtlb) are guarded by mu so
// control-plane reads never observe a half-updated entry.
type Vcpu struct {
	ID VcpuID

	// PSR is the virtualized processor status register. Writes that flip a
	// translation enable bit hit the mmu-switch trap gate.
	PSR hvio.Reg64

	dbgflags atomic.Uint64
	forced   uint64 // psr bits owned by the force flags, undone on clear

	opMu sync.Mutex // one outstanding debug operation at a time

	mu   sync.Mutex
	rr   [NumRegions]uint64
	vtlb vtlb

	dbg Debugger
}

func newVcpu(id VcpuID) *Vcpu {
	v := &Vcpu{ID: id}
	v.PSR = hvio.Reg64{
		Name: "psr",
		WriteCb: func(old, val uint64) {
			if (old^val)&(PSRDT|PSRIT) != 0 {
				v.Hit(EvMMUSwitch)
			}
		},
	}
	return v
}

// SetDebugger attaches dbg to the vcpu. Must be called before the guest
// starts executing; the execution engine reads the field without
// synchronization.
func (v *Vcpu) SetDebugger(dbg Debugger) {
	v.dbg = dbg
}

// DebugFlags returns the current debug condition mask.
func (v *Vcpu) DebugFlags() DebugFlags {
	return DebugFlags(v.dbgflags.Load())
}

// SetDebugFlags replaces the whole mask. The new value is visible to the
// trap gate on the next event check. Force bits are folded into the live
// PSR right away, so they take effect before the guest next resumes.
func (v *Vcpu) SetDebugFlags(f DebugFlags) {
	old := DebugFlags(v.dbgflags.Swap(uint64(f)))
	v.applyForce(old, f, FlagForceSS, PSRSS)
	v.applyForce(old, f, FlagForceDB, PSRDB)

	log.ModVcpu.DebugZ("debug flags set").
		Uint("vcpu", uint(v.ID)).
		Stringer("flags", f).
		End()
}

// applyForce makes the PSR track one force flag. A bit the guest had set on
// its own is left alone when the force flag drops.
func (v *Vcpu) applyForce(old, cur, flag DebugFlags, psrbit uint64) {
	switch {
	case cur&flag != 0 && old&flag == 0:
		if v.PSR.Value&psrbit == 0 {
			v.forced |= psrbit
			v.PSR.SetBits(psrbit)
		}
	case cur&flag == 0 && old&flag != 0:
		if v.forced&psrbit != 0 {
			v.forced &^= psrbit
			v.PSR.ClearBits(psrbit)
		}
	}
}

// WritePSR emulates a guest write to the processor status register.
func (v *Vcpu) WritePSR(val uint64) {
	v.PSR.Write64(val)
}

// SetRR loads region register n. The region id selects which vtlb entries
// are visible to translations in that region.
func (v *Vcpu) SetRR(n uint, rid uint64) error {
	if n >= NumRegions {
		return fmt.Errorf("region register %d out of range", n)
	}
	v.mu.Lock()
	v.rr[n] = rid
	v.mu.Unlock()
	return nil
}

// RR returns the region id held in region register n.
func (v *Vcpu) RR(n uint) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rr[n%NumRegions]
}

// A Guest is a set of vcpus created and destroyed together.
type Guest struct {
	Name  string
	vcpus []*Vcpu
}

// NewGuest creates a guest with nvcpus vcpus, debug flags all clear.
func NewGuest(name string, nvcpus int) *Guest {
	g := &Guest{Name: name}
	for i := range nvcpus {
		g.vcpus = append(g.vcpus, newVcpu(VcpuID(i)))
	}
	log.ModHv.InfoZ("guest created").
		String("name", name).
		Int("vcpus", nvcpus).
		End()
	return g
}

// Vcpu returns the target vcpu, or ErrInvalidVcpu if it does not exist (or
// the guest has been destroyed).
func (g *Guest) Vcpu(id VcpuID) (*Vcpu, error) {
	if int(id) >= len(g.vcpus) {
		return nil, fmt.Errorf("%w: vcpu %d", ErrInvalidVcpu, id)
	}
	return g.vcpus[id], nil
}

func (g *Guest) NumVcpus() int {
	return len(g.vcpus)
}

// Destroy tears the guest down. Debug state goes with the vcpus; any later
// operation against them fails with ErrInvalidVcpu.
func (g *Guest) Destroy() {
	log.ModHv.InfoZ("guest destroyed").String("name", g.Name).End()
	g.vcpus = nil
}
