package hv

import (
	"fmt"

	"vmdbg/hv/log"
)

const (
	NumTRSlots = 8  // pinned translation registers
	NumTCSlots = 64 // translation cache lines
	NumRegions = 8  // region registers, selected by va[63:61]
)

// TrEntry is one virtual translation record: a pinned translation register
// or a translation cache line. Snapshots hand these to the control plane
// unmodified.
type TrEntry struct {
	RID       uint64 // region id the mapping belongs to
	Vaddr     uint64 // virtual page base
	Paddr     uint64 // physical page base
	PageShift uint   // log2 of the page size
	AR        uint8  // access rights
	Valid     bool
}

// Size returns the page size in bytes.
func (e TrEntry) Size() uint64 {
	return 1 << e.PageShift
}

func (e TrEntry) String() string {
	return fmt.Sprintf("rid:%06x va:%016x pa:%016x ps:%d ar:%d",
		e.RID, e.Vaddr, e.Paddr, e.PageShift, e.AR)
}

// covers reports whether the entry maps va under region id rid.
func (e TrEntry) covers(rid, va uint64) bool {
	return e.Valid && e.RID == rid && va-e.Vaddr < e.Size()
}

// overlaps reports whether the entry intersects [va, va+size) in the given
// region.
func (e TrEntry) overlaps(rid, va, size uint64) bool {
	return e.Valid && e.RID == rid && e.Vaddr < va+size && va < e.Vaddr+e.Size()
}

// vtlb holds a vcpu's virtual translation structures. Slot order is the
// snapshot order: TR slots first, then TC slots, so repeated snapshots of an
// unchanged vcpu return identical sequences.
type vtlb struct {
	tr [NumTRSlots]TrEntry
	tc [NumTCSlots]TrEntry

	tcNext int // FIFO replacement cursor
}

// align masks an entry's addresses down to its page boundary.
func align(e TrEntry) TrEntry {
	mask := e.Size() - 1
	e.Vaddr &^= mask
	e.Paddr &^= mask
	e.Valid = true
	return e
}

// region returns the index of the region register covering va.
func region(va uint64) uint {
	return uint(va >> 61)
}

// InsertTR pins a translation into TR slot n, replacing its previous
// content. Fires the TR trap gate before the insert takes effect.
func (v *Vcpu) InsertTR(n int, e TrEntry) error {
	if n < 0 || n >= NumTRSlots {
		return fmt.Errorf("%w: tr %d", ErrInvalidSlot, n)
	}
	v.Hit(EvTRModify)

	e = align(e)
	v.mu.Lock()
	v.vtlb.tr[n] = e
	v.mu.Unlock()

	log.ModVTLB.DebugZ("tr insert").
		Uint("vcpu", uint(v.ID)).
		Int("slot", n).
		Stringer("entry", e).
		End()
	return nil
}

// PurgeTR invalidates TR slot n. Fires the TR trap gate.
func (v *Vcpu) PurgeTR(n int) error {
	if n < 0 || n >= NumTRSlots {
		return fmt.Errorf("%w: tr %d", ErrInvalidSlot, n)
	}
	v.Hit(EvTRModify)

	v.mu.Lock()
	v.vtlb.tr[n] = TrEntry{}
	v.mu.Unlock()
	return nil
}

// InsertTC inserts a translation cache entry. Any line already mapping the
// same range is invalidated first, then the entry goes into the next slot in
// FIFO order. Fires the TC trap gate before the insert takes effect.
func (v *Vcpu) InsertTC(e TrEntry) {
	v.Hit(EvTCModify)

	e = align(e)
	v.mu.Lock()
	for i := range v.vtlb.tc {
		if v.vtlb.tc[i].overlaps(e.RID, e.Vaddr, e.Size()) {
			v.vtlb.tc[i] = TrEntry{}
		}
	}
	v.vtlb.tc[v.vtlb.tcNext] = e
	v.vtlb.tcNext = (v.vtlb.tcNext + 1) % NumTCSlots
	v.mu.Unlock()

	log.ModVTLB.DebugZ("tc insert").
		Uint("vcpu", uint(v.ID)).
		Stringer("entry", e).
		End()
}

// PurgeTC invalidates every translation cache line overlapping [va, va+size)
// in va's region. Fires the TC trap gate.
func (v *Vcpu) PurgeTC(va, size uint64) {
	v.Hit(EvTCModify)

	v.mu.Lock()
	rid := v.rr[region(va)]
	for i := range v.vtlb.tc {
		if v.vtlb.tc[i].overlaps(rid, va, size) {
			v.vtlb.tc[i] = TrEntry{}
		}
	}
	v.mu.Unlock()
}

// VTLBSnapshot returns a point-in-time view of the vcpu's valid translation
// entries, in slot order, along with the true entry count. At most capacity
// entries are copied; if that truncates the result the error is
// ErrBufferTooSmall and the returned entries are still valid. capacity 0 is
// the idiom for asking how many entries exist.
func (v *Vcpu) VTLBSnapshot(capacity int) ([]TrEntry, int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var entries []TrEntry
	count := 0
	collect := func(e TrEntry) {
		if !e.Valid {
			return
		}
		count++
		if len(entries) < capacity {
			entries = append(entries, e)
		}
	}
	for _, e := range v.vtlb.tr {
		collect(e)
	}
	for _, e := range v.vtlb.tc {
		collect(e)
	}

	if capacity > 0 && count > capacity {
		return entries, count, fmt.Errorf("%w: %d entries, capacity %d",
			ErrBufferTooSmall, count, capacity)
	}
	return entries, count, nil
}

// Translate resolves a guest virtual address to a guest physical address
// under the vcpu's current addressing mode: identity when data translation
// is off, otherwise a walk of the TR slots then the TC slots under the
// active region register. Read-only: a miss returns ErrNotMapped and inserts
// nothing.
func (v *Vcpu) Translate(va uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.PSR.Value&PSRDT == 0 {
		return va, nil
	}

	rid := v.rr[region(va)]
	for _, e := range v.vtlb.tr {
		if e.covers(rid, va) {
			return e.Paddr + (va - e.Vaddr), nil
		}
	}
	for _, e := range v.vtlb.tc {
		if e.covers(rid, va) {
			return e.Paddr + (va - e.Vaddr), nil
		}
	}
	return 0, fmt.Errorf("%w: %#x", ErrNotMapped, va)
}
