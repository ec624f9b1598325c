package hv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mappedVcpu returns a vcpu in virtual addressing mode with a few known
// mappings: one pinned TR and two TC lines, all in region 0 (rid 42).
func mappedVcpu(t *testing.T) *Vcpu {
	t.Helper()

	v := newVcpu(0)
	v.WritePSR(PSRDT | PSRIT)
	if err := v.SetRR(0, 42); err != nil {
		t.Fatal(err)
	}

	err := v.InsertTR(0, TrEntry{RID: 42, Vaddr: 0x4000, Paddr: 0x80_4000, PageShift: 14, AR: 3})
	if err != nil {
		t.Fatal(err)
	}
	v.InsertTC(TrEntry{RID: 42, Vaddr: 0x10_0000, Paddr: 0x90_0000, PageShift: 12, AR: 1})
	v.InsertTC(TrEntry{RID: 42, Vaddr: 0x20_0000, Paddr: 0xA0_0000, PageShift: 12, AR: 1})
	return v
}

func TestTranslateHit(t *testing.T) {
	v := mappedVcpu(t)

	tests := []struct {
		va, pa uint64
	}{
		{0x4000, 0x80_4000},    // TR base
		{0x4ABC, 0x80_4ABC},    // TR offset
		{0x7FFF, 0x80_7FFF},    // TR last byte of 16K page
		{0x10_0123, 0x90_0123}, // TC
		{0x20_0FFF, 0xA0_0FFF}, // TC last byte
	}
	for _, tt := range tests {
		pa, err := v.Translate(tt.va)
		if err != nil {
			t.Fatalf("Translate(%#x): %v", tt.va, err)
		}
		if pa != tt.pa {
			t.Errorf("Translate(%#x) = %#x, want %#x", tt.va, pa, tt.pa)
		}
	}
}

func TestTranslateMiss(t *testing.T) {
	v := mappedVcpu(t)

	for _, va := range []uint64{0x8000, 0x10_1000, 0xDEAD_BEEF_0000} {
		if _, err := v.Translate(va); !errors.Is(err, ErrNotMapped) {
			t.Errorf("Translate(%#x) err = %v, want ErrNotMapped", va, err)
		}
	}
}

func TestTranslateRegionID(t *testing.T) {
	v := mappedVcpu(t)

	// Same addresses under a different region id must miss.
	if err := v.SetRR(0, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Translate(0x4000); !errors.Is(err, ErrNotMapped) {
		t.Errorf("rid mismatch err = %v, want ErrNotMapped", err)
	}
}

func TestTranslatePhysicalMode(t *testing.T) {
	v := mappedVcpu(t)

	// Data translation off: identity mapping, even for unmapped addresses.
	v.WritePSR(0)
	pa, err := v.Translate(0xDEAD_0000)
	if err != nil {
		t.Fatal(err)
	}
	if pa != 0xDEAD_0000 {
		t.Errorf("physical mode Translate = %#x, want identity", pa)
	}
}

func TestSnapshotCount(t *testing.T) {
	v := mappedVcpu(t)

	entries, count, err := v.VTLBSnapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if len(entries) != 0 {
		t.Fatalf("capacity 0 copied %d entries", len(entries))
	}
}

func TestSnapshotTruncation(t *testing.T) {
	v := mappedVcpu(t)

	entries, count, err := v.VTLBSnapshot(2)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
	if count != 3 || len(entries) != 2 {
		t.Fatalf("got %d entries, count %d; want 2 entries, count 3", len(entries), count)
	}

	// Exact capacity: no truncation.
	entries, count, err = v.VTLBSnapshot(3)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 || len(entries) != 3 {
		t.Fatalf("got %d entries, count %d", len(entries), count)
	}

	// TR slots come first in slot order.
	if entries[0].PageShift != 14 {
		t.Errorf("first entry is not the pinned TR: %s", entries[0])
	}
}

func TestSnapshotDeterminism(t *testing.T) {
	v := mappedVcpu(t)

	first, _, err := v.VTLBSnapshot(NumTRSlots + NumTCSlots)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := v.VTLBSnapshot(NumTRSlots + NumTCSlots)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("snapshots differ (-first +second):\n%s", diff)
	}
}

func TestPurge(t *testing.T) {
	v := mappedVcpu(t)

	v.PurgeTC(0x10_0000, 0x1000)
	if _, err := v.Translate(0x10_0123); !errors.Is(err, ErrNotMapped) {
		t.Errorf("purged tc still maps: %v", err)
	}
	// The other TC line survives a range purge that misses it.
	if _, err := v.Translate(0x20_0123); err != nil {
		t.Errorf("unrelated tc purged: %v", err)
	}

	if err := v.PurgeTR(0); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Translate(0x4000); !errors.Is(err, ErrNotMapped) {
		t.Errorf("purged tr still maps: %v", err)
	}

	_, count, err := v.VTLBSnapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count after purges = %d, want 1", count)
	}
}

func TestInsertPurgeEvents(t *testing.T) {
	v := newVcpu(0)
	rec := &recordingDebugger{}
	v.SetDebugger(rec)
	v.SetDebugFlags(EvTRModify.Flag() | EvTCModify.Flag())

	v.InsertTR(1, TrEntry{RID: 1, Vaddr: 0x1000, PageShift: 12})
	v.InsertTC(TrEntry{RID: 1, Vaddr: 0x2000, PageShift: 12})
	v.PurgeTC(0x2000, 0x1000)
	v.PurgeTR(1)

	want := []DebugEvent{EvTRModify, EvTCModify, EvTCModify, EvTRModify}
	if len(rec.traps) != len(want) {
		t.Fatalf("got %d traps, want %d", len(rec.traps), len(want))
	}
	for i, ev := range want {
		if rec.traps[i].Event != ev {
			t.Errorf("trap %d: got %s, want %s", i, rec.traps[i].Event, ev)
		}
	}
}

func TestInsertTRBadSlot(t *testing.T) {
	v := newVcpu(0)
	if err := v.InsertTR(NumTRSlots, TrEntry{}); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("err = %v, want ErrInvalidSlot", err)
	}
	if err := v.PurgeTR(-1); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("err = %v, want ErrInvalidSlot", err)
	}
}
