package hv

import (
	"errors"
	"testing"
)

func testGuest(t *testing.T) (*Guest, *Dispatcher) {
	t.Helper()
	g := NewGuest("test", 2)
	return g, NewDispatcher(g)
}

func TestDispatchSetGetFlags(t *testing.T) {
	_, d := testGuest(t)

	const mask = DebugFlags(0xDEAD_0001_FFFF)
	if _, err := d.Dispatch(0, SetFlagsOp{Flags: mask}); err != nil {
		t.Fatal(err)
	}
	res, err := d.Dispatch(0, GetFlagsOp{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Flags != mask {
		t.Errorf("got flags %016x, want %016x", uint64(res.Flags), uint64(mask))
	}

	// Flags are per-vcpu.
	res, err = d.Dispatch(1, GetFlagsOp{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Flags != 0 {
		t.Errorf("vcpu 1 flags = %016x, want 0", uint64(res.Flags))
	}
}

func TestDispatchInvalidVcpu(t *testing.T) {
	_, d := testGuest(t)

	if _, err := d.Dispatch(2, GetFlagsOp{}); !errors.Is(err, ErrInvalidVcpu) {
		t.Errorf("err = %v, want ErrInvalidVcpu", err)
	}
}

func TestDispatchDestroyedGuest(t *testing.T) {
	g, d := testGuest(t)

	g.Destroy()
	if _, err := d.Dispatch(0, GetFlagsOp{}); !errors.Is(err, ErrInvalidVcpu) {
		t.Errorf("err = %v, want ErrInvalidVcpu", err)
	}
}

func TestDispatchGetTC(t *testing.T) {
	g, d := testGuest(t)

	v, _ := g.Vcpu(0)
	v.SetRR(0, 9)
	v.InsertTC(TrEntry{RID: 9, Vaddr: 0x1000, Paddr: 0x5000, PageShift: 12})
	v.InsertTC(TrEntry{RID: 9, Vaddr: 0x2000, Paddr: 0x6000, PageShift: 12})

	res, err := d.Dispatch(0, GetTCOp{Capacity: 1})
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
	if res.Count != 2 || len(res.Entries) != 1 {
		t.Fatalf("got %d entries, count %d", len(res.Entries), res.Count)
	}

	res, err = d.Dispatch(0, GetTCOp{Capacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 2 || len(res.Entries) != 2 {
		t.Fatalf("got %d entries, count %d", len(res.Entries), res.Count)
	}
}

func TestDispatchTranslate(t *testing.T) {
	g, d := testGuest(t)

	v, _ := g.Vcpu(1)
	v.WritePSR(PSRDT)
	v.SetRR(0, 5)
	v.InsertTC(TrEntry{RID: 5, Vaddr: 0x7000, Paddr: 0xB000, PageShift: 12})

	res, err := d.Dispatch(1, TranslateOp{Vaddr: 0x7042})
	if err != nil {
		t.Fatal(err)
	}
	if res.Paddr != 0xB042 {
		t.Errorf("paddr = %#x, want 0xB042", res.Paddr)
	}

	if _, err := d.Dispatch(1, TranslateOp{Vaddr: 0x9000}); !errors.Is(err, ErrNotMapped) {
		t.Errorf("err = %v, want ErrNotMapped", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		code uint64
		p    Payload
		want DebugOp
	}{
		{1, Payload{Word: 0x1F}, SetFlagsOp{Flags: 0x1F}},
		{2, Payload{}, GetFlagsOp{}},
		{3, Payload{Count: 16}, GetTCOp{Capacity: 16}},
		{4, Payload{Word: 0xCAFE}, TranslateOp{Vaddr: 0xCAFE}},
	}
	for _, tt := range tests {
		op, err := Decode(tt.code, tt.p)
		if err != nil {
			t.Fatalf("Decode(%d): %v", tt.code, err)
		}
		if op != tt.want {
			t.Errorf("Decode(%d) = %#v, want %#v", tt.code, op, tt.want)
		}
	}
}

func TestDecodeInvalidOpcode(t *testing.T) {
	g, d := testGuest(t)

	v, _ := g.Vcpu(0)
	v.SetDebugFlags(0x42)

	for _, code := range []uint64{0, 5, 99} {
		if _, err := Decode(code, Payload{}); !errors.Is(err, ErrInvalidOp) {
			t.Errorf("Decode(%d) err = %v, want ErrInvalidOp", code, err)
		}
	}

	// A rejected opcode leaves debug state untouched.
	res, err := d.Dispatch(0, GetFlagsOp{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Flags != 0x42 {
		t.Errorf("flags changed by rejected opcode: %016x", uint64(res.Flags))
	}
}

type bogusOp struct{}

func (bogusOp) Code() OpCode { return 99 }

func TestDispatchUnknownOp(t *testing.T) {
	_, d := testGuest(t)

	if _, err := d.Dispatch(0, bogusOp{}); !errors.Is(err, ErrInvalidOp) {
		t.Errorf("err = %v, want ErrInvalidOp", err)
	}
}
