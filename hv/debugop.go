package hv

import (
	"fmt"

	"vmdbg/hv/log"
)

// OpCode is the numeric debug operation selector. Values are ABI.
type OpCode uint64

const (
	OpSetFlags  OpCode = 1
	OpGetFlags  OpCode = 2
	OpGetTC     OpCode = 3
	OpTranslate OpCode = 4
)

// DebugOp is one typed debug operation: exactly one concrete type per
// opcode, each carrying its own payload, so an opcode/payload mismatch is
// not representable.
type DebugOp interface {
	Code() OpCode
}

type SetFlagsOp struct{ Flags DebugFlags }
type GetFlagsOp struct{}
type GetTCOp struct{ Capacity int }
type TranslateOp struct{ Vaddr uint64 }

func (SetFlagsOp) Code() OpCode  { return OpSetFlags }
func (GetFlagsOp) Code() OpCode  { return OpGetFlags }
func (GetTCOp) Code() OpCode     { return OpGetTC }
func (TranslateOp) Code() OpCode { return OpTranslate }

// Payload is the raw wire union accompanying a numeric opcode: a single
// 64-bit word (flags mask or virtual address, depending on the opcode) or an
// entry-buffer capacity.
type Payload struct {
	Word  uint64 // SET_FLAGS mask, TRANSLATE virtual address
	Count uint64 // GET_TC capacity
}

// Decode maps a numeric opcode and its raw payload to a typed operation.
// Unknown opcodes fail with ErrInvalidOp.
func Decode(code uint64, p Payload) (DebugOp, error) {
	switch OpCode(code) {
	case OpSetFlags:
		return SetFlagsOp{Flags: DebugFlags(p.Word)}, nil
	case OpGetFlags:
		return GetFlagsOp{}, nil
	case OpGetTC:
		return GetTCOp{Capacity: int(p.Count)}, nil
	case OpTranslate:
		return TranslateOp{Vaddr: p.Word}, nil
	}
	return nil, fmt.Errorf("%w: opcode %d", ErrInvalidOp, code)
}

// Result of one dispatched operation. Only the fields relevant to the
// opcode are populated.
type Result struct {
	Flags   DebugFlags // GET_FLAGS
	Entries []TrEntry  // GET_TC, truncated to the requested capacity
	Count   int        // GET_TC, true entry count
	Paddr   uint64     // TRANSLATE
}

// Dispatcher routes debug operations to a guest's vcpus. It owns no state:
// it validates the target, serializes operations per vcpu, and delegates.
type Dispatcher struct {
	guest *Guest
}

func NewDispatcher(g *Guest) *Dispatcher {
	return &Dispatcher{guest: g}
}

// Dispatch runs one debug operation against the target vcpu and blocks
// until it completes. Operations against the same vcpu are serialized; a
// failing operation leaves all debug and translation state untouched.
func (d *Dispatcher) Dispatch(id VcpuID, op DebugOp) (Result, error) {
	v, err := d.guest.Vcpu(id)
	if err != nil {
		return Result{}, err
	}

	v.opMu.Lock()
	defer v.opMu.Unlock()

	log.ModDbg.DebugZ("debug op").
		Uint("vcpu", uint(id)).
		Uint64("opcode", uint64(op.Code())).
		End()

	switch op := op.(type) {
	case SetFlagsOp:
		v.SetDebugFlags(op.Flags)
		return Result{}, nil
	case GetFlagsOp:
		return Result{Flags: v.DebugFlags()}, nil
	case GetTCOp:
		entries, count, err := v.VTLBSnapshot(op.Capacity)
		return Result{Entries: entries, Count: count}, err
	case TranslateOp:
		paddr, err := v.Translate(op.Vaddr)
		return Result{Paddr: paddr}, err
	}
	return Result{}, fmt.Errorf("%w: %T", ErrInvalidOp, op)
}
