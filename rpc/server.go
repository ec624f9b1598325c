package rpc

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"strconv"

	"vmdbg/hv"
)

type FlagsArgs struct {
	Vcpu  uint
	Flags uint64
}

type VTLBArgs struct {
	Vcpu     uint
	Capacity int
}

type VTLBReply struct {
	Entries   []hv.TrEntry
	Count     int  // true entry count at snapshot time
	Truncated bool // Entries holds fewer than Count records
}

type TranslateArgs struct {
	Vcpu  uint
	Vaddr uint64
}

type TranslateReply struct {
	Paddr  uint64
	Mapped bool
}

// debugProxy adapts the dispatcher to net/rpc method signatures.
type debugProxy struct {
	d *hv.Dispatcher
}

func (dp *debugProxy) SetFlags(args FlagsArgs, _ *struct{}) error {
	_, err := dp.d.Dispatch(hv.VcpuID(args.Vcpu), hv.SetFlagsOp{Flags: hv.DebugFlags(args.Flags)})
	return err
}

func (dp *debugProxy) GetFlags(vcpu uint, reply *uint64) error {
	res, err := dp.d.Dispatch(hv.VcpuID(vcpu), hv.GetFlagsOp{})
	if err != nil {
		return err
	}
	*reply = uint64(res.Flags)
	return nil
}

func (dp *debugProxy) VTLB(args VTLBArgs, reply *VTLBReply) error {
	res, err := dp.d.Dispatch(hv.VcpuID(args.Vcpu), hv.GetTCOp{Capacity: args.Capacity})
	if errors.Is(err, hv.ErrBufferTooSmall) {
		// Not fatal: the truncated entries and the true count still go back
		// to the caller.
		reply.Truncated = true
	} else if err != nil {
		return err
	}
	reply.Entries = res.Entries
	reply.Count = res.Count
	return nil
}

func (dp *debugProxy) Translate(args TranslateArgs, reply *TranslateReply) error {
	res, err := dp.d.Dispatch(hv.VcpuID(args.Vcpu), hv.TranslateOp{Vaddr: args.Vaddr})
	if errors.Is(err, hv.ErrNotMapped) {
		reply.Mapped = false
		return nil
	}
	if err != nil {
		return err
	}
	reply.Paddr = res.Paddr
	reply.Mapped = true
	return nil
}

func (dp *debugProxy) IsReady(_ *struct{}, reply *bool) error {
	*reply = true
	return nil
}

type Server struct {
	io.Closer
}

// NewServer starts serving debug operations for the given dispatcher on the
// control port. The hypervisor runtime embeds one per guest.
func NewServer(port int, d *hv.Dispatcher) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("debug", &debugProxy{d: d}); err != nil {
		panic("failed to register RPC server: " + err.Error())
	}
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}

	modRPC.InfoZ("rpc server listening").Int("port", port).End()
	go http.Serve(l, srv)
	return &Server{Closer: l}, nil
}
