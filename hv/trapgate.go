package hv

import (
	"fmt"
	"strings"

	"vmdbg/hv/log"
)

//go:generate go tool stringer -type=DebugEvent

// DebugEvent identifies one instrumented site of the guest execution engine.
// The numeric value is the bit index of the matching condition in the vcpu
// debug flags, and is ABI: debuggers hand us masks built from these indices.
type DebugEvent uint

const (
	EvKernSstep  DebugEvent = iota // kernel single step
	EvKernDebug                    // kernel breakpoint or watchpoint
	EvKernBranch                   // kernel taken branch
	EvExtInt                       // external interrupt injection
	EvExcept                       // exception injection
	EvEvent                        // event injection
	EvPrivop                       // privileged instruction emulation (slow path)
	EvPAL                          // emulated PAL call, at entry
	EvSAL                          // emulated SAL call, at entry
	EvEFI                          // emulated EFI call, at entry
	EvRFI                          // rfi emulation (slow path, before exec)
	EvMMUSwitch                    // address translation mode switch
	EvBadPaddr                     // bad guest physical address
)

// Bits 13 and 14 are not events: they force psr.ss and psr.db.
const (
	EvTRModify DebugEvent = iota + 15 // itr/ptr
	EvTCModify                        // itc/ptc.l/ptc.g/ptc.ga
)

// DebugFlags is the per-vcpu debug condition bitmask. One bit per trap
// category, plus the two force bits. Bits outside the defined range have no
// effect but round-trip unchanged through set/get.
type DebugFlags uint64

const (
	FlagForceSS DebugFlags = 1 << 13 // force psr.ss
	FlagForceDB DebugFlags = 1 << 14 // force psr.db
)

// Flag returns the debug flag bit gating this event.
func (ev DebugEvent) Flag() DebugFlags {
	return 1 << ev
}

// flagNames maps control-plane spellings to individual flag bits, in bit
// order.
var flagNames = []struct {
	name string
	flag DebugFlags
}{
	{"kern-sstep", EvKernSstep.Flag()},
	{"kern-debug", EvKernDebug.Flag()},
	{"kern-branch", EvKernBranch.Flag()},
	{"extint", EvExtInt.Flag()},
	{"except", EvExcept.Flag()},
	{"event", EvEvent.Flag()},
	{"privop", EvPrivop.Flag()},
	{"pal", EvPAL.Flag()},
	{"sal", EvSAL.Flag()},
	{"efi", EvEFI.Flag()},
	{"rfi", EvRFI.Flag()},
	{"mmu", EvMMUSwitch.Flag()},
	{"bad-paddr", EvBadPaddr.Flag()},
	{"force-ss", FlagForceSS},
	{"force-db", FlagForceDB},
	{"tr", EvTRModify.Flag()},
	{"tc", EvTCModify.Flag()},
}

// FlagByName returns the flag bit for one control-plane flag name.
func FlagByName(name string) (DebugFlags, bool) {
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, true
		}
	}
	return 0, false
}

func FlagNames() []string {
	names := make([]string, len(flagNames))
	for i, fn := range flagNames {
		names[i] = fn.name
	}
	return names
}

func (f DebugFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
			f &^= fn.flag
		}
	}
	if f != 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(f)))
	}
	return strings.Join(names, ",")
}

// A Debugger receives gated trap notifications. OnTrap runs synchronously on
// the vcpu's own execution path and may block to keep the guest suspended
// until the control plane is done inspecting it.
type Debugger interface {
	OnTrap(v *Vcpu, ev DebugEvent)
}

// ShouldTrap reports whether the given event category is gated on this vcpu.
// Single atomic load and bit test, safe on hot emulation paths.
func (v *Vcpu) ShouldTrap(ev DebugEvent) bool {
	return DebugFlags(v.dbgflags.Load())&ev.Flag() != 0
}

// Hit is the trap gate. The execution engine calls it at each instrumented
// event site, before the event takes effect. If the event's category is
// gated and a debugger is attached, the vcpu delivers the event and does not
// return until the debugger does.
func (v *Vcpu) Hit(ev DebugEvent) {
	if !v.ShouldTrap(ev) {
		return
	}
	log.ModDbg.DebugZ("gated event fired").
		Uint("vcpu", uint(v.ID)).
		Stringer("event", ev).
		End()
	if v.dbg != nil {
		v.dbg.OnTrap(v, ev)
	}
}

// A Trap is one delivered gated event, as seen by the control plane.
type Trap struct {
	Vcpu  VcpuID
	Event DebugEvent
}

// Suspender is a Debugger that suspends the vcpu at every gated trap until
// the control plane resumes it. The vcpu goroutine blocks inside OnTrap; the
// control plane picks the trap up with Wait, inspects the vcpu, then calls
// Resume.
type Suspender struct {
	traps chan Trap
	acks  chan struct{}
}

func NewSuspender() *Suspender {
	return &Suspender{
		traps: make(chan Trap),
		acks:  make(chan struct{}),
	}
}

func (s *Suspender) OnTrap(v *Vcpu, ev DebugEvent) {
	s.traps <- Trap{Vcpu: v.ID, Event: ev}
	<-s.acks
}

// Wait blocks until a gated trap fires and returns it. The vcpu stays
// suspended until Resume.
func (s *Suspender) Wait() Trap {
	return <-s.traps
}

func (s *Suspender) Resume() {
	s.acks <- struct{}{}
}
