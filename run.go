package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/jx"

	"vmdbg/hv"
	"vmdbg/rpc"
)

// controlMain connects to the monitor's control port and issues the selected
// debug operation.
func controlMain(cli CLI) int {
	client, err := rpc.NewClient(cli.Port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to reach monitor on port %d: %v\n", cli.Port, err)
		return 1
	}
	defer client.Close()

	switch cli.mode {
	case setFlagsMode:
		return setFlagsMain(client, cli)
	case getFlagsMode:
		return getFlagsMain(client, cli)
	case vtlbMode:
		return vtlbMain(client, cli)
	case translateMode:
		return translateMain(client, cli)
	}
	return 1
}

func setFlagsMain(client *rpc.Client, cli CLI) int {
	mask, err := parseFlags(cli.SetFlags.Flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := client.SetFlags(cli.Vcpu, mask); err != nil {
		fmt.Fprintf(os.Stderr, "set-flags failed: %v\n", err)
		return 1
	}
	return 0
}

func getFlagsMain(client *rpc.Client, cli CLI) int {
	flags, err := client.GetFlags(cli.Vcpu)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get-flags failed: %v\n", err)
		return 1
	}
	fmt.Printf("%#017x (%s)\n", flags, hv.DebugFlags(flags))
	return 0
}

func vtlbMain(client *rpc.Client, cli CLI) int {
	reply, err := client.VTLB(cli.Vcpu, cli.VTLB.Capacity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vtlb query failed: %v\n", err)
		return 1
	}

	if cli.VTLB.JSON {
		os.Stdout.Write(vtlbJSON(reply))
		fmt.Println()
		return 0
	}

	fmt.Printf("%d entries", reply.Count)
	if reply.Truncated {
		fmt.Printf(" (showing %d)", len(reply.Entries))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RID\tVADDR\tPADDR\tSIZE\tAR")
	for _, e := range reply.Entries {
		fmt.Fprintf(w, "%06x\t%016x\t%016x\t%d\t%d\n",
			e.RID, e.Vaddr, e.Paddr, e.Size(), e.AR)
	}
	w.Flush()
	return 0
}

func vtlbJSON(reply rpc.VTLBReply) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("count")
	e.Int(reply.Count)
	e.FieldStart("truncated")
	e.Bool(reply.Truncated)
	e.FieldStart("entries")
	e.ArrStart()
	for _, tr := range reply.Entries {
		e.ObjStart()
		e.FieldStart("rid")
		e.UInt64(tr.RID)
		e.FieldStart("vaddr")
		e.UInt64(tr.Vaddr)
		e.FieldStart("paddr")
		e.UInt64(tr.Paddr)
		e.FieldStart("size")
		e.UInt64(tr.Size())
		e.FieldStart("ar")
		e.UInt(uint(tr.AR))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func translateMain(client *rpc.Client, cli CLI) int {
	vaddr, err := parseAddr(cli.Translate.Vaddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	reply, err := client.Translate(cli.Vcpu, vaddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "translate failed: %v\n", err)
		return 1
	}

	if cli.Translate.JSON {
		var e jx.Encoder
		e.ObjStart()
		e.FieldStart("vaddr")
		e.UInt64(vaddr)
		e.FieldStart("mapped")
		e.Bool(reply.Mapped)
		if reply.Mapped {
			e.FieldStart("paddr")
			e.UInt64(reply.Paddr)
		}
		e.ObjEnd()
		os.Stdout.Write(e.Bytes())
		fmt.Println()
		return 0
	}

	if !reply.Mapped {
		fmt.Printf("%016x: not mapped\n", vaddr)
		return 1
	}
	fmt.Printf("%016x -> %016x\n", vaddr, reply.Paddr)
	return 0
}

// parseFlags turns the set-flags argument into a mask: a numeric literal,
// 'none', or comma-separated condition names.
func parseFlags(s string) (uint64, error) {
	if s == "none" {
		return 0, nil
	}
	if mask, err := strconv.ParseUint(s, 0, 64); err == nil {
		return mask, nil
	}

	var mask hv.DebugFlags
	for _, name := range strings.Split(s, ",") {
		flag, ok := hv.FlagByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown debug condition %q", name)
		}
		mask |= flag
	}
	return uint64(mask), nil
}

func parseAddr(s string) (uint64, error) {
	addr, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return addr, nil
}
