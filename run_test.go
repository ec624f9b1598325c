package main

import (
	"testing"

	"vmdbg/hv"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		err  bool
	}{
		{"none", 0, false},
		{"0x1ffff", 0x1ffff, false},
		{"98304", 0x18000, false},
		{"kern-sstep", 1, false},
		{"privop,rfi,tc", uint64(hv.EvPrivop.Flag() | hv.EvRFI.Flag() | hv.EvTCModify.Flag()), false},
		{"force-ss,force-db", 0x6000, false},
		{"bogus", 0, true},
		{"privop,bogus", 0, true},
	}
	for _, tt := range tests {
		got, err := parseFlags(tt.in)
		if tt.err != (err != nil) {
			t.Fatalf("parseFlags(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseFlags(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestParseAddr(t *testing.T) {
	for _, s := range []string{"0x4000", "4000"} {
		addr, err := parseAddr(s)
		if err != nil {
			t.Fatal(err)
		}
		if addr != 0x4000 {
			t.Errorf("parseAddr(%q) = %#x", s, addr)
		}
	}
	if _, err := parseAddr("zz"); err == nil {
		t.Error("parseAddr(zz) succeeded")
	}
}
