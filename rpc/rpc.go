// Package rpc exposes a guest's debug-operation dispatcher to an external
// control plane (a debugger or monitor process) over net/rpc.
package rpc

import (
	"net"

	"vmdbg/hv/log"
)

var modRPC = log.NewModule("rpc")

func UnusedPort() int {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		panic("pickUnusedPort failed: " + err.Error())
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		panic("pickUnusedPort failed: " + err.Error())
	}
	return port
}
