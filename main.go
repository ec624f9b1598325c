package main

import (
	"fmt"
	"os"
)

const version = "0.2.0"

func main() {
	cli := parseArgs(os.Args[1:])

	if cli.mode == versionMode {
		fmt.Println("vmdbg", version)
		return
	}

	if cli.Port == 0 {
		cli.Port = LoadConfigOrDefault().Control.Port
	}

	os.Exit(controlMain(cli))
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s: %s\n", fmt.Sprintf(format, args...), err)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
