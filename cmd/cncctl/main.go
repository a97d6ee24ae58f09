// Command cncctl is a thin operator CLI over package cncstream: list
// serial ports, stream a G-code file, or drive the built-in simulator.
package main

import (
	"fmt"
	"os"

	"github.com/dustwave-cnc/cncstream/cmd/cncctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
