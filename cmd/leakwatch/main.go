// Package main provides the leakwatch command line tool and server binary.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errThresholdReached) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}
