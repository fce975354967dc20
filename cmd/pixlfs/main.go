// pixlfs is a command-line file manager for Pixl devices.
package main

import (
	"os"

	"github.com/opd-ai/pixlfs/internal/cli"
)

// Version is injected at build time with -ldflags.
var Version = "v0.1.0"

func main() {
	cli.Version = Version
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
