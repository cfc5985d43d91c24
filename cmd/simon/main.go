// Command simon drives the out-of-band reassembly, archival, and
// compression pipeline for a running OpenFOAM-style case directory.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
