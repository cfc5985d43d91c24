package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"simon/internal/openfoam"
	"simon/internal/verify"
)

var statusVerify bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a read-only snapshot of the case directory's lifecycle stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if caseDir == "" {
			return fmt.Errorf("--case-dir is required")
		}
		state, err := openfoam.New(caseDir)
		if err != nil {
			return err
		}
		split := state.SplitTimes()
		reconstructed := state.ReconstructedTimes()
		tarred := state.TarredTimes()
		compressed := state.CompressedFiles()

		fmt.Printf("case directory: %s\n", caseDir)
		fmt.Printf("split times:         %d (%v)\n", len(split), split)
		fmt.Printf("reconstructed times: %d (%v)\n", len(reconstructed), reconstructed)
		fmt.Printf("tarred times:        %d (%v)\n", len(tarred), tarred)
		fmt.Printf("compressed groups:   %d (%v)\n", len(compressed), compressed)

		if statusVerify {
			printArchiveVerification(caseDir, tarred, compressed)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusVerify, "verify", false, "also walk every sealed .tar/.tgz and report integrity")
}

// printArchiveVerification runs the same best-effort, read-only integrity
// check the monitor loop applies to freshly sealed archives, on demand,
// against every archive currently on disk.
func printArchiveVerification(caseDir string, tarred, compressed []string) {
	fmt.Println("archive verification:")
	for _, t := range tarred {
		path := filepath.Join(caseDir, t+".tar")
		if err := verify.Tar(path); err != nil {
			fmt.Printf("  FAIL %s: %v\n", path, err)
		} else {
			fmt.Printf("  OK   %s\n", path)
		}
	}
	for _, name := range compressed {
		path := filepath.Join(caseDir, name)
		if err := verify.Tgz(path); err != nil {
			fmt.Printf("  FAIL %s: %v\n", path, err)
		} else {
			fmt.Printf("  OK   %s\n", path)
		}
	}
}
