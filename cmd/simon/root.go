package main

import (
	"os"

	"github.com/spf13/cobra"

	"simon/internal/bootstrap"
	"simon/internal/utils"
)

var (
	configFile             string
	caseDir                string
	keepEvery              string
	compressEvery          string
	numSimultaneousTasks   int
	sleepTimePerUpdate     string
	recheckEveryNumUpdates int
	backendName            string
	requeue                bool
)

var rootCmd = &cobra.Command{
	Use:   "simon",
	Short: "Out-of-band reassembly, archival, and compression manager for parallel simulation output",
	Long: `simon drives a pipeline that reassembles partitioned timestep output into a
single directory, archives it into a tar file, and bundles groups of tars
into compressed .tgz files, deleting intermediate artifacts as soon as they
are no longer needed. It derives all progress from the case directory's own
filesystem state, so it can be stopped and restarted at any point.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	root, err := utils.ExeDir()
	if err != nil {
		root, _ = os.Getwd()
	}
	defaultConfigDir := bootstrap.GetDefaultConfigDir(root)
	defaultConfigFile := bootstrap.GetConfigPath(defaultConfigDir)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&caseDir, "case-dir", "", "OpenFOAM-style case directory to drive")
	rootCmd.PersistentFlags().StringVar(&keepEvery, "keep-every", "", "keep every Nth timestep (exact decimal)")
	rootCmd.PersistentFlags().StringVar(&compressEvery, "compress-every", "", "bundle tars into a compressed group every Nth timestep (exact decimal, strict multiple of keep-every)")
	rootCmd.PersistentFlags().IntVar(&numSimultaneousTasks, "num-simultaneous-tasks", 4, "maximum number of external tasks running at once")
	rootCmd.PersistentFlags().StringVar(&sleepTimePerUpdate, "sleep-time-per-update", "2s", "sleep duration between task queue updates")
	rootCmd.PersistentFlags().IntVar(&recheckEveryNumUpdates, "recheck-every-num-updates", 1, "how many updates pass between re-planning (0 disables periodic re-planning)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "local", "job backend: local | slurm")
	rootCmd.PersistentFlags().BoolVar(&requeue, "requeue", true, "requeue the producing job on first reconstruct")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
