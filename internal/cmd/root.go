// Package cmd implements the goherd command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/internal/config"
	"github.com/fleetworks/goherd/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile string
	verbose bool

	// cfg is resolved once in the root PersistentPreRunE and threaded
	// into every command from here.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "goherd",
	Short: "Track batch job collections and their resubmission lineage",
	Long: `goherd tracks externally-scheduled batch jobs grouped into collections.

It records each logical job's primary submission and resubmission attempts,
resolves which attempt represents a job's current outcome, evaluates whether
a whole collection has settled, and delivers deduplicated notifications when
it has.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		observability.InitCLILogger(cfg.Logging.Level, verbose)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("goherd %s (commit %s, built %s)\n",
			versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}
