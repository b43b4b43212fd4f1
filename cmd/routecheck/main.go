package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/util"
	"github.com/newtron-network/routecheck/pkg/version"
)

var (
	verboseFlag bool
	jsonLogs    bool
)

// Exit codes: 1 when a case failed, 2 when a case errored or the testbed
// was unreachable.
const (
	exitFailure = 1
	exitInfra   = 2
)

// exitError carries the exit status for a run whose cases did not all pass.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func main() {
	rootCmd := &cobra.Command{
		Use:   "routecheck",
		Short: "Static route convergence checks for SONiC",
		Long: `Routecheck installs static routes on a SONiC switch and verifies that they
reach the kernel, forward traffic, are redistributed to BGP peers, survive a
config reload, and are withdrawn again.

  routecheck list --testbed vms-t0.yaml
  routecheck run --testbed vms-t0.yaml --all
  routecheck run --case static_route_ecmp --junit out/junit.xml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if jsonLogs {
				util.SetJSONFormat()
			}
			if verboseFlag {
				return util.SetLogLevel("debug")
			}
			return util.SetLogLevel("warn")
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log in JSON")

	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		newSettingsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				if !version.IsRelease() {
					fmt.Println("routecheck dev build (use 'make build' for version info)")
				} else {
					fmt.Printf("routecheck %s\n", version.Info())
				}
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		var infra *routetest.InfraError
		if errors.As(err, &infra) {
			os.Exit(exitInfra)
		}
		os.Exit(exitFailure)
	}
}
