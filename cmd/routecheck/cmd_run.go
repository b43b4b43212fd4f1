package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/util"
)

func newRunCmd() *cobra.Command {
	var (
		testbedPath string
		caseName    string
		all         bool
		seed        uint64
		junitPath   string
		reportPath  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run static route cases against a testbed",
		Long: `Run static route cases against a testbed.

Each case installs a static route, checks the kernel FIB, sends probe traffic
and checks that the route is advertised to the upstream BGP peers. Cases with
config_reload set also save the configuration, reload the switch, and verify
again. Every change is reverted on exit, including on failure or Ctrl-C.

Exit status is 0 when every case passes or is skipped, 1 when any case fails,
and 2 when the testbed could not be reached or a case errored.

Examples:
  routecheck run --testbed vms-t0.yaml --all
  routecheck run --case static_route_ipv6 -v
  routecheck run --all --seed 42 --junit out/junit.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if caseName == "" && !all {
				return fmt.Errorf("specify --case <name> or --all")
			}
			if caseName != "" && all {
				return fmt.Errorf("--case and --all are mutually exclusive")
			}

			s := loadSettings()
			tb, err := loadTestbed(testbedPath, s)
			if err != nil {
				return err
			}
			cases, err := tb.SelectCases(caseName)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pair, disconnect, err := connectPair(ctx, tb)
			if err != nil {
				return err
			}
			defer disconnect()

			dp, binder, closeHost, err := openHost(tb)
			if err != nil {
				return err
			}
			defer closeHost()

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			util.WithField("seed", seed).Info("next-hop selection seed")

			orch := &routetest.Orchestrator{
				Pair:         pair,
				Topology:     tb.Topology,
				Dataplane:    dp,
				Binder:       binder,
				UpstreamMap:  tb.UpstreamMap,
				FlowCounters: tb.FlowCounters,
				Timing:       tb.Timing,
				Rand:         rand.New(rand.NewPCG(seed, seed)),
				Progress:     routetest.NewConsoleProgress(verboseFlag),
			}
			results := orch.RunAll(ctx, cases)

			gen := &routetest.ReportGenerator{Results: results}
			if reportPath == "" {
				reportPath = filepath.Join(s.GetReportDir(), "report.md")
			}
			if err := gen.WriteMarkdown(reportPath); err != nil {
				util.Warnf("Could not write report %s: %v", reportPath, err)
			} else {
				fmt.Printf("Report: %s\n", reportPath)
			}
			if junitPath == "" {
				junitPath = s.JUnitPath
			}
			if junitPath != "" {
				if err := gen.WriteJUnit(junitPath); err != nil {
					util.Warnf("Could not write JUnit report %s: %v", junitPath, err)
				}
			}

			return runOutcome(results)
		},
	}

	cmd.Flags().StringVar(&testbedPath, "testbed", "", "Testbed file (default: settings, $ROUTECHECK_TESTBED, or testbed.yaml)")
	cmd.Flags().StringVar(&caseName, "case", "", "Run a single case by name")
	cmd.Flags().BoolVar(&all, "all", false, "Run every case of the testbed")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for next-hop selection (0 picks one)")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().StringVar(&reportPath, "report", "", "Markdown report path (default: <report_dir>/report.md)")

	return cmd
}

// runOutcome maps case results to the command's error and exit status.
func runOutcome(results []*routetest.CaseResult) error {
	var failed, errored int
	for _, r := range results {
		switch r.Status {
		case routetest.StatusFailed:
			failed++
		case routetest.StatusError:
			errored++
		}
	}
	if errored > 0 {
		return &exitError{code: exitInfra, err: fmt.Errorf("%d case(s) errored, %d failed", errored, failed)}
	}
	if failed > 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("%d case(s) failed", failed)}
	}
	return nil
}
