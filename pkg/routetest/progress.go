package routetest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/newtron-network/routecheck/pkg/cli"
)

// ProgressReporter receives lifecycle callbacks while cases run.
type ProgressReporter interface {
	SuiteStart(topology string, cases []Case)
	CaseStart(name string, index, total int)
	CaseEnd(result *CaseResult, index, total int)
	SuiteEnd(results []*CaseResult, duration time.Duration)
}

type nopProgress struct{}

func (nopProgress) SuiteStart(string, []Case)             {}
func (nopProgress) CaseStart(string, int, int)            {}
func (nopProgress) CaseEnd(*CaseResult, int, int)         {}
func (nopProgress) SuiteEnd([]*CaseResult, time.Duration) {}

// ConsoleProgress is an append-only terminal progress reporter. It never
// rewrites lines, so output is safe for pipes and CI logs.
type ConsoleProgress struct {
	W       io.Writer
	Verbose bool

	dotWidth int
}

// NewConsoleProgress creates a ConsoleProgress writing to stdout.
func NewConsoleProgress(verbose bool) *ConsoleProgress {
	return &ConsoleProgress{W: os.Stdout, Verbose: verbose}
}

func (p *ConsoleProgress) SuiteStart(topology string, cases []Case) {
	maxName := 0
	for _, c := range cases {
		maxName = max(maxName, len(c.Name))
	}
	p.dotWidth = maxName + 6

	fmt.Fprintf(p.W, "\nroutecheck: %d cases, topology: %s\n\n", len(cases), topology)
	t := cli.NewTableTo(p.W, "#", "CASE", "PREFIX", "NEXT HOPS", "RELOAD").WithPrefix("  ")
	for i, c := range cases {
		reload := ""
		if c.ConfigReload {
			reload = "yes"
		}
		t.Row(fmt.Sprint(i+1), c.Name, c.Prefix.String(), fmt.Sprint(c.Count), reload)
	}
	t.Flush()
	fmt.Fprintln(p.W)
}

func (p *ConsoleProgress) CaseStart(name string, index, total int) {
	if p.Verbose {
		fmt.Fprintf(p.W, "  [%d/%d]  %s\n", index+1, total, name)
	}
}

func (p *ConsoleProgress) CaseEnd(result *CaseResult, index, total int) {
	if p.Verbose {
		for _, ph := range result.Phases {
			fmt.Fprintf(p.W, "          %s %s  (%s)\n", cli.DotPad(ph.Name, p.dotWidth), colorStatus(ph.Status), formatDuration(ph.Duration))
			if ph.Message != "" && ph.Status != StatusPassed {
				fmt.Fprintf(p.W, "               %s\n", cli.Dim(ph.Message))
			}
		}
		fmt.Fprintf(p.W, "          %s  (%s)\n\n", colorStatus(result.Status), formatDuration(result.Duration))
		return
	}

	tag := fmt.Sprintf("[%d/%d]", index+1, total)
	padded := cli.DotPad(result.Name, p.dotWidth)
	if result.Status == StatusSkipped {
		fmt.Fprintf(p.W, "  %-7s %s %s\n", tag, padded, colorStatus(result.Status))
		return
	}
	fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, colorStatus(result.Status), formatDuration(result.Duration))
}

func (p *ConsoleProgress) SuiteEnd(results []*CaseResult, duration time.Duration) {
	counts := map[Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}

	fmt.Fprintf(p.W, "\n---\n")
	fmt.Fprintf(p.W, "routecheck: %d cases", len(results))
	var parts []string
	if n := counts[StatusPassed]; n > 0 {
		parts = append(parts, cli.Green(fmt.Sprintf("%d passed", n)))
	}
	if n := counts[StatusFailed]; n > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d failed", n)))
	}
	if n := counts[StatusError]; n > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d errored", n)))
	}
	if n := counts[StatusSkipped]; n > 0 {
		parts = append(parts, cli.Yellow(fmt.Sprintf("%d skipped", n)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(p.W, ": %s", strings.Join(parts, ", "))
	}
	fmt.Fprintf(p.W, "  (%s)\n", formatDuration(duration))

	if counts[StatusFailed]+counts[StatusError] > 0 {
		fmt.Fprintf(p.W, "\n  FAILED:\n")
		for i, r := range results {
			if r.Status != StatusFailed && r.Status != StatusError {
				continue
			}
			fmt.Fprintf(p.W, "    [%d]  %s\n", i+1, r.Name)
			if r.Err != nil {
				fmt.Fprintf(p.W, "         %s\n", r.Err)
			}
		}
	}
	if counts[StatusSkipped] > 0 {
		fmt.Fprintf(p.W, "\n  SKIPPED:\n")
		for i, r := range results {
			if r.Status == StatusSkipped {
				fmt.Fprintf(p.W, "    [%d]  %s %s\n", i+1, cli.DotPad(r.Name, p.dotWidth), r.SkipReason)
			}
		}
	}
	fmt.Fprintln(p.W)
}

func colorStatus(s Status) string {
	return cli.Status(string(s))
}

func formatDuration(d time.Duration) string {
	return cli.Duration(d)
}
