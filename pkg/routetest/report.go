package routetest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/newtron-network/routecheck/pkg/util"
)

// DateTimeFormat is the timestamp format used in reports.
const DateTimeFormat = "2006-01-02 15:04:05"

// Status is the outcome of a phase or a case.
type Status string

const (
	StatusPassed  Status = "PASS"
	StatusFailed  Status = "FAIL"
	StatusSkipped Status = "SKIP"
	StatusError   Status = "ERROR"
)

// StatusOf classifies err: verification failures FAIL, unsupported
// topologies SKIP, anything else is an ERROR.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusPassed
	case errors.Is(err, util.ErrUnsupportedTopology):
		return StatusSkipped
	case IsAssertionFailure(err):
		return StatusFailed
	default:
		return StatusError
	}
}

// CaseResult holds the result of one case.
type CaseResult struct {
	Name     string
	Prefix   string
	Topology string
	Platform string
	Status   Status
	Duration time.Duration
	Phases   []PhaseResult
	// Err is the first failure, wrapped in a *PhaseError.
	Err        error
	SkipReason string
}

// PhaseResult holds the result of one phase.
type PhaseResult struct {
	Name     string
	Status   Status
	Duration time.Duration
	Message  string
}

// phase runs fn as the named phase and records its result. A failure is
// returned wrapped in a *PhaseError.
func (r *CaseResult) phase(caseName, name string, fn func() error) error {
	log := util.WithPhase(caseName, name)
	log.Info("start")
	start := time.Now()
	err := fn()
	pr := PhaseResult{Name: name, Status: StatusOf(err), Duration: time.Since(start)}
	if err != nil {
		pr.Message = err.Error()
		log.Warnf("%s: %v", pr.Status, err)
	} else {
		log.Infof("done (%s)", pr.Duration.Round(time.Millisecond))
	}
	r.Phases = append(r.Phases, pr)
	if err != nil {
		return &PhaseError{Phase: name, Err: err}
	}
	return nil
}

func (r *CaseResult) finish(err error, d time.Duration) {
	r.Duration = d
	r.Err = err
	r.Status = StatusOf(err)
	if r.Status == StatusSkipped {
		r.SkipReason = err.Error()
	}
}

// Phase returns the named phase result, or nil if the phase did not run.
func (r *CaseResult) Phase(name string) *PhaseResult {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}

// ReportGenerator produces reports from case results.
type ReportGenerator struct {
	Results []*CaseResult
}

// WriteMarkdown writes a markdown report to path.
func (g *ReportGenerator) WriteMarkdown(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return g.Markdown(f)
}

// Markdown renders the markdown report to w.
func (g *ReportGenerator) Markdown(w io.Writer) error {
	fmt.Fprintf(w, "# routecheck Report - %s\n\n", time.Now().Format(DateTimeFormat))

	fmt.Fprintln(w, "| Case | Prefix | Topology | Platform | Result | Duration | Note |")
	fmt.Fprintln(w, "|------|--------|----------|----------|--------|----------|------|")
	for _, r := range g.Results {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
			r.Name, r.Prefix, r.Topology, r.Platform, r.Status,
			r.Duration.Round(time.Second), r.SkipReason)
	}

	hasFailures := false
	for _, r := range g.Results {
		for _, p := range r.Phases {
			if p.Status != StatusFailed && p.Status != StatusError {
				continue
			}
			if !hasFailures {
				fmt.Fprintf(w, "\n## Failures\n\n")
				hasFailures = true
			}
			fmt.Fprintf(w, "### %s\n", r.Name)
			fmt.Fprintf(w, "Phase %s (%s):\n\n```\n%s\n```\n\n", p.Name, p.Status, p.Message)
		}
	}
	return nil
}

// WriteJUnit writes a JUnit XML report for CI integration.
func (g *ReportGenerator) WriteJUnit(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := g.JUnit()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// JUnit renders the JUnit XML report: one suite per case, one test case per
// phase.
func (g *ReportGenerator) JUnit() ([]byte, error) {
	suites := junitTestSuites{}

	for _, r := range g.Results {
		suite := junitTestSuite{
			Name: r.Name,
			Time: r.Duration.Seconds(),
		}

		if r.Status == StatusSkipped {
			suite.Tests = 1
			suite.Skipped = 1
			suite.Cases = append(suite.Cases, junitTestCase{
				Name:      r.Name,
				ClassName: r.Name,
				Skipped:   &junitSkipped{Message: r.SkipReason},
			})
			suites.Suites = append(suites.Suites, suite)
			continue
		}

		for _, p := range r.Phases {
			suite.Tests++
			tc := junitTestCase{
				Name:      p.Name,
				ClassName: r.Name,
				Time:      p.Duration.Seconds(),
			}
			switch p.Status {
			case StatusFailed:
				suite.Failures++
				tc.Failure = &junitFailure{Message: p.Message, Type: p.Name}
			case StatusSkipped:
				suite.Skipped++
				tc.Skipped = &junitSkipped{Message: p.Message}
			case StatusError:
				suite.Errors++
				tc.Error = &junitError{Message: p.Message, Type: p.Name}
			}
			suite.Cases = append(suite.Cases, tc)
		}

		suites.Suites = append(suites.Suites, suite)
	}

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

// JUnit XML types

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}
