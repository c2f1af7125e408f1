package fillsim

import (
	"time"

	"github.com/kaifufi/exchange-fillsim-go/fill"
	"github.com/kaifufi/exchange-fillsim-go/scenario"
)

// RunSummary is the result of one run over the selected suites
type RunSummary struct {
	RunID      string         `json:"runId"`
	Target     string         `json:"target"`
	ChainID    ChainID        `json:"chainId"`
	StartedAt  time.Time      `json:"startedAt"`
	Duration   time.Duration  `json:"duration"`
	Total      int            `json:"total"`
	Passed     int            `json:"passed"`
	Mismatched int            `json:"mismatched"`
	Skipped    int            `json:"skipped"`
	Suites     []SuiteSummary `json:"suites"`
}

// SuiteSummary counts the outcomes of one suite
type SuiteSummary struct {
	Name       string           `json:"name"`
	Total      int              `json:"total"`
	Passed     int              `json:"passed"`
	Mismatched int              `json:"mismatched"`
	Skipped    int              `json:"skipped"`
	Filled     *fill.Results    `json:"filled"`
	Failures   []FailureSummary `json:"failures,omitempty"`
}

// FailureSummary describes a scenario whose target disagreed with its
// expectation
type FailureSummary struct {
	Scenario   string   `json:"scenario"`
	OrderHash  string   `json:"orderHash"`
	Mismatches []string `json:"mismatches"`
}

// OK reports whether no scenario mismatched
func (s *RunSummary) OK() bool {
	return s.Mismatched == 0
}

func (s *RunSummary) add(report *scenario.SuiteReport) {
	suite := SuiteSummary{
		Name:       report.Name,
		Total:      report.Total,
		Passed:     report.Passed,
		Mismatched: report.Mismatched,
		Skipped:    report.Skipped,
		Filled:     report.Filled,
	}
	for _, outcome := range report.Failures {
		suite.Failures = append(suite.Failures, FailureSummary{
			Scenario:   outcome.Scenario.String(),
			OrderHash:  outcome.OrderHash.Hex(),
			Mismatches: outcome.Mismatches,
		})
	}
	s.Suites = append(s.Suites, suite)
	s.Total += report.Total
	s.Passed += report.Passed
	s.Mismatched += report.Mismatched
	s.Skipped += report.Skipped
}
