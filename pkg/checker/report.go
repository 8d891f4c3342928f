package checker

import (
	"time"

	"github.com/Sumatoshi-tech/querycheck/pkg/diagnostic"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
)

// Report is the outcome of checking one query file.
type Report struct {
	Path     string
	Language string
	// Patterns counts the top-level patterns of the file.
	Patterns     int
	SyntaxErrors []syntax.SyntaxError
	Results      []diagnostic.Result
	Duration     time.Duration
}

// Issues returns the structural issues in pattern order.
func (r *Report) Issues() []diagnostic.Issue {
	return diagnostic.Issues(r.Results)
}

// Truncated counts patterns whose diagnosis hit the iteration cap.
func (r *Report) Truncated() int {
	count := 0

	for _, res := range r.Results {
		if res.Truncated {
			count++
		}
	}

	return count
}

// Clean reports whether the file has neither syntax errors nor issues.
func (r *Report) Clean() bool {
	return len(r.SyntaxErrors) == 0 && len(r.Issues()) == 0
}

func (r *Report) stats() observability.CheckStats {
	stats := observability.CheckStats{
		Language:     r.Language,
		Patterns:     r.Patterns,
		IssuesByKind: make(map[string]int),
		SyntaxErrors: len(r.SyntaxErrors),
		Truncated:    r.Truncated(),
		Rounds:       make([]int, 0, len(r.Results)),
		Duration:     r.Duration,
	}

	for _, res := range r.Results {
		stats.Rounds = append(stats.Rounds, res.Rounds)

		for _, issue := range res.Issues {
			stats.IssuesByKind[string(issue.Kind)]++
		}
	}

	return stats
}

// Record is the serialized form of a Report.
type Record struct {
	Path         string               `json:"path"                    yaml:"path"`
	Language     string               `json:"language,omitempty"      yaml:"language,omitempty"`
	Patterns     int                  `json:"patterns"                yaml:"patterns"`
	SyntaxErrors []syntax.SyntaxError `json:"syntax_errors,omitempty" yaml:"syntax_errors,omitempty"`
	Issues       []diagnostic.Record  `json:"issues"                  yaml:"issues"`
	Truncated    int                  `json:"truncated,omitempty"     yaml:"truncated,omitempty"`
	Error        string               `json:"error,omitempty"         yaml:"error,omitempty"`
}

// Record returns the serialized form of the report.
func (r *Report) Record() Record {
	issues := r.Issues()

	rec := Record{
		Path:         r.Path,
		Language:     r.Language,
		Patterns:     r.Patterns,
		SyntaxErrors: r.SyntaxErrors,
		Issues:       make([]diagnostic.Record, 0, len(issues)),
		Truncated:    r.Truncated(),
	}

	for _, issue := range issues {
		rec.Issues = append(rec.Issues, issue.Record())
	}

	return rec
}
