package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal        = "querycheck.check.files.total"
	metricPatternsTotal     = "querycheck.check.patterns.total"
	metricIssuesTotal       = "querycheck.check.issues.total"
	metricSyntaxErrorsTotal = "querycheck.check.syntax_errors.total"
	metricTruncatedTotal    = "querycheck.check.truncated.total"
	metricRounds            = "querycheck.check.rounds"
	metricCheckDuration     = "querycheck.check.duration.seconds"

	attrKind     = "kind"
	attrLanguage = "language"
)

var roundBucketBoundaries = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}

// CheckMetrics holds OTel instruments for query checking.
type CheckMetrics struct {
	files        metric.Int64Counter
	patterns     metric.Int64Counter
	issues       metric.Int64Counter
	syntaxErrors metric.Int64Counter
	truncated    metric.Int64Counter
	rounds       metric.Int64Histogram
	duration     metric.Float64Histogram
}

// CheckStats summarizes one checked query file, decoupled from checker types.
type CheckStats struct {
	Language     string
	Patterns     int
	IssuesByKind map[string]int
	SyntaxErrors int
	Truncated    int
	// Rounds holds the simulation rounds of each pattern.
	Rounds   []int
	Duration time.Duration
}

// NewCheckMetrics creates check metric instruments from the given meter.
func NewCheckMetrics(mt metric.Meter) (*CheckMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Query files checked"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	patterns, err := mt.Int64Counter(metricPatternsTotal,
		metric.WithDescription("Top-level patterns checked"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPatternsTotal, err)
	}

	issues, err := mt.Int64Counter(metricIssuesTotal,
		metric.WithDescription("Structural issues by kind"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricIssuesTotal, err)
	}

	syntaxErrors, err := mt.Int64Counter(metricSyntaxErrorsTotal,
		metric.WithDescription("Query syntax errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSyntaxErrorsTotal, err)
	}

	truncated, err := mt.Int64Counter(metricTruncatedTotal,
		metric.WithDescription("Patterns whose diagnosis hit the iteration cap"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTruncatedTotal, err)
	}

	rounds, err := mt.Int64Histogram(metricRounds,
		metric.WithDescription("Simulation rounds per pattern"),
		metric.WithUnit("{round}"),
		metric.WithExplicitBucketBoundaries(roundBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRounds, err)
	}

	duration, err := mt.Float64Histogram(metricCheckDuration,
		metric.WithDescription("Per-file check duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCheckDuration, err)
	}

	return &CheckMetrics{
		files:        files,
		patterns:     patterns,
		issues:       issues,
		syntaxErrors: syntaxErrors,
		truncated:    truncated,
		rounds:       rounds,
		duration:     duration,
	}, nil
}

// RecordFile records the statistics of one checked file.
// Safe to call on a nil receiver (no-op).
func (cm *CheckMetrics) RecordFile(ctx context.Context, stats CheckStats) {
	if cm == nil {
		return
	}

	lang := metric.WithAttributes(attribute.String(attrLanguage, stats.Language))

	cm.files.Add(ctx, 1, lang)
	cm.patterns.Add(ctx, int64(stats.Patterns), lang)
	cm.syntaxErrors.Add(ctx, int64(stats.SyntaxErrors), lang)
	cm.truncated.Add(ctx, int64(stats.Truncated), lang)
	cm.duration.Record(ctx, stats.Duration.Seconds(), lang)

	for kind, count := range stats.IssuesByKind {
		cm.issues.Add(ctx, int64(count), metric.WithAttributes(
			attribute.String(attrLanguage, stats.Language),
			attribute.String(attrKind, kind),
		))
	}

	for _, rounds := range stats.Rounds {
		cm.rounds.Record(ctx, int64(rounds), lang)
	}
}
