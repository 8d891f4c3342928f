// Package checker runs the diagnostic engine over query files: it parses
// each file with the configured reader, diagnoses every top-level pattern
// and collects syntax errors and structural issues into a Report.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/diagnostic"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax/treesitter"
)

const tracerName = "querycheck/checker"

// ErrUnknownParser is returned by ParserFor for an unsupported backend name.
var ErrUnknownParser = errors.New("unknown parser backend")

// ParserFor returns the query reader selected by a config backend name.
func ParserFor(name string) (syntax.Parser, error) {
	switch name {
	case config.ParserTreeSitter:
		return treesitter.New(), nil
	case config.ParserNative, "":
		return syntax.NativeParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
	}
}

// Checker checks query sources against grammars. It is safe for
// concurrent use.
type Checker struct {
	parser        syntax.Parser
	logger        *slog.Logger
	tracer        trace.Tracer
	metrics       *observability.CheckMetrics
	maxIterations int
	workers       int
}

// Option configures a Checker.
type Option func(*Checker)

// WithParser sets the query reader. The default is the native reader.
func WithParser(p syntax.Parser) Option {
	return func(c *Checker) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer. When unset the global tracer provider is used.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Checker) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithMetrics records check statistics on m.
func WithMetrics(m *observability.CheckMetrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithMaxIterations caps the generations of each pattern diagnosis.
func WithMaxIterations(n int) Option {
	return func(c *Checker) {
		c.maxIterations = n
	}
}

// WithWorkers bounds the files checked at once by CheckFiles.
func WithWorkers(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		parser:        syntax.NativeParser{},
		logger:        slog.Default(),
		maxIterations: diagnostic.MaxIterations,
		workers:       config.DefaultCheckWorkers,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	return c
}

// Check diagnoses source against g. The returned report is complete even
// when err is non-nil: err joins the patterns whose diagnosis failed on a
// grammar defect, and those patterns are absent from Report.Results.
func (c *Checker) Check(ctx context.Context, g *grammar.Grammar, path, source string) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "check.file", trace.WithAttributes(
		attribute.String("file.path", path),
		attribute.String("grammar.name", g.Name),
	))
	defer span.End()

	started := time.Now()

	tree, err := c.parser.Parse(ctx, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")

		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	f := pattern.NewFile(tree, g)
	engine := diagnostic.New(g,
		diagnostic.WithLogger(c.logger.With("file", path)),
		diagnostic.WithMaxIterations(c.maxIterations),
	)

	results, diagErr := engine.Diagnose(f)

	report := &Report{
		Path:         path,
		Language:     g.Name,
		Patterns:     len(f.Roots()),
		SyntaxErrors: tree.Errors(),
		Results:      results,
		Duration:     time.Since(started),
	}

	span.SetAttributes(
		attribute.Int("pattern.count", report.Patterns),
		attribute.Int("check.issues", len(report.Issues())),
		attribute.Int("check.syntax_errors", len(report.SyntaxErrors)),
	)

	if diagErr != nil {
		span.RecordError(diagErr)
		span.SetStatus(codes.Error, "diagnosis failed")
		c.logger.WarnContext(ctx, "pattern diagnosis failed", "file", path, "error", diagErr)
	}

	c.metrics.RecordFile(ctx, report.stats())

	c.logger.DebugContext(ctx, "checked query file",
		"file", path,
		"patterns", report.Patterns,
		"issues", len(report.Issues()),
		"duration", report.Duration,
	)

	if diagErr != nil {
		return report, fmt.Errorf("check %s: %w", path, diagErr)
	}

	return report, nil
}
