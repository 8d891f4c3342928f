package observability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedNamespaces are the attribute namespaces querycheck sets on spans.
var exportedNamespaces = []string{"check.", "file.", "grammar.", "pattern.", "mcp.", "http."}

// sourceKeys carry query text and never leave the process.
var sourceKeys = []string{"check.source", "pattern.source"}

// sourceFilter forwards ended spans to a delegate with every attribute
// outside exportedNamespaces removed, along with the query source keys.
type sourceFilter struct {
	sdktrace.SpanProcessor

	logger *slog.Logger
}

// NewAttributeFilter wraps delegate so exported spans keep only querycheck
// attributes. Dropped keys are logged at Warn when logger is non-nil.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &sourceFilter{SpanProcessor: delegate, logger: logger}
}

// OnEnd hands the delegate a view of s with the filtered attributes.
func (f *sourceFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.SpanProcessor.OnEnd(&filteredSpan{ReadOnlySpan: s, keep: f.keep})
}

// Shutdown shuts the delegate down.
func (f *sourceFilter) Shutdown(ctx context.Context) error {
	err := f.SpanProcessor.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *sourceFilter) keep(key string) bool {
	exported := key == "error" || slices.ContainsFunc(exportedNamespaces, func(ns string) bool {
		return strings.HasPrefix(key, ns)
	})

	if exported && !slices.Contains(sourceKeys, key) {
		return true
	}

	if f.logger != nil {
		f.logger.Warn("attribute blocked by filter", "key", key)
	}

	return false
}

type filteredSpan struct {
	sdktrace.ReadOnlySpan

	keep func(key string) bool
}

// Attributes returns the attributes that pass the filter.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	return slices.DeleteFunc(slices.Clone(s.ReadOnlySpan.Attributes()), func(kv attribute.KeyValue) bool {
		return !s.keep(string(kv.Key))
	})
}
