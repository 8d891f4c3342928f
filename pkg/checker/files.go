package checker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
)

// Resolver finds the grammar a query file is checked against.
type Resolver interface {
	Resolve(queryPath string) (*grammar.Grammar, error)
}

// FileResult pairs a path with its report or the error that prevented one.
type FileResult struct {
	Path   string
	Report *Report
	Err    error
}

// CheckFiles checks every path concurrently, at most WithWorkers files at a
// time, and returns the results in input order. Per-file failures are kept
// on the FileResult; only context cancellation fails the whole call.
func (c *Checker) CheckFiles(ctx context.Context, resolver Resolver, paths []string) ([]FileResult, error) {
	ctx, span := c.tracer.Start(ctx, "check.files")
	defer span.End()

	results := make([]FileResult, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.workers)

	for idx, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return fmt.Errorf("check %s: %w", path, err)
			}

			results[idx] = c.checkFile(groupCtx, resolver, path)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

func (c *Checker) checkFile(ctx context.Context, resolver Resolver, path string) FileResult {
	res := FileResult{Path: path}

	g, err := resolver.Resolve(path)
	if err != nil {
		res.Err = fmt.Errorf("resolve grammar for %s: %w", path, err)

		return res
	}

	source, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", path, err)

		return res
	}

	res.Report, res.Err = c.Check(ctx, g, path, string(source))

	return res
}

// Failed reports whether any result carries an error, syntax error or issue.
func Failed(results []FileResult) bool {
	for _, res := range results {
		if res.Err != nil || res.Report == nil || !res.Report.Clean() {
			return true
		}
	}

	return false
}

// Errs joins the per-file errors of results.
func Errs(results []FileResult) error {
	errs := make([]error, 0, len(results))

	for _, res := range results {
		errs = append(errs, res.Err)
	}

	return errors.Join(errs...)
}
