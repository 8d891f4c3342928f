package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/querycheck/pkg/checker"
	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
)

// queryGlob selects query files below a directory argument.
const queryGlob = "**/*.scm"

// Check command errors.
var (
	ErrNoQueryFiles = errors.New("no query files matched")
	ErrCheckFailed  = errors.New("query check failed")
)

type checkOptions struct {
	grammar string
	format  string
	parser  string
	workers int
	noColor bool
}

// NewCheckCommand creates the check subcommand.
func NewCheckCommand(global *GlobalOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <file|dir|glob>...",
		Short: "Check query files against their grammar",
		Long: `Check tree-sitter query files against the grammar they are written for.

Arguments may be files, directories (searched for **/*.scm) or doublestar
globs. The grammar of queries/<lang>/*.scm is found through the configured
languages and search paths; --grammar sets the grammar used otherwise.

Examples:
  querycheck check queries/
  querycheck check 'queries/lua/*.scm' --format json
  querycheck check highlights.scm --grammar src/grammar.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), global, opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.grammar, "grammar", "g", "", "grammar.json used when no language grammar matches")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: text, json, yaml or table")
	cmd.Flags().StringVar(&opts.parser, "parser", "", "query parser backend: treesitter or native")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "files checked concurrently")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runCheck(
	ctx context.Context, global *GlobalOptions, opts *checkOptions, args []string, out, errOut io.Writer,
) error {
	if opts.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	sess, err := setup(global, observability.ModeCLI, errOut)
	if err != nil {
		return err
	}
	defer sess.close()

	cfg := sess.cfg
	applyCheckOverrides(cfg, opts)

	validateErr := config.Validate(cfg)
	if validateErr != nil {
		return fmt.Errorf("invalid flags: %w", validateErr)
	}

	paths, err := expandQueryPaths(args)
	if err != nil {
		return err
	}

	store, release, err := sess.openStore(cfg.Grammar)
	if err != nil {
		return err
	}
	defer release()

	ck, err := newChecker(cfg, sess)
	if err != nil {
		return err
	}

	results, err := ck.CheckFiles(ctx, store, paths)
	if err != nil {
		return err
	}

	renderErr := render(out, cfg.Check.Format, results)
	if renderErr != nil {
		return renderErr
	}

	if cfg.Check.Format == config.FormatText && !global.Quiet {
		writeSummary(errOut, summarize(results))
	}

	if checker.Failed(results) {
		return ErrCheckFailed
	}

	return nil
}

func applyCheckOverrides(cfg *config.Config, opts *checkOptions) {
	if opts.grammar != "" {
		cfg.Grammar.Path = opts.grammar
	}

	if opts.format != "" {
		cfg.Check.Format = opts.format
	}

	if opts.parser != "" {
		cfg.Engine.Parser = opts.parser
	}

	if opts.workers != 0 {
		cfg.Check.Workers = opts.workers
	}

	// A one-shot run never sees grammar edits.
	cfg.Grammar.Watch = false
}

func newChecker(cfg *config.Config, sess *session) (*checker.Checker, error) {
	parser, err := checker.ParserFor(cfg.Engine.Parser)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewCheckMetrics(sess.providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create check metrics: %w", err)
	}

	return checker.New(
		checker.WithParser(parser),
		checker.WithLogger(sess.logger),
		checker.WithTracer(sess.providers.Tracer),
		checker.WithMetrics(metrics),
		checker.WithMaxIterations(cfg.Engine.MaxIterations),
		checker.WithWorkers(cfg.Check.Workers),
	), nil
}

// expandQueryPaths turns file, directory and glob arguments into a sorted,
// duplicate-free list of files.
func expandQueryPaths(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	paths := make([]string, 0, len(args))

	add := func(path string) {
		path = filepath.Clean(path)
		if _, dup := seen[path]; dup {
			return
		}

		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	for _, arg := range args {
		info, statErr := os.Stat(arg)

		switch {
		case statErr == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(arg), queryGlob, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", arg, err)
			}

			for _, match := range matches {
				add(filepath.Join(arg, filepath.FromSlash(match)))
			}
		case statErr == nil:
			add(arg)
		default:
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("expand %s: %w", arg, err)
			}

			if len(matches) == 0 {
				return nil, fmt.Errorf("%w: %s", ErrNoQueryFiles, arg)
			}

			for _, match := range matches {
				add(match)
			}
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoQueryFiles
	}

	slices.Sort(paths)

	return paths, nil
}
