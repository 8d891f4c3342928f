package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammarstore"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
)

// ErrInvalidGrammar is returned when grammar validation finds violations.
var ErrInvalidGrammar = errors.New("grammar validation failed")

// NewGrammarCommand creates the grammar command group.
func NewGrammarCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Inspect and validate grammar descriptions",
	}

	cmd.AddCommand(newRulesCommand(global))
	cmd.AddCommand(newValidateCommand(global))

	return cmd
}

func newRulesCommand(global *GlobalOptions) *cobra.Command {
	var format, filter string

	cmd := &cobra.Command{
		Use:   "rules <grammar.json|language>",
		Short: "List the top-level rules of a grammar",
		Long: `List every top-level rule with its kind, terminality, hidden and supertype
flags, fragment count and terminal-descendant count.

The argument is a grammar.json path or a language configured through
grammar.languages or grammar.search_paths.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(global, args[0], format, filter, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", config.FormatTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&filter, "filter", "", "only list rules whose name contains this text")

	return cmd
}

func runRules(global *GlobalOptions, target, format, filter string, out, errOut io.Writer) error {
	sess, err := setup(global, observability.ModeCLI, errOut)
	if err != nil {
		return err
	}
	defer sess.close()

	g, err := loadTarget(sess, target)
	if err != nil {
		return err
	}

	summaries := make([]grammar.RuleSummary, 0, len(g.RuleNames()))

	for _, s := range g.Summaries() {
		if filter == "" || strings.Contains(s.Name, filter) {
			summaries = append(summaries, s)
		}
	}

	switch format {
	case config.FormatJSON:
		return renderJSON(out, summaries)
	case config.FormatYAML:
		return renderYAML(out, summaries)
	case config.FormatTable, config.FormatText:
		renderRules(out, g.Name, summaries)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// loadTarget reads a grammar by path, or by language when no such file exists.
func loadTarget(sess *session, target string) (*grammar.Grammar, error) {
	cfg := sess.cfg.Grammar
	cfg.Watch = false

	store, release, err := sess.openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, statErr := os.Stat(target); statErr == nil {
		return store.Load(target)
	}

	path, ok := store.LanguagePath(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", grammarstore.ErrNoGrammar, target)
	}

	return store.Load(path)
}

func renderRules(out io.Writer, name string, summaries []grammar.RuleSummary) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(name)
	tbl.AppendHeader(table.Row{"Rule", "Type", "Terminality", "Hidden", "Supertype", "Fragments", "Terminals"})

	for _, s := range summaries {
		tbl.AppendRow(table.Row{s.Name, s.Type, s.Terminality, mark(s.Hidden), mark(s.Supertype), s.Fragments, s.Descendants})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d rules", len(summaries))})
	tbl.Render()
}

func mark(flag bool) string {
	if flag {
		return "yes"
	}

	return ""
}

func newValidateCommand(global *GlobalOptions) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <grammar.json>...",
		Short: "Validate grammar descriptions against the grammar JSON schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			return runValidate(global, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

// runValidate checks each file against the schema and then builds it, so
// duplicate names and broken references are reported as well.
func runValidate(global *GlobalOptions, paths []string, out io.Writer) error {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	failed := 0

	for _, path := range paths {
		err := validateGrammarFile(path)
		if err == nil {
			if !global.Quiet {
				ok.Fprintf(out, "%s: valid\n", path)
			}

			continue
		}

		failed++

		var schemaErr *grammar.SchemaError
		if errors.As(err, &schemaErr) {
			bad.Fprintf(out, "%s: %d schema violations\n", path, len(schemaErr.Violations))

			for _, v := range schemaErr.Violations {
				bad.Fprintf(out, "  - %s: %s\n", v.Field, v.Description)
			}

			continue
		}

		bad.Fprintf(out, "%s: %v\n", path, err)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrInvalidGrammar, failed, len(paths))
	}

	return nil
}

func validateGrammarFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read grammar: %w", err)
	}

	schemaErr := grammar.ValidateSchema(data)
	if schemaErr != nil {
		return schemaErr
	}

	_, err = grammar.Parse(data, grammar.WithStrictSchema(false))

	return err
}
