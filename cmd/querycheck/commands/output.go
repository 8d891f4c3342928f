package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/querycheck/pkg/checker"
	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/diagnostic"
)

// ErrUnknownFormat is returned for an output format no renderer handles.
var ErrUnknownFormat = errors.New("unknown output format")

const yamlIndent = 2

func render(out io.Writer, format string, results []checker.FileResult) error {
	switch format {
	case config.FormatText, "":
		return renderText(out, results)
	case config.FormatJSON:
		return renderJSON(out, records(results))
	case config.FormatYAML:
		return renderYAML(out, records(results))
	case config.FormatTable:
		return renderTable(out, results)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func records(results []checker.FileResult) []checker.Record {
	out := make([]checker.Record, 0, len(results))

	for _, res := range results {
		rec := checker.Record{Path: res.Path, Issues: []diagnostic.Record{}}
		if res.Report != nil {
			rec = res.Report.Record()
		}

		if res.Err != nil {
			rec.Error = res.Err.Error()
		}

		out = append(out, rec)
	}

	return out
}

func renderJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func renderYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}

// renderText prints one compiler-style line per problem:
// path:line:col: severity: message [kind].
func renderText(out io.Writer, results []checker.FileResult) error {
	errLabel := color.New(color.FgRed, color.Bold).SprintFunc()
	kindLabel := color.New(color.FgYellow).SprintFunc()
	pathLabel := color.New(color.Bold).SprintFunc()

	var buf strings.Builder

	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(&buf, "%s: %s %v\n", pathLabel(res.Path), errLabel("error:"), res.Err)
		}

		if res.Report == nil {
			continue
		}

		for _, serr := range res.Report.SyntaxErrors {
			fmt.Fprintf(&buf, "%s:%s: %s %s %s\n",
				pathLabel(res.Path), serr.Start, errLabel("error:"), serr.Message, kindLabel("[SyntaxError]"))
		}

		for _, issue := range res.Report.Issues() {
			fmt.Fprintf(&buf, "%s:%s: %s %s %s\n",
				pathLabel(res.Path), issue.Range.Start, errLabel(string(issue.Severity())+":"), issue.Message(),
				kindLabel("["+string(issue.Kind)+"]"))
		}
	}

	_, err := io.WriteString(out, buf.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func renderTable(out io.Writer, results []checker.FileResult) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"File", "Position", "Kind", "Message"})

	for _, res := range results {
		if res.Err != nil {
			tbl.AppendRow(table.Row{res.Path, "", "Error", res.Err.Error()})
		}

		if res.Report == nil {
			continue
		}

		for _, serr := range res.Report.SyntaxErrors {
			tbl.AppendRow(table.Row{res.Path, serr.Start.String(), "SyntaxError", serr.Message})
		}

		for _, issue := range res.Report.Issues() {
			tbl.AppendRow(table.Row{res.Path, issue.Range.Start.String(), string(issue.Kind), issue.Message()})
		}
	}

	sum := summarize(results)
	tbl.AppendFooter(table.Row{english.Plural(sum.files, "file", ""), "", "", sum.problemsLine()})
	tbl.Render()

	return nil
}

// summary totals a check run.
type summary struct {
	files        int
	patterns     int
	issues       int
	syntaxErrors int
	failures     int
}

func summarize(results []checker.FileResult) summary {
	sum := summary{files: len(results)}

	for _, res := range results {
		if res.Err != nil {
			sum.failures++
		}

		if res.Report == nil {
			continue
		}

		sum.patterns += res.Report.Patterns
		sum.issues += len(res.Report.Issues())
		sum.syntaxErrors += len(res.Report.SyntaxErrors)
	}

	return sum
}

func (s summary) problemsLine() string {
	parts := []string{
		english.Plural(s.issues, "issue", ""),
		english.Plural(s.syntaxErrors, "syntax error", ""),
	}

	if s.failures > 0 {
		parts = append(parts, english.Plural(s.failures, "unreadable file", ""))
	}

	return strings.Join(parts, ", ")
}

func writeSummary(out io.Writer, s summary) {
	line := fmt.Sprintf("Checked %s, %s %s: %s\n",
		english.Plural(s.files, "file", ""),
		humanize.Comma(int64(s.patterns)),
		english.PluralWord(s.patterns, "pattern", ""),
		s.problemsLine())

	if s.issues+s.syntaxErrors+s.failures == 0 {
		color.New(color.FgGreen).Fprint(out, line)

		return
	}

	color.New(color.FgRed).Fprint(out, line)
}
