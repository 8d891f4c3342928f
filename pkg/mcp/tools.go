package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
)

// Tool names.
const (
	ToolNameCheck = "query_check"
	ToolNameRules = "grammar_rules"
)

// MaxQueryInputBytes is the maximum allowed size of inline query text (1 MB).
const MaxQueryInputBytes = 1 << 20

// Sentinel errors for tool input validation.
var (
	ErrEmptyQuery    = errors.New("query parameter is required and must not be empty")
	ErrQueryTooLarge = errors.New("query input exceeds maximum size")
	ErrNoGrammar     = errors.New("no grammar: set grammar_path or language, or configure a default grammar")
	ErrUnknownLang   = errors.New("no grammar configured for language")
)

// Grammars loads grammars by path and locates them by language.
type Grammars interface {
	Load(path string) (*grammar.Grammar, error)
	LanguagePath(lang string) (string, bool)
	GrammarPath(queryPath string) (string, error)
}

// CheckInput is the input schema for the query_check tool.
type CheckInput struct {
	GrammarPath string `json:"grammar_path,omitempty" jsonschema:"path to a grammar.json file"`
	Language    string `json:"language,omitempty"     jsonschema:"language whose configured grammar to use (e.g. lua)"`
	Query       string `json:"query"                  jsonschema:"tree-sitter query text to check"`
	Path        string `json:"path,omitempty"         jsonschema:"file name reported with the results"`
}

// RulesInput is the input schema for the grammar_rules tool.
type RulesInput struct {
	GrammarPath string `json:"grammar_path,omitempty" jsonschema:"path to a grammar.json file"`
	Language    string `json:"language,omitempty"     jsonschema:"language whose configured grammar to use"`
	Filter      string `json:"filter,omitempty"       jsonschema:"only list rules whose name contains this text"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleCheck(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Query == "" {
		return errorResult(ErrEmptyQuery)
	}

	if len(input.Query) > MaxQueryInputBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrQueryTooLarge, len(input.Query), MaxQueryInputBytes))
	}

	g, err := s.grammar(input.GrammarPath, input.Language)
	if err != nil {
		return errorResult(err)
	}

	path := input.Path
	if path == "" {
		path = "query.scm"
	}

	report, err := s.checker.Check(ctx, g, path, input.Query)
	if report == nil {
		return errorResult(err)
	}

	rec := report.Record()
	if err != nil {
		rec.Error = err.Error()
	}

	return jsonResult(rec)
}

func (s *Server) handleRules(
	_ context.Context, _ *mcpsdk.CallToolRequest, input RulesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	g, err := s.grammar(input.GrammarPath, input.Language)
	if err != nil {
		return errorResult(err)
	}

	rules := make([]grammar.RuleSummary, 0)

	for _, summary := range g.Summaries() {
		if input.Filter == "" || strings.Contains(summary.Name, input.Filter) {
			rules = append(rules, summary)
		}
	}

	return jsonResult(rules)
}

// grammar picks the grammar by explicit path, then language, then the
// configured default.
func (s *Server) grammar(path, language string) (*grammar.Grammar, error) {
	if s.grammars == nil {
		return nil, ErrNoGrammar
	}

	switch {
	case path != "":
	case language != "":
		found, ok := s.grammars.LanguagePath(language)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLang, language)
		}

		path = found
	default:
		found, err := s.grammars.GrammarPath("")
		if err != nil {
			return nil, ErrNoGrammar
		}

		path = found
	}

	g, err := s.grammars.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load grammar: %w", err)
	}

	return g, nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
