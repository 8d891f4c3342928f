package diagnostic_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/querycheck/internal/testgrammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/diagnostic"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
)

type summary struct {
	Kind       diagnostic.Kind
	Node       string
	Parent     string
	Field      string
	Suggestion string
}

func summarize(issues []diagnostic.Issue) []summary {
	out := make([]summary, 0, len(issues))

	for _, issue := range issues {
		rec := issue.Record()
		out = append(out, summary{
			Kind:       rec.Kind,
			Node:       rec.Node,
			Parent:     rec.Parent,
			Field:      rec.Field,
			Suggestion: rec.Suggestion,
		})
	}

	return out
}

func load(t *testing.T, g *grammar.Grammar, src string) *pattern.File {
	t.Helper()

	tree := syntax.Parse(src)
	require.Empty(t, tree.Errors())

	return pattern.NewFile(tree, g)
}

func diagnose(t *testing.T, g *grammar.Grammar, src string, opts ...diagnostic.Option) []diagnostic.Issue {
	t.Helper()

	results, err := diagnostic.New(g, opts...).Diagnose(load(t, g, src))
	require.NoError(t, err)

	return diagnostic.Issues(results)
}

func TestDiagnose(t *testing.T) {
	t.Parallel()

	lua := testgrammar.Lua(t)
	shapes := testgrammar.Shapes(t)

	tests := []struct {
		name    string
		grammar *grammar.Grammar
		pattern string
		want    []summary
	}{
		{
			name:    "optional leading child",
			pattern: `(chunk (hash_bang_line))`,
			want:    []summary{},
		},
		{
			name:    "child repeated where the rule allows one",
			pattern: `(chunk (hash_bang_line) (hash_bang_line))`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: "(hash_bang_line)", Parent: "(chunk)"},
			},
		},
		{
			name:    "sequence in order",
			pattern: `(return_statement "return" ";")`,
			want:    []summary{},
		},
		{
			name:    "sequence out of order",
			pattern: `(return_statement ";" "return")`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: `"return"`, Parent: "(return_statement)"},
			},
		},
		{
			name:    "repeated child",
			pattern: `(chunk (statement) (statement)+ (return_statement))`,
			want:    []summary{},
		},
		{
			name:    "child that never appears",
			pattern: `(chunk (identifier))`,
			want: []summary{
				{Kind: diagnostic.InvalidChildNode, Node: "(identifier)", Parent: "(chunk)"},
			},
		},
		{
			name:    "unknown node name",
			pattern: `(chunk (statment))`,
			want: []summary{
				{Kind: diagnostic.InvalidNode, Node: "(statment)", Suggestion: "statement"},
			},
		},
		{
			name:    "unknown literal",
			pattern: `(return_statement "retrun")`,
			want: []summary{
				{Kind: diagnostic.InvalidNode, Node: `"retrun"`, Suggestion: "return"},
			},
		},
		{
			name:    "unknown field",
			pattern: `(assignment_statement nme: (identifier))`,
			want: []summary{
				{Kind: diagnostic.InvalidField, Node: "nme:", Field: "nme", Suggestion: "name"},
			},
		},
		{
			name:    "unknown negated field",
			pattern: `(assignment_statement !vale)`,
			want: []summary{
				{Kind: diagnostic.InvalidField, Node: "(assignment_statement)", Field: "vale", Suggestion: "value"},
			},
		},
		{
			name:    "fields in order",
			pattern: `(assignment_statement name: (identifier) value: (number))`,
			want:    []summary{},
		},
		{
			name:    "fields out of order",
			pattern: `(assignment_statement value: (number) name: (identifier))`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: "name:", Parent: "(assignment_statement)", Field: "name"},
			},
		},
		{
			name:    "field the parent does not have",
			pattern: `(assignment_statement left: (identifier))`,
			want: []summary{
				{Kind: diagnostic.InvalidNamedNodeFieldName, Node: "left:", Parent: "(assignment_statement)", Field: "left"},
			},
		},
		{
			name:    "field value the field cannot hold",
			pattern: `(assignment_statement name: (number))`,
			want: []summary{
				{Kind: diagnostic.InvalidNamedNodeFieldValue, Node: "(number)", Parent: "(assignment_statement)", Field: "name"},
			},
		},
		{
			name:    "top-level field",
			pattern: `name: (identifier)`,
			want:    []summary{},
		},
		{
			name:    "top-level field value",
			pattern: `name: (number)`,
			want: []summary{
				{Kind: diagnostic.InvalidFieldValue, Node: "(number)", Field: "name"},
			},
		},
		{
			name:    "children matched through fields",
			pattern: `(function_call (identifier) (arguments))`,
			want:    []summary{},
		},
		{
			name:    "children through hidden rules",
			pattern: `(arguments (identifier) "," (number))`,
			want:    []summary{},
		},
		{
			name:    "supertype by name",
			pattern: `(assignment_statement value: (expression))`,
			want:    []summary{},
		},
		{
			name:    "supertype with subtype",
			pattern: `(assignment_statement value: (expression/number))`,
			want:    []summary{},
		},
		{
			name:    "subtype outside the supertype",
			pattern: `(assignment_statement value: (expression/chunk))`,
			want: []summary{
				{Kind: diagnostic.InvalidNode, Node: "(expression/chunk)"},
			},
		},
		{
			name:    "children of a supertype",
			pattern: `(expression left: (identifier))`,
			want:    []summary{},
		},
		{
			name:    "named alias",
			pattern: `(do_statement body: (block (statement)))`,
			want:    []summary{},
		},
		{
			name:    "children of an alias come from its content",
			pattern: `(do_statement body: (block (identifier)))`,
			want: []summary{
				{Kind: diagnostic.InvalidChildNode, Node: "(identifier)", Parent: "(block)"},
			},
		},
		{
			name:    "aliased literal",
			pattern: `(assignment_statement value: (nil))`,
			want:    []summary{},
		},
		{
			name:    "wildcards",
			pattern: `(binary_expression (_) _ (_))`,
			want:    []summary{},
		},
		{
			name:    "error and missing nodes",
			pattern: `(ERROR (chunk)) (return_statement (MISSING ";"))`,
			want:    []summary{},
		},
		{
			name:    "grouping of siblings",
			pattern: `((identifier) "=" (number))`,
			want:    []summary{},
		},
		{
			name:    "grouping that never occurs",
			pattern: `((number) "=")`,
			want: []summary{
				{Kind: diagnostic.UnexpectedNode, Node: `"="`},
			},
		},
		{
			name:    "list alternatives are checked one by one",
			pattern: `[(chunk (hash_bang_line)) (return_statement ";" "return")]`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: `"return"`, Parent: "(return_statement)"},
			},
		},
		{
			name:    "one issue per pattern",
			pattern: `(chunk (identifier) (number)) (chunk (statment))`,
			want: []summary{
				{Kind: diagnostic.InvalidChildNode, Node: "(identifier)", Parent: "(chunk)"},
				{Kind: diagnostic.InvalidNode, Node: "(statment)", Suggestion: "statement"},
			},
		},
		{
			name:    "hidden rule in the first branch",
			grammar: shapes,
			pattern: `(binary_expression (identifier) "+" (identifier))`,
			want:    []summary{},
		},
		{
			name:    "hidden rule in a later branch",
			grammar: shapes,
			pattern: `(binary_expression (identifier) "-" (binary_expression))`,
			want:    []summary{},
		},
		{
			name:    "operators of different branches",
			grammar: shapes,
			pattern: `(binary_expression "+" "-")`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: `"-"`, Parent: "(binary_expression)"},
			},
		},
		{
			name:    "alias of a sequence",
			grammar: shapes,
			pattern: `(wrapped "k" (z "(" (identifier) ")"))`,
			want:    []summary{},
		},
		{
			name:    "alias of a sequence matched once",
			grammar: shapes,
			pattern: `(wrapped (z) (z))`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: "(z)", Parent: "(wrapped)"},
			},
		},
		{
			name:    "alias content ends with the alias",
			grammar: shapes,
			pattern: `(z ")" "(")`,
			want: []summary{
				{Kind: diagnostic.UnexpectedChildNode, Node: `"("`, Parent: "(z)"},
			},
		},
		{
			name:    "string in an immediate token",
			grammar: shapes,
			pattern: `(member (identifier) "." (identifier))`,
			want:    []summary{},
		},
		{
			name:    "string in a token with precedence",
			grammar: shapes,
			pattern: `(let_statement "let" (identifier))`,
			want:    []summary{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := tt.grammar
			if g == nil {
				g = lua
			}

			got := summarize(diagnose(t, g, tt.pattern))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("issues mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiagnose_ExtraAtSequenceEdge(t *testing.T) {
	t.Parallel()

	g := testgrammar.Lua(t)

	tests := []struct {
		name    string
		pattern string
		want    []summary
	}{
		{
			name:    "leading extra",
			pattern: `(chunk (comment) (statement))`,
			want: []summary{
				{Kind: diagnostic.UnexpectedNode, Node: "(comment)", Parent: "(chunk)"},
			},
		},
		{
			name:    "trailing extra",
			pattern: `(return_statement "return" (comment))`,
			want: []summary{
				{Kind: diagnostic.UnexpectedNode, Node: "(comment)", Parent: "(return_statement)"},
			},
		},
		{
			name:    "extra between children",
			pattern: `(chunk (statement) (comment) (statement))`,
			want:    []summary{},
		},
		{
			name:    "only extras",
			pattern: `(chunk (comment))`,
			want:    []summary{},
		},
		{
			name:    "extra inside a repeat rule",
			pattern: `(do_statement body: (block (comment) (statement)))`,
			want:    []summary{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := summarize(diagnose(t, g, tt.pattern))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("issues mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiagnose_IterationCap(t *testing.T) {
	t.Parallel()

	g := testgrammar.Lua(t)

	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, nil))
	engine := diagnostic.New(g, diagnostic.WithLogger(logger), diagnostic.WithMaxIterations(1))

	results, err := engine.Diagnose(load(t, g, `(chunk (hash_bang_line) (hash_bang_line))`))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Truncated)
	assert.Empty(t, results[0].Issues)
	assert.Equal(t, 1, results[0].Generations)
	assert.Contains(t, logs.String(), "iteration cap")
}

func TestDiagnose_Deterministic(t *testing.T) {
	t.Parallel()

	g := testgrammar.Lua(t)
	src := `(chunk (statement) (return_statement "return" ";")) (arguments (identifier) "," (number))`

	first, err := diagnostic.New(g).Diagnose(load(t, g, src))
	require.NoError(t, err)

	second, err := diagnostic.New(g).Diagnose(load(t, g, src))
	require.NoError(t, err)

	assert.Empty(t, diagnostic.Issues(first))
	assert.Empty(t, diagnostic.Issues(second))
	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].Rounds, second[i].Rounds)
		assert.Equal(t, first[i].Generations, second[i].Generations)
	}
}

func TestDiagnose_ResolutionDepth(t *testing.T) {
	t.Parallel()

	g := testgrammar.MustParse(t, `{
		"name": "loop",
		"rules": {
			"a": {"type": "SEQ", "members": [{"type": "SYMBOL", "name": "b"}, {"type": "STRING", "value": "x"}]},
			"b": {"type": "SYMBOL", "name": "c"},
			"c": {"type": "SYMBOL", "name": "b"}
		}
	}`)

	results, err := diagnostic.New(g).Diagnose(load(t, g, `(a (b)) (b (c))`))
	require.ErrorIs(t, err, grammar.ErrMaxResolutionDepth)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Issues)
}

func TestIssue_Rendering(t *testing.T) {
	t.Parallel()

	g := testgrammar.Lua(t)

	issues := diagnose(t, g, "(chunk\n  (hash_bang_line)\n  (hash_bang_line))")
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, "Unexpected node `(hash_bang_line)` for parent `(chunk)`", issue.Message())
	assert.Equal(t, diagnostic.SeverityError, issue.Severity())
	assert.Equal(t, syntax.Point{Row: 2, Column: 2}, issue.Range.Start)
	assert.Equal(t, "3:3: Unexpected node `(hash_bang_line)` for parent `(chunk)`", issue.String())

	data, err := json.Marshal(issue)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "UnexpectedChildNode", decoded["kind"])
	assert.Equal(t, "(hash_bang_line)", decoded["node"])
	assert.Equal(t, "(chunk)", decoded["parent"])
	assert.Equal(t, "error", decoded["severity"])
	assert.NotContains(t, decoded, "suggestion")

	invalid := diagnose(t, g, `(chunk (statment))`)
	require.Len(t, invalid, 1)
	assert.Equal(t, "Invalid node type `(statment)`, did you mean `statement`?", invalid[0].Message())
}

func TestDiagnosePattern_UnknownRoot(t *testing.T) {
	t.Parallel()

	g := testgrammar.Lua(t)

	res, err := diagnostic.New(g).DiagnosePattern(load(t, g, `(chunk)`), pattern.DefID(99))
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	assert.Zero(t, res.Rounds)
}
