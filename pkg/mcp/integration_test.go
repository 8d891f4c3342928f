package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/querycheck/internal/testgrammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/checker"
	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammarstore"
	"github.com/Sumatoshi-tech/querycheck/pkg/mcp"
)

func newStore(t *testing.T, withDefault bool) (*grammarstore.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lua.json")
	require.NoError(t, os.WriteFile(path, testgrammar.LuaJSON, 0o600))

	cfg := config.GrammarConfig{CacheSize: 2, Languages: map[string]string{"lua": path}}
	if withDefault {
		cfg.Path = path
	}

	store, err := grammarstore.New(cfg)
	require.NoError(t, err)

	return store, path
}

func connect(t *testing.T, deps mcp.ServerDeps) *mcpsdk.ClientSession {
	t.Helper()

	srv := mcp.NewServer(deps)

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func text(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	content, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return content.Text
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, false)

	srv := mcp.NewServer(mcp.ServerDeps{Grammars: store})
	assert.Equal(t, []string{mcp.ToolNameRules, mcp.ToolNameCheck}, srv.ListToolNames())

	session := connect(t, mcp.ServerDeps{Grammars: store})

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 2)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
}

func TestServer_QueryCheck(t *testing.T) {
	t.Parallel()

	store, path := newStore(t, false)
	session := connect(t, mcp.ServerDeps{Grammars: store, Checker: checker.New()})

	tests := []struct {
		name  string
		args  map[string]any
		kinds []string
	}{
		{"by language", map[string]any{"language": "lua", "query": "(chunk (identifier))"}, []string{"InvalidChildNode"}},
		{"by path", map[string]any{"grammar_path": path, "query": "(chunk (statement))"}, []string{}},
	}

	for _, tt := range tests {
		result := callTool(t, session, mcp.ToolNameCheck, tt.args)
		require.False(t, result.IsError, tt.name)

		var rec checker.Record
		require.NoError(t, json.Unmarshal([]byte(text(t, result)), &rec), tt.name)

		kinds := make([]string, 0, len(rec.Issues))
		for _, issue := range rec.Issues {
			kinds = append(kinds, string(issue.Kind))
		}

		assert.Equal(t, tt.kinds, kinds, tt.name)
		assert.Equal(t, "query.scm", rec.Path, tt.name)
	}
}

func TestServer_QueryCheckErrors(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, false)
	session := connect(t, mcp.ServerDeps{Grammars: store})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty query", map[string]any{"language": "lua", "query": ""}, "query parameter is required"},
		{"unknown language", map[string]any{"language": "cobol", "query": "(a)"}, "no grammar configured for language"},
		{"no grammar", map[string]any{"query": "(a)"}, "no grammar"},
	}

	for _, tt := range tests {
		result := callTool(t, session, mcp.ToolNameCheck, tt.args)
		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, text(t, result), tt.want, tt.name)
	}
}

func TestServer_GrammarRules(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, true)
	session := connect(t, mcp.ServerDeps{Grammars: store})

	result := callTool(t, session, mcp.ToolNameRules, map[string]any{"filter": "statement"})
	require.False(t, result.IsError)

	var rules []grammar.RuleSummary
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &rules))
	require.NotEmpty(t, rules)

	for _, rule := range rules {
		assert.Contains(t, rule.Name, "statement")
	}
}

func TestServer_TraceIDAppended(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	store, _ := newStore(t, true)
	session := connect(t, mcp.ServerDeps{Grammars: store, Tracer: tp.Tracer("test")})

	result := callTool(t, session, mcp.ToolNameRules, map[string]any{})
	require.Len(t, result.Content, 2)

	trailer, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, trailer.Text, "trace_id=")

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "mcp.grammar_rules", spans[0].Name)
}
