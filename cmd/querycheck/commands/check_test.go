package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/querycheck/internal/testgrammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/checker"
	"github.com/Sumatoshi-tech/querycheck/pkg/diagnostic"
)

// workspace lays out a grammar search path, query files and a config file.
type workspace struct {
	dir     string
	queries string
	grammar string
	global  *GlobalOptions
}

func newWorkspace(t *testing.T, queries map[string]string) workspace {
	t.Helper()

	dir := t.TempDir()
	ws := workspace{
		dir:     dir,
		queries: filepath.Join(dir, "queries", "lua"),
		grammar: filepath.Join(dir, "grammars", "lua", "src", "grammar.json"),
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(ws.grammar), 0o750))
	require.NoError(t, os.WriteFile(ws.grammar, testgrammar.LuaJSON, 0o600))
	require.NoError(t, os.MkdirAll(ws.queries, 0o750))

	for name, body := range queries {
		require.NoError(t, os.WriteFile(filepath.Join(ws.queries, name), []byte(body), 0o600))
	}

	cfgPath := filepath.Join(dir, "querycheck.yaml")
	cfg := "grammar:\n  search_paths: [" + filepath.Join(dir, "grammars") + "]\n  watch: false\n" +
		"engine:\n  parser: native\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	ws.global = &GlobalOptions{ConfigPath: cfgPath, EnvFile: filepath.Join(dir, ".env")}

	return ws
}

func (ws workspace) check(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd := NewCheckCommand(ws.global)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), errOut.String(), err
}

var mixedQueries = map[string]string{
	"clean.scm":  "(chunk (hash_bang_line))\n",
	"broken.scm": "(chunk (identifier))\n",
}

func TestCheckCommand_Text(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, mixedQueries)

	out, errOut, err := ws.check(t, ws.queries)
	require.ErrorIs(t, err, ErrCheckFailed)

	broken := filepath.Join(ws.queries, "broken.scm")
	assert.Contains(t, out,
		broken+":1:8: error: Node `(identifier)` can never be a child of `(chunk)` [InvalidChildNode]")
	assert.NotContains(t, out, "clean.scm")
	assert.Contains(t, errOut, "Checked 2 files, 2 patterns: 1 issue, 0 syntax errors")
}

func TestCheckCommand_Clean(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, map[string]string{"highlights.scm": "(return_statement \"return\")\n(chunk)\n"})

	out, errOut, err := ws.check(t, filepath.Join(ws.queries, "highlights.scm"))
	require.NoError(t, err)

	assert.Empty(t, out)
	assert.Contains(t, errOut, "Checked 1 file, 2 patterns: 0 issues, 0 syntax errors")
}

func TestCheckCommand_JSON(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, mixedQueries)

	out, errOut, err := ws.check(t, "--format", "json", ws.queries)
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.NotContains(t, errOut, "Checked")

	var records []checker.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)

	assert.Equal(t, filepath.Join(ws.queries, "broken.scm"), records[0].Path)
	assert.Equal(t, "lua", records[0].Language)
	require.Len(t, records[0].Issues, 1)
	assert.Equal(t, diagnostic.InvalidChildNode, records[0].Issues[0].Kind)
	assert.Equal(t, "(identifier)", records[0].Issues[0].Node)
	assert.Empty(t, records[1].Issues)
}

func TestCheckCommand_YAML(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, map[string]string{"bad.scm": "(chunk (statment))\n"})

	out, _, err := ws.check(t, "-f", "yaml", filepath.Join(ws.queries, "*.scm"))
	require.ErrorIs(t, err, ErrCheckFailed)

	var records []checker.Record
	require.NoError(t, yaml.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	require.Len(t, records[0].Issues, 1)
	assert.Equal(t, diagnostic.InvalidNode, records[0].Issues[0].Kind)
	assert.Equal(t, "statement", records[0].Issues[0].Suggestion)
}

func TestCheckCommand_Table(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, map[string]string{"syntax.scm": "(chunk))\n"})

	out, _, err := ws.check(t, "--format", "table", ws.queries)
	require.ErrorIs(t, err, ErrCheckFailed)

	assert.Contains(t, out, "SyntaxError")
	assert.Contains(t, out, "1 file")
	assert.Contains(t, out, "0 issues, 1 syntax error")
}

func TestCheckCommand_NoGrammar(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, nil)

	stray := filepath.Join(ws.dir, "stray.scm")
	require.NoError(t, os.WriteFile(stray, []byte("(chunk)"), 0o600))

	out, _, err := ws.check(t, "--format", "json", stray)
	require.ErrorIs(t, err, ErrCheckFailed)

	var records []checker.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Error, "no grammar")

	// --grammar supplies the fallback grammar.
	_, _, err = ws.check(t, "--grammar", ws.grammar, stray)
	require.NoError(t, err)
}

func TestCheckCommand_InvalidFlags(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, mixedQueries)

	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"--format", "xml", ws.queries}},
		{"parser", []string{"--parser", "wasm", ws.queries}},
		{"workers", []string{"--workers=-1", ws.queries}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := ws.check(t, tt.args...)
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrCheckFailed)
		})
	}
}

func TestExpandQueryPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, rel := range []string{"queries/lua/highlights.scm", "queries/lua/folds.scm", "queries/go/tags.scm", "README.md"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}

	join := func(rel string) string {
		return filepath.Join(dir, filepath.FromSlash(rel))
	}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "directory",
			args: []string{dir},
			want: []string{join("queries/go/tags.scm"), join("queries/lua/folds.scm"), join("queries/lua/highlights.scm")},
		},
		{
			name: "glob",
			args: []string{join("queries/*/h*.scm")},
			want: []string{join("queries/lua/highlights.scm")},
		},
		{
			name: "file and duplicate",
			args: []string{join("queries/go/tags.scm"), join("queries/go/../go/tags.scm")},
			want: []string{join("queries/go/tags.scm")},
		},
		{
			name: "recursive glob",
			args: []string{join("**/folds.scm"), join("queries/lua")},
			want: []string{join("queries/lua/folds.scm"), join("queries/lua/highlights.scm")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := expandQueryPaths(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandQueryPaths_NoMatch(t *testing.T) {
	t.Parallel()

	_, err := expandQueryPaths([]string{filepath.Join(t.TempDir(), "*.scm")})
	require.ErrorIs(t, err, ErrNoQueryFiles)

	_, err = expandQueryPaths([]string{t.TempDir()})
	require.ErrorIs(t, err, ErrNoQueryFiles)
}
