// Package testgrammar provides grammar fixtures for tests.
package testgrammar

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
)

// LuaJSON is a reduced Lua grammar with hidden rules, a supertype, fields,
// aliases and a comment extra.
//
//go:embed lua.json
var LuaJSON []byte

// Lua builds LuaJSON with strict schema validation.
func Lua(tb testing.TB) *grammar.Grammar {
	tb.Helper()

	g, err := grammar.Parse(LuaJSON, grammar.WithStrictSchema(true))
	require.NoError(tb, err)

	return g
}

// ShapesJSON is a small grammar with a hidden rule referenced several times
// in one body, an alias of a sequence and strings wrapped in tokens.
//
//go:embed shapes.json
var ShapesJSON []byte

// Shapes builds ShapesJSON with strict schema validation.
func Shapes(tb testing.TB) *grammar.Grammar {
	tb.Helper()

	g, err := grammar.Parse(ShapesJSON, grammar.WithStrictSchema(true))
	require.NoError(tb, err)

	return g
}

// MustParse builds grammar JSON given inline by a test.
func MustParse(tb testing.TB, data string) *grammar.Grammar {
	tb.Helper()

	g, err := grammar.Parse([]byte(data))
	require.NoError(tb, err)

	return g
}
