// Package syntax holds the read-only syntax tree the pattern model is
// built from, together with a native reader for the query language.
package syntax

import (
	"context"
	"fmt"
	"strings"
)

// Point is a zero-based row and byte column.
type Point struct {
	Row    uint `json:"line"`
	Column uint `json:"character"`
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1)
}

// Node is the capability set the pattern model needs from a syntax node.
type Node interface {
	ID() int
	Type() string
	Text() string
	Children() []Node
	Parent() Node
	ChildByFieldName(name string) Node
	StartPosition() Point
	EndPosition() Point
}

// Parser turns query source into a syntax tree. Syntax errors do not fail
// the parse; they are recorded on the tree.
type Parser interface {
	Parse(ctx context.Context, source string) (*Tree, error)
}

// SyntaxError is a region of the source the parser could not make sense of.
type SyntaxError struct {
	Message string `json:"message"`
	Start   Point  `json:"start"`
	End     Point  `json:"end"`
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Start, e.Message)
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	for _, child := range n.Children() {
		Walk(child, fn)
	}
}

// Sexp renders the named structure of n, omitting punctuation.
func Sexp(n Node) string {
	var sb strings.Builder

	writeSexp(&sb, n)

	return sb.String()
}

func writeSexp(sb *strings.Builder, n Node) {
	sb.WriteByte('(')
	sb.WriteString(n.Type())

	for _, child := range n.Children() {
		if !IsNamedKind(child.Type()) {
			continue
		}

		sb.WriteByte(' ')
		writeSexp(sb, child)
	}

	sb.WriteByte(')')
}

// IsNamedKind reports whether kind is a named node kind rather than a
// punctuation or keyword token.
func IsNamedKind(kind string) bool {
	if kind == "" || kind == "_" || kind == "MISSING" {
		return false
	}

	for _, r := range kind {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}

	return true
}
