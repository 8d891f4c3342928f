// Package treesitter reads query files with the tree-sitter query grammar
// and mirrors the concrete syntax tree into a syntax.Tree.
package treesitter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexaandru/go-sitter-forest/query"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
)

// Sentinel errors for the tree-sitter reader.
var (
	errNoRootNode = errors.New("treesitter: no root node")
	errPoolType   = errors.New("treesitter: pool returned unexpected type")
)

var language = sync.OnceValue(func() *sitter.Language {
	return sitter.NewLanguage(query.GetLanguage())
})

// Parser implements syntax.Parser. It is safe for concurrent use.
type Parser struct {
	pool sync.Pool
}

// New creates a Parser backed by a pool of tree-sitter parsers.
func New() *Parser {
	lang := language()

	return &Parser{
		pool: sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		},
	}
}

// Parse implements syntax.Parser.
func (p *Parser) Parse(ctx context.Context, source string) (*syntax.Tree, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer p.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, []byte(source))
	if err != nil {
		return nil, fmt.Errorf("treesitter: failed to parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, errNoRootNode
	}

	b := syntax.NewBuilder(source)
	mirror(b, syntax.NoParent, root)

	return b.Tree(), nil
}

func mirror(b *syntax.Builder, parent syntax.Handle, n sitter.Node) {
	start := int(n.StartByte())
	end := int(n.EndByte())
	kind := n.Type()

	h := b.Add(parent, kind, "", start, end)

	switch {
	case kind == syntax.KindError:
		b.Error(start, end, "syntax error")
	case start == end && n.ChildCount() == 0 && kind != syntax.KindProgram:
		b.Error(start, end, fmt.Sprintf("missing %q", kind))
	}

	for idx := range n.ChildCount() {
		mirror(b, h, n.Child(idx))
	}
}
