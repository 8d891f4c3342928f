package lsp

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
)

// maxListed caps the names listed in one hover section.
const maxListed = 12

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	ctx := srv.ctx
	started := time.Now()

	defer func() {
		srv.metrics.RecordRequest(ctx, "lsp.hover", observability.StatusOK, time.Since(started))
	}()

	uri := params.TextDocument.URI

	text, ok := srv.store.Get(uri)
	if !ok {
		return nil, nil //nolint:nilnil // LSP expects a nil hover for unknown documents.
	}

	g, err := srv.grammars.Resolve(pathOf(uri))
	if err != nil {
		return nil, nil //nolint:nilnil // no grammar, nothing to describe.
	}

	word, isField := wordAt(text, int(params.Position.Line), int(params.Position.Character))

	doc := describe(g, word, isField)
	if doc == "" {
		return nil, nil //nolint:nilnil // nothing under the cursor.
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc,
		},
	}, nil
}

// describe renders what the grammar knows about a node or field name.
func describe(g *grammar.Grammar, word string, isField bool) string {
	if word == "" {
		return ""
	}

	if isField {
		if !g.IsField(word) {
			return ""
		}

		owners := make([]string, 0)

		for _, id := range g.FieldRules(word) {
			if r := g.Rule(id); r != nil && !slices.Contains(owners, r.Owner) {
				owners = append(owners, r.Owner)
			}
		}

		return fmt.Sprintf("**field** `%s`\n\nDeclared by: %s", word, codeList(owners))
	}

	if !g.IsNodeName(word) {
		return ""
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "**node** `%s`", word)

	name := word
	if supertype, ok := g.SupertypeName(word); ok {
		name = supertype
	}

	if id, ok := g.Named(name); ok {
		r := g.Rule(id)
		fmt.Fprintf(&sb, "\n\nRule: `%s` (%s)", r.Type, r.Terminality())
	} else {
		sb.WriteString("\n\nNo rule of its own: produced by an alias or an external scanner")
	}

	if subtypes := g.Subtypes(word); len(subtypes) > 0 {
		fmt.Fprintf(&sb, "\n\nSubtypes: %s", codeList(subtypes))
	}

	if g.IsExtraName(word) {
		sb.WriteString("\n\nExtra: may appear anywhere")
	}

	return sb.String()
}

func codeList(names []string) string {
	shown := names
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}

	quoted := make([]string, 0, len(shown))
	for _, name := range shown {
		quoted = append(quoted, "`"+name+"`")
	}

	list := strings.Join(quoted, ", ")
	if len(names) > maxListed {
		list += fmt.Sprintf(" and %d more", len(names)-maxListed)
	}

	return list
}

// wordAt returns the identifier at the given line and byte column, and
// whether it is written as a field name (followed by a colon).
func wordAt(text string, line, character int) (string, bool) {
	lines := strings.Split(text, "\n")
	if line >= len(lines) {
		return "", false
	}

	lineText := lines[line]
	if character > len(lineText) {
		character = len(lineText)
	}

	start := character

	for start > 0 && isWordChar(lineText[start-1]) {
		start--
	}

	end := character

	for end < len(lineText) && isWordChar(lineText[end]) {
		end++
	}

	rest := strings.TrimLeft(lineText[end:], " \t")

	return lineText[start:end], strings.HasPrefix(rest, ":")
}

func isWordChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') || ch == '_'
}
