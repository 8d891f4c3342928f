package syntax

import (
	"context"
	"fmt"
)

// Node kinds produced by the query language readers.
const (
	KindProgram         = "program"
	KindNamedNode       = "named_node"
	KindAnonymousNode   = "anonymous_node"
	KindMissingNode     = "missing_node"
	KindList            = "list"
	KindGrouping        = "grouping"
	KindFieldDefinition = "field_definition"
	KindNegatedField    = "negated_field"
	KindPredicate       = "predicate"
	KindPredicateType   = "predicate_type"
	KindParameters      = "parameters"
	KindCapture         = "capture"
	KindQuantifier      = "quantifier"
	KindIdentifier      = "identifier"
	KindString          = "string"
	KindStringContent   = "string_content"
	KindComment         = "comment"
	KindAnchor          = "."
	KindWildcard        = "_"
	KindMissing         = "MISSING"
	KindError           = "ERROR"
)

// NativeParser reads query source without cgo.
type NativeParser struct{}

// Parse implements Parser.
func (NativeParser) Parse(_ context.Context, source string) (*Tree, error) {
	return Parse(source), nil
}

// Parse reads query source into a tree shaped like the tree-sitter query
// grammar's concrete syntax tree. It never fails: unexpected input becomes
// ERROR nodes and entries in Tree.Errors.
func Parse(source string) *Tree {
	p := &parser{src: source, toks: lex(source), b: NewBuilder(source)}

	root := p.b.Add(NoParent, KindProgram, "", 0, len(source))

	for {
		p.trivia(root)

		if p.peek().kind == tokEOF {
			break
		}

		if !p.definition(root, "") {
			p.unexpected(root)
		}
	}

	return p.b.Tree()
}

type parser struct {
	src  string
	toks []token
	pos  int
	b    *Builder
	last int
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

// peekAt looks ahead n significant tokens, skipping comments.
func (p *parser) peekAt(n int) token {
	for idx := p.pos; idx < len(p.toks); idx++ {
		if p.toks[idx].kind == tokComment {
			continue
		}

		if n == 0 {
			return p.toks[idx]
		}

		n--
	}

	return p.toks[len(p.toks)-1]
}

func (p *parser) text(t token) string {
	return p.src[t.start:t.end]
}

// trivia attaches pending comments to parent.
func (p *parser) trivia(parent Handle) {
	for p.pos < len(p.toks) && p.toks[p.pos].kind == tokComment {
		t := p.toks[p.pos]
		p.b.Add(parent, KindComment, "", t.start, t.end)
		p.pos++
	}
}

// take consumes the next significant token as a leaf of the given kind.
func (p *parser) take(parent Handle, kind, field string) token {
	p.trivia(parent)

	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}

	p.b.Add(parent, kind, field, t.start, t.end)
	p.last = t.end

	return t
}

func (p *parser) unexpected(parent Handle) {
	t := p.peek()
	p.trivia(parent)
	p.b.Error(t.start, t.end, fmt.Sprintf("unexpected %q", p.text(t)))
	p.b.Add(parent, KindError, "", t.start, t.end)
	p.last = t.end

	if t.kind != tokEOF {
		p.pos++
	}
}

func (p *parser) expect(parent Handle, kind tokenKind, literal string) {
	if p.peek().kind == kind {
		p.take(parent, literal, "")

		return
	}

	t := p.peek()
	p.b.Error(t.start, t.start, fmt.Sprintf("expected %q", literal))
}

func (p *parser) open(parent Handle, kind, field string) Handle {
	p.trivia(parent)

	return p.b.Add(parent, kind, field, p.peek().start, p.peek().start)
}

func (p *parser) close(h Handle) {
	p.b.SetEnd(h, p.last)
}

// definition parses one pattern. It reports false when the next token
// cannot start a pattern, without consuming it.
func (p *parser) definition(parent Handle, field string) bool {
	t := p.peek()

	switch t.kind {
	case tokLParen:
		p.parenthesized(parent, field)
	case tokLBracket:
		p.list(parent, field)
	case tokString:
		p.anonymous(parent, field)
	case tokIdent:
		switch {
		case p.text(t) == KindWildcard && p.peekAt(1).kind != tokColon:
			p.anonymous(parent, field)
		case p.peekAt(1).kind == tokColon:
			p.fieldDefinition(parent, field)
		default:
			return false
		}
	default:
		return false
	}

	return true
}

func (p *parser) parenthesized(parent Handle, field string) {
	next := p.peekAt(1)
	after := p.peekAt(2)

	switch {
	case next.kind == tokHash:
		p.predicate(parent, field)
	case next.kind == tokIdent && p.text(next) == KindMissing:
		p.missing(parent, field)
	case next.kind == tokIdent && after.kind != tokColon:
		p.named(parent, field)
	default:
		p.grouping(parent, field)
	}
}

func (p *parser) named(parent Handle, field string) {
	h := p.open(parent, KindNamedNode, field)
	p.take(h, "(", "")

	name := p.peek()
	if p.text(name) == KindWildcard {
		p.take(h, KindWildcard, "name")
	} else {
		p.take(h, KindIdentifier, "name")
	}

	if p.peek().kind == tokSlash {
		p.take(h, "/", "")

		if p.peek().kind == tokIdent {
			p.take(h, KindIdentifier, "supertype")
		} else {
			t := p.peek()
			p.b.Error(t.start, t.start, "expected node name after /")
		}
	}

	p.children(h, tokRParen, ")")
	p.suffix(h)
	p.close(h)
}

func (p *parser) grouping(parent Handle, field string) {
	h := p.open(parent, KindGrouping, field)
	p.take(h, "(", "")
	p.children(h, tokRParen, ")")
	p.suffix(h)
	p.close(h)
}

func (p *parser) list(parent Handle, field string) {
	h := p.open(parent, KindList, field)
	p.take(h, "[", "")
	p.children(h, tokRBracket, "]")
	p.suffix(h)
	p.close(h)
}

// children parses the body of a container up to its closing token.
func (p *parser) children(h Handle, closing tokenKind, literal string) {
	for {
		p.trivia(h)

		t := p.peek()

		switch {
		case t.kind == closing:
			p.take(h, literal, "")

			return
		case t.kind == tokEOF:
			p.b.Error(t.start, t.end, fmt.Sprintf("missing %q", literal))

			return
		case t.kind == tokDot:
			p.take(h, KindAnchor, "")
		case t.kind == tokBang:
			p.negatedField(h)
		case t.kind == tokLParen && p.peekAt(1).kind == tokHash:
			p.predicate(h, "")
		default:
			if !p.definition(h, "") {
				p.unexpected(h)
			}
		}
	}
}

func (p *parser) anonymous(parent Handle, field string) {
	h := p.open(parent, KindAnonymousNode, field)

	if p.peek().kind == tokString {
		p.str(h, "name")
	} else {
		p.take(h, KindWildcard, "name")
	}

	p.suffix(h)
	p.close(h)
}

func (p *parser) str(parent Handle, field string) {
	p.trivia(parent)

	t := p.peek()
	h := p.b.Add(parent, KindString, field, t.start, t.end)
	p.pos++
	p.last = t.end

	contentEnd := t.end - 1
	if t.unterminated {
		contentEnd = t.end
		p.b.Error(t.start, t.end, "unterminated string")
	}

	p.b.Add(h, `"`, "", t.start, t.start+1)

	if contentEnd > t.start+1 {
		p.b.Add(h, KindStringContent, "", t.start+1, contentEnd)
	}

	if !t.unterminated {
		p.b.Add(h, `"`, "", t.end-1, t.end)
	}
}

func (p *parser) missing(parent Handle, field string) {
	h := p.open(parent, KindMissingNode, field)
	p.take(h, "(", "")
	p.take(h, KindMissing, "")

	switch p.peek().kind {
	case tokIdent:
		p.take(h, KindIdentifier, "name")
	case tokString:
		p.str(h, "name")
	}

	p.expect(h, tokRParen, ")")
	p.suffix(h)
	p.close(h)
}

func (p *parser) fieldDefinition(parent Handle, field string) {
	h := p.open(parent, KindFieldDefinition, field)
	p.take(h, KindIdentifier, "name")
	p.take(h, ":", "")
	p.trivia(h)

	if !p.definition(h, "") {
		t := p.peek()
		p.b.Error(t.start, t.end, "expected pattern after field name")
	}

	p.close(h)
}

func (p *parser) negatedField(parent Handle) {
	h := p.open(parent, KindNegatedField, "")
	p.take(h, "!", "")

	if p.peek().kind == tokIdent {
		p.take(h, KindIdentifier, "")
	} else {
		t := p.peek()
		p.b.Error(t.start, t.end, "expected field name after !")
	}

	p.close(h)
}

func (p *parser) predicate(parent Handle, field string) {
	h := p.open(parent, KindPredicate, field)
	p.take(h, "(", "")
	p.take(h, "#", "")

	if p.peek().kind == tokIdent {
		p.take(h, KindIdentifier, "name")
	}

	if k := p.peek().kind; k == tokQuestion || k == tokBang {
		p.take(h, KindPredicateType, "type")
	}

	params := p.open(h, KindParameters, "parameters")

	for {
		p.trivia(params)

		t := p.peek()

		switch t.kind {
		case tokAt:
			p.capture(params)
		case tokString:
			p.str(params, "")
		case tokIdent:
			p.take(params, KindIdentifier, "")
		case tokRParen:
			p.close(params)
			p.take(h, ")", "")
			p.close(h)

			return
		case tokEOF:
			p.close(params)
			p.b.Error(t.start, t.end, `missing ")"`)
			p.close(h)

			return
		default:
			p.unexpected(params)
		}
	}
}

// suffix parses an optional quantifier followed by captures.
func (p *parser) suffix(h Handle) {
	switch p.peek().kind {
	case tokStar, tokPlus, tokQuestion:
		p.take(h, KindQuantifier, "quantifier")
	}

	for p.peek().kind == tokAt {
		p.capture(h)
	}
}

func (p *parser) capture(parent Handle) {
	h := p.open(parent, KindCapture, "")
	p.take(h, "@", "")

	if p.peek().kind == tokIdent {
		p.take(h, KindIdentifier, "name")
	} else {
		t := p.peek()
		p.b.Error(t.start, t.end, "expected capture name after @")
	}

	p.close(h)
}
