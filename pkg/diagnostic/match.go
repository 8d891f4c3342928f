package diagnostic

import (
	"strings"

	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// maxFieldNesting bounds how deep matching opens FIELD contents for a
// pattern node written without a field prefix.
const maxFieldNesting = 8

// matches returns the positions among candidates that d can match, in
// candidate order.
func (e *Engine) matches(d *pattern.Definition, candidates []grammar.Position) []grammar.Position {
	var out grammar.PositionSet

	for _, p := range candidates {
		e.matchPosition(d, p, &out, 0)
	}

	return out.Positions()
}

func (e *Engine) matchPosition(d *pattern.Definition, p grammar.Position, out *grammar.PositionSet, depth int) {
	r := e.grammar.Rule(p.Rule)
	if r == nil {
		e.logger.Warn("rule position out of range", "rule", p.Rule)

		return
	}

	switch r.Type {
	case terminality.RuleBlank:
		return
	case terminality.RuleField:
		if d.Kind == pattern.KindFieldDefinition {
			if r.Name == d.Name {
				out.Add(p)
			}

			return
		}

		if depth >= maxFieldNesting {
			return
		}

		for _, inner := range e.grammar.TerminalDescendants(p.Move(r.Content)) {
			e.matchPosition(d, inner, out, depth+1)
		}

		return
	}

	if d.Kind == pattern.KindFieldDefinition {
		return
	}

	if r.Type == terminality.RuleAlias {
		if e.matchAlias(d, r, p) {
			out.Add(p)
		}

		return
	}

	var ok bool

	switch d.Kind {
	case pattern.KindNamedNode:
		ok = e.matchNamed(d, r, p)
	case pattern.KindAnonymousNode:
		ok = d.Wildcard || e.matchLiteral(r, d.Name)
	case pattern.KindMissingNode:
		ok = e.matchMissing(d, r, p)
	default:
		e.logger.Warn("unmatchable pattern kind", "kind", d.Kind.String())
	}

	if ok {
		out.Add(p)
	}
}

func (e *Engine) matchNamed(d *pattern.Definition, r *grammar.Rule, p grammar.Position) bool {
	if d.Name == pattern.ErrorNode {
		return true
	}

	if r.Type != terminality.RuleSymbol {
		return false
	}

	visible := !strings.HasPrefix(r.Name, "_") || e.grammar.IsSupertype(r.Name)

	if d.Wildcard {
		return visible
	}

	if d.Supertype != "" {
		return e.matchSubtype(d, r.Name, p)
	}

	if r.Name == d.Name {
		return true
	}

	supertype, ok := e.grammar.SupertypeName(d.Name)

	return ok && supertype == r.Name
}

// matchSubtype checks an (S/N) pattern against a position called name: the
// supertype symbol itself, or N reached through S.
func (e *Engine) matchSubtype(d *pattern.Definition, name string, p grammar.Position) bool {
	supertype, ok := e.grammar.SupertypeName(d.Supertype)
	if !ok {
		return false
	}

	if name == supertype {
		return e.grammar.IsSubtype(supertype, d.Name)
	}

	if name != d.Name {
		return false
	}

	for _, via := range p.Via() {
		if r := e.grammar.Rule(via); r != nil && r.Name == supertype {
			return true
		}
	}

	return false
}

func (e *Engine) matchAlias(d *pattern.Definition, alias *grammar.Rule, p grammar.Position) bool {
	if alias == nil {
		return false
	}

	switch d.Kind {
	case pattern.KindNamedNode:
		if !alias.Named {
			return false
		}

		if d.Wildcard || d.Name == pattern.ErrorNode {
			return true
		}

		if d.Supertype != "" {
			return e.matchSubtype(d, alias.Value, p)
		}

		return alias.Value == d.Name
	case pattern.KindAnonymousNode:
		return d.Wildcard || !alias.Named && alias.Value == d.Name
	case pattern.KindMissingNode:
		if d.Name == "" {
			return true
		}

		return alias.Named != d.IsString && alias.Value == d.Name
	default:
		return false
	}
}

func (e *Engine) matchMissing(d *pattern.Definition, r *grammar.Rule, p grammar.Position) bool {
	switch {
	case d.Name == "":
		return true
	case d.IsString:
		return e.matchLiteral(r, d.Name)
	default:
		named := *d
		named.Kind = pattern.KindNamedNode

		return e.matchNamed(&named, r, p)
	}
}

// matchLiteral reports whether r produces an anonymous node reading value.
func (e *Engine) matchLiteral(r *grammar.Rule, value string) bool {
	text, ok := e.literal(r)

	return ok && text == value
}

// literal returns the text of a STRING, or of a TOKEN wrapping one.
func (e *Engine) literal(r *grammar.Rule) (string, bool) {
	switch r.Type {
	case terminality.RuleString:
		return r.Value, true
	case terminality.RuleToken, terminality.RuleImmediateToken:
		inner := e.grammar.Rule(e.grammar.Unwrap(r.ID))
		if inner != nil && inner.Type == terminality.RuleString {
			return inner.Value, true
		}
	}

	return "", false
}
