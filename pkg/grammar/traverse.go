package grammar

import (
	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// walk is the cycle guard of one top-level traversal call. Fragments are
// keyed by position, so each occurrence of a hidden rule is walked on its own.
type walk struct {
	seen map[string]struct{}
}

func newWalk() *walk {
	return &walk{seen: make(map[string]struct{})}
}

func (w *walk) visit(p Position) bool {
	key := p.Key()
	if _, ok := w.seen[key]; ok {
		return false
	}

	w.seen[key] = struct{}{}

	return true
}

// unwrapping reports whether p is already inside the body of the hidden
// rule called name.
func (g *Grammar) unwrapping(p Position, name string) bool {
	for f := p.via; f != nil; f = f.outer {
		if r := g.Rule(f.symbol); r != nil && r.Name == name {
			return true
		}
	}

	return false
}

// isUnit reports whether r is matched as a single node: a kinda-terminal,
// or an ALIAS that renames its whole content.
func isUnit(r *Rule) bool {
	return r.Type == terminality.RuleAlias || r.Terminality().IsKindaTerminal()
}

// hiddenReferent returns the body a hidden symbol unwraps to.
func (g *Grammar) hiddenReferent(r *Rule) (RuleID, bool) {
	if r.Type != terminality.RuleSymbol || !g.IsHidden(r.Name) {
		return NoRule, false
	}

	ref, ok := g.named[r.Name]

	return ref, ok
}

// Nullable reports whether the fragment can derive no node at all.
func (g *Grammar) Nullable(id RuleID) bool {
	if id < 0 || int(id) >= len(g.nullable) {
		return false
	}

	return g.nullable[id]
}

// ThisOrFirstTerminals returns p itself when it is a kinda-terminal or an
// ALIAS, otherwise the kinda-terminals a derivation of p can start with. Every
// branch of a CHOICE contributes and nullable SEQ members are skipped over.
func (g *Grammar) ThisOrFirstTerminals(p Position) []Position {
	var out PositionSet

	if r := g.Rule(p.Rule); r != nil && r.Type == terminality.RuleBlank {
		out.Add(p)

		return out.Positions()
	}

	g.first(p, newWalk(), &out)

	return out.Positions()
}

func (g *Grammar) first(p Position, w *walk, out *PositionSet) {
	r := g.Rule(p.Rule)
	if r == nil {
		g.warnMissing("firstTerminals", p.Rule)

		return
	}

	if ref, ok := g.hiddenReferent(r); ok {
		if g.IsSupertype(r.Name) {
			out.Add(p)
		}

		if !g.unwrapping(p, r.Name) {
			g.first(p.enter(ref), w, out)
		}

		return
	}

	if r.Type == terminality.RuleBlank {
		return
	}

	if isUnit(r) {
		out.Add(p)

		return
	}

	if !w.visit(p) {
		return
	}

	switch r.Type {
	case terminality.RuleSeq:
		for _, member := range r.Members {
			g.first(p.at(member), w, out)

			if !g.Nullable(member) {
				return
			}
		}
	case terminality.RuleChoice:
		for _, member := range r.Members {
			g.first(p.at(member), w, out)
		}
	default:
		if r.Content != NoRule {
			g.first(p.at(r.Content), w, out)
		}
	}
}

// TerminalDescendants returns every kinda-terminal reachable beneath p,
// or p itself when it is one. An ALIAS is returned as a whole and never
// opened.
func (g *Grammar) TerminalDescendants(p Position) []Position {
	var out PositionSet

	g.descendants(p, newWalk(), &out)

	return out.Positions()
}

// DescendantsOf unions TerminalDescendants over the given roots.
func (g *Grammar) DescendantsOf(ids ...RuleID) []Position {
	var out PositionSet

	for _, id := range ids {
		out.Add(g.TerminalDescendants(At(id))...)
	}

	return out.Positions()
}

func (g *Grammar) descendants(p Position, w *walk, out *PositionSet) {
	r := g.Rule(p.Rule)
	if r == nil {
		g.warnMissing("terminalDescendants", p.Rule)

		return
	}

	if ref, ok := g.hiddenReferent(r); ok {
		if g.IsSupertype(r.Name) {
			out.Add(p)
		}

		if !g.unwrapping(p, r.Name) {
			g.descendants(p.enter(ref), w, out)
		}

		return
	}

	if r.Type == terminality.RuleBlank {
		return
	}

	if isUnit(r) {
		out.Add(p)

		return
	}

	if !w.visit(p) {
		return
	}

	for _, child := range r.Children() {
		g.descendants(p.at(child), w, out)
	}
}

// SubsequentTerminals returns the kinda-terminals that may follow p. It
// re-includes the body of an enclosing REPEAT, takes the descendants of
// every later SEQ sibling and keeps climbing. Leaving the body of a hidden
// rule continues after the symbol that was unwrapped; leaving a visible rule
// body or the content of an ALIAS ends.
func (g *Grammar) SubsequentTerminals(p Position) []Position {
	var out PositionSet

	g.subsequent(p, make(map[string]struct{}), &out)

	return out.Positions()
}

func (g *Grammar) subsequent(p Position, climbed map[string]struct{}, out *PositionSet) {
	for {
		key := p.Key()
		if _, ok := climbed[key]; ok {
			return
		}

		climbed[key] = struct{}{}

		r := g.Rule(p.Rule)
		if r == nil {
			g.warnMissing("subsequentTerminals", p.Rule)

			return
		}

		if r.Parent == NoRule {
			next, ok := p.escape()
			if !ok {
				return
			}

			p = next

			continue
		}

		parent := g.Rule(r.Parent)
		if parent == nil {
			g.warnMissing("subsequentTerminals", r.Parent)

			return
		}

		switch parent.Type {
		case terminality.RuleAlias:
			return
		case terminality.RuleRepeat, terminality.RuleRepeat1:
			out.Add(g.TerminalDescendants(p.at(parent.ID))...)
		case terminality.RuleSeq:
			g.following(p, r, out)
		}

		p = p.at(parent.ID)
	}
}

// following adds the terminal descendants of every SEQ sibling after r.
// A pattern may omit any child, so no sibling stops the scan.
func (g *Grammar) following(p Position, r *Rule, out *PositionSet) {
	for sib := r.Next; sib != NoRule; {
		out.Add(g.TerminalDescendants(p.at(sib))...)

		next := g.Rule(sib)
		if next == nil {
			return
		}

		sib = next.Next
	}
}

func computeNullable(g *Grammar) []bool {
	nullable := make([]bool, len(g.rules))

	for changed := true; changed; {
		changed = false

		for idx := range g.rules {
			if nullable[idx] {
				continue
			}

			if g.derivesEmpty(&g.rules[idx], nullable) {
				nullable[idx] = true
				changed = true
			}
		}
	}

	return nullable
}

func (g *Grammar) derivesEmpty(r *Rule, nullable []bool) bool {
	switch {
	case r.Type == terminality.RuleBlank, r.Type == terminality.RuleRepeat:
		return true
	case r.Type == terminality.RuleString:
		return r.Value == ""
	case r.Type == terminality.RuleSymbol:
		ref, ok := g.named[r.Name]

		return ok && g.IsHidden(r.Name) && nullable[ref]
	case r.Type == terminality.RuleSeq:
		for _, member := range r.Members {
			if !nullable[member] {
				return false
			}
		}

		return true
	case r.Type == terminality.RuleChoice:
		for _, member := range r.Members {
			if nullable[member] {
				return true
			}
		}

		return false
	case r.Type == terminality.RuleRepeat1, r.Type == terminality.RuleAlias,
		r.Type == terminality.RuleField, r.Type == terminality.RuleReserved,
		r.IsPrecedence():
		return r.Content != NoRule && nullable[r.Content]
	default:
		return false
	}
}
