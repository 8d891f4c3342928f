package grammar

import (
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// minSuggestDistance is the edit distance always accepted for a suggestion.
const minSuggestDistance = 2

type nameIndex struct {
	named        map[string]struct{}
	literals     map[string]struct{}
	fields       map[string][]RuleID
	aliases      map[string][]RuleID
	extraNames   map[string]struct{}
	extraStrings map[string]struct{}
	subtypes     map[string][]string
}

func buildNameIndex(g *Grammar) *nameIndex {
	idx := &nameIndex{
		named:        make(map[string]struct{}),
		literals:     make(map[string]struct{}),
		fields:       make(map[string][]RuleID),
		aliases:      make(map[string][]RuleID),
		extraNames:   make(map[string]struct{}),
		extraStrings: make(map[string]struct{}),
		subtypes:     make(map[string][]string),
	}

	for _, name := range g.order {
		switch {
		case g.IsSupertype(name):
			idx.named[name] = struct{}{}
			idx.named[strings.TrimPrefix(name, "_")] = struct{}{}
		case !g.IsHidden(name):
			idx.named[name] = struct{}{}
		}
	}

	for i := range g.rules {
		r := &g.rules[i]

		switch r.Type {
		case terminality.RuleString:
			if token, inToken := g.tokenOf(r.ID); !inToken || g.Unwrap(token) == r.ID {
				idx.literals[r.Value] = struct{}{}
			}
		case terminality.RuleAlias:
			if r.Named {
				idx.named[r.Value] = struct{}{}
				idx.aliases[r.Value] = append(idx.aliases[r.Value], r.ID)
			} else {
				idx.literals[r.Value] = struct{}{}
			}
		case terminality.RuleField:
			idx.fields[r.Name] = append(idx.fields[r.Name], r.ID)
		case terminality.RuleSymbol:
			if _, declared := g.named[r.Name]; !declared && !strings.HasPrefix(r.Name, "_") {
				idx.named[r.Name] = struct{}{}
			}
		}
	}

	for _, id := range g.extras {
		for _, p := range g.TerminalDescendants(At(id)) {
			r := g.Rule(p.Rule)

			switch r.Type {
			case terminality.RuleSymbol:
				idx.extraNames[r.Name] = struct{}{}
			case terminality.RuleString:
				idx.extraStrings[r.Value] = struct{}{}
			case terminality.RuleAlias:
				if r.Named {
					idx.extraNames[r.Value] = struct{}{}
				} else {
					idx.extraStrings[r.Value] = struct{}{}
				}
			}
		}
	}

	for name := range g.supertypes {
		idx.subtypes[name] = g.collectSubtypes(name)
	}

	return idx
}

// tokenOf returns the TOKEN or IMMEDIATE_TOKEN wrapping id, if any. A string
// inside a token surfaces as a node only when the token is that string alone.
func (g *Grammar) tokenOf(id RuleID) (RuleID, bool) {
	r := g.Rule(id)

	for r != nil && r.Parent != NoRule {
		parent := g.Rule(r.Parent)
		if parent == nil {
			break
		}

		if parent.Type == terminality.RuleToken || parent.Type == terminality.RuleImmediateToken {
			return parent.ID, true
		}

		r = parent
	}

	return NoRule, false
}

func (g *Grammar) collectSubtypes(supertype string) []string {
	body, ok := g.named[supertype]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})

	var out []string

	for _, p := range g.TerminalDescendants(At(body)) {
		r := g.Rule(p.Rule)

		var name string

		switch {
		case r.Type == terminality.RuleAlias && r.Named:
			name = r.Value
		case r.Type == terminality.RuleSymbol:
			name = r.Name
		}

		if name == "" {
			continue
		}

		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}

// IsNodeName reports whether name can appear as a named node.
func (g *Grammar) IsNodeName(name string) bool {
	_, ok := g.index.named[name]

	return ok
}

// IsLiteral reports whether value can appear as an anonymous node.
func (g *Grammar) IsLiteral(value string) bool {
	_, ok := g.index.literals[value]

	return ok
}

// IsField reports whether any rule declares a field called name.
func (g *Grammar) IsField(name string) bool {
	_, ok := g.index.fields[name]

	return ok
}

// FieldRules returns every FIELD rule called name.
func (g *Grammar) FieldRules(name string) []RuleID {
	return append([]RuleID(nil), g.index.fields[name]...)
}

// NodeNames returns the sorted named node names.
func (g *Grammar) NodeNames() []string {
	return sortedKeys(g.index.named)
}

// Literals returns the sorted anonymous node values.
func (g *Grammar) Literals() []string {
	return sortedKeys(g.index.literals)
}

// FieldNames returns the sorted field names.
func (g *Grammar) FieldNames() []string {
	out := make([]string, 0, len(g.index.fields))

	for name := range g.index.fields {
		out = append(out, name)
	}

	slices.Sort(out)

	return out
}

// SupertypeName returns the declared supertype written as name, with or
// without its leading underscore.
func (g *Grammar) SupertypeName(name string) (string, bool) {
	if g.IsSupertype(name) {
		return name, true
	}

	if g.IsSupertype("_" + name) {
		return "_" + name, true
	}

	return "", false
}

// Subtypes returns the node names a supertype stands for.
func (g *Grammar) Subtypes(supertype string) []string {
	name, ok := g.SupertypeName(supertype)
	if !ok {
		return nil
	}

	return append([]string(nil), g.index.subtypes[name]...)
}

// IsSubtype reports whether node is one of the supertype's subtypes.
func (g *Grammar) IsSubtype(supertype, node string) bool {
	name, ok := g.SupertypeName(supertype)
	if !ok {
		return false
	}

	return slices.Contains(g.index.subtypes[name], node)
}

// IsExtraName reports whether a named node of this name is an extra.
func (g *Grammar) IsExtraName(name string) bool {
	_, ok := g.index.extraNames[name]

	return ok
}

// IsExtraLiteral reports whether an anonymous node with this value is an extra.
func (g *Grammar) IsExtraLiteral(value string) bool {
	_, ok := g.index.extraStrings[value]

	return ok
}

// RulesForNode returns the roots whose structure the children of a node
// called name are checked against: the rule body and the content of every
// named alias producing that name. A supertype stands for the bodies of
// its subtypes.
func (g *Grammar) RulesForNode(name string) []RuleID {
	if supertype, ok := g.SupertypeName(name); ok {
		var out []RuleID

		for _, sub := range g.index.subtypes[supertype] {
			if g.IsSupertype(sub) {
				continue
			}

			out = append(out, g.RulesForNode(sub)...)
		}

		return out
	}

	var out []RuleID

	if id, ok := g.named[name]; ok && !g.IsHidden(name) {
		out = append(out, id)
	}

	for _, alias := range g.index.aliases[name] {
		if root, ok := g.ChildRoot(g.rules[alias].Content); ok {
			out = append(out, root)
		}
	}

	return out
}

// ChildRoot returns the fragment whose terminal descendants are the
// possible children of the node produced at id: the body of a referenced
// symbol, otherwise the fragment itself with wrappers removed.
func (g *Grammar) ChildRoot(id RuleID) (RuleID, bool) {
	unwrapped := g.Unwrap(id)

	r := g.Rule(unwrapped)
	if r == nil {
		return NoRule, false
	}

	if r.Type != terminality.RuleSymbol {
		return unwrapped, true
	}

	body, ok := g.named[r.Name]

	return body, ok
}

// NodeBodies returns the child roots of every visible node: each visible
// rule body and the content of each named alias.
func (g *Grammar) NodeBodies() []RuleID {
	var out []RuleID

	seen := make(map[RuleID]struct{})

	add := func(id RuleID) {
		if _, dup := seen[id]; dup {
			return
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, name := range g.order {
		if !g.IsHidden(name) {
			add(g.named[name])
		}
	}

	for _, value := range sortedKeys(aliasNames(g.index.aliases)) {
		for _, alias := range g.index.aliases[value] {
			if root, ok := g.ChildRoot(g.rules[alias].Content); ok {
				add(root)
			}
		}
	}

	return out
}

func aliasNames(aliases map[string][]RuleID) map[string]struct{} {
	out := make(map[string]struct{}, len(aliases))

	for name := range aliases {
		out[name] = struct{}{}
	}

	return out
}

// Suggest returns the candidate closest to name by edit distance, or ""
// when nothing is close enough.
func Suggest(name string, candidates []string) string {
	best := ""
	bestDist := max(minSuggestDistance, len(name)/3) + 1

	for _, candidate := range candidates {
		dist := levenshtein.ComputeDistance(name, candidate)
		if dist < bestDist && dist < len(name) {
			best = candidate
			bestDist = dist
		}
	}

	return best
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))

	for key := range m {
		out = append(out, key)
	}

	slices.Sort(out)

	return out
}
