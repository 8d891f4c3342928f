package grammar

// RuleSummary describes one top-level rule.
type RuleSummary struct {
	Name        string `json:"name"         yaml:"name"`
	Type        string `json:"type"         yaml:"type"`
	Terminality string `json:"terminality"  yaml:"terminality"`
	Hidden      bool   `json:"hidden"       yaml:"hidden"`
	Supertype   bool   `json:"supertype"    yaml:"supertype"`
	Fragments   int    `json:"fragments"    yaml:"fragments"`
	Descendants int    `json:"descendants"  yaml:"descendants"`
}

// Summaries describes every top-level rule in declaration order.
func (g *Grammar) Summaries() []RuleSummary {
	fragments := make(map[string]int, len(g.order))

	for idx := range g.rules {
		fragments[g.rules[idx].Owner]++
	}

	out := make([]RuleSummary, 0, len(g.order))

	for _, name := range g.order {
		r := g.Rule(g.named[name])

		out = append(out, RuleSummary{
			Name:        name,
			Type:        r.Type,
			Terminality: r.Terminality().String(),
			Hidden:      g.IsHidden(name),
			Supertype:   g.IsSupertype(name),
			Fragments:   fragments[name],
			Descendants: len(g.TerminalDescendants(At(r.ID))),
		})
	}

	return out
}
