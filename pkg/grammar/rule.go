// Package grammar builds a linked, immutable rule model from grammar JSON and
// computes first and follow terminal sets over it.
package grammar

import (
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// RuleID addresses a rule in its grammar's arena.
type RuleID int

// NoRule marks an absent parent, sibling, or content link.
const NoRule RuleID = -1

// Rule is one fragment of a grammar production. Links are arena indices.
type Rule struct {
	ID   RuleID
	Type string
	// Value is the literal for STRING, the regex for PATTERN, the alias
	// name for ALIAS and the precedence for PREC variants.
	Value       string
	Name        string
	Flags       string
	Named       bool
	ContextName string
	Members     []RuleID
	Content     RuleID
	Parent      RuleID
	Prev        RuleID
	Next        RuleID
	// Owner is the top-level rule, extra or external the fragment belongs to.
	Owner string
}

// Terminality classifies the rule by its type.
func (r *Rule) Terminality() terminality.Terminality {
	return terminality.ForRuleType(r.Type)
}

// Children returns members for SEQ and CHOICE, otherwise the content if any.
func (r *Rule) Children() []RuleID {
	if len(r.Members) > 0 {
		return r.Members
	}

	if r.Content != NoRule {
		return []RuleID{r.Content}
	}

	return nil
}

// IsPrecedence reports whether the rule is one of the PREC wrappers.
func (r *Rule) IsPrecedence() bool {
	switch r.Type {
	case terminality.RulePrec, terminality.RulePrecLeft, terminality.RulePrecRight, terminality.RulePrecDynamic:
		return true
	default:
		return false
	}
}

// Grammar owns every rule of one loaded grammar.
type Grammar struct {
	Name string
	Word string

	rules      []Rule
	named      map[string]RuleID
	order      []string
	extras     []RuleID
	externals  []RuleID
	supertypes map[string]struct{}
	inline     map[string]struct{}
	index      *nameIndex
	nullable   []bool
	logger     *slog.Logger
}

// Rule returns the rule with the given ID, or nil when the ID is out of range.
func (g *Grammar) Rule(id RuleID) *Rule {
	if id < 0 || int(id) >= len(g.rules) {
		return nil
	}

	return &g.rules[id]
}

// Len returns the number of rule fragments in the arena.
func (g *Grammar) Len() int {
	return len(g.rules)
}

// Named returns the body root of a top-level rule.
func (g *Grammar) Named(name string) (RuleID, bool) {
	id, ok := g.named[name]

	return id, ok
}

// RuleNames returns the top-level rule names in declaration order.
func (g *Grammar) RuleNames() []string {
	return append([]string(nil), g.order...)
}

// Extras returns the root IDs of the extras rules.
func (g *Grammar) Extras() []RuleID {
	return append([]RuleID(nil), g.extras...)
}

// Externals returns the root IDs of the external token rules.
func (g *Grammar) Externals() []RuleID {
	return append([]RuleID(nil), g.externals...)
}

// IsSupertype reports whether name is declared in supertypes.
func (g *Grammar) IsSupertype(name string) bool {
	_, ok := g.supertypes[name]

	return ok
}

// IsInline reports whether name is declared in inline.
func (g *Grammar) IsInline(name string) bool {
	_, ok := g.inline[name]

	return ok
}

// IsHidden reports whether a symbol with this name is unwrapped during
// terminal computation.
func (g *Grammar) IsHidden(name string) bool {
	return strings.HasPrefix(name, "_") || g.IsSupertype(name) || g.IsInline(name)
}

// Logger returns the logger traversal anomalies are reported to.
func (g *Grammar) Logger() *slog.Logger {
	return g.logger
}

func (g *Grammar) warnMissing(op string, id RuleID) {
	g.logger.Warn("rule id out of range", "op", op, "id", int(id), "grammar", g.Name)
}
