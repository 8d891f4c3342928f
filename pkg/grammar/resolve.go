package grammar

import (
	"fmt"

	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// MaxResolutionDepth bounds how many indirections Resolve follows.
const MaxResolutionDepth = 1000

// ResolvedRule is the first rule with an independent shape reached from a
// name or fragment.
type ResolvedRule struct {
	// Rule is the resolved fragment, or NoRule for an external token with
	// no body in this grammar.
	Rule RuleID
	// Name is the last symbol followed on the way.
	Name string
	Hops int
}

// ResolveRuleFor resolves the top-level rule called name.
func (g *Grammar) ResolveRuleFor(name string) (ResolvedRule, error) {
	id, ok := g.named[name]
	if !ok {
		return ResolvedRule{Rule: NoRule, Name: name}, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}

	res, err := g.Resolve(id)
	if res.Name == "" {
		res.Name = name
	}

	return res, err
}

// Resolve follows SYMBOL indirections and the ALIAS, RESERVED, TOKEN and
// PREC wrappers until it reaches SEQ, CHOICE, FIELD, REPEAT, REPEAT1 or a
// terminal.
func (g *Grammar) Resolve(id RuleID) (ResolvedRule, error) {
	res := ResolvedRule{Rule: id}

	for res.Hops = 0; res.Hops < MaxResolutionDepth; res.Hops++ {
		r := g.Rule(res.Rule)
		if r == nil {
			g.warnMissing("resolve", res.Rule)

			return ResolvedRule{Rule: NoRule, Name: res.Name, Hops: res.Hops}, nil
		}

		switch {
		case r.Type == terminality.RuleSymbol:
			ref, ok := g.named[r.Name]
			if !ok {
				return ResolvedRule{Rule: NoRule, Name: r.Name, Hops: res.Hops}, nil
			}

			res.Name = r.Name
			res.Rule = ref
		case r.Type == terminality.RuleAlias, r.Type == terminality.RuleReserved,
			r.Type == terminality.RuleToken, r.Type == terminality.RuleImmediateToken,
			r.IsPrecedence():
			res.Rule = r.Content
		default:
			return res, nil
		}
	}

	return res, fmt.Errorf("%w: %d hops from rule %d", ErrMaxResolutionDepth, MaxResolutionDepth, id)
}

// Unwrap skips ALIAS, RESERVED, TOKEN and PREC wrappers without following
// symbols.
func (g *Grammar) Unwrap(id RuleID) RuleID {
	for hops := 0; hops < MaxResolutionDepth; hops++ {
		r := g.Rule(id)
		if r == nil {
			return NoRule
		}

		switch {
		case r.Type == terminality.RuleAlias, r.Type == terminality.RuleReserved,
			r.Type == terminality.RuleToken, r.Type == terminality.RuleImmediateToken,
			r.IsPrecedence():
			id = r.Content
		default:
			return id
		}
	}

	return id
}
