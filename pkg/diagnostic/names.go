package diagnostic

import (
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
)

// checkNames returns the first node under root, in source order, whose name
// the grammar does not know.
func (e *Engine) checkNames(f *pattern.File, root pattern.DefID) (Issue, bool) {
	d := f.Def(root)
	if d == nil {
		return Issue{}, false
	}

	if issue, found := e.checkName(d); found {
		return issue, true
	}

	for _, child := range d.Children {
		if issue, found := e.checkNames(f, child); found {
			return issue, true
		}
	}

	return Issue{}, false
}

func (e *Engine) checkName(d *pattern.Definition) (Issue, bool) {
	g := e.grammar

	switch d.Kind {
	case pattern.KindNamedNode:
		if d.Wildcard || d.Name == pattern.ErrorNode {
			return e.checkNegatedFields(d)
		}

		if d.Supertype != "" {
			if _, ok := g.SupertypeName(d.Supertype); !ok {
				issue := newIssue(InvalidNode, d, nil)
				issue.Suggestion = grammar.Suggest(d.Supertype, g.NodeNames())

				return issue, true
			}

			if !g.IsSubtype(d.Supertype, d.Name) {
				issue := newIssue(InvalidNode, d, nil)
				issue.Suggestion = grammar.Suggest(d.Name, g.Subtypes(d.Supertype))

				return issue, true
			}

			return e.checkNegatedFields(d)
		}

		if !g.IsNodeName(d.Name) {
			issue := newIssue(InvalidNode, d, nil)
			issue.Suggestion = grammar.Suggest(d.Name, g.NodeNames())

			return issue, true
		}

		return e.checkNegatedFields(d)
	case pattern.KindAnonymousNode:
		if d.Wildcard || g.IsLiteral(d.Name) {
			return Issue{}, false
		}

		issue := newIssue(InvalidNode, d, nil)
		issue.Suggestion = grammar.Suggest(d.Name, g.Literals())

		return issue, true
	case pattern.KindMissingNode:
		switch {
		case d.Name == "":
			return Issue{}, false
		case d.IsString && !g.IsLiteral(d.Name):
			issue := newIssue(InvalidNode, d, nil)
			issue.Suggestion = grammar.Suggest(d.Name, g.Literals())

			return issue, true
		case !d.IsString && !g.IsNodeName(d.Name):
			issue := newIssue(InvalidNode, d, nil)
			issue.Suggestion = grammar.Suggest(d.Name, g.NodeNames())

			return issue, true
		}
	case pattern.KindFieldDefinition:
		if !g.IsField(d.Name) {
			issue := newIssue(InvalidField, d, nil)
			issue.Field = d.Name
			issue.Suggestion = grammar.Suggest(d.Name, g.FieldNames())

			return issue, true
		}
	}

	return Issue{}, false
}

func (e *Engine) checkNegatedFields(d *pattern.Definition) (Issue, bool) {
	for _, negated := range d.NegatedFields {
		if e.grammar.IsField(negated.Name) {
			continue
		}

		issue := newIssue(InvalidField, d, nil)
		issue.Field = negated.Name
		issue.Range = RangeOf(negated.Node)
		issue.Suggestion = grammar.Suggest(negated.Name, e.grammar.FieldNames())

		return issue, true
	}

	return Issue{}, false
}
