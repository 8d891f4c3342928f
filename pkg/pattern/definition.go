// Package pattern models a parsed query as an arena of typed definitions
// and steps through it one kinda-terminal at a time.
package pattern

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// Kind is the variant of a Definition.
type Kind int

// Definition kinds.
const (
	KindNamedNode Kind = iota
	KindAnonymousNode
	KindMissingNode
	KindList
	KindGrouping
	KindFieldDefinition
	KindAnchor
)

// String returns the query syntax kind the variant is built from.
func (k Kind) String() string {
	switch k {
	case KindNamedNode:
		return terminality.PatternNamedNode
	case KindAnonymousNode:
		return terminality.PatternAnonymousNode
	case KindMissingNode:
		return terminality.PatternMissingNode
	case KindList:
		return terminality.PatternList
	case KindGrouping:
		return terminality.PatternGrouping
	case KindFieldDefinition:
		return terminality.PatternFieldDefinition
	case KindAnchor:
		return terminality.PatternAnchor
	default:
		return "unknown"
	}
}

// DefID addresses a Definition in its File.
type DefID int

// NoDef marks an absent definition link.
const NoDef DefID = -1

// Quantifiers as written in the query.
const (
	QuantifierOptional   = "?"
	QuantifierZeroOrMore = "*"
	QuantifierOneOrMore  = "+"
)

// Reserved node names.
const (
	Wildcard    = "_"
	ErrorNode   = "ERROR"
	MissingNode = "MISSING"
)

// Definition is one node of a parsed pattern.
type Definition struct {
	ID   DefID
	Kind Kind
	Node syntax.Node

	Parent   DefID
	Children []DefID

	// Name is the node name of a named node, the decoded literal of an
	// anonymous node, the optional target of a missing node and the field
	// name of a field definition.
	Name string
	// Supertype is the S of a (S/N) named node.
	Supertype string
	// Wildcard is set for (_) and _.
	Wildcard bool
	// IsString is set when a missing node names a literal.
	IsString bool
	// Value is the pattern of a field definition.
	Value DefID

	Quantifier    string
	Captures      []string
	NegatedFields []NegatedField
}

// NegatedField is a !name constraint inside a named node.
type NegatedField struct {
	Name string
	Node syntax.Node
}

// Terminality classifies the definition by kind.
func (d *Definition) Terminality() terminality.Terminality {
	return terminality.ForPatternKind(d.Kind.String())
}

// IsKindaTerminal reports whether the definition is matched as a unit.
func (d *Definition) IsKindaTerminal() bool {
	return d.Kind != KindAnchor && d.Terminality().IsKindaTerminal()
}

// Repeats reports whether the quantifier allows more than one match.
func (d *Definition) Repeats() bool {
	return d.Quantifier == QuantifierZeroOrMore || d.Quantifier == QuantifierOneOrMore
}

// Optional reports whether the quantifier allows no match.
func (d *Definition) Optional() bool {
	return d.Quantifier == QuantifierOptional || d.Quantifier == QuantifierZeroOrMore
}

// Label renders the definition the way it is written, without children.
func (d *Definition) Label() string {
	switch d.Kind {
	case KindNamedNode:
		if d.Supertype != "" {
			return "(" + d.Supertype + "/" + d.Name + ")"
		}

		return "(" + d.Name + ")"
	case KindAnonymousNode:
		if d.Wildcard {
			return Wildcard
		}

		return strconv.Quote(d.Name)
	case KindMissingNode:
		switch {
		case d.Name == "":
			return "(MISSING)"
		case d.IsString:
			return "(MISSING " + strconv.Quote(d.Name) + ")"
		default:
			return "(MISSING " + d.Name + ")"
		}
	case KindFieldDefinition:
		return d.Name + ":"
	case KindList:
		return "[...]"
	case KindGrouping:
		return "(...)"
	case KindAnchor:
		return "."
	default:
		return "?"
	}
}

// decodeString returns the content of a query string literal.
func decodeString(text string) string {
	value, err := strconv.Unquote(text)
	if err == nil {
		return value
	}

	text = strings.TrimPrefix(text, `"`)

	return strings.TrimSuffix(text, `"`)
}
