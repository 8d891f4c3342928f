// Package diagnostic checks parsed query patterns against a grammar and
// reports why a pattern can never match.
package diagnostic

import (
	"encoding/json"
	"fmt"

	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
)

// Kind is the variant of an Issue.
type Kind string

// Issue kinds.
const (
	// InvalidNode is a node name or literal the grammar never produces.
	InvalidNode Kind = "InvalidNode"
	// UnexpectedNode is a top-level node that cannot appear where it is written.
	UnexpectedNode Kind = "UnexpectedNode"
	// UnexpectedChildNode is a child that can appear under its parent, but not there.
	UnexpectedChildNode Kind = "UnexpectedChildNode"
	// UnexpectedFieldValueChild is a later node of a field value that cannot follow.
	UnexpectedFieldValueChild Kind = "UnexpectedFieldValueChild"
	// InvalidChildNode is a child that can never appear under its parent.
	InvalidChildNode Kind = "InvalidChildNode"
	// InvalidNamedNodeFieldName is a field the parent's rule does not have.
	InvalidNamedNodeFieldName Kind = "InvalidNamedNodeFieldName"
	// InvalidNamedNodeFieldValue is a field value the parent's field cannot hold.
	InvalidNamedNodeFieldValue Kind = "InvalidNamedNodeFieldValue"
	// InvalidFieldValue is a top-level field value no field of that name can hold.
	InvalidFieldValue Kind = "InvalidFieldValue"
	// InvalidField is a field name no rule declares.
	InvalidField Kind = "InvalidField"
)

// Severity of a rendered issue.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Range is a source region in zero-based rows and byte columns.
type Range struct {
	Start syntax.Point `json:"start"`
	End   syntax.Point `json:"end"`
}

// RangeOf returns the source region of n.
func RangeOf(n syntax.Node) Range {
	if n == nil {
		return Range{}
	}

	return Range{Start: n.StartPosition(), End: n.EndPosition()}
}

// Issue is one reason a pattern can never match.
type Issue struct {
	Kind Kind
	// Node is the offending pattern node.
	Node *pattern.Definition
	// Parent is the enclosing named node or field, when there is one.
	Parent *pattern.Definition
	// Field is the field name involved, if any.
	Field string
	// Suggestion is a close valid name for InvalidNode and InvalidField.
	Suggestion string
	// Range is the region the issue points at.
	Range Range
}

func newIssue(kind Kind, node, parent *pattern.Definition) Issue {
	issue := Issue{Kind: kind, Node: node, Parent: parent}
	if node != nil {
		issue.Range = RangeOf(node.Node)
	}

	return issue
}

// Severity returns the severity the issue is published with.
func (i Issue) Severity() Severity {
	return SeverityError
}

// Message renders the issue as one line.
func (i Issue) Message() string {
	node := label(i.Node)
	parent := label(i.Parent)

	var msg string

	switch i.Kind {
	case InvalidNode:
		msg = fmt.Sprintf("Invalid node type `%s`", node)
	case UnexpectedNode:
		if i.Parent != nil {
			msg = fmt.Sprintf("Unexpected node `%s` at the edge of `%s`", node, parent)
		} else {
			msg = fmt.Sprintf("Unexpected node `%s`", node)
		}
	case UnexpectedChildNode:
		msg = fmt.Sprintf("Unexpected node `%s` for parent `%s`", node, parent)
	case UnexpectedFieldValueChild:
		msg = fmt.Sprintf("Unexpected node `%s` in the value of field `%s`", node, i.Field)
	case InvalidChildNode:
		msg = fmt.Sprintf("Node `%s` can never be a child of `%s`", node, parent)
	case InvalidNamedNodeFieldName:
		msg = fmt.Sprintf("Invalid field `%s` for parent `%s`", i.Field, parent)
	case InvalidNamedNodeFieldValue:
		msg = fmt.Sprintf("Invalid value `%s` for field `%s` of parent `%s`", node, i.Field, parent)
	case InvalidFieldValue:
		msg = fmt.Sprintf("Invalid value `%s` for field `%s`", node, i.Field)
	case InvalidField:
		msg = fmt.Sprintf("Invalid field name `%s`", i.Field)
	default:
		msg = fmt.Sprintf("Issue %s at `%s`", i.Kind, node)
	}

	if i.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean `%s`?", i.Suggestion)
	}

	return msg
}

func (i Issue) String() string {
	return i.Range.Start.String() + ": " + i.Message()
}

func label(d *pattern.Definition) string {
	if d == nil {
		return ""
	}

	return d.Label()
}

// Record is the serialized form of an issue.
type Record struct {
	Kind       Kind     `json:"kind"                 yaml:"kind"`
	Message    string   `json:"message"              yaml:"message"`
	Severity   Severity `json:"severity"             yaml:"severity"`
	Range      Range    `json:"range"                yaml:"range"`
	Node       string   `json:"node,omitempty"       yaml:"node,omitempty"`
	Parent     string   `json:"parent,omitempty"     yaml:"parent,omitempty"`
	Field      string   `json:"field,omitempty"      yaml:"field,omitempty"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Record returns the serialized form of the issue.
func (i Issue) Record() Record {
	return Record{
		Kind:       i.Kind,
		Message:    i.Message(),
		Severity:   i.Severity(),
		Range:      i.Range,
		Node:       label(i.Node),
		Parent:     label(i.Parent),
		Field:      i.Field,
		Suggestion: i.Suggestion,
	}
}

// MarshalJSON encodes the issue with its rendered message.
func (i Issue) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(i.Record())
	if err != nil {
		return nil, fmt.Errorf("encode issue: %w", err)
	}

	return data, nil
}
