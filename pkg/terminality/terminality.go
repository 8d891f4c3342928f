// Package terminality classifies grammar rule shapes and query pattern shapes
// by their match identity.
package terminality

// Terminality is the three-way match-identity class shared by grammar rules
// and pattern nodes.
type Terminality int

// Terminality values.
const (
	// NonTerminal is pure structural composition with no match identity of its own.
	NonTerminal Terminality = iota
	// PseudoTerminal matches one named position that may have internal structure.
	PseudoTerminal
	// Terminal matches exactly one concrete token.
	Terminal
)

// String returns the lower-case name of the class.
func (t Terminality) String() string {
	switch t {
	case Terminal:
		return "terminal"
	case PseudoTerminal:
		return "pseudo-terminal"
	case NonTerminal:
		return "non-terminal"
	default:
		return "unknown"
	}
}

// IsKindaTerminal reports whether t is Terminal or PseudoTerminal.
func (t Terminality) IsKindaTerminal() bool {
	return t == Terminal || t == PseudoTerminal
}

// Grammar rule type tags as they appear in grammar JSON.
const (
	RuleBlank          = "BLANK"
	RuleString         = "STRING"
	RulePattern        = "PATTERN"
	RuleSymbol         = "SYMBOL"
	RuleSeq            = "SEQ"
	RuleChoice         = "CHOICE"
	RuleAlias          = "ALIAS"
	RuleRepeat         = "REPEAT"
	RuleRepeat1        = "REPEAT1"
	RuleReserved       = "RESERVED"
	RuleToken          = "TOKEN"
	RuleImmediateToken = "IMMEDIATE_TOKEN"
	RuleField          = "FIELD"
	RulePrec           = "PREC"
	RulePrecLeft       = "PREC_LEFT"
	RulePrecRight      = "PREC_RIGHT"
	RulePrecDynamic    = "PREC_DYNAMIC"
)

// Query pattern node kinds as produced by the query language parser.
const (
	PatternNamedNode       = "named_node"
	PatternAnonymousNode   = "anonymous_node"
	PatternMissingNode     = "missing_node"
	PatternList            = "list"
	PatternGrouping        = "grouping"
	PatternFieldDefinition = "field_definition"
	PatternAnchor          = "."
)

// ForRuleType classifies a grammar rule by its JSON type tag.
// Unknown tags are NonTerminal: they contribute no match positions.
func ForRuleType(ruleType string) Terminality {
	switch ruleType {
	case RuleBlank, RuleString, RulePattern:
		return Terminal
	case RuleSymbol, RuleField, RuleToken, RuleImmediateToken:
		return PseudoTerminal
	default:
		return NonTerminal
	}
}

// ForPatternKind classifies a query pattern node by its syntax kind.
// The anchor is Terminal: it is a bare position marker with no structure.
func ForPatternKind(kind string) Terminality {
	switch kind {
	case PatternAnonymousNode, PatternMissingNode, PatternAnchor:
		return Terminal
	case PatternNamedNode, PatternFieldDefinition:
		return PseudoTerminal
	default:
		return NonTerminal
	}
}
