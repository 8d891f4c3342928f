package grammar

import "errors"

// Configuration errors. Any of them aborts the grammar load or the single
// diagnosis that triggered it.
var (
	ErrDuplicateRuleID    = errors.New("duplicate rule id")
	ErrDuplicateRuleName  = errors.New("duplicate rule name")
	ErrMaxResolutionDepth = errors.New("max symbol resolution depth exceeded")
	ErrSchemaViolation    = errors.New("grammar violates schema")
	ErrMalformedGrammar   = errors.New("malformed grammar")
	ErrUnknownRule        = errors.New("unknown rule")
)
