package terminality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

func TestForRuleType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ruleType string
		want     terminality.Terminality
	}{
		{terminality.RuleBlank, terminality.Terminal},
		{terminality.RuleString, terminality.Terminal},
		{terminality.RulePattern, terminality.Terminal},
		{terminality.RuleSymbol, terminality.PseudoTerminal},
		{terminality.RuleField, terminality.PseudoTerminal},
		{terminality.RuleToken, terminality.PseudoTerminal},
		{terminality.RuleImmediateToken, terminality.PseudoTerminal},
		{terminality.RuleSeq, terminality.NonTerminal},
		{terminality.RuleChoice, terminality.NonTerminal},
		{terminality.RuleRepeat, terminality.NonTerminal},
		{terminality.RuleRepeat1, terminality.NonTerminal},
		{terminality.RuleAlias, terminality.NonTerminal},
		{terminality.RuleReserved, terminality.NonTerminal},
		{terminality.RulePrec, terminality.NonTerminal},
		{terminality.RulePrecLeft, terminality.NonTerminal},
		{terminality.RulePrecRight, terminality.NonTerminal},
		{terminality.RulePrecDynamic, terminality.NonTerminal},
		{"SOMETHING_NEW", terminality.NonTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.ruleType, func(t *testing.T) {
			t.Parallel()

			got := terminality.ForRuleType(tt.ruleType)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, terminality.ForRuleType(tt.ruleType), "classification must be stable")
		})
	}
}

func TestForPatternKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, terminality.PseudoTerminal, terminality.ForPatternKind(terminality.PatternNamedNode))
	assert.Equal(t, terminality.PseudoTerminal, terminality.ForPatternKind(terminality.PatternFieldDefinition))
	assert.Equal(t, terminality.Terminal, terminality.ForPatternKind(terminality.PatternAnonymousNode))
	assert.Equal(t, terminality.Terminal, terminality.ForPatternKind(terminality.PatternMissingNode))
	assert.Equal(t, terminality.NonTerminal, terminality.ForPatternKind(terminality.PatternList))
	assert.Equal(t, terminality.NonTerminal, terminality.ForPatternKind(terminality.PatternGrouping))
	assert.Equal(t, terminality.NonTerminal, terminality.ForPatternKind("predicate"))
}

func TestKindaTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, terminality.Terminal.IsKindaTerminal())
	assert.True(t, terminality.PseudoTerminal.IsKindaTerminal())
	assert.False(t, terminality.NonTerminal.IsKindaTerminal())
	assert.Equal(t, "pseudo-terminal", terminality.PseudoTerminal.String())
}
