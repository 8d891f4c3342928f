package grammar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawGrammar is the grammar description exactly as it appears in grammar JSON.
type RawGrammar struct {
	Name        string               `json:"name"`
	Rules       RuleMap              `json:"rules"`
	Extras      []RawRule            `json:"extras,omitempty"`
	Supertypes  []string             `json:"supertypes,omitempty"`
	Inline      []string             `json:"inline,omitempty"`
	Conflicts   [][]string           `json:"conflicts,omitempty"`
	Precedences [][]RawRule          `json:"precedences,omitempty"`
	Externals   []RawRule            `json:"externals,omitempty"`
	Word        string               `json:"word,omitempty"`
	Reserved    map[string][]RawRule `json:"reserved,omitempty"`
}

// RawRule is one rule fragment, a tagged union on Type.
type RawRule struct {
	Type        string          `json:"type"`
	Value       json.RawMessage `json:"value,omitempty"`
	Name        string          `json:"name,omitempty"`
	Members     []RawRule       `json:"members,omitempty"`
	Content     *RawRule        `json:"content,omitempty"`
	Flags       string          `json:"flags,omitempty"`
	Named       bool            `json:"named,omitempty"`
	ContextName string          `json:"context_name,omitempty"`
}

// valueText returns Value as text. String values are unquoted; numeric
// precedence values are returned verbatim.
func (r *RawRule) valueText() (string, error) {
	if len(r.Value) == 0 {
		return "", nil
	}

	if r.Value[0] != '"' {
		return string(r.Value), nil
	}

	var text string

	err := json.Unmarshal(r.Value, &text)
	if err != nil {
		return "", fmt.Errorf("decode %s value: %w", r.Type, err)
	}

	return text, nil
}

// NamedRule is one entry of the top-level rules object.
type NamedRule struct {
	Name string
	Rule RawRule
}

// RuleMap keeps the top-level rules in declaration order. The first rule is
// the grammar's start rule, so order matters and duplicate keys are rejected
// instead of silently overwritten.
type RuleMap []NamedRule

// UnmarshalJSON decodes the rules object token by token.
func (m *RuleMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	open, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: rules: %w", ErrMalformedGrammar, err)
	}

	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: rules must be an object", ErrMalformedGrammar)
	}

	seen := make(map[string]struct{})
	rules := make(RuleMap, 0)

	for dec.More() {
		keyTok, keyErr := dec.Token()
		if keyErr != nil {
			return fmt.Errorf("%w: rules: %w", ErrMalformedGrammar, keyErr)
		}

		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("%w: rule name %v", ErrMalformedGrammar, keyTok)
		}

		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleName, name)
		}

		seen[name] = struct{}{}

		var rule RawRule

		decodeErr := dec.Decode(&rule)
		if decodeErr != nil {
			return fmt.Errorf("%w: rule %s: %w", ErrMalformedGrammar, name, decodeErr)
		}

		rules = append(rules, NamedRule{Name: name, Rule: rule})
	}

	_, err = dec.Token()
	if err != nil {
		return fmt.Errorf("%w: rules: %w", ErrMalformedGrammar, err)
	}

	*m = rules

	return nil
}

// MarshalJSON encodes the rules object preserving declaration order.
func (m RuleMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for idx, entry := range m {
		if idx > 0 {
			buf.WriteByte(',')
		}

		buf.WriteString(strconv.Quote(entry.Name))
		buf.WriteByte(':')

		body, err := json.Marshal(entry.Rule)
		if err != nil {
			return nil, fmt.Errorf("encode rule %s: %w", entry.Name, err)
		}

		buf.Write(body)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
