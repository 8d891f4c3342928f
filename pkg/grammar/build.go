package grammar

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// Option configures grammar loading.
type Option func(*loadOptions)

type loadOptions struct {
	logger *slog.Logger
	strict bool
}

// WithLogger sets the logger for load warnings and traversal anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// WithStrictSchema validates the raw JSON against Schema before decoding.
// Unknown rule types are then rejected instead of logged and skipped.
func WithStrictSchema(strict bool) Option {
	return func(o *loadOptions) {
		o.strict = strict
	}
}

func newLoadOptions(opts []Option) loadOptions {
	o := loadOptions{}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// LoadFile reads and builds the grammar at path.
func LoadFile(path string, opts ...Option) (*Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar %s: %w", path, err)
	}

	g, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("load grammar %s: %w", path, err)
	}

	return g, nil
}

// Load reads grammar JSON from r and builds it.
func Load(r io.Reader, opts ...Option) (*Grammar, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}

	return Parse(data, opts...)
}

// Parse decodes grammar JSON and builds it.
func Parse(data []byte, opts ...Option) (*Grammar, error) {
	o := newLoadOptions(opts)

	if o.strict {
		err := ValidateSchema(data)
		if err != nil {
			return nil, err
		}
	}

	var raw RawGrammar

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedGrammar, err)
	}

	return Build(&raw, opts...)
}

// Build converts a decoded grammar into the linked rule model. Every
// fragment gets an arena ID from a counter scoped to this call.
func Build(raw *RawGrammar, opts ...Option) (*Grammar, error) {
	o := newLoadOptions(opts)

	if raw.Name == "" {
		return nil, fmt.Errorf("%w: missing grammar name", ErrMalformedGrammar)
	}

	g := &Grammar{
		Name:       raw.Name,
		Word:       raw.Word,
		named:      make(map[string]RuleID, len(raw.Rules)),
		supertypes: make(map[string]struct{}, len(raw.Supertypes)),
		inline:     make(map[string]struct{}, len(raw.Inline)),
		logger:     o.logger,
	}

	for _, name := range raw.Supertypes {
		g.supertypes[name] = struct{}{}
	}

	for _, name := range raw.Inline {
		g.inline[name] = struct{}{}
	}

	b := &builder{g: g, strict: o.strict}

	for idx := range raw.Rules {
		entry := &raw.Rules[idx]

		if _, dup := g.named[entry.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRuleName, entry.Name)
		}

		id, err := b.add(&entry.Rule, NoRule, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", entry.Name, err)
		}

		g.named[entry.Name] = id
		g.order = append(g.order, entry.Name)
	}

	for idx := range raw.Extras {
		id, err := b.add(&raw.Extras[idx], NoRule, "")
		if err != nil {
			return nil, fmt.Errorf("extras[%d]: %w", idx, err)
		}

		g.extras = append(g.extras, id)
	}

	for idx := range raw.Externals {
		id, err := b.add(&raw.Externals[idx], NoRule, "")
		if err != nil {
			return nil, fmt.Errorf("externals[%d]: %w", idx, err)
		}

		g.externals = append(g.externals, id)
	}

	g.nullable = computeNullable(g)
	g.index = buildNameIndex(g)

	return g, nil
}

type idCounter struct {
	next RuleID
}

func (c *idCounter) take() RuleID {
	id := c.next
	c.next++

	return id
}

type builder struct {
	g      *Grammar
	ids    idCounter
	strict bool
}

// add appends raw and its descendants to the arena. The parent is created
// before its children, so rule IDs follow a pre-order walk.
func (b *builder) add(raw *RawRule, parent RuleID, owner string) (RuleID, error) {
	id := b.ids.take()
	if int(id) != len(b.g.rules) {
		return NoRule, fmt.Errorf("%w: %d", ErrDuplicateRuleID, id)
	}

	b.g.rules = append(b.g.rules, Rule{
		ID:          id,
		Type:        raw.Type,
		Name:        raw.Name,
		Flags:       raw.Flags,
		Named:       raw.Named,
		ContextName: raw.ContextName,
		Content:     NoRule,
		Parent:      parent,
		Prev:        NoRule,
		Next:        NoRule,
		Owner:       owner,
	})

	value, err := raw.valueText()
	if err != nil {
		return NoRule, fmt.Errorf("%w: %w", ErrMalformedGrammar, err)
	}

	b.g.rules[id].Value = value

	switch raw.Type {
	case terminality.RuleBlank, terminality.RuleString, terminality.RulePattern:
	case terminality.RuleSymbol:
		if raw.Name == "" {
			return NoRule, fmt.Errorf("%w: SYMBOL without name", ErrMalformedGrammar)
		}
	case terminality.RuleSeq, terminality.RuleChoice:
		err = b.addMembers(id, raw.Members, owner)
	case terminality.RuleAlias, terminality.RuleRepeat, terminality.RuleRepeat1,
		terminality.RuleReserved, terminality.RuleToken, terminality.RuleImmediateToken,
		terminality.RuleField, terminality.RulePrec, terminality.RulePrecLeft,
		terminality.RulePrecRight, terminality.RulePrecDynamic:
		err = b.addContent(id, raw, owner)
	default:
		if b.strict {
			return NoRule, fmt.Errorf("%w: unknown rule type %q", ErrMalformedGrammar, raw.Type)
		}

		b.g.logger.Warn("unknown rule type", "type", raw.Type, "owner", owner, "id", int(id))
	}

	if err != nil {
		return NoRule, err
	}

	return id, nil
}

func (b *builder) addMembers(id RuleID, members []RawRule, owner string) error {
	ids := make([]RuleID, 0, len(members))

	for idx := range members {
		child, err := b.add(&members[idx], id, owner)
		if err != nil {
			return err
		}

		ids = append(ids, child)
	}

	for idx, child := range ids {
		if idx > 0 {
			b.g.rules[child].Prev = ids[idx-1]
		}

		if idx+1 < len(ids) {
			b.g.rules[child].Next = ids[idx+1]
		}
	}

	b.g.rules[id].Members = ids

	return nil
}

func (b *builder) addContent(id RuleID, raw *RawRule, owner string) error {
	if raw.Content == nil {
		return fmt.Errorf("%w: %s without content", ErrMalformedGrammar, raw.Type)
	}

	child, err := b.add(raw.Content, id, owner)
	if err != nil {
		return err
	}

	b.g.rules[id].Content = child

	return nil
}
