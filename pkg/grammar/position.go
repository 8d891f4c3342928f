package grammar

import (
	"strconv"
	"strings"
)

type frame struct {
	symbol RuleID
	outer  *frame
}

// Position is a rule fragment together with the hidden symbol occurrences
// that were unwrapped to reach it. Leaving the body of a hidden rule
// continues after the innermost of those occurrences.
type Position struct {
	Rule RuleID
	via  *frame
}

// At returns a position with no hidden context.
func At(id RuleID) Position {
	return Position{Rule: id}
}

// Via returns the unwrapped symbol occurrences, innermost first.
func (p Position) Via() []RuleID {
	var out []RuleID

	for f := p.via; f != nil; f = f.outer {
		out = append(out, f.symbol)
	}

	return out
}

// Through returns the innermost hidden symbol occurrence, if any.
func (p Position) Through() (RuleID, bool) {
	if p.via == nil {
		return NoRule, false
	}

	return p.via.symbol, true
}

// Key identifies the position including its hidden context.
func (p Position) Key() string {
	var sb strings.Builder

	sb.WriteString(strconv.Itoa(int(p.Rule)))

	for f := p.via; f != nil; f = f.outer {
		sb.WriteByte('<')
		sb.WriteString(strconv.Itoa(int(f.symbol)))
	}

	return sb.String()
}

// Move returns id in the same hidden context as p.
func (p Position) Move(id RuleID) Position {
	return p.at(id)
}

func (p Position) at(id RuleID) Position {
	return Position{Rule: id, via: p.via}
}

func (p Position) enter(body RuleID) Position {
	return Position{Rule: body, via: &frame{symbol: p.Rule, outer: p.via}}
}

func (p Position) escape() (Position, bool) {
	if p.via == nil {
		return Position{}, false
	}

	return Position{Rule: p.via.symbol, via: p.via.outer}, true
}

// PositionSet is an insertion-ordered set of positions. The zero value is
// ready to use.
type PositionSet struct {
	items []Position
	keys  map[string]struct{}
}

// Add inserts positions not already present.
func (s *PositionSet) Add(positions ...Position) {
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}

	for _, p := range positions {
		key := p.Key()
		if _, ok := s.keys[key]; ok {
			continue
		}

		s.keys[key] = struct{}{}
		s.items = append(s.items, p)
	}
}

// Contains reports whether p is in the set.
func (s *PositionSet) Contains(p Position) bool {
	_, ok := s.keys[p.Key()]

	return ok
}

// Len returns the number of positions.
func (s *PositionSet) Len() int {
	return len(s.items)
}

// Positions returns the positions in insertion order.
func (s *PositionSet) Positions() []Position {
	return append([]Position(nil), s.items...)
}

// Rules returns the distinct rule IDs in insertion order.
func (s *PositionSet) Rules() []RuleID {
	seen := make(map[RuleID]struct{}, len(s.items))
	out := make([]RuleID, 0, len(s.items))

	for _, p := range s.items {
		if _, ok := seen[p.Rule]; ok {
			continue
		}

		seen[p.Rule] = struct{}{}
		out = append(out, p.Rule)
	}

	return out
}
