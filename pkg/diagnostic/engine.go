package diagnostic

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

// MaxIterations is the default cap on generations of rounds per pattern.
const MaxIterations = 100

// Engine diagnoses patterns against one grammar. It holds no per-run state
// and is safe for concurrent use.
type Engine struct {
	grammar       *grammar.Grammar
	logger        *slog.Logger
	maxIterations int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for traversal anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxIterations overrides MaxIterations. Non-positive values are ignored.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// New creates an engine for g.
func New(g *grammar.Grammar, opts ...Option) *Engine {
	e := &Engine{grammar: g, logger: g.Logger(), maxIterations: MaxIterations}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Grammar returns the grammar the engine checks against.
func (e *Engine) Grammar() *grammar.Grammar {
	return e.grammar
}

// Result is the outcome of diagnosing one top-level pattern.
type Result struct {
	Root   pattern.DefID
	Issues []Issue
	// Generations and Rounds count the simulation work done.
	Generations int
	Rounds      int
	// Truncated is set when the iteration cap stopped the run.
	Truncated bool
}

// Issues flattens the issues of results in order.
func Issues(results []Result) []Issue {
	var out []Issue

	for _, res := range results {
		out = append(out, res.Issues...)
	}

	return out
}

// Diagnose checks every top-level pattern of f. A pattern that fails with an
// error is skipped; the errors are joined and the other results returned.
func (e *Engine) Diagnose(f *pattern.File) ([]Result, error) {
	var errs []error

	results := make([]Result, 0, len(f.Roots()))

	for _, root := range f.Roots() {
		res, err := e.DiagnosePattern(f, root)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// DiagnosePattern checks one top-level pattern and returns at most one issue.
func (e *Engine) DiagnosePattern(f *pattern.File, root pattern.DefID) (Result, error) {
	res := Result{Root: root}

	d := f.Def(root)
	if d == nil {
		return res, nil
	}

	if issue, found := e.checkNames(f, root); found {
		res.Issues = []Issue{issue}

		return res, nil
	}

	if d.Kind == pattern.KindList {
		return e.diagnoseList(f, d)
	}

	r := &run{engine: e, file: f, seen: make(map[string]struct{})}

	err := r.start(d)
	if err == nil && r.issue == nil {
		err = r.loop(d)
	}

	res.Generations = r.generations
	res.Rounds = r.rounds
	res.Truncated = r.truncated

	if err != nil {
		return res, fmt.Errorf("diagnose %s at %s: %w", d.Label(), RangeOf(d.Node).Start, err)
	}

	if r.issue != nil {
		res.Issues = []Issue{*r.issue}
	}

	return res, nil
}

// diagnoseList checks each member of a top-level list as its own pattern.
func (e *Engine) diagnoseList(f *pattern.File, d *pattern.Definition) (Result, error) {
	res := Result{Root: d.ID}

	for _, member := range f.Children(d.ID, pattern.DefaultTraversal()) {
		sub, err := e.DiagnosePattern(f, member)

		res.Generations += sub.Generations
		res.Rounds += sub.Rounds
		res.Truncated = res.Truncated || sub.Truncated

		if err != nil {
			return res, err
		}

		if len(sub.Issues) > 0 {
			res.Issues = sub.Issues

			return res, nil
		}
	}

	return res, nil
}

type scopeKind int

const (
	scopeTop scopeKind = iota
	scopeNamed
	scopeField
)

// scope is the context a group of sibling pattern nodes is matched in: the
// named node or field that owns them, and every position they could match.
type scope struct {
	id       int
	kind     scopeKind
	owner    pattern.DefID
	universe []grammar.Position
	parent   *scope
}

// round pairs one kinda-terminal pattern node with the rule positions it
// may match next.
type round struct {
	def   pattern.DefID
	scope *scope
	rules []grammar.Position
}

type run struct {
	engine  *Engine
	file    *pattern.File
	pending []round
	scopes  int
	seen    map[string]struct{}
	issue   *Issue

	generations int
	rounds      int
	truncated   bool
}

func (r *run) traversal(owner pattern.DefID) pattern.TraversalOptions {
	return pattern.DefaultTraversal().WithCeiling(owner)
}

func (r *run) newScope(kind scopeKind, owner pattern.DefID, universe []grammar.Position, parent *scope) *scope {
	r.scopes++

	return &scope{id: r.scopes, kind: kind, owner: owner, universe: universe, parent: parent}
}

func (r *run) push(def pattern.DefID, s *scope, rules []grammar.Position) {
	r.pending = append(r.pending, round{def: def, scope: s, rules: rules})
}

func (r *run) report(issue Issue) {
	r.issue = &issue
}

// start seeds the first generation from the top-level pattern.
func (r *run) start(d *pattern.Definition) error {
	g := r.engine.grammar

	switch d.Kind {
	case pattern.KindNamedNode:
		if d.Name == pattern.ErrorNode {
			return nil
		}

		return r.openNamed(d, r.rootsFor(d, ""), nil)
	case pattern.KindFieldDefinition:
		var fields grammar.PositionSet

		for _, id := range g.FieldRules(d.Name) {
			fields.Add(grammar.At(id))
		}

		top := r.newScope(scopeTop, d.ID, fields.Positions(), nil)
		r.push(d.ID, top, fields.Positions())
	case pattern.KindGrouping:
		universe := g.DescendantsOf(g.NodeBodies()...)
		top := r.newScope(scopeTop, d.ID, universe, nil)

		for _, child := range r.file.FirstKindaTerminalChildren(d.ID, r.traversal(d.ID)) {
			r.push(child, top, universe)
		}
	}

	return nil
}

// rootsFor returns the rule roots the children of a named pattern node are
// checked against. matched is the name of the symbol the node matched, or
// "" when it stands alone.
func (r *run) rootsFor(d *pattern.Definition, matched string) []grammar.RuleID {
	g := r.engine.grammar

	switch {
	case d.Wildcard && matched == "":
		return g.NodeBodies()
	case d.Wildcard:
		return g.RulesForNode(matched)
	default:
		return g.RulesForNode(d.Name)
	}
}

// openNamed starts the scope of a named node's children.
func (r *run) openNamed(d *pattern.Definition, roots []grammar.RuleID, parent *scope) error {
	first := r.file.FirstKindaTerminalChildren(d.ID, r.traversal(d.ID))
	if len(first) == 0 {
		return nil
	}

	err := r.checkExtraEdges(d, roots)
	if err != nil || r.issue != nil {
		return err
	}

	universe := r.engine.grammar.DescendantsOf(roots...)
	s := r.newScope(scopeNamed, d.ID, universe, parent)

	for _, child := range first {
		r.push(child, s, universe)
	}

	return nil
}

// checkExtraEdges reports an extra written as the first or last child of a
// node whose rule is a sequence, when non-extra children are present too.
func (r *run) checkExtraEdges(d *pattern.Definition, roots []grammar.RuleID) error {
	g := r.engine.grammar

	sequence := false

	for _, root := range roots {
		res, err := g.Resolve(root)
		if err != nil {
			return fmt.Errorf("resolve children of %s: %w", d.Label(), err)
		}

		if rule := g.Rule(res.Rule); rule != nil && rule.Type == terminality.RuleSeq {
			sequence = true
		}
	}

	if !sequence {
		return nil
	}

	opts := pattern.TraversalOptions{SkipAnchors: true, Ceiling: d.ID}

	var extras, others int

	for _, child := range r.file.Children(d.ID, opts) {
		if r.file.IsExtra(child) {
			extras++
		} else {
			others++
		}
	}

	if extras == 0 || others == 0 {
		return nil
	}

	edges := r.file.FirstKindaTerminalChildren(d.ID, opts)
	edges = append(edges, r.file.LastKindaTerminalChildren(d.ID, opts)...)

	for _, id := range edges {
		if r.file.IsExtra(id) {
			r.report(newIssue(UnexpectedNode, r.file.Def(id), d))

			return nil
		}
	}

	return nil
}

// openField starts the scope of a field definition's value.
func (r *run) openField(d *pattern.Definition, matched []grammar.Position, parent *scope) {
	g := r.engine.grammar

	if r.file.Def(d.Value) == nil {
		return
	}

	var universe grammar.PositionSet

	for _, p := range matched {
		if field := g.Rule(p.Rule); field != nil {
			universe.Add(g.TerminalDescendants(p.Move(field.Content))...)
		}
	}

	s := r.newScope(scopeField, d.ID, universe.Positions(), parent)

	for _, value := range r.file.ThisOrFirstKindaTerminals(d.Value, r.traversal(d.ID)) {
		r.push(value, s, universe.Positions())
	}
}

// childRoots returns the roots the children of a named node are checked
// against once it matched the given positions.
func (r *run) childRoots(d *pattern.Definition, matched []grammar.Position) []grammar.RuleID {
	g := r.engine.grammar

	var roots []grammar.RuleID

	add := func(ids ...grammar.RuleID) {
		for _, id := range ids {
			if !slices.Contains(roots, id) {
				roots = append(roots, id)
			}
		}
	}

	for _, p := range matched {
		rule := g.Rule(p.Rule)
		if rule == nil {
			continue
		}

		if rule.Type == terminality.RuleAlias {
			if root, found := g.ChildRoot(rule.Content); found {
				add(root)
			}

			continue
		}

		if rule.Type != terminality.RuleSymbol {
			continue
		}

		if g.IsSupertype(rule.Name) {
			add(r.rootsFor(d, rule.Name)...)

			continue
		}

		if root, found := g.ChildRoot(rule.ID); found {
			add(root)
		}
	}

	return roots
}

// loop runs generations of rounds until none are left, an issue is found
// or the iteration cap is reached.
func (r *run) loop(d *pattern.Definition) error {
	for len(r.pending) > 0 {
		if r.generations >= r.engine.maxIterations {
			r.truncated = true
			r.engine.logger.Warn("diagnosis stopped at iteration cap",
				"pattern", d.Label(), "max_iterations", r.engine.maxIterations)

			return nil
		}

		current := r.consolidate(r.pending)
		r.pending = nil
		r.generations++

		for _, rd := range current {
			r.rounds++

			err := r.step(rd)
			if err != nil {
				return err
			}

			if r.issue != nil {
				return nil
			}
		}
	}

	return nil
}

// consolidate merges rounds on the same pattern node and scope, and drops
// rounds already run with the same rule positions.
func (r *run) consolidate(rounds []round) []round {
	type slot struct {
		round round
		set   *grammar.PositionSet
	}

	var order []string

	slots := make(map[string]*slot)

	for _, rd := range rounds {
		key := strconv.Itoa(int(rd.def)) + "@" + strconv.Itoa(rd.scope.id)

		s, ok := slots[key]
		if !ok {
			s = &slot{round: rd, set: &grammar.PositionSet{}}
			slots[key] = s
			order = append(order, key)
		}

		s.set.Add(rd.rules...)
	}

	out := make([]round, 0, len(order))

	for _, key := range order {
		s := slots[key]
		s.round.rules = s.set.Positions()

		state := key + ":" + stateKey(s.round.rules)
		if _, done := r.seen[state]; done {
			continue
		}

		r.seen[state] = struct{}{}
		out = append(out, s.round)
	}

	return out
}

func stateKey(positions []grammar.Position) string {
	keys := make([]string, len(positions))

	for i, p := range positions {
		keys[i] = p.Key()
	}

	slices.Sort(keys)

	return strings.Join(keys, ",")
}

// step matches one round and schedules what follows it.
func (r *run) step(rd round) error {
	g := r.engine.grammar

	d := r.file.Def(rd.def)
	if d == nil {
		return nil
	}

	matched := r.engine.matches(d, rd.rules)
	if len(matched) == 0 {
		r.report(r.classify(d, rd.scope))

		return nil
	}

	switch d.Kind {
	case pattern.KindNamedNode:
		if d.Name != pattern.ErrorNode {
			err := r.openNamed(d, r.childRoots(d, matched), rd.scope)
			if err != nil || r.issue != nil {
				return err
			}
		}
	case pattern.KindFieldDefinition:
		r.openField(d, matched, rd.scope)
	}

	next := r.file.NextKindaTerminals(rd.def, r.traversal(rd.scope.owner))
	if len(next) == 0 {
		return nil
	}

	var follow grammar.PositionSet

	for _, p := range matched {
		follow.Add(g.SubsequentTerminals(p)...)
	}

	for _, id := range next {
		r.push(id, rd.scope, follow.Positions())
	}

	return nil
}

// classify explains why d matched nothing in scope s.
func (r *run) classify(d *pattern.Definition, s *scope) Issue {
	owner := r.file.Def(s.owner)

	switch s.kind {
	case scopeField:
		first := r.file.ThisOrFirstKindaTerminals(owner.Value, r.traversal(owner.ID))

		var issue Issue

		switch {
		case !slices.Contains(first, d.ID):
			issue = newIssue(UnexpectedFieldValueChild, d, owner)
		case s.parent != nil && s.parent.kind == scopeNamed:
			issue = newIssue(InvalidNamedNodeFieldValue, d, r.file.Def(s.parent.owner))
		default:
			issue = newIssue(InvalidFieldValue, d, nil)
		}

		issue.Field = owner.Name

		return issue
	case scopeNamed:
		if d.Kind == pattern.KindFieldDefinition {
			kind := UnexpectedChildNode
			if !r.hasField(s.universe, d.Name) {
				kind = InvalidNamedNodeFieldName
			}

			issue := newIssue(kind, d, owner)
			issue.Field = d.Name

			return issue
		}

		if len(r.engine.matches(d, s.universe)) == 0 {
			return newIssue(InvalidChildNode, d, owner)
		}

		return newIssue(UnexpectedChildNode, d, owner)
	default:
		return newIssue(UnexpectedNode, d, nil)
	}
}

func (r *run) hasField(positions []grammar.Position, name string) bool {
	for _, p := range positions {
		if rule := r.engine.grammar.Rule(p.Rule); rule != nil && rule.Type == terminality.RuleField && rule.Name == name {
			return true
		}
	}

	return false
}
