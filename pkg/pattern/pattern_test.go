package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
	"github.com/Sumatoshi-tech/querycheck/pkg/terminality"
)

type extras struct{}

func (extras) IsExtraName(name string) bool     { return name == "comment" }
func (extras) IsExtraLiteral(value string) bool { return value == "\n" }

func parse(t *testing.T, src string) *pattern.File {
	t.Helper()

	tree := syntax.Parse(src)
	require.Empty(t, tree.Errors())

	return pattern.NewFile(tree, extras{})
}

// named finds the first named node definition called name.
func named(t *testing.T, f *pattern.File, name string) pattern.DefID {
	t.Helper()

	for idx := range f.Len() {
		d := f.Def(pattern.DefID(idx))
		if d.Kind == pattern.KindNamedNode && d.Name == name {
			return d.ID
		}
	}

	require.Failf(t, "named node not found", "%s", name)

	return pattern.NoDef
}

func names(f *pattern.File, ids []pattern.DefID) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		out = append(out, f.Def(id).Label())
	}

	return out
}

func TestNewFile_Variants(t *testing.T) {
	t.Parallel()

	tree := syntax.Parse(`(expression/identifier) (_) "return" _ (MISSING ";") (MISSING identifier) name: (x) [(a) (b)] ((c) (d))`)
	require.Empty(t, tree.Errors())

	f := pattern.NewFile(tree, nil)

	roots := f.Roots()
	require.Len(t, roots, 9)

	super := f.Def(roots[0])
	assert.Equal(t, pattern.KindNamedNode, super.Kind)
	assert.Equal(t, "expression", super.Supertype)
	assert.Equal(t, "identifier", super.Name)
	assert.Equal(t, "(expression/identifier)", super.Label())

	assert.True(t, f.Def(roots[1]).Wildcard)
	assert.Equal(t, "(_)", f.Def(roots[1]).Label())

	lit := f.Def(roots[2])
	assert.Equal(t, pattern.KindAnonymousNode, lit.Kind)
	assert.Equal(t, "return", lit.Name)
	assert.Equal(t, `"return"`, lit.Label())

	assert.True(t, f.Def(roots[3]).Wildcard)
	assert.Equal(t, "_", f.Def(roots[3]).Label())

	missingLit := f.Def(roots[4])
	assert.Equal(t, pattern.KindMissingNode, missingLit.Kind)
	assert.True(t, missingLit.IsString)
	assert.Equal(t, ";", missingLit.Name)

	missingNamed := f.Def(roots[5])
	assert.False(t, missingNamed.IsString)
	assert.Equal(t, "(MISSING identifier)", missingNamed.Label())

	field := f.Def(roots[6])
	assert.Equal(t, pattern.KindFieldDefinition, field.Kind)
	assert.Equal(t, "name", field.Name)
	require.NotEqual(t, pattern.NoDef, field.Value)
	assert.Equal(t, "x", f.Def(field.Value).Name)
	assert.Equal(t, field.ID, f.Def(field.Value).Parent)

	assert.Equal(t, pattern.KindList, f.Def(roots[7]).Kind)
	assert.Len(t, f.Def(roots[7]).Children, 2)
	assert.Equal(t, pattern.KindGrouping, f.Def(roots[8]).Kind)

	assert.Equal(t, terminality.PseudoTerminal, super.Terminality())
	assert.Equal(t, terminality.Terminal, lit.Terminality())
	assert.Equal(t, terminality.NonTerminal, f.Def(roots[7]).Terminality())
}

func TestNewFile_SuffixesAndConstraints(t *testing.T) {
	t.Parallel()

	f := parse(t, `(call !arguments (a)? @first @second "x"* ((b) (#eq? @b "y")))`)

	call := f.Def(named(t, f, "call"))
	require.Len(t, call.NegatedFields, 1)
	assert.Equal(t, "arguments", call.NegatedFields[0].Name)

	a := f.Def(named(t, f, "a"))
	assert.Equal(t, pattern.QuantifierOptional, a.Quantifier)
	assert.Equal(t, []string{"first", "second"}, a.Captures)
	assert.True(t, a.Optional())
	assert.False(t, a.Repeats())

	children := f.Children(call.ID, pattern.DefaultTraversal())
	require.Len(t, children, 3)
	assert.True(t, f.Def(children[1]).Repeats())

	grouping := f.Def(children[2])
	assert.Equal(t, pattern.KindGrouping, grouping.Kind)
	assert.Len(t, grouping.Children, 1, "predicates are not definitions")
}

func TestFile_TryFromKeepsIdentity(t *testing.T) {
	t.Parallel()

	f := parse(t, `(a (b))`)

	b := f.Def(named(t, f, "b"))

	first, ok := f.TryFrom(b.Node)
	require.True(t, ok)

	second, ok := f.TryFrom(b.Node)
	require.True(t, ok)
	assert.Same(t, first, second)
	assert.Same(t, b, first)

	_, ok = f.TryFrom(f.Tree().Root())
	assert.False(t, ok, "program is not a definition")

	_, ok = f.TryFrom(nil)
	assert.False(t, ok)
}

func TestFile_ChildrenOptions(t *testing.T) {
	t.Parallel()

	f := parse(t, `(block (comment) . (statement))`)
	block := named(t, f, "block")

	assert.Equal(t, []string{"(statement)"}, names(f, f.Children(block, pattern.DefaultTraversal())))

	withExtras := pattern.TraversalOptions{SkipAnchors: true, Ceiling: pattern.NoDef}
	assert.Equal(t, []string{"(comment)", "(statement)"}, names(f, f.Children(block, withExtras)))

	everything := pattern.TraversalOptions{Ceiling: pattern.NoDef}
	assert.Equal(t, []string{"(comment)", ".", "(statement)"}, names(f, f.Children(block, everything)))

	assert.True(t, f.IsExtra(named(t, f, "comment")))
	assert.False(t, f.IsExtra(named(t, f, "statement")))
}

func TestFile_Siblings(t *testing.T) {
	t.Parallel()

	f := parse(t, `(a (b) (comment) (c)) (d)`)
	opts := pattern.DefaultTraversal()

	b, c := named(t, f, "b"), named(t, f, "c")
	assert.Equal(t, c, f.NextSibling(b, opts))
	assert.Equal(t, b, f.PreviousSibling(c, opts))
	assert.Equal(t, pattern.NoDef, f.NextSibling(c, opts))
	assert.Equal(t, named(t, f, "d"), f.NextSibling(named(t, f, "a"), opts))

	bounded := opts.WithCeiling(named(t, f, "a"))
	assert.Equal(t, pattern.NoDef, f.NextSibling(named(t, f, "a"), bounded))
	assert.Equal(t, pattern.NoDef, f.Parent(named(t, f, "a"), bounded))
	assert.Equal(t, named(t, f, "a"), f.Parent(b, bounded))
}

func TestFirstKindaTerminalChildren(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{"stops at first required", `(p (b)? (c) (d))`, []string{"(b)", "(c)"}},
		{"does not enter named nodes", `(p (b (x)) (c))`, []string{"(b)"}},
		{"list alternatives", `(p [(b) (c)] (d))`, []string{"(b)", "(c)"}},
		{"nullable list", `(p [(b) (c)?] (d))`, []string{"(b)", "(c)", "(d)"}},
		{"grouping is a sequence", `(p ((b)? (c)) (d))`, []string{"(b)", "(c)"}},
		{"optional grouping", `(p ((b) (c))? (d))`, []string{"(b)", "(d)"}},
		{"anonymous and fields", `(p "x"? name: (n))`, []string{`"x"`, "name:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := parse(t, tt.source)
			got := f.FirstKindaTerminalChildren(named(t, f, "p"), pattern.DefaultTraversal())
			assert.Equal(t, tt.want, names(f, got))
		})
	}
}

func TestLastKindaTerminalChildren(t *testing.T) {
	t.Parallel()

	f := parse(t, `(p (b) ((c) (d)?) (e)?)`)
	got := f.LastKindaTerminalChildren(named(t, f, "p"), pattern.DefaultTraversal())
	assert.Equal(t, []string{"(e)", "(d)", "(c)"}, names(f, got))
}

func TestNextKindaTerminals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		from   string
		want   []string
	}{
		{"next sibling", `(p (b) (c) (d))`, "b", []string{"(c)"}},
		{"into list", `(p (b) [(c) (d)] (e))`, "b", []string{"(c)", "(d)"}},
		{"out of list", `(p (b) [(c) (d)] (e))`, "c", []string{"(e)"}},
		{"out of grouping", `(p ((b) (c)) (d))`, "c", []string{"(d)"}},
		{"past optional", `(p (b) (c)? (d))`, "b", []string{"(c)", "(d)"}},
		{"repeat", `(p (b)+ (c))`, "b", []string{"(b)", "(c)"}},
		{"repeated grouping", `(p ((b) (c))* (d))`, "c", []string{"(b)", "(d)"}},
		{"end of children", `(p (b) (c))`, "c", nil},
		{"stays inside named node", `(p (q (b)) (c))`, "b", nil},
		{"field value ends", `(p name: (b) (c))`, "b", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := parse(t, tt.source)
			got := f.NextKindaTerminals(named(t, f, tt.from), pattern.DefaultTraversal())

			if tt.want == nil {
				assert.Empty(t, got)

				return
			}

			assert.Equal(t, tt.want, names(f, got))
		})
	}
}

func TestNextKindaTerminals_Ceiling(t *testing.T) {
	t.Parallel()

	f := parse(t, `((b) (c)) (d)`)
	grouping := f.Roots()[0]
	opts := pattern.DefaultTraversal().WithCeiling(grouping)

	assert.Equal(t, []string{"(c)"}, names(f, f.NextKindaTerminals(named(t, f, "b"), opts)))
	assert.Empty(t, f.NextKindaTerminals(named(t, f, "c"), opts))
}

func TestTerminalDescendants(t *testing.T) {
	t.Parallel()

	f := parse(t, `[(a (x)) ((b) "c") name: (d)]`)
	got := f.TerminalDescendants(f.Roots()[0], pattern.DefaultTraversal())
	assert.Equal(t, []string{"(a)", "(b)", `"c"`, "name:"}, names(f, got))
}

func TestNullable(t *testing.T) {
	t.Parallel()

	f := parse(t, `((a)? (b)*) [(c) (d)?] [(e) (f)] (g)+`)
	roots := f.Roots()
	opts := pattern.DefaultTraversal()

	assert.True(t, f.Nullable(roots[0], opts))
	assert.True(t, f.Nullable(roots[1], opts))
	assert.False(t, f.Nullable(roots[2], opts))
	assert.False(t, f.Nullable(roots[3], opts))
}
