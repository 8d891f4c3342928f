package pattern_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/querycheck/pkg/pattern"
)

type machineRow struct {
	Name     string
	Parent   int
	Children []int
	Prev     int
	Next     int
}

func TestMachine_Fixture(t *testing.T) {
	t.Parallel()

	f := parse(t, `(a (b) (c) (d (e) (f (g) (h))))`)
	m := pattern.NewMachine(f, f.Roots()[0], pattern.DefaultTraversal())

	want := []machineRow{
		{Name: "a", Parent: -1, Children: []int{1, 2, 3}, Prev: -1, Next: -1},
		{Name: "b", Parent: 0, Prev: -1, Next: 2},
		{Name: "c", Parent: 0, Prev: 1, Next: 3},
		{Name: "d", Parent: 0, Children: []int{4, 5}, Prev: 2, Next: -1},
		{Name: "e", Parent: 3, Prev: -1, Next: 5},
		{Name: "f", Parent: 3, Children: []int{6, 7}, Prev: 4, Next: -1},
		{Name: "g", Parent: 5, Prev: -1, Next: 7},
		{Name: "h", Parent: 5, Prev: 6, Next: -1},
	}

	got := make([]machineRow, 0, m.Len())

	for idx := range m.Len() {
		got = append(got, machineRow{
			Name:     m.Def(idx).Name,
			Parent:   m.Parent(idx),
			Children: m.Children(idx),
			Prev:     m.PreviousSibling(idx),
			Next:     m.NextSibling(idx),
		})
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("machine table mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_PathRoundTrip(t *testing.T) {
	t.Parallel()

	f := parse(t, `(a (b) [(c) "d"] ((e) name: (f (g))) (h)?)`)
	m := pattern.NewMachine(f, f.Roots()[0], pattern.DefaultTraversal())
	require.Positive(t, m.Len())

	for idx := range m.Len() {
		got, ok := m.IndexByPath(m.PathOf(idx))
		require.True(t, ok)
		assert.Equal(t, idx, got)

		def := m.Def(idx)
		back, ok := m.Index(def.ID)
		require.True(t, ok)
		assert.Equal(t, idx, back)
	}

	assert.Empty(t, m.PathOf(0))

	_, ok := m.IndexByPath([]int{9})
	assert.False(t, ok)
}

func TestMachine_Paths(t *testing.T) {
	t.Parallel()

	f := parse(t, `(a (b) (c) (d (e) (f (g) (h))))`)
	m := pattern.NewMachine(f, f.Roots()[0], pattern.DefaultTraversal())

	assert.Equal(t, []int{2, 1, 1}, m.PathOf(7))
	assert.Equal(t, []int{0}, m.PathOf(1))
	assert.Nil(t, m.Def(-1))
	assert.Equal(t, -1, m.Parent(42))
}
