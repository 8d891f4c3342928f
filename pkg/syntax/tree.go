package syntax

import (
	"slices"

	"github.com/Sumatoshi-tech/querycheck/pkg/safeconv"
)

// Tree is an immutable in-memory syntax tree. Node IDs are indices into
// the tree and follow a pre-order walk when built top-down.
type Tree struct {
	source string
	nodes  []*treeNode
	errors []SyntaxError
}

// Root returns the first node added, or nil for an empty tree.
func (t *Tree) Root() Node {
	if len(t.nodes) == 0 {
		return nil
	}

	return t.nodes[0]
}

// Source returns the parsed text.
func (t *Tree) Source() string {
	return t.source
}

// Node returns the node with the given ID.
func (t *Tree) Node(id int) Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}

	return t.nodes[id]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Errors returns the syntax errors found while parsing.
func (t *Tree) Errors() []SyntaxError {
	return slices.Clone(t.errors)
}

type treeNode struct {
	tree     *Tree
	id       int
	kind     string
	field    string
	start    int
	end      int
	startPt  Point
	endPt    Point
	parent   *treeNode
	children []Node
}

func (n *treeNode) ID() int              { return n.id }
func (n *treeNode) Type() string         { return n.kind }
func (n *treeNode) Children() []Node     { return n.children }
func (n *treeNode) StartPosition() Point { return n.startPt }
func (n *treeNode) EndPosition() Point   { return n.endPt }

func (n *treeNode) Text() string {
	return n.tree.source[n.start:n.end]
}

func (n *treeNode) Parent() Node {
	if n.parent == nil {
		return nil
	}

	return n.parent
}

func (n *treeNode) ChildByFieldName(name string) Node {
	for _, child := range n.children {
		if tn, ok := child.(*treeNode); ok && tn.field == name {
			return tn
		}
	}

	return nil
}

// Builder assembles a Tree top-down.
type Builder struct {
	tree *Tree
	done bool
}

// NewBuilder starts a tree over source.
func NewBuilder(source string) *Builder {
	return &Builder{tree: &Tree{source: source}}
}

// Handle refers to a node under construction.
type Handle int

// NoParent adds a root node.
const NoParent Handle = -1

// Add appends a node spanning source[start:end] under parent and returns
// its handle. Offsets are clamped to the source.
func (b *Builder) Add(parent Handle, kind, field string, start, end int) Handle {
	size := len(b.tree.source)
	start = min(max(start, 0), size)
	end = min(max(end, start), size)

	n := &treeNode{tree: b.tree, id: len(b.tree.nodes), kind: kind, field: field, start: start, end: end}

	if parent != NoParent && int(parent) < len(b.tree.nodes) {
		p := b.tree.nodes[parent]
		n.parent = p
		p.children = append(p.children, n)
	}

	b.tree.nodes = append(b.tree.nodes, n)

	return Handle(n.id)
}

// SetEnd moves the end offset of a node, used once its children are known.
func (b *Builder) SetEnd(h Handle, end int) {
	n := b.tree.nodes[h]
	n.end = min(max(end, n.start), len(b.tree.source))
}

// Error records a syntax error over source[start:end].
func (b *Builder) Error(start, end int, message string) {
	b.tree.errors = append(b.tree.errors, SyntaxError{
		Message: message,
		Start:   pointAt(b.tree.source, start),
		End:     pointAt(b.tree.source, end),
	})
}

// Tree finalizes positions and returns the tree. The builder must not be
// used afterwards.
func (b *Builder) Tree() *Tree {
	if b.done {
		return b.tree
	}

	b.done = true
	lines := lineStarts(b.tree.source)

	for _, n := range b.tree.nodes {
		n.startPt = pointFrom(lines, n.start)
		n.endPt = pointFrom(lines, n.end)
	}

	return b.tree
}

func lineStarts(source string) []int {
	starts := []int{0}

	for idx := range len(source) {
		if source[idx] == '\n' {
			starts = append(starts, idx+1)
		}
	}

	return starts
}

func pointFrom(lines []int, offset int) Point {
	row, found := slices.BinarySearch(lines, offset)
	if !found {
		row--
	}

	return Point{Row: safeconv.MustIntToUint(row), Column: safeconv.MustIntToUint(offset - lines[row])}
}

func pointAt(source string, offset int) Point {
	return pointFrom(lineStarts(source), min(max(offset, 0), len(source)))
}
