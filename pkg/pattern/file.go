package pattern

import (
	"github.com/Sumatoshi-tech/querycheck/pkg/syntax"
)

// Extras identifies pattern nodes that name grammar extras.
type Extras interface {
	IsExtraName(name string) bool
	IsExtraLiteral(value string) bool
}

// File owns every Definition of one parsed query.
type File struct {
	tree   *syntax.Tree
	extras Extras
	defs   []Definition
	byNode map[int]DefID
	roots  []DefID
}

// NewFile builds the definitions of tree. extras may be nil.
func NewFile(tree *syntax.Tree, extras Extras) *File {
	f := &File{tree: tree, extras: extras, byNode: make(map[int]DefID)}

	if root := tree.Root(); root != nil {
		f.roots = f.buildChildren(root, NoDef)
	}

	return f
}

// Tree returns the syntax tree the file was built from.
func (f *File) Tree() *syntax.Tree {
	return f.tree
}

// Roots returns the top-level patterns.
func (f *File) Roots() []DefID {
	return append([]DefID(nil), f.roots...)
}

// Len returns the number of definitions.
func (f *File) Len() int {
	return len(f.defs)
}

// Def returns the definition with the given ID, or nil.
func (f *File) Def(id DefID) *Definition {
	if id < 0 || int(id) >= len(f.defs) {
		return nil
	}

	return &f.defs[id]
}

// TryFrom returns the definition built for a syntax node, if the node's
// kind produces one.
func (f *File) TryFrom(n syntax.Node) (*Definition, bool) {
	if n == nil {
		return nil, false
	}

	id, ok := f.byNode[n.ID()]
	if !ok {
		return nil, false
	}

	return &f.defs[id], true
}

// IsExtra reports whether the definition names a grammar extra.
func (f *File) IsExtra(id DefID) bool {
	d := f.Def(id)
	if d == nil || f.extras == nil || d.Wildcard {
		return false
	}

	switch d.Kind {
	case KindNamedNode:
		return f.extras.IsExtraName(d.Name)
	case KindAnonymousNode:
		return f.extras.IsExtraLiteral(d.Name)
	default:
		return false
	}
}

func isTransparent(kind string) bool {
	switch kind {
	case "definition", "_definition", "_group_expression":
		return true
	default:
		return false
	}
}

// buildChildren builds every definition among n's children, splicing the
// children of transparent wrapper nodes.
func (f *File) buildChildren(n syntax.Node, parent DefID) []DefID {
	var ids []DefID

	for _, child := range n.Children() {
		if isTransparent(child.Type()) {
			ids = append(ids, f.buildChildren(child, parent)...)

			continue
		}

		if id, ok := f.build(child, parent); ok {
			ids = append(ids, id)
		}
	}

	return ids
}

func (f *File) add(n syntax.Node, kind Kind, parent DefID) DefID {
	id := DefID(len(f.defs))
	f.defs = append(f.defs, Definition{ID: id, Kind: kind, Node: n, Parent: parent, Value: NoDef})
	f.byNode[n.ID()] = id

	return id
}

func (f *File) build(n syntax.Node, parent DefID) (DefID, bool) {
	switch n.Type() {
	case syntax.KindNamedNode:
		return f.buildNamed(n, parent), true
	case syntax.KindAnonymousNode:
		return f.buildAnonymous(n, parent), true
	case syntax.KindMissingNode:
		return f.buildMissing(n, parent), true
	case syntax.KindList:
		return f.buildContainer(n, KindList, parent), true
	case syntax.KindGrouping:
		return f.buildContainer(n, KindGrouping, parent), true
	case syntax.KindFieldDefinition:
		return f.buildField(n, parent), true
	case syntax.KindAnchor:
		return f.add(n, KindAnchor, parent), true
	default:
		return NoDef, false
	}
}

func (f *File) buildNamed(n syntax.Node, parent DefID) DefID {
	id := f.add(n, KindNamedNode, parent)

	var names []string

	slash := false

	for _, child := range n.Children() {
		switch child.Type() {
		case syntax.KindIdentifier, syntax.KindWildcard:
			if len(names) == 0 || (slash && len(names) == 1) {
				names = append(names, child.Text())
			}
		case "/":
			slash = true
		}
	}

	d := &f.defs[id]

	switch {
	case slash && len(names) == 2:
		d.Supertype, d.Name = names[0], names[1]
	case len(names) > 0:
		d.Name = names[0]
	}

	d.Wildcard = d.Name == Wildcard

	f.suffix(id, n)
	children := f.buildChildren(n, id)
	f.defs[id].Children = children

	for _, child := range n.Children() {
		if child.Type() != syntax.KindNegatedField {
			continue
		}

		for _, part := range child.Children() {
			if part.Type() == syntax.KindIdentifier {
				f.defs[id].NegatedFields = append(f.defs[id].NegatedFields, NegatedField{Name: part.Text(), Node: part})
			}
		}
	}

	return id
}

func (f *File) buildAnonymous(n syntax.Node, parent DefID) DefID {
	id := f.add(n, KindAnonymousNode, parent)

	for _, child := range n.Children() {
		switch child.Type() {
		case syntax.KindString:
			f.defs[id].Name = decodeString(child.Text())
		case syntax.KindWildcard:
			f.defs[id].Name = Wildcard
			f.defs[id].Wildcard = true
		}
	}

	f.suffix(id, n)

	return id
}

func (f *File) buildMissing(n syntax.Node, parent DefID) DefID {
	id := f.add(n, KindMissingNode, parent)

	for _, child := range n.Children() {
		switch child.Type() {
		case syntax.KindIdentifier:
			f.defs[id].Name = child.Text()
		case syntax.KindString:
			f.defs[id].Name = decodeString(child.Text())
			f.defs[id].IsString = true
		}
	}

	f.suffix(id, n)

	return id
}

func (f *File) buildContainer(n syntax.Node, kind Kind, parent DefID) DefID {
	id := f.add(n, kind, parent)
	f.suffix(id, n)
	children := f.buildChildren(n, id)
	f.defs[id].Children = children

	return id
}

func (f *File) buildField(n syntax.Node, parent DefID) DefID {
	id := f.add(n, KindFieldDefinition, parent)

	for _, child := range n.Children() {
		if child.Type() == syntax.KindIdentifier {
			f.defs[id].Name = child.Text()

			break
		}
	}

	children := f.buildChildren(n, id)
	f.defs[id].Children = children

	if len(children) > 0 {
		f.defs[id].Value = children[0]
	}

	return id
}

// suffix records the quantifier and captures written after a pattern.
func (f *File) suffix(id DefID, n syntax.Node) {
	for _, child := range n.Children() {
		switch child.Type() {
		case syntax.KindQuantifier:
			f.defs[id].Quantifier = child.Text()
		case syntax.KindCapture:
			name := child.Text()

			for _, part := range child.Children() {
				if part.Type() == syntax.KindIdentifier {
					name = part.Text()
				}
			}

			f.defs[id].Captures = append(f.defs[id].Captures, name)
		}
	}
}
