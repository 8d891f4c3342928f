package pattern

// TraversalOptions filters navigation. Ceiling bounds climbing: nothing
// above it is visited.
type TraversalOptions struct {
	SkipExtras  bool
	SkipAnchors bool
	Ceiling     DefID
}

// DefaultTraversal skips extras and anchors and has no ceiling.
func DefaultTraversal() TraversalOptions {
	return TraversalOptions{SkipExtras: true, SkipAnchors: true, Ceiling: NoDef}
}

// WithCeiling returns a copy of o bounded by ceiling.
func (o TraversalOptions) WithCeiling(ceiling DefID) TraversalOptions {
	o.Ceiling = ceiling

	return o
}

func (f *File) visible(id DefID, opts TraversalOptions) bool {
	d := f.Def(id)
	if d == nil {
		return false
	}

	if opts.SkipAnchors && d.Kind == KindAnchor {
		return false
	}

	if opts.SkipExtras && f.IsExtra(id) {
		return false
	}

	return true
}

// Children returns the children of id that pass opts.
func (f *File) Children(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	out := make([]DefID, 0, len(d.Children))

	for _, child := range d.Children {
		if f.visible(child, opts) {
			out = append(out, child)
		}
	}

	return out
}

// Parent returns the parent of id, or NoDef at the top or at the ceiling.
func (f *File) Parent(id DefID, opts TraversalOptions) DefID {
	d := f.Def(id)
	if d == nil || id == opts.Ceiling {
		return NoDef
	}

	return d.Parent
}

func (f *File) siblings(id DefID) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	if d.Parent == NoDef {
		return f.roots
	}

	return f.defs[d.Parent].Children
}

// NextSibling returns the next sibling of id that passes opts.
func (f *File) NextSibling(id DefID, opts TraversalOptions) DefID {
	if id == opts.Ceiling {
		return NoDef
	}

	sibs := f.siblings(id)

	for idx, sib := range sibs {
		if sib != id {
			continue
		}

		for _, next := range sibs[idx+1:] {
			if f.visible(next, opts) {
				return next
			}
		}
	}

	return NoDef
}

// PreviousSibling returns the previous sibling of id that passes opts.
func (f *File) PreviousSibling(id DefID, opts TraversalOptions) DefID {
	if id == opts.Ceiling {
		return NoDef
	}

	sibs := f.siblings(id)

	for idx, sib := range sibs {
		if sib != id {
			continue
		}

		for back := idx - 1; back >= 0; back-- {
			if f.visible(sibs[back], opts) {
				return sibs[back]
			}
		}
	}

	return NoDef
}

// Nullable reports whether the pattern may match nothing: an optional
// quantifier, a grouping of nullable members or a list with a nullable
// alternative.
func (f *File) Nullable(id DefID, opts TraversalOptions) bool {
	d := f.Def(id)
	if d == nil {
		return true
	}

	if d.Optional() {
		return true
	}

	switch d.Kind {
	case KindGrouping:
		for _, child := range f.Children(id, opts) {
			if !f.Nullable(child, opts) {
				return false
			}
		}

		return true
	case KindList:
		for _, child := range f.Children(id, opts) {
			if f.Nullable(child, opts) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// ThisOrFirstKindaTerminals returns id when it is matched as a unit, the
// firsts of every alternative of a list, or the firsts of a grouping.
func (f *File) ThisOrFirstKindaTerminals(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	switch d.Kind {
	case KindList:
		var out []DefID

		for _, child := range f.Children(id, opts) {
			out = appendUnique(out, f.ThisOrFirstKindaTerminals(child, opts)...)
		}

		return out
	case KindGrouping:
		return f.FirstKindaTerminalChildren(id, opts)
	case KindAnchor:
		return nil
	default:
		return []DefID{id}
	}
}

// FirstKindaTerminalChildren returns the leftmost kinda-terminals beneath
// id. It never descends into a named node or field definition: those are
// matched as units. Nullable children are looked past.
func (f *File) FirstKindaTerminalChildren(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	if d.Kind == KindList {
		return f.ThisOrFirstKindaTerminals(id, opts)
	}

	var out []DefID

	for _, child := range f.Children(id, opts) {
		out = appendUnique(out, f.ThisOrFirstKindaTerminals(child, opts)...)

		if !f.Nullable(child, opts) {
			break
		}
	}

	return out
}

// LastKindaTerminalChildren mirrors FirstKindaTerminalChildren from the end.
func (f *File) LastKindaTerminalChildren(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	children := f.Children(id, opts)

	var out []DefID

	for idx := len(children) - 1; idx >= 0; idx-- {
		child := children[idx]
		cd := f.Def(child)

		switch cd.Kind {
		case KindList:
			out = appendUnique(out, f.ThisOrLastKindaTerminals(child, opts)...)
		case KindGrouping:
			out = appendUnique(out, f.LastKindaTerminalChildren(child, opts)...)
		default:
			out = appendUnique(out, child)
		}

		if d.Kind == KindList {
			continue
		}

		if !f.Nullable(child, opts) {
			break
		}
	}

	return out
}

// ThisOrLastKindaTerminals returns id when it is matched as a unit, otherwise
// its last kinda-terminal children.
func (f *File) ThisOrLastKindaTerminals(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	switch d.Kind {
	case KindList, KindGrouping:
		return f.LastKindaTerminalChildren(id, opts)
	case KindAnchor:
		return nil
	default:
		return []DefID{id}
	}
}

// TerminalDescendants returns every kinda-terminal beneath id without
// entering named nodes or field definitions.
func (f *File) TerminalDescendants(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	if d.IsKindaTerminal() {
		return []DefID{id}
	}

	var out []DefID

	for _, child := range f.Children(id, opts) {
		out = appendUnique(out, f.TerminalDescendants(child, opts)...)
	}

	return out
}

// NextKindaTerminals returns the kinda-terminals that may be matched right
// after id within its enclosing named node, field definition or ceiling.
// A list is transparent: its members are alternatives, so stepping past a
// member steps past the list.
func (f *File) NextKindaTerminals(id DefID, opts TraversalOptions) []DefID {
	d := f.Def(id)
	if d == nil {
		return nil
	}

	var out []DefID

	if d.Repeats() {
		out = appendUnique(out, f.ThisOrFirstKindaTerminals(id, opts)...)
	}

	parent := f.Parent(id, opts)
	if parent == NoDef {
		return out
	}

	pd := f.Def(parent)

	if pd.Kind == KindList {
		return appendUnique(out, f.NextKindaTerminals(parent, opts)...)
	}

	for sib := f.NextSibling(id, opts); sib != NoDef; sib = f.NextSibling(sib, opts) {
		out = appendUnique(out, f.ThisOrFirstKindaTerminals(sib, opts)...)

		if !f.Nullable(sib, opts) {
			return out
		}
	}

	if pd.Kind == KindGrouping {
		out = appendUnique(out, f.NextKindaTerminals(parent, opts)...)
	}

	return out
}

func appendUnique(out []DefID, ids ...DefID) []DefID {
	for _, id := range ids {
		dup := false

		for _, have := range out {
			if have == id {
				dup = true

				break
			}
		}

		if !dup {
			out = append(out, id)
		}
	}

	return out
}
