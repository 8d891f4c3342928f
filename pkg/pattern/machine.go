package pattern

// Machine is a pre-order structural index over one pattern. Indices are
// positions in the walk; index 0 is the root.
type Machine struct {
	file     *File
	defs     []DefID
	parent   []int
	children [][]int
	index    map[DefID]int
}

// NewMachine indexes root and every definition beneath it that passes opts.
func NewMachine(f *File, root DefID, opts TraversalOptions) *Machine {
	m := &Machine{file: f, index: make(map[DefID]int)}

	if f.Def(root) != nil {
		m.visit(root, -1, opts)
	}

	return m
}

func (m *Machine) visit(id DefID, parent int, opts TraversalOptions) {
	idx := len(m.defs)
	m.defs = append(m.defs, id)
	m.parent = append(m.parent, parent)
	m.children = append(m.children, nil)
	m.index[id] = idx

	if parent >= 0 {
		m.children[parent] = append(m.children[parent], idx)
	}

	for _, child := range m.file.Children(id, opts) {
		m.visit(child, idx, opts)
	}
}

// Len returns the number of indexed definitions.
func (m *Machine) Len() int {
	return len(m.defs)
}

// Def returns the definition at idx.
func (m *Machine) Def(idx int) *Definition {
	if idx < 0 || idx >= len(m.defs) {
		return nil
	}

	return m.file.Def(m.defs[idx])
}

// Index returns the walk position of a definition.
func (m *Machine) Index(id DefID) (int, bool) {
	idx, ok := m.index[id]

	return idx, ok
}

// Parent returns the parent index, or -1 for the root.
func (m *Machine) Parent(idx int) int {
	if idx < 0 || idx >= len(m.parent) {
		return -1
	}

	return m.parent[idx]
}

// Children returns the child indices of idx.
func (m *Machine) Children(idx int) []int {
	if idx < 0 || idx >= len(m.children) {
		return nil
	}

	return append([]int(nil), m.children[idx]...)
}

// PreviousSibling returns the index of the previous sibling, or -1.
func (m *Machine) PreviousSibling(idx int) int {
	sibs, pos := m.position(idx)
	if pos <= 0 {
		return -1
	}

	return sibs[pos-1]
}

// NextSibling returns the index of the next sibling, or -1.
func (m *Machine) NextSibling(idx int) int {
	sibs, pos := m.position(idx)
	if pos < 0 || pos+1 >= len(sibs) {
		return -1
	}

	return sibs[pos+1]
}

func (m *Machine) position(idx int) ([]int, int) {
	parent := m.Parent(idx)
	if parent < 0 {
		return nil, -1
	}

	sibs := m.children[parent]

	for pos, sib := range sibs {
		if sib == idx {
			return sibs, pos
		}
	}

	return nil, -1
}

// PathOf returns the child positions leading from the root to idx.
func (m *Machine) PathOf(idx int) []int {
	var path []int

	for cur := idx; m.Parent(cur) >= 0; cur = m.Parent(cur) {
		_, pos := m.position(cur)
		path = append(path, pos)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}

// IndexByPath follows child positions from the root.
func (m *Machine) IndexByPath(path []int) (int, bool) {
	if len(m.defs) == 0 {
		return -1, false
	}

	idx := 0

	for _, pos := range path {
		children := m.children[idx]
		if pos < 0 || pos >= len(children) {
			return -1, false
		}

		idx = children[pos]
	}

	return idx, true
}
