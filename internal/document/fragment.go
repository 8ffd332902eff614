package document

// Fragment is a piece of content built in its own arena. The children of its
// root are the nodes that get inserted; nothing touches the target document
// until the fragment is complete.
type Fragment struct {
	*Document
}

func NewFragment() *Fragment {
	return &Fragment{Document: New()}
}

// Add appends a top-level node to the fragment.
func (f *Fragment) Add(kind Kind) *Node {
	return f.Append(f.root, kind)
}

// Roots returns the top-level nodes of the fragment.
func (f *Fragment) Roots() []*Node {
	return f.Blocks()
}

func (f *Fragment) Empty() bool {
	return f == nil || f.Document == nil || len(f.nodes[f.root].Children) == 0
}

// Inline reports whether every top-level node is inline content.
func (f *Fragment) Inline() bool {
	if f.Empty() {
		return false
	}
	for _, n := range f.Roots() {
		if !n.Kind.IsInline() {
			return false
		}
	}
	return true
}
