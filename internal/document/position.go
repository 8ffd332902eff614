package document

import "slices"

// Position is a caret location. Offset counts runes inside text nodes and
// children inside every other node.
type Position struct {
	Node   NodeID `json:"node"`
	Offset int    `json:"offset"`
}

type Range struct {
	Anchor Position `json:"anchor"`
	Focus  Position `json:"focus"`
}

func Caret(p Position) Range {
	return Range{Anchor: p, Focus: p}
}

func (r Range) Collapsed() bool {
	return r.Anchor == r.Focus
}

// Resolve reports whether p points into the attached tree.
func (d *Document) Resolve(p Position) bool {
	if !d.Attached(p.Node) {
		return false
	}
	n := d.nodes[p.Node]
	if p.Offset < 0 {
		return false
	}
	if n.Kind == KindText {
		return p.Offset <= n.RuneLen()
	}
	return p.Offset <= len(n.Children)
}

// ResolveRange reports whether both ends of r resolve.
func (d *Document) ResolveRange(r Range) bool {
	return d.Resolve(r.Anchor) && d.Resolve(r.Focus)
}

// Start is the first caret position of the document.
func (d *Document) Start() Position {
	if texts := d.textNodes(); len(texts) > 0 {
		return Position{Node: texts[0].ID}
	}
	return Position{Node: d.root}
}

// End is the last caret position of the document. Insertions whose saved
// selection no longer resolves land here.
func (d *Document) End() Position {
	root := d.nodes[d.root]
	if len(root.Children) == 0 {
		return Position{Node: d.root}
	}
	last := d.nodes[root.Children[len(root.Children)-1]]
	if !last.Kind.IsTextBlock() && last.Kind != KindList && last.Kind != KindBlockquote {
		return Position{Node: d.root, Offset: len(root.Children)}
	}
	texts := d.textNodesUnder(last.ID)
	if len(texts) == 0 {
		if last.Kind.IsTextBlock() {
			return Position{Node: last.ID, Offset: len(last.Children)}
		}
		return Position{Node: d.root, Offset: len(root.Children)}
	}
	t := texts[len(texts)-1]
	return Position{Node: t.ID, Offset: t.RuneLen()}
}

// path is the list of child indexes from the root down to p, ending with
// p's own offset. Comparing paths lexicographically orders positions.
func (d *Document) path(p Position) []int {
	rev := []int{p.Offset}
	id := p.Node
	for id != d.root {
		n := d.nodes[id]
		parent := d.nodes[n.Parent]
		rev = append(rev, slices.Index(parent.Children, id))
		id = n.Parent
	}
	slices.Reverse(rev)
	return rev
}

// Compare orders two valid positions in document order.
func (d *Document) Compare(a, b Position) int {
	return slices.Compare(d.path(a), d.path(b))
}

// Ordered returns the ends of r as start <= end.
func (d *Document) Ordered(r Range) (Position, Position) {
	if d.Compare(r.Anchor, r.Focus) <= 0 {
		return r.Anchor, r.Focus
	}
	return r.Focus, r.Anchor
}

func (d *Document) textNodes() []*Node {
	return d.textNodesUnder(d.root)
}

func (d *Document) textNodesUnder(id NodeID) []*Node {
	var out []*Node
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := d.nodes[id]
		if n.Kind == KindText {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(id)
	return out
}

// enclosing returns the nearest ancestor of id (id included) matching fn.
func (d *Document) enclosing(id NodeID, fn func(*Node) bool) *Node {
	for n := d.Node(id); n != nil; n = d.Node(n.Parent) {
		if fn(n) {
			return n
		}
		if n.ID == d.root {
			return nil
		}
	}
	return nil
}
