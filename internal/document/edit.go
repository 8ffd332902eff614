package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrInvalidPosition = errors.New("position does not resolve")
	ErrEmptyFragment   = errors.New("empty fragment")
	ErrNodeNotFound    = errors.New("node not found")
	ErrNotLink         = errors.New("node is not a link")
)

func isTextBlock(n *Node) bool { return n.Kind.IsTextBlock() }

func isLink(n *Node) bool { return n.Kind == KindLink }

// holdsChildren reports whether positions on the kind address child slots.
func (k Kind) holdsChildren() bool {
	switch k {
	case KindList, KindTable, KindTableRow, KindLink:
		return true
	}
	return k.IsTextBlock() || k.IsBlockContainer()
}

// leafPos rewrites a position on a leaf (image, rule, line break...) into the
// slot of its parent.
func (d *Document) leafPos(pos Position) Position {
	n := d.nodes[pos.Node]
	if n.Kind == KindText || n.Kind.holdsChildren() {
		return pos
	}
	return Position{Node: n.Parent, Offset: d.Index(n.ID) + min(pos.Offset, 1)}
}

func (d *Document) after(id NodeID) (NodeID, int) {
	return d.nodes[id].Parent, d.Index(id) + 1
}

// startOf is the first caret position inside id.
func (d *Document) startOf(id NodeID) Position {
	if texts := d.textNodesUnder(id); len(texts) > 0 {
		return Position{Node: texts[0].ID}
	}
	return Position{Node: id}
}

// runesBefore counts the visible runes of id that precede pos.
func (d *Document) runesBefore(id NodeID, pos Position) int {
	count := 0
	for _, t := range d.textNodesUnder(id) {
		if t.ID == pos.Node {
			return count + pos.Offset
		}
		if d.Compare(Position{Node: t.ID}, pos) >= 0 {
			break
		}
		count += t.RuneLen()
	}
	return count
}

// blank reports whether a text block has no visible content.
func (d *Document) blank(id NodeID) bool {
	for _, c := range d.nodes[id].Children {
		cn := d.nodes[c]
		switch cn.Kind {
		case KindText:
			if strings.TrimSpace(cn.Text) != "" {
				return false
			}
		case KindLineBreak:
		default:
			return false
		}
	}
	return true
}

// splitText splits t at off and returns the child index of the boundary in
// t's parent. The left half keeps t's id.
func (d *Document) splitText(t *Node, off int) int {
	i := d.Index(t.ID)
	switch {
	case off <= 0:
		return i
	case off >= t.RuneLen():
		return i + 1
	}
	r := []rune(t.Text)
	right := d.alloc(KindText)
	right.Text = string(r[off:])
	right.Marks = t.Marks
	t.Text = string(r[:off])
	d.InsertChild(t.Parent, i+1, right.ID)
	return i + 1
}

// inlineIndex returns the child index of tb at which pos lies, splitting the
// text node under pos when needed. Links are never split.
func (d *Document) inlineIndex(tb NodeID, pos Position) int {
	if pos.Node == tb {
		return pos.Offset
	}
	child := d.nodes[pos.Node]
	for child.Parent != tb {
		child = d.nodes[child.Parent]
	}
	if child.ID == pos.Node && child.Kind == KindText {
		return d.splitText(child, pos.Offset)
	}
	i := d.Index(child.ID)
	if d.runesBefore(child.ID, pos) > 0 {
		i++
	}
	return i
}

// splitChildren moves the children of tb from index k on into a new sibling
// of the same kind placed right after tb.
func (d *Document) splitChildren(tb *Node, k int) *Node {
	right := d.alloc(tb.Kind)
	right.Level = tb.Level
	right.Attrs = maps.Clone(tb.Attrs)
	moved := slices.Clone(tb.Children[k:])
	tb.Children = tb.Children[:k]
	for _, c := range moved {
		d.AppendChild(right.ID, c)
	}
	d.InsertChild(tb.Parent, d.Index(tb.ID)+1, right.ID)
	return right
}

// blockSlot finds where a block can go at pos. Paragraphs and headings are
// split around it and empty halves dropped; table cells and lists place the
// block after the whole table or list.
func (d *Document) blockSlot(pos Position) (NodeID, int) {
	pos = d.leafPos(pos)
	n := d.nodes[pos.Node]
	if n.Kind.IsBlockContainer() {
		return n.ID, pos.Offset
	}
	if tb := d.enclosing(n.ID, isTextBlock); tb != nil {
		if tb.Kind == KindTableCell {
			table := d.enclosing(tb.ID, func(x *Node) bool { return x.Kind == KindTable })
			return d.after(table.ID)
		}
		k := d.inlineIndex(tb.ID, pos)
		parent, index := tb.Parent, d.Index(tb.ID)+1
		right := d.splitChildren(tb, k)
		if d.blank(right.ID) {
			d.Remove(right.ID)
		}
		if d.blank(tb.ID) {
			d.Remove(tb.ID)
			index--
		}
		return parent, index
	}
	b := d.enclosing(n.ID, func(x *Node) bool {
		p := d.Node(x.Parent)
		return p != nil && p.Kind.IsBlockContainer()
	})
	if pos.Offset == 0 && b.ID == n.ID {
		return b.Parent, d.Index(b.ID)
	}
	return d.after(b.ID)
}

// caretAfter is where typing continues after content placed before
// parent[index].
func (d *Document) caretAfter(parent NodeID, index int) Position {
	p := d.nodes[parent]
	if index < len(p.Children) && d.nodes[p.Children[index]].Kind.IsTextBlock() {
		return d.startOf(p.Children[index])
	}
	return Position{Node: parent, Offset: index}
}

// inlineSlot finds where inline content can go at pos. Content landing in a
// link goes next to it since links do not nest.
func (d *Document) inlineSlot(pos Position) (NodeID, int, bool) {
	pos = d.leafPos(pos)
	n := d.nodes[pos.Node]
	if link := d.enclosing(n.ID, isLink); link != nil {
		i := d.Index(link.ID)
		if d.runesBefore(link.ID, pos) > 0 {
			i++
		}
		return link.Parent, i, true
	}
	switch {
	case n.Kind == KindText:
		return n.Parent, d.splitText(n, pos.Offset), true
	case n.Kind.IsTextBlock():
		return n.ID, pos.Offset, true
	}
	return NoNode, 0, false
}

// InsertText types text at pos and returns the caret after it. Newlines split
// the enclosing block. An unresolvable pos types at the end of the document.
func (d *Document) InsertText(pos Position, text string) Position {
	if !d.Resolve(pos) {
		pos = d.End()
	}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			pos = d.SplitBlock(pos)
		}
		if line != "" {
			pos = d.insertLine(d.leafPos(pos), line)
		}
	}
	return pos
}

func (d *Document) insertLine(pos Position, text string) Position {
	n := d.nodes[pos.Node]
	switch {
	case n.Kind == KindText:
		r := []rune(n.Text)
		n.Text = string(r[:pos.Offset]) + text + string(r[pos.Offset:])
		return Position{Node: n.ID, Offset: pos.Offset + len([]rune(text))}
	case n.Kind.IsTextBlock() || n.Kind == KindLink:
		if pos.Offset > 0 {
			if prev := d.nodes[n.Children[pos.Offset-1]]; prev.Kind == KindText {
				return d.insertLine(Position{Node: prev.ID, Offset: prev.RuneLen()}, text)
			}
		}
		t := d.alloc(KindText)
		t.Text = text
		d.InsertChild(n.ID, pos.Offset, t.ID)
		return Position{Node: t.ID, Offset: t.RuneLen()}
	}
	parent, index := d.blockSlot(pos)
	p := d.alloc(KindParagraph)
	d.InsertChild(parent, index, p.ID)
	t := d.AppendText(p.ID, text, 0)
	return Position{Node: t.ID, Offset: t.RuneLen()}
}

// SplitBlock breaks the text block at pos in two, the way Enter does, and
// returns the start of the second half. Inside a list the second half becomes
// a new item.
func (d *Document) SplitBlock(pos Position) Position {
	if !d.Resolve(pos) {
		pos = d.End()
	}
	pos = d.leafPos(pos)
	tb := d.enclosing(pos.Node, isTextBlock)
	if tb != nil && tb.Kind == KindTableCell {
		k := d.inlineIndex(tb.ID, pos)
		d.InsertChild(tb.ID, k, d.alloc(KindLineBreak).ID)
		return Position{Node: tb.ID, Offset: k + 1}
	}
	if tb == nil {
		parent, index := d.blockSlot(pos)
		p := d.alloc(KindParagraph)
		d.InsertChild(parent, index, p.ID)
		return Position{Node: p.ID}
	}
	right := d.splitChildren(tb, d.inlineIndex(tb.ID, pos))
	if right.Kind == KindHeading && d.blank(right.ID) {
		right.Kind = KindParagraph
		right.Level = 0
	}
	if item := d.nodes[tb.Parent]; item.Kind == KindListItem {
		next := d.alloc(KindListItem)
		i := d.Index(right.ID)
		for _, c := range slices.Clone(item.Children[i:]) {
			d.Detach(c)
			d.AppendChild(next.ID, c)
		}
		d.InsertChild(item.Parent, d.Index(item.ID)+1, next.ID)
	}
	return d.startOf(right.ID)
}

// InsertFragment grafts frag at pos and returns the caret right after the
// inserted content. Inline fragments split the text node under pos; block
// fragments split the enclosing paragraph or heading and land between the
// halves. An unresolvable pos inserts at the end of the document.
func (d *Document) InsertFragment(pos Position, frag *Fragment) (Position, error) {
	if frag.Empty() {
		return Position{}, ErrEmptyFragment
	}
	if !d.Resolve(pos) {
		pos = d.End()
	}
	if frag.Inline() {
		if parent, index, ok := d.inlineSlot(pos); ok {
			for _, r := range frag.Roots() {
				d.InsertChild(parent, index, d.graft(frag.Document, r.ID))
				index++
			}
			return Position{Node: parent, Offset: index}, nil
		}
	}

	parent, index := d.blockSlot(pos)
	var para *Node
	for _, r := range frag.Roots() {
		id := d.graft(frag.Document, r.ID)
		if r.Kind.IsInline() {
			if para == nil {
				para = d.alloc(KindParagraph)
				d.InsertChild(parent, index, para.ID)
				index++
			}
			d.AppendChild(para.ID, id)
			continue
		}
		para = nil
		d.InsertChild(parent, index, id)
		index++
	}
	return d.caretAfter(parent, index), nil
}

type trim struct {
	id     NodeID
	lo, hi int
}

// DeleteRange removes the content between the ends of r and returns the
// collapsed caret. Blocks fully inside the range are removed; the block
// holding the end is merged into the block holding the start. Table cells and
// rows are emptied, never removed on their own.
func (d *Document) DeleteRange(r Range) Position {
	if !d.ResolveRange(r) {
		return d.End()
	}
	start, end := d.Ordered(r)
	if start == end {
		return start
	}
	sb := d.enclosing(start.Node, isTextBlock)
	eb := d.enclosing(end.Node, isTextBlock)

	var trims []trim
	var removals []NodeID
	var visit func(id NodeID)
	visit = func(id NodeID) {
		for i, c := range d.nodes[id].Children {
			cs, ce := Position{Node: id, Offset: i}, Position{Node: id, Offset: i + 1}
			if d.Compare(ce, start) <= 0 || d.Compare(cs, end) >= 0 {
				continue
			}
			cn := d.nodes[c]
			if d.Compare(cs, start) >= 0 && d.Compare(ce, end) <= 0 &&
				cn.Kind != KindTableRow && cn.Kind != KindTableCell {
				removals = append(removals, c)
				continue
			}
			if cn.Kind == KindText {
				lo, hi := 0, cn.RuneLen()
				if start.Node == c {
					lo = start.Offset
				}
				if end.Node == c {
					hi = end.Offset
				}
				trims = append(trims, trim{id: c, lo: lo, hi: hi})
				continue
			}
			visit(c)
		}
	}
	visit(d.root)

	keep := map[NodeID]bool{}
	for n := d.Node(start.Node); n != nil; n = d.Node(n.Parent) {
		keep[n.ID] = true
	}

	for _, t := range trims {
		n := d.nodes[t.id]
		rs := []rune(n.Text)
		n.Text = string(rs[:t.lo]) + string(rs[t.hi:])
	}
	for _, t := range trims {
		if n := d.nodes[t.id]; n.Text == "" && !keep[n.ID] {
			parent := n.Parent
			d.Remove(n.ID)
			d.prune(parent, keep)
		}
	}
	for _, id := range removals {
		parent := d.nodes[id].Parent
		d.Remove(id)
		d.prune(parent, keep)
	}

	if sb != nil && eb != nil && sb.ID != eb.ID &&
		sb.Kind != KindTableCell && eb.Kind != KindTableCell &&
		d.Attached(sb.ID) && d.Attached(eb.ID) {
		parent := eb.Parent
		for _, c := range slices.Clone(eb.Children) {
			d.Detach(c)
			d.AppendChild(sb.ID, c)
		}
		d.Remove(eb.ID)
		d.prune(parent, keep)
	}
	return start
}

// prune removes id and its ancestors while they are left empty.
func (d *Document) prune(id NodeID, keep map[NodeID]bool) {
	for {
		n := d.Node(id)
		if n == nil || n.ID == d.root || keep[id] || len(n.Children) > 0 {
			return
		}
		switch n.Kind {
		case KindParagraph, KindHeading, KindList, KindListItem, KindBlockquote, KindLink:
		default:
			return
		}
		id = n.Parent
		d.Remove(n.ID)
	}
}

// LinkAt returns the link enclosing pos, or nil.
func (d *Document) LinkAt(pos Position) *Node {
	if !d.Resolve(pos) {
		return nil
	}
	return d.enclosing(pos.Node, isLink)
}

// UpdateLink edits an existing link in place. An empty text keeps the
// current label.
func (d *Document) UpdateLink(id NodeID, href, text string, newTab bool) error {
	if !d.Attached(id) {
		return fmt.Errorf("link %d: %w", id, ErrNodeNotFound)
	}
	n := d.nodes[id]
	if n.Kind != KindLink {
		return fmt.Errorf("node %d is a %s: %w", id, n.Kind, ErrNotLink)
	}
	n.SetAttr(AttrHref, href)
	if newTab {
		n.SetAttr(AttrTarget, "_blank")
		n.SetAttr(AttrRel, "noopener noreferrer")
	} else {
		n.SetAttr(AttrTarget, "")
		n.SetAttr(AttrRel, "")
	}
	if text == "" || text == d.TextContent(id) {
		return nil
	}
	var marks Mark
	if texts := d.textNodesUnder(id); len(texts) > 0 {
		marks = texts[0].Marks
	}
	for _, c := range slices.Clone(n.Children) {
		d.Remove(c)
	}
	d.AppendText(id, text, marks)
	return nil
}
