package document

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown formatting command")
	ErrHeadingLevel   = errors.New("heading level must be between 1 and 6")
)

// Command is a toolbar formatting action. The set of commands is closed.
type Command interface {
	fmt.Stringer
	command()
}

type (
	Bold          struct{}
	Italic        struct{}
	Heading       struct{ Level int }
	Paragraph     struct{}
	UnorderedList struct{}
	OrderedList   struct{}
	Quote         struct{}
	Rule          struct{}
)

func (Bold) command()          {}
func (Italic) command()        {}
func (Heading) command()       {}
func (Paragraph) command()     {}
func (UnorderedList) command() {}
func (OrderedList) command()   {}
func (Quote) command()         {}
func (Rule) command()          {}

func (Bold) String() string          { return "bold" }
func (Italic) String() string        { return "italic" }
func (h Heading) String() string     { return fmt.Sprintf("heading%d", h.Level) }
func (Paragraph) String() string     { return "paragraph" }
func (UnorderedList) String() string { return "unordered_list" }
func (OrderedList) String() string   { return "ordered_list" }
func (Quote) String() string         { return "quote" }
func (Rule) String() string          { return "rule" }

// ParseCommand maps a toolbar command name to its Command.
func ParseCommand(name string, level int) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bold":
		return Bold{}, nil
	case "italic":
		return Italic{}, nil
	case "heading":
		if level < 1 || level > 6 {
			return nil, fmt.Errorf("%w: got %d", ErrHeadingLevel, level)
		}
		return Heading{Level: level}, nil
	case "paragraph":
		return Paragraph{}, nil
	case "unordered_list", "bullet_list", "ul":
		return UnorderedList{}, nil
	case "ordered_list", "numbered_list", "ol":
		return OrderedList{}, nil
	case "quote", "blockquote":
		return Quote{}, nil
	case "rule", "hr":
		return Rule{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// Apply runs cmd over r and returns the range to select afterwards.
func (d *Document) Apply(cmd Command, r Range) (Range, error) {
	if !d.ResolveRange(r) {
		return r, ErrInvalidPosition
	}
	switch c := cmd.(type) {
	case Bold:
		return d.toggleMark(r, MarkBold), nil
	case Italic:
		return d.toggleMark(r, MarkItalic), nil
	case Heading:
		if c.Level < 1 || c.Level > 6 {
			return r, fmt.Errorf("%w: got %d", ErrHeadingLevel, c.Level)
		}
		d.setBlockKind(r, KindHeading, c.Level)
		return r, nil
	case Paragraph:
		d.setBlockKind(r, KindParagraph, 0)
		return r, nil
	case UnorderedList:
		d.toggleList(r, false)
		return r, nil
	case OrderedList:
		d.toggleList(r, true)
		return r, nil
	case Quote:
		d.toggleQuote(r)
		return r, nil
	case Rule:
		frag := NewFragment()
		frag.Add(KindRule)
		_, end := d.Ordered(r)
		caret, err := d.InsertFragment(end, frag)
		return Caret(caret), err
	}
	return r, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

// toggleMark removes m when every selected character already carries it and
// adds it otherwise.
func (d *Document) toggleMark(r Range, m Mark) Range {
	start, end := d.Ordered(r)
	if start == end {
		return r
	}
	// Split the end first: the left half keeps its id, so start stays valid.
	if n := d.nodes[end.Node]; n.Kind == KindText {
		d.splitText(n, end.Offset)
	}
	if n := d.nodes[start.Node]; n.Kind == KindText && start.Offset > 0 && start.Offset < n.RuneLen() {
		i := d.splitText(n, start.Offset)
		mid := d.nodes[d.nodes[n.Parent].Children[i]]
		if end.Node == n.ID {
			end = Position{Node: mid.ID, Offset: end.Offset - start.Offset}
		}
		start = Position{Node: mid.ID}
	}

	var covered []*Node
	for _, t := range d.textNodes() {
		if t.Text == "" {
			continue
		}
		if d.Compare(Position{Node: t.ID}, start) >= 0 && d.Compare(Position{Node: t.ID, Offset: t.RuneLen()}, end) <= 0 {
			covered = append(covered, t)
		}
	}
	if len(covered) == 0 {
		return r
	}
	all := true
	for _, t := range covered {
		if !t.Marks.Has(m) {
			all = false
			break
		}
	}
	for _, t := range covered {
		if all {
			t.Marks &^= m
		} else {
			t.Marks |= m
		}
	}
	first, last := covered[0], covered[len(covered)-1]
	return Range{Anchor: Position{Node: first.ID}, Focus: Position{Node: last.ID, Offset: last.RuneLen()}}
}

// selectedBlocks returns the paragraphs and headings touched by r.
func (d *Document) selectedBlocks(r Range) []*Node {
	start, end := d.Ordered(r)
	var out []*Node
	d.Walk(func(n *Node, _ int) bool {
		if n.ID == d.root {
			return true
		}
		i := d.Index(n.ID)
		ns, ne := Position{Node: n.Parent, Offset: i}, Position{Node: n.Parent, Offset: i + 1}
		if d.Compare(ne, start) <= 0 {
			return false
		}
		if c := d.Compare(ns, end); c > 0 || (c == 0 && start != end) {
			return false
		}
		if n.Kind == KindParagraph || n.Kind == KindHeading {
			out = append(out, n)
			return false
		}
		return !n.Kind.IsInline()
	})
	return out
}

func (d *Document) setBlockKind(r Range, kind Kind, level int) {
	for _, b := range d.selectedBlocks(r) {
		b.Kind = kind
		b.Level = level
	}
}

func (d *Document) toggleList(r Range, ordered bool) {
	blocks := d.selectedBlocks(r)
	if len(blocks) == 0 {
		return
	}
	unwrap := true
	for _, b := range blocks {
		item := d.nodes[b.Parent]
		if item.Kind != KindListItem || d.nodes[item.Parent].Ordered != ordered {
			unwrap = false
			break
		}
	}
	if unwrap {
		// Items are collected first: unwrapping one moves every block it
		// holds, so later blocks no longer point at it.
		var items []*Node
		for _, b := range blocks {
			if item := d.nodes[b.Parent]; !slices.Contains(items, item) {
				items = append(items, item)
			}
		}
		for _, item := range items {
			d.unwrapItem(item)
		}
		return
	}

	// Blocks already in a list switch the list type; the rest are wrapped,
	// one new list per run of adjacent siblings.
	var groups [][]*Node
	for _, b := range blocks {
		if item := d.nodes[b.Parent]; item.Kind == KindListItem {
			d.nodes[item.Parent].Ordered = ordered
			continue
		}
		if n := len(groups); n > 0 {
			last := groups[n-1][len(groups[n-1])-1]
			if last.Parent == b.Parent && d.Index(last.ID)+1 == d.Index(b.ID) {
				groups[n-1] = append(groups[n-1], b)
				continue
			}
		}
		groups = append(groups, []*Node{b})
	}
	for _, g := range groups {
		list := d.alloc(KindList)
		list.Ordered = ordered
		d.InsertChild(g[0].Parent, d.Index(g[0].ID), list.ID)
		for _, b := range g {
			d.Detach(b.ID)
			item := d.Append(list.ID, KindListItem)
			d.AppendChild(item.ID, b.ID)
		}
	}
}

// unwrapItem lifts the blocks of item out of its list, splitting the list
// around it.
func (d *Document) unwrapItem(item *Node) {
	list := d.nodes[item.Parent]
	i := d.Index(item.ID)
	if rest := slices.Clone(list.Children[i+1:]); len(rest) > 0 {
		tail := d.alloc(KindList)
		tail.Ordered = list.Ordered
		for _, c := range rest {
			d.Detach(c)
			d.AppendChild(tail.ID, c)
		}
		d.InsertChild(list.Parent, d.Index(list.ID)+1, tail.ID)
	}
	at := d.Index(list.ID) + 1
	for _, c := range slices.Clone(item.Children) {
		d.Detach(c)
		d.InsertChild(list.Parent, at, c)
		at++
	}
	d.Remove(item.ID)
	if len(list.Children) == 0 {
		d.Remove(list.ID)
	}
}

func (d *Document) toggleQuote(r Range) {
	blocks := d.selectedBlocks(r)
	if len(blocks) == 0 {
		return
	}
	var quotes []*Node
	for _, b := range blocks {
		q := d.enclosing(b.ID, func(x *Node) bool { return x.Kind == KindBlockquote })
		if q == nil {
			quotes = nil
			break
		}
		if !slices.Contains(quotes, q) {
			quotes = append(quotes, q)
		}
	}
	if len(quotes) > 0 {
		for _, q := range quotes {
			at := d.Index(q.ID)
			parent := q.Parent
			for _, c := range slices.Clone(q.Children) {
				d.Detach(c)
				d.InsertChild(parent, at, c)
				at++
			}
			d.Remove(q.ID)
		}
		return
	}

	top := func(n *Node) int {
		for n.Parent != d.root {
			n = d.nodes[n.Parent]
		}
		return d.Index(n.ID)
	}
	first, last := top(blocks[0]), top(blocks[len(blocks)-1])
	root := d.nodes[d.root]
	ids := slices.Clone(root.Children[first : last+1])
	q := d.alloc(KindBlockquote)
	d.InsertChild(d.root, first, q.ID)
	for _, id := range ids {
		d.Detach(id)
		d.AppendChild(q.ID, id)
	}
}
