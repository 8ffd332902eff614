// Package document models an article body as an owned tree of typed nodes.
//
// A Document is an arena: nodes live in a slice indexed by NodeID and ids are
// never reused, so a position captured against a node that was later removed
// (or replaced wholesale by an external rewrite) simply stops resolving.
package document

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

type NodeID int

// NoNode is the zero id; real ids start at 1.
const NoNode NodeID = 0

type Kind int

const (
	KindRoot Kind = iota
	KindParagraph
	KindHeading
	KindList
	KindListItem
	KindBlockquote
	KindCodeBlock
	KindRule
	KindTable
	KindTableRow
	KindTableCell
	KindImage
	KindVideoEmbed
	KindSocialEmbed
	KindPromptBox
	KindHTML
	KindText
	KindLink
	KindLineBreak
	KindInlineHTML
)

var kindNames = [...]string{
	KindRoot:        "root",
	KindParagraph:   "paragraph",
	KindHeading:     "heading",
	KindList:        "list",
	KindListItem:    "list_item",
	KindBlockquote:  "blockquote",
	KindCodeBlock:   "code_block",
	KindRule:        "rule",
	KindTable:       "table",
	KindTableRow:    "table_row",
	KindTableCell:   "table_cell",
	KindImage:       "image",
	KindVideoEmbed:  "video_embed",
	KindSocialEmbed: "social_embed",
	KindPromptBox:   "prompt_box",
	KindHTML:        "html",
	KindText:        "text",
	KindLink:        "link",
	KindLineBreak:   "line_break",
	KindInlineHTML:  "inline_html",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsInline reports whether nodes of this kind live inside text blocks.
func (k Kind) IsInline() bool {
	switch k {
	case KindText, KindLink, KindLineBreak, KindInlineHTML:
		return true
	}
	return false
}

func (k Kind) IsBlock() bool {
	return k != KindRoot && !k.IsInline()
}

// IsTextBlock reports whether the kind holds inline children.
func (k Kind) IsTextBlock() bool {
	switch k {
	case KindParagraph, KindHeading, KindTableCell:
		return true
	}
	return false
}

// IsBlockContainer reports whether the kind holds arbitrary blocks.
func (k Kind) IsBlockContainer() bool {
	switch k {
	case KindRoot, KindBlockquote, KindListItem:
		return true
	}
	return false
}

type Mark uint8

const (
	MarkBold Mark = 1 << iota
	MarkItalic
	MarkCode
	MarkStrike
)

func (m Mark) Has(o Mark) bool {
	return m&o == o
}

// Attribute keys shared by the converter and the insertion handlers.
const (
	AttrSrc          = "src"
	AttrAlt          = "alt"
	AttrTitle        = "title"
	AttrCaption      = "caption"
	AttrSize         = "size"
	AttrHref         = "href"
	AttrTarget       = "target"
	AttrRel          = "rel"
	AttrLang         = "lang"
	AttrVariant      = "variant"
	AttrURL          = "url"
	AttrPlatform     = "platform"
	AttrEmbedID      = "embed_id"
	AttrRaw          = "raw"
	AttrContent      = "content"
	AttrStart        = "start"
	AttrEditorPrefix = "data-editor-"
)

type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID

	// Text holds the literal for text, code block, raw HTML and inline HTML nodes.
	Text    string
	Marks   Mark
	Level   int
	Ordered bool
	Header  bool
	Attrs   map[string]string
}

func (n *Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	if value == "" {
		delete(n.Attrs, key)
		return
	}
	n.Attrs[key] = value
}

// RuneLen is the caret length of a text node.
func (n *Node) RuneLen() int {
	return utf8.RuneCountInString(n.Text)
}

type Document struct {
	nodes []*Node
	root  NodeID

	// FrontMatter is the raw %%% block that precedes the body, kept verbatim.
	FrontMatter string
}

func New() *Document {
	d := &Document{nodes: []*Node{nil}}
	d.root = d.alloc(KindRoot).ID
	return d
}

func (d *Document) alloc(kind Kind) *Node {
	n := &Node{ID: NodeID(len(d.nodes)), Kind: kind}
	d.nodes = append(d.nodes, n)
	return n
}

// NewNode allocates a detached node.
func (d *Document) NewNode(kind Kind) *Node {
	return d.alloc(kind)
}

func (d *Document) Root() *Node {
	return d.nodes[d.root]
}

// Node returns the node with the given id, or nil when it was freed.
func (d *Document) Node(id NodeID) *Node {
	if id <= NoNode || int(id) >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

// Attached reports whether id is live and reachable from the root.
func (d *Document) Attached(id NodeID) bool {
	for {
		n := d.Node(id)
		if n == nil {
			return false
		}
		if n.ID == d.root {
			return true
		}
		parent := d.Node(n.Parent)
		if parent == nil || !slices.Contains(parent.Children, id) {
			return false
		}
		id = n.Parent
	}
}

// Append creates a node of kind under parent.
func (d *Document) Append(parent NodeID, kind Kind) *Node {
	n := d.alloc(kind)
	d.AppendChild(parent, n.ID)
	return n
}

// AppendText creates a text node under parent.
func (d *Document) AppendText(parent NodeID, text string, marks Mark) *Node {
	n := d.Append(parent, KindText)
	n.Text = text
	n.Marks = marks
	return n
}

func (d *Document) AppendChild(parent, child NodeID) {
	d.InsertChild(parent, len(d.nodes[parent].Children), child)
}

func (d *Document) InsertChild(parent NodeID, index int, child NodeID) {
	p := d.nodes[parent]
	index = max(0, min(index, len(p.Children)))
	p.Children = slices.Insert(p.Children, index, child)
	d.nodes[child].Parent = parent
}

// Detach unlinks id from its parent without freeing it.
func (d *Document) Detach(id NodeID) {
	n := d.Node(id)
	if n == nil {
		return
	}
	if p := d.Node(n.Parent); p != nil {
		if i := slices.Index(p.Children, id); i >= 0 {
			p.Children = slices.Delete(p.Children, i, i+1)
		}
	}
	n.Parent = NoNode
}

// Remove unlinks and frees the subtree rooted at id.
func (d *Document) Remove(id NodeID) {
	d.Detach(id)
	d.free(id)
}

func (d *Document) free(id NodeID) {
	n := d.Node(id)
	if n == nil {
		return
	}
	for _, c := range n.Children {
		d.free(c)
	}
	d.nodes[id] = nil
}

// Index returns the position of id among its siblings.
func (d *Document) Index(id NodeID) int {
	n := d.Node(id)
	if n == nil {
		return -1
	}
	p := d.Node(n.Parent)
	if p == nil {
		return -1
	}
	return slices.Index(p.Children, id)
}

func (d *Document) Children(id NodeID) []*Node {
	n := d.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, d.nodes[c])
	}
	return out
}

// Blocks returns the top-level blocks.
func (d *Document) Blocks() []*Node {
	return d.Children(d.root)
}

// Walk visits the tree in document order. Returning false skips the children.
func (d *Document) Walk(fn func(n *Node, depth int) bool) {
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		n := d.nodes[id]
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(d.root, 0)
}

// Find returns the attached nodes of the given kind in document order.
func (d *Document) Find(kind Kind) []*Node {
	var out []*Node
	d.Walk(func(n *Node, _ int) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// TextContent returns the visible text below id.
func (d *Document) TextContent(id NodeID) string {
	var b strings.Builder
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := d.nodes[id]
		switch n.Kind {
		case KindText, KindCodeBlock:
			b.WriteString(n.Text)
		case KindLineBreak:
			b.WriteByte('\n')
		}
		for i, c := range n.Children {
			if i > 0 && d.nodes[c].Kind.IsBlock() {
				b.WriteByte('\n')
			}
			walk(c)
		}
	}
	walk(id)
	return b.String()
}

// Text returns the visible text of the whole document.
func (d *Document) Text() string {
	return d.TextContent(d.root)
}

// Len is the number of live nodes, root included.
func (d *Document) Len() int {
	count := 0
	for _, n := range d.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// ReplaceContent frees the current tree and grafts a copy of other's tree
// with fresh ids, so positions captured before the call no longer resolve.
func (d *Document) ReplaceContent(other *Document) {
	root := d.nodes[d.root]
	for _, c := range root.Children {
		d.free(c)
	}
	root.Children = nil
	for _, c := range other.nodes[other.root].Children {
		d.AppendChild(d.root, d.graft(other, c))
	}
	d.FrontMatter = other.FrontMatter
}

// graft deep copies src's subtree at id into d and returns the detached copy.
func (d *Document) graft(src *Document, id NodeID) NodeID {
	sn := src.nodes[id]
	n := d.alloc(sn.Kind)
	n.Text = sn.Text
	n.Marks = sn.Marks
	n.Level = sn.Level
	n.Ordered = sn.Ordered
	n.Header = sn.Header
	n.Attrs = maps.Clone(sn.Attrs)
	for _, c := range sn.Children {
		cid := d.graft(src, c)
		d.nodes[cid].Parent = n.ID
		n.Children = append(n.Children, cid)
	}
	return n.ID
}

// Normalize merges adjacent text siblings with equal marks and drops empty
// text nodes. It renumbers nothing but may free nodes.
func (d *Document) Normalize() {
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := d.nodes[id]
		kept := n.Children[:0]
		for _, c := range n.Children {
			cn := d.nodes[c]
			if cn.Kind == KindText {
				if cn.Text == "" {
					d.free(c)
					continue
				}
				if len(kept) > 0 {
					prev := d.nodes[kept[len(kept)-1]]
					if prev.Kind == KindText && prev.Marks == cn.Marks {
						prev.Text += cn.Text
						d.free(c)
						continue
					}
				}
			}
			kept = append(kept, c)
		}
		n.Children = kept
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(d.root)
}
