package convert

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/util"

	"github.com/debemdeboas/newsroom/internal/document"
)

type builder struct {
	src []byte
	doc *document.Document
}

func (b *builder) blocks(parent document.NodeID, n ast.Node) error {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if err := b.block(parent, c); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) block(parent document.NodeID, n ast.Node) error {
	switch n := n.(type) {
	case *ast.Heading:
		h := b.doc.Append(parent, document.KindHeading)
		h.Level = n.Level
		b.inlines(h.ID, n)
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := soleImage(n); ok {
			b.image(parent, img)
			return nil
		}
		p := b.doc.Append(parent, document.KindParagraph)
		b.inlines(p.ID, n)
	case *ast.List:
		l := b.doc.Append(parent, document.KindList)
		l.Ordered = n.IsOrdered()
		if l.Ordered && n.Start != 1 {
			l.SetAttr(document.AttrStart, strconv.Itoa(n.Start))
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			item := b.doc.Append(l.ID, document.KindListItem)
			if err := b.blocks(item.ID, c); err != nil {
				return err
			}
		}
	case *ast.Blockquote:
		q := b.doc.Append(parent, document.KindBlockquote)
		return b.blocks(q.ID, n)
	case *ast.FencedCodeBlock:
		c := b.doc.Append(parent, document.KindCodeBlock)
		c.Text = b.lines(n)
		c.SetAttr(document.AttrLang, string(n.Language(b.src)))
	case *ast.CodeBlock:
		c := b.doc.Append(parent, document.KindCodeBlock)
		c.Text = b.lines(n)
	case *ast.ThematicBreak:
		b.doc.Append(parent, document.KindRule)
	case *ast.HTMLBlock:
		raw := b.lines(n)
		if n.HasClosure() {
			raw += "\n" + string(n.ClosureLine.Value(b.src))
		}
		return b.htmlBlock(parent, strings.TrimRight(raw, " \t\n"))
	case *extast.Table:
		b.table(parent, n)
	}
	return nil
}

// lines joins the raw lines of a block without the final newline.
func (b *builder) lines(n ast.Node) string {
	var buf bytes.Buffer
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		buf.Write(seg.Value(b.src))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func soleImage(n ast.Node) (*ast.Image, bool) {
	if n.ChildCount() != 1 {
		return nil, false
	}
	img, ok := n.FirstChild().(*ast.Image)
	return img, ok
}

func (b *builder) image(parent document.NodeID, img *ast.Image) {
	n := b.doc.Append(parent, document.KindImage)
	n.SetAttr(document.AttrSrc, decodeText(img.Destination))
	n.SetAttr(document.AttrAlt, b.plainText(img))
	n.SetAttr(document.AttrTitle, decodeText(img.Title))
}

// plainText flattens the inline content of n.
func (b *builder) plainText(n ast.Node) string {
	var buf strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			buf.WriteString(decodeText(c.Segment.Value(b.src)))
		case *ast.String:
			buf.Write(c.Value)
		case *ast.CodeSpan:
			buf.WriteString(b.codeSpan(c))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func (b *builder) codeSpan(n *ast.CodeSpan) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(b.src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		}
	}
	return buf.String()
}

func (b *builder) table(parent document.NodeID, n *extast.Table) {
	t := b.doc.Append(parent, document.KindTable)
	for r := n.FirstChild(); r != nil; r = r.NextSibling() {
		row := b.doc.Append(t.ID, document.KindTableRow)
		_, row.Header = r.(*extast.TableHeader)
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cell := b.doc.Append(row.ID, document.KindTableCell)
			cell.Header = row.Header
			b.inlines(cell.ID, c)
		}
	}
}

// decodeText resolves backslash escapes and character references.
func decodeText(raw []byte) string {
	return string(util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(raw))))
}

// inliner fills a text block from inline content. Raw HTML tags arrive as
// separate siblings, so marks and links opened by them are tracked here
// until the matching closing tag.
type inliner struct {
	b       *builder
	stack   []document.NodeID
	html    document.Mark
	rawLink document.NodeID
}

func (b *builder) inlines(parent document.NodeID, n ast.Node) {
	in := &inliner{b: b, stack: []document.NodeID{parent}}
	in.walk(n, 0)
}

func (in *inliner) top() document.NodeID {
	return in.stack[len(in.stack)-1]
}

func (in *inliner) text(s string, marks document.Mark) {
	if s == "" {
		return
	}
	in.b.doc.AppendText(in.top(), s, marks|in.html)
}

func (in *inliner) walk(n ast.Node, marks document.Mark) {
	src := in.b.src
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			in.text(decodeText(c.Segment.Value(src)), marks)
			switch {
			case c.HardLineBreak():
				in.b.doc.Append(in.top(), document.KindLineBreak)
			case c.SoftLineBreak():
				in.text(" ", marks)
			}
		case *ast.String:
			in.text(string(c.Value), marks)
		case *ast.CodeSpan:
			in.text(in.b.codeSpan(c), marks|document.MarkCode)
		case *ast.Emphasis:
			m := document.MarkItalic
			if c.Level >= 2 {
				m = document.MarkBold
			}
			in.walk(c, marks|m)
		case *extast.Strikethrough:
			in.walk(c, marks|document.MarkStrike)
		case *ast.Link:
			link := in.b.doc.Append(in.top(), document.KindLink)
			link.SetAttr(document.AttrHref, decodeText(c.Destination))
			link.SetAttr(document.AttrTitle, decodeText(c.Title))
			depth := len(in.stack)
			in.stack = append(in.stack, link.ID)
			in.walk(c, marks)
			in.stack = in.stack[:depth]
		case *ast.AutoLink:
			link := in.b.doc.Append(in.top(), document.KindLink)
			link.SetAttr(document.AttrHref, string(c.URL(src)))
			in.b.doc.AppendText(link.ID, string(c.Label(src)), marks|in.html)
		case *ast.Image:
			raw := imgTag(decodeText(c.Destination), in.b.plainText(c), decodeText(c.Title), "")
			in.b.doc.Append(in.top(), document.KindInlineHTML).Text = raw
		case *ast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < c.Segments.Len(); i++ {
				seg := c.Segments.At(i)
				buf.Write(seg.Value(src))
			}
			in.raw(stripEditorAttrs(buf.String()))
		default:
			in.walk(c, marks)
		}
	}
}

var inlineTag = regexp.MustCompile(`^<(/?)([a-zA-Z][a-zA-Z0-9]*)\b[^>]*?(/?)>$`)

var tagMarks = map[string]document.Mark{
	"strong": document.MarkBold,
	"b":      document.MarkBold,
	"em":     document.MarkItalic,
	"i":      document.MarkItalic,
	"code":   document.MarkCode,
	"s":      document.MarkStrike,
	"del":    document.MarkStrike,
	"strike": document.MarkStrike,
}

// raw interprets one inline HTML tag.
func (in *inliner) raw(tag string) {
	m := inlineTag.FindStringSubmatch(tag)
	if m == nil {
		in.b.doc.Append(in.top(), document.KindInlineHTML).Text = tag
		return
	}
	closing, name := m[1] == "/", strings.ToLower(m[2])
	if mark, ok := tagMarks[name]; ok {
		if closing {
			in.html &^= mark
		} else {
			in.html |= mark
		}
		return
	}
	switch name {
	case "br":
		in.b.doc.Append(in.top(), document.KindLineBreak)
		return
	case "a":
		if closing {
			if in.rawLink != document.NoNode && in.top() == in.rawLink {
				in.stack = in.stack[:len(in.stack)-1]
				in.rawLink = document.NoNode
			}
			return
		}
		if attrs, err := tagAttrs(tag); err == nil && len(in.stack) == 1 {
			link := in.b.doc.Append(in.top(), document.KindLink)
			setLinkAttrs(link, attrs)
			in.stack = append(in.stack, link.ID)
			in.rawLink = link.ID
			return
		}
	}
	in.b.doc.Append(in.top(), document.KindInlineHTML).Text = tag
}

func setLinkAttrs(link *document.Node, attrs map[string]string) {
	link.SetAttr(document.AttrHref, attrs["href"])
	link.SetAttr(document.AttrTitle, attrs["title"])
	link.SetAttr(document.AttrTarget, attrs["target"])
	link.SetAttr(document.AttrRel, attrs["rel"])
}

func (b *builder) htmlBlock(parent document.NodeID, raw string) error {
	raw = stripEditorAttrs(raw)
	ok, err := b.embed(parent, raw)
	if err != nil {
		return fmt.Errorf("decoding html block: %w", err)
	}
	if !ok {
		b.doc.Append(parent, document.KindHTML).Text = raw
	}
	return nil
}
