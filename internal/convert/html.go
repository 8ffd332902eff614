package convert

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"

	"github.com/debemdeboas/newsroom/internal/document"
)

// Class names of the HTML blocks the editor emits.
const (
	classVideo        = "video-embed"
	classPrompt       = "prompt-box"
	classPromptHeader = "prompt-box-header"
	classPromptTitle  = "prompt-box-title"
	classPromptCopy   = "prompt-box-copy"
	classPromptBody   = "prompt-box-content"
	classSocial       = "social-embed"

	// DefaultPromptTitle labels prompt boxes created without a title.
	DefaultPromptTitle = "Prompt"
)

const videoAllow = "accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share"

// attr escapes s for a double-quoted attribute value on a single line.
func attr(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "&#10;")
}

func imgTag(src, alt, title, class string) string {
	var b strings.Builder
	b.WriteString(`<img src="` + attr(src) + `" alt="` + attr(alt) + `"`)
	if title != "" {
		b.WriteString(` title="` + attr(title) + `"`)
	}
	if class != "" {
		b.WriteString(` class="` + class + `"`)
	}
	b.WriteString(">")
	return b.String()
}

func openLink(n *document.Node) string {
	var b strings.Builder
	b.WriteString(`<a href="` + attr(n.Attr(document.AttrHref)) + `"`)
	if title := n.Attr(document.AttrTitle); title != "" {
		b.WriteString(` title="` + attr(title) + `"`)
	}
	if target := n.Attr(document.AttrTarget); target != "" {
		rel := n.Attr(document.AttrRel)
		if target == "_blank" {
			rel = "noopener noreferrer"
		}
		b.WriteString(` target="` + attr(target) + `"`)
		if rel != "" {
			b.WriteString(` rel="` + attr(rel) + `"`)
		}
	}
	b.WriteString(">")
	return b.String()
}

func (w *writer) image(n *document.Node) string {
	src, alt, title := n.Attr(document.AttrSrc), cleanText(n.Attr(document.AttrAlt)), n.Attr(document.AttrTitle)
	class := SizeClass(n.Attr(document.AttrSize))
	if caption := strings.TrimSpace(cleanText(n.Attr(document.AttrCaption))); caption != "" {
		return "<figure>" + imgTag(src, alt, title, class) +
			"<figcaption>" + html.EscapeString(caption) + "</figcaption></figure>"
	}
	if class != "" || !titleSafe(title) {
		return imgTag(src, alt, title, class)
	}
	return "![" + escapeText(alt) + "](" + escapeDest(src) + titlePart(title) + ")"
}

// inlineHTML renders inline runs for use inside an HTML block.
func (w *writer) inlineHTML(rs []run) string {
	var b strings.Builder
	for _, r := range rs {
		if r.node == nil {
			b.WriteString(openTags(r.marks) + html.EscapeString(r.text) + closeTags(r.marks))
			continue
		}
		switch r.node.Kind {
		case document.KindLineBreak:
			b.WriteString("<br>")
		case document.KindInlineHTML:
			b.WriteString(cleanText(stripEditorAttrs(r.node.Text)))
		case document.KindLink:
			b.WriteString(openLink(r.node) + w.inlineHTML(w.runs(r.node.ID)) + "</a>")
		}
	}
	return b.String()
}

func (w *writer) tableHTML(t *document.Node) string {
	var head, body strings.Builder
	for _, row := range w.doc.Children(t.ID) {
		if row.Kind != document.KindTableRow {
			continue
		}
		dst := &body
		if row.Header {
			dst = &head
		}
		dst.WriteString("<tr>")
		for _, cell := range w.doc.Children(row.ID) {
			tag := "td"
			if cell.Header || row.Header {
				tag = "th"
			}
			dst.WriteString("<" + tag + ">" + w.inlineHTML(w.runs(cell.ID)) + "</" + tag + ">")
		}
		dst.WriteString("</tr>")
	}
	if head.Len() == 0 && body.Len() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<table>")
	if head.Len() > 0 {
		b.WriteString("<thead>" + head.String() + "</thead>")
	}
	if body.Len() > 0 {
		b.WriteString("<tbody>" + body.String() + "</tbody>")
	}
	b.WriteString("</table>")
	return b.String()
}

func videoHTML(n *document.Node) string {
	return `<div class="` + classVideo + `"><iframe src="` + attr(n.Attr(document.AttrSrc)) +
		`" title="Embedded video" frameborder="0" allow="` + videoAllow + `" allowfullscreen></iframe></div>`
}

func promptHTML(n *document.Node) string {
	title := strings.TrimSpace(cleanText(n.Attr(document.AttrTitle)))
	if title == "" {
		title = DefaultPromptTitle
	}
	content := strings.ReplaceAll(n.Attr(document.AttrContent), "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return `<div class="` + classPrompt + `" data-prompt="` + attr(content) + `">` +
		`<div class="` + classPromptHeader + `"><span class="` + classPromptTitle + `">` + html.EscapeString(title) + `</span>` +
		`<button type="button" class="` + classPromptCopy + `" data-copy>Copy</button></div>` +
		`<div class="` + classPromptBody + `">` + strings.Join(lines, "<br>") + `</div></div>`
}

var platformName = regexp.MustCompile(`[^a-z0-9-]+`)

// TidyEmbed normalizes raw embed markup so it stays a single HTML block:
// trailing spaces and blank lines are dropped.
func TidyEmbed(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var kept []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

func socialHTML(n *document.Node) string {
	platform := platformName.ReplaceAllString(strings.ToLower(n.Attr(document.AttrPlatform)), "")
	if platform == "" {
		platform = "generic"
	}
	var b strings.Builder
	b.WriteString(`<div class="` + classSocial + ` ` + classSocial + `-` + platform + `" data-platform="` + platform + `"`)
	if u := n.Attr(document.AttrURL); u != "" {
		b.WriteString(` data-url="` + attr(u) + `"`)
	}
	if id := n.Attr(document.AttrEmbedID); id != "" {
		b.WriteString(` data-embed-id="` + attr(id) + `"`)
	}
	b.WriteString(">" + TidyEmbed(n.Attr(document.AttrRaw)) + "</div>")
	return b.String()
}

// tagAttrs decodes the attributes of a single start tag.
func tagAttrs(tag string) (map[string]string, error) {
	z := nethtml.NewTokenizer(strings.NewReader(tag))
	if z.Next() == nethtml.ErrorToken {
		return nil, z.Err()
	}
	tok := z.Token()
	attrs := make(map[string]string, len(tok.Attr))
	for _, a := range tok.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	return attrs, nil
}

// elementChildren returns the element children of s, or false when s also
// holds non-blank text.
func elementChildren(s *goquery.Selection) ([]*goquery.Selection, bool) {
	var out []*goquery.Selection
	ok := true
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch c.Nodes[0].Type {
		case nethtml.ElementNode:
			out = append(out, c)
		case nethtml.TextNode:
			if strings.TrimSpace(c.Nodes[0].Data) != "" {
				ok = false
			}
		}
	})
	return out, ok
}

// embed recognizes the HTML blocks the editor emits and rebuilds their
// nodes. Anything else reports false and stays raw HTML.
func (b *builder) embed(parent document.NodeID, raw string) (bool, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return false, err
	}
	children, ok := elementChildren(dom.Find("body"))
	if !ok || len(children) != 1 || dom.Find("head").Children().Length() > 0 {
		return false, nil
	}
	el := children[0]
	switch goquery.NodeName(el) {
	case "table":
		return b.tableBlock(parent, el), nil
	case "figure":
		return b.figureBlock(parent, el), nil
	case "img":
		src, alt, title, size, ok := imageAttrs(el)
		if !ok {
			return false, nil
		}
		n := b.doc.Append(parent, document.KindImage)
		n.SetAttr(document.AttrSrc, src)
		n.SetAttr(document.AttrAlt, alt)
		n.SetAttr(document.AttrTitle, title)
		n.SetAttr(document.AttrSize, size)
		return true, nil
	case "div":
		switch {
		case el.HasClass(classVideo):
			return b.videoBlock(parent, el), nil
		case el.HasClass(classPrompt):
			return b.promptBlock(parent, el), nil
		case el.HasClass(classSocial):
			return b.socialBlock(parent, el, raw), nil
		}
	}
	return false, nil
}

// imageAttrs accepts an img carrying only the attributes the editor writes.
func imageAttrs(el *goquery.Selection) (src, alt, title, size string, ok bool) {
	for _, a := range el.Nodes[0].Attr {
		switch a.Key {
		case "src":
			src = a.Val
		case "alt":
			alt = a.Val
		case "title":
			title = a.Val
		case "class":
			if a.Val == "" {
				continue
			}
			if size, ok = sizeFromClass(a.Val); !ok {
				return "", "", "", "", false
			}
		default:
			return "", "", "", "", false
		}
	}
	_, hasSrc := el.Attr("src")
	return src, alt, title, size, hasSrc
}

func (b *builder) figureBlock(parent document.NodeID, el *goquery.Selection) bool {
	children, ok := elementChildren(el)
	if !ok || len(children) != 2 ||
		goquery.NodeName(children[0]) != "img" || goquery.NodeName(children[1]) != "figcaption" {
		return false
	}
	src, alt, title, size, ok := imageAttrs(children[0])
	if !ok {
		return false
	}
	caption := strings.TrimSpace(children[1].Text())
	n := b.doc.Append(parent, document.KindImage)
	n.SetAttr(document.AttrSrc, src)
	n.SetAttr(document.AttrAlt, alt)
	n.SetAttr(document.AttrTitle, title)
	n.SetAttr(document.AttrSize, size)
	n.SetAttr(document.AttrCaption, caption)
	return true
}

func (b *builder) tableBlock(parent document.NodeID, el *goquery.Selection) bool {
	if el.Find("table").Length() > 0 {
		return false
	}
	t := b.doc.Append(parent, document.KindTable)
	el.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := b.doc.Append(t.ID, document.KindTableRow)
		row.Header = goquery.NodeName(tr.Parent()) == "thead"
		tr.Children().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			if name != "th" && name != "td" {
				return
			}
			cell := b.doc.Append(row.ID, document.KindTableCell)
			cell.Header = name == "th"
			in := &inliner{b: b, stack: []document.NodeID{cell.ID}}
			in.nodes(c.Nodes[0], 0)
		})
	})
	return true
}

func (b *builder) videoBlock(parent document.NodeID, el *goquery.Selection) bool {
	frame := el.Find("iframe")
	src, ok := frame.Attr("src")
	if frame.Length() != 1 || !ok {
		return false
	}
	n := b.doc.Append(parent, document.KindVideoEmbed)
	n.SetAttr(document.AttrSrc, src)
	return true
}

func (b *builder) promptBlock(parent document.NodeID, el *goquery.Selection) bool {
	content, ok := el.Attr("data-prompt")
	if !ok {
		return false
	}
	n := b.doc.Append(parent, document.KindPromptBox)
	n.SetAttr(document.AttrContent, content)
	n.SetAttr(document.AttrTitle, strings.TrimSpace(el.Find("."+classPromptTitle).First().Text()))
	return true
}

// socialBlock keeps the embed markup verbatim: it is cut out of the raw
// block rather than re-rendered, since platform scripts depend on it.
func (b *builder) socialBlock(parent document.NodeID, el *goquery.Selection, raw string) bool {
	open := strings.IndexByte(raw, '>')
	end := strings.LastIndex(raw, "</div>")
	if open < 0 || end < open || strings.TrimSpace(raw[end+len("</div>"):]) != "" {
		return false
	}
	n := b.doc.Append(parent, document.KindSocialEmbed)
	platform, _ := el.Attr("data-platform")
	u, _ := el.Attr("data-url")
	id, _ := el.Attr("data-embed-id")
	n.SetAttr(document.AttrPlatform, platform)
	n.SetAttr(document.AttrURL, u)
	n.SetAttr(document.AttrEmbedID, id)
	n.SetAttr(document.AttrRaw, TidyEmbed(raw[open+1:end]))
	return true
}

// nodes converts the HTML children of n into inline nodes.
func (in *inliner) nodes(n *nethtml.Node, marks document.Mark) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case nethtml.TextNode:
			in.text(c.Data, marks)
		case nethtml.ElementNode:
			name := strings.ToLower(c.Data)
			if mark, ok := tagMarks[name]; ok {
				in.nodes(c, marks|mark)
				continue
			}
			switch name {
			case "br":
				in.b.doc.Append(in.top(), document.KindLineBreak)
				continue
			case "a":
				if len(in.stack) == 1 {
					link := in.b.doc.Append(in.top(), document.KindLink)
					attrs := make(map[string]string, len(c.Attr))
					for _, a := range c.Attr {
						attrs[a.Key] = a.Val
					}
					setLinkAttrs(link, attrs)
					in.stack = append(in.stack, link.ID)
					in.nodes(c, marks)
					in.stack = in.stack[:1]
					continue
				}
			}
			var buf strings.Builder
			if err := nethtml.Render(&buf, c); err == nil {
				in.b.doc.Append(in.top(), document.KindInlineHTML).Text = buf.String()
			}
		}
	}
}
