package convert

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/escape"

	"github.com/debemdeboas/newsroom/internal/document"
)

type writer struct {
	doc *document.Document
}

// unit is one rendered block. Lists stay unrendered until adjacent lists of
// the same type have been merged: markdown cannot keep them apart.
type unit struct {
	text    string
	list    bool
	ordered bool
	start   int
	items   []string
}

func (w *writer) blocks(parent document.NodeID) string {
	var units []unit
	for _, n := range w.doc.Children(parent) {
		if n.Kind == document.KindList {
			items := w.items(n)
			if len(items) == 0 {
				continue
			}
			if k := len(units); k > 0 && units[k-1].list && units[k-1].ordered == n.Ordered {
				units[k-1].items = append(units[k-1].items, items...)
				continue
			}
			units = append(units, unit{list: true, ordered: n.Ordered, start: listStart(n), items: items})
			continue
		}
		if s := w.block(n); s != "" {
			units = append(units, unit{text: s})
		}
	}

	out := make([]string, 0, len(units))
	for _, u := range units {
		if u.list {
			out = append(out, renderList(u.ordered, u.start, u.items))
			continue
		}
		out = append(out, u.text)
	}
	return strings.Join(out, "\n\n")
}

func listStart(n *document.Node) int {
	if start, err := strconv.Atoi(n.Attr(document.AttrStart)); err == nil && start >= 0 {
		return start
	}
	return 1
}

// items renders the non-empty items of a list.
func (w *writer) items(list *document.Node) []string {
	var out []string
	for _, item := range w.doc.Children(list.ID) {
		var s string
		if item.Kind == document.KindListItem {
			s = w.blocks(item.ID)
		} else {
			s = w.block(item)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ruleMarker uses asterisks so a rule opening a "- " list item is not read
// as a thematic break of its own, nor as a setext underline.
const ruleMarker = "***"

func renderList(ordered bool, start int, items []string) string {
	lines := make([]string, 0, len(items))
	for i, item := range items {
		marker := "- "
		if ordered {
			marker = strconv.Itoa(start+i) + ". "
		}
		lines = append(lines, prefixLines(item, marker, strings.Repeat(" ", len(marker)), ""))
	}
	return strings.Join(lines, "\n")
}

// prefixLines puts first before the first line, rest before every following
// line, and blank before empty lines.
func prefixLines(s, first, rest, blank string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		switch {
		case i == 0:
			lines[i] = first + l
		case l == "":
			lines[i] = blank
		default:
			lines[i] = rest + l
		}
	}
	return strings.Join(lines, "\n")
}

func (w *writer) block(n *document.Node) string {
	switch n.Kind {
	case document.KindParagraph:
		return w.textBlock(n)
	case document.KindHeading:
		s := w.textBlock(n)
		if s == "" {
			return ""
		}
		if strings.HasSuffix(s, "#") && !strings.HasSuffix(s, `\#`) {
			s = s[:len(s)-1] + `\#`
		}
		return strings.Repeat("#", min(max(n.Level, 1), 6)) + " " + s
	case document.KindBlockquote:
		s := w.blocks(n.ID)
		if s == "" {
			return ""
		}
		return prefixLines(s, "> ", "> ", ">")
	case document.KindList:
		items := w.items(n)
		if len(items) == 0 {
			return ""
		}
		return renderList(n.Ordered, listStart(n), items)
	case document.KindListItem:
		return w.blocks(n.ID)
	case document.KindCodeBlock:
		return codeBlock(n)
	case document.KindRule:
		return ruleMarker
	case document.KindTable:
		return w.tableHTML(n)
	case document.KindImage:
		return w.image(n)
	case document.KindVideoEmbed:
		return videoHTML(n)
	case document.KindPromptBox:
		return promptHTML(n)
	case document.KindSocialEmbed:
		return socialHTML(n)
	case document.KindHTML:
		return strings.TrimRight(stripEditorAttrs(n.Text), " \t\n")
	}
	return ""
}

func codeBlock(n *document.Node) string {
	fence := strings.Repeat("`", max(3, longestRun(n.Text, '`')+1))
	lang := ""
	if f := strings.Fields(strings.ReplaceAll(n.Attr(document.AttrLang), "`", "")); len(f) > 0 {
		lang = f[0]
	}
	body := strings.ReplaceAll(n.Text, "\r\n", "\n")
	if body == "" {
		return fence + lang + "\n" + fence
	}
	return fence + lang + "\n" + body + "\n" + fence
}

func longestRun(s string, c rune) int {
	best, cur := 0, 0
	for _, r := range s {
		if r == c {
			cur++
			best = max(best, cur)
			continue
		}
		cur = 0
	}
	return best
}

// run is either a span of text sharing the same marks or an inline node.
type run struct {
	node  *document.Node
	text  string
	marks document.Mark
}

// cleanText folds characters the persisted form cannot keep inside a line.
var cleanText = strings.NewReplacer("\u00a0", " ", "\r\n", " ", "\n", " ", "\r", " ").Replace

// runs coalesces the inline children of parent.
func (w *writer) runs(parent document.NodeID) []run {
	var out []run
	for _, c := range w.doc.Children(parent) {
		switch c.Kind {
		case document.KindText:
			t := cleanText(c.Text)
			if t == "" {
				continue
			}
			if k := len(out); k > 0 && out[k-1].node == nil && out[k-1].marks == c.Marks {
				out[k-1].text += t
				continue
			}
			out = append(out, run{text: t, marks: c.Marks})
		case document.KindLink:
			if len(w.runs(c.ID)) == 0 {
				continue
			}
			out = append(out, run{node: c})
		case document.KindLineBreak, document.KindInlineHTML:
			out = append(out, run{node: c})
		}
	}
	return out
}

// trimRuns drops the whitespace a markdown line cannot start or end with.
func trimRuns(rs []run) []run {
	for len(rs) > 0 && rs[0].node == nil {
		rs[0].text = strings.TrimLeft(rs[0].text, " \t")
		if rs[0].text != "" {
			break
		}
		rs = rs[1:]
	}
	for len(rs) > 0 && rs[len(rs)-1].node == nil {
		last := &rs[len(rs)-1]
		last.text = strings.TrimRight(last.text, " \t")
		if last.text != "" {
			break
		}
		rs = rs[:len(rs)-1]
	}
	return rs
}

func (w *writer) textBlock(n *document.Node) string {
	rs := trimRuns(w.runs(n.ID))
	if len(rs) == 0 {
		return ""
	}
	onlyBreaks := true
	for _, r := range rs {
		if r.node == nil || r.node.Kind != document.KindLineBreak {
			onlyBreaks = false
			break
		}
	}
	if onlyBreaks {
		return ""
	}
	return w.inlineMD(rs, true)
}

func (w *writer) inlineMD(rs []run, lineStart bool) string {
	var b strings.Builder
	for i, r := range rs {
		if r.node != nil {
			b.WriteString(w.inlineNodeMD(r.node))
			continue
		}
		b.WriteString(textMD(rs, i, lineStart && i == 0))
	}
	return b.String()
}

func textMD(rs []run, i int, lineStart bool) string {
	r := rs[i]
	switch {
	case r.marks == 0:
		s := escapeText(r.text)
		if lineStart {
			s = escapeLineStart(s)
		}
		return s
	case r.marks == document.MarkCode && codeSpanSafe(r.text):
		return "`" + r.text + "`"
	case !r.marks.Has(document.MarkCode) && delimitable(rs, i):
		open := delimiters(r.marks)
		return open + escapeText(r.text) + open
	}
	return openTags(r.marks) + escapeText(r.text) + closeTags(r.marks)
}

func (w *writer) inlineNodeMD(n *document.Node) string {
	switch n.Kind {
	case document.KindLineBreak:
		return "<br>"
	case document.KindInlineHTML:
		return cleanText(stripEditorAttrs(n.Text))
	case document.KindLink:
		inner := w.inlineMD(w.runs(n.ID), false)
		href, title := n.Attr(document.AttrHref), n.Attr(document.AttrTitle)
		if n.Attr(document.AttrTarget) != "" || !titleSafe(title) {
			return openLink(n) + inner + "</a>"
		}
		return "[" + inner + "](" + escapeDest(href) + titlePart(title) + ")"
	}
	return ""
}

// delimitable reports whether the run at i can use markdown emphasis
// delimiters. That needs word characters just inside the delimiters and
// whitespace (or the edge of the line) just outside them.
func delimitable(rs []run, i int) bool {
	first, _ := utf8.DecodeRuneInString(rs[i].text)
	last, _ := utf8.DecodeLastRuneInString(rs[i].text)
	if !isWord(first) || !isWord(last) {
		return false
	}
	if i > 0 {
		p := rs[i-1]
		if p.node != nil || p.marks != 0 {
			return false
		}
		r, _ := utf8.DecodeLastRuneInString(p.text)
		if !unicode.IsSpace(r) {
			return false
		}
	}
	if i < len(rs)-1 {
		nx := rs[i+1]
		if nx.node != nil || nx.marks != 0 {
			return false
		}
		r, _ := utf8.DecodeRuneInString(nx.text)
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func codeSpanSafe(s string) bool {
	return s != "" && !strings.ContainsRune(s, '`') &&
		strings.TrimSpace(s) == s
}

// delimiters returns the opening markdown delimiters for m. The closing
// sequence is the same string since only symmetric delimiters are used.
func delimiters(m document.Mark) string {
	var b strings.Builder
	if m.Has(document.MarkStrike) {
		b.WriteString("~~")
	}
	if m.Has(document.MarkBold) {
		b.WriteString("**")
	}
	if m.Has(document.MarkItalic) {
		b.WriteString("*")
	}
	return b.String()
}

var markTags = []struct {
	mark document.Mark
	tag  string
}{
	{document.MarkStrike, "s"},
	{document.MarkBold, "strong"},
	{document.MarkItalic, "em"},
	{document.MarkCode, "code"},
}

func openTags(m document.Mark) string {
	var b strings.Builder
	for _, t := range markTags {
		if m.Has(t.mark) {
			b.WriteString("<" + t.tag + ">")
		}
	}
	return b.String()
}

func closeTags(m document.Mark) string {
	var b strings.Builder
	for i := len(markTags) - 1; i >= 0; i-- {
		if m.Has(markTags[i].mark) {
			b.WriteString("</" + markTags[i].tag + ">")
		}
	}
	return b.String()
}

var (
	// Backslashes become a character reference so that every backslash left
	// in the output is an escape.
	entityEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `\`, "&#92;")
	destEscaper   = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E", `\`, "%5C", "\n", "", "\r", "")
)

// escapeText makes s literal markdown text.
func escapeText(s string) string {
	s = escape.MarkdownCharacters(entityEscaper.Replace(s))

	var b strings.Builder
	b.Grow(len(s))
	prev := rune(0)
	for _, r := range s {
		switch r {
		case '*', '_', '`', '~', '[', ']', '|':
			if prev != '\\' {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// escapeLineStart escapes a leading character that would otherwise start a
// heading, quote, list or setext underline.
func escapeLineStart(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '#', '>', '-', '+', '=':
		return `\` + s
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return s[:i] + `\` + s[i:]
	}
	return s
}

func escapeDest(s string) string {
	return destEscaper.Replace(strings.TrimSpace(s))
}

func titleSafe(title string) bool {
	return !strings.ContainsAny(title, "\"\\&<\n\r")
}

func titlePart(title string) string {
	if title == "" {
		return ""
	}
	return ` "` + title + `"`
}
