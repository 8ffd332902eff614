package convert

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/newsroom/internal/document"
)

func TestCanonicalIsStable(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"heading and marks", "# Title\n\nSome **bold** and *italic* text."},
		{"lists", "- one\n- two\n\n1. first\n2. second"},
		{"ordered start", "3. three\n4. four"},
		{"quote", "> quoted line"},
		{"code", "```go\nfmt.Println(1)\n```"},
		{"rule", "before\n\n***\n\nafter"},
		{"link", `[link](https://example.com "Title")`},
		{"new tab link", `Visit <a href="https://x.test" target="_blank" rel="noopener noreferrer">site</a> now`},
		{"line break", "one<br>two"},
		{"code span", "use `go test` daily"},
		{"image", "![alt](/img.png)"},
		{"table", "<table><thead><tr><th>a</th></tr></thead><tbody><tr><td>b</td></tr></tbody></table>"},
		{"front matter", "%%%\ntitle = \"x\"\n%%%\n\nbody"},
		{"raw html", `<section class="ad">x</section>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)
		})
	}
}

func persistedRoundTrip(t *testing.T, doc *document.Document) (string, *document.Document) {
	t.Helper()
	out := ToPersisted(doc)
	back, err := ToEditable(out)
	require.NoError(t, err)
	assert.Equal(t, out, ToPersisted(back), "persisting the editable copy must reproduce the input")
	return out, back
}

func TestImageSizeMedium(t *testing.T) {
	doc := document.New()
	img := doc.Append(doc.Root().ID, document.KindImage)
	img.SetAttr(document.AttrSrc, "/content/a.webp")
	img.SetAttr(document.AttrAlt, "A")
	img.SetAttr(document.AttrSize, SizeMedium)

	out, back := persistedRoundTrip(t, doc)
	assert.Contains(t, out, `class="max-w-md"`)
	assert.NotContains(t, out, "max-w-xs")
	assert.NotContains(t, out, "max-w-full")

	imgs := back.Find(document.KindImage)
	require.Len(t, imgs, 1)
	assert.Equal(t, SizeMedium, imgs[0].Attr(document.AttrSize))
}

func TestImageCaption(t *testing.T) {
	doc := document.New()
	img := doc.Append(doc.Root().ID, document.KindImage)
	img.SetAttr(document.AttrSrc, "/content/a.webp")
	img.SetAttr(document.AttrCaption, "Taken <today>")

	out, back := persistedRoundTrip(t, doc)
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1, dom.Find("figure").Length())
	assert.Equal(t, 1, dom.Find("figure > figcaption").Length())
	assert.Equal(t, "Taken <today>", dom.Find("figcaption").Text())

	imgs := back.Find(document.KindImage)
	require.Len(t, imgs, 1)
	assert.Equal(t, "Taken <today>", imgs[0].Attr(document.AttrCaption))
}

func TestEmbedsRoundTrip(t *testing.T) {
	doc := document.New()
	v := doc.Append(doc.Root().ID, document.KindVideoEmbed)
	v.SetAttr(document.AttrSrc, "https://www.youtube.com/embed/abc123")

	p := doc.Append(doc.Root().ID, document.KindPromptBox)
	p.SetAttr(document.AttrContent, "line one\nline <two>")

	s := doc.Append(doc.Root().ID, document.KindSocialEmbed)
	s.SetAttr(document.AttrPlatform, "twitter")
	s.SetAttr(document.AttrURL, "https://twitter.com/u/status/42")
	s.SetAttr(document.AttrEmbedID, "42")
	s.SetAttr(document.AttrRaw, "<blockquote class=\"twitter-tweet\">\n\n  <a href=\"https://twitter.com/u/status/42\">tweet</a>  \n</blockquote>")

	out, back := persistedRoundTrip(t, doc)
	blocks := back.Blocks()
	require.Len(t, blocks, 3)

	assert.Equal(t, document.KindVideoEmbed, blocks[0].Kind)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", blocks[0].Attr(document.AttrSrc))

	assert.Equal(t, document.KindPromptBox, blocks[1].Kind)
	assert.Equal(t, "line one\nline <two>", blocks[1].Attr(document.AttrContent))
	assert.Equal(t, DefaultPromptTitle, blocks[1].Attr(document.AttrTitle))

	assert.Equal(t, document.KindSocialEmbed, blocks[2].Kind)
	assert.Equal(t, "42", blocks[2].Attr(document.AttrEmbedID))
	assert.Contains(t, blocks[2].Attr(document.AttrRaw), "twitter-tweet")
	assert.NotContains(t, out, "\n\n  <a")
}

func TestTextSurvivesEscaping(t *testing.T) {
	for _, text := range []string{
		"1. not a list",
		"# not a heading",
		"*stars* and _underscores_",
		`back\slash & <tag> [brackets] | pipe ~tilde~`,
		"- dash",
		"> arrow",
	} {
		t.Run(text, func(t *testing.T) {
			doc := document.New()
			p := doc.Append(doc.Root().ID, document.KindParagraph)
			doc.AppendText(p.ID, text, 0)

			_, back := persistedRoundTrip(t, doc)
			blocks := back.Blocks()
			require.Len(t, blocks, 1)
			assert.Equal(t, document.KindParagraph, blocks[0].Kind)
			assert.Equal(t, text, back.TextContent(blocks[0].ID))
		})
	}
}

func TestMarksInsideWords(t *testing.T) {
	doc := document.New()
	p := doc.Append(doc.Root().ID, document.KindParagraph)
	doc.AppendText(p.ID, "un", 0)
	doc.AppendText(p.ID, "bold", document.MarkBold|document.MarkItalic)
	doc.AppendText(p.ID, "ed", 0)

	out, back := persistedRoundTrip(t, doc)
	assert.Equal(t, "un<strong><em>bold</em></strong>ed", out)
	kids := back.Children(back.Blocks()[0].ID)
	require.Len(t, kids, 3)
	assert.True(t, kids[1].Marks.Has(document.MarkBold|document.MarkItalic))
}

func TestAdjacentListsMerge(t *testing.T) {
	doc := document.New()
	for _, s := range []string{"a", "b"} {
		l := doc.Append(doc.Root().ID, document.KindList)
		item := doc.Append(l.ID, document.KindListItem)
		p := doc.Append(item.ID, document.KindParagraph)
		doc.AppendText(p.ID, s, 0)
		doc.Append(doc.Root().ID, document.KindParagraph)
	}

	out, back := persistedRoundTrip(t, doc)
	assert.Equal(t, "- a\n- b", out)
	require.Len(t, back.Blocks(), 1)
}

func TestEditorAttributesStripped(t *testing.T) {
	got, err := Canonical(`<section data-editor-id="7" contenteditable="true" class="ad">x</section>`)
	require.NoError(t, err)
	assert.Equal(t, `<section class="ad">x</section>`, got)
}

func TestNewTabLink(t *testing.T) {
	doc := document.New()
	p := doc.Append(doc.Root().ID, document.KindParagraph)
	link := doc.Append(p.ID, document.KindLink)
	link.SetAttr(document.AttrHref, "https://example.com/a b")
	link.SetAttr(document.AttrTarget, "_blank")
	doc.AppendText(link.ID, "example", 0)

	out, back := persistedRoundTrip(t, doc)
	assert.Contains(t, out, `target="_blank" rel="noopener noreferrer"`)

	links := back.Find(document.KindLink)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/a b", links[0].Attr(document.AttrHref))
	assert.Equal(t, "example", back.TextContent(links[0].ID))
}

func TestSizeClass(t *testing.T) {
	assert.Equal(t, "max-w-xs", SizeClass(SizeSmall))
	assert.Equal(t, "max-w-full", SizeClass(SizeLarge))
	assert.Empty(t, SizeClass("huge"))
}

func TestRuleOpeningListItemRoundTrips(t *testing.T) {
	doc, err := ToEditable("- a\n- b")
	require.NoError(t, err)
	texts := doc.Find(document.KindText)
	require.NotEmpty(t, texts)

	_, err = doc.Apply(document.Rule{}, document.Caret(document.Position{Node: texts[0].ID}))
	require.NoError(t, err)

	out, back := persistedRoundTrip(t, doc)
	assert.Contains(t, out, "- "+ruleMarker)
	blocks := back.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, document.KindList, blocks[0].Kind)
	assert.Len(t, back.Children(blocks[0].ID), 2)
	assert.Len(t, back.Find(document.KindRule), 1)
}
