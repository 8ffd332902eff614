package insert

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
)

func paragraphDoc(text string) (*document.Document, *document.Node) {
	d := document.New()
	p := d.Append(d.Root().ID, document.KindParagraph)
	return d, d.AppendText(p.ID, text, 0)
}

func TestParseVideoURL(t *testing.T) {
	tests := []struct {
		in    string
		embed string
		ok    bool
	}{
		{"https://www.youtube.com/watch?v=abc123", "https://www.youtube.com/embed/abc123", true},
		{"https://youtu.be/abc123", "https://www.youtube.com/embed/abc123", true},
		{"youtu.be/abc123?t=42", "https://www.youtube.com/embed/abc123", true},
		{"https://www.youtube.com/embed/abc123", "https://www.youtube.com/embed/abc123", true},
		{"https://m.youtube.com/shorts/abc123", "https://www.youtube.com/embed/abc123", true},
		{"https://www.youtube.com/playlist?list=XYZ", "https://www.youtube.com/embed/videoseries?list=XYZ", true},
		{"https://www.youtube.com/watch?v=abc123&list=XYZ", "https://www.youtube.com/embed/videoseries?list=XYZ", true},
		{"https://vimeo.com/123456", "", false},
		{"https://www.youtube.com/watch", "", false},
		{"https://youtu.be/", "", false},
		{"javascript:alert(1)", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseVideoURL(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.embed, got.EmbedURL())
			}
		})
	}
}

func TestVideoRejectedWithoutMutation(t *testing.T) {
	d, txt := paragraphDoc("before")
	before := convert.ToPersisted(d)

	_, err := Apply(d, document.Position{Node: txt.ID, Offset: 6}, VideoEmbed{SourceURL: "https://vimeo.com/123456"})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, config.ErrVideoURLUnsupported, verr.Message)
	assert.Equal(t, before, convert.ToPersisted(d))
}

func TestVideoInserted(t *testing.T) {
	d, txt := paragraphDoc("intro")
	_, err := Apply(d, document.Position{Node: txt.ID, Offset: 5}, VideoEmbed{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)

	videos := d.Find(document.KindVideoEmbed)
	require.Len(t, videos, 1)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", videos[0].Attr(document.AttrSrc))
}

func TestImageMediumSize(t *testing.T) {
	d := document.New()
	_, err := Apply(d, d.End(), Image{URL: "https://cdn.test/content/a.webp", Alt: "a", Size: "medium"})
	require.NoError(t, err)

	out := convert.ToPersisted(d)
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	img := dom.Find("img")
	require.Equal(t, 1, img.Length())
	assert.True(t, img.HasClass("max-w-md"))
	assert.False(t, img.HasClass("max-w-xs"))
	assert.False(t, img.HasClass("max-w-full"))
}

func TestImageCaptionFigure(t *testing.T) {
	d := document.New()
	_, err := Apply(d, d.End(), Image{URL: "/content/a.webp", Caption: "Harbour at dawn", Size: "large"})
	require.NoError(t, err)

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(convert.ToPersisted(d)))
	require.NoError(t, err)
	require.Equal(t, 1, dom.Find("figure").Length())
	caps := dom.Find("figure figcaption")
	require.Equal(t, 1, caps.Length())
	assert.Equal(t, "Harbour at dawn", caps.Text())
	assert.True(t, dom.Find("figure img").HasClass("max-w-full"))
}

func TestImageValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Image
		msg  string
	}{
		{"missing url", Image{URL: "  "}, config.ErrImageURLRequired},
		{"bad size", Image{URL: "/a.png", Size: "huge"}, config.ErrImageSize},
		{"script url", Image{URL: "javascript:alert(1)"}, config.ErrUnsafeURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
		})
	}
}

func TestLinkNewTab(t *testing.T) {
	d, txt := paragraphDoc("see ")
	pos, err := Apply(d, document.Position{Node: txt.ID, Offset: 4}, Link{URL: "https://example.com", Text: "here", OpenInNewTab: true})
	require.NoError(t, err)
	assert.True(t, d.Resolve(pos))

	links := d.Find(document.KindLink)
	require.Len(t, links, 1)
	assert.Equal(t, "_blank", links[0].Attr(document.AttrTarget))
	assert.Equal(t, "noopener noreferrer", links[0].Attr(document.AttrRel))
	assert.Equal(t, "here", d.TextContent(links[0].ID))
}

func TestLinkWithoutNewTab(t *testing.T) {
	d := document.New()
	_, err := Apply(d, d.End(), Link{URL: "https://example.com"})
	require.NoError(t, err)

	links := d.Find(document.KindLink)
	require.Len(t, links, 1)
	assert.Empty(t, links[0].Attr(document.AttrTarget))
	assert.Empty(t, links[0].Attr(document.AttrRel))
	assert.Equal(t, "https://example.com", d.TextContent(links[0].ID))
}

func TestLinkEditedInPlace(t *testing.T) {
	d := document.New()
	_, err := Apply(d, d.End(), Link{URL: "https://old.test", Text: "old", OpenInNewTab: true})
	require.NoError(t, err)
	link := d.Find(document.KindLink)[0]

	_, err = Apply(d, d.End(), Link{URL: "https://new.test", Text: "new", Existing: link.ID})
	require.NoError(t, err)

	links := d.Find(document.KindLink)
	require.Len(t, links, 1)
	assert.Equal(t, link.ID, links[0].ID)
	assert.Equal(t, "https://new.test", links[0].Attr(document.AttrHref))
	assert.Empty(t, links[0].Attr(document.AttrTarget))
	assert.Equal(t, "new", d.TextContent(link.ID))
}

func TestTable(t *testing.T) {
	f, err := Table{Rows: 3, Columns: 2, HasHeader: true}.Build()
	require.NoError(t, err)
	table := f.Roots()[0]
	rows := f.Children(table.ID)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Header)
	assert.Equal(t, "Header\nHeader", f.TextContent(rows[0].ID))
	assert.False(t, rows[1].Header)
	assert.Equal(t, "Cell\nCell", f.TextContent(rows[2].ID))

	f, err = Table{Rows: 1, Columns: 1}.Build()
	require.NoError(t, err)
	assert.False(t, f.Children(f.Roots()[0].ID)[0].Header)

	for _, bad := range []Table{{Rows: 0, Columns: 1}, {Rows: 1, Columns: 0}, {Rows: 51, Columns: 1}} {
		assert.ErrorIs(t, bad.Validate(), ErrValidation)
	}
}

func TestPromptBox(t *testing.T) {
	require.ErrorIs(t, PromptBox{Content: " \n "}.Validate(), ErrValidation)

	d := document.New()
	_, err := Apply(d, d.End(), PromptBox{Content: "first\nsecond"})
	require.NoError(t, err)

	out := convert.ToPersisted(d)
	assert.Contains(t, out, `data-prompt="first&#10;second"`)
	assert.Contains(t, out, "first<br>second")
	assert.Contains(t, out, `<span class="prompt-box-title">Prompt</span>`)
}

func TestSocialEmbedURL(t *testing.T) {
	d := document.New()
	_, err := Apply(d, d.End(), SocialEmbed{Input: "https://x.com/newsroom/status/1234567890"})
	require.NoError(t, err)

	embeds := d.Find(document.KindSocialEmbed)
	require.Len(t, embeds, 1)
	assert.Equal(t, PlatformTwitter, embeds[0].Attr(document.AttrPlatform))
	assert.Equal(t, "1234567890", embeds[0].Attr(document.AttrEmbedID))

	out := convert.ToPersisted(d)
	assert.Contains(t, out, "social-embed-twitter")
	assert.Contains(t, out, "1234567890")
}

func TestSocialEmbedRejected(t *testing.T) {
	tests := []struct {
		in  string
		msg string
	}{
		{"https://x.com/newsroom", config.ErrSocialURLNoID},
		{"https://www.instagram.com/newsroom/", config.ErrSocialURLNoID},
		{"https://www.tiktok.com/@newsroom", config.ErrSocialURLNoID},
		{"https://facebook.com/posts/1", config.ErrSocialURLUnsupported},
		{"", config.ErrSocialInputRequired},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := document.New()
			_, err := Apply(d, d.End(), SocialEmbed{Input: tt.in})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
			assert.Empty(t, d.Blocks())
		})
	}
}

func TestSocialEmbedPlatforms(t *testing.T) {
	post, _, ok := ParseSocialURL("https://www.instagram.com/reel/C1abcDEF/")
	require.True(t, ok)
	assert.Equal(t, PlatformInstagram, post.Platform)
	assert.Equal(t, "C1abcDEF", post.ID)

	post, _, ok = ParseSocialURL("https://www.tiktok.com/@newsroom/video/7300000000000000000")
	require.True(t, ok)
	assert.Equal(t, PlatformTikTok, post.Platform)
	assert.Contains(t, post.Raw, `data-video-id="7300000000000000000"`)
}

func TestSocialEmbedMarkupPassesThrough(t *testing.T) {
	raw := `<blockquote class="twitter-tweet"><a href="https://twitter.com/someone/status/99">x</a></blockquote>`
	f, err := SocialEmbed{Input: raw}.Build()
	require.NoError(t, err)
	n := f.Roots()[0]
	assert.Equal(t, PlatformTwitter, n.Attr(document.AttrPlatform))
	assert.Equal(t, "99", n.Attr(document.AttrEmbedID))
	assert.Equal(t, raw, n.Attr(document.AttrRaw))
}

func TestDecode(t *testing.T) {
	req, err := Decode(KindTable, []byte(`{"rows":2,"columns":3,"has_header":true}`))
	require.NoError(t, err)
	assert.Equal(t, Table{Rows: 2, Columns: 3, HasHeader: true}, req)

	_, err = Decode("gallery", []byte(`{}`))
	assert.Error(t, err)
}
