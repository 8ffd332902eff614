package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mmarkdown/mmark/v2/mast"

	"github.com/debemdeboas/newsroom/internal/cache"
)

func setupTest() {
	cache.ClearRenderedMarkdownCache()
}

func TestRenderMarkdownCached(t *testing.T) {
	tests := []struct {
		name        string
		markdown    []byte
		contentHash string
		syntaxTheme string
		contains    string
	}{
		{
			name:        "basic markdown",
			markdown:    []byte("# Test Header\n\nSome content with `code`"),
			contentHash: "hash-1",
			syntaxTheme: "github",
			contains:    "<code>code</code>",
		},
		{
			name:        "code block with syntax highlighting",
			markdown:    []byte("```go\nfunc main() {}\n```"),
			contentHash: "hash-2",
			syntaxTheme: "monokai",
			contains:    `<div class="highlight">`,
		},
		{
			name:        "persisted html blocks pass through",
			markdown:    []byte(`<div class="video-embed"><iframe src="https://www.youtube.com/embed/abc"></iframe></div>`),
			contentHash: "hash-3",
			syntaxTheme: "github",
			contains:    `src="https://www.youtube.com/embed/abc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTest()

			html1, extra1 := RenderMarkdownCached(tt.markdown, tt.contentHash, tt.syntaxTheme)
			if !strings.Contains(string(html1), tt.contains) {
				t.Errorf("Expected rendered HTML to contain %q, got %s", tt.contains, html1)
			}

			cached, found := cache.GetRenderedMarkdown(tt.contentHash, tt.syntaxTheme)
			if !found {
				t.Fatal("Expected content to be cached")
			}
			if !bytes.Equal(cached.HTML, html1) {
				t.Error("Cached HTML differs from the rendered HTML")
			}

			html2, extra2 := RenderMarkdownCached(tt.markdown, tt.contentHash, tt.syntaxTheme)
			if !bytes.Equal(html1, html2) || extra1 != extra2 {
				t.Error("Expected the second render to come from the cache")
			}
		})
	}
}

func TestRenderMarkdownEmptyHash(t *testing.T) {
	setupTest()
	html, _ := RenderMarkdownCached([]byte("plain"), "", "github")
	if !strings.Contains(string(html), "plain") {
		t.Errorf("Expected rendered content, got %s", html)
	}
	if _, found := cache.GetRenderedMarkdown("", "github"); found {
		t.Error("Expected nothing to be cached without a content hash")
	}
}

func TestMmarkFrontMatter(t *testing.T) {
	md := []byte("%%%\ntitle = \"Harbour at Dawn\"\n%%%\n\n# Harbour\n")
	html, info := RenderMarkdownMmark(md, "github")
	if info == nil || info.Title != "Harbour at Dawn" {
		t.Fatalf("Expected front matter title, got %+v", info)
	}
	if strings.Contains(string(html), "%%%") {
		t.Errorf("Expected the title block to be consumed, got %s", html)
	}

	_, info = RenderMarkdownMmark([]byte("# No front matter"), "github")
	if info.Title != "Untitled" || info.Language != "en" {
		t.Errorf("Expected default title data, got %+v", info)
	}
}

func TestClassicRenderer(t *testing.T) {
	setupTest()
	if err := SetRenderer(Classic); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { SetRenderer(Mmark) })

	html, extra := RenderMarkdown([]byte("%%%\ntitle = \"x\"\n%%%\n\n~~gone~~"), "github")
	if extra != nil {
		t.Errorf("Expected no extra data from the classic renderer, got %v", extra)
	}
	if strings.Contains(string(html), "title =") {
		t.Errorf("Expected front matter to be dropped, got %s", html)
	}
	if !strings.Contains(string(html), "<del>gone</del>") {
		t.Errorf("Expected strikethrough, got %s", html)
	}

	if err := SetRenderer("asciidoc"); err == nil {
		t.Error("Expected an unknown renderer to be rejected")
	}
}

func TestRenderExtraIsTitleData(t *testing.T) {
	setupTest()
	_, extra := RenderMarkdown([]byte("text"), "github")
	if _, ok := extra.(*mast.TitleData); !ok {
		t.Errorf("Expected *mast.TitleData, got %T", extra)
	}
}

func TestHighlightSource(t *testing.T) {
	out, err := HighlightSource("# Title\n\n**bold**", "gruvbox")
	if err != nil {
		t.Fatalf("HighlightSource: %v", err)
	}
	if !strings.HasPrefix(out, `<div class="persisted-source">`) {
		t.Errorf("Expected source wrapper, got %s", out)
	}
	if !strings.Contains(out, "chroma") {
		t.Errorf("Expected chroma classes, got %s", out)
	}
}

func TestSyntaxCSS(t *testing.T) {
	css := SyntaxCSS("gruvbox")
	if !strings.Contains(string(css), ".chroma") {
		t.Errorf("Expected chroma rules, got %s", css)
	}
	if again := SyntaxCSS("gruvbox"); again != css {
		t.Error("Expected the cached stylesheet")
	}
	if len(SyntaxThemes()) == 0 {
		t.Error("Expected chroma to ship themes")
	}
}

func TestCacheConcurrency(t *testing.T) {
	setupTest()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			RenderMarkdownCached([]byte(fmt.Sprintf("# Item %d", i%4)), fmt.Sprintf("hash-%d", i%4), "github")
		}(i)
	}
	wg.Wait()

	for i := range 4 {
		if _, ok := cache.GetRenderedMarkdown(fmt.Sprintf("hash-%d", i), "github"); !ok {
			t.Errorf("Expected hash-%d to be cached", i)
		}
	}
}

func BenchmarkRenderMarkdownCached(b *testing.B) {
	setupTest()
	md := []byte("# Benchmark\n\n```go\nfunc main() {}\n```\n\n" + strings.Repeat("Paragraph text. ", 100))
	for b.Loop() {
		RenderMarkdownCached(md, "bench", "github")
	}
}

func TestSyntaxCSSUnknownThemesShareFallback(t *testing.T) {
	first := SyntaxCSS("no-such-theme")
	n := cache.SyntaxStyles()
	second := SyntaxCSS("another-missing-theme")
	if first != second {
		t.Error("Expected unknown themes to get the fallback stylesheet")
	}
	if cache.SyntaxStyles() != n {
		t.Errorf("Expected no new cache entry for an unknown theme, got %d after %d", cache.SyntaxStyles(), n)
	}
}
