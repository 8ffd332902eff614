// Package render turns persisted article content into the HTML shown in the
// editor preview.
package render

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"

	"github.com/debemdeboas/newsroom/internal/cache"
	"github.com/debemdeboas/newsroom/internal/util"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

// Renderers.
const (
	Mmark   = "mmark"
	Classic = "classic"
)

var (
	rendererMu sync.RWMutex
	renderer   = Mmark
)

// SetRenderer picks the markdown dialect used for previews.
func SetRenderer(name string) error {
	if name != Mmark && name != Classic {
		return fmt.Errorf("unknown renderer %q", name)
	}
	rendererMu.Lock()
	renderer = name
	rendererMu.Unlock()
	cache.ClearRenderedMarkdownCache()
	return nil
}

func currentRenderer() string {
	rendererMu.RLock()
	defer rendererMu.RUnlock()
	return renderer
}

var regexCallout = regexp.MustCompile(`//\s*<<(\d+)>>`)

func HighlightCode(code, language, highlightTheme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	style := styles.Get(highlightTheme)
	if err := GetFormatter().Format(&buf, style, iterator); err != nil {
		return code
	}

	res := html.UnescapeString(buf.String())
	return regexCallout.ReplaceAllString(res, "<span class=\"callout\">$1</span>")
}

func codeBlockHook(highlightTheme string) func(io.Writer, ast.Node, bool) (ast.WalkStatus, bool) {
	return func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
		code, ok := node.(*ast.CodeBlock)
		if !ok || !entering {
			return ast.GoToNext, false
		}
		var lang string
		if info := code.Info; info != nil {
			lang = string(info)
		}
		fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", HighlightCode(string(code.Literal), lang, highlightTheme))
		return ast.GoToNext, true
	}
}

// RenderMarkdown renders persisted content. The extra value is the front
// matter title data for the mmark renderer and nil otherwise.
func RenderMarkdown(md []byte, highlightTheme string) ([]byte, any) {
	switch currentRenderer() {
	case Classic:
		return RenderMarkdownClassic(md, highlightTheme), nil
	default:
		return RenderMarkdownMmark(md, highlightTheme)
	}
}

// Serializes check-render-set in RenderMarkdownCached.
var renderCacheMutex sync.Mutex

func RenderMarkdownCached(md []byte, contentHash, highlightTheme string) ([]byte, any) {
	if contentHash == "" {
		renderLogger.Warn().Msg("Content hash is empty, skipping cache check")
		return RenderMarkdown(md, highlightTheme)
	}

	if cached, found := cache.GetRenderedMarkdown(contentHash, highlightTheme); found {
		renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache hit for rendered markdown")
		return cached.HTML, cached.Extra
	}

	renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache miss for rendered markdown")
	renderCacheMutex.Lock()
	defer renderCacheMutex.Unlock()

	if cached, found := cache.GetRenderedMarkdown(contentHash, highlightTheme); found {
		return cached.HTML, cached.Extra
	}
	rendered, extra := RenderMarkdown(md, highlightTheme)
	cache.SetRenderedMarkdown(contentHash, highlightTheme, rendered, extra)
	return rendered, extra
}

func RenderMarkdownClassic(md []byte, highlightTheme string) []byte {
	hook := codeBlockHook(highlightTheme)
	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if status, ok := hook(w, node, entering); ok {
				return status, ok
			}
			if callout, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, "<span class=\"callout\">%s</span>", callout.ID)
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}

	// The %%% title block is mmark only.
	_, body := util.SplitFrontMatter(string(md))
	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.DefinitionLists |
			parser.AutoHeadingIDs | parser.Footnotes | parser.OrderedListStart | parser.NonBlockingSpace,
	).Parse([]byte(body))
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func RenderMarkdownMmark(md []byte, highlightTheme string) ([]byte, *mast.TitleData) {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	init := mparser.NewInitial("")
	var info *mast.TitleData

	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				info = t.TitleData
			}
			return node, data, consumed
		},
		ReadIncludeFn: init.ReadInclude,
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)
	mparser.AddIndex(doc)

	if info == nil {
		info = &mast.TitleData{
			Title:    "Untitled",
			Language: "en",
		}
	}

	mhtmlOpts := mhtml.RendererOptions{
		Language: lang.New(info.Language),
	}

	hook := codeBlockHook(highlightTheme)
	opts := md_html.RendererOptions{
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if status, ok := hook(w, node, entering); ok {
				return status, ok
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
		Flags: md_html.CommonFlags | md_html.FootnoteNoHRTag | md_html.FootnoteReturnLinks,
	}

	return markdown.Render(doc, md_html.NewRenderer(opts)), info
}
