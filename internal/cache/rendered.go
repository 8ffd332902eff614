package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// RenderedCapacity bounds the rendered preview cache. Every keystroke in an
// editor can produce a new preview, so old ones must go.
const RenderedCapacity = 512

// RenderedContent is a rendered preview with whatever the renderer
// extracted on the way, such as the front matter.
type RenderedContent struct {
	HTML  []byte
	Extra any
}

var renderedMarkdownCache = mustLRU()

func mustLRU() *lru.Cache[string, *RenderedContent] {
	c, err := lru.New[string, *RenderedContent](RenderedCapacity)
	if err != nil {
		panic(err)
	}
	return c
}

func renderedKey(contentHash, syntaxTheme string) string {
	return contentHash + ":" + syntaxTheme
}

func GetRenderedMarkdown(contentHash, syntaxTheme string) (*RenderedContent, bool) {
	return renderedMarkdownCache.Get(renderedKey(contentHash, syntaxTheme))
}

func SetRenderedMarkdown(contentHash, syntaxTheme string, html []byte, extra any) {
	renderedMarkdownCache.Add(renderedKey(contentHash, syntaxTheme), &RenderedContent{
		HTML:  html,
		Extra: extra,
	})
}

func RenderedMarkdownLen() int {
	return renderedMarkdownCache.Len()
}

func ClearRenderedMarkdownCache() {
	renderedMarkdownCache.Purge()
}
