package cache

import (
	"html/template"
	"sync"
)

// Stylesheets are keyed by the chroma style that produced them. Theme names
// come from request queries; every unknown name resolves to the fallback
// style and shares its entry.
var (
	syntaxMu  sync.Mutex
	syntaxCSS = NewCache[string, template.CSS]()
)

// SyntaxCSS returns the stylesheet cached for style, calling build the first
// time it is asked for.
func SyntaxCSS(style string, build func() template.CSS) template.CSS {
	if css, ok := syntaxCSS.Get(style); ok {
		return css
	}
	syntaxMu.Lock()
	defer syntaxMu.Unlock()
	if css, ok := syntaxCSS.Get(style); ok {
		return css
	}
	css := build()
	syntaxCSS.Set(style, css)
	return css
}

// SyntaxStyles is the number of cached stylesheets.
func SyntaxStyles() int {
	return syntaxCSS.Len()
}
