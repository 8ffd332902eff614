package render

import (
	"bytes"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightSource highlights persisted content as markdown, for the source
// view of the preview pane.
func HighlightSource(persisted string, theme string) (string, error) {
	lexer := lexers.Get("markdown")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	formatter := html.New(
		html.WithClasses(true),
		html.WithLineNumbers(true),
		html.WrapLongLines(true),
	)

	var buf bytes.Buffer
	iterator, err := lexer.Tokenise(nil, persisted)
	if err != nil {
		return persisted, err
	}
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return persisted, err
	}

	return `<div class="persisted-source">` + buf.String() + `</div>`, nil
}
