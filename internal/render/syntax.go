package render

import (
	"html/template"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/debemdeboas/newsroom/internal/cache"
)

func GetFormatter() *html.Formatter {
	return html.New(
		html.WithClasses(true),
		html.TabWidth(4),
		html.WithLineNumbers(true),
		html.WrapLongLines(true),
	)
}

func SyntaxThemes() []string {
	names := styles.Names()
	slices.Sort(names)
	return names
}

// SyntaxCSS returns the stylesheet for a chroma theme. Unknown themes fall
// back to chroma's default.
func SyntaxCSS(theme string) template.CSS {
	style := styles.Get(theme)
	return cache.SyntaxCSS(style.Name, func() template.CSS {
		var buf strings.Builder
		bg := style.Get(chroma.Background)
		if !bg.Colour.IsSet() {
			// Pick a readable text colour for themes that only set a background.
			luminance := (0.299*float64(bg.Background.Red()) +
				0.587*float64(bg.Background.Green()) +
				0.114*float64(bg.Background.Blue())) / 255
			if luminance > 0.5 {
				buf.WriteString(".chroma { color: #181818; }\n")
			}
		}

		if err := GetFormatter().WriteCSS(&buf, style); err != nil {
			renderLogger.Error().Err(err).Str("theme", theme).Msg("Error writing syntax css")
		}
		return template.CSS(buf.String())
	})
}
