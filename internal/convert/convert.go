// Package convert moves article content between its persisted form and the
// editable document tree.
//
// The persisted form is markdown for prose (headings, paragraphs, lists,
// quotes, code, rules, links and plain images) and single-line HTML blocks
// for everything markdown cannot express: tables, sized or captioned images,
// video, prompt boxes, social embeds and links opening in a new tab. Both
// directions are pure functions, and ToPersisted always emits the canonical
// spelling, so persisting an editable copy of persisted content reproduces it
// byte for byte.
package convert

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/debemdeboas/newsroom/internal/document"
	"github.com/debemdeboas/newsroom/internal/util"
)

// Image size names and the CSS class each one renders with.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

var sizeClasses = map[string]string{
	SizeSmall:  "max-w-xs",
	SizeMedium: "max-w-md",
	SizeLarge:  "max-w-full",
}

// SizeClass returns the CSS class for an image size, or "" for unknown sizes.
func SizeClass(size string) string {
	return sizeClasses[size]
}

func sizeFromClass(class string) (string, bool) {
	for size, c := range sizeClasses {
		if c == class {
			return size, true
		}
	}
	return "", false
}

var markdownParser = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
)

// editorAttr matches attributes that only exist while content is being edited.
var editorAttr = regexp.MustCompile(`(?i)\s+(?:data-editor-[\w-]*|contenteditable)(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'=<>` + "`" + `]+))?`)

func stripEditorAttrs(s string) string {
	if !strings.Contains(strings.ToLower(s), "data-editor-") && !strings.Contains(strings.ToLower(s), "contenteditable") {
		return s
	}
	return editorAttr.ReplaceAllString(s, "")
}

// ToPersisted serializes doc into its canonical persisted form.
func ToPersisted(doc *document.Document) string {
	w := &writer{doc: doc}
	body := w.blocks(doc.Root().ID)

	front := strings.Trim(doc.FrontMatter, "\n")
	if strings.TrimSpace(front) == "" {
		return body
	}
	if body == "" {
		return "%%%\n" + front + "\n%%%"
	}
	return "%%%\n" + front + "\n%%%\n\n" + body
}

// ToEditable parses persisted content into a fresh document.
func ToEditable(s string) (*document.Document, error) {
	front, body := util.SplitFrontMatter(s)
	src := []byte(body)

	b := &builder{src: src, doc: document.New()}
	b.doc.FrontMatter = front
	root := markdownParser.Parser().Parse(text.NewReader(src))
	if err := b.blocks(b.doc.Root().ID, root); err != nil {
		return nil, err
	}
	b.doc.Normalize()
	return b.doc, nil
}

// Canonical round-trips s through the editable form.
func Canonical(s string) (string, error) {
	doc, err := ToEditable(s)
	if err != nil {
		return "", err
	}
	return ToPersisted(doc), nil
}
