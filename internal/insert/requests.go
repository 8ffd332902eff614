package insert

import (
	"strings"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
)

const (
	MaxTableRows    = 50
	MaxTableColumns = 20

	headerPlaceholder = "Header"
	cellPlaceholder   = "Cell"
)

// Image inserts an image block. URL is the permanent URL once the upload
// pipeline has resolved it, or any direct URL.
type Image struct {
	URL         string `json:"url" validate:"notblank,safeurl"`
	Caption     string `json:"caption"`
	Alt         string `json:"alt"`
	Description string `json:"description"`
	Size        string `json:"size" validate:"omitempty,oneof=small medium large"`
}

func (Image) Kind() Kind { return KindImage }

func (r Image) Validate() error {
	return check(KindImage, r, map[string]string{
		"URL":         config.ErrImageURLRequired,
		"URL.safeurl": config.ErrUnsafeURL,
		"Size":        config.ErrImageSize,
	})
}

func (r Image) Build() (*document.Fragment, error) {
	size := r.Size
	if size == "" {
		size = convert.SizeMedium
	}
	f := document.NewFragment()
	img := f.Add(document.KindImage)
	img.SetAttr(document.AttrSrc, strings.TrimSpace(r.URL))
	img.SetAttr(document.AttrAlt, strings.TrimSpace(r.Alt))
	img.SetAttr(document.AttrTitle, strings.TrimSpace(r.Description))
	img.SetAttr(document.AttrCaption, strings.TrimSpace(r.Caption))
	img.SetAttr(document.AttrSize, size)
	return f, nil
}

// Link inserts a link, or edits Existing in place when it is set.
type Link struct {
	URL          string          `json:"url" validate:"notblank,safeurl"`
	Text         string          `json:"text"`
	OpenInNewTab bool            `json:"open_in_new_tab"`
	Existing     document.NodeID `json:"existing,omitempty"`
}

func (Link) Kind() Kind { return KindLink }

func (r Link) Validate() error {
	return check(KindLink, r, map[string]string{
		"URL":         config.ErrLinkURLRequired,
		"URL.safeurl": config.ErrUnsafeURL,
	})
}

func (r Link) Build() (*document.Fragment, error) {
	href := strings.TrimSpace(r.URL)
	text := r.Text
	if strings.TrimSpace(text) == "" {
		text = href
	}
	f := document.NewFragment()
	link := f.Add(document.KindLink)
	link.SetAttr(document.AttrHref, href)
	if r.OpenInNewTab {
		link.SetAttr(document.AttrTarget, "_blank")
		link.SetAttr(document.AttrRel, "noopener noreferrer")
	}
	f.AppendText(link.ID, text, 0)
	return f, nil
}

// Table inserts a rows by columns table. With HasHeader the first row is
// the header row.
type Table struct {
	Rows      int  `json:"rows" validate:"min=1,max=50"`
	Columns   int  `json:"columns" validate:"min=1,max=20"`
	HasHeader bool `json:"has_header"`
}

func (Table) Kind() Kind { return KindTable }

func (r Table) Validate() error {
	return check(KindTable, r, map[string]string{
		"Rows":    config.ErrTableRows,
		"Columns": config.ErrTableColumns,
	})
}

func (r Table) Build() (*document.Fragment, error) {
	f := document.NewFragment()
	table := f.Add(document.KindTable)
	for i := range r.Rows {
		row := f.Append(table.ID, document.KindTableRow)
		row.Header = r.HasHeader && i == 0
		text := cellPlaceholder
		if row.Header {
			text = headerPlaceholder
		}
		for range r.Columns {
			cell := f.Append(row.ID, document.KindTableCell)
			cell.Header = row.Header
			f.AppendText(cell.ID, text, 0)
		}
	}
	return f, nil
}

// PromptBox inserts a titled block with a copy button.
type PromptBox struct {
	Title   string `json:"title"`
	Content string `json:"content" validate:"notblank"`
}

func (PromptBox) Kind() Kind { return KindPrompt }

func (r PromptBox) Validate() error {
	return check(KindPrompt, r, map[string]string{
		"Content": config.ErrPromptRequired,
	})
}

func (r PromptBox) Build() (*document.Fragment, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = convert.DefaultPromptTitle
	}
	f := document.NewFragment()
	box := f.Add(document.KindPromptBox)
	box.SetAttr(document.AttrTitle, title)
	box.SetAttr(document.AttrContent, strings.Trim(strings.ReplaceAll(r.Content, "\r\n", "\n"), "\n"))
	return f, nil
}
