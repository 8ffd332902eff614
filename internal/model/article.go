// Package model defines the articles and drafts the editor works on.
package model

import (
	"strings"
	"time"

	"github.com/debemdeboas/newsroom/internal/util"
)

type ArticleID string

type Article struct {
	ID ArticleID

	Title string
	Path  string

	// Hash of the stored content, used to spot external changes.
	ContentHash string

	Markdown     []byte
	CreatedDate  time.Time
	ModifiedDate time.Time

	// Optional data from the %%% front matter.
	Info *util.ExtendedTitleData
}

func (a *Article) GetTitle() string {
	if a.Info != nil && a.Info.TitleData != nil && a.Info.Title != "" {
		return a.Info.Title
	}
	return a.Title
}

// Keywords returns the front matter keywords as a comma separated list,
// the form the upload filename suggester takes.
func (a *Article) Keywords() string {
	if a.Info == nil || a.Info.TitleData == nil {
		return ""
	}
	return strings.Join(a.Info.Keyword, ", ")
}

type DraftID string

// Draft is autosaved editor content, optionally bound to the article it
// edits.
type Draft struct {
	ID        DraftID
	ArticleID ArticleID
	Content   []byte

	Initialized  bool
	ModifiedDate time.Time
}
