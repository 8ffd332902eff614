// Package drafts stores autosaved editor content.
package drafts

import (
	"errors"

	"github.com/debemdeboas/newsroom/internal/model"
)

var ErrDraftNotFound = errors.New("draft not found")

type Repository interface {
	CreateDraft(article model.ArticleID) (*model.Draft, error)
	SaveDraft(id model.DraftID, content []byte) error
	GetDraft(id model.DraftID) (*model.Draft, error)
	DeleteDraft(id model.DraftID) error
}
