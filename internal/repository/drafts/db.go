package drafts

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/newsroom/internal/db"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/util/compression"
)

// DBRepository keeps drafts in the drafts table, compressed.
type DBRepository struct {
	db         db.DB
	compressor compression.Compressor
}

func NewDBRepository(conn db.DB, compressor compression.Compressor) *DBRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBRepository{db: conn, compressor: compressor}
}

func (r *DBRepository) CreateDraft(article model.ArticleID) (*model.Draft, error) {
	now := time.Now().UTC()
	draft := &model.Draft{
		ID:           model.DraftID(uuid.New().String()),
		ArticleID:    article,
		Content:      []byte{},
		ModifiedDate: now,
	}

	var articleID sql.NullString
	if article != "" {
		articleID = sql.NullString{String: string(article), Valid: true}
	}
	if _, err := r.db.Exec(`INSERT INTO drafts (id, article_id, content, modified_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		draft.ID, articleID, []byte{}, now, now); err != nil {
		return nil, fmt.Errorf("error creating draft: %w", err)
	}
	return draft, nil
}

func (r *DBRepository) SaveDraft(id model.DraftID, content []byte) error {
	compressed, err := r.compressor.Compress(content)
	if err != nil {
		return fmt.Errorf("error compressing draft: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.Exec(`INSERT INTO drafts (id, content, modified_at, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, modified_at = excluded.modified_at`,
		id, compressed, now, now)
	if err != nil {
		return fmt.Errorf("error saving draft: %w", err)
	}
	return nil
}

func (r *DBRepository) GetDraft(id model.DraftID) (*model.Draft, error) {
	var (
		draft      = &model.Draft{ID: id}
		articleID  sql.NullString
		compressed []byte
		modified   sql.NullTime
	)
	err := r.db.QueryRow(`SELECT article_id, content, modified_at FROM drafts WHERE id = ?`, id).
		Scan(&articleID, &compressed, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading draft: %w", err)
	}

	draft.ArticleID = model.ArticleID(articleID.String)
	draft.ModifiedDate = modified.Time
	if len(compressed) > 0 {
		if draft.Content, err = r.compressor.Decompress(compressed); err != nil {
			return nil, fmt.Errorf("error decompressing draft: %w", err)
		}
	}
	draft.Initialized = len(draft.Content) > 0
	return draft, nil
}

func (r *DBRepository) DeleteDraft(id model.DraftID) error {
	if _, err := r.db.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}
	return nil
}
