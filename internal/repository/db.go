package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/db"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/util"
	"github.com/debemdeboas/newsroom/internal/util/compression"
)

type DBArticleRepository struct { // implements ArticleRepository
	articleCache

	lastModifiedTime *time.Time
	interval         time.Duration

	db         db.DB
	compressor compression.Compressor
}

func NewDBArticleRepository(db db.DB, compressor compression.Compressor, interval time.Duration) *DBArticleRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBArticleRepository{
		articleCache: newArticleCache(),
		interval:     interval,
		db:           db,
		compressor:   compressor,
	}
}

func (r *DBArticleRepository) Init() error {
	articles, byID, err := r.GetArticles()
	if err != nil {
		repoLogger.Error().Err(err).Msg(config.ErrInitializingArticles)
		return err
	}
	r.swap(articles, byID)
	return nil
}

// The go-sqlite3 driver returns MAX() of a DATETIME column as text.
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

func (r *DBArticleRepository) GetLatestModifiedTime() (*time.Time, error) {
	var latest sql.NullString
	if err := r.db.QueryRow(`SELECT MAX(modified_at) FROM articles`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("error scanning latest modified time: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}

	var parseErr error
	for _, format := range timeFormats {
		t, err := time.Parse(format, latest.String)
		if err == nil {
			return &t, nil
		}
		parseErr = err
	}
	return nil, fmt.Errorf("error parsing latest modified time '%s' with any known format: %w", latest.String, parseErr)
}

func (r *DBArticleRepository) GetArticles() ([]model.Article, map[string]*model.Article, error) {
	rows, err := r.db.Query(`SELECT id, title, content, content_hash, created_at, modified_at FROM articles`)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0)
	byID := make(map[string]*model.Article)
	var latest *time.Time

	for rows.Next() {
		var a model.Article
		var compressed []byte
		if err := rows.Scan(&a.ID, &a.Title, &compressed, &a.ContentHash, &a.CreatedDate, &a.ModifiedDate); err != nil {
			return nil, nil, fmt.Errorf("error scanning article: %w", err)
		}
		if latest == nil || a.ModifiedDate.After(*latest) {
			latest = &a.ModifiedDate
		}

		content, err := r.compressor.Decompress(compressed)
		if err != nil {
			return nil, nil, fmt.Errorf("error decompressing article %s: %w", a.ID, err)
		}
		a.Markdown = content
		a.Info, _ = util.GetFrontMatter(content)

		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading articles: %w", err)
	}

	for i := range articles {
		byID[string(articles[i].ID)] = &articles[i]
	}
	sortArticles(articles)

	r.mu.Lock()
	r.lastModifiedTime = latest
	r.mu.Unlock()
	return articles, byID, nil
}

func (r *DBArticleRepository) ReadArticle(id model.ArticleID) (*model.Article, error) {
	if a, ok := r.cached(id); ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
}

// reload runs one polling round. It skips the full reload when no article
// was modified since the last one.
func (r *DBArticleRepository) reload() {
	latest, err := r.GetLatestModifiedTime()
	if err != nil {
		repoLogger.Error().Err(err).Msg("Error checking latest modification time")
		return
	}

	r.mu.RLock()
	last := r.lastModifiedTime
	r.mu.RUnlock()
	if last != nil && latest != nil && !latest.After(*last) {
		repoLogger.Debug().Msg("No articles modified, skipping reload")
		return
	}

	articles, byID, err := r.GetArticles()
	if err != nil {
		repoLogger.Error().Err(err).Msg(config.ErrReloadingArticles)
		return
	}
	if r.swap(articles, byID) {
		repoLogger.Info().Msg("Articles have changed, updating cache")
	}
}

func (r *DBArticleRepository) ReloadArticles(ctx context.Context) {
	poll(ctx, r.interval, r.reload)
}

func (r *DBArticleRepository) NewArticle() *model.Article {
	now := time.Now().UTC()
	return &model.Article{
		ID:           model.ArticleID(uuid.New().String()),
		CreatedDate:  now,
		ModifiedDate: now,
	}
}

// SaveArticle inserts or updates an article and refreshes the cache.
func (r *DBArticleRepository) SaveArticle(a *model.Article) error {
	if a.ID == "" {
		return errors.New("article has no id")
	}
	compressed, err := r.compressor.Compress(a.Markdown)
	if err != nil {
		return fmt.Errorf("error compressing content: %w", err)
	}

	stamp(a)
	a.ModifiedDate = time.Now().UTC()
	if a.CreatedDate.IsZero() {
		a.CreatedDate = a.ModifiedDate
	}

	_, err = r.db.Exec(
		`INSERT INTO articles (id, title, content, content_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, content = excluded.content,
			content_hash = excluded.content_hash, modified_at = excluded.modified_at`,
		a.ID, a.Title, compressed, a.ContentHash, a.CreatedDate, a.ModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("error saving article: %w", err)
	}

	r.mu.Lock()
	modified := a.ModifiedDate
	if r.lastModifiedTime == nil || modified.After(*r.lastModifiedTime) {
		r.lastModifiedTime = &modified
	}
	r.mu.Unlock()

	r.put(*a)
	r.notify(a.ID)
	repoLogger.Debug().Str("article_id", string(a.ID)).Msg("Article saved")
	return nil
}
