package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/util"
)

// FSArticleRepository keeps one markdown file per article. The file name
// without extension is the article id.
type FSArticleRepository struct { // implements ArticleRepository
	articleCache

	articlesPath string
	interval     time.Duration
}

func NewFSArticleRepository(articlesPath string, interval time.Duration) *FSArticleRepository {
	return &FSArticleRepository{
		articleCache: newArticleCache(),
		articlesPath: articlesPath,
		interval:     interval,
	}
}

func (r *FSArticleRepository) Init() error {
	if err := os.MkdirAll(r.articlesPath, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", r.articlesPath, err)
	}
	articles, byID, err := r.GetArticles()
	if err != nil {
		repoLogger.Error().Err(err).Msg(config.ErrInitializingArticles)
		return err
	}
	r.swap(articles, byID)
	return nil
}

func (r *FSArticleRepository) path(id model.ArticleID) string {
	return filepath.Join(r.articlesPath, string(id)+config.ArticleExt)
}

func (r *FSArticleRepository) GetArticles() ([]model.Article, map[string]*model.Article, error) {
	entries, err := os.ReadDir(r.articlesPath)
	if err != nil {
		return nil, nil, err
	}

	var articles []model.Article
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), config.ArticleExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), config.ArticleExt)

		content, err := os.ReadFile(filepath.Join(r.articlesPath, entry.Name()))
		if err != nil {
			return nil, nil, err
		}
		info, err := entry.Info()
		if err != nil {
			return nil, nil, err
		}

		a := model.Article{
			ID:           model.ArticleID(name),
			Title:        name,
			Path:         filepath.Join(r.articlesPath, entry.Name()),
			Markdown:     content,
			ContentHash:  util.ContentHash(content),
			CreatedDate:  info.ModTime(),
			ModifiedDate: info.ModTime(),
		}
		a.Info, _ = util.GetFrontMatter(content)
		articles = append(articles, a)
	}

	byID := make(map[string]*model.Article, len(articles))
	for i := range articles {
		byID[string(articles[i].ID)] = &articles[i]
	}
	sortArticles(articles)
	return articles, byID, nil
}

func (r *FSArticleRepository) ReadArticle(id model.ArticleID) (*model.Article, error) {
	if a, ok := r.cached(id); ok && a.Markdown != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
}

func (r *FSArticleRepository) reload() {
	articles, byID, err := r.GetArticles()
	if err != nil {
		repoLogger.Error().Err(err).Msg(config.ErrReloadingArticles)
		return
	}
	r.swap(articles, byID)
}

func (r *FSArticleRepository) ReloadArticles(ctx context.Context) {
	poll(ctx, r.interval, r.reload)
}

func (r *FSArticleRepository) NewArticle() *model.Article {
	now := time.Now().UTC()
	return &model.Article{
		ID:           model.ArticleID(uuid.New().String()),
		CreatedDate:  now,
		ModifiedDate: now,
	}
}

// SaveArticle writes the article file through a temporary file so readers
// never see a partial article.
func (r *FSArticleRepository) SaveArticle(a *model.Article) error {
	if a.ID == "" || strings.ContainsAny(string(a.ID), `/\`) || strings.HasPrefix(string(a.ID), ".") {
		return fmt.Errorf("invalid article id %q", a.ID)
	}
	stamp(a)
	a.Path = r.path(a.ID)

	tmp, err := os.CreateTemp(r.articlesPath, "."+string(a.ID)+"-*")
	if err != nil {
		return fmt.Errorf(config.ErrCreateTempFileFmt, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Markdown); err != nil {
		tmp.Close()
		return fmt.Errorf("writing article %s: %w", a.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing article %s: %w", a.ID, err)
	}
	if err := os.Rename(tmp.Name(), a.Path); err != nil {
		return fmt.Errorf("saving article %s: %w", a.ID, err)
	}

	if info, err := os.Stat(a.Path); err == nil {
		a.ModifiedDate = info.ModTime()
	}
	r.put(*a)
	r.notify(a.ID)
	repoLogger.Debug().Str("article_id", string(a.ID)).Str("path", a.Path).Msg("Article saved")
	return nil
}
