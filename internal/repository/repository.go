// Package repository loads articles from the database or a directory,
// keeps them cached and reports articles that change underneath open
// editors.
package repository

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/cache"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/util"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

var ErrArticleNotFound = errors.New("article not found")

type ArticleRepository interface {
	Init() error
	GetArticles() ([]model.Article, map[string]*model.Article, error)
	GetArticleList() []model.Article
	ReadArticle(id model.ArticleID) (*model.Article, error)
	NewArticle() *model.Article
	SaveArticle(article *model.Article) error

	// ReloadArticles polls for changes until ctx is done.
	ReloadArticles(ctx context.Context)

	// SetReloadNotifier sets a function that will be called with every
	// article whose content changed.
	SetReloadNotifier(notifier func(model.ArticleID))
}

// articleCache is the cached article list shared by the repositories.
type articleCache struct {
	mu       sync.RWMutex
	byID     *cache.Cache[string, *model.Article]
	sorted   []model.Article
	notifier func(model.ArticleID)
}

func newArticleCache() articleCache {
	return articleCache{byID: cache.NewCache[string, *model.Article]()}
}

func (c *articleCache) SetReloadNotifier(notifier func(model.ArticleID)) {
	c.mu.Lock()
	c.notifier = notifier
	c.mu.Unlock()
}

func (c *articleCache) notify(id model.ArticleID) {
	c.mu.RLock()
	notifier := c.notifier
	c.mu.RUnlock()
	if notifier != nil {
		go notifier(id)
	}
}

func (c *articleCache) GetArticleList() []model.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sorted
}

func (c *articleCache) cached(id model.ArticleID) (*model.Article, bool) {
	return c.byID.Get(string(id))
}

func sortArticles(articles []model.Article) {
	slices.SortStableFunc(articles, func(a, b model.Article) int {
		return -a.ModifiedDate.Compare(b.ModifiedDate)
	})
}

// swap replaces the cache and notifies every article whose content hash
// changed. It reports whether anything changed at all.
func (c *articleCache) swap(articles []model.Article, byID map[string]*model.Article) bool {
	c.mu.Lock()
	old := make(map[model.ArticleID]string, len(c.sorted))
	for _, a := range c.sorted {
		old[a.ID] = a.ContentHash
	}
	changed := len(articles) != len(c.sorted)
	var modified []model.ArticleID
	for _, a := range articles {
		hash, exists := old[a.ID]
		switch {
		case !exists:
			changed = true
			repoLogger.Info().Str("article_id", string(a.ID)).Str("title", a.GetTitle()).Msg("New article detected")
		case hash != a.ContentHash:
			changed = true
			modified = append(modified, a.ID)
			repoLogger.Info().Str("article_id", string(a.ID)).Str("title", a.GetTitle()).Msg("Article content changed, reloading")
		}
	}
	if changed {
		c.sorted = articles
		c.byID.SetTo(byID)
	}
	c.mu.Unlock()

	for _, id := range modified {
		c.notify(id)
	}
	return changed
}

// put stores a single saved article without waiting for the next reload.
func (c *articleCache) put(article model.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := slices.DeleteFunc(slices.Clone(c.sorted), func(a model.Article) bool { return a.ID == article.ID })
	list = append(list, article)
	sortArticles(list)
	c.sorted = list
	c.byID.Set(string(article.ID), &article)
}

const untitled = "Untitled"

// stamp refreshes the derived fields of an article about to be saved.
func stamp(a *model.Article) {
	a.Info, _ = util.GetFrontMatter(a.Markdown)
	a.Title = a.GetTitle()
	if a.Title == "" {
		a.Title = untitled
	}
	a.ContentHash = util.ContentHash(a.Markdown)
}

// poll calls check every interval until ctx is done.
func poll(ctx context.Context, interval time.Duration, check func()) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
