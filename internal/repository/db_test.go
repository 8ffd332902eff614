package repository

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/db"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/util/compression"
)

func setupTestDB(t *testing.T) db.DB {
	t.Helper()
	db.SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
	conn := db.NewSQLite(db.MemoryPath)
	if err := conn.InitDB(); err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// notifications collects reload notifications delivered from goroutines.
type notifications struct {
	mu  sync.Mutex
	ids []model.ArticleID
	ch  chan model.ArticleID
}

func newNotifications() *notifications {
	return &notifications{ch: make(chan model.ArticleID, 16)}
}

func (n *notifications) record(id model.ArticleID) {
	n.mu.Lock()
	n.ids = append(n.ids, id)
	n.mu.Unlock()
	n.ch <- id
}

func (n *notifications) wait(t *testing.T) model.ArticleID {
	t.Helper()
	select {
	case id := <-n.ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a reload notification")
		return ""
	}
}

func (n *notifications) none(t *testing.T) {
	t.Helper()
	select {
	case id := <-n.ch:
		t.Fatalf("Expected no reload notification, got %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDBSaveAndRead(t *testing.T) {
	repo := NewDBArticleRepository(setupTestDB(t), compression.ZstdCompressor{}, time.Second)
	if err := repo.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	article := repo.NewArticle()
	article.Markdown = []byte("%%%\ntitle = \"Harbour at Dawn\"\nkeyword = [\"harbour\", \"port\"]\n%%%\n\n# Harbour\n\nThe ferry left.")
	if err := repo.SaveArticle(article); err != nil {
		t.Fatalf("Failed to save article: %v", err)
	}

	got, err := repo.ReadArticle(article.ID)
	if err != nil {
		t.Fatalf("Failed to read article: %v", err)
	}
	if got.Title != "Harbour at Dawn" {
		t.Errorf("Expected title from front matter, got %q", got.Title)
	}
	if got.Keywords() != "harbour, port" {
		t.Errorf("Expected keywords from front matter, got %q", got.Keywords())
	}

	// A fresh repository reads the compressed row back.
	fresh := NewDBArticleRepository(repo.db, compression.ZstdCompressor{}, time.Second)
	articles, _, err := fresh.GetArticles()
	if err != nil {
		t.Fatalf("Failed to get articles: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("Expected 1 article, got %d", len(articles))
	}
	if string(articles[0].Markdown) != string(article.Markdown) {
		t.Errorf("Expected stored markdown to round trip, got %q", articles[0].Markdown)
	}
	if articles[0].ContentHash != article.ContentHash {
		t.Error("Expected content hash to survive storage")
	}

	if _, err := repo.ReadArticle("missing"); !errors.Is(err, ErrArticleNotFound) {
		t.Errorf("Expected ErrArticleNotFound, got %v", err)
	}
}

func TestDBReloadNotifiesChangedArticles(t *testing.T) {
	conn := setupTestDB(t)
	writer := NewDBArticleRepository(conn, nil, time.Second)
	reader := NewDBArticleRepository(conn, nil, time.Second)

	article := writer.NewArticle()
	article.Markdown = []byte("# Hello World")
	if err := writer.SaveArticle(article); err != nil {
		t.Fatalf("Failed to save initial article: %v", err)
	}
	if err := reader.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	seen := newNotifications()
	reader.SetReloadNotifier(seen.record)

	t.Run("NoChanges", func(t *testing.T) {
		reader.reload()
		seen.none(t)
	})

	t.Run("ContentChange", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		article.Markdown = []byte("# Hello World Modified!")
		if err := writer.SaveArticle(article); err != nil {
			t.Fatalf("Failed to update article: %v", err)
		}

		reader.reload()
		if id := seen.wait(t); id != article.ID {
			t.Errorf("Expected reload notification for %s, got %s", article.ID, id)
		}
		got, _ := reader.ReadArticle(article.ID)
		if string(got.Markdown) != "# Hello World Modified!" {
			t.Errorf("Expected cache to hold the new content, got %q", got.Markdown)
		}
	})

	t.Run("NewArticle", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		second := writer.NewArticle()
		second.Markdown = []byte("# Another")
		if err := writer.SaveArticle(second); err != nil {
			t.Fatalf("Failed to save new article: %v", err)
		}

		reader.reload()
		seen.none(t)
		if n := len(reader.GetArticleList()); n != 2 {
			t.Errorf("Expected 2 articles, got %d", n)
		}
		if reader.GetArticleList()[0].ID != second.ID {
			t.Error("Expected the newest article first")
		}
	})
}

func TestDBSaveNotifiesOwnRepository(t *testing.T) {
	repo := NewDBArticleRepository(setupTestDB(t), compression.GzipCompressor{}, time.Second)
	seen := newNotifications()
	repo.SetReloadNotifier(seen.record)

	article := repo.NewArticle()
	article.Markdown = []byte("Body")
	if err := repo.SaveArticle(article); err != nil {
		t.Fatalf("Failed to save article: %v", err)
	}
	if id := seen.wait(t); id != article.ID {
		t.Errorf("Expected notification for %s, got %s", article.ID, id)
	}
	if article.Title != untitled {
		t.Errorf("Expected %q for an article without front matter, got %q", untitled, article.Title)
	}
}
