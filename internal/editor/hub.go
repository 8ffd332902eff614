// Package editor runs editor sessions: the document, its selection, the
// insertion dialogs and the image upload flow of each open editor, and the
// HTTP API that drives them.
package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/notify"
	"github.com/debemdeboas/newsroom/internal/repository"
	"github.com/debemdeboas/newsroom/internal/repository/drafts"
	"github.com/debemdeboas/newsroom/internal/storage"
	"github.com/debemdeboas/newsroom/internal/upload"
)

var editorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// Uploads is what every session pipeline shares.
type Uploads struct {
	Compressor *upload.Compressor
	Previews   *upload.PreviewStore
	Store      storage.ImageStore
	Prefix     string
	// Keywords are the default filename synonyms. Front matter keywords of
	// the edited article replace them.
	Keywords string
}

type HubConfig struct {
	Articles repository.ArticleRepository
	Drafts   drafts.Repository
	Notifier notify.Notifier
	Uploads  *Uploads

	Autosave    bool
	MaxSessions int
}

// Hub keeps the open sessions, indexed by id and by article, and feeds
// article changes from the repository into them.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	byArticle map[model.ArticleID]map[string]*Session

	cfg HubConfig
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Log{Logger: editorLogger}
	}
	return &Hub{
		sessions:  make(map[string]*Session),
		byArticle: make(map[model.ArticleID]map[string]*Session),
		cfg:       cfg,
	}
}

// OpenRequest picks the content of a new session: a draft, an article, or
// literal content, in that order.
type OpenRequest struct {
	ArticleID model.ArticleID `json:"article_id,omitempty"`
	DraftID   model.DraftID   `json:"draft_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

func (h *Hub) Open(req OpenRequest) (*Session, error) {
	h.mu.RLock()
	full := h.cfg.MaxSessions > 0 && len(h.sessions) >= h.cfg.MaxSessions
	h.mu.RUnlock()
	if full {
		return nil, ErrTooManySessions
	}

	content := req.Content
	articleID := req.ArticleID
	keywords := ""
	if h.cfg.Uploads != nil {
		keywords = h.cfg.Uploads.Keywords
	}

	fromDraft := false
	if req.DraftID != "" && h.cfg.Drafts != nil {
		draft, err := h.cfg.Drafts.GetDraft(req.DraftID)
		if err != nil {
			return nil, fmt.Errorf("opening draft: %w", err)
		}
		// A draft nobody typed into yet starts from its article.
		if draft.Initialized {
			content = string(draft.Content)
			fromDraft = true
		}
		if articleID == "" {
			articleID = draft.ArticleID
		}
	}
	if articleID != "" && h.cfg.Articles != nil {
		article, err := h.cfg.Articles.ReadArticle(articleID)
		if err != nil {
			return nil, fmt.Errorf("opening article: %w", err)
		}
		if !fromDraft {
			content = string(article.Markdown)
		}
		if kw := article.Keywords(); kw != "" {
			keywords = kw
		}
	}

	draftID := req.DraftID
	if draftID == "" && h.cfg.Autosave && h.cfg.Drafts != nil {
		draft, err := h.cfg.Drafts.CreateDraft(articleID)
		if err != nil {
			return nil, fmt.Errorf("creating draft: %w", err)
		}
		draftID = draft.ID
	}

	id := uuid.NewString()
	var pipeline *upload.Pipeline
	if u := h.cfg.Uploads; u != nil {
		pipeline = upload.NewPipeline(u.Compressor, u.Previews, u.Store, u.Prefix, keywords)
	}

	s, err := NewSession(Options{
		ID:        id,
		ArticleID: articleID,
		DraftID:   draftID,
		Content:   content,
		OnChange:  h.autosave(id, draftID),
		Notifier:  h.cfg.Notifier,
		Pipeline:  pipeline,
	})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.sessions[id] = s
	h.index(s, articleID)
	h.mu.Unlock()

	editorLogger.Info().
		Str("session", id).
		Str("article_id", string(articleID)).
		Str("draft_id", string(draftID)).
		Msg("Editor session opened")
	return s, nil
}

// index adds s to the article index. The caller holds h.mu.
func (h *Hub) index(s *Session, articleID model.ArticleID) {
	if articleID == "" {
		return
	}
	if h.byArticle[articleID] == nil {
		h.byArticle[articleID] = make(map[string]*Session)
	}
	h.byArticle[articleID][s.id] = s
}

func (h *Hub) autosave(session string, draftID model.DraftID) func(string) {
	if !h.cfg.Autosave || h.cfg.Drafts == nil || draftID == "" {
		return nil
	}
	return func(persisted string) {
		if err := h.cfg.Drafts.SaveDraft(draftID, []byte(persisted)); err != nil {
			editorLogger.Error().Err(err).Str("session", session).Str("draft_id", string(draftID)).Msg("Error autosaving draft")
		}
	}
}

func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close drops a session and releases its pending image preview.
func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
		if byID := h.byArticle[s.ArticleID()]; byID != nil {
			delete(byID, id)
			if len(byID) == 0 {
				delete(h.byArticle, s.ArticleID())
			}
		}
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := s.CancelDialog(); err != nil {
		editorLogger.Warn().Err(err).Str("session", id).Msg("Closing session with an upload in flight")
	}
	editorLogger.Info().Str("session", id).Msg("Editor session closed")
	return nil
}

// Prune closes sessions idle for longer than maxIdle.
func (h *Hub) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	h.mu.RLock()
	var stale []string
	for id, s := range h.sessions {
		if s.Touched().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		_ = h.Close(id)
	}
	return len(stale)
}

// ArticleChanged pushes the stored content of an article into every
// session editing it. Sessions whose own output was stored ignore it.
func (h *Hub) ArticleChanged(id model.ArticleID) {
	if h.cfg.Articles == nil {
		return
	}
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.byArticle[id]))
	for _, s := range h.byArticle[id] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()
	if len(sessions) == 0 {
		return
	}

	article, err := h.cfg.Articles.ReadArticle(id)
	if err != nil {
		editorLogger.Error().Err(err).Str("article_id", string(id)).Msg("Error reading changed article")
		return
	}
	for _, s := range sessions {
		applied, err := s.SetValue(string(article.Markdown))
		if err != nil {
			editorLogger.Error().Err(err).Str("session", s.ID()).Msg("Error applying article change")
			continue
		}
		if applied {
			s.notify(notify.Info, "Article changed", "The article was updated elsewhere and reloaded")
		}
	}
}

// Save stores the session content as its article, creating the article the
// first time.
func (h *Hub) Save(sessionID string) (*model.Article, error) {
	if h.cfg.Articles == nil {
		return nil, errors.New("no article repository")
	}
	s, err := h.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var article *model.Article
	if id := s.ArticleID(); id != "" {
		existing, err := h.cfg.Articles.ReadArticle(id)
		switch {
		case err == nil:
			copied := *existing
			article = &copied
		case errors.Is(err, repository.ErrArticleNotFound):
			article = &model.Article{ID: id}
		default:
			return nil, err
		}
	} else {
		article = h.cfg.Articles.NewArticle()
	}
	article.Markdown = []byte(s.Content())

	if err := h.cfg.Articles.SaveArticle(article); err != nil {
		return nil, fmt.Errorf("saving article: %w", err)
	}

	if s.ArticleID() == "" {
		s.bindArticle(article.ID)
		h.mu.Lock()
		h.index(s, article.ID)
		h.mu.Unlock()
	}
	editorLogger.Info().Str("session", sessionID).Str("article_id", string(article.ID)).Msg("Article saved from editor")
	return article, nil
}
