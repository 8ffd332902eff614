package drafts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/newsroom/internal/model"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	drafts map[model.DraftID]*model.Draft
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{drafts: make(map[model.DraftID]*model.Draft)}
}

func (m *MemoryRepository) CreateDraft(article model.ArticleID) (*model.Draft, error) {
	draft := &model.Draft{
		ID:           model.DraftID(uuid.New().String()),
		ArticleID:    article,
		Content:      []byte{},
		ModifiedDate: time.Now().UTC(),
	}
	m.mu.Lock()
	m.drafts[draft.ID] = draft
	m.mu.Unlock()

	copied := *draft
	return &copied, nil
}

func (m *MemoryRepository) SaveDraft(id model.DraftID, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft, ok := m.drafts[id]
	if !ok {
		if len(content) == 0 {
			return nil
		}
		draft = &model.Draft{ID: id}
		m.drafts[id] = draft
	}
	draft.Content = append([]byte(nil), content...)
	draft.Initialized = len(content) > 0
	draft.ModifiedDate = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) GetDraft(id model.DraftID) (*model.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if draft, ok := m.drafts[id]; ok {
		copied := *draft
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
}

func (m *MemoryRepository) DeleteDraft(id model.DraftID) error {
	m.mu.Lock()
	delete(m.drafts, id)
	m.mu.Unlock()
	return nil
}
