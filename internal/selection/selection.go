// Package selection snapshots a caret or range so an insertion lands where
// the user left it, even when a dialog or an upload sits in between.
package selection

import (
	"errors"
	"sync"

	"github.com/debemdeboas/newsroom/internal/document"
)

var (
	// ErrNothingSaved means no selection was captured; callers fall back to
	// the live focus.
	ErrNothingSaved = errors.New("no saved selection")
	// ErrSelectionLost means the saved range points at nodes that are gone;
	// callers fall back to the end of the document.
	ErrSelectionLost = errors.New("saved selection no longer resolves")
)

// Saved is a captured range. It is a plain value: copying it is enough to
// keep it.
type Saved struct {
	Anchor document.Position `json:"anchor"`
	Focus  document.Position `json:"focus"`
}

func (s Saved) Range() document.Range {
	return document.Range{Anchor: s.Anchor, Focus: s.Focus}
}

func FromRange(r document.Range) Saved {
	return Saved{Anchor: r.Anchor, Focus: r.Focus}
}

// Manager holds at most one saved selection.
type Manager struct {
	mu    sync.Mutex
	saved *Saved
}

func (m *Manager) Save(r document.Range) Saved {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := FromRange(r)
	m.saved = &s
	return s
}

func (m *Manager) Saved() (Saved, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return Saved{}, false
	}
	return *m.saved, true
}

func (m *Manager) Clear() {
	m.mu.Lock()
	m.saved = nil
	m.mu.Unlock()
}

// Restore resolves the saved range against doc. The saved value is kept
// until Clear, so a rejected dialog can restore again.
func (m *Manager) Restore(doc *document.Document) (document.Range, error) {
	s, ok := m.Saved()
	if !ok {
		return document.Range{}, ErrNothingSaved
	}
	r := s.Range()
	if !doc.ResolveRange(r) {
		return document.Range{}, ErrSelectionLost
	}
	return r, nil
}

// RestoreOr restores the saved range, falling back to live when nothing was
// saved and to the end of the document when the saved range was lost.
func (m *Manager) RestoreOr(doc *document.Document, live document.Range) (document.Range, error) {
	r, err := m.Restore(doc)
	switch {
	case errors.Is(err, ErrNothingSaved):
		if doc.ResolveRange(live) {
			return live, err
		}
		return document.Caret(doc.End()), err
	case errors.Is(err, ErrSelectionLost):
		return document.Caret(doc.End()), err
	}
	return r, nil
}
