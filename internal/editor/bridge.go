package editor

import (
	"sync"

	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
)

// Bridge pushes the persisted form of a document to its owner and decides
// whether content coming back from the owner must replace the document.
type Bridge struct {
	mu       sync.Mutex
	onChange func(persisted string)
	last     string
}

func NewBridge(onChange func(persisted string)) *Bridge {
	return &Bridge{onChange: onChange}
}

// Seed records content the document was loaded from, so the owner handing
// the same value back is not mistaken for an external change.
func (b *Bridge) Seed(persisted string) {
	b.mu.Lock()
	b.last = persisted
	b.mu.Unlock()
}

// Emit serializes doc, remembers the result and hands it to onChange. The
// callback runs synchronously, after the mutation it reports.
func (b *Bridge) Emit(doc *document.Document) string {
	persisted := convert.ToPersisted(doc)
	b.mu.Lock()
	b.last = persisted
	onChange := b.onChange
	b.mu.Unlock()
	if onChange != nil {
		onChange(persisted)
	}
	return persisted
}

func (b *Bridge) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// ShouldApply reports whether incoming differs from both the current
// serialization of doc and the last emitted value. Content that only
// differs in spelling from the current serialization is not applied either.
func (b *Bridge) ShouldApply(doc *document.Document, incoming string) bool {
	current := convert.ToPersisted(doc)
	if incoming == current || incoming == b.Last() {
		return false
	}
	if canonical, err := convert.Canonical(incoming); err == nil && canonical == current {
		return false
	}
	return true
}
