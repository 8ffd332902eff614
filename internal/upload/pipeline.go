// Package upload compresses chosen images, previews them locally and only
// uploads them once the user confirms the image dialog.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/insert"
	"github.com/debemdeboas/newsroom/internal/storage"
)

var uploadLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	uploadLogger = l
}

var (
	ErrNoPending        = errors.New("no pending image")
	ErrUploadInProgress = errors.New("upload already in progress")
)

// UploadError reports a failed upload. The pending image is kept so the
// upload can be retried.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Metadata is what the image dialog lets the user edit.
type Metadata struct {
	Filename    string `json:"filename"`
	Caption     string `json:"caption"`
	Alt         string `json:"alt"`
	Description string `json:"description"`
	Size        string `json:"size"`
}

// PendingImage is a compressed image waiting for the dialog to be
// confirmed or cancelled.
type PendingImage struct {
	PreviewID  string   `json:"preview_id"`
	PreviewURL string   `json:"preview_url"`
	Name       string   `json:"name"`
	Suggested  string   `json:"suggested"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Bytes      int      `json:"bytes"`
	Attempts   int      `json:"attempts"`
	Metadata   Metadata `json:"metadata"`

	image     *Compressed
	uploading bool
}

// Pipeline is the upload state of one editor session: at most one pending
// image and the filename suggestion cycle.
type Pipeline struct {
	mu sync.Mutex

	compressor *Compressor
	previews   *PreviewStore
	suggester  *Suggester
	store      storage.ImageStore
	prefix     string
	now        func() time.Time

	pending *PendingImage
}

func NewPipeline(compressor *Compressor, previews *PreviewStore, store storage.ImageStore, prefix, keywords string) *Pipeline {
	return &Pipeline{
		compressor: compressor,
		previews:   previews,
		suggester:  NewSuggester(keywords),
		store:      store,
		prefix:     prefix,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for object paths.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

func (p *Pipeline) SetKeywords(synonyms string) {
	p.suggester.SetKeywords(synonyms)
}

// Select compresses a chosen file and makes it the pending image. Nothing
// is uploaded. A compression failure leaves the current state alone.
func (p *Pipeline) Select(name string, data []byte) (PendingImage, error) {
	p.mu.Lock()
	busy := p.pending != nil && p.pending.uploading
	p.mu.Unlock()
	if busy {
		return PendingImage{}, ErrUploadInProgress
	}

	img, err := p.compressor.Compress(name, data)
	if err != nil {
		return PendingImage{}, err
	}

	preview := p.previews.Create(img.Data, img.ContentType)
	pending := &PendingImage{
		PreviewID:  preview.ID,
		PreviewURL: preview.URL,
		Name:       name,
		Suggested:  p.suggester.Peek(name),
		Width:      img.Width,
		Height:     img.Height,
		Bytes:      len(img.Data),
		image:      img,
	}
	pending.Metadata.Filename = pending.Suggested

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.previews.Revoke(p.pending.PreviewID)
	}
	p.pending = pending
	return *pending, nil
}

func (p *Pipeline) Pending() (PendingImage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return PendingImage{}, false
	}
	return *p.pending, true
}

// Confirm uploads the pending image under a slug of the chosen filename and
// returns the image insertion for its permanent URL. On failure the pending
// image and meta are kept for a retry.
func (p *Pipeline) Confirm(ctx context.Context, meta Metadata) (insert.Image, error) {
	p.mu.Lock()
	pending := p.pending
	switch {
	case pending == nil:
		p.mu.Unlock()
		return insert.Image{}, ErrNoPending
	case pending.uploading:
		p.mu.Unlock()
		return insert.Image{}, ErrUploadInProgress
	}
	pending.uploading = true
	pending.Metadata = meta

	name := strings.TrimSpace(meta.Filename)
	if name == "" {
		name = pending.Suggested
	}
	path := ObjectPath(p.prefix, Slugify(Stem(name)), p.now(), pending.image.Ext)
	img := pending.image
	p.mu.Unlock()

	url, err := p.store.Upload(ctx, path, img.Data, img.ContentType)

	p.mu.Lock()
	defer p.mu.Unlock()
	pending.uploading = false
	if err != nil {
		pending.Attempts++
		uploadLogger.Error().Err(err).Str("path", path).Int("attempts", pending.Attempts).Msg("Image upload failed")
		return insert.Image{}, &UploadError{Path: path, Err: err}
	}

	p.previews.Revoke(pending.PreviewID)
	if p.pending == pending {
		p.pending = nil
	}
	p.suggester.Advance()
	uploadLogger.Info().Str("path", path).Str("url", url).Msg("Image uploaded")

	return insert.Image{
		URL:         url,
		Caption:     meta.Caption,
		Alt:         meta.Alt,
		Description: meta.Description,
		Size:        meta.Size,
	}, nil
}

// Cancel drops the pending image and releases its preview. No network call
// is made. Cancelling with nothing pending is a no-op.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil
	}
	if p.pending.uploading {
		return ErrUploadInProgress
	}
	p.previews.Revoke(p.pending.PreviewID)
	p.pending = nil
	return nil
}
