package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/document"
	"github.com/debemdeboas/newsroom/internal/insert"
	"github.com/debemdeboas/newsroom/internal/notify"
	"github.com/debemdeboas/newsroom/internal/storage"
	"github.com/debemdeboas/newsroom/internal/upload"
)

type fixture struct {
	session  *Session
	changes  []string
	recorder *notify.Recorder
	store    *storage.MemoryStore
	previews *upload.PreviewStore
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	return newFixtureWithStore(t, content, nil)
}

// newFixtureWithStore uploads through wrap when it is set, otherwise
// straight into the fixture's memory store.
func newFixtureWithStore(t *testing.T, content string, wrap func(*storage.MemoryStore) storage.ImageStore) *fixture {
	t.Helper()
	f := &fixture{
		recorder: &notify.Recorder{},
		store:    storage.NewMemoryStore("https://cdn.test"),
	}
	previews, err := upload.NewPreviewStore(8)
	require.NoError(t, err)
	f.previews = previews

	compressor := &upload.Compressor{MaxWidth: 1920, MaxHeight: 1080, Quality: 0.85, SoftMaxBytes: 1 << 20}
	var store storage.ImageStore = f.store
	if wrap != nil {
		store = wrap(f.store)
	}
	pipeline := upload.NewPipeline(compressor, previews, store, "content", "harbour, port")
	pipeline.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })

	s, err := NewSession(Options{
		ID:       "s1",
		Content:  content,
		OnChange: func(p string) { f.changes = append(f.changes, p) },
		Notifier: f.recorder,
		Pipeline: pipeline,
	})
	require.NoError(t, err)
	f.session = s
	return f
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTypeTextEmitsBeforeReturning(t *testing.T) {
	f := newFixture(t, "")
	out := f.session.TypeText("Hello")
	assert.Equal(t, "Hello", out)
	require.Len(t, f.changes, 1)
	assert.Equal(t, out, f.changes[0])
	assert.Equal(t, out, f.session.bridge.Last())
}

func TestSetValueIgnoresOwnOutput(t *testing.T) {
	f := newFixture(t, "")
	out := f.session.TypeText("Hello")

	applied, err := f.session.SetValue(out)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = f.session.SetValue(out + "\n")
	require.NoError(t, err)
	assert.False(t, applied, "a respelling of the current content must not re-render")

	applied, err = f.session.SetValue("Replaced *content*")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "Replaced *content*", f.session.Content())
	assert.Len(t, f.changes, 1, "external updates are not echoed back")
}

func TestSetValueSeededContent(t *testing.T) {
	f := newFixture(t, "# Title\n\nBody")
	applied, err := f.session.SetValue("# Title\n\nBody")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestDialogStateMachine(t *testing.T) {
	f := newFixture(t, "Intro")
	s := f.session
	assert.Equal(t, Idle, s.State())

	d, err := s.OpenDialog(insert.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, insert.KindVideo, d.Kind)
	assert.Equal(t, DialogOpen, s.State())

	_, err = s.OpenDialog(insert.KindLink)
	assert.ErrorIs(t, err, ErrDialogOpen)

	_, err = s.Submit(insert.Table{Rows: 2, Columns: 2})
	assert.ErrorIs(t, err, ErrWrongDialog)

	_, err = s.Submit(insert.VideoEmbed{SourceURL: "https://vimeo.com/1"})
	assert.ErrorIs(t, err, insert.ErrValidation)
	assert.Equal(t, DialogOpen, s.State(), "a rejected request keeps the dialog open")
	assert.Equal(t, "Intro", s.Content())
	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Warning, last.Level)
	assert.Equal(t, config.ErrVideoURLUnsupported, last.Message)

	out, err := s.Submit(insert.VideoEmbed{SourceURL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	assert.Contains(t, out, "https://www.youtube.com/embed/abc123")
	assert.Equal(t, Idle, s.State())
	assert.Nil(t, s.Snapshot().Dialog)
	_, saved := s.selection.Saved()
	assert.False(t, saved)
}

func TestSubmitWithoutDialog(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.session.Submit(insert.PromptBox{Content: "x"})
	assert.ErrorIs(t, err, ErrNoDialog)
}

func TestCancelDialogLeavesDocument(t *testing.T) {
	f := newFixture(t, "Keep me")
	_, err := f.session.OpenDialog(insert.KindTable)
	require.NoError(t, err)
	require.NoError(t, f.session.CancelDialog())
	assert.Equal(t, Idle, f.session.State())
	assert.Equal(t, "Keep me", f.session.Content())
	assert.Empty(t, f.changes)

	assert.NoError(t, f.session.CancelDialog(), "cancelling twice is harmless")
}

func TestInsertAtSavedSelection(t *testing.T) {
	f := newFixture(t, "First\n\nSecond")
	s := f.session
	first := s.doc.Find(document.KindText)[0]
	require.NoError(t, s.Select(document.Caret(document.Position{Node: first.ID, Offset: 5})))

	_, err := s.OpenDialog(insert.KindPrompt)
	require.NoError(t, err)
	// Moving the live caret while the dialog is open does not move the insertion.
	require.NoError(t, s.Select(document.Caret(s.doc.End())))

	out, err := s.Submit(insert.PromptBox{Title: "Tip", Content: "Read this"})
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "First"), strings.Index(out, "Read this"))
	assert.Less(t, strings.Index(out, "Read this"), strings.Index(out, "Second"))
}

func TestInsertAfterExternalReplaceLandsAtEnd(t *testing.T) {
	f := newFixture(t, "First")
	s := f.session
	_, err := s.OpenDialog(insert.KindPrompt)
	require.NoError(t, err)

	applied, err := s.SetValue("Alpha\n\nBeta")
	require.NoError(t, err)
	require.True(t, applied)

	out, err := s.Submit(insert.PromptBox{Content: "Closing note"})
	require.NoError(t, err)
	assert.NotContains(t, out, "First")
	assert.Less(t, strings.Index(out, "Beta"), strings.Index(out, "Closing note"))
}

func TestFormatSelection(t *testing.T) {
	f := newFixture(t, "")
	s := f.session
	s.TypeText("Hello")
	txt := s.doc.Find(document.KindText)[0]
	require.NoError(t, s.Select(document.Range{
		Anchor: document.Position{Node: txt.ID},
		Focus:  document.Position{Node: txt.ID, Offset: 5},
	}))

	out, err := s.Format(document.Bold{})
	require.NoError(t, err)
	assert.Equal(t, "**Hello**", out)
	assert.Equal(t, out, f.changes[len(f.changes)-1])
}

func TestSelectRejectsDanglingRange(t *testing.T) {
	f := newFixture(t, "x")
	err := f.session.Select(document.Caret(document.Position{Node: 999}))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDeleteBackspace(t *testing.T) {
	f := newFixture(t, "")
	f.session.TypeText("Hey")
	assert.Equal(t, "He", f.session.Delete())
}

func TestEditExistingLink(t *testing.T) {
	f := newFixture(t, "[site](https://a.test)")
	s := f.session
	link := s.doc.Find(document.KindLink)[0]

	d, err := s.EditLink(link.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Link)
	assert.Equal(t, "https://a.test", d.Link.URL)
	assert.Equal(t, "site", d.Link.Text)

	out, err := s.Submit(insert.Link{URL: "https://b.test", Text: "site"})
	require.NoError(t, err)
	assert.Equal(t, "[site](https://b.test)", out)
	assert.Len(t, s.doc.Find(document.KindLink), 1)
}

func TestEditLinkUnknownNode(t *testing.T) {
	f := newFixture(t, "plain")
	_, err := f.session.EditLink(document.NodeID(42))
	assert.ErrorIs(t, err, document.ErrNodeNotFound)
	assert.Equal(t, Idle, f.session.State())
}

func TestCompressionFailureOpensNoDialog(t *testing.T) {
	f := newFixture(t, "Body")
	_, err := f.session.SelectImage("broken.png", []byte("not an image"))
	var cerr *upload.CompressionError
	require.ErrorAs(t, err, &cerr)

	assert.Equal(t, Idle, f.session.State())
	assert.Nil(t, f.session.Snapshot().Dialog)
	assert.Zero(t, f.previews.Len())
	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Level)
	assert.Equal(t, config.ErrCompressImage, last.Title)
}

func TestImageUploadRetry(t *testing.T) {
	f := newFixture(t, "Body")
	s := f.session

	pending, err := s.SelectImage("IMG_0001.png", pngImage(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, "harbour", pending.Suggested)
	assert.Equal(t, DialogOpen, s.State())
	assert.Equal(t, 1, f.previews.Len())

	f.store.SetFail(errors.New("bucket unreachable"))
	_, err = s.ConfirmImage(context.Background(), upload.Metadata{Filename: pending.Suggested, Caption: "Dawn", Size: "large"})
	var uerr *upload.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, DialogOpen, s.State(), "upload failure keeps the dialog")
	snap := s.Snapshot()
	require.NotNil(t, snap.Dialog)
	require.NotNil(t, snap.Dialog.Pending)
	assert.Equal(t, 1, snap.Dialog.Pending.Attempts)
	assert.Equal(t, "Body", s.Content())

	f.store.SetFail(nil)
	out, err := s.ConfirmImage(context.Background(), upload.Metadata{Filename: pending.Suggested, Caption: "Dawn", Size: "large"})
	require.NoError(t, err)
	assert.Contains(t, out, "https://cdn.test/content/harbour-1700000000000.jpg")
	assert.Contains(t, out, "Dawn")
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, f.previews.Len())
	assert.Equal(t, 2, f.store.Calls())

	levels := f.recorder.Levels()
	assert.Equal(t, []notify.Level{notify.Info, notify.Error, notify.Success, notify.Success}, levels)
}

func TestImageMetadataCheckedBeforeUpload(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.session.SelectImage("a.png", pngImage(t, 8, 8))
	require.NoError(t, err)

	_, err = f.session.ConfirmImage(context.Background(), upload.Metadata{Size: "huge"})
	assert.ErrorIs(t, err, insert.ErrValidation)
	assert.Zero(t, f.store.Calls())
	assert.Equal(t, DialogOpen, f.session.State())
}

func TestCancelImageReleasesPreview(t *testing.T) {
	f := newFixture(t, "")
	pending, err := f.session.SelectImage("a.png", pngImage(t, 8, 8))
	require.NoError(t, err)
	_, held := f.previews.Get(pending.PreviewID)
	require.True(t, held)

	require.NoError(t, f.session.CancelDialog())
	_, held = f.previews.Get(pending.PreviewID)
	assert.False(t, held)
	assert.Zero(t, f.store.Calls())
	assert.Equal(t, Idle, f.session.State())
}

func TestSelectImageWithoutPipeline(t *testing.T) {
	s, err := NewSession(Options{ID: "bare"})
	require.NoError(t, err)
	_, err = s.SelectImage("a.png", nil)
	assert.ErrorIs(t, err, ErrNoUploads)
}

func TestStateText(t *testing.T) {
	text, err := Inserting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "inserting", string(text))
	assert.Equal(t, "state(42)", State(42).String())

	var st State
	require.NoError(t, st.UnmarshalText([]byte("dialog_open")))
	assert.Equal(t, DialogOpen, st)
	assert.Error(t, st.UnmarshalText([]byte("asleep")))
}

func TestSnapshotJSONDecodes(t *testing.T) {
	f := newFixture(t, "Body")
	_, err := f.session.OpenDialog(insert.KindTable)
	require.NoError(t, err)

	data, err := json.Marshal(f.session.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, DialogOpen, snap.State)
	assert.Equal(t, "Body", snap.Content)
	require.NotNil(t, snap.Dialog)
	assert.Equal(t, insert.KindTable, snap.Dialog.Kind)
}

func TestImageDialogSubmittedWithURLReleasesPending(t *testing.T) {
	f := newFixture(t, "Body")
	pending, err := f.session.SelectImage("a.png", pngImage(t, 8, 8))
	require.NoError(t, err)

	out, err := f.session.Submit(insert.Image{URL: "https://other.test/x.png", Alt: "x"})
	require.NoError(t, err)
	assert.Contains(t, out, "https://other.test/x.png")
	assert.Equal(t, Idle, f.session.State())

	_, held := f.previews.Get(pending.PreviewID)
	assert.False(t, held)
	assert.Zero(t, f.previews.Len())
	assert.Zero(t, f.store.Calls())

	// The next image dialog starts from nothing.
	_, err = f.session.OpenDialog(insert.KindImage)
	require.NoError(t, err)
	_, err = f.session.ConfirmImage(context.Background(), upload.Metadata{})
	assert.ErrorIs(t, err, upload.ErrNoPending)
}

// gatedStore holds every upload until release is closed.
type gatedStore struct {
	inner   *storage.MemoryStore
	started chan struct{}
	release chan struct{}
}

func (g *gatedStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	close(g.started)
	<-g.release
	return g.inner.Upload(ctx, path, data, contentType)
}

func TestImageDialogLockedDuringUpload(t *testing.T) {
	gate := &gatedStore{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWithStore(t, "Body", func(m *storage.MemoryStore) storage.ImageStore {
		gate.inner = m
		return gate
	})
	s := f.session
	_, err := s.SelectImage("a.png", pngImage(t, 8, 8))
	require.NoError(t, err)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.ConfirmImage(context.Background(), upload.Metadata{Caption: "Dawn"})
		done <- result{out, err}
	}()
	<-gate.started

	_, err = s.Submit(insert.Image{URL: "https://other.test/x.png"})
	assert.ErrorIs(t, err, upload.ErrUploadInProgress)
	assert.ErrorIs(t, s.CancelDialog(), upload.ErrUploadInProgress)
	_, err = s.SelectImage("b.png", pngImage(t, 8, 8))
	assert.ErrorIs(t, err, upload.ErrUploadInProgress)
	_, err = s.ConfirmImage(context.Background(), upload.Metadata{})
	assert.ErrorIs(t, err, upload.ErrUploadInProgress)
	_, err = s.OpenDialog(insert.KindLink)
	assert.ErrorIs(t, err, ErrDialogOpen)

	close(gate.release)
	res := <-done
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "https://cdn.test/content/harbour-1700000000000.jpg")
	assert.NotContains(t, res.out, "other.test")
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, f.store.Calls())
	assert.Zero(t, f.previews.Len())
}
