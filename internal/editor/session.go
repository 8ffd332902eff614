package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
	"github.com/debemdeboas/newsroom/internal/insert"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/notify"
	"github.com/debemdeboas/newsroom/internal/selection"
	"github.com/debemdeboas/newsroom/internal/upload"
)

var (
	ErrDialogOpen   = errors.New("a dialog is already open")
	ErrNoDialog     = errors.New("no dialog is open")
	ErrWrongDialog  = errors.New("request does not match the open dialog")
	ErrNoUploads    = errors.New("image uploads are not configured")
	ErrInvalidRange = errors.New("selection does not resolve in the document")
)

// State is where a session is in the insertion dialog protocol.
type State int

const (
	Idle State = iota
	SelectionSaved
	DialogOpen
	Validating
	Rejected
	Accepted
	Inserting
)

var stateNames = [...]string{"idle", "selection_saved", "dialog_open", "validating", "rejected", "accepted", "inserting"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Dialog is the open insertion dialog.
type Dialog struct {
	Kind insert.Kind `json:"kind"`
	// Link is set when the link dialog edits an existing link.
	Link    *insert.Link         `json:"link,omitempty"`
	Pending *upload.PendingImage `json:"pending,omitempty"`
}

type Options struct {
	ID        string
	ArticleID model.ArticleID
	DraftID   model.DraftID
	Content   string

	// OnChange receives the persisted content after every change.
	OnChange func(persisted string)
	Notifier notify.Notifier
	// Pipeline handles image uploads; nil disables them.
	Pipeline *upload.Pipeline
}

// Session is one open editor: a document, its selection and the dialog
// being filled in. Only the session mutates its document.
type Session struct {
	mu sync.Mutex

	id        string
	articleID model.ArticleID
	draftID   model.DraftID

	doc       *document.Document
	bridge    *Bridge
	selection selection.Manager
	live      document.Range

	state  State
	dialog *Dialog
	// uploading is set while ConfirmImage waits on storage. The image
	// dialog cannot be submitted, cancelled or re-selected meanwhile.
	uploading bool

	pipeline *upload.Pipeline
	notifier notify.Notifier

	created time.Time
	touched time.Time
}

func NewSession(opts Options) (*Session, error) {
	doc, err := convert.ToEditable(opts.Content)
	if err != nil {
		return nil, fmt.Errorf("loading session content: %w", err)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Log{Logger: editorLogger}
	}

	now := time.Now()
	s := &Session{
		id:        opts.ID,
		articleID: opts.ArticleID,
		draftID:   opts.DraftID,
		doc:       doc,
		bridge:    NewBridge(opts.OnChange),
		live:      document.Caret(doc.End()),
		pipeline:  opts.Pipeline,
		notifier:  notifier,
		created:   now,
		touched:   now,
	}
	s.bridge.Seed(convert.ToPersisted(doc))
	return s, nil
}

func (s *Session) ID() string             { return s.id }
func (s *Session) DraftID() model.DraftID { return s.draftID }

func (s *Session) ArticleID() model.ArticleID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.articleID
}

func (s *Session) bindArticle(id model.ArticleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articleID = id
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	ID        string          `json:"id"`
	ArticleID model.ArticleID `json:"article_id,omitempty"`
	DraftID   model.DraftID   `json:"draft_id,omitempty"`
	Content   string          `json:"content"`
	Selection document.Range  `json:"selection"`
	State     State           `json:"state"`
	Dialog    *Dialog         `json:"dialog,omitempty"`
	Touched   time.Time       `json:"touched"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		ArticleID: s.articleID,
		DraftID:   s.draftID,
		Content:   convert.ToPersisted(s.doc),
		Selection: s.live,
		State:     s.state,
		Touched:   s.touched,
	}
	if s.dialog != nil {
		d := *s.dialog
		snap.Dialog = &d
	}
	return snap
}

func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return convert.ToPersisted(s.doc)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Selection() document.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Touched is the time of the last operation on the session.
func (s *Session) Touched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// emit publishes the document after a mutation. The caller holds s.mu.
func (s *Session) emit() string {
	s.touched = time.Now()
	return s.bridge.Emit(s.doc)
}

func (s *Session) notify(level notify.Level, title, message string) {
	s.notifier.Notify(notify.Notification{
		Session: s.id,
		Level:   level,
		Title:   title,
		Message: message,
		Time:    time.Now(),
	})
}

// fail reports err to the user. Nothing here is fatal to the session.
func (s *Session) fail(err error) {
	var (
		verr *insert.ValidationError
		cerr *upload.CompressionError
		uerr *upload.UploadError
	)
	switch {
	case errors.As(err, &verr):
		s.notify(notify.Warning, config.MsgInvalidInput, verr.Message)
	case errors.As(err, &cerr):
		s.notify(notify.Error, config.ErrCompressImage, cerr.Err.Error())
	case errors.As(err, &uerr):
		s.notify(notify.Error, config.ErrUploadImage, uerr.Err.Error())
	case errors.Is(err, upload.ErrUploadInProgress):
		s.notify(notify.Warning, config.ErrUploadPending, "")
	case errors.Is(err, upload.ErrNoPending):
		s.notify(notify.Warning, config.ErrNoPendingImage, "")
	default:
		s.notify(notify.Error, config.ErrInsertFailed, err.Error())
	}
	editorLogger.Debug().Err(err).Str("session", s.id).Msg("Editor operation failed")
}

// Select moves the live selection.
func (s *Session) Select(r document.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.ResolveRange(r) {
		return ErrInvalidRange
	}
	s.live = r
	s.touched = time.Now()
	return nil
}

// TypeText replaces the live selection with text, as typing does.
func (s *Session) TypeText(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.live.Focus
	if !s.live.Collapsed() {
		pos = s.doc.DeleteRange(s.live)
	}
	s.live = document.Caret(s.doc.InsertText(pos, text))
	return s.emit()
}

// Delete removes the live selection, or the character before a collapsed
// caret inside text.
func (s *Session) Delete() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.live
	if r.Collapsed() {
		n := s.doc.Node(r.Focus.Node)
		if n == nil || n.Kind != document.KindText || r.Focus.Offset == 0 {
			return convert.ToPersisted(s.doc)
		}
		r.Anchor = document.Position{Node: r.Focus.Node, Offset: r.Focus.Offset - 1}
	}
	s.live = document.Caret(s.doc.DeleteRange(r))
	return s.emit()
}

// Format applies a formatting command to the live selection.
func (s *Session) Format(cmd document.Command) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.doc.Apply(cmd, s.live)
	if err != nil {
		return convert.ToPersisted(s.doc), err
	}
	s.live = r
	return s.emit(), nil
}

// SetValue replaces the document with content from the owner, unless the
// guard finds it is the session's own output. It reports whether the
// document was replaced. Saved selections stop resolving after a
// replacement and later insertions land at the end of the document.
func (s *Session) SetValue(value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bridge.ShouldApply(s.doc, value) {
		return false, nil
	}
	incoming, err := convert.ToEditable(value)
	if err != nil {
		return false, fmt.Errorf("loading external content: %w", err)
	}
	s.doc.ReplaceContent(incoming)
	s.live = document.Caret(s.doc.End())
	s.touched = time.Now()
	editorLogger.Debug().Str("session", s.id).Msg("Applied external content")
	return true, nil
}

// openDialog saves the selection and opens a dialog. The caller holds s.mu.
func (s *Session) openDialog(d *Dialog) error {
	if s.state != Idle {
		return ErrDialogOpen
	}
	s.selection.Save(s.live)
	s.state = SelectionSaved
	s.dialog = d
	s.state = DialogOpen
	s.touched = time.Now()
	return nil
}

// OpenDialog opens the dialog for kind. Opening the link dialog with the
// caret inside a link edits that link.
func (s *Session) OpenDialog(kind insert.Kind) (Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &Dialog{Kind: kind}
	if kind == insert.KindLink {
		if link := s.doc.LinkAt(s.live.Focus); link != nil {
			d.Link = s.linkRequest(link)
		}
	}
	if err := s.openDialog(d); err != nil {
		return Dialog{}, err
	}
	return *d, nil
}

func (s *Session) linkRequest(link *document.Node) *insert.Link {
	return &insert.Link{
		URL:          link.Attr(document.AttrHref),
		Text:         s.doc.TextContent(link.ID),
		OpenInNewTab: link.Attr(document.AttrTarget) == "_blank",
		Existing:     link.ID,
	}
}

// EditLink opens the link dialog bound to an existing link.
func (s *Session) EditLink(id document.NodeID) (Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.doc.Node(id)
	if link == nil || link.Kind != document.KindLink || !s.doc.Attached(id) {
		return Dialog{}, fmt.Errorf("link %d: %w", id, document.ErrNodeNotFound)
	}
	d := &Dialog{Kind: insert.KindLink, Link: s.linkRequest(link)}
	if err := s.openDialog(d); err != nil {
		return Dialog{}, err
	}
	return *d, nil
}

// CancelDialog closes the dialog without touching the document and releases
// a pending image preview. Cancelling with no dialog open is a no-op.
func (s *Session) CancelDialog() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialog == nil {
		return nil
	}
	if s.uploading {
		s.fail(upload.ErrUploadInProgress)
		return upload.ErrUploadInProgress
	}
	s.closeDialog()
	return nil
}

// closeDialog returns to Idle. Closing the image dialog releases an image
// that was chosen but not uploaded. The caller holds s.mu.
func (s *Session) closeDialog() {
	if s.dialog != nil && s.dialog.Kind == insert.KindImage && s.pipeline != nil {
		if err := s.pipeline.Cancel(); err != nil {
			editorLogger.Warn().Err(err).Str("session", s.id).Msg("Pending image not released")
		}
	}
	s.selection.Clear()
	s.dialog = nil
	s.state = Idle
	s.touched = time.Now()
}

// Submit validates req, restores the saved selection and inserts. A
// rejected request keeps the dialog open and leaves the document untouched.
func (s *Session) Submit(req insert.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != DialogOpen || s.dialog == nil {
		return "", ErrNoDialog
	}
	if s.uploading {
		return "", upload.ErrUploadInProgress
	}
	if req.Kind() != s.dialog.Kind {
		return "", fmt.Errorf("%w: %s dialog got a %s request", ErrWrongDialog, s.dialog.Kind, req.Kind())
	}
	if l, ok := req.(insert.Link); ok && s.dialog.Link != nil {
		l.Existing = s.dialog.Link.Existing
		req = l
	}
	return s.insert(req)
}

// insert runs the insertion protocol from the open dialog. The caller holds
// s.mu.
func (s *Session) insert(req insert.Request) (string, error) {
	s.state = Validating
	if err := req.Validate(); err != nil {
		s.state = Rejected
		s.fail(err)
		s.state = DialogOpen
		return "", err
	}
	s.state = Accepted

	r, err := s.selection.RestoreOr(s.doc, s.live)
	if errors.Is(err, selection.ErrSelectionLost) {
		editorLogger.Debug().Str("session", s.id).Msg("Saved selection lost, inserting at the end")
	}
	_, at := s.doc.Ordered(r)

	s.state = Inserting
	pos, err := insert.Apply(s.doc, at, req)
	if err != nil {
		s.fail(err)
		s.state = DialogOpen
		return "", err
	}

	s.live = document.Caret(pos)
	s.closeDialog()
	return s.emit(), nil
}

// SelectImage compresses a chosen image and opens the image dialog with its
// preview. A compression failure aborts before any dialog opens.
func (s *Session) SelectImage(name string, data []byte) (upload.PendingImage, error) {
	if s.pipeline == nil {
		return upload.PendingImage{}, ErrNoUploads
	}

	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		return upload.PendingImage{}, upload.ErrUploadInProgress
	}
	reselect := s.state == DialogOpen && s.dialog != nil && s.dialog.Kind == insert.KindImage
	if !reselect {
		if s.state != Idle {
			s.mu.Unlock()
			return upload.PendingImage{}, ErrDialogOpen
		}
		s.selection.Save(s.live)
		s.state = SelectionSaved
	}
	s.notify(notify.Info, config.MsgCompressingImage, name)
	s.mu.Unlock()

	pending, err := s.pipeline.Select(name, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if !reselect {
			s.closeDialog()
		}
		s.fail(err)
		return upload.PendingImage{}, err
	}
	s.dialog = &Dialog{Kind: insert.KindImage, Pending: &pending}
	s.state = DialogOpen
	s.touched = time.Now()
	return pending, nil
}

// ConfirmImage uploads the pending image and inserts it. An upload failure
// keeps the dialog and the pending image for a retry. The session stays
// usable while the upload runs.
func (s *Session) ConfirmImage(ctx context.Context, meta upload.Metadata) (string, error) {
	if s.pipeline == nil {
		return "", ErrNoUploads
	}

	s.mu.Lock()
	if s.state != DialogOpen || s.dialog == nil || s.dialog.Kind != insert.KindImage {
		s.mu.Unlock()
		return "", ErrNoDialog
	}
	if s.uploading {
		s.fail(upload.ErrUploadInProgress)
		s.mu.Unlock()
		return "", upload.ErrUploadInProgress
	}
	// Check the metadata before spending an upload on it.
	check := insert.Image{URL: "https://upload.invalid/", Caption: meta.Caption, Alt: meta.Alt, Description: meta.Description, Size: strings.TrimSpace(meta.Size)}
	if err := check.Validate(); err != nil {
		s.fail(err)
		s.mu.Unlock()
		return "", err
	}
	s.uploading = true
	s.mu.Unlock()

	img, err := s.pipeline.Confirm(ctx, meta)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if err != nil {
		if pending, ok := s.pipeline.Pending(); ok && s.dialog != nil {
			s.dialog.Pending = &pending
		}
		s.fail(err)
		return "", err
	}
	s.notify(notify.Success, config.MsgImageUploaded, img.URL)

	if s.state != DialogOpen || s.dialog == nil || s.dialog.Kind != insert.KindImage {
		return "", ErrNoDialog
	}
	out, err := s.insert(img)
	if err != nil {
		return "", err
	}
	s.notify(notify.Success, config.MsgImageInserted, img.Caption)
	return out, nil
}
