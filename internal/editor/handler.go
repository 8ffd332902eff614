package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/document"
	"github.com/debemdeboas/newsroom/internal/insert"
	"github.com/debemdeboas/newsroom/internal/model"
	"github.com/debemdeboas/newsroom/internal/render"
	"github.com/debemdeboas/newsroom/internal/repository"
	"github.com/debemdeboas/newsroom/internal/repository/drafts"
	"github.com/debemdeboas/newsroom/internal/routes"
	"github.com/debemdeboas/newsroom/internal/sse"
	"github.com/debemdeboas/newsroom/internal/upload"
	"github.com/debemdeboas/newsroom/internal/util"
)

// Handler serves the editor JSON API.
type Handler struct {
	hub      *Hub
	previews *upload.PreviewStore
	clients  *sse.SSEClients

	syntaxTheme    string
	maxUploadBytes int64
}

func NewHandler(hub *Hub, previews *upload.PreviewStore, clients *sse.SSEClients, syntaxTheme string, maxUploadBytes int64) *Handler {
	return &Handler{
		hub:            hub,
		previews:       previews,
		clients:        clients,
		syntaxTheme:    syntaxTheme,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.Sessions, h.serveOpen)
	mux.HandleFunc(routes.Session, h.withSession(h.serveSnapshot))
	mux.HandleFunc(routes.CloseSession, h.serveClose)
	mux.HandleFunc(routes.SessionValue, h.withSession(h.serveSetValue))
	mux.HandleFunc(routes.SessionSelect, h.withSession(h.serveSelect))
	mux.HandleFunc(routes.SessionText, h.withSession(h.serveText))
	mux.HandleFunc(routes.SessionDelete, h.withSession(h.serveDelete))
	mux.HandleFunc(routes.SessionFormat, h.withSession(h.serveFormat))
	mux.HandleFunc(routes.OpenDialog, h.withSession(h.serveOpenDialog))
	mux.HandleFunc(routes.EditLink, h.withSession(h.serveEditLink))
	mux.HandleFunc(routes.CancelDialog, h.withSession(h.serveCancelDialog))
	mux.HandleFunc(routes.Insert, h.withSession(h.serveInsert))
	mux.HandleFunc(routes.SelectImage, h.withSession(h.serveSelectImage))
	mux.HandleFunc(routes.ConfirmImage, h.withSession(h.serveConfirmImage))
	mux.HandleFunc(routes.SessionPreview, h.withSession(h.servePreview))
	mux.HandleFunc(routes.SaveArticle, h.serveSave)
	mux.HandleFunc(routes.ListArticles, h.serveArticles)
	mux.HandleFunc(routes.Previews, h.serveImagePreview)
	mux.HandleFunc(routes.PreviewCSS, h.servePreviewCSS)
	mux.HandleFunc(routes.SSEPath, h.serveEvents)
}

func (h *Handler) withSession(next func(http.ResponseWriter, *http.Request, *Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.hub.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, s)
	}
}

// statusFor maps editor errors to HTTP statuses.
func statusFor(err error) int {
	var (
		cerr *upload.CompressionError
		uerr *upload.UploadError
	)
	switch {
	case errors.Is(err, insert.ErrValidation), errors.As(err, &cerr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &uerr):
		return http.StatusBadGateway
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, repository.ErrArticleNotFound),
		errors.Is(err, drafts.ErrDraftNotFound),
		errors.Is(err, document.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDialogOpen),
		errors.Is(err, ErrNoDialog),
		errors.Is(err, ErrWrongDialog),
		errors.Is(err, upload.ErrUploadInProgress),
		errors.Is(err, upload.ErrNoPending):
		return http.StatusConflict
	case errors.Is(err, ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNoUploads):
		return http.StatusNotImplemented
	case errors.Is(err, ErrInvalidRange),
		errors.Is(err, document.ErrUnknownCommand),
		errors.Is(err, document.ErrHeadingLevel),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New(config.ErrInvalidRequestBody)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var verr *insert.ValidationError
	if errors.As(err, &verr) {
		body = errorBody{Error: verr.Message, Field: verr.Field}
	}
	if status == http.StatusInternalServerError {
		editorLogger.Error().Err(err).Msg("Editor request failed")
		body.Error = config.ErrInternalServerError
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		editorLogger.Error().Err(err).Msg("Error writing response")
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type contentBody struct {
	Content string `json:"content"`
}

func (h *Handler) serveOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	s, err := h.hub.Open(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) serveSnapshot(w http.ResponseWriter, r *http.Request, s *Session) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) serveClose(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveSetValue(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	applied, err := s.SetValue(body.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Applied bool   `json:"applied"`
		Content string `json:"content"`
	}{applied, s.Content()})
}

func (h *Handler) serveSelect(w http.ResponseWriter, r *http.Request, s *Session) {
	var sel document.Range
	if err := decode(r, &sel); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Select(sel); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveText(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentBody{s.TypeText(body.Text)})
}

func (h *Handler) serveDelete(w http.ResponseWriter, r *http.Request, s *Session) {
	writeJSON(w, http.StatusOK, contentBody{s.Delete()})
}

func (h *Handler) serveFormat(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Command string `json:"command"`
		Level   int    `json:"level"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := document.ParseCommand(body.Command, body.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Format(cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentBody{out})
}

func parseKind(r *http.Request) (insert.Kind, error) {
	kind, err := insert.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return kind, nil
}

func (h *Handler) serveOpenDialog(w http.ResponseWriter, r *http.Request, s *Session) {
	kind, err := parseKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.OpenDialog(kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) serveEditLink(w http.ResponseWriter, r *http.Request, s *Session) {
	id, err := strconv.Atoi(r.PathValue("node"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	d, err := s.EditLink(document.NodeID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) serveCancelDialog(w http.ResponseWriter, r *http.Request, s *Session) {
	if err := s.CancelDialog(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveInsert(w http.ResponseWriter, r *http.Request, s *Session) {
	kind, err := parseKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	req, err := insert.Decode(kind, data)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	out, err := s.Submit(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentBody{out})
}

func (h *Handler) serveSelectImage(w http.ResponseWriter, r *http.Request, s *Session) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	file, header, err := r.FormFile(routes.FormFile)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	pending, err := s.SelectImage(header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) serveConfirmImage(w http.ResponseWriter, r *http.Request, s *Session) {
	var meta upload.Metadata
	if err := decode(r, &meta); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.ConfirmImage(r.Context(), meta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentBody{out})
}

func (h *Handler) servePreview(w http.ResponseWriter, r *http.Request, s *Session) {
	content := s.Content()
	theme := r.URL.Query().Get("theme")
	if theme == "" {
		theme = h.syntaxTheme
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	if r.URL.Query().Get("view") == "source" {
		out, err := render.HighlightSource(content, theme)
		if err != nil {
			editorLogger.Warn().Err(err).Str("session", s.ID()).Msg("Error highlighting source")
		}
		w.Write([]byte(out))
		return
	}

	hash := util.ContentHash([]byte(content))
	w.Header().Set(config.HETag, hash)
	out, _ := render.RenderMarkdownCached([]byte(content), hash, theme)
	w.Write(out)
}

type articleSummary struct {
	ID       model.ArticleID `json:"id"`
	Title    string          `json:"title"`
	Modified string          `json:"modified"`
}

func (h *Handler) serveArticles(w http.ResponseWriter, r *http.Request) {
	if h.hub.cfg.Articles == nil {
		writeJSON(w, http.StatusOK, []articleSummary{})
		return
	}
	list := h.hub.cfg.Articles.GetArticleList()
	out := make([]articleSummary, 0, len(list))
	for _, a := range list {
		out = append(out, articleSummary{ID: a.ID, Title: a.GetTitle(), Modified: a.ModifiedDate.Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, out)
}

// serveSave stores the content of the session {id} as its article.
func (h *Handler) serveSave(w http.ResponseWriter, r *http.Request) {
	article, err := h.hub.Save(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, articleSummary{ID: article.ID, Title: article.GetTitle(), Modified: article.ModifiedDate.Format(time.RFC3339)})
}

func (h *Handler) serveImagePreview(w http.ResponseWriter, r *http.Request) {
	if h.previews == nil {
		http.NotFound(w, r)
		return
	}
	p, ok := h.previews.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set(config.HCType, p.ContentType)
	w.Header().Set(config.HCacheControl, "private, no-store")
	w.Write(p.Data)
}

func (h *Handler) servePreviewCSS(w http.ResponseWriter, r *http.Request) {
	theme := r.URL.Query().Get("theme")
	if theme == "" {
		theme = h.syntaxTheme
	}
	css := []byte(render.SyntaxCSS(theme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(css))
	w.Write(css)
}

func (h *Handler) serveEvents(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		http.Error(w, "Session parameter required", http.StatusBadRequest)
		return
	}
	if _, err := h.hub.Get(id); err != nil {
		http.Error(w, config.ErrSessionNotFound, http.StatusNotFound)
		return
	}
	h.clients.Stream(w, r, id)
}
