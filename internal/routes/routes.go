// Package routes defines HTTP route patterns for the application.
package routes

// Editor API
const (
	Sessions       = "POST /api/sessions"
	Session        = "GET /api/sessions/{id}"
	CloseSession   = "DELETE /api/sessions/{id}"
	SessionValue   = "PUT /api/sessions/{id}/value"
	SessionSelect  = "POST /api/sessions/{id}/selection"
	SessionText    = "POST /api/sessions/{id}/text"
	SessionDelete  = "POST /api/sessions/{id}/delete"
	SessionFormat  = "POST /api/sessions/{id}/format"
	OpenDialog     = "POST /api/sessions/{id}/dialogs/{kind}"
	EditLink       = "POST /api/sessions/{id}/links/{node}"
	CancelDialog   = "DELETE /api/sessions/{id}/dialog"
	Insert         = "POST /api/sessions/{id}/insert/{kind}"
	SelectImage    = "POST /api/sessions/{id}/images"
	ConfirmImage   = "POST /api/sessions/{id}/images/confirm"
	SessionPreview = "GET /api/sessions/{id}/preview"
	SaveArticle    = "POST /api/articles/{id}"
	ListArticles   = "GET /api/articles"
)

// Assets and streams
const (
	RobotsPath = "GET /robots.txt"
	Previews   = "GET /previews/{id}"
	PreviewCSS = "GET /api/preview.css"
	SSEPath    = "GET /sse"
)

// FormFile is the multipart field carrying an image upload.
const FormFile = "file"
