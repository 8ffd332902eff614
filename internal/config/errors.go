package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Config errors
	ErrCreateTempFileFmt = "Failed to create temp file: %v"

	// Article processing errors
	ErrInitializingArticles = "Error initializing articles"
	ErrReloadingArticles    = "Error reloading articles"

	// HTTP errors
	ErrInternalServerError = "Internal server error"
	ErrSessionNotFound     = "Editor session not found"
	ErrInvalidRequestBody  = "Invalid request body"

	// Insertion errors
	ErrImageURLRequired     = "An image URL is required"
	ErrImageSize            = "Image size must be small, medium or large"
	ErrUnsafeURL            = "Only http, https, mailto and tel links are allowed"
	ErrLinkURLRequired      = "A link URL is required"
	ErrTableRows            = "Tables need between 1 and 50 rows"
	ErrTableColumns         = "Tables need between 1 and 20 columns"
	ErrVideoURLRequired     = "A video URL is required"
	ErrVideoURLUnsupported  = "Only YouTube video, short, embed and playlist URLs can be embedded"
	ErrPromptRequired       = "Prompt content is required"
	ErrSocialInputRequired  = "Paste an embed code or a post URL"
	ErrSocialURLUnsupported = "Only Twitter/X, Instagram and TikTok post URLs can be embedded"
	ErrSocialURLNoID        = "The post URL does not contain a post id"
	ErrInsertFailed         = "The content could not be inserted"

	// Upload errors
	ErrCompressImage  = "The image could not be compressed"
	ErrUploadImage    = "The image could not be uploaded, try again"
	ErrUploadPending  = "The image is already being uploaded"
	ErrNoPendingImage = "There is no image waiting to be inserted"

	// Notifications
	MsgInvalidInput     = "Check the dialog fields"
	MsgCompressingImage = "Compressing image"
	MsgImageUploaded    = "Image uploaded"
	MsgImageInserted    = "Image inserted"
)
