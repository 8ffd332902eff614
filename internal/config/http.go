package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
	CTypeText = "text/plain; charset=utf-8"
)
