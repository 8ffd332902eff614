package config

const (
	// PreviewsUrlPath serves image previews that have not been uploaded yet.
	PreviewsUrlPath = "/previews/"

	ArticleExt = ".md"
)
