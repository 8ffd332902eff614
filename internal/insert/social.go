package insert

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
)

const (
	PlatformTwitter   = "twitter"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformGeneric   = "generic"
)

// SocialPost is a post recognized from a URL or from pasted embed markup.
type SocialPost struct {
	Platform string
	ID       string
	URL      string
	// Raw is the embed markup, either pasted or generated from the URL.
	Raw string
}

var (
	markupTag     = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	twitterPath   = regexp.MustCompile(`^/(?:[A-Za-z0-9_]{1,15}|i(?:/web)?)/status(?:es)?/(\d{1,25})(?:/|$)`)
	instagramPath = regexp.MustCompile(`^/(?:[A-Za-z0-9_.]+/)?(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)(?:/|$)`)
	tiktokPath    = regexp.MustCompile(`^/@[A-Za-z0-9_.-]+/video/(\d{1,25})(?:/|$)`)
	tiktokShort   = regexp.MustCompile(`^/([A-Za-z0-9]+)/?$`)
	markupStatus  = regexp.MustCompile(`(?:twitter|x)\.com/[A-Za-z0-9_]+/status/(\d+)`)
)

func hostPlatform(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "mobile.")
	host = strings.TrimPrefix(host, "m.")
	switch host {
	case "twitter.com", "x.com":
		return PlatformTwitter
	case "instagram.com", "instagr.am":
		return PlatformInstagram
	case "tiktok.com", "vm.tiktok.com":
		return PlatformTikTok
	}
	return ""
}

// IsMarkup reports whether s looks like pasted embed code rather than a URL.
func IsMarkup(s string) bool {
	return markupTag.MatchString(s)
}

// ParseSocialURL extracts the platform and post id from a post URL. The
// message explains the rejection.
func ParseSocialURL(raw string) (SocialPost, string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return SocialPost{}, config.ErrSocialURLUnsupported, false
	}
	platform := hostPlatform(u.Hostname())
	var m []string
	switch platform {
	case PlatformTwitter:
		m = twitterPath.FindStringSubmatch(u.Path)
	case PlatformInstagram:
		m = instagramPath.FindStringSubmatch(u.Path)
	case PlatformTikTok:
		if m = tiktokPath.FindStringSubmatch(u.Path); m == nil && strings.HasPrefix(strings.ToLower(u.Hostname()), "vm.") {
			m = tiktokShort.FindStringSubmatch(u.Path)
		}
	default:
		return SocialPost{}, config.ErrSocialURLUnsupported, false
	}
	if m == nil {
		return SocialPost{}, config.ErrSocialURLNoID, false
	}
	clean := url.URL{Scheme: "https", Host: u.Host, Path: u.Path}
	post := SocialPost{Platform: platform, ID: m[1], URL: clean.String()}
	post.Raw = embedMarkup(post)
	return post, "", true
}

func embedMarkup(p SocialPost) string {
	u := html.EscapeString(p.URL)
	switch p.Platform {
	case PlatformTwitter:
		return `<blockquote class="twitter-tweet" data-dnt="true"><a href="https://twitter.com/i/status/` + p.ID + `">View post ` + p.ID + ` on X</a></blockquote>`
	case PlatformInstagram:
		return `<blockquote class="instagram-media" data-instgrm-permalink="` + u + `" data-instgrm-version="14"><a href="` + u + `">View this post on Instagram</a></blockquote>`
	case PlatformTikTok:
		return `<blockquote class="tiktok-embed" cite="` + u + `" data-video-id="` + p.ID + `"><section><a href="` + u + `">View this video on TikTok</a></section></blockquote>`
	}
	return ""
}

// SniffMarkup tags pasted embed code with the platform it targets.
func SniffMarkup(raw string) SocialPost {
	lower := strings.ToLower(raw)
	post := SocialPost{Platform: PlatformGeneric, Raw: convert.TidyEmbed(strings.TrimSpace(raw))}
	switch {
	case strings.Contains(lower, "twitter-tweet"), strings.Contains(lower, "twitter.com"), strings.Contains(lower, "x.com/"):
		post.Platform = PlatformTwitter
		if m := markupStatus.FindStringSubmatch(raw); m != nil {
			post.ID = m[1]
		}
	case strings.Contains(lower, "instagram"):
		post.Platform = PlatformInstagram
	case strings.Contains(lower, "tiktok"):
		post.Platform = PlatformTikTok
	}
	return post
}

// SocialEmbed accepts either embed markup, passed through, or a bare post URL.
type SocialEmbed struct {
	Input string `json:"input" validate:"notblank"`
}

func (SocialEmbed) Kind() Kind { return KindSocial }

func (r SocialEmbed) Validate() error {
	_, err := r.post()
	return err
}

func (r SocialEmbed) post() (SocialPost, error) {
	if err := check(KindSocial, r, map[string]string{"Input": config.ErrSocialInputRequired}); err != nil {
		return SocialPost{}, err
	}
	if IsMarkup(r.Input) {
		return SniffMarkup(r.Input), nil
	}
	post, msg, ok := ParseSocialURL(r.Input)
	if !ok {
		return SocialPost{}, invalid(KindSocial, "Input", msg)
	}
	return post, nil
}

func (r SocialEmbed) Build() (*document.Fragment, error) {
	post, err := r.post()
	if err != nil {
		return nil, err
	}
	f := document.NewFragment()
	n := f.Add(document.KindSocialEmbed)
	n.SetAttr(document.AttrPlatform, post.Platform)
	n.SetAttr(document.AttrURL, post.URL)
	n.SetAttr(document.AttrEmbedID, post.ID)
	n.SetAttr(document.AttrRaw, post.Raw)
	return f, nil
}
