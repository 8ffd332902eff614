package insert

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/document"
)

const youtubeEmbedBase = "https://www.youtube.com/embed/"

var youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// VideoTarget is what a video URL embeds.
type VideoTarget struct {
	ID       string
	Playlist bool
}

func (v VideoTarget) EmbedURL() string {
	if v.Playlist {
		return youtubeEmbedBase + "videoseries?list=" + url.QueryEscape(v.ID)
	}
	return youtubeEmbedBase + v.ID
}

func youtubeHost(host string) (short, ok bool) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, p := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, p)
	}
	switch host {
	case "youtu.be":
		return true, true
	case "youtube.com", "youtube-nocookie.com":
		return false, true
	}
	return false, false
}

// ParseVideoURL recognizes YouTube watch, short, embed, shorts and live
// URLs. A list parameter makes it a playlist embed.
func ParseVideoURL(raw string) (VideoTarget, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return VideoTarget{}, false
	}
	short, ok := youtubeHost(u.Hostname())
	if !ok {
		return VideoTarget{}, false
	}

	q := u.Query()
	if list := q.Get("list"); youtubeID.MatchString(list) {
		return VideoTarget{ID: list, Playlist: true}, true
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	var id string
	switch {
	case short:
		id = segs[0]
	case len(segs) == 1 && segs[0] == "watch":
		id = q.Get("v")
	case len(segs) == 2 && (segs[0] == "embed" || segs[0] == "shorts" || segs[0] == "live" || segs[0] == "v"):
		id = segs[1]
	}
	if id == "videoseries" || !youtubeID.MatchString(id) {
		return VideoTarget{}, false
	}
	return VideoTarget{ID: id}, true
}

type VideoEmbed struct {
	SourceURL string `json:"source_url" validate:"notblank"`
}

func (VideoEmbed) Kind() Kind { return KindVideo }

func (r VideoEmbed) Validate() error {
	if err := check(KindVideo, r, map[string]string{"SourceURL": config.ErrVideoURLRequired}); err != nil {
		return err
	}
	if _, ok := ParseVideoURL(r.SourceURL); !ok {
		return invalid(KindVideo, "SourceURL", config.ErrVideoURLUnsupported)
	}
	return nil
}

func (r VideoEmbed) Build() (*document.Fragment, error) {
	target, ok := ParseVideoURL(r.SourceURL)
	if !ok {
		return nil, invalid(KindVideo, "SourceURL", config.ErrVideoURLUnsupported)
	}
	f := document.NewFragment()
	f.Add(document.KindVideoEmbed).SetAttr(document.AttrSrc, target.EmbedURL())
	return f, nil
}
