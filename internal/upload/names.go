package upload

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen   = 80
	fallbackSlug = "image"
)

// Suggester proposes filenames by cycling through keyword synonyms, one per
// upload, for the lifetime of an editor session.
type Suggester struct {
	mu       sync.Mutex
	keywords []string
	next     int
}

func NewSuggester(synonyms string) *Suggester {
	s := &Suggester{}
	s.SetKeywords(synonyms)
	return s
}

// SetKeywords replaces the comma separated synonyms and restarts the cycle.
func (s *Suggester) SetKeywords(synonyms string) {
	var kw []string
	for _, k := range strings.Split(synonyms, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}
	s.mu.Lock()
	s.keywords = kw
	s.next = 0
	s.mu.Unlock()
}

// Suggest returns the next keyword and moves the cycle on, or the stem of
// original when there are no keywords.
func (s *Suggester) Suggest(original string) string {
	k := s.Peek(original)
	s.Advance()
	return k
}

// Peek is Suggest without moving the cycle.
func (s *Suggester) Peek(original string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keywords) == 0 {
		return Stem(original)
	}
	return s.keywords[s.next%len(s.keywords)]
}

// Advance moves the cycle to the next keyword. The pipeline calls it once
// per completed upload.
func (s *Suggester) Advance() {
	s.mu.Lock()
	s.next++
	s.mu.Unlock()
}

// Stem is the file name without directory and extension.
func Stem(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, folds accents and joins the remaining ASCII letters
// and digits with single dashes.
func Slugify(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// ObjectPath is where an upload is stored: {prefix}/{slug}-{unix millis}.{ext}.
func ObjectPath(prefix, slug string, t time.Time, ext string) string {
	name := slug + "-" + strconv.FormatInt(t.UnixMilli(), 10) + "." + strings.TrimPrefix(ext, ".")
	if prefix = strings.Trim(prefix, "/"); prefix == "" {
		return name
	}
	return prefix + "/" + name
}
