// Package util hashes stored content and reads the TOML front matter that
// articles carry between %%% delimiters.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"

	"github.com/mmarkdown/mmark/v2/mast"
)

const frontMatterDelimiter = "%%%"

var ErrNoFrontMatter = errors.New("no front matter")

// ExtendedTitleData is the decoded front matter: mmark's title block, whose
// keywords seed the upload filename suggestions.
type ExtendedTitleData struct {
	*mast.TitleData
}

// ContentHash identifies stored content. Two saves with the same hash did
// not change anything.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// GetFrontMatter decodes the front matter at the top of md. It fails with
// ErrNoFrontMatter when there is none.
func GetFrontMatter(md []byte) (*ExtendedTitleData, error) {
	front, _ := SplitFrontMatter(string(md))
	if strings.TrimSpace(front) == "" {
		return nil, ErrNoFrontMatter
	}

	info := &ExtendedTitleData{TitleData: &mast.TitleData{}}
	if _, err := toml.Decode(front, info.TitleData); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}
	if info.Language == "" {
		info.Language = "en"
	}
	return info, nil
}

// SplitFrontMatter separates a leading %%% front matter block from the body
// without decoding it. The returned front matter excludes the delimiters.
func SplitFrontMatter(md string) (front, body string) {
	md = string(markdown.NormalizeNewlines([]byte(md)))
	trimmed := strings.TrimLeft(md, "\n \t")

	if !strings.HasPrefix(trimmed, frontMatterDelimiter+"\n") {
		return "", md
	}
	rest := trimmed[len(frontMatterDelimiter)+1:]
	end := strings.Index("\n"+rest, "\n"+frontMatterDelimiter)
	if end == -1 {
		return "", md
	}
	front = strings.Trim(rest[:end], "\n")
	body = rest[end+len(frontMatterDelimiter):]
	return front, strings.TrimLeft(body, "\n")
}
