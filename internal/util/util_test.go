package util

import (
	"errors"
	"testing"
	"time"
)

func TestGetFrontMatter(t *testing.T) {
	testCases := []struct {
		name             string
		markdown         string
		expectErr        error
		expectedTitle    string
		expectedDate     time.Time
		expectedKeywords int
	}{
		{
			name:             "Story with keywords",
			markdown:         "%%%\ntitle = \"Harbour reopens\"\ndate = 2025-01-01T00:00:00Z\nkeyword = [\"harbour\", \"port\"]\n%%%\n# Harbour",
			expectedTitle:    "Harbour reopens",
			expectedDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			expectedKeywords: 2,
		},
		{
			name:          "Blank lines around the block",
			markdown:      "\n\n%%%\n\ntitle = \"Budget vote\"\n\n%%%\nText",
			expectedTitle: "Budget vote",
		},
		{
			name:      "Plain article",
			markdown:  "# Just a story\nNo front matter here.",
			expectErr: ErrNoFrontMatter,
		},
		{
			name:      "Empty article",
			markdown:  "",
			expectErr: ErrNoFrontMatter,
		},
		{
			name:      "Block after the heading",
			markdown:  "# Heading\n%%%\ntitle = \"x\"\n%%%\n",
			expectErr: ErrNoFrontMatter,
		},
		{
			name:      "Unterminated block",
			markdown:  "%%%\ntitle = \"Incomplete\n# Content",
			expectErr: ErrNoFrontMatter,
		},
		{
			name:      "Delimiters on one line",
			markdown:  "%%% %%%",
			expectErr: ErrNoFrontMatter,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := GetFrontMatter([]byte(tc.markdown))
			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("Expected %v, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if info.Title != tc.expectedTitle {
				t.Errorf("Expected title %q, got %q", tc.expectedTitle, info.Title)
			}
			if !info.Date.Equal(tc.expectedDate) {
				t.Errorf("Expected date %v, got %v", tc.expectedDate, info.Date)
			}
			if len(info.Keyword) != tc.expectedKeywords {
				t.Errorf("Expected %d keywords, got %v", tc.expectedKeywords, info.Keyword)
			}
			if info.Language != "en" {
				t.Errorf("Expected default language en, got %q", info.Language)
			}
		})
	}
}

func TestGetFrontMatterInvalidTOML(t *testing.T) {
	_, err := GetFrontMatter([]byte("%%%\ntitle = \n%%%\nText"))
	if err == nil || errors.Is(err, ErrNoFrontMatter) {
		t.Errorf("Expected a decode error, got %v", err)
	}
}

func TestSplitFrontMatter(t *testing.T) {
	testCases := []struct {
		name          string
		markdown      string
		expectedFront string
		expectedBody  string
	}{
		{
			name:          "With front matter",
			markdown:      "%%%\ntitle = \"Harbour\"\n%%%\n\n# Body\n",
			expectedFront: `title = "Harbour"`,
			expectedBody:  "# Body\n",
		},
		{
			name:         "Without front matter",
			markdown:     "# Body",
			expectedBody: "# Body",
		},
		{
			name:         "Unterminated front matter",
			markdown:     "%%%\ntitle = \"x\"\n# Body",
			expectedBody: "%%%\ntitle = \"x\"\n# Body",
		},
		{
			name:          "Windows newlines",
			markdown:      "%%%\r\ntitle = \"x\"\r\n%%%\r\nText",
			expectedFront: `title = "x"`,
			expectedBody:  "Text",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			front, body := SplitFrontMatter(tc.markdown)
			if front != tc.expectedFront {
				t.Errorf("Expected front matter %q, got %q", tc.expectedFront, front)
			}
			if body != tc.expectedBody {
				t.Errorf("Expected body %q, got %q", tc.expectedBody, body)
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("Boats at dawn"))
	if a != ContentHash([]byte("Boats at dawn")) {
		t.Error("Expected the same content to hash the same")
	}
	if a == ContentHash([]byte("Boats at dusk")) {
		t.Error("Expected different content to hash differently")
	}
	if len(a) != 64 {
		t.Errorf("Expected a hex sha256, got %q", a)
	}
}
