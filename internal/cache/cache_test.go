package cache

import (
	"fmt"
	"html/template"
	"sync"
	"testing"
)

func TestCacheBasicOperations(t *testing.T) {
	c := NewCache[string, int]()

	t.Run("Set and Get", func(t *testing.T) {
		c.Set("a", 1)
		if v, ok := c.Get("a"); !ok || v != 1 {
			t.Errorf("Expected (1, true), got (%d, %v)", v, ok)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		if _, ok := c.Get("missing"); ok {
			t.Error("Expected missing key to be absent")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Delete("a")
		c.Delete("never-there")
		if _, ok := c.Get("a"); ok {
			t.Error("Expected deleted key to be absent")
		}
	})

	t.Run("SetTo replaces existing items", func(t *testing.T) {
		c.Set("old", 1)
		c.SetTo(map[string]int{"x": 10, "y": 20})
		if _, ok := c.Get("old"); ok {
			t.Error("Expected old key to be replaced")
		}
		if c.Len() != 2 {
			t.Errorf("Expected 2 items, got %d", c.Len())
		}
	})

	t.Run("Clear", func(t *testing.T) {
		c.Clear()
		if c.Len() != 0 {
			t.Errorf("Expected empty cache, got %d items", c.Len())
		}
	})
}

func TestCacheConcurrency(t *testing.T) {
	c := NewCache[string, int]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(fmt.Sprintf("key-%d", i), i)
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("key-%d", i))
		}(i)
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Errorf("Expected 50 items, got %d", c.Len())
	}
}

func TestRenderedMarkdownCache(t *testing.T) {
	ClearRenderedMarkdownCache()

	t.Run("Entries are keyed by hash and theme", func(t *testing.T) {
		SetRenderedMarkdown("hash", "gruvbox", []byte("<p>dark</p>"), "extra")
		SetRenderedMarkdown("hash", "github", []byte("<p>light</p>"), nil)

		dark, ok := GetRenderedMarkdown("hash", "gruvbox")
		if !ok || string(dark.HTML) != "<p>dark</p>" || dark.Extra != "extra" {
			t.Errorf("Unexpected dark entry %+v", dark)
		}
		light, ok := GetRenderedMarkdown("hash", "github")
		if !ok || string(light.HTML) != "<p>light</p>" {
			t.Errorf("Unexpected light entry %+v", light)
		}
	})

	t.Run("Capacity is bounded", func(t *testing.T) {
		ClearRenderedMarkdownCache()
		for i := range RenderedCapacity + 10 {
			SetRenderedMarkdown(fmt.Sprintf("hash-%d", i), "gruvbox", nil, nil)
		}
		if n := RenderedMarkdownLen(); n != RenderedCapacity {
			t.Errorf("Expected %d entries, got %d", RenderedCapacity, n)
		}
		if _, ok := GetRenderedMarkdown("hash-0", "gruvbox"); ok {
			t.Error("Expected the oldest preview to be evicted")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		ClearRenderedMarkdownCache()
		if _, ok := GetRenderedMarkdown("hash", "github"); ok {
			t.Error("Expected cache to be empty after clear")
		}
	})
}

func TestSyntaxCSSCache(t *testing.T) {
	builds := 0
	build := func() template.CSS {
		builds++
		return template.CSS(".chroma{}")
	}
	for range 3 {
		if css := SyntaxCSS("test-style", build); css != ".chroma{}" {
			t.Errorf("Unexpected syntax css %q", css)
		}
	}
	if builds != 1 {
		t.Errorf("Expected one build, got %d", builds)
	}
}
