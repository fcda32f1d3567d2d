package blog

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/blog-comb/app/cfg"
	"github.com/lysyi3m/blog-comb/app/database"
)

func setupTestConfig(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "8080")
	t.Setenv("BASE_URL", "")

	if _, err := cfg.LoadArgs([]string{}); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
}

func TestGenerateRSS(t *testing.T) {
	setupTestConfig(t)
	generator := NewGenerator()

	blog := database.Blog{
		ID:   7,
		Name: "Example Blog",
		URL:  "https://example.com",
	}

	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	created := time.Date(2023, 7, 5, 8, 0, 0, 0, time.UTC)

	posts := []database.Post{
		{
			ID:          1,
			BlogID:      7,
			URL:         "https://example.com/first",
			Title:       "First Post",
			Content:     "Full text of the first post",
			PublishedAt: &published,
			Author:      "Jane Doe",
			Tags:        database.StringList{"Go"},
			Categories:  database.StringList{"Programming"},
			Metadata:    database.Metadata{"id": "post-1", "summary": "Short summary"},
		},
		{
			ID:        2,
			BlogID:    7,
			URL:       "https://example.com/second",
			Title:     "Second & Last",
			CreatedAt: created,
		},
	}

	rss, err := generator.Run(blog, posts)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		`xmlns:content="http://purl.org/rss/1.0/modules/content/"`,
		"<title>Example Blog</title>",
		"<link>https://example.com</link>",
		"<description>Posts collected from https://example.com</description>",
		`<atom:link href="http://localhost:8080/blogs/7/feed" rel="self" type="application/rss+xml" />`,
		"<lastBuildDate>Mon, 03 Jul 2023 10:00:00 +0000</lastBuildDate>",
		`<guid isPermaLink="false">post-1</guid>`,
		"<description>Short summary</description>",
		"<content:encoded><![CDATA[Full text of the first post]]></content:encoded>",
		"<author>Jane Doe</author>",
		"<category>Go</category>",
		"<category>Programming</category>",
		"<pubDate>Mon, 03 Jul 2023 10:00:00 +0000</pubDate>",
		`<guid isPermaLink="true">https://example.com/second</guid>`,
		"<title>Second &amp; Last</title>",
		"<description>No description available</description>",
		"<pubDate>Wed, 05 Jul 2023 08:00:00 +0000</pubDate>",
	}

	for _, want := range expected {
		if !strings.Contains(rss, want) {
			t.Errorf("RSS should contain %s", want)
		}
	}

	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got %d", strings.Count(rss, "<item>"))
	}
}

func TestGenerateRSS_BaseURLAndExcerpt(t *testing.T) {
	t.Setenv("BASE_URL", "https://blogs.example.com/")
	if _, err := cfg.LoadArgs([]string{}); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	generator := NewGenerator()

	long := strings.Repeat("word ", 100)
	posts := []database.Post{{
		URL:       "https://example.com/long",
		Title:     "Long",
		Content:   long,
		CreatedAt: time.Now(),
	}}

	rss, err := generator.Run(database.Blog{ID: 3, Name: "B", URL: "https://example.com"}, posts)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, `<atom:link href="https://blogs.example.com/blogs/3/feed"`) {
		t.Error("RSS should use BASE_URL for the self link")
	}
	if !strings.Contains(rss, "…</description>") {
		t.Error("Long content should be truncated into an excerpt")
	}
	if !strings.Contains(rss, "<content:encoded>") {
		t.Error("Full content should be kept when the description is an excerpt")
	}
}

func TestGenerateRSS_EmptyBlog(t *testing.T) {
	setupTestConfig(t)
	generator := NewGenerator()

	rss, err := generator.Run(database.Blog{ID: 1, Name: "Empty", URL: "https://empty.example"}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(rss, "<item>") {
		t.Error("Empty blog should produce no items")
	}
	if !strings.HasSuffix(rss, "</channel>\n</rss>") {
		t.Error("RSS should be closed properly")
	}
}
