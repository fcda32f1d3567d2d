package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/blog-comb/app/fetch"
)

const wordpressListing = `<!DOCTYPE html>
<html>
<head><link rel="stylesheet" href="/wp-content/themes/blog/style.css"></head>
<body>
	<article class="post">
		<h1 class="entry-title"><a href="/2024/01/first-post/">First Post</a></h1>
		<time class="published" datetime="2024-01-15T10:00:00Z">January 15, 2024</time>
		<span class="author">Jane Doe</span>
		<div class="entry-content"><p>Hello world.</p><script>track()</script><p>Second paragraph.</p></div>
		<div class="tags"><a href="/tag/go">Go</a><a href="/tag/web">Web</a></div>
		<div class="categories"><a href="/category/dev">Dev</a></div>
	</article>
	<article class="post">
		<h1 class="entry-title">Draft without a link</h1>
	</article>
</body>
</html>`

func newTestClient() *fetch.Client {
	return fetch.NewClient(nil, "Test Agent", 5*time.Second)
}

func TestExtractPosts_WordPress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(wordpressListing))
	}))
	defer server.Close()

	extractor := NewExtractor(newTestClient())
	posts, err := extractor.ExtractPosts(context.Background(), server.URL+"/", server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(posts) != 1 {
		t.Fatalf("Expected 1 post, got: %d", len(posts))
	}

	p := posts[0]
	if p.URL != server.URL+"/2024/01/first-post/" {
		t.Errorf("Expected resolved post URL, got: %s", p.URL)
	}
	if p.Title != "First Post" {
		t.Errorf("Expected title 'First Post', got: %s", p.Title)
	}
	if p.Content != "Hello world.\nSecond paragraph." {
		t.Errorf("Expected script-free content joined by newlines, got: %q", p.Content)
	}
	if p.Author != "Jane Doe" {
		t.Errorf("Expected author 'Jane Doe', got: %s", p.Author)
	}
	if p.PublishedAt == nil || !p.PublishedAt.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected published date from datetime attribute, got: %v", p.PublishedAt)
	}
	if len(p.Tags) != 2 {
		t.Errorf("Expected 2 tags, got: %v", p.Tags)
	}
	if len(p.Categories) != 1 || p.Categories[0] != "Dev" {
		t.Errorf("Expected category Dev, got: %v", p.Categories)
	}
	if p.Metadata["platform"] != string(PlatformWordPress) {
		t.Errorf("Expected wordpress platform, got: %s", p.Metadata["platform"])
	}
}

func TestExtractPosts_StatusHandling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	extractor := NewExtractor(newTestClient())

	posts, err := extractor.ExtractPosts(context.Background(), server.URL+"/missing", server.URL)
	if err != nil {
		t.Errorf("Expected no error for 404, got: %v", err)
	}
	if posts != nil {
		t.Errorf("Expected no posts for 404, got: %v", posts)
	}

	if _, err := extractor.ExtractPosts(context.Background(), server.URL+"/broken", server.URL); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestExtractPosts_GenericFallbacks(t *testing.T) {
	page := `<html><body>
		<div class="article-card" data-url="/posts/data-url"><h2>From data attribute</h2><span class="date">2024-03-01</span></div>
		<article><a href="/posts/linked"></a></article>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	extractor := NewExtractor(newTestClient())
	posts, err := extractor.ExtractPosts(context.Background(), server.URL, server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	byURL := make(map[string]string)
	for _, p := range posts {
		byURL[p.URL] = p.Title
	}

	if title := byURL[server.URL+"/posts/data-url"]; title != "From data attribute" {
		t.Errorf("Expected post from data-url with heading title, got: %q", title)
	}
	if title := byURL[server.URL+"/posts/linked"]; title != "Untitled" {
		t.Errorf("Expected placeholder title for empty anchor, got: %q", title)
	}
}

func TestSubstackLinks(t *testing.T) {
	page := `<html><body>
		<a href="/p/first-post">First post</a>
		<a href="https://writer.substack.com/p/first-post">First post again</a>
		<div><h3>Second post</h3><a href="/p/second-post"><img src="x.png"></a></div>
		<a href="/about">About</a>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	posts := substackLinks(doc, "https://writer.substack.com")
	if len(posts) != 2 {
		t.Fatalf("Expected 2 deduplicated posts, got: %d", len(posts))
	}
	if posts[0].URL != "https://writer.substack.com/p/first-post" || posts[0].Title != "First post" {
		t.Errorf("Unexpected first post: %+v", posts[0])
	}
	if posts[1].Title != "Second post" {
		t.Errorf("Expected title from parent heading, got: %s", posts[1].Title)
	}
	if posts[1].Content != "" {
		t.Errorf("Expected no content, got: %s", posts[1].Content)
	}
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected Platform
	}{
		{"wordpress", `<html><link href="/wp-content/x.css"></html>`, PlatformWordPress},
		{"medium", `<html><div data-testid="post">x</div></html>`, PlatformMedium},
		{"substack anchors", `<html><script src="https://substack.com/x.js"></script><a href="/p/one">One</a></html>`, PlatformSubstack},
		{"substack preview", `<html><p>substack.com</p><div class="Post-Preview-Card">x</div></html>`, PlatformSubstack},
		{"substack mention", `<html><footer>Powered by Substack</footer></html>`, PlatformSubstack},
		{"ghost", `<html><meta name="generator" content="Ghost 5.0"></html>`, PlatformGhost},
		{"generic", `<html><body><article>Hello</article></body></html>`, PlatformGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if err != nil {
				t.Fatal(err)
			}
			if got := DetectPlatform(doc, tt.html); got != tt.expected {
				t.Errorf("Expected %s, got: %s", tt.expected, got)
			}
		})
	}
}

func TestSelectorsFallback(t *testing.T) {
	if Selectors(Platform("unknown")) != Selectors(PlatformGeneric) {
		t.Error("Unknown platform should use generic selectors")
	}
	if Selectors(PlatformGhost).Categories != "" {
		t.Error("Ghost selectors should have no categories")
	}
}
