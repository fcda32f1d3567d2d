package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/post"
)

type fakePages struct {
	pages map[string][]post.Candidate
	calls []string
}

func (f *fakePages) ExtractPosts(ctx context.Context, pageURL, baseURL string) ([]post.Candidate, error) {
	f.calls = append(f.calls, pageURL)
	return f.pages[pageURL], nil
}

type denyPaths struct {
	prefix string
}

func (d denyPaths) Allowed(ctx context.Context, pageURL string) bool {
	return !strings.Contains(pageURL, d.prefix)
}

func candidates(urls ...string) []post.Candidate {
	result := make([]post.Candidate, 0, len(urls))
	for _, u := range urls {
		result = append(result, post.Candidate{Title: u, URL: u})
	}
	return result
}

func urlsOf(posts []post.Candidate) []string {
	result := make([]string, 0, len(posts))
	for _, p := range posts {
		result = append(result, p.URL)
	}
	return result
}

func newFrontPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body>
			<a href="/archive">Archive</a>
			<a class="pagination-next" href="/older">Older posts</a>
			<a href="/about">About</a>
		</body></html>`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCrawl_OrderAndDedup(t *testing.T) {
	server := newFrontPageServer(t)
	base := server.URL

	pages := &fakePages{pages: map[string][]post.Candidate{
		base:                candidates("https://blog.example/a", "https://blog.example/b"),
		base + "/archive":   candidates("https://blog.example/b/", "https://blog.example/c"),
		base + "/older":     candidates("https://blog.example/d"),
		base + "/page/2/":   candidates("https://blog.example/a", "https://blog.example/e"),
		base + "/page/10/":  candidates("https://blog.example/f"),
		base + "/page/11/":  candidates("https://blog.example/never"),
		base + "/unrelated": candidates("https://blog.example/never"),
	}}

	c := New(newTestClient(), pages, nil, Options{PaginationPages: 10})
	posts := c.Crawl(context.Background(), base+"/feed/", 0)

	expected := []string{
		"https://blog.example/a",
		"https://blog.example/b",
		"https://blog.example/c",
		"https://blog.example/d",
		"https://blog.example/e",
		"https://blog.example/f",
	}
	got := urlsOf(posts)
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected %v, got: %v", expected, got)
	}

	if len(pages.calls) != 12 {
		t.Errorf("Expected 12 page visits (front, 2 archives, 9 pagination), got: %d", len(pages.calls))
	}
	if pages.calls[0] != base {
		t.Errorf("Expected front page first, got: %s", pages.calls[0])
	}
}

func TestCrawl_StopsAtMaxPosts(t *testing.T) {
	server := newFrontPageServer(t)
	base := server.URL

	pages := &fakePages{pages: map[string][]post.Candidate{
		base:              candidates("https://blog.example/a", "https://blog.example/b", "https://blog.example/c"),
		base + "/archive": candidates("https://blog.example/d"),
	}}

	c := New(newTestClient(), pages, nil, Options{})
	posts := c.Crawl(context.Background(), base, 2)

	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts, got: %d", len(posts))
	}
	if len(pages.calls) != 1 {
		t.Errorf("Expected crawl to stop after the front page, got visits: %v", pages.calls)
	}
}

func TestCrawl_RespectsRobots(t *testing.T) {
	server := newFrontPageServer(t)
	base := server.URL

	pages := &fakePages{pages: map[string][]post.Candidate{}}

	c := New(newTestClient(), pages, nil, Options{Robots: denyPaths{prefix: "/page/"}})
	c.Crawl(context.Background(), base, 0)

	for _, call := range pages.calls {
		if strings.Contains(call, "/page/") {
			t.Errorf("Expected disallowed page to be skipped, visited: %s", call)
		}
	}
	if len(pages.calls) != 3 {
		t.Errorf("Expected 3 allowed visits, got: %v", pages.calls)
	}
}

func TestQuickCheck(t *testing.T) {
	base := "https://blog.example"

	tests := []struct {
		name          string
		knownCount    int
		maxPages      int
		expectedMore  bool
		expectedFound int
		expectedCalls int
	}{
		{"early return on first page", 1, 3, true, 2, 1},
		{"zero known", 0, 3, true, 2, 1},
		{"nothing extra", 5, 3, false, 3, 3},
		{"equal is not more", 3, 3, false, 3, 3},
		{"single page probe", 2, 1, false, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := &fakePages{pages: map[string][]post.Candidate{
				base:              candidates(base+"/a", base+"/b"),
				base + "/page/2/": candidates(base+"/b", base+"/c"),
			}}

			c := New(newTestClient(), pages, nil, Options{})
			hasMore, found := c.QuickCheck(context.Background(), base+"/", tt.knownCount, tt.maxPages)

			if hasMore != tt.expectedMore {
				t.Errorf("Expected hasMore=%v, got: %v", tt.expectedMore, hasMore)
			}
			if found != tt.expectedFound {
				t.Errorf("Expected found=%d, got: %d", tt.expectedFound, found)
			}
			if len(pages.calls) != tt.expectedCalls {
				t.Errorf("Expected %d page visits, got: %v", tt.expectedCalls, pages.calls)
			}
		})
	}
}

func TestQuickCheck_FreshStatePerCall(t *testing.T) {
	base := "https://blog.example"
	pages := &fakePages{pages: map[string][]post.Candidate{
		base: candidates(base + "/a"),
	}}

	c := New(newTestClient(), pages, nil, Options{})
	c.QuickCheck(context.Background(), base, 5, 1)
	_, found := c.QuickCheck(context.Background(), base, 5, 1)

	if found != 1 {
		t.Errorf("Expected second call to revisit the page, found: %d", found)
	}
	if len(pages.calls) != 2 {
		t.Errorf("Expected 2 visits across calls, got: %d", len(pages.calls))
	}
}

func TestNormalizeBlogURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/":         "https://example.com",
		"https://example.com/feed":     "https://example.com",
		"https://example.com/feed/":    "https://example.com",
		"https://example.com/blog/rss": "https://example.com/blog",
		"https://example.com/feedback": "https://example.com/feedback",
		"  https://example.com  ":      "https://example.com",
	}

	for input, expected := range tests {
		if got := normalizeBlogURL(input); got != expected {
			t.Errorf("normalizeBlogURL(%q): expected %q, got %q", input, expected, got)
		}
	}
}

type sitemapHint bool

func (h sitemapHint) UsesSitemap(string) bool { return bool(h) }

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Sitemap Article</title></head>
<body>
	<article>
		<h1>Sitemap Article</h1>
		<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
		<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
		<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
	</article>
</body>
</html>`

func TestCrawl_Sitemap(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>` + server.URL + `/sitemap-pages.xml</loc></sitemap>
	<sitemap><loc>` + server.URL + `/sitemap-posts.xml</loc></sitemap>
</sitemapindex>`))
	})
	mux.HandleFunc("/sitemap-pages.xml", func(w http.ResponseWriter, r *http.Request) {
		t.Error("Pages sitemap should not be fetched when a posts sitemap exists")
	})
	mux.HandleFunc("/sitemap-posts.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>` + server.URL + `/first/</loc><lastmod>2024-01-15</lastmod></url>
	<url><loc>` + server.URL + `/second/</loc></url>
	<url><loc>https://elsewhere.example/post/</loc></url>
</urlset>`))
	})
	mux.HandleFunc("/first/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	})
	mux.HandleFunc("/second/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	pages := &fakePages{}
	c := New(newTestClient(), pages, content.NewExtractor(), Options{Sitemaps: sitemapHint(true)})
	posts := c.Crawl(context.Background(), server.URL, 0)

	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts from sitemap, got: %d", len(posts))
	}
	if len(pages.calls) != 0 {
		t.Errorf("Expected sitemap to supersede the page crawl, got visits: %v", pages.calls)
	}

	first := posts[0]
	if first.URL != server.URL+"/first/" {
		t.Errorf("Unexpected first URL: %s", first.URL)
	}
	if first.Title == "Untitled" || first.Content == "" {
		t.Errorf("Expected article title and content, got: %+v", first)
	}
	if first.Metadata["source"] != "sitemap" {
		t.Errorf("Expected sitemap source, got: %s", first.Metadata["source"])
	}

	second := posts[1]
	if second.Title != "Untitled" || second.Content != "" {
		t.Errorf("Expected unreadable post kept without content, got: %+v", second)
	}
}

func TestCrawl_SitemapMissingFallsBackToPages(t *testing.T) {
	server := newFrontPageServer(t)
	base := server.URL

	pages := &fakePages{pages: map[string][]post.Candidate{
		base: candidates("https://blog.example/a"),
	}}

	c := New(newTestClient(), pages, content.NewExtractor(), Options{Sitemaps: sitemapHint(true), PaginationPages: 1})
	posts := c.Crawl(context.Background(), base, 0)

	if len(posts) != 1 {
		t.Errorf("Expected page crawl after missing sitemap, got: %v", urlsOf(posts))
	}
}

func TestParseSitemapEntries(t *testing.T) {
	entries, err := parseSitemap([]byte(`<urlset><url><loc> https://example.com/a </loc><lastmod>2024-02-01T08:00:00Z</lastmod></url><url><loc>https://example.com/</loc><lastmod>bogus</lastmod></url></urlset>`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}
	if entries[0].Loc != "https://example.com/a" || entries[0].LastMod == nil {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[1].LastMod != nil {
		t.Errorf("Expected unparseable lastmod to be dropped, got: %v", entries[1].LastMod)
	}

	filtered := filterPostEntries("https://example.com", entries)
	if len(filtered) != 1 {
		t.Errorf("Expected blog root to be filtered out, got: %+v", filtered)
	}

	substack := filterPostEntries("https://writer.substack.com", []sitemapEntry{
		{Loc: "https://writer.substack.com/p/post"},
		{Loc: "https://writer.substack.com/about"},
	})
	if len(substack) != 1 {
		t.Errorf("Expected only /p/ entries for substack, got: %+v", substack)
	}

	if _, err := parseSitemapIndex([]byte(`not xml`)); err == nil {
		t.Error("Expected error for invalid sitemap index")
	}
}
