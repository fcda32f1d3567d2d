package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/fetch"
	"github.com/lysyi3m/blog-comb/app/post"
)

// maxArchiveLinks bounds how many archive or pagination links are followed
// from the blog's front page.
const maxArchiveLinks = 5

type Crawler struct {
	client   Fetcher
	pages    PageExtractor
	articles *content.Extractor
	opts     Options
}

func New(client Fetcher, pages PageExtractor, articles *content.Extractor, opts Options) *Crawler {
	if opts.PaginationPages == 0 {
		opts.PaginationPages = DefaultOptions().PaginationPages
	}
	return &Crawler{
		client:   client,
		pages:    pages,
		articles: articles,
		opts:     opts,
	}
}

// run is the state of one top-level Crawl or QuickCheck call.
type run struct {
	c       *Crawler
	visited map[string]struct{}
	pacer   *fetch.Pacer
}

func (c *Crawler) newRun() *run {
	return &run{
		c:       c,
		visited: make(map[string]struct{}),
		pacer:   fetch.NewPacer(c.opts.Delay),
	}
}

// Crawl gathers up to maxPosts posts of the blog. maxPosts <= 0 means no limit.
// Sitemap enumeration and the rendering tool are tried first for platforms that
// support them; the generic page walk covers everything else.
func (c *Crawler) Crawl(ctx context.Context, blogURL string, maxPosts int) []post.Candidate {
	base := normalizeBlogURL(blogURL)
	r := c.newRun()

	if c.usesSitemap(base) {
		if posts := r.collectSitemap(ctx, base, maxPosts); len(posts) > 0 {
			slog.Info("Crawled posts from sitemap", "blog", base, "count", len(posts))
			return posts
		}
	}

	if c.opts.Browser != nil && post.HostMatches(base, "substack.com") {
		if posts := c.opts.Browser.Collect(ctx, base, maxPosts); len(posts) > 0 {
			slog.Info("Crawled posts with rendering tool", "blog", base, "count", len(posts))
			return posts
		}
	}

	urls := []string{base}
	urls = append(urls, r.discoverArchivePages(ctx, base)...)
	for page := 2; page <= c.opts.PaginationPages; page++ {
		urls = append(urls, fmt.Sprintf("%s/page/%d/", base, page))
	}

	acc := newAccumulator(maxPosts)
	for _, pageURL := range urls {
		if acc.full() || ctx.Err() != nil {
			break
		}
		for _, p := range r.extract(ctx, pageURL, base) {
			acc.add(p)
			if acc.full() {
				break
			}
		}
	}

	slog.Info("Crawled posts", "blog", base, "count", acc.len(), "pages", len(r.visited))
	return acc.posts
}

// QuickCheck visits the blog's front page and its first synthetic pagination
// pages, reporting whether more than knownCount distinct posts are listed.
func (c *Crawler) QuickCheck(ctx context.Context, blogURL string, knownCount int, maxPagesToCheck int) (bool, int) {
	base := normalizeBlogURL(blogURL)
	r := c.newRun()

	urls := []string{base}
	for page := 2; page <= maxPagesToCheck; page++ {
		urls = append(urls, fmt.Sprintf("%s/page/%d/", base, page))
	}

	acc := newAccumulator(0)
	for _, pageURL := range urls {
		if ctx.Err() != nil {
			break
		}
		for _, p := range r.extract(ctx, pageURL, base) {
			acc.add(p)
		}
		if acc.len() > knownCount {
			slog.Info("Quick check found more posts than the feed", "blog", base, "found", acc.len(), "known", knownCount)
			return true, acc.len()
		}
	}

	slog.Info("Quick check completed", "blog", base, "found", acc.len(), "known", knownCount)
	return acc.len() > knownCount, acc.len()
}

func (c *Crawler) usesSitemap(base string) bool {
	if post.HostMatches(base, "substack.com") || post.HostMatches(base, "ghost.io") {
		return true
	}
	return c.opts.Sitemaps != nil && c.opts.Sitemaps.UsesSitemap(base)
}

// extract runs the page extractor once per page URL of this run.
func (r *run) extract(ctx context.Context, pageURL, baseURL string) []post.Candidate {
	if _, ok := r.visited[pageURL]; ok {
		return nil
	}
	r.visited[pageURL] = struct{}{}

	if r.c.opts.Robots != nil && !r.c.opts.Robots.Allowed(ctx, pageURL) {
		slog.Debug("Page disallowed by robots.txt", "page", pageURL)
		return nil
	}

	if err := r.pacer.Wait(ctx); err != nil {
		return nil
	}

	posts, err := r.c.pages.ExtractPosts(ctx, pageURL, baseURL)
	if err != nil {
		slog.Warn("Failed to extract posts from page", "page", pageURL, "error", err)
		return nil
	}
	return posts
}

// discoverArchivePages returns links from the front page that look like
// archive or pagination pages.
func (r *run) discoverArchivePages(ctx context.Context, base string) []string {
	if err := r.pacer.Wait(ctx); err != nil {
		return nil
	}

	resp, err := r.c.client.Get(ctx, base)
	if err != nil || !resp.OK() {
		slog.Debug("Archive discovery skipped", "blog", base, "error", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		class, _ := a.Attr("class")
		lowerHref := strings.ToLower(href)
		lowerClass := strings.ToLower(class)

		if !strings.Contains(lowerHref, "archive") && !strings.Contains(lowerHref, "page") &&
			!strings.Contains(lowerClass, "archive") && !strings.Contains(lowerClass, "pagination") {
			return true
		}

		full := post.Resolve(base, href)
		if full == "" {
			return true
		}
		if _, ok := seen[full]; !ok {
			seen[full] = struct{}{}
			links = append(links, full)
		}
		return len(links) < maxArchiveLinks
	})

	return links
}

// normalizeBlogURL strips a trailing slash and a trailing /rss or /feed.
func normalizeBlogURL(blogURL string) string {
	u := strings.TrimRight(strings.TrimSpace(blogURL), "/")
	for _, suffix := range []string{"/rss", "/feed"} {
		if strings.HasSuffix(u, suffix) {
			u = strings.TrimRight(strings.TrimSuffix(u, suffix), "/")
			break
		}
	}
	return u
}

// accumulator keeps the first occurrence of every post URL.
type accumulator struct {
	limit int
	seen  post.KeySet
	posts []post.Candidate
}

func newAccumulator(limit int) *accumulator {
	return &accumulator{limit: limit, seen: make(post.KeySet)}
}

func (a *accumulator) add(c post.Candidate) bool {
	if c.URL == "" || a.seen.Has(c.URL) {
		return false
	}
	a.seen.Add(c.URL)
	a.posts = append(a.posts, c)
	return true
}

func (a *accumulator) full() bool {
	return a.limit > 0 && len(a.posts) >= a.limit
}

func (a *accumulator) len() int {
	return len(a.posts)
}
