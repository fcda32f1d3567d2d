package collector

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/database"
	"github.com/lysyi3m/blog-comb/app/post"
)

// feedSuffixes mark a URL that already points at a feed and needs no discovery.
var feedSuffixes = []string{".xml", ".rss", ".atom", "/feed", "/rss"}

type Collector struct {
	feeds    FeedSource
	crawler  SiteCrawler
	blogRepo database.BlogRepository
	postRepo database.PostRepository
	filterer *blog.Filterer
	filters  FilterSource
	opts     Options
}

func New(
	feeds FeedSource,
	crawler SiteCrawler,
	blogRepo database.BlogRepository,
	postRepo database.PostRepository,
	filters FilterSource,
	opts Options,
) *Collector {
	if opts.QuickCheckPages <= 0 {
		opts.QuickCheckPages = DefaultOptions().QuickCheckPages
	}
	return &Collector{
		feeds:    feeds,
		crawler:  crawler,
		blogRepo: blogRepo,
		postRepo: postRepo,
		filterer: blog.NewFilterer(),
		filters:  filters,
		opts:     opts,
	}
}

// Collect gathers every post of a blog and stores it, creating the blog on
// first success. It returns ErrNoPosts, and stores nothing, when no method
// produced a post.
func (c *Collector) Collect(ctx context.Context, req Request) (int64, error) {
	blogURL := strings.TrimSpace(req.URL)
	if blogURL == "" {
		return 0, fmt.Errorf("blog URL is required")
	}

	method := cmp.Or(req.Method, blog.MethodAuto)
	slog.Info("Collecting blog", "url", blogURL, "method", method)

	var feedURL string
	switch method {
	case blog.MethodAuto, blog.MethodRSS:
		if isFeedURL(blogURL) {
			// The site is only known once the feed declares its link.
			method, feedURL, blogURL = database.MethodRSS, blogURL, ""
			break
		}
		if discovered, ok := c.feeds.Discover(ctx, blogURL); ok {
			method, feedURL = database.MethodRSS, discovered
		} else if method == blog.MethodAuto {
			method = database.MethodCrawler
		}
	case blog.MethodCrawler:
	default:
		return 0, fmt.Errorf("unknown collection method: %s", method)
	}

	var candidates []post.Candidate
	if method == database.MethodRSS {
		candidates, blogURL = c.hybrid(ctx, blogURL, feedURL)
		if len(candidates) == 0 {
			slog.Info("Feed produced no posts, falling back to crawler", "url", blogURL)
			candidates = c.crawler.Crawl(ctx, blogURL, 0)
			method, feedURL = database.MethodCrawler, ""
		}
	} else {
		candidates = c.crawler.Crawl(ctx, blogURL, 0)
	}

	if len(candidates) == 0 {
		slog.Warn("Failed to collect any posts", "url", blogURL)
		return 0, ErrNoPosts
	}

	b, err := c.blogRepo.GetOrCreateBlog(database.Blog{
		Name:             cmp.Or(req.NameHint, BlogNameFromURL(blogURL)),
		URL:              blogURL,
		FeedURL:          feedURL,
		AuthorName:       req.AuthorHint,
		CollectionMethod: method,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store blog: %w", err)
	}

	if feedURL != "" && b.FeedURL == "" {
		if err := c.blogRepo.UpdateBlogSource(b.ID, feedURL, method); err != nil {
			return 0, err
		}
		b.FeedURL, b.CollectionMethod = feedURL, method
	}

	filters := req.Filters
	if filters == nil && c.filters != nil {
		filters = c.filters.FiltersFor(blogURL)
	}

	added := c.ingest(b, candidates, cmp.Or(req.AuthorHint, b.AuthorName), filters)

	if err := c.blogRepo.UpdateCollectionTime(b.ID, time.Now()); err != nil {
		return 0, err
	}

	slog.Info("Blog collected", "blog", b.Name, "blog_id", b.ID, "method", method, "posts", added)
	return b.ID, nil
}

// Update collects the blog again with its stored method and stores only posts
// whose URL is not already known. Zero candidates leave the blog untouched.
func (c *Collector) Update(ctx context.Context, blogID int64) (int, error) {
	b, err := c.blogRepo.GetBlog(blogID)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, fmt.Errorf("%w: %d", ErrBlogNotFound, blogID)
	}

	slog.Info("Updating blog", "blog", b.Name, "url", b.URL, "method", b.CollectionMethod)

	var candidates []post.Candidate
	if b.CollectionMethod == database.MethodRSS && b.FeedURL != "" {
		candidates, _ = c.hybrid(ctx, b.URL, b.FeedURL)
		if len(candidates) == 0 {
			candidates = c.crawler.Crawl(ctx, b.URL, 0)
		}
	} else {
		candidates = c.crawler.Crawl(ctx, b.URL, 0)
	}

	if len(candidates) == 0 {
		slog.Info("No posts found during update", "blog", b.Name)
		return 0, nil
	}

	urls, err := c.postRepo.GetPostURLs(b.ID)
	if err != nil {
		return 0, err
	}
	known := make(post.KeySet, len(urls))
	for _, u := range urls {
		known.Add(u)
	}

	fresh := post.Unseen(candidates, known)

	var filters []blog.ConfigFilter
	if c.filters != nil {
		filters = c.filters.FiltersFor(b.URL)
	}

	added := c.ingest(b, fresh, b.AuthorName, filters)

	if err := c.blogRepo.UpdateCollectionTime(b.ID, time.Now()); err != nil {
		return added, err
	}

	slog.Info("Blog updated", "blog", b.Name, "blog_id", b.ID, "found", len(candidates), "added", added)
	return added, nil
}

// hybrid fetches the feed and supplements it with a crawl when a quick check
// suggests the feed is truncated. Feed entries always come first. An empty
// blogURL is taken from the feed's site link, or from feedURL without its
// feed path; the URL used is returned with the candidates.
func (c *Collector) hybrid(ctx context.Context, blogURL, feedURL string) ([]post.Candidate, string) {
	if feedURL == "" {
		return nil, blogURL
	}

	result, err := c.feeds.Fetch(ctx, feedURL)
	if err != nil {
		slog.Warn("Feed fetch failed", "feed", feedURL, "error", err)
		return nil, cmp.Or(blogURL, siteFromFeedURL(feedURL))
	}

	if blogURL == "" {
		blogURL = cmp.Or(siteLink(result.Link), siteFromFeedURL(feedURL))
	}

	entries := result.Entries
	if len(entries) == 0 {
		return nil, blogURL
	}

	hasMore, found := c.crawler.QuickCheck(ctx, blogURL, len(entries), c.opts.QuickCheckPages)
	if !hasMore {
		slog.Info("Feed appears complete", "feed", feedURL, "entries", len(entries), "found", found)
		return entries, blogURL
	}

	crawled := c.crawler.Crawl(ctx, blogURL, c.opts.CrawlMaxPosts)
	merged := post.Merge(entries, crawled)

	slog.Info("Feed supplemented by crawler", "feed", feedURL, "blog", blogURL, "entries", len(entries), "crawled", len(crawled), "added", len(merged)-len(entries))
	return merged, blogURL
}

func isFeedURL(rawURL string) bool {
	trimmed := strings.ToLower(strings.TrimRight(rawURL, "/"))
	for _, suffix := range feedSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}

// siteLink accepts a feed's declared link only when it is an absolute web URL.
func siteLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return strings.TrimRight(u.String(), "/")
}

// siteFromFeedURL drops the last path segment of a feed URL, e.g.
// https://example.com/blog/index.xml becomes https://example.com/blog.
func siteFromFeedURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	u.RawQuery, u.Fragment = "", ""
	u.Path = path.Dir(strings.TrimRight(u.Path, "/"))
	if u.Path == "/" || u.Path == "." {
		u.Path = ""
	}
	u.RawPath = ""
	return u.String()
}

// ingest stores candidates for b and returns how many were stored. A post
// that fails to store is logged and skipped.
func (c *Collector) ingest(b *database.Blog, candidates []post.Candidate, authorHint string, filters []blog.ConfigFilter) int {
	added := 0

	for _, cand := range post.Unseen(candidates, post.KeySet{}) {
		stats := content.Analyze(cand.Content)
		cand.Content = stats.Text
		cand.Title = cmp.Or(strings.TrimSpace(cand.Title), post.UntitledTitle)
		cand.Author = cmp.Or(cand.Author, authorHint)

		p := database.Post{
			BlogID:                  b.ID,
			URL:                     cand.URL,
			Title:                   cand.Title,
			Content:                 cand.Content,
			PublishedAt:             cand.PublishedAt,
			Author:                  cand.Author,
			Tags:                    cand.Tags,
			Categories:              cand.Categories,
			Metadata:                cand.Metadata,
			ContentExtractionStatus: database.ExtractionSkipped,
		}

		if cand.Content != "" {
			p.WordCount = stats.WordCount
			p.ReadingTime = stats.ReadingTime
		} else {
			p.ContentExtractionStatus = database.ExtractionPending
		}

		p.IsFiltered, p.FilterReason = c.filterer.Run(cand, filters)

		if _, err := c.postRepo.UpsertPost(p); err != nil {
			slog.Error("Failed to store post", "blog", b.Name, "url", cand.URL, "error", err)
			continue
		}
		added++
	}

	return added
}

// BlogNameFromURL derives a display name from the first label of the host,
// e.g. "Example" for https://www.example.com.
func BlogNameFromURL(blogURL string) string {
	host := blogURL
	if u, err := url.Parse(blogURL); err == nil {
		host = cmp.Or(u.Hostname(), u.Path)
	}

	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return blogURL
	}

	return cases.Title(language.Und).String(label)
}
