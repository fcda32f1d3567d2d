package collector

import (
	"context"
	"errors"

	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/crawler"
	"github.com/lysyi3m/blog-comb/app/feed"
	"github.com/lysyi3m/blog-comb/app/post"
)

var (
	ErrNoPosts      = errors.New("no posts found")
	ErrBlogNotFound = errors.New("blog not found")
)

type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) (*feed.Result, error)
	Discover(ctx context.Context, blogURL string) (string, bool)
}

type SiteCrawler interface {
	Crawl(ctx context.Context, blogURL string, maxPosts int) []post.Candidate
	QuickCheck(ctx context.Context, blogURL string, knownCount int, maxPagesToCheck int) (bool, int)
}

// FilterSource supplies configured filters for blogs collected without
// explicit ones.
type FilterSource interface {
	FiltersFor(blogURL string) []blog.ConfigFilter
}

var (
	_ FeedSource   = (*feed.Source)(nil)
	_ SiteCrawler  = (*crawler.Crawler)(nil)
	_ FilterSource = (*blog.ConfigCache)(nil)

	_ crawler.SitemapHints = (*blog.ConfigCache)(nil)
)

type Options struct {
	// QuickCheckPages bounds the truncation probe run after a feed fetch.
	QuickCheckPages int
	// CrawlMaxPosts bounds the full crawl that supplements a truncated feed.
	CrawlMaxPosts int
}

func DefaultOptions() Options {
	return Options{
		QuickCheckPages: 3,
		CrawlMaxPosts:   200,
	}
}

// Request describes a blog to collect. Method is one of auto, rss or crawler;
// empty means auto.
type Request struct {
	URL        string
	Method     string
	AuthorHint string
	NameHint   string
	Filters    []blog.ConfigFilter
}
