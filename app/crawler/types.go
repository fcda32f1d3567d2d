package crawler

import (
	"context"
	"time"

	"github.com/lysyi3m/blog-comb/app/fetch"
	"github.com/lysyi3m/blog-comb/app/post"
)

// Fetcher is the HTTP surface the crawler needs.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

var _ Fetcher = (*fetch.Client)(nil)

// PageExtractor turns one listing page into post candidates.
type PageExtractor interface {
	ExtractPosts(ctx context.Context, pageURL, baseURL string) ([]post.Candidate, error)
}

// RobotsPolicy decides whether a page may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, pageURL string) bool
}

var _ RobotsPolicy = (*fetch.Robots)(nil)

// SitemapHints lets blog configuration opt a self-hosted blog into sitemap
// enumeration.
type SitemapHints interface {
	UsesSitemap(blogURL string) bool
}

type Options struct {
	// Delay spaces successive page fetches within one call.
	Delay time.Duration
	// PaginationPages is the highest synthetic /page/{n}/ URL visited by Crawl.
	PaginationPages int

	Robots   RobotsPolicy // optional
	Browser  *Browser     // optional, nil when the rendering tool is absent
	Sitemaps SitemapHints // optional
}

func DefaultOptions() Options {
	return Options{
		Delay:           time.Second,
		PaginationPages: 10,
	}
}
