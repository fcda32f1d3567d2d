package feed

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/blog-comb/app/post"
)

// commonFeedPaths are probed when the page declares no feed link.
var commonFeedPaths = []string{
	"/feed",
	"/feed.xml",
	"/rss",
	"/rss.xml",
	"/atom.xml",
	"/feeds/posts/default",
	"/index.xml",
}

var feedLinkTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
	"application/json",
}

// Discover finds the feed of a blog, first from <link> tags of its home page
// and then by probing conventional paths.
func (s *Source) Discover(ctx context.Context, blogURL string) (string, bool) {
	if feedURL := s.discoverFromHTML(ctx, blogURL); feedURL != "" {
		slog.Debug("Feed discovered from page links", "blog", blogURL, "feed", feedURL)
		return feedURL, true
	}

	if feedURL := s.discoverFromCommonPaths(ctx, blogURL); feedURL != "" {
		slog.Debug("Feed discovered at conventional path", "blog", blogURL, "feed", feedURL)
		return feedURL, true
	}

	return "", false
}

func (s *Source) discoverFromHTML(ctx context.Context, blogURL string) string {
	resp, err := s.client.Get(ctx, blogURL)
	if err != nil {
		slog.Debug("Failed to fetch page for feed discovery", "url", blogURL, "error", err)
		return ""
	}
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	candidates := extractFeedLinkCandidates(blogURL, resp.Body)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// extractFeedLinkCandidates returns the resolved href of every <link> whose
// type is a feed MIME type, in document order.
func extractFeedLinkCandidates(baseURL string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var candidates []string

	doc.Find("link[type]").Each(func(_ int, s *goquery.Selection) {
		linkType, _ := s.Attr("type")
		if !isFeedType(linkType) {
			return
		}

		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		if resolved := post.Resolve(baseURL, href); resolved != "" {
			candidates = append(candidates, resolved)
		}
	})

	return candidates
}

func (s *Source) discoverFromCommonPaths(ctx context.Context, blogURL string) string {
	base := strings.TrimRight(blogURL, "/")

	for _, path := range commonFeedPaths {
		candidate := base + path

		resp, err := s.client.Head(ctx, candidate)
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}

		ct := strings.ToLower(resp.ContentType)
		if resp.IsFeed() || strings.Contains(ct, "json") {
			return candidate
		}
	}

	return ""
}

func isFeedType(linkType string) bool {
	linkType = strings.ToLower(strings.TrimSpace(linkType))
	for _, t := range feedLinkTypes {
		if strings.HasPrefix(linkType, t) {
			return true
		}
	}
	return false
}
