package crawler

import (
	"cmp"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/blog-comb/app/post"
)

// dateOnlyFormat is the date-only layout for sitemap lastmod values (e.g. "2024-01-15").
const dateOnlyFormat = "2006-01-02"

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

type sitemapEntry struct {
	Loc     string
	LastMod *time.Time
}

// collectSitemap enumerates post URLs from {base}/sitemap.xml and fetches each
// of them for its article content.
func (r *run) collectSitemap(ctx context.Context, base string, maxPosts int) []post.Candidate {
	entries := r.sitemapEntries(ctx, base)
	if len(entries) == 0 {
		return nil
	}

	acc := newAccumulator(maxPosts)
	for _, entry := range entries {
		if acc.full() || ctx.Err() != nil {
			break
		}
		if acc.seen.Has(entry.Loc) {
			continue
		}
		acc.add(r.fetchArticle(ctx, entry))
	}

	return acc.posts
}

func (r *run) sitemapEntries(ctx context.Context, base string) []sitemapEntry {
	body, err := r.fetchXML(ctx, base+"/sitemap.xml")
	if err != nil {
		slog.Debug("Sitemap unavailable", "blog", base, "error", err)
		return nil
	}

	if entries, err := parseSitemap(body); err == nil {
		if posts := filterPostEntries(base, entries); len(posts) > 0 {
			return posts
		}
	}

	children, err := parseSitemapIndex(body)
	if err != nil || len(children) == 0 {
		return nil
	}

	var result []sitemapEntry
	for _, child := range preferPostSitemaps(children) {
		childBody, err := r.fetchXML(ctx, child)
		if err != nil {
			slog.Debug("Child sitemap unavailable", "sitemap", child, "error", err)
			continue
		}
		entries, err := parseSitemap(childBody)
		if err != nil {
			slog.Debug("Child sitemap unparseable", "sitemap", child, "error", err)
			continue
		}
		result = append(result, filterPostEntries(base, entries)...)
	}

	return result
}

func (r *run) fetchXML(ctx context.Context, sitemapURL string) ([]byte, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := r.c.client.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// fetchArticle builds a candidate from the post page. A page that cannot be
// fetched or read still yields the URL so content extraction can retry later.
func (r *run) fetchArticle(ctx context.Context, entry sitemapEntry) post.Candidate {
	c := post.Candidate{
		Title:       post.UntitledTitle,
		URL:         entry.Loc,
		PublishedAt: entry.LastMod,
		Metadata:    map[string]string{"source": "sitemap"},
	}

	if r.c.articles == nil {
		return c
	}

	if r.c.opts.Robots != nil && !r.c.opts.Robots.Allowed(ctx, entry.Loc) {
		return c
	}

	if err := r.pacer.Wait(ctx); err != nil {
		return c
	}

	resp, err := r.c.client.Get(ctx, entry.Loc)
	if err != nil || !resp.OK() {
		slog.Debug("Sitemap post unavailable", "url", entry.Loc, "error", err)
		return c
	}

	article, err := r.c.articles.Run(resp.Body, entry.Loc)
	if err != nil {
		slog.Debug("Sitemap post unreadable", "url", entry.Loc, "error", err)
		return c
	}

	c.Title = cmp.Or(article.Title, post.UntitledTitle)
	c.Content = article.Content
	c.Author = article.Byline
	if article.PublishedAt != nil {
		c.PublishedAt = article.PublishedAt
	}

	return c
}

func parseSitemap(body []byte) ([]sitemapEntry, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	entries := make([]sitemapEntry, 0, len(urlset.URLs))
	for _, u := range urlset.URLs {
		entry := sitemapEntry{Loc: strings.TrimSpace(u.Loc)}
		if u.LastMod != "" {
			if t, err := parseLastMod(u.LastMod); err == nil {
				entry.LastMod = &t
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseSitemapIndex(body []byte) ([]string, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse sitemap index: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}

	return urls, nil
}

// preferPostSitemaps narrows child sitemaps to those named after posts when
// any are.
func preferPostSitemaps(children []string) []string {
	var posts []string
	for _, child := range children {
		if strings.Contains(strings.ToLower(child), "post") {
			posts = append(posts, child)
		}
	}
	if len(posts) > 0 {
		return posts
	}
	return children
}

// filterPostEntries keeps entries on the blog's host that point below its
// root. Substack posts always live under /p/.
func filterPostEntries(base string, entries []sitemapEntry) []sitemapEntry {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	substack := post.HostMatches(base, "substack.com")

	var result []sitemapEntry
	for _, entry := range entries {
		u, err := url.Parse(entry.Loc)
		if err != nil || !strings.EqualFold(u.Hostname(), baseURL.Hostname()) {
			continue
		}
		path := strings.Trim(u.Path, "/")
		if path == "" || path == strings.Trim(baseURL.Path, "/") {
			continue
		}
		if substack && !strings.Contains(u.Path, "/p/") {
			continue
		}
		result = append(result, entry)
	}
	return result
}

// parseLastMod accepts RFC 3339 timestamps and plain dates.
func parseLastMod(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)

	t, err := time.Parse(time.RFC3339, trimmed)
	if err == nil {
		return t, nil
	}

	t, dateErr := time.Parse(dateOnlyFormat, trimmed)
	if dateErr == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("parse lastmod %q: %w", trimmed, dateErr)
}
