package crawler

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/post"
)

type Extractor struct {
	client Fetcher
}

func NewExtractor(client Fetcher) *Extractor {
	return &Extractor{client: client}
}

var _ PageExtractor = (*Extractor)(nil)

// ExtractPosts fetches pageURL and returns the posts listed on it. Relative
// post links are resolved against baseURL. A missing page yields no posts and
// no error.
func (e *Extractor) ExtractPosts(ctx context.Context, pageURL, baseURL string) ([]post.Candidate, error) {
	resp, err := e.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !resp.OK() {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if post.HostMatches(pageURL, "substack.com") {
		if posts := substackLinks(doc, baseURL); len(posts) > 0 {
			slog.Debug("Substack posts found via link matching", "page", pageURL, "count", len(posts))
			return posts, nil
		}
	}

	platform := DetectPlatform(doc, string(resp.Body))
	selectors := Selectors(platform)

	var posts []post.Candidate
	doc.Find(selectors.Container).Each(func(_ int, container *goquery.Selection) {
		if c, ok := extractFromContainer(container, selectors, baseURL, pageURL); ok {
			c.Metadata["platform"] = string(platform)
			posts = append(posts, c)
		}
	})

	return posts, nil
}

// substackLinks collects every /p/ anchor as a post without content.
func substackLinks(doc *goquery.Document, baseURL string) []post.Candidate {
	var posts []post.Candidate
	seen := make(map[string]struct{})

	doc.Find("a[href*='/p/']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		fullURL := post.Resolve(baseURL, href)
		if fullURL == "" {
			return
		}
		if _, ok := seen[fullURL]; ok {
			return
		}
		seen[fullURL] = struct{}{}

		title := selectionText(link)
		if title == "" {
			title = selectionText(link.Parent().Find("h1, h2, h3, h4").First())
		}

		posts = append(posts, post.Candidate{
			Title:    cmp.Or(title, post.UntitledTitle),
			URL:      fullURL,
			Metadata: map[string]string{"source": "crawler", "platform": string(PlatformSubstack)},
		})
	})

	return posts
}

func extractFromContainer(container *goquery.Selection, selectors SelectorSet, baseURL, pageURL string) (c post.Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Failed to extract post from container", "page", pageURL, "error", r)
			ok = false
		}
	}()

	link := container.Find("a[href]").First()

	var href string
	if link.Length() > 0 {
		href, _ = link.Attr("href")
	} else {
		dataURL, _ := container.Attr("data-url")
		ownHref, _ := container.Attr("href")
		href = cmp.Or(dataURL, ownHref)
	}
	if href == "" && goquery.NodeName(container) == "a" {
		href, _ = container.Attr("href")
	}

	postURL := post.Resolve(baseURL, href)
	if postURL == "" {
		return post.Candidate{}, false
	}

	titleSel := findFirst(container, selectors.Title)
	if titleSel.Length() == 0 {
		titleSel = link
	}

	c = post.Candidate{
		Title:      cmp.Or(selectionText(titleSel), post.UntitledTitle),
		URL:        postURL,
		Tags:       collectTexts(container, selectors.Tags),
		Categories: collectTexts(container, selectors.Categories),
		Metadata:   map[string]string{"source": "crawler"},
	}

	if contentSel := findFirst(container, selectors.Content); contentSel.Length() > 0 {
		c.Content = content.Text(contentSel, "\n")
	}

	if dateSel := findFirst(container, selectors.Date); dateSel.Length() > 0 {
		raw, _ := dateSel.Attr("datetime")
		c.PublishedAt = parseDate(cmp.Or(strings.TrimSpace(raw), selectionText(dateSel)))
	}

	if authorSel := findFirst(container, selectors.Author); authorSel.Length() > 0 {
		c.Author = selectionText(authorSel)
	}

	return c, true
}

func findFirst(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return sel.Slice(0, 0)
	}
	return sel.Find(selector).First()
}

func collectTexts(sel *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}

	var texts []string
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := selectionText(s); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

func selectionText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return content.Text(sel, " ")
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	return &t
}
