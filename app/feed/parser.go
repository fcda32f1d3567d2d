package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/blog-comb/app/post"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Result, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &Result{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
	}

	if feed.Author != nil {
		result.Author = formatAuthor(feed.Author)
	} else if len(feed.Authors) > 0 {
		result.Author = formatAuthor(feed.Authors[0])
	}

	var base *url.URL
	if feed.Link != "" {
		if u, err := url.Parse(feed.Link); err == nil && u.IsAbs() {
			base = u
		}
	}

	result.Entries = make([]post.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		result.Entries = append(result.Entries, p.normalizeItem(item, base))
	}

	return result, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, base *url.URL) post.Candidate {
	link := strings.TrimSpace(item.Link)
	if link != "" && base != nil {
		if ref, err := url.Parse(link); err == nil && !ref.IsAbs() {
			link = base.ResolveReference(ref).String()
		}
	}

	normalized := post.Candidate{
		Title:       cmp.Or(strings.TrimSpace(item.Title), post.UntitledTitle),
		URL:         link,
		Content:     p.extractContent(item),
		PublishedAt: p.extractPublished(item),
		Tags:        item.Categories,
		Metadata:    map[string]string{"source": "rss"},
	}

	if id := cmp.Or(item.GUID, item.Link); id != "" {
		normalized.Metadata["id"] = id
	}
	if item.Description != "" && item.Content != "" {
		normalized.Metadata["summary"] = item.Description
	}

	if item.Author != nil {
		normalized.Author = formatAuthor(item.Author)
	} else if len(item.Authors) > 0 {
		normalized.Author = formatAuthor(item.Authors[0])
	}

	if item.DublinCoreExt != nil {
		normalized.Categories = item.DublinCoreExt.Subject
		if normalized.Author == "" && len(item.DublinCoreExt.Creator) > 0 {
			normalized.Author = item.DublinCoreExt.Creator[0]
		}
	}

	return normalized
}

// extractContent prefers full content, then the summary, then dc:description.
func (p *Parser) extractContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	if item.Description != "" {
		return item.Description
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Description) > 0 {
		return item.DublinCoreExt.Description[0]
	}
	return ""
}

func (p *Parser) extractPublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if t := parseFreeDate(item.Published); t != nil {
		return t
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	return parseFreeDate(item.Updated)
}

func parseFreeDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	return &t
}

func formatAuthor(person *gofeed.Person) string {
	if person == nil {
		return ""
	}
	return cmp.Or(strings.TrimSpace(person.Name), strings.TrimSpace(person.Email))
}
