package content

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// Article is the readable part of a single post page.
type Article struct {
	Title       string
	Content     string
	Text        string
	Byline      string
	PublishedAt *time.Time
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Run extracts the main article from an HTML page. pageURL resolves relative
// links inside the article and may be empty.
func (e *Extractor) Run(data []byte, pageURL string) (*Article, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(article.Content))

	return &Article{
		Title:       strings.TrimSpace(article.Title),
		Content:     article.Content,
		Text:        strings.TrimSpace(article.TextContent),
		Byline:      strings.TrimSpace(article.Byline),
		PublishedAt: article.PublishedTime,
	}, nil
}
