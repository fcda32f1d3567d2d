package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/blog-comb/app/fetch"
	"github.com/lysyi3m/blog-comb/app/post"
)

// paginationPatterns are tried in order for every page number; {base} is the
// feed URL without a trailing slash.
var paginationPatterns = []string{
	"%s/page/%d/",
	"%s/%d/",
	"%s?page=%d",
	"%s&page=%d",
}

type Source struct {
	client Fetcher
	parser *Parser
	opts   Options
}

func NewSource(client Fetcher, parser *Parser, opts Options) *Source {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	return &Source{
		client: client,
		parser: parser,
		opts:   opts,
	}
}

// Fetch downloads and parses the feed and then walks synthetic pagination
// URLs until one fails its probe or adds nothing.
func (s *Source) Fetch(ctx context.Context, feedURL string) (*Result, error) {
	pacer := fetch.NewPacer(s.opts.Delay)
	if err := pacer.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := s.fetchPage(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, ErrNoEntries
	}

	seen := post.Keys(result.Entries)

	base := strings.TrimRight(feedURL, "/")
	for page := 2; page <= s.opts.MaxPages; page++ {
		pageURL, ok := s.probePage(ctx, base, page)
		if !ok {
			break
		}

		if err := pacer.Wait(ctx); err != nil {
			break
		}

		pageResult, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			slog.Debug("Feed page fetch failed", "url", pageURL, "error", err)
			break
		}

		fresh := post.Unseen(pageResult.Entries, seen)
		if len(fresh) == 0 {
			break
		}
		for _, entry := range fresh {
			seen.Add(entry.URL)
		}
		result.Entries = append(result.Entries, fresh...)

		slog.Debug("Feed page fetched", "url", pageURL, "page", page, "entries", len(fresh))
	}

	return result, nil
}

// probePage returns the first pagination URL for page that answers a HEAD
// request with a feed content type.
func (s *Source) probePage(ctx context.Context, base string, page int) (string, bool) {
	for _, pattern := range paginationPatterns {
		candidate := fmt.Sprintf(pattern, base, page)
		resp, err := s.client.Head(ctx, candidate)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK && resp.IsFeed() {
			return candidate, true
		}
	}
	return "", false
}

// fetchPage fetches and parses one feed document, retrying transient failures
// with a linear backoff.
func (s *Source) fetchPage(ctx context.Context, feedURL string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		data, retry, err := s.download(ctx, feedURL)
		if err == nil {
			return s.parser.Run(data)
		}

		lastErr = err
		if !retry || attempt == s.opts.Retries {
			break
		}

		backoff := s.opts.Delay * time.Duration(attempt)
		slog.Warn("Feed fetch failed, retrying", "url", feedURL, "attempt", attempt, "backoff", backoff.String(), "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, lastErr)
}

func (s *Source) download(ctx context.Context, feedURL string) ([]byte, bool, error) {
	resp, err := s.client.Get(ctx, feedURL)
	if err != nil {
		return nil, true, err
	}

	if !resp.OK() {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	return resp.Body, false, nil
}
