package feed

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/blog-comb/app/fetch"
	"github.com/lysyi3m/blog-comb/app/post"
)

var ErrNoEntries = errors.New("feed has no entries")

// Result is a parsed feed with its entries normalized into post candidates.
type Result struct {
	Title       string
	Link        string
	Description string
	Author      string
	Entries     []post.Candidate
}

type Options struct {
	Retries  int
	Delay    time.Duration
	MaxPages int
}

func DefaultOptions() Options {
	return Options{
		Retries:  3,
		Delay:    time.Second,
		MaxPages: 10,
	}
}

// Fetcher is the HTTP surface the feed source needs.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
	Head(ctx context.Context, url string) (*fetch.Response, error)
}

var _ Fetcher = (*fetch.Client)(nil)
