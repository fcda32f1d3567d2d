package fetch

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// Robots answers robots.txt queries, caching one policy per host. A host
// whose robots.txt cannot be fetched allows everything.
type Robots struct {
	client *Client
	cache  map[string]*robotstxt.RobotsData
	mu     sync.Mutex
}

func NewRobots(client *Client) *Robots {
	return &Robots{
		client: client,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

func (r *Robots) Allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := r.policy(ctx, u)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return data.TestAgent(path, r.client.UserAgent())
}

func (r *Robots) policy(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	r.mu.Lock()
	data, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return data
	}

	resp, err := r.client.Get(ctx, key+"/robots.txt")
	if err != nil {
		slog.Debug("robots.txt unavailable", "host", u.Host, "error", err)
	} else {
		data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
		if err != nil {
			slog.Debug("robots.txt unparseable", "host", u.Host, "error", err)
			data = nil
		}
	}

	r.mu.Lock()
	r.cache[key] = data
	r.mu.Unlock()

	return data
}
