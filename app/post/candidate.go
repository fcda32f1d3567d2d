// Package post holds the ephemeral post candidate shared by every collection
// path and the URL identity rules used to deduplicate candidates.
package post

import "time"

const UntitledTitle = "Untitled"

// Candidate is a post as found by a feed or a crawl, before it is stored.
type Candidate struct {
	Title       string
	URL         string
	Content     string
	PublishedAt *time.Time
	Author      string
	Tags        []string
	Categories  []string
	Metadata    map[string]string
}

func (c Candidate) Key() string {
	return NormalizeURL(c.URL)
}
