package blog

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/blog-comb/app/post"
)

var validFilterFields = map[string]bool{
	"title":      true,
	"content":    true,
	"author":     true,
	"url":        true,
	"tags":       true,
	"categories": true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run reports whether the candidate is excluded by filters and why. Filtered
// posts are still stored so that later updates recognise their URLs.
func (f *Filterer) Run(c post.Candidate, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(c, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(c post.Candidate, field string) string {
	switch field {
	case "title":
		return c.Title
	case "content":
		return c.Content
	case "author":
		return c.Author
	case "url":
		return c.URL
	case "tags":
		return strings.Join(c.Tags, " ")
	case "categories":
		return strings.Join(c.Categories, " ")
	default:
		return ""
	}
}
