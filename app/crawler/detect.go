package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DetectPlatform guesses the blogging engine from the rendered markup. rawHTML
// is the page source the document was parsed from.
func DetectPlatform(doc *goquery.Document, rawHTML string) Platform {
	lower := strings.ToLower(rawHTML)

	if strings.Contains(lower, "substack.com") {
		previews := doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return strings.Contains(strings.ToLower(class), "post-preview")
		})
		if previews.Length() > 0 || doc.Find("a[href*='/p/']").Length() > 0 {
			return PlatformSubstack
		}
	}

	switch {
	case strings.Contains(lower, "wp-content"), strings.Contains(lower, "wordpress"):
		return PlatformWordPress
	case strings.Contains(lower, "medium.com"), strings.Contains(lower, "data-testid"):
		return PlatformMedium
	case strings.Contains(lower, "substack"):
		return PlatformSubstack
	case strings.Contains(lower, "ghost"):
		return PlatformGhost
	default:
		return PlatformGeneric
	}
}
