package crawler

// Platform identifies the blogging engine a listing page was rendered by.
type Platform string

const (
	PlatformGeneric   Platform = "generic"
	PlatformWordPress Platform = "wordpress"
	PlatformMedium    Platform = "medium"
	PlatformSubstack  Platform = "substack"
	PlatformGhost     Platform = "ghost"
)

// SelectorSet holds the CSS selectors used to pull one post out of a listing.
// An empty selector means the platform has no such element.
type SelectorSet struct {
	Container  string
	Title      string
	Content    string
	Date       string
	Author     string
	Tags       string
	Categories string
}

var platformSelectors = map[Platform]SelectorSet{
	PlatformWordPress: {
		Container:  "article, .post, .entry, [class*='post']",
		Title:      "h1.entry-title, h1.post-title, .entry-header h1, article h1",
		Content:    ".entry-content, .post-content, .article-content, article .content",
		Date:       "time.published, .published-date, .post-date, time[datetime]",
		Author:     ".author, .by-author, .post-author, [rel='author']",
		Tags:       ".tags a, .post-tags a, .entry-tags a",
		Categories: ".categories a, .post-categories a, .entry-categories a",
	},
	PlatformMedium: {
		Container: "article",
		Title:     "h1, h2",
		Content:   "[data-testid='post-content'], .postArticle-content",
		Date:      "time, [data-testid='storyPublishDate']",
		Author:    "[data-testid='authorName'], .author",
		Tags:      ".tags a, [data-testid='tag']",
	},
	PlatformSubstack: {
		Container: "article, .post, [class*='post-preview'], [class*='post-item'], a[href*='/p/']",
		Title:     "h1.post-title, h1, h2, h3, [class*='title'], [class*='headline']",
		Content:   ".post-content, .body, [class*='preview'], [class*='excerpt']",
		Date:      "time, .publish-date, [class*='date'], [class*='published']",
		Author:    ".author, .byline, [class*='author']",
		Tags:      ".tags a, [class*='tag'] a",
	},
	PlatformGhost: {
		Container: "article.post",
		Title:     "h1.post-title",
		Content:   ".post-content",
		Date:      "time.published-date",
		Author:    ".author",
		Tags:      ".post-tags a",
	},
	PlatformGeneric: {
		Container:  "article, .post, .entry, [class*='post'], [class*='article']",
		Title:      "h1, h2",
		Content:    ".content, .post-content, .entry-content, main",
		Date:       "time, .date, .published, [class*='date']",
		Author:     ".author, [rel='author'], [class*='author']",
		Tags:       ".tags a, [class*='tag'] a",
		Categories: ".categories a, [class*='category'] a",
	},
}

// Selectors returns the selector set of p, falling back to the generic set.
func Selectors(p Platform) SelectorSet {
	if s, ok := platformSelectors[p]; ok {
		return s
	}
	return platformSelectors[PlatformGeneric]
}
