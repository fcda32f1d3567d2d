// Package content turns fetched post bodies into plain text and derives the
// word count and reading time stored with every post.
package content

import (
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const WordsPerMinute = 200

var (
	markupPattern = regexp.MustCompile(`(?i)<[a-z][\s\S]*?>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	spaceRun      = regexp.MustCompile(` +`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
	noiseSelector = "script, style, nav, header, footer, aside, noscript, iframe, embed, object, ins"
	blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"
)

// IsMarkup reports whether s contains something shaped like an HTML tag.
func IsMarkup(s string) bool {
	return s != "" && markupPattern.MatchString(s)
}

// Clean converts HTML to plain text. With preserveStructure, block elements
// become paragraphs separated by a blank line and list items become bullets.
func Clean(raw string, preserveStructure bool) string {
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		slog.Debug("Falling back to tag stripping", "error", err)
		return normalizeWhitespace(html.UnescapeString(tagPattern.ReplaceAllString(raw, "")))
	}

	doc.Find(noiseSelector).Remove()

	var text string
	if preserveStructure {
		var parts []string
		doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
			// Nested blocks are emitted by their outermost block.
			if s.ParentsFiltered(blockSelector).Length() > 0 {
				return
			}
			t := Text(s, " ")
			if t == "" {
				return
			}
			if goquery.NodeName(s) == "li" {
				parts = append(parts, "• "+t)
				return
			}
			parts = append(parts, t, "")
		})

		if len(parts) == 0 {
			text = Text(doc.Selection, "\n")
		} else {
			text = strings.Join(parts, "\n")
		}
	} else {
		text = Text(doc.Selection, " ")
	}

	return normalizeWhitespace(text)
}

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spaceRun.ReplaceAllString(text, " ")
	text = blankLineRun.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return norm.NFC.String(strings.TrimSpace(strings.Join(lines, "\n")))
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}

func ReadingTime(wordCount int) int {
	return max(1, wordCount/WordsPerMinute)
}

// Stats is the derived text form of a post body.
type Stats struct {
	Text        string
	WordCount   int
	ReadingTime int
}

// Analyze cleans markup when present and derives word count and reading time.
func Analyze(body string) Stats {
	text := body
	if IsMarkup(text) {
		text = Clean(text, true)
	}

	words := WordCount(text)
	return Stats{
		Text:        text,
		WordCount:   words,
		ReadingTime: ReadingTime(words),
	}
}
