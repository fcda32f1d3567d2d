package blog

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/blog-comb/app/cfg"
	"github.com/lysyi3m/blog-comb/app/database"
)

// descriptionLength bounds the plain-text excerpt used when a post has no summary.
const descriptionLength = 300

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders the posts of blog as an RSS 2.0 document. Posts are expected
// newest first.
func (g *Generator) Run(blog database.Blog, posts []database.Post) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", blog.Name, 4)
	g.writeElement(&buf, "link", blog.URL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Posts collected from %s", blog.URL), 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/blogs/%d/feed", strings.TrimRight(cfg.Get().BaseUrl, "/"), blog.ID)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/blogs/%d/feed", cfg.Get().Port, blog.ID)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if blog.LastCollectedAt != nil {
		lastBuildDate = *blog.LastCollectedAt
	}
	if len(posts) > 0 {
		lastBuildDate = g.postDate(posts[0])
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Blog-Comb/%s", cfg.Get().Version), 4)

	for _, p := range posts {
		g.writeItem(&buf, p)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, p database.Post) {
	buf.WriteString("    <item>\n")

	guid := cmp.Or(p.Metadata["id"], p.URL)
	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(guid)))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", p.Title, 6)
	g.writeElement(buf, "link", p.URL, 6)

	description := cmp.Or(p.Metadata["summary"], g.excerpt(p.Content), "No description available")
	g.writeElement(buf, "description", description, 6)

	if p.Content != "" && p.Content != description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(p.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", g.postDate(p).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", p.Author, 6)

	for _, category := range append(append([]string{}, p.Tags...), p.Categories...) {
		g.writeElement(buf, "category", category, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) postDate(p database.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (g *Generator) excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= descriptionLength {
		return text
	}
	return strings.TrimSpace(string(runes[:descriptionLength])) + "…"
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
