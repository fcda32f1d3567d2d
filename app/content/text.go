package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Text returns the stripped text nodes under sel joined with sep, skipping
// whitespace-only nodes.
func Text(sel *goquery.Selection, sep string) string {
	var parts []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}

	return strings.Join(parts, sep)
}
