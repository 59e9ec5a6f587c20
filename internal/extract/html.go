package extract

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ArticleText returns the title and main text of an HTML page. Readability
// is tried first; pages it cannot parse fall back to all visible text.
func ArticleText(htmlContent, pageURL string) (title, text string) {
	var u *url.URL
	if pageURL != "" {
		u, _ = url.Parse(pageURL)
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), u)
	if err == nil {
		title = strings.TrimSpace(article.Title)
		text = collapseBlankLines(article.TextContent)
	}
	if text != "" {
		return title, text
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return title, ""
	}
	return title, strings.TrimSpace(extractVisibleText(doc))
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}
