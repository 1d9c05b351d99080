package ai

import (
	"strings"

	"golang.org/x/net/html"
)

// ExcerptFromHTML extracts readable text from an HTML fragment and truncates
// it to at most maxLen runes on a word boundary. Used as the excerpt fallback
// when the model omits one.
func ExcerptFromHTML(fragment string, maxLen int) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return truncateWords(strings.TrimSpace(fragment), maxLen)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.Join(strings.Fields(b.String()), " ")
	return truncateWords(text, maxLen)
}

func truncateWords(text string, maxLen int) string {
	if maxLen <= 0 || len([]rune(text)) <= maxLen {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
