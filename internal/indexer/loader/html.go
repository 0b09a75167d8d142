package loader

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"svg":      {},
	"template": {},
}

var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "hr": {}, "li": {}, "tr": {}, "td": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "pre": {}, "section": {}, "article": {}, "table": {},
}

// parseHTML returns the document title and its visible text. Text from
// block-level elements is separated by newlines so words never run together
// across tags.
func parseHTML(r io.Reader) (title string, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
			if n.Data == "title" && title == "" {
				title = strings.Join(strings.Fields(textOf(n)), " ")
				return
			}
			if n.Data == "head" {
				inHead = true
			}
		}
		if n.Type == html.TextNode && !inHead {
			if s := strings.TrimSpace(n.Data); s != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(strings.Join(strings.Fields(s), " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inHead)
		}
		if n.Type == html.ElementNode {
			if _, block := blockElements[n.Data]; block && b.Len() > 0 {
				b.WriteByte('\n')
			}
		}
	}
	walk(doc, false)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return title, strings.Join(out, "\n"), nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
