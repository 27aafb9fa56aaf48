package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var droppedTags = map[string]struct{}{
	"script":   {},
	"meta":     {},
	"noscript": {},
	"iframe":   {},
	"svg":      {},
	"canvas":   {},
	"video":    {},
	"audio":    {},
	"link":     {},
	"style":    {},
}

var allowedAttrs = map[string]struct{}{
	"src":   {},
	"href":  {},
	"alt":   {},
	"title": {},
}

// TrimHTML strips a document down to its structure and text so it fits in
// an LLM prompt: non-content elements are removed and only src, href, alt
// and title attributes survive.
func TrimHTML(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	trimNode(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return sb.String(), nil
}

func trimNode(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.ElementNode {
			if _, drop := droppedTags[strings.ToLower(child.Data)]; drop {
				n.RemoveChild(child)
				child = next
				continue
			}
			kept := child.Attr[:0]
			for _, attr := range child.Attr {
				if _, ok := allowedAttrs[strings.ToLower(attr.Key)]; ok && attr.Namespace == "" {
					kept = append(kept, attr)
				}
			}
			child.Attr = kept
		}
		trimNode(child)
		child = next
	}
}

// ImageSources returns the src of every img element in document order.
// Images without a src are skipped.
func ImageSources(raw string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	sources := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			if src, ok := getAttr(n, "src"); ok {
				sources = append(sources, src)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return sources, nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
