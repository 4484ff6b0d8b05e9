package grading

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// htmlAssets holds the asset references declared by a markup document.
type htmlAssets struct {
	Scripts     []string
	Stylesheets []string
}

// scanHTMLAssets collects script src and stylesheet href attributes in document order.
func scanHTMLAssets(markup string) (htmlAssets, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return htmlAssets{}, fmt.Errorf("parse markup: %w", err)
	}

	var assets htmlAssets
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				if src := strings.TrimSpace(getAttr(n, "src")); src != "" {
					assets.Scripts = append(assets.Scripts, src)
				}
			case "link":
				if hasToken(getAttr(n, "rel"), "stylesheet") {
					if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
						assets.Stylesheets = append(assets.Stylesheets, href)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return assets, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, field := range strings.Fields(list) {
		if strings.EqualFold(field, token) {
			return true
		}
	}
	return false
}

func isRemoteReference(ref string) bool {
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"http://", "https://", "//", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
