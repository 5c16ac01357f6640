package util

import (
	"strings"

	"golang.org/x/net/html"
)

// ParseLinks returns the distinct href values of <a> elements under root whose
// path ends in suffix, compared case-insensitively, in document order.
func ParseLinks(root *html.Node, suffix string) []string {
	suffix = strings.ToLower(suffix)
	seen := make(map[string]bool)
	var links []string

	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" && href != "/" && !seen[href] && strings.HasSuffix(strings.ToLower(href), suffix) {
				seen[href] = true
				links = append(links, href)
			}
		}
		// Push children last-first so they pop in document order.
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return links
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
