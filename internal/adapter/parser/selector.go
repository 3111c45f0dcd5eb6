package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// The pure parsers only need a tiny selector dialect: "tag", ".class",
// "#id", "tag.class" and space-separated descendant chains of those. The
// richer attribute selectors from the profile stay on the browser side.

type simpleSelector struct {
	tag   string
	id    string
	class string
}

func parseSelector(sel string) []simpleSelector {
	var chain []simpleSelector

	for _, part := range strings.Fields(sel) {
		var s simpleSelector

		switch {
		case strings.HasPrefix(part, "#"):
			s.id = part[1:]
		case strings.Contains(part, "."):
			tag, class, _ := strings.Cut(part, ".")
			s.tag = tag
			s.class = class
		default:
			s.tag = part
		}

		chain = append(chain, s)
	}

	return chain
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}

	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}

	return false
}

func matches(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && attrVal(n, "id") != s.id {
		return false
	}
	if s.class != "" && !hasClass(n, s.class) {
		return false
	}

	return true
}

func collect(n *html.Node, s simpleSelector, out *[]*html.Node) {
	if matches(n, s) {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, s, out)
	}
}

func findAll(n *html.Node, sel string) []*html.Node {
	chain := parseSelector(sel)
	if len(chain) == 0 {
		return nil
	}

	nodes := []*html.Node{n}
	for _, s := range chain {
		var next []*html.Node
		for _, cur := range nodes {
			for c := cur.FirstChild; c != nil; c = c.NextSibling {
				collect(c, s, &next)
			}
		}
		nodes = next
	}

	return nodes
}

func findFirst(n *html.Node, sel string) *html.Node {
	all := findAll(n, sel)
	if len(all) == 0 {
		return nil
	}

	return all[0]
}

// selectOne tries selectors in order and returns the first hit. This is how
// minor markup drift is tolerated without a hard failure.
func selectOne(n *html.Node, selectors []string) *html.Node {
	for _, sel := range selectors {
		if found := findFirst(n, sel); found != nil {
			return found
		}
	}

	return nil
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.TrimSpace(strings.Join(strings.Fields(b.String()), " "))
}
