// Package dom holds the small set of element queries and mutations the
// decorator needs over golang.org/x/net/html trees.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Match reports whether an element node satisfies a query.
type Match func(*html.Node) bool

// Classes returns the whitespace-separated class list of n.
func Classes(n *html.Node) []string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

// HasClass reports whether n is an element carrying class c.
func HasClass(n *html.Node, c string) bool {
	for _, have := range Classes(n) {
		if have == c {
			return true
		}
	}
	return false
}

// HasClasses reports whether n carries every class in cs, like the
// compound selector ".a.b.c".
func HasClasses(n *html.Node, cs ...string) bool {
	have := Classes(n)
	if len(have) == 0 {
		return false
	}
	for _, want := range cs {
		found := false
		for _, h := range have {
			if h == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// WithClasses builds a Match for the compound class selector cs.
func WithClasses(cs ...string) Match {
	return func(n *html.Node) bool { return HasClasses(n, cs...) }
}

// IsTag builds a Match for elements with the given atom.
func IsTag(a atom.Atom) Match {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

// Find returns the first descendant of root in document order matching m.
// Subtrees rooted at a node matching prune are not entered; prune may be nil.
// root itself is never returned.
func Find(root *html.Node, m Match, prune Match) *html.Node {
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if m(c) {
			return c
		}
		if prune != nil && prune(c) {
			continue
		}
		if found := Find(c, m, prune); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of root matching m, in document order.
// Matching nodes are descended into as well.
func FindAll(root *html.Node, m Match) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if m(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// FindNearest returns descendants of root matching m without descending
// into a match, so an entry nested inside another entry is not returned.
func FindNearest(root *html.Node, m Match) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if m(c) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// PrevElementSibling skips text and comment nodes.
func PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// HasAncestor reports whether some ancestor of n strictly below stop
// matches m.
func HasAncestor(n, stop *html.Node, m Match) bool {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if m(p) {
			return true
		}
	}
	return false
}

// NewElement creates a detached element. class and text may be empty.
func NewElement(a atom.Atom, class, text string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
	}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Text returns the trimmed concatenated text content of n.
func Text(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// FindBody returns the <body> element, or nil for fragments without one.
func FindBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := FindBody(c); b != nil {
			return b
		}
	}
	return nil
}
