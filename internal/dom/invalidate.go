package dom

import (
	"golang.org/x/net/html"
)

// Invalidate undoes every annotation: address elements become plain text holding
// the text the page showed before annotation, markers are removed, wrapper spans
// are unwrapped and the visited set is cleared. It returns the number of address
// elements restored.
func (a *Annotator) Invalidate(doc *Document) int {
	touched := make(map[*html.Node]struct{})
	restored := 0

	for _, el := range doc.Find("." + ClassAddress).Nodes {
		parent := el.Parent
		if parent == nil || InPanel(parent) {
			continue
		}
		parent.InsertBefore(textNode(originalText(el)), el)
		parent.RemoveChild(el)
		touched[parent] = struct{}{}
		restored++
	}

	for _, el := range doc.Find("[" + AttrWrapper + "]").Nodes {
		parent := el.Parent
		if parent == nil {
			continue
		}
		for c := el.FirstChild; c != nil; {
			next := c.NextSibling
			el.RemoveChild(c)
			parent.InsertBefore(c, el)
			c = next
		}
		parent.RemoveChild(el)
		delete(touched, el)
		touched[parent] = struct{}{}
	}

	for _, el := range doc.Find("." + ClassProcessed).Nodes {
		removeClass(el, ClassProcessed)
	}

	for parent := range touched {
		mergeText(parent)
	}

	a.visited = make(map[*html.Node]struct{})
	if restored > 0 {
		a.log.Debug().Int("restored", restored).Msg("annotations invalidated")
	}
	return restored
}

// originalText is the page text an address element replaced: its display text,
// else its canonical address, else whatever it renders.
func originalText(el *html.Node) string {
	if v, ok := attr(el, AttrDisplay); ok && v != "" {
		return v
	}
	if v, ok := attr(el, AttrAddress); ok {
		return v
	}
	return TextContent(el)
}

// mergeText joins adjacent text children of n so a rescan sees contiguous text.
func mergeText(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		for next := c.NextSibling; next != nil && next.Type == html.TextNode; next = c.NextSibling {
			c.Data += next.Data
			n.RemoveChild(next)
		}
	}
}
