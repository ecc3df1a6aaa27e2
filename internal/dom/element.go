package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonathan/addrlens/internal/types"
)

// labelSuffixLen is how many trailing hex digits follow a tag name.
const labelSuffixLen = 4

// NewAddressElement builds the interactive element for one address. The canonical
// address is stored on the element so it survives later re-rendering. With a tag the
// element shows the name and a shortened suffix; without one it shows display as is.
func NewAddressElement(addr types.Address, display string, tag *types.ResolvedTag) *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "class", Val: ClassAddress},
			{Key: AttrAddress, Val: addr.String()},
			{Key: AttrDisplay, Val: display},
			{Key: "title", Val: addr.Checksum()},
		},
	}

	text := display
	if tag != nil && tag.Name != "" {
		text = Label(addr, *tag)
		el.Attr = append(el.Attr, html.Attribute{Key: "data-addrlens-tagged", Val: "true"})
		if tag.Entity != "" {
			el.Attr = append(el.Attr, html.Attribute{Key: AttrEntity, Val: tag.Entity})
		}
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return el
}

// Label renders the inline text for a tagged address.
func Label(addr types.Address, tag types.ResolvedTag) string {
	return tag.Name + " (…" + addr.Suffix(labelSuffixLen) + ")"
}

// AddressOf returns the canonical address of the address element containing n.
func AddressOf(n *html.Node) (types.Address, bool) {
	for ; n != nil; n = n.Parent {
		if !hasClass(n, ClassAddress) {
			continue
		}
		v, ok := attr(n, AttrAddress)
		if !ok {
			return "", false
		}
		addr, err := types.ParseAddress(v)
		if err != nil {
			return "", false
		}
		return addr, true
	}
	return "", false
}

// TextContent concatenates the text below n.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var out []byte
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, TextContent(c)...)
	}
	return string(out)
}
