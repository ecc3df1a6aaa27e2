// Package dom annotates addresses inside an HTML document tree and renders the
// hover panel into it.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseError reports HTML that could not be parsed.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("html parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("html parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// InsertObserver receives the nodes the host page inserted.
type InsertObserver func(inserted []*html.Node)

// Document is a live HTML tree. Insertions made by the host page go through its
// methods and are reported to observers; changes made by the annotator are not.
type Document struct {
	doc       *goquery.Document
	observers map[int]InsertObserver
	nextID    int
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &ParseError{Message: "failed to parse document", Cause: err}
	}
	return &Document{doc: doc, observers: make(map[int]InsertObserver)}, nil
}

// ParseString parses an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.doc.Get(0)
}

// Body returns the body element, or the root when there is none.
func (d *Document) Body() *html.Node {
	if body := d.doc.Find("body"); body.Length() > 0 {
		return body.Get(0)
	}
	return d.Root()
}

// Find runs a CSS selector over the document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, d.Root()); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return sb.String(), nil
}

// Observe registers fn for host insertions and returns a function that removes it.
func (d *Document) Observe(fn InsertObserver) func() {
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	return func() { delete(d.observers, id) }
}

// AppendChild appends child to parent on behalf of the host page.
func (d *Document) AppendChild(parent, child *html.Node) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.AppendChild(child)
	d.notify([]*html.Node{child})
}

// AppendHTML parses fragment in the context of parent, appends the result and
// returns the inserted nodes.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), fragmentContext(parent))
	if err != nil {
		return nil, &ParseError{Message: "failed to parse fragment", Cause: err}
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.notify(nodes)
	return nodes, nil
}

// SetText replaces the children of el with a single text node.
func (d *Document) SetText(el *html.Node, text string) {
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
	t := &html.Node{Type: html.TextNode, Data: text}
	el.AppendChild(t)
	d.notify([]*html.Node{t})
}

// Remove detaches n from the tree.
func (d *Document) Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func (d *Document) notify(nodes []*html.Node) {
	if len(nodes) == 0 {
		return
	}
	for _, fn := range d.observers {
		fn(nodes)
	}
}

func fragmentContext(parent *html.Node) *html.Node {
	if parent != nil && parent.Type == html.ElementNode {
		return parent
	}
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}
