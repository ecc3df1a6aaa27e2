package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/matching"
	"github.com/jonathan/addrlens/internal/types"
)

// TagLookup is the read side of the tag cache used while annotating.
type TagLookup interface {
	Lookup(addr types.Address) (types.ResolvedTag, bool)
	Known() []types.Address
}

// Annotation describes one address element the annotator inserted.
type Annotation struct {
	Match          types.AddressMatch
	Tag            *types.ResolvedTag
	FromAttributes bool
}

// Stats summarizes one Scan.
type Stats struct {
	TextNodes      int
	Annotated      int
	Matches        int
	FromAttributes int
	Detached       int
	Pruned         int
}

// Annotator replaces address text with address elements, touching each text node once.
// It is not safe for concurrent use; run it on the event loop.
type Annotator struct {
	tags    TagLookup
	matcher *matching.Matcher
	visited map[*html.Node]struct{}
	log     *logger.Logger

	// OnAnnotate, when set, is called for every inserted address element.
	OnAnnotate func(Annotation)
}

// NewAnnotator creates an annotator reading tags from lookup.
func NewAnnotator(lookup TagLookup, log *logger.Logger) *Annotator {
	return &Annotator{
		tags:    lookup,
		matcher: matching.NewMatcher(lookup),
		visited: make(map[*html.Node]struct{}),
		log:     logger.OrNop(log),
	}
}

// Scan annotates every text node that has not been processed yet. The walk is
// synchronous; markers are set before it returns.
func (a *Annotator) Scan(doc *Document) Stats {
	var stats Stats
	root := doc.Root()
	stats.Pruned = a.prune(root)
	for _, text := range a.collect(root) {
		stats.TextNodes++
		a.processText(text, &stats)
	}
	if stats.Annotated > 0 {
		a.log.Debug().
			Int("text_nodes", stats.TextNodes).
			Int("annotated", stats.Annotated).
			Int("matches", stats.Matches).
			Msg("annotation pass complete")
	}
	return stats
}

// Visited returns how many text nodes were evaluated without producing a match.
func (a *Annotator) Visited() int {
	return len(a.visited)
}

// prune forgets visited text nodes that are no longer under root.
func (a *Annotator) prune(root *html.Node) int {
	pruned := 0
	for n := range a.visited {
		if !attachedTo(n, root) {
			delete(a.visited, n)
			pruned++
		}
	}
	return pruned
}

func attachedTo(n, root *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

func (a *Annotator) collect(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if _, seen := a.visited[n]; seen {
				return
			}
			if strings.TrimSpace(n.Data) == "" {
				return
			}
			out = append(out, n)
			return
		case html.ElementNode:
			if skipSubtree(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func (a *Annotator) processText(n *html.Node, stats *Stats) {
	parent := n.Parent
	if parent == nil {
		stats.Detached++
		a.log.Debug().Msg("text node detached before annotation, skipping")
		return
	}

	text := n.Data
	fallback := !inTransactionLink(n)
	matches := a.matcher.Scan(text, fallback)
	fromAttrs := false
	if len(matches) == 0 && fallback && matching.LooksTruncated(text) {
		if m, ok := a.fromAncestors(n, text); ok {
			matches = []types.AddressMatch{m}
			fromAttrs = true
		}
	}
	if len(matches) == 0 {
		a.visited[n] = struct{}{}
		return
	}

	replacement := make([]*html.Node, 0, 2*len(matches)+1)
	pos := 0
	for _, m := range matches {
		if m.Start > pos {
			replacement = append(replacement, textNode(text[pos:m.Start]))
		}
		var tag *types.ResolvedTag
		if t, ok := a.tags.Lookup(m.Address); ok {
			tag = &t
		}
		replacement = append(replacement, NewAddressElement(m.Address, m.DisplayText, tag))
		pos = m.End

		if a.OnAnnotate != nil {
			a.OnAnnotate(Annotation{Match: m, Tag: tag, FromAttributes: fromAttrs})
		}
	}
	if pos < len(text) {
		replacement = append(replacement, textNode(text[pos:]))
	}

	container := parent
	if isPageRoot(parent) {
		container = &html.Node{
			Type:     html.ElementNode,
			Data:     "span",
			DataAtom: atom.Span,
			Attr:     []html.Attribute{{Key: AttrWrapper, Val: "true"}},
		}
		parent.InsertBefore(container, n)
		parent.RemoveChild(n)
		for _, r := range replacement {
			container.AppendChild(r)
		}
	} else {
		for _, r := range replacement {
			parent.InsertBefore(r, n)
		}
		parent.RemoveChild(n)
	}
	addClass(container, ClassProcessed)

	stats.Annotated++
	stats.Matches += len(matches)
	if fromAttrs {
		stats.FromAttributes++
	}
}

// fromAncestors walks outward from the text node looking for a full address in
// hint attributes. It stops below the page root and never enters injected UI.
func (a *Annotator) fromAncestors(n *html.Node, text string) (types.AddressMatch, bool) {
	for el := n.Parent; el != nil && el.Type == html.ElementNode && !isPageRoot(el); el = el.Parent {
		if isInjected(el) {
			return types.AddressMatch{}, false
		}
		attrs := make([]matching.Attribute, 0, len(el.Attr))
		for _, at := range el.Attr {
			attrs = append(attrs, matching.Attribute{Name: at.Key, Value: at.Val})
		}
		addr, ok := matching.FromAttributes(attrs)
		if !ok {
			continue
		}
		start, end, ok := matching.TruncatedSpan(text)
		if !ok {
			return types.AddressMatch{}, false
		}
		return types.AddressMatch{
			Address:     addr,
			DisplayText: text[start:end],
			Start:       start,
			End:         end,
			Truncated:   true,
		}, true
	}
	return types.AddressMatch{}, false
}

func inTransactionLink(n *html.Node) bool {
	for el := n.Parent; el != nil; el = el.Parent {
		if el.Type == html.ElementNode && el.DataAtom == atom.A {
			href, _ := attr(el, "href")
			return matching.IsTransactionHref(href)
		}
	}
	return false
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
