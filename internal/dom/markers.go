package dom

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Classes and attributes owned by the annotator.
const (
	ClassProcessed = "addrlens-processed"
	ClassAddress   = "addrlens-address"
	ClassPanel     = "addrlens-panel"
	ClassBridge    = "addrlens-bridge"

	AttrAddress = "data-addrlens-address"
	AttrDisplay = "data-addrlens-display"
	AttrEntity  = "data-addrlens-entity"
	AttrWrapper = "data-addrlens-wrapper"
)

// injectedClasses mark the annotator's own UI, which is never scanned.
var injectedClasses = []string{ClassAddress, ClassPanel, ClassBridge}

// skippedElements never contain page text worth annotating.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Textarea: true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Option:   true,
	atom.Template: true,
	atom.Head:     true,
	atom.Iframe:   true,
	atom.Svg:      true,
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

func hasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	return slices.Contains(strings.Fields(v), class)
}

func addClass(n *html.Node, class string) {
	v, _ := attr(n, "class")
	fields := strings.Fields(v)
	if slices.Contains(fields, class) {
		return
	}
	setAttr(n, "class", strings.Join(append(fields, class), " "))
}

func removeClass(n *html.Node, class string) {
	v, ok := attr(n, "class")
	if !ok {
		return
	}
	fields := slices.DeleteFunc(strings.Fields(v), func(f string) bool { return f == class })
	if len(fields) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(fields, " "))
}

func isInjected(n *html.Node) bool {
	for _, c := range injectedClasses {
		if hasClass(n, c) {
			return true
		}
	}
	return false
}

// IsInjectedUI reports whether n lies inside an address element, panel or bridge.
func IsInjectedUI(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if isInjected(n) {
			return true
		}
	}
	return false
}

// InPanel reports whether n lies inside a hover panel or its bridge.
func InPanel(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if hasClass(n, ClassPanel) || hasClass(n, ClassBridge) {
			return true
		}
	}
	return false
}

func isPageRoot(n *html.Node) bool {
	return n.Type == html.DocumentNode || n.DataAtom == atom.Body || n.DataAtom == atom.Html
}

func isEditable(n *html.Node) bool {
	v, ok := attr(n, "contenteditable")
	return ok && !strings.EqualFold(v, "false")
}

// skipSubtree decides whether the walk descends into element n.
func skipSubtree(n *html.Node) bool {
	return skippedElements[n.DataAtom] || hasClass(n, ClassProcessed) || isInjected(n) || isEditable(n)
}
