package dom

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonathan/addrlens/internal/hover"
)

// PanelRenderer draws hover panels into a Document. A panel and its bridge are
// appended to <body> and removed together.
type PanelRenderer struct {
	doc    *Document
	panels map[hover.Handle]panelNodes
}

type panelNodes struct {
	panel  *html.Node
	bridge *html.Node
}

// NewPanelRenderer creates a renderer for doc.
func NewPanelRenderer(doc *Document) *PanelRenderer {
	return &PanelRenderer{doc: doc, panels: make(map[hover.Handle]panelNodes)}
}

// Render inserts a panel and bridge for view.
func (r *PanelRenderer) Render(view hover.PanelView) (hover.Handle, error) {
	body := r.doc.Body()
	if body == nil {
		return "", fmt.Errorf("document has no body to render into")
	}
	id := uuid.NewString()
	h := hover.Handle(id)

	panel := element("div",
		html.Attribute{Key: "class", Val: ClassPanel},
		html.Attribute{Key: "id", Val: "addrlens-panel-" + id},
		html.Attribute{Key: AttrAddress, Val: view.Address.String()},
		html.Attribute{Key: "style", Val: boxStyle(view.Placement.Panel)},
	)
	fillPanel(panel, view)

	bridge := element("div",
		html.Attribute{Key: "class", Val: ClassBridge},
		html.Attribute{Key: "id", Val: "addrlens-bridge-" + id},
		html.Attribute{Key: "style", Val: boxStyle(view.Placement.Bridge) + "background:transparent;"},
	)

	body.AppendChild(bridge)
	body.AppendChild(panel)
	r.panels[h] = panelNodes{panel: panel, bridge: bridge}
	return h, nil
}

// Update redraws the contents of an existing panel.
func (r *PanelRenderer) Update(h hover.Handle, view hover.PanelView) {
	nodes, ok := r.panels[h]
	if !ok {
		return
	}
	for c := nodes.panel.FirstChild; c != nil; {
		next := c.NextSibling
		nodes.panel.RemoveChild(c)
		c = next
	}
	fillPanel(nodes.panel, view)
}

// Destroy removes the panel and bridge for h.
func (r *PanelRenderer) Destroy(h hover.Handle) {
	nodes, ok := r.panels[h]
	if !ok {
		return
	}
	delete(r.panels, h)
	for _, n := range []*html.Node{nodes.panel, nodes.bridge} {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// Live returns the number of rendered panels.
func (r *PanelRenderer) Live() int {
	return len(r.panels)
}

func fillPanel(panel *html.Node, view hover.PanelView) {
	title := view.Address.Short()
	if view.Tag != nil && view.Tag.Name != "" {
		title = view.Tag.Name
	}
	panel.AppendChild(textElement("div", "addrlens-panel-title", title))
	if view.Tag != nil && view.Tag.Entity != "" {
		panel.AppendChild(textElement("div", "addrlens-panel-entity", view.Tag.Entity))
	}
	panel.AppendChild(textElement("div", "addrlens-panel-address", view.Address.Checksum()))

	if len(view.Records) == 0 {
		return
	}
	list := element("ul", html.Attribute{Key: "class", Val: "addrlens-panel-records"})
	for _, rec := range view.Records {
		item := element("li")
		item.AppendChild(textNode(rec.Name))
		if rec.Entity != "" {
			item.AppendChild(textElement("span", "addrlens-panel-record-entity", rec.Entity))
		}
		item.AppendChild(textElement("span", "addrlens-panel-source", rec.Source))
		list.AppendChild(item)
	}
	panel.AppendChild(list)
}

func boxStyle(r hover.Rect) string {
	return fmt.Sprintf("position:fixed;left:%.0fpx;top:%.0fpx;width:%.0fpx;height:%.0fpx;z-index:2147483647;",
		r.X, r.Y, r.Width, r.Height)
}

func element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag)), Attr: attrs}
}

func textElement(tag, class, text string) *html.Node {
	el := element(tag, html.Attribute{Key: "class", Val: class})
	el.AppendChild(textNode(text))
	return el
}
