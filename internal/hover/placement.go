package hover

// Rect is a box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Size is a width and height.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

const (
	// PanelGap separates the trigger from the panel.
	PanelGap = 6.0
	// ViewportMargin is kept free at the viewport edge when the panel is shifted.
	ViewportMargin = 8.0
)

// Placement is where the panel and its bridge go.
type Placement struct {
	Panel  Rect `json:"panel"`
	Bridge Rect `json:"bridge"`
	Above  bool `json:"above"`
}

// Place anchors a panel below trigger. A panel that would overflow the right edge is
// shifted left to fit; one that would overflow the bottom flips above the trigger.
// A zero viewport dimension disables the corresponding check. The bridge covers the
// gap between trigger and panel.
func Place(trigger Rect, panel Size, viewport Size) Placement {
	x := trigger.X
	if viewport.Width > 0 && x+panel.Width > viewport.Width-ViewportMargin {
		x = viewport.Width - ViewportMargin - panel.Width
	}
	if x < 0 {
		x = 0
	}

	y := trigger.Bottom() + PanelGap
	above := false
	if viewport.Height > 0 && y+panel.Height > viewport.Height {
		if flipped := trigger.Y - PanelGap - panel.Height; flipped >= 0 {
			y = flipped
			above = true
		}
	}

	p := Rect{X: x, Y: y, Width: panel.Width, Height: panel.Height}
	left := min(trigger.X, p.X)
	right := max(trigger.Right(), p.Right())

	bridge := Rect{X: left, Y: trigger.Bottom(), Width: right - left, Height: p.Y - trigger.Bottom()}
	if above {
		bridge = Rect{X: left, Y: p.Bottom(), Width: right - left, Height: trigger.Y - p.Bottom()}
	}
	return Placement{Panel: p, Bridge: bridge, Above: above}
}
