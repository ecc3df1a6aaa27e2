package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/addrlens/internal/hover"
	"github.com/jonathan/addrlens/internal/types"
)

func TestPanelRenderer_RenderAndDestroy(t *testing.T) {
	doc := parse(t, `<html><body><p>hi</p></body></html>`)
	r := NewPanelRenderer(doc)

	view := hover.PanelView{
		Address: types.Address(addrA),
		Tag:     &types.ResolvedTag{Name: "Binance 14", Entity: "Binance"},
		Records: []types.TagRecord{
			{Address: types.Address(addrA), Name: "Binance 14", Entity: "Binance", Source: "arkham"},
		},
		Placement: hover.Place(hover.Rect{X: 10, Y: 10, Width: 100, Height: 20}, hover.DefaultPanelSize, hover.Size{Width: 1024, Height: 768}),
	}
	h, err := r.Render(view)
	require.NoError(t, err)
	assert.NotEmpty(t, h)
	assert.Equal(t, 1, r.Live())

	panel := doc.Find("." + ClassPanel)
	require.Equal(t, 1, panel.Length())
	assert.Equal(t, "Binance 14", panel.Find(".addrlens-panel-title").Text())
	assert.Equal(t, "Binance", panel.Find(".addrlens-panel-entity").Text())
	assert.Equal(t, types.Address(addrA).Checksum(), panel.Find(".addrlens-panel-address").Text())
	assert.Equal(t, "arkham", panel.Find(".addrlens-panel-source").Text())
	style, _ := panel.Attr("style")
	assert.Contains(t, style, "position:fixed")
	assert.Equal(t, 1, doc.Find("."+ClassBridge).Length())

	r.Destroy(h)
	assert.Equal(t, 0, r.Live())
	assert.Equal(t, 0, doc.Find("."+ClassPanel).Length())
	assert.Equal(t, 0, doc.Find("."+ClassBridge).Length())

	// destroying twice is harmless
	r.Destroy(h)
}

func TestPanelRenderer_UpdateReplacesRecords(t *testing.T) {
	doc := parse(t, `<html><body></body></html>`)
	r := NewPanelRenderer(doc)

	view := hover.PanelView{Address: types.Address(addrB)}
	h, err := r.Render(view)
	require.NoError(t, err)
	assert.Equal(t, types.Address(addrB).Short(), doc.Find(".addrlens-panel-title").Text())
	assert.Equal(t, 0, doc.Find(".addrlens-panel-records").Length())

	view.Records = []types.TagRecord{
		{Address: types.Address(addrB), Name: "Old", Source: "etherscan"},
		{Address: types.Address(addrB), Name: "New", Source: "arkham"},
	}
	r.Update(h, view)
	assert.Equal(t, 2, doc.Find(".addrlens-panel-records li").Length())
	assert.Equal(t, 1, doc.Find(".addrlens-panel-title").Length())
}

func TestScan_IgnoresPanelContent(t *testing.T) {
	doc := parse(t, `<html><body></body></html>`)
	r := NewPanelRenderer(doc)
	_, err := r.Render(hover.PanelView{Address: types.Address(addrA)})
	require.NoError(t, err)

	a := NewAnnotator(newCache(t, nil), nil)
	stats := a.Scan(doc)
	assert.Equal(t, 0, stats.Annotated)
}
