package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

const (
	addrA = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	addrB = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

func newCache(t *testing.T, entries map[string]types.ResolvedTag) *tags.Cache {
	t.Helper()
	c := tags.NewCache()
	resolved := make(map[types.Address]types.ResolvedTag, len(entries))
	for k, v := range entries {
		resolved[types.MustParseAddress(k)] = v
	}
	c.Replace(resolved)
	return c
}

func parse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *Document) string {
	t.Helper()
	out, err := doc.HTML()
	require.NoError(t, err)
	return out
}

func addressElements(doc *Document) []*html.Node {
	return doc.Find("." + ClassAddress).Nodes
}

func TestScan_AnnotatesFullAddresses(t *testing.T) {
	doc := parse(t, `<html><body><p>from `+addrA+` to `+addrB+`</p></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	stats := a.Scan(doc)
	assert.Equal(t, 1, stats.Annotated)
	assert.Equal(t, 2, stats.Matches)

	els := addressElements(doc)
	require.Len(t, els, 2)
	got, ok := AddressOf(els[0])
	require.True(t, ok)
	assert.Equal(t, types.Address(addrA), got)
	assert.Equal(t, addrA, TextContent(els[0]))
	assert.True(t, hasClass(els[0].Parent, ClassProcessed))
}

func TestScan_IsIdempotent(t *testing.T) {
	doc := parse(t, `<html><body><div><p>`+addrA+`</p><span>see `+addrB+` here</span></div></body></html>`)
	a := NewAnnotator(newCache(t, map[string]types.ResolvedTag{addrA: {Name: "Hot Wallet"}}), nil)

	a.Scan(doc)
	first := render(t, doc)

	stats := a.Scan(doc)
	assert.Equal(t, 0, stats.Annotated)
	assert.Equal(t, first, render(t, doc))
	assert.Len(t, addressElements(doc), 2)
}

func TestScan_PreservesTextWithoutTags(t *testing.T) {
	text := "Transfer from 0x" + strings.ToUpper(addrA[2:10]) + addrA[10:] + " completed."
	doc := parse(t, `<html><body><p>`+text+`</p></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	a.Scan(doc)

	p := doc.Find("p").Get(0)
	assert.Equal(t, text, TextContent(p))
}

func TestScan_TaggedLabel(t *testing.T) {
	tag := types.ResolvedTag{Name: "Binance 14", Entity: "Binance"}
	doc := parse(t, `<html><body><p>`+addrA+`</p></body></html>`)
	a := NewAnnotator(newCache(t, map[string]types.ResolvedTag{addrA: tag}), nil)

	var seen []Annotation
	a.OnAnnotate = func(an Annotation) { seen = append(seen, an) }
	a.Scan(doc)

	els := addressElements(doc)
	require.Len(t, els, 1)
	assert.Equal(t, "Binance 14 (…eaed)", TextContent(els[0]))
	entity, ok := attr(els[0], AttrEntity)
	assert.True(t, ok)
	assert.Equal(t, "Binance", entity)

	require.Len(t, seen, 1)
	require.NotNil(t, seen[0].Tag)
	assert.Equal(t, tag, *seen[0].Tag)
}

func TestScan_SkipsScriptAndEditable(t *testing.T) {
	doc := parse(t, `<html><head><title>`+addrA+`</title></head><body>`+
		`<script>var a = "`+addrA+`";</script>`+
		`<textarea>`+addrA+`</textarea>`+
		`<div contenteditable="true">`+addrA+`</div>`+
		`</body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	stats := a.Scan(doc)
	assert.Equal(t, 0, stats.Annotated)
	assert.Empty(t, addressElements(doc))
}

func TestScan_TruncatedResolvedFromCache(t *testing.T) {
	doc := parse(t, `<html><body><a href="/address/x">0x5aae...eaed</a></body></html>`)
	a := NewAnnotator(newCache(t, map[string]types.ResolvedTag{addrA: {Name: "Vault"}}), nil)

	stats := a.Scan(doc)
	assert.Equal(t, 1, stats.Matches)

	els := addressElements(doc)
	require.Len(t, els, 1)
	got, _ := AddressOf(els[0])
	assert.Equal(t, types.Address(addrA), got)
	display, _ := attr(els[0], AttrDisplay)
	assert.Equal(t, "0x5aae...eaed", display)
}

func TestScan_TransactionLinkExcludesAbbreviations(t *testing.T) {
	doc := parse(t, `<html><body><a href="https://etherscan.io/tx/0xdeadbeef">0x5aae...eaed</a></body></html>`)
	a := NewAnnotator(newCache(t, map[string]types.ResolvedTag{addrA: {Name: "Vault"}}), nil)

	stats := a.Scan(doc)
	assert.Equal(t, 0, stats.Annotated)
	assert.Empty(t, addressElements(doc))
	assert.Equal(t, 1, a.Visited())
}

func TestScan_AttributeFallback(t *testing.T) {
	doc := parse(t, `<html><body><div data-address="`+addrB+`"><span>0xfb69…d359</span></div></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	stats := a.Scan(doc)
	assert.Equal(t, 1, stats.FromAttributes)

	els := addressElements(doc)
	require.Len(t, els, 1)
	got, _ := AddressOf(els[0])
	assert.Equal(t, types.Address(addrB), got)
	assert.Equal(t, "0xfb69…d359", TextContent(els[0]))
}

func TestScan_AttributeFallbackIgnoresTransactionHref(t *testing.T) {
	doc := parse(t, `<html><body><div><a href="/tx/`+addrB+`">0xfb69…d359</a></div></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	stats := a.Scan(doc)
	assert.Equal(t, 0, stats.Annotated)
}

func TestScan_WrapsTextDirectlyInBody(t *testing.T) {
	doc := parse(t, `<html><body>`+addrA+`<p>other</p></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	a.Scan(doc)

	body := doc.Body()
	assert.False(t, hasClass(body, ClassProcessed))
	wrapper := body.FirstChild
	require.NotNil(t, wrapper)
	_, ok := attr(wrapper, AttrWrapper)
	assert.True(t, ok)
	assert.True(t, hasClass(wrapper, ClassProcessed))

	// later host insertions into body are still scanned
	_, err := doc.AppendHTML(body, "<div>"+addrB+"</div>")
	require.NoError(t, err)
	stats := a.Scan(doc)
	assert.Equal(t, 1, stats.Annotated)
	assert.Len(t, addressElements(doc), 2)
}

func TestScan_DetachedTextNodeIsSkipped(t *testing.T) {
	doc := parse(t, `<html><body><p>`+addrA+`</p><p id="gone">`+addrB+`</p></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	gone := doc.Find("#gone").Get(0)
	a.OnAnnotate = func(Annotation) {
		if gone.FirstChild != nil {
			gone.RemoveChild(gone.FirstChild)
		}
	}

	stats := a.Scan(doc)
	assert.Equal(t, 1, stats.Annotated)
	assert.Equal(t, 1, stats.Detached)
}

func TestScan_ForgetsRemovedTextNodes(t *testing.T) {
	doc := parse(t, `<html><body><div id="feed"><p>nothing here</p><p>or here</p></div><p>stays</p></body></html>`)
	a := NewAnnotator(newCache(t, nil), nil)

	a.Scan(doc)
	assert.Equal(t, 3, a.Visited())

	doc.Remove(doc.Find("#feed").Get(0))
	stats := a.Scan(doc)
	assert.Equal(t, 2, stats.Pruned)
	assert.Equal(t, 1, a.Visited())
}

func TestInvalidate_RestoresAndReannotates(t *testing.T) {
	checksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	original := `<html><head></head><body><p>pay ` + checksummed + ` now</p>` +
		`<div>from 0x5aae...beaed to</div>` + addrB + `</body></html>`
	doc := parse(t, original)
	a := NewAnnotator(newCache(t, map[string]types.ResolvedTag{addrA: {Name: "Treasury"}}), nil)

	a.Scan(doc)
	annotated := render(t, doc)
	require.Len(t, addressElements(doc), 3)

	restored := a.Invalidate(doc)
	assert.Equal(t, 3, restored)
	assert.Empty(t, addressElements(doc))
	assert.Equal(t, 0, doc.Find("."+ClassProcessed).Length())
	assert.Equal(t, render(t, parse(t, original)), render(t, doc))
	assert.Equal(t, 0, a.Visited())

	a.Scan(doc)
	assert.Equal(t, annotated, render(t, doc))
}

func TestInvalidate_DroppedTagKeepsPageText(t *testing.T) {
	cache := newCache(t, map[string]types.ResolvedTag{addrA: {Name: "Treasury"}})
	doc := parse(t, `<html><body><p>from 0x5aae...beaed to</p><div>0x5aAeb…BeAed</div></body></html>`)
	a := NewAnnotator(cache, nil)

	a.Scan(doc)
	require.Len(t, addressElements(doc), 2)

	cache.Replace(nil)
	a.Invalidate(doc)
	a.Scan(doc)

	assert.Empty(t, addressElements(doc))
	assert.Equal(t, "from 0x5aae...beaed to", doc.Find("p").Text())
	assert.Equal(t, "0x5aAeb…BeAed", doc.Find("div").Text())
}

func TestInvalidate_PicksUpNewTags(t *testing.T) {
	cache := newCache(t, nil)
	doc := parse(t, `<html><body><p>`+addrA+`</p></body></html>`)
	a := NewAnnotator(cache, nil)

	a.Scan(doc)
	assert.Equal(t, addrA, TextContent(addressElements(doc)[0]))

	cache.Replace(map[types.Address]types.ResolvedTag{types.Address(addrA): {Name: "Bridge"}})
	a.Invalidate(doc)
	a.Scan(doc)

	els := addressElements(doc)
	require.Len(t, els, 1)
	assert.Equal(t, "Bridge (…eaed)", TextContent(els[0]))
}
