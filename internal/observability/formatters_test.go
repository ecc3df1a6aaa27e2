package observability

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/addrlens/internal/adapters"
	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/engine"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

const (
	addrA = types.Address("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	addrB = types.Address("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
)

func TestPrintAnnotations(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	anns := []dom.Annotation{
		{Match: types.AddressMatch{Address: addrA}, Tag: &types.ResolvedTag{Name: "Binance 14", Entity: "Binance"}},
		{Match: types.AddressMatch{Address: addrB, Truncated: true}},
		{Match: types.AddressMatch{Address: addrB}, FromAttributes: true},
	}
	p.PrintAnnotations("https://example.com", anns, engine.Stats{KnownTags: 7, Visited: 12})
	output := buf.String()

	assert.Contains(t, output, "ANNOTATED ADDRESSES")
	assert.Contains(t, output, "Binance 14 [Binance]")
	assert.Contains(t, output, "short")
	assert.Contains(t, output, "attr")
	assert.Contains(t, output, "3 addresses, 1 tagged")
	assert.Contains(t, output, "Known tags: 7")
	assert.NotContains(t, output, "\x1b[")
}

func TestPrintAnnotations_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.PrintAnnotations("page.html", nil, engine.Stats{})

	assert.Contains(t, buf.String(), "No addresses found")
}

func TestPrintAnnotations_TruncatesList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	anns := make([]dom.Annotation, maxItemsToShow+5)
	for i := range anns {
		anns[i] = dom.Annotation{Match: types.AddressMatch{Address: addrA}, Tag: &types.ResolvedTag{Name: fmt.Sprintf("tag-%d", i)}}
	}
	p.PrintAnnotations("page.html", anns, engine.Stats{})
	output := buf.String()

	assert.Contains(t, output, "... and 5 more")
	assert.Contains(t, output, fmt.Sprintf("%d addresses, %d tagged", len(anns), len(anns)))
	assert.NotContains(t, output, fmt.Sprintf("tag-%d", maxItemsToShow))
}

func TestPrintBox_RowsHaveEqualWidth(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	p.printBox("TITLE", "short\n"+strings.Repeat("…", boxWidth*2))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		plain := stripANSI(line)
		assert.Equal(t, boxWidth, len([]rune(plain)), plain)
	}
}

func TestPrintTags(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.PrintTags(map[types.Address]types.ResolvedTag{
		addrB: {Name: "Bridge"},
		addrA: {Name: "Binance 14", Entity: "Binance"},
	})
	output := buf.String()

	assert.Contains(t, output, "TAGS (2)")
	assert.Less(t, strings.Index(output, "Binance 14"), strings.Index(output, "Bridge"))
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.PrintRecords(addrA, types.ResolvedTag{Name: "Binance 14", Entity: "Binance"}, []types.TagRecord{
		{Address: addrA, Name: "Hot Wallet", Source: "etherscan"},
		{Address: addrA, Name: "Binance 14", Entity: "Binance", Source: "arkham"},
	})
	output := buf.String()

	assert.Contains(t, output, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Contains(t, output, "Label:    Binance 14")
	assert.Contains(t, output, "etherscan")
	assert.Contains(t, output, "Hot Wallet")
}

func TestPrintImportResults(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.PrintImportResults([]adapters.Result{
		{Producer: "arkham", Produced: 3, Imported: 3},
		{Producer: "etherscan", Produced: 4, Imported: 3, Rejected: []tags.Rejected{{Index: 1, Reason: "bad"}}},
		{Producer: "broken", Err: errors.New("timeout")},
	})
	output := buf.String()

	assert.Contains(t, output, "✓ arkham: imported 3")
	assert.Contains(t, output, "! etherscan: imported 3 of 4 (1 rejected)")
	assert.Contains(t, output, "✗ broken: timeout")
	assert.Contains(t, output, "6 records imported from 2 sources, 1 failed")
}

func stripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
