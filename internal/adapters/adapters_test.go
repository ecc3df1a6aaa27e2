package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/addrlens/internal/config"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

const (
	addrA = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	addrB = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

type funcProducer struct {
	name string
	fn   func(ctx context.Context) ([]types.TagRecord, error)
}

func (p funcProducer) Name() string { return p.name }

func (p funcProducer) Produce(ctx context.Context) ([]types.TagRecord, error) { return p.fn(ctx) }

func TestImportAll_IsolatesFailures(t *testing.T) {
	store := tags.NewMemoryStore(tags.NewResolver(""))
	producers := []Producer{
		funcProducer{name: "good", fn: func(context.Context) ([]types.TagRecord, error) {
			return []types.TagRecord{
				{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Name: "  Hot Wallet "},
				{Address: "0x1234", Name: "broken"},
			}, nil
		}},
		funcProducer{name: "bad", fn: func(context.Context) ([]types.TagRecord, error) {
			return nil, errors.New("site down")
		}},
	}

	results := ImportAll(context.Background(), store, producers, nil)
	require.Len(t, results, 2)

	assert.Equal(t, "good", results[0].Producer)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Produced)
	assert.Equal(t, 1, results[0].Imported)
	require.Len(t, results[0].Rejected, 1)
	assert.Equal(t, 1, results[0].Rejected[0].Index)

	var perr *ProducerError
	require.ErrorAs(t, results[1].Err, &perr)
	assert.Equal(t, "bad", perr.Producer)

	recs, err := store.Records(context.Background(), addrA)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Hot Wallet", recs[0].Name)
	assert.Equal(t, "good", recs[0].Source)
}

const labelPage = `<html><body><table><tbody>
<tr><td><a href="/address/` + addrA + `" title="` + addrA + `">0x5aae...eaed</a></td><td> Binance  14 </td><td>Binance</td></tr>
<tr><td>` + addrB + `</td><td>Uniswap Router</td><td></td></tr>
<tr><td>no address here</td><td>Ghost</td><td>-</td></tr>
<tr><td>` + addrB + `</td><td></td><td>Nameless</td></tr>
</tbody></table></body></html>`

func TestTableProducer_Parse(t *testing.T) {
	p := NewTableProducer(config.SourceConfig{
		Name:       "Etherscan",
		Row:        "tbody tr",
		Address:    "td:nth-child(1)",
		NameCell:   "td:nth-child(2)",
		EntityCell: "td:nth-child(3)",
	}, nil, nil)

	records, err := p.Parse(labelPage)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, types.TagRecord{Address: addrA, Name: "Binance 14", Entity: "Binance", Source: "etherscan"}, records[0])
	assert.Equal(t, types.TagRecord{Address: addrB, Name: "Uniswap Router", Source: "etherscan"}, records[1])
}

func TestTableProducer_ProduceFetchesEveryPage(t *testing.T) {
	var fetched []string
	fetcher := func(_ context.Context, url string) (string, error) {
		fetched = append(fetched, url)
		return labelPage, nil
	}
	p := NewTableProducer(config.SourceConfig{
		Name:     "snowscan",
		URLs:     []string{"https://snowscan.xyz/accounts/1", "https://snowscan.xyz/accounts/2"},
		Row:      "tbody tr",
		Address:  "td:nth-child(1)",
		NameCell: "td:nth-child(2)",
		Rate:     1000,
	}, fetcher, nil)

	records, err := p.Produce(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, []string{"https://snowscan.xyz/accounts/1", "https://snowscan.xyz/accounts/2"}, fetched)
}

func TestTableProducer_FetchError(t *testing.T) {
	p := NewTableProducer(config.SourceConfig{Name: "x", URLs: []string{"https://x.example"}, Row: "tr"},
		func(context.Context, string) (string, error) { return "", errors.New("timeout") }, nil)

	_, err := p.Produce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://x.example")
}

func TestStaticProducer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Manual-Labels.json")
	content := `[{"address": "` + addrB + `", "name": "Router", "source": "etherscan"}, {"address": "` + addrA + `", "name": "Vault"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p := NewStaticProducer(path, "")
	assert.Equal(t, "manual-labels", p.Name())

	records, err := p.Produce(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "etherscan", records[0].Source)
	assert.Equal(t, "", records[1].Source)
}

func TestStaticProducer_SchemaViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"address": "nope"}]`), 0644))

	_, err := NewStaticProducer(path, "bad").Produce(context.Background())
	assert.Error(t, err)
}

func TestNextPage(t *testing.T) {
	page := `<html><body>
<a class="next" href="/labels?page=2#top">Next</a>
<a class="ext" href="https://other.example/labels">Elsewhere</a>
<a class="js" href="javascript:void(0)">More</a>
</body></html>`

	next, err := NextPage(page, "https://etherscan.io/labels?page=1", "a.next")
	require.NoError(t, err)
	assert.Equal(t, "https://etherscan.io/labels?page=2", next)

	next, err = NextPage(page, "https://etherscan.io/labels", "a.ext")
	require.NoError(t, err)
	assert.Empty(t, next)

	next, err = NextPage(page, "https://etherscan.io/labels", "a.js")
	require.NoError(t, err)
	assert.Empty(t, next)

	next, err = NextPage(page, "https://etherscan.io/labels", "a.missing")
	require.NoError(t, err)
	assert.Empty(t, next)

	_, err = NextPage(page, "/relative", "a.next")
	var linkErr *LinkError
	assert.ErrorAs(t, err, &linkErr)
}

func TestTableProducer_FollowsNextLinks(t *testing.T) {
	pages := map[string]string{
		"https://snowscan.xyz/accounts?p=1": `<table><tbody><tr><td>` + addrA + `</td><td>One</td></tr></tbody></table><a rel="next" href="?p=2">next</a>`,
		"https://snowscan.xyz/accounts?p=2": `<table><tbody><tr><td>` + addrB + `</td><td>Two</td></tr></tbody></table><a rel="next" href="?p=1">back to start</a>`,
	}
	var fetched []string
	fetcher := func(_ context.Context, url string) (string, error) {
		fetched = append(fetched, url)
		return pages[url], nil
	}
	p := NewTableProducer(config.SourceConfig{
		Name:     "snowscan",
		URLs:     []string{"https://snowscan.xyz/accounts?p=1"},
		Row:      "tbody tr",
		Address:  "td:nth-child(1)",
		NameCell: "td:nth-child(2)",
		Next:     `a[rel="next"]`,
	}, fetcher, nil)

	records, err := p.Produce(context.Background())
	require.NoError(t, err)

	// the cycle back to page one is not fetched twice
	assert.Equal(t, []string{"https://snowscan.xyz/accounts?p=1", "https://snowscan.xyz/accounts?p=2"}, fetched)
	require.Len(t, records, 2)
	assert.Equal(t, "Two", records[1].Name)
}

func TestTableProducer_MaxPages(t *testing.T) {
	n := 0
	fetcher := func(_ context.Context, _ string) (string, error) {
		n++
		return fmt.Sprintf(`<a class="next" href="/p/%d">next</a>`, n+1), nil
	}
	p := NewTableProducer(config.SourceConfig{
		Name:     "x",
		URLs:     []string{"https://x.example/p/1"},
		Row:      "tr",
		Next:     "a.next",
		MaxPages: 3,
	}, fetcher, nil)

	_, err := p.Produce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
