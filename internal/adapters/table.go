package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/jonathan/addrlens/internal/config"
	"github.com/jonathan/addrlens/internal/fetch"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/matching"
	"github.com/jonathan/addrlens/internal/types"
)

// PageFetcher returns the HTML of a page.
type PageFetcher func(ctx context.Context, url string) (string, error)

// HTTPFetcher fetches pages through fetch.Page with opts.
func HTTPFetcher(opts *fetch.Options, log *logger.Logger) PageFetcher {
	return func(ctx context.Context, url string) (string, error) {
		return fetch.Page(ctx, url, opts, log)
	}
}

// TableProducer scrapes labelled address tables. Each row matched by Row yields one
// record: the address comes from the Address cell's text or attributes, the label
// from NameCell and the optional entity from EntityCell.
type TableProducer struct {
	Source     string
	URLs       []string
	Row        string
	Address    string
	NameCell   string
	EntityCell string
	// Next selects the link to the following page; empty disables paging.
	Next     string
	MaxPages int

	fetch   PageFetcher
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewTableProducer builds a producer from a configured source. A zero rate means
// no limit between pages.
func NewTableProducer(src config.SourceConfig, fetcher PageFetcher, log *logger.Logger) *TableProducer {
	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	limit := rate.Inf
	if src.Rate > 0 {
		limit = rate.Limit(src.Rate)
	}
	return &TableProducer{
		Source:     strings.ToLower(src.Name),
		URLs:       src.URLs,
		Row:        src.Row,
		Address:    src.Address,
		NameCell:   src.NameCell,
		EntityCell: src.EntityCell,
		Next:       src.Next,
		MaxPages:   maxPages,
		fetch:      fetcher,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger.OrNop(log),
	}
}

// Name returns the source name.
func (p *TableProducer) Name() string { return p.Source }

// Produce fetches every page in order and collects the rows. With Next set, each
// start URL is followed through its next-page links up to MaxPages pages.
func (p *TableProducer) Produce(ctx context.Context) ([]types.TagRecord, error) {
	var out []types.TagRecord
	seen := make(map[string]bool)
	for _, start := range p.URLs {
		url := start
		for pages := 0; url != "" && !seen[url] && pages < p.MaxPages; pages++ {
			seen[url] = true
			if err := p.limiter.Wait(ctx); err != nil {
				return out, err
			}
			html, err := p.fetch(ctx, url)
			if err != nil {
				return out, fmt.Errorf("failed to fetch %s: %w", url, err)
			}
			records, err := p.Parse(html)
			if err != nil {
				return out, fmt.Errorf("failed to parse %s: %w", url, err)
			}
			p.log.Debug().Str("source", p.Source).Str("url", url).Int("rows", len(records)).Msg("scraped page")
			out = append(out, records...)

			if p.Next == "" {
				break
			}
			url, err = NextPage(html, url, p.Next)
			if err != nil {
				p.log.Warn().Err(err).Str("source", p.Source).Msg("stopped paging")
				break
			}
		}
	}
	return out, nil
}

// Parse extracts records from one page. Rows without an address or a name are skipped.
func (p *TableProducer) Parse(html string) ([]types.TagRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out []types.TagRecord
	doc.Find(p.Row).Each(func(_ int, row *goquery.Selection) {
		addr, ok := addressIn(row.Find(p.Address))
		if !ok {
			return
		}
		name := cellText(row.Find(p.NameCell))
		if name == "" {
			return
		}
		rec := types.TagRecord{Address: addr, Name: name, Source: p.Source}
		if p.EntityCell != "" {
			rec.Entity = cellText(row.Find(p.EntityCell))
		}
		out = append(out, rec)
	})
	return out, nil
}

// addressIn finds a full address in the cell text, then in the attributes of the
// cell and its descendants. Explorers often show a shortened address and keep the
// full one in an href or title.
func addressIn(cell *goquery.Selection) (types.Address, bool) {
	if cell.Length() == 0 {
		return "", false
	}
	for m := range matching.FindAll(cell.First().Text()) {
		return m.Address, true
	}

	var found types.Address
	cell.First().Find("*").AddBack().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := s.Get(0)
		attrs := make([]matching.Attribute, 0, len(node.Attr))
		for _, a := range node.Attr {
			attrs = append(attrs, matching.Attribute{Name: a.Key, Value: a.Val})
		}
		if addr, ok := matching.FromAttributes(attrs); ok {
			found = addr
			return false
		}
		return true
	})
	return found, found != ""
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.First().Text()), " ")
}
