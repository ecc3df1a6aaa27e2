package fetch

import (
	"context"
	"html"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/addrlens/internal/logger"
)

// WatchHandler receives a live page. OnLoad gets the rendered HTML once; OnInsert
// gets the outer HTML of every element or text node the page inserts afterwards.
// Both are called from browser event goroutines.
type WatchHandler struct {
	OnLoad   func(html string)
	OnInsert func(fragment string)
}

// Watch opens url in a headless browser and streams DOM insertions until ctx is done.
func Watch(ctx context.Context, url string, loadTimeout time.Duration, h WatchHandler, log *logger.Logger) error {
	log = logger.OrNop(log)
	if loadTimeout <= 0 {
		loadTimeout = DefaultTimeout
	}

	browserCtx, cancel := newBrowser(ctx)
	defer cancel()

	// the first Run owns the browser lifetime, so it must not carry the load timeout
	if err := chromedp.Run(browserCtx); err != nil {
		return &Error{URL: url, Message: "failed to start browser", Cause: err}
	}

	chromedp.ListenTarget(browserCtx, func(ev any) {
		inserted, ok := ev.(*dom.EventChildNodeInserted)
		if !ok || inserted.Node == nil || h.OnInsert == nil {
			return
		}
		node := inserted.Node
		switch node.NodeType {
		case cdp.NodeTypeText:
			h.OnInsert(html.EscapeString(node.NodeValue))
		case cdp.NodeTypeElement:
			// commands cannot run inside the listener
			go func() {
				var outer string
				err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
					var err error
					outer, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
					return err
				}))
				if err != nil {
					log.Debug().Err(err).Msg("inserted node vanished before it could be read")
					return
				}
				h.OnInsert(outer)
			}()
		}
	})

	loadCtx, cancelLoad := context.WithTimeout(browserCtx, loadTimeout)
	var page string
	err := chromedp.Run(loadCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &page),
		// child insert events are only sent for nodes the client has seen
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
			return err
		}),
	)
	cancelLoad()
	if err != nil {
		return &Error{URL: url, Message: "failed to load page for watching", Cause: err}
	}
	if h.OnLoad != nil {
		h.OnLoad(page)
	}
	log.Info().Str("url", url).Msg("watching page for insertions")

	<-ctx.Done()
	return nil
}
