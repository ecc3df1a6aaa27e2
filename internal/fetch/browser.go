package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/addrlens/internal/logger"
)

// MinContentLength is the minimum extracted text length to consider HTTP fetch successful.
// If content is shorter, we should fall back to browser rendering.
const MinContentLength = 500

// settleDelay gives client-side rendering time to fill tables after the body is ready.
const settleDelay = 3 * time.Second

// ShouldUseBrowser returns true if the extracted text is too short,
// indicating the page is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// newBrowser starts a headless Chrome and returns its context.
// Requires Chrome/Chromium to be installed on the system.
func newBrowser(ctx context.Context) (context.Context, context.CancelFunc) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// WithBrowser renders a page in a headless browser and returns the rendered HTML.
func WithBrowser(ctx context.Context, url string, timeout time.Duration, log *logger.Logger) (string, error) {
	log = logger.OrNop(log)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log.Debug().Str("url", url).Msg("starting headless browser")

	browserCtx, cancel := newBrowser(ctx)
	defer cancel()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	log.Debug().Str("url", url).Int("bytes", len(html)).Msg("rendered page")
	return html, nil
}

// BrowserSimple is a simplified version that uses default timeout.
func BrowserSimple(ctx context.Context, url string) (string, error) {
	return WithBrowser(ctx, url, DefaultTimeout, nil)
}
