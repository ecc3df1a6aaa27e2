// Package fetch retrieves pages for annotation and tag scraping, over plain HTTP
// or through a headless browser for script-rendered sites.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/addrlens/internal/logger"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; addrlens/1.0)"

// Result holds the raw and processed content from a URL fetch.
type Result struct {
	URL         string
	HTML        string
	Text        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// UseBrowser forces headless rendering in Page.
	UseBrowser bool
	// BrowserFallback lets Page retry in a browser when the HTTP body has too
	// little text to be the real page.
	BrowserFallback bool
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		BrowserFallback: true,
	}
}

// URL retrieves HTML content from a URL.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: opts.Timeout,
	}

	// Create request with context
	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	// Set headers
	req.Header.Set("User-Agent", opts.UserAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	// Execute request
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// Read response body
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to read response body",
			Cause:   err,
		}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	// Check for non-success status
	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:     urlStr,
			Message: fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	return result, nil
}

// Page returns the HTML of urlStr, choosing between HTTP and a headless browser.
// Sites known to render client side, or an explicit UseBrowser, go straight to the
// browser; otherwise a thin HTTP response falls back to it when allowed.
func Page(ctx context.Context, urlStr string, opts *Options, log *logger.Logger) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log = logger.OrNop(log)

	site := DetectSite(urlStr)
	if opts.UseBrowser || site.RequiresBrowser() {
		log.Debug().Str("url", urlStr).Str("site", string(site)).Msg("rendering in browser")
		return WithBrowser(ctx, urlStr, opts.Timeout, log)
	}

	result, err := URL(ctx, urlStr, opts)
	if err != nil {
		return "", err
	}
	if !opts.BrowserFallback {
		return result.HTML, nil
	}

	text, err := ExtractText(result.HTML)
	if err == nil && !ShouldUseBrowser(text) {
		return result.HTML, nil
	}
	log.Info().Str("url", urlStr).Int("text_len", len(text)).Msg("page looks script rendered, retrying in browser")
	return WithBrowser(ctx, urlStr, opts.Timeout, log)
}

// ExtractText parses HTML and returns the visible body text with scripts and
// styles removed.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	text := doc.Find("body").Text()
	return cleanWhitespace(text), nil
}

// cleanWhitespace normalizes whitespace in text.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
