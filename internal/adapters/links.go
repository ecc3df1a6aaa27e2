package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxPages bounds how many pages one start URL is followed through.
const DefaultMaxPages = 10

// LinkError represents a failure resolving a next-page link.
type LinkError struct {
	Message string
	Cause   error
}

func (e *LinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("link error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("link error: %s", e.Message)
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// NextPage returns the absolute URL of the first link matched by selector in
// htmlContent, resolved against pageURL. It returns "" when there is no such link
// or it leaves the page's host.
func NextPage(htmlContent, pageURL, selector string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", &LinkError{Message: "failed to parse page URL", Cause: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return "", &LinkError{Message: fmt.Sprintf("invalid page URL: %s (must have scheme and host)", pageURL)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", &LinkError{Message: "failed to parse HTML", Cause: err}
	}

	href, ok := doc.Find(selector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", nil
	}
	linkURL, err := url.Parse(href)
	if err != nil {
		return "", &LinkError{Message: fmt.Sprintf("malformed next link %q", href), Cause: err}
	}

	next := base.ResolveReference(linkURL)
	if next.Host != base.Host {
		return "", nil
	}
	next.Fragment = ""
	return next.String(), nil
}
