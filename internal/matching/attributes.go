package matching

import (
	"regexp"
	"strings"

	"github.com/jonathan/addrlens/internal/types"
)

// Attribute is one name/value pair taken from an element.
type Attribute struct {
	Name  string
	Value string
}

// hintOrder ranks the named hint attributes; other data-* come after, href last.
var hintOrder = []string{"title", "data-address", "data-original-title", "data-clipboard-text"}

var (
	embeddedAddress = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	visualToken     = regexp.MustCompile(`0x[0-9a-fA-F]*(?:\.{2,}|…)?[0-9a-fA-F]*`)
)

// LooksTruncated reports whether text shows something address-like that did not
// produce a direct match.
func LooksTruncated(text string) bool {
	return strings.Contains(strings.ToLower(text), "0x")
}

// TruncatedSpan returns the byte span of the first 0x token in text.
func TruncatedSpan(text string) (start, end int, ok bool) {
	loc := visualToken.FindStringIndex(text)
	if loc == nil {
		lower := strings.ToLower(text)
		i := strings.Index(lower, "0x")
		if i < 0 {
			return 0, 0, false
		}
		return i, i + 2, true
	}
	return loc[0], loc[1], true
}

// IsTransactionHref reports whether an href points at a transaction page.
func IsTransactionHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.Contains(lower, "/tx/") || strings.Contains(lower, "/transaction/")
}

// FromAttributes looks for a full address in the hint attributes of one element.
func FromAttributes(attrs []Attribute) (types.Address, bool) {
	for _, name := range hintOrder {
		for _, a := range attrs {
			if strings.EqualFold(a.Name, name) {
				if addr, ok := extract(a.Value); ok {
					return addr, true
				}
			}
		}
	}
	for _, a := range attrs {
		name := strings.ToLower(a.Name)
		if !strings.HasPrefix(name, "data-") || isNamedHint(name) {
			continue
		}
		if addr, ok := extract(a.Value); ok {
			return addr, true
		}
	}
	for _, a := range attrs {
		if !strings.EqualFold(a.Name, "href") || IsTransactionHref(a.Value) {
			continue
		}
		if addr, ok := extract(a.Value); ok {
			return addr, true
		}
	}
	return "", false
}

func isNamedHint(name string) bool {
	for _, h := range hintOrder {
		if h == name {
			return true
		}
	}
	return false
}

func extract(value string) (types.Address, bool) {
	for _, loc := range embeddedAddress.FindAllStringIndex(value, -1) {
		if loc[1] < len(value) && types.IsHexDigit(value[loc[1]]) {
			continue
		}
		addr, err := types.ParseAddress(value[loc[0]:loc[1]])
		if err == nil {
			return addr, true
		}
	}
	return "", false
}
