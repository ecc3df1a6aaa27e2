package matching

import (
	"slices"

	"github.com/jonathan/addrlens/internal/types"
)

// KnownSet supplies the addresses that abbreviated forms may resolve to.
type KnownSet interface {
	Known() []types.Address
}

// Matcher applies the recognition precedence: full addresses first, and the
// truncated and short forms only when the text holds no full address.
type Matcher struct {
	known KnownSet
}

// NewMatcher creates a Matcher. A nil known set disables abbreviated forms.
func NewMatcher(known KnownSet) *Matcher {
	return &Matcher{known: known}
}

// Scan returns all matches in text, ordered and non-overlapping. Abbreviated forms
// are tried only when text holds no full address and allowAbbreviated is set.
func (m *Matcher) Scan(text string, allowAbbreviated bool) []types.AddressMatch {
	if full := Collect(FindAll(text)); len(full) > 0 {
		return full
	}
	if !allowAbbreviated {
		return nil
	}
	return m.scanAbbreviated(text)
}

func (m *Matcher) scanAbbreviated(text string) []types.AddressMatch {
	if m.known == nil {
		return nil
	}
	known := m.known.Known()
	if len(known) == 0 {
		return nil
	}

	candidates := append(FindTruncated(text, known), FindShort(text, known)...)
	if len(candidates) == 0 {
		return nil
	}
	slices.SortStableFunc(candidates, func(a, b types.AddressMatch) int { return a.Start - b.Start })

	out := candidates[:0]
	lastEnd := -1
	for _, c := range candidates {
		if c.Start < lastEnd {
			continue
		}
		out = append(out, c)
		lastEnd = c.End
	}
	return out
}
