package types

import "fmt"

// AddressMatch is one recognized address occurrence inside a piece of text.
// Start and End are byte offsets into the scanned text.
type AddressMatch struct {
	Address     Address `json:"address"`
	DisplayText string  `json:"display_text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Truncated   bool    `json:"truncated"`
}

// Validate checks the span invariant against the source text.
func (m AddressMatch) Validate(text string) error {
	if m.Start < 0 || m.Start >= m.End || m.End > len(text) {
		return fmt.Errorf("match span [%d,%d) out of range for text of length %d", m.Start, m.End, len(text))
	}
	if text[m.Start:m.End] != m.DisplayText {
		return fmt.Errorf("match display text %q does not equal source span %q", m.DisplayText, text[m.Start:m.End])
	}
	return nil
}
