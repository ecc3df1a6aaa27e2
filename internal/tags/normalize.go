package tags

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/addrlens/internal/types"
)

// Rejected describes an input row dropped during normalization.
type Rejected struct {
	Index  int
	Reason string
}

// Normalize cleans raw records before import: addresses are canonicalized, names and
// entities trimmed and NFC-normalized, and a missing source filled with defaultSource.
// Rows that still fail validation are dropped and reported.
func Normalize(raw []types.TagRecord, defaultSource string) ([]types.TagRecord, []Rejected) {
	out := make([]types.TagRecord, 0, len(raw))
	var rejected []Rejected
	for i, rec := range raw {
		addr, err := types.ParseAddress(string(rec.Address))
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		rec.Address = addr
		rec.Name = norm.NFC.String(strings.TrimSpace(rec.Name))
		rec.Entity = norm.NFC.String(strings.TrimSpace(rec.Entity))
		rec.Source = strings.ToLower(strings.TrimSpace(rec.Source))
		if rec.Source == "" {
			rec.Source = defaultSource
		}
		if err := rec.Validate(); err != nil {
			rejected = append(rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		out = append(out, rec)
	}
	return out, rejected
}
