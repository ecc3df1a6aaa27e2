// Package matching finds address occurrences in plain text.
// It has no DOM dependency: callers hand it strings and attribute lists.
package matching

import (
	"iter"
	"regexp"

	"github.com/jonathan/addrlens/internal/types"
)

// hexRun finds 0x-prefixed hex runs of at least 40 digits; runs longer than 40
// (transaction hashes, calldata) are rejected by FindAll.
var hexRun = regexp.MustCompile(`0x[0-9a-fA-F]{40,}`)

// FindAll returns the full-form address matches in text, ordered by position.
// The sequence is lazy and can be ranged over more than once.
func FindAll(text string) iter.Seq[types.AddressMatch] {
	return func(yield func(types.AddressMatch) bool) {
		rest, offset := text, 0
		for {
			loc := hexRun.FindStringIndex(rest)
			if loc == nil {
				return
			}
			start, end := offset+loc[0], offset+loc[1]
			rest, offset = text[end:], end

			if end-start != types.AddressHexLen+2 {
				continue
			}
			// 0x0x12... or a0x12... is not a standalone address
			if start > 0 && isWordByte(text[start-1]) {
				continue
			}
			display := text[start:end]
			addr, err := types.ParseAddress(display)
			if err != nil {
				continue
			}
			if !yield(types.AddressMatch{Address: addr, DisplayText: display, Start: start, End: end}) {
				return
			}
		}
	}
}

// Collect drains a match sequence into a slice.
func Collect(seq iter.Seq[types.AddressMatch]) []types.AddressMatch {
	var out []types.AddressMatch
	for m := range seq {
		out = append(out, m)
	}
	return out
}

func isWordByte(c byte) bool {
	return types.IsHexDigit(c) || ('g' <= c && c <= 'z') || ('G' <= c && c <= 'Z') || c == '_'
}
