package matching

import (
	"regexp"

	"github.com/jonathan/addrlens/internal/types"
)

var (
	truncatedPattern = regexp.MustCompile(`0x([0-9a-fA-F]{3,10})(?:\.{2,3}|…)([0-9a-fA-F]{3,10})`)
	shortPattern     = regexp.MustCompile(`\(0x([0-9a-fA-F]{3,6})\)`)
)

// FindTruncated finds 0xabc...def style abbreviations and resolves each against the
// known addresses. Unresolvable abbreviations are skipped. known is searched in order
// and the first address whose prefix and suffix both match wins.
func FindTruncated(text string, known []types.Address) []types.AddressMatch {
	if len(known) == 0 {
		return nil
	}
	var out []types.AddressMatch
	for _, loc := range truncatedPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		// the suffix must end the hex run, otherwise it was cut at ten digits
		if end < len(text) && types.IsHexDigit(text[end]) {
			continue
		}
		if start > 0 && isWordByte(text[start-1]) {
			continue
		}
		prefix, suffix := text[loc[2]:loc[3]], text[loc[4]:loc[5]]
		addr, ok := resolveTruncated(prefix, suffix, known)
		if !ok {
			continue
		}
		out = append(out, types.AddressMatch{
			Address:     addr,
			DisplayText: text[start:end],
			Start:       start,
			End:         end,
			Truncated:   true,
		})
	}
	return out
}

func resolveTruncated(prefix, suffix string, known []types.Address) (types.Address, bool) {
	for _, addr := range known {
		if addr.HasPrefixHex(prefix) && addr.HasSuffixHex(suffix) {
			return addr, true
		}
	}
	return "", false
}

// FindShort finds parenthesized short forms such as "(0xabc123)". The match span covers
// the 0x token only; the parentheses stay outside it.
func FindShort(text string, known []types.Address) []types.AddressMatch {
	if len(known) == 0 {
		return nil
	}
	var out []types.AddressMatch
	for _, loc := range shortPattern.FindAllStringSubmatchIndex(text, -1) {
		frag := text[loc[2]:loc[3]]
		addr, ok := ResolveShort(frag, known)
		if !ok {
			continue
		}
		start, end := loc[2]-2, loc[3]
		out = append(out, types.AddressMatch{
			Address:     addr,
			DisplayText: text[start:end],
			Start:       start,
			End:         end,
			Truncated:   true,
		})
	}
	return out
}

// ResolveShort compares a short hex fragment against the leading and trailing
// window of each known address and returns the first hit.
func ResolveShort(frag string, known []types.Address) (types.Address, bool) {
	for _, addr := range known {
		if addr.HasPrefixHex(frag) || addr.HasSuffixHex(frag) {
			return addr, true
		}
	}
	return "", false
}
