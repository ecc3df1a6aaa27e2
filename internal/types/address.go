// Package types defines the shared data model: normalized addresses, matches and tag records.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressHexLen is the number of hex digits in a full address.
const AddressHexLen = 40

// Address is a normalized account identifier: "0x" followed by 40 lowercase hex digits.
// Two addresses are equal only if their canonical forms are equal; display casing never matters.
type Address string

// AddressError reports a string that cannot be normalized into an Address.
type AddressError struct {
	Input   string
	Message string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Message)
}

// ParseAddress normalizes s into the canonical lowercase form.
// Surrounding whitespace is ignored; the "0x" prefix is required.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != AddressHexLen+2 {
		return "", &AddressError{Input: s, Message: fmt.Sprintf("expected %d characters, got %d", AddressHexLen+2, len(s))}
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return "", &AddressError{Input: s, Message: "missing 0x prefix"}
	}
	for i := 2; i < len(s); i++ {
		if !IsHexDigit(s[i]) {
			return "", &AddressError{Input: s, Message: fmt.Sprintf("non-hex character at offset %d", i)}
		}
	}
	return Address("0x" + strings.ToLower(s[2:])), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsHexDigit reports whether c is an ASCII hex digit.
func IsHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func (a Address) String() string { return string(a) }

// Hex returns the 40 hex digits without the prefix.
func (a Address) Hex() string {
	if len(a) < 2 {
		return ""
	}
	return string(a[2:])
}

// HasPrefixHex reports whether the hex digits start with frag, ignoring case.
func (a Address) HasPrefixHex(frag string) bool {
	h := a.Hex()
	return len(frag) <= len(h) && strings.EqualFold(h[:len(frag)], frag)
}

// HasSuffixHex reports whether the hex digits end with frag, ignoring case.
func (a Address) HasSuffixHex(frag string) bool {
	h := a.Hex()
	return len(frag) <= len(h) && strings.EqualFold(h[len(h)-len(frag):], frag)
}

// Suffix returns the last n hex digits.
func (a Address) Suffix(n int) string {
	h := a.Hex()
	if n >= len(h) {
		return h
	}
	return h[len(h)-n:]
}

// Short renders the address as 0x1234…abcd.
func (a Address) Short() string {
	h := a.Hex()
	if len(h) < 8 {
		return string(a)
	}
	return "0x" + h[:4] + "…" + h[len(h)-4:]
}

// Checksum returns the EIP-55 mixed-case display form. It is used for display only.
func (a Address) Checksum() string {
	h := a.Hex()
	if len(h) != AddressHexLen {
		return string(a)
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(h))
	digest := hex.EncodeToString(hasher.Sum(nil))

	out := make([]byte, 0, AddressHexLen+2)
	out = append(out, '0', 'x')
	for i := 0; i < AddressHexLen; i++ {
		c := h[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
