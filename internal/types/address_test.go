package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress_NormalizesCase(t *testing.T) {
	addr, err := ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	assert.Equal(t, Address("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"), addr)

	upper, err := ParseAddress("  0X5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED ")
	require.NoError(t, err)
	assert.Equal(t, addr, upper)
}

func TestParseAddress_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "0x1234"},
		{"too long", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00"},
		{"no prefix", "005aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{"non hex", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			require.Error(t, err)
			var addrErr *AddressError
			assert.ErrorAs(t, err, &addrErr)
		})
	}
}

func TestAddress_Checksum(t *testing.T) {
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, v := range vectors {
		assert.Equal(t, v, MustParseAddress(v).Checksum())
	}
}

func TestAddress_Fragments(t *testing.T) {
	addr := MustParseAddress("0xABCDEF0123456789abcdef0123456789ABCD789A")

	assert.True(t, addr.HasPrefixHex("abc"))
	assert.True(t, addr.HasPrefixHex("ABCDEF01"))
	assert.False(t, addr.HasPrefixHex("abd"))
	assert.True(t, addr.HasSuffixHex("89a"))
	assert.True(t, addr.HasSuffixHex("789A"))
	assert.False(t, addr.HasSuffixHex("88a"))
	assert.Equal(t, "789a", addr.Suffix(4))
	assert.Equal(t, "0xabcd…789a", addr.Short())
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcd789a", addr.Hex())
}

func TestAddressMatch_Validate(t *testing.T) {
	text := "sent to 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed today"
	m := AddressMatch{
		Address:     MustParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
		DisplayText: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		Start:       8,
		End:         50,
	}
	require.NoError(t, m.Validate(text))

	m.End = len(text) + 1
	assert.Error(t, m.Validate(text))

	m.Start, m.End = 5, 5
	assert.Error(t, m.Validate(text))
}

func TestTagRecord_Validate(t *testing.T) {
	rec := TagRecord{
		Address: MustParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
		Name:    "Binance 14",
		Source:  "arkham",
	}
	require.NoError(t, rec.Validate())

	rec.Name = ""
	assert.Error(t, rec.Validate())

	rec.Name = "x"
	rec.Address = "0x12"
	assert.Error(t, rec.Validate())
}
