package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSite(t *testing.T) {
	tests := []struct {
		url      string
		expected Site
	}{
		{"https://intel.arkm.com/explorer/address/0xabc", SiteArkham},
		{"https://platform.arkhamintelligence.com/explorer/entity/binance", SiteArkham},
		{"https://etherscan.io/address/0xabc", SiteEtherscan},
		{"https://bscscan.com/accounts", SiteEtherscan},
		{"https://snowscan.xyz/accounts/label/exchange", SiteSnowscan},
		{"https://dexscreener.com/ethereum/0xabc", SiteDexscreener},
		{"https://notetherscan.io/address", SiteUnknown},
		{"https://example.com", SiteUnknown},
		{"::not a url", SiteUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSite(tt.url))
		})
	}
}

func TestSite_RequiresBrowser(t *testing.T) {
	assert.True(t, SiteArkham.RequiresBrowser())
	assert.True(t, SiteDexscreener.RequiresBrowser())
	assert.False(t, SiteEtherscan.RequiresBrowser())
	assert.False(t, SiteUnknown.RequiresBrowser())
}
