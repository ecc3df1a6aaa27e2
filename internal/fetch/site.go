package fetch

import (
	"net/url"
	"strings"
)

// Site is a known explorer or label source.
type Site string

const (
	// SiteArkham is the Arkham Intelligence explorer.
	SiteArkham Site = "arkham"
	// SiteEtherscan is Etherscan and its sister explorers.
	SiteEtherscan Site = "etherscan"
	// SiteSnowscan is the Avalanche explorer.
	SiteSnowscan Site = "snowscan"
	// SiteDexscreener is the DEX Screener pair browser.
	SiteDexscreener Site = "dexscreener"
	// SiteUnknown is an unrecognized site.
	SiteUnknown Site = "unknown"
)

var siteHosts = []struct {
	site  Site
	hosts []string
}{
	{SiteArkham, []string{"arkhamintelligence.com", "arkm.com"}},
	{SiteSnowscan, []string{"snowscan.xyz", "snowtrace.io"}},
	{SiteDexscreener, []string{"dexscreener.com"}},
	{SiteEtherscan, []string{"etherscan.io", "bscscan.com", "polygonscan.com", "arbiscan.io"}},
}

// DetectSite identifies the site from a URL.
func DetectSite(urlStr string) Site {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return SiteUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	for _, entry := range siteHosts {
		for _, h := range entry.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return entry.site
			}
		}
	}
	return SiteUnknown
}

// RequiresBrowser reports whether the site renders its address tables client side.
func (s Site) RequiresBrowser() bool {
	switch s {
	case SiteArkham, SiteDexscreener:
		return true
	default:
		return false
	}
}
