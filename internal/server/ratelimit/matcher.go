package ratelimit

import (
	"strings"
)

// healthPath is never limited.
const healthPath = "/health"

// MatchEndpoint returns the rule for a request, or nil when the default limit
// applies. An exact path wins over a prefix rule; a rule whose path ends in "/"
// covers every path below it, so "/tags/" matches "/tags/0x5aae...beaed".
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == healthPath && method == "GET" {
		return &EndpointConfig{Path: healthPath, Method: method}
	}

	var prefix *EndpointConfig
	for i := range configs {
		rule := &configs[i]
		if rule.Method != method {
			continue
		}
		if rule.Path == path {
			return rule
		}
		if prefix == nil && strings.HasSuffix(rule.Path, "/") && strings.HasPrefix(path, rule.Path) {
			prefix = rule
		}
	}
	return prefix
}
