package ratelimit

import (
	"net/http"
	"strings"
)

// MatchEndpoint resolves the rate tier for a request. Exact path+method
// matches win; tiers whose path ends in "/" match by prefix, which covers
// the parameterized routes ("/companies/" matches "/companies/{tax_id}/...").
// Returns nil when no tier applies, leaving the caller on the default limit.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet {
		// The health check is probed by orchestration tooling, and a log
		// stream holds one long-lived connection per run rather than issuing
		// repeated requests; counting either against a budget starves them.
		if path == "/health" || strings.HasSuffix(path, "/logs/stream") {
			return &EndpointConfig{}
		}
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}

	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}

	return nil
}
