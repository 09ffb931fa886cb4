// Package detect holds the pure per-request detectors: SQL injection
// signatures, bot user-agent indicators, and honeypot path taxonomies.
package detect

import (
	"encoding/json"
	"strings"
)

// SQLInjection reports whether the query parameters or decoded body carry a
// known injection signature. Both are reduced to a single serialized string
// and tested against every pattern; a serialization failure counts as clean.
func SQLInjection(query map[string]string, body any) bool {
	merged := make(map[string]any, len(query)+4)
	for k, v := range query {
		merged[k] = v
	}
	if m, ok := body.(map[string]any); ok {
		for k, v := range m {
			merged[k] = v
		}
	} else if body != nil {
		merged["_body"] = body
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return false
	}
	haystack := string(raw)
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(haystack) {
			return true
		}
	}
	return false
}

// BotUserAgent reports whether the user agent matches any bot indicator.
func BotUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	for _, ind := range botIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// PathCategories holds the taxonomy flags for a single request path.
// A path may belong to several categories at once.
type PathCategories struct {
	Docs     bool
	OpenAPI  bool
	Admin    bool
	Internal bool
}

// ClassifyPath matches the path against each taxonomy list.
func ClassifyPath(path string) PathCategories {
	lower := strings.ToLower(path)
	return PathCategories{
		Docs:     matchesAny(lower, docsPaths),
		OpenAPI:  matchesAny(lower, openAPIPaths),
		Admin:    matchesAny(lower, adminPaths),
		Internal: matchesAny(lower, internalPaths),
	}
}

func IsDocsPath(path string) bool     { return matchesAny(strings.ToLower(path), docsPaths) }
func IsOpenAPIPath(path string) bool  { return matchesAny(strings.ToLower(path), openAPIPaths) }
func IsAdminPath(path string) bool    { return matchesAny(strings.ToLower(path), adminPaths) }
func IsInternalPath(path string) bool { return matchesAny(strings.ToLower(path), internalPaths) }

func matchesAny(lowerPath string, list []string) bool {
	for _, p := range list {
		if strings.Contains(lowerPath, p) {
			return true
		}
	}
	return false
}
