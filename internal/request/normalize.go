// Package request turns an incoming http.Request into the normalized
// metadata the detection pipeline works on.
package request

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// APIKeyStatus classifies the credential presented with a request.
type APIKeyStatus string

const (
	APIKeyCorrect APIKeyStatus = "correct"
	APIKeyWrong   APIKeyStatus = "wrong"
	APIKeyNone    APIKeyStatus = "none"
)

// Metadata is the normalized view of one honeypot request.
type Metadata struct {
	IP        string
	UserAgent string
	Method    string
	Path      string
	Query     map[string]string
	Body      any               // decoded JSON value or form map; nil when absent
	RawBody   string            // serialized body kept for record persistence
	Headers   map[string]string // cookie-family headers stripped

	APIKeyStatus APIKeyStatus
	APIKeyUsed   string
}

// Normalize extracts metadata from r. It never fails: malformed headers or
// undecodable bodies degrade to absent fields. The body is read up to
// maxBody bytes; baitKey is the planted key the honeypot accepts.
func Normalize(r *http.Request, maxBody int64, baitKey string) Metadata {
	meta := Metadata{
		IP:        ClientIP(r),
		UserAgent: userAgent(r),
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     flattenQuery(r.URL.Query()),
		Headers:   sanitizeHeaders(r.Header),
	}
	meta.Body, meta.RawBody = decodeBody(r, maxBody)
	meta.APIKeyStatus, meta.APIKeyUsed = classifyAPIKey(meta.Headers, baitKey)
	return meta
}

// ClientIP resolves the originating address, preferring proxy headers.
// The honeypot always sits behind an edge proxy, so the forwarded chain is
// authoritative; with no forwarding headers the caller is unattributable.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	return "unknown"
}

func userAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}

// flattenQuery reduces multi-valued params to a string map. The last value
// wins on duplicates, matching url.Values ordering, so the result is
// deterministic for a given raw query.
func flattenQuery(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[len(vs)-1]
		}
	}
	return out
}

func sanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		lower := strings.ToLower(name)
		if lower == "cookie" || lower == "set-cookie" {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func decodeBody(r *http.Request, maxBody int64) (any, string) {
	if r.Body == nil {
		return nil, ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || len(raw) == 0 {
		return nil, ""
	}

	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "application/json"):
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, string(raw)
		}
		return v, string(raw)
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, string(raw)
		}
		form := make(map[string]any, len(values))
		for k, vs := range values {
			if len(vs) > 0 {
				form[k] = vs[len(vs)-1]
			}
		}
		return form, string(raw)
	default:
		return nil, string(raw)
	}
}

// classifyAPIKey scans headers for a presented credential. A header
// qualifies when its value carries an sk_/sk- prefix anywhere or its name
// looks credential-bearing. The first qualifying header decides the status;
// names are scanned in sorted order so "first" is stable despite Go's map
// iteration randomization.
func classifyAPIKey(headers map[string]string, baitKey string) (APIKeyStatus, string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := headers[name]
		lowerName := strings.ToLower(name)
		qualifies := strings.Contains(value, "sk_") ||
			strings.Contains(value, "sk-") ||
			strings.Contains(lowerName, "api") ||
			strings.Contains(lowerName, "authorization") ||
			strings.Contains(lowerName, "x-api-key")
		if !qualifies {
			continue
		}
		if baitKey != "" && (value == baitKey || strings.Contains(value, baitKey)) {
			return APIKeyCorrect, value
		}
		return APIKeyWrong, value
	}
	return APIKeyNone, ""
}
