// Package apibase computes the base URL that API clients issue requests against.
package apibase

import "strings"

const (
	// PathSuffix is the path segment every effective base URL ends with.
	PathSuffix = "/api"

	trailingSlash = "/"
)

// Resolve returns the effective API base URL.
//
// An empty override selects originFallback + PathSuffix. A non-empty override
// loses at most one trailing slash and receives PathSuffix unless it already
// ends with it. Malformed overrides are passed through unvalidated.
func Resolve(override string, originFallback string) string {
	if override == "" {
		return originFallback + PathSuffix
	}

	stripped := strings.TrimSuffix(override, trailingSlash)
	if strings.HasSuffix(stripped, PathSuffix) {
		return stripped
	}
	return stripped + PathSuffix
}

// ResolveOptional treats a nil override the same as an empty one.
func ResolveOptional(override *string, originFallback string) string {
	if override == nil {
		return Resolve("", originFallback)
	}
	return Resolve(*override, originFallback)
}

// Origin joins a scheme and a host (with optional port) into an origin string.
func Origin(scheme string, host string) string {
	return scheme + "://" + host
}
