package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/MarkoPoloResearchLab/muchtodo_web/pkg/apibase"
)

const (
	headerForwarded        = "Forwarded"
	headerXForwardedProto  = "X-Forwarded-Proto"
	headerXForwardedScheme = "X-Forwarded-Scheme"
	headerXForwardedHost   = "X-Forwarded-Host"
	headerXForwardedPort   = "X-Forwarded-Port"
	forwardedProtoPrefix   = "proto="
	forwardedHostPrefix    = "host="
	headerValueSeparator   = ","
	forwardedPairSeparator = ";"
	urlSchemeHTTP          = "http"
	urlSchemeHTTPS         = "https"
)

// OriginResolver derives the origin a browser used to reach the frontend host.
type OriginResolver struct {
	fallbackOrigin *url.URL
}

// NewOriginResolver builds a resolver that falls back to configuredOrigin when a request
// carries no usable scheme or host. An unparsable configuredOrigin is ignored.
func NewOriginResolver(configuredOrigin string) OriginResolver {
	parsedOrigin, parseErr := url.Parse(strings.TrimSpace(configuredOrigin))
	if parseErr != nil || parsedOrigin.Host == "" {
		return OriginResolver{}
	}
	return OriginResolver{fallbackOrigin: parsedOrigin}
}

// RequestOrigin returns scheme://host[:port] for request, honoring proxy headers.
func (resolver OriginResolver) RequestOrigin(request *http.Request) string {
	host := resolver.resolveHost(request)
	if host == "" {
		return ""
	}

	port := firstHeaderValue(request.Header.Get(headerXForwardedPort))
	if port != "" && !strings.Contains(host, ":") {
		host = host + ":" + port
	}

	return apibase.Origin(resolver.resolveScheme(request), host)
}

func (resolver OriginResolver) resolveScheme(request *http.Request) string {
	if forwardedProto := extractForwardedDirective(request.Header.Get(headerForwarded), forwardedProtoPrefix); forwardedProto != "" {
		return strings.ToLower(forwardedProto)
	}

	if protoHeader := firstHeaderValue(request.Header.Get(headerXForwardedProto)); protoHeader != "" {
		return strings.ToLower(protoHeader)
	}

	if schemeHeader := firstHeaderValue(request.Header.Get(headerXForwardedScheme)); schemeHeader != "" {
		return strings.ToLower(schemeHeader)
	}

	if request.TLS != nil {
		return urlSchemeHTTPS
	}

	if request.URL != nil && request.URL.Scheme != "" {
		return strings.ToLower(request.URL.Scheme)
	}

	if resolver.fallbackOrigin != nil && request.Host == "" && resolver.fallbackOrigin.Scheme != "" {
		return strings.ToLower(resolver.fallbackOrigin.Scheme)
	}

	return urlSchemeHTTP
}

func (resolver OriginResolver) resolveHost(request *http.Request) string {
	if forwardedHost := extractForwardedDirective(request.Header.Get(headerForwarded), forwardedHostPrefix); forwardedHost != "" {
		return forwardedHost
	}

	if hostHeader := firstHeaderValue(request.Header.Get(headerXForwardedHost)); hostHeader != "" {
		return hostHeader
	}

	if request.Host != "" {
		return request.Host
	}

	if resolver.fallbackOrigin != nil {
		return resolver.fallbackOrigin.Host
	}

	return ""
}

func firstHeaderValue(rawValue string) string {
	if rawValue == "" {
		return ""
	}

	for _, segment := range strings.Split(rawValue, headerValueSeparator) {
		trimmedSegment := strings.TrimSpace(segment)
		if trimmedSegment != "" {
			return trimmedSegment
		}
	}

	return ""
}

func extractForwardedDirective(headerValue string, prefix string) string {
	if headerValue == "" {
		return ""
	}

	for _, directive := range strings.Split(headerValue, headerValueSeparator) {
		trimmedDirective := strings.TrimSpace(directive)
		if trimmedDirective == "" {
			continue
		}

		for _, pair := range strings.Split(trimmedDirective, forwardedPairSeparator) {
			trimmedPair := strings.TrimSpace(pair)
			if !strings.HasPrefix(strings.ToLower(trimmedPair), prefix) {
				continue
			}

			value := strings.Trim(strings.TrimSpace(trimmedPair[len(prefix):]), "\"")
			if value != "" {
				return value
			}
		}
	}

	return ""
}
