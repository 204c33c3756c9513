package httpapi

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginResolverRequestOrigin(t *testing.T) {
	testCases := []struct {
		name             string
		configuredOrigin string
		host             string
		headers          map[string]string
		useTLS           bool
		expected         string
	}{
		{name: "plain host", host: "app.example.com:8080", expected: "http://app.example.com:8080"},
		{name: "tls", host: "app.example.com", useTLS: true, expected: "https://app.example.com"},
		{
			name:     "x-forwarded headers",
			host:     "internal:8080",
			headers:  map[string]string{headerXForwardedProto: "https, http", headerXForwardedHost: "app.example.com"},
			expected: "https://app.example.com",
		},
		{
			name:     "x-forwarded port",
			host:     "internal",
			headers:  map[string]string{headerXForwardedScheme: "HTTPS", headerXForwardedHost: "app.example.com", headerXForwardedPort: "8443"},
			expected: "https://app.example.com:8443",
		},
		{
			name:     "forwarded header wins",
			host:     "internal",
			headers:  map[string]string{headerForwarded: `for=1.2.3.4;proto=https;host="edge.example.com"`, headerXForwardedHost: "ignored.example.com"},
			expected: "https://edge.example.com",
		},
		{name: "configured fallback", configuredOrigin: "https://app.example.com", host: "", expected: "https://app.example.com"},
		{name: "no host at all", configuredOrigin: "::bad", host: "", expected: ""},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/runtime-config.json", nil)
			request.Host = testCase.host
			if testCase.useTLS {
				request.TLS = &tls.ConnectionState{}
			} else {
				request.TLS = nil
			}
			for headerName, headerValue := range testCase.headers {
				request.Header.Set(headerName, headerValue)
			}

			resolver := NewOriginResolver(testCase.configuredOrigin)
			require.Equal(testingT, testCase.expected, resolver.RequestOrigin(request))
		})
	}
}
