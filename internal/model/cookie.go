package model

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	storedCookieSourceURLMaxLength = 2048
	storedCookieNameMaxLength      = 256
	cookiePathSeparator            = "/"
	cookieDomainPrefix             = "."
)

var (
	ErrInvalidCookieSourceURL = errors.New("invalid_cookie_source_url")
	ErrInvalidCookieName      = errors.New("invalid_cookie_name")
)

// StoredCookie is a cookie received from the API, kept so later processes can replay it.
type StoredCookie struct {
	ID        string `gorm:"primaryKey;size:36"`
	SourceURL string `gorm:"not null;size:2048;uniqueIndex:idx_stored_cookies_identity"`
	Name      string `gorm:"not null;size:256;uniqueIndex:idx_stored_cookies_identity"`
	Domain    string `gorm:"not null;default:'';size:255;uniqueIndex:idx_stored_cookies_identity"`
	Path      string `gorm:"not null;default:'';size:1024;uniqueIndex:idx_stored_cookies_identity"`
	Value     string `gorm:"size:4096"`
	ExpiresAt time.Time
	Secure    bool
	HTTPOnly  bool
	SameSite  int
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// CookieSourceURL reduces a request URL to its origin. Cookies received from any path of one
// origin share a single identity, the same way an http.CookieJar keys them.
func CookieSourceURL(requestURL *url.URL) (string, error) {
	if requestURL == nil || requestURL.Scheme == "" || requestURL.Host == "" {
		return "", ErrInvalidCookieSourceURL
	}
	sourceURL := url.URL{
		Scheme: strings.ToLower(requestURL.Scheme),
		Host:   strings.ToLower(requestURL.Host),
	}
	normalized := sourceURL.String()
	if len(normalized) > storedCookieSourceURLMaxLength {
		return "", ErrInvalidCookieSourceURL
	}
	return normalized, nil
}

// NewStoredCookie converts a received cookie into its persisted form.
// A positive MaxAge is converted into an absolute expiry relative to now.
func NewStoredCookie(requestURL *url.URL, cookie *http.Cookie, now time.Time) (StoredCookie, error) {
	sourceURL, sourceErr := CookieSourceURL(requestURL)
	if sourceErr != nil {
		return StoredCookie{}, sourceErr
	}
	if cookie == nil {
		return StoredCookie{}, ErrInvalidCookieName
	}
	name := strings.TrimSpace(cookie.Name)
	if name == "" || len(name) > storedCookieNameMaxLength {
		return StoredCookie{}, ErrInvalidCookieName
	}

	expiresAt := cookie.Expires.UTC()
	if cookie.MaxAge > 0 {
		expiresAt = now.UTC().Add(time.Duration(cookie.MaxAge) * time.Second)
	}

	return StoredCookie{
		SourceURL: sourceURL,
		Name:      name,
		Domain:    CookieDomain(cookie.Domain),
		Path:      CookiePath(requestURL, cookie.Path),
		Value:     cookie.Value,
		ExpiresAt: expiresAt,
		Secure:    cookie.Secure,
		HTTPOnly:  cookie.HttpOnly,
		SameSite:  int(cookie.SameSite),
	}, nil
}

// CookieDomain normalizes a Domain attribute; an empty result marks a host-only cookie.
func CookieDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), cookieDomainPrefix)
}

// CookiePath returns the path a jar files the cookie under. A missing or relative Path
// attribute defaults to the directory of the request path (RFC 6265 section 5.1.4).
func CookiePath(requestURL *url.URL, cookiePath string) string {
	if strings.HasPrefix(cookiePath, cookiePathSeparator) {
		return cookiePath
	}
	requestPath := ""
	if requestURL != nil {
		requestPath = requestURL.Path
	}
	if !strings.HasPrefix(requestPath, cookiePathSeparator) {
		return cookiePathSeparator
	}
	lastSeparator := strings.LastIndex(requestPath, cookiePathSeparator)
	if lastSeparator == 0 {
		return cookiePathSeparator
	}
	return requestPath[:lastSeparator]
}

// IsCookieRemoval reports whether the server asked to drop the cookie.
func IsCookieRemoval(cookie *http.Cookie, now time.Time) bool {
	if cookie == nil {
		return false
	}
	if cookie.MaxAge < 0 {
		return true
	}
	return !cookie.Expires.IsZero() && !cookie.Expires.After(now)
}

// Expired reports whether the cookie outlived its expiry. Session cookies never expire here.
func (storedCookie StoredCookie) Expired(now time.Time) bool {
	return !storedCookie.ExpiresAt.IsZero() && !storedCookie.ExpiresAt.After(now)
}

// HTTPCookie rebuilds the cookie for insertion into a jar.
func (storedCookie StoredCookie) HTTPCookie() *http.Cookie {
	cookie := &http.Cookie{
		Name:     storedCookie.Name,
		Value:    storedCookie.Value,
		Domain:   storedCookie.Domain,
		Path:     storedCookie.Path,
		Secure:   storedCookie.Secure,
		HttpOnly: storedCookie.HTTPOnly,
		SameSite: http.SameSite(storedCookie.SameSite),
	}
	if !storedCookie.ExpiresAt.IsZero() {
		cookie.Expires = storedCookie.ExpiresAt
	}
	return cookie
}
