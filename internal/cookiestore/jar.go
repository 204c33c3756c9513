// Package cookiestore provides an http.CookieJar whose contents outlive the process.
package cookiestore

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/model"
)

const (
	logEventPersistCookies = "persist_cookies"
	logEventReplayCookie   = "replay_cookie"
	logFieldSourceURL      = "source_url"
	logFieldCookieCount    = "cookies"

	errorMessageNilRepository = "cookiestore: nil repository"
	errorMessageCreateJar     = "cookiestore: create jar"
	errorMessageLoadCookies   = "cookiestore: load cookies"
)

// ErrNilRepository indicates the jar was constructed without a repository.
var ErrNilRepository = errors.New(errorMessageNilRepository)

// Repository persists and restores cookies.
type Repository interface {
	Save(requestURL *url.URL, cookies []*http.Cookie, now time.Time) error
	LoadAll(now time.Time) ([]model.StoredCookie, error)
}

// NewMemoryJar returns an in-memory jar that applies public suffix rules.
func NewMemoryJar() (*cookiejar.Jar, error) {
	jar, jarErr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if jarErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageCreateJar, jarErr)
	}
	return jar, nil
}

// Jar matches cookies in memory and writes every received cookie through to a repository.
type Jar struct {
	memoryJar   *cookiejar.Jar
	repository  Repository
	logger      *zap.Logger
	clock       func() time.Time
	persistLock sync.Mutex
}

// Option customizes a Jar.
type Option func(*Jar)

// WithClock overrides the time source used for expiry decisions.
func WithClock(clock func() time.Time) Option {
	return func(jar *Jar) {
		if clock != nil {
			jar.clock = clock
		}
	}
}

// NewJar builds a Jar and replays the unexpired cookies already stored in repository.
func NewJar(repository Repository, logger *zap.Logger, options ...Option) (*Jar, error) {
	if repository == nil {
		return nil, ErrNilRepository
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	memoryJar, memoryErr := NewMemoryJar()
	if memoryErr != nil {
		return nil, memoryErr
	}

	jar := &Jar{
		memoryJar:  memoryJar,
		repository: repository,
		logger:     logger,
		clock:      time.Now,
	}
	for _, option := range options {
		option(jar)
	}

	storedCookies, loadErr := repository.LoadAll(jar.clock())
	if loadErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageLoadCookies, loadErr)
	}
	jar.replay(storedCookies)

	return jar, nil
}

// SetCookies records cookies in memory and persists them. Persistence failures are logged only.
// Memory and repository are updated under one lock so both see responses in the same order.
func (jar *Jar) SetCookies(requestURL *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}

	jar.persistLock.Lock()
	defer jar.persistLock.Unlock()

	jar.memoryJar.SetCookies(requestURL, cookies)
	if saveErr := jar.repository.Save(requestURL, cookies, jar.clock()); saveErr != nil {
		jar.logger.Warn(logEventPersistCookies,
			zap.String(logFieldSourceURL, requestURL.Redacted()),
			zap.Int(logFieldCookieCount, len(cookies)),
			zap.Error(saveErr),
		)
	}
}

// Cookies returns the cookies to send with a request to requestURL.
func (jar *Jar) Cookies(requestURL *url.URL) []*http.Cookie {
	return jar.memoryJar.Cookies(requestURL)
}

func (jar *Jar) replay(storedCookies []model.StoredCookie) {
	for _, storedCookie := range storedCookies {
		sourceURL, parseErr := url.Parse(storedCookie.SourceURL)
		if parseErr != nil {
			jar.logger.Warn(logEventReplayCookie, zap.String(logFieldSourceURL, storedCookie.SourceURL), zap.Error(parseErr))
			continue
		}
		jar.memoryJar.SetCookies(sourceURL, []*http.Cookie{storedCookie.HTTPCookie()})
	}
}
