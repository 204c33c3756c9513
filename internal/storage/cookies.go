package storage

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/model"
)

const (
	errorMessageNilDatabase   = "storage: nil database"
	errorMessageSaveCookie    = "storage: save cookie"
	errorMessageDeleteCookie  = "storage: delete cookie"
	errorMessageLoadCookies   = "storage: load cookies"
	errorMessagePruneCookies  = "storage: prune expired cookies"
	errorMessageClearCookies  = "storage: clear cookies"
	cookieIdentityWhereClause = "source_url = ? AND name = ? AND domain = ? AND path = ?"
	cookieOrderByAge          = "updated_at, name"
)

// ErrNilDatabase indicates a repository was constructed without a database handle.
var ErrNilDatabase = errors.New(errorMessageNilDatabase)

var (
	cookieIdentityColumns = []clause.Column{{Name: "source_url"}, {Name: "name"}, {Name: "domain"}, {Name: "path"}}
	cookieUpdatedColumns  = []string{"value", "expires_at", "secure", "http_only", "same_site", "updated_at"}
)

// CookieRepository persists cookies received by the API client.
type CookieRepository struct {
	database *gorm.DB
}

// NewCookieRepository builds a repository on a migrated database.
func NewCookieRepository(database *gorm.DB) (*CookieRepository, error) {
	if database == nil {
		return nil, ErrNilDatabase
	}
	return &CookieRepository{database: database}, nil
}

// Save upserts cookies received from requestURL and removes the ones the server expired.
// Cookies are identified by origin, domain, path and name, so a cookie set on one endpoint
// is replaced or removed by a response from any other endpoint of the same origin.
func (repository *CookieRepository) Save(requestURL *url.URL, cookies []*http.Cookie, now time.Time) error {
	return repository.database.Transaction(func(transaction *gorm.DB) error {
		for _, cookie := range cookies {
			storedCookie, buildErr := model.NewStoredCookie(requestURL, cookie, now)
			if buildErr != nil {
				return fmt.Errorf("%s: %w", errorMessageSaveCookie, buildErr)
			}

			if model.IsCookieRemoval(cookie, now) {
				deleteErr := transaction.
					Where(cookieIdentityWhereClause, storedCookie.SourceURL, storedCookie.Name, storedCookie.Domain, storedCookie.Path).
					Delete(&model.StoredCookie{}).Error
				if deleteErr != nil {
					return fmt.Errorf("%s: %w", errorMessageDeleteCookie, deleteErr)
				}
				continue
			}

			storedCookie.ID = NewID()
			upsertErr := transaction.Clauses(clause.OnConflict{
				Columns:   cookieIdentityColumns,
				DoUpdates: clause.AssignmentColumns(cookieUpdatedColumns),
			}).Create(&storedCookie).Error
			if upsertErr != nil {
				return fmt.Errorf("%s: %w", errorMessageSaveCookie, upsertErr)
			}
		}
		return nil
	})
}

// LoadAll returns every unexpired cookie, oldest update first, and prunes the expired ones.
func (repository *CookieRepository) LoadAll(now time.Time) ([]model.StoredCookie, error) {
	var storedCookies []model.StoredCookie
	if findErr := repository.database.Order(cookieOrderByAge).Find(&storedCookies).Error; findErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageLoadCookies, findErr)
	}

	unexpired := make([]model.StoredCookie, 0, len(storedCookies))
	var expiredIDs []string
	for _, storedCookie := range storedCookies {
		if storedCookie.Expired(now) {
			expiredIDs = append(expiredIDs, storedCookie.ID)
			continue
		}
		unexpired = append(unexpired, storedCookie)
	}

	if len(expiredIDs) > 0 {
		if pruneErr := repository.database.Delete(&model.StoredCookie{}, "id IN ?", expiredIDs).Error; pruneErr != nil {
			return nil, fmt.Errorf("%s: %w", errorMessagePruneCookies, pruneErr)
		}
	}
	return unexpired, nil
}

// Clear removes every stored cookie.
func (repository *CookieRepository) Clear() error {
	clearErr := repository.database.
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.StoredCookie{}).Error
	if clearErr != nil {
		return fmt.Errorf("%s: %w", errorMessageClearCookies, clearErr)
	}
	return nil
}
