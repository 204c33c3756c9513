package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/model"
)

const (
	errorMessageMissingDataSourceName = "storage: missing cookie store data source name"
	errorMessageOpenSQLiteDatabase    = "storage: open sqlite database"
	errorMessageMigrateCookieStore    = "storage: migrate cookie store"
	errorMessageDatabaseHandle        = "storage: database handle"
)

// ErrMissingDataSourceName indicates the cookie store location was omitted.
var ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)

// OpenDatabase opens the SQLite file (or in-memory database) that holds persisted cookies.
func OpenDatabase(dataSourceName string) (*gorm.DB, error) {
	trimmedDataSourceName := strings.TrimSpace(dataSourceName)
	if trimmedDataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(sqlite.Open(trimmedDataSourceName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenSQLiteDatabase, openErr)
	}
	return database, nil
}

// AutoMigrate creates or updates the cookie table.
func AutoMigrate(database *gorm.DB) error {
	return database.AutoMigrate(&model.StoredCookie{})
}

// CookieStore is an opened, migrated cookie repository together with its connection.
type CookieStore struct {
	*CookieRepository
	database *gorm.DB
}

// OpenCookieStore opens and migrates the database at dataSourceName and wraps it in a repository.
// Callers must Close the store.
func OpenCookieStore(dataSourceName string) (*CookieStore, error) {
	database, openErr := OpenDatabase(dataSourceName)
	if openErr != nil {
		return nil, openErr
	}
	cookieStore := &CookieStore{CookieRepository: &CookieRepository{database: database}, database: database}

	if migrateErr := AutoMigrate(database); migrateErr != nil {
		_ = cookieStore.Close()
		return nil, fmt.Errorf("%s: %w", errorMessageMigrateCookieStore, migrateErr)
	}
	return cookieStore, nil
}

// Close releases the underlying connection pool.
func (cookieStore *CookieStore) Close() error {
	sqlDatabase, handleErr := cookieStore.database.DB()
	if handleErr != nil {
		return fmt.Errorf("%s: %w", errorMessageDatabaseHandle, handleErr)
	}
	return sqlDatabase.Close()
}

// NewID generates a new globally unique identifier.
func NewID() string {
	return uuid.NewString()
}
