package testutil

import (
	"fmt"
	"log"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/storage"
)

const (
	sqliteTestDatabaseNamePrefix        = "muchtodo-cookie-test-db"
	sqliteInMemoryDataSourceNamePattern = "file:%s?mode=memory&cache=shared&_foreign_keys=on"
)

// SQLiteTestDatabase describes a uniquely named in-memory SQLite database.
type SQLiteTestDatabase struct {
	dataSourceName string
}

type testingLogWriter struct {
	testingT *testing.T
}

func (writer testingLogWriter) Write(data []byte) (int, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" {
		writer.testingT.Log(trimmed)
	}
	return len(data), nil
}

// NewSQLiteTestDatabase creates a SQLiteTestDatabase with a unique in-memory database configuration.
func NewSQLiteTestDatabase(testingT *testing.T) SQLiteTestDatabase {
	testingT.Helper()

	databaseName := fmt.Sprintf("%s-%s", sqliteTestDatabaseNamePrefix, storage.NewID())

	return SQLiteTestDatabase{
		dataSourceName: fmt.Sprintf(sqliteInMemoryDataSourceNamePattern, databaseName),
	}
}

// DataSourceName returns the SQLite data source name for the temporary database.
func (database SQLiteTestDatabase) DataSourceName() string {
	return database.dataSourceName
}

// OpenMigrated opens the database, runs the storage migrations, and closes it when the test ends.
// The shared cache keeps the in-memory contents alive while any connection stays open.
func (database SQLiteTestDatabase) OpenMigrated(testingT *testing.T) *gorm.DB {
	testingT.Helper()

	openedDatabase, openErr := storage.OpenDatabase(database.dataSourceName)
	if openErr != nil {
		testingT.Fatalf("open sqlite test database: %v", openErr)
	}
	openedDatabase = ConfigureDatabaseLogger(testingT, openedDatabase)

	if migrateErr := storage.AutoMigrate(openedDatabase); migrateErr != nil {
		testingT.Fatalf("migrate sqlite test database: %v", migrateErr)
	}

	sqlDatabase, sqlErr := openedDatabase.DB()
	if sqlErr != nil {
		testingT.Fatalf("sqlite test database handle: %v", sqlErr)
	}
	testingT.Cleanup(func() {
		_ = sqlDatabase.Close()
	})

	return openedDatabase
}

// ConfigureDatabaseLogger returns a database session that routes gorm errors to the test log.
func ConfigureDatabaseLogger(testingT *testing.T, database *gorm.DB) *gorm.DB {
	testingT.Helper()
	if database == nil {
		testingT.Fatalf("configure database logger: nil database")
	}
	gormLogger := logger.New(
		log.New(testingLogWriter{testingT: testingT}, "", 0),
		logger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  logger.Error,
		},
	)
	return database.Session(&gorm.Session{Logger: gormLogger})
}
