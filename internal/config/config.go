// Package config loads runtime configuration from an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MarkoPoloResearchLab/muchtodo_web/pkg/apibase"
)

const (
	// EnvironmentKeyAPIBaseURL names the optional base URL override.
	EnvironmentKeyAPIBaseURL = "VITE_API_BASE_URL"
	// EnvironmentKeyAppOrigin names the origin used when no browser page supplies one.
	EnvironmentKeyAppOrigin = "APP_ORIGIN"
	// EnvironmentKeyApplicationAddress names the listen address of the frontend host.
	EnvironmentKeyApplicationAddress = "APP_ADDR"
	// EnvironmentKeyAllowedOrigins names the comma separated list of credentialed CORS origins.
	EnvironmentKeyAllowedOrigins = "ALLOWED_ORIGINS"
	// EnvironmentKeyLogLevel names the zap log level.
	EnvironmentKeyLogLevel = "LOG_LEVEL"
	// EnvironmentKeyLogFormat names the zap output format.
	EnvironmentKeyLogFormat = "LOG_FORMAT"
	// EnvironmentKeyCookieStore names the SQLite data source used to persist cookies.
	EnvironmentKeyCookieStore = "COOKIE_STORE_DSN"
	// EnvironmentKeyRequestTimeout names the per-request client timeout.
	EnvironmentKeyRequestTimeout = "REQUEST_TIMEOUT"

	DefaultAppOrigin          = "http://localhost:8080"
	DefaultApplicationAddress = ":8080"
	DefaultAllowedOrigins     = "http://localhost:5173"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultRequestTimeout     = 30 * time.Second

	configFileName = ".env"
	configFileType = "env"
	listSeparator  = ","
	listQuoteChars = "\"'"

	errorMessageReadConfig     = "config: read config file"
	errorMessageInvalidTimeout = "config: request timeout must be positive"
)

// ErrInvalidRequestTimeout indicates REQUEST_TIMEOUT parsed to a non-positive duration.
var ErrInvalidRequestTimeout = errors.New(errorMessageInvalidTimeout)

var boundEnvironmentKeys = []string{
	EnvironmentKeyAPIBaseURL,
	EnvironmentKeyAppOrigin,
	EnvironmentKeyApplicationAddress,
	EnvironmentKeyAllowedOrigins,
	EnvironmentKeyLogLevel,
	EnvironmentKeyLogFormat,
	EnvironmentKeyCookieStore,
	EnvironmentKeyRequestTimeout,
}

// Config stores the settings shared by the frontend host and the command-line client.
type Config struct {
	APIBaseURLOverride        string
	AppOrigin                 string
	ApplicationAddress        string
	AllowedOrigins            []string
	LogLevel                  string
	LogFormat                 string
	CookieStoreDataSourceName string
	RequestTimeout            time.Duration
}

// Load reads configuration from directory/.env (when directory is not empty) and the environment.
func Load(directory string) (Config, error) {
	loader := viper.New()
	if configureErr := Configure(loader, directory); configureErr != nil {
		return Config{}, configureErr
	}
	return FromLoader(loader)
}

// Configure registers defaults and environment bindings on loader and reads the optional .env file.
// A missing file is not an error.
func Configure(loader *viper.Viper, directory string) error {
	loader.SetDefault(EnvironmentKeyAppOrigin, DefaultAppOrigin)
	loader.SetDefault(EnvironmentKeyApplicationAddress, DefaultApplicationAddress)
	loader.SetDefault(EnvironmentKeyAllowedOrigins, DefaultAllowedOrigins)
	loader.SetDefault(EnvironmentKeyLogLevel, DefaultLogLevel)
	loader.SetDefault(EnvironmentKeyLogFormat, DefaultLogFormat)
	loader.SetDefault(EnvironmentKeyRequestTimeout, DefaultRequestTimeout)

	loader.AutomaticEnv()
	for _, environmentKey := range boundEnvironmentKeys {
		if bindErr := loader.BindEnv(environmentKey); bindErr != nil {
			return bindErr
		}
	}

	trimmedDirectory := strings.TrimSpace(directory)
	if trimmedDirectory == "" {
		return nil
	}

	loader.AddConfigPath(trimmedDirectory)
	loader.SetConfigName(configFileName)
	loader.SetConfigType(configFileType)
	if readErr := loader.ReadInConfig(); readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if errors.As(readErr, &notFoundErr) {
			return nil
		}
		return fmt.Errorf("%s: %w", errorMessageReadConfig, readErr)
	}
	return nil
}

// FromLoader extracts a Config from a loader prepared by Configure.
func FromLoader(loader *viper.Viper) (Config, error) {
	configuration := Config{
		APIBaseURLOverride:        loader.GetString(EnvironmentKeyAPIBaseURL),
		AppOrigin:                 strings.TrimSpace(loader.GetString(EnvironmentKeyAppOrigin)),
		ApplicationAddress:        strings.TrimSpace(loader.GetString(EnvironmentKeyApplicationAddress)),
		AllowedOrigins:            splitList(loader.GetString(EnvironmentKeyAllowedOrigins)),
		LogLevel:                  strings.TrimSpace(loader.GetString(EnvironmentKeyLogLevel)),
		LogFormat:                 strings.TrimSpace(loader.GetString(EnvironmentKeyLogFormat)),
		CookieStoreDataSourceName: strings.TrimSpace(loader.GetString(EnvironmentKeyCookieStore)),
		RequestTimeout:            loader.GetDuration(EnvironmentKeyRequestTimeout),
	}

	if configuration.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidRequestTimeout, loader.GetString(EnvironmentKeyRequestTimeout))
	}

	return configuration, nil
}

// EffectiveBaseURL resolves the API base URL against the configured application origin.
func (configuration Config) EffectiveBaseURL() string {
	return configuration.EffectiveBaseURLFor(configuration.AppOrigin)
}

// EffectiveBaseURLFor resolves the API base URL against the supplied origin.
func (configuration Config) EffectiveBaseURLFor(origin string) string {
	return apibase.Resolve(configuration.APIBaseURLOverride, origin)
}

// HasAPIBaseURLOverride reports whether an override will take precedence over any origin.
func (configuration Config) HasAPIBaseURLOverride() bool {
	return configuration.APIBaseURLOverride != ""
}

func splitList(rawValue string) []string {
	var cleaned []string
	for _, part := range strings.Split(rawValue, listSeparator) {
		trimmed := strings.TrimSpace(part)
		trimmed = strings.Trim(trimmed, listQuoteChars)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
