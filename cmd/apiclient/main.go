package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/apiclient"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/config"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/cookiestore"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/logging"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/storage"
)

const (
	commandUseName                = "apiclient"
	commandShortDescription       = "Call the MuchToDo API with a cookie-carrying client"
	resolveCommandUse             = "resolve"
	resolveCommandShort           = "Print the effective API base URL"
	requestCommandUse             = "request METHOD PATH"
	requestCommandShort           = "Send one request relative to the API base URL"
	clearCookiesCommandUse        = "clear-cookies"
	clearCookiesCommandShort      = "Forget every persisted cookie"
	flagNameConfigDirectory       = "config-dir"
	flagNameAPIBaseURL            = "api-base-url"
	flagNameAppOrigin             = "app-origin"
	flagNameCookieStore           = "cookie-store"
	flagNameRequestTimeout        = "request-timeout"
	flagNameLogLevel              = "log-level"
	flagNameLogFormat             = "log-format"
	flagNameData                  = "data"
	flagUsageConfigDirectory      = "directory holding an optional .env file"
	flagUsageAPIBaseURL           = "API base URL override; defaults to the application origin plus /api"
	flagUsageAppOrigin            = "origin the API is served from when no override is set"
	flagUsageCookieStore          = "SQLite file that keeps cookies between invocations"
	flagUsageRequestTimeout       = "per-request timeout such as 30s"
	flagUsageLogLevel             = "zap log level"
	flagUsageLogFormat            = "log output format: json or console"
	flagUsageData                 = "JSON request body"
	headerContentType             = "Content-Type"
	jsonContentType               = "application/json"
	configurationErrorMessage     = "configuration"
	loggerCreationErrorMessage    = "logger"
	cookieStoreErrorMessage       = "cookie store"
	clientErrorMessage            = "client"
	cookieStoreRequiredMessage    = "cookie store is not configured"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	requestArgumentCount          = 2
	clearedCookiesOutput          = "cookies cleared"
	logEventCookieStoreOpened     = "cookie_store_opened"
	logFieldCookieStore           = "cookie_store"
	logEventCookieStoreCloseError = "cookie_store_close"
)

type flagBinding struct {
	environmentKey string
	flagName       string
	usage          string
}

var flagBindings = []flagBinding{
	{environmentKey: config.EnvironmentKeyAPIBaseURL, flagName: flagNameAPIBaseURL, usage: flagUsageAPIBaseURL},
	{environmentKey: config.EnvironmentKeyAppOrigin, flagName: flagNameAppOrigin, usage: flagUsageAppOrigin},
	{environmentKey: config.EnvironmentKeyCookieStore, flagName: flagNameCookieStore, usage: flagUsageCookieStore},
	{environmentKey: config.EnvironmentKeyRequestTimeout, flagName: flagNameRequestTimeout, usage: flagUsageRequestTimeout},
	{environmentKey: config.EnvironmentKeyLogLevel, flagName: flagNameLogLevel, usage: flagUsageLogLevel},
	{environmentKey: config.EnvironmentKeyLogFormat, flagName: flagNameLogFormat, usage: flagUsageLogFormat},
}

// ClientApplication constructs and executes the apiclient command tree.
type ClientApplication struct {
	configurationLoader *viper.Viper
	loggerFactory       func(level string, format string) (*zap.Logger, error)
	transport           http.RoundTripper
	clock               func() time.Time
}

// NewClientApplication creates a ClientApplication with default dependencies.
func NewClientApplication() *ClientApplication {
	return &ClientApplication{
		configurationLoader: viper.New(),
		loggerFactory:       logging.NewLogger,
		clock:               time.Now,
	}
}

// WithLoggerFactory overrides how the logger is built.
func (application *ClientApplication) WithLoggerFactory(loggerFactory func(string, string) (*zap.Logger, error)) *ClientApplication {
	application.loggerFactory = loggerFactory
	return application
}

// WithTransport overrides the round tripper beneath the client.
func (application *ClientApplication) WithTransport(transport http.RoundTripper) *ClientApplication {
	application.transport = transport
	return application
}

// WithClock overrides the time source used for cookie expiry.
func (application *ClientApplication) WithClock(clock func() time.Time) *ClientApplication {
	application.clock = clock
	return application
}

// Command builds the Cobra command tree.
func (application *ClientApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:          commandUseName,
		Short:        commandShortDescription,
		SilenceUsage: true,
	}

	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.String(flagNameConfigDirectory, "", flagUsageConfigDirectory)
	for _, binding := range flagBindings {
		persistentFlags.String(binding.flagName, "", binding.usage)
		if bindErr := application.bindFlag(persistentFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return nil, bindErr
		}
	}

	requestCommand := &cobra.Command{
		Use:   requestCommandUse,
		Short: requestCommandShort,
		Args:  cobra.ExactArgs(requestArgumentCount),
		RunE:  application.runRequest,
	}
	requestCommand.Flags().String(flagNameData, "", flagUsageData)

	rootCommand.AddCommand(
		&cobra.Command{
			Use:   resolveCommandUse,
			Short: resolveCommandShort,
			Args:  cobra.NoArgs,
			RunE:  application.runResolve,
		},
		requestCommand,
		&cobra.Command{
			Use:   clearCookiesCommandUse,
			Short: clearCookiesCommandShort,
			Args:  cobra.NoArgs,
			RunE:  application.runClearCookies,
		},
	)

	return rootCommand, nil
}

func (application *ClientApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}
	return application.configurationLoader.BindPFlag(environmentKey, flag)
}

func (application *ClientApplication) loadConfiguration(command *cobra.Command) (config.Config, error) {
	configDirectory, _ := command.Flags().GetString(flagNameConfigDirectory)
	if configureErr := config.Configure(application.configurationLoader, configDirectory); configureErr != nil {
		return config.Config{}, fmt.Errorf("%s: %w", configurationErrorMessage, configureErr)
	}
	clientConfig, configErr := config.FromLoader(application.configurationLoader)
	if configErr != nil {
		return config.Config{}, fmt.Errorf("%s: %w", configurationErrorMessage, configErr)
	}
	return clientConfig, nil
}

func (application *ClientApplication) runResolve(command *cobra.Command, _ []string) error {
	clientConfig, configErr := application.loadConfiguration(command)
	if configErr != nil {
		return configErr
	}
	_, writeErr := fmt.Fprintln(command.OutOrStdout(), clientConfig.EffectiveBaseURL())
	return writeErr
}

func (application *ClientApplication) runRequest(command *cobra.Command, arguments []string) error {
	clientConfig, configErr := application.loadConfiguration(command)
	if configErr != nil {
		return configErr
	}

	logger, loggerErr := application.loggerFactory(clientConfig.LogLevel, clientConfig.LogFormat)
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cookieJar, closeCookieStore, jarErr := application.openCookieJar(clientConfig, logger)
	if jarErr != nil {
		return jarErr
	}
	defer closeCookieStore()

	client, clientErr := apiclient.New(apiclient.Config{
		BaseURL:   clientConfig.EffectiveBaseURL(),
		Timeout:   clientConfig.RequestTimeout,
		CookieJar: cookieJar,
		Transport: application.transport,
		Logger:    logger,
	})
	if clientErr != nil {
		return fmt.Errorf("%s: %w", clientErrorMessage, clientErr)
	}

	method := strings.ToUpper(strings.TrimSpace(arguments[0]))
	requestData, _ := command.Flags().GetString(flagNameData)
	var requestBody io.Reader
	var requestHeaders http.Header
	if requestData != "" {
		requestBody = bytes.NewReader([]byte(requestData))
		requestHeaders = http.Header{headerContentType: []string{jsonContentType}}
	}

	response, sendErr := client.Do(command.Context(), method, arguments[1], requestBody, requestHeaders)
	if sendErr != nil {
		return sendErr
	}
	defer response.Body.Close()

	output := command.OutOrStdout()
	if _, writeErr := fmt.Fprintln(output, response.Status); writeErr != nil {
		return writeErr
	}
	if _, copyErr := io.Copy(output, response.Body); copyErr != nil {
		return copyErr
	}
	_, writeErr := fmt.Fprintln(output)
	return writeErr
}

func (application *ClientApplication) runClearCookies(command *cobra.Command, _ []string) error {
	clientConfig, configErr := application.loadConfiguration(command)
	if configErr != nil {
		return configErr
	}
	if clientConfig.CookieStoreDataSourceName == "" {
		return fmt.Errorf("%s: %s", cookieStoreErrorMessage, cookieStoreRequiredMessage)
	}

	cookieStore, storeErr := storage.OpenCookieStore(clientConfig.CookieStoreDataSourceName)
	if storeErr != nil {
		return fmt.Errorf("%s: %w", cookieStoreErrorMessage, storeErr)
	}
	defer func() {
		_ = cookieStore.Close()
	}()

	if clearErr := cookieStore.Clear(); clearErr != nil {
		return fmt.Errorf("%s: %w", cookieStoreErrorMessage, clearErr)
	}
	_, writeErr := fmt.Fprintln(command.OutOrStdout(), clearedCookiesOutput)
	return writeErr
}

// openCookieJar returns nil without a configured store so the client falls back to memory.
func (application *ClientApplication) openCookieJar(clientConfig config.Config, logger *zap.Logger) (http.CookieJar, func(), error) {
	if clientConfig.CookieStoreDataSourceName == "" {
		return nil, func() {}, nil
	}

	cookieStore, storeErr := storage.OpenCookieStore(clientConfig.CookieStoreDataSourceName)
	if storeErr != nil {
		return nil, nil, fmt.Errorf("%s: %w", cookieStoreErrorMessage, storeErr)
	}
	closeCookieStore := func() {
		if closeErr := cookieStore.Close(); closeErr != nil {
			logger.Warn(logEventCookieStoreCloseError, zap.Error(closeErr))
		}
	}

	persistentJar, jarErr := cookiestore.NewJar(cookieStore, logger, cookiestore.WithClock(application.clock))
	if jarErr != nil {
		closeCookieStore()
		return nil, nil, fmt.Errorf("%s: %w", cookieStoreErrorMessage, jarErr)
	}
	logger.Debug(logEventCookieStoreOpened, zap.String(logFieldCookieStore, clientConfig.CookieStoreDataSourceName))
	return persistentJar, closeCookieStore, nil
}

func main() {
	application := NewClientApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
