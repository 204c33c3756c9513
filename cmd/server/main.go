package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/config"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/logging"
)

const (
	commandUseName               = "server"
	commandShortDescription      = "Serve the MuchToDo frontend"
	commandLongDescription       = "Serve the MuchToDo browser application and publish the API base URL it should call"
	loggerCreationErrorMessage   = "logger"
	configurationErrorMessage    = "configuration"
	logEventListening            = "listening"
	logEventShutdown             = "shutdown"
	logFieldAddress              = "addr"
	logFieldAPIBaseURL           = "api_base_url"
	logFieldAllowedOrigins       = "allowed_origins"
	flagNameApplicationAddress   = "app-addr"
	flagNameAPIBaseURL           = "api-base-url"
	flagNameAppOrigin            = "app-origin"
	flagNameAllowedOrigins       = "allowed-origins"
	flagNameLogLevel             = "log-level"
	flagNameLogFormat            = "log-format"
	flagNameConfigDirectory      = "config-dir"
	flagUsageApplicationAddress  = "address for the HTTP server to listen on"
	flagUsageAPIBaseURL          = "API base URL override; defaults to the page origin plus /api"
	flagUsageAppOrigin           = "origin used when a request carries no host"
	flagUsageAllowedOrigins      = "comma separated origins allowed to make credentialed requests"
	flagUsageLogLevel            = "zap log level"
	flagUsageLogFormat           = "log output format: json or console"
	flagUsageConfigDirectory     = "directory holding an optional .env file"
	readHeaderTimeoutSeconds     = 5
	shutdownTimeout              = 10 * time.Second
	unexpectedArgumentsMessage   = "unexpected command arguments"
	commandInitializationFailure = "failed to configure command"
	flagNotDefinedMessage        = "flag %s not defined"
	overrideNotConfigured        = "(page origin)"
)

type flagBinding struct {
	environmentKey string
	flagName       string
	usage          string
}

var flagBindings = []flagBinding{
	{environmentKey: config.EnvironmentKeyApplicationAddress, flagName: flagNameApplicationAddress, usage: flagUsageApplicationAddress},
	{environmentKey: config.EnvironmentKeyAPIBaseURL, flagName: flagNameAPIBaseURL, usage: flagUsageAPIBaseURL},
	{environmentKey: config.EnvironmentKeyAppOrigin, flagName: flagNameAppOrigin, usage: flagUsageAppOrigin},
	{environmentKey: config.EnvironmentKeyAllowedOrigins, flagName: flagNameAllowedOrigins, usage: flagUsageAllowedOrigins},
	{environmentKey: config.EnvironmentKeyLogLevel, flagName: flagNameLogLevel, usage: flagUsageLogLevel},
	{environmentKey: config.EnvironmentKeyLogFormat, flagName: flagNameLogFormat, usage: flagUsageLogFormat},
}

// HTTPServerRunner serves httpServer until ctx is cancelled or the server fails.
type HTTPServerRunner func(ctx context.Context, httpServer *http.Server, logger *zap.Logger) error

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	serverRunner        HTTPServerRunner
	loggerFactory       func(level string, format string) (*zap.Logger, error)
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		serverRunner:        listenAndServe,
		loggerFactory:       logging.NewLogger,
	}
}

// WithServerRunner overrides how the HTTP server is run.
func (application *ServerApplication) WithServerRunner(serverRunner HTTPServerRunner) *ServerApplication {
	application.serverRunner = serverRunner
	return application
}

// WithLoggerFactory overrides how the logger is built.
func (application *ServerApplication) WithLoggerFactory(loggerFactory func(string, string) (*zap.Logger, error)) *ServerApplication {
	application.loggerFactory = loggerFactory
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:          commandUseName,
		Short:        commandShortDescription,
		Long:         commandLongDescription,
		RunE:         application.runCommand,
		SilenceUsage: true,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	commandFlags := command.Flags()
	commandFlags.String(flagNameConfigDirectory, "", flagUsageConfigDirectory)
	for _, binding := range flagBindings {
		commandFlags.String(binding.flagName, "", binding.usage)
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}
	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	configDirectory, _ := command.Flags().GetString(flagNameConfigDirectory)
	if configureErr := config.Configure(application.configurationLoader, configDirectory); configureErr != nil {
		return fmt.Errorf("%s: %w", configurationErrorMessage, configureErr)
	}
	serverConfig, configErr := config.FromLoader(application.configurationLoader)
	if configErr != nil {
		return fmt.Errorf("%s: %w", configurationErrorMessage, configErr)
	}

	logger, loggerErr := application.loggerFactory(serverConfig.LogLevel, serverConfig.LogFormat)
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	router := buildRouter(logger, serverConfig)

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	apiBaseURLField := overrideNotConfigured
	if serverConfig.HasAPIBaseURLOverride() {
		apiBaseURLField = serverConfig.EffectiveBaseURL()
	}
	logger.Info(logEventListening,
		zap.String(logFieldAddress, serverConfig.ApplicationAddress),
		zap.String(logFieldAPIBaseURL, apiBaseURLField),
		zap.Strings(logFieldAllowedOrigins, serverConfig.AllowedOrigins),
	)

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	return application.serverRunner(signalContext, httpServer, logger)
}

func listenAndServe(ctx context.Context, httpServer *http.Server, logger *zap.Logger) error {
	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	case <-ctx.Done():
		logger.Info(logEventShutdown)
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return httpServer.Shutdown(shutdownContext)
	}
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
