package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/config"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/httpapi"
)

const (
	flagSetName           = "staticfrontend"
	flagNameEnvFile       = "env-file"
	flagNameOutput        = "out"
	defaultEnvFilePath    = ".env"
	defaultOutputDir      = "public"
	flagUsageEnvFile      = "path to an env file holding VITE_API_BASE_URL; the environment variable takes precedence"
	flagUsageOutput       = "directory to write static assets into"
	envFileType           = "env"
	indexFileName         = "index.html"
	runtimeConfigFileName = "runtime-config.js"
	apiClientFileName     = "api-client.js"
	logEventWriteAsset    = "write_asset"
	logFieldPath          = "path"
	logFieldBytes         = "bytes"
)

type renderTarget struct {
	outputPath string
	render     func() (int, []byte, error)
}

func handlerRenderer(handler gin.HandlerFunc, path string) func() (int, []byte, error) {
	return func() (int, []byte, error) {
		recorder := httptest.NewRecorder()
		context, _ := gin.CreateTestContext(recorder)
		context.Request = httptest.NewRequest(http.MethodGet, path, nil)
		handler(context)
		return recorder.Code, recorder.Body.Bytes(), nil
	}
}

// readAPIBaseURLOverride prefers the process environment over the env file, as the frontend build does.
func readAPIBaseURLOverride(envFilePath string) (string, error) {
	loader := viper.New()
	loader.AutomaticEnv()
	if bindErr := loader.BindEnv(config.EnvironmentKeyAPIBaseURL); bindErr != nil {
		return "", bindErr
	}

	loader.SetConfigFile(envFilePath)
	loader.SetConfigType(envFileType)
	if readErr := loader.ReadInConfig(); readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", envFilePath, readErr)
	}
	return loader.GetString(config.EnvironmentKeyAPIBaseURL), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func run(arguments []string, stdout io.Writer, logger *zap.Logger) error {
	gin.SetMode(gin.TestMode)

	flagSet := pflag.NewFlagSet(flagSetName, pflag.ContinueOnError)
	envFilePath := flagSet.String(flagNameEnvFile, defaultEnvFilePath, flagUsageEnvFile)
	outputDir := flagSet.String(flagNameOutput, defaultOutputDir, flagUsageOutput)
	if parseErr := flagSet.Parse(arguments); parseErr != nil {
		return parseErr
	}

	apiBaseURLOverride, overrideErr := readAPIBaseURLOverride(*envFilePath)
	if overrideErr != nil {
		return overrideErr
	}

	landingHandlers := httpapi.NewLandingPageHandlers(logger)
	targets := []renderTarget{
		{
			outputPath: filepath.Join(*outputDir, indexFileName),
			render:     handlerRenderer(landingHandlers.RenderLandingPage, httpapi.LandingPagePath),
		},
		{
			outputPath: filepath.Join(*outputDir, apiClientFileName),
			render:     handlerRenderer(landingHandlers.APIClientScript, httpapi.APIClientScriptPath),
		},
		{
			outputPath: filepath.Join(*outputDir, runtimeConfigFileName),
			render: func() (int, []byte, error) {
				script, renderErr := httpapi.RenderRuntimeConfigScript(apiBaseURLOverride, "")
				return http.StatusOK, script, renderErr
			},
		},
	}

	for _, target := range targets {
		status, payload, renderErr := target.render()
		if renderErr != nil {
			return fmt.Errorf("render %s: %w", target.outputPath, renderErr)
		}
		if status < 200 || status >= 300 {
			return fmt.Errorf("render %s returned %d", target.outputPath, status)
		}
		payload = bytes.ReplaceAll(payload, []byte("\r\n"), []byte("\n"))
		if err := writeFile(target.outputPath, payload); err != nil {
			return fmt.Errorf("write %s: %w", target.outputPath, err)
		}
		logger.Info(logEventWriteAsset, zap.String(logFieldPath, target.outputPath), zap.Int(logFieldBytes, len(payload)))
	}

	_, _ = fmt.Fprintln(stdout, "static frontend generated in", *outputDir)
	return nil
}

func main() {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger: %v\n", loggerErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if runErr := run(os.Args[1:], os.Stdout, logger); runErr != nil {
		_, _ = fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
