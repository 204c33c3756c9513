package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/config"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/httpapi"
)

const (
	corsOriginWildcard      = "*"
	corsHeaderContentType   = "Content-Type"
	corsHeaderAccept        = "Accept"
	corsHeaderRequestID     = "X-Request-ID"
	logEventDropWildcard    = "credentialed_cors_wildcard_ignored"
	healthRoutePath         = "/healthz"
	healthResponseStatusKey = "status"
	healthResponseStatusOK  = "ok"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAccept, corsHeaderContentType, corsHeaderRequestID}
	corsExposedHeaders = []string{corsHeaderContentType}
)

func buildRouter(logger *zap.Logger, serverConfig config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))

	if credentialedOrigins := credentialedCORSOrigins(logger, serverConfig.AllowedOrigins); len(credentialedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     credentialedOrigins,
			AllowMethods:     corsAllowedMethods,
			AllowHeaders:     corsAllowedHeaders,
			ExposeHeaders:    corsExposedHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	landingHandlers := httpapi.NewLandingPageHandlers(logger)
	runtimeConfigHandlers := httpapi.NewRuntimeConfigHandlers(
		logger,
		httpapi.NewOriginResolver(serverConfig.AppOrigin),
		serverConfig.APIBaseURLOverride,
	)
	registerFrontendRoutes(router, landingHandlers, runtimeConfigHandlers)

	return router
}

func registerFrontendRoutes(
	router *gin.Engine,
	landingHandlers *httpapi.LandingPageHandlers,
	runtimeConfigHandlers *httpapi.RuntimeConfigHandlers,
) {
	router.GET(httpapi.LandingPagePath, landingHandlers.RenderLandingPage)
	router.GET(httpapi.APIClientScriptPath, landingHandlers.APIClientScript)
	router.GET(httpapi.RuntimeConfigScriptPath, runtimeConfigHandlers.RuntimeConfigScript)
	router.GET(httpapi.RuntimeConfigJSONPath, runtimeConfigHandlers.RuntimeConfigJSON)
	router.GET(healthRoutePath, func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{healthResponseStatusKey: healthResponseStatusOK})
	})
}

// Browsers reject a wildcard origin on credentialed responses.
func credentialedCORSOrigins(logger *zap.Logger, allowedOrigins []string) []string {
	credentialedOrigins := make([]string, 0, len(allowedOrigins))
	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == corsOriginWildcard {
			logger.Warn(logEventDropWildcard)
			continue
		}
		credentialedOrigins = append(credentialedOrigins, allowedOrigin)
	}
	return credentialedOrigins
}
