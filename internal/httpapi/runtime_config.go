package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/pkg/apibase"
)

const (
	// RuntimeConfigScriptPath serves the script that publishes RuntimeConfig to the page.
	RuntimeConfigScriptPath = "/runtime-config.js"
	// RuntimeConfigJSONPath serves RuntimeConfig as JSON.
	RuntimeConfigJSONPath = "/runtime-config.json"
	// RuntimeConfigGlobalName is the window property the script assigns.
	RuntimeConfigGlobalName = "__MUCHTODO_CONFIG__"

	javaScriptContentType     = "application/javascript; charset=utf-8"
	headerCacheControl        = "Cache-Control"
	cacheControlNoStore       = "no-store"
	logEventEncodeConfig      = "encode_runtime_config"
	browserOriginExpression   = "window.location.origin"
	runtimeConfigScriptFormat = "window.%s = Object.freeze({\n  apiBaseUrl: %s,\n  withCredentials: true\n});\n"
)

// RuntimeConfig is the configuration the browser application reads at startup.
type RuntimeConfig struct {
	APIBaseURL      string `json:"apiBaseUrl"`
	WithCredentials bool   `json:"withCredentials"`
}

// RuntimeConfigHandlers publishes the effective API base URL to browser pages.
type RuntimeConfigHandlers struct {
	logger             *zap.Logger
	originResolver     OriginResolver
	apiBaseURLOverride string
}

// NewRuntimeConfigHandlers builds handlers that resolve the base URL per request origin
// unless an override is configured.
func NewRuntimeConfigHandlers(logger *zap.Logger, originResolver OriginResolver, apiBaseURLOverride string) *RuntimeConfigHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuntimeConfigHandlers{
		logger:             logger,
		originResolver:     originResolver,
		apiBaseURLOverride: apiBaseURLOverride,
	}
}

// ResolveFor computes the RuntimeConfig a page loaded through request should use.
func (handlers *RuntimeConfigHandlers) ResolveFor(request *http.Request) RuntimeConfig {
	return RuntimeConfig{
		APIBaseURL:      apibase.Resolve(handlers.apiBaseURLOverride, handlers.originResolver.RequestOrigin(request)),
		WithCredentials: true,
	}
}

func (handlers *RuntimeConfigHandlers) RuntimeConfigJSON(context *gin.Context) {
	context.Header(headerCacheControl, cacheControlNoStore)
	context.JSON(http.StatusOK, handlers.ResolveFor(context.Request))
}

func (handlers *RuntimeConfigHandlers) RuntimeConfigScript(context *gin.Context) {
	script, renderErr := RenderRuntimeConfigScript(handlers.apiBaseURLOverride, handlers.originResolver.RequestOrigin(context.Request))
	if renderErr != nil {
		handlers.logger.Error(logEventEncodeConfig, zap.Error(renderErr))
		context.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	context.Header(headerCacheControl, cacheControlNoStore)
	context.Data(http.StatusOK, javaScriptContentType, script)
}

// RenderRuntimeConfigScript produces the runtime config script.
// With neither an override nor an origin the page's own origin is used in the browser.
func RenderRuntimeConfigScript(apiBaseURLOverride string, origin string) ([]byte, error) {
	var baseURLExpression string
	if apiBaseURLOverride == "" && origin == "" {
		encodedSuffix, encodeErr := json.Marshal(apibase.PathSuffix)
		if encodeErr != nil {
			return nil, encodeErr
		}
		baseURLExpression = browserOriginExpression + " + " + string(encodedSuffix)
	} else {
		encodedBaseURL, encodeErr := json.Marshal(apibase.Resolve(apiBaseURLOverride, origin))
		if encodeErr != nil {
			return nil, encodeErr
		}
		baseURLExpression = string(encodedBaseURL)
	}
	return []byte(fmt.Sprintf(runtimeConfigScriptFormat, RuntimeConfigGlobalName, baseURLExpression)), nil
}
