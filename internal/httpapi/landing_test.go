package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/httpapi"
)

func TestRenderLandingPageLoadsRuntimeConfigBeforeClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handlers := httpapi.NewLandingPageHandlers(zap.NewNop())

	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(http.MethodGet, httpapi.LandingPagePath, nil)
	handlers.RenderLandingPage(context)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	configIndex := strings.Index(body, `src="runtime-config.js"`)
	clientIndex := strings.Index(body, `src="api-client.js"`)
	require.GreaterOrEqual(t, configIndex, 0)
	require.Greater(t, clientIndex, configIndex)
}

func TestAPIClientScriptIncludesCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handlers := httpapi.NewLandingPageHandlers(nil)

	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(http.MethodGet, httpapi.APIClientScriptPath, nil)
	handlers.APIClientScript(context)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `credentials: "include"`)
	require.Contains(t, recorder.Body.String(), "window.__MUCHTODO_CONFIG__")
}


func TestRenderLandingPageIncludesFooter(t *testing.T) {
	page, renderErr := httpapi.NewLandingPageHandlers(zap.NewNop()).Render()
	require.NoError(t, renderErr)
	require.Contains(t, string(page), `<footer id="page-footer">`)
	require.Contains(t, string(page), "https://github.com/MarkoPoloResearchLab")
}
