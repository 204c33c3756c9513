package httpapi

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/pkg/footer"
)

const (
	// LandingPagePath serves the application shell.
	LandingPagePath = "/"
	// APIClientScriptPath serves the browser API client.
	APIClientScriptPath = "/api-client.js"

	landingTemplateName    = "landing"
	landingHTMLContentType = "text/html; charset=utf-8"
	landingPageTitle       = "MuchToDo"
	landingStatusElementID = "api-status"
	logEventRenderLanding  = "render_landing_page"
	landingFooterElementID = "page-footer"
	landingFooterPrefix    = "Built by Marco Polo Research Lab"
	landingFooterLinkLabel = "Source"
	landingFooterLinkURL   = "https://github.com/MarkoPoloResearchLab"
)

type landingTemplateData struct {
	Title                   string
	StatusElementID         string
	RuntimeConfigScriptPath string
	APIClientScriptPath     string
	Footer                  template.HTML
}

// LandingPageHandlers renders the page that boots the browser application.
type LandingPageHandlers struct {
	logger   *zap.Logger
	template *template.Template
}

// NewLandingPageHandlers constructs handlers that render the landing template.
func NewLandingPageHandlers(logger *zap.Logger) *LandingPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiledTemplate := template.Must(template.New(landingTemplateName).Parse(landingTemplateHTML))
	return &LandingPageHandlers{
		logger:   logger,
		template: compiledTemplate,
	}
}

// Render returns the landing page markup.
func (handlers *LandingPageHandlers) Render() ([]byte, error) {
	footerHTML, footerErr := footer.Render(footer.Config{
		ElementID:  landingFooterElementID,
		PrefixText: landingFooterPrefix,
		Links:      []footer.Link{{Label: landingFooterLinkLabel, URL: landingFooterLinkURL}},
	})
	if footerErr != nil {
		return nil, footerErr
	}

	data := landingTemplateData{
		Title:                   landingPageTitle,
		StatusElementID:         landingStatusElementID,
		RuntimeConfigScriptPath: strings.TrimPrefix(RuntimeConfigScriptPath, "/"),
		APIClientScriptPath:     strings.TrimPrefix(APIClientScriptPath, "/"),
		Footer:                  footerHTML,
	}

	var buffer bytes.Buffer
	if executeErr := handlers.template.Execute(&buffer, data); executeErr != nil {
		return nil, executeErr
	}
	return buffer.Bytes(), nil
}

// RenderLandingPage writes the landing page response.
func (handlers *LandingPageHandlers) RenderLandingPage(context *gin.Context) {
	page, renderErr := handlers.Render()
	if renderErr != nil {
		handlers.logger.Error(logEventRenderLanding, zap.Error(renderErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "landing_render_failed"})
		return
	}
	context.Data(http.StatusOK, landingHTMLContentType, page)
}

// APIClientScript serves the browser API client.
func (handlers *LandingPageHandlers) APIClientScript(context *gin.Context) {
	context.Data(http.StatusOK, javaScriptContentType, []byte(apiClientJavaScriptSource))
}

const landingTemplateHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <script src="{{.RuntimeConfigScriptPath}}"></script>
  <script src="{{.APIClientScriptPath}}"></script>
</head>
<body>
  <main>
    <h1>{{.Title}}</h1>
    <pre id="{{.StatusElementID}}" data-api-base-url=""></pre>
  </main>
  {{.Footer}}
  <script>
    (function () {
      var status = document.getElementById("{{.StatusElementID}}");
      if (!status || !window.apiClient) { return; }
      status.setAttribute("data-api-base-url", window.apiClient.baseURL);
      status.textContent = "API: " + window.apiClient.baseURL;
    })();
  </script>
</body>
</html>
`

// apiClientJavaScriptSource exposes window.apiClient; every request carries cookies.
const apiClientJavaScriptSource = `(function () {
  "use strict";
  var config = window.__MUCHTODO_CONFIG__;
  if (!config || !config.apiBaseUrl) {
    return;
  }
  var baseURL = config.apiBaseUrl;

  function resolve(path) {
    var relative = String(path || "");
    if (relative === "") {
      return baseURL;
    }
    if (relative.charAt(0) === "?") {
      return baseURL + relative;
    }
    return baseURL.replace(/\/+$/, "") + "/" + relative.replace(/^\/+/, "");
  }

  function request(method, path, body) {
    var init = {
      method: method,
      credentials: "include",
      headers: { "Accept": "application/json, text/plain, */*" }
    };
    if (body !== undefined) {
      init.headers["Content-Type"] = "application/json";
      init.body = JSON.stringify(body);
    }
    return fetch(resolve(path), init);
  }

  window.apiClient = Object.freeze({
    baseURL: baseURL,
    withCredentials: true,
    url: resolve,
    get: function (path) { return request("GET", path); },
    post: function (path, body) { return request("POST", path, body); },
    put: function (path, body) { return request("PUT", path, body); },
    patch: function (path, body) { return request("PATCH", path, body); },
    delete: function (path) { return request("DELETE", path); }
  });
})();
`
