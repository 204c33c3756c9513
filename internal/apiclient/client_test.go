package apiclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/apiclient"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/cookiestore"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/storage"
	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/testutil"
	"github.com/MarkoPoloResearchLab/muchtodo_web/pkg/apibase"
)

const (
	testSessionName        = "muchtodo_session"
	testSessionKeyUser     = "user"
	testSessionSecret      = "0123456789abcdef0123456789abcdef"
	testUserName           = "ada"
	testRouteLogin         = "/api/auth/login"
	testRouteCurrentUser   = "/api/auth/me"
	testRouteEcho          = "/api/echo/*rest"
	testJSONKeyUser        = "user"
	testJSONKeyError       = "error"
	testUnauthorizedReason = "unauthorized"
)

type echoedRequest struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Query       string `json:"query"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	RequestID   string `json:"request_id"`
	Accept      string `json:"accept"`
}

type currentUserResponse struct {
	User string `json:"user"`
}

func newSessionAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessionStore := sessions.NewCookieStore([]byte(testSessionSecret))
	sessionStore.Options.HttpOnly = true

	router := gin.New()
	router.POST(testRouteLogin, func(context *gin.Context) {
		session, _ := sessionStore.Get(context.Request, testSessionName)
		session.Values[testSessionKeyUser] = testUserName
		if saveErr := session.Save(context.Request, context.Writer); saveErr != nil {
			context.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		context.Status(http.StatusNoContent)
	})
	router.GET(testRouteCurrentUser, func(context *gin.Context) {
		session, sessionErr := sessionStore.Get(context.Request, testSessionName)
		userName, _ := session.Values[testSessionKeyUser].(string)
		if sessionErr != nil || userName == "" {
			context.JSON(http.StatusUnauthorized, gin.H{testJSONKeyError: testUnauthorizedReason})
			return
		}
		context.JSON(http.StatusOK, gin.H{testJSONKeyUser: userName})
	})
	router.Any(testRouteEcho, func(context *gin.Context) {
		body, _ := io.ReadAll(context.Request.Body)
		context.JSON(http.StatusOK, echoedRequest{
			Method:      context.Request.Method,
			Path:        context.Request.URL.Path,
			Query:       context.Request.URL.RawQuery,
			ContentType: context.GetHeader("Content-Type"),
			Body:        string(body),
			RequestID:   context.GetHeader(apiclient.HeaderRequestID),
			Accept:      context.GetHeader("Accept"),
		})
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server, configuration apiclient.Config) *apiclient.Client {
	t.Helper()
	configuration.BaseURL = apibase.Resolve(server.URL, "http://unused.example.com")
	client, clientErr := apiclient.New(configuration)
	require.NoError(t, clientErr)
	return client
}

func fetchCurrentUser(t *testing.T, client *apiclient.Client) (int, currentUserResponse) {
	t.Helper()
	response, requestErr := client.Get(context.Background(), "/auth/me")
	require.NoError(t, requestErr)
	statusCode := response.StatusCode
	var currentUser currentUserResponse
	if statusCode == http.StatusOK {
		require.NoError(t, apiclient.DecodeJSON(response, &currentUser))
	} else {
		require.ErrorIs(t, apiclient.DecodeJSON(response, nil), apiclient.ErrUnexpectedStatus)
	}
	return statusCode, currentUser
}

func TestNewBindsBaseURLAndIncludesCredentials(t *testing.T) {
	client, clientErr := apiclient.New(apiclient.Config{BaseURL: "https://api.example.com/api"})
	require.NoError(t, clientErr)

	require.Equal(t, "https://api.example.com/api", client.BaseURL())
	require.True(t, client.CredentialsIncluded())
	require.Equal(t, "https://api.example.com/api/todos", client.URL("/todos"))
}

func TestClientAttachesSessionCookieToLaterRequests(t *testing.T) {
	server := newSessionAPIServer(t)
	client := newTestClient(t, server, apiclient.Config{})

	statusCode, _ := fetchCurrentUser(t, client)
	require.Equal(t, http.StatusUnauthorized, statusCode)

	loginResponse, loginErr := client.Post(context.Background(), "auth/login", nil)
	require.NoError(t, loginErr)
	require.NoError(t, apiclient.DecodeJSON(loginResponse, nil))

	statusCode, currentUser := fetchCurrentUser(t, client)
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, testUserName, currentUser.User)
}

func TestClientSharesCookiesAcrossConcurrentCallers(t *testing.T) {
	server := newSessionAPIServer(t)
	client := newTestClient(t, server, apiclient.Config{})

	loginResponse, loginErr := client.Post(context.Background(), "/auth/login", nil)
	require.NoError(t, loginErr)
	require.NoError(t, apiclient.DecodeJSON(loginResponse, nil))

	const callerCount = 8
	statusCodes := make(chan int, callerCount)
	var waitGroup sync.WaitGroup
	for callerIndex := 0; callerIndex < callerCount; callerIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			response, requestErr := client.Get(context.Background(), "/auth/me")
			if requestErr != nil {
				statusCodes <- 0
				return
			}
			statusCodes <- response.StatusCode
			_ = apiclient.DecodeJSON(response, nil)
		}()
	}
	waitGroup.Wait()
	close(statusCodes)

	for statusCode := range statusCodes {
		require.Equal(t, http.StatusOK, statusCode)
	}
}

func TestClientPersistentJarCarriesSessionToNewClient(t *testing.T) {
	server := newSessionAPIServer(t)
	database := testutil.NewSQLiteTestDatabase(t).OpenMigrated(t)
	repository, repositoryErr := storage.NewCookieRepository(database)
	require.NoError(t, repositoryErr)

	firstJar, firstJarErr := cookiestore.NewJar(repository, zap.NewNop())
	require.NoError(t, firstJarErr)
	firstClient := newTestClient(t, server, apiclient.Config{CookieJar: firstJar})
	loginResponse, loginErr := firstClient.Post(context.Background(), "/auth/login", nil)
	require.NoError(t, loginErr)
	require.NoError(t, apiclient.DecodeJSON(loginResponse, nil))

	secondJar, secondJarErr := cookiestore.NewJar(repository, zap.NewNop())
	require.NoError(t, secondJarErr)
	secondClient := newTestClient(t, server, apiclient.Config{CookieJar: secondJar})

	statusCode, currentUser := fetchCurrentUser(t, secondClient)
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, testUserName, currentUser.User)
}

func TestClientResolvesPathsAgainstBaseURL(t *testing.T) {
	server := newSessionAPIServer(t)
	client := newTestClient(t, server, apiclient.Config{})

	testCases := []struct {
		name          string
		path          string
		expectedPath  string
		expectedQuery string
	}{
		{name: "leading slash", path: "/echo/todos", expectedPath: "/api/echo/todos"},
		{name: "relative", path: "echo/todos", expectedPath: "/api/echo/todos"},
		{name: "query preserved", path: "/echo/todos?done=true&page=2", expectedPath: "/api/echo/todos", expectedQuery: "done=true&page=2"},
		{name: "nested", path: "/echo/todos/42/items", expectedPath: "/api/echo/todos/42/items"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			response, requestErr := client.Get(context.Background(), testCase.path)
			require.NoError(testingT, requestErr)
			var echoed echoedRequest
			require.NoError(testingT, apiclient.DecodeJSON(response, &echoed))
			require.Equal(testingT, http.MethodGet, echoed.Method)
			require.Equal(testingT, testCase.expectedPath, echoed.Path)
			require.Equal(testingT, testCase.expectedQuery, echoed.Query)
			require.Contains(testingT, echoed.Accept, "application/json")
		})
	}
}

func TestClientEncodesPayloads(t *testing.T) {
	server := newSessionAPIServer(t)
	client := newTestClient(t, server, apiclient.Config{})

	testCases := []struct {
		name                string
		send                func() (*http.Response, error)
		expectedMethod      string
		expectedBody        string
		expectedContentType string
	}{
		{
			name: "post struct as json",
			send: func() (*http.Response, error) {
				return client.Post(context.Background(), "/echo/todos", map[string]string{"title": "write tests"})
			},
			expectedMethod:      http.MethodPost,
			expectedBody:        `{"title":"write tests"}`,
			expectedContentType: "application/json",
		},
		{
			name: "put raw bytes",
			send: func() (*http.Response, error) {
				return client.Put(context.Background(), "/echo/todos/1", []byte("raw"))
			},
			expectedMethod: http.MethodPut,
			expectedBody:   "raw",
		},
		{
			name: "patch reader",
			send: func() (*http.Response, error) {
				return client.Patch(context.Background(), "/echo/todos/1", strings.NewReader(`{"done":true}`))
			},
			expectedMethod: http.MethodPatch,
			expectedBody:   `{"done":true}`,
		},
		{
			name: "delete without body",
			send: func() (*http.Response, error) {
				return client.Delete(context.Background(), "/echo/todos/1")
			},
			expectedMethod: http.MethodDelete,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			response, requestErr := testCase.send()
			require.NoError(testingT, requestErr)
			var echoed echoedRequest
			require.NoError(testingT, apiclient.DecodeJSON(response, &echoed))
			require.Equal(testingT, testCase.expectedMethod, echoed.Method)
			require.Equal(testingT, testCase.expectedBody, echoed.Body)
			require.Equal(testingT, testCase.expectedContentType, echoed.ContentType)
		})
	}
}

func TestClientRejectsUnencodablePayload(t *testing.T) {
	client, clientErr := apiclient.New(apiclient.Config{BaseURL: "http://localhost/api"})
	require.NoError(t, clientErr)

	_, requestErr := client.Post(context.Background(), "/todos", map[string]any{"bad": make(chan int)})
	require.Error(t, requestErr)
	require.Contains(t, requestErr.Error(), "apiclient: encode payload")
}

func TestClientTagsAndLogsRequests(t *testing.T) {
	server := newSessionAPIServer(t)
	observedCore, observedLogs := observer.New(zap.InfoLevel)
	client := newTestClient(t, server, apiclient.Config{Logger: zap.New(observedCore)})

	response, requestErr := client.Get(context.Background(), "/echo/ping")
	require.NoError(t, requestErr)
	var echoed echoedRequest
	require.NoError(t, apiclient.DecodeJSON(response, &echoed))
	require.Len(t, echoed.RequestID, 36)

	entries := observedLogs.FilterMessage("api_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, echoed.RequestID, fields["request_id"])
	require.Equal(t, int64(http.StatusOK), fields["status"])

	explicitResponse, explicitErr := client.Do(context.Background(), http.MethodGet, "/echo/ping", nil, http.Header{apiclient.HeaderRequestID: []string{"fixed-id"}})
	require.NoError(t, explicitErr)
	var explicitEcho echoedRequest
	require.NoError(t, apiclient.DecodeJSON(explicitResponse, &explicitEcho))
	require.Equal(t, "fixed-id", explicitEcho.RequestID)
}

func TestClientPassesMalformedBaseURLThrough(t *testing.T) {
	client, clientErr := apiclient.New(apiclient.Config{BaseURL: apibase.Resolve("::not a url", "")})
	require.NoError(t, clientErr)
	require.Equal(t, "::not a url/api", client.BaseURL())

	_, requestErr := client.Get(context.Background(), "/todos")
	require.Error(t, requestErr)
}

func TestDecodeJSONReportsStatusAndBody(t *testing.T) {
	response := &http.Response{
		StatusCode: http.StatusConflict,
		Body:       io.NopCloser(strings.NewReader(`{"error":"duplicate"}`)),
	}

	decodeErr := apiclient.DecodeJSON(response, &struct{}{})
	require.ErrorIs(t, decodeErr, apiclient.ErrUnexpectedStatus)

	var statusErr *apiclient.StatusError
	require.ErrorAs(t, decodeErr, &statusErr)
	require.Equal(t, http.StatusConflict, statusErr.StatusCode)
	require.Contains(t, statusErr.Error(), "duplicate")

	require.ErrorIs(t, apiclient.DecodeJSON(nil, nil), apiclient.ErrNilResponse)

	emptyResponse := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}
	require.NoError(t, apiclient.DecodeJSON(emptyResponse, &struct{}{}))
}
