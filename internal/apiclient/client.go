// Package apiclient issues HTTP requests against the API base URL with cookies attached.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/muchtodo_web/internal/cookiestore"
)

const (
	headerAccept      = "Accept"
	headerContentType = "Content-Type"

	acceptedContentTypes = "application/json, text/plain, */*"
	jsonContentType      = "application/json"

	errorMessageCreateRequest    = "apiclient: create request"
	errorMessageEncodePayload    = "apiclient: encode payload"
	errorMessageSendRequest      = "apiclient: send request"
	errorMessageUnexpectedStatus = "apiclient: unexpected status"
	errorMessageDecodeResponse   = "apiclient: decode response"
	errorMessageNilResponse      = "apiclient: nil response"

	maxErrorBodyBytes = 4096
)

var (
	// ErrUnexpectedStatus indicates DecodeJSON received a non-2xx response.
	ErrUnexpectedStatus = errors.New(errorMessageUnexpectedStatus)
	// ErrNilResponse indicates DecodeJSON was handed no response.
	ErrNilResponse = errors.New(errorMessageNilResponse)
)

// Config describes the client to construct. BaseURL is bound as given.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CookieJar http.CookieJar
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client is bound to one base URL and always sends stored cookies.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs the client. Without a configured jar an in-memory jar is created,
// so cookies set by the server are attached to every later request.
func New(configuration Config) (*Client, error) {
	cookieJar := configuration.CookieJar
	if cookieJar == nil {
		memoryJar, jarErr := cookiestore.NewMemoryJar()
		if jarErr != nil {
			return nil, jarErr
		}
		cookieJar = memoryJar
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	baseTransport := configuration.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Client{
		baseURL: configuration.BaseURL,
		httpClient: &http.Client{
			Transport: newLoggingTransport(baseTransport, logger),
			Jar:       cookieJar,
			Timeout:   configuration.Timeout,
		},
	}, nil
}

// BaseURL returns the base URL every request path is resolved against.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// CredentialsIncluded reports whether stored cookies accompany every request.
func (client *Client) CredentialsIncluded() bool {
	return client.httpClient.Jar != nil
}

// URL joins path onto the base URL.
func (client *Client) URL(path string) string {
	return joinBaseURL(client.baseURL, path)
}

// Do sends a request with an optional raw body and extra headers.
func (client *Client) Do(ctx context.Context, method string, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	request, requestErr := http.NewRequestWithContext(ctx, method, client.URL(path), body)
	if requestErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageCreateRequest, requestErr)
	}
	request.Header.Set(headerAccept, acceptedContentTypes)
	for headerName, headerValues := range headers {
		request.Header.Del(headerName)
		for _, headerValue := range headerValues {
			request.Header.Add(headerName, headerValue)
		}
	}

	response, sendErr := client.httpClient.Do(request)
	if sendErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageSendRequest, sendErr)
	}
	return response, nil
}

func (client *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return client.Do(ctx, http.MethodGet, path, nil, nil)
}

func (client *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return client.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Post sends payload, JSON encoding it unless it is nil, a []byte, or an io.Reader.
func (client *Client) Post(ctx context.Context, path string, payload any) (*http.Response, error) {
	return client.send(ctx, http.MethodPost, path, payload)
}

func (client *Client) Put(ctx context.Context, path string, payload any) (*http.Response, error) {
	return client.send(ctx, http.MethodPut, path, payload)
}

func (client *Client) Patch(ctx context.Context, path string, payload any) (*http.Response, error) {
	return client.send(ctx, http.MethodPatch, path, payload)
}

func (client *Client) send(ctx context.Context, method string, path string, payload any) (*http.Response, error) {
	body, headers, encodeErr := encodePayload(payload)
	if encodeErr != nil {
		return nil, encodeErr
	}
	return client.Do(ctx, method, path, body, headers)
}

func encodePayload(payload any) (io.Reader, http.Header, error) {
	switch typedPayload := payload.(type) {
	case nil:
		return nil, nil, nil
	case io.Reader:
		return typedPayload, nil, nil
	case []byte:
		return bytes.NewReader(typedPayload), nil, nil
	default:
		encoded, marshalErr := json.Marshal(typedPayload)
		if marshalErr != nil {
			return nil, nil, fmt.Errorf("%s: %w", errorMessageEncodePayload, marshalErr)
		}
		headers := http.Header{}
		headers.Set(headerContentType, jsonContentType)
		return bytes.NewReader(encoded), headers, nil
	}
}

// StatusError carries the status and a prefix of the body of a rejected response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (statusError *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", errorMessageUnexpectedStatus, statusError.StatusCode, strings.TrimSpace(statusError.Body))
}

func (statusError *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// DecodeJSON closes response.Body, and for a 2xx response decodes it into target.
// A nil target discards the body. Empty bodies decode to nothing.
func DecodeJSON(response *http.Response, target any) error {
	if response == nil {
		return ErrNilResponse
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		bodyPrefix, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return &StatusError{StatusCode: response.StatusCode, Body: string(bodyPrefix)}
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	decodeErr := json.NewDecoder(response.Body).Decode(target)
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return fmt.Errorf("%s: %w", errorMessageDecodeResponse, decodeErr)
	}
	return nil
}
