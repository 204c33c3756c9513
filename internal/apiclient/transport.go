package apiclient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries the identifier logged for each outgoing request.
	HeaderRequestID = "X-Request-ID"

	logEventAPIRequest = "api_request"
	logFieldMethod     = "method"
	logFieldURL        = "url"
	logFieldStatus     = "status"
	logFieldDuration   = "dur"
	logFieldRequestID  = "request_id"
)

type loggingTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func newLoggingTransport(next http.RoundTripper, logger *zap.Logger) http.RoundTripper {
	return &loggingTransport{next: next, logger: logger}
}

func (transport *loggingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	outgoing := request
	requestID := request.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		outgoing = request.Clone(request.Context())
		outgoing.Header.Set(HeaderRequestID, requestID)
	}

	start := time.Now()
	response, roundTripErr := transport.next.RoundTrip(outgoing)
	fields := []zap.Field{
		zap.String(logFieldMethod, outgoing.Method),
		zap.String(logFieldURL, outgoing.URL.Redacted()),
		zap.String(logFieldRequestID, requestID),
		zap.Duration(logFieldDuration, time.Since(start)),
	}
	if roundTripErr != nil {
		transport.logger.Warn(logEventAPIRequest, append(fields, zap.Error(roundTripErr))...)
		return nil, roundTripErr
	}
	transport.logger.Info(logEventAPIRequest, append(fields, zap.Int(logFieldStatus, response.StatusCode))...)
	return response, nil
}
