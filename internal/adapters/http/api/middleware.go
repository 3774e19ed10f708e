package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestIDMiddleware puts the caller's request id, or a fresh one, on the
// context and echoes it back.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// MetricsMiddleware counts and times every request under endpoint, and
// classifies 4xx and 5xx answers.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, time.Since(start).Seconds())

		if errType, severity, failed := classifyStatus(rec.status); failed {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errType)
			metrics.RecordErrorByType(errType, severity)
		}
	}
}

// classifyStatus names the failure an HTTP status stands for.
func classifyStatus(status int) (errType, severity string, failed bool) {
	switch {
	case status == http.StatusBadGateway:
		return "upstream", "high", true
	case status == http.StatusServiceUnavailable:
		return "unavailable", "high", true
	case status >= http.StatusInternalServerError:
		return "internal", "high", true
	case status == http.StatusConflict:
		return "conflict", "low", true
	case status == http.StatusNotFound:
		return "not_found", "low", true
	case status >= http.StatusBadRequest:
		return "validation", "medium", true
	default:
		return "", "", false
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
