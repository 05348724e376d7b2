package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/marksense/pkg/metrics"
)

// Error severities recorded with errors_by_type_total.
const (
	severityWarning = "warning"
	severityError   = "error"
)

// MetricsMiddleware records request count and latency for endpoint. Failed
// requests are also counted by their error code, falling back to a code
// derived from the status when the handler wrote no error body.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsed)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.code
		if code == "" {
			code = codeForStatus(rec.status)
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByType(code, severityFor(rec.status))
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusRequestEntityTooLarge:
		return CodeBadRequest
	case http.StatusServiceUnavailable:
		return CodeStoreUnavailable
	case http.StatusGatewayTimeout:
		return CodeTimeout
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return CodeBadRequest
}

func severityFor(status int) string {
	if status >= http.StatusInternalServerError {
		return severityError
	}
	return severityWarning
}

// statusRecorder remembers the status and API error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	code        string
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	return rec.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// noteErrorCode tags w with the error code about to be written, when w is
// wrapped by MetricsMiddleware.
func noteErrorCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
}
