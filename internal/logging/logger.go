// Package logging configures the services' slog logger and provides the
// response writer wrapper the request-logging middleware records through.
package logging

import (
	"log/slog"
	"net/http"
	"os"
)

// NewLogger builds the service logger writing to stderr. Unrecognized levels
// fall back to info; "text" and "dev" select the text handler, anything else
// logs JSON.
func NewLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "text", "dev":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// LogResponseWriter wraps http.ResponseWriter so middleware can report the
// status code and body size after the handler has run.
type LogResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// NewLogResponseWriter wraps w, assuming 200 until WriteHeader says otherwise
func NewLogResponseWriter(w http.ResponseWriter) *LogResponseWriter {
	return &LogResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *LogResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *LogResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// StatusCode returns the recorded status code
func (w *LogResponseWriter) StatusCode() int {
	return w.statusCode
}

// Size returns the number of body bytes written so far
func (w *LogResponseWriter) Size() int {
	return w.size
}
