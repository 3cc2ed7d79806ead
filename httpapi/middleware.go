package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// withRequestLogging attaches a request id and a request-scoped logger, then writes one access log line.
func withRequestLogging(base zerolog.Logger, next http.Handler) http.Handler {
	logged := handlers.CustomLoggingHandler(io.Discard, next, accessLog)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		log := base.With().Str("request_id", id).Logger()
		logged.ServeHTTP(w, r.WithContext(log.WithContext(r.Context())))
	})
}

// accessLog writes through the request logger instead of the handler's writer.
func accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	zerolog.Ctx(p.Request.Context()).Info().
		Str("method", p.Request.Method).
		Str("path", p.URL.Path).
		Int("status", p.StatusCode).
		Int("bytes", p.Size).
		Dur("duration", time.Since(p.TimeStamp)).
		Msg("request")
}
