package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/ieraasyl/LiteChat/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CORS creates CORS middleware with configured allowed origins. Credentials
// are allowed so the session cookie reaches the API from the chat page.
//
// Example:
//
//	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Logger creates structured logging middleware with request ID correlation.
//
// An incoming X-Request-ID is reused, otherwise a UUID is generated. The ID
// is put in the request context and echoed in the response headers. One line
// is logged per request on completion; 5xx responses log at error level and
// 4xx at warn.
//
// Example log:
//
//	{"level":"info","request_id":"abc-123","method":"POST","path":"/api/chat","status":200,"bytes":412,"duration":1834.2,"ip":"203.0.113.4","message":"Request completed"}
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			r = r.WithContext(utils.WithRequestID(r.Context(), requestID))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(ww, r)

			var event *zerolog.Event
			switch status := ww.Status(); {
			case status >= http.StatusInternalServerError:
				event = log.Error()
			case status >= http.StatusBadRequest:
				event = log.Warn()
			default:
				event = log.Info()
			}

			event.
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("ip", utils.ExtractClientIP(r)).
				Str("user_agent", r.UserAgent()).
				Msg("Request completed")
		})
	}
}

// Recoverer recovers from panics, logs them, and answers 500.
// Register it before Logger so panics are still logged with a request ID.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error().
						Interface("error", err).
						Str("request_id", utils.GetRequestID(r.Context())).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds security-related HTTP headers to all responses.
//
// The CSP allows inline script and style for the embedded pages, and images
// from any https origin or data: URL since generated images and Google
// avatars are remote. HSTS is only sent in production.
func SecurityHeaders(isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; connect-src 'self'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if isProduction {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
