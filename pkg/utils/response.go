package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// GetRequestID retrieves the request ID set by the logging middleware.
// Returns an empty string when there is none.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ErrorResponse is the JSON body of every API error. The browser client
// reads the "error" field.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondWithError sends {"error": message} with the request ID from the
// request context.
//
// Example:
//
//	utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	RespondWithJSON(w, r, statusCode, ErrorResponse{
		Error:     message,
		RequestID: GetRequestID(r.Context()),
	})
}

// RespondWithJSON sends data as JSON with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Msg("Failed to encode JSON response")
	}
}

// SetAuthCookie sets an HttpOnly, SameSite=Lax cookie that expires at
// expires. It is marked Secure in production.
func SetAuthCookie(w http.ResponseWriter, name, value string, expires time.Time, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
	})
}

// SetAuthCookieWithMaxAge is SetAuthCookie with a lifetime in seconds. Used
// for the short-lived OAuth state.
func SetAuthCookieWithMaxAge(w http.ResponseWriter, name, value string, maxAge int, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// ClearAuthCookies tells the browser to drop the named cookies.
func ClearAuthCookies(w http.ResponseWriter, names ...string) {
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}
