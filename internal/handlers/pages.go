package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ieraasyl/LiteChat/internal/middleware"
	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/pkg/utils"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var loginErrors = map[string]string{
	errTagInvalidState: "Invalid authentication state. Please try again.",
	errTagNoCode:       "Authentication failed. Please try again.",
	errTagAuthFailed:   "Authentication failed. Please try again.",
}

// UsageReporter exposes the demo counters and policy for display.
type UsageReporter interface {
	Get(email string) models.UsageRecord
	Limits() (requests, tokens int)
	LimitReached(email string) bool
}

// PageHandler renders the two HTML pages.
type PageHandler struct {
	version string
	usage   UsageReporter
}

// NewPageHandler creates a page handler showing version in the footer.
func NewPageHandler(version string, usage UsageReporter) *PageHandler {
	return &PageHandler{version: version, usage: usage}
}

type loginPage struct {
	Version string
	Error   string
}

type chatPage struct {
	Version      string
	User         *models.UserIdentity
	Usage        models.UsageRecord
	RequestLimit int
	TokenLimit   int
	LimitReached bool
}

// Login renders the sign-in page. Signed-in users are sent to /.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	h.render(w, r, "login.html", loginPage{
		Version: h.version,
		Error:   loginErrorMessage(r.URL.Query().Get("error"), r.URL.Query().Get("message")),
	})
}

// Index renders the chat page. Anonymous visitors are sent to /login.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	requestLimit, tokenLimit := h.usage.Limits()
	data := chatPage{
		Version:      h.version,
		User:         identity,
		Usage:        h.usage.Get(identity.Email),
		RequestLimit: requestLimit,
		TokenLimit:   tokenLimit,
	}
	if !identity.IsAdmin {
		data.LimitReached = h.usage.LimitReached(identity.Email)
	}

	h.render(w, r, "chat.html", data)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	// Render into a buffer so a template error can still become a 500.
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Str("request_id", utils.GetRequestID(r.Context())).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// loginErrorMessage maps a login error tag to the text shown on the page.
// No tag means no message.
func loginErrorMessage(tag, message string) string {
	switch {
	case tag == "":
		return ""
	case tag == errTagAccessDenied:
		if message == "" {
			return "Access Denied."
		}
		return "Access Denied: " + message
	}
	if text, ok := loginErrors[tag]; ok {
		return text
	}
	// Unknown tags are shown as sent; the template escapes them.
	return tag
}
