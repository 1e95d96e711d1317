package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ieraasyl/LiteChat/internal/middleware"
	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/internal/services"
	"github.com/ieraasyl/LiteChat/pkg/utils"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const (
	modelsCacheKey  = "models"
	multipartMemory = 32 << 20
)

// ChatSender runs chat requests.
type ChatSender interface {
	Send(ctx context.Context, identity *models.UserIdentity, req models.ChatRequest) (*models.ChatResponse, error)
	IsImageModel(model string) bool
}

// ModelLister fetches the gateway's model list.
type ModelLister interface {
	ListModels(ctx context.Context) (json.RawMessage, error)
}

// TranscriptReader reads and creates chat sessions.
type TranscriptReader interface {
	Create() string
	History(id string) []models.ChatTurn
}

// ChatHandler serves the JSON API used by the chat page.
type ChatHandler struct {
	chat           ChatSender
	models         ModelLister
	sessions       TranscriptReader
	usage          UsageReporter
	modelsCache    *gocache.Cache
	maxUploadBytes int64
}

// NewChatHandler creates the chat API handler. The model list is cached for
// modelsTTL; uploads larger than maxUploadBytes are rejected.
//
// Example:
//
//	chatHandler := handlers.NewChatHandler(chatSvc, gatewayClient, sessions, usage,
//	    cfg.Gateway.ModelsCacheTTL, cfg.Upload.MaxBytes)
//	r.Post("/api/chat", chatHandler.Chat)
func NewChatHandler(chat ChatSender, lister ModelLister, sessions TranscriptReader, usage UsageReporter, modelsTTL time.Duration, maxUploadBytes int64) *ChatHandler {
	return &ChatHandler{
		chat:           chat,
		models:         lister,
		sessions:       sessions,
		usage:          usage,
		modelsCache:    gocache.New(modelsTTL, 2*modelsTTL),
		maxUploadBytes: maxUploadBytes,
	}
}

// Models proxies GET {base}/models. A failure is reported in the body with
// an empty data list so the page can still load.
func (h *ChatHandler) Models(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.modelsCache.Get(modelsCacheKey); ok {
		utils.RespondWithJSON(w, r, http.StatusOK, cached.(json.RawMessage))
		return
	}

	list, err := h.models.ListModels(r.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Failed to fetch models")
		utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
			"error": "Failed to fetch models",
			"data":  []interface{}{},
		})
		return
	}

	h.modelsCache.SetDefault(modelsCacheKey, list)
	utils.RespondWithJSON(w, r, http.StatusOK, list)
}

// Chat handles POST /api/chat.
//
// Form fields: message, model, session_id (required), file_content
// (base64), file_name, is_image_request. Chat failures are not HTTP errors:
// they come back as 200 {"error": "...", "file_name": "..."} and the page
// shows them in the transcript.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	// Attachments arrive base64 encoded, so allow for the 4/3 expansion.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*4/3+1<<20)

	if err := parseChatForm(r); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid form body")
		return
	}

	req := models.ChatRequest{
		Message:        r.FormValue("message"),
		Model:          r.FormValue("model"),
		SessionID:      r.FormValue("session_id"),
		FileContent:    r.FormValue("file_content"),
		FileName:       r.FormValue("file_name"),
		IsImageRequest: parseFormBool(r.FormValue("is_image_request")),
	}

	if req.Message == "" || req.Model == "" || req.SessionID == "" {
		utils.RespondWithError(w, r, http.StatusUnprocessableEntity, "message, model and session_id are required")
		return
	}

	path := "text"
	if req.IsImageRequest || (h.chat.IsImageModel(req.Model) && req.FileContent == "") {
		path = "image"
	}

	resp, err := h.chat.Send(r.Context(), identity, req)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}

		chatErr, ok := services.AsChatError(err)
		if !ok {
			log.Error().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Chat failed")
			utils.RespondWithError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		middleware.RecordChat(path, chatErr.Kind)
		if path == "text" && chatErr.Kind != services.KindQuotaExceeded {
			middleware.RecordCacheLookup(false)
		}
		utils.RespondWithJSON(w, r, http.StatusOK, models.ChatErrorResponse{
			Error:    chatErr.Message,
			FileName: req.FileName,
		})
		return
	}

	outcome := "ok"
	if resp.Cached {
		outcome = "cached"
	}
	middleware.RecordChat(path, outcome)
	if path == "text" {
		middleware.RecordCacheLookup(resp.Cached)
	}

	utils.RespondWithJSON(w, r, http.StatusOK, resp)
}

// History returns the transcript of a session. Unknown sessions are empty.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	messages := h.sessions.History(sessionID)
	if messages == nil {
		messages = []models.ChatTurn{}
	}
	utils.RespondWithJSON(w, r, http.StatusOK, models.ChatHistoryResponse{Messages: messages})
}

// NewSession starts an empty transcript.
func (h *ChatHandler) NewSession(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"session_id": h.sessions.Create(),
	})
}

// Usage reports the caller's demo counters. Admins see "Unlimited".
func (h *ChatHandler) Usage(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if identity.IsAdmin {
		utils.RespondWithJSON(w, r, http.StatusOK, models.UsageResponse{
			IsAdmin: true,
			Usage: models.UsageDetail{
				RequestCount: "Unlimited",
				TokenCount:   "Unlimited",
			},
		})
		return
	}

	record := h.usage.Get(identity.Email)
	requestLimit, tokenLimit := h.usage.Limits()
	utils.RespondWithJSON(w, r, http.StatusOK, models.UsageResponse{
		Usage: models.UsageDetail{
			RequestCount: record.RequestCount,
			TokenCount:   record.TokenCount,
			RequestLimit: requestLimit,
			TokenLimit:   tokenLimit,
			LimitReached: h.usage.LimitReached(identity.Email),
		},
	})
}

// Me returns the signed-in identity with current usage.
func (h *ChatHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	me := *identity
	me.Usage = h.usage.Get(identity.Email)
	utils.RespondWithJSON(w, r, http.StatusOK, me)
}

// UploadFile accepts a multipart "file" and returns it base64 encoded, ready
// to be sent back as file_content on /api/chat.
func (h *ChatHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.uploadFailed(w, r, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		h.uploadFailed(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.uploadFailed(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if int64(len(content)) > h.maxUploadBytes {
		h.uploadFailed(w, r, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	log.Debug().Str("file_name", header.Filename).Int("size", len(content)).Msg("File uploaded")

	utils.RespondWithJSON(w, r, http.StatusOK, models.UploadResponse{
		Success: true,
		FileInfo: models.UploadedFile{
			FileName:    header.Filename,
			ContentType: contentType,
			Size:        len(content),
			ContentB64:  base64.StdEncoding.EncodeToString(content),
		},
		Message: fmt.Sprintf("File '%s' uploaded successfully", header.Filename),
	})
}

func (h *ChatHandler) uploadFailed(w http.ResponseWriter, r *http.Request, status int, reason string) {
	utils.RespondWithJSON(w, r, status, map[string]interface{}{
		"success": false,
		"error":   "Failed to upload file: " + reason,
	})
}

// parseChatForm reads url-encoded and multipart bodies. ParseMultipartForm
// reports any url-encoded read error as ErrNotMultipart, so the url-encoded
// body is parsed on its own first.
func parseChatForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil
	}
	return r.ParseMultipartForm(multipartMemory)
}

// parseFormBool accepts the checkbox spellings browsers and scripts send.
func parseFormBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}
