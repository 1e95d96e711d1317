package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/ieraasyl/LiteChat/internal/extract"
	"github.com/ieraasyl/LiteChat/internal/litellm"
	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/pkg/cache"
	"github.com/rs/zerolog/log"
)

const (
	maxFileChars       = 4000
	truncationMarker   = "\n... (truncated)"
	maxImageContext    = 1000
	imagePromptPrefix  = "Create a high-quality, detailed image of: "
	imageFallbackInstr = "You are an AI assistant that can generate images. When asked to create an image, " +
		"provide a detailed description and suggest using an image generation service."
)

// Sampling parameters for the text path.
const (
	chatMaxTokens   = 4096
	chatTemperature = 0.5
	chatTopP        = 0.9
)

var imageIntentKeywords = []string{"generate image", "create image", "draw", "picture", "photo", "image of"}

// Gateway is the subset of the LiteLLM client the chat pipeline needs.
type Gateway interface {
	ChatCompletion(ctx context.Context, req litellm.ChatCompletionRequest) (string, error)
	GenerateImage(ctx context.Context, req litellm.ImageGenerationRequest) (*litellm.ImageResult, error)
}

// ResponseCache stores assistant replies by request key.
type ResponseCache interface {
	Get(key string) (string, error)
	Put(key, value string)
}

// UsageAccounting checks and charges demo quotas.
type UsageAccounting interface {
	CheckLimits(email string) (bool, string)
	Increment(email string, tokens int)
}

// TranscriptStore appends turns to chat sessions.
type TranscriptStore interface {
	Append(id string, turn models.ChatTurn)
}

// ChatOptions configures the chat pipeline.
type ChatOptions struct {
	FormattingPrompt string
	ImageModels      []string
	ChargeCacheHits  bool
}

// ChatService runs a chat request end to end: quota check, transcript
// update, cache lookup, file extraction, the gateway call and usage
// accounting.
type ChatService struct {
	gateway  Gateway
	cache    ResponseCache
	usage    UsageAccounting
	sessions TranscriptStore
	opts     ChatOptions
}

// NewChatService wires the chat pipeline.
//
// Example:
//
//	chat := services.NewChatService(gatewayClient, responses, usage, sessions, services.ChatOptions{
//	    FormattingPrompt: cfg.Gateway.FormattingPrompt,
//	    ImageModels:      cfg.Gateway.ImageModels,
//	})
//	resp, err := chat.Send(ctx, identity, req)
func NewChatService(gateway Gateway, responses ResponseCache, usage UsageAccounting, sessions TranscriptStore, opts ChatOptions) *ChatService {
	return &ChatService{
		gateway:  gateway,
		cache:    responses,
		usage:    usage,
		sessions: sessions,
		opts:     opts,
	}
}

// IsImageModel reports whether model names a known image-generation model.
func (s *ChatService) IsImageModel(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range s.opts.ImageModels {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Send processes one chat request for identity.
//
// It returns ErrUnauthorized without an identity. Every other failure is a
// *ChatError carrying the message to show the user. A quota denial leaves
// the transcript untouched; any later failure leaves the user turn in place.
func (s *ChatService) Send(ctx context.Context, identity *models.UserIdentity, req models.ChatRequest) (*models.ChatResponse, error) {
	if identity == nil {
		return nil, ErrUnauthorized
	}

	if ok, reason := s.usage.CheckLimits(identity.Email); !ok {
		return nil, &ChatError{Kind: KindQuotaExceeded, Message: reason, FileName: req.FileName}
	}

	userTurn := models.ChatTurn{
		Role:           models.RoleUser,
		Content:        req.Message,
		IsImageRequest: req.IsImageRequest,
	}
	if req.FileContent != "" {
		userTurn.FileName = req.FileName
	}
	s.sessions.Append(req.SessionID, userTurn)

	if req.IsImageRequest || (s.IsImageModel(req.Model) && req.FileContent == "") {
		return s.generateImage(ctx, identity, req)
	}
	return s.complete(ctx, identity, req)
}

func (s *ChatService) complete(ctx context.Context, identity *models.UserIdentity, req models.ChatRequest) (*models.ChatResponse, error) {
	key := cache.ResponseKey(req.Model, req.Message, req.FileName)

	if cached, err := s.cache.Get(key); err == nil {
		s.sessions.Append(req.SessionID, models.ChatTurn{Role: models.RoleAssistant, Content: cached})
		if s.opts.ChargeCacheHits {
			s.usage.Increment(identity.Email, estimateTokens(cached, req.Message))
		}
		log.Debug().Str("model", req.Model).Str("session_id", req.SessionID).Msg("Response cache hit")
		return &models.ChatResponse{Content: cached, FileName: req.FileName, Cached: true}, nil
	}

	userContent := req.Message
	if req.HasFile() {
		userContent += s.fileBlock(req)
	}

	content, err := s.gateway.ChatCompletion(ctx, litellm.ChatCompletionRequest{
		Model: req.Model,
		Messages: []litellm.Message{
			{Role: "system", Content: s.opts.FormattingPrompt},
			{Role: "user", Content: userContent},
		},
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
		TopP:        chatTopP,
	})
	if err != nil {
		kind, msg := describeGatewayError(err)
		log.Warn().
			Err(err).
			Str("model", req.Model).
			Str("kind", kind).
			Str("email", identity.Email).
			Msg("Chat completion failed")
		return nil, &ChatError{Kind: kind, Message: msg, FileName: req.FileName, Err: err}
	}

	s.sessions.Append(req.SessionID, models.ChatTurn{Role: models.RoleAssistant, Content: content})
	s.cache.Put(key, content)
	s.usage.Increment(identity.Email, estimateTokens(content, userContent))

	return &models.ChatResponse{Content: content, FileName: req.FileName}, nil
}

// fileBlock decodes and extracts the attachment and formats it for the
// prompt.
func (s *ChatService) fileBlock(req models.ChatRequest) string {
	data, err := base64.StdEncoding.DecodeString(req.FileContent)
	if err != nil {
		log.Warn().Err(err).Str("file", req.FileName).Msg("Failed to decode attachment")
		return fmt.Sprintf("\n\n[Uploaded file: %s (could not decode)]", req.FileName)
	}

	res := extract.Extract(data, req.FileName)
	if res.Failed() {
		log.Warn().Err(res.Err).Str("file", req.FileName).Str("kind", string(res.Kind)).Msg("Attachment extraction fell back to placeholder")
	}
	if res.Text == "" {
		return fmt.Sprintf("\n\n[Uploaded file: %s (binary or non-text)]", req.FileName)
	}

	text := extract.Truncate(res.Text, maxFileChars, truncationMarker)
	return fmt.Sprintf("\n\n[Uploaded file: %s]\n---\n%s\n---", req.FileName, text)
}

func (s *ChatService) generateImage(ctx context.Context, identity *models.UserIdentity, req models.ChatRequest) (*models.ChatResponse, error) {
	prompt := imagePrompt(req.Message)
	if req.HasFile() {
		if data, err := base64.StdEncoding.DecodeString(req.FileContent); err == nil {
			if res := extract.Extract(data, req.FileName); res.Text != "" {
				prompt += fmt.Sprintf("\n\nContext from uploaded file (%s):\n%s", req.FileName,
					extract.Truncate(res.Text, maxImageContext, ""))
			}
		} else {
			log.Warn().Err(err).Str("file", req.FileName).Msg("Failed to decode attachment for image prompt")
		}
	}

	result, err := s.gateway.GenerateImage(ctx, litellm.ImageGenerationRequest{
		Model:          req.Model,
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		Quality:        "standard",
		ResponseFormat: "url",
	})
	if litellm.IsStatus(err, http.StatusNotFound) {
		log.Info().Str("model", req.Model).Msg("Image endpoint not found, falling back to chat completion")
		var text string
		text, err = s.gateway.ChatCompletion(ctx, litellm.ChatCompletionRequest{
			Model: req.Model,
			Messages: []litellm.Message{
				{Role: "system", Content: imageFallbackInstr},
				{Role: "user", Content: "Generate an image based on this description: " + prompt},
			},
			MaxTokens:   1000,
			Temperature: 0.7,
		})
		if gwErr, ok := litellm.AsError(err); ok && gwErr.Kind == litellm.KindEmptyResponse {
			text, err = litellm.DefaultImageText, nil
		}
		result = &litellm.ImageResult{Text: text}
	}

	if err != nil {
		kind, detail := describeGatewayError(err)
		msg := imageErrorMessage(detail)
		log.Warn().Err(err).Str("model", req.Model).Str("kind", kind).Msg("Image generation failed")

		s.sessions.Append(req.SessionID, models.ChatTurn{Role: models.RoleAssistant, Content: msg})
		return nil, &ChatError{Kind: KindImageGeneration, Message: msg, FileName: req.FileName, Err: err}
	}

	content := result.Text
	if result.URL != "" {
		content = imageSuccessMessage(result.URL, prompt)
	}

	s.sessions.Append(req.SessionID, models.ChatTurn{Role: models.RoleAssistant, Content: content, IsImageResponse: true})
	s.usage.Increment(identity.Email, ImageGenerationTokens)

	return &models.ChatResponse{Content: content, FileName: req.FileName, IsImageResponse: true}, nil
}

// imagePrompt keeps prompts that already ask for an image and prefixes the rest.
func imagePrompt(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range imageIntentKeywords {
		if strings.Contains(lower, kw) {
			return message
		}
	}
	return imagePromptPrefix + message
}

func imageSuccessMessage(url, prompt string) string {
	return fmt.Sprintf("🎨 **Image generated**\n\n![Generated image](%s)\n\n### Prompt\n%s\n\n"+
		"### Next steps\n- Right-click the image and choose *Save Image As* to download it\n"+
		"- Describe changes to generate a new variation", url, prompt)
}

func imageErrorMessage(detail string) string {
	return fmt.Sprintf("🖼️ **Image Generation Error**\n\n### Issue\nFailed to generate image: %s\n\n"+
		"### Suggestions\n- Pick a model that supports image generation\n"+
		"- Check that the API key is allowed to generate images\n"+
		"- Make the prompt clear and descriptive", detail)
}

// estimateTokens approximates token usage as the word count of both texts.
func estimateTokens(reply, prompt string) int {
	return len(strings.Fields(reply)) + len(strings.Fields(prompt))
}
