package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ieraasyl/LiteChat/internal/litellm"
)

// ErrUnauthorized is returned when a chat operation has no signed-in identity.
var ErrUnauthorized = errors.New("not authenticated")

// Chat failure kinds that do not come from the gateway client.
const (
	KindQuotaExceeded   = "quota_exceeded"
	KindImageGeneration = "image_generation"
)

// ChatError is a chat request failure that should be shown to the user.
// Message is the user-facing text; Kind is the machine-readable class used
// for logs and metrics.
type ChatError struct {
	Kind     string
	Message  string
	FileName string
	Err      error
}

func (e *ChatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("chat %s: %s", e.Kind, e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// AsChatError extracts a *ChatError from err's chain.
func AsChatError(err error) (*ChatError, bool) {
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return chatErr, true
	}
	return nil, false
}

// describeGatewayError maps a gateway failure to its kind and the message
// shown in the chat window.
func describeGatewayError(err error) (string, string) {
	gwErr, ok := litellm.AsError(err)
	if !ok {
		return string(litellm.KindUnexpected), fmt.Sprintf("Unexpected error: %v", err)
	}

	kind := string(gwErr.Kind)
	switch gwErr.Kind {
	case litellm.KindModelNotFound:
		return kind, modelNotFoundMessage(gwErr.Model)
	case litellm.KindAPIError:
		return kind, gwErr.Message
	case litellm.KindInvalidResponse:
		return kind, "Invalid response format from API"
	case litellm.KindEmptyResponse:
		return kind, "No response content received from API"
	case litellm.KindHTTPStatus:
		switch gwErr.StatusCode {
		case http.StatusNotFound:
			return kind, modelNotFoundMessage(gwErr.Model)
		case http.StatusUnauthorized:
			return kind, "Authentication failed. Please check your API key."
		case http.StatusForbidden:
			return kind, "Access forbidden. Please check your API key and permissions."
		default:
			return kind, fmt.Sprintf("API error (%d): %s", gwErr.StatusCode, gwErr.Message)
		}
	case litellm.KindTimeout:
		return kind, "Request timed out. Please try again."
	case litellm.KindConnection:
		return kind, "Could not connect to the API server. Please check your internet connection."
	case litellm.KindMalformedJSON:
		return kind, "Invalid JSON response from API"
	default:
		if gwErr.Err != nil {
			return kind, fmt.Sprintf("Unexpected error: %v", gwErr.Err)
		}
		return kind, fmt.Sprintf("Unexpected error: %s", gwErr.Message)
	}
}

func modelNotFoundMessage(model string) string {
	if model == "" {
		return "Model not found. Please select a different model from the dropdown."
	}
	return fmt.Sprintf("Model '%s' not found. Please select a different model from the dropdown.", model)
}
