package litellm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.GatewayConfig{
		BaseURL:       baseURL,
		APIKey:        "sk-test",
		ChatTimeout:   2 * time.Second,
		ImageTimeout:  2 * time.Second,
		ModelsTimeout: 2 * time.Second,
	})
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func chatRequest() ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:       "gpt-4",
		Messages:    []Message{{Role: "user", Content: "Hello"}},
		MaxTokens:   4096,
		Temperature: 0.5,
		TopP:        0.9,
	}
}

func gatewayError(t *testing.T, err error) *Error {
	t.Helper()
	require.Error(t, err)
	gwErr, ok := AsError(err)
	require.True(t, ok, "expected *litellm.Error, got %T", err)
	return gwErr
}

func TestChatCompletion(t *testing.T) {
	t.Run("sends payload and returns first choice", func(t *testing.T) {
		var got ChatCompletionRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			respond(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`)(w, r)
		}))
		defer server.Close()

		reply, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())

		require.NoError(t, err)
		assert.Equal(t, "Hi there", reply)
		assert.Equal(t, "gpt-4", got.Model)
		assert.False(t, got.Stream)
		assert.Equal(t, 4096, got.MaxTokens)
		assert.InDelta(t, 0.5, got.Temperature, 1e-9)
		assert.InDelta(t, 0.9, got.TopP, 1e-9)
	})

	t.Run("extracts model from embedded not found error", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK,
			`{"error":"litellm.NotFoundError: model 'gpt-9' does not exist"}`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())

		gwErr := gatewayError(t, err)
		assert.Equal(t, KindModelNotFound, gwErr.Kind)
		assert.Equal(t, "gpt-9", gwErr.Model)
	})

	t.Run("reads message from object error", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusBadRequest,
			`{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())

		gwErr := gatewayError(t, err)
		assert.Equal(t, KindAPIError, gwErr.Kind)
		assert.Equal(t, "context length exceeded", gwErr.Message)
	})

	t.Run("classifies missing choices", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK, `{"choices":[]}`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())
		assert.Equal(t, KindInvalidResponse, gatewayError(t, err).Kind)
	})

	t.Run("classifies placeholder content as empty", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK,
			`{"choices":[{"message":{"content":"No response received"}}]}`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())
		assert.Equal(t, KindEmptyResponse, gatewayError(t, err).Kind)
	})

	t.Run("classifies status errors", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusUnauthorized, `unauthorized`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())

		gwErr := gatewayError(t, err)
		assert.Equal(t, KindHTTPStatus, gwErr.Kind)
		assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
		assert.True(t, IsStatus(err, http.StatusUnauthorized))
	})

	t.Run("attaches requested model to 404", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusNotFound, `not found`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())
		assert.Equal(t, "gpt-4", gatewayError(t, err).Model)
	})

	t.Run("classifies malformed json", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK, `<html>oops</html>`))
		defer server.Close()

		_, err := newTestClient(server.URL).ChatCompletion(context.Background(), chatRequest())
		assert.Equal(t, KindMalformedJSON, gatewayError(t, err).Kind)
	})

	t.Run("classifies timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		client.chatTimeout = 50 * time.Millisecond

		_, err := client.ChatCompletion(context.Background(), chatRequest())
		assert.Equal(t, KindTimeout, gatewayError(t, err).Kind)
	})

	t.Run("classifies connection failure", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK, `{}`))
		url := server.URL
		server.Close()

		_, err := newTestClient(url).ChatCompletion(context.Background(), chatRequest())
		assert.Equal(t, KindConnection, gatewayError(t, err).Kind)
	})
}

func TestGenerateImage(t *testing.T) {
	req := ImageGenerationRequest{Model: "dall-e-3", Prompt: "a cat", N: 1, Size: "1024x1024", Quality: "standard", ResponseFormat: "url"}

	t.Run("returns image url", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/images/generations", r.URL.Path)
			respond(http.StatusOK, `{"data":[{"url":"https://img.example.com/cat.png"}]}`)(w, r)
		}))
		defer server.Close()

		res, err := newTestClient(server.URL).GenerateImage(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "https://img.example.com/cat.png", res.URL)
	})

	t.Run("reports 404 as status error", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusNotFound, `{"detail":"Not Found"}`))
		defer server.Close()

		_, err := newTestClient(server.URL).GenerateImage(context.Background(), req)
		assert.True(t, IsStatus(err, http.StatusNotFound))
	})

	t.Run("falls back to default text", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK, `{"data":[]}`))
		defer server.Close()

		res, err := newTestClient(server.URL).GenerateImage(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "Image generation completed.", res.Text)
	})
}

func TestListModels(t *testing.T) {
	t.Run("returns raw document", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusOK, `{"data":[{"id":"gpt-4"}]}`))
		defer server.Close()

		raw, err := newTestClient(server.URL).ListModels(context.Background())

		require.NoError(t, err)
		assert.JSONEq(t, `{"data":[{"id":"gpt-4"}]}`, string(raw))
	})

	t.Run("fails on server error", func(t *testing.T) {
		server := httptest.NewServer(respond(http.StatusInternalServerError, `boom`))
		defer server.Close()

		_, err := newTestClient(server.URL).ListModels(context.Background())
		assert.True(t, IsStatus(err, http.StatusInternalServerError))
	})
}

func TestObserver(t *testing.T) {
	server := httptest.NewServer(respond(http.StatusOK, `{"data":[]}`))
	defer server.Close()

	var paths []string
	client := newTestClient(server.URL).WithObserver(func(path string, elapsed time.Duration) {
		paths = append(paths, path)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	})

	_, err := client.ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"/models"}, paths)
}
