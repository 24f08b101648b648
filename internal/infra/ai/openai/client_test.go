package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestClient_Extract(t *testing.T) {
	reply := `{"text":"ALT 120 U/L","keyFindings":["Raised liver enzyme"],"recommendations":["Avoid alcohol","Recheck in 4 weeks"],"urgentConcerns":[],"simplifiedExplanation":"Your liver is a bit irritated."}`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		assert.Equal(t, 2048, body.MaxTokens)
		if assert.Len(t, body.Messages, 2) {
			assert.True(t, strings.Contains(string(body.Messages[1].Content), "data:image/png;base64,"))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}, "finish_reason": "stop"}},
		})
	}))
	defer ts.Close()

	c := NewClient("sk-test", ts.URL+"/v1", "", 0)
	res, err := c.Extract(context.Background(), domain.ImageRequest{Filename: "lft.png", MIMEType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "ALT 120 U/L", res.Text)
	assert.Equal(t, []string{"Avoid alcohol", "Recheck in 4 weeks"}, res.Analysis.Recommendations)
	assert.Empty(t, res.Analysis.UrgentConcerns)
}

func TestClient_ExtractAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer ts.Close()

	c := NewClient("sk-wrong", ts.URL+"/v1", "gpt-4o-mini", 0)
	_, err := c.Extract(context.Background(), domain.ImageRequest{MIMEType: "image/png", Data: pngHeader})

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
	assert.Equal(t, "Incorrect API key provided", upErr.Detail)
	assert.NotContains(t, err.Error(), "sk-wrong")
}
