package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
	"github.com/bryanwahyu/report-interpreter/internal/infra/ai/prompt"
)

const (
	maxTokens    = 2048
	DefaultModel = "gpt-4o-mini"
)

// Client is an Extractor backed by an OpenAI-compatible vision model.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

func (c *Client) Extract(ctx context.Context, img domain.ImageRequest) (*domain.Result, error) {
	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt(img.Filename)},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailHigh,
					}},
				},
			},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, upstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.UpstreamError{Err: errors.New("chat completion returned no choices")}
	}

	content := resp.Choices[0].Message.Content
	res, err := prompt.DecodeReport(content)
	if err != nil {
		return nil, &domain.UpstreamError{Detail: content, Err: err}
	}
	return res, nil
}

func upstreamError(err error) *domain.UpstreamError {
	upErr := &domain.UpstreamError{Err: fmt.Errorf("failed to create chat completion: %w", err)}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		upErr.StatusCode = apiErr.HTTPStatusCode
		upErr.Detail = apiErr.Message
	case errors.As(err, &reqErr):
		upErr.StatusCode = reqErr.HTTPStatusCode
		upErr.Detail = string(reqErr.Body)
	}
	return upErr
}

var _ domain.Extractor = (*Client)(nil)
