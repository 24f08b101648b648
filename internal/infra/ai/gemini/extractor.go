package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
	"github.com/bryanwahyu/report-interpreter/internal/infra/ai/prompt"
)

// Extractor reads report images through the GenAI SDK and asks for output
// constrained to the report schema.
type Extractor struct {
	client *genai.Client
	model  string
}

// NewExtractor builds an SDK-backed extractor. BaseURL follows the REST
// client's form ("https://host/v1beta"); the version suffix is split off for
// the SDK.
func NewExtractor(ctx context.Context, cfg Config) (*Extractor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	root, version := splitAPIVersion(base)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    root,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Extractor{client: client, model: model}, nil
}

func (e *Extractor) Extract(ctx context.Context, img domain.ImageRequest) (*domain.Result, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt.GetUserPrompt(img.Filename)),
			genai.NewPartFromBytes(img.Data, img.MIMEType),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.GetSystemPrompt(), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    reportSchema(),
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		upErr := &domain.UpstreamError{Err: fmt.Errorf("GenAI generate failed: %w", err)}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			upErr.StatusCode = apiErr.Code
			upErr.Detail = apiErr.Message
		}
		return nil, upErr
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &domain.UpstreamError{Err: fmt.Errorf("GenAI returned no text")}
	}
	res, err := prompt.DecodeReport(text)
	if err != nil {
		return nil, &domain.UpstreamError{Detail: text, Err: err}
	}
	return res, nil
}

func reportSchema() *genai.Schema {
	list := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: desc,
			Items:       &genai.Schema{Type: genai.TypeString},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":                  {Type: genai.TypeString, Description: "Transcription of the report"},
			"keyFindings":           list("Notable results in plain language"),
			"recommendations":       list("Suggested next steps"),
			"urgentConcerns":        list("Findings needing prompt attention"),
			"simplifiedExplanation": {Type: genai.TypeString, Description: "Plain-language explanation"},
		},
		Required:         []string{"text", "keyFindings", "recommendations", "urgentConcerns", "simplifiedExplanation"},
		PropertyOrdering: []string{"text", "keyFindings", "recommendations", "urgentConcerns", "simplifiedExplanation"},
	}
}

// splitAPIVersion turns "https://host/v1beta" into ("https://host/", "v1beta").
func splitAPIVersion(base string) (string, string) {
	base = strings.TrimRight(base, "/")
	i := strings.LastIndex(base, "/")
	if i < 0 || !strings.HasPrefix(base[i+1:], "v1") {
		return base + "/", ""
	}
	return base[:i+1], base[i+1:]
}

var _ domain.Extractor = (*Extractor)(nil)
var _ domain.Relayer = (*Client)(nil)
