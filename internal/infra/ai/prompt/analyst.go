package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a careful medical report interpreter helping a patient understand a report they photographed. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- "text" is a faithful transcription of the report as it appears in the image.
- keyFindings lists notable results in plain language, one short sentence each.
- recommendations lists sensible next steps; always include consulting the treating clinician.
- urgentConcerns lists only values or statements that need prompt medical attention. Use an empty array when there are none.
- simplifiedExplanation explains the report in terms a non-specialist understands.
- Never invent values that are not in the image. If the image is not a medical report, say so in simplifiedExplanation and leave the arrays empty.

Schema (example with empty values):
{
  "text": "<string>",
  "keyFindings": ["<string>"],
  "recommendations": ["<string>"],
  "urgentConcerns": ["<string>"],
  "simplifiedExplanation": "<string>"
}`
}

// GetUserPrompt builds the user message that accompanies the image.
func GetUserPrompt(filename string) string {
	if strings.TrimSpace(filename) == "" {
		return "Transcribe and analyze the attached medical report image and respond with the JSON per schema."
	}
	return fmt.Sprintf("Transcribe and analyze the attached medical report image (%s) and respond with the JSON per schema.", filename)
}

// Report is the flat shape models are asked to return.
type Report struct {
	Text                  string   `json:"text"`
	KeyFindings           []string `json:"keyFindings"`
	Recommendations       []string `json:"recommendations"`
	UrgentConcerns        []string `json:"urgentConcerns"`
	SimplifiedExplanation string   `json:"simplifiedExplanation"`
}

// DecodeReport parses model output into a Result. Models occasionally wrap
// JSON in code fences or prose, so only the outermost object is decoded.
func DecodeReport(raw string) (*domain.Result, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("model response contains no JSON object")
	}

	var r Report
	if err := json.Unmarshal([]byte(body[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	res := &domain.Result{
		Text: strings.TrimSpace(r.Text),
		Analysis: domain.Findings{
			KeyFindings:           compact(r.KeyFindings),
			Recommendations:       compact(r.Recommendations),
			UrgentConcerns:        compact(r.UrgentConcerns),
			SimplifiedExplanation: strings.TrimSpace(r.SimplifiedExplanation),
		},
	}
	res.Normalize()
	return res, nil
}

// compact drops blank entries; models sometimes pad arrays with "".
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
