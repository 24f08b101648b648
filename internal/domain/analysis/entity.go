package analysis

import "encoding/json"

// TextRequest is the JSON body of the text analysis endpoint.
type TextRequest struct {
	ReportText string `json:"reportText"`
}

// ImageRequest carries one uploaded report image.
type ImageRequest struct {
	Filename string
	MIMEType string // as declared by the client, may be empty
	Data     []byte
}

// Findings is the structured interpretation of a report.
type Findings struct {
	KeyFindings           []string `json:"keyFindings"`
	Recommendations       []string `json:"recommendations"`
	UrgentConcerns        []string `json:"urgentConcerns"`
	SimplifiedExplanation string   `json:"simplifiedExplanation"`
}

// Result is the structured variant returned for image uploads.
type Result struct {
	Text     string   `json:"text"`
	Analysis Findings `json:"analysis"`
}

// Normalize replaces nil sequences with empty ones so clients can always
// rely on the fields being present.
func (r *Result) Normalize() {
	if r.Analysis.KeyFindings == nil {
		r.Analysis.KeyFindings = []string{}
	}
	if r.Analysis.Recommendations == nil {
		r.Analysis.Recommendations = []string{}
	}
	if r.Analysis.UrgentConcerns == nil {
		r.Analysis.UrgentConcerns = []string{}
	}
}

// Relay is the unstructured variant: the upstream body, untouched.
type Relay struct {
	Analysis json.RawMessage `json:"analysis"`
}

// Envelope is the request shape the generative-language API expects.
type Envelope struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// NewTextEnvelope wraps a single text input.
func NewTextEnvelope(text string) Envelope {
	return Envelope{Contents: []Content{{Parts: []Part{{Text: text}}}}}
}
