// Package client calls the analysis gateway on behalf of a single user.
//
// A Client allows one analysis at a time: while a call is outstanding every
// other call fails fast with ErrBusy, which is how a UI keeps its trigger
// disabled. The client returns to idle when the call finishes, whatever the
// outcome.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"

	"github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

const (
	TextPath  = "/api/medical/analyze"
	ImagePath = "/api/analyze-report"

	maxResponseBytes = 16 << 20
)

var ErrBusy = errors.New("an analysis is already in progress")

// quoteEscaper escapes a Content-Disposition quoted-string the same way
// mime/multipart does for its own form files.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("Request failed with status code %d", e.StatusCode)
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	return msg
}

// TextAnalysis is the unstructured gateway response.
type TextAnalysis struct {
	Analysis json.RawMessage `json:"analysis"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	busy       atomic.Bool
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Busy reports whether a call is in flight.
func (c *Client) Busy() bool { return c.busy.Load() }

// AnalyzeText submits pasted report text. Empty text is rejected locally.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*TextAnalysis, error) {
	if err := analysis.ValidateText(text); err != nil {
		return nil, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	payload, err := json.Marshal(analysis.TextRequest{ReportText: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TextPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out TextAnalysis
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeImage uploads a report image. Files that are not images are
// rejected before any network call.
func (c *Client) AnalyzeImage(ctx context.Context, filename string, data []byte) (*analysis.Result, error) {
	mimeType, err := analysis.ValidateImage(analysis.ImageRequest{Filename: filename, Data: data})
	if err != nil {
		return nil, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="report"; filename="%s"`, quoteEscaper.Replace(filename)))
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ImagePath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out analysis.Result
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Message = body.Message
			apiErr.Detail = body.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
