package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestAnalyzeText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, TextPath, r.URL.Path)
		var body analysis.TextRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Platelets 90", body.ReportText)
		_, _ = io.WriteString(w, `{"analysis":{"candidates":[{"content":{"parts":[{"text":"Low platelets."}]}}]}}`)
	}))
	defer ts.Close()

	c := New(ts.URL+"/", ts.Client())
	got, err := c.AnalyzeText(context.Background(), "Platelets 90")
	require.NoError(t, err)
	assert.JSONEq(t, `{"candidates":[{"content":{"parts":[{"text":"Low platelets."}]}}]}`, string(got.Analysis))
	assert.False(t, c.Busy())
}

func TestAnalyzeText_EmptyNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer ts.Close()

	c := New(ts.URL, ts.Client())
	for _, text := range []string{"", "   "} {
		_, err := c.AnalyzeText(context.Background(), text)
		assert.ErrorIs(t, err, analysis.ErrEmptyReport)
	}
	assert.Zero(t, hits.Load())
}

func TestAnalyzeImage_NonImageNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer ts.Close()

	c := New(ts.URL, ts.Client())
	_, err := c.AnalyzeImage(context.Background(), "notes.txt", []byte("Vitamin D 12 ng/mL"))
	assert.ErrorIs(t, err, analysis.ErrNotImage)
	_, err = c.AnalyzeImage(context.Background(), "empty.png", nil)
	assert.ErrorIs(t, err, analysis.ErrMissingImage)
	assert.Zero(t, hits.Load())
}

func TestAnalyzeImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ImagePath, r.URL.Path)
		file, header, err := r.FormFile("report")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, pngHeader, data)
		assert.Equal(t, "lipids.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		_ = json.NewEncoder(w).Encode(analysis.Result{
			Text: "LDL 190",
			Analysis: analysis.Findings{
				KeyFindings:    []string{"Very high LDL"},
				UrgentConcerns: []string{},
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, ts.Client())
	res, err := c.AnalyzeImage(context.Background(), "lipids.png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "LDL 190", res.Text)
	assert.Equal(t, []string{"Very high LDL"}, res.Analysis.KeyFindings)
}

func TestAnalyzeImage_FilenameSurvivesTransit(t *testing.T) {
	names := []string{
		"scan\x7fé.png",
		`my "labs".png`,
		`back\slash.png`,
		"résultats sanguins.png",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			var got string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, header, err := r.FormFile("report")
				if assert.NoError(t, err) {
					got = header.Filename
				}
				_, _ = io.WriteString(w, `{"text":"","analysis":{}}`)
			}))
			defer ts.Close()

			_, err := New(ts.URL, ts.Client()).AnalyzeImage(context.Background(), name, pngHeader)
			require.NoError(t, err)
			assert.Equal(t, name, got)
		})
	}
}

func TestGatewayErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"Error analyzing report","error":"Request failed with status code 403"}`, "Error analyzing report: Request failed with status code 403"},
		{"validation", http.StatusBadRequest, `{"message":"Report text is required"}`, "Report text is required"},
		{"opaque", http.StatusBadGateway, `<html>bad gateway</html>`, "Request failed with status code 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			c := New(ts.URL, ts.Client())
			_, err := c.AnalyzeText(context.Background(), "report")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, err.Error())
			assert.False(t, c.Busy(), "client must return to idle after a failure")
		})
	}
}

func TestSingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = io.WriteString(w, `{"analysis":{}}`)
	}))
	defer ts.Close()

	c := New(ts.URL, ts.Client())
	done := make(chan error, 1)
	go func() {
		_, err := c.AnalyzeText(context.Background(), "first")
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first call never reached the gateway")
	}
	assert.True(t, c.Busy())

	_, err := c.AnalyzeText(context.Background(), "second")
	assert.True(t, errors.Is(err, ErrBusy))
	_, err = c.AnalyzeImage(context.Background(), "scan.png", pngHeader)
	assert.True(t, errors.Is(err, ErrBusy))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())

	_, err = c.AnalyzeText(context.Background(), "third")
	assert.NoError(t, err)
}
