package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/report-interpreter/internal/client"
	"github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// execute runs a fresh command tree and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func gatewayStub(t *testing.T, paths *[]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*paths = append(*paths, r.URL.Path)
		switch r.URL.Path {
		case client.TextPath:
			var body analysis.TextRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = io.WriteString(w, `{"analysis":{"candidates":[{"content":{"parts":[{"text":"Echo: `+body.ReportText+`"}]}}]}}`)
		case client.ImagePath:
			_ = json.NewEncoder(w).Encode(analysis.Result{
				Text: "LDL 190 mg/dL",
				Analysis: analysis.Findings{
					KeyFindings:           []string{"Very high LDL"},
					Recommendations:       []string{"Discuss statins"},
					UrgentConcerns:        []string{},
					SimplifiedExplanation: "Cholesterol is high.",
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestTextCommand(t *testing.T) {
	t.Setenv("REPORT_SERVER", "")
	var paths []string
	ts := gatewayStub(t, &paths)

	stdout, stderr, err := execute(t, "", "text", "--server", ts.URL, "Hb 13.2 g/dL")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Analysis:")
	assert.Contains(t, stdout, "Echo: Hb 13.2 g/dL")
	assert.Contains(t, stderr, "Analyzing...")
	assert.Equal(t, []string{client.TextPath}, paths)
}

func TestTextCommand_FromStdinAndFile(t *testing.T) {
	t.Setenv("REPORT_SERVER", "")
	var paths []string
	ts := gatewayStub(t, &paths)

	stdout, _, err := execute(t, "WBC 7.1\n", "text", "-s", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Echo: WBC 7.1")

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("LDL 190 mg/dL"), 0o600))
	stdout, _, err = execute(t, "", "text", "-s", ts.URL, "-f", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Echo: LDL 190 mg/dL")
}

func TestServerFromEnvironment(t *testing.T) {
	var paths []string
	ts := gatewayStub(t, &paths)
	t.Setenv("REPORT_SERVER", ts.URL)

	stdout, _, err := execute(t, "", "text", "Platelets 90")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Echo: Platelets 90")

	// an explicit flag wins over the environment
	_, _, err = execute(t, "", "text", "--server", "http://127.0.0.1:1", "Platelets 90")
	assert.Error(t, err)
	assert.Len(t, paths, 1)
}

func TestImageCommand(t *testing.T) {
	t.Setenv("REPORT_SERVER", "")
	var paths []string
	ts := gatewayStub(t, &paths)

	path := filepath.Join(t.TempDir(), "lipids.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	stdout, _, err := execute(t, "", "image", "--server", ts.URL, path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "LDL 190 mg/dL")
	assert.Contains(t, stdout, "Very high LDL")
	assert.Contains(t, stdout, "Discuss statins")
	assert.Contains(t, stdout, "Cholesterol is high.")
	assert.NotContains(t, stdout, "Urgent Concerns")
	assert.Equal(t, []string{client.ImagePath}, paths)
}

func TestImageCommand_RejectsNonImageLocally(t *testing.T) {
	t.Setenv("REPORT_SERVER", "")
	var paths []string
	ts := gatewayStub(t, &paths)

	path := filepath.Join(t.TempDir(), "notes.png")
	require.NoError(t, os.WriteFile(path, []byte("ALT 40 U/L"), 0o600))

	_, _, err := execute(t, "", "image", "--server", ts.URL, path)
	assert.ErrorIs(t, err, analysis.ErrNotImage)
	assert.Empty(t, paths)
}

func TestTimeoutFlag(t *testing.T) {
	t.Setenv("REPORT_SERVER", "")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	start := time.Now()
	_, _, err := execute(t, "", "text", "--server", ts.URL, "--timeout", "50ms", "Hb 9.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestReadText(t *testing.T) {
	got, err := readText(strings.NewReader("ignored"), []string{"Hb 13.2 g/dL"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Hb 13.2 g/dL", got)

	got, err = readText(strings.NewReader("WBC 7.1\n"), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "WBC 7.1", got)

	_, err = readText(strings.NewReader(""), []string{"both"}, "report.txt")
	assert.Error(t, err)
}

func TestIndicate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var buf bytes.Buffer
	stop := indicate(&buf)
	stop()
	assert.Contains(t, buf.String(), "Analyzing...")
}
