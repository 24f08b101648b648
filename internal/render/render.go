package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

const (
	NoAnalysis  = "No analysis available"
	NotProvided = "Not provided"
	NoneListed  = "None listed"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	urgentStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)
	findingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("27"))
	adviceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("28"))
	plainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("93"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// ExtractText pulls candidates[0].content.parts[0].text out of an upstream
// body. Anything missing yields NoAnalysis.
func ExtractText(raw json.RawMessage) string {
	var body struct {
		Candidates []struct {
			Content *struct {
				Parts []struct {
					Text *string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &body) != nil {
		return NoAnalysis
	}
	if len(body.Candidates) == 0 || body.Candidates[0].Content == nil {
		return NoAnalysis
	}
	parts := body.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil || *parts[0].Text == "" {
		return NoAnalysis
	}
	return *parts[0].Text
}

// Text renders the unstructured variant.
func Text(w io.Writer, raw json.RawMessage) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render("Analysis:"), ExtractText(raw))
	return err
}

// Report renders the structured variant. The urgent concerns panel only
// appears when there is something in it.
func Report(w io.Writer, r *analysis.Result) error {
	if r == nil {
		r = &analysis.Result{}
	}
	var b strings.Builder

	b.WriteString(headingStyle.Render("Extracted Text"))
	b.WriteString("\n")
	b.WriteString(orPlaceholder(r.Text))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Analysis Summary"))
	b.WriteString("\n\n")

	if len(r.Analysis.UrgentConcerns) > 0 {
		b.WriteString(urgentStyle.Render("Urgent Concerns\n" + bullets(r.Analysis.UrgentConcerns)))
		b.WriteString("\n\n")
	}

	b.WriteString(headingStyle.Render("Key Findings"))
	b.WriteString("\n")
	b.WriteString(findingStyle.Render(bullets(r.Analysis.KeyFindings)))
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render("Recommendations"))
	b.WriteString("\n")
	b.WriteString(adviceStyle.Render(bullets(r.Analysis.Recommendations)))
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render("Simplified Explanation"))
	b.WriteString("\n")
	b.WriteString(plainStyle.Render(orPlaceholder(r.Analysis.SimplifiedExplanation)))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func bullets(items []string) string {
	if len(items) == 0 {
		return mutedStyle.Render(NoneListed)
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return mutedStyle.Render(NotProvided)
	}
	return s
}
