package narrative

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/nyxcore884/budgetlens/internal/aggregate"
	"github.com/nyxcore884/budgetlens/internal/metrics"
)

// Gemini generates analyses with the Gemini API. The prompt presents
// the verified figures as given facts; the model is explicitly told not
// to recalculate them.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the client. The API key comes from the environment
// (GEMINI_API_KEY), which the genai client reads itself.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Analyze implements Generator.
func (g *Gemini) Analyze(ctx context.Context, verified *metrics.Verified, sample []aggregate.Row) (*Analysis, error) {
	prompt := buildAnalysisPrompt(verified, sample)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}
	return decodeAnalysis(rawText)
}

func buildAnalysisPrompt(v *metrics.Verified, sample []aggregate.Row) string {
	var b strings.Builder

	b.WriteString("As a senior financial analyst for a gas distribution company, analyze the following budget data.\n\n")
	b.WriteString("All figures below are already verified. Treat them as ground truth:\n")
	b.WriteString("do NOT recalculate, estimate, or correct any number.\n\n")

	b.WriteString("BUDGET OVERVIEW:\n")
	fmt.Fprintf(&b, "- Total Costs: %.2f\n", v.TotalCosts)
	fmt.Fprintf(&b, "- Retail Revenue: %.2f\n", v.RetailRevenue)
	fmt.Fprintf(&b, "- Wholesale Revenue: %.2f\n", v.WholesaleRevenue)
	fmt.Fprintf(&b, "- Cost Transaction Count: %d\n\n", v.TransactionCount)

	b.WriteString("COST BREAKDOWN BY BUDGET HOLDER:\n")
	for _, e := range v.HolderDistribution {
		fmt.Fprintf(&b, "  - %s: %.2f (%s)\n", e.Name, e.Amount, e.Percentage)
	}
	b.WriteString("\nCOST BREAKDOWN BY REGION:\n")
	for _, e := range v.RegionalDistribution {
		fmt.Fprintf(&b, "  - %s: %.2f (%s)\n", e.Name, e.Amount, e.Percentage)
	}

	if raw := rawTextContext(sample); raw != "" {
		b.WriteString("\nPDF CONTEXT: Some data was extracted from PDF files. ")
		b.WriteString("This may include additional context not captured in structured fields.\n")
		b.WriteString(raw)
	}

	b.WriteString("\nPlease provide:\n")
	b.WriteString("1. ANOMALIES: 3-5 most significant anomalies or unusual patterns with potential causes\n")
	b.WriteString("2. INSIGHTS: 3-5 key insights for executive management\n")
	b.WriteString("3. RECOMMENDATIONS: 3 actionable recommendations for cost optimization\n\n")

	b.WriteString("Return ONLY valid raw JSON with this structure, no Markdown, no code fences:\n")
	b.WriteString(`{"anomalies": string[], "insights": string[], "recommendations": string[]}` + "\n")

	return b.String()
}

// rawTextContext extracts unstructured text lines carried through from
// PDF-derived rows, capped so the prompt stays small.
func rawTextContext(sample []aggregate.Row) string {
	const maxLines = 20

	var lines []string
	for _, row := range sample {
		if text, ok := row.Extra["raw_text"]; ok && text != "" {
			lines = append(lines, "  "+text)
			if len(lines) == maxLines {
				break
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
