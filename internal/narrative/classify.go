package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/nyxcore884/budgetlens/internal/aggregate"
	"github.com/nyxcore884/budgetlens/internal/metrics"
)

// Revenue classes.
const (
	ClassRetail    = "retail"
	ClassWholesale = "wholesale"
)

// RevenueClassifier decides whether one revenue entry's counterparty is
// a retail or wholesale customer.
type RevenueClassifier interface {
	Classify(ctx context.Context, counterparty string) (string, error)
}

// SplitRevenue walks the retained rows and divides positive amounts
// into retail and wholesale revenue. The classification stage is
// advisory: an empty counterparty or a classifier error defaults the
// row to retail, and a nil classifier sends everything to retail. The
// resulting split always sums to total revenue.
func SplitRevenue(ctx context.Context, classifier RevenueClassifier, rows []aggregate.Row, log zerolog.Logger) metrics.RevenueSplit {
	var split metrics.RevenueSplit
	for _, row := range rows {
		if row.Amount <= 0 {
			continue
		}
		if classifier == nil || row.Counterparty == "" {
			split.Retail += row.Amount
			continue
		}

		class, err := classifier.Classify(ctx, row.Counterparty)
		if err != nil {
			log.Warn().Err(err).Str("counterparty", row.Counterparty).
				Msg("Revenue classification failed, defaulting to retail")
			split.Retail += row.Amount
			continue
		}
		if class == ClassWholesale {
			split.Wholesale += row.Amount
		} else {
			split.Retail += row.Amount
		}
	}
	return split
}

// KeywordClassifier matches the counterparty against comma-separated
// keyword lists. An explicit retail match wins over a wholesale one;
// no match at all means retail.
type KeywordClassifier struct {
	retail    []string
	wholesale []string
}

// NewKeywordClassifier splits and lowercases the keyword lists.
func NewKeywordClassifier(retailTerms, wholesaleTerms string) *KeywordClassifier {
	return &KeywordClassifier{
		retail:    splitTerms(retailTerms),
		wholesale: splitTerms(wholesaleTerms),
	}
}

func splitTerms(s string) []string {
	var out []string
	for _, term := range strings.Split(s, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

// Classify implements RevenueClassifier. It never fails.
func (k *KeywordClassifier) Classify(_ context.Context, counterparty string) (string, error) {
	lower := strings.ToLower(counterparty)
	for _, term := range k.retail {
		if strings.Contains(lower, term) {
			return ClassRetail, nil
		}
	}
	for _, term := range k.wholesale {
		if strings.Contains(lower, term) {
			return ClassWholesale, nil
		}
	}
	return ClassRetail, nil
}

// GeminiClassifier asks the model to classify one counterparty. It is
// the slower, smarter alternative to KeywordClassifier.
type GeminiClassifier struct {
	client         *genai.Client
	model          string
	retailTerms    string
	wholesaleTerms string
}

// NewGeminiClassifier creates the classifier sharing the narrative
// generator's client configuration.
func NewGeminiClassifier(ctx context.Context, model, retailTerms, wholesaleTerms string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClassifier{
		client:         client,
		model:          model,
		retailTerms:    retailTerms,
		wholesaleTerms: wholesaleTerms,
	}, nil
}

// Classify implements RevenueClassifier.
func (g *GeminiClassifier) Classify(ctx context.Context, counterparty string) (string, error) {
	prompt := fmt.Sprintf(
		"Classify this revenue entry's counterparty as retail or wholesale.\n\n"+
			"Counterparty: %q\n"+
			"Retail indicators: %s\n"+
			"Wholesale indicators: %s\n\n"+
			"Answer with exactly one word: retail or wholesale.\n",
		counterparty, g.retailTerms, g.wholesaleTerms)

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("classify revenue: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Text()))
	if strings.Contains(answer, ClassWholesale) {
		return ClassWholesale, nil
	}
	return ClassRetail, nil
}
