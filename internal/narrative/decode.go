package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// decodeAnalysis parses a model response into an Analysis. Models
// routinely wrap JSON in Markdown fences or emit slightly broken JSON,
// so the pipeline is: strip fences, strict parse, then a repair pass
// before giving up.
func decodeAnalysis(raw string) (*Analysis, error) {
	clean := stripFences(raw)
	if clean == "" {
		return nil, fmt.Errorf("decode analysis: empty model response")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(clean), &a); err == nil {
		return &a, nil
	}

	repaired, err := jsonrepair.RepairJSON(clean)
	if err != nil {
		return nil, fmt.Errorf("decode analysis: repair failed: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &a); err != nil {
		return nil, fmt.Errorf("decode analysis: unmarshal after repair: %w", err)
	}
	return &a, nil
}

// stripFences removes ```json ... ``` wrappers and keeps only the
// outermost JSON object when the model adds prose around it.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
