package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

// modelOutput is the JSON object requested by MealPrompt.
type modelOutput struct {
	MealName string            `json:"mealName"`
	Items    []domain.FoodItem `json:"items"`
	Summary  *domain.Summary   `json:"summary"`
	Error    string            `json:"error"`
}

// ParseModelOutput decodes a model's text answer. Markdown code fences
// around the JSON are tolerated.
func ParseModelOutput(text string) (*MealAnalysis, error) {
	text = stripFences(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", EAIMalformed)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", EAIMalformed, err)
	}

	if out.Error != "" {
		if strings.Contains(strings.ToLower(out.Error), "no food") {
			return nil, EAINoFood
		}
		return nil, fmt.Errorf("%w: model reported %q", EAIMalformed, out.Error)
	}
	if out.Summary == nil {
		return nil, fmt.Errorf("%w: summary is missing", EAIMalformed)
	}

	items := out.Items
	if items == nil {
		items = []domain.FoodItem{}
	}
	for i := range items {
		items[i].Confidence = clamp01(items[i].Confidence)
	}

	result := domain.AnalysisResult{Items: items, Summary: *out.Summary}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", EAIMalformed, err)
	}

	return &MealAnalysis{MealName: strings.TrimSpace(out.MealName), Result: result}, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// clamp01 keeps model confidences in range; some models answer in percent.
func clamp01(v float64) float64 {
	if v > 1 && v <= 100 {
		v /= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
