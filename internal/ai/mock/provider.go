// Package mock provides a canned ai.Analyzer for development and tests.
package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/ai"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger
	delay  time.Duration

	mu sync.Mutex

	// Configurable responses for testing
	Response *ai.MealAnalysis
	Error    error

	// Call tracking for testing
	Calls int
}

var _ ai.Analyzer = (*Provider)(nil)

// New creates a mock provider that answers after delay.
func New(delay time.Duration, logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
		delay:  delay,
	}
}

// AnalyzeMeal returns the configured response, or a canned Korean lunch.
func (p *Provider) AnalyzeMeal(ctx context.Context, params ai.AnalyzeMealParams) (*ai.MealAnalysis, error) {
	p.mu.Lock()
	p.Calls++
	resp, err := p.Response, p.Error
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}

	if err := ai.ValidateParams(params, 0); err != nil {
		return nil, ai.WrapError("analyze meal", err)
	}

	p.logger.Debug("mock meal analysis", "analysis_id", params.AnalysisID)
	return CannedMeal(), nil
}

// CannedMeal is the default mock answer.
func CannedMeal() *ai.MealAnalysis {
	g := func(v float64) domain.Nutrient { return domain.Nutrient{Value: v, Unit: "g"} }

	return &ai.MealAnalysis{
		MealName: "bibimbap with kimchi",
		Result: domain.AnalysisResult{
			Items: []domain.FoodItem{
				{
					FoodName:   "bibimbap",
					Confidence: 0.93,
					Quantity:   "1 bowl",
					Calories:   560,
					Nutrients: domain.Nutrients{
						Carbohydrates: g(85),
						Protein:       g(20),
						Fat:           g(15),
						Sodium:        &domain.Nutrient{Value: 980, Unit: "mg"},
					},
				},
				{
					FoodName:   "kimchi",
					Confidence: 0.88,
					Quantity:   "1 small dish",
					Calories:   25,
					Nutrients: domain.Nutrients{
						Carbohydrates: g(4),
						Protein:       g(1.5),
						Fat:           g(0.5),
						Sugars:        &domain.Nutrient{Value: 2, Unit: "g"},
					},
				},
			},
			Summary: domain.Summary{
				TotalCalories:      585,
				TotalCarbohydrates: g(89),
				TotalProtein:       g(21.5),
				TotalFat:           g(15.5),
			},
		},
		Usage: ai.UsageInfo{
			Model:    "mock-ai-v1",
			Duration: 250 * time.Millisecond,
		},
	}
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = 0
	p.Response = nil
	p.Error = nil
}
