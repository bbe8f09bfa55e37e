// Package domain contains core business types and interfaces.
//
// This file defines the meal analysis job and the result payload reported
// by the external analyzer.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Analysis Status
// =============================================================================

// AnalysisStatus represents the lifecycle state of an analysis job.
type AnalysisStatus string

const (
	// AnalysisStatusProcessing indicates the image was accepted and dispatched
	// (or is queued for dispatch) and no callback has finalized it yet.
	AnalysisStatusProcessing AnalysisStatus = "processing"

	// AnalysisStatusComplete indicates the analyzer reported a result.
	AnalysisStatusComplete AnalysisStatus = "complete"

	// AnalysisStatusFailed indicates the analyzer reported a failure, or
	// dispatch failed for good with failure marking enabled.
	AnalysisStatusFailed AnalysisStatus = "failed"
)

// String returns the string representation of the status.
func (s AnalysisStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s AnalysisStatus) IsValid() bool {
	switch s {
	case AnalysisStatusProcessing, AnalysisStatusComplete, AnalysisStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that admit no further transition.
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusComplete || s == AnalysisStatusFailed
}

// Failure reasons recorded on failed analyses.
const (
	FailureReasonDispatch = "dispatch_failed"
	FailureReasonAnalyzer = "analyzer_failed"
)

// =============================================================================
// Analysis Domain Type
// =============================================================================

// Analysis is one submitted-image-to-result unit of work.
type Analysis struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	Status        AnalysisStatus  `json:"status"`
	Result        *AnalysisResult `json:"result,omitempty"`
	MealName      string          `json:"mealName,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	ImageKey      string          `json:"-"`
	ContentType   string          `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// IsOwnedBy reports whether the analysis belongs to userID.
func (a *Analysis) IsOwnedBy(userID uuid.UUID) bool {
	return a.UserID == userID
}

// =============================================================================
// Analyzer Result Payload
// =============================================================================

// Nutrient is a measured quantity with its unit, e.g. {12.5, "g"}.
type Nutrient struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Nutrients holds the per-item nutrient breakdown.
type Nutrients struct {
	Carbohydrates Nutrient  `json:"carbohydrates"`
	Protein       Nutrient  `json:"protein"`
	Fat           Nutrient  `json:"fat"`
	Sugars        *Nutrient `json:"sugars,omitempty"`
	Sodium        *Nutrient `json:"sodium,omitempty"`
}

// FoodItem is one food detected in the image.
type FoodItem struct {
	FoodName   string    `json:"foodName"`
	Confidence float64   `json:"confidence"`
	Quantity   string    `json:"quantity"`
	Calories   float64   `json:"calories"`
	Nutrients  Nutrients `json:"nutrients"`
}

// Summary holds meal totals as computed by the analyzer. It is authoritative
// and is not reconciled against the item sum.
type Summary struct {
	TotalCalories      float64  `json:"totalCalories"`
	TotalCarbohydrates Nutrient `json:"totalCarbohydrates"`
	TotalProtein       Nutrient `json:"totalProtein"`
	TotalFat           Nutrient `json:"totalFat"`
}

// AnalysisResult is the structured payload attached to a complete analysis.
// Items keep the analyzer's detection order.
type AnalysisResult struct {
	Items   []FoodItem `json:"items"`
	Summary Summary    `json:"summary"`
}

// Validate checks the structural requirements of an analyzer result.
func (r *AnalysisResult) Validate() error {
	const op = "analysis.validate_result"

	if r == nil {
		return Invalid(op, "result is required")
	}
	if r.Summary.TotalCalories < 0 {
		return Invalid(op, "summary.totalCalories must not be negative")
	}
	if field := missingNutrient("summary.", map[string]Nutrient{
		"totalCarbohydrates": r.Summary.TotalCarbohydrates,
		"totalProtein":       r.Summary.TotalProtein,
		"totalFat":           r.Summary.TotalFat,
	}); field != "" {
		return Invalid(op, field+" requires a value and unit")
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.FoodName) == "" {
			return Invalid(op, fmt.Sprintf("items[%d].foodName is required", i))
		}
		if item.Confidence < 0 || item.Confidence > 1 {
			return Invalid(op, fmt.Sprintf("items[%d].confidence must be between 0 and 1", i))
		}
		if field := missingNutrient(fmt.Sprintf("items[%d].nutrients.", i), map[string]Nutrient{
			"carbohydrates": item.Nutrients.Carbohydrates,
			"protein":       item.Nutrients.Protein,
			"fat":           item.Nutrients.Fat,
		}); field != "" {
			return Invalid(op, field+" requires a value and unit")
		}
	}
	return nil
}

// missingNutrient returns the first absent or negative nutrient, in name
// order so the message is stable. An absent nutrient decodes with an empty unit.
func missingNutrient(prefix string, nutrients map[string]Nutrient) string {
	names := make([]string, 0, len(nutrients))
	for name := range nutrients {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := nutrients[name]
		if strings.TrimSpace(n.Unit) == "" || n.Value < 0 {
			return prefix + name
		}
	}
	return ""
}

// =============================================================================
// Service Parameters
// =============================================================================

// SubmitAnalysisParams contains the inputs for a new analysis submission.
type SubmitAnalysisParams struct {
	UserID      uuid.UUID // Owner (from auth context)
	Image       []byte    // Raw uploaded bytes
	Filename    string    // Original filename, informational
	ContentType string    // Declared MIME type, may be empty
}

// CallbackParams is the analyzer's report for one analysis.
type CallbackParams struct {
	AnalysisID uuid.UUID
	UserID     *uuid.UUID      // Optional owner echo from the analyzer
	Result     *AnalysisResult // Present on success
	MealName   string
	Failed     bool   // Analyzer reported failure
	FailureMsg string // Analyzer-provided failure description
}

// CallbackOutcome describes what an accepted callback did.
type CallbackOutcome struct {
	Analysis         *Analysis
	AlreadyFinalized bool // The analysis was terminal before this callback
	UsageIncremented bool
}

// DailySummary aggregates completed meals for one UTC day.
type DailySummary struct {
	Date               string     `json:"date"`
	Meals              []Analysis `json:"meals"`
	TotalCalories      float64    `json:"totalCalories"`
	TotalCarbohydrates float64    `json:"totalCarbohydrates"`
	TotalProtein       float64    `json:"totalProtein"`
	TotalFat           float64    `json:"totalFat"`
}

// NewDailySummary sums the totals of the complete analyses in meals.
func NewDailySummary(day time.Time, meals []Analysis) DailySummary {
	s := DailySummary{Date: day.UTC().Format("2006-01-02"), Meals: make([]Analysis, 0, len(meals))}
	for _, m := range meals {
		if m.Status != AnalysisStatusComplete || m.Result == nil {
			continue
		}
		s.Meals = append(s.Meals, m)
		s.TotalCalories += m.Result.Summary.TotalCalories
		s.TotalCarbohydrates += m.Result.Summary.TotalCarbohydrates.Value
		s.TotalProtein += m.Result.Summary.TotalProtein.Value
		s.TotalFat += m.Result.Summary.TotalFat.Value
	}
	return s
}
