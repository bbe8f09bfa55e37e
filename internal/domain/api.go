// Package domain contains core business types and interfaces.
//
// This file defines the JSON bodies exchanged over the HTTP API, shared by
// the server handlers, the API client and the stand-in analyzer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmitAnalysisResponse is the 202 body of POST /api/analyses.
type SubmitAnalysisResponse struct {
	AnalysisID uuid.UUID      `json:"analysisId"`
	Status     AnalysisStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// CallbackPayload is the analyzer's report body. Ids stay strings so that
// absent and malformed values can be told apart.
type CallbackPayload struct {
	AnalysisID     string          `json:"analysisId"`
	UserID         string          `json:"userId,omitempty"`
	AnalysisResult *CallbackResult `json:"analysisResult,omitempty"`
	Summary        *Summary        `json:"summary,omitempty"`
	MealName       string          `json:"mealName,omitempty"`
	Success        *bool           `json:"success,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// CallbackResult is the analyzer's result object. Its summary may instead
// be sent at the top level of the payload.
type CallbackResult struct {
	Items   []FoodItem `json:"items"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Failed reports whether the analyzer declared the analysis failed.
func (p CallbackPayload) Failed() bool {
	return (p.Success != nil && !*p.Success) || p.Error != ""
}

// Result assembles the analysis result, preferring the top-level summary.
// It returns nil when there is no result object or no summary at all.
func (p CallbackPayload) Result() *AnalysisResult {
	if p.AnalysisResult == nil {
		return nil
	}
	summary := p.Summary
	if summary == nil {
		summary = p.AnalysisResult.Summary
	}
	if summary == nil {
		return nil
	}
	items := p.AnalysisResult.Items
	if items == nil {
		items = []FoodItem{}
	}
	return &AnalysisResult{Items: items, Summary: *summary}
}

// CallbackAck is the 200 body returned to the analyzer.
type CallbackAck struct {
	Success          bool           `json:"success"`
	AnalysisID       uuid.UUID      `json:"analysisId"`
	Status           AnalysisStatus `json:"status"`
	AlreadyFinalized bool           `json:"alreadyFinalized"`
}
