// Package domain contains core business types and interfaces.
//
// This file defines plans and the usage quota attached to them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultFreeTierLimit is the number of completed analyses a free profile may
// consume before admission is denied.
const DefaultFreeTierLimit = 5

// QuotaType identifies the type of quota being checked.
type QuotaType string

const (
	QuotaTypeAnalysis QuotaType = "analysis"
)

// Plan is the subscription plan of a profile.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// String returns the string representation of the plan.
func (p Plan) String() string {
	return string(p)
}

// IsValid returns true if the plan is a recognized value.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPremium:
		return true
	}
	return false
}

// IsMetered reports whether usage on this plan counts against a limit.
// Unknown plans are metered like the free plan.
func (p Plan) IsMetered() bool {
	return p != PlanPremium
}

// Profile is the usage profile owned by the identity/payments collaborators.
// This service reads it for admission and advances UsageCount on completion.
type Profile struct {
	ID         uuid.UUID
	Plan       Plan
	UsageCount int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// QuotaUsage represents current usage against the plan limit.
type QuotaUsage struct {
	Plan        Plan  `json:"plan"`
	Used        int64 `json:"usageCount"`
	Limit       int64 `json:"limit"`
	Remaining   int64 `json:"remaining"`
	IsUnlimited bool  `json:"unlimited"`
}

// NewQuotaUsage computes usage figures for a profile under the given limit.
func NewQuotaUsage(p Profile, limit int64) QuotaUsage {
	if !p.Plan.IsMetered() {
		return QuotaUsage{Plan: p.Plan, Used: p.UsageCount, IsUnlimited: true}
	}
	remaining := limit - p.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return QuotaUsage{
		Plan:      p.Plan,
		Used:      p.UsageCount,
		Limit:     limit,
		Remaining: remaining,
	}
}

// Exhausted reports whether no further analysis may be admitted.
func (u QuotaUsage) Exhausted() bool {
	return !u.IsUnlimited && u.Used >= u.Limit
}
