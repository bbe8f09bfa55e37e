package service

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// repoAnalysisToDomain converts a repository Analysis to a domain Analysis.
// A stored result that no longer decodes is dropped rather than failing the read.
func repoAnalysisToDomain(ra repository.Analysis) *domain.Analysis {
	a := &domain.Analysis{
		ID:            ra.ID,
		UserID:        ra.UserID,
		Status:        domain.AnalysisStatus(ra.Status),
		MealName:      fromNullString(ra.MealName),
		FailureReason: fromNullString(ra.FailureReason),
		ImageKey:      ra.ImageKey,
		ContentType:   ra.ContentType,
		CreatedAt:     ra.CreatedAt,
		UpdatedAt:     ra.UpdatedAt,
	}
	if ra.CompletedAt.Valid {
		t := ra.CompletedAt.Time
		a.CompletedAt = &t
	}
	if ra.Result.Valid {
		var result domain.AnalysisResult
		if err := json.Unmarshal(ra.Result.RawMessage, &result); err == nil {
			a.Result = &result
		}
	}
	return a
}

// repoProfileToDomain converts a repository Profile to a domain Profile.
func repoProfileToDomain(rp repository.Profile) domain.Profile {
	return domain.Profile{
		ID:         rp.ID,
		Plan:       domain.Plan(rp.Plan),
		UsageCount: int64(rp.UsageCount),
		CreatedAt:  rp.CreatedAt,
		UpdatedAt:  rp.UpdatedAt,
	}
}

// completeParams builds the guarded completion update for a result.
func completeParams(p domain.CallbackParams) (repository.CompleteAnalysisParams, error) {
	raw, err := json.Marshal(p.Result)
	if err != nil {
		return repository.CompleteAnalysisParams{}, err
	}
	s := p.Result.Summary
	return repository.CompleteAnalysisParams{
		ID:                 p.AnalysisID,
		Result:             pqtype.NullRawMessage{RawMessage: raw, Valid: true},
		MealName:           toNullString(p.MealName),
		TotalCalories:      toNullFloat(s.TotalCalories),
		TotalCarbohydrates: toNullFloat(s.TotalCarbohydrates.Value),
		TotalProtein:       toNullFloat(s.TotalProtein.Value),
		TotalFat:           toNullFloat(s.TotalFat.Value),
	}, nil
}

// toNullString converts a string to sql.NullString.
func toNullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

// fromNullString converts sql.NullString to string.
func fromNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func toNullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}
