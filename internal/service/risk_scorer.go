package service

import (
	"errors"

	"github.com/noah-isme/risk-alert-api/internal/models"
)

// ErrInvalidInput indicates scoring was attempted without any subjects.
var ErrInvalidInput = errors.New("invalid input: at least one subject is required")

// Penalties are kept in tenths so sums and threshold comparisons stay exact.
const (
	attendancePenaltyTenths = 3
	marksPenaltyTenths      = 3
	feesPenaltyTenths       = 2
	highThresholdTenths     = 6
	mediumThresholdTenths   = 3
)

// ComputeRisk applies the deterministic rule-based scoring to a subject list.
func ComputeRisk(subjects []models.Subject, feesPaid bool) (models.RiskAssessment, error) {
	if len(subjects) == 0 {
		return models.RiskAssessment{}, ErrInvalidInput
	}

	attendance, marks := models.Averages(subjects)

	tenths := 0
	if attendance < models.AttendanceThreshold {
		tenths += attendancePenaltyTenths
	}
	if marks < models.MarksThreshold {
		tenths += marksPenaltyTenths
	}
	if !feesPaid {
		tenths += feesPenaltyTenths
	}

	return models.RiskAssessment{
		RiskLevel: classifyTenths(tenths),
		RiskScore: float64(tenths) / 10,
	}, nil
}

// strict comparisons: a score sitting on a threshold falls to the lower tier
func classifyTenths(tenths int) models.RiskLevel {
	switch {
	case tenths > highThresholdTenths:
		return models.RiskLevelHigh
	case tenths > mediumThresholdTenths:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}
