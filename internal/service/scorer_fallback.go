package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/observability"
)

// ErrUpstreamUnavailable indicates the remote scorer could not produce a usable result.
var ErrUpstreamUnavailable = errors.New("remote risk scorer unavailable")

// RemoteScorer is an optional external risk model.
type RemoteScorer interface {
	Score(ctx context.Context, subjects []models.Subject, feesPaid bool) (models.RiskAssessment, error)
}

// ScoreSource names the scorer that produced an assessment.
type ScoreSource string

// Possible assessment sources.
const (
	ScoreSourceRemote        ScoreSource = "remote"
	ScoreSourceDeterministic ScoreSource = "deterministic"
)

// ScoreWithFallback asks the remote scorer first and degrades to ComputeRisk on any failure.
// Exactly one of the two produces the returned assessment. The only error returned is
// ErrInvalidInput, raised before either scorer runs.
func ScoreWithFallback(ctx context.Context, remote RemoteScorer, subjects []models.Subject, feesPaid bool, logger zerolog.Logger) (models.RiskAssessment, ScoreSource, error) {
	if len(subjects) == 0 {
		return models.RiskAssessment{}, "", ErrInvalidInput
	}

	if remote != nil {
		assessment, err := remote.Score(ctx, subjects, feesPaid)
		if err == nil {
			observability.ScorerRequests().WithLabelValues(string(ScoreSourceRemote)).Inc()
			return assessment, ScoreSourceRemote, nil
		}
		logger.Warn().Err(err).Msg("remote scorer unavailable, using deterministic scoring")
	}

	assessment, err := ComputeRisk(subjects, feesPaid)
	if err != nil {
		return models.RiskAssessment{}, "", err
	}

	observability.ScorerRequests().WithLabelValues(string(ScoreSourceDeterministic)).Inc()
	return assessment, ScoreSourceDeterministic, nil
}
