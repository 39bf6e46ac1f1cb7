package scoring

import (
	"context"
	"fmt"

	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/service"
	"github.com/noah-isme/risk-alert-api/pkg/ai"
)

// EvaluatorScorer adapts an ai.Evaluator to the remote scorer contract.
type EvaluatorScorer struct {
	evaluator ai.Evaluator
}

var _ service.RemoteScorer = (*EvaluatorScorer)(nil)

// NewEvaluatorScorer wraps the given evaluator.
func NewEvaluatorScorer(evaluator ai.Evaluator) *EvaluatorScorer {
	return &EvaluatorScorer{evaluator: evaluator}
}

// Score forwards the subjects to the model. Failures wrap service.ErrUpstreamUnavailable.
func (s *EvaluatorScorer) Score(ctx context.Context, subjects []models.Subject, feesPaid bool) (models.RiskAssessment, error) {
	input := ai.RiskInput{
		Subjects: make([]ai.SubjectInput, 0, len(subjects)),
		FeesPaid: feesPaid,
	}
	for _, subject := range subjects {
		input.Subjects = append(input.Subjects, ai.SubjectInput{
			Name:       subject.Name,
			Attendance: subject.Attendance,
			Marks:      subject.Marks,
		})
	}

	result, err := s.evaluator.EvaluateRisk(ctx, input)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: %v", service.ErrUpstreamUnavailable, err)
	}

	level := models.RiskLevel(result.RiskLevel)
	if !level.Valid() {
		return models.RiskAssessment{}, fmt.Errorf("%w: unexpected risk level %q", service.ErrUpstreamUnavailable, result.RiskLevel)
	}

	return models.RiskAssessment{RiskLevel: level, RiskScore: result.RiskScore}, nil
}
