package ai

import "context"

// SubjectInput is one course line sent to the model.
type SubjectInput struct {
	Name       string  `json:"name"`
	Attendance float64 `json:"attendance"`
	Marks      float64 `json:"marks"`
}

// RiskInput contains the academic data a model needs to judge a student.
type RiskInput struct {
	Subjects []SubjectInput `json:"subjects"`
	FeesPaid bool           `json:"feesPaid"`
}

// RiskResult is the structured verdict returned by the model.
type RiskResult struct {
	RiskLevel string   `json:"riskLevel"`
	RiskScore float64  `json:"riskScore"`
	Factors   []string `json:"factors,omitempty"`
}

// Evaluator describes an AI model capable of estimating academic risk.
type Evaluator interface {
	EvaluateRisk(ctx context.Context, input RiskInput) (RiskResult, error)
}
