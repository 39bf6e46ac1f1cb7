package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/service"
)

const analyzeEndpoint = "/analyze"

// HTTPClient calls the external ML risk service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
}

type analyzeRequest struct {
	Subjects []models.Subject `json:"subjects"`
	FeesPaid bool             `json:"feesPaid"`
}

type analyzeResponse struct {
	RiskLevel          *string  `json:"riskLevel"`
	PredictedRiskScore *float64 `json:"predictedRiskScore"`
	RiskScore          *float64 `json:"riskScore"`
}

var _ service.RemoteScorer = (*HTTPClient)(nil)

// NewHTTPClient builds a client bounded by the given timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "ml_scorer").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/risk-alert-api/internal/scoring"),
	}
}

// Score posts the subjects to the ML service and returns its verdict unchanged.
// Every failure is reported wrapped in service.ErrUpstreamUnavailable.
func (c *HTTPClient) Score(ctx context.Context, subjects []models.Subject, feesPaid bool) (models.RiskAssessment, error) {
	ctx, span := c.tracer.Start(ctx, "scoring.remote", trace.WithAttributes(
		attribute.Int("scoring.subjects", len(subjects)),
	))
	defer span.End()

	assessment, err := c.score(ctx, subjects, feesPaid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remote scoring failed")
		return models.RiskAssessment{}, fmt.Errorf("%w: %v", service.ErrUpstreamUnavailable, err)
	}

	span.SetAttributes(attribute.String("scoring.risk_level", string(assessment.RiskLevel)))
	return assessment, nil
}

func (c *HTTPClient) score(ctx context.Context, subjects []models.Subject, feesPaid bool) (models.RiskAssessment, error) {
	body, err := json.Marshal(analyzeRequest{Subjects: subjects, FeesPaid: feesPaid})
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzeEndpoint, bytes.NewReader(body))
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("call scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.RiskAssessment{}, fmt.Errorf("scorer returned status %d: %s", resp.StatusCode, string(payload))
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("decode response: %w", err)
	}

	score := decoded.PredictedRiskScore
	if score == nil {
		score = decoded.RiskScore
	}
	if decoded.RiskLevel == nil || score == nil {
		return models.RiskAssessment{}, fmt.Errorf("scorer response missing riskLevel or risk score")
	}

	c.logger.Debug().Str("risk_level", *decoded.RiskLevel).Float64("risk_score", *score).Msg("remote risk assessment received")

	return models.RiskAssessment{
		RiskLevel: models.RiskLevel(*decoded.RiskLevel),
		RiskScore: *score,
	}, nil
}
