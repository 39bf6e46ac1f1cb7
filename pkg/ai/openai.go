package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "risk",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of AI risk evaluation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of AI risk evaluation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}

	tracer := otel.Tracer("github.com/noah-isme/risk-alert-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIEvaluator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// EvaluateRisk asks the model for a risk verdict and parses its JSON reply.
func (e *OpenAIEvaluator) EvaluateRisk(parent context.Context, input RiskInput) (RiskResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.evaluate_risk", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.Int("subjects", len(input.Subjects)),
	))
	defer span.End()

	userPrompt, err := buildUserPrompt(input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RiskResult{}, err
	}

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: evaluatorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return RiskResult{}, e.fail(span, fmt.Errorf("openai evaluate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return RiskResult{}, e.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseRiskResponse(content)
	if err != nil {
		return RiskResult{}, e.fail(span, err)
	}

	e.logger.Debug().
		Str("model", e.cfg.Model).
		Str("risk_level", result.RiskLevel).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("openai risk evaluation completed")

	return result, nil
}

func (e *OpenAIEvaluator) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(e.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func evaluatorSystemPrompt() string {
	return "You assess the academic risk of a student. Respond with a JSON object containing riskLevel (one of Low, Medium, High), " +
		"riskScore (0-1) and an optional factors array. Attendance under 75 percent, marks under 60 and unpaid fees all raise risk."
}

func buildUserPrompt(input RiskInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode risk input: %w", err)
	}

	builder := strings.Builder{}
	builder.WriteString("# Student\n")
	builder.Write(payload)
	builder.WriteString("\nReturn JSON.")
	return builder.String(), nil
}

func parseRiskResponse(content string) (RiskResult, error) {
	type payload struct {
		RiskLevel string   `json:"riskLevel"`
		RiskScore *float64 `json:"riskScore"`
		Factors   []string `json:"factors"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return RiskResult{}, fmt.Errorf("parse risk json: %w", err)
	}

	switch data.RiskLevel {
	case "Low", "Medium", "High":
	default:
		return RiskResult{}, fmt.Errorf("unexpected risk level %q", data.RiskLevel)
	}
	if data.RiskScore == nil {
		return RiskResult{}, fmt.Errorf("risk score missing from response")
	}

	score := *data.RiskScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return RiskResult{
		RiskLevel: data.RiskLevel,
		RiskScore: score,
		Factors:   data.Factors,
	}, nil
}
