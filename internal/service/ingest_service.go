package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/observability"
	"github.com/noah-isme/risk-alert-api/internal/repository"
)

// IngestService reconciles uploaded roster rows with stored identities and records.
type IngestService interface {
	IngestBatch(ctx context.Context, rows []dto.RawRosterRow) (dto.IngestResult, error)
}

type ingestService struct {
	users   repository.UserRepository
	records repository.AcademicRecordRepository
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewIngestService constructs the bulk ingest reconciler.
func NewIngestService(users repository.UserRepository, records repository.AcademicRecordRepository, logger zerolog.Logger) IngestService {
	return &ingestService{
		users:   users,
		records: records,
		logger:  logger.With().Str("component", "ingest_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/risk-alert-api/internal/service/ingest"),
	}
}

// IngestBatch applies every valid row. A failure for one student is reported in
// the result and never stops the others. Stored risk is recomputed with the
// deterministic scorer only.
func (s *ingestService) IngestBatch(ctx context.Context, rows []dto.RawRosterRow) (dto.IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.batch", trace.WithAttributes(
		attribute.Int("ingest.rows", len(rows)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context done")
		return dto.IngestResult{}, err
	}

	parsed := make([]dto.RosterRow, 0, len(rows))
	skipped := 0
	for _, raw := range rows {
		row, ok := ParseRosterRow(raw)
		if !ok {
			skipped++
			continue
		}
		parsed = append(parsed, row)
	}
	if skipped > 0 {
		observability.IngestStudents().WithLabelValues("skipped_rows").Add(float64(skipped))
	}

	groups := GroupRosterRows(parsed)
	result := dto.IngestResult{
		Processed: make([]dto.IngestOutcome, 0, len(groups)),
		Skipped:   skipped,
	}

	failures := 0
	for _, group := range groups {
		outcome := dto.IngestOutcome{Student: group.Name, Email: group.Email}

		level, err := s.ingestGroup(ctx, group)
		if err != nil {
			failures++
			outcome.Error = err.Error()
			observability.IngestStudents().WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).Str("email", maskEmailAddress(group.Email)).Msg("failed to ingest student")
		} else {
			outcome.Success = true
			outcome.RiskLevel = level
			observability.IngestStudents().WithLabelValues("success").Inc()
		}

		result.Processed = append(result.Processed, outcome)
	}

	span.SetAttributes(
		attribute.Int("ingest.students", len(groups)),
		attribute.Int("ingest.failures", failures),
		attribute.Int("ingest.skipped", skipped),
	)
	s.logger.Info().
		Int("students", len(groups)).
		Int("failures", failures).
		Int("skipped_rows", skipped).
		Msg("roster ingested")

	return result, nil
}

func (s *ingestService) ingestGroup(ctx context.Context, group dto.RosterGroup) (models.RiskLevel, error) {
	user, err := s.users.UpsertByEmail(ctx, group.Email, models.User{Name: group.Name, Role: models.RoleStudent})
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}

	record, err := s.records.UpsertForUser(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("upsert academic record: %w", err)
	}

	record.Subjects = group.Subjects
	record.FeesPaid = group.FeesPaid

	assessment, err := ComputeRisk(group.Subjects, group.FeesPaid)
	if err != nil {
		return "", err
	}
	record.ApplyAssessment(assessment)

	if err := s.records.Save(ctx, &record); err != nil {
		return "", fmt.Errorf("save academic record: %w", err)
	}

	return assessment.RiskLevel, nil
}
