package service

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// ErrDispatcherUnavailable indicates dispatch was invoked without persistence or mail transport.
var ErrDispatcherUnavailable = errors.New("alert dispatcher is not configured")

// AlertDispatcher fans alerts out to high-risk students and every mentor.
type AlertDispatcher interface {
	Dispatch(ctx context.Context) (dto.DispatchResult, error)
}

type alertDispatcher struct {
	records   repository.AcademicRecordRepository
	users     repository.UserRepository
	composer  *AlertComposer
	transport MailTransport
	events    AlertEventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAlertDispatcher constructs the dispatcher. events may be nil.
func NewAlertDispatcher(records repository.AcademicRecordRepository, users repository.UserRepository, composer *AlertComposer, transport MailTransport, events AlertEventPublisher, logger zerolog.Logger) AlertDispatcher {
	return &alertDispatcher{
		records:   records,
		users:     users,
		composer:  composer,
		transport: transport,
		events:    events,
		logger:    logger.With().Str("component", "alert_dispatcher").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/risk-alert-api/internal/service/alert_dispatcher"),
	}
}

// Dispatch mails every High-risk student, then sends one summary to each mentor.
// Send failures are reported in the result; only lookup failures are returned as errors.
// Once started the fan-out runs to completion even if ctx is cancelled.
func (d *alertDispatcher) Dispatch(ctx context.Context) (dto.DispatchResult, error) {
	if d.records == nil || d.users == nil || d.composer == nil || d.transport == nil {
		return dto.DispatchResult{}, ErrDispatcherUnavailable
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := d.tracer.Start(ctx, "alerts.dispatch")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.DispatchDuration().Observe(time.Since(start).Seconds())
	}()

	students, err := d.records.ListByRiskLevel(ctx, models.RiskLevelHigh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load high-risk students failed")
		return dto.DispatchResult{}, fmt.Errorf("load high-risk students: %w", err)
	}

	result := dto.DispatchResult{HighRiskCount: len(students)}
	if len(students) == 0 {
		d.logger.Info().Msg("no high-risk students, skipping alert dispatch")
		span.SetStatus(codes.Ok, "nothing to send")
		return result, nil
	}

	mentors, err := d.users.ListByRole(ctx, models.RoleMentor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load mentors failed")
		return dto.DispatchResult{}, fmt.Errorf("load mentors: %w", err)
	}

	for _, record := range students {
		if err := d.sendStudentAlert(ctx, record); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to send email to %s: %v", record.User.Name, err))
			observability.AlertEmails().WithLabelValues("student", "failed").Inc()
			d.logger.Warn().Err(err).Uint("record_id", record.ID).Msg("student alert failed")
			continue
		}
		result.StudentEmailsSent++
		observability.AlertEmails().WithLabelValues("student", "sent").Inc()
	}

	summary, err := d.composer.ComposeMentorSummary(students)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to compose mentor summary: %v", err))
		d.logger.Error().Err(err).Msg("mentor summary rendering failed")
	} else {
		for _, mentor := range mentors {
			if err := d.transport.Send(ctx, mentor.Email, summary.Subject, summary.Text, summary.HTML); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to send email to mentor %s: %v", mentor.Name, err))
				observability.AlertEmails().WithLabelValues("mentor", "failed").Inc()
				d.logger.Warn().Err(err).Uint("mentor_id", mentor.ID).Msg("mentor summary failed")
				continue
			}
			result.MentorEmailsSent++
			observability.AlertEmails().WithLabelValues("mentor", "sent").Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("alerts.high_risk", result.HighRiskCount),
		attribute.Int("alerts.student_sent", result.StudentEmailsSent),
		attribute.Int("alerts.mentor_sent", result.MentorEmailsSent),
		attribute.Int("alerts.failures", len(result.Errors)),
	)

	if d.events != nil {
		if err := d.events.PublishDispatch(ctx, result); err != nil {
			d.logger.Warn().Err(err).Msg("failed to publish dispatch event")
		}
	}

	d.logger.Info().
		Int("high_risk", result.HighRiskCount).
		Int("student_emails", result.StudentEmailsSent).
		Int("mentor_emails", result.MentorEmailsSent).
		Int("failures", len(result.Errors)).
		Msg("alert dispatch completed")

	return result, nil
}

func (d *alertDispatcher) sendStudentAlert(ctx context.Context, record models.AcademicRecord) error {
	content, err := d.composer.ComposeStudentAlert(record, record.User)
	if err != nil {
		return err
	}
	return d.transport.Send(ctx, record.User.Email, content.Subject, content.Text, content.HTML)
}
