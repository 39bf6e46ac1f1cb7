package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/repository"
)

// ErrStudentNotFound indicates the academic record does not exist.
var ErrStudentNotFound = errors.New("student not found")

// StudentService exposes read, edit and rescoring operations on academic records.
type StudentService interface {
	GetMine(ctx context.Context, userID uint) (dto.StudentResponse, error)
	List(ctx context.Context) ([]dto.StudentResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	Update(ctx context.Context, id uint, req dto.StudentUpdateRequest) (dto.StudentResponse, error)
	Analyze(ctx context.Context, id uint) (dto.AnalysisResponse, error)
	ListHighRisk(ctx context.Context) (dto.HighRiskResponse, error)
}

type studentService struct {
	records   repository.AcademicRecordRepository
	remote    RemoteScorer
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewStudentService constructs the student service. remote may be nil.
func NewStudentService(records repository.AcademicRecordRepository, remote RemoteScorer, validate *validator.Validate, logger zerolog.Logger) StudentService {
	if validate == nil {
		validate = validator.New()
	}
	return &studentService{
		records:   records,
		remote:    remote,
		validator: validate,
		logger:    logger.With().Str("component", "student_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/risk-alert-api/internal/service/student"),
	}
}

func (s *studentService) GetMine(ctx context.Context, userID uint) (dto.StudentResponse, error) {
	record, err := s.records.GetByUserID(ctx, userID)
	if err != nil {
		return dto.StudentResponse{}, mapRecordError(err)
	}
	return dto.NewStudentResponse(record), nil
}

func (s *studentService) List(ctx context.Context) ([]dto.StudentResponse, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewStudentResponseSlice(records), nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, mapRecordError(err)
	}
	return dto.NewStudentResponse(record), nil
}

// Update replaces subjects and fee status. The cached risk is left as is until
// the next upload or analysis.
func (s *studentService) Update(ctx context.Context, id uint, req dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, mapRecordError(err)
	}

	subjects := make([]models.Subject, len(req.Subjects))
	copy(subjects, req.Subjects)
	for i := range subjects {
		subjects[i].Name = sanitizeRosterText(subjects[i].Name)
	}

	record.Subjects = subjects
	record.FeesPaid = *req.FeesPaid
	if err := s.records.Save(ctx, &record); err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Uint("record_id", record.ID).Int("subjects", len(subjects)).Msg("academic record updated")
	return dto.NewStudentResponse(record), nil
}

// Analyze rescores one record, preferring the remote scorer, and stores the result.
func (s *studentService) Analyze(ctx context.Context, id uint) (dto.AnalysisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "student.analyze", trace.WithAttributes(attribute.Int("student.id", int(id))))
	defer span.End()

	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return dto.AnalysisResponse{}, mapRecordError(err)
	}

	assessment, source, err := ScoreWithFallback(ctx, s.remote, record.Subjects, record.FeesPaid, s.logger)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	record.ApplyAssessment(assessment)
	if err := s.records.Save(ctx, &record); err != nil {
		return dto.AnalysisResponse{}, err
	}

	span.SetAttributes(
		attribute.String("risk.level", string(assessment.RiskLevel)),
		attribute.String("risk.source", string(source)),
	)

	return dto.AnalysisResponse{Student: dto.NewStudentResponse(record), Source: string(source)}, nil
}

func (s *studentService) ListHighRisk(ctx context.Context) (dto.HighRiskResponse, error) {
	records, err := s.records.ListByRiskLevel(ctx, models.RiskLevelHigh)
	if err != nil {
		return dto.HighRiskResponse{}, err
	}
	return dto.NewHighRiskResponse(records), nil
}

func mapRecordError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrStudentNotFound
	}
	return err
}
