package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/roster"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadMissing indicates the request carried no file.
	ErrUploadMissing = errors.New("roster file is required")
	// ErrUnsupportedRoster indicates the file is neither CSV nor XLSX.
	ErrUnsupportedRoster = roster.ErrUnsupportedRoster
	// ErrEmptyRoster indicates the file carried no header row.
	ErrEmptyRoster = roster.ErrEmptyRoster
	// ErrMalformedRoster indicates the file could not be read as its detected format.
	ErrMalformedRoster = roster.ErrMalformedRoster
)

// FileStorage archives uploaded rosters.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// RosterUploadService handles roster uploads end to end.
type RosterUploadService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, requestKey string) (dto.UploadResponse, error)
}

type rosterUploadService struct {
	ingest        IngestService
	storage       FileStorage
	deferred      DeferredDispatcher
	dispatchDelay time.Duration
	logger        zerolog.Logger
	maxSize       int64
	tracer        trace.Tracer
}

// NewRosterUploadService constructs the upload pipeline. storage and deferred may be nil.
func NewRosterUploadService(ingest IngestService, storage FileStorage, deferred DeferredDispatcher, dispatchDelay time.Duration, maxSizeMB int, logger zerolog.Logger) RosterUploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &rosterUploadService{
		ingest:        ingest,
		storage:       storage,
		deferred:      deferred,
		dispatchDelay: dispatchDelay,
		logger:        logger.With().Str("component", "upload_service").Logger(),
		maxSize:       int64(maxSizeMB) * 1024 * 1024,
		tracer:        otel.Tracer("github.com/noah-isme/risk-alert-api/internal/service/upload"),
	}
}

// Upload parses the roster, ingests it and, when any student was stored,
// schedules an alert dispatch keyed by requestKey.
func (s *rosterUploadService) Upload(ctx context.Context, file *multipart.FileHeader, requestKey string) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.roster")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, ErrUploadMissing
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	rows, format, err := roster.Parse(buf.Bytes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return dto.UploadResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.format", string(format)),
		attribute.Int("upload.rows", len(rows)),
	)

	response := dto.UploadResponse{}
	if s.storage != nil {
		url, err := s.storage.Upload(ctx, sanitizeFileName(file.Filename, string(format)), bytes.NewReader(buf.Bytes()))
		if err != nil {
			s.logger.Warn().Err(err).Msg("roster archive failed")
		} else {
			response.ArchiveURL = url
		}
	}

	result, err := s.ingest.IngestBatch(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return dto.UploadResponse{}, err
	}
	response.IngestResult = result

	if s.deferred != nil && anySucceeded(result) {
		if requestKey == "" {
			requestKey = uuid.NewString()
		}
		response.DispatchScheduled = s.deferred.After(s.dispatchDelay, requestKey)
	}

	span.SetStatus(codes.Ok, "ingested")
	return response, nil
}

func anySucceeded(result dto.IngestResult) bool {
	for _, outcome := range result.Processed {
		if outcome.Success {
			return true
		}
	}
	return false
}

func sanitizeFileName(name, format string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("roster-%d", time.Now().Unix())
	}
	return base + "." + format
}
