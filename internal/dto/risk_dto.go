package dto

import (
	"time"

	"github.com/noah-isme/risk-alert-api/internal/models"
)

// RawRosterRow is one untyped row from an uploaded roster, keyed by header name.
type RawRosterRow map[string]any

// RosterRow is a roster row that survived parsing and coercion. Attendance
// and marks are stored as uploaded, without a range check.
type RosterRow struct {
	Email      string `validate:"required"`
	Name       string `validate:"required"`
	Subject    string `validate:"required"`
	Attendance float64
	Marks      float64
	FeesPaid   bool
}

// RosterGroup collects every subject row uploaded for one student.
type RosterGroup struct {
	Email    string
	Name     string
	FeesPaid bool
	Subjects []models.Subject
}

// IngestOutcome reports what happened to one student during a bulk ingest.
type IngestOutcome struct {
	Student   string           `json:"student"`
	Email     string           `json:"email"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
	RiskLevel models.RiskLevel `json:"risk_level,omitempty"`
}

// IngestResult summarises a bulk ingest.
type IngestResult struct {
	Processed []IngestOutcome `json:"processed"`
	Skipped   int             `json:"skipped"`
}

// UploadResponse is returned by the roster upload endpoint.
type UploadResponse struct {
	IngestResult
	ArchiveURL        string `json:"archive_url,omitempty"`
	DispatchScheduled bool   `json:"dispatch_scheduled"`
}

// EmailContent is a rendered alert ready for the mail transport.
type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

// DispatchResult aggregates one alert fan-out.
type DispatchResult struct {
	StudentEmailsSent int      `json:"student_emails_sent"`
	MentorEmailsSent  int      `json:"mentor_emails_sent"`
	HighRiskCount     int      `json:"high_risk_count"`
	Errors            []string `json:"errors,omitempty"`
}

// SchedulerStatus describes the recurring alert trigger.
type SchedulerStatus struct {
	Active      bool       `json:"is_active"`
	Schedule    string     `json:"schedule,omitempty"`
	Description string     `json:"description"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// ScheduleRequest toggles the recurring alert trigger.
type ScheduleRequest struct {
	Enabled  *bool  `json:"enabled"`
	Schedule string `json:"schedule"`
}

// StudentUpdateRequest replaces a student's subjects and fee status.
type StudentUpdateRequest struct {
	Subjects []models.Subject `json:"subjects" validate:"required,min=1,dive"`
	FeesPaid *bool            `json:"fees_paid" validate:"required"`
}

// StudentResponse is the public view of an academic record.
type StudentResponse struct {
	ID                uint             `json:"id"`
	UserID            uint             `json:"user_id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Subjects          []models.Subject `json:"subjects"`
	FeesPaid          bool             `json:"fees_paid"`
	RiskLevel         models.RiskLevel `json:"risk_level"`
	RiskScore         float64          `json:"predicted_risk_score"`
	AverageAttendance float64          `json:"average_attendance"`
	AverageMarks      float64          `json:"average_marks"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// HighRiskStudent is one entry of the high-risk listing.
type HighRiskStudent struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	RiskScore   float64          `json:"risk_score"`
	Subjects    []models.Subject `json:"subjects"`
	FeesPaid    bool             `json:"fees_paid"`
	LastUpdated time.Time        `json:"last_updated"`
}

// HighRiskResponse lists every record currently classified High.
type HighRiskResponse struct {
	Count    int               `json:"count"`
	Students []HighRiskStudent `json:"students"`
}

// NewStudentResponse maps a record (with its user preloaded) to the API view.
func NewStudentResponse(record models.AcademicRecord) StudentResponse {
	subjects := make([]models.Subject, len(record.Subjects))
	copy(subjects, record.Subjects)

	return StudentResponse{
		ID:                record.ID,
		UserID:            record.UserID,
		Name:              record.User.Name,
		Email:             record.User.Email,
		Subjects:          subjects,
		FeesPaid:          record.FeesPaid,
		RiskLevel:         record.RiskLevel,
		RiskScore:         record.RiskScore,
		AverageAttendance: record.AverageAttendance(),
		AverageMarks:      record.AverageMarks(),
		UpdatedAt:         record.UpdatedAt,
	}
}

// NewStudentResponseSlice maps records in order.
func NewStudentResponseSlice(records []models.AcademicRecord) []StudentResponse {
	result := make([]StudentResponse, 0, len(records))
	for _, record := range records {
		result = append(result, NewStudentResponse(record))
	}
	return result
}

// NewHighRiskResponse builds the high-risk listing payload.
func NewHighRiskResponse(records []models.AcademicRecord) HighRiskResponse {
	students := make([]HighRiskStudent, 0, len(records))
	for _, record := range records {
		subjects := make([]models.Subject, len(record.Subjects))
		copy(subjects, record.Subjects)
		students = append(students, HighRiskStudent{
			ID:          record.ID,
			Name:        record.User.Name,
			Email:       record.User.Email,
			RiskScore:   record.RiskScore,
			Subjects:    subjects,
			FeesPaid:    record.FeesPaid,
			LastUpdated: record.UpdatedAt,
		})
	}

	return HighRiskResponse{Count: len(students), Students: students}
}

// AlertDispatchEvent is broadcast after every completed alert fan-out.
type AlertDispatchEvent struct {
	Source      string         `json:"source"`
	Result      DispatchResult `json:"result"`
	CompletedAt time.Time      `json:"completed_at"`
}

// AnalysisResponse is returned after rescoring one student.
type AnalysisResponse struct {
	Student StudentResponse `json:"student"`
	Source  string          `json:"source"`
}
