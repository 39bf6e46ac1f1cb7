package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
)

// RiskLevel is the cached classification stored on an academic record.
type RiskLevel string

// Risk levels ordered from least to most severe.
const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// Valid reports whether the level is one of the known tiers.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return true
	default:
		return false
	}
}

// Thresholds below which a subject or average counts against the student.
const (
	AttendanceThreshold = 75.0
	MarksThreshold      = 60.0
)

// Subject holds a student's performance in one course. The range tags apply to
// manual edits; roster ingest stores uploaded values unchecked.
type Subject struct {
	Name       string  `json:"name" validate:"required"`
	Attendance float64 `json:"attendance" validate:"gte=0,lte=100"`
	Marks      float64 `json:"marks" validate:"gte=0,lte=100"`
}

// NeedsAttention reports whether attendance or marks fall under their thresholds.
func (s Subject) NeedsAttention() bool {
	return s.Attendance < AttendanceThreshold || s.Marks < MarksThreshold
}

// AcademicRecord stores subject performance, fee status and the last computed risk for a student.
type AcademicRecord struct {
	ID        uint                         `gorm:"primaryKey" json:"id"`
	UserID    uint                         `gorm:"uniqueIndex;not null" json:"user_id"`
	User      User                         `gorm:"foreignKey:UserID" json:"user"`
	Subjects  datatypes.JSONSlice[Subject] `json:"subjects"`
	FeesPaid  bool                         `gorm:"not null;default:false" json:"fees_paid"`
	RiskLevel RiskLevel                    `gorm:"size:16;index;not null;default:Low" json:"risk_level"`
	RiskScore float64                      `gorm:"not null;default:0" json:"predicted_risk_score"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// RiskAssessment is the output of a scoring pass.
type RiskAssessment struct {
	RiskLevel RiskLevel `json:"risk_level"`
	RiskScore float64   `json:"risk_score"`
}

// ApplyAssessment overwrites the cached risk fields.
func (r *AcademicRecord) ApplyAssessment(assessment RiskAssessment) {
	r.RiskLevel = assessment.RiskLevel
	r.RiskScore = assessment.RiskScore
}

// AverageAttendance returns the mean attendance across subjects, or 0 when there are none.
func (r AcademicRecord) AverageAttendance() float64 {
	att, _ := Averages(r.Subjects)
	return att
}

// AverageMarks returns the mean marks across subjects, or 0 when there are none.
func (r AcademicRecord) AverageMarks() float64 {
	_, marks := Averages(r.Subjects)
	return marks
}

// SubjectsNeedingAttention returns the subjects under either threshold, in stored order.
func (r AcademicRecord) SubjectsNeedingAttention() []Subject {
	result := make([]Subject, 0, len(r.Subjects))
	for _, subject := range r.Subjects {
		if subject.NeedsAttention() {
			result = append(result, subject)
		}
	}
	return result
}

// Averages computes mean attendance and marks. Both are 0 for an empty list.
// Values are summed in sorted order so the result does not depend on subject order.
func Averages(subjects []Subject) (attendance, marks float64) {
	if len(subjects) == 0 {
		return 0, 0
	}

	attendanceValues := make([]float64, 0, len(subjects))
	marksValues := make([]float64, 0, len(subjects))
	for _, subject := range subjects {
		attendanceValues = append(attendanceValues, subject.Attendance)
		marksValues = append(marksValues, subject.Marks)
	}

	return mean(attendanceValues), mean(marksValues)
}

func mean(values []float64) float64 {
	sort.Float64s(values)
	var total float64
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}
