package service

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"strconv"
	"strings"
	texttmpl "text/template"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/models"
)

//go:embed templates/*.txt templates/*.gohtml
var alertTemplates embed.FS

const (
	studentAlertSubject   = "⚠️ Academic Performance Alert - Immediate Action Required"
	mentorSummarySubject  = "🚨 High-Risk Students Report - %d Students Need Attention"
	studentAlertTemplate  = "student_alert"
	mentorSummaryTemplate = "mentor_summary"
	defaultAlertSignature = "Student Success Team"
)

var alertTemplateFuncs = map[string]any{
	"pct":       func(score float64) string { return strconv.FormatFloat(score*100, 'f', 1, 64) },
	"fixed1":    func(value float64) string { return strconv.FormatFloat(value, 'f', 1, 64) },
	"num":       func(value float64) string { return strconv.FormatFloat(value, 'f', -1, 64) },
	"inc":       func(i int) int { return i + 1 },
	"upper":     func(level models.RiskLevel) string { return strings.ToUpper(string(level)) },
	"feeStatus": feeStatus,
}

type studentAlertView struct {
	Name              string
	RiskLevel         models.RiskLevel
	RiskScore         float64
	AverageAttendance float64
	AverageMarks      float64
	FeesPaid          bool
	Attention         []models.Subject
	Actions           []string
	Signature         string
}

type mentorStudentView struct {
	Name              string
	Email             string
	RiskScore         float64
	AverageAttendance float64
	AverageMarks      float64
	FeesPaid          bool
}

type mentorSummaryView struct {
	Total         int
	UnpaidFees    int
	LowAttendance int
	Students      []mentorStudentView
	Signature     string
}

// AlertComposer renders alert emails. It has no side effects and the same
// input always renders the same output.
type AlertComposer struct {
	text      *texttmpl.Template
	html      *htmltmpl.Template
	signature string
}

// NewAlertComposer parses the embedded alert templates.
func NewAlertComposer(signature string) (*AlertComposer, error) {
	if strings.TrimSpace(signature) == "" {
		signature = defaultAlertSignature
	}

	text, err := texttmpl.New("alerts").Funcs(texttmpl.FuncMap(alertTemplateFuncs)).ParseFS(alertTemplates, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text alert templates: %w", err)
	}
	html, err := htmltmpl.New("alerts").Funcs(htmltmpl.FuncMap(alertTemplateFuncs)).ParseFS(alertTemplates, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse html alert templates: %w", err)
	}

	return &AlertComposer{text: text, html: html, signature: signature}, nil
}

// ComposeStudentAlert renders the alert sent to one student.
func (c *AlertComposer) ComposeStudentAlert(record models.AcademicRecord, user models.User) (dto.EmailContent, error) {
	attendance, marks := models.Averages(record.Subjects)

	actions := []string{"Contact your mentor immediately", "Attend all upcoming classes"}
	if !record.FeesPaid {
		actions = append(actions, "Clear pending fees payment")
	}
	actions = append(actions, "Schedule extra study sessions")

	view := studentAlertView{
		Name:              user.Name,
		RiskLevel:         record.RiskLevel,
		RiskScore:         record.RiskScore,
		AverageAttendance: attendance,
		AverageMarks:      marks,
		FeesPaid:          record.FeesPaid,
		Attention:         record.SubjectsNeedingAttention(),
		Actions:           actions,
		Signature:         c.signature,
	}

	return c.render(studentAlertTemplate, studentAlertSubject, view)
}

// ComposeMentorSummary renders the digest of high-risk students sent to every
// mentor. Records must have their user preloaded and are listed in input order.
func (c *AlertComposer) ComposeMentorSummary(records []models.AcademicRecord) (dto.EmailContent, error) {
	view := mentorSummaryView{
		Total:     len(records),
		Students:  make([]mentorStudentView, 0, len(records)),
		Signature: c.signature,
	}

	for _, record := range records {
		attendance, marks := models.Averages(record.Subjects)
		if !record.FeesPaid {
			view.UnpaidFees++
		}
		if len(record.Subjects) > 0 && attendance < models.AttendanceThreshold {
			view.LowAttendance++
		}

		view.Students = append(view.Students, mentorStudentView{
			Name:              record.User.Name,
			Email:             record.User.Email,
			RiskScore:         record.RiskScore,
			AverageAttendance: attendance,
			AverageMarks:      marks,
			FeesPaid:          record.FeesPaid,
		})
	}

	return c.render(mentorSummaryTemplate, fmt.Sprintf(mentorSummarySubject, len(records)), view)
}

func (c *AlertComposer) render(name, subject string, data any) (dto.EmailContent, error) {
	var text bytes.Buffer
	if err := c.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return dto.EmailContent{}, fmt.Errorf("render %s text: %w", name, err)
	}

	var html bytes.Buffer
	if err := c.html.ExecuteTemplate(&html, name+".gohtml", data); err != nil {
		return dto.EmailContent{}, fmt.Errorf("render %s html: %w", name, err)
	}

	return dto.EmailContent{Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

func feeStatus(paid bool) string {
	if paid {
		return "Paid"
	}
	return "UNPAID"
}
