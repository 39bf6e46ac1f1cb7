package service

import (
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/models"
)

var (
	rosterSanitizer = bluemonday.StrictPolicy()
	rosterValidator = validator.New()
)

// ParseRosterRow coerces one raw upload row. The boolean is false when the row
// lacks an email, name or subject and must be skipped.
func ParseRosterRow(raw dto.RawRosterRow) (dto.RosterRow, bool) {
	row := dto.RosterRow{
		Email:      strings.ToLower(strings.TrimSpace(rosterString(raw, "email"))),
		Name:       sanitizeRosterText(rosterString(raw, "name")),
		Subject:    sanitizeRosterText(rosterString(raw, "subject")),
		Attendance: rosterFloat(lookupRosterValue(raw, "attendance")),
		Marks:      rosterFloat(lookupRosterValue(raw, "marks")),
		FeesPaid:   rosterBool(lookupRosterValue(raw, "feesPaid")),
	}

	if row.Email == "" || row.Name == "" || row.Subject == "" {
		return dto.RosterRow{}, false
	}
	if err := rosterValidator.Struct(row); err != nil {
		return dto.RosterRow{}, false
	}

	return row, true
}

// GroupRosterRows groups rows by email in first-encounter order. Name and fee
// status come from the first row of each group; subjects keep row order.
func GroupRosterRows(rows []dto.RosterRow) []dto.RosterGroup {
	index := make(map[string]int, len(rows))
	groups := make([]dto.RosterGroup, 0, len(rows))

	for _, row := range rows {
		subject := models.Subject{Name: row.Subject, Attendance: row.Attendance, Marks: row.Marks}

		pos, ok := index[row.Email]
		if !ok {
			index[row.Email] = len(groups)
			groups = append(groups, dto.RosterGroup{
				Email:    row.Email,
				Name:     row.Name,
				FeesPaid: row.FeesPaid,
				Subjects: []models.Subject{subject},
			})
			continue
		}

		groups[pos].Subjects = append(groups[pos].Subjects, subject)
	}

	return groups
}

func lookupRosterValue(raw dto.RawRosterRow, key string) any {
	if value, ok := raw[key]; ok {
		return value
	}
	for candidate, value := range raw {
		if strings.EqualFold(strings.TrimSpace(candidate), key) {
			return value
		}
	}
	return nil
}

func rosterString(raw dto.RawRosterRow, key string) string {
	switch value := lookupRosterValue(raw, key).(type) {
	case string:
		return value
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	default:
		return ""
	}
}

func sanitizeRosterText(value string) string {
	cleaned := rosterSanitizer.Sanitize(strings.TrimSpace(value))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func rosterFloat(value any) float64 {
	var parsed float64
	switch v := value.(type) {
	case float64:
		parsed = v
	case float32:
		parsed = float64(v)
	case int:
		parsed = float64(v)
	case int64:
		parsed = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		parsed = f
	default:
		return 0
	}

	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

func rosterBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
