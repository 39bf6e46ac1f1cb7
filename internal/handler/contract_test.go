package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/risk-alert-api/internal/config"
	"github.com/noah-isme/risk-alert-api/internal/database"
	"github.com/noah-isme/risk-alert-api/internal/handler"
	"github.com/noah-isme/risk-alert-api/internal/middleware"
	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/repository"
	"github.com/noah-isme/risk-alert-api/internal/router"
	"github.com/noah-isme/risk-alert-api/internal/service"
)

const contractSecret = "contract-secret"

const contractRoster = `email,name,subject,attendance,marks,feesPaid
asha@example.com,Asha,Math,50,40,false
asha@example.com,Asha,Physics,60,30,false
ben@example.com,Ben,Math,90,85,true
`

type contractEnv struct {
	app   *fiber.App
	users repository.UserRepository
}

func newContractEnv(t *testing.T) contractEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	users := repository.NewUserRepository(db)
	records := repository.NewAcademicRecordRepository(db)

	composer, err := service.NewAlertComposer("Risk Desk")
	require.NoError(t, err)
	dispatcher := service.NewAlertDispatcher(records, users, composer, service.NewLogMailTransport(logger), nil, logger)
	scheduler := service.NewAlertScheduler(dispatcher, nil, time.UTC, logger)
	t.Cleanup(func() { scheduler.Stop(context.Background()) })

	ingest := service.NewIngestService(users, records, logger)
	uploads := service.NewRosterUploadService(ingest, nil, nil, 0, 5, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Student Risk API", AppEnv: "test"}, router.Dependencies{
		StudentHandler: handler.NewStudentHandler(service.NewStudentService(records, nil, nil, logger), logger),
		UploadHandler:  handler.NewUploadHandler(uploads, logger),
		AlertHandler:   handler.NewAlertHandler(dispatcher, scheduler, logger),
		JWTMiddleware:  middleware.JWTProtected(contractSecret),
	})

	_, err = users.UpsertByEmail(context.Background(), "mentor@example.com", models.User{Name: "Mentor", Role: models.RoleMentor})
	require.NoError(t, err)

	return contractEnv{app: app, users: users}
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func bearer(t *testing.T, userID uint, role string) string {
	t.Helper()
	token, err := middleware.IssueToken(contractSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e contractEnv) do(t *testing.T, req *http.Request, auth string, wantStatus int) interface{} {
	t.Helper()
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestRiskAPIContract(t *testing.T) {
	env := newContractEnv(t)
	mentor := bearer(t, 1, models.RoleMentor)

	body, contentType := multipartRoster(t, "file", "roster.csv", []byte(contractRoster))
	uploadReq := httptest.NewRequest(http.MethodPost, "/api/v1/students/upload", body)
	uploadReq.Header.Set("Content-Type", contentType)
	env.do(t, uploadReq, mentor, fiber.StatusOK)

	students, err := env.users.ListByRole(context.Background(), models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, students, 2)
	asha := students[0]
	require.Equal(t, "asha@example.com", asha.Email)

	studentSchema := compileSchema(t, "student_response.schema.json")

	mine := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/students/me", nil), bearer(t, asha.ID, models.RoleStudent), fiber.StatusOK)
	require.NoError(t, studentSchema.Validate(mine))

	analysis := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/students/1/analyze", nil), mentor, fiber.StatusOK)
	data := analysis.(map[string]interface{})["data"].(map[string]interface{})
	require.Equal(t, "deterministic", data["source"])
	require.NoError(t, studentSchema.Validate(map[string]interface{}{
		"success": true,
		"message": "risk analysis complete",
		"data":    data["student"],
	}))

	highRisk := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/students/high-risk", nil), mentor, fiber.StatusOK)
	require.NoError(t, compileSchema(t, "high_risk_response.schema.json").Validate(highRisk))

	dispatch := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/send", nil), mentor, fiber.StatusOK)
	require.NoError(t, compileSchema(t, "dispatch_response.schema.json").Validate(dispatch))
	result := dispatch.(map[string]interface{})["data"].(map[string]interface{})
	require.Equal(t, float64(1), result["high_risk_count"])
	require.Equal(t, float64(1), result["student_emails_sent"])
	require.Equal(t, float64(1), result["mentor_emails_sent"])

	status := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/scheduler-status", nil), mentor, fiber.StatusOK)
	require.NoError(t, compileSchema(t, "scheduler_status_response.schema.json").Validate(status))
}

func TestRiskAPIErrorContract(t *testing.T) {
	env := newContractEnv(t)
	errorSchema := compileSchema(t, "error_response.schema.json")

	cases := []struct {
		name   string
		req    *http.Request
		auth   string
		status int
	}{
		{
			name:   "unauthenticated",
			req:    httptest.NewRequest(http.MethodGet, "/api/v1/students", nil),
			status: fiber.StatusUnauthorized,
		},
		{
			name:   "student on mentor route",
			req:    httptest.NewRequest(http.MethodPost, "/api/v1/alerts/send", nil),
			auth:   bearer(t, 2, models.RoleStudent),
			status: fiber.StatusForbidden,
		},
		{
			name:   "unknown student",
			req:    httptest.NewRequest(http.MethodGet, "/api/v1/students/999", nil),
			auth:   bearer(t, 1, models.RoleMentor),
			status: fiber.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := env.do(t, tc.req, tc.auth, tc.status)
			require.NoError(t, errorSchema.Validate(payload))
		})
	}
}
