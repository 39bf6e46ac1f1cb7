package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/handler"
	"github.com/noah-isme/risk-alert-api/internal/service"
)

type stubDispatcher struct {
	result dto.DispatchResult
	err    error
	calls  int
}

func (s *stubDispatcher) Dispatch(context.Context) (dto.DispatchResult, error) {
	s.calls++
	return s.result, s.err
}

func newAlertApp(dispatcher service.AlertDispatcher, scheduler service.AlertScheduler) *fiber.App {
	app := fiber.New()
	handler.NewAlertHandler(dispatcher, scheduler, zerolog.Nop()).Register(app.Group("/api/v1/alerts"))
	return app
}

func newRealScheduler(t *testing.T) service.AlertScheduler {
	t.Helper()
	scheduler := service.NewAlertScheduler(&stubDispatcher{}, nil, time.UTC, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		scheduler.Stop(ctx)
	})
	return scheduler
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAlertHandlerSend(t *testing.T) {
	dispatcher := &stubDispatcher{result: dto.DispatchResult{
		StudentEmailsSent: 2,
		MentorEmailsSent:  1,
		HighRiskCount:     3,
		Errors:            []string{"failed to send email to c@example.com: smtp down"},
	}}
	app := newAlertApp(dispatcher, newRealScheduler(t))

	resp := postJSON(t, app, "/api/v1/alerts/send", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload envelope[dto.DispatchResult]
	decodeResponse(t, resp, &payload)
	require.Equal(t, "alerts dispatched", payload.Message)
	require.Equal(t, 3, payload.Data.HighRiskCount)
	require.Len(t, payload.Data.Errors, 1)
	require.Equal(t, 1, dispatcher.calls)
}

func TestAlertHandlerSendNoHighRisk(t *testing.T) {
	app := newAlertApp(&stubDispatcher{}, newRealScheduler(t))

	resp := postJSON(t, app, "/api/v1/alerts/send", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload envelope[dto.DispatchResult]
	decodeResponse(t, resp, &payload)
	require.Equal(t, "no high-risk students found", payload.Message)
	require.Zero(t, payload.Data.StudentEmailsSent)
}

func TestAlertHandlerSendErrors(t *testing.T) {
	resp := postJSON(t, newAlertApp(&stubDispatcher{err: service.ErrDispatcherUnavailable}, nil), "/api/v1/alerts/send", "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp = postJSON(t, newAlertApp(&stubDispatcher{err: errors.New("db down")}, nil), "/api/v1/alerts/send", "")
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestAlertHandlerScheduleLifecycle(t *testing.T) {
	app := newAlertApp(&stubDispatcher{}, newRealScheduler(t))

	resp := postJSON(t, app, "/api/v1/alerts/schedule", `{"enabled":true,"schedule":"30 8 * * *"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var enabled envelope[dto.SchedulerStatus]
	decodeResponse(t, resp, &enabled)
	require.True(t, enabled.Data.Active)
	require.Equal(t, "30 8 * * *", enabled.Data.Schedule)
	require.Equal(t, "Every day at 08:30", enabled.Data.Description)
	require.NotNil(t, enabled.Data.NextRun)

	statusResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/alerts/scheduler-status", nil))
	require.NoError(t, err)
	var status envelope[dto.SchedulerStatus]
	decodeResponse(t, statusResp, &status)
	require.True(t, status.Data.Active)

	resp = postJSON(t, app, "/api/v1/alerts/schedule", `{"enabled":false}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var disabled envelope[dto.SchedulerStatus]
	decodeResponse(t, resp, &disabled)
	require.False(t, disabled.Data.Active)
	require.Equal(t, "alert schedule disabled", disabled.Message)
}

func TestAlertHandlerScheduleDefaultsExpression(t *testing.T) {
	app := newAlertApp(&stubDispatcher{}, newRealScheduler(t))

	resp := postJSON(t, app, "/api/v1/alerts/schedule", `{"enabled":true}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload envelope[dto.SchedulerStatus]
	decodeResponse(t, resp, &payload)
	require.Equal(t, service.DefaultAlertSchedule, payload.Data.Schedule)
	require.Equal(t, "Every Monday at 09:00", payload.Data.Description)
}

func TestAlertHandlerScheduleRejections(t *testing.T) {
	app := newAlertApp(&stubDispatcher{}, newRealScheduler(t))

	resp := postJSON(t, app, "/api/v1/alerts/schedule", `{"enabled":true,"schedule":"every tuesday"}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/alerts/schedule", `{"schedule":"0 9 * * 1"}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/alerts/schedule", `{not json`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	statusResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/alerts/scheduler-status", nil))
	require.NoError(t, err)
	var status envelope[dto.SchedulerStatus]
	decodeResponse(t, statusResp, &status)
	require.False(t, status.Data.Active)
	require.Equal(t, "not scheduled", status.Data.Description)
}

func TestAlertHandlerWithoutScheduler(t *testing.T) {
	app := newAlertApp(&stubDispatcher{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/alerts/scheduler-status", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
