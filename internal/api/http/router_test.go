package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/timeoff-service/internal/api/http/handlers"
	"github.com/spec-kit/timeoff-service/internal/auth"
	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/events"
	"github.com/spec-kit/timeoff-service/internal/observability"
	"github.com/spec-kit/timeoff-service/internal/repository"
	"github.com/spec-kit/timeoff-service/internal/service"
)

type directory struct{}

func (directory) FetchUsers(context.Context) ([]domain.User, error) {
	return []domain.User{
		{ID: 1, FullName: "Ada Lovelace", Email: "ada@example.com", GradeID: 1},
		{ID: 2, FullName: "Grace Hopper", Email: "grace@example.com", GradeID: 2},
	}, nil
}

func (directory) FetchDepartments(context.Context) ([]domain.Department, error) {
	return []domain.Department{{ID: 10, Name: "Research"}}, nil
}

func (directory) FetchGrades(context.Context) ([]domain.Grade, error) {
	return []domain.Grade{{ID: 1, Name: "Engineer"}, {ID: 2, Name: "Manager"}}, nil
}

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
	broker *events.MemoryBroker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	refs := service.NewReferenceService(service.ReferenceDependencies{Source: directory{}, Logger: logger})
	broker := events.NewMemoryBroker(3, 10*time.Millisecond)
	requests := service.NewRequestService(service.RequestDependencies{
		RequestRepo: repository.NewMemoryRequestRepository(),
		Validator:   service.NewExternalValidator(refs),
		Notifier: service.NewNotificationService(service.NotificationDependencies{
			Directory: refs,
			Publisher: broker,
			Metrics:   metrics,
		}),
		Metrics: metrics,
		Now:     func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	tokens := auth.NewTokenManager("test-secret", "", 5)

	app := NewApp("timeoff-test")
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("timeoff-test", "test", nil),
		Requests:       handlers.NewRequestsHandler(requests),
		Reference:      handlers.NewReferenceHandler(refs),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       reg,
	})
	return &testServer{app: app, tokens: tokens, broker: broker}
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, _, err := s.tokens.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/api/v1/requests", 0, `{}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"].(map[string]any)["kind"])

	status, body = s.do(t, "POST", "/api/v1/requests", 1,
		`{"department_id":10,"start_date":"2025-01-06","end_date":"2025-01-11","manager_id":2}`)
	require.Equal(t, fiber.StatusCreated, status, body)
	created := body["data"].(map[string]any)
	assert.Equal(t, float64(5), created["total_business_days"])
	assert.Equal(t, "PENDING", created["status"])

	status, body = s.do(t, "POST", "/api/v1/requests", 1,
		`{"department_id":10,"start_date":"2025-01-08","end_date":"2025-01-09","manager_id":2}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "REQUEST_DATE_OVERLAP", errorCode(body))

	status, body = s.do(t, "GET", "/api/v1/requests/pending", 2, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, "POST", "/api/v1/requests/1/approve", 1, "")
	assert.Equal(t, fiber.StatusBadRequest, status, "requester lacks a manager grade")
	assert.Equal(t, "REQUEST_INVALID_MANAGER", errorCode(body))

	status, body = s.do(t, "POST", "/api/v1/requests/1/approve", 2, "")
	require.Equal(t, fiber.StatusOK, status, body)
	decision := body["data"].(map[string]any)
	assert.Equal(t, true, decision["notified"])
	assert.Equal(t, "APPROVED", decision["request"].(map[string]any)["status"])
	assert.Equal(t, 1, s.broker.Len())

	status, body = s.do(t, "DELETE", "/api/v1/requests/1", 1, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "REQUEST_CANNOT_BE_DELETED", errorCode(body))

	status, body = s.do(t, "GET", "/api/v1/requests/mine", 1, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestRejectAndDeleteOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/v1/requests", 1,
		`{"department_id":10,"start_date":"2025-02-03","end_date":"2025-02-04","manager_id":2}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, body := s.do(t, "POST", "/api/v1/requests/1/reject", 2, `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "REQUEST_INVALID_PAYLOAD", errorCode(body))

	status, body = s.do(t, "POST", "/api/v1/requests/1/reject", 2, `{"reason":"release week"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	rejected := body["data"].(map[string]any)["request"].(map[string]any)
	assert.Equal(t, "release week", rejected["manager_comment"])

	status, body = s.do(t, "DELETE", "/api/v1/requests/1", 2, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "REQUEST_NOT_OWNER", errorCode(body))

	status, _ = s.do(t, "DELETE", "/api/v1/requests/1", 1, "")
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = s.do(t, "DELETE", "/api/v1/requests/1", 1, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "REQUEST_NOT_FOUND", errorCode(body))
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/api/v1/requests", 1, `{"start_date":"tomorrow"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "required", details["department_id"])
	assert.Equal(t, "datetime", details["start_date"])

	status, body = s.do(t, "PUT", "/api/v1/requests/abc", 1,
		`{"start_date":"2025-02-03","end_date":"2025-02-04","status":"PENDING"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "REQUEST_INVALID_ID", errorCode(body))

	status, body = s.do(t, "GET", "/api/v1/requests?status=lost", 1, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "REQUEST_INVALID_STATUS", errorCode(body))
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	status, body := s.do(t, "GET", "/health/live", 0, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = s.do(t, "GET", "/health/ready", 0, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, "GET", "/api/v1/reference/grades", 1, "")
	require.Equal(t, fiber.StatusOK, status)
	grades := body["data"].([]any)
	require.Len(t, grades, 2)
	assert.Equal(t, true, grades[1].(map[string]any)["isManagerGrade"])

	status, body = s.do(t, "GET", "/nowhere", 0, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ROUTE_NOT_FOUND", errorCode(body))

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "timeoff_http_requests_total")
}
