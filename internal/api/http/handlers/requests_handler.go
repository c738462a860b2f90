package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/timeoff-service/internal/api/dto"
	"github.com/spec-kit/timeoff-service/internal/auth"
	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/service"
	apperrors "github.com/spec-kit/timeoff-service/pkg/util/errorutil"
)

// RequestsHandler exposes the time-off request lifecycle.
type RequestsHandler struct {
	service *service.RequestService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requestService *service.RequestService) *RequestsHandler {
	return &RequestsHandler{service: requestService}
}

// Create POST /requests. The caller is the requester.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var body dto.CreateRequestBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.NewValidationError(dto.CodeInvalidPayload, "invalid payload")
	}
	if err := dto.Validate(&body); err != nil {
		return err
	}

	input := service.CreateRequestInput{
		RequesterID:  principal.UserID,
		DepartmentID: body.DepartmentID,
		ManagerID:    body.ManagerID,
	}
	if input.StartDate, input.EndDate, err = parseRange(body.StartDate, body.EndDate); err != nil {
		return err
	}
	if body.Status != "" {
		status, err := parseStatus(body.Status)
		if err != nil {
			return err
		}
		input.Status = &status
	}

	req, err := h.service.CreateRequest(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRequestResponse(req)})
}

// List GET /requests?manager_id=&user_id=&status=&from=&to=&page=&page_size=.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	if _, err := requirePrincipal(c); err != nil {
		return err
	}
	query, err := parseListQuery(c)
	if err != nil {
		return err
	}
	requests, err := h.service.ListRequests(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestList(requests)})
}

// Mine GET /requests/mine.
func (h *RequestsHandler) Mine(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	requests, err := h.service.RequestsByUser(c.UserContext(), principal.UserID,
		parseInt(c.Query("page"), 0), parseInt(c.Query("page_size"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestList(requests)})
}

// Pending GET /requests/pending: pending requests assigned to the caller.
func (h *RequestsHandler) Pending(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	requests, err := h.service.PendingForManager(c.UserContext(), principal.UserID,
		parseInt(c.Query("page"), 0), parseInt(c.Query("page_size"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestList(requests)})
}

// Update PUT /requests/:id.
func (h *RequestsHandler) Update(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var body dto.UpdateRequestBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.NewValidationError(dto.CodeInvalidPayload, "invalid payload")
	}
	if err := dto.Validate(&body); err != nil {
		return err
	}

	input := service.UpdateRequestInput{ManagerID: body.ManagerID}
	if input.StartDate, input.EndDate, err = parseRange(body.StartDate, body.EndDate); err != nil {
		return err
	}
	if input.Status, err = parseStatus(body.Status); err != nil {
		return err
	}

	req, err := h.service.UpdateRequest(c.UserContext(), principal.UserID, id, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestResponse(req)})
}

// Delete DELETE /requests/:id.
func (h *RequestsHandler) Delete(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := requestID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteRequest(c.UserContext(), principal.UserID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Approve POST /requests/:id/approve.
func (h *RequestsHandler) Approve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := requestID(c)
	if err != nil {
		return err
	}
	res, err := h.service.ApproveRequest(c.UserContext(), principal.UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": decisionResponse(res)})
}

// Reject POST /requests/:id/reject.
func (h *RequestsHandler) Reject(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var body dto.RejectRequestBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.NewValidationError(dto.CodeInvalidPayload, "invalid payload")
	}
	if err := dto.Validate(&body); err != nil {
		return err
	}
	res, err := h.service.RejectRequest(c.UserContext(), principal.UserID, id, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": decisionResponse(res)})
}

// Recall POST /requests/:id/recall. Only the assigned manager may recall.
func (h *RequestsHandler) Recall(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := requestID(c)
	if err != nil {
		return err
	}
	req, err := h.service.RecallRequest(c.UserContext(), principal.UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestResponse(req)})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.UserID <= 0 {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal, nil
}

func requestID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(service.CodeInvalidID, "request id must be a positive integer")
	}
	return id, nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	from, err := domain.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(service.CodeInvalidDateRange, "start_date must be YYYY-MM-DD")
	}
	to, err := domain.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(service.CodeInvalidDateRange, "end_date must be YYYY-MM-DD")
	}
	return from, to, nil
}

func parseStatus(val string) (domain.RequestStatus, error) {
	status, ok := domain.ParseRequestStatus(val)
	if !ok {
		return "", apperrors.NewValidationError(service.CodeInvalidStatus, "unknown status "+strconv.Quote(val))
	}
	return status, nil
}

func parseListQuery(c *fiber.Ctx) (service.ListQuery, error) {
	q := service.ListQuery{
		Page:     parseInt(c.Query("page"), 0),
		PageSize: parseInt(c.Query("page_size"), 0),
	}
	var err error
	if q.ManagerID, err = parseIDQuery(c, "manager_id"); err != nil {
		return q, err
	}
	if q.UserID, err = parseIDQuery(c, "user_id"); err != nil {
		return q, err
	}
	if raw := c.Query("status"); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = &status
	}
	if q.From, err = parseDateQuery(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = parseDateQuery(c, "to"); err != nil {
		return q, err
	}
	return q, nil
}

func parseIDQuery(c *fiber.Ctx, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError(service.CodeInvalidID, key+" must be a positive integer")
	}
	return &id, nil
}

func parseDateQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		return nil, apperrors.NewValidationError(service.CodeInvalidDateRange, key+" must be YYYY-MM-DD")
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func decisionResponse(res service.DecisionResult) dto.DecisionResponse {
	return dto.DecisionResponse{
		Request:  dto.NewRequestResponse(res.Request),
		Notified: res.NotifyErr == nil,
	}
}
