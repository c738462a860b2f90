package dto

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/timeoff-service/internal/domain"
	apperrors "github.com/spec-kit/timeoff-service/pkg/util/errorutil"
)

// CodeInvalidPayload marks a request body that failed structural validation.
const CodeInvalidPayload = "REQUEST_INVALID_PAYLOAD"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and reports failing fields by JSON name.
func Validate(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(CodeInvalidPayload, err.Error())
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewDomainError(apperrors.KindValidation, CodeInvalidPayload, "invalid payload", details)
}

// CreateRequestBody payload for POST /requests.
type CreateRequestBody struct {
	DepartmentID int64  `json:"department_id" validate:"required,gt=0"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ManagerID    *int64 `json:"manager_id" validate:"omitempty,gt=0"`
	Status       string `json:"status" validate:"omitempty,max=16"`
}

// UpdateRequestBody payload for PUT /requests/:id.
type UpdateRequestBody struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ManagerID *int64 `json:"manager_id" validate:"omitempty,gt=0"`
	Status    string `json:"status" validate:"required,max=16"`
}

// RejectRequestBody payload for POST /requests/:id/reject.
type RejectRequestBody struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// RequestResponse is the public view of a request.
type RequestResponse struct {
	ID                int64                `json:"id"`
	RequesterID       int64                `json:"requester_id"`
	DepartmentID      int64                `json:"department_id"`
	ManagerID         *int64               `json:"manager_id"`
	StartDate         string               `json:"start_date"`
	EndDate           string               `json:"end_date"`
	TotalBusinessDays int                  `json:"total_business_days"`
	ManagerComment    *string              `json:"manager_comment"`
	Status            domain.RequestStatus `json:"status"`
	Version           int64                `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// DecisionResponse reports an approval or rejection. Notified is false when
// the notification could not be queued; the decision stands regardless.
type DecisionResponse struct {
	Request  RequestResponse `json:"request"`
	Notified bool            `json:"notified"`
}

func NewRequestResponse(req *domain.Request) RequestResponse {
	return RequestResponse{
		ID:                req.ID,
		RequesterID:       req.RequesterID,
		DepartmentID:      req.DepartmentID,
		ManagerID:         req.ManagerID,
		StartDate:         req.StartDate.Format(domain.DateLayout),
		EndDate:           req.EndDate.Format(domain.DateLayout),
		TotalBusinessDays: req.TotalBusinessDays,
		ManagerComment:    req.ManagerComment,
		Status:            req.Status,
		Version:           req.Version,
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
	}
}

func NewRequestList(requests []domain.Request) []RequestResponse {
	items := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, NewRequestResponse(&requests[i]))
	}
	return items
}
