package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/repository"
	apperrors "github.com/spec-kit/timeoff-service/pkg/util/errorutil"
)

// ListQuery filters request listings. Page is 1-based; zero disables paging.
type ListQuery struct {
	ManagerID *int64
	UserID    *int64
	Status    *domain.RequestStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// ListRequests returns matching requests, latest start date first.
func (s *RequestService) ListRequests(ctx context.Context, q ListQuery) ([]domain.Request, error) {
	if q.Status != nil && !q.Status.IsValid() {
		return nil, apperrors.NewValidationError(CodeInvalidStatus, "unknown status filter")
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, apperrors.NewValidationError(CodeInvalidDateRange, "the window end must not precede its start")
	}

	filter := repository.RequestFilter{
		ManagerID: q.ManagerID,
		UserID:    q.UserID,
		Status:    q.Status,
		From:      q.From,
		To:        q.To,
	}
	if q.Page > 0 {
		size := q.PageSize
		if size <= 0 {
			size = repository.DefaultPageSize
		}
		filter.Limit, filter.Offset = repository.PageToLimitOffset(q.Page, size)
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, s.storeError("list requests", err)
	}
	if requests == nil {
		requests = []domain.Request{}
	}
	return requests, nil
}

// PendingForManager lists pending requests assigned to managerID. The caller
// must hold a manager grade.
func (s *RequestService) PendingForManager(ctx context.Context, managerID int64, page, pageSize int) ([]domain.Request, error) {
	if managerID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "manager id must be positive")
	}
	if _, err := s.validator.ValidateManager(ctx, managerID); err != nil {
		return nil, err
	}
	status := domain.RequestStatusPending
	requests, err := s.ListRequests(ctx, ListQuery{ManagerID: &managerID, Status: &status, Page: page, PageSize: pageSize})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("pending requests listed", zap.Int64("manager_id", managerID), zap.Int("count", len(requests)))
	return requests, nil
}

// RequestsByUser lists every request owned by userID.
func (s *RequestService) RequestsByUser(ctx context.Context, userID int64, page, pageSize int) ([]domain.Request, error) {
	if userID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "user id must be positive")
	}
	return s.ListRequests(ctx, ListQuery{UserID: &userID, Page: page, PageSize: pageSize})
}
