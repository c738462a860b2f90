package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/observability"
	"github.com/spec-kit/timeoff-service/internal/repository"
	apperrors "github.com/spec-kit/timeoff-service/pkg/util/errorutil"
)

// RequestValidator checks requests against directory data.
type RequestValidator interface {
	ValidateUser(ctx context.Context, id int64) (*domain.User, error)
	ValidateDepartment(ctx context.Context, id int64) error
	ValidateManager(ctx context.Context, id int64) (*domain.User, error)
}

// DecisionNotifier emits the notification for an approval or rejection.
type DecisionNotifier interface {
	NotifyDecision(ctx context.Context, req *domain.Request, decision domain.Decision) error
}

// RequestService runs the time-off request lifecycle.
type RequestService struct {
	requests  repository.RequestRepository
	validator RequestValidator
	notifier  DecisionNotifier
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// RequestDependencies bundles collaborators for RequestService.
type RequestDependencies struct {
	RequestRepo repository.RequestRepository
	Validator   RequestValidator
	Notifier    DecisionNotifier
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	// Now supplies "today" for date range checks. Defaults to time.Now.
	Now func() time.Time
}

// CreateRequestInput describes a new request. Status defaults to Pending.
type CreateRequestInput struct {
	RequesterID  int64
	DepartmentID int64
	StartDate    time.Time
	EndDate      time.Time
	ManagerID    *int64
	Status       *domain.RequestStatus
}

// UpdateRequestInput replaces the editable fields of a request. A nil
// ManagerID keeps the current manager.
type UpdateRequestInput struct {
	StartDate time.Time
	EndDate   time.Time
	ManagerID *int64
	Status    domain.RequestStatus
}

// DecisionResult reports an approval or rejection. The decision is committed
// even when NotifyErr is set.
type DecisionResult struct {
	Request   *domain.Request
	Committed bool
	NotifyErr error
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &RequestService{
		requests:  deps.RequestRepo,
		validator: deps.Validator,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
}

// CreateRequest validates and stores a new request.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (req *domain.Request, err error) {
	defer s.observe("create", &err)

	status := domain.RequestStatusPending
	if input.Status != nil {
		status = *input.Status
	}
	if input.RequesterID <= 0 || input.DepartmentID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "requester and department ids must be positive")
	}
	if input.ManagerID != nil && *input.ManagerID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "manager id must be positive")
	}
	if status != domain.RequestStatusDraft && status != domain.RequestStatusPending {
		return nil, apperrors.NewValidationError(CodeInvalidStatus, "a new request must be DRAFT or PENDING")
	}

	if _, err := s.validator.ValidateUser(ctx, input.RequesterID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateDepartment(ctx, input.DepartmentID); err != nil {
		return nil, err
	}

	submitted := status != domain.RequestStatusDraft
	if submitted {
		if input.ManagerID == nil {
			return nil, apperrors.NewValidationError(CodeManagerRequired, "a manager is required unless the request is a draft")
		}
		if _, err := s.validator.ValidateManager(ctx, *input.ManagerID); err != nil {
			return nil, err
		}
		if *input.ManagerID == input.RequesterID {
			return nil, apperrors.NewConflict(CodeSelfApproval, "You cannot set yourself as approving manager on a request.", nil)
		}
	}

	if !domain.ValidDateRange(input.StartDate, input.EndDate, s.now()) {
		return nil, invalidDateRange()
	}

	if submitted {
		if err := s.ensureNoOverlap(ctx, input.RequesterID, input.StartDate, input.EndDate, 0); err != nil {
			return nil, err
		}
	}

	req = &domain.Request{
		RequesterID:  input.RequesterID,
		DepartmentID: input.DepartmentID,
		ManagerID:    input.ManagerID,
		Status:       status,
	}
	req.SetDateRange(input.StartDate, input.EndDate)
	if req.TotalBusinessDays <= 0 {
		return nil, apperrors.NewValidationError(CodeNoBusinessDays, "The selected date range contains no business days.")
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelled(err)
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, s.storeError("create request", err, zap.Int64("requester_id", input.RequesterID))
	}

	s.logger.Info("request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("requester_id", req.RequesterID),
		zap.String("status", string(req.Status)),
		zap.Int("business_days", req.TotalBusinessDays))
	return req, nil
}

// ApproveRequest approves a pending request on behalf of its assigned manager.
func (s *RequestService) ApproveRequest(ctx context.Context, loggedUserID, requestID int64) (res DecisionResult, err error) {
	defer s.observe("approve", &err)
	return s.decide(ctx, loggedUserID, requestID, domain.DecisionApproved, "")
}

// RejectRequest rejects a pending request; reason is mandatory.
func (s *RequestService) RejectRequest(ctx context.Context, loggedUserID, requestID int64, reason string) (res DecisionResult, err error) {
	defer s.observe("reject", &err)
	return s.decide(ctx, loggedUserID, requestID, domain.DecisionRejected, reason)
}

func (s *RequestService) decide(ctx context.Context, loggedUserID, requestID int64, decision domain.Decision, reason string) (DecisionResult, error) {
	if requestID <= 0 {
		return DecisionResult{}, apperrors.NewValidationError(CodeInvalidID, "request id must be positive")
	}
	if loggedUserID <= 0 {
		return DecisionResult{}, apperrors.NewValidationError(CodeInvalidID, "user id must be positive")
	}
	reason = strings.TrimSpace(reason)
	if decision == domain.DecisionRejected && reason == "" {
		return DecisionResult{}, apperrors.NewValidationError(CodeReasonRequired, "a rejection reason is required")
	}

	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return DecisionResult{}, err
	}
	if _, err := s.validator.ValidateManager(ctx, loggedUserID); err != nil {
		return DecisionResult{}, err
	}
	if !req.AssignedTo(loggedUserID) {
		verb := "approve"
		if decision == domain.DecisionRejected {
			verb = "reject"
		}
		return DecisionResult{}, apperrors.NewForbidden(CodeNotAssignedManager,
			fmt.Sprintf("Only the assigned manager may %s this request.", verb))
	}
	if req.RequesterID == loggedUserID {
		return DecisionResult{}, apperrors.NewConflict(CodeSelfApproval, "You cannot decide on your own request.", nil)
	}
	if !req.Status.CanBeApprovedOrRejected() {
		return DecisionResult{}, apperrors.NewValidationError(CodeCannotBeDecided,
			fmt.Sprintf("Request with status %s cannot be approved or rejected.", req.Status))
	}

	target := domain.RequestStatusApproved
	if decision == domain.DecisionRejected {
		target = domain.RequestStatusRejected
	}
	if err := req.TransitionTo(target); err != nil {
		return DecisionResult{}, transitionError(err)
	}
	managerID := loggedUserID
	req.ManagerID = &managerID
	if decision == domain.DecisionRejected {
		req.ManagerComment = &reason
	}

	if err := s.persist(ctx, req); err != nil {
		return DecisionResult{}, err
	}

	res := DecisionResult{Request: req, Committed: true}
	if s.notifier != nil {
		if err := s.notifier.NotifyDecision(ctx, req, decision); err != nil {
			res.NotifyErr = err
			s.logger.Warn("decision notification failed; decision kept",
				zap.Int64("request_id", req.ID),
				zap.String("subject", string(decision)),
				zap.Error(err))
		}
	}
	s.logger.Info("request decided",
		zap.Int64("request_id", req.ID),
		zap.Int64("manager_id", loggedUserID),
		zap.String("status", string(req.Status)))
	return res, nil
}

// RecallRequest lets the assigned manager pull back a pending request.
func (s *RequestService) RecallRequest(ctx context.Context, loggedUserID, requestID int64) (req *domain.Request, err error) {
	defer s.observe("recall", &err)

	if requestID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "request id must be positive")
	}
	req, err = s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanBeRecalled() {
		return nil, apperrors.NewValidationError(CodeCannotBeRecalled,
			fmt.Sprintf("Request with status %s cannot be recalled.", req.Status))
	}
	if !req.AssignedTo(loggedUserID) {
		return nil, apperrors.NewForbidden(CodeNotAssignedManager, "Only the assigned manager may recall this request.")
	}
	if err := req.TransitionTo(domain.RequestStatusRecalled); err != nil {
		return nil, transitionError(err)
	}
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("request recalled", zap.Int64("request_id", req.ID), zap.Int64("manager_id", loggedUserID))
	return req, nil
}

// DeleteRequest removes a draft, rejected or recalled request owned by the caller.
func (s *RequestService) DeleteRequest(ctx context.Context, loggedUserID, requestID int64) (err error) {
	defer s.observe("delete", &err)

	if requestID <= 0 {
		return apperrors.NewValidationError(CodeInvalidID, "request id must be positive")
	}
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.Status.CanBeDeleted() {
		return apperrors.NewValidationError(CodeCannotBeDeleted,
			fmt.Sprintf("Requests with status %s cannot be deleted.", req.Status))
	}
	if req.RequesterID != loggedUserID {
		return apperrors.NewForbidden(CodeNotOwner, "Only the owner of the request may delete it.")
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewCancelled(err)
	}
	if err := s.requests.Delete(ctx, requestID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(requestID)
		}
		return s.storeError("delete request", err, zap.Int64("request_id", requestID))
	}
	s.logger.Info("request deleted", zap.Int64("request_id", requestID))
	return nil
}

// UpdateRequest edits a draft or pending request owned by the caller.
func (s *RequestService) UpdateRequest(ctx context.Context, loggedUserID, requestID int64, input UpdateRequestInput) (req *domain.Request, err error) {
	defer s.observe("update", &err)

	if requestID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "request id must be positive")
	}
	if input.ManagerID != nil && *input.ManagerID <= 0 {
		return nil, apperrors.NewValidationError(CodeInvalidID, "manager id must be positive")
	}
	if !input.Status.IsValid() {
		return nil, apperrors.NewValidationError(CodeInvalidStatus, fmt.Sprintf("%q is not a valid status", input.Status))
	}

	req, err = s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanBeEdited() {
		return nil, apperrors.NewValidationError(CodeCannotBeEdited,
			fmt.Sprintf("Requests with status %s cannot be edited.", req.Status))
	}
	if req.RequesterID != loggedUserID {
		return nil, apperrors.NewForbidden(CodeNotOwner, "Only the owner of the request may update it.")
	}
	if input.ManagerID != nil && *input.ManagerID == loggedUserID {
		return nil, apperrors.NewConflict(CodeSelfApproval, "You cannot set yourself as approving manager on a request.", nil)
	}
	if input.Status != req.Status {
		if !req.Status.CanTransitionTo(input.Status) {
			return nil, transitionError(&domain.TransitionError{From: req.Status, To: input.Status})
		}
		if input.Status == domain.RequestStatusApproved || input.Status == domain.RequestStatusRejected {
			return nil, apperrors.NewValidationError(CodeDecisionViaUpdate,
				fmt.Sprintf("A request cannot be moved to %s by editing it; the assigned manager must approve or reject it.", input.Status))
		}
	}
	if !domain.ValidDateRange(input.StartDate, input.EndDate, s.now()) {
		return nil, invalidDateRange()
	}
	if input.ManagerID != nil {
		if _, err := s.validator.ValidateManager(ctx, *input.ManagerID); err != nil {
			return nil, err
		}
		req.ManagerID = input.ManagerID
	}

	if err := req.TransitionTo(input.Status); err != nil {
		return nil, transitionError(err)
	}
	req.SetDateRange(input.StartDate, input.EndDate)

	// Submission checks apply only to a pending target. A recall withdraws the
	// request and is allowed whatever its dates or manager.
	if req.Status == domain.RequestStatusPending {
		if req.ManagerID == nil {
			return nil, apperrors.NewValidationError(CodeManagerRequired, "a manager is required unless the request is a draft")
		}
		if input.ManagerID == nil {
			if _, err := s.validator.ValidateManager(ctx, *req.ManagerID); err != nil {
				return nil, err
			}
		}
		if *req.ManagerID == req.RequesterID {
			return nil, apperrors.NewConflict(CodeSelfApproval, "You cannot set yourself as approving manager on a request.", nil)
		}
		if req.TotalBusinessDays <= 0 {
			return nil, apperrors.NewValidationError(CodeNoBusinessDays, "The selected date range contains no business days.")
		}
		if err := s.ensureNoOverlap(ctx, req.RequesterID, req.StartDate, req.EndDate, req.ID); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("request updated", zap.Int64("request_id", req.ID), zap.String("status", string(req.Status)))
	return req, nil
}

func (s *RequestService) getRequest(ctx context.Context, id int64) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, s.storeError("load request", err, zap.Int64("request_id", id))
	}
	return req, nil
}

func (s *RequestService) ensureNoOverlap(ctx context.Context, userID int64, start, end time.Time, excludeID int64) error {
	existing, err := s.requests.FindOverlap(ctx, userID, domain.DateOf(start), domain.DateOf(end), excludeID)
	if err != nil {
		return s.storeError("find overlap", err, zap.Int64("requester_id", userID))
	}
	if existing != nil {
		return apperrors.NewConflict(CodeDateOverlap, domain.OverlapMessage(existing),
			map[string]any{"conflicting_request_id": existing.ID})
	}
	return nil
}

func (s *RequestService) persist(ctx context.Context, req *domain.Request) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewCancelled(err)
	}
	if err := s.requests.Update(ctx, req); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewConflict(CodeConcurrentUpdate, "The request was changed by someone else; reload and retry.",
				map[string]any{"request_id": req.ID})
		}
		return s.storeError("update request", err, zap.Int64("request_id", req.ID))
	}
	return nil
}

// storeError logs infrastructure failures and maps them to failure or
// cancelled errors.
func (s *RequestService) storeError(op string, err error, fields ...zap.Field) error {
	mapped := apperrors.ToDomainError(err)
	if mapped.Kind == apperrors.KindCancelled {
		return mapped
	}
	s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return apperrors.NewInternalError(fmt.Errorf("%s: %w", op, err))
}

func (s *RequestService) observe(command string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(apperrors.KindOf(*err))
	}
	s.metrics.RecordCommand(command, outcome)
}

func notFound(id int64) error {
	return apperrors.NewNotFound(CodeRequestNotFound, fmt.Sprintf("Request with ID %d was not found.", id),
		map[string]any{"request_id": id})
}

func invalidDateRange() error {
	return apperrors.NewValidationError(CodeInvalidDateRange,
		"The end date must be on or after the start date, and the start date cannot be in the past.")
}

func transitionError(err error) error {
	return apperrors.NewValidationError(CodeInvalidTransition, err.Error())
}
