package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/timeoff-service/internal/domain"
	apperrors "github.com/spec-kit/timeoff-service/pkg/util/errorutil"
)

// ReferenceData looks up single reference entities. Unknown ids yield
// (nil, nil).
type ReferenceData interface {
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	DepartmentByID(ctx context.Context, id int64) (*domain.Department, error)
	GradeByID(ctx context.Context, id int64) (*domain.Grade, error)
}

// ExternalValidator answers existence and authorization questions against
// reference data.
type ExternalValidator struct {
	refs ReferenceData
}

func NewExternalValidator(refs ReferenceData) *ExternalValidator {
	return &ExternalValidator{refs: refs}
}

func (v *ExternalValidator) ValidateUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := v.refs.UserByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if user == nil {
		return nil, apperrors.NewNotFound(CodeUserNotFound, fmt.Sprintf("User with ID %d not found", id), map[string]any{"user_id": id})
	}
	return user, nil
}

func (v *ExternalValidator) ValidateDepartment(ctx context.Context, id int64) error {
	dept, err := v.refs.DepartmentByID(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if dept == nil {
		return apperrors.NewNotFound(CodeDepartmentNotFound, fmt.Sprintf("Department with ID %d not found", id), map[string]any{"department_id": id})
	}
	return nil
}

// ValidateManager requires the user to exist and to hold a manager grade.
func (v *ExternalValidator) ValidateManager(ctx context.Context, id int64) (*domain.User, error) {
	manager, err := v.refs.UserByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if manager == nil {
		return nil, apperrors.NewNotFound(CodeManagerNotFound, fmt.Sprintf("Manager with ID %d not found", id), map[string]any{"manager_id": id})
	}
	grade, err := v.refs.GradeByID(ctx, manager.GradeID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if grade == nil || !grade.IsManagerGrade {
		return nil, apperrors.NewValidationError(CodeInvalidManager, fmt.Sprintf("User with ID %d does not have manager privileges", id))
	}
	return manager, nil
}
