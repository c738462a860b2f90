package domain

import (
	"fmt"
	"time"
)

// Request is the aggregate for a time-off request.
type Request struct {
	ID                int64
	RequesterID       int64
	DepartmentID      int64
	ManagerID         *int64
	StartDate         time.Time
	EndDate           time.Time
	TotalBusinessDays int
	ManagerComment    *string
	Status            RequestStatus
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SetDateRange stores both dates at day granularity and recomputes the
// business-day total.
func (r *Request) SetDateRange(start, end time.Time) {
	r.StartDate = DateOf(start)
	r.EndDate = DateOf(end)
	r.TotalBusinessDays = BusinessDays(r.StartDate, r.EndDate)
}

// TransitionTo moves the request to target if the edge is legal.
func (r *Request) TransitionTo(target RequestStatus) error {
	if !r.Status.CanTransitionTo(target) {
		return &TransitionError{From: r.Status, To: target}
	}
	r.Status = target
	return nil
}

// AssignedTo reports whether managerID is the request's manager.
func (r *Request) AssignedTo(managerID int64) bool {
	return r.ManagerID != nil && *r.ManagerID == managerID
}

// Overlaps reports whether the inclusive ranges intersect.
func (r *Request) Overlaps(start, end time.Time) bool {
	return !r.StartDate.After(DateOf(end)) && !r.EndDate.Before(DateOf(start))
}

// TransitionError describes an edge missing from the transition table.
type TransitionError struct {
	From RequestStatus
	To   RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
