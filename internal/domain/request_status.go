package domain

import "strings"

// RequestStatus enumerates lifecycle states for time-off requests.
type RequestStatus string

const (
	RequestStatusDraft    RequestStatus = "DRAFT"
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
	RequestStatusRecalled RequestStatus = "RECALLED"
)

// RequestStatuses lists every defined status.
var RequestStatuses = []RequestStatus{
	RequestStatusDraft,
	RequestStatusPending,
	RequestStatusApproved,
	RequestStatusRejected,
	RequestStatusRecalled,
}

// allowedTransitions is the complete transition table. Every status lists
// itself so that no-op updates are an explicit edge.
var allowedTransitions = map[RequestStatus]map[RequestStatus]bool{
	RequestStatusDraft: {
		RequestStatusDraft:    true,
		RequestStatusPending:  true,
		RequestStatusRecalled: true,
	},
	RequestStatusPending: {
		RequestStatusPending:  true,
		RequestStatusApproved: true,
		RequestStatusRejected: true,
		RequestStatusRecalled: true,
	},
	RequestStatusApproved: {
		RequestStatusApproved: true,
		RequestStatusRecalled: true,
	},
	RequestStatusRejected: {
		RequestStatusRejected: true,
	},
	RequestStatusRecalled: {
		RequestStatusRecalled: true,
	},
}

// ParseRequestStatus accepts a status name in any case.
func ParseRequestStatus(val string) (RequestStatus, bool) {
	status := RequestStatus(strings.ToUpper(strings.TrimSpace(val)))
	return status, status.IsValid()
}

// IsValid reports whether s is a defined status.
func (s RequestStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether current -> target is a legal edge.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	return allowedTransitions[s][target]
}

// CanBeApprovedOrRejected is true only for pending requests.
func (s RequestStatus) CanBeApprovedOrRejected() bool {
	return s == RequestStatusPending
}

func (s RequestStatus) CanBeRecalled() bool {
	return s == RequestStatusPending
}

func (s RequestStatus) CanBeEdited() bool {
	return s == RequestStatusDraft || s == RequestStatusPending
}

func (s RequestStatus) CanBeDeleted() bool {
	switch s {
	case RequestStatusDraft, RequestStatusRejected, RequestStatusRecalled:
		return true
	default:
		return false
	}
}
