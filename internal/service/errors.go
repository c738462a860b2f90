package service

// Machine-readable error codes returned by request workflows.
const (
	CodeInvalidID          = "REQUEST_INVALID_ID"
	CodeInvalidStatus      = "REQUEST_INVALID_STATUS"
	CodeInvalidDateRange   = "REQUEST_INVALID_DATE_RANGE"
	CodeNoBusinessDays     = "REQUEST_NO_BUSINESS_DAYS"
	CodeDateOverlap        = "REQUEST_DATE_OVERLAP"
	CodeSelfApproval       = "REQUEST_SELF_APPROVAL"
	CodeUserNotFound       = "REQUEST_USER_NOT_FOUND"
	CodeDepartmentNotFound = "REQUEST_DEPARTMENT_NOT_FOUND"
	CodeManagerNotFound    = "REQUEST_MANAGER_NOT_FOUND"
	CodeInvalidManager     = "REQUEST_INVALID_MANAGER"
	CodeManagerRequired    = "REQUEST_MANAGER_REQUIRED"
	CodeReasonRequired     = "REQUEST_REASON_REQUIRED"
	CodeRequestNotFound    = "REQUEST_NOT_FOUND"
	CodeNotAssignedManager = "REQUEST_NOT_ASSIGNED_MANAGER"
	CodeNotOwner           = "REQUEST_NOT_OWNER"
	CodeCannotBeDecided    = "REQUEST_CANNOT_BE_DECIDED"
	CodeCannotBeRecalled   = "REQUEST_CANNOT_BE_RECALLED"
	CodeCannotBeEdited     = "REQUEST_CANNOT_BE_EDITED"
	CodeCannotBeDeleted    = "REQUEST_CANNOT_BE_DELETED"
	// CodeDecisionViaUpdate rejects Pending to Approved/Rejected through an edit.
	// The table allows the edge but only the assigned manager may take it.
	CodeDecisionViaUpdate = "REQUEST_DECISION_VIA_UPDATE"
	CodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	CodeConcurrentUpdate   = "REQUEST_CONCURRENT_UPDATE"
)
