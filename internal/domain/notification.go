package domain

import "time"

// Decision is the transition that triggered a notification.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// NotificationIntent is the immutable description of one email to send.
type NotificationIntent struct {
	RequestID       int64     `json:"requestId"`
	Decision        Decision  `json:"decision"`
	RecipientEmail  string    `json:"recipientEmail"`
	Subject         string    `json:"subject"`
	BodyHTML        string    `json:"bodyHtml"`
	BodyText        string    `json:"bodyText,omitempty"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	ManagerAssigned string    `json:"managerAssigned"`
	RequestorName   string    `json:"requestorName"`
}
