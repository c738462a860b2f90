package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/events"
	"github.com/spec-kit/timeoff-service/internal/observability"
)

const (
	fallbackRecipientName = "user"
	fallbackManagerName   = "Manager"
)

var decisionEmail = template.Must(template.New("decision").Parse(
	`<p>Hi {{.Name}},</p>` +
		`<p>Your request <strong>#{{.RequestID}}</strong> from <strong>{{.Start}}</strong> to <strong>{{.End}}</strong> has been <strong>{{.Verb}}</strong>.</p>` +
		`{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}` +
		`<p>Manager: <strong>{{.Manager}}</strong></p>`))

type decisionEmailData struct {
	Name      string
	RequestID int64
	Start     string
	End       string
	Verb      string
	Reason    string
	Manager   string
}

// Directory resolves users for notification rendering.
type Directory interface {
	UserByID(ctx context.Context, id int64) (*domain.User, error)
}

// NotificationService turns request decisions into notification intents and
// hands them to the broker.
type NotificationService struct {
	directory Directory
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NotificationDependencies bundles collaborators for NotificationService.
type NotificationDependencies struct {
	Directory Directory
	Publisher events.Publisher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &NotificationService{
		directory: deps.Directory,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

// NotifyDecision publishes one intent for an approved or rejected request.
// A requester without an email address is skipped silently.
func (n *NotificationService) NotifyDecision(ctx context.Context, req *domain.Request, decision domain.Decision) error {
	requester, err := n.directory.UserByID(ctx, req.RequesterID)
	if err != nil {
		return fmt.Errorf("resolve requester %d: %w", req.RequesterID, err)
	}
	if requester == nil || strings.TrimSpace(requester.Email) == "" {
		n.logger.Debug("requester has no email; skipping notification", zap.Int64("request_id", req.ID))
		return nil
	}

	managerName := fallbackManagerName
	if req.ManagerID != nil {
		manager, err := n.directory.UserByID(ctx, *req.ManagerID)
		if err != nil {
			return fmt.Errorf("resolve manager %d: %w", *req.ManagerID, err)
		}
		if manager != nil && manager.DisplayName() != "" {
			managerName = manager.DisplayName()
		}
	}

	intent, err := BuildDecisionIntent(req, decision, requester, managerName)
	if err != nil {
		return err
	}
	msg, err := n.envelope(intent)
	if err != nil {
		return err
	}

	err = n.publisher.Publish(ctx, msg)
	n.metrics.RecordPublish(msg.Subject, err)
	if err != nil {
		return fmt.Errorf("publish %s notification: %w", decision, err)
	}
	n.logger.Info("notification published",
		zap.Int64("request_id", req.ID),
		zap.String("subject", msg.Subject),
		zap.String("message_id", msg.ID))
	return nil
}

// BuildDecisionIntent renders the email for a decision.
func BuildDecisionIntent(req *domain.Request, decision domain.Decision, requester *domain.User, managerName string) (domain.NotificationIntent, error) {
	name := requester.DisplayName()
	if name == "" {
		name = fallbackRecipientName
	}
	verb := strings.ToLower(string(decision))

	data := decisionEmailData{
		Name:      name,
		RequestID: req.ID,
		Start:     req.StartDate.Format(domain.DateLayout),
		End:       req.EndDate.Format(domain.DateLayout),
		Verb:      verb,
		Manager:   managerName,
	}
	if decision == domain.DecisionRejected && req.ManagerComment != nil {
		data.Reason = *req.ManagerComment
	}

	var html bytes.Buffer
	if err := decisionEmail.Execute(&html, data); err != nil {
		return domain.NotificationIntent{}, fmt.Errorf("render %s email: %w", decision, err)
	}

	text := fmt.Sprintf("Hi %s, your request #%d from %s to %s has been %s. Manager: %s.",
		name, req.ID, data.Start, data.End, verb, managerName)
	if data.Reason != "" {
		text += " Reason: " + data.Reason
	}

	return domain.NotificationIntent{
		RequestID:       req.ID,
		Decision:        decision,
		RecipientEmail:  requester.Email,
		Subject:         fmt.Sprintf("Your time-off request #%d was %s", req.ID, verb),
		BodyHTML:        html.String(),
		BodyText:        text,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		ManagerAssigned: managerName,
		RequestorName:   name,
	}, nil
}

func (n *NotificationService) envelope(intent domain.NotificationIntent) (events.Message, error) {
	body, err := json.Marshal(intent)
	if err != nil {
		return events.Message{}, fmt.Errorf("encode intent: %w", err)
	}
	return events.Message{
		ID:      uuid.NewString(),
		Subject: string(intent.Decision),
		Attributes: map[string]string{
			events.AttrTo:              intent.RecipientEmail,
			events.AttrStartDate:       intent.StartDate.Format(domain.DateLayout),
			events.AttrEndDate:         intent.EndDate.Format(domain.DateLayout),
			events.AttrManagerAssigned: intent.ManagerAssigned,
			events.AttrRequestID:       strconv.FormatInt(intent.RequestID, 10),
		},
		Body:        body,
		PublishedAt: n.now().UTC(),
	}, nil
}
