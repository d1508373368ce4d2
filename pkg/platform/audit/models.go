package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategorySecurity covers rejected logins and access violations.
	CategorySecurity EventCategory = "security"
	// CategoryCompliance covers account lifecycle: creation and role changes.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine successful activity.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventLoginSucceeded    AuditEvent = "login_succeeded"
	EventLoginFailed       AuditEvent = "login_failed"
	EventDevLogin          AuditEvent = "dev_login"
	EventUserCreated       AuditEvent = "user_created"
	EventRolePromoted      AuditEvent = "role_promoted"
	EventLogout            AuditEvent = "logout"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLoginFailed:       CategorySecurity,
	EventDevLogin:          CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,

	EventUserCreated:  CategoryCompliance,
	EventRolePromoted: CategoryCompliance,

	EventLoginSucceeded: CategoryOperations,
	EventLogout:         CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from login flows. UserID is empty for failures that never
// reached reconciliation.
type Event struct {
	ID         string        `json:"id"`
	Category   EventCategory `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
	Action     AuditEvent    `json:"action"`
	UserID     string        `json:"user_id,omitempty"`
	TelegramID int64         `json:"telegram_id,omitempty"`
	Role       string        `json:"role,omitempty"`
	Flow       string        `json:"flow,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	IP         string        `json:"ip,omitempty"`
	Device     string        `json:"device,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
}

// Store persists events and returns the most recent ones first.
type Store interface {
	Append(ctx context.Context, event Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}
