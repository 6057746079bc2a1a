package sysnotify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Notification types and severities.
const (
	TypeGeneric    = "generic"
	SeverityNormal = "normal"
	SeverityUrgent = "urgent"
)

// DetailException is the details key carrying the failure description.
const DetailException = "exception"

// Notification is one operational notification.
type Notification struct {
	ID        string            `json:"id"`
	Node      string            `json:"node"`
	Type      string            `json:"type"`
	Severity  string            `json:"severity"`
	Details   map[string]string `json:"details"`
	CreatedAt time.Time         `json:"created_at"`
}

// Publisher stores a notification unless one of the same type is pending.
type Publisher interface {
	// PublishIfFirst reports whether n was stored.
	PublishIfFirst(ctx context.Context, n Notification) (bool, error)
}

// Store is a Publisher that can also list and dismiss notifications.
type Store interface {
	Publisher
	SystemNotifications(ctx context.Context) ([]Notification, error)
	// DismissSystemNotification reports whether a notification of typ existed.
	DismissSystemNotification(ctx context.Context, typ string) (bool, error)
}

// Service reports notification failures as generic system notifications.
type Service struct {
	pub  Publisher
	node string
	now  func() time.Time
	log  *slog.Logger
}

// NewService returns a Service publishing to pub on behalf of node.
func NewService(pub Publisher, node string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pub: pub, node: node, now: time.Now, log: log}
}

// ReportFailure publishes a generic, normal-severity notification whose
// "exception" detail is detail.
func (s *Service) ReportFailure(ctx context.Context, detail string) error {
	n := Notification{
		ID:        uuid.NewString(),
		Node:      s.node,
		Type:      TypeGeneric,
		Severity:  SeverityNormal,
		Details:   map[string]string{DetailException: detail},
		CreatedAt: s.now().UTC(),
	}
	published, err := s.pub.PublishIfFirst(ctx, n)
	if err != nil {
		return fmt.Errorf("sysnotify: publish: %w", err)
	}
	if !published {
		s.log.Debug("sysnotify: notification of this type already pending", "type", n.Type)
	}
	return nil
}
