// Package events publishes project health changes to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// HealthChanged is emitted when a recompute moves a project's score or status.
type HealthChanged struct {
	ProjectID  string       `json:"project_id"`
	OldScore   int          `json:"old_score"`
	NewScore   int          `json:"new_score"`
	OldStatus  model.Status `json:"old_status"`
	NewStatus  model.Status `json:"new_status"`
	Trigger    string       `json:"trigger"`
	ComputedAt time.Time    `json:"computed_at"`
}

// StatusChanged reports whether the status moved.
func (e HealthChanged) StatusChanged() bool { return e.OldStatus != e.NewStatus }

// Publisher delivers health change events.
type Publisher interface {
	Publish(ctx context.Context, e HealthChanged) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, HealthChanged) error { return nil }
func (NopPublisher) Close() error                                { return nil }
