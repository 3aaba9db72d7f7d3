// Package events defines change notifications published after a successful sync write.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	CategoryCreated = "category.created"
	CategoryRemoved = "category.removed"
	TaskAdded       = "task.added"
	TaskRemoved     = "task.removed"
)

// Event describes one confirmed change to a user document. Consumers can use it
// for logging or analytics without reading the document itself.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	CategoryID string    `json:"category_id"`
	TaskID     string    `json:"task_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
