// Package notify carries "progress updated" events from the write path to
// whoever displays progress. Delivery is fire-and-forget: publishing never
// blocks the caller and a slow subscriber loses events instead of stalling
// submissions.
package notify

import (
	"context"
	"time"
)

// EventProgressUpdated is emitted after a student's progress rows were recomputed.
const EventProgressUpdated = "progress_updated"

// Event application-level notification
type Event struct {
	Name       string    `json:"name"`
	StudentID  string    `json:"student_id"`
	Reason     string    `json:"reason,omitempty"` // submit | delete | fix
	Synced     bool      `json:"synced"`           // false when the reconciliation backstop failed
	OccurredAt time.Time `json:"occurred_at"`
}

// NewProgressUpdated builds a progress_updated event.
func NewProgressUpdated(studentID, reason string, synced bool) Event {
	return Event{
		Name:       EventProgressUpdated,
		StudentID:  studentID,
		Reason:     reason,
		Synced:     synced,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher emits events. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Subscriber hands out event streams.
// studentID "" receives every student's events. cancel is idempotent.
type Subscriber interface {
	Subscribe(studentID string) (events <-chan Event, cancel func())
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
