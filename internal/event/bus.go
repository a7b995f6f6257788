package event

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Type represents the type of event.
type Type string

const (
	TypeTaskUpdated       Type = "task_updated"
	TypeDependencyAdded   Type = "dependency_added"
	TypeDependencyRemoved Type = "dependency_removed"
	TypeTimelineAdjusted  Type = "timeline_adjusted"
	TypeReminderSent      Type = "reminder_sent"
	TypeEscalationRaised  Type = "escalation_raised"
	TypeReportGenerated   Type = "report_generated"
	TypeLeaveDecided      Type = "leave_decided"
	TypeExpenseSubmitted  Type = "expense_submitted"
	TypeExpenseDecided    Type = "expense_decided"
)

// Subject returns the NATS subject an event type is published on.
func (t Type) Subject() string {
	switch t {
	case TypeTaskUpdated:
		return "meridian.task.updated"
	case TypeDependencyAdded:
		return "meridian.dependency.added"
	case TypeDependencyRemoved:
		return "meridian.dependency.removed"
	case TypeTimelineAdjusted:
		return "meridian.schedule.adjusted"
	case TypeReminderSent:
		return "meridian.deadline.reminder"
	case TypeEscalationRaised:
		return "meridian.deadline.escalation"
	case TypeReportGenerated:
		return "meridian.progress.report"
	case TypeLeaveDecided:
		return "meridian.leave.decided"
	case TypeExpenseSubmitted:
		return "meridian.expense.submitted"
	case TypeExpenseDecided:
		return "meridian.expense.decided"
	}
	return "meridian.event." + string(t)
}

// Event represents a system event.
type Event struct {
	Type      Type            `json:"type"`
	ProjectID uint            `json:"project_id,omitempty"`
	TaskID    uint            `json:"task_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an event stamped with the current time. A payload that
// cannot be encoded is dropped.
func New(t Type, projectID, taskID uint, payload any) Event {
	e := Event{
		Type:      t,
		ProjectID: projectID,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}

// Filter defines criteria for receiving events.
type Filter struct {
	ProjectID uint
	Types     []Type
}

// Bus defines the event bus interface.
type Bus interface {
	Publish(e Event)
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, error)
}

type bus struct {
	subscribers map[chan Event]Filter
	mu          sync.RWMutex
}

// NewBus creates a new in-process event bus.
func NewBus() Bus {
	return &bus{
		subscribers: make(map[chan Event]Filter),
	}
}

func (b *bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, filter := range b.subscribers {
		if filter.matches(e) {
			select {
			case ch <- e:
			default:
				// slow subscriber
			}
		}
	}
}

func (b *bus) Subscribe(ctx context.Context, filter Filter) (<-chan Event, error) {
	ch := make(chan Event, 100)

	b.mu.Lock()
	b.subscribers[ch] = filter
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

func (f Filter) matches(e Event) bool {
	if f.ProjectID != 0 && f.ProjectID != e.ProjectID {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Type) {
		return false
	}
	return true
}
