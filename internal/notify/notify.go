// Package notify delivers deadline reminders and escalations.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/pkg/log"
)

type Kind string

const (
	KindReminder   Kind = "reminder"
	KindEscalation Kind = "escalation"
)

// Message describes a reminder or escalation about one task, milestone
// or sprint.
type Message struct {
	Kind        Kind      `json:"kind"`
	ProjectID   uint      `json:"project_id"`
	TaskID      *uint     `json:"task_id,omitempty"`
	MilestoneID *uint     `json:"milestone_id,omitempty"`
	SprintID    *uint     `json:"sprint_id,omitempty"`
	Subject     string    `json:"subject"`
	Text        string    `json:"message"`
	Due         time.Time `json:"due"`
	Recipients  []string  `json:"recipients,omitempty"`
}

// Notifier delivers a message over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Fanout delivers every message through all of its notifiers.
type Fanout struct {
	notifiers []Notifier
}

func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

func (f *Fanout) Name() string { return "fanout" }

// Notify tries every channel and joins their failures.
func (f *Fanout) Notify(ctx context.Context, msg Message) error {
	var errs []error

	for _, n := range f.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			metrics.NotificationsTotal.WithLabelValues(n.Name(), "failed").Inc()
			log.Warn("notification failed", "channel", n.Name(), "kind", msg.Kind,
				"project_id", msg.ProjectID, "error", err)
			errs = append(errs, err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(n.Name(), "sent").Inc()
	}

	return errors.Join(errs...)
}

// LogNotifier writes messages to the structured log.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, msg Message) error {
	log.Info("deadline notification",
		"kind", msg.Kind,
		"project_id", msg.ProjectID,
		"subject", msg.Subject,
		"message", msg.Text,
		"due", msg.Due.Format(time.DateOnly),
		"recipients", msg.Recipients,
	)
	return nil
}

// EventNotifier turns messages into events.
type EventNotifier struct {
	emitter *event.Emitter
}

func NewEventNotifier(emitter *event.Emitter) *EventNotifier {
	return &EventNotifier{emitter: emitter}
}

func (n *EventNotifier) Name() string { return "event" }

func (n *EventNotifier) Notify(ctx context.Context, msg Message) error {
	typ := event.TypeReminderSent
	if msg.Kind == KindEscalation {
		typ = event.TypeEscalationRaised
	}

	var taskID uint
	if msg.TaskID != nil {
		taskID = *msg.TaskID
	}

	n.emitter.Emit(ctx, event.New(typ, msg.ProjectID, taskID, msg))
	return nil
}
