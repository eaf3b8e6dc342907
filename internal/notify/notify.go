// Package notify delivers lifecycle events to whoever is listening. Delivery
// happens after the change is committed and a failed delivery never undoes it.
package notify

import (
	"errors"
	"log/slog"
	"sync"
)

// Event kinds.
const (
	KindProject  = "project"
	KindSprint   = "sprint"
	KindItem     = "item"
	KindTeam     = "team"
	KindReminder = "reminder"
)

// Notifier receives lifecycle events. activity names the project or sprint
// the event is about.
type Notifier interface {
	Notify(activity, kind, event string) error
}

// Log writes every event to a structured logger.
type Log struct {
	Logger *slog.Logger
}

// NewLog returns a Log notifier, falling back to slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{Logger: logger}
}

func (l *Log) Notify(activity, kind, event string) error {
	l.Logger.Info("notify", "activity", activity, "kind", kind, "event", event)
	return nil
}

// Event is one recorded notification.
type Event struct {
	Activity string
	Kind     string
	Event    string
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error // returned from every Notify call when set
}

func (r *Recorder) Notify(activity, kind, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Activity: activity, Kind: kind, Event: event})
	return r.Err
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(activity, kind, event string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(activity, kind, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(string, string, string) error { return nil }
