package models

import "fmt"

// EventType names a committed mutation.
type EventType string

const (
	TaskCreated EventType = "taskCreated"
	TaskUpdated EventType = "taskUpdated"
	TaskDeleted EventType = "taskDeleted"
)

// Event is the payload pushed to every connected client (and relayed through Kafka).
// Task is omitted for taskDeleted; ID is always set.
type Event struct {
	Type EventType `json:"type"`
	ID   int64     `json:"id"`
	Task *Task     `json:"task,omitempty"`
}

func CreatedEvent(t Task) Event {
	return Event{Type: TaskCreated, ID: t.ID, Task: &t}
}

func UpdatedEvent(t Task) Event {
	return Event{Type: TaskUpdated, ID: t.ID, Task: &t}
}

func DeletedEvent(id int64) Event {
	return Event{Type: TaskDeleted, ID: id}
}

// Validate checks that the event carries what its type requires.
func (e Event) Validate() error {
	switch e.Type {
	case TaskCreated, TaskUpdated:
		if e.Task == nil {
			return fmt.Errorf("%w: %s event without task", ErrValidation, e.Type)
		}
		if e.Task.ID != e.ID {
			return fmt.Errorf("%w: %s event id %d does not match task id %d", ErrValidation, e.Type, e.ID, e.Task.ID)
		}
	case TaskDeleted:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, e.Type)
	}
	if e.ID <= 0 {
		return fmt.Errorf("%w: event id must be positive", ErrValidation)
	}
	return nil
}
