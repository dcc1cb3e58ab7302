package model

import (
	"time"

	"github.com/google/uuid"
)

// Task is an opaque unit of work. Tasks travel through the queue as
// pointers and are compared by identity, never by content.
type Task struct {
	ID      uuid.UUID
	Created time.Time
}

func NewTask() *Task {
	return &Task{
		ID:      uuid.New(),
		Created: time.Now().UTC(),
	}
}

func (t *Task) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.ID.String()
}
