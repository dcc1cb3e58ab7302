package unit

import (
	"fmt"
)

// PanicError is a panic recovered inside a unit. Error reports the message
// of the panic value as is.
type PanicError struct {
	Unit  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Unwrap exposes a panic value which is an error, so errors.Is and
// errors.As see the original failure.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
