package model

import (
	"fmt"
	"time"
)

// InjectedFault is raised by the failer once its timer expires.
type InjectedFault struct {
	After time.Duration
}

func (e InjectedFault) Error() string {
	return fmt.Sprintf("injected fault after %s", e.After)
}
