package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/poolsvc/internal/model"
)

// failer panics once Timeout has passed. It ignores the shutdown flag.
func (s *Service) failer(ctx context.Context) error {
	slog.InfoContext(ctx, "starting failer", "timeout", s.cfg.Timeout)
	time.Sleep(s.cfg.Timeout)
	panic(model.InjectedFault{After: s.cfg.Timeout})
}
