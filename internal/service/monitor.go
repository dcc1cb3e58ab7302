package service

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/CZERTAINLY/poolsvc/internal/unit"
)

func (s *Service) monitor(ctx context.Context) error {
	slog.InfoContext(ctx, "starting monitor")
	for !s.flag.IsSet() {
		slog.InfoContext(ctx, "running units",
			"live", unit.Live(),
			"goroutines", runtime.NumGoroutine(),
			"queued", s.queue.Len())
		s.sleep(s.cfg.MonitorEach)
	}
	slog.InfoContext(ctx, "stopping monitor")
	return nil
}
