package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/poolsvc/internal/model"
)

// watcher produces a new task every WatchEach until the flag is set.
func (s *Service) watcher(ctx context.Context) error {
	slog.InfoContext(ctx, "starting watcher")
	for !s.flag.IsSet() {
		task := model.NewTask()
		s.queue.Push(task)
		slog.DebugContext(ctx, "task queued", "task", task.ID)
		s.sleep(s.cfg.WatchEach)
	}
	slog.InfoContext(ctx, "stopping watcher")
	return nil
}

// sleep waits for d or until the flag is set.
func (s *Service) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.flag.Done():
	}
}
