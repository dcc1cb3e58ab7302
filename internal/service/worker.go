package service

import (
	"context"
	"log/slog"
)

func (s *Service) worker(n int) func(context.Context) error {
	return func(ctx context.Context) error {
		slog.InfoContext(ctx, "starting worker", "n", n)
		for {
			task := s.queue.Pop()
			if task == s.sentinel {
				// hand the sentinel over to the next worker
				s.queue.Push(task)
				break
			}
			if err := s.process(ctx, task); err != nil {
				slog.ErrorContext(ctx, "processing task failed", "n", n, "task", task.ID)
				return err
			}
		}
		slog.InfoContext(ctx, "stopping worker", "n", n)
		return nil
	}
}
