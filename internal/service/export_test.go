package service

import "github.com/CZERTAINLY/poolsvc/internal/model"

// Drain empties the queue of a stopped service and returns the tasks left
// behind together with the number of sentinels found.
func Drain(s *Service) (tasks []*model.Task, sentinels int) {
	for s.queue.Len() > 0 {
		task := s.queue.Pop()
		if task == s.sentinel {
			sentinels++
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, sentinels
}
