package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CZERTAINLY/poolsvc/internal/model"
	"github.com/CZERTAINLY/poolsvc/internal/queue"
	"github.com/CZERTAINLY/poolsvc/internal/shutdown"
	"github.com/CZERTAINLY/poolsvc/internal/unit"
)

var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotRunning     = errors.New("service not running")
)

type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProcessFunc handles a single task taken from the queue. A returned error
// ends the worker which called it.
type ProcessFunc func(ctx context.Context, task *model.Task) error

type Option func(*Service)

// WithProcessor replaces the default processor, which only logs the task.
func WithProcessor(fn ProcessFunc) Option {
	return func(s *Service) {
		s.process = fn
	}
}

type Service struct {
	cfg     model.Config
	process ProcessFunc
	ctx     context.Context // set by Start, carries the caller's log attributes

	queue    *queue.Queue[*model.Task]
	flag     *shutdown.Flag
	sentinel *model.Task

	mx    sync.Mutex
	state State
	units []*unit.Unit

	failed   chan struct{}
	failOnce sync.Once

	stopped chan struct{}
	stopErr error
}

func New(cfg model.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &Service{
		cfg:     cfg,
		process: logTask,
		failed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start creates the queue and the flag and starts the watcher, the
// workers, the failer and the monitor. It does not wait for any of them.
// Units are detached from cancellation of ctx, only Stop ends them.
func (s *Service) Start(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != StateCreated {
		return ErrAlreadyStarted
	}

	s.queue = queue.New[*model.Task]()
	s.flag = &shutdown.Flag{}
	s.sentinel = &model.Task{}

	ctx = context.WithoutCancel(ctx)
	s.ctx = ctx
	s.run(ctx, "watcher", s.watcher)
	for n := range s.cfg.Threads {
		s.run(ctx, fmt.Sprintf("worker-%d", n), s.worker(n))
	}
	s.run(ctx, "failer", s.failer)
	s.run(ctx, "monitor", s.monitor)

	s.state = StateRunning
	slog.InfoContext(ctx, "service started", "threads", s.cfg.Threads, "units", len(s.units))
	return nil
}

// run must be called with s.mx held.
func (s *Service) run(ctx context.Context, name string, fn unit.Func) {
	u := unit.Start(ctx, name, fn, unit.WithFailureHook(s.onFailure))
	s.units = append(s.units, u)
}

func (s *Service) onFailure(u *unit.Unit, err error) {
	slog.ErrorContext(s.ctx, "unit failed", "unit", u.Name(), "error", err)
	var perr *unit.PanicError
	if errors.As(err, &perr) {
		slog.DebugContext(s.ctx, "unit panicked", "unit", u.Name(), "stack", string(perr.Stack))
	}
	s.failOnce.Do(func() {
		close(s.failed)
	})
}

// Stop raises the shutdown flag, queues the sentinel and joins every unit.
// It returns the first failure in the order units were started, the
// remaining ones are only logged. Stop blocks until all units have
// finished. Later calls wait for the first one and return its result.
func (s *Service) Stop(ctx context.Context) error {
	s.mx.Lock()
	switch s.state {
	case StateCreated:
		s.mx.Unlock()
		return ErrNotRunning
	case StateStopping, StateStopped:
		s.mx.Unlock()
		<-s.stopped
		return s.stopErr
	}
	s.state = StateStopping
	units := s.units
	s.mx.Unlock()

	slog.InfoContext(ctx, "stopping service", "units", len(units))
	s.flag.Set()
	s.queue.Push(s.sentinel)

	var first error
	for _, u := range units {
		err := u.Join()
		if err != nil {
			slog.ErrorContext(ctx, "unit joined with failure", "unit", u.Name(), "error", err)
			if first == nil {
				first = err
			}
			continue
		}
		slog.InfoContext(ctx, "unit was successfully joined", "unit", u.Name())
	}

	s.mx.Lock()
	s.state = StateStopped
	s.stopErr = first
	s.mx.Unlock()
	close(s.stopped)
	return first
}

func (s *Service) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

// Failed returns a channel closed as soon as any unit fails. The failure
// itself is returned by Stop.
func (s *Service) Failed() <-chan struct{} {
	return s.failed
}

func logTask(ctx context.Context, task *model.Task) error {
	slog.InfoContext(ctx, "worker got task", "task", task.ID)
	return nil
}
