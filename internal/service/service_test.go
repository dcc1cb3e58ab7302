package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/poolsvc/internal/log"
	"github.com/CZERTAINLY/poolsvc/internal/model"
	"github.com/CZERTAINLY/poolsvc/internal/service"
	"github.com/CZERTAINLY/poolsvc/internal/unit"
	"github.com/stretchr/testify/require"
)

func config(threads int, timeout time.Duration) model.Config {
	cfg := model.DefaultConfig()
	cfg.Threads = threads
	cfg.Timeout = timeout
	return cfg
}

func requireInjected(t *testing.T, err error, after time.Duration) {
	t.Helper()
	require.Error(t, err)
	var fault model.InjectedFault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, after, fault.After)
	require.EqualError(t, err, model.InjectedFault{After: after}.Error())
	var perr *unit.PanicError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "failer", perr.Unit)
}

func TestService(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		svc, err := service.New(config(2, time.Second))
		require.NoError(t, err)
		require.Equal(t, service.StateCreated, svc.State())

		start := time.Now()
		require.NoError(t, svc.Start(t.Context()))
		require.Equal(t, service.StateRunning, svc.State())

		<-svc.Failed()
		require.Equal(t, time.Second, time.Since(start))

		err = svc.Stop(t.Context())
		requireInjected(t, err, time.Second)
		require.Equal(t, service.StateStopped, svc.State())

		tasks, sentinels := service.Drain(svc)
		require.Empty(t, tasks)
		require.Equal(t, 1, sentinels)
	})
}

func TestService_RealTime(t *testing.T) {
	t.Parallel()
	cfg := config(2, time.Second)
	cfg.WatchEach = 50 * time.Millisecond
	cfg.MonitorEach = 50 * time.Millisecond
	svc, err := service.New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Start(t.Context()))

	select {
	case <-svc.Failed():
	case <-time.After(2 * time.Second):
		t.Fatal("failer did not fail within 2s")
	}
	requireInjected(t, svc.Stop(t.Context()), time.Second)
}

func TestSentinel(t *testing.T) {
	t.Parallel()
	for _, threads := range []int{0, 1, 2, 3, 8, 64} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				var processed atomic.Int64
				svc, err := service.New(config(threads, time.Minute),
					service.WithProcessor(func(context.Context, *model.Task) error {
						processed.Add(1)
						return nil
					}))
				require.NoError(t, err)
				require.NoError(t, svc.Start(t.Context()))

				time.Sleep(10*time.Second + 500*time.Millisecond)
				synctest.Wait()

				requireInjected(t, svc.Stop(t.Context()), time.Minute)

				tasks, sentinels := service.Drain(svc)
				require.Equal(t, 1, sentinels)
				if threads == 0 {
					// nobody consumes: every task and the sentinel stay queued
					require.Len(t, tasks, 4)
					require.Zero(t, processed.Load())
					return
				}
				require.Empty(t, tasks)
				// watcher pushes at 0s, 3s, 6s and 9s
				require.EqualValues(t, 4, processed.Load())
			})
		})
	}
}

func TestNoWorkers(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		svc, err := service.New(config(0, 0))
		require.NoError(t, err)
		require.NoError(t, svc.Start(t.Context()))
		synctest.Wait()

		requireInjected(t, svc.Stop(t.Context()), 0)
		_, sentinels := service.Drain(svc)
		require.Equal(t, 1, sentinels)
	})
}

func TestWorkerFailure(t *testing.T) {
	t.Parallel()
	errProcess := errors.New("cannot process")
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int64
		svc, err := service.New(config(3, time.Minute),
			service.WithProcessor(func(context.Context, *model.Task) error {
				if calls.Add(1) == 1 {
					return errProcess
				}
				return nil
			}))
		require.NoError(t, err)
		require.NoError(t, svc.Start(t.Context()))

		<-svc.Failed()
		time.Sleep(5 * time.Second)
		synctest.Wait()

		// workers are joined before the failer, so their failure comes first
		err = svc.Stop(t.Context())
		require.ErrorIs(t, err, errProcess)
		require.Equal(t, "cannot process", err.Error())

		tasks, sentinels := service.Drain(svc)
		require.Empty(t, tasks)
		require.Equal(t, 1, sentinels)
		require.EqualValues(t, 2, calls.Load())
	})
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		svc, err := service.New(config(1, time.Second))
		require.NoError(t, err)

		require.ErrorIs(t, svc.Stop(t.Context()), service.ErrNotRunning)
		require.NoError(t, svc.Start(t.Context()))
		require.ErrorIs(t, svc.Start(t.Context()), service.ErrAlreadyStarted)

		var wg sync.WaitGroup
		errs := make([]error, 3)
		for i := range errs {
			wg.Go(func() {
				errs[i] = svc.Stop(t.Context())
			})
		}
		wg.Wait()
		for _, err := range errs {
			requireInjected(t, err, time.Second)
		}

		requireInjected(t, svc.Stop(t.Context()), time.Second)
		require.ErrorIs(t, svc.Start(t.Context()), service.ErrAlreadyStarted)
		require.Equal(t, service.StateStopped, svc.State())
	})
}

func TestStopIgnoresContext(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		svc, err := service.New(config(2, time.Second))
		require.NoError(t, err)
		require.NoError(t, svc.Start(ctx))
		cancel()
		synctest.Wait()
		require.Equal(t, service.StateRunning, svc.State())

		requireInjected(t, svc.Stop(t.Context()), time.Second)
	})
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()
	_, err := service.New(config(-1, time.Second))
	require.Error(t, err)
	require.ErrorContains(t, err, "threads must not be negative")
}

func TestState(t *testing.T) {
	t.Parallel()
	require.Equal(t, "created", service.StateCreated.String())
	require.Equal(t, "running", service.StateRunning.String())
	require.Equal(t, "stopping", service.StateStopping.String())
	require.Equal(t, "stopped", service.StateStopped.String())
	require.Equal(t, "state(42)", service.State(42).String())
}

// not parallel: replaces the default logger
func TestFailureLogKeepsContext(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	slog.SetDefault(log.New(&buf, false))

	ctx := log.ContextAttrs(t.Context(), slog.String("run", "failure-log"))
	svc, err := service.New(config(0, 0))
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	<-svc.Failed()
	requireInjected(t, svc.Stop(t.Context()), 0)

	var found bool
	for line := range strings.Lines(buf.String()) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] != "unit failed" {
			continue
		}
		found = true
		require.Equal(t, "failure-log", rec["run"])
		require.Equal(t, "failer", rec["unit"])
		require.Equal(t, "injected fault after 0s", rec["error"])
	}
	require.True(t, found, "no unit failed record in %s", buf.String())
}
