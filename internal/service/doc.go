// Package service runs a small in-process worker pool: one watcher
// producing tasks, N workers consuming them, a monitor reporting the number
// of live units and a failer which deliberately panics after a delay.
//
// Overview
// The Service owns the task queue, the shutdown flag and the registry of
// started units. Each role runs inside a unit.Unit, so a failure of any of
// them is captured on its goroutine and returned when the Service joins it.
//
// Data flow:
//
//	Service.Start
//	    |-- watcher ---- Push(task) ---->+
//	    |                                |  queue.Queue[*model.Task]
//	    |-- worker-0..N-1 <-- Pop() -----+
//	    |-- failer (sleep, panic)
//	    |-- monitor (report unit.Live())
//
//	Service.Stop
//	    flag.Set()            stops watcher and monitor
//	    queue.Push(sentinel)  stops workers, one after another
//	    Join every unit       returns the first captured failure
//
// Shutdown of the workers uses a single sentinel task. A worker which pops
// the sentinel pushes the very same pointer back before it returns, so the
// next worker blocked in Pop sees it too. N workers exit after N round
// trips and the queue never holds more than one sentinel. Tasks queued
// before the sentinel are drained first, tasks the watcher manages to push
// after it are processed only by workers which have not exited yet.
//
// Invariants:
//   - Units are registered only by Start, the registry is read only by Stop.
//   - The shutdown flag never goes back to false.
//   - Stop joins every unit even after one of them failed.
//   - The failer is never signalled, Stop waits for its timer.
//
// internal/service/service_test.go shows the complete life cycle.
package service
