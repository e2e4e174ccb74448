package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scenariokit/internal/logger"
	scenarioerrors "scenariokit/pkg/errors"
)

// Job is one unit of work handed to the dispatcher.
type Job func(ctx context.Context) (any, error)

// Future is the handle returned by Start. Callers may wait on it or ignore
// it entirely.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the job has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finishes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

const (
	defaultRunTimeout = 5 * time.Second
	startupTimeout    = 2 * time.Second
	shutdownTimeout   = 2 * time.Second
)

// Dispatcher bridges synchronous callers into the execution substrate. One
// supervisor goroutine executes Run jobs serially, so every mutation of
// plugin and scenario state happens on that single goroutine and no
// additional locking is needed elsewhere. Start launches long-lived
// background work (the event bus loop) that owns its own state.
type Dispatcher struct {
	jobs       chan *queuedJob
	ready      chan struct{}
	stop       chan struct{}
	workerDone chan struct{}
	stopOnce   sync.Once

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	runTimeout time.Duration
	log        *logger.Logger
}

type queuedJob struct {
	fn     Job
	ctx    context.Context
	future *Future
}

// Option tweaks dispatcher construction.
type Option func(*Dispatcher)

// WithRunTimeout overrides the default deadline applied to Run calls.
func WithRunTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.runTimeout = d
		}
	}
}

// New starts the supervisor goroutine and waits for it to signal readiness
// before any work can be scheduled.
func New(log *logger.Logger, opts ...Option) (*Dispatcher, error) {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		jobs:       make(chan *queuedJob),
		ready:      make(chan struct{}),
		stop:       make(chan struct{}),
		workerDone: make(chan struct{}),
		bgCtx:      bgCtx,
		bgCancel:   bgCancel,
		runTimeout: defaultRunTimeout,
		log:        log.WithComponent("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}

	go d.loop()

	select {
	case <-d.ready:
		return d, nil
	case <-time.After(startupTimeout):
		bgCancel()
		return nil, scenarioerrors.NewTimeoutError("dispatcher startup", startupTimeout.String())
	}
}

func (d *Dispatcher) loop() {
	close(d.ready)
	for {
		select {
		case qj := <-d.jobs:
			d.execute(qj)
		case <-d.stop:
			// Drain jobs already queued before the stop signal.
			for {
				select {
				case qj := <-d.jobs:
					d.execute(qj)
				default:
					close(d.workerDone)
					return
				}
			}
		}
	}
}

func (d *Dispatcher) execute(qj *queuedJob) {
	defer func() {
		if r := recover(); r != nil {
			qj.future.complete(nil, scenarioerrors.NewExecutionError("dispatch", fmt.Errorf("job panicked: %v", r)))
		}
	}()
	value, err := qj.fn(qj.ctx)
	qj.future.complete(value, err)
}

// Run schedules fn on the supervisor goroutine and blocks until it finishes
// or the deadline elapses. The deadline covers both queueing and execution;
// on expiry the job's context is cancelled and a TimeoutError returned.
func (d *Dispatcher) Run(ctx context.Context, fn Job) (any, error) {
	return d.RunWithTimeout(ctx, fn, d.runTimeout)
}

// RunWithTimeout behaves like Run with an explicit deadline. A polling
// plugin must be given a deadline at least as large as its own SLA or it is
// aborted from the outside without a timeout status being recorded.
func (d *Dispatcher) RunWithTimeout(ctx context.Context, fn Job, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = d.runTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	future := newFuture()
	qj := &queuedJob{fn: fn, ctx: jobCtx, future: future}

	select {
	case d.jobs <- qj:
	case <-d.stop:
		return nil, scenarioerrors.NewExecutionError("dispatch", fmt.Errorf("dispatcher stopped"))
	case <-jobCtx.Done():
		return nil, scenarioerrors.NewTimeoutError("dispatch", timeout.String())
	}

	select {
	case <-future.done:
		return future.value, future.err
	case <-jobCtx.Done():
		return nil, scenarioerrors.NewTimeoutError("dispatch", timeout.String())
	}
}

// Start launches fn as fire-and-forget background work and returns a Future
// the caller may poll or ignore. Used to start the event bus's perpetual
// consumption loop exactly once per process lifetime; background work must
// own its state, it does not share the supervisor goroutine.
func (d *Dispatcher) Start(fn Job) *Future {
	future := newFuture()

	select {
	case <-d.stop:
		future.complete(nil, scenarioerrors.NewExecutionError("dispatch", fmt.Errorf("dispatcher stopped")))
		return future
	default:
	}

	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				future.complete(nil, scenarioerrors.NewExecutionError("dispatch", fmt.Errorf("background job panicked: %v", r)))
			}
		}()
		value, err := fn(d.bgCtx)
		future.complete(value, err)
	}()

	return future
}

// Stop requests shutdown, drains queued work and joins with a bounded wait.
// Idempotent and best-effort on an already-stopped dispatcher.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)

		select {
		case <-d.workerDone:
		case <-time.After(shutdownTimeout):
			d.log.Warn("supervisor did not drain within shutdown window")
		}

		d.bgCancel()

		bgDone := make(chan struct{})
		go func() {
			d.bg.Wait()
			close(bgDone)
		}()
		select {
		case <-bgDone:
		case <-time.After(shutdownTimeout):
			d.log.Warn("background jobs still running at shutdown")
		}
	})
}
