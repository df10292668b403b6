// Package scheduler runs document batches in the background.
//
// Batches for the same user run one at a time in submission order, so each
// batch reads a graph snapshot that already contains the previous batch's
// writes. Batches of different users run concurrently up to a limit. An
// optional Locker extends the per-user serialization across processes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundprediction/conceptgraph/pkg/utils"
)

// DefaultMaxConcurrent is used when Options.MaxConcurrent is not positive.
const DefaultMaxConcurrent = 4

// ErrClosed is returned by Submit after Shutdown has been called.
var ErrClosed = errors.New("scheduler is shut down")

// Job is one unit of background work.
type Job func(ctx context.Context) error

// Gauge tracks the number of queued and running jobs. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

// Options configures a Scheduler.
type Options struct {
	MaxConcurrent int
	Locker        Locker
	LockPrefix    string
	Logger        *slog.Logger
	Gauge         Gauge

	// OnDone is called after every job with its final error.
	OnDone func(userID, jobID string, err error)
}

type task struct {
	id string
	fn Job
}

type userQueue struct {
	tasks   []task
	running bool
}

// Scheduler serializes jobs per user.
type Scheduler struct {
	mu     sync.Mutex
	queues map[string]*userQueue
	closed bool

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	locker     Locker
	lockPrefix string
	gauge      Gauge
	onDone     func(userID, jobID string, err error)
	logger     *slog.Logger
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	max := opts.MaxConcurrent
	if max <= 0 {
		max = DefaultMaxConcurrent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.LockPrefix
	if prefix == "" {
		prefix = "conceptgraph:batch:"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queues:     make(map[string]*userQueue),
		sem:        make(chan struct{}, max),
		ctx:        ctx,
		cancel:     cancel,
		locker:     opts.Locker,
		lockPrefix: prefix,
		gauge:      opts.Gauge,
		onDone:     opts.OnDone,
		logger:     logger,
	}
}

// Submit queues fn behind any pending jobs of userID and returns immediately.
func (s *Scheduler) Submit(userID, jobID string, fn Job) error {
	if userID == "" {
		return fmt.Errorf("scheduler: user id is required")
	}
	if fn == nil {
		return fmt.Errorf("scheduler: job is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	q, ok := s.queues[userID]
	if !ok {
		q = &userQueue{}
		s.queues[userID] = q
	}
	q.tasks = append(q.tasks, task{id: jobID, fn: fn})
	if s.gauge != nil {
		s.gauge.Inc()
	}

	if !q.running {
		q.running = true
		s.wg.Add(1)
		go s.drain(userID, q)
	}
	return nil
}

// Pending returns the number of queued or running jobs for userID.
func (s *Scheduler) Pending(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[userID]
	if !ok {
		return 0
	}
	n := len(q.tasks)
	if q.running {
		// The running job has already been popped.
		n++
	}
	return n
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx
// ends first, the context passed to jobs is cancelled, jobs that have not
// started fail, and ctx.Err() is returned without waiting further.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// drain runs the user's jobs until the queue is empty.
func (s *Scheduler) drain(userID string, q *userQueue) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			delete(s.queues, userID)
			s.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks = q.tasks[1:]
		s.mu.Unlock()

		err := s.run(userID, t)
		s.finish(userID, t.id, err)
	}
}

func (s *Scheduler) finish(userID, jobID string, err error) {
	if s.gauge != nil {
		s.gauge.Dec()
	}
	if s.onDone != nil {
		s.onDone(userID, jobID, err)
	}
}

func (s *Scheduler) run(userID string, t task) (err error) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		return fmt.Errorf("job %s not started: %w", t.id, s.ctx.Err())
	}
	defer func() { <-s.sem }()

	log := s.logger.With("user_id", userID, "job_id", t.id)

	if s.locker != nil {
		unlock, err := s.locker.Lock(s.ctx, s.lockPrefix+userID)
		if err != nil {
			return fmt.Errorf("acquire batch lock: %w", err)
		}
		defer func() {
			// Release even when the scheduler context is already cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if uerr := unlock(ctx); uerr != nil {
				log.Warn("Failed to release batch lock", "error", uerr)
			}
		}()
	}

	defer utils.RecoverAsError(&err)

	start := time.Now()
	log.Debug("Starting job")
	err = t.fn(s.ctx)
	log.Debug("Job finished", "duration", time.Since(start), "error", err)
	return err
}
