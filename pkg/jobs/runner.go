package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Runner executes submitted jobs in the background. Stages of a job run
// sequentially; at most Concurrency jobs run at once, the rest queue.
type Runner struct {
	exec      Executor
	sem       *semaphore.Weighted
	observers []Observer
	retain    int
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

type job struct {
	snap   Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency sets how many jobs may run at once (default 1).
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithRetention sets how many finished jobs are kept for polling (default 100).
func WithRetention(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.retain = n
		}
	}
}

// NewRunner creates a runner backed by exec.
func NewRunner(exec Executor, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		exec:   exec,
		sem:    semaphore.NewWeighted(1),
		retain: 100,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Submit queues a job and returns its ID.
func (r *Runner) Submit(spec Spec) (string, error) {
	if len(spec.Stages) == 0 {
		return "", ErrNoStages
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	ctx, cancel := context.WithCancel(r.ctx)
	j := &job{
		snap: Snapshot{
			ID:        uuid.NewString(),
			Kind:      spec.Kind,
			Key:       spec.Key,
			State:     StateQueued,
			CreatedAt: r.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.jobs[j.snap.ID] = j
	r.pruneLocked()
	r.wg.Add(1)
	r.mu.Unlock()

	log.Info().Str("job_id", j.snap.ID).Str("kind", spec.Kind).Str("key", spec.Key).Msg("job submitted")
	r.notify(j)

	go r.run(ctx, j, spec.Stages)
	return j.snap.ID, nil
}

// Get returns a snapshot of the job.
func (r *Runner) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snap.clone(), true
}

// List returns snapshots of all retained jobs, newest first.
func (r *Runner) List() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.snap.clone())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Wait blocks until the job finishes or ctx is done. Cancelling ctx does not
// cancel the job.
func (r *Runner) Wait(ctx context.Context, id string) (Snapshot, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	select {
	case <-j.done:
		s, _ := r.Get(id)
		return s, nil
	case <-ctx.Done():
		s, _ := r.Get(id)
		return s, ctx.Err()
	}
}

// Cancel stops a queued or running job. Cancelling a finished job is a no-op.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	j.cancel()
	return nil
}

// Close cancels every job and waits for their goroutines to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, j *job, stages []Stage) {
	defer r.wg.Done()
	defer close(j.done)
	defer j.cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(j, StateCanceled, "canceled before start")
		return
	}
	defer r.sem.Release(1)

	r.update(j, func(s *Snapshot) {
		s.State = StateRunning
		s.StartedAt = r.now()
	})

	for _, st := range stages {
		r.update(j, func(s *Snapshot) { s.Stage = st.Name })

		var (
			stageCtx context.Context
			cancel   context.CancelFunc
		)
		if st.Timeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, st.Timeout)
		} else {
			stageCtx, cancel = context.WithCancel(ctx)
		}
		res := StageResult{Name: st.Name, StartedAt: r.now()}
		stdout, stderr, err := r.exec.Run(stageCtx, st)
		cancel()

		res.Stdout, res.Stderr, res.FinishedAt = stdout, stderr, r.now()
		if err != nil {
			res.Error = err.Error()
		}
		r.update(j, func(s *Snapshot) { s.Results = append(s.Results, res) })

		if err != nil {
			state := StateFailed
			if ctx.Err() != nil {
				state = StateCanceled
			}
			r.finish(j, state, err.Error())
			return
		}
	}

	r.finish(j, StateSucceeded, "")
}

func (r *Runner) finish(j *job, state State, msg string) {
	r.update(j, func(s *Snapshot) {
		s.State = state
		s.Error = msg
		s.FinishedAt = r.now()
	})

	evt := log.Info()
	if state != StateSucceeded {
		evt = log.Warn().Str("error", msg)
	}
	evt.Str("job_id", j.snap.ID).Str("state", string(state)).Msg("job finished")
}

// update mutates the snapshot under lock and notifies observers outside it.
func (r *Runner) update(j *job, fn func(*Snapshot)) {
	r.mu.Lock()
	fn(&j.snap)
	r.mu.Unlock()
	r.notify(j)
}

func (r *Runner) notify(j *job) {
	if len(r.observers) == 0 {
		return
	}
	r.mu.Lock()
	snap := j.snap.clone()
	r.mu.Unlock()
	for _, o := range r.observers {
		o(snap)
	}
}

// pruneLocked drops the oldest finished jobs beyond the retention limit.
func (r *Runner) pruneLocked() {
	var finished []*job
	for _, j := range r.jobs {
		if j.snap.State.Terminal() {
			finished = append(finished, j)
		}
	}
	if len(finished) <= r.retain {
		return
	}
	sort.Slice(finished, func(i, k int) bool {
		return finished[i].snap.FinishedAt.Before(finished[k].snap.FinishedAt)
	})
	for _, j := range finished[:len(finished)-r.retain] {
		delete(r.jobs, j.snap.ID)
	}
}
