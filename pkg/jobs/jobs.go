// Package jobs runs external multi-stage jobs (script pipelines) outside the
// lifetime of the HTTP request that started them. Jobs can be polled, awaited
// and cancelled by ID.
package jobs

import (
	"context"
	"errors"
	"time"
)

// State is a job's lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

var (
	ErrNotFound = errors.New("job not found")
	ErrClosed   = errors.New("runner closed")
	ErrNoStages = errors.New("job has no stages")
)

// Stage is one external command of a job.
type Stage struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Spec describes a job to submit.
type Spec struct {
	Kind   string // e.g. "unfold-story.generate"
	Key    string // caller-defined grouping key, e.g. "2023-05"
	Stages []Stage
}

// StageResult is the captured outcome of one stage.
type StageResult struct {
	Name       string    `json:"name"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Key        string        `json:"key,omitempty"`
	State      State         `json:"state"`
	Stage      string        `json:"stage,omitempty"`
	Results    []StageResult `json:"results"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  time.Time     `json:"startedAt,omitzero"`
	FinishedAt time.Time     `json:"finishedAt,omitzero"`
}

// Stdout returns the captured stdout of the named stage.
func (s Snapshot) Stdout(stage string) string {
	for _, r := range s.Results {
		if r.Name == stage {
			return r.Stdout
		}
	}
	return ""
}

func (s Snapshot) clone() Snapshot {
	s.Results = append([]StageResult(nil), s.Results...)
	return s
}

// Executor runs one stage to completion.
type Executor interface {
	Run(ctx context.Context, st Stage) (stdout, stderr string, err error)
}

// Observer receives a snapshot after every state or stage transition.
// Observers run on the job goroutine and must not block for long.
type Observer func(Snapshot)
