package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/jobs"
)

// Status is the persisted progress record for one month.
type Status struct {
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	JobID     string    `json:"jobId,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusStore keeps one JSON file per month under dir. The external scripts
// may write the same files.
type StatusStore struct {
	dir string
}

// NewStatusStore creates a store rooted at dir.
func NewStatusStore(dir string) *StatusStore {
	return &StatusStore{dir: dir}
}

// Path returns the file for ym.
func (s *StatusStore) Path(ym YearMonth) string {
	return filepath.Join(s.dir, fmt.Sprintf("status_%04d_%02d.json", ym.Year, ym.Month))
}

// Read returns the raw JSON for ym. found is false when no file exists.
func (s *StatusStore) Read(ym YearMonth) (data []byte, found bool, err error) {
	data, err = os.ReadFile(s.Path(ym))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read status: %w", err)
	}
	if !json.Valid(data) {
		return nil, false, fmt.Errorf("status file %s is not valid JSON", s.Path(ym))
	}
	return data, true, nil
}

// Write persists st atomically.
func (s *StatusStore) Write(ym YearMonth, st Status) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".status-*")
	if err != nil {
		return fmt.Errorf("create temp status: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(ym)); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// Observe is a jobs.Observer that mirrors month-scoped generate jobs into the store.
func (s *StatusStore) Observe(snap jobs.Snapshot) {
	if snap.Kind != KindGenerate {
		return
	}
	ym, ok := ParseYearMonth(snap.Key)
	if !ok {
		return
	}

	st := Status{
		Status:    statusName(snap.State),
		Stage:     snap.Stage,
		JobID:     snap.ID,
		Error:     snap.Error,
		UpdatedAt: time.Now(),
	}
	if err := s.Write(ym, st); err != nil {
		log.Warn().Err(err).Str("job_id", snap.ID).Msg("could not persist job status")
	}
}

func statusName(s jobs.State) string {
	switch s {
	case jobs.StateSucceeded:
		return "completed"
	default:
		return string(s)
	}
}
