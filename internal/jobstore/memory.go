// Package jobstore provides an in-memory implementation of the conversion
// job store.
//
// Records are guarded by a single mutex and every read hands out a deep
// copy, so job-processing goroutines and status-polling readers never share
// mutable state. Durable backends can be substituted behind core.JobStore
// without touching the orchestrator.
package jobstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/book-expert/tts-web/internal/core"
)

// DefaultListLimit bounds ListRecent when the caller passes no limit.
const DefaultListLimit = 10

// ErrDuplicateJob is returned when creating a job with an id already in
// the store.
var ErrDuplicateJob = errors.New("conversion job already exists")

// Memory is a mutex-guarded map of conversion jobs keyed by id.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]*core.ConversionJob
}

// New creates an empty in-memory job store.
func New() *Memory {
	return &Memory{
		jobs: make(map[string]*core.ConversionJob),
	}
}

// Create stores a new job record. The job id must be unique.
func (m *Memory) Create(job *core.ConversionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	m.jobs[job.ID] = copyJob(job)

	return nil
}

// Get returns a snapshot of the job with the given id.
func (m *Memory) Get(id string) (*core.ConversionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}

	return copyJob(job), nil
}

// Update applies mutate to the stored record under the store lock, making
// each read-modify-write cycle atomic per job id, and returns a snapshot
// of the result.
func (m *Memory) Update(id string, mutate func(*core.ConversionJob)) (*core.ConversionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}

	mutate(job)

	return copyJob(job), nil
}

// ListRecent returns completed jobs, newest first, up to limit.
func (m *Memory) ListRecent(limit int) ([]*core.ConversionJob, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	completed := make([]*core.ConversionJob, 0, len(m.jobs))

	for _, job := range m.jobs {
		if job.Status == core.JobCompleted {
			completed = append(completed, copyJob(job))
		}
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})

	if len(completed) > limit {
		completed = completed[:limit]
	}

	return completed, nil
}

// copyJob deep-copies a record so callers cannot mutate stored state.
func copyJob(job *core.ConversionJob) *core.ConversionJob {
	clone := *job

	if job.Segments != nil {
		clone.Segments = make([]core.SegmentResult, len(job.Segments))
		copy(clone.Segments, job.Segments)
	}

	clone.AudioPath = copyString(job.AudioPath)
	clone.Duration = copyInt(job.Duration)
	clone.FileSize = copyInt(job.FileSize)
	clone.CompletedAt = copyTime(job.CompletedAt)

	return &clone
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}
