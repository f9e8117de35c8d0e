// Package core defines the domain types and interfaces for the tts-web service.
package core

import (
	"context"
	"errors"
	"time"
)

// JobStatus is the lifecycle state of a conversion job. Transitions are
// forward-only: pending -> processing -> completed | failed.
type JobStatus string

// Job lifecycle states.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// SegmentStatus is the outcome of converting one text chunk.
type SegmentStatus string

// Segment states.
const (
	SegmentPending    SegmentStatus = "pending"
	SegmentProcessing SegmentStatus = "processing"
	SegmentCompleted  SegmentStatus = "completed"
	SegmentFailed     SegmentStatus = "failed"
)

// SegmentResult records the outcome of converting one chunk. Index is the
// 0-based position in the chunk sequence and defines combination order.
type SegmentResult struct {
	Index     int           `json:"index"`
	Text      string        `json:"text"`
	WordCount int           `json:"wordCount"`
	Status    SegmentStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// ConversionJob represents one text-to-speech request and its lifecycle.
// AudioPath, Duration, FileSize and CompletedAt stay nil until the job
// reaches a terminal state.
type ConversionJob struct {
	ID          string          `json:"id"`
	Text        string          `json:"text"`
	Voice       string          `json:"voice"`
	Speed       string          `json:"speed"`
	Format      string          `json:"format"`
	Status      JobStatus       `json:"status"`
	Segments    []SegmentResult `json:"segments"`
	AudioPath   *string         `json:"audioPath"`
	Duration    *int            `json:"duration"`
	FileSize    *int            `json:"fileSize"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt"`
}

// SynthesisOptions are the per-request synthesis parameters.
type SynthesisOptions struct {
	Voice  string
	Speed  float64
	Format string
}

// CombineResult is the output of combining per-chunk audio buffers. Buffer
// and Size are byte-accurate; Duration is a best-effort estimate in seconds.
type CombineResult struct {
	Buffer   []byte
	Duration int
	Size     int
}

// Synthesizer converts one text chunk into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error)
}

// Combiner merges per-chunk audio buffers, in order, into a single buffer.
type Combiner interface {
	Combine(ctx context.Context, buffers [][]byte, format string) (CombineResult, error)
}

// JobStore holds conversion records keyed by id. Update applies mutate
// under the store's lock so read-modify-write cycles on one job cannot
// interleave.
type JobStore interface {
	Create(job *ConversionJob) error
	Get(id string) (*ConversionJob, error)
	Update(id string, mutate func(*ConversionJob)) (*ConversionJob, error)
	ListRecent(limit int) ([]*ConversionJob, error)
}

// ArtifactStore persists and serves combined audio artifacts keyed by
// filename.
type ArtifactStore interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
	Load(ctx context.Context, filename string) ([]byte, error)
}

// CompletionNotifier announces a completed conversion to downstream
// consumers. Publish failures must not fail the job.
type CompletionNotifier interface {
	NotifyCompleted(ctx context.Context, job *ConversionJob, artifactKey string) error
}

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("conversion job not found")

// Validation errors for the synthesis parameter enumerations.
var (
	ErrTextEmpty         = errors.New("text cannot be empty")
	ErrUnsupportedVoice  = errors.New("unsupported voice")
	ErrUnsupportedSpeed  = errors.New("unsupported speed")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// SupportedVoices is the fixed voice enumeration accepted by the provider.
var SupportedVoices = []string{
	"alloy", "echo", "fable", "onyx", "nova", "shimmer", "ash", "coral", "sage",
}

// SupportedSpeeds is the discrete set of accepted speed values.
var SupportedSpeeds = []string{"0.75", "1.0", "1.25", "1.5"}

// SupportedFormats is the set of accepted output container formats.
var SupportedFormats = []string{"mp3", "wav", "ogg"}

// IsSupportedVoice reports whether voice is in the fixed enumeration.
func IsSupportedVoice(voice string) bool {
	return contains(SupportedVoices, voice)
}

// IsSupportedSpeed reports whether speed is in the discrete speed set.
func IsSupportedSpeed(speed string) bool {
	return contains(SupportedSpeeds, speed)
}

// IsSupportedFormat reports whether format is a supported container.
func IsSupportedFormat(format string) bool {
	return contains(SupportedFormats, format)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
