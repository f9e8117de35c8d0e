// Package orchestrator coordinates the end-to-end text-to-speech pipeline:
// chunk the text, synthesize each chunk, record per-chunk progress, combine
// the audio, and persist the final artifact.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-web/internal/chunker"
	"github.com/book-expert/tts-web/internal/core"
	"github.com/google/uuid"
)

// DefaultChunkTimeout bounds a single synthesis call so a hung provider
// cannot pin a job in processing forever.
const DefaultChunkTimeout = 90 * time.Second

// SubmitRequest carries the validated-at-the-boundary submission fields.
type SubmitRequest struct {
	Text   string
	Voice  string
	Speed  string
	Format string
}

// Options tune orchestration behavior. Zero values select defaults; the
// Notifier is optional.
type Options struct {
	MaxChunkSize int
	ChunkTimeout time.Duration
	Notifier     core.CompletionNotifier
}

// Orchestrator runs conversion jobs. Chunks within one job are synthesized
// strictly in index order; distinct jobs run concurrently with no
// coordination beyond the shared job store.
type Orchestrator struct {
	store        core.JobStore
	synthesizer  core.Synthesizer
	combiner     core.Combiner
	artifacts    core.ArtifactStore
	notifier     core.CompletionNotifier
	maxChunkSize int
	chunkTimeout time.Duration
	log          *logger.Logger
}

// New creates an orchestrator over the given collaborators.
func New(
	store core.JobStore,
	synthesizer core.Synthesizer,
	audioCombiner core.Combiner,
	artifacts core.ArtifactStore,
	log *logger.Logger,
	opts Options,
) *Orchestrator {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = chunker.DefaultMaxChunkSize
	}

	if opts.ChunkTimeout <= 0 {
		opts.ChunkTimeout = DefaultChunkTimeout
	}

	return &Orchestrator{
		store:        store,
		synthesizer:  synthesizer,
		combiner:     audioCombiner,
		artifacts:    artifacts,
		notifier:     opts.Notifier,
		maxChunkSize: opts.MaxChunkSize,
		chunkTimeout: opts.ChunkTimeout,
		log:          log,
	}
}

// Submit validates the request, creates a pending job record, and starts
// processing in the background. It returns as soon as the record exists;
// callers poll the job store for progress.
func (o *Orchestrator) Submit(_ context.Context, req SubmitRequest) (*core.ConversionJob, error) {
	err := validate(req)
	if err != nil {
		return nil, err
	}

	job := &core.ConversionJob{
		ID:        uuid.NewString(),
		Text:      req.Text,
		Voice:     req.Voice,
		Speed:     req.Speed,
		Format:    req.Format,
		Status:    core.JobPending,
		Segments:  []core.SegmentResult{},
		CreatedAt: time.Now(),
	}

	err = o.store.Create(job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}

	// The submission request's context ends with the HTTP response; the
	// job keeps its own lifetime.
	go o.process(context.Background(), job.ID)

	return job, nil
}

func validate(req SubmitRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return core.ErrTextEmpty
	}

	if !core.IsSupportedVoice(req.Voice) {
		return fmt.Errorf("%w: %q", core.ErrUnsupportedVoice, req.Voice)
	}

	if !core.IsSupportedSpeed(req.Speed) {
		return fmt.Errorf("%w: %q (supported: %s)",
			core.ErrUnsupportedSpeed, req.Speed,
			strings.Join(core.SupportedSpeeds, ", "))
	}

	if !core.IsSupportedFormat(req.Format) {
		return fmt.Errorf("%w: %q (supported: %s)",
			core.ErrUnsupportedFormat, req.Format,
			strings.Join(core.SupportedFormats, ", "))
	}

	return nil
}

// process runs one job to a terminal state. Per-chunk failures are
// recorded on the segment list and do not fail the job as long as at
// least one chunk produced audio.
func (o *Orchestrator) process(ctx context.Context, jobID string) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			o.log.Error("Conversion %s panicked: %v", jobID, recovered)
			o.failJob(jobID)
		}
	}()

	job, err := o.store.Update(jobID, func(j *core.ConversionJob) {
		j.Status = core.JobProcessing
	})
	if err != nil {
		o.log.Error("Failed to start conversion %s: %v", jobID, err)

		return
	}

	chunks := chunker.Split(job.Text, o.maxChunkSize)
	if len(chunks) == 0 {
		o.log.Error("Conversion %s produced no chunks", jobID)
		o.failJob(jobID)

		return
	}

	o.log.Info("Processing %d chunks for conversion %s", len(chunks), jobID)

	buffers := o.synthesizeChunks(ctx, job, chunks)
	if len(buffers) == 0 {
		o.log.Error("Conversion %s: no chunks were synthesized successfully", jobID)
		o.failJob(jobID)

		return
	}

	result, err := o.combiner.Combine(ctx, buffers, job.Format)
	if err != nil {
		o.log.Error("Conversion %s: failed to combine audio: %v", jobID, err)
		o.failJob(jobID)

		return
	}

	filename := fmt.Sprintf("%s.%s", job.ID, job.Format)

	publicPath, err := o.artifacts.Save(ctx, filename, result.Buffer)
	if err != nil {
		o.log.Error("Conversion %s: failed to persist artifact: %v", jobID, err)
		o.failJob(jobID)

		return
	}

	completedAt := time.Now()

	completed, err := o.store.Update(jobID, func(j *core.ConversionJob) {
		j.Status = core.JobCompleted
		j.AudioPath = &publicPath
		j.Duration = &result.Duration
		j.FileSize = &result.Size
		j.CompletedAt = &completedAt
	})
	if err != nil {
		o.log.Error("Conversion %s: failed to record completion: %v", jobID, err)

		return
	}

	o.log.Info("Conversion %s completed: %d bytes, ~%d seconds", jobID, result.Size, result.Duration)

	if o.notifier != nil {
		notifyErr := o.notifier.NotifyCompleted(ctx, completed, filename)
		if notifyErr != nil {
			o.log.Warn("Conversion %s: completion notification failed: %v", jobID, notifyErr)
		}
	}
}

// synthesizeChunks converts chunks sequentially in index order, appending
// one segment record per attempt and persisting after every attempt so
// status polling reflects live progress. Failed chunks contribute nothing
// to the returned buffers.
func (o *Orchestrator) synthesizeChunks(
	ctx context.Context,
	job *core.ConversionJob,
	chunks []string,
) [][]byte {
	speed, _ := strconv.ParseFloat(job.Speed, 64)

	opts := core.SynthesisOptions{
		Voice:  job.Voice,
		Speed:  speed,
		Format: job.Format,
	}

	buffers := make([][]byte, 0, len(chunks))

	for index, chunk := range chunks {
		segment := core.SegmentResult{
			Index:     index,
			Text:      chunk,
			WordCount: len(strings.Fields(chunk)),
			Status:    core.SegmentCompleted,
		}

		chunkCtx, cancel := context.WithTimeout(ctx, o.chunkTimeout)
		audio, err := o.synthesizer.Synthesize(chunkCtx, chunk, opts)

		cancel()

		if err != nil {
			o.log.Error("Conversion %s: chunk %d failed: %v", job.ID, index, err)

			segment.Status = core.SegmentFailed
			segment.Error = err.Error()
		} else {
			buffers = append(buffers, audio)
		}

		_, updateErr := o.store.Update(job.ID, func(j *core.ConversionJob) {
			j.Segments = append(j.Segments, segment)
		})
		if updateErr != nil {
			o.log.Error("Conversion %s: failed to record segment %d: %v", job.ID, index, updateErr)
		}
	}

	return buffers
}

// failJob moves the job to its terminal failed state. No partial artifact
// is persisted for a failed job.
func (o *Orchestrator) failJob(jobID string) {
	completedAt := time.Now()

	_, err := o.store.Update(jobID, func(j *core.ConversionJob) {
		j.Status = core.JobFailed
		j.CompletedAt = &completedAt
	})
	if err != nil {
		o.log.Error("Failed to mark conversion %s as failed: %v", jobID, err)
	}
}
