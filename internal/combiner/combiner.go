// Package combiner merges per-chunk audio buffers into a single artifact.
//
// The preferred path is a format-aware stream-copy concatenation through an
// external ffmpeg binary. When that path is unavailable the combiner falls
// back to raw byte concatenation, which is not a well-formed multi-frame
// file for every container; the duration is then a documented estimate
// rather than a measurement. Every temporary file staged for the external
// tools is removed before the call returns, on every path.
package combiner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-web/internal/core"
	"github.com/google/uuid"
)

// Default external binaries.
const (
	DefaultFFmpegPath  = "ffmpeg"
	DefaultFFprobePath = "ffprobe"
)

// FallbackDurationSeconds is used per chunk when no duration can be
// measured.
const FallbackDurationSeconds = 30

// File permissions for staged temp files.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Temp file name patterns, scoped by a per-invocation id so concurrent
// jobs cannot collide.
const (
	chunkFileFmt    = "chunk_%s_%04d.%s"
	manifestFileFmt = "filelist_%s.txt"
	combinedFileFmt = "combined_%s.%s"
	probeFileFmt    = "duration_%s.%s"
)

// ErrNoBuffers is returned when Combine is called with no input.
var ErrNoBuffers = errors.New("no audio buffers provided")

// commandOutput is an internal process execution response.
type commandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts external tool execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandOutput, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandOutput, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := commandOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}

	if err != nil {
		out.ExitCode = -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		}

		return out, fmt.Errorf("command %s failed: %w", name, err)
	}

	return out, nil
}

// Combiner concatenates audio buffers and estimates durations using
// external ffmpeg/ffprobe binaries, with in-process fallbacks.
type Combiner struct {
	tempDir     string
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	log         *logger.Logger
}

// New creates a combiner staging temp files under tempDir. Empty tool paths
// fall back to looking up ffmpeg and ffprobe on PATH.
func New(tempDir, ffmpegPath, ffprobePath string, log *logger.Logger) *Combiner {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}

	if ffprobePath == "" {
		ffprobePath = DefaultFFprobePath
	}

	return &Combiner{
		tempDir:     tempDir,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      execRunner{},
		log:         log,
	}
}

// NewWithRunner creates a combiner with a custom command runner. This
// constructor is primarily for testing, allowing injection of a fake
// "tool unavailable" condition.
func NewWithRunner(
	tempDir, ffmpegPath, ffprobePath string,
	runner commandRunner,
	log *logger.Logger,
) *Combiner {
	return &Combiner{
		tempDir:     tempDir,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		log:         log,
	}
}

// Combine concatenates buffers in order into a single buffer. The returned
// buffer and size are byte-accurate; the duration is approximate whenever
// the structured path or the probe is unavailable.
func (c *Combiner) Combine(
	ctx context.Context,
	buffers [][]byte,
	format string,
) (core.CombineResult, error) {
	if len(buffers) == 0 {
		return core.CombineResult{}, ErrNoBuffers
	}

	if len(buffers) == 1 {
		buffer := buffers[0]

		return core.CombineResult{
			Buffer:   buffer,
			Duration: c.probeDuration(ctx, buffer, format),
			Size:     len(buffer),
		}, nil
	}

	combined, err := c.combineStructured(ctx, buffers, format)
	if err != nil {
		c.log.Warn("Structured concatenation unavailable, using byte concatenation: %v", err)

		combined = bytes.Join(buffers, nil)

		return core.CombineResult{
			Buffer:   combined,
			Duration: len(buffers) * FallbackDurationSeconds,
			Size:     len(combined),
		}, nil
	}

	return core.CombineResult{
		Buffer:   combined,
		Duration: c.probeDuration(ctx, combined, format),
		Size:     len(combined),
	}, nil
}

// combineStructured stages each buffer to a scoped temp file, builds the
// concat-demuxer manifest, and stream-copies the inputs into one output
// file without re-encoding.
func (c *Combiner) combineStructured(
	ctx context.Context,
	buffers [][]byte,
	format string,
) ([]byte, error) {
	err := os.MkdirAll(c.tempDir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	scope := uuid.NewString()
	manifestPath := filepath.Join(c.tempDir, fmt.Sprintf(manifestFileFmt, scope))
	outputPath := filepath.Join(c.tempDir, fmt.Sprintf(combinedFileFmt, scope, format))

	staged := make([]string, 0, len(buffers)+2)
	defer func() {
		c.removeAll(staged)
	}()

	var manifest strings.Builder

	for i, buffer := range buffers {
		chunkPath := filepath.Join(c.tempDir, fmt.Sprintf(chunkFileFmt, scope, i, format))

		writeErr := os.WriteFile(chunkPath, buffer, filePermissions)
		if writeErr != nil {
			return nil, fmt.Errorf("failed to stage chunk %d: %w", i, writeErr)
		}

		staged = append(staged, chunkPath)

		fmt.Fprintf(&manifest, "file '%s'\n", chunkPath)
	}

	err = os.WriteFile(manifestPath, []byte(manifest.String()), filePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to write concat manifest: %w", err)
	}

	staged = append(staged, manifestPath, outputPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	out, err := c.runner.Run(ctx, c.ffmpegPath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg concat failed (exit %d): %w", out.ExitCode, err)
	}

	combined, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read combined output: %w", err)
	}

	return combined, nil
}

// probeDuration stages the buffer and asks ffprobe for the container-level
// duration, rounded to the nearest second. It never fails: on any tool or
// parse error it returns the fallback estimate.
func (c *Combiner) probeDuration(ctx context.Context, buffer []byte, format string) int {
	err := os.MkdirAll(c.tempDir, dirPermissions)
	if err != nil {
		return FallbackDurationSeconds
	}

	probePath := filepath.Join(
		c.tempDir,
		fmt.Sprintf(probeFileFmt, uuid.NewString(), format),
	)

	err = os.WriteFile(probePath, buffer, filePermissions)
	if err != nil {
		return FallbackDurationSeconds
	}

	defer func() {
		c.removeAll([]string{probePath})
	}()

	args := []string{
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		probePath,
	}

	out, err := c.runner.Run(ctx, c.ffprobePath, args...)
	if err != nil {
		return FallbackDurationSeconds
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.Stdout), 64)
	if err != nil || math.IsNaN(seconds) {
		return FallbackDurationSeconds
	}

	return int(math.Round(seconds))
}

// removeAll deletes staged temp files, logging rather than failing on
// errors so cleanup problems never mask the combine result.
func (c *Combiner) removeAll(paths []string) {
	for _, path := range paths {
		removeErr := os.Remove(path)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			c.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
		}
	}
}
