package combiner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errToolUnavailable = errors.New("executable file not found in $PATH")

// unavailableRunner simulates a host without ffmpeg/ffprobe installed.
type unavailableRunner struct {
	calls int
}

func (r *unavailableRunner) Run(_ context.Context, _ string, _ ...string) (commandOutput, error) {
	r.calls++

	return commandOutput{ExitCode: -1}, errToolUnavailable
}

// fakeToolRunner emulates ffmpeg concat and ffprobe duration probing
// without the real binaries.
type fakeToolRunner struct {
	probeStdout string
	probeErr    error
}

func (r *fakeToolRunner) Run(_ context.Context, name string, args ...string) (commandOutput, error) {
	if name == "fake-ffprobe" {
		if r.probeErr != nil {
			return commandOutput{ExitCode: 1}, r.probeErr
		}

		return commandOutput{Stdout: r.probeStdout}, nil
	}

	// ffmpeg concat: read the manifest, join the staged chunks, write the
	// output file named by the final argument.
	manifestPath := ""

	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			manifestPath = args[i+1]
		}
	}

	outputPath := args[len(args)-1]

	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return commandOutput{ExitCode: 1}, err
	}

	var combined []byte

	for _, line := range strings.Split(strings.TrimSpace(string(manifest)), "\n") {
		path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")

		chunk, readErr := os.ReadFile(path)
		if readErr != nil {
			return commandOutput{ExitCode: 1}, readErr
		}

		combined = append(combined, chunk...)
	}

	writeErr := os.WriteFile(outputPath, combined, 0o600)
	if writeErr != nil {
		return commandOutput{ExitCode: 1}, writeErr
	}

	return commandOutput{}, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "combiner-test.log")
	require.NoError(t, err)

	return log
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}

	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory should contain no leftover files")
}

func TestCombine_EmptyInput(t *testing.T) {
	t.Parallel()

	c := NewWithRunner(t.TempDir(), "fake-ffmpeg", "fake-ffprobe", &fakeToolRunner{}, newTestLogger(t))

	_, err := c.Combine(context.Background(), nil, "mp3")
	require.ErrorIs(t, err, ErrNoBuffers)
}

func TestCombine_SingleBufferPassThrough(t *testing.T) {
	t.Parallel()

	tempDir := filepath.Join(t.TempDir(), "staging")
	buffer := []byte("single-chunk-audio")

	c := NewWithRunner(tempDir, "fake-ffmpeg", "fake-ffprobe",
		&fakeToolRunner{probeStdout: "12.4\n"}, newTestLogger(t))

	result, err := c.Combine(context.Background(), [][]byte{buffer}, "mp3")
	require.NoError(t, err)

	assert.Equal(t, buffer, result.Buffer)
	assert.Equal(t, len(buffer), result.Size)
	assert.Equal(t, 12, result.Duration)

	requireEmptyDir(t, tempDir)
}

func TestCombine_SingleBufferProbeUnavailableDefaultsDuration(t *testing.T) {
	t.Parallel()

	tempDir := filepath.Join(t.TempDir(), "staging")
	buffer := []byte("audio")

	c := NewWithRunner(tempDir, "fake-ffmpeg", "fake-ffprobe",
		&unavailableRunner{}, newTestLogger(t))

	result, err := c.Combine(context.Background(), [][]byte{buffer}, "mp3")
	require.NoError(t, err)

	assert.Equal(t, buffer, result.Buffer)
	assert.Equal(t, FallbackDurationSeconds, result.Duration)

	requireEmptyDir(t, tempDir)
}

func TestCombine_StructuredPath(t *testing.T) {
	t.Parallel()

	tempDir := filepath.Join(t.TempDir(), "staging")
	buffers := [][]byte{[]byte("AAA"), []byte("BBB"), []byte("CCC")}

	c := NewWithRunner(tempDir, "fake-ffmpeg", "fake-ffprobe",
		&fakeToolRunner{probeStdout: "90.6"}, newTestLogger(t))

	result, err := c.Combine(context.Background(), buffers, "mp3")
	require.NoError(t, err)

	assert.Equal(t, []byte("AAABBBCCC"), result.Buffer)
	assert.Equal(t, 9, result.Size)
	assert.Equal(t, 91, result.Duration)

	requireEmptyDir(t, tempDir)
}

func TestCombine_FallbackWhenToolUnavailable(t *testing.T) {
	t.Parallel()

	tempDir := filepath.Join(t.TempDir(), "staging")
	buffers := [][]byte{[]byte("AAA"), []byte("BBB"), []byte("CCC")}

	runner := &unavailableRunner{}
	c := NewWithRunner(tempDir, "fake-ffmpeg", "fake-ffprobe", runner, newTestLogger(t))

	result, err := c.Combine(context.Background(), buffers, "mp3")
	require.NoError(t, err)

	assert.Equal(t, []byte("AAABBBCCC"), result.Buffer)
	assert.Equal(t, 9, result.Size)
	assert.Equal(t, len(buffers)*FallbackDurationSeconds, result.Duration)

	requireEmptyDir(t, tempDir)
}

func TestCombine_OrderIsPreserved(t *testing.T) {
	t.Parallel()

	c := NewWithRunner(filepath.Join(t.TempDir(), "staging"), "fake-ffmpeg", "fake-ffprobe",
		&unavailableRunner{}, newTestLogger(t))

	forward, err := c.Combine(context.Background(),
		[][]byte{[]byte("A"), []byte("B"), []byte("C")}, "mp3")
	require.NoError(t, err)

	reversed, err := c.Combine(context.Background(),
		[][]byte{[]byte("C"), []byte("B"), []byte("A")}, "mp3")
	require.NoError(t, err)

	assert.NotEqual(t, forward.Buffer, reversed.Buffer)
}

func TestProbeDuration_ParseFailureDefaults(t *testing.T) {
	t.Parallel()

	tempDir := filepath.Join(t.TempDir(), "staging")

	c := NewWithRunner(tempDir, "fake-ffmpeg", "fake-ffprobe",
		&fakeToolRunner{probeStdout: "not-a-number"}, newTestLogger(t))

	duration := c.probeDuration(context.Background(), []byte("audio"), "mp3")
	assert.Equal(t, FallbackDurationSeconds, duration)

	requireEmptyDir(t, tempDir)
}
