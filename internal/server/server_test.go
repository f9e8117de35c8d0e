// Package server_test exercises the REST surface through the fiber test
// transport.
package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-web/internal/artifact"
	"github.com/book-expert/tts-web/internal/core"
	"github.com/book-expert/tts-web/internal/jobstore"
	"github.com/book-expert/tts-web/internal/orchestrator"
	"github.com/book-expert/tts-web/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(
	_ context.Context,
	text string,
	_ core.SynthesisOptions,
) ([]byte, error) {
	return []byte("audio:" + text), nil
}

type stubCombiner struct{}

func (stubCombiner) Combine(
	_ context.Context,
	buffers [][]byte,
	_ string,
) (core.CombineResult, error) {
	var combined []byte
	for _, buffer := range buffers {
		combined = append(combined, buffer...)
	}

	return core.CombineResult{
		Buffer:   combined,
		Duration: len(buffers) * 30,
		Size:     len(combined),
	}, nil
}

type testHarness struct {
	srv   *server.Server
	store core.JobStore
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	log, err := logger.New(t.TempDir(), "server-test.log")
	require.NoError(t, err)

	store := jobstore.New()
	artifacts := artifact.NewFileStore(t.TempDir())
	orch := orchestrator.New(store, stubSynthesizer{}, stubCombiner{},
		artifacts, log, orchestrator.Options{})
	srv := server.New(orch, store, artifacts, "", log)

	return &testHarness{srv: srv, store: store}
}

func postJSON(t *testing.T, srv *server.Server, path, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, 5000)
	require.NoError(t, err)

	return resp
}

func get(t *testing.T, srv *server.Server, path string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)

	resp, err := srv.App().Test(req, 5000)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := get(t, h.srv, "/healthz")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestSubmitConversionAccepted(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := postJSON(t, h.srv, "/api/conversions",
		`{"text":"Hello there.","voice":"alloy","speed":"1.0","format":"mp3"}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	decodeBody(t, resp, &accepted)
	assert.NotEmpty(t, accepted.ID)
	assert.Equal(t, "processing", accepted.Status)

	// The job becomes retrievable and eventually terminal.
	require.Eventually(t, func() bool {
		job, getErr := h.store.Get(accepted.ID)

		return getErr == nil && job.Status == core.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubmitConversionValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":"  ","voice":"alloy","speed":"1.0","format":"mp3"}`},
		{"bad voice", `{"text":"hi","voice":"robotic","speed":"1.0","format":"mp3"}`},
		{"bad speed", `{"text":"hi","voice":"alloy","speed":"3.0","format":"mp3"}`},
		{"bad format", `{"text":"hi","voice":"alloy","speed":"1.0","format":"flac"}`},
		{"malformed json", `{"text":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)

			resp := postJSON(t, h.srv, "/api/conversions", tc.body)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetConversionNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := get(t, h.srv, "/api/conversions/does-not-exist")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetConversionReturnsFullRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := postJSON(t, h.srv, "/api/conversions",
		`{"text":"Record lookup test.","voice":"nova","speed":"1.0","format":"mp3"}`)

	var accepted struct {
		ID string `json:"id"`
	}

	decodeBody(t, resp, &accepted)

	require.Eventually(t, func() bool {
		job, getErr := h.store.Get(accepted.ID)

		return getErr == nil && job.Status == core.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	lookup := get(t, h.srv, "/api/conversions/"+accepted.ID)

	assert.Equal(t, http.StatusOK, lookup.StatusCode)

	var job core.ConversionJob

	decodeBody(t, lookup, &job)
	assert.Equal(t, accepted.ID, job.ID)
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, "nova", job.Voice)
	require.NotNil(t, job.AudioPath)
	require.Len(t, job.Segments, 1)
}

func TestListConversions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	for range 3 {
		resp := postJSON(t, h.srv, "/api/conversions",
			`{"text":"List me.","voice":"alloy","speed":"1.0","format":"mp3"}`)
		_ = resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		jobs, listErr := h.store.ListRecent(10)

		return listErr == nil && len(jobs) == 3
	}, 5*time.Second, 10*time.Millisecond)

	resp := get(t, h.srv, "/api/conversions?limit=2")

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var jobs []core.ConversionJob

	decodeBody(t, resp, &jobs)
	assert.Len(t, jobs, 2)

	for _, job := range jobs {
		assert.Equal(t, core.JobCompleted, job.Status)
	}
}

func TestListConversionsRejectsBadLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	for _, path := range []string{
		"/api/conversions?limit=abc",
		"/api/conversions?limit=0",
		"/api/conversions?limit=-3",
	} {
		resp := get(t, h.srv, path)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestDownloadAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := postJSON(t, h.srv, "/api/conversions",
		`{"text":"Download me.","voice":"alloy","speed":"1.0","format":"mp3"}`)

	var accepted struct {
		ID string `json:"id"`
	}

	decodeBody(t, resp, &accepted)

	require.Eventually(t, func() bool {
		job, getErr := h.store.Get(accepted.ID)

		return getErr == nil && job.Status == core.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	download := get(t, h.srv, "/api/audio/"+accepted.ID+".mp3")
	defer func() { _ = download.Body.Close() }()

	assert.Equal(t, http.StatusOK, download.StatusCode)
	assert.Equal(t, "audio/mpeg", download.Header.Get("Content-Type"))
	assert.Contains(t, download.Header.Get("Content-Disposition"), "attachment")

	body, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestDownloadAudioNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resp := get(t, h.srv, "/api/audio/missing.mp3")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
