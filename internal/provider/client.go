// Package provider implements the speech synthesis client for the remote
// text-to-speech HTTP API.
//
// The upstream contract is scraped rather than documented: requests are
// form-encoded with browser-mimicking headers, and the endpoint accepts no
// speed parameter. The client is deliberately stateless; retries, if any,
// belong to the caller.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-web/internal/core"
)

// DefaultBaseURL is the production synthesis endpoint.
const DefaultBaseURL = "https://www.openai.fm"

// API paths.
const (
	apiGenerate = "/api/generate"
)

// HTTP headers. The provider rejects requests that do not look like they
// came from its own web front end.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerOrigin      = "Origin"
	headerReferer     = "Referer"
	headerUserAgent   = "User-Agent"

	contentTypeForm = "application/x-www-form-urlencoded"
	acceptAny       = "*/*"
	originValue     = "https://www.openai.fm"
	refererValue    = "https://www.openai.fm/"
	userAgentValue  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Form field names and fixed values.
const (
	fieldInput  = "input"
	fieldPrompt = "prompt"
	fieldVoice  = "voice"
	fieldVibe   = "vibe"

	vibeNull        = "null"
	voicePromptFmt  = "Voice: %s. Standard clear voice."
	defaultSpeed    = 1.0
	maxErrorBodyLen = 500
)

// Static errors.
var (
	// ErrNetwork indicates a transport-level failure before any HTTP
	// status was received.
	ErrNetwork = errors.New("provider request failed")
	// ErrEmptyAudio indicates a success status with an empty body.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// Error is a typed non-success response from the provider.
type Error struct {
	StatusCode int
	Body       string
}

// Error formats the provider failure for segment records and logs.
func (e *Error) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the remote synthesis endpoint. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// New creates a synthesis client for the service at baseURL. The timeout
// applies to every request made by this client.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Synthesize converts one text chunk into audio bytes using the requested
// options. The voice is validated against the fixed enumeration. A speed
// other than 1.0 is accepted but the provider ignores it; the mismatch is
// logged as a warning, not returned as an error.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	opts core.SynthesisOptions,
) ([]byte, error) {
	if text == "" {
		return nil, core.ErrTextEmpty
	}

	if !core.IsSupportedVoice(opts.Voice) {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			core.ErrUnsupportedVoice, opts.Voice,
			strings.Join(core.SupportedVoices, ", "))
	}

	if opts.Speed != defaultSpeed {
		c.log.Warn(
			"Speed %.2f is not supported by the provider; default speed will be used",
			opts.Speed,
		)
	}

	payload := url.Values{}
	payload.Set(fieldInput, text)
	payload.Set(fieldPrompt, fmt.Sprintf(voicePromptFmt, opts.Voice))
	payload.Set(fieldVoice, opts.Voice)
	payload.Set(fieldVibe, vibeNull)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerate,
		strings.NewReader(payload.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	setProviderHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newProviderError(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

func setProviderHeaders(req *http.Request) {
	req.Header.Set(headerContentType, contentTypeForm)
	req.Header.Set(headerAccept, acceptAny)
	req.Header.Set(headerOrigin, originValue)
	req.Header.Set(headerReferer, refererValue)
	req.Header.Set(headerUserAgent, userAgentValue)
}

// newProviderError captures the status and a bounded slice of the response
// body so diagnostics survive into segment records.
func newProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyLen {
		text = text[:maxErrorBodyLen]
	}

	return &Error{
		StatusCode: resp.StatusCode,
		Body:       text,
	}
}
