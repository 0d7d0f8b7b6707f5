// Package stt uploads encoded clips to a whisper.cpp-compatible inference
// server and returns the plain-text transcription.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"drover/internal/audio"
)

// ErrTranscriptionFailed indicates the speech-to-text call failed or returned
// no text. The session is abandoned; no retry is performed.
var ErrTranscriptionFailed = errors.New("speech transcription failed")

// Client is a single-attempt HTTP client for one inference endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a transcription client. timeout bounds the full
// request including upload; zero means no client-side timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// inferenceReply is the subset of the server response we consume.
type inferenceReply struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe encodes the clip as WAV, uploads it as multipart form data, and
// returns the transcribed text. Exactly one attempt per clip.
func (c *Client) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("%w: no endpoint configured", ErrTranscriptionFailed)
	}
	if clip.Frames == 0 || len(clip.Samples) == 0 {
		return "", fmt.Errorf("%w: empty clip", ErrTranscriptionFailed)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "clip.wav")
	if err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(audio.EncodeWAV(clip)); err != nil {
		return "", fmt.Errorf("%w: write clip: %v", ErrTranscriptionFailed, err)
	}
	if err := form.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrTranscriptionFailed, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%w: finalize form: %v", ErrTranscriptionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTranscriptionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: server status %d: %s", ErrTranscriptionFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var reply inferenceReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTranscriptionFailed, err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrTranscriptionFailed, reply.Error)
	}

	text := strings.TrimSpace(reply.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcription", ErrTranscriptionFailed)
	}
	return text, nil
}
