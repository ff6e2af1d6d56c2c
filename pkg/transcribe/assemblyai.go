// Package transcribe turns audio files into word-level transcripts using AssemblyAI.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/perbu/videoqa/pkg/fetch"
	"github.com/perbu/videoqa/pkg/retry"
	"github.com/perbu/videoqa/pkg/transcript"
)

const DefaultBaseURL = "https://api.assemblyai.com/v2"

var (
	ErrTranscriptionTimeout = errors.New("transcription did not complete in time")
	ErrTranscriptionFailed  = errors.New("transcription failed")
)

// Result is a finished transcript. Word times are in milliseconds.
type Result struct {
	ID    string
	Text  string
	Words []transcript.TimedWord
}

type Config struct {
	APIKey          string
	BaseURL         string
	PollInterval    time.Duration // First delay between status checks
	MaxPollInterval time.Duration // Cap for the doubling delay
	PollTimeout     time.Duration // Overall limit for a transcript to complete
	Retry           retry.Policy  // For individual requests
}

// Client talks to the AssemblyAI REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assemblyai: API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Minute
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = fetch.Retryable
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, processing, completed, error
	Text   string `json:"text"`
	Error  string `json:"error"`
	Words  []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// TranscribeFile uploads the audio file, starts a transcript and waits for it.
func (c *Client) TranscribeFile(ctx context.Context, path string) (*Result, error) {
	uploadURL, err := c.Upload(ctx, path)
	if err != nil {
		return nil, err
	}
	id, err := c.Create(ctx, uploadURL)
	if err != nil {
		return nil, err
	}
	log.Printf("assemblyai: transcript %s created, waiting", id)
	return c.Wait(ctx, id)
}

// Upload sends a local file and returns the URL AssemblyAI assigned to it.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return retry.Permanent(fmt.Errorf("opening audio: %w", err))
		}
		defer f.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload", f)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		return c.do(req, &out)
	})
	if err != nil {
		return "", fmt.Errorf("assemblyai upload: %w", err)
	}
	if out.UploadURL == "" {
		return "", errors.New("assemblyai upload: no upload_url in response")
	}
	return out.UploadURL, nil
}

// Create starts transcription of the audio at audioURL and returns the transcript ID.
func (c *Client) Create(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", err
	}
	var out transcriptResponse
	err = retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/transcript", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, &out)
	})
	if err != nil {
		return "", fmt.Errorf("assemblyai create transcript: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("assemblyai create transcript: no id in response")
	}
	return out.ID, nil
}

// Wait polls the transcript until it completes or fails. Delays between polls
// double up to MaxPollInterval; after PollTimeout it gives up with
// ErrTranscriptionTimeout.
func (c *Client) Wait(parent context.Context, id string) (*Result, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.PollTimeout)
	defer cancel()

	delay := c.cfg.PollInterval
	for {
		tr, err := c.status(ctx, id)
		if err != nil {
			if parent.Err() == nil && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: transcript %s after %s", ErrTranscriptionTimeout, id, c.cfg.PollTimeout)
			}
			return nil, err
		}

		switch tr.Status {
		case "completed":
			return toResult(tr), nil
		case "error":
			return nil, fmt.Errorf("%w: transcript %s: %s", ErrTranscriptionFailed, id, tr.Error)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			if err := parent.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: transcript %s still %s after %s", ErrTranscriptionTimeout, id, tr.Status, c.cfg.PollTimeout)
		case <-t.C:
		}
		delay = retry.Next(delay, c.cfg.MaxPollInterval)
	}
}

func (c *Client) status(ctx context.Context, id string) (*transcriptResponse, error) {
	var out transcriptResponse
	err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/transcript/"+id, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		return c.do(req, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("assemblyai poll %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, dst any) error {
	req.Header.Set("Authorization", c.cfg.APIKey)
	return fetch.DoJSON(c.http, req, 0, dst)
}

func toResult(tr *transcriptResponse) *Result {
	res := &Result{
		ID:    tr.ID,
		Text:  tr.Text,
		Words: make([]transcript.TimedWord, len(tr.Words)),
	}
	for i, w := range tr.Words {
		res.Words[i] = transcript.TimedWord{Text: w.Text, Start: w.Start, End: w.End}
	}
	return res
}
