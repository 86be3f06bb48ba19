// Package transcription turns a local media file into text, segments and word
// timestamps through an OpenAI-compatible /audio/transcriptions endpoint.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxElapsed time.Duration
	// Fs is where localPath is read from. Defaults to the OS filesystem.
	Fs afero.Fs
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Entry
}

var _ ports.Transcriber = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.New().WithField("component", "transcription"),
	}
}

// New returns the deterministic mock when useMock is set, the HTTP client otherwise.
func New(cfg Config, useMock bool) ports.Transcriber {
	if useMock {
		return &Mock{}
	}
	return NewClient(cfg)
}

// verboseResponse is the verbose_json body with segment and word granularity.
type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []types.Word `json:"words"`
}

func (c *Client) Transcribe(ctx context.Context, localPath, vocabulary string) (ports.Transcription, error) {
	if c.cfg.APIKey == "" {
		return ports.Transcription{}, errors.New("OPENAI_API_KEY not set")
	}

	media, err := afero.ReadFile(c.cfg.Fs, localPath)
	if err != nil {
		return ports.Transcription{}, fmt.Errorf("read media: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"
	log := c.log.WithFields(logrus.Fields{"file": filepath.Base(localPath), "bytes": len(media)})

	var parsed verboseResponse
	var lastErr error

	op := func() error {
		// the multipart body is consumed by each attempt, so it is rebuilt here
		body, contentType, err := c.buildForm(filepath.Base(localPath), media, vocabulary)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("transcription request failed")
			return err
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("transcription response received")

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("transcription rejected: status=%d body=%s", resp.StatusCode, string(raw))
			return backoff.Permanent(lastErr)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("transcription server error: status=%d body=%s", resp.StatusCode, string(raw))
			return lastErr
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			lastErr = fmt.Errorf("decode transcription: %w", err)
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.cfg.MaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return ports.Transcription{}, fmt.Errorf("transcribe: %w", lastErr)
	}

	out := ports.Transcription{
		Text:     strings.TrimSpace(parsed.Text),
		Language: parsed.Language,
		Words:    parsed.Words,
	}
	for _, s := range parsed.Segments {
		out.Segments = append(out.Segments, types.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	log.WithFields(logrus.Fields{"language": out.Language, "segments": len(out.Segments), "words": len(out.Words)}).Info("transcription complete")
	return out, nil
}

func (c *Client) buildForm(filename string, media []byte, vocabulary string) (io.Reader, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(media); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"model", c.cfg.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
		{"timestamp_granularities[]", "word"},
	}
	if v := strings.TrimSpace(vocabulary); v != "" {
		fields = append(fields, [2]string{"prompt", v})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}
