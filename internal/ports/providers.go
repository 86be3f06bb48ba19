package ports

import (
	"context"
	"io"

	"github.com/akiwumi/typemyaudio/internal/types"
)

// ObjectStorage holds uploaded media keyed by "<account>/<job>/<file>".
type ObjectStorage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Remove(ctx context.Context, keys ...string) error
}

type Transcription struct {
	Text     string          `json:"text"`
	Language string          `json:"language"`
	Segments []types.Segment `json:"segments"`
	Words    []types.Word    `json:"words,omitempty"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, localPath, vocabulary string) (Transcription, error)
}

type ChatRequest struct {
	// Task names the enrichment step for logs and mocks ("cleanup", "summary", ...).
	Task        string
	System      string
	User        string
	JSON        bool
	Temperature float64
}

type LanguageModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}
