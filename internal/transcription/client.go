package transcription

import (
	"context"
	"strings"
	"sync"

	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const mockTranscript = "Welcome to the weekly planning call. We reviewed the release schedule and agreed on next steps."

// Mock returns a fixed English transcript with evenly spaced word timestamps.
// Used when USE_MOCK_TRANSCRIBE=true and in tests.
type Mock struct {
	// Result overrides the default transcript when non-empty.
	Result *ports.Transcription
	Err    error

	mu         sync.Mutex
	Calls      int
	Vocabulary string
}

func (m *Mock) Transcribe(_ context.Context, _ string, vocabulary string) (ports.Transcription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Vocabulary = vocabulary
	if m.Err != nil {
		return ports.Transcription{}, m.Err
	}
	if m.Result != nil {
		return *m.Result, nil
	}
	return Fake(mockTranscript, "en"), nil
}

// Fake builds a transcription of text where each word lasts half a second and each
// sentence-ending word closes a segment.
func Fake(text, language string) ports.Transcription {
	out := ports.Transcription{Text: text, Language: language}
	var seg []string
	segStart := 0.0
	for i, tok := range strings.Fields(text) {
		start := float64(i) * 0.5
		out.Words = append(out.Words, types.Word{Word: tok, Start: start, End: start + 0.5})
		if len(seg) == 0 {
			segStart = start
		}
		seg = append(seg, tok)
		if strings.HasSuffix(tok, ".") || strings.HasSuffix(tok, "?") || strings.HasSuffix(tok, "!") {
			out.Segments = append(out.Segments, types.Segment{Start: segStart, End: start + 0.5, Text: strings.Join(seg, " ")})
			seg = nil
		}
	}
	if len(seg) > 0 {
		end := float64(len(out.Words)) * 0.5
		out.Segments = append(out.Segments, types.Segment{Start: segStart, End: end, Text: strings.Join(seg, " ")})
	}
	return out
}
