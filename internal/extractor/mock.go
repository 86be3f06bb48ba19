package extractor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/akiwumi/typemyaudio/internal/ports"
)

// Mock answers every task deterministically without a network call.
// Used when USE_MOCK_LLM=true and in tests.
type Mock struct {
	// Fail makes the named tasks return the given error.
	Fail map[string]error
	// Blank makes the named tasks reply with an empty string.
	Blank map[string]bool

	mu       sync.Mutex
	requests []ports.ChatRequest
}

func (m *Mock) Complete(_ context.Context, req ports.ChatRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := m.Fail[req.Task]; err != nil {
		return "", err
	}
	if m.Blank[req.Task] {
		return "", nil
	}

	text := strings.TrimSpace(req.User)
	switch req.Task {
	case TaskCleanup:
		text = strings.TrimPrefix(text, "Transcript:\n")
		text = strings.TrimSuffix(text, "\n\nRequested: cleanup, punctuation")
		return strings.TrimSpace(text), nil
	case TaskSummary:
		return firstSentence(text), nil
	case TaskTranslate:
		return "[translated] " + text, nil
	case TaskSentences:
		out, _ := json.Marshal(map[string][]string{"sentences": splitSentences(text)})
		return string(out), nil
	default:
		return text, nil
	}
}

// Tasks lists the task of every request received, in order.
func (m *Mock) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.Task
	}
	return out
}

// Requests returns a copy of every request received.
func (m *Mock) Requests() []ports.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.ChatRequest(nil), m.requests...)
}

func splitSentences(text string) []string {
	var out []string
	var cur []string
	for _, tok := range strings.Fields(text) {
		cur = append(cur, tok)
		if strings.ContainsAny(tok[len(tok)-1:], ".?!") {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

func firstSentence(text string) string {
	if s := splitSentences(text); len(s) > 0 {
		return s[0]
	}
	return text
}
