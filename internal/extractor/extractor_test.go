package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiwumi/typemyaudio/internal/ports"
)

func chatServer(t *testing.T, status *int32, reply string, seen *chatPayload) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		if code := atomic.SwapInt32(status, http.StatusOK); code != http.StatusOK {
			w.WriteHeader(int(code))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
}

func TestCompleteSendsChatPayload(t *testing.T) {
	status := int32(http.StatusOK)
	var seen chatPayload
	srv := chatServer(t, &status, "  Bonjour.  ", &seen)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test", MaxElapsed: time.Second})
	out, err := c.Complete(context.Background(), ports.ChatRequest{Task: TaskSentences, System: "sys", User: "usr", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour.", out)

	assert.Equal(t, "gpt-4o", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "sys"}, seen.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "usr"}, seen.Messages[1])
	assert.Equal(t, map[string]string{"type": "json_object"}, seen.ResponseFormat)
}

func TestCompleteRetriesServerErrorsOnly(t *testing.T) {
	status := int32(http.StatusServiceUnavailable)
	srv := chatServer(t, &status, "ok", nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test", MaxElapsed: 2 * time.Second})
	out, err := c.Complete(context.Background(), ports.ChatRequest{Task: TaskSummary})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	status = int32(http.StatusUnauthorized)
	_, err = c.Complete(context.Background(), ports.ChatRequest{Task: TaskSummary})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"sentences":["a"]}`, want: `{"sentences":["a"]}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "braces in strings", in: `noise {"s":["x}y"]} tail`, want: `{"s":["x}y"]}`},
		{name: "none", in: "no json", want: ""},
		{name: "unbalanced", in: `{"a":`, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestEnricherPrompts(t *testing.T) {
	mock := &Mock{}
	e := NewEnricher(mock)
	ctx := context.Background()

	cleaned, err := e.Cleanup(ctx, "hola que tal", "Spanish")
	require.NoError(t, err)
	assert.Equal(t, "hola que tal", cleaned)

	_, err = e.Summarize(ctx, "Hola. Adios.", "Spanish")
	require.NoError(t, err)
	_, err = e.Translate(ctx, "Hola.", "Spanish", "English")
	require.NoError(t, err)
	sentences, err := e.Sentences(ctx, "One two. Three four?")
	require.NoError(t, err)
	assert.Equal(t, []string{"One two.", "Three four?"}, sentences)

	reqs := mock.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[0].System, "IN THE SAME LANGUAGE (Spanish)")
	assert.Contains(t, reqs[0].System, "Do NOT translate to English")
	assert.Equal(t, "Transcript:\nhola que tal\n\nRequested: cleanup, punctuation", reqs[0].User)
	assert.Contains(t, reqs[1].System, "Write the summary in Spanish. Keep it under 200 words.")
	assert.Contains(t, reqs[2].System, "Translate the following Spanish text to English.")
	assert.True(t, reqs[3].JSON)
	assert.Zero(t, reqs[3].Temperature)
	assert.Equal(t, []string{TaskCleanup, TaskSummary, TaskTranslate, TaskSentences}, mock.Tasks())
}

func TestEnricherErrors(t *testing.T) {
	boom := errors.New("boom")
	e := NewEnricher(&Mock{Fail: map[string]error{TaskSummary: boom}})
	_, err := e.Summarize(context.Background(), "x", "English")
	assert.ErrorIs(t, err, boom)

	_, err = NewEnricher(&Mock{Blank: map[string]bool{TaskSentences: true}}).Sentences(context.Background(), "Hi.")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = parseSentences("I cannot help with that")
	assert.Error(t, err)
}

func TestEnricherBlankRepliesFallBack(t *testing.T) {
	ctx := context.Background()
	e := NewEnricher(&Mock{Blank: map[string]bool{TaskCleanup: true, TaskSummary: true, TaskTranslate: true}})

	out, err := e.Cleanup(ctx, "raw words here", "English")
	require.NoError(t, err)
	assert.Equal(t, "raw words here", out)

	out, err = e.Summarize(ctx, "raw words here", "English")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = e.Translate(ctx, "bonjour", "French", "English")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
}
