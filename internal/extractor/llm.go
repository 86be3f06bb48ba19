package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/akiwumi/typemyaudio/internal/ports"
)

const (
	TaskCleanup   = "cleanup"
	TaskSummary   = "summary"
	TaskTranslate = "translate"
	TaskSentences = "sentences"
)

const sentencesSystemPrompt = `You are a sentence boundary detector. Given a transcript, split it into individual sentences. Return a JSON object: { "sentences": string[] }. Preserve every word exactly.`

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("empty llm response")

// Enricher runs the enrichment prompts over one language model.
type Enricher struct {
	lm ports.LanguageModel
}

func NewEnricher(lm ports.LanguageModel) *Enricher {
	return &Enricher{lm: lm}
}

// complete returns the trimmed reply, or fallback when the reply is blank.
func (e *Enricher) complete(ctx context.Context, req ports.ChatRequest, fallback string) (string, error) {
	out, err := e.lm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if out = strings.TrimSpace(out); out == "" {
		return fallback, nil
	}
	return out, nil
}

// Cleanup punctuates and formats text without changing its language. A blank reply
// yields text unchanged.
func (e *Enricher) Cleanup(ctx context.Context, text, languageName string) (string, error) {
	return e.complete(ctx, ports.ChatRequest{
		Task: TaskCleanup,
		System: fmt.Sprintf("You are a transcription assistant. The following transcript is in %s. "+
			"Clean up and format it IN THE SAME LANGUAGE (%s). "+
			"Do NOT translate to English unless explicitly asked.", languageName, languageName),
		User:        "Transcript:\n" + text + "\n\nRequested: cleanup, punctuation",
		Temperature: 0.3,
	}, text)
}

// Summarize writes a short summary in the transcript's own language. A blank reply
// yields an empty summary.
func (e *Enricher) Summarize(ctx context.Context, text, languageName string) (string, error) {
	return e.complete(ctx, ports.ChatRequest{
		Task: TaskSummary,
		System: fmt.Sprintf("Generate a concise summary of this %s transcript. "+
			"Write the summary in %s. Keep it under 200 words.", languageName, languageName),
		User:        text,
		Temperature: 0.3,
	}, "")
}

// Translate returns text in targetName. A blank reply yields text unchanged.
func (e *Enricher) Translate(ctx context.Context, text, sourceName, targetName string) (string, error) {
	return e.complete(ctx, ports.ChatRequest{
		Task: TaskTranslate,
		System: fmt.Sprintf("You are a professional translator. Translate the following %s text to %s. "+
			"Maintain the original meaning, tone, and formatting. Preserve paragraph breaks and any speaker labels. "+
			"Do NOT add explanations. Return ONLY the translated text.", sourceName, targetName),
		User:        text,
		Temperature: 0.3,
	}, text)
}

// Sentences asks the model to split transcript into sentences and returns them in order.
func (e *Enricher) Sentences(ctx context.Context, transcript string) ([]string, error) {
	out, err := e.complete(ctx, ports.ChatRequest{
		Task:   TaskSentences,
		System: sentencesSystemPrompt,
		User:   transcript,
		JSON:   true,
	}, "")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, fmt.Errorf("%s: %w", TaskSentences, ErrEmptyResponse)
	}
	return parseSentences(out)
}

func parseSentences(raw string) ([]string, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, fmt.Errorf("sentences: no JSON object in %q", raw)
	}
	var parsed struct {
		Sentences []string `json:"sentences"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("sentences: decode: %w", err)
	}
	return parsed.Sentences, nil
}
