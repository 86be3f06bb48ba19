package types

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// --------------------------------------------
// Provider output carried on the job record
// --------------------------------------------
type Segment struct {
	Start float64 `json:"start" toml:"start"`
	End   float64 `json:"end" toml:"end"`
	Text  string  `json:"text" toml:"text"`
}

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type SentenceTimecode struct {
	Sentence string  `json:"sentence" toml:"sentence"`
	Start    float64 `json:"start" toml:"start"`
	End      float64 `json:"end" toml:"end"`
	StartFmt string  `json:"start_fmt" toml:"start_fmt"`
	EndFmt   string  `json:"end_fmt" toml:"end_fmt"`
}

// --------------------------------------------
// Transcription job record
// --------------------------------------------
type Job struct {
	ID                   string             `json:"id"`
	AccountID            string             `json:"user_id"`
	Title                string             `json:"title"`
	OriginalFilename     string             `json:"original_filename"`
	FileSize             int64              `json:"file_size,omitempty"`
	StorageKey           string             `json:"file_url"`
	Status               JobStatus          `json:"status"`
	DetectedLanguage     string             `json:"detected_language,omitempty"`
	DetectedLanguageName string             `json:"detected_language_name,omitempty"`
	TargetLanguage       string             `json:"target_language,omitempty"`
	RawText              string             `json:"raw_text,omitempty"`
	FormattedText        string             `json:"formatted_text,omitempty"`
	TranslatedText       string             `json:"translated_text,omitempty"`
	TranslationLanguage  string             `json:"translation_language,omitempty"`
	Summary              string             `json:"summary,omitempty"`
	Segments             []Segment          `json:"segments,omitempty"`
	SentenceTimecodes    []SentenceTimecode `json:"sentence_timecodes,omitempty"`
	WordCount            int                `json:"word_count,omitempty"`
	ErrorMessage         string             `json:"error_message,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// QueueMessage is the payload the submission handler enqueues for the worker.
type QueueMessage struct {
	JobID          string `json:"jobId"`
	AccountID      string `json:"accountId"`
	StorageKey     string `json:"storageKey"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	// Vocabulary is an optional hint passed through to speech-to-text.
	Vocabulary string `json:"vocabulary,omitempty"`
}
