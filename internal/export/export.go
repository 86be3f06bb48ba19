// Package export renders a stored transcript into a downloadable document. Output is
// a pure function of the job record, the caller's tier and the format, so rendering
// the same record twice yields identical bytes.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/akiwumi/typemyaudio/internal/entitlements"
	"github.com/akiwumi/typemyaudio/internal/types"
)

var (
	ErrInvalidFormat    = errors.New("invalid export format")
	ErrFormatNotAllowed = errors.New("export format not available on this plan")
	ErrJobNotFound      = errors.New("transcription not found")
)

const (
	UpgradeURL        = "/pricing"
	SRTUpgradeMessage = "SRT export is available on Annual and Enterprise plans."
)

var contentTypes = map[entitlements.Format]string{
	entitlements.FormatTXT:  "text/plain",
	entitlements.FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	entitlements.FormatPDF:  "application/pdf",
	entitlements.FormatSRT:  "application/x-subrip",
}

type Rendered struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Disposition is the Content-Disposition header value for r.
func (r Rendered) Disposition() string {
	return fmt.Sprintf("attachment; filename=%q", r.Filename)
}

// NotAllowedError is returned when the tier cannot use a format. It wraps
// ErrFormatNotAllowed and carries the upgrade hint shown to the caller.
type NotAllowedError struct {
	Format     entitlements.Format
	Message    string
	UpgradeURL string
}

func (e *NotAllowedError) Error() string { return e.Message }

func (e *NotAllowedError) Unwrap() error { return ErrFormatNotAllowed }

// Check validates format and whether tier may use it.
func Check(tier types.Tier, format string) (entitlements.Format, error) {
	f, ok := entitlements.ParseFormat(format)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	if !entitlements.For(tier).Allows(f) {
		msg := fmt.Sprintf("%s export is not available on your plan.", strings.ToUpper(string(f)))
		if f == entitlements.FormatSRT {
			msg = SRTUpgradeMessage
		}
		return "", &NotAllowedError{Format: f, Message: msg, UpgradeURL: UpgradeURL}
	}
	return f, nil
}

// Render produces the export of job in format for an account on tier. The job's
// status is not checked.
func Render(job types.Job, tier types.Tier, format string) (Rendered, error) {
	f, err := Check(tier, format)
	if err != nil {
		return Rendered{}, err
	}
	ent := entitlements.For(tier)

	doc := buildDocument(job, ent)

	var body []byte
	switch f {
	case entitlements.FormatTXT:
		body = renderText(doc)
	case entitlements.FormatSRT:
		body = renderSRT(job.Segments)
	case entitlements.FormatDOCX:
		body, err = renderDOCX(doc)
	case entitlements.FormatPDF:
		body, err = renderPDF(doc)
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", f, err)
	}

	return Rendered{
		Body:        body,
		ContentType: contentTypes[f],
		Filename:    Filename(job.Title, f),
	}, nil
}

// document is the format-independent view of a job.
type document struct {
	title       string
	language    string
	timecoded   []string
	body        string
	translation string
	stamp       time.Time
}

func buildDocument(job types.Job, ent entitlements.Entitlements) document {
	doc := document{
		title:    job.Title,
		language: job.DetectedLanguageName,
		stamp:    job.UpdatedAt,
	}
	if doc.title == "" {
		doc.title = "Transcript"
	}
	if doc.stamp.IsZero() {
		doc.stamp = job.CreatedAt
	}
	if doc.stamp.Before(zipEpoch) {
		doc.stamp = zipEpoch
	}

	if ent.SentenceTimecodes && len(job.SentenceTimecodes) > 0 {
		for _, tc := range job.SentenceTimecodes {
			doc.timecoded = append(doc.timecoded, fmt.Sprintf("[%s → %s]  %s", tc.StartFmt, tc.EndFmt, tc.Sentence))
		}
		return doc
	}

	doc.body = job.FormattedText
	if doc.body == "" {
		doc.body = job.RawText
	}
	doc.translation = job.TranslatedText
	return doc
}

// Filename is title with unsafe characters replaced, plus the format extension.
func Filename(title string, f entitlements.Format) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if clean == "" {
		clean = "transcript"
	}
	return clean + "." + string(f)
}
