package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/types"
)

var stamp = time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)

func sampleJob() types.Job {
	return types.Job{
		ID:                   "job-1",
		AccountID:            "acc-1",
		Title:                "Board meeting",
		Status:               types.StatusCompleted,
		DetectedLanguageName: "French",
		RawText:              "bonjour a tous",
		FormattedText:        "Bonjour à tous.\nMerci d'être là.",
		TranslatedText:       "Hello everyone.\nThanks for being here.",
		Segments: []types.Segment{
			{Start: 0, End: 1.25, Text: " Bonjour à tous. "},
			{Start: 1.25, End: 3725.042, Text: "Merci d'être là."},
		},
		SentenceTimecodes: []types.SentenceTimecode{
			{Sentence: "Bonjour à tous.", StartFmt: "00:00:00.000", EndFmt: "00:00:01.250"},
			{Sentence: "Merci d'être là.", StartFmt: "00:00:01.250", EndFmt: "01:02:05.042"},
		},
		UpdatedAt: stamp,
	}
}

func TestRenderSRTExactBytes(t *testing.T) {
	out, err := Render(sampleJob(), types.TierAnnual, "srt")
	require.NoError(t, err)

	want := "1\n00:00:00,000 --> 00:00:01,250\nBonjour à tous.\n" +
		"\n" +
		"2\n00:00:01,250 --> 01:02:05,042\nMerci d'être là.\n"
	assert.Equal(t, want, string(out.Body))
	assert.Equal(t, "application/x-subrip", out.ContentType)
	assert.Equal(t, "Board meeting.srt", out.Filename)
	assert.Equal(t, `attachment; filename="Board meeting.srt"`, out.Disposition())
}

func TestRenderSRTGatedByTier(t *testing.T) {
	for _, tier := range []types.Tier{types.TierFree, types.TierStarter} {
		_, err := Render(sampleJob(), tier, "srt")
		require.ErrorIs(t, err, ErrFormatNotAllowed, tier)

		var na *NotAllowedError
		require.ErrorAs(t, err, &na)
		assert.Equal(t, SRTUpgradeMessage, na.Message)
		assert.Equal(t, "/pricing", na.UpgradeURL)
	}
	_, err := Render(sampleJob(), types.TierEnterprise, "srt")
	assert.NoError(t, err)
}

func TestRenderInvalidFormat(t *testing.T) {
	_, err := Render(sampleJob(), types.TierEnterprise, "mp3")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRenderTextWithTranslation(t *testing.T) {
	out, err := Render(sampleJob(), types.TierStarter, "txt")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour à tous.\nMerci d'être là.\n\n--- Translation ---\n\nHello everyone.\nThanks for being here.", string(out.Body))
	assert.Equal(t, "text/plain", out.ContentType)
}

func TestRenderTextFallsBackToRaw(t *testing.T) {
	job := sampleJob()
	job.FormattedText = ""
	job.TranslatedText = ""
	out, err := Render(job, types.TierFree, "txt")
	require.NoError(t, err)
	assert.Equal(t, "bonjour a tous", string(out.Body))
}

func TestRenderTextTimecodedForEnterprise(t *testing.T) {
	out, err := Render(sampleJob(), types.TierEnterprise, "txt")
	require.NoError(t, err)
	assert.Equal(t, "[00:00:00.000 → 00:00:01.250]  Bonjour à tous.\n[00:00:01.250 → 01:02:05.042]  Merci d'être là.", string(out.Body))

	// a non-enterprise account never sees the timecoded view, even if the record has one
	out, err = Render(sampleJob(), types.TierAnnual, "txt")
	require.NoError(t, err)
	assert.NotContains(t, string(out.Body), "→")
}

func readDocument(t *testing.T, body []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatal("word/document.xml missing")
	return ""
}

func TestRenderDOCX(t *testing.T) {
	out, err := Render(sampleJob(), types.TierStarter, "docx")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", out.ContentType)
	assert.Equal(t, "Board meeting.docx", out.Filename)

	doc := readDocument(t, out.Body)
	assert.Contains(t, doc, `<w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t xml:space="preserve">Board meeting</w:t>`)
	assert.Contains(t, doc, "Language: French")
	assert.Contains(t, doc, "Merci d&#39;être là.")
	assert.Contains(t, doc, `<w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t xml:space="preserve">Translation</w:t>`)
}

func TestRenderDOCXWithoutLanguage(t *testing.T) {
	job := sampleJob()
	job.DetectedLanguageName = ""
	out, err := Render(job, types.TierFree, "docx")
	require.NoError(t, err)
	assert.NotContains(t, readDocument(t, out.Body), "Language:")
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(sampleJob(), types.TierEnterprise, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out.Body, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", out.ContentType)
}

func TestRenderIsDeterministic(t *testing.T) {
	for _, format := range []string{"txt", "srt", "docx", "pdf"} {
		first, err := Render(sampleJob(), types.TierEnterprise, format)
		require.NoError(t, err, format)
		second, err := Render(sampleJob(), types.TierEnterprise, format)
		require.NoError(t, err, format)
		assert.Equal(t, first.Body, second.Body, format)
	}
}

func TestRenderIgnoresJobStatus(t *testing.T) {
	job := sampleJob()
	job.Status = types.StatusFailed
	_, err := Render(job, types.TierFree, "txt")
	assert.NoError(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "a_b_c.txt", Filename(`a/b"c`, "txt"))
	assert.Equal(t, "transcript.pdf", Filename("  ", "pdf"))
}

func TestServiceExport(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierStarter}))
	require.NoError(t, st.SaveProfile(ctx, types.Profile{AccountID: "acc-2", Tier: types.TierEnterprise}))
	require.NoError(t, st.CreateJob(ctx, sampleJob()))
	svc := NewService(st, st)

	out, err := svc.Export(ctx, "acc-1", "job-1", "txt")
	require.NoError(t, err)
	assert.Contains(t, string(out.Body), "--- Translation ---")

	_, err = svc.Export(ctx, "acc-1", "job-1", "srt")
	assert.ErrorIs(t, err, ErrFormatNotAllowed)

	_, err = svc.Export(ctx, "acc-1", "missing", "srt")
	assert.ErrorIs(t, err, ErrFormatNotAllowed)

	_, err = svc.Export(ctx, "acc-1", "missing", "txt")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.Export(ctx, "acc-2", "job-1", "txt")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.Export(ctx, "ghost", "job-1", "txt")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
