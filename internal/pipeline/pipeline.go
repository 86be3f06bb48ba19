// Package pipeline turns one queued job into a completed transcript. Stages run in a
// fixed order; any failure marks the job failed and stops the run, leaving whatever
// earlier stages already checkpointed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/entitlements"
	"github.com/akiwumi/typemyaudio/internal/extractor"
	"github.com/akiwumi/typemyaudio/internal/languages"
	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/storage"
	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/timecode"
	"github.com/akiwumi/typemyaudio/internal/types"
)

// Recorder is the part of the quota ledger the pipeline needs.
type Recorder interface {
	RecordNow(ctx context.Context, accountID, jobID string) error
}

type Deps struct {
	Jobs        ports.JobRepository
	Profiles    ports.ProfileRepository
	Storage     ports.ObjectStorage
	Scratch     *storage.Scratch
	Transcriber ports.Transcriber
	Enricher    *extractor.Enricher
	Ledger      Recorder
}

type Pipeline struct {
	deps   Deps
	stages []stage
	log    *logrus.Entry
}

type stage struct {
	name string
	run  func(ctx context.Context, r *run) error
}

// run is the working state of one job as it moves through the stages.
type run struct {
	msg   types.QueueMessage
	slot  *storage.Slot
	log   *logrus.Entry
	media int64

	transcript ports.Transcription
	language   languages.Language
	formatted  string
	summary    string
	translated string
	timecodes  []types.SentenceTimecode
}

func New(deps Deps) *Pipeline {
	p := &Pipeline{deps: deps, log: logger.New().WithField("component", "pipeline")}
	p.stages = []stage{
		{name: "fetch", run: p.fetch},
		{name: "transcribe", run: p.transcribe},
		{name: "validate_language", run: p.validateLanguage},
		{name: "cleanup", run: p.cleanup},
		{name: "summary", run: p.summarize},
		{name: "translate", run: p.translate},
		{name: "sentence_timecodes", run: p.sentenceTimecodes},
		{name: "complete", run: p.complete},
		{name: "record_usage", run: p.recordUsage},
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.name
	}
	return out
}

// Run processes msg to a terminal state. The returned error is the stage failure, if
// any; by the time Run returns the job has already been marked failed for it.
func (p *Pipeline) Run(ctx context.Context, msg types.QueueMessage) (err error) {
	log := p.log.WithFields(logrus.Fields{"job_id": msg.JobID, "account_id": msg.AccountID})

	job, err := p.deps.Jobs.GetJob(ctx, msg.JobID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.fail(ctx, log, msg.JobID, "load_job", err)
		}
		return fmt.Errorf("load job %s: %w", msg.JobID, err)
	}
	if job.Status.Terminal() {
		log.WithField("status", job.Status).Info("job already finished, skipping")
		return nil
	}

	if _, err := p.deps.Jobs.UpdateJob(ctx, msg.JobID, func(j *types.Job) error {
		j.Status = types.StatusProcessing
		j.ErrorMessage = ""
		return nil
	}); err != nil {
		p.fail(ctx, log, msg.JobID, "mark_processing", err)
		return fmt.Errorf("mark processing: %w", err)
	}

	slot, err := p.deps.Scratch.Acquire(ctx, msg.JobID, storage.MediaExt(msg.StorageKey))
	if err != nil {
		p.fail(ctx, log, msg.JobID, "acquire_scratch", err)
		return err
	}
	defer slot.Release()

	r := &run{msg: msg, slot: slot, log: log}
	started := time.Now()
	for _, s := range p.stages {
		stageStart := time.Now()
		if err := s.run(ctx, r); err != nil {
			p.fail(ctx, log, msg.JobID, s.name, err)
			return fmt.Errorf("%s: %w", s.name, err)
		}
		log.WithFields(logrus.Fields{"stage": s.name, "duration_ms": time.Since(stageStart).Milliseconds()}).Debug("stage done")
	}

	log.WithFields(logrus.Fields{
		"language":    r.language.Code,
		"media_bytes": r.media,
		"words":       len(strings.Fields(r.transcript.Text)),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("transcription completed")
	return nil
}

// fail marks the job failed with the user-facing message for err. Provider detail
// stays in the log.
func (p *Pipeline) fail(ctx context.Context, log *logrus.Entry, jobID, stageName string, cause error) {
	msg := FailureMessage(cause)
	log.WithError(cause).WithField("stage", stageName).Error("transcription failed")

	if _, err := p.deps.Jobs.UpdateJob(context.WithoutCancel(ctx), jobID, func(j *types.Job) error {
		j.Status = types.StatusFailed
		j.ErrorMessage = msg
		return nil
	}); err != nil {
		log.WithError(err).Error("could not mark job failed")
	}
}

// --------------------------------------------
// Stages
// --------------------------------------------

func (p *Pipeline) fetch(ctx context.Context, r *run) error {
	body, err := p.deps.Storage.Download(ctx, r.msg.StorageKey)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	defer body.Close()

	n, err := r.slot.Fill(body)
	if err != nil {
		return err
	}
	r.media = n
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, r *run) error {
	t, err := p.deps.Transcriber.Transcribe(ctx, r.slot.Path, r.msg.Vocabulary)
	if err != nil {
		return err
	}
	r.transcript = t
	return nil
}

func (p *Pipeline) validateLanguage(ctx context.Context, r *run) error {
	code := languages.Normalize(r.transcript.Language)

	lang, verr := languages.Validate(code)
	if verr != nil {
		detected := code
		if detected == "" {
			detected = "unknown"
		}
		if _, err := p.deps.Jobs.UpdateJob(ctx, r.msg.JobID, func(j *types.Job) error {
			j.DetectedLanguage = detected
			return nil
		}); err != nil {
			return err
		}
		return &ContentError{Message: verr.Error(), Err: verr}
	}
	r.language = lang

	_, err := p.deps.Jobs.UpdateJob(ctx, r.msg.JobID, func(j *types.Job) error {
		j.RawText = r.transcript.Text
		j.DetectedLanguage = lang.Code
		j.DetectedLanguageName = lang.Name
		j.Segments = r.transcript.Segments
		j.WordCount = len(strings.Fields(r.transcript.Text))
		return nil
	})
	return err
}

func (p *Pipeline) cleanup(ctx context.Context, r *run) error {
	out, err := p.deps.Enricher.Cleanup(ctx, r.transcript.Text, r.language.Name)
	if err != nil {
		return err
	}
	r.formatted = out
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, r *run) error {
	out, err := p.deps.Enricher.Summarize(ctx, r.formatted, r.language.Name)
	if err != nil {
		return err
	}
	r.summary = out
	return nil
}

func (p *Pipeline) translate(ctx context.Context, r *run) error {
	target := r.msg.TargetLanguage
	if target == "" || target == r.language.Code {
		return nil
	}
	out, err := p.deps.Enricher.Translate(ctx, r.formatted, r.language.Name, languages.TargetName(target))
	if err != nil {
		return err
	}
	r.translated = out
	return nil
}

func (p *Pipeline) sentenceTimecodes(ctx context.Context, r *run) error {
	profile, err := p.deps.Profiles.GetProfile(ctx, r.msg.AccountID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if !entitlements.For(profile.Tier).SentenceTimecodes || len(r.transcript.Words) == 0 {
		return nil
	}

	sentences, err := p.deps.Enricher.Sentences(ctx, timecode.Transcript(r.transcript.Words))
	if err != nil {
		return err
	}
	r.timecodes = timecode.MapSentences(r.transcript.Words, sentences)
	return nil
}

func (p *Pipeline) complete(ctx context.Context, r *run) error {
	_, err := p.deps.Jobs.UpdateJob(ctx, r.msg.JobID, func(j *types.Job) error {
		if j.Status != types.StatusProcessing {
			return errors.New("job left processing state during run")
		}
		j.FormattedText = r.formatted
		j.Summary = r.summary
		if r.translated != "" {
			j.TranslatedText = r.translated
			j.TranslationLanguage = r.msg.TargetLanguage
		}
		j.SentenceTimecodes = r.timecodes
		j.Status = types.StatusCompleted
		j.ErrorMessage = ""
		return nil
	})
	return err
}

func (p *Pipeline) recordUsage(ctx context.Context, r *run) error {
	return p.deps.Ledger.RecordNow(ctx, r.msg.AccountID, r.msg.JobID)
}
