package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/languages"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/storage"
	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const (
	msgMissingFields  = "Missing required fields"
	msgInvalidPath    = "Invalid storage path"
	msgNoProfile      = "User profile not found"
	msgNotFound       = "Transcription not found"
	msgQueued         = "Transcription queued for processing"
	msgQueueDown      = "Transcription queue is unavailable. Please try again shortly."
	msgQueueFailedJob = "We could not queue this transcription. Please upload it again."
	msgInternal       = "Internal server error"
	msgBadBody        = "Invalid request body"
)

var mediaSuffix = regexp.MustCompile(`(?i)\.(mp3|mp4)$`)

type submitRequest struct {
	TranscriptionID  string `json:"transcriptionId"`
	StoragePath      string `json:"storagePath"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	TargetLanguage   string `json:"targetLanguage"`
	Vocabulary       string `json:"vocabulary"`
}

type submitResponse struct {
	ID      string          `json:"id"`
	Status  types.JobStatus `json:"status"`
	Message string          `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	account := accountID(r)
	log := s.log.WithRequest(r).WithField("account_id", account)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.TranscriptionID == "" || req.StoragePath == "" || req.OriginalFilename == "" {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	if !strings.HasPrefix(req.StoragePath, account+"/"+req.TranscriptionID+"/") {
		writeError(w, http.StatusForbidden, msgInvalidPath)
		return
	}
	if req.TargetLanguage != "" {
		if _, err := languages.ValidateTranslationTarget(req.TargetLanguage); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	decision, err := s.Ledger.Admit(r.Context(), account)
	if errors.Is(err, quota.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, msgNoProfile)
		return
	}
	if err != nil {
		log.WithError(err).Error("admission check failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	now := s.Clock.Now()
	job := types.Job{
		ID:               req.TranscriptionID,
		AccountID:        account,
		Title:            mediaSuffix.ReplaceAllString(req.OriginalFilename, ""),
		OriginalFilename: req.OriginalFilename,
		FileSize:         req.FileSize,
		StorageKey:       req.StoragePath,
		Status:           types.StatusPending,
		TargetLanguage:   req.TargetLanguage,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Jobs.CreateJob(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "Transcription already exists")
			return
		}
		log.WithError(err).Error("create job failed")
		writeError(w, http.StatusInternalServerError, "Failed to create transcription record")
		return
	}

	msg := types.QueueMessage{
		JobID:          job.ID,
		AccountID:      account,
		StorageKey:     job.StorageKey,
		TargetLanguage: job.TargetLanguage,
		Vocabulary:     req.Vocabulary,
	}
	if err := s.Queue.Enqueue(r.Context(), msg); err != nil {
		log.WithError(err).WithField("job_id", job.ID).Error("enqueue failed")
		_, ferr := s.Jobs.UpdateJob(context.WithoutCancel(r.Context()), job.ID, func(j *types.Job) error {
			j.Status = types.StatusFailed
			j.ErrorMessage = msgQueueFailedJob
			return nil
		})
		if ferr != nil {
			log.WithError(ferr).WithField("job_id", job.ID).Error("could not mark unqueued job failed")
		}
		writeError(w, http.StatusServiceUnavailable, msgQueueDown)
		return
	}

	log.WithFields(logrus.Fields{"job_id": job.ID, "target_language": job.TargetLanguage}).Info("job queued")
	writeJSON(w, http.StatusCreated, submitResponse{ID: job.ID, Status: types.StatusPending, Message: msgQueued})
}

// ownedJob loads id and hides jobs that belong to another account.
func (s *Server) ownedJob(ctx context.Context, account, id string) (types.Job, error) {
	job, err := s.Jobs.GetJob(ctx, id)
	if err != nil {
		return types.Job{}, err
	}
	if job.AccountID != account {
		return types.Job{}, store.ErrNotFound
	}
	return job, nil
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	s.log.WithRequest(r).WithError(err).Error("job lookup failed")
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Jobs.ListJobs(r.Context(), accountID(r))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ownedJob(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type updateRequest struct {
	Title         *string `json:"title"`
	FormattedText *string `json:"formatted_text"`
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}

	account, id := accountID(r), r.PathValue("id")
	job, err := s.Jobs.UpdateJob(r.Context(), id, func(j *types.Job) error {
		if j.AccountID != account {
			return store.ErrNotFound
		}
		if req.Title != nil {
			j.Title = strings.TrimSpace(*req.Title)
		}
		if req.FormattedText != nil {
			j.FormattedText = *req.FormattedText
		}
		return nil
	})
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithRequest(r)
	job, err := s.ownedJob(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	if job.StorageKey != "" {
		if err := s.Storage.Remove(r.Context(), job.StorageKey); err != nil {
			log.WithError(err).WithField("job_id", job.ID).Warn("media removal failed")
		}
	}
	if err := s.Jobs.DeleteJob(r.Context(), job.ID); err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transcription deleted"})
}

type uploadResponse struct {
	TranscriptionID  string `json:"transcriptionId"`
	StoragePath      string `json:"storagePath"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// handleUpload stores the media under a fresh job id and returns the fields
// POST /jobs expects.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	account, filename := accountID(r), r.PathValue("filename")
	if !mediaSuffix.MatchString(filename) {
		writeError(w, http.StatusBadRequest, "Only MP3 and MP4 files are supported")
		return
	}

	id := uuid.NewString()
	key := storage.Key(account, id, filename)
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := &countingReader{r: http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)}
	if err := s.Storage.Upload(r.Context(), key, body, contentType); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		s.log.WithRequest(r).WithError(err).Error("upload failed")
		writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		TranscriptionID:  id,
		StoragePath:      key,
		OriginalFilename: filename,
		FileSize:         body.n,
	})
}
